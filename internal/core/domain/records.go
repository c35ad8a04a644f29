package domain

import "time"

// Raw rows as delivered by a column-mapped source. Optional fields are empty
// strings when the source file lacks the column; the normalizer treats them
// as absent rather than failing.

type AccessLogRow struct {
	Date            string
	Time            string
	User            string
	TransactionCode string
	MessageText     string
	TicketRef       string
	ReviewComment   string
}

type ChangeHeaderRow struct {
	Date            string
	Time            string
	User            string
	TransactionCode string
	DocumentNumber  string
	ObjectClass     string
	ObjectValue     string
}

type ChangeItemRow struct {
	DocumentNumber  string
	TableName       string
	ChangeIndicator string
	FieldName       string
	OldValue        string
	NewValue        string
	AgingFilter     string
}

// AccessLogEvent is one normalized security-audit log entry. Immutable after
// normalization.
type AccessLogEvent struct {
	User            string
	Timestamp       time.Time
	TransactionCode string
	MessageText     string
	TicketRef       string
	ReviewComment   string

	// IsDisplayOnly is true when the message text matches the read-only
	// activity vocabulary.
	IsDisplayOnly bool
}

// ChangeHeader is one change-document header. DocumentNumber is the join key
// to its line items.
type ChangeHeader struct {
	DocumentNumber  string
	User            string
	Timestamp       time.Time
	TransactionCode string
	ObjectClass     string
	ObjectValue     string
}

// ChangeItem is one change-document line item.
type ChangeItem struct {
	DocumentNumber  string
	TableName       string
	ChangeIndicator string
	FieldName       string
	OldValue        string
	NewValue        string
	HasAgingFilter  bool
}

// IsActualChange reports whether the item records a real data mutation
// (Insert, Update or Delete) as opposed to a display-style indicator.
func (c ChangeItem) IsActualChange() bool {
	switch c.ChangeIndicator {
	case "I", "U", "D":
		return true
	}
	return false
}

// ChangeRecord is one assembled (header, line item) pair. The header's user,
// timestamp and transaction code are carried onto every line item.
type ChangeRecord struct {
	ChangeItem

	User            string
	Timestamp       time.Time
	TransactionCode string
	ObjectClass     string
	ObjectValue     string
}

// CorrelatedEvent pairs a ChangeRecord with the access-log event that most
// plausibly caused it. Access is nil for records produced by the degraded
// fallback join when no event could be attached at all; otherwise TimeDelta
// holds the absolute distance between the two timestamps.
type CorrelatedEvent struct {
	Change    ChangeRecord
	Access    *AccessLogEvent
	TimeDelta time.Duration

	// DisplayButChanged is true when the paired access event was logged as
	// display-only yet the change record is a real data mutation.
	DisplayButChanged bool
}
