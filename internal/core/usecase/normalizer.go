package usecase

import (
	"strings"
	"time"

	"github.com/audithound/saptrail/internal/core/domain"
)

// TimestampLayout is the fixed format of the concatenated date and time
// columns, e.g. "2025-03-10 19:17:23".
const TimestampLayout = "2006-01-02 15:04:05"

// displayVocabulary flags read-only activity in message text. Substring
// match, deliberately permissive.
var displayVocabulary = []string{"DISPLAY", "READ", "VIEW", "SHOW", "REPORT", "LIST"}

// Normalizer converts raw column-mapped rows into typed records. Rows whose
// timestamp fails to parse are dropped and counted; everything else degrades
// to empty/false. Pure: no I/O, no mutation of inputs.
type Normalizer struct{}

func NewNormalizer() *Normalizer { return &Normalizer{} }

// AccessLog normalizes security-audit log rows. The second return value is
// the number of rows dropped for unparseable timestamps.
func (n *Normalizer) AccessLog(rows []domain.AccessLogRow) ([]domain.AccessLogEvent, int) {
	events := make([]domain.AccessLogEvent, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		ts, ok := parseTimestamp(row.Date, row.Time)
		if !ok {
			dropped++
			continue
		}
		events = append(events, domain.AccessLogEvent{
			User:            strings.TrimSpace(row.User),
			Timestamp:       ts,
			TransactionCode: strings.TrimSpace(row.TransactionCode),
			MessageText:     strings.TrimSpace(row.MessageText),
			TicketRef:       strings.TrimSpace(row.TicketRef),
			ReviewComment:   strings.TrimSpace(row.ReviewComment),
			IsDisplayOnly:   isDisplayOnly(row.MessageText),
		})
	}
	return events, dropped
}

// ChangeHeaders normalizes change-document headers, dropping and counting
// rows with unparseable timestamps.
func (n *Normalizer) ChangeHeaders(rows []domain.ChangeHeaderRow) ([]domain.ChangeHeader, int) {
	headers := make([]domain.ChangeHeader, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		ts, ok := parseTimestamp(row.Date, row.Time)
		if !ok {
			dropped++
			continue
		}
		headers = append(headers, domain.ChangeHeader{
			DocumentNumber:  strings.TrimSpace(row.DocumentNumber),
			User:            strings.TrimSpace(row.User),
			Timestamp:       ts,
			TransactionCode: strings.TrimSpace(row.TransactionCode),
			ObjectClass:     strings.TrimSpace(row.ObjectClass),
			ObjectValue:     strings.TrimSpace(row.ObjectValue),
		})
	}
	return headers, dropped
}

// ChangeItems normalizes change-document line items. Items carry no
// timestamp of their own, so nothing is dropped here.
func (n *Normalizer) ChangeItems(rows []domain.ChangeItemRow) []domain.ChangeItem {
	items := make([]domain.ChangeItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.ChangeItem{
			DocumentNumber:  strings.TrimSpace(row.DocumentNumber),
			TableName:       strings.TrimSpace(row.TableName),
			ChangeIndicator: strings.ToUpper(strings.TrimSpace(row.ChangeIndicator)),
			FieldName:       strings.TrimSpace(row.FieldName),
			OldValue:        strings.TrimSpace(row.OldValue),
			NewValue:        strings.TrimSpace(row.NewValue),
			HasAgingFilter:  strings.TrimSpace(row.AgingFilter) != "",
		})
	}
	return items
}

func parseTimestamp(date, clock string) (time.Time, bool) {
	raw := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	ts, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func isDisplayOnly(message string) bool {
	upper := strings.ToUpper(message)
	for _, word := range displayVocabulary {
		if strings.Contains(upper, word) {
			return true
		}
	}
	return false
}
