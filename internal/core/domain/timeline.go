package domain

import "time"

// Record sources in the merged timeline.
const (
	SourceAccessLog = "SM20"
	SourceChangeDoc = "CDPOS"
)

// TimelineEntry is one row of the merged, classified activity timeline. Every
// correlated pair, unmatched change and unmatched access event contributes
// exactly one entry.
type TimelineEntry struct {
	Seq       int
	SessionID string
	Source    string
	User      string
	Timestamp time.Time

	TransactionCode string
	TableName       string
	ChangeIndicator string
	FieldName       string
	OldValue        string
	NewValue        string
	Description     string
	TicketRef       string
	ReviewComment   string

	Correlated bool
	Risk       RiskAssessment
}

// RunStats reconciles input and output record counts for a run so
// completeness is auditable.
type RunStats struct {
	AccessRows       int
	AccessDropped    int
	HeaderRows       int
	HeaderDropped    int
	ItemRows         int
	ChangeRecords    int
	Matched          int
	UnmatchedChanges int
	UnmatchedAccess  int

	HighRisk    int
	MediumRisk  int
	LowRisk     int
	UnknownRisk int
}

// Run describes one completed analysis.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Tolerance  time.Duration

	// Approximate is true when the correlator ran in its degraded
	// equality-join mode; matches then carry no time-window guarantee.
	Approximate bool

	Stats RunStats
}

// AnalysisResult is everything a run produces for the reporter, the store and
// the notifier.
type AnalysisResult struct {
	Run Run

	Correlated       []ClassifiedCorrelated
	UnmatchedChanges []ClassifiedChange
	UnmatchedAccess  []ClassifiedAccess

	Timeline []TimelineEntry
}

type ClassifiedCorrelated struct {
	CorrelatedEvent
	Risk RiskAssessment
}

type ClassifiedChange struct {
	ChangeRecord
	Risk RiskAssessment
}

type ClassifiedAccess struct {
	AccessLogEvent
	Risk RiskAssessment
}
