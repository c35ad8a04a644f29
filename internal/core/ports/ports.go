package ports

import (
	"context"

	"github.com/audithound/saptrail/internal/core/domain"
)

// AccessLogSource loads column-mapped security-audit log rows.
type AccessLogSource interface {
	Load(ctx context.Context) ([]domain.AccessLogRow, error)
}

// ChangeDocumentSource loads column-mapped change-document headers and line
// items.
type ChangeDocumentSource interface {
	LoadHeaders(ctx context.Context) ([]domain.ChangeHeaderRow, error)
	LoadItems(ctx context.Context) ([]domain.ChangeItemRow, error)
}

// TimelineFilter narrows timeline queries. AfterSeq/Limit paginate; the other
// fields are exact-match filters when non-empty.
type TimelineFilter struct {
	RiskLevel string
	User      string
	Source    string
	AfterSeq  int
	Limit     int
}

// RunRepository persists completed runs and their classified timelines.
type RunRepository interface {
	SaveRun(ctx context.Context, run domain.Run, entries []domain.TimelineEntry) error
	GetRun(ctx context.Context, id string) (domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	ListEntries(ctx context.Context, runID string, filter TimelineFilter) ([]domain.TimelineEntry, error)
}

// Reporter renders the human-facing artifact for a completed run.
type Reporter interface {
	Write(ctx context.Context, res domain.AnalysisResult) error
}

// Notifier announces a completed run to an external receiver.
type Notifier interface {
	RunCompleted(ctx context.Context, run domain.Run) error
}
