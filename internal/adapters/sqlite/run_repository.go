// Package sqlite persists completed runs and their classified timelines to
// the run archive, and serves them back to the review API.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/audithound/saptrail/internal/adapters/sqlite/gormsqlite"
	"github.com/audithound/saptrail/internal/core/domain"
	"github.com/audithound/saptrail/internal/core/ports"
)

const entryBatchSize = 500

type runModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	StartedAt   time.Time `gorm:"column:started_at;not null"`
	FinishedAt  time.Time `gorm:"column:finished_at;not null"`
	ToleranceMS int64     `gorm:"column:tolerance_ms;not null"`
	Approximate bool      `gorm:"column:approximate;not null"`

	AccessRows       int `gorm:"column:access_rows;not null"`
	AccessDropped    int `gorm:"column:access_dropped;not null"`
	HeaderRows       int `gorm:"column:header_rows;not null"`
	HeaderDropped    int `gorm:"column:header_dropped;not null"`
	ItemRows         int `gorm:"column:item_rows;not null"`
	ChangeRecords    int `gorm:"column:change_records;not null"`
	Matched          int `gorm:"column:matched;not null"`
	UnmatchedChanges int `gorm:"column:unmatched_changes;not null"`
	UnmatchedAccess  int `gorm:"column:unmatched_access;not null"`

	HighRisk    int `gorm:"column:high_risk;not null"`
	MediumRisk  int `gorm:"column:medium_risk;not null"`
	LowRisk     int `gorm:"column:low_risk;not null"`
	UnknownRisk int `gorm:"column:unknown_risk;not null"`
}

func (runModel) TableName() string {
	return "runs"
}

type entryModel struct {
	RunID     string    `gorm:"column:run_id;primaryKey"`
	Seq       int       `gorm:"column:seq;primaryKey"`
	SessionID string    `gorm:"column:session_id;not null"`
	Source    string    `gorm:"column:source;not null"`
	UserName  string    `gorm:"column:user_name;not null"`
	Timestamp time.Time `gorm:"column:ts;not null"`

	TransactionCode string `gorm:"column:transaction_code"`
	Table           string `gorm:"column:table_name"`
	ChangeIndicator string `gorm:"column:change_indicator"`
	FieldName       string `gorm:"column:field_name"`
	OldValue        string `gorm:"column:old_value"`
	NewValue        string `gorm:"column:new_value"`
	Description     string `gorm:"column:description"`
	TicketRef       string `gorm:"column:ticket_ref"`
	ReviewComment   string `gorm:"column:review_comment"`

	Correlated    bool   `gorm:"column:correlated;not null"`
	RiskLevel     string `gorm:"column:risk_level;not null"`
	RiskRationale string `gorm:"column:risk_rationale;not null"`
}

func (entryModel) TableName() string {
	return "timeline_entries"
}

type RunRepository struct {
	db *gormsqlite.DB
}

var _ ports.RunRepository = (*RunRepository)(nil)

func NewRunRepository(db *gormsqlite.DB) *RunRepository {
	return &RunRepository{db: db}
}

// SaveRun stores the run header and its timeline in one transaction.
func (r *RunRepository) SaveRun(ctx context.Context, run domain.Run, entries []domain.TimelineEntry) error {
	models := make([]entryModel, 0, len(entries))
	for _, e := range entries {
		models = append(models, toEntryModel(run.ID, e))
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Create(toRunModel(run)).Error; err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if len(models) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(models, entryBatchSize).Error; err != nil {
			return fmt.Errorf("insert timeline: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, id string) (domain.Run, error) {
	var model runModel
	err := r.db.R.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Run{}, domain.ErrNotFound
		}
		return domain.Run{}, fmt.Errorf("get run: %w", err)
	}
	return toDomainRun(model), nil
}

func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	var models []runModel
	err := r.db.R.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]domain.Run, 0, len(models))
	for _, m := range models {
		runs = append(runs, toDomainRun(m))
	}
	return runs, nil
}

func (r *RunRepository) ListEntries(ctx context.Context, runID string, filter ports.TimelineFilter) ([]domain.TimelineEntry, error) {
	query := r.db.R.WithContext(ctx).Model(&entryModel{}).Where("run_id = ?", runID)

	if filter.RiskLevel != "" {
		query = query.Where("risk_level = ?", filter.RiskLevel)
	}
	if filter.User != "" {
		query = query.Where("user_name = ?", filter.User)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.AfterSeq > 0 {
		query = query.Where("seq > ?", filter.AfterSeq)
	}

	var models []entryModel
	err := query.Order("seq ASC").Limit(filter.Limit).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}

	entries := make([]domain.TimelineEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, toDomainEntry(m))
	}
	return entries, nil
}

func toRunModel(run domain.Run) *runModel {
	return &runModel{
		ID:          run.ID,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		ToleranceMS: run.Tolerance.Milliseconds(),
		Approximate: run.Approximate,

		AccessRows:       run.Stats.AccessRows,
		AccessDropped:    run.Stats.AccessDropped,
		HeaderRows:       run.Stats.HeaderRows,
		HeaderDropped:    run.Stats.HeaderDropped,
		ItemRows:         run.Stats.ItemRows,
		ChangeRecords:    run.Stats.ChangeRecords,
		Matched:          run.Stats.Matched,
		UnmatchedChanges: run.Stats.UnmatchedChanges,
		UnmatchedAccess:  run.Stats.UnmatchedAccess,

		HighRisk:    run.Stats.HighRisk,
		MediumRisk:  run.Stats.MediumRisk,
		LowRisk:     run.Stats.LowRisk,
		UnknownRisk: run.Stats.UnknownRisk,
	}
}

func toDomainRun(m runModel) domain.Run {
	return domain.Run{
		ID:          m.ID,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
		Tolerance:   time.Duration(m.ToleranceMS) * time.Millisecond,
		Approximate: m.Approximate,
		Stats: domain.RunStats{
			AccessRows:       m.AccessRows,
			AccessDropped:    m.AccessDropped,
			HeaderRows:       m.HeaderRows,
			HeaderDropped:    m.HeaderDropped,
			ItemRows:         m.ItemRows,
			ChangeRecords:    m.ChangeRecords,
			Matched:          m.Matched,
			UnmatchedChanges: m.UnmatchedChanges,
			UnmatchedAccess:  m.UnmatchedAccess,
			HighRisk:         m.HighRisk,
			MediumRisk:       m.MediumRisk,
			LowRisk:          m.LowRisk,
			UnknownRisk:      m.UnknownRisk,
		},
	}
}

func toEntryModel(runID string, e domain.TimelineEntry) entryModel {
	return entryModel{
		RunID:     runID,
		Seq:       e.Seq,
		SessionID: e.SessionID,
		Source:    e.Source,
		UserName:  e.User,
		Timestamp: e.Timestamp,

		TransactionCode: e.TransactionCode,
		Table:           e.TableName,
		ChangeIndicator: e.ChangeIndicator,
		FieldName:       e.FieldName,
		OldValue:        e.OldValue,
		NewValue:        e.NewValue,
		Description:     e.Description,
		TicketRef:       e.TicketRef,
		ReviewComment:   e.ReviewComment,

		Correlated:    e.Correlated,
		RiskLevel:     string(e.Risk.Level),
		RiskRationale: e.Risk.Rationale,
	}
}

func toDomainEntry(m entryModel) domain.TimelineEntry {
	return domain.TimelineEntry{
		Seq:       m.Seq,
		SessionID: m.SessionID,
		Source:    m.Source,
		User:      m.UserName,
		Timestamp: m.Timestamp,

		TransactionCode: m.TransactionCode,
		TableName:       m.Table,
		ChangeIndicator: m.ChangeIndicator,
		FieldName:       m.FieldName,
		OldValue:        m.OldValue,
		NewValue:        m.NewValue,
		Description:     m.Description,
		TicketRef:       m.TicketRef,
		ReviewComment:   m.ReviewComment,

		Correlated: m.Correlated,
		Risk: domain.RiskAssessment{
			Level:     domain.RiskLevel(m.RiskLevel),
			Rationale: m.RiskRationale,
		},
	}
}
