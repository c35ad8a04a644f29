package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/audithound/saptrail/internal/adapters/sqlite/gormsqlite"
	"github.com/audithound/saptrail/internal/core/domain"
	"github.com/audithound/saptrail/internal/core/ports"
	"github.com/audithound/saptrail/migrations"
)

func openTestRepo(t *testing.T) *RunRepository {
	t.Helper()
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "test.sqlite")
	db, err := gormsqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("writer sql db: %v", err)
	}
	if err := migrations.Up(ctx, sqlDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRunRepository(db)
}

func sampleRun(id string, started time.Time) domain.Run {
	return domain.Run{
		ID:         id,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Tolerance:  15 * time.Minute,
		Stats: domain.RunStats{
			AccessRows:    10,
			ChangeRecords: 4,
			Matched:       3,
			HighRisk:      1,
			MediumRisk:    2,
			LowRisk:       7,
		},
	}
}

func sampleEntries() []domain.TimelineEntry {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return []domain.TimelineEntry{
		{
			Seq: 1, SessionID: "S0001", Source: domain.SourceChangeDoc,
			User: "JDOE", Timestamp: base, TableName: "USR02",
			ChangeIndicator: "U", FieldName: "BCODE", Correlated: true,
			Risk: domain.RiskAssessment{Level: domain.RiskHigh, Rationale: "Sensitive table changed."},
		},
		{
			Seq: 2, SessionID: "S0001", Source: domain.SourceAccessLog,
			User: "JDOE", Timestamp: base.Add(time.Minute),
			Description: "Logon successful",
			Risk:        domain.RiskAssessment{Level: domain.RiskLow, Rationale: "Normal activity."},
		},
		{
			Seq: 3, SessionID: "S0002", Source: domain.SourceAccessLog,
			User: "ASMITH", Timestamp: base.Add(time.Hour),
			Risk: domain.RiskAssessment{Level: domain.RiskMedium, Rationale: "Sensitive transaction."},
		},
	}
}

func TestRunRepositorySaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	run := sampleRun("run-1", time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	if err := repo.SaveRun(ctx, run, sampleEntries()); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Tolerance != 15*time.Minute {
		t.Fatalf("tolerance not round-tripped: %v", got.Tolerance)
	}
	if got.Stats.Matched != 3 || got.Stats.HighRisk != 1 {
		t.Fatalf("stats not round-tripped: %+v", got.Stats)
	}

	if _, err := repo.GetRun(ctx, "missing"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunRepositoryListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := repo.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour)), nil); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	runs, err := repo.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Fatalf("unexpected order: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestRunRepositoryListEntriesFilters(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	run := sampleRun("run-1", time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	if err := repo.SaveRun(ctx, run, sampleEntries()); err != nil {
		t.Fatalf("save: %v", err)
	}

	entries, err := repo.ListEntries(ctx, "run-1", ports.TimelineFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].TableName != "USR02" || entries[0].Risk.Level != domain.RiskHigh {
		t.Fatalf("entry not round-tripped: %+v", entries[0])
	}

	high, err := repo.ListEntries(ctx, "run-1", ports.TimelineFilter{RiskLevel: "High", Limit: 10})
	if err != nil {
		t.Fatalf("filter by risk: %v", err)
	}
	if len(high) != 1 || high[0].Seq != 1 {
		t.Fatalf("unexpected risk filter result: %+v", high)
	}

	jdoe, err := repo.ListEntries(ctx, "run-1", ports.TimelineFilter{User: "JDOE", Limit: 10})
	if err != nil {
		t.Fatalf("filter by user: %v", err)
	}
	if len(jdoe) != 2 {
		t.Fatalf("expected 2 JDOE entries, got %d", len(jdoe))
	}

	paged, err := repo.ListEntries(ctx, "run-1", ports.TimelineFilter{AfterSeq: 1, Limit: 1})
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(paged) != 1 || paged[0].Seq != 2 {
		t.Fatalf("unexpected page: %+v", paged)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "migrate.sqlite")
	db, err := gormsqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("writer sql db: %v", err)
	}
	if err := migrations.Up(ctx, sqlDB); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := migrations.Up(ctx, sqlDB); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
