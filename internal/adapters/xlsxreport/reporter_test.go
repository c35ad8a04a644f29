package xlsxreport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/audithound/saptrail/internal/core/domain"
)

func sampleResult() domain.AnalysisResult {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	access := domain.AccessLogEvent{
		User: "JDOE", Timestamp: base.Add(2 * time.Minute),
		TransactionCode: "SU01", MessageText: "User master changed",
		TicketRef: "CHG-42",
	}
	change := domain.ChangeRecord{
		ChangeItem: domain.ChangeItem{
			DocumentNumber: "100", TableName: "USR02",
			ChangeIndicator: "U", FieldName: "BCODE",
		},
		User: "JDOE", Timestamp: base, TransactionCode: "SU01",
	}
	return domain.AnalysisResult{
		Run: domain.Run{
			ID: "run-1", StartedAt: base, FinishedAt: base.Add(time.Second),
			Tolerance: 15 * time.Minute,
			Stats:     domain.RunStats{Matched: 1, HighRisk: 1, LowRisk: 1},
		},
		Correlated: []domain.ClassifiedCorrelated{{
			CorrelatedEvent: domain.CorrelatedEvent{
				Change: change, Access: &access, TimeDelta: 2 * time.Minute,
			},
			Risk: domain.RiskAssessment{Level: domain.RiskHigh, Rationale: "Sensitive table changed."},
		}},
		UnmatchedAccess: []domain.ClassifiedAccess{{
			AccessLogEvent: domain.AccessLogEvent{
				User: "ASMITH", Timestamp: base.Add(time.Hour), MessageText: "Logon successful",
			},
			Risk: domain.RiskAssessment{Level: domain.RiskLow, Rationale: "Normal activity."},
		}},
		Timeline: []domain.TimelineEntry{
			{
				Seq: 1, SessionID: "S0001", Source: domain.SourceChangeDoc,
				User: "JDOE", Timestamp: base, TableName: "USR02", Correlated: true,
				Risk: domain.RiskAssessment{Level: domain.RiskHigh, Rationale: "Sensitive table changed."},
			},
			{
				Seq: 2, SessionID: "S0002", Source: domain.SourceAccessLog,
				User: "ASMITH", Timestamp: base.Add(time.Hour),
				Risk: domain.RiskAssessment{Level: domain.RiskLow, Rationale: "Normal activity."},
			},
		},
	}
}

func TestReporterWritesAllSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	r := NewReporter(path)

	if err := r.Write(context.Background(), sampleResult()); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	want := []string{
		sheetCorrelated, sheetUnmatchedCDPOS, sheetUnmatchedSM20,
		sheetSessionTimeline, sheetSummary,
	}
	have := map[string]bool{}
	for _, name := range f.GetSheetList() {
		have[name] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Fatalf("missing sheet %s; have %v", name, f.GetSheetList())
		}
	}
	if have["Sheet1"] {
		t.Fatal("default sheet must be removed")
	}
}

func TestReporterCellContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := NewReporter(path).Write(context.Background(), sampleResult()); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	user, err := f.GetCellValue(sheetCorrelated, "A2")
	if err != nil || user != "JDOE" {
		t.Fatalf("correlated user cell: %q err=%v", user, err)
	}
	risk, err := f.GetCellValue(sheetCorrelated, "N2")
	if err != nil || risk != "High" {
		t.Fatalf("correlated risk cell: %q err=%v", risk, err)
	}

	runID, err := f.GetCellValue(sheetSummary, "B2")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if runID != "run-1" {
		t.Fatalf("summary run id: %q", runID)
	}

	session, err := f.GetCellValue(sheetSessionTimeline, "B3")
	if err != nil || session != "S0002" {
		t.Fatalf("timeline session cell: %q err=%v", session, err)
	}
}

func TestReporterEmptyResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	res := domain.AnalysisResult{Run: domain.Run{ID: "empty"}}

	if err := NewReporter(path).Write(context.Background(), res); err != nil {
		t.Fatalf("write empty result: %v", err)
	}
}
