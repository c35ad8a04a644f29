package usecase

import (
	"testing"
	"time"

	"github.com/audithound/saptrail/internal/core/domain"
)

func TestNormalizerAccessLogParsesTimestampAndFlags(t *testing.T) {
	n := NewNormalizer()

	events, dropped := n.AccessLog([]domain.AccessLogRow{
		{Date: "2025-03-10", Time: "19:17:23", User: "JDOE", TransactionCode: "SU01", MessageText: "Display material master"},
		{Date: "2025-03-10", Time: "19:20:00", User: "JDOE", TransactionCode: "VA02", MessageText: "Change sales order"},
	})
	if dropped != 0 {
		t.Fatalf("expected no drops, got %d", dropped)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	want := time.Date(2025, 3, 10, 19, 17, 23, 0, time.UTC)
	if !events[0].Timestamp.Equal(want) {
		t.Fatalf("unexpected timestamp: %v", events[0].Timestamp)
	}
	if !events[0].IsDisplayOnly {
		t.Fatal("expected display-only flag for DISPLAY message")
	}
	if events[1].IsDisplayOnly {
		t.Fatal("did not expect display-only flag for change message")
	}
}

func TestNormalizerAccessLogDropsUnparseableTimestamps(t *testing.T) {
	n := NewNormalizer()

	events, dropped := n.AccessLog([]domain.AccessLogRow{
		{Date: "2025-03-10", Time: "19:17:23", User: "A"},
		{Date: "not-a-date", Time: "19:17:23", User: "B"},
		{Date: "2025-03-10", Time: "", User: "C"},
	})
	if dropped != 2 {
		t.Fatalf("expected 2 dropped rows, got %d", dropped)
	}
	if len(events) != 1 || events[0].User != "A" {
		t.Fatalf("unexpected surviving events: %+v", events)
	}
}

func TestNormalizerDisplayVocabularyIsSubstringAndCaseInsensitive(t *testing.T) {
	n := NewNormalizer()

	// LISTING contains LIST; the vocabulary is deliberately a substring match.
	events, _ := n.AccessLog([]domain.AccessLogRow{
		{Date: "2025-03-10", Time: "10:00:00", User: "A", MessageText: "listing of entries"},
		{Date: "2025-03-10", Time: "10:00:01", User: "A", MessageText: "update posting"},
	})
	if !events[0].IsDisplayOnly {
		t.Fatal("expected substring match on LIST")
	}
	if events[1].IsDisplayOnly {
		t.Fatal("unexpected display flag")
	}
}

func TestNormalizerChangeItemsDerivesFlags(t *testing.T) {
	n := NewNormalizer()

	items := n.ChangeItems([]domain.ChangeItemRow{
		{DocumentNumber: "100", TableName: "USR02", ChangeIndicator: "u", AgingFilter: "X"},
		{DocumentNumber: "101", TableName: "MARA", ChangeIndicator: "E"},
	})
	if items[0].ChangeIndicator != "U" {
		t.Fatalf("expected upper-cased indicator, got %q", items[0].ChangeIndicator)
	}
	if !items[0].HasAgingFilter {
		t.Fatal("expected aging filter flag")
	}
	if !items[0].IsActualChange() {
		t.Fatal("U must count as an actual change")
	}
	if items[1].IsActualChange() {
		t.Fatal("E must not count as an actual change")
	}
}

func TestNormalizerChangeHeadersDropCount(t *testing.T) {
	n := NewNormalizer()

	headers, dropped := n.ChangeHeaders([]domain.ChangeHeaderRow{
		{Date: "2025-03-10", Time: "09:00:00", User: "A", DocumentNumber: "1"},
		{Date: "", Time: "", User: "B", DocumentNumber: "2"},
	})
	if dropped != 1 {
		t.Fatalf("expected 1 dropped header, got %d", dropped)
	}
	if len(headers) != 1 || headers[0].DocumentNumber != "1" {
		t.Fatalf("unexpected headers: %+v", headers)
	}
}
