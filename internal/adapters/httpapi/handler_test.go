package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/audithound/saptrail/internal/core/domain"
	"github.com/audithound/saptrail/internal/core/ports"
	"github.com/audithound/saptrail/internal/core/usecase"
)

type stubRunRepo struct {
	saveFn    func(ctx context.Context, run domain.Run, entries []domain.TimelineEntry) error
	getFn     func(ctx context.Context, id string) (domain.Run, error)
	listFn    func(ctx context.Context, limit int) ([]domain.Run, error)
	entriesFn func(ctx context.Context, runID string, filter ports.TimelineFilter) ([]domain.TimelineEntry, error)
}

func (s *stubRunRepo) SaveRun(ctx context.Context, run domain.Run, entries []domain.TimelineEntry) error {
	if s.saveFn != nil {
		return s.saveFn(ctx, run, entries)
	}
	return nil
}

func (s *stubRunRepo) GetRun(ctx context.Context, id string) (domain.Run, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return domain.Run{}, domain.ErrNotFound
}

func (s *stubRunRepo) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if s.listFn != nil {
		return s.listFn(ctx, limit)
	}
	return nil, nil
}

func (s *stubRunRepo) ListEntries(ctx context.Context, runID string, filter ports.TimelineFilter) ([]domain.TimelineEntry, error) {
	if s.entriesFn != nil {
		return s.entriesFn(ctx, runID, filter)
	}
	return nil, nil
}

func newTestHandler(repo *stubRunRepo) http.Handler {
	return NewHandler(usecase.NewReviewService(repo)).Router()
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&stubRunRepo{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListRuns(t *testing.T) {
	repo := &stubRunRepo{
		listFn: func(ctx context.Context, limit int) ([]domain.Run, error) {
			if limit != 50 {
				t.Fatalf("expected default limit 50, got %d", limit)
			}
			return []domain.Run{{
				ID:        "run-1",
				StartedAt: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
				Tolerance: 15 * time.Minute,
				Stats:     domain.RunStats{HighRisk: 2},
			}}, nil
		},
	}

	rec := httptest.NewRecorder()
	newTestHandler(repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Items []runResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].ID != "run-1" {
		t.Fatalf("unexpected items: %+v", body.Items)
	}
	if body.Items[0].Tolerance != "15m0s" || body.Items[0].Stats.HighRisk != 2 {
		t.Fatalf("unexpected run payload: %+v", body.Items[0])
	}
}

func TestGetRunNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&stubRunRepo{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestTimelineFiltersForwarded(t *testing.T) {
	repo := &stubRunRepo{
		entriesFn: func(ctx context.Context, runID string, filter ports.TimelineFilter) ([]domain.TimelineEntry, error) {
			if runID != "run-1" {
				t.Fatalf("unexpected run id %q", runID)
			}
			if filter.RiskLevel != "High" || filter.User != "JDOE" || filter.Source != "CDPOS" {
				t.Fatalf("filters not forwarded: %+v", filter)
			}
			if filter.AfterSeq != 10 || filter.Limit != 5 {
				t.Fatalf("pagination not forwarded: %+v", filter)
			}
			return []domain.TimelineEntry{{
				Seq: 11, SessionID: "S0001", Source: "CDPOS", User: "JDOE",
				Timestamp: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
				Risk:      domain.RiskAssessment{Level: domain.RiskHigh, Rationale: "Sensitive table changed."},
			}}, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/runs/run-1/timeline?risk_level=High&user=JDOE&source=CDPOS&after=10&limit=5", nil)
	newTestHandler(repo).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Items []entryResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].RiskLevel != "High" {
		t.Fatalf("unexpected items: %+v", body.Items)
	}
}

func TestTimelineRejectsBadRiskLevel(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-1/timeline?risk_level=Extreme", nil)
	newTestHandler(&stubRunRepo{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTimelineRejectsBadPagination(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-1/timeline?after=abc", nil)
	newTestHandler(&stubRunRepo{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMetricsEndpointMounted(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&stubRunRepo{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
