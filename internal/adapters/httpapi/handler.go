// Package httpapi serves the read-only review API over the run archive.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/audithound/saptrail/internal/core/domain"
	"github.com/audithound/saptrail/internal/core/ports"
	"github.com/audithound/saptrail/internal/core/usecase"
)

const timeFormat = "2006-01-02T15:04:05.999999999Z07:00"

type Handler struct {
	review *usecase.ReviewService
}

func NewHandler(review *usecase.ReviewService) *Handler {
	return &Handler{review: review}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/v1/runs", h.listRuns)
	r.Get("/v1/runs/{id}", h.getRun)
	r.Get("/v1/runs/{id}/timeline", h.timeline)

	return r
}

type runResponse struct {
	ID          string `json:"id"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at"`
	Tolerance   string `json:"tolerance"`
	Approximate bool   `json:"approximate"`

	Stats statsResponse `json:"stats"`
}

type statsResponse struct {
	AccessRows       int `json:"access_rows"`
	AccessDropped    int `json:"access_dropped"`
	HeaderRows       int `json:"header_rows"`
	HeaderDropped    int `json:"header_dropped"`
	ItemRows         int `json:"item_rows"`
	ChangeRecords    int `json:"change_records"`
	Matched          int `json:"matched"`
	UnmatchedChanges int `json:"unmatched_changes"`
	UnmatchedAccess  int `json:"unmatched_access"`

	HighRisk    int `json:"high_risk"`
	MediumRisk  int `json:"medium_risk"`
	LowRisk     int `json:"low_risk"`
	UnknownRisk int `json:"unknown_risk"`
}

type entryResponse struct {
	Seq       int    `json:"seq"`
	SessionID string `json:"session_id"`
	Source    string `json:"source"`
	User      string `json:"user"`
	Timestamp string `json:"timestamp"`

	TransactionCode string `json:"transaction_code,omitempty"`
	TableName       string `json:"table_name,omitempty"`
	ChangeIndicator string `json:"change_indicator,omitempty"`
	FieldName       string `json:"field_name,omitempty"`
	OldValue        string `json:"old_value,omitempty"`
	NewValue        string `json:"new_value,omitempty"`
	Description     string `json:"description,omitempty"`
	TicketRef       string `json:"ticket_ref,omitempty"`
	ReviewComment   string `json:"review_comment,omitempty"`

	Correlated    bool   `json:"correlated"`
	RiskLevel     string `json:"risk_level"`
	RiskRationale string `json:"risk_rationale"`
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	runs, err := h.review.ListRuns(r.Context(), limit)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		result = append(result, toRunResponse(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.review.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	afterSeq := 0
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be integer")
			return
		}
		afterSeq = parsed
	}

	entries, err := h.review.Timeline(r.Context(), chi.URLParam(r, "id"), ports.TimelineFilter{
		RiskLevel: r.URL.Query().Get("risk_level"),
		User:      r.URL.Query().Get("user"),
		Source:    r.URL.Query().Get("source"),
		AfterSeq:  afterSeq,
		Limit:     limit,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func toRunResponse(run domain.Run) runResponse {
	return runResponse{
		ID:          run.ID,
		StartedAt:   run.StartedAt.UTC().Format(timeFormat),
		FinishedAt:  run.FinishedAt.UTC().Format(timeFormat),
		Tolerance:   run.Tolerance.String(),
		Approximate: run.Approximate,
		Stats: statsResponse{
			AccessRows:       run.Stats.AccessRows,
			AccessDropped:    run.Stats.AccessDropped,
			HeaderRows:       run.Stats.HeaderRows,
			HeaderDropped:    run.Stats.HeaderDropped,
			ItemRows:         run.Stats.ItemRows,
			ChangeRecords:    run.Stats.ChangeRecords,
			Matched:          run.Stats.Matched,
			UnmatchedChanges: run.Stats.UnmatchedChanges,
			UnmatchedAccess:  run.Stats.UnmatchedAccess,
			HighRisk:         run.Stats.HighRisk,
			MediumRisk:       run.Stats.MediumRisk,
			LowRisk:          run.Stats.LowRisk,
			UnknownRisk:      run.Stats.UnknownRisk,
		},
	}
}

func toEntryResponse(e domain.TimelineEntry) entryResponse {
	return entryResponse{
		Seq:       e.Seq,
		SessionID: e.SessionID,
		Source:    e.Source,
		User:      e.User,
		Timestamp: e.Timestamp.UTC().Format(timeFormat),

		TransactionCode: e.TransactionCode,
		TableName:       e.TableName,
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

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
