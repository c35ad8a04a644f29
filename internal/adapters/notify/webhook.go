// Package notify announces completed runs to an external receiver, typically
// the compliance team's intake automation.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/audithound/saptrail/internal/core/domain"
	"github.com/audithound/saptrail/internal/core/ports"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookNotifier POSTs a run summary to a configured HTTP endpoint.
// Each request is signed with HMAC-SHA256 so the receiver can verify
// authenticity. Non-2xx responses are treated as errors.
type WebhookNotifier struct {
	url    string
	secret []byte
	client *http.Client
}

var _ ports.Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier returns a WebhookNotifier that POSTs run summaries to
// url and signs them with secret. A zero or negative timeout falls back to
// defaultWebhookTimeout.
func NewWebhookNotifier(url, secret string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookNotifier{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
	}
}

type runPayload struct {
	RunID       string `json:"run_id"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at"`
	Approximate bool   `json:"approximate"`

	Matched          int `json:"matched"`
	UnmatchedChanges int `json:"unmatched_changes"`
	UnmatchedAccess  int `json:"unmatched_access"`
	HighRisk         int `json:"high_risk"`
	MediumRisk       int `json:"medium_risk"`
	LowRisk          int `json:"low_risk"`
	UnknownRisk      int `json:"unknown_risk"`
}

// RunCompleted marshals the run summary, signs the body, and POSTs it.
// Headers on every request:
//
//	Content-Type:        application/json
//	X-Saptrail-Run:      <run id>
//	X-Hub-Signature-256: sha256=<hex-encoded HMAC-SHA256>
func (n *WebhookNotifier) RunCompleted(ctx context.Context, run domain.Run) error {
	payload, err := json.Marshal(runPayload{
		RunID:       run.ID,
		StartedAt:   run.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt:  run.FinishedAt.UTC().Format(time.RFC3339Nano),
		Approximate: run.Approximate,

		Matched:          run.Stats.Matched,
		UnmatchedChanges: run.Stats.UnmatchedChanges,
		UnmatchedAccess:  run.Stats.UnmatchedAccess,
		HighRisk:         run.Stats.HighRisk,
		MediumRisk:       run.Stats.MediumRisk,
		LowRisk:          run.Stats.LowRisk,
		UnknownRisk:      run.Stats.UnknownRisk,
	})
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	sig := n.sign(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Saptrail-Run", run.ID)
	req.Header.Set("X-Hub-Signature-256", "sha256="+sig)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *WebhookNotifier) sign(payload []byte) string {
	mac := hmac.New(sha256.New, n.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
