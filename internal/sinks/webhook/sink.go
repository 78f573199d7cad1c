// Package webhook delivers processed referrals to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
	"github.com/leadflow-labs/refproc-cli/internal/core/ports/driven"
)

// DefaultRatePerSec is the outgoing request rate when none is configured.
const DefaultRatePerSec = 10

// maxErrorBody caps how much of an error response lands in the failure
// reason.
const maxErrorBody = 512

// Ensure Sink implements the interface.
var _ driven.Sink = (*Sink)(nil)

// Sink posts referral batches to a webhook URL. In idempotent mode each
// referral is PUT to <url>/<identity-key> instead, so the endpoint can
// upsert and re-runs converge.
type Sink struct {
	url        string
	idempotent bool
	limiter    *rate.Limiter
	client     *http.Client
}

// Options adjusts sink behaviour.
type Options struct {
	// Idempotent switches from batch POSTs to one PUT per identity key.
	Idempotent bool

	// RatePerSec caps outgoing requests. Zero falls back to
	// DefaultRatePerSec.
	RatePerSec float64
}

// New creates a webhook sink for the endpoint at rawURL.
func New(rawURL string, opts Options) *Sink {
	perSec := opts.RatePerSec
	if perSec <= 0 {
		perSec = DefaultRatePerSec
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}

	return &Sink{
		url:        strings.TrimRight(rawURL, "/"),
		idempotent: opts.Idempotent,
		limiter:    rate.NewLimiter(rate.Limit(perSec), burst),
		// Request deadlines come from the caller's context, which already
		// carries the configured io_timeout.
		client: &http.Client{},
	}
}

// Name returns the destination identifier.
func (s *Sink) Name() string {
	return "webhook:" + s.url
}

// Open verifies the endpoint is reachable. Endpoints commonly reject HEAD,
// so any HTTP response counts as reachable; only a transport failure is
// fatal.
func (s *Sink) Open(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSinkUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: reaching %s: %v", domain.ErrSinkUnavailable, s.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// Write delivers one batch. Rejected deliveries set WriteError on the
// affected referrals and the run continues; only a cancelled context
// surfaces as an error so the caller can apply its timeout handling.
func (s *Sink) Write(ctx context.Context, batch []*domain.Referral) error {
	if s.idempotent {
		return s.putEach(ctx, batch)
	}
	return s.postBatch(ctx, batch)
}

// Close releases idle connections.
func (s *Sink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// postBatch sends the whole batch as one JSON array.
func (s *Sink) postBatch(ctx context.Context, batch []*domain.Referral) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	payloads := make([]payload, len(batch))
	for i, r := range batch {
		payloads[i] = newPayload(r)
	}
	body, err := json.Marshal(payloads)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	if reason := s.send(ctx, http.MethodPost, s.url, body); reason != "" {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		failBatch(batch, reason)
	}
	return nil
}

// putEach sends one PUT per referral, keyed by identity, so retried runs
// overwrite instead of duplicating.
func (s *Sink) putEach(ctx context.Context, batch []*domain.Referral) error {
	for _, r := range batch {
		if err := s.wait(ctx); err != nil {
			return err
		}

		body, err := json.Marshal(newPayload(r))
		if err != nil {
			r.WriteError = fmt.Sprintf("marshal referral: %v", err)
			continue
		}

		target := s.url + "/" + url.PathEscape(r.IdentityKey)
		if reason := s.send(ctx, http.MethodPut, target, body); reason != "" {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.WriteError = reason
		}
	}
	return nil
}

// send performs one delivery and returns a failure reason, or "" on
// success.
func (s *Sink) send(ctx context.Context, method, target string, body []byte) string {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Sprintf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Sprintf("send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return strings.TrimSpace(fmt.Sprintf("webhook status %d: %s", resp.StatusCode, detail))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return ""
}

// wait blocks on the rate limiter, translating a deadline hit back into
// the context's error.
func (s *Sink) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

// failBatch marks every not-yet-failed referral in the batch.
func failBatch(batch []*domain.Referral, reason string) {
	for _, r := range batch {
		if r.WriteError == "" {
			r.WriteError = reason
		}
	}
}

// payload is the wire form of one processed referral.
type payload struct {
	IdentityKey    string            `json:"identity_key"`
	Classification string            `json:"classification"`
	Score          *float64          `json:"score,omitempty"`
	FirstSeenAt    string            `json:"first_seen_at,omitempty"`
	Fields         map[string]string `json:"fields"`
}

// newPayload flattens a referral into its wire form. Derived values win
// over raw ones, same as every other destination.
func newPayload(r *domain.Referral) payload {
	fields := make(map[string]string, len(r.Raw))
	for k, v := range r.Raw {
		fields[k] = v
	}
	for k, v := range r.Derived {
		fields[k] = v
	}

	p := payload{
		IdentityKey:    r.IdentityKey,
		Classification: r.Classification,
		FirstSeenAt:    r.FirstSeenAt,
		Fields:         fields,
	}
	if r.Scored {
		score := r.Score
		p.Score = &score
	}
	return p
}
