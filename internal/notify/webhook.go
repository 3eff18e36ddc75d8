package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/barberfinder/internal/model"
	"github.com/sells-group/barberfinder/internal/resilience"
)

// WebhookConfig configures outbound delivery.
type WebhookConfig struct {
	URL string
	// RatePerSec caps deliveries per second. Zero means unlimited.
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
	// Attempts is the total tries per delivery. Zero uses the retry default.
	Attempts int
}

// Webhook posts notifications as JSON to a configured URL.
type Webhook struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	backoff resilience.Backoff
}

// webhookPayload is the wire shape of one delivery.
type webhookPayload struct {
	Event        string             `json:"event"`
	Notification model.Notification `json:"notification"`
	SentAt       time.Time          `json:"sent_at"`
}

// NewWebhook creates a Webhook. A zero timeout defaults to ten seconds.
func NewWebhook(cfg WebhookConfig) *Webhook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	backoff := resilience.DefaultBackoff()
	if cfg.Attempts > 0 {
		backoff.Attempts = cfg.Attempts
	}
	backoff.OnRetry = resilience.LogRetry("notify", "webhook")
	return &Webhook{
		url:     cfg.URL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		backoff: backoff,
	}
}

// Enabled reports whether a URL is configured.
func (w *Webhook) Enabled() bool {
	return w != nil && w.url != ""
}

// Send delivers each notification and returns how many succeeded.
func (w *Webhook) Send(ctx context.Context, ns []model.Notification) int {
	if !w.Enabled() || len(ns) == 0 {
		return 0
	}
	sent := 0
	for _, n := range ns {
		if err := w.Deliver(ctx, n); err != nil {
			zap.L().Error("notify: webhook delivery failed",
				zap.String("id", n.ID),
				zap.String("kind", string(n.Kind)),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

// Run delivers everything received on ch until ch closes or ctx is done.
func (w *Webhook) Run(ctx context.Context, ch <-chan model.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			w.Send(ctx, []model.Notification{n})
		}
	}
}

// Deliver posts a single notification, waiting on the rate limiter first.
// Network failures and 408/429/5xx responses are retried with backoff.
func (w *Webhook) Deliver(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(webhookPayload{
		Event:        "notification." + string(n.Kind),
		Notification: n,
		SentAt:       time.Now().UTC(),
	})
	if err != nil {
		return eris.Wrap(err, "notify: marshal webhook payload")
	}

	return resilience.Do(ctx, w.backoff, func(ctx context.Context) error {
		if err := w.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "notify: webhook rate limit")
		}
		return w.post(ctx, payload)
	})
}

func (w *Webhook) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		wrapped := eris.Wrap(err, "notify: webhook request")
		if ctx.Err() == nil && resilience.IsTransient(err) {
			return resilience.Transient(wrapped, 0)
		}
		return wrapped
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
		if resilience.TransientStatus(resp.StatusCode) {
			return resilience.Transient(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
