package notify

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/abdul-hamid-achik/restpipe/packages/http"
)

// WebhookNotifier posts the run summary as a JSON document.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	headers map[string]string
	retry   http.RetryPolicy
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithWebhookClient sends through client instead of a private one.
func WithWebhookClient(client *http.Client) WebhookOption {
	return func(n *WebhookNotifier) {
		n.client = client
	}
}

// WithWebhookHeader adds a header to every delivery, e.g. a shared secret.
func WithWebhookHeader(key, value string) WebhookOption {
	return func(n *WebhookNotifier) {
		n.headers[key] = value
	}
}

// WithWebhookRetry sets how transient delivery failures are retried.
func WithWebhookRetry(p http.RetryPolicy) WebhookOption {
	return func(n *WebhookNotifier) {
		n.retry = p
	}
}

func NewWebhookNotifier(webhookURL string, opts ...WebhookOption) *WebhookNotifier {
	n := &WebhookNotifier{
		url:     webhookURL,
		headers: make(map[string]string),
		retry:   http.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.client == nil {
		n.client = http.NewClient("", http.WithTimeout(10*time.Second))
	}
	n.retry.RetryIf = http.IsTransient
	return n
}

// Name is the webhook host, so joined errors say which endpoint failed.
func (n *WebhookNotifier) Name() string {
	if u, err := url.Parse(n.url); err == nil && u.Host != "" {
		return u.Host
	}
	return "webhook"
}

type webhookPayload struct {
	*RunSummary
	Event      string `json:"event"`
	DurationMs int64  `json:"durationMs"`
	P95Ms      int64  `json:"p95Ms"`
	SentAt     string `json:"sentAt"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	event := "load.passed"
	if !summary.Passed {
		event = "load.failed"
	}
	body, err := json.Marshal(webhookPayload{
		RunSummary: summary,
		Event:      event,
		DurationMs: summary.Duration.Milliseconds(),
		P95Ms:      summary.P95.Milliseconds(),
		SentAt:     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	_, err = http.WithRetry(ctx, n.retry, func(ctx context.Context) (*http.Envelope[string], error) {
		return http.Post[string](ctx, n.client, n.url, json.RawMessage(body), http.WithHeaders(n.headers))
	})
	return err
}
