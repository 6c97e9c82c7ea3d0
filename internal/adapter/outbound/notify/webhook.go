// Package notify implements notify.Notifier by delivering blocked-action
// events over HTTP, auto-detecting Slack and Discord incoming webhook URLs
// and formatting the payload to match each platform's expected shape.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sentinelguard/actiongate/internal/domain/notify"
	"github.com/sentinelguard/actiongate/pkg/wire"
)

const (
	slackHostMarker    = "hooks.slack.com"
	discordPathMarker  = "discord.com/api/webhooks"
	defaultTimeout     = 5 * time.Second
	defaultMaxAttempts = 3
)

// WebhookNotifier delivers BlockedEvent notifications over HTTP with
// bounded exponential-backoff retry. A single instance is safe to share
// across tenants; endpoint formatting is decided per call from the URL.
type WebhookNotifier struct {
	client      *http.Client
	maxAttempts int
	logger      *slog.Logger
}

// Option configures a WebhookNotifier.
type Option func(*WebhookNotifier)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(n *WebhookNotifier) { n.client = client }
}

// WithTimeout overrides the default per-attempt request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(n *WebhookNotifier) {
		if timeout > 0 {
			n.client.Timeout = timeout
		}
	}
}

// WithMaxAttempts overrides the default retry budget.
func WithMaxAttempts(attempts int) Option {
	return func(n *WebhookNotifier) {
		if attempts > 0 {
			n.maxAttempts = attempts
		}
	}
}

// NewWebhookNotifier builds a WebhookNotifier. logger may be nil, in which
// case delivery outcomes are not logged.
func NewWebhookNotifier(logger *slog.Logger, opts ...Option) *WebhookNotifier {
	n := &WebhookNotifier{
		client: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxAttempts: defaultMaxAttempts,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify posts event to endpoint, formatting for Slack or Discord when the
// URL matches one of their incoming-webhook shapes and falling back to a
// raw JSON POST of event otherwise. It retries transient failures with
// exponential backoff (1s, 2s, ...) up to maxAttempts, and never blocks the
// caller beyond that bound.
func (n *WebhookNotifier) Notify(event notify.BlockedEvent, endpoint string) error {
	payload := buildPayload(event, endpoint)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < n.maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff(attempt))
		}

		lastErr = n.deliver(endpoint, body)
		if lastErr == nil {
			n.logf(slog.LevelInfo, "webhook delivered", event, attempt+1, nil)
			return nil
		}
		n.logf(slog.LevelWarn, "webhook attempt failed", event, attempt+1, lastErr)
	}

	n.logf(slog.LevelError, "webhook failed after all retries", event, n.maxAttempts, lastErr)
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", n.maxAttempts, lastErr)
}

func (n *WebhookNotifier) deliver(endpoint string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *WebhookNotifier) logf(level slog.Level, msg string, event notify.BlockedEvent, attempt int, err error) {
	if n.logger == nil {
		return
	}
	attrs := []any{
		slog.String("action_id", event.ActionID),
		slog.String("tenant_id", event.TenantID),
		slog.Int("attempt", attempt),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	n.logger.Log(context.Background(), level, msg, attrs...)
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

func buildPayload(event notify.BlockedEvent, endpoint string) any {
	switch {
	case strings.Contains(endpoint, slackHostMarker):
		return formatSlack(event)
	case strings.Contains(endpoint, discordPathMarker):
		return formatDiscord(event)
	default:
		return wire.FromBlockedEvent(event)
	}
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

func formatSlack(event notify.BlockedEvent) map[string]any {
	timestamp := event.Timestamp.UTC().Format(time.RFC3339)
	return map[string]any{
		"text": ":no_entry: Action Blocked",
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]any{
					"type":  "plain_text",
					"text":  ":no_entry: Action Blocked",
					"emoji": true,
				},
			},
			{
				"type": "section",
				"fields": []map[string]any{
					{"type": "mrkdwn", "text": "*Agent:*\n" + event.PrincipalName},
					{"type": "mrkdwn", "text": "*Action:*\n" + event.ActionType},
					{"type": "mrkdwn", "text": "*Tenant:*\n" + event.TenantID},
					{"type": "mrkdwn", "text": "*Action ID:*\n`" + truncateID(event.ActionID) + "`"},
				},
			},
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": "*Reason:*\n" + event.Reason,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{"type": "mrkdwn", "text": "Blocked at " + timestamp},
				},
			},
		},
	}
}

func formatDiscord(event notify.BlockedEvent) map[string]any {
	const red = 15158332
	return map[string]any{
		"embeds": []map[string]any{
			{
				"title": ":no_entry: Action Blocked",
				"color": red,
				"fields": []map[string]any{
					{"name": "Agent", "value": event.PrincipalName, "inline": true},
					{"name": "Action", "value": event.ActionType, "inline": true},
					{"name": "Tenant", "value": event.TenantID, "inline": true},
					{"name": "Reason", "value": event.Reason, "inline": false},
				},
				"footer": map[string]any{
					"text": "Action ID: " + truncateID(event.ActionID),
				},
				"timestamp": event.Timestamp.UTC().Format(time.RFC3339),
			},
		},
	}
}

var _ notify.Notifier = (*WebhookNotifier)(nil)
