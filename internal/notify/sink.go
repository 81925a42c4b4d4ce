// Package notify implements the user-visible notification sinks: structured
// logs for operators and an optional webhook for IDE front-ends.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/forgeide/pkgsync/internal/host"
	"github.com/forgeide/pkgsync/internal/infrastructure/logging"
)

// LogSink reports notifications through the structured logger.
type LogSink struct {
	log *logging.Logger
}

// NewLogSink creates a logger-backed sink.
func NewLogSink(log *logging.Logger) *LogSink {
	return &LogSink{log: log}
}

// Report implements host.NotificationSink.
func (s *LogSink) Report(_ context.Context, message string, severity host.Severity) {
	switch severity {
	case host.SeverityError:
		s.log.Error(message)
	case host.SeverityWarning:
		s.log.Warn(message)
	default:
		s.log.Info(message)
	}
}

// WebhookSink posts notifications as JSON to a configured endpoint, with
// retries. Delivery failures are logged and otherwise swallowed; a broken
// webhook must not take the engine down with it.
type WebhookSink struct {
	url    string
	client *retryablehttp.Client
	log    *logging.Logger
}

type webhookPayload struct {
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// NewWebhookSink creates a webhook sink posting to url.
func NewWebhookSink(url string, log *logging.Logger) *WebhookSink {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil

	return &WebhookSink{url: url, client: client, log: log}
}

// Report implements host.NotificationSink.
func (s *WebhookSink) Report(ctx context.Context, message string, severity host.Severity) {
	payload, err := json.Marshal(webhookPayload{
		Message:   message,
		Severity:  string(severity),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		s.log.Error("failed to encode notification", zap.Error(err))
		return
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", s.url, bytes.NewReader(payload))
	if err != nil {
		s.log.Error("failed to build notification request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("notification webhook delivery failed",
			zap.String("url", s.url),
			zap.Error(err))
		return
	}
	resp.Body.Close()
}

// Multi fans one notification out to several sinks.
type Multi []host.NotificationSink

// Report implements host.NotificationSink.
func (m Multi) Report(ctx context.Context, message string, severity host.Severity) {
	for _, sink := range m {
		sink.Report(ctx, message, severity)
	}
}
