package notify

import (
	"context"
	"time"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/gitshield/internal/config"
	"github.com/maxbolgarin/gitshield/internal/model"
	"github.com/maxbolgarin/logze/v2"
)

const webhookRetryBackoff = 500 * time.Millisecond

// severityColors maps tiers to chat attachment colors.
var severityColors = map[model.Severity]string{
	model.SeveritySafe:     "good",
	model.SeverityMedium:   "warning",
	model.SeverityHigh:     "danger",
	model.SeverityCritical: "#FF0000",
}

// WebhookSink posts alerts to a chat webhook (Slack-compatible payload).
// Delivery is best-effort: one retry with a short backoff, then the failure
// degrades to "logged but undelivered".
type WebhookSink struct {
	cfg config.WebhookConfig
	cli *cliex.HTTP
	log logze.Logger
}

// NewWebhookSink creates the chat webhook sink.
func NewWebhookSink(cfg config.WebhookConfig) (*WebhookSink, error) {
	log := logze.With("module", "notify", "sink", "chat_webhook")
	cli, err := cliex.NewWithConfig(cliex.Config{
		RequestTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, errm.Wrap(err, "create webhook client")
	}
	return &WebhookSink{
		cfg: cfg,
		cli: cli,
		log: log,
	}, nil
}

func (s *WebhookSink) Name() string { return "chat_webhook" }

type webhookPayload struct {
	Channel     string              `json:"channel,omitempty"`
	Username    string              `json:"username"`
	Attachments []webhookAttachment `json:"attachments"`
}

type webhookAttachment struct {
	Color  string         `json:"color"`
	Title  string         `json:"title"`
	Text   string         `json:"text"`
	Fields []webhookField `json:"fields"`
	Ts     int64          `json:"ts"`
}

type webhookField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Send posts the alert, retrying once on failure.
func (s *WebhookSink) Send(ctx context.Context, alert model.AlertRecord) error {
	color, ok := severityColors[alert.Severity]
	if !ok {
		color = "warning"
	}
	payload := webhookPayload{
		Channel:  s.cfg.Channel,
		Username: "gitshield",
		Attachments: []webhookAttachment{{
			Color: color,
			Title: "Security Alert",
			Text:  alert.Message,
			Fields: []webhookField{
				{Title: "Severity", Value: string(alert.Severity), Short: true},
				{Title: "Repository", Value: alert.Repository, Short: true},
				{Title: "Commit", Value: alert.CommitID, Short: true},
			},
			Ts: alert.CreatedAt.Unix(),
		}},
	}

	_, err := s.cli.Post(ctx, s.cfg.URL, payload, nil)
	if err == nil {
		return nil
	}

	select {
	case <-time.After(webhookRetryBackoff):
	case <-ctx.Done():
		return errm.Wrap(ctx.Err(), "webhook send cancelled")
	}

	if _, err = s.cli.Post(ctx, s.cfg.URL, payload, nil); err != nil {
		return errm.Wrap(err, "webhook post failed after retry")
	}
	return nil
}
