package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/example/menu-scheduler/internal/report"
)

// Notifier tells operators about runs that need attention.
type Notifier interface {
	Notify(ctx context.Context, r report.Report) error
}

// Slack posts failed and partial runs to an incoming webhook.
type Slack struct {
	webhookURL string
	hc         *http.Client
}

func NewSlack(webhookURL string) *Slack {
	return &Slack{webhookURL: webhookURL, hc: &http.Client{Timeout: 5 * time.Second}}
}

func (s *Slack) Notify(ctx context.Context, r report.Report) error {
	if r.DryRun || r.Failed() == 0 {
		return nil
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.hc, Message(r)); err != nil {
		return fmt.Errorf("notify slack: %w", err)
	}
	return nil
}

// Message builds the webhook payload for a run.
func Message(r report.Report) *slack.WebhookMessage {
	color := "warning"
	if r.Status() == report.StatusFailed {
		color = "danger"
	}

	var failed []string
	for _, b := range r.Batches {
		for _, res := range b.Results {
			if res.Outcome == report.OutcomeFailed {
				failed = append(failed, fmt.Sprintf("%s: %s", b.Label, res.Line()))
			}
		}
	}

	return &slack.WebhookMessage{
		Text: fmt.Sprintf("Menu schedule %s: %s", r.Status(), r.Summary()),
		Attachments: []slack.Attachment{{
			Color: color,
			Title: fmt.Sprintf("%s at %s", r.Event, r.LocalTime),
			Text:  strings.Join(failed, "\n"),
			Fields: []slack.AttachmentField{
				{Title: "Merchant", Value: r.Merchant, Short: true},
				{Title: "Run", Value: r.RunID, Short: true},
			},
		}},
	}
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, report.Report) error { return nil }
