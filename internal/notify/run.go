package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/osmscout-go/mapimport/internal/platform/logger"
)

// RunSummary carries the fields a completion/failure email reports for
// one orchestrator run.
type RunSummary struct {
	Extract  string
	Stages   int
	Duration time.Duration
	Err      error
}

// ReportRunResult sends a completion or failure email for an import run.
// It is a no-op when c is nil, which is what NewFromEnv returns when
// notification isn't configured.
func ReportRunResult(ctx context.Context, log *logger.Logger, c Client, toEmail string, summary RunSummary) {
	if c == nil || toEmail == "" {
		return
	}
	subject := fmt.Sprintf("Import completed: %s", summary.Extract)
	body := fmt.Sprintf("extract=%s stages=%d duration=%s", summary.Extract, summary.Stages, summary.Duration)
	if summary.Err != nil {
		subject = fmt.Sprintf("Import FAILED: %s", summary.Extract)
		body = fmt.Sprintf("%s error=%s", body, summary.Err)
	}

	_, err := c.Send(ctx, SendEmailRequest{
		To:      []EmailAddress{{Email: toEmail}},
		Subject: subject,
		Text:    body,
	})
	if err != nil && log != nil {
		log.Warn("run notification send failed", "error", err)
	}
}
