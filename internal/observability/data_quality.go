package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/osmscout-go/mapimport/internal/platform/logger"
)

// dqAlertState rate-limits the webhook so a stage that skips thousands of
// malformed records in a row doesn't fire thousands of alerts.
type dqAlertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var dqAlerts dqAlertState

// ReportStageIssues records per-stage record-validation issues (malformed
// tags, dropped rings, unresolved node references) by adding their total to
// the stage's mapimport_stage_errors_total counter (issue names are not
// labels) and, if configured, posts a
// rate-limited summary to an ops webhook. Stages call this instead of
// silently dropping records so an operator can see the drop rate per run.
func ReportStageIssues(ctx context.Context, log *logger.Logger, stage string, issues map[string]int, sampleErrors []string, meta map[string]any) {
	if len(issues) == 0 {
		return
	}
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "unknown"
	}
	if meta == nil {
		meta = map[string]any{}
	}

	for issue, count := range issues {
		incDataQuality(stage, issue, count)
	}

	if log != nil {
		log.Warn("stage record issues detected",
			"stage", stage,
			"issues", issues,
			"sample_errors", sampleErrors,
			"meta", meta,
		)
	}
	sendDataQualityAlert(stage, issues, sampleErrors, meta, log)
}

func incDataQuality(stage, issue string, count int) {
	m := Current()
	if m == nil {
		return
	}
	m.stageErrors.Add(float64(count), stage)
}

func dataQualityAlertsEnabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("DATA_QUALITY_ALERTS_ENABLED")))
	if v == "" {
		return false
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func dataQualityAlertWebhook() string {
	return strings.TrimSpace(os.Getenv("DATA_QUALITY_ALERT_WEBHOOK_URL"))
}

func dataQualityAlertMinInterval() time.Duration {
	raw := strings.TrimSpace(os.Getenv("DATA_QUALITY_ALERT_MIN_INTERVAL_SECONDS"))
	if raw == "" {
		return 5 * time.Minute
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(seconds) * time.Second
}

func sendDataQualityAlert(stage string, issues map[string]int, sampleErrors []string, meta map[string]any, log *logger.Logger) {
	if !dataQualityAlertsEnabled() {
		return
	}
	webhook := dataQualityAlertWebhook()
	if webhook == "" {
		return
	}
	dqAlerts.mu.Lock()
	if dqAlerts.last == nil {
		dqAlerts.last = map[string]time.Time{}
	}
	last := dqAlerts.last[stage]
	minInterval := dataQualityAlertMinInterval()
	if !last.IsZero() && time.Since(last) < minInterval {
		dqAlerts.mu.Unlock()
		return
	}
	dqAlerts.last[stage] = time.Now()
	dqAlerts.mu.Unlock()

	payload := map[string]any{
		"title":         "Import stage data quality issue",
		"stage":         stage,
		"issues":        issues,
		"sample_errors": sampleErrors,
		"meta":          meta,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("data quality alert request build failed", "error", err, "stage", stage)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("data quality alert post failed", "error", err, "stage", stage)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("data quality alert sent", "stage", stage, "status", resp.StatusCode)
	}
}
