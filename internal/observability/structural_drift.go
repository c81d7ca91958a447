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

// StructuralDriftAlertMetric names one distribution statistic (e.g. a
// type's share of distribution.dat's node/way/area counts) compared
// against a baseline run, matching distribution.dat
// output. A sudden drop or spike usually means a corrupted or
// unexpectedly filtered planet extract rather than real map change.
type StructuralDriftAlertMetric struct {
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Value     float64        `json:"value"`
	Threshold float64        `json:"threshold"`
	Meta      map[string]any `json:"meta,omitempty"`
}

type driftAlertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var driftAlerts driftAlertState

// ReportStructuralDrift posts a rate-limited alert when one or more
// distribution statistics deviate from their expected baseline by more
// than their configured threshold. Import stages that track per-type
// counts (preprocess's distribution.dat writer) are the intended caller.
func ReportStructuralDrift(ctx context.Context, log *logger.Logger, metrics []StructuralDriftAlertMetric, meta map[string]any) {
	if len(metrics) == 0 {
		return
	}
	if !structuralDriftAlertsEnabled() {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}

	webhook := structuralDriftAlertWebhook()
	if webhook == "" {
		return
	}
	key := "structural_drift"
	driftAlerts.mu.Lock()
	if driftAlerts.last == nil {
		driftAlerts.last = map[string]time.Time{}
	}
	last := driftAlerts.last[key]
	minInterval := structuralDriftAlertMinInterval()
	if !last.IsZero() && time.Since(last) < minInterval {
		driftAlerts.mu.Unlock()
		return
	}
	driftAlerts.last[key] = time.Now()
	driftAlerts.mu.Unlock()

	payload := map[string]any{
		"title":     "Import structural drift detected",
		"metrics":   metrics,
		"meta":      meta,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("structural drift alert request build failed", "error", err)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("structural drift alert post failed", "error", err)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("structural drift alert sent", "status", resp.StatusCode)
	}
}

// CompareDistribution diffs a run's per-type counts against a baseline
// and returns one StructuralDriftAlertMetric per type whose relative
// change exceeds tolerance.
func CompareDistribution(current, baseline map[string]uint64, tolerance float64) []StructuralDriftAlertMetric {
	if tolerance <= 0 {
		tolerance = 0.5
	}
	var out []StructuralDriftAlertMetric
	for typeName, base := range baseline {
		if base == 0 {
			continue
		}
		cur := current[typeName]
		ratio := float64(cur) / float64(base)
		deviation := ratio - 1
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation > tolerance {
			out = append(out, StructuralDriftAlertMetric{
				Name:      typeName,
				Status:    "drifted",
				Value:     ratio,
				Threshold: tolerance,
			})
		}
	}
	return out
}

func structuralDriftAlertsEnabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("STRUCTURAL_DRIFT_ALERTS_ENABLED")))
	if v == "" {
		return false
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func structuralDriftAlertWebhook() string {
	return strings.TrimSpace(os.Getenv("STRUCTURAL_DRIFT_ALERT_WEBHOOK_URL"))
}

func structuralDriftAlertMinInterval() time.Duration {
	raw := strings.TrimSpace(os.Getenv("STRUCTURAL_DRIFT_ALERT_MIN_INTERVAL_SECONDS"))
	if raw == "" {
		return 10 * time.Minute
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(seconds) * time.Second
}
