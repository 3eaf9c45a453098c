package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailureRate   AlertType = "analysis_failure_rate"
	AlertSimulatedRate AlertType = "simulated_answer_rate"
	AlertCostOverrun   AlertType = "cost_overrun"
)

// Minimum sample sizes before a rate alert may fire; a near-empty window
// would otherwise page on a single bad run.
const (
	minFinishedRuns = 5
	minAnswerSample = 20
)

// Alert represents a single threshold breach to be delivered.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.AnalysesPersisted + snap.AnalysesFailed
	if finished >= minFinishedRuns && snap.FailureRate > a.cfg.FailureRateAlert {
		alerts = append(alerts, Alert{
			Type:     AlertFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Analysis failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.FailureRate*100, a.cfg.FailureRateAlert*100,
				snap.AnalysesFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.FailureRate,
				"threshold":    a.cfg.FailureRateAlert,
				"failed":       snap.AnalysesFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if snap.AnswersTotal >= minAnswerSample && snap.SimulatedRate > a.cfg.SimulatedRateAlert {
		alerts = append(alerts, Alert{
			Type:     AlertSimulatedRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Simulated answer rate %.1f%% exceeds threshold %.1f%% (%d of %d answers in last %dh); live platform coverage is gone",
				snap.SimulatedRate*100, a.cfg.SimulatedRateAlert*100,
				snap.AnswersSimulated, snap.AnswersTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"simulated_rate": snap.SimulatedRate,
				"threshold":      a.cfg.SimulatedRateAlert,
				"simulated":      snap.AnswersSimulated,
				"answers":        snap.AnswersTotal,
			},
			Timestamp: now,
		})
	}

	if a.cfg.CostAlertUSD > 0 && snap.TotalCostUSD > a.cfg.CostAlertUSD {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: "high",
			Message: fmt.Sprintf(
				"API cost $%.2f exceeds threshold $%.2f in last %dh",
				snap.TotalCostUSD, a.cfg.CostAlertUSD, snap.LookbackHours,
			),
			Details: map[string]any{
				"cost_usd":       snap.TotalCostUSD,
				"threshold_usd":  a.cfg.CostAlertUSD,
				"analyses_total": snap.AnalysesTotal,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
