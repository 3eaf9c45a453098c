package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radius-labs/visibility-cli/internal/config"
)

func alertCfg() config.MonitoringConfig {
	return config.MonitoringConfig{
		FailureRateAlert:   0.20,
		SimulatedRateAlert: 0.90,
		CostAlertUSD:       500.0,
	}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(alertCfg())

	snap := &MetricsSnapshot{
		AnalysesTotal:     100,
		AnalysesPersisted: 95,
		AnalysesFailed:    5,
		FailureRate:       0.05,
		AnswersTotal:      1400,
		AnswersSimulated:  120,
		SimulatedRate:     0.086,
		TotalCostUSD:      100.0,
		LookbackHours:     24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := NewAlerter(alertCfg())

	snap := &MetricsSnapshot{
		AnalysesTotal:     20,
		AnalysesPersisted: 12,
		AnalysesFailed:    8,
		FailureRate:       0.4, // 8/20 = 40%
		TotalCostUSD:      50.0,
		LookbackHours:     24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_SimulatedRate(t *testing.T) {
	a := NewAlerter(alertCfg())

	snap := &MetricsSnapshot{
		AnalysesTotal:     10,
		AnalysesPersisted: 10,
		AnswersTotal:      100,
		AnswersSimulated:  95,
		SimulatedRate:     0.95,
		LookbackHours:     24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSimulatedRate, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "95.0%")
}

func TestAlerter_Evaluate_CostOverrun(t *testing.T) {
	cfg := alertCfg()
	cfg.CostAlertUSD = 100.0
	a := NewAlerter(cfg)

	snap := &MetricsSnapshot{
		AnalysesTotal:     50,
		AnalysesPersisted: 48,
		AnalysesFailed:    2,
		FailureRate:       0.04,
		TotalCostUSD:      250.0,
		LookbackHours:     24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCostOverrun, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "$250.00")
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	cfg := alertCfg()
	cfg.CostAlertUSD = 100.0
	a := NewAlerter(cfg)

	snap := &MetricsSnapshot{
		AnalysesTotal:     20,
		AnalysesPersisted: 10,
		AnalysesFailed:    10,
		FailureRate:       0.5,
		AnswersTotal:      150,
		AnswersSimulated:  150,
		SimulatedRate:     1.0,
		TotalCostUSD:      300.0,
		LookbackHours:     24,
	}

	alerts := a.Evaluate(snap)
	assert.Len(t, alerts, 3)

	types := make(map[AlertType]bool)
	for _, alert := range alerts {
		types[alert.Type] = true
	}
	assert.True(t, types[AlertFailureRate])
	assert.True(t, types[AlertSimulatedRate])
	assert.True(t, types[AlertCostOverrun])
}

func TestAlerter_Evaluate_MinimumSamplesRequired(t *testing.T) {
	a := NewAlerter(alertCfg())

	// 3 finished runs and 10 answers are both below the alert minimums, so
	// neither rate may fire no matter how bad it looks.
	snap := &MetricsSnapshot{
		AnalysesTotal:     3,
		AnalysesPersisted: 1,
		AnalysesFailed:    2,
		FailureRate:       0.666,
		AnswersTotal:      10,
		AnswersSimulated:  10,
		SimulatedRate:     1.0,
		LookbackHours:     24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertFailureRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertSimulatedRate, Severity: "high", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "",
	})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertFailureRate, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "http://example.com",
	})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertFailureRate, Message: "test"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 0, sent)
}

func TestAlerter_Evaluate_ZeroCostThreshold(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		CostAlertUSD: 0, // disabled
	})

	snap := &MetricsSnapshot{
		TotalCostUSD:  999.0,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}
