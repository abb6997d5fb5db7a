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

	"github.com/sells-group/damsync/internal/config"
	"github.com/sells-group/damsync/internal/model"
)

func healthySnapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		Catalog:       KindStats{Total: 1, Complete: 1, LastSuccess: ts(5)},
		Measurement:   KindStats{Total: 1, Complete: 1, LastSuccess: ts(5)},
		LookbackHours: 24,
		CollectedAt:   collectNow,
	}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{StaleAfterHours: 36})

	alerts := a.Evaluate(healthySnapshot())
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_SyncFailure(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{StaleAfterHours: 36})

	snap := healthySnapshot()
	snap.Measurement.Total = 5
	snap.Measurement.Failed = 2
	snap.Measurement.LastError = "damsync: unknown dam"

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSyncFailure, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "2 measurement sync(s) failed")
	assert.Equal(t, "damsync: unknown dam", alerts[0].Details["last_error"])
	assert.Equal(t, collectNow, alerts[0].Timestamp)
}

func TestAlerter_Evaluate_Stale(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{StaleAfterHours: 36})

	snap := healthySnapshot()
	snap.Catalog.LastSuccess = ts(40)

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSyncStale, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "catalog sync last succeeded 40h0m0s ago")
}

func TestAlerter_Evaluate_NeverSucceeded(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{StaleAfterHours: 36})

	snap := healthySnapshot()
	snap.Measurement.LastSuccess = nil

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSyncStale, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "measurement sync has never succeeded")
}

func TestAlerter_Evaluate_StaleDisabled(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{StaleAfterHours: 0})

	snap := healthySnapshot()
	snap.Catalog.LastSuccess = nil
	snap.Measurement.LastSuccess = nil

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{StaleAfterHours: 36})

	snap := healthySnapshot()
	snap.Catalog.Failed = 1
	snap.Catalog.LastSuccess = nil
	snap.Measurement.Failed = 3

	alerts := a.Evaluate(snap)
	assert.Len(t, alerts, 3)

	types := make(map[AlertType]int)
	for _, a := range alerts {
		types[a.Type]++
	}
	assert.Equal(t, 2, types[AlertSyncFailure])
	assert.Equal(t, 1, types[AlertSyncStale])
}

func TestAlerter_EvaluateKinds(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{StaleAfterHours: 36})

	snap := healthySnapshot()
	snap.Catalog.Failed = 1
	snap.Catalog.LastFailure = ts(2)
	snap.Measurement.LastSuccess = nil

	alerts := a.EvaluateKinds(snap, []model.SyncKind{model.SyncKindMeasurement})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSyncStale, alerts[0].Type)
	assert.Equal(t, "sync_stale/measurement/never", alerts[0].Key)

	alerts = a.EvaluateKinds(snap, []model.SyncKind{model.SyncKindCatalog})
	require.Len(t, alerts, 1)
	assert.Equal(t, "sync_failure/catalog/2024-03-02T10:00:00Z", alerts[0].Key)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: srv.URL,
	})

	alerts := []Alert{
		{Type: AlertSyncFailure, Severity: "high", Message: "test alert 1"},
		{Type: AlertSyncStale, Severity: "medium", Message: "test alert 2"},
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
		{Type: AlertSyncFailure, Message: "test"},
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
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: srv.URL,
	})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertSyncFailure, Message: "test"}})
	assert.Equal(t, 0, sent)
}
