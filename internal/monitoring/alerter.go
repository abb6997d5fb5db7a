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

	"github.com/sells-group/damsync/internal/config"
	"github.com/sells-group/damsync/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertSyncFailure AlertType = "sync_failure"
	AlertSyncStale   AlertType = "sync_stale"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	// Key identifies the condition behind the alert. It stays the same
	// until the condition changes (a newer failure, a newer success).
	Key string `json:"-"`
}

// Alerter evaluates a MetricsSnapshot and sends alerts via webhook when a
// sync failed or has not succeeded recently.
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

// AllKinds lists every sync kind in evaluation order.
var AllKinds = []model.SyncKind{model.SyncKindCatalog, model.SyncKindMeasurement}

// Evaluate checks the snapshot for every sync kind and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	return a.EvaluateKinds(snap, AllKinds)
}

// EvaluateKinds checks the snapshot for the given sync kinds only.
func (a *Alerter) EvaluateKinds(snap *MetricsSnapshot, kinds []model.SyncKind) []Alert {
	var alerts []Alert
	now := snap.CollectedAt

	for _, kind := range kinds {
		ks := snap.Kind(kind)

		if ks.Failed > 0 {
			alerts = append(alerts, Alert{
				Type:     AlertSyncFailure,
				Severity: "high",
				Message: fmt.Sprintf(
					"%d %s sync(s) failed in last %dh",
					ks.Failed, kind, snap.LookbackHours,
				),
				Details: map[string]any{
					"kind":         string(kind),
					"failed_count": ks.Failed,
					"total_syncs":  ks.Total,
					"last_error":   ks.LastError,
				},
				Timestamp: now,
				Key:       fmt.Sprintf("%s/%s/%s", AlertSyncFailure, kind, stamp(ks.LastFailure)),
			})
		}

		if a.cfg.StaleAfterHours <= 0 {
			continue
		}
		staleAfter := time.Duration(a.cfg.StaleAfterHours) * time.Hour
		if ks.LastSuccess != nil && now.Sub(*ks.LastSuccess) <= staleAfter {
			continue
		}
		msg := fmt.Sprintf("%s sync has never succeeded", kind)
		details := map[string]any{"kind": string(kind), "stale_after_hours": a.cfg.StaleAfterHours}
		if ks.LastSuccess != nil {
			msg = fmt.Sprintf("%s sync last succeeded %s ago (threshold %dh)",
				kind, now.Sub(*ks.LastSuccess).Truncate(time.Minute), a.cfg.StaleAfterHours)
			details["last_success"] = ks.LastSuccess.UTC().Format(time.RFC3339)
		}
		alerts = append(alerts, Alert{
			Type:      AlertSyncStale,
			Severity:  "medium",
			Message:   msg,
			Details:   details,
			Timestamp: now,
			Key:       fmt.Sprintf("%s/%s/%s", AlertSyncStale, kind, stamp(ks.LastSuccess)),
		})
	}

	return alerts
}

func stamp(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
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
