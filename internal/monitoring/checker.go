package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/damsync/internal/config"
	"github.com/sells-group/damsync/internal/model"
)

// Checker watches the sync log for the sync kinds that are expected to run
// and posts alerts to the webhook. An alert is posted once per condition:
// a failure is not reposted until a newer failure shows up, and a stale
// sync is not reposted until it succeeds and goes stale again.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	kinds     []model.SyncKind
	posted    map[string]bool
	log       *zap.Logger
}

// NewChecker creates a checker for the given sync kinds. With no kinds it
// watches all of them.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig, kinds ...model.SyncKind) *Checker {
	if len(kinds) == 0 {
		kinds = AllKinds
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		kinds:     kinds,
		posted:    make(map[string]bool),
		log:       zap.L().With(zap.String("component", "monitoring.checker")),
	}
}

// Kinds returns the sync kinds the checker watches.
func (c *Checker) Kinds() []model.SyncKind {
	return c.kinds
}

// Run checks once immediately and then on every interval. It blocks until
// ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	c.log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
		zap.Any("kinds", c.kinds),
	)

	c.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check evaluates sync health once and returns the alerts it posted.
// Alerts that fail to post are tried again on the next check.
func (c *Checker) Check(ctx context.Context) []Alert {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		c.log.Error("monitoring: failed to collect sync stats", zap.Error(err))
		return nil
	}

	active := make(map[string]bool)
	var posted []Alert
	for _, alert := range c.alerter.EvaluateKinds(snap, c.kinds) {
		if c.posted[alert.Key] {
			active[alert.Key] = true
			continue
		}
		if c.alerter.SendAlerts(ctx, []Alert{alert}) == 1 {
			active[alert.Key] = true
			posted = append(posted, alert)
		}
	}
	// Cleared conditions are forgotten so a recurrence alerts again.
	c.posted = active

	if len(posted) > 0 {
		c.log.Info("monitoring: alerts posted", zap.Int("alerts", len(posted)))
	}
	return posted
}
