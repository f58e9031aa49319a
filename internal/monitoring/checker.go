package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/riskintel-cli/internal/config"
)

// Checker periodically aggregates run history and pushes any triggered
// escalation or spend alerts to the configured webhook. It runs for the
// lifetime of serve mode.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run evaluates alerts once immediately and then on every tick until
// ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("alert checker running",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
		zap.Float64("escalation_rate_threshold", c.cfg.EscalationRateThreshold),
		zap.Float64("cost_threshold_usd", c.cfg.CostThresholdUSD),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.evaluate(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.evaluate(ctx, log)
		}
	}
}

func (c *Checker) evaluate(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("run metrics collection failed", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("no alerts triggered",
			zap.Int("runs", snap.RunsTotal),
			zap.Float64("escalation_rate", snap.EscalationRate),
			zap.Float64("spend_usd", snap.TotalCostUSD),
		)
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("alerts triggered",
		zap.Int("triggered", len(alerts)),
		zap.Int("delivered", sent),
		zap.Float64("escalation_rate", snap.EscalationRate),
		zap.Float64("spend_usd", snap.TotalCostUSD),
	)
}
