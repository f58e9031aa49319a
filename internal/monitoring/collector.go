// Package monitoring gathers run statistics from the store and raises
// webhook alerts when escalation rates or spend breach thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/riskintel-cli/internal/model"
	"github.com/sells-group/riskintel-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Run metrics within the lookback window.
	RunsTotal     int `json:"runs_total"`
	RunsPrimary   int `json:"runs_primary"`
	RunsSecondary int `json:"runs_secondary"`
	RunsEnsemble  int `json:"runs_ensemble"`

	// Ensemble outcomes.
	Consensus       int     `json:"consensus"`
	WeightedAverage int     `json:"weighted_average"`
	Escalations     int     `json:"escalations"`
	AgreementRate   float64 `json:"agreement_rate"`
	EscalationRate  float64 `json:"escalation_rate"`

	// Spend and latency.
	TotalCostUSD float64 `json:"total_cost_usd"`
	AvgLatency   float64 `json:"avg_latency"`

	// Risk distribution of ensemble decisions.
	RiskLevels map[string]int `json:"risk_levels"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the run store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		RiskLevels:    map[string]int{},
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		Since: cutoff,
		Limit: 10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var totalLatency float64
	for _, r := range runs {
		switch r.Selected {
		case "primary":
			snap.RunsPrimary++
		case "secondary":
			snap.RunsSecondary++
		case "ensemble":
			snap.RunsEnsemble++
		}

		snap.TotalCostUSD += r.TotalCost
		totalLatency += r.Latency

		if r.Decision == nil {
			continue
		}
		switch r.Decision.Type {
		case model.DecisionConsensus:
			snap.Consensus++
		case model.DecisionWeightedAverage:
			snap.WeightedAverage++
		case model.DecisionEscalate:
			snap.Escalations++
		}
		snap.RiskLevels[string(r.Decision.RiskLevel)]++
	}

	if snap.RunsTotal > 0 {
		snap.AvgLatency = totalLatency / float64(snap.RunsTotal)
	}
	if snap.RunsEnsemble > 0 {
		snap.AgreementRate = float64(snap.Consensus) / float64(snap.RunsEnsemble)
		snap.EscalationRate = float64(snap.Escalations) / float64(snap.RunsEnsemble)
	}
	return snap, nil
}
