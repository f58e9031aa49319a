// Package ensemble runs a task through two providers in parallel and
// reconciles their assessments into one decision. Close scores produce a
// consensus, moderate spread is confidence-weighted, and large spread
// escalates to human review.
package ensemble

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/riskintel-cli/internal/gateway"
	"github.com/sells-group/riskintel-cli/internal/model"
)

// Config holds the deviation bands for decision synthesis.
type Config struct {
	// AgreeThreshold is the deviation at or under which the two
	// assessments count as agreeing.
	AgreeThreshold float64
	// DeviationThreshold is the deviation above which the run escalates.
	DeviationThreshold float64
}

// DefaultConfig returns the standard bands.
func DefaultConfig() Config {
	return Config{AgreeThreshold: 5, DeviationThreshold: 15}
}

// Engine fans a request out to a primary and secondary provider and
// synthesizes the pair of results.
type Engine struct {
	primary   gateway.Provider
	secondary gateway.Provider
	cfg       Config
	metrics   *Metrics
}

// Outcome is everything one ensemble run produced.
type Outcome struct {
	Primary             model.ProviderResult
	Secondary           model.ProviderResult
	PrimaryAssessment   model.Assessment
	SecondaryAssessment model.Assessment
	Comparison          model.Comparison
	Decision            model.EnsembleDecision
	TotalCost           float64
	Latency             float64
}

// New builds an engine over two providers.
func New(primary, secondary gateway.Provider, cfg Config) (*Engine, error) {
	if primary == nil || secondary == nil {
		return nil, eris.New("ensemble: both providers are required")
	}
	if cfg.AgreeThreshold <= 0 || cfg.DeviationThreshold <= cfg.AgreeThreshold {
		return nil, eris.Errorf("ensemble: invalid thresholds agree=%.1f deviation=%.1f",
			cfg.AgreeThreshold, cfg.DeviationThreshold)
	}
	return &Engine{primary: primary, secondary: secondary, cfg: cfg, metrics: NewMetrics()}, nil
}

// Metrics returns the engine's running counters.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Run invokes both providers concurrently and reconciles the results.
// A failed provider contributes a neutral assessment rather than aborting
// the run; only context cancellation returns an error.
func (e *Engine) Run(ctx context.Context, req gateway.Request) (*Outcome, error) {
	var primaryRes, secondaryRes model.ProviderResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		primaryRes = e.primary.Invoke(gctx, req)
		return nil
	})
	g.Go(func() error {
		secondaryRes = e.secondary.Invoke(gctx, req)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "ensemble: run canceled")
	}

	out := &Outcome{
		Primary:             primaryRes,
		Secondary:           secondaryRes,
		PrimaryAssessment:   e.assess(primaryRes),
		SecondaryAssessment: e.assess(secondaryRes),
		TotalCost:           primaryRes.Cost + secondaryRes.Cost,
		Latency:             max(primaryRes.Latency, secondaryRes.Latency),
	}
	out.Comparison = e.compare(out.PrimaryAssessment, out.SecondaryAssessment)
	out.Decision = e.decide(out.Comparison)
	e.metrics.record(out)

	zap.L().Info("ensemble run complete",
		zap.String("decision_type", string(out.Decision.Type)),
		zap.Float64("final_score", out.Decision.FinalScore),
		zap.Float64("deviation", out.Comparison.ScoreDeviation),
		zap.Float64("total_cost", out.TotalCost))
	return out, nil
}

// assess decodes a provider result, degrading to a neutral stance when
// the call failed or returned unparseable content.
func (e *Engine) assess(res model.ProviderResult) model.Assessment {
	if !res.Success {
		zap.L().Warn("provider failed, using neutral assessment",
			zap.String("provider", res.Provider), zap.String("error", res.Error))
		return model.NeutralAssessment(fmt.Sprintf("provider %s failed: %s", res.Provider, res.Error))
	}
	a, err := gateway.DecodeAssessment(res.Content)
	if err != nil {
		zap.L().Warn("assessment parse failed, using neutral assessment",
			zap.String("provider", res.Provider), zap.Error(err))
		return model.NeutralAssessment(fmt.Sprintf("provider %s returned unparseable content", res.Provider))
	}
	return a
}

func (e *Engine) compare(p, s model.Assessment) model.Comparison {
	dev := p.Score - s.Score
	if dev < 0 {
		dev = -dev
	}
	delta := p.Confidence - s.Confidence
	if delta < 0 {
		delta = -delta
	}

	c := model.Comparison{
		PrimaryScore:        p.Score,
		SecondaryScore:      s.Score,
		ScoreDeviation:      dev,
		PrimaryConfidence:   p.Confidence,
		SecondaryConfidence: s.Confidence,
		ConfidenceDelta:     delta,
		Agreement:           dev <= e.cfg.AgreeThreshold,
		HighDeviation:       dev > e.cfg.DeviationThreshold,
		AvgScore:            (p.Score + s.Score) / 2,
		AvgConfidence:       (p.Confidence + s.Confidence) / 2,
		AgreeThreshold:      e.cfg.AgreeThreshold,
		DeviationThreshold:  e.cfg.DeviationThreshold,
	}

	totalConf := p.Confidence + s.Confidence
	if totalConf > 0 {
		c.WeightedScore = (p.Score*p.Confidence + s.Score*s.Confidence) / totalConf
	} else {
		c.WeightedScore = c.AvgScore
	}
	return c
}

func (e *Engine) decide(c model.Comparison) model.EnsembleDecision {
	switch {
	case c.Agreement:
		// Within the agreement band the higher-confidence assessment
		// wins outright; the primary breaks ties.
		score := c.PrimaryScore
		conf := c.PrimaryConfidence
		if c.SecondaryConfidence > c.PrimaryConfidence {
			score = c.SecondaryScore
			conf = c.SecondaryConfidence
		}
		return model.EnsembleDecision{
			Type:       model.DecisionConsensus,
			FinalScore: score,
			RiskLevel:  model.RiskLevelFor(score),
			Confidence: conf,
			Reasoning: fmt.Sprintf("Models agree (scores %.1f and %.1f, deviation %.1f within %.1f); adopting the higher-confidence assessment",
				c.PrimaryScore, c.SecondaryScore, c.ScoreDeviation, c.AgreeThreshold),
			ModelAgreement: true,
		}
	case c.HighDeviation:
		conf := min(c.PrimaryConfidence, c.SecondaryConfidence)
		return model.EnsembleDecision{
			Type:       model.DecisionEscalate,
			FinalScore: c.AvgScore,
			RiskLevel:  model.RiskLevelFor(c.AvgScore),
			Confidence: conf,
			Reasoning: fmt.Sprintf("Models diverge sharply (scores %.1f vs %.1f, deviation %.1f exceeds %.1f); provisional average pending human review",
				c.PrimaryScore, c.SecondaryScore, c.ScoreDeviation, c.DeviationThreshold),
			RequiresHumanReview: true,
		}
	default:
		return model.EnsembleDecision{
			Type:       model.DecisionWeightedAverage,
			FinalScore: c.WeightedScore,
			RiskLevel:  model.RiskLevelFor(c.WeightedScore),
			Confidence: c.AvgConfidence,
			Reasoning: fmt.Sprintf("Moderate disagreement (scores %.1f and %.1f, deviation %.1f); confidence-weighted blend of both scores",
				c.PrimaryScore, c.SecondaryScore, c.ScoreDeviation),
		}
	}
}
