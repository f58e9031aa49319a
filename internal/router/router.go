// Package router implements the deterministic routing policy that maps
// task attributes to a provider selection. Pure Go, no API calls.
package router

import (
	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/riskintel-cli/internal/model"
)

// Selection identifies the routing target for a task.
type Selection string

const (
	SelectPrimary   Selection = "primary"
	SelectSecondary Selection = "secondary"
	SelectEnsemble  Selection = "ensemble"
)

// Decision is the outcome of routing one task.
type Decision struct {
	Selected Selection `json:"selected"`
	Reason   string    `json:"reason"`
}

// Config holds the routing thresholds. Both comparisons are strict:
// a task exactly at a threshold falls through to later rules.
type Config struct {
	ContextThreshold int     `json:"context_threshold"`
	ImpactThreshold  float64 `json:"impact_threshold"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ContextThreshold: 80000,
		ImpactThreshold:  0.8,
	}
}

// Router evaluates the priority-ordered routing rules. Stateless aside
// from thresholds fixed at construction; safe for concurrent use.
type Router struct {
	cfg     Config
	printer *message.Printer
}

// New creates a Router with the given thresholds.
func New(cfg Config) (*Router, error) {
	if cfg.ContextThreshold < 0 {
		return nil, eris.Errorf("router: context threshold must be non-negative, got %d", cfg.ContextThreshold)
	}
	if cfg.ImpactThreshold < 0 || cfg.ImpactThreshold > 1 {
		return nil, eris.Errorf("router: impact threshold must be in [0,1], got %g", cfg.ImpactThreshold)
	}
	return &Router{
		cfg:     cfg,
		printer: message.NewPrinter(language.English),
	}, nil
}

// Route evaluates rules in strict priority order, first match wins.
// Identical task attributes always yield an identical decision.
func (r *Router) Route(task model.Task) Decision {
	switch {
	case task.RequiresStrictJSON:
		return Decision{
			Selected: SelectPrimary,
			Reason:   "Structured JSON output required - primary provider enforces schema adherence",
		}
	case task.ContextLength > r.cfg.ContextThreshold:
		return Decision{
			Selected: SelectSecondary,
			Reason: r.printer.Sprintf("Large context (%d tokens) - secondary provider handles long-context analysis",
				task.ContextLength),
		}
	case task.MultiDocument:
		return Decision{
			Selected: SelectSecondary,
			Reason:   "Multi-document analysis - secondary provider correlates across documents",
		}
	case task.BusinessImpact > r.cfg.ImpactThreshold:
		return Decision{
			Selected: SelectEnsemble,
			Reason: r.printer.Sprintf("High business impact (%.1f%%) - ensemble validation for critical decisions",
				task.BusinessImpact*100),
		}
	default:
		return Decision{
			Selected: SelectPrimary,
			Reason:   "General task - primary provider is the cost-effective default",
		}
	}
}

// Details is the full routing explanation exposed to callers and the
// audit trail.
type Details struct {
	Selected        Selection      `json:"selected"`
	Reason          string         `json:"reason"`
	Characteristics map[string]any `json:"task_characteristics"`
	Thresholds      Config         `json:"thresholds"`
}

// Explain returns the decision together with the attribute values and
// thresholds that produced it.
func (r *Router) Explain(task model.Task) Details {
	d := r.Route(task)
	return Details{
		Selected: d.Selected,
		Reason:   d.Reason,
		Characteristics: map[string]any{
			"requires_strict_json": task.RequiresStrictJSON,
			"context_length":       task.ContextLength,
			"multi_document":       task.MultiDocument,
			"business_impact":      task.BusinessImpact,
			"task_type":            string(task.Type),
		},
		Thresholds: r.cfg,
	}
}
