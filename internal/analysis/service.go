// Package analysis orchestrates a task end to end: route it, render its
// prompt, invoke the selected provider path, audit every step, and
// persist the run.
package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/riskintel-cli/internal/audit"
	"github.com/sells-group/riskintel-cli/internal/ensemble"
	"github.com/sells-group/riskintel-cli/internal/gateway"
	"github.com/sells-group/riskintel-cli/internal/model"
	"github.com/sells-group/riskintel-cli/internal/prompt"
	"github.com/sells-group/riskintel-cli/internal/router"
	"github.com/sells-group/riskintel-cli/internal/store"
)

// Service wires the routing policy, providers, ensemble engine, prompt
// library, audit trail, and run store into one analysis flow.
type Service struct {
	router    *router.Router
	primary   gateway.Provider
	secondary gateway.Provider
	engine    *ensemble.Engine
	prompts   *prompt.Library
	audit     *audit.Log
	store     store.Store
}

// Result is what one analysis produced. Outcome is nil for
// single-provider runs; Assessment always carries the final view.
type Result struct {
	Run        model.Run         `json:"run"`
	Assessment model.Assessment  `json:"assessment"`
	Outcome    *ensemble.Outcome `json:"outcome,omitempty"`
}

// New builds the analysis service. All dependencies are required.
func New(rt *router.Router, primary, secondary gateway.Provider, engine *ensemble.Engine,
	prompts *prompt.Library, auditLog *audit.Log, st store.Store) (*Service, error) {
	if rt == nil || primary == nil || secondary == nil || engine == nil ||
		prompts == nil || auditLog == nil || st == nil {
		return nil, eris.New("analysis: all dependencies are required")
	}
	return &Service{
		router:    rt,
		primary:   primary,
		secondary: secondary,
		engine:    engine,
		prompts:   prompts,
		audit:     auditLog,
		store:     st,
	}, nil
}

// Analyze routes the task, runs the selected provider path, and persists
// the run. The userID is recorded on every audit event the flow emits.
func (s *Service) Analyze(ctx context.Context, task model.Task, userID string) (*Result, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("task_id", task.ID), zap.String("task_type", string(task.Type)))

	decision := s.router.Route(task)
	if _, err := s.audit.LogRoutingDecision(userID, task.ID, string(decision.Selected),
		decision.Reason, alternativesTo(decision.Selected)); err != nil {
		return nil, err
	}
	log.Info("task routed",
		zap.String("selected", string(decision.Selected)), zap.String("reason", decision.Reason))

	system, user, err := s.prompts.RiskAnalysis(task.ID, map[string]string{
		"task_type":       string(task.Type),
		"business_impact": fmt.Sprintf("%.2f", task.BusinessImpact),
		"description":     task.Description,
	})
	if err != nil {
		return nil, err
	}
	req := gateway.Request{
		System:     system,
		Messages:   []gateway.Message{{Role: "user", Content: user}},
		StrictJSON: task.RequiresStrictJSON,
	}

	run := model.Run{
		ID:        uuid.New().String(),
		Task:      task,
		Selected:  string(decision.Selected),
		Reason:    decision.Reason,
		CreatedAt: time.Now().UTC(),
	}
	result := &Result{}

	switch decision.Selected {
	case router.SelectEnsemble:
		outcome, err := s.runEnsemble(ctx, req, task, userID)
		if err != nil {
			return nil, err
		}
		run.Primary = &outcome.Primary
		run.Secondary = &outcome.Secondary
		run.Decision = &outcome.Decision
		run.Comparison = &outcome.Comparison
		run.TotalCost = outcome.TotalCost
		run.Latency = outcome.Latency
		result.Outcome = outcome
		result.Assessment = model.Assessment{
			Score:      outcome.Decision.FinalScore,
			Confidence: outcome.Decision.Confidence,
			RiskLevel:  string(outcome.Decision.RiskLevel),
			Reasoning:  outcome.Decision.Reasoning,
		}
	default:
		provider := s.primary
		if decision.Selected == router.SelectSecondary {
			provider = s.secondary
		}
		res, assessment, err := s.runSingle(ctx, provider, req, task, userID)
		if err != nil {
			return nil, err
		}
		run.Primary = res
		run.TotalCost = res.Cost
		run.Latency = res.Latency
		result.Assessment = assessment
	}

	if err := s.store.SaveRun(ctx, &run); err != nil {
		return nil, err
	}
	result.Run = run

	log.Info("analysis complete",
		zap.String("run_id", run.ID),
		zap.Float64("score", result.Assessment.Score),
		zap.Float64("total_cost", run.TotalCost))
	return result, nil
}

// runSingle invokes one provider and decodes its assessment. Provider
// failure degrades to a neutral assessment rather than aborting.
func (s *Service) runSingle(ctx context.Context, provider gateway.Provider, req gateway.Request,
	task model.Task, userID string) (*model.ProviderResult, model.Assessment, error) {
	if _, err := s.audit.LogLLMRequest(userID, provider.Name(), provider.Model(),
		string(task.Type), promptPreview(req), nil); err != nil {
		return nil, model.Assessment{}, err
	}

	res := provider.Invoke(ctx, req)
	if _, err := s.audit.LogLLMResponse(userID, res.Provider, res.Model,
		res.Success, res.TotalTokens(), res.Cost, res.Latency, res.Error); err != nil {
		return nil, model.Assessment{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, model.Assessment{}, eris.Wrap(err, "analysis: canceled")
	}

	if !res.Success {
		return &res, model.NeutralAssessment(
			fmt.Sprintf("provider %s failed: %s", res.Provider, res.Error)), nil
	}
	assessment, err := gateway.DecodeAssessment(res.Content)
	if err != nil {
		return &res, model.NeutralAssessment(
			fmt.Sprintf("provider %s returned unparseable content", res.Provider)), nil
	}
	return &res, assessment, nil
}

// runEnsemble drives the dual-provider path and audits both responses
// plus the validation outcome.
func (s *Service) runEnsemble(ctx context.Context, req gateway.Request,
	task model.Task, userID string) (*ensemble.Outcome, error) {
	for _, p := range []gateway.Provider{s.primary, s.secondary} {
		if _, err := s.audit.LogLLMRequest(userID, p.Name(), p.Model(),
			string(task.Type), promptPreview(req), map[string]any{"mode": "ensemble"}); err != nil {
			return nil, err
		}
	}

	outcome, err := s.engine.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	for _, res := range []model.ProviderResult{outcome.Primary, outcome.Secondary} {
		if _, err := s.audit.LogLLMResponse(userID, res.Provider, res.Model,
			res.Success, res.TotalTokens(), res.Cost, res.Latency, res.Error); err != nil {
			return nil, err
		}
	}
	if _, err := s.audit.LogEnsembleValidation(userID, task.ID,
		outcome.Comparison.PrimaryScore, outcome.Comparison.SecondaryScore,
		outcome.Comparison.ScoreDeviation, outcome.Decision.RequiresHumanReview); err != nil {
		return nil, err
	}
	return outcome, nil
}

// Batch analyzes tasks concurrently with at most workers in flight.
// Individual task failures are collected, not fatal.
type BatchResult struct {
	Results []Result         `json:"results"`
	Errors  map[string]error `json:"-"`
}

func (s *Service) Batch(ctx context.Context, tasks []model.Task, workers int, userID string) (*BatchResult, error) {
	if workers <= 0 {
		workers = 4
	}

	var mu sync.Mutex
	batch := &BatchResult{Errors: map[string]error{}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, task := range tasks {
		g.Go(func() error {
			res, err := s.Analyze(gctx, task, userID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				batch.Errors[task.ID] = err
				zap.L().Warn("batch task failed", zap.String("task_id", task.ID), zap.Error(err))
				return nil
			}
			batch.Results = append(batch.Results, *res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batch, nil
}

func alternativesTo(selected router.Selection) []string {
	all := []router.Selection{router.SelectPrimary, router.SelectSecondary, router.SelectEnsemble}
	alts := make([]string, 0, 2)
	for _, s := range all {
		if s != selected {
			alts = append(alts, string(s))
		}
	}
	return alts
}

func promptPreview(req gateway.Request) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[len(req.Messages)-1].Content
}
