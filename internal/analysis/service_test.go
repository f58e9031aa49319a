package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/riskintel-cli/internal/audit"
	"github.com/sells-group/riskintel-cli/internal/ensemble"
	"github.com/sells-group/riskintel-cli/internal/gateway"
	"github.com/sells-group/riskintel-cli/internal/model"
	"github.com/sells-group/riskintel-cli/internal/prompt"
	"github.com/sells-group/riskintel-cli/internal/router"
	"github.com/sells-group/riskintel-cli/internal/store"
)

type stubProvider struct {
	name   string
	result model.ProviderResult
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Model() string { return s.name + "-model" }

func (s *stubProvider) Invoke(_ context.Context, _ gateway.Request) model.ProviderResult {
	return s.result
}

func scoredProvider(name string, score float64) *stubProvider {
	return &stubProvider{
		name: name,
		result: model.ProviderResult{
			Success:  true,
			Content:  fmt.Sprintf(`{"risk_score": %g, "confidence": 0.8, "risk_level": "MEDIUM"}`, score),
			Cost:     0.01,
			Latency:  0.5,
			Provider: name,
			Model:    name + "-model",
		},
	}
}

func newTestService(t *testing.T, primary, secondary gateway.Provider) (*Service, *audit.Log) {
	t.Helper()

	rt, err := router.New(router.DefaultConfig())
	require.NoError(t, err)
	engine, err := ensemble.New(primary, secondary, ensemble.DefaultConfig())
	require.NoError(t, err)
	auditLog, err := audit.Open(t.TempDir(), 10)
	require.NoError(t, err)
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	svc, err := New(rt, primary, secondary, engine, prompt.Default(), auditLog, st)
	require.NoError(t, err)
	return svc, auditLog
}

func TestAnalyzeGeneralTaskUsesPrimary(t *testing.T) {
	t.Parallel()

	svc, auditLog := newTestService(t, scoredProvider("primary", 45), scoredProvider("secondary", 70))

	task := model.NewTask("review a low-stakes expense report")
	res, err := svc.Analyze(context.Background(), task, "alice")
	require.NoError(t, err)

	assert.Equal(t, "primary", res.Run.Selected)
	assert.Nil(t, res.Run.Decision)
	assert.InDelta(t, 45.0, res.Assessment.Score, 0.001)
	assert.InDelta(t, 0.01, res.Run.TotalCost, 0.0001)

	routed, err := auditLog.Query(audit.Filter{EventType: audit.EventRoutingDecision})
	require.NoError(t, err)
	require.Len(t, routed, 1)
	assert.Equal(t, "primary", routed[0].Details["selected_model"])

	responses, err := auditLog.Query(audit.Filter{EventType: audit.EventLLMResponse})
	require.NoError(t, err)
	assert.Len(t, responses, 1)
}

func TestAnalyzeHighImpactRunsEnsemble(t *testing.T) {
	t.Parallel()

	svc, auditLog := newTestService(t, scoredProvider("primary", 62), scoredProvider("secondary", 64))

	task := model.NewTask("approve acquisition financing")
	task.BusinessImpact = 0.95
	res, err := svc.Analyze(context.Background(), task, "alice")
	require.NoError(t, err)

	assert.Equal(t, "ensemble", res.Run.Selected)
	require.NotNil(t, res.Run.Decision)
	assert.Equal(t, model.DecisionConsensus, res.Run.Decision.Type)
	require.NotNil(t, res.Outcome)
	assert.InDelta(t, 0.02, res.Run.TotalCost, 0.0001)

	validations, err := auditLog.Query(audit.Filter{EventType: audit.EventEnsembleValidation})
	require.NoError(t, err)
	require.Len(t, validations, 1)
	assert.Equal(t, false, validations[0].Details["escalated"])

	responses, err := auditLog.Query(audit.Filter{EventType: audit.EventLLMResponse})
	require.NoError(t, err)
	assert.Len(t, responses, 2)
}

func TestAnalyzePersistsRun(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, scoredProvider("primary", 45), scoredProvider("secondary", 70))

	task := model.NewTask("screen a routine invoice")
	res, err := svc.Analyze(context.Background(), task, "alice")
	require.NoError(t, err)

	got, err := svc.store.GetRun(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Description, got.Task.Description)
	assert.Equal(t, "primary", got.Selected)
}

func TestAnalyzeProviderFailureDegrades(t *testing.T) {
	t.Parallel()

	failing := &stubProvider{
		name:   "primary",
		result: model.ProviderResult{Success: false, Provider: "primary", Error: "boom"},
	}
	svc, _ := newTestService(t, failing, scoredProvider("secondary", 70))

	task := model.NewTask("screen a routine invoice")
	res, err := svc.Analyze(context.Background(), task, "alice")
	require.NoError(t, err)

	assert.True(t, res.Assessment.Degraded)
	assert.InDelta(t, 50.0, res.Assessment.Score, 0.001)
}

func TestAnalyzeRejectsInvalidTask(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, scoredProvider("primary", 45), scoredProvider("secondary", 70))

	task := model.NewTask("")
	_, err := svc.Analyze(context.Background(), task, "alice")
	require.Error(t, err)
}

func TestBatchCollectsResultsAndErrors(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, scoredProvider("primary", 45), scoredProvider("secondary", 70))

	tasks := []model.Task{
		model.NewTask("task one"),
		model.NewTask("task two"),
		model.NewTask(""), // invalid, collected as an error
	}
	batch, err := svc.Batch(context.Background(), tasks, 2, "alice")
	require.NoError(t, err)

	assert.Len(t, batch.Results, 2)
	assert.Len(t, batch.Errors, 1)
}
