package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/riskintel-cli/internal/model"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	r, err := New(DefaultConfig())
	require.NoError(t, err)
	return r
}

func baseTask() model.Task {
	return model.Task{
		ID:             "task-1",
		Description:    "review supplier onboarding documents",
		BusinessImpact: 0.5,
		Type:           model.TaskGeneral,
	}
}

func TestRoute_StrictJSONOverridesEverything(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	// Strict JSON wins even when every other rule would also fire.
	task := baseTask()
	task.RequiresStrictJSON = true
	task.ContextLength = 500000
	task.MultiDocument = true
	task.BusinessImpact = 1.0

	d := r.Route(task)
	assert.Equal(t, SelectPrimary, d.Selected)
	assert.Contains(t, d.Reason, "Structured JSON")
}

func TestRoute_LargeContext(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	task := baseTask()
	task.ContextLength = 120000

	d := r.Route(task)
	assert.Equal(t, SelectSecondary, d.Selected)
	assert.Contains(t, d.Reason, "120,000 tokens")
}

func TestRoute_ContextThresholdBoundaryFallsThrough(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	// A task exactly at the threshold must NOT select secondary.
	task := baseTask()
	task.ContextLength = 80000

	d := r.Route(task)
	assert.Equal(t, SelectPrimary, d.Selected)
}

func TestRoute_MultiDocument(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	task := baseTask()
	task.MultiDocument = true

	d := r.Route(task)
	assert.Equal(t, SelectSecondary, d.Selected)
	assert.Contains(t, d.Reason, "Multi-document")
}

func TestRoute_HighImpactEnsemble(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	task := baseTask()
	task.BusinessImpact = 0.9

	d := r.Route(task)
	assert.Equal(t, SelectEnsemble, d.Selected)
	assert.Contains(t, d.Reason, "High business impact (90.0%)")
}

func TestRoute_ImpactThresholdBoundaryFallsThrough(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	// business_impact == threshold does not trigger the ensemble rule.
	task := baseTask()
	task.BusinessImpact = 0.8

	d := r.Route(task)
	assert.Equal(t, SelectPrimary, d.Selected)
}

func TestRoute_Default(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	d := r.Route(baseTask())
	assert.Equal(t, SelectPrimary, d.Selected)
	assert.Contains(t, d.Reason, "General task")
}

func TestRoute_Deterministic(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	task := baseTask()
	task.ContextLength = 95000

	first := r.Route(task)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.Route(task))
	}
}

func TestExplain(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	task := baseTask()
	task.BusinessImpact = 0.95
	det := r.Explain(task)

	assert.Equal(t, SelectEnsemble, det.Selected)
	assert.Equal(t, 80000, det.Thresholds.ContextThreshold)
	assert.Equal(t, 0.95, det.Characteristics["business_impact"])
	assert.Equal(t, "general", det.Characteristics["task_type"])
}

func TestNew_RejectsBadThresholds(t *testing.T) {
	t.Parallel()

	_, err := New(Config{ContextThreshold: -1, ImpactThreshold: 0.8})
	assert.Error(t, err)

	_, err = New(Config{ContextThreshold: 80000, ImpactThreshold: 1.5})
	assert.Error(t, err)
}
