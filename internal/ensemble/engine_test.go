package ensemble

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/riskintel-cli/internal/gateway"
	"github.com/sells-group/riskintel-cli/internal/model"
)

// stubProvider returns a canned result without any network traffic.
type stubProvider struct {
	name   string
	result model.ProviderResult
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Model() string { return s.name + "-model" }

func (s *stubProvider) Invoke(_ context.Context, _ gateway.Request) model.ProviderResult {
	return s.result
}

func scored(name string, score float64, confidence float64) *stubProvider {
	return &stubProvider{
		name: name,
		result: model.ProviderResult{
			Success:  true,
			Content:  fmt.Sprintf(`{"risk_score": %g, "confidence": %g, "risk_level": "HIGH"}`, score, confidence),
			Cost:     0.01,
			Latency:  0.5,
			Provider: name,
		},
	}
}

func newEngine(t *testing.T, primary, secondary gateway.Provider) *Engine {
	t.Helper()
	e, err := New(primary, secondary, DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestRunConsensus(t *testing.T) {
	t.Parallel()

	// Deviation 2 is inside the agreement band; the secondary has the
	// higher confidence so its score is adopted.
	e := newEngine(t, scored("primary", 70, 0.6), scored("secondary", 72, 0.9))
	out, err := e.Run(context.Background(), gateway.Request{})
	require.NoError(t, err)

	assert.Equal(t, model.DecisionConsensus, out.Decision.Type)
	assert.InDelta(t, 72.0, out.Decision.FinalScore, 0.001)
	assert.InDelta(t, 0.9, out.Decision.Confidence, 0.001)
	assert.True(t, out.Decision.ModelAgreement)
	assert.False(t, out.Decision.RequiresHumanReview)
	assert.Contains(t, out.Decision.Reasoning, "70.0")
	assert.Contains(t, out.Decision.Reasoning, "72.0")
}

func TestRunConsensusTieGoesToPrimary(t *testing.T) {
	t.Parallel()

	e := newEngine(t, scored("primary", 70, 0.8), scored("secondary", 74, 0.8))
	out, err := e.Run(context.Background(), gateway.Request{})
	require.NoError(t, err)

	assert.Equal(t, model.DecisionConsensus, out.Decision.Type)
	assert.InDelta(t, 70.0, out.Decision.FinalScore, 0.001)
}

func TestRunWeightedAverage(t *testing.T) {
	t.Parallel()

	// Deviation 10 falls between the bands. Weighted score is
	// (60*0.5 + 70*1.0) / 1.5 = 66.67.
	e := newEngine(t, scored("primary", 60, 0.5), scored("secondary", 70, 1.0))
	out, err := e.Run(context.Background(), gateway.Request{})
	require.NoError(t, err)

	assert.Equal(t, model.DecisionWeightedAverage, out.Decision.Type)
	assert.InDelta(t, 66.6667, out.Decision.FinalScore, 0.001)
	assert.InDelta(t, 0.75, out.Decision.Confidence, 0.001)
	assert.False(t, out.Decision.RequiresHumanReview)
	assert.Contains(t, out.Decision.Reasoning, "60.0")
	assert.Contains(t, out.Decision.Reasoning, "70.0")
}

func TestRunEscalate(t *testing.T) {
	t.Parallel()

	// Deviation 40 breaches the escalation band. Final score is the
	// plain average and the lower confidence is carried.
	e := newEngine(t, scored("primary", 80, 0.9), scored("secondary", 40, 0.7))
	out, err := e.Run(context.Background(), gateway.Request{})
	require.NoError(t, err)

	assert.Equal(t, model.DecisionEscalate, out.Decision.Type)
	assert.InDelta(t, 60.0, out.Decision.FinalScore, 0.001)
	assert.InDelta(t, 0.7, out.Decision.Confidence, 0.001)
	assert.True(t, out.Decision.RequiresHumanReview)
	assert.Equal(t, model.RiskHigh, out.Decision.RiskLevel)
	assert.Contains(t, out.Decision.Reasoning, "80.0")
	assert.Contains(t, out.Decision.Reasoning, "40.0")
	assert.Contains(t, out.Decision.Reasoning, "deviation 40.0")
}

func TestRunBoundaryDeviations(t *testing.T) {
	t.Parallel()

	// Exactly at the agreement threshold still counts as agreement.
	e := newEngine(t, scored("primary", 70, 0.8), scored("secondary", 75, 0.8))
	out, err := e.Run(context.Background(), gateway.Request{})
	require.NoError(t, err)
	assert.Equal(t, model.DecisionConsensus, out.Decision.Type)

	// Exactly at the deviation threshold does not escalate.
	e = newEngine(t, scored("primary", 60, 0.8), scored("secondary", 75, 0.8))
	out, err = e.Run(context.Background(), gateway.Request{})
	require.NoError(t, err)
	assert.Equal(t, model.DecisionWeightedAverage, out.Decision.Type)
}

func TestRunProviderFailureDegradesToNeutral(t *testing.T) {
	t.Parallel()

	failing := &stubProvider{
		name:   "secondary",
		result: model.ProviderResult{Success: false, Provider: "secondary", Error: "timeout"},
	}
	e := newEngine(t, scored("primary", 55, 0.8), failing)
	out, err := e.Run(context.Background(), gateway.Request{})
	require.NoError(t, err)

	assert.True(t, out.SecondaryAssessment.Degraded)
	assert.InDelta(t, 50.0, out.SecondaryAssessment.Score, 0.001)
	assert.InDelta(t, 0.0, out.SecondaryAssessment.Confidence, 0.001)
	// Deviation 5 with one neutral side still yields a decision.
	assert.Equal(t, model.DecisionConsensus, out.Decision.Type)
}

func TestRunUnparseableContent(t *testing.T) {
	t.Parallel()

	garbled := &stubProvider{
		name:   "secondary",
		result: model.ProviderResult{Success: true, Content: "not json at all", Provider: "secondary"},
	}
	e := newEngine(t, scored("primary", 55, 0.8), garbled)
	out, err := e.Run(context.Background(), gateway.Request{})
	require.NoError(t, err)

	assert.True(t, out.SecondaryAssessment.Degraded)
	assert.InDelta(t, 50.0, out.SecondaryAssessment.Score, 0.001)
}

func TestRunCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newEngine(t, scored("primary", 55, 0.8), scored("secondary", 56, 0.8))
	out, err := e.Run(ctx, gateway.Request{})
	require.Error(t, err)
	assert.Nil(t, out)
}

func TestRunAggregatesCostAndLatency(t *testing.T) {
	t.Parallel()

	p := scored("primary", 70, 0.8)
	p.result.Cost = 0.02
	p.result.Latency = 0.4
	s := scored("secondary", 71, 0.8)
	s.result.Cost = 0.05
	s.result.Latency = 1.2

	e := newEngine(t, p, s)
	out, err := e.Run(context.Background(), gateway.Request{})
	require.NoError(t, err)

	assert.InDelta(t, 0.07, out.TotalCost, 0.0001)
	assert.InDelta(t, 1.2, out.Latency, 0.0001)
}

func TestMetricsSnapshot(t *testing.T) {
	t.Parallel()

	e := newEngine(t, scored("primary", 70, 0.8), scored("secondary", 71, 0.8))
	for range 3 {
		_, err := e.Run(context.Background(), gateway.Request{})
		require.NoError(t, err)
	}

	snap := e.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(3), snap.Agreements)
	assert.InDelta(t, 1.0, snap.AgreementRate, 0.001)
	assert.Zero(t, snap.Escalations)
	assert.Greater(t, snap.TotalCost, 0.0)
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	p := scored("primary", 70, 0.8)
	s := scored("secondary", 71, 0.8)

	_, err := New(nil, s, DefaultConfig())
	assert.Error(t, err)

	_, err = New(p, s, Config{AgreeThreshold: 10, DeviationThreshold: 5})
	assert.Error(t, err)
}
