package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sells-group/riskintel-cli/internal/config"
	"github.com/sells-group/riskintel-cli/internal/model"
)

func TestCheckerDeliversAlertOnStartup(t *testing.T) {
	t.Parallel()

	hit := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case hit <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := &fakeStore{runs: []model.Run{
		ensembleRun(model.DecisionEscalate, model.RiskHigh, 0.06),
		ensembleRun(model.DecisionEscalate, model.RiskHigh, 0.06),
		ensembleRun(model.DecisionEscalate, model.RiskCritical, 0.06),
		ensembleRun(model.DecisionEscalate, model.RiskCritical, 0.06),
		ensembleRun(model.DecisionConsensus, model.RiskMedium, 0.06),
	}}

	cfg := config.MonitoringConfig{
		WebhookURL:              srv.URL,
		EscalationRateThreshold: 0.3,
		CostThresholdUSD:        100,
		LookbackWindowHours:     24,
		CheckIntervalSecs:       3600,
	}
	checker := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	select {
	case <-hit:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a webhook delivery from the startup check")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("checker did not stop on context cancellation")
	}
}
