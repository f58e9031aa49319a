package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/riskintel-cli/internal/analysis"
	"github.com/sells-group/riskintel-cli/internal/audit"
	"github.com/sells-group/riskintel-cli/internal/ensemble"
	"github.com/sells-group/riskintel-cli/internal/gateway"
	"github.com/sells-group/riskintel-cli/internal/model"
	"github.com/sells-group/riskintel-cli/internal/prompt"
	"github.com/sells-group/riskintel-cli/internal/router"
	"github.com/sells-group/riskintel-cli/internal/store"
)

type stubProvider struct {
	name    string
	content string
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Model() string { return s.name + "-model" }

func (s *stubProvider) Invoke(_ context.Context, _ gateway.Request) model.ProviderResult {
	return model.ProviderResult{
		Success: true, Content: s.content,
		Cost: 0.01, Latency: 0.3, Provider: s.name, Model: s.name + "-model",
	}
}

func newTestEnv(t *testing.T) *appEnv {
	t.Helper()

	primary := &stubProvider{name: "primary", content: `{"risk_score": 42, "confidence": 0.8}`}
	secondary := &stubProvider{name: "secondary", content: `{"risk_score": 44, "confidence": 0.9}`}

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

	svc, err := analysis.New(rt, primary, secondary, engine, prompt.Default(), auditLog, st)
	require.NoError(t, err)

	return &appEnv{
		Store:   st,
		Audit:   auditLog,
		Router:  rt,
		Engine:  engine,
		Limiter: gateway.NewLimiter(gateway.LimiterConfig{}),
		Service: svc,
		Prompts: prompt.Default(),
	}
}

func TestServeHealth(t *testing.T) {
	mux := newServeMux(newTestEnv(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServeAnalyze(t *testing.T) {
	mux := newServeMux(newTestEnv(t))

	body := `{"description": "review vendor contract", "type": "compliance_check", "user_id": "alice"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"selected":"primary"`)
	assert.Contains(t, rec.Body.String(), `"risk_score":42`)
}

func TestServeAnalyzeEnsemble(t *testing.T) {
	mux := newServeMux(newTestEnv(t))

	body := `{"description": "approve acquisition", "business_impact": 0.95}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"selected":"ensemble"`)
	assert.Contains(t, rec.Body.String(), `"decision_type":"CONSENSUS"`)
}

func TestServeAnalyzeRejectsBadBody(t *testing.T) {
	mux := newServeMux(newTestEnv(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"description": ""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeAuditVerify(t *testing.T) {
	env := newTestEnv(t)
	mux := newServeMux(env)

	body := `{"description": "check a wire transfer"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/verify", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"intact":true`)
}

func TestServeMetrics(t *testing.T) {
	mux := newServeMux(newTestEnv(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"runs"`)
	assert.Contains(t, rec.Body.String(), `"ensemble"`)
}
