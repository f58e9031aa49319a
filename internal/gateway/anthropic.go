package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/riskintel-cli/internal/cost"
	"github.com/sells-group/riskintel-cli/internal/model"
	"github.com/sells-group/riskintel-cli/internal/resilience"
	"github.com/sells-group/riskintel-cli/pkg/anthropic"
)

// strictJSONInstruction is appended to the system prompt when a request
// demands machine-parseable output.
const strictJSONInstruction = "\n\nRespond with a single valid JSON object and nothing else. No markdown fences, no commentary."

// AnthropicProvider invokes one Claude model through the shared SDK client.
// Transient upstream failures are retried and a circuit breaker shields
// a provider that is consistently down.
type AnthropicProvider struct {
	name        string
	model       string
	client      anthropic.Client
	calc        *cost.Calculator
	retry       resilience.Policy
	breaker     *resilience.CircuitBreaker
	temperature float64
	maxTokens   int64
}

// ProviderOption adjusts optional provider behavior.
type ProviderOption func(*AnthropicProvider)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p resilience.Policy) ProviderOption {
	return func(ap *AnthropicProvider) { ap.retry = p }
}

// WithCircuitBreaker overrides the default breaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) ProviderOption {
	return func(ap *AnthropicProvider) { ap.breaker = cb }
}

// WithGenerationDefaults sets the temperature and max token count used
// when a request leaves them unset.
func WithGenerationDefaults(temperature float64, maxTokens int64) ProviderOption {
	return func(ap *AnthropicProvider) {
		ap.temperature = temperature
		ap.maxTokens = maxTokens
	}
}

// NewAnthropicProvider creates a named provider bound to a model.
func NewAnthropicProvider(name, model string, client anthropic.Client, calc *cost.Calculator, opts ...ProviderOption) *AnthropicProvider {
	p := &AnthropicProvider{
		name:        name,
		model:       model,
		client:      client,
		calc:        calc,
		retry:       resilience.DefaultPolicy(),
		breaker:     resilience.NewCircuitBreaker(name, 5, 30*time.Second),
		temperature: 0.3,
		maxTokens:   1024,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *AnthropicProvider) Name() string  { return p.name }
func (p *AnthropicProvider) Model() string { return p.model }

// BreakerState exposes the circuit state for metrics.
func (p *AnthropicProvider) BreakerState() string { return p.breaker.State() }

// Invoke calls the model and standardizes the outcome. Upstream errors
// become failed results; latency covers the full round trip including
// retries.
func (p *AnthropicProvider) Invoke(ctx context.Context, req Request) model.ProviderResult {
	if !p.breaker.Allow() {
		zap.L().Warn("gateway: circuit open, rejecting call",
			zap.String("provider", p.name),
			zap.String("model", p.model),
		)
		return FailedResult(p.name, p.model, resilience.ErrCircuitOpen.Error())
	}

	system := req.System
	if req.StrictJSON {
		system += strictJSONInstruction
	}

	msgs := make([]anthropic.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = anthropic.Message{Role: m.Role, Content: m.Content}
	}

	temp := req.Temperature
	if temp <= 0 {
		temp = p.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	var resp *anthropic.MessageResponse
	start := time.Now()
	err := resilience.Do(ctx, p.retry, p.name+".invoke", func(ctx context.Context) error {
		var callErr error
		resp, callErr = p.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       p.model,
			MaxTokens:   maxTokens,
			System:      system,
			Messages:    msgs,
			Temperature: &temp,
		})
		return callErr
	})
	latency := time.Since(start).Seconds()

	if err != nil {
		p.breaker.Failure()
		zap.L().Warn("gateway: provider call failed",
			zap.String("provider", p.name),
			zap.String("model", p.model),
			zap.Error(err),
		)
		res := FailedResult(p.name, p.model, err.Error())
		res.Latency = latency
		return res
	}
	p.breaker.Success()

	in := int(resp.Usage.InputTokens)
	out := int(resp.Usage.OutputTokens)

	return model.ProviderResult{
		Success:      true,
		Content:      resp.Text(),
		InputTokens:  in,
		OutputTokens: out,
		Cost:         p.calc.Call(p.model, in, out),
		Latency:      latency,
		Provider:     p.name,
		Model:        p.model,
	}
}
