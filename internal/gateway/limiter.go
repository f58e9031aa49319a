package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/riskintel-cli/internal/model"
)

// ErrRateLimited is returned when the request rate limit is exhausted.
var ErrRateLimited = eris.New("gateway: request rate limit exceeded")

// ErrBudgetExhausted is returned when the spend budget for the current
// window is exhausted.
var ErrBudgetExhausted = eris.New("gateway: budget exhausted for current window")

// LimiterConfig controls request rate and windowed spend limits.
type LimiterConfig struct {
	RequestsPerMinute int
	BudgetUSD         float64
	BudgetWindow      time.Duration
}

// LimitEvent describes a tripped limit for observers (audit logging).
type LimitEvent struct {
	Kind    string  // "rate_limit" or "budget_limit"
	Current float64 // current usage at trip time
	Limit   float64
}

// Limiter enforces a request rate and a rolling spend budget ahead of
// provider calls. Spend tracking resets when the window elapses.
type Limiter struct {
	rl     *rate.Limiter
	budget float64
	window time.Duration

	mu          sync.Mutex
	windowStart time.Time
	spent       float64

	nowFunc func() time.Time
}

// NewLimiter creates a Limiter from config. A zero budget disables spend
// enforcement; a zero rate disables rate enforcement.
func NewLimiter(cfg LimiterConfig) *Limiter {
	var rl *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		rl = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}
	window := cfg.BudgetWindow
	if window <= 0 {
		window = time.Hour
	}
	return &Limiter{
		rl:      rl,
		budget:  cfg.BudgetUSD,
		window:  window,
		nowFunc: time.Now,
	}
}

// Allow reports whether one more request may proceed. Returns
// ErrRateLimited or ErrBudgetExhausted with the tripped limit detail.
func (l *Limiter) Allow() (*LimitEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if l.windowStart.IsZero() {
		l.windowStart = now
	} else if now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.spent = 0
	}

	if l.budget > 0 && l.spent >= l.budget {
		return &LimitEvent{Kind: "budget_limit", Current: l.spent, Limit: l.budget}, ErrBudgetExhausted
	}

	if l.rl != nil && !l.rl.Allow() {
		burst := float64(l.rl.Burst())
		return &LimitEvent{Kind: "rate_limit", Current: burst, Limit: burst}, ErrRateLimited
	}

	return nil, nil
}

// Record adds a completed call's cost to the current window, starting
// the window if no request has passed through yet.
func (l *Limiter) Record(cost float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.windowStart.IsZero() {
		l.windowStart = l.nowFunc()
	}
	l.spent += cost
}

// Spent returns the spend accumulated in the current window.
func (l *Limiter) Spent() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent
}

// LimitedProvider wraps a Provider with a shared Limiter. Tripped limits
// are reported through OnLimit and returned as failed results, keeping the
// provider contract of never erroring.
type LimitedProvider struct {
	Provider
	limiter *Limiter

	// OnLimit, if set, is called when a limit trips. Wired to the audit
	// log by the caller.
	OnLimit func(ev LimitEvent)
}

// NewLimitedProvider wraps p with the shared limiter.
func NewLimitedProvider(p Provider, limiter *Limiter) *LimitedProvider {
	return &LimitedProvider{Provider: p, limiter: limiter}
}

// Invoke checks limits, delegates, and records the call's cost.
func (p *LimitedProvider) Invoke(ctx context.Context, req Request) model.ProviderResult {
	if ev, err := p.limiter.Allow(); err != nil {
		if p.OnLimit != nil && ev != nil {
			p.OnLimit(*ev)
		}
		return FailedResult(p.Name(), p.Model(), err.Error())
	}

	res := p.Provider.Invoke(ctx, req)
	p.limiter.Record(res.Cost)
	return res
}
