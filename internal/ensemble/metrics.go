package ensemble

import "sync"

// Metrics accumulates counters across ensemble runs. Safe for concurrent
// use.
type Metrics struct {
	mu            sync.Mutex
	totalRequests int64
	agreements    int64
	disagreements int64
	escalations   int64
	totalCost     float64
	totalLatency  float64
}

// Snapshot is a point-in-time copy of the counters with derived rates.
type Snapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	Agreements     int64   `json:"agreements"`
	Disagreements  int64   `json:"disagreements"`
	Escalations    int64   `json:"escalations"`
	AgreementRate  float64 `json:"agreement_rate"`
	EscalationRate float64 `json:"escalation_rate"`
	TotalCost      float64 `json:"total_cost"`
	AvgLatency     float64 `json:"avg_latency"`
}

func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) record(out *Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	if out.Comparison.Agreement {
		m.agreements++
	} else {
		m.disagreements++
	}
	if out.Decision.RequiresHumanReview {
		m.escalations++
	}
	m.totalCost += out.TotalCost
	m.totalLatency += out.Latency
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		TotalRequests: m.totalRequests,
		Agreements:    m.agreements,
		Disagreements: m.disagreements,
		Escalations:   m.escalations,
		TotalCost:     m.totalCost,
	}
	if m.totalRequests > 0 {
		s.AgreementRate = float64(m.agreements) / float64(m.totalRequests)
		s.EscalationRate = float64(m.escalations) / float64(m.totalRequests)
		s.AvgLatency = m.totalLatency / float64(m.totalRequests)
	}
	return s
}
