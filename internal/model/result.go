package model

// ProviderResult is the standardized outcome of one provider invocation.
// Immutable once produced. On failure Success is false, Content is empty,
// and Error carries the provider-side detail.
type ProviderResult struct {
	Success      bool    `json:"success"`
	Content      string  `json:"content,omitempty"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
	Latency      float64 `json:"latency"` // seconds
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Error        string  `json:"error,omitempty"`
}

// TotalTokens returns input plus output token counts.
func (r ProviderResult) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Assessment is a decoded risk analysis from one provider. Degraded marks
// assessments substituted for unparseable or failed responses; Note explains
// the substitution.
type Assessment struct {
	Score          float64  `json:"risk_score"`
	Confidence     float64  `json:"confidence"`
	RiskLevel      string   `json:"risk_level,omitempty"`
	Concerns       []string `json:"primary_concerns,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Reasoning      string   `json:"reasoning,omitempty"`
	Degraded       bool     `json:"degraded,omitempty"`
	Note           string   `json:"note,omitempty"`
}

// NeutralAssessment is the safe default substituted when a provider fails
// or returns output that cannot be decoded.
func NeutralAssessment(note string) Assessment {
	return Assessment{
		Score:      50,
		Confidence: 0,
		Degraded:   true,
		Note:       note,
	}
}
