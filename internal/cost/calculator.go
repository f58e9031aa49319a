package cost

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates holds the pricing table plus the expensive baseline used for
// savings comparisons.
type Rates struct {
	Models        map[string]ModelRate `yaml:"models" mapstructure:"models"`
	BaselineModel string               `yaml:"baseline_model" mapstructure:"baseline_model"`
}

// Calculator computes costs for provider usage. Pure arithmetic, no state.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Call computes the cost of one provider call. Unknown models cost zero
// rather than guessing.
func (c *Calculator) Call(model string, input, output int) float64 {
	rate, ok := c.rates.Models[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Ensemble sums the cost of both legs of a dual-provider call.
func (c *Calculator) Ensemble(primary, secondary float64) float64 {
	return primary + secondary
}

// Savings compares the selected model's estimated cost against the
// configured expensive baseline.
type Savings struct {
	Model           string  `json:"model"`
	SelectedCost    float64 `json:"selected_cost"`
	BaselineCost    float64 `json:"baseline_cost"`
	Savings         float64 `json:"savings"`
	SavingsPercent  float64 `json:"savings_percent"`
	EstimatedTokens int     `json:"estimated_tokens"`
}

// estimatedOutputTokens is assumed per request when only context length is
// known.
const estimatedOutputTokens = 500

// EstimateSavings computes the cost delta of running a task of the given
// context length on model instead of the baseline.
func (c *Calculator) EstimateSavings(model string, contextLength int) Savings {
	tokens := contextLength + estimatedOutputTokens

	selected := c.Call(model, contextLength, estimatedOutputTokens)
	baseline := c.Call(c.rates.BaselineModel, contextLength, estimatedOutputTokens)

	s := Savings{
		Model:           model,
		SelectedCost:    selected,
		BaselineCost:    baseline,
		Savings:         baseline - selected,
		EstimatedTokens: tokens,
	}
	if baseline > 0 {
		s.SavingsPercent = s.Savings / baseline * 100
	}
	return s
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
		},
		BaselineModel: "claude-opus-4-6",
	}
}
