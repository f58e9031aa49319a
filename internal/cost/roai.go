package cost

// RoAIInput captures the business value attributed to automated analysis
// over some period, alongside the LLM spend that produced it.
type RoAIInput struct {
	FraudPrevented  float64 `json:"fraud_prevented"`
	ManualCostSaved float64 `json:"manual_cost_saved"`
	AdditionalValue float64 `json:"additional_value"`
	LLMCost         float64 `json:"llm_cost"`
}

// RoAIResult is the computed return on AI investment:
// (value generated - LLM cost) / LLM cost.
type RoAIResult struct {
	RoAI               float64 `json:"roai"`
	TotalValue         float64 `json:"total_value_generated"`
	NetValue           float64 `json:"net_value"`
	LLMCost            float64 `json:"llm_cost"`
	CostPerDollarValue float64 `json:"cost_per_dollar_value"`
}

// CalculateRoAI computes return-on-AI metrics. Zero spend yields a zero
// ratio rather than dividing by zero.
func CalculateRoAI(in RoAIInput) RoAIResult {
	total := in.FraudPrevented + in.ManualCostSaved + in.AdditionalValue

	r := RoAIResult{
		TotalValue: total,
		NetValue:   total - in.LLMCost,
		LLMCost:    in.LLMCost,
	}
	if in.LLMCost > 0 {
		r.RoAI = (total - in.LLMCost) / in.LLMCost
	} else {
		r.NetValue = total
	}
	if total > 0 {
		r.CostPerDollarValue = in.LLMCost / total
	}
	return r
}
