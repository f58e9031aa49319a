package model

import "time"

// DecisionType is the synthesis path an ensemble decision took.
type DecisionType string

const (
	DecisionConsensus       DecisionType = "CONSENSUS"
	DecisionWeightedAverage DecisionType = "WEIGHTED_AVERAGE"
	DecisionEscalate        DecisionType = "ESCALATE"
)

// RiskLevel is the banded interpretation of a final score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevelFor maps a 0-100 score onto its risk band.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score < 40:
		return RiskLow
	case score < 60:
		return RiskMedium
	case score < 80:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Comparison holds the derived metrics from setting two provider
// assessments side by side. Recomputed per ensemble call.
type Comparison struct {
	PrimaryScore        float64 `json:"primary_score"`
	SecondaryScore      float64 `json:"secondary_score"`
	ScoreDeviation      float64 `json:"score_deviation"`
	PrimaryConfidence   float64 `json:"primary_confidence"`
	SecondaryConfidence float64 `json:"secondary_confidence"`
	ConfidenceDelta     float64 `json:"confidence_delta"`
	Agreement           bool    `json:"agreement"`
	HighDeviation       bool    `json:"high_deviation"`
	AvgScore            float64 `json:"avg_score"`
	AvgConfidence       float64 `json:"avg_confidence"`
	WeightedScore       float64 `json:"weighted_score"`
	AgreeThreshold      float64 `json:"agree_threshold"`
	DeviationThreshold  float64 `json:"deviation_threshold"`
}

// EnsembleDecision is the reconciled outcome of a dual-provider run.
// Produced once per ensemble invocation; immutable.
type EnsembleDecision struct {
	Type                DecisionType `json:"decision_type"`
	FinalScore          float64      `json:"final_score"`
	RiskLevel           RiskLevel    `json:"risk_level"`
	Confidence          float64      `json:"confidence"`
	Reasoning           string       `json:"reasoning"`
	RequiresHumanReview bool         `json:"requires_human_review"`
	ModelAgreement      bool         `json:"model_agreement"`
}

// Run is a persisted record of one task flowing through routing and
// analysis. Decision, Comparison, and Secondary are nil for
// single-provider runs.
type Run struct {
	ID         string            `json:"id"`
	Task       Task              `json:"task"`
	Selected   string            `json:"selected"`
	Reason     string            `json:"reason"`
	Primary    *ProviderResult   `json:"primary,omitempty"`
	Secondary  *ProviderResult   `json:"secondary,omitempty"`
	Decision   *EnsembleDecision `json:"decision,omitempty"`
	Comparison *Comparison       `json:"comparison,omitempty"`
	TotalCost  float64           `json:"total_cost"`
	Latency    float64           `json:"latency"`
	CreatedAt  time.Time         `json:"created_at"`
}
