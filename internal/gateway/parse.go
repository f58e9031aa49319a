package gateway

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/riskintel-cli/internal/model"
)

// DecodeAssessment decodes a provider's risk analysis output. The decode is
// fallible by design: callers substitute a neutral default and mark the
// result degraded when an error is returned, they never propagate it as a
// crash. Missing numeric fields fall back to score 50 / confidence 0.5.
func DecodeAssessment(content string) (model.Assessment, error) {
	cleaned := cleanJSON(content)
	if cleaned == "" {
		return model.Assessment{}, eris.New("gateway: empty response content")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return model.Assessment{}, eris.Wrap(err, "gateway: decode assessment")
	}

	a := model.Assessment{Score: 50, Confidence: 0.5}

	if v, ok := toFloat64(raw["risk_score"]); ok {
		a.Score = clamp(v, 0, 100)
	}
	if v, ok := toFloat64(raw["confidence"]); ok {
		a.Confidence = clamp(v, 0, 1)
	}
	if s, ok := raw["risk_level"].(string); ok {
		a.RiskLevel = s
	}
	if s, ok := raw["recommendation"].(string); ok {
		a.Recommendation = s
	}
	if s, ok := raw["reasoning"].(string); ok {
		a.Reasoning = s
	}
	if items, ok := raw["primary_concerns"].([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				a.Concerns = append(a.Concerns, s)
			}
		}
	}

	return a, nil
}

// cleanJSON strips markdown fences and surrounding prose from model output
// so the embedded JSON object can be decoded.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
