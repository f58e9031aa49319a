package audit

import "fmt"

const promptPreviewLimit = 200

// LogLLMRequest records an outbound provider call.
func (l *Log) LogLLMRequest(userID, provider, model, taskType, promptPreview string, metadata map[string]any) (*Event, error) {
	if len(promptPreview) > promptPreviewLimit {
		promptPreview = promptPreview[:promptPreviewLimit]
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return l.Append(EventLLMRequest, SeverityInfo, userID,
		fmt.Sprintf("LLM request to %s/%s", provider, model),
		map[string]any{
			"provider":       provider,
			"model":          model,
			"task_type":      taskType,
			"prompt_preview": promptPreview,
			"metadata":       metadata,
		})
}

// LogLLMResponse records the outcome of a provider call. Failures are
// logged at warning severity.
func (l *Log) LogLLMResponse(userID, provider, model string, success bool, tokens int, cost, latency float64, errMsg string) (*Event, error) {
	severity := SeverityInfo
	if !success {
		severity = SeverityWarning
	}
	return l.Append(EventLLMResponse, severity, userID,
		fmt.Sprintf("LLM response from %s/%s", provider, model),
		map[string]any{
			"provider": provider,
			"model":    model,
			"success":  success,
			"tokens":   tokens,
			"cost":     cost,
			"latency":  latency,
			"error":    errMsg,
		})
}

// LogRoutingDecision records which provider a task was routed to and why.
func (l *Log) LogRoutingDecision(userID, taskID, selected, reason string, alternatives []string) (*Event, error) {
	return l.Append(EventRoutingDecision, SeverityInfo, userID,
		fmt.Sprintf("Routed to %s", selected),
		map[string]any{
			"task_id":        taskID,
			"selected_model": selected,
			"reason":         reason,
			"alternatives":   alternatives,
		})
}

// LogEnsembleValidation records a dual-provider comparison. Escalations
// are logged at warning severity.
func (l *Log) LogEnsembleValidation(userID, taskID string, primaryScore, secondaryScore, deviation float64, escalated bool) (*Event, error) {
	severity := SeverityInfo
	if escalated {
		severity = SeverityWarning
	}
	return l.Append(EventEnsembleValidation, severity, userID,
		"Ensemble validation",
		map[string]any{
			"task_id":         taskID,
			"primary_score":   primaryScore,
			"secondary_score": secondaryScore,
			"deviation":       deviation,
			"escalated":       escalated,
		})
}

// LogRateLimitHit records a throttled request.
func (l *Log) LogRateLimitHit(userID, limitType string, currentUsage, limit int) (*Event, error) {
	return l.Append(EventRateLimitHit, SeverityWarning, userID,
		fmt.Sprintf("Rate limit hit: %s", limitType),
		map[string]any{
			"limit_type":    limitType,
			"current_usage": currentUsage,
			"limit":         limit,
		})
}

// LogBudgetLimitHit records a request refused for exceeding spend.
func (l *Log) LogBudgetLimitHit(userID, limitType string, currentSpend, limit float64) (*Event, error) {
	return l.Append(EventBudgetLimitHit, SeverityWarning, userID,
		fmt.Sprintf("Budget limit hit: %s", limitType),
		map[string]any{
			"limit_type":    limitType,
			"current_spend": currentSpend,
			"limit":         limit,
		})
}

// LogSecurityEvent records a security-relevant action at critical
// severity.
func (l *Log) LogSecurityEvent(userID, action string, details map[string]any) (*Event, error) {
	return l.Append(EventSecurityEvent, SeverityCritical, userID, action, details)
}
