package model

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// TaskType categorizes an analysis task.
type TaskType string

const (
	TaskRiskScoring      TaskType = "risk_scoring"
	TaskFraudDetection   TaskType = "fraud_detection"
	TaskComplianceCheck  TaskType = "compliance_check"
	TaskDocumentAnalysis TaskType = "document_analysis"
	TaskGeneral          TaskType = "general"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskRiskScoring, TaskFraudDetection, TaskComplianceCheck, TaskDocumentAnalysis, TaskGeneral:
		return true
	default:
		return false
	}
}

// Task is a single analysis request. Immutable after construction; the
// routing attributes drive provider selection.
type Task struct {
	ID                 string   `json:"task_id"`
	Description        string   `json:"description"`
	RequiresStrictJSON bool     `json:"requires_strict_json"`
	ContextLength      int      `json:"context_length"`
	MultiDocument      bool     `json:"multi_document"`
	BusinessImpact     float64  `json:"business_impact"`
	Type               TaskType `json:"task_type"`
}

// NewTask creates a Task with a fresh ID and default attributes.
func NewTask(description string) Task {
	return Task{
		ID:             uuid.New().String(),
		Description:    description,
		BusinessImpact: 0.5,
		Type:           TaskGeneral,
	}
}

// Validate checks task attributes against their allowed ranges.
func (t Task) Validate() error {
	if t.Description == "" {
		return eris.New("task: description is required")
	}
	if t.ContextLength < 0 {
		return eris.Errorf("task: context_length must be non-negative, got %d", t.ContextLength)
	}
	if t.BusinessImpact < 0 || t.BusinessImpact > 1 {
		return eris.Errorf("task: business_impact must be in [0,1], got %g", t.BusinessImpact)
	}
	if !t.Type.Valid() {
		return eris.Errorf("task: unknown task_type %q", t.Type)
	}
	return nil
}
