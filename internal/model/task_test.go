package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask_Defaults(t *testing.T) {
	t.Parallel()

	task := NewTask("analyze transaction for fraud indicators")
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, TaskGeneral, task.Type)
	assert.InDelta(t, 0.5, task.BusinessImpact, 0.001)
	assert.False(t, task.RequiresStrictJSON)
	assert.NoError(t, task.Validate())
}

func TestTask_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr bool
	}{
		{"valid", func(t *Task) {}, false},
		{"empty description", func(t *Task) { t.Description = "" }, true},
		{"negative context", func(t *Task) { t.ContextLength = -1 }, true},
		{"impact above one", func(t *Task) { t.BusinessImpact = 1.5 }, true},
		{"impact below zero", func(t *Task) { t.BusinessImpact = -0.1 }, true},
		{"unknown type", func(t *Task) { t.Type = "sentiment" }, true},
		{"impact at bounds", func(t *Task) { t.BusinessImpact = 1.0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			task := NewTask("check vendor invoices")
			tt.mutate(&task)
			err := task.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestTaskType_Valid(t *testing.T) {
	t.Parallel()

	for _, tt := range []TaskType{TaskRiskScoring, TaskFraudDetection, TaskComplianceCheck, TaskDocumentAnalysis, TaskGeneral} {
		assert.True(t, tt.Valid(), string(tt))
	}
	assert.False(t, TaskType("").Valid())
	assert.False(t, TaskType("translation").Valid())
}
