package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAssessment_WellFormed(t *testing.T) {
	t.Parallel()

	content := `{
		"risk_score": 72,
		"confidence": 0.85,
		"risk_level": "HIGH",
		"primary_concerns": ["unusual transaction velocity", "new counterparty"],
		"recommendation": "hold for review",
		"reasoning": "velocity spike against a 90-day baseline"
	}`

	a, err := DecodeAssessment(content)
	require.NoError(t, err)
	assert.InDelta(t, 72.0, a.Score, 0.001)
	assert.InDelta(t, 0.85, a.Confidence, 0.001)
	assert.Equal(t, "HIGH", a.RiskLevel)
	assert.Len(t, a.Concerns, 2)
	assert.Equal(t, "hold for review", a.Recommendation)
}

func TestDecodeAssessment_MarkdownFenced(t *testing.T) {
	t.Parallel()

	content := "```json\n{\"risk_score\": 30, \"confidence\": 0.9}\n```"
	a, err := DecodeAssessment(content)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, a.Score, 0.001)
	assert.InDelta(t, 0.9, a.Confidence, 0.001)
}

func TestDecodeAssessment_SurroundingProse(t *testing.T) {
	t.Parallel()

	content := `Here is my assessment: {"risk_score": 55, "confidence": 0.7} Let me know if you need more.`
	a, err := DecodeAssessment(content)
	require.NoError(t, err)
	assert.InDelta(t, 55.0, a.Score, 0.001)
}

func TestDecodeAssessment_MissingFieldsDefault(t *testing.T) {
	t.Parallel()

	a, err := DecodeAssessment(`{"reasoning": "no numbers provided"}`)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, a.Score, 0.001)
	assert.InDelta(t, 0.5, a.Confidence, 0.001)
}

func TestDecodeAssessment_ClampsOutOfRange(t *testing.T) {
	t.Parallel()

	a, err := DecodeAssessment(`{"risk_score": 250, "confidence": -3}`)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, a.Score, 0.001)
	assert.Zero(t, a.Confidence)
}

func TestDecodeAssessment_Invalid(t *testing.T) {
	t.Parallel()

	_, err := DecodeAssessment("the model refused to answer in JSON")
	assert.Error(t, err)

	_, err = DecodeAssessment("")
	assert.Error(t, err)
}
