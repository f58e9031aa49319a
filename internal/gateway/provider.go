// Package gateway provides the uniform provider call interface. Provider
// invocation errors never surface as Go errors: they are converted into
// failed ProviderResults so callers always receive a standardized record.
package gateway

import (
	"context"

	"github.com/sells-group/riskintel-cli/internal/model"
)

// Message is a single conversational turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries one provider invocation.
type Request struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int64     `json:"max_tokens"`
	StrictJSON  bool      `json:"strict_json"`
}

// Provider is the uniform call interface to one model provider.
// Invoke must tolerate missing token counts and cost (defaulting to zero)
// and must convert upstream failures into failed results.
type Provider interface {
	Name() string
	Model() string
	Invoke(ctx context.Context, req Request) model.ProviderResult
}

// FailedResult builds the standardized failure record for a provider.
func FailedResult(provider, model_ string, errMsg string) model.ProviderResult {
	return model.ProviderResult{
		Success:  false,
		Provider: provider,
		Model:    model_,
		Error:    errMsg,
	}
}
