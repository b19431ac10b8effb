package providers

import (
	"context"
	"errors"
)

// ErrLLMUnavailable is returned when the model cannot be reached, for example
// while the circuit breaker is open.
var ErrLLMUnavailable = errors.New("llm provider unavailable")

// CompletionRequest is a single prompt sent to a language model
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	// JSON asks the model to answer with a single JSON object
	JSON bool
	// WebSearch lets the model pull context from the internet
	WebSearch bool
}

// LLMProvider generates text completions
type LLMProvider interface {
	// Complete returns the model's text output for req
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
