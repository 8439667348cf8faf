// Package llm abstracts the language model endpoint used by the analysis
// pipeline.
package llm

import (
	"context"
	"fmt"
)

// Client sends a system+user prompt to the model and returns the raw text
// of the response. Implementations must honor ctx cancellation and
// deadlines, and return one of the typed errors below so the orchestrator
// can pick a retry policy.
type Client interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}

// TimeoutError indicates no response arrived within the caller's deadline.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("llm timeout: %v", e.Err) }

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransportError indicates the endpoint was unreachable (connection
// refused, DNS failure, reset).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("llm transport: %v", e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError indicates the endpoint answered with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm http error: status %d", e.StatusCode)
}
