// Package generation defines the abstraction over the external text
// generation endpoint.
//
// The orchestrator treats generation as an opaque, possibly-blocking
// capability: it hands over a credential and a prompt and gets back either
// a Result or an error. Vendor-specific wire formats, SDK clients, and
// streaming live behind the Generator interface and are out of scope for
// this package.
package generation

import (
	"context"
	"fmt"
)

// Generator is the capability the orchestrator consumes to produce text.
//
// Implementations must respect context cancellation and return promptly
// when the context is cancelled or its deadline expires. The credential is
// the opaque secret selected by the credential pool for this attempt.
type Generator interface {
	// Generate produces text for the given prompt using the given credential.
	//
	// A nil error with a non-nil Result does not imply usable output: the
	// Result may carry a block reason (safety filtering) or empty text.
	// Callers are expected to inspect the Result before accepting it.
	Generate(ctx context.Context, credential string, prompt string) (*Result, error)
}

// Result is the normalized outcome of a generation call.
type Result struct {
	// Text is the generated text. Empty when the prompt was blocked or the
	// endpoint returned no candidates.
	Text string

	// BlockReason is set when the endpoint refused the prompt on safety or
	// policy grounds (e.g. "SAFETY", "BLOCKLIST"). Empty otherwise.
	BlockReason string

	// FinishReason reports why generation stopped (e.g. "STOP",
	// "MAX_TOKENS", "SAFETY"). May be empty for endpoints that do not
	// report one.
	FinishReason string

	// PromptChars and OutputChars are character counts used for cost
	// accounting. OutputChars falls back to len(Text) when zero.
	PromptChars int
	OutputChars int
}

// Blocked reports whether the endpoint refused the prompt.
func (r *Result) Blocked() bool {
	return r.BlockReason != ""
}

// APIError is a transport-level error from the generation endpoint.
// The status code, when present, participates in error classification.
type APIError struct {
	// StatusCode is the HTTP status code (0 if not applicable).
	StatusCode int

	// Message is the error message reported by the endpoint.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("generation endpoint error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("generation endpoint error: %s", e.Message)
}
