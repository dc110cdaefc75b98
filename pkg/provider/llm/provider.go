// Package llm defines the Provider interface for generative-text backends.
//
// Chronicler treats the generation service as a black box behind a single
// call contract: a prompt plus a style directive in, prose out. Failures
// (timeout, rate limit, malformed response) surface as errors; retry policy
// is the caller's concern.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Message is one entry of a prompt conversation. Role follows the usual
// chat-completion convention ("system", "user", "assistant").
type Message struct {
	Role    string
	Content string
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between providers for the same
// text.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input.
	PromptTokens int

	// CompletionTokens is the number of tokens generated.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the backend needs to produce a
// response. Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is a high-priority instruction injected before the
	// conversation. Chronicler places the style directive and task framing
	// here. Providers without a dedicated system channel prepend it as a
	// "system"-role message.
	SystemPrompt string

	// Messages is the ordered prompt content; the last message drives the
	// response.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero means the
	// provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means the provider default.
	// Chronicler uses this as the length hint of the generation contract.
	MaxTokens int
}

// CompletionResponse is the backend's full answer.
type CompletionResponse struct {
	// Content is the generated prose.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any generative-text backend.
//
// Implementations must be safe for concurrent use. Complete must return as
// soon as possible after ctx is cancelled; a cancelled or timed-out call is
// equivalent to a failure and must not have side effects.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
