// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify prompts sent by the summarization
// engine and assembler, and to feed controlled responses or errors without a
// live backend. Fields are safe to set before calling any method; mutating
// them during a concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    Responses: []*llm.CompletionResponse{{Content: "A dark tale…"}},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/chronicler/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
//
// Each call to Complete consumes the next entry of Errs (if non-nil) and
// then the next entry of Responses. When a list is exhausted its last entry
// keeps being used, so a single-element setup behaves like a constant stub.
type Provider struct {
	mu sync.Mutex

	// --- Configurable behaviour ---

	// Responses are returned by successive Complete calls.
	Responses []*llm.CompletionResponse

	// Errs are returned by successive Complete calls. A nil entry means the
	// corresponding call succeeds with the matching response.
	Errs []error

	// Block, when non-nil, is closed by the test to let an in-flight
	// Complete call proceed. Used to hold a summarization run open while a
	// concurrent request is made.
	Block chan struct{}

	// --- Call records (read after test) ---

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall
}

// Complete records the call and returns the next configured response/error.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	n := len(p.CompleteCalls)
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	block := p.Block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := pick(p.Errs, n); err != nil {
		return nil, err
	}
	if resp := pick(p.Responses, n); resp != nil {
		return resp, nil
	}
	return &llm.CompletionResponse{}, nil
}

// Calls returns the number of Complete invocations so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.CompleteCalls)
}

// pick returns list[i], clamping to the last element. Zero value for empty.
func pick[T any](list []T, i int) T {
	var zero T
	if len(list) == 0 {
		return zero
	}
	if i >= len(list) {
		i = len(list) - 1
	}
	return list[i]
}
