package generation

import (
	"context"
	"sync"
)

// Mock is a scriptable Generator for tests and local runs.
//
// Each call consumes the next scripted step; when the script is exhausted
// the last step repeats. With no script at all, Mock echoes the prompt.
type Mock struct {
	mu    sync.Mutex
	steps []MockStep
	calls []MockCall
	next  int
}

// MockStep is one scripted response.
type MockStep struct {
	Result *Result
	Err    error
}

// MockCall records the arguments of one Generate invocation.
type MockCall struct {
	Credential string
	Prompt     string
}

// NewMock creates a Mock that replays the given steps in order.
func NewMock(steps ...MockStep) *Mock {
	return &Mock{steps: steps}
}

// Generate implements Generator.
func (m *Mock) Generate(ctx context.Context, credential, prompt string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Credential: credential, Prompt: prompt})

	if len(m.steps) == 0 {
		return &Result{Text: prompt, FinishReason: "STOP", PromptChars: len(prompt), OutputChars: len(prompt)}, nil
	}

	step := m.steps[m.next]
	if m.next < len(m.steps)-1 {
		m.next++
	}

	if step.Err != nil {
		return nil, step.Err
	}
	res := *step.Result
	if res.PromptChars == 0 {
		res.PromptChars = len(prompt)
	}
	if res.OutputChars == 0 {
		res.OutputChars = len(res.Text)
	}
	return &res, nil
}

// Calls returns a copy of all recorded invocations.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Generate invocations so far.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
