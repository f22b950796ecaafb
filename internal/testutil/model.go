package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
)

// MockModel provides deterministic chat model responses for tests. It
// matches the last user message against registered patterns and returns the
// corresponding canned response or tool request. The zero pattern rules
// fall through to Fallback.
//
// MockModel satisfies the assistant's model client contract structurally,
// so no production package is imported here.
//
// Thread-safe for concurrent use.
type MockModel struct {
	mu       sync.Mutex
	rules    []modelRule
	calls    []ModelCall
	Fallback string

	// Fail, when set, is returned from every Generate call.
	Fail error
}

type modelRule struct {
	pattern  string            // substring match against the last user message
	response string            // text response
	tools    []*ai.ToolRequest // tool requests to emit instead of plain text
}

// ModelCall records one call to Generate.
type ModelCall struct {
	Messages  []*ai.Message
	WithTools bool
	UserText  string // last user message text at call time
}

// NewMockModel creates a mock with the given fallback response.
func NewMockModel(fallback string) *MockModel {
	return &MockModel{Fallback: fallback}
}

// AddResponse registers a pattern that yields a plain text response.
// Patterns are checked in registration order; first match wins.
func (m *MockModel) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, modelRule{pattern: strings.ToLower(pattern), response: response})
}

// AddToolResponse registers a pattern that yields tool requests.
func (m *MockModel) AddToolResponse(pattern string, tools ...*ai.ToolRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, modelRule{pattern: strings.ToLower(pattern), tools: tools})
}

// Calls returns a copy of all recorded calls.
func (m *MockModel) Calls() []ModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]ModelCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Generate implements the assistant model client contract.
func (m *MockModel) Generate(_ context.Context, messages []*ai.Message, withTools bool) (*ai.ModelResponse, error) {
	var userText string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == ai.RoleUser {
			userText = messages[i].Text()
			break
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, ModelCall{
		Messages:  append([]*ai.Message(nil), messages...),
		WithTools: withTools,
		UserText:  userText,
	})

	if m.Fail != nil {
		return nil, m.Fail
	}

	lower := strings.ToLower(userText)
	for _, rule := range m.rules {
		if !strings.Contains(lower, rule.pattern) {
			continue
		}
		if len(rule.tools) > 0 {
			// Tool rules apply only when tools are offered; otherwise
			// later rules or the fallback answer the call.
			if !withTools {
				continue
			}
			parts := make([]*ai.Part, len(rule.tools))
			for i, tr := range rule.tools {
				parts[i] = &ai.Part{Kind: ai.PartToolRequest, ToolRequest: tr}
			}
			return &ai.ModelResponse{
				Message: &ai.Message{Role: ai.RoleModel, Content: parts},
			}, nil
		}
		return textResponse(rule.response), nil
	}

	return textResponse(m.Fallback), nil
}

func textResponse(text string) *ai.ModelResponse {
	return &ai.ModelResponse{
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: []*ai.Part{ai.NewTextPart(text)},
		},
	}
}
