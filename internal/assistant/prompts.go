package assistant

import (
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
)

// DefaultPersona is used when no persona description is configured.
const DefaultPersona = "an AI assistant"

// decidePrompt frames the decision turn: the model either answers
// directly or calls the portfolio search tool.
const decidePrompt = `You are {persona}, speaking in the first person on a personal portfolio website.

Answer visitor questions about your professional background. When a question
concerns your experiences, projects, skills, education or contact details,
call the ` + RetrievalToolName + ` tool to look up the facts before answering.
For greetings and small talk, answer directly without the tool.

Keep answers concise, factual and in the language of the visitor's question.
Never invent facts that are not in the retrieved information.`

// answerPrompt frames the final generation turn, carrying the retrieved
// evidence inside the system prompt.
const answerPrompt = `You are {persona}, speaking in the first person on a personal portfolio website.

Answer the visitor's question using the retrieved portfolio information
below. If the retrieved information does not cover the question, say so
honestly instead of guessing. Keep answers concise and in the language of
the visitor's question.

Retrieved portfolio information:

{context}`

// PromptBuilder renders system prompts for a configured persona. Safe for
// concurrent use; a reindex may update the persona while turns run.
type PromptBuilder struct {
	mu      sync.RWMutex
	persona string
}

// NewPromptBuilder creates a builder. An empty persona falls back to
// DefaultPersona.
func NewPromptBuilder(persona string) *PromptBuilder {
	persona = strings.TrimSpace(persona)
	if persona == "" {
		persona = DefaultPersona
	}
	return &PromptBuilder{persona: persona}
}

// SetPersona replaces the persona description, typically after a CMS
// refresh.
func (p *PromptBuilder) SetPersona(persona string) {
	persona = strings.TrimSpace(persona)
	if persona == "" {
		persona = DefaultPersona
	}
	p.mu.Lock()
	p.persona = persona
	p.mu.Unlock()
}

// DecideMessages prepends the decision system prompt to the history.
func (p *PromptBuilder) DecideMessages(history []*ai.Message) []*ai.Message {
	return prepend(p.render(decidePrompt), history)
}

// AnswerMessages prepends the answer system prompt, with the retrieved
// context folded in, to the history.
func (p *PromptBuilder) AnswerMessages(context string, history []*ai.Message) []*ai.Message {
	system := strings.ReplaceAll(p.render(answerPrompt), "{context}", context)
	return prepend(system, history)
}

func (p *PromptBuilder) render(template string) string {
	p.mu.RLock()
	persona := p.persona
	p.mu.RUnlock()
	return strings.ReplaceAll(template, "{persona}", persona)
}

func prepend(system string, history []*ai.Message) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(history)+1)
	msgs = append(msgs, &ai.Message{
		Role:    ai.RoleSystem,
		Content: []*ai.Part{ai.NewTextPart(system)},
	})
	return append(msgs, history...)
}
