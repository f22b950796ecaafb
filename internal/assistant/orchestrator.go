// Package assistant orchestrates conversational turns for the portfolio
// assistant: prompt construction, the answer-or-search decision, tool
// execution and history cleanup.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/pauldeveaux/portfolio/internal/log"
	"github.com/pauldeveaux/portfolio/internal/memory"
)

// ModelClient is the language-model surface the orchestrator needs.
// withTools exposes the portfolio search tool and asks the model to
// either answer or request a tool call.
type ModelClient interface {
	Generate(ctx context.Context, messages []*ai.Message, withTools bool) (*ai.ModelResponse, error)
}

// turnState names the stations of one conversational turn.
type turnState int

const (
	stateSummarize turnState = iota
	stateDecide
	stateRetrieve
	stateGenerate
	stateEnd
)

// Orchestrator runs the turn state machine. One instance serves all
// sessions; per-session serialization comes from the session turn lock.
type Orchestrator struct {
	memory  *memory.Store
	model   ModelClient
	tool    *RetrievalTool
	prompts *PromptBuilder
	logger  log.Logger
}

// New creates an orchestrator.
func New(mem *memory.Store, model ModelClient, tool *RetrievalTool, prompts *PromptBuilder, logger log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Orchestrator{
		memory:  mem,
		model:   model,
		tool:    tool,
		prompts: prompts,
		logger:  logger,
	}
}

// Ask runs one full turn for the session: record the question, summarize
// old history if needed, let the model answer directly or via retrieval,
// and return the answer. Turns on the same session are serialized; the
// model's answer is returned verbatim, even when empty.
func (o *Orchestrator) Ask(ctx context.Context, sessionID, message string) (string, error) {
	sess := o.memory.Get(sessionID)
	sess.LockTurn()
	defer sess.UnlockTurn()

	sess.Append(&ai.Message{
		Role:    ai.RoleUser,
		Content: []*ai.Part{ai.NewTextPart(message)},
	})

	// Tool traffic is scoped to the turn. Cleanup runs on error paths
	// too, so a failed turn never leaves dangling tool messages.
	defer o.cleanup(sess)

	var answer string
	state := stateSummarize
	for state != stateEnd {
		var err error
		switch state {
		case stateSummarize:
			state, err = o.stepSummarize(ctx, sess)
		case stateDecide:
			state, answer, err = o.stepDecide(ctx, sess)
		case stateRetrieve:
			state, err = o.stepRetrieve(ctx, sess)
		case stateGenerate:
			state, answer, err = o.stepGenerate(ctx, sess)
		default:
			err = fmt.Errorf("%w: unknown state %d", ErrOrchestration, state)
		}
		if err != nil {
			return "", err
		}
	}

	sess.Append(&ai.Message{
		Role:    ai.RoleModel,
		Content: []*ai.Part{ai.NewTextPart(answer)},
	})
	return answer, nil
}

// stepSummarize compacts old history. Summarization failure degrades the
// turn instead of failing it; the full history still works, just longer.
func (o *Orchestrator) stepSummarize(ctx context.Context, sess *memory.Session) (turnState, error) {
	if err := o.memory.Summarize(ctx, sess); err != nil {
		o.logger.Warn("history summarization failed, continuing with full history",
			"session_id", sess.ID(), "error", err)
	}
	return stateDecide, nil
}

// stepDecide asks the model to answer directly or request the search
// tool. A direct answer ends the turn.
func (o *Orchestrator) stepDecide(ctx context.Context, sess *memory.Session) (turnState, string, error) {
	resp, err := o.model.Generate(ctx, o.prompts.DecideMessages(sess.Messages()), true)
	if err != nil {
		return stateEnd, "", fmt.Errorf("%w: decide: %v", ErrModelInvocation, err)
	}

	requests := resp.ToolRequests()
	if len(requests) == 0 {
		return stateEnd, resp.Text(), nil
	}

	if resp.Message != nil {
		sess.Append(resp.Message)
	}
	return stateRetrieve, "", nil
}

// stepRetrieve executes the requested tool calls and appends their
// responses. Only the registered search tool is honored. Cleanup runs
// every turn, so the only requests in the log are the ones the decide
// step just appended; each runs exactly once, Ref or not.
func (o *Orchestrator) stepRetrieve(ctx context.Context, sess *memory.Session) (turnState, error) {
	for _, msg := range sess.Messages() {
		for _, part := range msg.Content {
			if part.ToolRequest == nil {
				continue
			}
			req := part.ToolRequest
			if req.Name != o.tool.Name() {
				return stateEnd, fmt.Errorf("%w: model requested unknown tool %q", ErrOrchestration, req.Name)
			}

			question := toolQuestion(req)
			o.logger.Debug("running portfolio search", "session_id", sess.ID(), "question", question)

			output, chunks, err := o.tool.Run(ctx, question)
			if err != nil {
				return stateEnd, err
			}
			o.logger.Debug("portfolio search done", "session_id", sess.ID(), "chunks", len(chunks))
			sess.Append(&ai.Message{
				Role: ai.RoleTool,
				Content: []*ai.Part{ai.NewToolResponsePart(&ai.ToolResponse{
					Name:   req.Name,
					Ref:    req.Ref,
					Output: output,
				})},
			})
		}
	}
	return stateGenerate, nil
}

// stepGenerate produces the final answer. The retrieved evidence at the
// tail of the history moves into the system prompt as a context block,
// and tool traffic is stripped from the replayed messages, so the
// tool-less call carries plain text only.
func (o *Orchestrator) stepGenerate(ctx context.Context, sess *memory.Session) (turnState, string, error) {
	msgs := sess.Messages()
	evidence := trailingToolOutput(msgs)
	resp, err := o.model.Generate(ctx, o.prompts.AnswerMessages(evidence, stripToolTraffic(msgs)), false)
	if err != nil {
		return stateEnd, "", fmt.Errorf("%w: generate: %v", ErrModelInvocation, err)
	}
	return stateEnd, resp.Text(), nil
}

// cleanup strips tool traffic from the session log. Cleanup runs every
// turn, so only the current turn's traffic is ever present.
func (o *Orchestrator) cleanup(sess *memory.Session) {
	msgs := sess.Messages()
	kept := stripToolTraffic(msgs)
	if len(kept) != len(msgs) {
		sess.Replace(kept)
	}
}

// stripToolTraffic drops every message that carried a tool request or
// response, whole: decide-step commentary attached to a request goes
// with it.
func stripToolTraffic(msgs []*ai.Message) []*ai.Message {
	kept := make([]*ai.Message, 0, len(msgs))
	for _, msg := range msgs {
		if hasToolParts(msg) {
			continue
		}
		kept = append(kept, msg)
	}
	return kept
}

func hasToolParts(msg *ai.Message) bool {
	for _, part := range msg.Content {
		if part.ToolRequest != nil || part.ToolResponse != nil {
			return true
		}
	}
	return false
}

// trailingToolOutput concatenates the contiguous run of tool messages at
// the tail of the history, oldest first.
func trailingToolOutput(msgs []*ai.Message) string {
	start := len(msgs)
	for start > 0 && msgs[start-1].Role == ai.RoleTool {
		start--
	}

	var blocks []string
	for _, msg := range msgs[start:] {
		for _, part := range msg.Content {
			if part.ToolResponse == nil {
				continue
			}
			if out, ok := part.ToolResponse.Output.(string); ok && out != "" {
				blocks = append(blocks, out)
			}
		}
	}
	return strings.Join(blocks, "\n\n")
}

// toolQuestion extracts the search question from a tool request input,
// which arrives either as the structured input object or a bare string.
func toolQuestion(req *ai.ToolRequest) string {
	switch in := req.Input.(type) {
	case string:
		return in
	case map[string]any:
		if q, ok := in["question"].(string); ok {
			return q
		}
	case RetrievalToolInput:
		return in.Question
	case *RetrievalToolInput:
		if in != nil {
			return in.Question
		}
	}
	return fmt.Sprintf("%v", req.Input)
}
