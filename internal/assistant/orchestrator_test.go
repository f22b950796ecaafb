package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/pauldeveaux/portfolio/internal/document"
	"github.com/pauldeveaux/portfolio/internal/memory"
	"github.com/pauldeveaux/portfolio/internal/store"
	"github.com/pauldeveaux/portfolio/internal/testutil"
)

// fakeRetriever returns canned chunks per query substring.
type fakeRetriever struct {
	mu      sync.Mutex
	chunks  []document.Chunk
	err     error
	queries []string
}

func (r *fakeRetriever) SimilaritySearch(_ context.Context, query string, _ int) (store.RetrievalResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	if r.err != nil {
		return store.RetrievalResult{}, r.err
	}
	scores := make([]float32, len(r.chunks))
	for i := range scores {
		scores[i] = 0.9
	}
	return store.RetrievalResult{Chunks: r.chunks, Scores: scores}, nil
}

func newTestOrchestrator(model ModelClient, retriever Retriever) (*Orchestrator, *memory.Store) {
	mem := memory.NewStore(memory.Config{}, nil, nil)
	tool := NewRetrievalTool(retriever, 0)
	prompts := NewPromptBuilder("Paul, a software engineer")
	return New(mem, model, tool, prompts, nil), mem
}

func TestAskDirectAnswer(t *testing.T) {
	model := testutil.NewMockModel("fallback")
	model.AddResponse("hello", "Hi! Ask me anything about my work.")

	orch, mem := newTestOrchestrator(model, &fakeRetriever{})

	answer, err := orch.Ask(context.Background(), "s1", "hello there")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "Hi! Ask me anything about my work." {
		t.Errorf("answer = %q", answer)
	}

	msgs := mem.Get("s1").Messages()
	if len(msgs) != 2 {
		t.Fatalf("history = %d messages, want user + model", len(msgs))
	}
	if msgs[0].Role != ai.RoleUser || msgs[1].Role != ai.RoleModel {
		t.Errorf("history roles = %v, %v", msgs[0].Role, msgs[1].Role)
	}

	calls := model.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
	if !calls[0].WithTools {
		t.Error("decide call did not offer tools")
	}
	if sys := calls[0].Messages[0]; sys.Role != ai.RoleSystem || !strings.Contains(sys.Text(), "Paul, a software engineer") {
		t.Errorf("first message is not the persona system prompt: %v %q", sys.Role, sys.Text())
	}
}

func TestAskToolPath(t *testing.T) {
	model := testutil.NewMockModel("I built several Go services.")
	model.AddToolResponse("projects", &ai.ToolRequest{
		Name:  RetrievalToolName,
		Ref:   "call-1",
		Input: map[string]any{"question": "projects"},
	})

	retriever := &fakeRetriever{chunks: []document.Chunk{
		{Text: "Built a portfolio chatbot.", Title: "Projects", DocumentID: "proj_1"},
	}}
	orch, mem := newTestOrchestrator(model, retriever)

	answer, err := orch.Ask(context.Background(), "s1", "tell me about your projects")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "I built several Go services." {
		t.Errorf("answer = %q", answer)
	}

	if len(retriever.queries) != 1 || retriever.queries[0] != "projects" {
		t.Errorf("retriever queries = %v", retriever.queries)
	}

	calls := model.Calls()
	if len(calls) != 2 {
		t.Fatalf("model calls = %d, want decide + generate", len(calls))
	}
	if calls[1].WithTools {
		t.Error("generate call offered tools")
	}
	// The answer step carries the retrieved evidence inside the system
	// prompt, and the tool-less call replays plain text only.
	sys := calls[1].Messages[0]
	if sys.Role != ai.RoleSystem || !strings.Contains(sys.Text(), "Built a portfolio chatbot.") {
		t.Errorf("generate system prompt missing retrieved evidence: %q", sys.Text())
	}
	if !strings.Contains(sys.Text(), "Source: Projects") {
		t.Errorf("generate system prompt missing evidence source: %q", sys.Text())
	}
	for _, msg := range calls[1].Messages {
		for _, part := range msg.Content {
			if part.ToolRequest != nil || part.ToolResponse != nil {
				t.Errorf("tool traffic in generate call: %+v", part)
			}
		}
	}

	// Cleanup leaves only plain user and model text in history.
	for _, msg := range mem.Get("s1").Messages() {
		for _, part := range msg.Content {
			if part.ToolRequest != nil || part.ToolResponse != nil {
				t.Errorf("tool traffic left in history: %+v", part)
			}
		}
	}
}

func TestAskUnknownToolFails(t *testing.T) {
	model := testutil.NewMockModel("fallback")
	model.AddToolResponse("weather", &ai.ToolRequest{Name: "getWeather", Ref: "r1", Input: "Paris"})

	orch, mem := newTestOrchestrator(model, &fakeRetriever{})

	_, err := orch.Ask(context.Background(), "s1", "what is the weather")
	if !errors.Is(err, ErrOrchestration) {
		t.Fatalf("err = %v, want ErrOrchestration", err)
	}

	// The failed turn must not leave tool traffic behind.
	for _, msg := range mem.Get("s1").Messages() {
		for _, part := range msg.Content {
			if part.ToolRequest != nil || part.ToolResponse != nil {
				t.Errorf("tool traffic left after failed turn: %+v", part)
			}
		}
	}
}

func TestAskRunsEveryReflessToolCall(t *testing.T) {
	model := testutil.NewMockModel("Here is what I found.")
	model.AddToolResponse("background",
		&ai.ToolRequest{Name: RetrievalToolName, Input: map[string]any{"question": "work experience"}},
		&ai.ToolRequest{Name: RetrievalToolName, Input: map[string]any{"question": "education"}},
	)

	retriever := &fakeRetriever{chunks: []document.Chunk{
		{Text: "Engineer since 2018.", Title: "Background"},
	}}
	orch, mem := newTestOrchestrator(model, retriever)

	if _, err := orch.Ask(context.Background(), "s1", "tell me about your background"); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	// Both requests run even though neither carries a ref.
	if len(retriever.queries) != 2 {
		t.Fatalf("retriever queries = %v, want both questions", retriever.queries)
	}
	if retriever.queries[0] != "work experience" || retriever.queries[1] != "education" {
		t.Errorf("retriever queries = %v", retriever.queries)
	}

	calls := model.Calls()
	if len(calls) != 2 {
		t.Fatalf("model calls = %d, want decide + generate", len(calls))
	}
	sys := calls[1].Messages[0].Text()
	if strings.Count(sys, "Engineer since 2018.") != 2 {
		t.Errorf("generate system prompt does not carry both tool outputs: %q", sys)
	}

	for _, msg := range mem.Get("s1").Messages() {
		for _, part := range msg.Content {
			if part.ToolRequest != nil || part.ToolResponse != nil {
				t.Errorf("tool traffic left in history: %+v", part)
			}
		}
	}
}

// scriptedModel replays canned responses in call order, reusing the last
// one once the script runs out.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*ai.ModelResponse
	calls     int
}

func (m *scriptedModel) Generate(_ context.Context, _ []*ai.Message, _ bool) (*ai.ModelResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := min(m.calls, len(m.responses)-1)
	m.calls++
	return m.responses[i], nil
}

func TestAskDropsDecideCommentaryWithToolRequest(t *testing.T) {
	model := &scriptedModel{responses: []*ai.ModelResponse{
		{Message: &ai.Message{Role: ai.RoleModel, Content: []*ai.Part{
			ai.NewTextPart("Let me look that up."),
			{Kind: ai.PartToolRequest, ToolRequest: &ai.ToolRequest{
				Name:  RetrievalToolName,
				Input: map[string]any{"question": "projects"},
			}},
		}}},
		{Message: &ai.Message{Role: ai.RoleModel, Content: []*ai.Part{
			ai.NewTextPart("I built a chatbot."),
		}}},
	}}

	retriever := &fakeRetriever{chunks: []document.Chunk{{Text: "Chatbot.", Title: "Projects"}}}
	orch, mem := newTestOrchestrator(model, retriever)

	answer, err := orch.Ask(context.Background(), "s1", "projects?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "I built a chatbot." {
		t.Errorf("answer = %q", answer)
	}

	// The message that issued the tool request goes whole, commentary
	// text included.
	msgs := mem.Get("s1").Messages()
	if len(msgs) != 2 {
		t.Fatalf("history = %d messages, want user + answer", len(msgs))
	}
	for _, msg := range msgs {
		if strings.Contains(msg.Text(), "Let me look that up.") {
			t.Errorf("decide commentary persisted: %q", msg.Text())
		}
	}
}

func TestAskToolFailure(t *testing.T) {
	model := testutil.NewMockModel("fallback")
	model.AddToolResponse("skills", &ai.ToolRequest{
		Name:  RetrievalToolName,
		Ref:   "r1",
		Input: map[string]any{"question": "skills"},
	})

	retriever := &fakeRetriever{err: errors.New("index offline")}
	orch, _ := newTestOrchestrator(model, retriever)

	_, err := orch.Ask(context.Background(), "s1", "what are your skills")
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("err = %v, want ErrToolExecution", err)
	}
}

func TestAskModelFailure(t *testing.T) {
	model := testutil.NewMockModel("")
	model.Fail = errors.New("quota exceeded")

	orch, _ := newTestOrchestrator(model, &fakeRetriever{})

	_, err := orch.Ask(context.Background(), "s1", "hello")
	if !errors.Is(err, ErrModelInvocation) {
		t.Fatalf("err = %v, want ErrModelInvocation", err)
	}
}

func TestAskEmptyAnswerReturnedVerbatim(t *testing.T) {
	model := testutil.NewMockModel("")
	orch, _ := newTestOrchestrator(model, &fakeRetriever{})

	answer, err := orch.Ask(context.Background(), "s1", "anything")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "" {
		t.Errorf("answer = %q, want empty string passed through", answer)
	}
}

func TestAskConcurrentSessionsDoNotInterleave(t *testing.T) {
	model := testutil.NewMockModel("ok")
	orch, mem := newTestOrchestrator(model, &fakeRetriever{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", i)
			for j := 0; j < 10; j++ {
				if _, err := orch.Ask(context.Background(), id, fmt.Sprintf("question %d", j)); err != nil {
					t.Errorf("Ask(%s): %v", id, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		msgs := mem.Get(fmt.Sprintf("session-%d", i)).Messages()
		if len(msgs) != 20 {
			t.Errorf("session %d history = %d messages, want 20", i, len(msgs))
			continue
		}
		for j, msg := range msgs {
			wantRole := ai.RoleUser
			if j%2 == 1 {
				wantRole = ai.RoleModel
			}
			if msg.Role != wantRole {
				t.Errorf("session %d message %d role = %v, want %v", i, j, msg.Role, wantRole)
			}
		}
	}
}

func TestRetrievalToolFormatsHits(t *testing.T) {
	retriever := &fakeRetriever{chunks: []document.Chunk{
		{Text: "Go, Python, SQL.", Title: "Skills"},
		{Text: "5 years at Acme.", Category: "experiences"},
	}}
	tool := NewRetrievalTool(retriever, 3)

	out, chunks, err := tool.Run(context.Background(), "skills")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "Source: Skills\nContent: Go, Python, SQL.\n\nSource: experiences\nContent: 5 years at Acme."
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if len(chunks) != 2 {
		t.Errorf("chunks = %d, want 2", len(chunks))
	}
}

func TestRetrievalToolNoHits(t *testing.T) {
	tool := NewRetrievalTool(&fakeRetriever{}, 0)
	out, _, err := tool.Run(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "No relevant information") {
		t.Errorf("output = %q", out)
	}
}

func TestPromptBuilderDefaultPersona(t *testing.T) {
	p := NewPromptBuilder("  ")
	msgs := p.DecideMessages(nil)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1 system message", len(msgs))
	}
	if !strings.Contains(msgs[0].Text(), DefaultPersona) {
		t.Errorf("system prompt = %q, want default persona", msgs[0].Text())
	}

	p.SetPersona("Jane, a data scientist")
	got := p.AnswerMessages("Source: Skills\nContent: Go.", nil)[0].Text()
	if !strings.Contains(got, "Jane, a data scientist") {
		t.Errorf("system prompt after SetPersona = %q", got)
	}
	if !strings.Contains(got, "Source: Skills\nContent: Go.") {
		t.Errorf("system prompt missing retrieved context: %q", got)
	}
}
