// Package memory keeps per-session conversation history with periodic
// summarization to bound token growth.
//
// Sessions are keyed by caller-supplied session id and created on first
// use. Each session carries a turn lock: the orchestrator holds it for a
// whole turn, so turns on one session never interleave while distinct
// sessions proceed in parallel.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"

	"github.com/pauldeveaux/portfolio/internal/log"
)

// Summarizer condenses a conversation transcript into a short summary.
// Wired to the chat model in the application bootstrap.
type Summarizer func(ctx context.Context, transcript string) (string, error)

// summaryMetaKey marks the synthesized summary message so a later
// summarization pass can fold it into the next summary.
const summaryMetaKey = "conversation_summary"

// Config holds memory settings.
type Config struct {
	// MaxHistoryTokens is the soft budget that triggers summarization.
	// Token counts are estimates, not exact model tokenization.
	MaxHistoryTokens int

	// KeepRecentTokens bounds the tail of messages preserved verbatim
	// when older history is summarized.
	KeepRecentTokens int
}

func (c *Config) applyDefaults() {
	if c.MaxHistoryTokens <= 0 {
		c.MaxHistoryTokens = 2000
	}
	if c.KeepRecentTokens <= 0 || c.KeepRecentTokens >= c.MaxHistoryTokens {
		c.KeepRecentTokens = c.MaxHistoryTokens / 2
	}
}

// Session is one conversation's ordered message log.
//
// The message log is guarded separately from the turn lock, so readers can
// snapshot messages while another goroutine holds the turn.
type Session struct {
	id string

	turnMu sync.Mutex

	mu       sync.RWMutex
	messages []*ai.Message
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// LockTurn serializes turns on this session. The orchestrator holds the
// lock from Start through End.
func (s *Session) LockTurn() { s.turnMu.Lock() }

// UnlockTurn releases the turn lock.
func (s *Session) UnlockTurn() { s.turnMu.Unlock() }

// Append adds messages to the tail of the log.
func (s *Session) Append(msgs ...*ai.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
}

// Messages returns a copy of the log for thread-safe reading.
func (s *Session) Messages() []*ai.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ai.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Replace swaps the whole log, used by summarization and cleanup.
func (s *Session) Replace(msgs []*ai.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]*ai.Message, len(msgs))
	copy(s.messages, msgs)
}

// Store holds all sessions, keyed by session id.
//
// Sessions live in process memory; the id keying means a durable backing
// store could substitute without changing callers.
type Store struct {
	cfg       Config
	summarize Summarizer
	logger    log.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates a session store. summarize may be nil, which disables
// summarization (history grows unbounded).
func NewStore(cfg Config, summarize Summarizer, logger log.Logger) *Store {
	cfg.applyDefaults()
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		cfg:       cfg,
		summarize: summarize,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// Get returns the session for id, creating it on first use.
func (st *Store) Get(id string) *Session {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return sess
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok = st.sessions[id]; ok {
		return sess
	}
	sess = &Session{id: id}
	st.sessions[id] = sess
	return sess
}

// Summarize replaces the oldest messages of sess with a single synthesized
// summary message once the token estimate exceeds the configured budget.
// The most recent messages stay verbatim, and the latest human message is
// never dropped. An existing summary message is folded into the new one.
func (st *Store) Summarize(ctx context.Context, sess *Session) error {
	if st.summarize == nil {
		return nil
	}

	msgs := sess.Messages()
	if estimateMessagesTokens(msgs) <= st.cfg.MaxHistoryTokens {
		return nil
	}

	split := st.splitIndex(msgs)
	if split <= 0 {
		return nil
	}

	transcript := renderTranscript(msgs[:split])
	summary, err := st.summarize(ctx, transcript)
	if err != nil {
		return fmt.Errorf("summarizing session %q: %w", sess.ID(), err)
	}

	condensed := make([]*ai.Message, 0, len(msgs)-split+1)
	condensed = append(condensed, summaryMessage(summary))
	condensed = append(condensed, msgs[split:]...)
	sess.Replace(condensed)

	st.logger.Debug("session history summarized",
		"session_id", sess.ID(),
		"summarized_messages", split,
		"kept_messages", len(msgs)-split)
	return nil
}

// splitIndex chooses how many leading messages to summarize: the tail is
// kept verbatim up to KeepRecentTokens, extended backwards if needed so the
// latest human message survives.
func (st *Store) splitIndex(msgs []*ai.Message) int {
	split := len(msgs)
	budget := st.cfg.KeepRecentTokens
	for split > 0 {
		tokens := estimateMessageTokens(msgs[split-1])
		if tokens > budget {
			break
		}
		budget -= tokens
		split--
	}

	// Never summarize away the current turn's human message.
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == ai.RoleUser {
			if i < split {
				split = i
			}
			break
		}
	}
	return split
}

func summaryMessage(summary string) *ai.Message {
	return &ai.Message{
		Role:     ai.RoleSystem,
		Content:  []*ai.Part{ai.NewTextPart("Summary of the conversation so far: " + summary)},
		Metadata: map[string]any{summaryMetaKey: true},
	}
}

// IsSummary reports whether msg is a synthesized summary message.
func IsSummary(msg *ai.Message) bool {
	if msg == nil || msg.Metadata == nil {
		return false
	}
	marked, _ := msg.Metadata[summaryMetaKey].(bool)
	return marked
}

// renderTranscript flattens messages into "role: text" lines for the
// summarizer prompt.
func renderTranscript(msgs []*ai.Message) string {
	var b strings.Builder
	for _, msg := range msgs {
		text := msg.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}
