package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/veda-wellness/nutricert/internal/ai"
	"github.com/veda-wellness/nutricert/internal/catalog"
	"github.com/veda-wellness/nutricert/internal/records"
)

const (
	defaultCompactThreshold      = 20
	defaultCompactTokenThreshold = 20000 // ~20k estimated tokens triggers compaction
	defaultKeepRecent            = 6

	// fallbackReply keeps the client in character when the AI call fails.
	fallbackReply = "Sorry... I lost my train of thought for a moment. Could you say that again?"
)

// EngineConfig holds dependencies for the simulation engine.
type EngineConfig struct {
	AIRouter              *ai.Router
	Store                 SessionStore
	Records               records.Store
	CompactThreshold      int // turns before compaction triggers (default 20)
	CompactTokenThreshold int // estimated tokens before compaction triggers (default 20000)
	KeepRecent            int // recent turns to keep after compaction (default 6)
}

// Engine runs roleplay sessions: it keeps the transcript, asks the AI for
// the client's next utterance, and compacts long sessions into a running
// summary so prompts stay bounded.
type Engine struct {
	aiRouter              *ai.Router
	store                 SessionStore
	records               records.Store
	compactThreshold      int
	compactTokenThreshold int
	keepRecent            int
}

// NewEngine creates a new simulation engine.
func NewEngine(cfg EngineConfig) *Engine {
	store := cfg.Store
	if store == nil {
		store = NewMemorySessionStore()
	}
	rec := cfg.Records
	if rec == nil {
		rec = records.NewMemoryStore()
	}
	threshold := cfg.CompactThreshold
	if threshold == 0 {
		threshold = defaultCompactThreshold
	}
	tokenThreshold := cfg.CompactTokenThreshold
	if tokenThreshold == 0 {
		tokenThreshold = defaultCompactTokenThreshold
	}
	keepRecent := cfg.KeepRecent
	if keepRecent == 0 {
		keepRecent = defaultKeepRecent
	}
	return &Engine{
		aiRouter:              cfg.AIRouter,
		store:                 store,
		records:               rec,
		compactThreshold:      threshold,
		compactTokenThreshold: tokenThreshold,
		keepRecent:            keepRecent,
	}
}

// ClientReply records the trainee's utterance and returns the client's
// response. AI failures degrade to an in-character fallback so the session
// survives transient provider trouble.
func (e *Engine) ClientReply(ctx context.Context, userID string, topic catalog.Topic, text string) (string, error) {
	sess, err := e.getOrCreateSession(ctx, userID, topic.Code)
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}

	if err := e.store.AddTurn(ctx, sess.ID, Turn{Role: "user", Content: text}); err != nil {
		slog.Error("failed to store trainee turn", "session_id", sess.ID, "error", err)
	}

	sess, err = e.store.GetSession(ctx, sess.ID)
	if err != nil {
		return "", fmt.Errorf("reload session: %w", err)
	}

	e.maybeCompact(ctx, userID, sess)

	messages := []ai.Message{{Role: "system", Content: buildPersonaPrompt(topic)}}
	messages = append(messages, e.buildContextMessages(sess)...)

	resp, err := e.aiRouter.Complete(ctx, ai.CompletionRequest{
		Messages:  messages,
		Task:      ai.TaskSimulation,
		MaxTokens: 1024,
		TraineeID: userID,
	})
	if err != nil {
		slog.Error("simulation completion failed", "session_id", sess.ID, "error", err)
		return fallbackReply, nil
	}

	if err := e.store.AddTurn(ctx, sess.ID, Turn{
		Role:         "assistant",
		Content:      resp.Content,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}); err != nil {
		slog.Error("failed to store client turn", "session_id", sess.ID, "error", err)
	}

	return resp.Content, nil
}

// ConfirmPracticed ends the active session and logs the practice run under
// the given scoped code so the module gate can see it. The log entry is
// append-only; confirming twice is harmless.
func (e *Engine) ConfirmPracticed(ctx context.Context, userID, topicCode, recordCode string) error {
	if sess, found := e.store.GetActiveSession(ctx, userID, topicCode); found {
		if err := e.store.EndSession(ctx, sess.ID); err != nil {
			slog.Error("failed to end session", "session_id", sess.ID, "error", err)
		}
	}
	if err := e.records.LogSimulation(ctx, userID, recordCode); err != nil {
		return fmt.Errorf("log simulation: %w", err)
	}
	return nil
}

// Transcript returns the active session's turns, if any.
func (e *Engine) Transcript(ctx context.Context, userID, topicCode string) ([]Turn, bool) {
	sess, found := e.store.GetActiveSession(ctx, userID, topicCode)
	if !found {
		return nil, false
	}
	return sess.Turns, true
}

func (e *Engine) getOrCreateSession(ctx context.Context, userID, topicCode string) (*Session, error) {
	if sess, found := e.store.GetActiveSession(ctx, userID, topicCode); found {
		return sess, nil
	}
	id, err := e.store.CreateSession(ctx, Session{UserID: userID, TopicCode: topicCode})
	if err != nil {
		return nil, err
	}
	return e.store.GetSession(ctx, id)
}

// buildContextMessages returns the transcript for the AI prompt. If a
// summary exists it stands in for the compacted prefix.
func (e *Engine) buildContextMessages(sess *Session) []ai.Message {
	var messages []ai.Message

	if sess.Summary != "" {
		messages = append(messages, ai.Message{
			Role:    "user",
			Content: "Summary of the conversation so far:\n" + sess.Summary,
		})
		messages = append(messages, ai.Message{
			Role:    "assistant",
			Content: "Okay, I remember where we were.",
		})
		for _, turn := range sess.Turns[sess.CompactedAt:] {
			messages = append(messages, ai.Message{Role: turn.Role, Content: turn.Content})
		}
	} else {
		for _, turn := range sess.Turns {
			messages = append(messages, ai.Message{Role: turn.Role, Content: turn.Content})
		}
	}

	return messages
}

// estimateTokens gives a rough token count for turns (1 token ≈ 4 chars).
func estimateTokens(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += len(t.Content) / 4
	}
	return total
}

// maybeCompact summarizes older turns when the session grows past the turn
// or token threshold, keeping the most recent turns verbatim.
func (e *Engine) maybeCompact(ctx context.Context, userID string, sess *Session) {
	uncompacted := sess.Turns[sess.CompactedAt:]
	if len(uncompacted) <= e.compactThreshold && estimateTokens(uncompacted) <= e.compactTokenThreshold {
		return
	}

	compactUpTo := len(sess.Turns) - e.keepRecent
	if compactUpTo <= sess.CompactedAt {
		return
	}

	toSummarize := sess.Turns[sess.CompactedAt:compactUpTo]

	var content strings.Builder
	if sess.Summary != "" {
		content.WriteString("Previous summary:\n")
		content.WriteString(sess.Summary)
		content.WriteString("\n\nNew turns to incorporate:\n")
	}
	for _, turn := range toSummarize {
		role := "Counsellor"
		if turn.Role == "assistant" {
			role = "Client"
		}
		content.WriteString(fmt.Sprintf("%s: %s\n", role, turn.Content))
	}

	resp, err := e.aiRouter.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: `Summarize this counselling roleplay concisely. Capture:
- The client's situation, goals and concerns raised so far
- Advice the counsellor has given
- Anything the client agreed or refused to do
Keep the summary under 150 words.`},
			{Role: "user", Content: content.String()},
		},
		Task:      ai.TaskAnalysis,
		MaxTokens: 256,
		TraineeID: userID,
	})
	if err != nil {
		slog.Warn("compaction failed, continuing without summary", "error", err)
		return
	}

	if err := e.store.SetSummary(ctx, sess.ID, resp.Content, compactUpTo); err != nil {
		slog.Warn("failed to save summary", "error", err)
		return
	}

	sess.Summary = resp.Content
	sess.CompactedAt = compactUpTo

	slog.Info("session compacted",
		"session_id", sess.ID,
		"compacted_turns", compactUpTo,
		"remaining_turns", len(sess.Turns)-compactUpTo,
	)
}

func buildPersonaPrompt(topic catalog.Topic) string {
	var b strings.Builder
	b.WriteString(`You are roleplaying a client in a nutrition counselling practice session. The trainee counsellor is practicing the topic below. Stay fully in character as the client.

RULES:
- Speak only as the client; never coach, grade or break character
- Raise realistic doubts, habits and constraints a real client would have
- Answer questions honestly but do not volunteer everything at once
- Keep replies conversational and short, this is a chat
- If the counsellor gives unsafe or clearly wrong advice, react as a confused client would, not as an expert

`)
	b.WriteString("TOPIC: ")
	b.WriteString(topic.Title)
	b.WriteString("\n\nMATERIAL THE COUNSELLOR IS PRACTICING:\n")
	b.WriteString(topic.Content)
	if topic.Assignment != nil && topic.Assignment.ExamplePersona != "" {
		b.WriteString("\n\nPLAY THIS CLIENT:\n")
		b.WriteString(topic.Assignment.ExamplePersona)
	}
	return b.String()
}
