// Package simulation runs live client-roleplay sessions: the AI plays a
// counselling client built from the topic material, the trainee practices
// the conversation, and a confirmed practice run is logged for the module
// gate.
package simulation

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// Turn is a single utterance in a simulation session.
type Turn struct {
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	Model        string    `json:"model,omitempty"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is one trainee's roleplay run against a topic persona.
type Session struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	TopicCode   string     `json:"topic_code"`
	Turns       []Turn     `json:"turns"`
	Summary     string     `json:"summary,omitempty"`
	CompactedAt int        `json:"compacted_at,omitempty"` // turns folded into Summary
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// SessionStore persists simulation sessions and their transcripts.
type SessionStore interface {
	CreateSession(ctx context.Context, s Session) (string, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	GetActiveSession(ctx context.Context, userID, topicCode string) (*Session, bool)
	AddTurn(ctx context.Context, sessionID string, turn Turn) error
	SetSummary(ctx context.Context, sessionID, summary string, compactedAt int) error
	EndSession(ctx context.Context, id string) error
}

// MemorySessionStore is an in-memory SessionStore implementation.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

func (s *MemorySessionStore) CreateSession(_ context.Context, sess Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := generateID()
	sess.ID = id
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	if sess.Turns == nil {
		sess.Turns = []Turn{}
	}
	s.sessions[id] = &sess
	return id, nil
}

func (s *MemorySessionStore) GetSession(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return sess, nil
}

func (s *MemorySessionStore) GetActiveSession(_ context.Context, userID, topicCode string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.TopicCode == topicCode && sess.EndedAt == nil {
			return sess, true
		}
	}
	return nil, false
}

func (s *MemorySessionStore) AddTurn(_ context.Context, sessionID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	sess.Turns = append(sess.Turns, turn)
	return nil
}

func (s *MemorySessionStore) SetSummary(_ context.Context, sessionID, summary string, compactedAt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	sess.Summary = summary
	sess.CompactedAt = compactedAt
	return nil
}

func (s *MemorySessionStore) EndSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	now := time.Now()
	sess.EndedAt = &now
	return nil
}

func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
