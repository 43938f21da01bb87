// Package records keeps the append-only existence logs consulted by the
// module gate: terminal assessment results and standalone simulation
// attempts, each keyed by (trainee, scoped code). Records are never revoked;
// an assessment pass is one-way even if topics are later un-completed.
package records

import (
	"context"
	"sync"
	"time"
)

// AssessmentResult is one logged terminal assessment attempt.
type AssessmentResult struct {
	UserID    string    `json:"user_id"`
	Code      string    `json:"code"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists assessment results and simulation attempts.
type Store interface {
	HasAssessment(ctx context.Context, userID, code string) (bool, error)
	LogAssessment(ctx context.Context, result AssessmentResult) error
	HasSimulation(ctx context.Context, userID, code string) (bool, error)
	LogSimulation(ctx context.Context, userID, code string) error
}

// MemoryStore is an in-memory Store implementation for tests and development.
type MemoryStore struct {
	mu          sync.RWMutex
	assessments map[string]AssessmentResult
	simulations map[string]time.Time
}

// NewMemoryStore creates a new in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assessments: make(map[string]AssessmentResult),
		simulations: make(map[string]time.Time),
	}
}

func key(userID, code string) string {
	return userID + "\x00" + code
}

func (s *MemoryStore) HasAssessment(_ context.Context, userID, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.assessments[key(userID, code)]
	return ok, nil
}

func (s *MemoryStore) LogAssessment(_ context.Context, result AssessmentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(result.UserID, result.Code)
	if _, ok := s.assessments[k]; ok {
		return nil // append-only, first write wins
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	s.assessments[k] = result
	return nil
}

func (s *MemoryStore) HasSimulation(_ context.Context, userID, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.simulations[key(userID, code)]
	return ok, nil
}

func (s *MemoryStore) LogSimulation(_ context.Context, userID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(userID, code)
	if _, ok := s.simulations[k]; !ok {
		s.simulations[k] = time.Now()
	}
	return nil
}
