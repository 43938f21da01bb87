package progress

import (
	"context"
	"log/slog"
	"sync"

	"github.com/veda-wellness/nutricert/internal/catalog"
)

// Store persists finalized topic completion; the single source of truth for
// anything gating-relevant.
type Store interface {
	IsCompleted(ctx context.Context, userID, topicCode string) (bool, error)
	CompletedTopics(ctx context.Context, userID string) (map[string]bool, error)
	SetCompleted(ctx context.Context, userID, topicCode string) error
	ClearCompleted(ctx context.Context, userID, topicCode string) error
}

// MemoryStore is an in-memory Store implementation for tests and development.
type MemoryStore struct {
	mu   sync.RWMutex
	done map[string]map[string]bool // userID -> topicCode -> completed
}

// NewMemoryStore creates a new in-memory completion store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{done: make(map[string]map[string]bool)}
}

func (s *MemoryStore) IsCompleted(_ context.Context, userID, topicCode string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done[userID][topicCode], nil
}

func (s *MemoryStore) CompletedTopics(_ context.Context, userID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.done[userID]))
	for code, v := range s.done[userID] {
		if v {
			out[code] = true
		}
	}
	return out, nil
}

func (s *MemoryStore) SetCompleted(_ context.Context, userID, topicCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done[userID] == nil {
		s.done[userID] = make(map[string]bool)
	}
	s.done[userID][topicCode] = true
	return nil
}

func (s *MemoryStore) ClearCompleted(_ context.Context, userID, topicCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.done[userID], topicCode)
	return nil
}

// Registry hands out trackers lazily, one per (trainee, topic), seeding each
// from the remote completion state on first use.
type Registry struct {
	store    Store
	mu       sync.Mutex
	trackers map[string]*Tracker
}

// NewRegistry creates a tracker registry backed by the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store:    store,
		trackers: make(map[string]*Tracker),
	}
}

// Tracker returns the tracker for a trainee/topic pair, creating it on first
// interaction. A failed remote read degrades to "not completed" rather than
// failing the request; the worst case is re-showing an already-passed gate.
func (r *Registry) Tracker(ctx context.Context, userID string, topic catalog.Topic) *Tracker {
	key := userID + "\x00" + topic.Code

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.trackers[key]; ok {
		return t
	}

	completed, err := r.store.IsCompleted(ctx, userID, topic.Code)
	if err != nil {
		slog.Warn("completion read failed, treating as not completed",
			"user_id", userID,
			"topic", topic.Code,
			"error", err,
		)
		completed = false
	}

	t := NewTracker(topic, userID, completed, r.store)
	r.trackers[key] = t
	return t
}

// Forget drops a cached tracker so the next interaction re-reads the remote
// truth. Used after completion changes made outside the tracker.
func (r *Registry) Forget(userID, topicCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, userID+"\x00"+topicCode)
}
