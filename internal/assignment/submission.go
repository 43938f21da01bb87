package assignment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Submission is one completed peer-audit, stored append-only. A trainee has
// at most one submission per topic; the first write wins.
type Submission struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	TopicCode      string     `json:"topic_code"`
	PersonaName    string     `json:"persona_name"`
	PersonaStory   string     `json:"persona_story"`
	PeerCompanies  []string   `json:"peer_companies"`
	PeerDieticians []string   `json:"peer_dieticians"`
	Answers        [][]string `json:"answers"`
	SubmittedAt    time.Time  `json:"submitted_at"`
}

// SubmissionStore persists completed peer-audits.
type SubmissionStore interface {
	Save(ctx context.Context, sub Submission) error
	Get(ctx context.Context, userID, topicCode string) (Submission, bool, error)
	All(ctx context.Context) ([]Submission, error)
}

// MemorySubmissionStore is an in-memory SubmissionStore for tests and
// development.
type MemorySubmissionStore struct {
	mu   sync.RWMutex
	subs map[string]Submission
}

// NewMemorySubmissionStore creates an empty in-memory submission store.
func NewMemorySubmissionStore() *MemorySubmissionStore {
	return &MemorySubmissionStore{subs: make(map[string]Submission)}
}

func subKey(userID, topicCode string) string {
	return userID + "\x00" + topicCode
}

func (s *MemorySubmissionStore) Save(_ context.Context, sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := subKey(sub.UserID, sub.TopicCode)
	if _, ok := s.subs[k]; ok {
		return nil // immutable, first write wins
	}
	s.subs[k] = sub
	return nil
}

func (s *MemorySubmissionStore) Get(_ context.Context, userID, topicCode string) (Submission, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[subKey(userID, topicCode)]
	return sub, ok, nil
}

func (s *MemorySubmissionStore) All(_ context.Context) ([]Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Submission, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out, nil
}

const dbTimeout = 5 * time.Second

// PostgresSubmissionStore is a PostgreSQL-backed SubmissionStore.
type PostgresSubmissionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSubmissionStore creates a PostgreSQL-backed submission store.
func NewPostgresSubmissionStore(pool *pgxpool.Pool) (*PostgresSubmissionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresSubmissionStore{pool: pool}, nil
}

func (s *PostgresSubmissionStore) Save(ctx context.Context, sub Submission) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO assignment_submissions
		   (id, user_id, topic_code, persona_name, persona_story,
		    peer_companies, peer_dieticians, answers, submitted_at)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, topic_code) DO NOTHING`,
		sub.ID,
		sub.UserID,
		sub.TopicCode,
		sub.PersonaName,
		sub.PersonaStory,
		sub.PeerCompanies,
		sub.PeerDieticians,
		sub.Answers,
		sub.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (s *PostgresSubmissionStore) Get(ctx context.Context, userID, topicCode string) (Submission, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var sub Submission
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, user_id::text, topic_code, persona_name, persona_story,
		        peer_companies, peer_dieticians, answers, submitted_at
		 FROM assignment_submissions
		 WHERE user_id = $1::uuid AND topic_code = $2`,
		userID,
		topicCode,
	).Scan(
		&sub.ID, &sub.UserID, &sub.TopicCode, &sub.PersonaName, &sub.PersonaStory,
		&sub.PeerCompanies, &sub.PeerDieticians, &sub.Answers, &sub.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Submission{}, false, nil
		}
		return Submission{}, false, fmt.Errorf("get submission: %w", err)
	}
	return sub, true, nil
}

func (s *PostgresSubmissionStore) All(ctx context.Context) ([]Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, user_id::text, topic_code, persona_name, persona_story,
		        peer_companies, peer_dieticians, answers, submitted_at
		 FROM assignment_submissions
		 ORDER BY submitted_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.TopicCode, &sub.PersonaName, &sub.PersonaStory,
			&sub.PeerCompanies, &sub.PeerDieticians, &sub.Answers, &sub.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return out, nil
}
