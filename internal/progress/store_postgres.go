package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed completion store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) IsCompleted(ctx context.Context, userID, topicCode string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM topic_progress
		   WHERE user_id = $1::uuid AND topic_code = $2
		 )`,
		userID,
		topicCode,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completion: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) CompletedTopics(ctx context.Context, userID string) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT topic_code FROM topic_progress WHERE user_id = $1::uuid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query completed topics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan topic code: %w", err)
		}
		out[code] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed topics: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SetCompleted(ctx context.Context, userID, topicCode string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO topic_progress (user_id, topic_code, completed_at)
		 VALUES ($1::uuid, $2, NOW())
		 ON CONFLICT (user_id, topic_code) DO NOTHING`,
		userID,
		topicCode,
	)
	if err != nil {
		return fmt.Errorf("set completed: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearCompleted(ctx context.Context, userID, topicCode string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`DELETE FROM topic_progress
		 WHERE user_id = $1::uuid AND topic_code = $2`,
		userID,
		topicCode,
	)
	if err != nil {
		return fmt.Errorf("clear completed: %w", err)
	}
	return nil
}
