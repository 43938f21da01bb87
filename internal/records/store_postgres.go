package records

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

// NewPostgresStore creates a PostgreSQL-backed record store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) HasAssessment(ctx context.Context, userID, code string) (bool, error) {
	return s.exists(ctx, "assessment_results", userID, code)
}

func (s *PostgresStore) LogAssessment(ctx context.Context, result AssessmentResult) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO assessment_results (user_id, code, score, total, created_at)
		 VALUES ($1::uuid, $2, $3, $4, $5)
		 ON CONFLICT (user_id, code) DO NOTHING`,
		result.UserID,
		result.Code,
		result.Score,
		result.Total,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("log assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasSimulation(ctx context.Context, userID, code string) (bool, error) {
	return s.exists(ctx, "simulation_attempts", userID, code)
}

func (s *PostgresStore) LogSimulation(ctx context.Context, userID, code string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO simulation_attempts (user_id, code)
		 VALUES ($1::uuid, $2)
		 ON CONFLICT (user_id, code) DO NOTHING`,
		userID,
		code,
	)
	if err != nil {
		return fmt.Errorf("log simulation: %w", err)
	}
	return nil
}

func (s *PostgresStore) exists(ctx context.Context, table, userID, code string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var found bool
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (
		   SELECT 1 FROM %s WHERE user_id = $1::uuid AND code = $2
		 )`, table),
		userID,
		code,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", table, err)
	}
	return found, nil
}
