package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresSessionStore is a PostgreSQL-backed SessionStore implementation.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSessionStore creates a PostgreSQL-backed session store.
func NewPostgresSessionStore(pool *pgxpool.Pool) (*PostgresSessionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresSessionStore{pool: pool}, nil
}

func (s *PostgresSessionStore) CreateSession(ctx context.Context, sess Session) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if sess.UserID == "" {
		return "", fmt.Errorf("user_id is required")
	}

	startedAt := sess.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sim_sessions (user_id, topic_code, started_at)
		 VALUES ($1::uuid, $2, $3)
		 RETURNING id::text`,
		sess.UserID,
		sess.TopicCode,
		startedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	for _, turn := range sess.Turns {
		if err := s.AddTurn(ctx, id, turn); err != nil {
			return "", fmt.Errorf("save initial turns: %w", err)
		}
	}
	return id, nil
}

func (s *PostgresSessionStore) GetSession(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sess, err := s.getSessionByQuery(ctx,
		`SELECT id::text, user_id::text, topic_code, metadata, started_at, ended_at
		 FROM sim_sessions
		 WHERE id = $1::uuid
		 LIMIT 1`,
		id,
	)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT role, content, model, input_tokens, output_tokens, created_at
		 FROM sim_turns
		 WHERE session_id = $1::uuid
		 ORDER BY created_at ASC, id ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var turn Turn
		var model *string
		var inputTokens, outputTokens *int
		if err := rows.Scan(
			&turn.Role,
			&turn.Content,
			&model,
			&inputTokens,
			&outputTokens,
			&turn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if model != nil {
			turn.Model = *model
		}
		if inputTokens != nil {
			turn.InputTokens = *inputTokens
		}
		if outputTokens != nil {
			turn.OutputTokens = *outputTokens
		}
		sess.Turns = append(sess.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	return sess, nil
}

func (s *PostgresSessionStore) GetActiveSession(ctx context.Context, userID, topicCode string) (*Session, bool) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sess, err := s.getSessionByQuery(ctx,
		`SELECT id::text, user_id::text, topic_code, metadata, started_at, ended_at
		 FROM sim_sessions
		 WHERE user_id = $1::uuid
		   AND topic_code = $2
		   AND ended_at IS NULL
		 ORDER BY started_at DESC
		 LIMIT 1`,
		userID,
		topicCode,
	)
	if err != nil {
		return nil, false
	}

	full, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		return nil, false
	}
	return full, true
}

func (s *PostgresSessionStore) AddTurn(ctx context.Context, sessionID string, turn Turn) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if turn.Role == "" {
		return fmt.Errorf("turn role is required")
	}
	if turn.Content == "" {
		return fmt.Errorf("turn content is required")
	}

	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	cmd, err := s.pool.Exec(ctx,
		`INSERT INTO sim_turns (session_id, role, content, model, input_tokens, output_tokens, created_at)
		 SELECT $1::uuid, $2, $3, $4, $5, $6, $7
		 WHERE EXISTS (SELECT 1 FROM sim_sessions WHERE id = $1::uuid)`,
		sessionID,
		turn.Role,
		turn.Content,
		nullIfEmpty(turn.Model),
		nullIfZero(turn.InputTokens),
		nullIfZero(turn.OutputTokens),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return nil
}

func (s *PostgresSessionStore) SetSummary(ctx context.Context, sessionID, summary string, compactedAt int) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE sim_sessions
		 SET metadata = jsonb_set(
		   jsonb_set(COALESCE(metadata, '{}'::jsonb), '{summary}', to_jsonb($2::text), true),
		   '{compacted_at}',
		   to_jsonb($3::int),
		   true
		 )
		 WHERE id = $1::uuid`,
		sessionID,
		summary,
		compactedAt,
	)
	if err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return nil
}

func (s *PostgresSessionStore) EndSession(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE sim_sessions
		 SET ended_at = NOW()
		 WHERE id = $1::uuid`,
		id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("session not found: %s", id)
	}
	return nil
}

func (s *PostgresSessionStore) getSessionByQuery(ctx context.Context, query string, args ...any) (*Session, error) {
	sess := &Session{}
	var metadataBytes []byte
	var endedAt *time.Time

	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&sess.ID,
		&sess.UserID,
		&sess.TopicCode,
		&metadataBytes,
		&sess.StartedAt,
		&endedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	sess.EndedAt = endedAt
	sess.Turns = []Turn{}
	sess.Summary, sess.CompactedAt = parseSessionMetadata(metadataBytes)
	return sess, nil
}

func parseSessionMetadata(metadata []byte) (string, int) {
	if len(metadata) == 0 {
		return "", 0
	}
	var raw struct {
		Summary     string `json:"summary"`
		CompactedAt int    `json:"compacted_at"`
	}
	if err := json.Unmarshal(metadata, &raw); err != nil {
		return "", 0
	}
	return raw.Summary, raw.CompactedAt
}

func nullIfZero(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
