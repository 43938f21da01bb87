// Package telemetry records analytics events. Emission is fire-and-forget:
// a telemetry failure must never affect the operation that produced it.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// Event is one analytics event persisted to the events table.
type Event struct {
	UserID    string
	Kind      string
	Data      map[string]any
	CreatedAt time.Time
}

// Logger defines event logging behavior.
type Logger interface {
	LogEvent(ctx context.Context, event Event) error
}

// Emit logs an event and swallows the failure, keeping telemetry off the
// caller's error path.
func Emit(ctx context.Context, l Logger, event Event) {
	if l == nil {
		return
	}
	if err := l.LogEvent(ctx, event); err != nil {
		slog.Warn("telemetry event dropped", "kind", event.Kind, "error", err)
	}
}

// NopLogger ignores all events.
type NopLogger struct{}

func (NopLogger) LogEvent(context.Context, Event) error {
	return nil
}

// MemoryLogger stores events in memory for tests.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{events: []Event{}}
}

func (l *MemoryLogger) LogEvent(_ context.Context, event Event) error {
	if event.Kind == "" {
		return fmt.Errorf("event kind is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// PostgresLogger inserts events into the events table.
type PostgresLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresLogger(pool *pgxpool.Pool) *PostgresLogger {
	return &PostgresLogger{pool: pool}
}

func (l *PostgresLogger) LogEvent(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if event.Kind == "" {
		return fmt.Errorf("event kind is required")
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = l.pool.Exec(ctx,
		`INSERT INTO events (user_id, kind, data, created_at)
		 VALUES (NULLIF($1, '')::uuid, $2, $3::jsonb, $4)`,
		event.UserID,
		event.Kind,
		string(data),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged", "kind", event.Kind, "user_id", event.UserID)
	return nil
}
