package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veda-wellness/nutricert/internal/platform/cache"
)

// MemoryUserStore is an in-memory UserStore for tests and development.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
}

// NewMemoryUserStore creates an empty in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryUserStore) CreateUser(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[u.Email]; ok {
		return User{}, ErrEmailTaken
	}
	u.ID = uuid.NewString()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u, nil
}

func (s *MemoryUserStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryUserStore) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

const dbTimeout = 5 * time.Second

// PostgresUserStore is a PostgreSQL-backed UserStore over the users table.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

// NewPostgresUserStore creates a PostgreSQL-backed user store.
func NewPostgresUserStore(pool *pgxpool.Pool) (*PostgresUserStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresUserStore{pool: pool}, nil
}

func (s *PostgresUserStore) CreateUser(ctx context.Context, u User) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, is_admin)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id::text, created_at`,
		u.Email,
		u.Name,
		u.PasswordHash,
		u.IsAdmin,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PostgresUserStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx,
		`SELECT id::text, email, name, password_hash, is_admin, created_at
		 FROM users WHERE email = $1 LIMIT 1`,
		email,
	)
}

func (s *PostgresUserStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx,
		`SELECT id::text, email, name, password_hash, is_admin, created_at
		 FROM users WHERE id = $1::uuid LIMIT 1`,
		id,
	)
}

func (s *PostgresUserStore) getUser(ctx context.Context, query string, arg any) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var u User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// MemoryRevoker tracks revoked token IDs in memory.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewMemoryRevoker creates an empty in-memory revocation list.
func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]time.Time)}
}

func (r *MemoryRevoker) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = time.Now().Add(ttl)
	return nil
}

func (r *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(until) {
		delete(r.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

// CacheRevoker keeps the revocation list in Redis, where entries expire on
// their own with the token.
type CacheRevoker struct {
	cache *cache.Cache
}

// NewCacheRevoker creates a Redis-backed revocation list.
func NewCacheRevoker(c *cache.Cache) *CacheRevoker {
	return &CacheRevoker{cache: c}
}

func revocationKey(tokenID string) string {
	return "auth:revoked:" + tokenID
}

func (r *CacheRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.cache.SetString(ctx, revocationKey(tokenID), "1", ttl)
}

func (r *CacheRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, found, err := r.cache.GetString(ctx, revocationKey(tokenID))
	if err != nil {
		return false, err
	}
	return found, nil
}
