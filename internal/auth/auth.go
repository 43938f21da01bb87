// Package auth handles trainee accounts and session tokens: bcrypt password
// hashes, short-lived JWT access tokens, and sign-out via a revocation list
// so a revoked token dies before its natural expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSignupDisabled     = errors.New("signup is disabled")
	ErrTokenInvalid       = errors.New("token invalid or revoked")
	ErrUserNotFound       = errors.New("user not found")
)

// User is one registered trainee or admin.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the verified identity extracted from a valid token.
type Session struct {
	UserID  string
	Email   string
	IsAdmin bool
	TokenID string
	Expires time.Time
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
}

// TokenRevoker tracks signed-out token IDs until they expire on their own.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Config holds the service's auth settings.
type Config struct {
	JWTSecret   string
	TokenTTL    time.Duration
	AllowSignup bool
}

// Service implements sign-up, sign-in, sign-out and token verification.
type Service struct {
	store   UserStore
	revoker TokenRevoker
	cfg     Config
}

// NewService creates an auth service.
func NewService(store UserStore, revoker TokenRevoker, cfg Config) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("user store is nil")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is empty")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &Service{store: store, revoker: revoker, cfg: cfg}, nil
}

// SignUp registers a new account and returns it with the hash stripped.
func (s *Service) SignUp(ctx context.Context, email, name, password string) (User, error) {
	if !s.cfg.AllowSignup {
		return User{}, ErrSignupDisabled
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 8 {
		return User{}, fmt.Errorf("password must be at least 8 characters")
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
	})
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// SignIn checks the credentials and issues a signed access token.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", User{}, ErrInvalidCredentials
		}
		return "", User{}, fmt.Errorf("lookup email: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", User{}, ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"admin": user.IsAdmin,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.TokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", User{}, fmt.Errorf("sign token: %w", err)
	}

	user.PasswordHash = ""
	return token, user, nil
}

// SignOut revokes the token so it stops verifying immediately. The revocation
// entry lives only until the token would have expired anyway.
func (s *Service) SignOut(ctx context.Context, token string) error {
	sess, err := s.Verify(ctx, token)
	if err != nil {
		return err
	}
	ttl := time.Until(sess.Expires)
	if ttl <= 0 {
		return nil
	}
	if err := s.revoker.Revoke(ctx, sess.TokenID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Verify parses and validates a token and checks the revocation list.
func (s *Service) Verify(ctx context.Context, token string) (Session, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return Session{}, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, ErrTokenInvalid
	}

	sess := Session{}
	sess.UserID, _ = claims["sub"].(string)
	sess.Email, _ = claims["email"].(string)
	sess.IsAdmin, _ = claims["admin"].(bool)
	sess.TokenID, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		sess.Expires = exp.Time
	}
	if sess.UserID == "" || sess.TokenID == "" {
		return Session{}, ErrTokenInvalid
	}

	revoked, err := s.revoker.IsRevoked(ctx, sess.TokenID)
	if err != nil {
		return Session{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Session{}, ErrTokenInvalid
	}
	return sess, nil
}
