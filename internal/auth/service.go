package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"

	"github.com/emberlane/backend-shop/internal/store"
)

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords
	// so responses don't reveal which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when registering an existing address.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidToken is returned for unparsable or expired tokens.
	ErrInvalidToken = errors.New("invalid token")
)

const issuer = "backend-shop"

// UserStore is the persistence surface behind authentication.
type UserStore interface {
	CreateUser(ctx context.Context, email, name, passwordHash string, roles []string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
}

// Identity is the verified subject of a token.
type Identity struct {
	UserID string
	Roles  []string
}

// Service issues and verifies access tokens and manages credentials.
type Service struct {
	Store    UserStore
	Secret   []byte
	TokenTTL time.Duration
	Log      zerolog.Logger
}

// Register creates an account with an argon2id password hash and returns it
// with a fresh token.
func (s *Service) Register(ctx context.Context, email, name, password string) (store.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.Store.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, "", ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, "", fmt.Errorf("check email: %w", err)
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return store.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	u, err := s.Store.CreateUser(ctx, email, name, hash, []string{"customer"})
	if err != nil {
		return store.User{}, "", fmt.Errorf("create user: %w", err)
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return store.User{}, "", err
	}
	return u, token, nil
}

// Login verifies credentials and returns the account with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (store.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, "", ErrInvalidCredentials
		}
		return store.User{}, "", fmt.Errorf("load user: %w", err)
	}
	match, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash)
	if err != nil {
		return store.User{}, "", fmt.Errorf("compare password: %w", err)
	}
	if !match {
		return store.User{}, "", ErrInvalidCredentials
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return store.User{}, "", err
	}
	return u, token, nil
}

// IssueToken signs a short-lived HS256 access token carrying the user's
// roles as a claim.
func (s *Service) IssueToken(u store.User) (string, error) {
	now := time.Now()
	token, err := jwt.NewBuilder().
		Issuer(issuer).
		Subject(u.ID.String()).
		IssuedAt(now).
		Expiration(now.Add(s.TokenTTL)).
		Claim("roles", u.Roles).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// VerifyToken parses and validates a token, returning the identity it
// carries.
func (s *Service) VerifyToken(raw string) (Identity, error) {
	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, s.Secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id := Identity{UserID: token.Subject()}
	if claim, ok := token.Get("roles"); ok {
		switch v := claim.(type) {
		case []string:
			id.Roles = v
		case []any:
			for _, r := range v {
				if s, ok := r.(string); ok {
					id.Roles = append(id.Roles, s)
				}
			}
		}
	}
	if id.UserID == "" {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}
