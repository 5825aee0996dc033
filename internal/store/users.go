package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is an account record. PasswordHash is an argon2id encoded hash.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

const userColumns = `id, email, name, password_hash, roles, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Roles, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser inserts an account.
func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash string, roles []string) (User, error) {
	if len(roles) == 0 {
		roles = []string{"customer"}
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash, roles)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, email, name, passwordHash, roles)
	return scanUser(row)
}

// GetUserByEmail fetches an account by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		return User{}, notFound(err)
	}
	return u, nil
}

// GetUserByID fetches an account by id.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return User{}, notFound(err)
	}
	return u, nil
}
