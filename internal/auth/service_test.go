package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/emberlane/backend-shop/internal/auth"
	"github.com/emberlane/backend-shop/internal/store"
)

type fakeUserStore struct {
	byEmail map[string]store.User
	byID    map[uuid.UUID]store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: map[string]store.User{}, byID: map[uuid.UUID]store.User{}}
}

func (f *fakeUserStore) CreateUser(_ context.Context, email, name, passwordHash string, roles []string) (store.User, error) {
	u := store.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Roles:        roles,
	}
	f.byEmail[email] = u
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id uuid.UUID) (store.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func newAuthService(ttl time.Duration) (*auth.Service, *fakeUserStore) {
	users := newFakeUserStore()
	return &auth.Service{
		Store:    users,
		Secret:   []byte("test-secret-key"),
		TokenTTL: ttl,
		Log:      zerolog.Nop(),
	}, users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService(time.Hour)
	ctx := context.Background()

	u, token, err := svc.Register(ctx, "Shopper@Example.com", "Sam", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, "shopper@example.com", u.Email)
	require.Equal(t, []string{"customer"}, u.Roles)
	require.NotEqual(t, "correct horse battery", u.PasswordHash)
	require.True(t, strings.HasPrefix(u.PasswordHash, "$argon2id$"))
	require.NotEmpty(t, token)

	_, _, err = svc.Register(ctx, "shopper@example.com", "Sam", "another password")
	require.ErrorIs(t, err, auth.ErrEmailTaken)

	logged, loginToken, err := svc.Login(ctx, "shopper@example.com", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, u.ID, logged.ID)
	require.NotEmpty(t, loginToken)

	_, _, err = svc.Login(ctx, "shopper@example.com", "wrong password")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "whatever")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestTokenCarriesIdentityAndRoles(t *testing.T) {
	svc, _ := newAuthService(time.Hour)
	u := store.User{ID: uuid.New(), Roles: []string{"customer", "admin"}}

	token, err := svc.IssueToken(u)
	require.NoError(t, err)

	id, err := svc.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, u.ID.String(), id.UserID)
	require.ElementsMatch(t, []string{"customer", "admin"}, id.Roles)
}

func TestVerifyTokenRejectsTampering(t *testing.T) {
	svc, _ := newAuthService(time.Hour)
	token, err := svc.IssueToken(store.User{ID: uuid.New(), Roles: []string{"customer"}})
	require.NoError(t, err)

	_, err = svc.VerifyToken(token + "x")
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	other := &auth.Service{Store: nil, Secret: []byte("different-secret"), TokenTTL: time.Hour}
	_, err = other.VerifyToken(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	svc, _ := newAuthService(-time.Minute)
	token, err := svc.IssueToken(store.User{ID: uuid.New()})
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}
