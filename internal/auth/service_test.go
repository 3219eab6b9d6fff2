package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubRepo struct {
	user     *User
	sessions map[string]int64
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, ErrInvalidCredentials
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(_ context.Context, id string, userID int64, _ time.Time, _, _ string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]int64)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(_ context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthenticateValidCredentials(t *testing.T) {
	repo := &stubRepo{user: &User{ID: 1, Email: "ops@merx.local", PasswordHash: hashOf(t, "correct horse"), IsActive: true}}
	svc := NewService(repo)

	user, err := svc.Authenticate(context.Background(), "ops@merx.local", "correct horse")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	repo := &stubRepo{user: &User{Email: "ops@merx.local", PasswordHash: hashOf(t, "correct horse"), IsActive: true}}
	svc := NewService(repo)

	_, err := svc.Authenticate(context.Background(), "ops@merx.local", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	repo := &stubRepo{user: &User{Email: "ops@merx.local", PasswordHash: hashOf(t, "correct horse"), IsActive: false}}
	svc := NewService(repo)

	_, err := svc.Authenticate(context.Background(), "ops@merx.local", "correct horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	svc := NewService(&stubRepo{})
	_, err := svc.Authenticate(context.Background(), "nobody@merx.local", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSessionLifecycle(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.RegisterSession(ctx, "sid-1", 7, time.Now().Add(time.Hour), "127.0.0.1", "test"))
	require.Equal(t, int64(7), repo.sessions["sid-1"])
	require.NoError(t, svc.RemoveSession(ctx, "sid-1"))
	require.NotContains(t, repo.sessions, "sid-1")
}
