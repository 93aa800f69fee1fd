package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomasdev42/crypto-portfolio/internal/apperr"
	"github.com/tomasdev42/crypto-portfolio/internal/identity"
	"github.com/tomasdev42/crypto-portfolio/internal/logging"
	"github.com/tomasdev42/crypto-portfolio/internal/notification"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, m)
	return nil
}

func (n *recordingNotifier) last() notification.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.messages[len(n.messages)-1]
}

func newTestService(t *testing.T) (*Service, identity.Repository, *recordingNotifier) {
	t.Helper()
	repo := identity.NewMemoryRepository()
	notifier := &recordingNotifier{}
	svc := NewService(repo, NewTokenService(testConfig()), notifier, "http://localhost:5173/", logging.Discard())
	return svc, repo, notifier
}

func registerAlice(t *testing.T, svc *Service) Session {
	t.Helper()
	session, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice", Email: "alice@x.com", Password: "secret1", PasswordConfirm: "secret1",
	})
	require.NoError(t, err)
	return session
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	reg := registerAlice(t, svc)
	assert.Equal(t, "alice", reg.User.Username)
	assert.NotEmpty(t, reg.AccessToken)
	assert.Empty(t, reg.RefreshToken)

	session, err := svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.RefreshToken)

	user, err := svc.CheckAuth(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, identity.Summary{ID: reg.User.ID, Username: "alice", Email: "alice@x.com"}, user)
}

func TestRegisterValidation(t *testing.T) {
	cases := map[string]RegisterInput{
		"missing field":      {Username: "alice", Password: "secret1", PasswordConfirm: "secret1"},
		"short username":     {Username: "al", Email: "al@x.com", Password: "secret1", PasswordConfirm: "secret1"},
		"bad email":          {Username: "alice", Email: "alice-at-x", Password: "secret1", PasswordConfirm: "secret1"},
		"short password":     {Username: "alice", Email: "alice@x.com", Password: "abc", PasswordConfirm: "abc"},
		"multibyte username": {Username: "éé", Email: "ee@x.com", Password: "secret1", PasswordConfirm: "secret1"},
		"multibyte password": {Username: "alice", Email: "alice@x.com", Password: "ééé", PasswordConfirm: "ééé"},
		"passwords differ":   {Username: "alice", Email: "alice@x.com", Password: "secret1", PasswordConfirm: "secret2"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			svc, repo, _ := newTestService(t)
			_, err := svc.Register(context.Background(), in)
			assert.ErrorIs(t, err, apperr.ErrValidation)

			ids, err := repo.ListIDs(context.Background())
			require.NoError(t, err)
			assert.Empty(t, ids, "nothing should be persisted")
		})
	}
}

func TestRegisterCountsCharactersNotBytes(t *testing.T) {
	svc, _, _ := newTestService(t)
	session, err := svc.Register(context.Background(), RegisterInput{
		Username:        "żółw",
		Email:           "zolw@x.com",
		Password:        "hasło1",
		PasswordConfirm: "hasło1",
	})
	require.NoError(t, err)
	assert.Equal(t, "żółw", session.User.Username)
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerAlice(t, svc)

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice2", Email: "ALICE@x.com", Password: "secret1", PasswordConfirm: "secret1",
	})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "User already exists.", err.Error())

	_, err = svc.Register(context.Background(), RegisterInput{
		Username: "alice", Email: "other@x.com", Password: "secret1", PasswordConfirm: "secret1",
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLoginFailures(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerAlice(t, svc)
	ctx := context.Background()

	_, err := svc.Login(ctx, "bob", "secret1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRefreshRotatesAndOldTokenStillWorks(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerAlice(t, svc)
	ctx := context.Background()

	login, err := svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	first, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	second, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, login.RefreshToken, first.RefreshToken)
	for _, s := range []Session{first, second} {
		_, err := svc.CheckAuth(ctx, s.AccessToken)
		assert.NoError(t, err)
	}
}

func TestRefreshFailures(t *testing.T) {
	svc, _, _ := newTestService(t)
	reg := registerAlice(t, svc)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Refresh(ctx, reg.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	ghost, err := svc.Tokens().IssueRefreshToken(identity.User{ID: "ghost"})
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, ghost)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestCheckAuthExpiredToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	reg := registerAlice(t, svc)

	svc.tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := svc.tokens.IssueAccessToken(identity.User{ID: reg.User.ID, Username: "alice", Email: "alice@x.com"})
	require.NoError(t, err)
	svc.tokens.now = time.Now

	_, err = svc.CheckAuth(context.Background(), expired)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Equal(t, 401, apperr.Status(err))
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, notifier := newTestService(t)
	registerAlice(t, svc)
	ctx := context.Background()

	require.ErrorIs(t, svc.RequestPasswordReset(ctx, "nobody@x.com"), apperr.ErrNotFound)
	require.NoError(t, svc.RequestPasswordReset(ctx, "Alice@X.com"))

	msg := notifier.last()
	assert.Equal(t, "alice@x.com", msg.Destination)
	const marker = "http://localhost:5173/reset-password?token="
	idx := strings.Index(msg.Body, marker)
	require.GreaterOrEqual(t, idx, 0, msg.Body)
	rest := msg.Body[idx+len(marker):]
	token := rest[:strings.IndexByte(rest, '"')]

	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "newpass1", "newpass2"), apperr.ErrValidation)
	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "abc", "abc"), apperr.ErrValidation)
	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "ééé", "ééé"), apperr.ErrValidation)
	assert.ErrorIs(t, svc.ResetPassword(ctx, "garbage", "newpass1", "newpass1"), apperr.ErrNotFound)

	require.NoError(t, svc.ResetPassword(ctx, token, "newpass1", "newpass1"))

	_, err := svc.Login(ctx, "alice", "secret1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.Login(ctx, "alice", "newpass1")
	assert.NoError(t, err)
}

func TestResetTokenIsNotAnAccessToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	reg := registerAlice(t, svc)

	reset, err := svc.Tokens().IssueResetToken(identity.User{ID: reg.User.ID})
	require.NoError(t, err)
	_, err = svc.CheckAuth(context.Background(), reset)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
