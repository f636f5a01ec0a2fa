package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/trunkline-ops/trunkline/internal/auth"
	"github.com/trunkline-ops/trunkline/internal/shared"
	_ "github.com/trunkline-ops/trunkline/testing"
)

type stubAuthenticator struct {
	token       string
	principal   auth.Principal
	loginErr    error
	currentErr  error
	probeCalls  int
	logoutCalls int
}

func (s *stubAuthenticator) Login(ctx context.Context, email, password string) (string, auth.Principal, error) {
	if s.loginErr != nil {
		return "", auth.Principal{}, s.loginErr
	}
	return s.token, s.principal, nil
}

func (s *stubAuthenticator) CurrentUser(ctx context.Context, token string) (auth.Principal, error) {
	s.probeCalls++
	if s.currentErr != nil {
		return auth.Principal{}, s.currentErr
	}
	return s.principal, nil
}

func (s *stubAuthenticator) Logout(ctx context.Context, token string) error {
	s.logoutCalls++
	return nil
}

func adminPrincipal() auth.Principal {
	return auth.Principal{ID: 7, Email: "ops@trunkline.dz", Role: auth.RoleAdmin, FirstName: "Amina", LastName: "Bensalem"}
}

func newStateFixture(t *testing.T, stub *stubAuthenticator, freshFor time.Duration) (*auth.SessionState, *shared.SessionManager, *shared.Session) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	state := auth.NewSessionState(stub, client, nil, freshFor)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	return state, sessions, sess
}

func TestResolveWithoutTokenIsUnauthorized(t *testing.T) {
	stub := &stubAuthenticator{principal: adminPrincipal()}
	state, _, sess := newStateFixture(t, stub, time.Minute)

	snap := state.Resolve(context.Background(), sess)
	require.False(t, snap.Checking)
	require.Nil(t, snap.Principal)
	require.Zero(t, stub.probeCalls, "no token, no probe")
}

func TestLoginBindsTokenAndPrincipal(t *testing.T) {
	stub := &stubAuthenticator{token: "tok-1", principal: adminPrincipal()}
	state, _, sess := newStateFixture(t, stub, time.Minute)

	principal, err := state.Login(context.Background(), sess, "ops@trunkline.dz", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, auth.RoleAdmin, principal.Role)
	require.Equal(t, "tok-1", sess.Token())

	// fresh cache short-circuits the probe entirely
	snap := state.Resolve(context.Background(), sess)
	require.NotNil(t, snap.Principal)
	require.Equal(t, int64(7), snap.Principal.ID)
	require.Zero(t, stub.probeCalls)
}

func TestLoginFailureLeavesSessionClean(t *testing.T) {
	stub := &stubAuthenticator{loginErr: shared.ErrInvalidCredentials}
	state, _, sess := newStateFixture(t, stub, time.Minute)

	_, err := state.Login(context.Background(), sess, "ops@trunkline.dz", "wrong-pass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	require.Empty(t, sess.Token())

	snap := state.Resolve(context.Background(), sess)
	require.Nil(t, snap.Principal)
	require.False(t, snap.Checking)
}

func TestResolveProbesWhenCacheStale(t *testing.T) {
	stub := &stubAuthenticator{token: "tok-1", principal: adminPrincipal()}
	// freshFor so small every resolve re-probes
	state, _, sess := newStateFixture(t, stub, time.Nanosecond)

	_, err := state.Login(context.Background(), sess, "ops@trunkline.dz", "s3cret-pass")
	require.NoError(t, err)

	snap := state.Resolve(context.Background(), sess)
	require.NotNil(t, snap.Principal)
	require.Equal(t, 1, stub.probeCalls)
}

func TestResolveExpiredTokenClearsCredentials(t *testing.T) {
	stub := &stubAuthenticator{token: "tok-1", principal: adminPrincipal()}
	state, _, sess := newStateFixture(t, stub, time.Nanosecond)

	_, err := state.Login(context.Background(), sess, "ops@trunkline.dz", "s3cret-pass")
	require.NoError(t, err)

	stub.currentErr = shared.ErrUnauthenticated
	snap := state.Resolve(context.Background(), sess)
	require.Nil(t, snap.Principal)
	require.False(t, snap.Checking)
	require.Empty(t, sess.Token(), "expired token must be discarded")

	// subsequent resolves stay unauthorized without probing again
	stub.probeCalls = 0
	snap = state.Resolve(context.Background(), sess)
	require.Nil(t, snap.Principal)
	require.Zero(t, stub.probeCalls)
}

func TestResolveOutageServesCachedPrincipal(t *testing.T) {
	stub := &stubAuthenticator{token: "tok-1", principal: adminPrincipal()}
	state, _, sess := newStateFixture(t, stub, time.Nanosecond)

	_, err := state.Login(context.Background(), sess, "ops@trunkline.dz", "s3cret-pass")
	require.NoError(t, err)

	stub.currentErr = shared.ErrServiceUnavailable
	snap := state.Resolve(context.Background(), sess)
	require.False(t, snap.Checking)
	require.NotNil(t, snap.Principal, "stale principal keeps the session usable through an outage")
	require.Equal(t, "ops@trunkline.dz", snap.Principal.Email)
}

func TestResolveOutageWithoutCacheIsChecking(t *testing.T) {
	stub := &stubAuthenticator{currentErr: shared.ErrServiceUnavailable}
	state, _, sess := newStateFixture(t, stub, time.Minute)

	// a token exists but nothing was ever cached for it
	sess.SetToken("tok-orphan")
	snap := state.Resolve(context.Background(), sess)
	require.True(t, snap.Checking)
	require.Nil(t, snap.Principal)
	require.Equal(t, "tok-orphan", sess.Token(), "outage must not discard the token")
}

func TestLogoutClearsEverything(t *testing.T) {
	stub := &stubAuthenticator{token: "tok-1", principal: adminPrincipal()}
	state, _, sess := newStateFixture(t, stub, time.Minute)

	_, err := state.Login(context.Background(), sess, "ops@trunkline.dz", "s3cret-pass")
	require.NoError(t, err)

	state.Logout(context.Background(), sess)
	require.Empty(t, sess.Token())
	require.Equal(t, 1, stub.logoutCalls)

	snap := state.Resolve(context.Background(), sess)
	require.Nil(t, snap.Principal)
	require.False(t, snap.Checking)
}
