package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trunkline-ops/trunkline/internal/shared"
)

// Authenticator is the slice of the auth service the session state needs.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, Principal, error)
	CurrentUser(ctx context.Context, token string) (Principal, error)
	Logout(ctx context.Context, token string) error
}

// Snapshot is the session's answer to "who is this". Checking means the
// probe has not resolved yet (auth service unreachable and nothing cached);
// a nil Principal with Checking false means unauthenticated.
type Snapshot struct {
	Checking  bool
	Principal *Principal
}

// principalCacheTTL keeps a verified principal around long enough to ride
// out an auth service outage without forcing everyone back to login.
const principalCacheTTL = 24 * time.Hour

type cachedPrincipal struct {
	Principal Principal `json:"principal"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SessionState resolves the principal behind each request. It is built once
// and injected wherever a snapshot is needed, never reached through a
// package-level singleton.
type SessionState struct {
	client   Authenticator
	cache    *redis.Client
	logger   *slog.Logger
	freshFor time.Duration
	clock    func() time.Time
}

// NewSessionState constructs the session state. freshFor is how long a
// cached principal is trusted before the token is re-verified upstream.
func NewSessionState(client Authenticator, cache *redis.Client, logger *slog.Logger, freshFor time.Duration) *SessionState {
	if logger == nil {
		logger = slog.Default()
	}
	if freshFor <= 0 {
		freshFor = time.Minute
	}
	return &SessionState{
		client:   client,
		cache:    cache,
		logger:   logger,
		freshFor: freshFor,
		clock:    time.Now,
	}
}

// Resolve produces the snapshot for the given session. The session is the
// single source of truth: no token means unauthenticated, no probe. A token
// is verified upstream when the cached principal is stale; if the service
// is unreachable a stale principal still counts, and with nothing cached
// the snapshot stays in the checking state rather than guessing.
func (s *SessionState) Resolve(ctx context.Context, sess *shared.Session) Snapshot {
	if sess == nil {
		return Snapshot{}
	}
	token := sess.Token()
	if token == "" {
		return Snapshot{}
	}

	cached, haveCached := s.cachedPrincipal(ctx, sess.ID)
	if haveCached && s.clock().Sub(cached.FetchedAt) < s.freshFor {
		p := cached.Principal
		return Snapshot{Principal: &p}
	}

	principal, err := s.client.CurrentUser(ctx, token)
	switch {
	case err == nil:
		s.storePrincipal(ctx, sess.ID, principal)
		return Snapshot{Principal: &principal}
	case errors.Is(err, shared.ErrUnauthenticated):
		// token invalid or expired: discard credentials so the next
		// request goes straight to unauthorized
		sess.ClearToken()
		s.dropPrincipal(ctx, sess.ID)
		return Snapshot{}
	default:
		if haveCached {
			s.logger.Warn("auth probe failed, serving cached principal",
				slog.String("session", sess.ID), slog.Any("error", err))
			p := cached.Principal
			return Snapshot{Principal: &p}
		}
		s.logger.Warn("auth probe unresolved", slog.String("session", sess.ID), slog.Any("error", err))
		return Snapshot{Checking: true}
	}
}

// Login authenticates against the auth service and, on success, binds the
// token and principal to the session.
func (s *SessionState) Login(ctx context.Context, sess *shared.Session, email, password string) (Principal, error) {
	if sess == nil {
		return Principal{}, fmt.Errorf("auth: no session to bind login to")
	}
	token, principal, err := s.client.Login(ctx, email, password)
	if err != nil {
		return Principal{}, err
	}
	sess.SetToken(token)
	s.storePrincipal(ctx, sess.ID, principal)
	return principal, nil
}

// Logout revokes the token upstream (best effort) and clears everything
// held locally. The caller destroys the session cookie afterwards.
func (s *SessionState) Logout(ctx context.Context, sess *shared.Session) {
	if sess == nil {
		return
	}
	if token := sess.Token(); token != "" {
		if err := s.client.Logout(ctx, token); err != nil {
			s.logger.Warn("upstream logout", slog.Any("error", err))
		}
	}
	sess.ClearToken()
	s.dropPrincipal(ctx, sess.ID)
}

func (s *SessionState) cacheKey(sessionID string) string {
	return "principal:" + sessionID
}

func (s *SessionState) cachedPrincipal(ctx context.Context, sessionID string) (cachedPrincipal, bool) {
	if s.cache == nil {
		return cachedPrincipal{}, false
	}
	raw, err := s.cache.Get(ctx, s.cacheKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cachedPrincipal{}, false
	}
	if err != nil {
		s.logger.Warn("principal cache read", slog.Any("error", err))
		return cachedPrincipal{}, false
	}
	var entry cachedPrincipal
	if err := json.Unmarshal(raw, &entry); err != nil || !entry.Principal.Role.Valid() {
		// corrupt cache entries are dropped, never trusted
		s.dropPrincipal(ctx, sessionID)
		return cachedPrincipal{}, false
	}
	return entry, true
}

func (s *SessionState) storePrincipal(ctx context.Context, sessionID string, principal Principal) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(cachedPrincipal{Principal: principal, FetchedAt: s.clock().UTC()})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(sessionID), raw, principalCacheTTL).Err(); err != nil {
		s.logger.Warn("principal cache write", slog.Any("error", err))
	}
}

func (s *SessionState) dropPrincipal(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cacheKey(sessionID)).Err(); err != nil {
		s.logger.Warn("principal cache delete", slog.Any("error", err))
	}
}
