package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/trunkline-ops/trunkline/internal/shared"
)

// Client wraps the external auth service REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client. probeTimeout bounds every call; zero means
// no client-side timeout, leaving cancellation to the request context.
func NewClient(baseURL string, probeTimeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: probeTimeout,
		},
	}
}

// Ping checks whether the auth service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: auth health returned status %d", shared.ErrUpstream, resp.StatusCode)
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type principalPayload struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url"`
}

type loginResponse struct {
	Token string           `json:"token"`
	User  principalPayload `json:"user"`
}

// Login exchanges credentials for a bearer token and the principal it
// belongs to. Invalid credentials map to shared.ErrInvalidCredentials; an
// unreachable service maps to shared.ErrServiceUnavailable. Login never
// substitutes sample data, whatever the environment.
func (c *Client) Login(ctx context.Context, email, password string) (string, Principal, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return "", Principal{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/v1/auth/login", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return "", Principal{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Principal{}, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", Principal{}, shared.ErrInvalidCredentials
	case resp.StatusCode >= 500:
		return "", Principal{}, fmt.Errorf("%w: login returned status %d", shared.ErrUpstream, resp.StatusCode)
	case resp.StatusCode >= 400:
		return "", Principal{}, fmt.Errorf("%w: login returned status %d", shared.ErrInvalidInput, resp.StatusCode)
	}

	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", Principal{}, fmt.Errorf("%w: decode login response: %v", shared.ErrUpstream, err)
	}
	if payload.Token == "" {
		return "", Principal{}, fmt.Errorf("%w: login response carried no token", shared.ErrUpstream)
	}
	principal, err := decodePrincipal(payload.User)
	if err != nil {
		return "", Principal{}, err
	}
	return payload.Token, principal, nil
}

// CurrentUser resolves the principal behind a bearer token. A 401 maps to
// shared.ErrUnauthenticated so callers know to discard the token.
func (c *Client) CurrentUser(ctx context.Context, token string) (Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/auth/me", c.baseURL), nil)
	if err != nil {
		return Principal{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return Principal{}, shared.ErrUnauthenticated
	case resp.StatusCode >= 400:
		return Principal{}, fmt.Errorf("%w: current user returned status %d", shared.ErrUpstream, resp.StatusCode)
	}

	var payload struct {
		User principalPayload `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Principal{}, fmt.Errorf("%w: decode current user: %v", shared.ErrUpstream, err)
	}
	return decodePrincipal(payload.User)
}

// Logout revokes the token upstream. Best effort: the local session is
// destroyed regardless of the outcome here.
func (c *Client) Logout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/v1/auth/logout", c.baseURL), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: logout returned status %d", shared.ErrUpstream, resp.StatusCode)
	}
	return nil
}

// decodePrincipal validates the wire payload against the closed role set.
// A principal with an unrepresentable role is rejected as unauthenticated:
// granting access on garbage upstream data is the one thing this must not do.
func decodePrincipal(p principalPayload) (Principal, error) {
	role, err := ParseRole(p.Role)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", shared.ErrUnauthenticated, err)
	}
	if p.ID == 0 || p.Email == "" {
		return Principal{}, fmt.Errorf("%w: principal missing id or email", shared.ErrUnauthenticated)
	}
	return Principal{
		ID:        p.ID,
		Email:     p.Email,
		Role:      role,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		AvatarURL: p.AvatarURL,
	}, nil
}
