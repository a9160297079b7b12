// Package account talks to the external token service used for signed-in
// (non-guest) profiles.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials is returned when the token service rejects a login.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrNotLoggedIn is returned when no tokens are stored for the profile.
	ErrNotLoggedIn = errors.New("not logged in")
)

// Tokens is an access/refresh token pair.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Profile is the user profile returned by the service. Fields beyond the
// common ones are kept in Raw.
type Profile struct {
	Username string          `json:"username,omitempty"`
	Email    string          `json:"email,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

// StatusError reports an unexpected response status.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("account: %s returned %d: %s", e.Path, e.Status, e.Body)
}

// Client calls the token service.
type Client struct {
	baseURL     string
	profilePath string
	httpClient  *http.Client
}

// NewClient creates a Client for the service at baseURL. profilePath
// defaults to /profile.
func NewClient(baseURL, profilePath string) *Client {
	if profilePath == "" {
		profilePath = "/profile"
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		profilePath: profilePath,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (Tokens, error) {
	var t Tokens
	err := c.do(ctx, http.MethodPost, "/token", "", map[string]string{
		"username": username,
		"password": password,
	}, &t)
	var se *StatusError
	if errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusBadRequest) {
		return Tokens{}, ErrInvalidCredentials
	}
	if err != nil {
		return Tokens{}, err
	}
	if t.Access == "" {
		return Tokens{}, fmt.Errorf("account: /token response has no access token")
	}
	return t, nil
}

// Refresh exchanges a refresh token for a new access token. The service may
// rotate the refresh token; when it does not, the old one is kept.
func (c *Client) Refresh(ctx context.Context, refresh string) (Tokens, error) {
	var t Tokens
	if err := c.do(ctx, http.MethodPost, "/token/refresh", "", map[string]string{"refresh": refresh}, &t); err != nil {
		return Tokens{}, err
	}
	if t.Access == "" {
		return Tokens{}, fmt.Errorf("account: /token/refresh response has no access token")
	}
	if t.Refresh == "" {
		t.Refresh = refresh
	}
	return t, nil
}

// Profile fetches the signed-in user's profile.
func (c *Client) Profile(ctx context.Context, access string) (Profile, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.profilePath, access, nil, &raw); err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("account: decode profile: %w", err)
	}
	p.Raw = raw
	return p, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("account: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("account: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("account: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("account: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Path: path, Status: resp.StatusCode, Body: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("account: decode %s: %w", path, err)
	}
	return nil
}
