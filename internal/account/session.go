package account

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/meltforce/repcycle/internal/kv"
)

// Keys the session keeps its tokens under, next to the training data.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// refreshLeeway is how close to expiry an access token may get before
// Token refreshes it.
const refreshLeeway = time.Minute

// Session stores a profile's tokens and hands out a valid access token.
// It is safe for concurrent use.
type Session struct {
	client *Client
	store  kv.Store
	now    func() time.Time
	mu     sync.Mutex
}

// NewSession creates a Session persisting tokens in store.
func NewSession(client *Client, store kv.Store) *Session {
	return &Session{client: client, store: store, now: time.Now}
}

// Login signs in and stores the resulting tokens.
func (s *Session) Login(ctx context.Context, username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	return s.save(ctx, t)
}

// Logout forgets the stored tokens. Logging out twice is fine.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, KeyAccessToken); err != nil {
		return fmt.Errorf("deleting access token: %w", err)
	}
	if err := s.store.Delete(ctx, KeyRefreshToken); err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}
	return nil
}

// LoggedIn reports whether a token pair is stored.
func (s *Session) LoggedIn(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	access, refresh, err := s.load(ctx)
	return access != "" && refresh != "", err
}

// Token returns the stored access token, refreshing it first when it is
// expired or expires within a minute.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	access, refresh, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	if access == "" || refresh == "" {
		return "", ErrNotLoggedIn
	}

	if exp, ok := expiry(access); ok && s.now().Add(refreshLeeway).After(exp) {
		t, err := s.client.Refresh(ctx, refresh)
		if err != nil {
			return "", fmt.Errorf("refreshing token: %w", err)
		}
		if err := s.save(ctx, t); err != nil {
			return "", err
		}
		return t.Access, nil
	}
	return access, nil
}

// Profile fetches the signed-in user's profile.
func (s *Session) Profile(ctx context.Context) (Profile, error) {
	access, err := s.Token(ctx)
	if err != nil {
		return Profile{}, err
	}
	return s.client.Profile(ctx, access)
}

func (s *Session) load(ctx context.Context) (access, refresh string, err error) {
	if _, err := kv.GetJSON(ctx, s.store, KeyAccessToken, &access); err != nil {
		return "", "", err
	}
	if _, err := kv.GetJSON(ctx, s.store, KeyRefreshToken, &refresh); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *Session) save(ctx context.Context, t Tokens) error {
	if err := kv.SetJSON(ctx, s.store, KeyAccessToken, t.Access); err != nil {
		return err
	}
	return kv.SetJSON(ctx, s.store, KeyRefreshToken, t.Refresh)
}

// expiry reads the exp claim without verifying the signature; the token
// service verifies its own tokens.
func expiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
