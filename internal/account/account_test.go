package account

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/meltforce/repcycle/internal/kv"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

type fakeService struct {
	access    string
	refreshes atomic.Int32
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Username, Password string }
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding login body: %v", err)
		}
		if body.Username != "alice" || body.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"No active account"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access": f.access, "refresh": "refresh-1"})
	})
	mux.HandleFunc("POST /token/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshes.Add(1)
		var body struct{ Refresh string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Refresh != "refresh-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access": "fresh-access"})
	})
	mux.HandleFunc("GET /profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"username":"alice","email":"alice@example.com","units":"kg"}`))
	})
	return mux
}

// TestLoginInvalidCredentials verifies that a 401 maps to ErrInvalidCredentials.
func TestLoginInvalidCredentials(t *testing.T) {
	f := &fakeService{access: "a"}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login error = %v, want ErrInvalidCredentials", err)
	}
}

// TestRefreshKeepsRefreshToken verifies that a refresh response without a
// new refresh token keeps the old one.
func TestRefreshKeepsRefreshToken(t *testing.T) {
	f := &fakeService{}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	tok, err := NewClient(srv.URL+"/", "").Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if tok.Access != "fresh-access" || tok.Refresh != "refresh-1" {
		t.Errorf("Refresh = %+v", tok)
	}
}

// TestSessionToken verifies proactive refresh around the one-minute leeway.
func TestSessionToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		exp         time.Time
		wantRefresh bool
	}{
		{"valid for an hour", now.Add(time.Hour), false},
		{"expires in 30s", now.Add(30 * time.Second), true},
		{"already expired", now.Add(-time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			access := signedToken(t, tt.exp)
			f := &fakeService{access: access}
			srv := httptest.NewServer(f.handler(t))
			defer srv.Close()

			store := kv.NewMemory()
			s := NewSession(NewClient(srv.URL, ""), store)
			s.now = func() time.Time { return now }

			ctx := context.Background()
			if err := s.Login(ctx, "alice", "secret"); err != nil {
				t.Fatalf("Login: %v", err)
			}
			got, err := s.Token(ctx)
			if err != nil {
				t.Fatalf("Token: %v", err)
			}

			want := access
			if tt.wantRefresh {
				want = "fresh-access"
			}
			if got != want {
				t.Errorf("Token = %q, want %q", got, want)
			}
			if refreshed := f.refreshes.Load() > 0; refreshed != tt.wantRefresh {
				t.Errorf("refreshed = %v, want %v", refreshed, tt.wantRefresh)
			}

			var stored string
			if _, err := kv.GetJSON(ctx, store, KeyAccessToken, &stored); err != nil || stored != want {
				t.Errorf("stored access token = %q, %v; want %q", stored, err, want)
			}
		})
	}
}

// TestSessionLogout verifies that logout removes both tokens.
func TestSessionLogout(t *testing.T) {
	f := &fakeService{access: "opaque-access"}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	ctx := context.Background()
	s := NewSession(NewClient(srv.URL, ""), kv.NewMemory())
	if err := s.Login(ctx, "alice", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Opaque tokens carry no expiry and are used as-is.
	if tok, err := s.Token(ctx); err != nil || tok != "opaque-access" {
		t.Fatalf("Token = %q, %v", tok, err)
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if _, err := s.Token(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("Token after logout error = %v, want ErrNotLoggedIn", err)
	}
	if ok, _ := s.LoggedIn(ctx); ok {
		t.Error("LoggedIn after logout = true")
	}
}

// TestSessionProfile verifies the profile call carries the bearer token.
func TestSessionProfile(t *testing.T) {
	f := &fakeService{access: "opaque-access"}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	ctx := context.Background()
	s := NewSession(NewClient(srv.URL, "/profile"), kv.NewMemory())
	if _, err := s.Profile(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("Profile before login error = %v, want ErrNotLoggedIn", err)
	}
	if err := s.Login(ctx, "alice", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	p, err := s.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Username != "alice" || p.Email != "alice@example.com" {
		t.Errorf("Profile = %+v", p)
	}
	if len(p.Raw) == 0 {
		t.Error("Profile.Raw is empty")
	}
}
