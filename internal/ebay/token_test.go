package ebay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOAuthProvider_RefreshAndCache(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
			t.Error("missing basic auth header")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %s", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "refresh-1" {
			t.Errorf("refresh_token = %s", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-1",
			"expires_in":   7200,
			"token_type":   "Bearer",
		})
	}))
	defer server.Close()

	p := NewOAuthProvider(OAuthConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RefreshToken: "refresh-1",
		TokenURL:     server.URL,
	})

	if p.IsValid() {
		t.Error("provider should start without a valid token")
	}

	token, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if token != "access-1" {
		t.Errorf("token = %s, want access-1", token)
	}
	if !p.IsValid() {
		t.Error("token should be valid after refresh")
	}

	// Second acquire serves from cache.
	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if calls != 1 {
		t.Errorf("token endpoint called %d times, want 1", calls)
	}
}

func TestOAuthProvider_RefreshFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	p := NewOAuthProvider(OAuthConfig{RefreshToken: "bad", TokenURL: server.URL})

	if _, err := p.Acquire(context.Background()); err == nil {
		t.Fatal("expected refresh failure")
	}
	if p.IsValid() {
		t.Error("failed refresh must not leave a valid token")
	}
}

func TestOAuthProvider_ExpiredTokenRefreshes(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// expires_in below the safety buffer, so every acquire refreshes
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "short-lived",
			"expires_in":   60,
		})
	}))
	defer server.Close()

	p := NewOAuthProvider(OAuthConfig{RefreshToken: "r", TokenURL: server.URL})

	for i := 0; i < 2; i++ {
		if _, err := p.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if calls != 2 {
		t.Errorf("token endpoint called %d times, want 2", calls)
	}
}

func TestStaticProvider(t *testing.T) {
	p := &StaticProvider{Token: "fixed"}

	token, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if token != "fixed" {
		t.Errorf("token = %s", token)
	}
	if !p.IsValid() {
		t.Error("static token should be valid")
	}

	empty := &StaticProvider{}
	if _, err := empty.Acquire(context.Background()); err == nil {
		t.Error("empty static provider should fail")
	}
	if empty.IsValid() {
		t.Error("empty static provider should be invalid")
	}
}
