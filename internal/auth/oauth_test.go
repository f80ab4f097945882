package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetmax/internal/apperr"
)

func newGoogleStub(t *testing.T, tokenStatus int, profile map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if tokenStatus != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"provider-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogle(srv *httptest.Server) *GoogleOAuth {
	return NewGoogleOAuth(GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:3000/sign-in",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
	})
}

func TestAuthorizationURL(t *testing.T) {
	g := NewGoogleOAuth(GoogleConfig{ClientID: "client-id", RedirectURL: "http://localhost:3000/sign-in"})

	raw := g.AuthorizationURL("state-123")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "http://localhost:3000/sign-in", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "userinfo.email")
	assert.Contains(t, q.Get("scope"), "userinfo.profile")
}

func TestExchangeCodeForProfile(t *testing.T) {
	srv := newGoogleStub(t, http.StatusOK, map[string]string{
		"id":      "g123",
		"email":   "U@X.com",
		"name":    "U",
		"picture": "https://img.example/u.png",
	})

	profile, err := newTestGoogle(srv).ExchangeCodeForProfile(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, &OAuthProfile{ProviderID: "g123", Email: "u@x.com", Name: "U", PictureURL: "https://img.example/u.png"}, profile)
}

func TestExchangeCodeEmptyProfileIsAccessDenied(t *testing.T) {
	srv := newGoogleStub(t, http.StatusOK, map[string]string{})

	_, err := newTestGoogle(srv).ExchangeCodeForProfile(context.Background(), "the-code")
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	assert.Equal(t, "ACCESS_DENIED", apperr.CodeOf(err))
}

func TestExchangeCodeTokenFailureIsUpstream(t *testing.T) {
	srv := newGoogleStub(t, http.StatusBadRequest, nil)

	_, err := newTestGoogle(srv).ExchangeCodeForProfile(context.Background(), "the-code")
	require.Error(t, err)
	assert.Equal(t, apperr.Upstream, apperr.KindOf(err))
}
