package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"meetmax/internal/apperr"
	"meetmax/internal/auth"
	"meetmax/internal/chat"
	"meetmax/internal/config"
	"meetmax/internal/memstore"
)

type sentMail struct {
	to       string
	template string
	data     map[string]string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *captureMailer) SendTemplate(_ context.Context, to, templateID string, data map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, template: templateID, data: data})
	return nil
}

func (m *captureMailer) last(t *testing.T, template string) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].template == template {
			return m.sent[i]
		}
	}
	t.Fatalf("no %s mail sent", template)
	return sentMail{}
}

type stubGoogle struct{}

func (stubGoogle) AuthorizationURL(state string) string {
	return "https://accounts.example/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (stubGoogle) ExchangeCodeForProfile(_ context.Context, code string) (*auth.OAuthProfile, error) {
	if code != "good-code" {
		return nil, apperr.New(apperr.Upstream, "OAUTH_EXCHANGE_FAILED", "google exchange failed")
	}
	return &auth.OAuthProfile{ProviderID: "g-1", Email: "Gina@Example.com", Name: "Gina", PictureURL: "https://img/g.png"}, nil
}

type testEnv struct {
	srv    *httptest.Server
	api    *Server
	store  *memstore.Store
	mailer *captureMailer
	redis  *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memstore.New()
	hasher := &auth.BcryptHasher{Cost: bcrypt.MinCost}
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    7 * 24 * time.Hour,
		ResetSecret:   "reset-secret",
		ResetTTL:      15 * time.Minute,
	}, store, hasher)
	require.NoError(t, err)

	mailer := &captureMailer{}
	cfg := config.Config{FrontendURL: "http://app.test"}
	authSvc := auth.NewService(store, tokens, hasher, auth.NewOTPGenerator(), mailer, stubGoogle{}, auth.ServiceConfig{
		OTPTTL:      10 * time.Minute,
		FrontendURL: cfg.FrontendURL,
	})

	hub := chat.NewHub()
	registry := chat.NewRegistry(store)
	stream := chat.NewStream(store, registry, hub)
	api := NewServer(cfg, authSvc, registry, stream, hub, client)

	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, api: api, store: store, mailer: mailer, redis: mr}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) signup(t *testing.T, name, email, password string) auth.TokenPair {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password, "birth": "1999-04-02", "gender": "female",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	otp := e.mailer.last(t, auth.TemplateOTP).data["code"]
	resp = e.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"email": email, "otp": otp})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[auth.TokenPair](t, resp)
}

func (e *testEnv) me(t *testing.T, token string) userResponse {
	t.Helper()
	resp := e.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[userResponse](t, resp)
}

func TestSignupVerifyAndSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Lan", "email": "lan@example.com", "password": "secret1", "gender": "FEMALE",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]interface{}](t, resp)
	assert.Equal(t, true, created["emailVerificationRequired"])

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "lan@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "EMAIL_NOT_VERIFIED", decode[errorBody](t, resp).Code)

	resp = env.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"email": "lan@example.com", "otp": "000000x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	otp := env.mailer.last(t, auth.TemplateOTP).data["code"]
	resp = env.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"email": "lan@example.com", "otp": otp})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pair := decode[auth.TokenPair](t, resp)

	me := env.me(t, pair.AccessToken)
	assert.Equal(t, "lan@example.com", me.Email)
	assert.True(t, me.EmailVerified)
	require.NotNil(t, me.Image)
	assert.Equal(t, "female-avatar.png", *me.Image)

	resp = env.do(t, http.MethodPost, "/api/auth/refresh", pair.RefreshToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rotated := decode[auth.TokenPair](t, resp)

	// The previous refresh token no longer verifies.
	resp = env.do(t, http.MethodPost, "/api/auth/refresh", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/refresh", rotated.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/logout", rotated.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/refresh", rotated.RefreshToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	events, err := env.api.Audit.Recent(context.Background(), me.ID, 10)
	require.NoError(t, err)
	var types []string
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	assert.Contains(t, types, auth.AuditSignup)
	assert.Contains(t, types, auth.AuditVerifyEmail)
	assert.Contains(t, types, auth.AuditRefresh)
	assert.Contains(t, types, auth.AuditLogout)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body map[string]string
		code string
	}{
		{"missing name", map[string]string{"email": "a@example.com", "password": "secret1"}, "INVALID_NAME"},
		{"bad email", map[string]string{"name": "A", "email": "nope", "password": "secret1"}, "INVALID_EMAIL"},
		{"short password", map[string]string{"name": "A", "email": "a@example.com", "password": "a1"}, "WEAK_PASSWORD"},
		{"no digit", map[string]string{"name": "A", "email": "a@example.com", "password": "abcdefg"}, "WEAK_PASSWORD"},
		{"too long password", map[string]string{"name": "A", "email": "a@example.com", "password": strings.Repeat("a1", 40)}, "WEAK_PASSWORD"},
		{"bad birth", map[string]string{"name": "A", "email": "a@example.com", "password": "secret1", "birth": "yesterday"}, "INVALID_BIRTH"},
		{"bad gender", map[string]string{"name": "A", "email": "a@example.com", "password": "secret1", "gender": "other"}, "INVALID_GENDER"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/auth/register", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tc.code, decode[errorBody](t, resp).Code)
		})
	}

	env.signup(t, "A", "a@example.com", "secret1")
	resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"name": "A", "email": "A@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestResendOTPCooldownAndAlreadyVerified(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"name": "B", "email": "b@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := env.mailer.last(t, auth.TemplateOTP).data["code"]

	resp = env.do(t, http.MethodPost, "/api/auth/resend-otp", "", map[string]string{"email": "b@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := env.mailer.last(t, auth.TemplateOTP).data["code"]

	resp = env.do(t, http.MethodPost, "/api/auth/resend-otp", "", map[string]string{"email": "b@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	if first != second {
		resp = env.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"email": "b@example.com", "otp": first})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp = env.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"email": "b@example.com", "otp": second})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env.redis.FastForward(auth.EmailCooldown + time.Second)
	resp = env.do(t, http.MethodPost, "/api/auth/resend-otp", "", map[string]string{"email": "b@example.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/resend-otp", "", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLoginFailuresBanTheClient(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "C", "c@example.com", "secret1")

	resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "c@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pair := decode[auth.TokenPair](t, resp)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	for i := 0; i < 4; i++ {
		resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "c@example.com", "password": "wrong1"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_CREDENTIALS", decode[errorBody](t, resp).Code)
	}

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "c@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "IP_BANNED", decode[errorBody](t, resp).Code)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "D", "d@example.com", "secret1")

	resp := env.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{"email": "d@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	link, err := url.Parse(env.mailer.last(t, auth.TemplateResetPassword).data["link"])
	require.NoError(t, err)
	assert.Equal(t, "/confirm", link.Path)
	token := link.Query().Get("reset-token")
	require.NotEmpty(t, token)

	resp = env.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"resetToken": token, "newPassword": "newpass1", "confirmNewPassword": "newpass2",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"resetToken": token, "newPassword": "newpass1", "confirmNewPassword": "newpass1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode[auth.TokenPair](t, resp).AccessToken)

	// Used links are gone.
	resp = env.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"resetToken": token, "newPassword": "newpass1", "confirmNewPassword": "newpass1",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "d@example.com", "password": "newpass1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{"email": "d@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"resetToken": "garbage", "newPassword": "newpass1", "confirmNewPassword": "newpass1",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGoogleSignInConsumesState(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/auth/google", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	consent, err := url.Parse(decode[map[string]string](t, resp)["url"])
	require.NoError(t, err)
	state := consent.Query().Get("state")
	require.NotEmpty(t, state)

	resp = env.do(t, http.MethodPost, "/api/auth/google/callback", "", map[string]string{"code": "good-code", "state": "forged"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_STATE", decode[errorBody](t, resp).Code)

	resp = env.do(t, http.MethodPost, "/api/auth/google/callback", "", map[string]string{"code": "good-code", "state": state})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pair := decode[auth.TokenPair](t, resp)

	me := env.me(t, pair.AccessToken)
	assert.Equal(t, "gina@example.com", me.Email)
	assert.True(t, me.GoogleLinked)
	assert.False(t, me.HasPassword)

	resp = env.do(t, http.MethodPost, "/api/auth/google/callback", "", map[string]string{"code": "good-code", "state": state})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Upstream failures do not leak details.
	resp = env.do(t, http.MethodGet, "/api/auth/google", "", nil)
	consent, err = url.Parse(decode[map[string]string](t, resp)["url"])
	require.NoError(t, err)
	resp = env.do(t, http.MethodPost, "/api/auth/google/callback", "", map[string]string{"code": "bad", "state": consent.Query().Get("state")})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "INTERNAL", decode[errorBody](t, resp).Code)
}

func TestProtectedRoutesRequireAccessToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/auth/me", "/api/conversations", "/api/messages?conversationId=x"} {
		resp := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	resp := env.do(t, http.MethodGet, "/api/auth/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_TOKEN", decode[errorBody](t, resp).Code)
}

func TestConversationsAndMessages(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "Alice", "alice@example.com", "secret1")
	bob := env.signup(t, "Bob", "bob@example.com", "secret1")
	eve := env.signup(t, "Eve", "eve@example.com", "secret1")
	bobID := env.me(t, bob.AccessToken).ID
	aliceID := env.me(t, alice.AccessToken).ID

	resp := env.do(t, http.MethodPost, "/api/conversations", alice.AccessToken, map[string]string{"userId": bobID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	conv := decode[chat.Conversation](t, resp)

	resp = env.do(t, http.MethodPost, "/api/conversations", bob.AccessToken, map[string]string{"userId": aliceID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, conv.ID, decode[chat.Conversation](t, resp).ID)

	resp = env.do(t, http.MethodPost, "/api/conversations", alice.AccessToken, map[string]string{"userId": aliceID})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/conversations/"+conv.ID, eve.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for i := 0; i < 12; i++ {
		resp = env.do(t, http.MethodPost, "/api/messages", alice.AccessToken, map[string]string{"conversationId": conv.ID, "content": "hi"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/api/messages", eve.AccessToken, map[string]string{"conversationId": conv.ID, "content": "let me in"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/messages?conversationId="+conv.ID, bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[chat.Page](t, resp)
	require.Len(t, first.Data, 10)
	require.NotNil(t, first.NextCursor)

	resp = env.do(t, http.MethodGet, "/api/messages?conversationId="+conv.ID+"&cursor="+jsonNumber(*first.NextCursor), bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[chat.Page](t, resp)
	assert.Len(t, second.Data, 2)
	assert.Nil(t, second.NextCursor)

	resp = env.do(t, http.MethodGet, "/api/messages?conversationId="+conv.ID+"&cursor=abc", bob.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/messages?conversationId="+conv.ID, eve.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	target := second.Data[0].ID
	resp = env.do(t, http.MethodDelete, "/api/messages/"+jsonNumber(target)+"?conversationId="+conv.ID, bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodDelete, "/api/messages/"+jsonNumber(target)+"?conversationId="+conv.ID, bob.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/conversations", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]chat.Conversation](t, resp)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Messages, 11)

	resp = env.do(t, http.MethodGet, "/api/conversations/"+conv.ID, alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[chat.Conversation](t, resp)
	require.Len(t, detail.Messages, 11)
	assert.Less(t, detail.Messages[0].ID, detail.Messages[10].ID)
	assert.Len(t, detail.Participants, 2)

	resp = env.do(t, http.MethodDelete, "/api/conversations/"+conv.ID, eve.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = env.do(t, http.MethodDelete, "/api/conversations/"+conv.ID, bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/conversations/"+conv.ID, alice.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func jsonNumber(n int64) string {
	raw, _ := json.Marshal(n)
	return string(raw)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/auth/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://app.test", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")

	req, err = http.NewRequest(http.MethodOptions, env.srv.URL+"/api/auth/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestWriteAppErrorStatuses(t *testing.T) {
	cases := []struct {
		kind   apperr.Kind
		status int
	}{
		{apperr.Conflict, http.StatusConflict},
		{apperr.Unauthenticated, http.StatusUnauthorized},
		{apperr.Forbidden, http.StatusForbidden},
		{apperr.NotFound, http.StatusNotFound},
		{apperr.Expired, http.StatusGone},
		{apperr.ValidationMismatch, http.StatusUnprocessableEntity},
		{apperr.InvalidArgument, http.StatusBadRequest},
		{apperr.Upstream, http.StatusInternalServerError},
		{apperr.Internal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		writeAppError(rec, req, apperr.New(tc.kind, "CODE", "secret detail"))
		assert.Equal(t, tc.status, rec.Code, tc.kind.String())
		if tc.status == http.StatusInternalServerError {
			assert.NotContains(t, rec.Body.String(), "secret detail")
		}
	}

	rec := httptest.NewRecorder()
	writeAppError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), assertError("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "boom"))
}

type assertError string

func (e assertError) Error() string { return string(e) }
