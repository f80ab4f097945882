package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"meetmax/internal/auth"
)

const oauthStatePrefix = "oauth_state:"
const oauthStateTTL = 10 * time.Minute

func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken(16)
	if err != nil {
		writeAppError(w, r, fmt.Errorf("oauth start: state: %w", err))
		return
	}
	if err := s.Redis.Set(r.Context(), oauthStatePrefix+state, "google", oauthStateTTL).Err(); err != nil {
		writeAppError(w, r, fmt.Errorf("oauth start: persist state: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": s.Auth.OAuthURL(state)})
}

type oauthCallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	var req oauthCallbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	req.State = strings.TrimSpace(req.State)
	if req.Code == "" || req.State == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "code and state are required")
		return
	}

	// A state is good for one callback.
	provider, err := s.Redis.GetDel(r.Context(), oauthStatePrefix+req.State).Result()
	if errors.Is(err, redis.Nil) || (err == nil && provider != "google") {
		writeError(w, http.StatusUnauthorized, "INVALID_STATE", "Sign-in session expired. Please try again.")
		return
	}
	if err != nil {
		writeAppError(w, r, fmt.Errorf("oauth callback: state lookup: %w", err))
		return
	}

	pair, err := s.Auth.OAuthCallback(r.Context(), req.Code)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, auth.AuditOAuthLogin, s.subjectOf(pair), map[string]interface{}{"provider": provider})

	writeJSON(w, http.StatusOK, pair)
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
