package server

import (
	"fmt"
	"net/http"
	"strings"

	"meetmax/internal/auth"
)

// handleRequestReset mails a password reset link. The route keeps the
// client's historical name, /api/auth/verify-email.
func (s *Server) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if !validateEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email format")
		return
	}

	ctx := r.Context()
	cooldownKey := "forgot_password_cooldown:" + strings.ToLower(strings.TrimSpace(req.Email))
	if ttl := s.RateLimiter.CooldownTTL(ctx, cooldownKey); ttl > 0 {
		writeTooManyRequests(w, fmt.Sprintf("Please wait %d seconds before making another request.", int(ttl.Seconds())), ttl)
		return
	}

	ip := clientIP(r, s.trustedProxies)
	if locked, ttl, err := s.RateLimiter.RegisterResetAttempt(ctx, req.Email, ip); err != nil {
		writeAppError(w, r, fmt.Errorf("request reset: rate limit check: %w", err))
		return
	} else if locked {
		writeTooManyRequests(w, "Too many reset requests. Try again later.", ttl)
		return
	}

	if err := s.Auth.RequestReset(ctx, req.Email); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.RateLimiter.SetCooldown(ctx, cooldownKey, auth.EmailCooldown)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "A password reset email has been sent with instructions.",
	})
}

type resetPasswordRequest struct {
	ResetToken         string `json:"resetToken"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.ResetToken) == "" {
		writeError(w, http.StatusBadRequest, "TOKEN_REQUIRED", "Token is required")
		return
	}
	if err := validatePassword(req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
		return
	}

	pair, err := s.Auth.ResetPassword(r.Context(), auth.ResetInput{
		Token:           strings.TrimSpace(req.ResetToken),
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmNewPassword,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, auth.AuditPasswordSet, s.subjectOf(pair), nil)

	writeJSON(w, http.StatusOK, pair)
}
