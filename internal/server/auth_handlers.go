package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"meetmax/internal/apperr"
	"meetmax/internal/auth"
)

const birthLayout = "2006-01-02"

type userResponse struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	EmailVerified bool         `json:"emailVerified"`
	Birth         *string      `json:"birth"`
	Gender        *auth.Gender `json:"gender"`
	Image         *string      `json:"image"`
	HasPassword   bool         `json:"hasPassword"`
	GoogleLinked  bool         `json:"googleLinked"`
	CreatedAt     time.Time    `json:"createdAt"`
}

func publicUser(u *auth.User) userResponse {
	resp := userResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Gender:        u.Gender,
		Image:         u.Image,
		HasPassword:   !u.OAuthOnly(),
		GoogleLinked:  u.GoogleID != nil && *u.GoogleID != "",
		CreatedAt:     u.CreatedAt,
	}
	if u.Birth != nil {
		b := u.Birth.Format(birthLayout)
		resp.Birth = &b
	}
	return resp
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Birth    string `json:"birth"`
	Gender   string `json:"gender"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "INVALID_NAME", "Name is required")
		return
	}
	if !validateEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email format")
		return
	}
	if err := validatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
		return
	}

	in := auth.SignupInput{Name: req.Name, Email: req.Email, Password: req.Password}
	if req.Birth != "" {
		birth, err := parseBirth(req.Birth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BIRTH", "birth must be a date (YYYY-MM-DD)")
			return
		}
		in.Birth = &birth
	}
	if req.Gender != "" {
		in.Gender = auth.Gender(strings.ToUpper(req.Gender))
		if !in.Gender.Valid() {
			writeError(w, http.StatusBadRequest, "INVALID_GENDER", "gender must be MALE or FEMALE")
			return
		}
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	if locked, ttl, err := s.RateLimiter.RegisterRegisterAttempt(ctx, req.Email, ip); err != nil {
		writeAppError(w, r, fmt.Errorf("register: rate limit check: %w", err))
		return
	} else if locked {
		writeTooManyRequests(w, "Too many signup attempts. Try again later.", ttl)
		return
	}

	user, err := s.Auth.Signup(ctx, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, auth.AuditSignup, user.ID, nil)

	message := "Registration successful! Please check your email to verify your account."
	if user.EmailVerified {
		message = "Registration successful! You can now sign in."
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":                   message,
		"emailVerificationRequired": !user.EmailVerified,
		"user":                      publicUser(user),
	})
}

func parseBirth(raw string) (time.Time, error) {
	if t, err := time.Parse(birthLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC().Truncate(24 * time.Hour), nil
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	req.OTP = strings.TrimSpace(req.OTP)
	if !validateEmail(req.Email) || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "email and otp are required")
		return
	}

	ctx := r.Context()
	locked, ttl, err := s.RateLimiter.RegisterVerifyAttempt(ctx, req.Email)
	if err != nil {
		writeAppError(w, r, fmt.Errorf("verify otp: rate limit check: %w", err))
		return
	}
	if locked {
		writeTooManyRequests(w, "Too many verification attempts. Try again later.", ttl)
		return
	}

	pair, err := s.Auth.VerifyOTP(ctx, req.Email, req.OTP)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.RateLimiter.ResetVerify(ctx, req.Email)
	s.audit(r, auth.AuditVerifyEmail, s.subjectOf(pair), nil)

	writeJSON(w, http.StatusOK, pair)
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
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
	cooldownKey := "resend_otp_cooldown:" + strings.ToLower(strings.TrimSpace(req.Email))
	if ttl := s.RateLimiter.CooldownTTL(ctx, cooldownKey); ttl > 0 {
		writeTooManyRequests(w, fmt.Sprintf("Please wait %d seconds before requesting another code.", int(ttl.Seconds())), ttl)
		return
	}

	if err := s.Auth.ResendOTP(ctx, req.Email); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.RateLimiter.SetCooldown(ctx, cooldownKey, auth.EmailCooldown)

	writeJSON(w, http.StatusOK, map[string]string{"message": "A new verification code has been sent."})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if !validateEmail(req.Email) || req.Password == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "email and password are required")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	if s.RateLimiter.IsIPBanned(ctx, ip) {
		writeError(w, http.StatusForbidden, "IP_BANNED", "Too many failed sign-in attempts. Try again later.")
		return
	}

	pair, err := s.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if code := apperr.CodeOf(err); code == "INVALID_CREDENTIALS" || apperr.Is(err, apperr.NotFound) {
			_ = s.RateLimiter.RegisterLoginFailure(ctx, ip)
			s.audit(r, auth.AuditLoginFailed, "", map[string]interface{}{"email": strings.ToLower(req.Email)})
		}
		writeAppError(w, r, err)
		return
	}

	s.RateLimiter.ResetLogin(ctx, ip)
	s.audit(r, auth.AuditLogin, s.subjectOf(pair), nil)
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	pair, err := s.Auth.Refresh(r.Context(), claims.UserID, refreshTokenFromContext(r.Context()))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, auth.AuditRefresh, claims.UserID, nil)
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}
	if err := s.Auth.Logout(r.Context(), claims.UserID); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, auth.AuditLogout, claims.UserID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	user, err := s.Auth.Me(r.Context(), claims.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, publicUser(user))
}

// subjectOf returns the user id an issued pair belongs to.
func (s *Server) subjectOf(pair auth.TokenPair) string {
	claims, err := s.Tokens.ParseAccessToken(pair.AccessToken)
	if err != nil {
		return ""
	}
	return claims.UserID
}
