package auth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetmax/internal/apperr"
)

const (
	TemplateOTP           = "otp"
	TemplateResetPassword = "reset-password"
)

// Mailer delivers a localized templated message. Failures are not retried.
type Mailer interface {
	SendTemplate(ctx context.Context, to, templateID string, data map[string]string) error
}

type ServiceConfig struct {
	OTPTTL                time.Duration
	FrontendURL           string
	SkipEmailVerification bool
}

// Service runs the signup, verification, login, refresh, reset and OAuth
// flows. Every flow that ends in a token pair rotates the stored refresh
// hash after issuing it.
type Service struct {
	store  Store
	tokens *TokenService
	hasher PasswordHasher
	codes  CodeGenerator
	mailer Mailer
	oauth  OAuthProvider
	cfg    ServiceConfig
	now    func() time.Time
}

func NewService(store Store, tokens *TokenService, hasher PasswordHasher, codes CodeGenerator, mailer Mailer, oauth OAuthProvider, cfg ServiceConfig) *Service {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 10 * time.Minute
	}
	return &Service{
		store:  store,
		tokens: tokens,
		hasher: hasher,
		codes:  codes,
		mailer: mailer,
		oauth:  oauth,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Tokens() *TokenService {
	return s.tokens
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
	Birth    *time.Time
	Gender   Gender
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*User, error) {
	email := normalizeEmail(in.Email)

	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("signup: lookup by email: %w", err)
	}
	if existing != nil {
		return nil, apperr.New(apperr.Conflict, "EMAIL_TAKEN", "a user with this email already exists")
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("signup: hash password: %w", err)
	}

	nu := NewUser{
		Name:          strings.TrimSpace(in.Name),
		Email:         email,
		PasswordHash:  &hashed,
		EmailVerified: s.cfg.SkipEmailVerification,
		Birth:         in.Birth,
	}
	if in.Gender.Valid() {
		g := in.Gender
		avatar := g.DefaultAvatar()
		nu.Gender = &g
		nu.Image = &avatar
	}

	user, err := s.store.CreateUser(ctx, nu)
	if err != nil {
		if apperr.Is(err, apperr.Conflict) {
			return nil, err
		}
		return nil, fmt.Errorf("signup: create user: %w", err)
	}

	if !s.cfg.SkipEmailVerification {
		if err := s.issueOTP(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *Service) VerifyOTP(ctx context.Context, email, otp string) (TokenPair, error) {
	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return TokenPair{}, fmt.Errorf("verify otp: lookup user: %w", err)
	}
	if user == nil {
		return TokenPair{}, apperr.New(apperr.NotFound, "USER_NOT_FOUND", "user not found")
	}

	code, err := s.store.FindCodeByUser(ctx, user.ID, CodeKindOTP)
	if err != nil {
		return TokenPair{}, fmt.Errorf("verify otp: lookup code: %w", err)
	}
	if code == nil {
		return TokenPair{}, apperr.New(apperr.NotFound, "CODE_NOT_FOUND", "no verification code for this user")
	}
	if !code.ExpiresAt.After(s.now()) {
		return TokenPair{}, apperr.New(apperr.Expired, "CODE_EXPIRED", "verification code has expired")
	}
	if !matchesHash(code.Value, strings.TrimSpace(otp)) {
		return TokenPair{}, apperr.New(apperr.Unauthenticated, "INVALID_CODE", "invalid verification code")
	}

	verified := true
	if err := s.store.UpdateUser(ctx, user.ID, UserUpdate{EmailVerified: &verified}); err != nil {
		return TokenPair{}, fmt.Errorf("verify otp: mark verified: %w", err)
	}
	if err := s.store.DeleteCodesByUserAndKind(ctx, user.ID, CodeKindOTP); err != nil {
		return TokenPair{}, fmt.Errorf("verify otp: delete codes: %w", err)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) ResendOTP(ctx context.Context, email string) error {
	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("resend otp: lookup user: %w", err)
	}
	if user == nil {
		return apperr.New(apperr.NotFound, "USER_NOT_FOUND", "user not found")
	}
	if user.EmailVerified {
		return apperr.New(apperr.Conflict, "ALREADY_VERIFIED", "email is already verified")
	}
	return s.issueOTP(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return TokenPair{}, fmt.Errorf("login: lookup user: %w", err)
	}
	if user == nil || user.OAuthOnly() {
		return TokenPair{}, apperr.New(apperr.NotFound, "USER_NOT_FOUND", "no account with a password exists for this email")
	}
	if !s.hasher.Compare(*user.PasswordHash, password) {
		return TokenPair{}, apperr.New(apperr.Unauthenticated, "INVALID_CREDENTIALS", "invalid email or password")
	}
	if !user.EmailVerified {
		return TokenPair{}, apperr.New(apperr.Unauthenticated, "EMAIL_NOT_VERIFIED", "email address is not verified")
	}
	return s.issueSession(ctx, user)
}

// RequestReset mails a signed reset link and records its hash with the
// same expiry as the token.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("request reset: lookup user: %w", err)
	}
	if user == nil {
		return apperr.New(apperr.NotFound, "USER_NOT_FOUND", "user not found")
	}
	if user.OAuthOnly() {
		return apperr.New(apperr.NotFound, "OAUTH_ACCOUNT", "this account signs in with Google")
	}

	token, expiresAt, err := s.tokens.IssueResetToken(user.ID, user.Email)
	if err != nil {
		return fmt.Errorf("request reset: issue token: %w", err)
	}
	if err := s.replaceCode(ctx, user.ID, CodeKindReset, token, expiresAt); err != nil {
		return fmt.Errorf("request reset: %w", err)
	}

	link := strings.TrimRight(s.cfg.FrontendURL, "/") + "/confirm?reset-token=" + url.QueryEscape(token)
	data := map[string]string{
		"link":    link,
		"minutes": strconv.Itoa(int(expiresAt.Sub(s.now()).Round(time.Minute).Minutes())),
	}
	if err := s.mailer.SendTemplate(ctx, user.Email, TemplateResetPassword, data); err != nil {
		return apperr.Wrap(apperr.Upstream, "MAIL_FAILED", "could not send reset email", err)
	}
	return nil
}

type ResetInput struct {
	Token           string
	NewPassword     string
	ConfirmPassword string
}

func (s *Service) ResetPassword(ctx context.Context, in ResetInput) (TokenPair, error) {
	claims, err := s.tokens.ParseResetToken(in.Token)
	if err != nil {
		return TokenPair{}, err
	}

	user, err := s.store.FindUserByID(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("reset password: lookup user: %w", err)
	}
	if user == nil || !strings.EqualFold(user.Email, claims.Email) {
		return TokenPair{}, apperr.New(apperr.Unauthenticated, "INVALID_TOKEN", "invalid reset token")
	}

	code, err := s.store.FindCodeByUser(ctx, user.ID, CodeKindReset)
	if err != nil {
		return TokenPair{}, fmt.Errorf("reset password: lookup code: %w", err)
	}
	if code == nil {
		return TokenPair{}, apperr.New(apperr.NotFound, "CODE_NOT_FOUND", "no pending password reset")
	}
	if !matchesHash(code.Value, in.Token) {
		return TokenPair{}, apperr.New(apperr.Unauthenticated, "INVALID_TOKEN", "reset link is no longer valid")
	}
	if !code.ExpiresAt.After(s.now()) {
		return TokenPair{}, apperr.New(apperr.Expired, "RESET_TOKEN_EXPIRED", "reset link has expired")
	}
	if in.NewPassword != in.ConfirmPassword {
		return TokenPair{}, apperr.New(apperr.ValidationMismatch, "PASSWORD_MISMATCH", "passwords do not match")
	}

	hashed, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return TokenPair{}, fmt.Errorf("reset password: hash: %w", err)
	}
	verified := true
	if err := s.store.UpdateUser(ctx, user.ID, UserUpdate{PasswordHash: &hashed, EmailVerified: &verified}); err != nil {
		return TokenPair{}, fmt.Errorf("reset password: update user: %w", err)
	}
	if err := s.store.DeleteCodesByUserAndKind(ctx, user.ID, CodeKindReset); err != nil {
		return TokenPair{}, fmt.Errorf("reset password: delete codes: %w", err)
	}
	return s.issueSession(ctx, user)
}

// Refresh trades a valid refresh token for a new pair. The presented token
// stops verifying once this returns.
func (s *Service) Refresh(ctx context.Context, userID, refreshToken string) (TokenPair, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("refresh: lookup user: %w", err)
	}
	if user == nil || !s.tokens.VerifyRefreshToken(ctx, user.ID, refreshToken) {
		return TokenPair{}, apperr.New(apperr.Forbidden, "ACCESS_DENIED", "access denied")
	}
	return s.issueSession(ctx, user)
}

func (s *Service) OAuthURL(state string) string {
	return s.oauth.AuthorizationURL(state)
}

func (s *Service) OAuthCallback(ctx context.Context, code string) (TokenPair, error) {
	profile, err := s.oauth.ExchangeCodeForProfile(ctx, code)
	if err != nil {
		return TokenPair{}, err
	}

	user, err := s.store.FindUserByGoogleID(ctx, profile.ProviderID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("oauth: lookup by provider id: %w", err)
	}
	if user != nil {
		return s.issueSession(ctx, user)
	}

	email := normalizeEmail(profile.Email)
	user, err = s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("oauth: lookup user: %w", err)
	}

	if user == nil {
		providerID := profile.ProviderID
		nu := NewUser{
			Name:          profile.Name,
			Email:         email,
			GoogleID:      &providerID,
			EmailVerified: true,
		}
		if profile.PictureURL != "" {
			pic := profile.PictureURL
			nu.Image = &pic
		}
		user, err = s.store.CreateUser(ctx, nu)
		if err != nil {
			return TokenPair{}, fmt.Errorf("oauth: create user: %w", err)
		}
	} else if user.GoogleID == nil || *user.GoogleID == "" {
		providerID := profile.ProviderID
		if err := s.store.UpdateUser(ctx, user.ID, UserUpdate{GoogleID: &providerID}); err != nil {
			return TokenPair{}, fmt.Errorf("oauth: link provider: %w", err)
		}
		user.GoogleID = &providerID
	}

	return s.issueSession(ctx, user)
}

// Logout drops the stored refresh hash so no refresh token verifies.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.store.UpdateUser(ctx, userID, UserUpdate{ClearRefreshToken: true}); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (s *Service) Me(ctx context.Context, userID string) (*User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("me: lookup user: %w", err)
	}
	if user == nil {
		return nil, apperr.New(apperr.NotFound, "USER_NOT_FOUND", "user not found")
	}
	return user, nil
}

func (s *Service) issueSession(ctx context.Context, user *User) (TokenPair, error) {
	pair, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.RotateRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (s *Service) issueOTP(ctx context.Context, user *User) error {
	code, err := s.codes.NewCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := s.replaceCode(ctx, user.ID, CodeKindOTP, code, s.now().Add(s.cfg.OTPTTL)); err != nil {
		return fmt.Errorf("issue otp: %w", err)
	}

	data := map[string]string{
		"code":    code,
		"name":    user.Name,
		"minutes": strconv.Itoa(int(s.cfg.OTPTTL.Minutes())),
	}
	if err := s.mailer.SendTemplate(ctx, user.Email, TemplateOTP, data); err != nil {
		return apperr.Wrap(apperr.Upstream, "MAIL_FAILED", "could not send verification email", err)
	}
	return nil
}

// replaceCode keeps at most one live code per user and kind.
func (s *Service) replaceCode(ctx context.Context, userID string, kind CodeKind, plain string, expiresAt time.Time) error {
	if err := s.store.DeleteCodesByUserAndKind(ctx, userID, kind); err != nil {
		return fmt.Errorf("delete previous %s codes: %w", kind, err)
	}
	return s.store.CreateCode(ctx, VerificationCode{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Value:     HashString(plain),
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
