package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"meetmax/internal/apperr"
)

var ErrMissingSecret = errors.New("token secret is not configured")

type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	ResetSecret   string
	ResetTTL      time.Duration
}

// Claims is the payload of every token the service signs.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenService signs access, refresh and reset tokens and keeps the hash of
// the latest refresh token on the user row. Only one refresh token per user
// verifies at a time.
type TokenService struct {
	cfg    TokenConfig
	store  Store
	hasher PasswordHasher
	now    func() time.Time
}

func NewTokenService(cfg TokenConfig, store Store, hasher PasswordHasher) (*TokenService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" || cfg.ResetSecret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 15 * time.Minute
	}
	return &TokenService{cfg: cfg, store: store, hasher: hasher, now: time.Now}, nil
}

// SetClock replaces the time source used for issuing and validating tokens.
func (t *TokenService) SetClock(now func() time.Time) {
	t.now = now
}

func (t *TokenService) IssueAccessToken(userID, email string) (string, error) {
	token, _, err := t.sign(t.cfg.AccessSecret, t.cfg.AccessTTL, userID, email)
	return token, err
}

func (t *TokenService) IssueRefreshToken(userID, email string) (string, error) {
	token, _, err := t.sign(t.cfg.RefreshSecret, t.cfg.RefreshTTL, userID, email)
	return token, err
}

// IssueResetToken returns the signed token and its expiry, truncated to the
// second as encoded in the token.
func (t *TokenService) IssueResetToken(userID, email string) (string, time.Time, error) {
	return t.sign(t.cfg.ResetSecret, t.cfg.ResetTTL, userID, email)
}

func (t *TokenService) IssuePair(userID, email string) (TokenPair, error) {
	access, err := t.IssueAccessToken(userID, email)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.IssueRefreshToken(userID, email)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// RotateRefreshToken stores the hash of refreshToken, invalidating any
// refresh token issued before it.
func (t *TokenService) RotateRefreshToken(ctx context.Context, userID, refreshToken string) error {
	hash, err := t.hasher.Hash(prehash(refreshToken))
	if err != nil {
		return fmt.Errorf("hash refresh token: %w", err)
	}
	if err := t.store.UpdateUser(ctx, userID, UserUpdate{RefreshTokenHash: &hash}); err != nil {
		return fmt.Errorf("store refresh token hash: %w", err)
	}
	return nil
}

// VerifyRefreshToken reports whether presented matches the stored hash.
// Lookup failures count as a mismatch.
func (t *TokenService) VerifyRefreshToken(ctx context.Context, userID, presented string) bool {
	user, err := t.store.FindUserByID(ctx, userID)
	if err != nil || user == nil || user.RefreshTokenHash == nil {
		return false
	}
	return t.hasher.Compare(*user.RefreshTokenHash, prehash(presented))
}

func (t *TokenService) ParseAccessToken(token string) (*Claims, error) {
	claims, err := t.parse(t.cfg.AccessSecret, token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.Unauthenticated, "TOKEN_EXPIRED", "access token expired", err)
		}
		return nil, apperr.Wrap(apperr.Unauthenticated, "INVALID_TOKEN", "invalid access token", err)
	}
	return claims, nil
}

func (t *TokenService) ParseRefreshToken(token string) (*Claims, error) {
	claims, err := t.parse(t.cfg.RefreshSecret, token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.Unauthenticated, "TOKEN_EXPIRED", "refresh token expired", err)
		}
		return nil, apperr.Wrap(apperr.Unauthenticated, "INVALID_TOKEN", "invalid refresh token", err)
	}
	return claims, nil
}

func (t *TokenService) ParseResetToken(token string) (*Claims, error) {
	claims, err := t.parse(t.cfg.ResetSecret, token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.Expired, "RESET_TOKEN_EXPIRED", "reset link has expired", err)
		}
		return nil, apperr.Wrap(apperr.Unauthenticated, "INVALID_TOKEN", "invalid reset token", err)
	}
	return claims, nil
}

func (t *TokenService) sign(secret string, ttl time.Duration, userID, email string) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, ErrMissingSecret
	}
	now := t.now()
	expiresAt := now.Add(ttl).Truncate(time.Second)
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (t *TokenService) parse(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
