package server

import (
	"context"
	"net/http"
	"strings"

	"meetmax/internal/apperr"
	"meetmax/internal/auth"
	"meetmax/internal/i18n"
)

type ctxKey string

const (
	claimsContextKey       ctxKey = "claims"
	refreshTokenContextKey ctxKey = "refresh_token"
)

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// requireAccessToken rejects requests without a valid access token and puts
// the token's claims on the context.
func (s *Server) requireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
			return
		}
		claims, err := s.Tokens.ParseAccessToken(token)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRefreshToken is the refresh route's guard. Only the signature and
// expiry are checked here; the stored hash is compared by the service.
func (s *Server) requireRefreshToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
			return
		}
		claims, err := s.Tokens.ParseRefreshToken(token)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		ctx = context.WithValue(ctx, refreshTokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	if val, ok := ctx.Value(claimsContextKey).(*auth.Claims); ok {
		return val
	}
	return nil
}

func refreshTokenFromContext(ctx context.Context) string {
	val, _ := ctx.Value(refreshTokenContextKey).(string)
	return val
}

func withLocale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := i18n.WithLocale(r.Context(), i18n.LocaleFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate resolves the user of a WebSocket upgrade. Browsers cannot set
// headers on the upgrade, so the access token may come in the query string.
func (s *Server) Authenticate(r *http.Request) (string, error) {
	token := bearerToken(r)
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return "", apperr.New(apperr.Unauthenticated, "UNAUTHORIZED", "Unauthorized")
	}
	claims, err := s.Tokens.ParseAccessToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
