package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"meetmax/internal/apperr"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

var googleScopes = []string{
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
}

type OAuthProfile struct {
	ProviderID string
	Email      string
	Name       string
	PictureURL string
}

type OAuthProvider interface {
	AuthorizationURL(state string) string
	ExchangeCodeForProfile(ctx context.Context, code string) (*OAuthProfile, error)
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
}

type GoogleOAuth struct {
	oauth       *oauth2.Config
	userInfoURL string
}

func NewGoogleOAuth(cfg GoogleConfig) *GoogleOAuth {
	authURL := firstNonEmpty(cfg.AuthURL, googleAuthURL)
	tokenURL := firstNonEmpty(cfg.TokenURL, googleTokenURL)
	return &GoogleOAuth{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       googleScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: firstNonEmpty(cfg.UserInfoURL, googleUserInfoURL),
	}
}

// AuthorizationURL asks for offline access and always shows the consent screen.
func (g *GoogleOAuth) AuthorizationURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

type googleProfile struct {
	ID      string `json:"id"`
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (g *GoogleOAuth) ExchangeCodeForProfile(ctx context.Context, code string) (*OAuthProfile, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperr.New(apperr.Unauthenticated, "ACCESS_DENIED", "access denied")
	}

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "OAUTH_EXCHANGE_FAILED", "could not sign in with Google", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "OAUTH_PROFILE_FAILED", "could not sign in with Google", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.Wrap(apperr.Upstream, "OAUTH_PROFILE_FAILED", "could not sign in with Google",
			fmt.Errorf("userinfo status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var p googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil && err != io.EOF {
		return nil, apperr.Wrap(apperr.Upstream, "OAUTH_PROFILE_FAILED", "could not sign in with Google", err)
	}

	providerID := firstNonEmpty(p.ID, p.Sub)
	if p.Email == "" || providerID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "ACCESS_DENIED", "access denied")
	}

	return &OAuthProfile{
		ProviderID: providerID,
		Email:      strings.ToLower(p.Email),
		Name:       p.Name,
		PictureURL: p.Picture,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
