package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	models "github.com/phillip/event-finder-go/models"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides; empty means Google's production endpoints.
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// GoogleProvider runs the OAuth2 authorization code flow against Google and
// reads the signed-in profile from the OpenID userinfo endpoint.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   orDefault(cfg.AuthURL, googleAuthURL),
				TokenURL:  orDefault(cfg.TokenURL, googleTokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: orDefault(cfg.UserInfoURL, googleUserInfoURL),
	}
}

func (p *GoogleProvider) Configured() bool {
	return p.oauth.ClientID != "" && p.oauth.ClientSecret != ""
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Identify exchanges code for a token and fetches the user's profile.
func (p *GoogleProvider) Identify(ctx context.Context, code string) (models.Identity, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return models.Identity{}, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return models.Identity{}, err
	}
	resp, err := p.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return models.Identity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Identity{}, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var info struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return models.Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return models.Identity{}, errors.New("userinfo has no subject")
	}

	return models.Identity{
		Subject:      info.Sub,
		DisplayName:  info.Name,
		Email:        info.Email,
		ProfilePhoto: info.Picture,
	}, nil
}
