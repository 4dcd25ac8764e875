package api

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/stashmark/stashmark-server/internal/config"
	"github.com/stashmark/stashmark-server/internal/domain"
	"github.com/stashmark/stashmark-server/internal/service"
)

const oauthStateCookie = "stashmark_oauth_state"

func (s *Server) registerOAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "oauthAuthorize",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/{provider}",
		Summary:     "Start OAuth login",
		Description: "Redirects to the provider's consent screen",
		Tags:        []string{"Authentication"},
	}, s.handleOAuthAuthorize)

	huma.Register(s.api, huma.Operation{
		OperationID: "oauthCallback",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/{provider}/callback",
		Summary:     "OAuth callback",
		Description: "Completes the OAuth flow and redirects to the frontend with tokens",
		Tags:        []string{"Authentication"},
	}, s.handleOAuthCallback)
}

// === DTOs ===

// OAuthAuthorizeInput identifies the provider to authorize against.
type OAuthAuthorizeInput struct {
	Provider string `path:"provider" enum:"google,github" doc:"OAuth provider"`
}

// OAuthRedirectOutput issues a redirect with a state cookie.
type OAuthRedirectOutput struct {
	Status    int
	Location  string      `header:"Location"`
	SetCookie http.Cookie `header:"Set-Cookie"`
}

// OAuthCallbackInput carries the provider's callback parameters.
type OAuthCallbackInput struct {
	Provider    string `path:"provider" enum:"google,github" doc:"OAuth provider"`
	Code        string `query:"code" doc:"Authorization code"`
	State       string `query:"state" doc:"Opaque state value"`
	ErrorParam  string `query:"error" doc:"Provider error code, if the user denied access"`
	StateCookie string `cookie:"stashmark_oauth_state"`
}

// === Handlers ===

func (s *Server) handleOAuthAuthorize(_ context.Context, input *OAuthAuthorizeInput) (*OAuthRedirectOutput, error) {
	conf, err := s.oauthConfig(input.Provider)
	if err != nil {
		return nil, err
	}

	state, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	return &OAuthRedirectOutput{
		Status:   http.StatusTemporaryRedirect,
		Location: conf.AuthCodeURL(state),
		SetCookie: http.Cookie{
			Name:     oauthStateCookie,
			Value:    state,
			Path:     "/api/v1/auth",
			MaxAge:   int((10 * time.Minute).Seconds()),
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		},
	}, nil
}

func (s *Server) handleOAuthCallback(ctx context.Context, input *OAuthCallbackInput) (*OAuthRedirectOutput, error) {
	if input.ErrorParam != "" {
		return s.oauthFrontendError(input.ErrorParam), nil
	}
	if input.State == "" || input.State != input.StateCookie {
		return nil, huma.Error400BadRequest("OAuth state mismatch")
	}
	if input.Code == "" {
		return nil, huma.Error400BadRequest("Missing authorization code")
	}

	conf, err := s.oauthConfig(input.Provider)
	if err != nil {
		return nil, err
	}

	token, err := conf.Exchange(ctx, input.Code)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("OAuth code exchange failed",
				"provider", input.Provider,
				"error", err,
			)
		}
		return s.oauthFrontendError("exchange_failed"), nil
	}

	profile, err := fetchOAuthProfile(ctx, conf, token, input.Provider)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("OAuth profile fetch failed",
				"provider", input.Provider,
				"error", err,
			)
		}
		return s.oauthFrontendError("profile_failed"), nil
	}

	resp, err := s.services.Auth.LoginWithOAuth(ctx, *profile)
	if err != nil {
		return nil, err
	}

	// Hand the tokens to the frontend callback page, which stores them
	// and cleans the URL.
	callback := s.frontendURL() + "/oauth/callback?" + url.Values{
		"accessToken":  {resp.AccessToken},
		"refreshToken": {resp.RefreshToken},
		"userId":       {resp.User.ID},
	}.Encode()

	return &OAuthRedirectOutput{
		Status:    http.StatusTemporaryRedirect,
		Location:  callback,
		SetCookie: clearStateCookie(),
	}, nil
}

// oauthConfig builds the oauth2 config for a provider, or 404 when the
// provider is not configured.
func (s *Server) oauthConfig(provider string) (*oauth2.Config, error) {
	if s.cfg == nil {
		return nil, huma.Error404NotFound("OAuth is not configured")
	}

	var providerCfg config.OAuthProviderConfig
	var endpoint oauth2.Endpoint
	var scopes []string

	switch provider {
	case "google":
		providerCfg = s.cfg.OAuth.Google
		endpoint = google.Endpoint
		scopes = []string{"openid", "email", "profile"}
	case "github":
		providerCfg = s.cfg.OAuth.GitHub
		endpoint = github.Endpoint
		scopes = []string{"read:user", "user:email"}
	default:
		return nil, huma.Error404NotFound("Unknown OAuth provider")
	}

	if !providerCfg.Enabled() {
		return nil, huma.Error404NotFound("OAuth provider is not configured")
	}

	return &oauth2.Config{
		ClientID:     providerCfg.ClientID,
		ClientSecret: providerCfg.ClientSecret,
		RedirectURL:  providerCfg.CallbackURL,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}, nil
}

func (s *Server) oauthFrontendError(code string) *OAuthRedirectOutput {
	return &OAuthRedirectOutput{
		Status:    http.StatusTemporaryRedirect,
		Location:  s.frontendURL() + "/oauth/callback?" + url.Values{"error": {code}}.Encode(),
		SetCookie: clearStateCookie(),
	}
}

// clearStateCookie expires the OAuth state cookie.
func clearStateCookie() http.Cookie {
	return http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/api/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
	}
}

func (s *Server) frontendURL() string {
	if s.cfg != nil && s.cfg.App.FrontendURL != "" {
		return s.cfg.App.FrontendURL
	}
	return "http://localhost:5173"
}

// googleProfile is the subset of Google's userinfo response we read.
type googleProfile struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// githubProfile is the subset of GitHub's user response we read.
type githubProfile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// githubEmail is one entry of GitHub's /user/emails response.
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// fetchOAuthProfile retrieves the user's identity from the provider.
func fetchOAuthProfile(ctx context.Context, conf *oauth2.Config, token *oauth2.Token, provider string) (*service.OAuthProfile, error) {
	client := conf.Client(ctx, token)

	switch provider {
	case "google":
		return fetchGoogleProfile(client)
	case "github":
		return fetchGitHubProfile(client)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func fetchGoogleProfile(client *http.Client) (*service.OAuthProfile, error) {
	var profile googleProfile
	if err := fetchJSON(client, "https://openidconnect.googleapis.com/v1/userinfo", &profile); err != nil {
		return nil, err
	}

	providerID := profile.Sub
	if providerID == "" {
		providerID = profile.ID
	}

	return &service.OAuthProfile{
		Provider:   domain.ProviderGoogle,
		ProviderID: providerID,
		Email:      profile.Email,
		Name:       profile.Name,
		AvatarURL:  profile.Picture,
	}, nil
}

func fetchGitHubProfile(client *http.Client) (*service.OAuthProfile, error) {
	var profile githubProfile
	if err := fetchJSON(client, "https://api.github.com/user", &profile); err != nil {
		return nil, err
	}

	email := profile.Email
	if email == "" {
		// The public email is often hidden; fall back to the emails API
		var emails []githubEmail
		if err := fetchJSON(client, "https://api.github.com/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		}
	}

	name := profile.Name
	if name == "" {
		name = profile.Login
	}

	return &service.OAuthProfile{
		Provider:   domain.ProviderGitHub,
		ProviderID: strconv.FormatInt(profile.ID, 10),
		Email:      email,
		Name:       name,
		AvatarURL:  profile.AvatarURL,
	}, nil
}

// fetchJSON performs a GET and decodes the JSON response body.
func fetchJSON(client *http.Client, endpoint string, out any) error {
	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("get %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("get %s: status %d: %s", endpoint, resp.StatusCode, body)
	}

	if err := json.UnmarshalRead(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
