package google

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OutOfBandRedirectURL is used when no redirect URL is configured. The user
// copies the code from the consent page into `freetime auth exchange`.
const OutOfBandRedirectURL = "urn:ietf:wg:oauth:2.0:oob"

var (
	// ErrNoRefreshToken is returned when a refresh is attempted without a refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrRefreshRejected is returned when Google refuses the refresh token,
	// typically because it was revoked or has expired.
	ErrRefreshRejected = errors.New("refresh token rejected")
)

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Scopes defaults to DefaultOAuthScopes.
	Scopes []string

	// Endpoint defaults to google.Endpoint. Tests point it at a local server.
	Endpoint oauth2.Endpoint
}

// OAuthClient performs the Google OAuth2 flows.
type OAuthClient struct {
	conf *oauth2.Config
}

// NewOAuthClient validates cfg and returns a client.
func NewOAuthClient(cfg Config) (*OAuthClient, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("google client id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("google client secret is required")
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		Endpoint:     cfg.Endpoint,
	}
	if conf.RedirectURL == "" {
		conf.RedirectURL = OutOfBandRedirectURL
	}
	if len(conf.Scopes) == 0 {
		conf.Scopes = DefaultOAuthScopes
	}
	if conf.Endpoint.TokenURL == "" {
		conf.Endpoint = google.Endpoint
	}

	return &OAuthClient{conf: conf}, nil
}

// AuthCodeURL returns the consent page URL. Offline access and forced
// consent make Google issue a refresh token every time.
func (c *OAuthClient) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token pair.
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code cannot be empty")
	}
	t, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return t, nil
}

// Refresh obtains a new access token using refreshToken.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	ts := c.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	t, err := ts.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("%w: %s", ErrRefreshRejected, re.ErrorDescription)
		}
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if t.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned an empty access token")
	}
	return t, nil
}
