package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	// ClientCredentials is the client_credentials grant type
	ClientCredentials GrantType = "client_credentials"
	// Password is the password (resource owner) grant type
	Password GrantType = "password"
)

// Config holds OAuth2 configuration
type Config struct {
	GrantType    GrantType `json:"grantType,omitempty" yaml:"grantType,omitempty"`
	TokenURL     string    `json:"tokenURL,omitempty" yaml:"tokenURL,omitempty"`
	ClientID     string    `json:"clientID,omitempty" yaml:"clientID,omitempty"`
	ClientSecret string    `json:"clientSecret,omitempty" yaml:"clientSecret,omitempty"`
	Scopes       []string  `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Username     string    `json:"username,omitempty" yaml:"username,omitempty"` // password grant
	Password     string    `json:"password,omitempty" yaml:"password,omitempty"` // password grant
}

// TokenSetter is the part of the pipeline client that receives tokens.
type TokenSetter interface {
	SetAuthToken(token string)
}

// refreshLead is how long before expiry KeepFresh fetches the next token.
// It sits inside oauth2's own expiry window so the cached token is
// actually replaced.
const refreshLead = 5 * time.Second

var minRefreshWait = time.Second

func (c *Config) grant() GrantType {
	if c.GrantType == "" {
		return ClientCredentials
	}
	return c.GrantType
}

// Validate reports a config that cannot produce a token.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return errors.New("oauth2: tokenURL is required")
	}
	if c.ClientID == "" {
		return errors.New("oauth2: clientID is required")
	}
	switch c.grant() {
	case ClientCredentials:
	case Password:
		if c.Username == "" {
			return errors.New("oauth2: username is required for the password grant")
		}
	default:
		return fmt.Errorf("oauth2: unsupported grant type %q (expected client_credentials or password)", c.GrantType)
	}
	return nil
}

// Merge overlays the non-empty fields of other onto c.
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}
	if c == nil {
		cp := *other
		return &cp
	}

	result := *c
	if other.GrantType != "" {
		result.GrantType = other.GrantType
	}
	if other.TokenURL != "" {
		result.TokenURL = other.TokenURL
	}
	if other.ClientID != "" {
		result.ClientID = other.ClientID
	}
	if other.ClientSecret != "" {
		result.ClientSecret = other.ClientSecret
	}
	if len(other.Scopes) > 0 {
		result.Scopes = other.Scopes
	}
	if other.Username != "" {
		result.Username = other.Username
	}
	if other.Password != "" {
		result.Password = other.Password
	}
	return &result
}

// TokenSource returns a caching source for the configured grant. The first
// token is fetched lazily except for the password grant, which has to
// exchange the credentials up front.
func (c *Config) TokenSource(ctx context.Context, httpClient *http.Client) (oauth2.TokenSource, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	switch c.grant() {
	case Password:
		cfg := &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Scopes:       c.Scopes,
			Endpoint:     oauth2.Endpoint{TokenURL: c.TokenURL},
		}
		tok, err := cfg.PasswordCredentialsToken(ctx, c.Username, c.Password)
		if err != nil {
			return nil, fmt.Errorf("oauth2: password grant failed: %w", err)
		}
		return cfg.TokenSource(ctx, tok), nil
	default:
		cfg := &clientcredentials.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			TokenURL:     c.TokenURL,
			Scopes:       c.Scopes,
		}
		return cfg.TokenSource(ctx), nil
	}
}

// Authorize fetches a token from ts and installs it on client.
func Authorize(client TokenSetter, ts oauth2.TokenSource) (*oauth2.Token, error) {
	tok, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("oauth2: token request failed: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("oauth2: token endpoint returned no access_token")
	}
	if tt := tok.Type(); !strings.EqualFold(tt, "bearer") {
		return nil, fmt.Errorf("oauth2: unsupported token type %q", tt)
	}
	client.SetAuthToken(tok.AccessToken)
	return tok, nil
}

// KeepFresh replaces the client's token shortly before each one expires,
// until ctx is done. Tokens without an expiry are never refreshed. Refresh
// failures go to onError and are retried after a short pause; the previous
// token stays installed meanwhile.
func KeepFresh(ctx context.Context, client TokenSetter, ts oauth2.TokenSource, current *oauth2.Token, onError func(error)) {
	if onError == nil {
		onError = func(err error) { slog.Warn("token refresh failed", "error", err) }
	}

	tok := current
	for tok != nil && !tok.Expiry.IsZero() {
		wait := time.Until(tok.Expiry) - refreshLead
		if wait < minRefreshWait {
			wait = minRefreshWait
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		next, err := Authorize(client, ts)
		if err != nil {
			onError(err)
			continue
		}
		tok = next
	}
}
