package cmd

import (
	"context"
	nethttp "net/http"

	"golang.org/x/oauth2"

	"github.com/abdul-hamid-achik/restpipe/packages/auth"
	"github.com/abdul-hamid-achik/restpipe/packages/http"
	"github.com/abdul-hamid-achik/restpipe/packages/logging"
)

// authorize installs an OAuth2 token on client when the settings ask for
// one. An explicit token always wins. The returned source is nil when no
// OAuth2 flow ran.
func authorize(ctx context.Context, client *http.Client) (oauth2.TokenSource, *oauth2.Token, error) {
	if !cfg.UsesOAuth2() {
		return nil, nil, nil
	}

	tokenClient := &nethttp.Client{Timeout: cfg.TimeoutDuration()}
	ts, err := cfg.OAuth2.TokenSource(ctx, tokenClient)
	if err != nil {
		return nil, nil, configError(err)
	}
	tok, err := auth.Authorize(client, ts)
	if err != nil {
		return nil, nil, configError(err)
	}

	logging.For("auth").Debug("oauth2 token installed",
		"grant", string(cfg.OAuth2.GrantType),
		"expires", tok.Expiry,
	)
	return ts, tok, nil
}

// keepAuthorized refreshes OAuth2 tokens for the life of ctx.
func keepAuthorized(ctx context.Context, client *http.Client, ts oauth2.TokenSource, tok *oauth2.Token) {
	if ts == nil {
		return
	}
	log := logging.For("auth")
	auth.KeepFresh(ctx, client, ts, tok, func(err error) {
		log.Warn("token refresh failed, keeping the previous token", "error", err)
	})
}
