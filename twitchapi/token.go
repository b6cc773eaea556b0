package twitchapi

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// twitchTokenURL is the Twitch OAuth client-credentials endpoint.
const twitchTokenURL = "https://id.twitch.tv/oauth2/token"

// TokenSource fetches and caches a Twitch app access (client credentials)
// token through x/oauth2; the library handles caching and re-fetch on expiry.
// NOTE: This token CANNOT be used for IRC chat; chat requires a user (bot)
// OAuth token with chat:read scope.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	TokenURL     string       // override for tests; defaults to the Twitch endpoint
	HTTPClient   *http.Client // optional

	mu  sync.Mutex
	src oauth2.TokenSource
}

// Get returns a valid (fresh or cached) app access token.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.src == nil {
		if ts.ClientID == "" || ts.ClientSecret == "" {
			return "", errors.New("missing client id/secret for twitch app token")
		}
		tokenURL := ts.TokenURL
		if tokenURL == "" {
			tokenURL = twitchTokenURL
		}
		cfg := &clientcredentials.Config{
			ClientID:     ts.ClientID,
			ClientSecret: ts.ClientSecret,
			TokenURL:     tokenURL,
			// Twitch wants credentials in the form body, not basic auth.
			AuthStyle: oauth2.AuthStyleInParams,
		}
		// The token source keeps refreshing in the background of Get calls,
		// so it is built against a long-lived context.
		srcCtx := context.Background()
		if ts.HTTPClient != nil {
			srcCtx = context.WithValue(srcCtx, oauth2.HTTPClient, ts.HTTPClient)
		}
		ts.src = cfg.TokenSource(srcCtx)
	}
	tok, err := ts.src.Token()
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.New("empty access_token in twitch response")
	}
	return tok.AccessToken, nil
}
