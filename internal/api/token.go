package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ToppleTheNun/mchammer-sub000/internal/constants"
	"github.com/valyala/fasthttp"
)

// tokenSource fetches and caches an OAuth2 client-credentials token
// for the log source. Tokens are refreshed once they are within
// constants.TokenRefreshSkew of expiry.
type tokenSource struct {
	clientID     string
	clientSecret string
	tokenURL     string
	client       *fasthttp.Client

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func newTokenSource(clientID, clientSecret, tokenURL string, client *fasthttp.Client) *tokenSource {
	return &tokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		client:       client,
	}
}

// Token returns a cached access token, fetching a fresh one when the
// cached token is missing or about to expire.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.RLock()
	token, expiresAt := t.token, t.expiresAt
	t.mu.RUnlock()

	if token != "" && time.Until(expiresAt) > constants.TokenRefreshSkew {
		return token, nil
	}

	return t.refresh(ctx)
}

func (t *tokenSource) refresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if t.token != "" && time.Until(t.expiresAt) > constants.TokenRefreshSkew {
		return t.token, nil
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(t.tokenURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	credentials := base64.StdEncoding.EncodeToString([]byte(t.clientID + ":" + t.clientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.SetBodyString("grant_type=client_credentials")

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.client.DoDeadline(req, resp, deadline); err != nil {
			return "", fmt.Errorf("token request failed: %w", err)
		}
	} else {
		if err := t.client.Do(req, resp); err != nil {
			return "", fmt.Errorf("token request failed: %w", err)
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode())
	}

	var parsed tokenResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access token")
	}

	t.token = parsed.AccessToken
	t.expiresAt = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	return t.token, nil
}
