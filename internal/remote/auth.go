package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cleared-dev/banksync/internal/model"
)

// DefaultTokenTTL is assumed when the login response carries no expiry.
const DefaultTokenTTL = 3500 * time.Second

var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
}

// Authenticator exchanges an account's client id and API key for a bearer
// token. It never retries.
type Authenticator struct {
	client *Client
}

// NewAuthenticator returns an Authenticator using c.
func NewAuthenticator(c *Client) *Authenticator {
	return &Authenticator{client: c}
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// Authenticate calls the login endpoint once. Any failure, including a
// transport error, is an *AuthenticationError.
func (a *Authenticator) Authenticate(ctx context.Context, accountID, secretKey string) (model.Token, error) {
	fail := func(err error) (model.Token, error) {
		return model.Token{}, &AuthenticationError{AccountID: accountID, Err: err}
	}

	resp, err := a.client.do(ctx, accountID, http.MethodPost, loginPath, nil, map[string]string{
		"x-client-id":  accountID,
		"x-api-key":    secretKey,
		"Content-Type": "application/json",
	})
	if err != nil {
		return fail(err)
	}
	if resp.unauthorized() || resp.failed() {
		return fail(resp.apiError())
	}

	var body loginResponse
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return fail(fmt.Errorf("decoding login response: %w", err))
	}
	if body.Token == "" {
		return fail(errors.New("login response has no token"))
	}

	now := a.client.now()
	return model.Token{Value: body.Token, Expiry: parseExpiry(body.ExpiresAt, now)}, nil
}

func parseExpiry(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return now.Add(DefaultTokenTTL).UTC()
}
