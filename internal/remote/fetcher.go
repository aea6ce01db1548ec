package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cleared-dev/banksync/internal/model"
)

const (
	// PageSize is the fixed number of transactions requested per page.
	PageSize = 100

	// ExpiryBuffer is how long a cached token must remain valid to be reused.
	ExpiryBuffer = 5 * time.Minute
)

// TokenCache is durable per-account token storage shared between processes.
// Implementations must read the stored value on every call.
type TokenCache interface {
	Token(ctx context.Context, accountID string) (model.Token, bool, error)
	PutToken(ctx context.Context, accountID string, token string, expiry time.Time) error
	ClearToken(ctx context.Context, accountID string) error
}

// Page is one page of the transaction feed. Items that did not decode as
// transactions are in Rejected and never affect the rest of the page.
type Page struct {
	Items    []model.RemoteTransaction
	Rejected []RejectedItem
	HasMore  bool
}

// RejectedItem is a feed item that could not be decoded.
type RejectedItem struct {
	ID  string // empty when the item has no readable id
	Err error
}

type rawPage struct {
	Items   []json.RawMessage `json:"items"`
	HasMore bool              `json:"has_more"`
}

// decodePage decodes the page envelope, then each item on its own.
func decodePage(body []byte) (Page, error) {
	var raw rawPage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Page{}, err
	}
	page := Page{HasMore: raw.HasMore}
	for i, item := range raw.Items {
		var txn model.RemoteTransaction
		if err := json.Unmarshal(item, &txn); err != nil {
			page.Rejected = append(page.Rejected, RejectedItem{
				ID:  itemID(item),
				Err: fmt.Errorf("decoding item %d: %w", i, err),
			})
			continue
		}
		page.Items = append(page.Items, txn)
	}
	return page, nil
}

// itemID recovers the id of an undecodable item, string or number.
func itemID(item json.RawMessage) string {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(item, &head); err != nil || len(head.ID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(head.ID, &s); err == nil {
		return s
	}
	if string(head.ID) == "null" {
		return ""
	}
	return string(head.ID)
}

// Fetcher lists transactions page by page, authenticating as needed.
type Fetcher struct {
	client *Client
	auth   *Authenticator
	tokens TokenCache
}

// NewFetcher returns a Fetcher that caches tokens in tokens.
func NewFetcher(c *Client, tokens TokenCache) *Fetcher {
	return &Fetcher{client: c, auth: NewAuthenticator(c), tokens: tokens}
}

// Fetch returns page pageNum of account's transactions created within
// window. A rejected token is cleared and the page is retried once with a
// fresh one; a second rejection is an *AuthenticationError. Other HTTP
// failures are an *APIError and are not retried.
func (f *Fetcher) Fetch(ctx context.Context, account model.RemoteAccount, window model.SyncWindow, pageNum, pageSize int) (Page, error) {
	token, err := f.ValidToken(ctx, account)
	if err != nil {
		return Page{}, err
	}

	query := url.Values{}
	query.Set("from_created_at", window.From.UTC().Format(time.RFC3339))
	query.Set("to_created_at", window.To.UTC().Format(time.RFC3339))
	query.Set("page_num", strconv.Itoa(pageNum))
	query.Set("page_size", strconv.Itoa(pageSize))

	resp, err := f.list(ctx, account.AccountID, token, query)
	if err != nil {
		return Page{}, err
	}
	if resp.unauthorized() {
		f.client.log.Warn().
			Str("account", account.AccountID).
			Int("page", pageNum).
			Msg("token rejected, re-authenticating")
		if token, err = f.Refresh(ctx, account); err != nil {
			return Page{}, err
		}
		if resp, err = f.list(ctx, account.AccountID, token, query); err != nil {
			return Page{}, err
		}
		if resp.unauthorized() {
			return Page{}, &AuthenticationError{
				AccountID: account.AccountID,
				Err:       fmt.Errorf("page %d rejected after re-authentication: %w", pageNum, resp.apiError()),
			}
		}
	}
	if resp.failed() {
		return Page{}, resp.apiError()
	}

	page, err := decodePage(resp.body)
	if err != nil {
		return Page{}, fmt.Errorf("decoding page %d for %s: %w", pageNum, account.AccountID, err)
	}
	return page, nil
}

func (f *Fetcher) list(ctx context.Context, accountID, token string, query url.Values) (response, error) {
	return f.client.do(ctx, accountID, http.MethodGet, transactionsPath, query, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// ValidToken returns the cached token for account when it stays valid for
// at least ExpiryBuffer, and otherwise authenticates and caches a new one.
func (f *Fetcher) ValidToken(ctx context.Context, account model.RemoteAccount) (string, error) {
	cached, ok, err := f.tokens.Token(ctx, account.AccountID)
	if err != nil {
		return "", err
	}
	if ok && cached.ValidAt(f.client.now(), ExpiryBuffer) {
		return cached.Value, nil
	}
	return f.authenticate(ctx, account)
}

// Refresh discards any cached token for account and authenticates again.
func (f *Fetcher) Refresh(ctx context.Context, account model.RemoteAccount) (string, error) {
	if err := f.tokens.ClearToken(ctx, account.AccountID); err != nil {
		return "", err
	}
	return f.authenticate(ctx, account)
}

func (f *Fetcher) authenticate(ctx context.Context, account model.RemoteAccount) (string, error) {
	if account.SecretKey == "" {
		return "", &AuthenticationError{AccountID: account.AccountID, Err: errors.New("no secret key configured")}
	}
	tok, err := f.auth.Authenticate(ctx, account.AccountID, account.SecretKey)
	if err != nil {
		return "", err
	}
	if err := f.tokens.PutToken(ctx, account.AccountID, tok.Value, tok.Expiry); err != nil {
		return "", err
	}
	return tok.Value, nil
}
