// Package remote talks to the payments API: login, and paged listing of
// financial transactions with transparent token refresh.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/banksync/internal/model"
)

const (
	loginPath        = "/api/v1/authentication/login"
	transactionsPath = "/api/v1/financial_transactions"

	maxBodyBytes = 4 << 20
	masked       = "****"
)

var sensitiveWords = []string{"key", "password", "token", "auth", "secret"}

// ExchangeRecorder persists API round trips for diagnostics.
type ExchangeRecorder interface {
	LogExchange(ctx context.Context, e model.APIExchange) error
}

// Client performs HTTP calls against one payments API base URL.
type Client struct {
	baseURL   string
	http      *http.Client
	exchanges ExchangeRecorder
	log       zerolog.Logger
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithExchangeRecorder records every round trip (headers masked).
func WithExchangeRecorder(r ExchangeRecorder) Option {
	return func(c *Client) { c.exchanges = r }
}

// WithLogger sets the process logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient returns a Client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	method string
	url    string
	status int
	body   []byte
}

// unauthorized reports a rejected credential: HTTP 401, or a 2xx body whose
// code is "unauthorized".
func (r response) unauthorized() bool {
	if r.status == http.StatusUnauthorized {
		return true
	}
	if r.status < 200 || r.status >= 300 {
		return false
	}
	var probe struct {
		Code string `json:"code"`
	}
	return json.Unmarshal(r.body, &probe) == nil && probe.Code == "unauthorized"
}

func (r response) failed() bool {
	return r.status >= 400
}

func (r response) apiError() *APIError {
	return &APIError{Method: r.method, URL: r.url, StatusCode: r.status, Body: string(r.body)}
}

// do sends one request. A transport failure is returned as an error; any HTTP
// status, including 4xx and 5xx, is returned in the response.
func (c *Client) do(ctx context.Context, accountID, method, path string, query url.Values, headers map[string]string) (response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp := response{method: method, url: u}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return resp, fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	exchange := model.APIExchange{
		At:             c.now().UTC(),
		AccountID:      accountID,
		Method:         method,
		URL:            u,
		RequestHeaders: MaskHeaders(headers),
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		exchange.Err = scrub(err.Error(), headers)
		c.record(ctx, exchange)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return resp, fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		return resp, fmt.Errorf("%s %s: %s", method, path, exchange.Err)
	}
	defer httpResp.Body.Close()

	resp.status = httpResp.StatusCode
	resp.body, err = io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	exchange.StatusCode = resp.status
	exchange.ResponseBody = maskBody(resp.body)
	if err != nil {
		exchange.Err = err.Error()
		c.record(ctx, exchange)
		return resp, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}
	c.record(ctx, exchange)

	c.log.Debug().
		Str("account", accountID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.status).
		Msg("api call")
	return resp, nil
}

func (c *Client) record(ctx context.Context, e model.APIExchange) {
	if c.exchanges == nil {
		return
	}
	if err := c.exchanges.LogExchange(context.WithoutCancel(ctx), e); err != nil {
		c.log.Warn().Err(err).Str("account", e.AccountID).Msg("recording api exchange")
	}
}

func sensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range sensitiveWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// MaskHeaders returns a copy of headers with the values of credential-like
// headers replaced.
func MaskHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if sensitive(k) {
			v = masked
		}
		out[k] = v
	}
	return out
}

// maskBody masks credential-like top-level fields of a JSON object body.
// Other bodies are returned unchanged.
func maskBody(body []byte) string {
	var obj map[string]json.RawMessage
	if json.Unmarshal(body, &obj) != nil {
		return string(body)
	}
	changed := false
	for k := range obj {
		if sensitive(k) {
			obj[k] = json.RawMessage(`"` + masked + `"`)
			changed = true
		}
	}
	if !changed {
		return string(body)
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return string(body)
	}
	return string(out)
}

// scrub removes credential header values from s.
func scrub(s string, headers map[string]string) string {
	for k, v := range headers {
		if v != "" && sensitive(k) {
			s = strings.ReplaceAll(s, v, masked)
		}
	}
	return s
}
