package remote

import (
	"fmt"
	"unicode/utf8"
)

// maxErrorBody bounds how much of a response body an APIError message shows.
const maxErrorBody = 200

// AuthenticationError means the payments API rejected an account's
// credentials, or a listing call was rejected again after re-authenticating.
// It is fatal to that account's sync.
type AuthenticationError struct {
	AccountID string
	Err       error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authenticating account %s: %v", e.AccountID, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// APIError is a non-authorization HTTP failure from the payments API.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, body)
}
