package id

import (
	"strings"

	"github.com/google/uuid"
)

// NewRunID returns a fresh identifier for one sync run.
func NewRunID() string {
	return uuid.NewString()
}

// Short returns the first 8 characters of an account id for log titles,
// or "unknown" when it is empty.
func Short(accountID string) string {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "unknown"
	}
	if len(accountID) > 8 {
		return accountID[:8]
	}
	return accountID
}
