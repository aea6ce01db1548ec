package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RemoteTransaction is one item of the payments API transaction feed.
// Missing numeric fields decode as invalid NullDecimals.
type RemoteTransaction struct {
	ID              string              `json:"id"`
	CreatedAt       string              `json:"created_at"`
	Currency        string              `json:"currency"`
	Net             decimal.NullDecimal `json:"net"`
	Amount          decimal.NullDecimal `json:"amount"`
	Fee             decimal.NullDecimal `json:"fee"`
	Description     string              `json:"description"`
	SourceType      string              `json:"source_type"`
	SourceID        string              `json:"source_id"`
	BatchID         string              `json:"batch_id"`
	Status          string              `json:"status"`
	TransactionType string              `json:"transaction_type"`
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// CreatedDate returns the calendar date of CreatedAt as reported by the remote
// service (no timezone conversion). ok is false when CreatedAt is unparseable.
func (t RemoteTransaction) CreatedDate() (date time.Time, ok bool) {
	raw := strings.TrimSpace(t.CreatedAt)
	if len(raw) < len(time.DateOnly) {
		return time.Time{}, false
	}
	for _, layout := range createdAtLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	// Fall back to the leading YYYY-MM-DD.
	ts, err := time.Parse(time.DateOnly, raw[:len(time.DateOnly)])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// NetAmount returns Net, treating a missing value as zero.
func (t RemoteTransaction) NetAmount() decimal.Decimal {
	if !t.Net.Valid {
		return decimal.Zero
	}
	return t.Net.Decimal
}
