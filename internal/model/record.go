package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// RecordStatus is the reconciliation state of a ledger record.
type RecordStatus string

const (
	RecordUnreconciled RecordStatus = "Unreconciled"
	RecordSettled      RecordStatus = "Settled"
	RecordCancelled    RecordStatus = "Cancelled"
)

// LedgerRecord is a bank transaction persisted in the local ledger.
// TransactionID is unique across all records.
type LedgerRecord struct {
	TransactionID   string
	RemoteAccountID string
	Date            time.Time // zero if the remote timestamp was unparseable
	Status          RecordStatus
	Currency        string
	Deposit         decimal.Decimal // zero if withdrawal
	Withdrawal      decimal.Decimal // zero if deposit
	Description     string
	ReferenceNumber string // remote batch id
	TransactionType string
	LinkedAccount   string // empty unless the remote currency matches the ledger account
	SourceType      string
	SourceID        string
	CreatedAt       time.Time
}

// Amount returns the signed amount (deposit positive, withdrawal negative).
func (r LedgerRecord) Amount() decimal.Decimal {
	return r.Deposit.Sub(r.Withdrawal)
}

// Validate checks the deposit/withdrawal invariant.
func (r LedgerRecord) Validate() error {
	var errs []error
	if r.TransactionID == "" {
		errs = append(errs, errors.New("transaction id is empty"))
	}
	if r.Deposit.IsNegative() || r.Withdrawal.IsNegative() {
		errs = append(errs, errors.New("deposit and withdrawal must be non-negative"))
	}
	if !r.Deposit.IsZero() && !r.Withdrawal.IsZero() {
		errs = append(errs, errors.New("only one of deposit or withdrawal may be non-zero"))
	}
	return errors.Join(errs...)
}
