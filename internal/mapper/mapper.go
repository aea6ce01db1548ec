// Package mapper turns payments API transactions into ledger records.
package mapper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cleared-dev/banksync/internal/model"
)

// MappingError means a remote transaction cannot become a ledger record.
type MappingError struct {
	TransactionID string
	Err           error
}

func (e *MappingError) Error() string {
	if e.TransactionID == "" {
		return fmt.Sprintf("mapping transaction: %v", e.Err)
	}
	return fmt.Sprintf("mapping transaction %s: %v", e.TransactionID, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

var statusTable = map[string]model.RecordStatus{
	"PENDING":   model.RecordUnreconciled,
	"SETTLED":   model.RecordSettled,
	"CANCELLED": model.RecordCancelled,
}

// Status maps a remote status to a record status. Unknown values map to
// Unreconciled.
func Status(remote string) model.RecordStatus {
	if s, ok := statusTable[strings.ToUpper(strings.TrimSpace(remote))]; ok {
		return s
	}
	return model.RecordUnreconciled
}

// Map converts txn into a ledger record attributed to ledger. The record's
// LinkedAccount is set only when txn's currency matches ledger's currency.
// Map has no side effects; the caller fills RemoteAccountID.
func Map(txn model.RemoteTransaction, ledger *model.LedgerAccount) (model.LedgerRecord, error) {
	id := strings.TrimSpace(txn.ID)
	if id == "" {
		return model.LedgerRecord{}, &MappingError{Err: errors.New("transaction has no id")}
	}

	rec := model.LedgerRecord{
		TransactionID:   id,
		Status:          Status(txn.Status),
		Currency:        strings.ToUpper(strings.TrimSpace(txn.Currency)),
		Description:     txn.Description,
		ReferenceNumber: txn.BatchID,
		TransactionType: txn.TransactionType,
		SourceType:      txn.SourceType,
		SourceID:        txn.SourceID,
	}
	if rec.Description == "" {
		rec.Description = txn.SourceType
	}
	if date, ok := txn.CreatedDate(); ok {
		rec.Date = date
	}

	net := txn.NetAmount()
	if net.IsPositive() {
		rec.Deposit = net
	} else {
		rec.Withdrawal = net.Abs()
	}

	if ledger != nil && rec.Currency != "" && strings.EqualFold(rec.Currency, strings.TrimSpace(ledger.Currency)) {
		rec.LinkedAccount = ledger.ID
	}
	return rec, nil
}
