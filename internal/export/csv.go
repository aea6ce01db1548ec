// Package export writes stored ledger records as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/banksync/internal/model"
)

// Header is the CSV header of a ledger export.
const Header = "transaction_id,date,remote_account_id,status,currency,deposit,withdrawal,description,reference_number,transaction_type,linked_account,source_type,source_id,created_at"

const (
	numFields   = 14
	colTxnID    = 0
	colDate     = 1
	colRemote   = 2
	colStatus   = 3
	colCurrency = 4
	colDeposit  = 5
	colWithdraw = 6
	colDesc     = 7
	colRef      = 8
	colType     = 9
	colLinked   = 10
	colSrcType  = 11
	colSrcID    = 12
	colCreated  = 13
)

// WriteRecords writes records to w, header first.
func WriteRecords(w io.Writer, records []model.LedgerRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range records {
		if err := cw.Write(MarshalRecord(r)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRecords reads an export written by WriteRecords.
func ReadRecords(r io.Reader) ([]model.LedgerRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading export CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var out []model.LedgerRecord
	for i, row := range rows[1:] {
		rec, err := UnmarshalRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// MarshalRecord converts a record to a CSV row. Zero amounts and an unset
// date are written as empty fields.
func MarshalRecord(r model.LedgerRecord) []string {
	row := make([]string, numFields)
	row[colTxnID] = r.TransactionID
	if !r.Date.IsZero() {
		row[colDate] = r.Date.Format(time.DateOnly)
	}
	row[colRemote] = r.RemoteAccountID
	row[colStatus] = string(r.Status)
	row[colCurrency] = r.Currency
	if !r.Deposit.IsZero() {
		row[colDeposit] = r.Deposit.String()
	}
	if !r.Withdrawal.IsZero() {
		row[colWithdraw] = r.Withdrawal.String()
	}
	row[colDesc] = r.Description
	row[colRef] = r.ReferenceNumber
	row[colType] = r.TransactionType
	row[colLinked] = r.LinkedAccount
	row[colSrcType] = r.SourceType
	row[colSrcID] = r.SourceID
	if !r.CreatedAt.IsZero() {
		row[colCreated] = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row
}

// UnmarshalRecord converts a CSV row to a record.
func UnmarshalRecord(row []string) (model.LedgerRecord, error) {
	if len(row) != numFields {
		return model.LedgerRecord{}, fmt.Errorf("expected %d fields, got %d", numFields, len(row))
	}

	r := model.LedgerRecord{
		TransactionID:   row[colTxnID],
		RemoteAccountID: row[colRemote],
		Status:          model.RecordStatus(row[colStatus]),
		Currency:        row[colCurrency],
		Description:     row[colDesc],
		ReferenceNumber: row[colRef],
		TransactionType: row[colType],
		LinkedAccount:   row[colLinked],
		SourceType:      row[colSrcType],
		SourceID:        row[colSrcID],
	}

	var err error
	if row[colDate] != "" {
		if r.Date, err = time.Parse(time.DateOnly, row[colDate]); err != nil {
			return model.LedgerRecord{}, fmt.Errorf("parsing date %q: %w", row[colDate], err)
		}
	}
	if r.Deposit, err = parseAmount(row[colDeposit]); err != nil {
		return model.LedgerRecord{}, fmt.Errorf("parsing deposit: %w", err)
	}
	if r.Withdrawal, err = parseAmount(row[colWithdraw]); err != nil {
		return model.LedgerRecord{}, fmt.Errorf("parsing withdrawal: %w", err)
	}
	if row[colCreated] != "" {
		if r.CreatedAt, err = time.Parse(time.RFC3339, row[colCreated]); err != nil {
			return model.LedgerRecord{}, fmt.Errorf("parsing created_at %q: %w", row[colCreated], err)
		}
	}
	return r, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q: %w", s, err)
	}
	return d, nil
}
