package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/banksync/internal/model"
)

// ErrUniqueViolation is returned by InsertRecord when a record with the same
// transaction id already exists.
var ErrUniqueViolation = errors.New("ledger record already exists")

// RecordExists reports whether a ledger record with transactionID exists.
func (s *Store) RecordExists(ctx context.Context, transactionID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM ledger_records WHERE transaction_id = ?`, transactionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up %s: %w", transactionID, err)
	}
	return true, nil
}

// InsertRecord validates and stores a new ledger record. A duplicate
// transaction id yields an error wrapping ErrUniqueViolation.
func (s *Store) InsertRecord(ctx context.Context, r model.LedgerRecord) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid ledger record %q: %w", r.TransactionID, err)
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	var date sql.NullString
	if !r.Date.IsZero() {
		date = sql.NullString{String: r.Date.Format(time.DateOnly), Valid: true}
	}
	var linked sql.NullString
	if r.LinkedAccount != "" {
		linked = sql.NullString{String: r.LinkedAccount, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO ledger_records(
	 transaction_id, remote_account_id, date, status, currency, deposit, withdrawal, description,
	 reference_number, transaction_type, linked_account, source_type, source_id, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TransactionID, r.RemoteAccountID, date, string(r.Status), r.Currency,
		r.Deposit.String(), r.Withdrawal.String(), r.Description, r.ReferenceNumber,
		r.TransactionType, linked, r.SourceType, r.SourceID, formatTime(createdAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inserting %s: %w", r.TransactionID, ErrUniqueViolation)
		}
		return fmt.Errorf("inserting %s: %w", r.TransactionID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// Record returns the ledger record for transactionID.
func (s *Store) Record(ctx context.Context, transactionID string) (model.LedgerRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRecords+` WHERE transaction_id = ?`, transactionID)
	if err != nil {
		return model.LedgerRecord{}, fmt.Errorf("reading %s: %w", transactionID, err)
	}
	defer rows.Close()
	out, err := scanRecords(rows)
	if err != nil {
		return model.LedgerRecord{}, err
	}
	if len(out) == 0 {
		return model.LedgerRecord{}, fmt.Errorf("reading %s: %w", transactionID, sql.ErrNoRows)
	}
	return out[0], nil
}

// ListRecords returns records dated within [from, to] (inclusive dates),
// ordered by date then transaction id.
func (s *Store) ListRecords(ctx context.Context, from, to time.Time) ([]model.LedgerRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRecords+`
	WHERE date >= ? AND date <= ?
	ORDER BY date, transaction_id`,
		from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("listing ledger records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// CountRecords returns the number of stored ledger records.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting ledger records: %w", err)
	}
	return n, nil
}

const selectRecords = `SELECT transaction_id, remote_account_id, date, status, currency, deposit, withdrawal,
	description, reference_number, transaction_type, linked_account, source_type, source_id, created_at
	FROM ledger_records`

func scanRecords(rows *sql.Rows) ([]model.LedgerRecord, error) {
	var out []model.LedgerRecord
	for rows.Next() {
		var (
			r                   model.LedgerRecord
			date, linked        sql.NullString
			status              string
			deposit, withdrawal string
			createdAt           string
		)
		if err := rows.Scan(&r.TransactionID, &r.RemoteAccountID, &date, &status, &r.Currency,
			&deposit, &withdrawal, &r.Description, &r.ReferenceNumber, &r.TransactionType,
			&linked, &r.SourceType, &r.SourceID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning ledger record: %w", err)
		}
		r.Status = model.RecordStatus(status)
		r.LinkedAccount = linked.String
		var err error
		if date.Valid {
			if r.Date, err = time.Parse(time.DateOnly, date.String); err != nil {
				return nil, fmt.Errorf("record %s date %q: %w", r.TransactionID, date.String, err)
			}
		}
		if r.Deposit, err = decimal.NewFromString(deposit); err != nil {
			return nil, fmt.Errorf("record %s deposit %q: %w", r.TransactionID, deposit, err)
		}
		if r.Withdrawal, err = decimal.NewFromString(withdrawal); err != nil {
			return nil, fmt.Errorf("record %s withdrawal %q: %w", r.TransactionID, withdrawal, err)
		}
		if r.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("record %s created_at %q: %w", r.TransactionID, createdAt, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
