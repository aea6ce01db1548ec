package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/banksync/internal/logging"
	"github.com/cleared-dev/banksync/internal/mapper"
	"github.com/cleared-dev/banksync/internal/model"
	"github.com/cleared-dev/banksync/internal/remote"
	"github.com/cleared-dev/banksync/internal/store"
	"github.com/cleared-dev/banksync/internal/synclog"
)

// Ledger is the durable record store the worker deduplicates against.
type Ledger interface {
	RecordExists(ctx context.Context, transactionID string) (bool, error)
	InsertRecord(ctx context.Context, r model.LedgerRecord) error
}

// EventLog receives durable diagnostic entries.
type EventLog interface {
	Write(entries ...synclog.Entry) error
}

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	RunID  string
	Filter *mapper.TypeFilter
	Events EventLog
	Log    zerolog.Logger
	Now    func() time.Time
}

// Worker syncs one remote account: it pages through the feed and inserts
// every new transaction.
type Worker struct {
	fetcher PageFetcher
	ledger  Ledger
	opts    WorkerOptions
}

// NewWorker returns a Worker.
func NewWorker(fetcher PageFetcher, ledger Ledger, opts WorkerOptions) *Worker {
	if opts.Events == nil {
		opts.Events = nopEvents{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Worker{fetcher: fetcher, ledger: ledger, opts: opts}
}

// Run drains every page of account's transactions in window. A transaction
// failure is counted and never stops the account; a fetch failure ends the
// account and is returned together with the counters so far.
func (w *Worker) Run(ctx context.Context, account model.RemoteAccount, window model.SyncWindow) (Counters, error) {
	log := w.opts.Log.With().
		Str(logging.RunID, w.opts.RunID).
		Str(logging.Account, account.AccountID).
		Logger()

	var c Counters
	for pageNum := 0; ; pageNum++ {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		page, err := w.fetcher.Fetch(ctx, account, window, pageNum, remote.PageSize)
		if err != nil {
			return c, fmt.Errorf("fetching page %d: %w", pageNum, err)
		}
		log.Debug().Int(logging.Page, pageNum).Int("items", len(page.Items)).Bool("has_more", page.HasMore).Msg("fetched page")

		for _, txn := range page.Items {
			if err := ctx.Err(); err != nil {
				return c, err
			}
			outcome, err := w.process(ctx, account, txn)
			c.Record(outcome)
			if err != nil {
				w.failed(log, account, txn.ID, err)
			}
		}
		for _, bad := range page.Rejected {
			c.Record(OutcomeError)
			w.failed(log, account, bad.ID, bad.Err)
		}

		if !page.HasMore {
			return c, nil
		}
		if len(page.Items) == 0 && len(page.Rejected) == 0 {
			log.Warn().Int(logging.Page, pageNum).Msg("empty page reported more results, stopping")
			return c, nil
		}
	}
}

// process handles one transaction. It returns OutcomeError with a non-nil
// error, and a nil error otherwise.
func (w *Worker) process(ctx context.Context, account model.RemoteAccount, txn model.RemoteTransaction) (outcome TxnOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = OutcomeError, fmt.Errorf("processing transaction %s: panic: %v", txn.ID, r)
		}
	}()

	if !w.opts.Filter.Allows(txn.TransactionType) {
		return OutcomeSkipped, nil
	}

	if id := strings.TrimSpace(txn.ID); id != "" {
		exists, err := w.ledger.RecordExists(ctx, id)
		if err != nil {
			return OutcomeError, err
		}
		if exists {
			return OutcomeSkipped, nil
		}
	}

	rec, err := mapper.Map(txn, &account.Ledger)
	if err != nil {
		return OutcomeError, err
	}
	rec.RemoteAccountID = account.AccountID
	rec.CreatedAt = w.opts.Now().UTC()

	if err := w.ledger.InsertRecord(ctx, rec); err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return OutcomeSkipped, nil
		}
		return OutcomeError, err
	}
	return OutcomeCreated, nil
}

func (w *Worker) failed(log zerolog.Logger, account model.RemoteAccount, txnID string, err error) {
	log.Error().Err(err).Str(logging.TxnID, txnID).Msg("transaction failed")
	w.event(synclog.LevelError, "transaction_error", account.AccountID, txnID, err.Error())
}

func (w *Worker) event(level synclog.Level, event, account, txnID, details string) {
	err := w.opts.Events.Write(synclog.Entry{
		Timestamp:     w.opts.Now(),
		RunID:         w.opts.RunID,
		Level:         level,
		Event:         event,
		Account:       account,
		TransactionID: txnID,
		Details:       details,
	})
	if err != nil {
		w.opts.Log.Warn().Err(err).Msg("writing sync log")
	}
}

type nopEvents struct{}

func (nopEvents) Write(...synclog.Entry) error { return nil }
