// Package syncer runs bank transaction syncs: one Worker per remote account,
// coordinated by an Orchestrator that owns the durable status state machine.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/banksync/internal/id"
	"github.com/cleared-dev/banksync/internal/logging"
	"github.com/cleared-dev/banksync/internal/mapper"
	"github.com/cleared-dev/banksync/internal/model"
	"github.com/cleared-dev/banksync/internal/notify"
	"github.com/cleared-dev/banksync/internal/synclog"
)

// Scope says what triggered a run.
type Scope string

const (
	ScopeScheduled Scope = "scheduled"
	ScopeManual    Scope = "manual"
)

// StateStore is the durable sync settings row. Every call reads or writes
// storage; nothing is cached.
type StateStore interface {
	Settings(ctx context.Context) (model.SyncSettings, error)
	TryStart(ctx context.Context) (bool, error)
	UpdateProgress(ctx context.Context, processed, total int, percent float64) error
	Finish(ctx context.Context, status model.SyncStatus, lastSyncAt time.Time, processed, total int, percent float64) (model.SyncStatus, error)
	RequestStop(ctx context.Context) (bool, error)
	MarkFailedIfIdle(ctx context.Context) (bool, error)
	Reset(ctx context.Context) error
}

// Options configures an Orchestrator.
type Options struct {
	// Accounts in processing order.
	Accounts []model.RemoteAccount
	// Concurrency is how many accounts sync at once. Values below 1 mean 1.
	Concurrency     int
	Filter          *mapper.TypeFilter
	Publisher       notify.Publisher
	Events          EventLog
	Metrics         *Metrics
	MetricsTextfile string
	Log             zerolog.Logger
	Now             func() time.Time
}

// Outcome summarizes one Start or RunScheduled call.
type Outcome struct {
	RunID          string
	Scope          Scope
	Window         model.SyncWindow
	Status         model.SyncStatus
	Counters       Counters
	FailedAccounts []string
	StartedAt      time.Time
	// Skipped is set when a scheduled tick decided not to run.
	Skipped    bool
	SkipReason string
}

// Orchestrator drives runs over all configured accounts.
type Orchestrator struct {
	state   StateStore
	ledger  Ledger
	fetcher PageFetcher
	opts    Options
}

// NewOrchestrator returns an Orchestrator.
func NewOrchestrator(state StateStore, ledger Ledger, fetcher PageFetcher, opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Publisher == nil {
		opts.Publisher = notify.Nop{}
	}
	if opts.Events == nil {
		opts.Events = nopEvents{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{state: state, ledger: ledger, fetcher: fetcher, opts: opts}
}

// CurrentStatus returns a fresh snapshot of the settings row.
func (o *Orchestrator) CurrentStatus(ctx context.Context) (model.SyncSettings, error) {
	return o.state.Settings(ctx)
}

// Stop asks a running sync to stop before its next account.
func (o *Orchestrator) Stop(ctx context.Context) error {
	ok, err := o.state.RequestStop(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotRunning
	}
	o.opts.Log.Info().Msg("stop requested")
	return nil
}

// Reset returns the status to Not Started whatever it was, recovering a run
// that died while In Progress.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if err := o.state.Reset(ctx); err != nil {
		return err
	}
	o.opts.Log.Info().Msg("sync status reset")
	return nil
}

// RunScheduled starts a run for a scheduler tick of kind. It does nothing
// when syncing is disabled, when kind is not the configured schedule, or
// when a run is already in progress.
func (o *Orchestrator) RunScheduled(ctx context.Context, kind model.ScheduleKind, now time.Time) (Outcome, error) {
	settings, err := o.state.Settings(ctx)
	if err != nil {
		return Outcome{}, err
	}

	skip := func(reason string) (Outcome, error) {
		o.opts.Log.Info().Str("schedule", string(kind)).Str("reason", reason).Msg("scheduled sync skipped")
		return Outcome{Scope: ScopeScheduled, Status: settings.Status, Skipped: true, SkipReason: reason}, nil
	}
	switch {
	case !settings.Enabled:
		return skip("sync disabled")
	case settings.Schedule != kind:
		return skip(fmt.Sprintf("schedule is %s", settings.Schedule))
	case settings.Status == model.StatusInProgress:
		return skip("sync already in progress")
	case settings.StopRequested:
		return skip("stopped sync still finishing")
	}

	return o.Start(ctx, ScheduledWindow(settings.LastSyncAt, kind, now), ScopeScheduled)
}

// Start runs a sync of window over the configured accounts, or over only
// accountIDs when any are given. A bad window or unknown account id is a
// *ConfigurationError reported before any network call.
func (o *Orchestrator) Start(ctx context.Context, window model.SyncWindow, scope Scope, accountIDs ...string) (Outcome, error) {
	r := &run{
		id:      id.NewRunID(),
		scope:   scope,
		window:  window,
		started: o.opts.Now().UTC(),
	}
	log := o.opts.Log.With().Str(logging.RunID, r.id).Str(logging.Scope, string(scope)).Logger()

	if err := window.Validate(); err != nil {
		return o.reject(ctx, r, log, &ConfigurationError{Err: err})
	}
	accounts, err := o.selectAccounts(accountIDs)
	if err != nil {
		return o.reject(ctx, r, log, &ConfigurationError{Err: err})
	}

	ok, err := o.state.TryStart(ctx)
	if err != nil {
		return r.outcome(model.StatusNotStarted), err
	}
	if !ok {
		return r.outcome(model.StatusInProgress), ErrAlreadyRunning
	}
	r.accounts = len(accounts)

	log.Info().
		Time("from", window.From).
		Time("to", window.To).
		Int("accounts", len(accounts)).
		Msg("sync started")
	o.event(r, synclog.LevelInfo, "run_started", "", fmt.Sprintf("scope=%s from=%s to=%s accounts=%d",
		scope, window.From.Format(time.RFC3339), window.To.Format(time.RFC3339), len(accounts)))

	if len(accounts) == 0 {
		cfgErr := &ConfigurationError{Err: errors.New("no accounts configured")}
		log.Error().Err(cfgErr).Msg("sync failed")
		o.event(r, synclog.LevelError, "run_failed", "", cfgErr.Error())
		out, err := o.finish(ctx, r, log, model.StatusFailed)
		if err != nil {
			return out, errors.Join(cfgErr, err)
		}
		return out, cfgErr
	}

	worker := NewWorker(o.fetcher, o.ledger, WorkerOptions{
		RunID:  r.id,
		Filter: o.opts.Filter,
		Events: o.opts.Events,
		Log:    o.opts.Log,
		Now:    o.opts.Now,
	})

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for _, account := range accounts {
		g.Go(func() error {
			if o.stopRequested(ctx, r, log) {
				return nil
			}
			c, err := worker.Run(ctx, account, window)
			o.accountDone(ctx, r, log, account, c, err)
			return nil
		})
	}
	_ = g.Wait()

	status := model.StatusCompleted
	switch {
	case r.isStopped():
		status = model.StatusStopped
	case r.counters.Errors > 0 || len(r.failed) > 0:
		status = model.StatusCompletedWithErrors
	}
	return o.finish(ctx, r, log, status)
}

// reject handles a run that cannot start: status becomes Failed unless
// another run is in progress, and lastSyncAt is left alone.
func (o *Orchestrator) reject(ctx context.Context, r *run, log zerolog.Logger, cfgErr error) (Outcome, error) {
	log.Error().Err(cfgErr).Msg("sync rejected")
	o.event(r, synclog.LevelError, "run_rejected", "", cfgErr.Error())
	marked, err := o.state.MarkFailedIfIdle(ctx)
	if err != nil {
		return r.outcome(model.StatusFailed), errors.Join(cfgErr, err)
	}
	if !marked {
		return r.outcome(model.StatusInProgress), cfgErr
	}
	return r.outcome(model.StatusFailed), cfgErr
}

func (o *Orchestrator) selectAccounts(ids []string) ([]model.RemoteAccount, error) {
	if len(ids) == 0 {
		return o.opts.Accounts, nil
	}
	byID := make(map[string]model.RemoteAccount, len(o.opts.Accounts))
	for _, a := range o.opts.Accounts {
		byID[a.AccountID] = a
	}
	seen := make(map[string]bool, len(ids))
	var out []model.RemoteAccount
	for _, accountID := range ids {
		a, ok := byID[accountID]
		if !ok {
			return nil, fmt.Errorf("unknown account %q", accountID)
		}
		if seen[accountID] {
			continue
		}
		seen[accountID] = true
		out = append(out, a)
	}
	return out, nil
}

// stopRequested checks the durable status for a stop request. It is called
// before each account.
func (o *Orchestrator) stopRequested(ctx context.Context, r *run, log zerolog.Logger) bool {
	if r.isStopped() {
		return true
	}
	if ctx.Err() != nil {
		r.stop()
		log.Warn().Err(ctx.Err()).Msg("sync cancelled")
		return true
	}
	settings, err := o.state.Settings(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("reading sync status")
		return false
	}
	if settings.StopRequested {
		r.stop()
		log.Info().Msg("stop request observed")
		return true
	}
	return false
}

func (o *Orchestrator) accountDone(ctx context.Context, r *run, log zerolog.Logger, account model.RemoteAccount, c Counters, runErr error) {
	alog := log.With().Str(logging.Account, account.AccountID).Logger()
	// Cancellation ends the run like a stop request; the account is not failed.
	if runErr != nil && ctx.Err() != nil && errors.Is(runErr, ctx.Err()) {
		r.stop()
		alog.Warn().Err(runErr).Stringer("counters", c).Msg("account sync interrupted")
		o.event(r, synclog.LevelWarn, "account_interrupted", account.AccountID, c.String())
		runErr = nil
	} else if runErr != nil {
		alog.Error().Err(runErr).Stringer("counters", c).Msg("account sync failed")
		o.event(r, synclog.LevelError, "account_failed", account.AccountID, runErr.Error())
		o.opts.Metrics.accountFailed()
	} else {
		alog.Info().Stringer("counters", c).Msg("account synced")
		o.event(r, synclog.LevelInfo, "account_finished", account.AccountID, c.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters.Add(c)
	r.done++
	if runErr != nil {
		r.failed = append(r.failed, account.AccountID)
	}
	r.total, r.percent = estimate(r.counters.Processed, r.done, r.accounts)

	if err := o.state.UpdateProgress(context.WithoutCancel(ctx), r.counters.Processed, r.total, r.percent); err != nil {
		alog.Warn().Err(err).Msg("updating sync progress")
	}
	o.publish(ctx, r, notify.KindProgress, model.StatusInProgress, account.AccountID)
}

// estimate extrapolates the run's total from the accounts done so far and
// returns it with the percentage processed.
func estimate(processed, done, accounts int) (total int, percent float64) {
	total = processed
	if done > 0 && done < accounts {
		total += processed * (accounts - done) / done
	}
	if total == 0 {
		return 0, 0
	}
	return total, float64(processed) / float64(total) * 100
}

func (o *Orchestrator) finish(ctx context.Context, r *run, log zerolog.Logger, status model.SyncStatus) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)

	r.mu.Lock()
	processed, total, percent := r.counters.Processed, r.total, r.percent
	r.mu.Unlock()
	if status != model.StatusStopped {
		total, percent = processed, 0
		if processed > 0 {
			percent = 100
		}
	}

	stored, err := o.state.Finish(ctx, status, r.started, processed, total, percent)
	if err != nil {
		log.Error().Err(err).Msg("recording sync result")
		out := r.outcome(status)
		return out, err
	}
	if stored != status {
		log.Info().Str(logging.Status, string(stored)).Msg("stop request kept")
	}

	out := r.outcome(stored)
	log.Info().
		Str(logging.Status, string(stored)).
		Stringer("counters", out.Counters).
		Strs("failed_accounts", out.FailedAccounts).
		Msg("sync finished")
	o.event(r, synclog.LevelInfo, "run_finished", "", fmt.Sprintf("status=%s %s", stored, out.Counters))

	r.mu.Lock()
	r.total, r.percent = total, percent
	r.mu.Unlock()
	o.publish(ctx, r, notify.KindComplete, stored, "")

	o.opts.Metrics.observeRun(out, o.opts.Now().Sub(r.started))
	if err := o.opts.Metrics.WriteTextfile(o.opts.MetricsTextfile); err != nil {
		log.Warn().Err(err).Msg("writing metrics textfile")
	}
	return out, nil
}

func (o *Orchestrator) publish(ctx context.Context, r *run, kind notify.Kind, status model.SyncStatus, account string) {
	e := notify.Event{
		Kind:      kind,
		RunID:     r.id,
		Scope:     string(r.scope),
		Status:    status,
		Account:   account,
		Processed: r.counters.Processed,
		Created:   r.counters.Created,
		Skipped:   r.counters.Skipped,
		Errors:    r.counters.Errors,
		Total:     r.total,
		Percent:   r.percent,
		At:        o.opts.Now().UTC(),
	}
	if err := o.opts.Publisher.Publish(ctx, e); err != nil {
		o.opts.Log.Debug().Err(err).Str(logging.RunID, r.id).Msg("publishing sync event")
	}
}

func (o *Orchestrator) event(r *run, level synclog.Level, event, account, details string) {
	err := o.opts.Events.Write(synclog.Entry{
		Timestamp: o.opts.Now(),
		RunID:     r.id,
		Level:     level,
		Event:     event,
		Account:   account,
		Details:   details,
	})
	if err != nil {
		o.opts.Log.Warn().Err(err).Msg("writing sync log")
	}
}

// run is the accumulator for one orchestration run. Fields below mu are
// guarded by it.
type run struct {
	id       string
	scope    Scope
	window   model.SyncWindow
	started  time.Time
	accounts int

	mu       sync.Mutex
	counters Counters
	done     int
	failed   []string
	total    int
	percent  float64
	stopped  bool
}

func (r *run) stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

func (r *run) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *run) outcome(status model.SyncStatus) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Outcome{
		RunID:          r.id,
		Scope:          r.scope,
		Window:         r.window,
		Status:         status,
		Counters:       r.counters,
		FailedAccounts: append([]string(nil), r.failed...),
		StartedAt:      r.started,
	}
}
