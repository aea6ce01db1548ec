package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cleared-dev/banksync/internal/config"
	"github.com/cleared-dev/banksync/internal/logging"
	"github.com/cleared-dev/banksync/internal/mapper"
	"github.com/cleared-dev/banksync/internal/model"
	"github.com/cleared-dev/banksync/internal/notify"
	"github.com/cleared-dev/banksync/internal/remote"
	"github.com/cleared-dev/banksync/internal/store"
	"github.com/cleared-dev/banksync/internal/synclog"
	"github.com/cleared-dev/banksync/internal/syncer"
)

// notifyBuffer is how many progress events may queue behind a slow sink.
const notifyBuffer = 64

// app is everything a command needs, built from the config file.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    *store.Store
	accounts []model.RemoteAccount
	fetcher  *remote.Fetcher
	sync     *syncer.Orchestrator
	closers  []func()
}

// openApp loads the config named by the persistent flags, opens the
// database and wires the sync engine. The caller must Close it.
func openApp(ctx context.Context, v *viper.Viper, stderr io.Writer) (*app, error) {
	cfgPath := v.GetString(flagConfig)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if lvl := v.GetString(flagLogLevel); lvl != "" {
		cfg.Log.Level = lvl
	}
	if db := v.GetString(flagDB); db != "" {
		cfg.Database.Path = db
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	log, err := logging.New(stderr, cfg.Log.Level, !v.GetBool(flagLogJSON))
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(cfgPath)
	a := &app{cfg: cfg, log: log}

	a.store, err = store.Open(resolve(base, cfg.Database.Path))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.store.Close() })

	if err := a.store.Configure(ctx, cfg.Sync.Enabled, cfg.ScheduleKind()); err != nil {
		a.Close()
		return nil, err
	}

	a.accounts, err = cfg.RemoteAccounts(os.LookupEnv)
	if err != nil {
		a.Close()
		return nil, err
	}

	clientOpts := []remote.Option{remote.WithLogger(log)}
	if cfg.API.EnableAPILog {
		clientOpts = append(clientOpts, remote.WithExchangeRecorder(a.store))
	}
	a.fetcher = remote.NewFetcher(remote.NewClient(cfg.API.BaseURL, clientOpts...), a.store)

	publisher, err := a.publisher()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.sync = syncer.NewOrchestrator(a.store, a.store, a.fetcher, syncer.Options{
		Accounts:        a.accounts,
		Concurrency:     cfg.Sync.Concurrency,
		Filter:          mapper.NewTypeFilter(cfg.TransactionTypes.Include, cfg.TransactionTypes.Exclude),
		Publisher:       publisher,
		Events:          synclog.NewWriter(resolve(base, cfg.Log.SyncLogDir)),
		Metrics:         syncer.NewMetrics(),
		MetricsTextfile: resolve(base, cfg.Metrics.Textfile),
		Log:             log,
	})
	return a, nil
}

// publisher logs every sync event and, when configured, forwards them to
// NATS. Delivery is asynchronous so a slow sink never stalls a run.
func (a *app) publisher() (notify.Publisher, error) {
	sinks := notify.Multi{notify.NewLog(a.log)}
	if url := a.cfg.Notify.NATSURL; url != "" {
		nc, err := notify.ConnectNATS(url, a.cfg.Notify.Subject)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, nc.Close)
		sinks = append(sinks, nc)
	}
	async := notify.NewAsync(sinks, notifyBuffer, a.log)
	a.closers = append(a.closers, async.Close)
	return async, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// account returns the configured account with accountID.
func (a *app) account(accountID string) (model.RemoteAccount, error) {
	for _, acct := range a.accounts {
		if acct.AccountID == accountID {
			return acct, nil
		}
	}
	return model.RemoteAccount{}, fmt.Errorf("unknown account %q", accountID)
}

// resolve makes p relative to the config file's directory.
func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// withApp adapts a command body that needs an app into a cobra RunE.
func withApp(v *viper.Viper, fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), v, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}
