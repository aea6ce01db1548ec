package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cleared-dev/banksync/internal/model"
	"github.com/cleared-dev/banksync/internal/syncer"
)

const timeLayout = time.RFC3339

// defaultLookback is the window a manual sync covers when --from is omitted.
const defaultLookback = 24 * time.Hour

func newSyncCommand(v *viper.Viper) *cobra.Command {
	var from, to string
	var accountIDs []string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync transactions created in a time window",
		Long: `Fetch every transaction created between --from and --to for the configured
accounts and add the new ones to the ledger. Times are RFC3339 or YYYY-MM-DD
(UTC); a --to date covers the whole day.`,
		Args: cobra.NoArgs,
		RunE: withApp(v, func(cmd *cobra.Command, _ []string, a *app) error {
			window, err := parseWindow(from, to, time.Now().UTC())
			if err != nil {
				return err
			}
			out, err := a.sync.Start(cmd.Context(), window, syncer.ScopeManual, accountIDs...)
			if errors.Is(err, syncer.ErrAlreadyRunning) {
				return err
			}
			printOutcome(cmd.OutOrStdout(), out)
			return err
		}),
	}

	cmd.Flags().StringVar(&from, "from", "", "window start (default 24h before --to)")
	cmd.Flags().StringVar(&to, "to", "", "window end (default now)")
	cmd.Flags().StringSliceVar(&accountIDs, "account", nil, "only sync these account ids (repeatable)")

	return cmd
}

func newTickCommand(v *viper.Viper) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run the scheduled sync for one scheduler tick",
		Long: `Meant to be called from cron or a systemd timer once per period. The sync runs
only when it is enabled, --schedule matches the configured schedule and no
other sync is in progress. It covers the time since the last sync.`,
		Args: cobra.NoArgs,
		RunE: withApp(v, func(cmd *cobra.Command, _ []string, a *app) error {
			kind, err := model.ParseScheduleKind(schedule)
			if err != nil {
				return err
			}
			out, err := a.sync.RunScheduled(cmd.Context(), kind, time.Now().UTC())
			if errors.Is(err, syncer.ErrAlreadyRunning) {
				return err
			}
			printOutcome(cmd.OutOrStdout(), out)
			return err
		}),
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "the tick's schedule: hourly, daily, weekly, monthly")
	_ = cmd.MarkFlagRequired("schedule")

	return cmd
}

func newStopCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask a running sync to stop before its next account",
		Args:  cobra.NoArgs,
		RunE: withApp(v, func(cmd *cobra.Command, _ []string, a *app) error {
			if err := a.sync.Stop(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stop requested")
			return nil
		}),
	}
}

func newStatusCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the sync status and progress",
		Args:  cobra.NoArgs,
		RunE: withApp(v, func(cmd *cobra.Command, _ []string, a *app) error {
			settings, err := a.sync.CurrentStatus(cmd.Context())
			if err != nil {
				return err
			}
			n, err := a.store.CountRecords(cmd.Context())
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), settings, n)
			return nil
		}),
	}
}

func newResetCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return the sync status to Not Started",
		Long: `Clears the status of a sync that was killed while In Progress. Only use it
when no sync process is running.`,
		Args: cobra.NoArgs,
		RunE: withApp(v, func(cmd *cobra.Command, _ []string, a *app) error {
			if err := a.sync.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sync status reset")
			return nil
		}),
	}
}

// parseWindow builds a window from the --from and --to flags.
func parseWindow(from, to string, now time.Time) (model.SyncWindow, error) {
	w := model.SyncWindow{To: now}
	if to != "" {
		t, err := parseBound(to, true)
		if err != nil {
			return model.SyncWindow{}, fmt.Errorf("--to: %w", err)
		}
		w.To = t
	}
	w.From = w.To.Add(-defaultLookback)
	if from != "" {
		t, err := parseBound(from, false)
		if err != nil {
			return model.SyncWindow{}, fmt.Errorf("--from: %w", err)
		}
		w.From = t
	}
	return w, nil
}

// parseBound parses an RFC3339 time or a date. A date is the start of the
// day, or its last second when endOfDay is set.
func parseBound(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor YYYY-MM-DD", s)
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Second)
	}
	return d, nil
}
