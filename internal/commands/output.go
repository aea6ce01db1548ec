package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/cleared-dev/banksync/internal/model"
	"github.com/cleared-dev/banksync/internal/syncer"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed)
)

// statusColor picks the colour a sync status is printed in.
func statusColor(s model.SyncStatus) *color.Color {
	switch s {
	case model.StatusCompleted:
		return green
	case model.StatusFailed:
		return red
	}
	return yellow
}

func printOutcome(w io.Writer, out syncer.Outcome) {
	if out.Skipped {
		yellow.Fprintf(w, "Skipped: %s\n", out.SkipReason)
		return
	}
	statusColor(out.Status).Fprintf(w, "Sync %s\n", out.Status)
	fmt.Fprintf(w, "  run:      %s (%s)\n", out.RunID, out.Scope)
	if !out.Window.From.IsZero() {
		fmt.Fprintf(w, "  window:   %s .. %s\n", out.Window.From.Format(timeLayout), out.Window.To.Format(timeLayout))
	}
	fmt.Fprintf(w, "  processed %d, created %d, skipped %d, errors %d\n",
		out.Counters.Processed, out.Counters.Created, out.Counters.Skipped, out.Counters.Errors)
	if len(out.FailedAccounts) > 0 {
		red.Fprintf(w, "  failed accounts: %s\n", strings.Join(out.FailedAccounts, ", "))
	}
}

func printSettings(w io.Writer, s model.SyncSettings, records int) {
	fmt.Fprint(w, "Status:    ")
	statusColor(s.Status).Fprintln(w, s.Status)
	if s.StopRequested {
		yellow.Fprintln(w, "           stop requested, finishing the current account")
	}

	enabled := "no"
	if s.Enabled {
		enabled = "yes"
	}
	fmt.Fprintf(w, "Enabled:   %s (%s)\n", enabled, s.Schedule)

	last := "never"
	if s.LastSyncAt != nil {
		last = s.LastSyncAt.Format(timeLayout)
	}
	fmt.Fprintf(w, "Last sync: %s\n", last)
	fmt.Fprintf(w, "Progress:  %d/%d (%.0f%%)\n", s.ProcessedCount, s.TotalCount, s.ProgressPercent)
	fmt.Fprintf(w, "Records:   %d\n", records)
}
