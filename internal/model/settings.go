package model

import (
	"fmt"
	"strings"
	"time"
)

// SyncStatus is the state of the sync state machine.
type SyncStatus string

const (
	StatusNotStarted          SyncStatus = "Not Started"
	StatusInProgress          SyncStatus = "In Progress"
	StatusCompleted           SyncStatus = "Completed"
	StatusCompletedWithErrors SyncStatus = "Completed with Errors"
	StatusFailed              SyncStatus = "Failed"
	StatusStopped             SyncStatus = "Stopped"
)

// Terminal reports whether s ends a run.
func (s SyncStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// ScheduleKind is the cadence of scheduled syncs.
type ScheduleKind string

const (
	ScheduleHourly  ScheduleKind = "Hourly"
	ScheduleDaily   ScheduleKind = "Daily"
	ScheduleWeekly  ScheduleKind = "Weekly"
	ScheduleMonthly ScheduleKind = "Monthly"
)

// ParseScheduleKind parses a schedule name case-insensitively.
func ParseScheduleKind(s string) (ScheduleKind, error) {
	for _, k := range []ScheduleKind{ScheduleHourly, ScheduleDaily, ScheduleWeekly, ScheduleMonthly} {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown schedule kind %q", s)
}

// Lookback is the window length used for the first scheduled sync,
// before any lastSyncAt exists.
func (k ScheduleKind) Lookback() time.Duration {
	switch k {
	case ScheduleHourly:
		return 2 * time.Hour
	case ScheduleDaily:
		return 24 * time.Hour
	case ScheduleWeekly:
		return 7 * 24 * time.Hour
	case ScheduleMonthly:
		return 30 * 24 * time.Hour
	}
	return 0
}

// SyncSettings is the durable singleton that drives and reports syncs.
type SyncSettings struct {
	Enabled         bool
	Schedule        ScheduleKind
	LastSyncAt      *time.Time
	Status          SyncStatus
	ProcessedCount  int
	TotalCount      int
	ProgressPercent float64
	// StopRequested is set while a stopped run is still finishing its
	// current account. No new run may start until it clears.
	StopRequested bool
	UpdatedAt     time.Time
}

// SyncWindow is the [From, To] creation-time range to fetch.
type SyncWindow struct {
	From time.Time
	To   time.Time
}

// Validate requires both bounds and From <= To.
func (w SyncWindow) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return fmt.Errorf("window bounds are required")
	}
	if w.From.After(w.To) {
		return fmt.Errorf("window from %s is after to %s", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
	}
	return nil
}
