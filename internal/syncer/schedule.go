package syncer

import (
	"time"

	"github.com/cleared-dev/banksync/internal/model"
)

// ScheduledWindow is the window a scheduled run covers: from the last run's
// start, or from the schedule's lookback before now when there was none,
// up to now.
func ScheduledWindow(lastSyncAt *time.Time, kind model.ScheduleKind, now time.Time) model.SyncWindow {
	from := now.Add(-kind.Lookback())
	if lastSyncAt != nil && !lastSyncAt.IsZero() {
		from = *lastSyncAt
	}
	if from.After(now) {
		from = now
	}
	return model.SyncWindow{From: from, To: now}
}
