package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cleared-dev/banksync/internal/model"
)

const selectSettings = `SELECT enabled, schedule, last_sync_at, status, processed_count, total_count,
	progress_percent, stop_requested, updated_at FROM sync_settings WHERE id = 1`

// Settings reads the sync settings row.
func (s *Store) Settings(ctx context.Context) (model.SyncSettings, error) {
	return scanSettings(s.db.QueryRowContext(ctx, selectSettings))
}

func scanSettings(row *sql.Row) (model.SyncSettings, error) {
	var (
		out       model.SyncSettings
		enabled   int
		stopping  int
		schedule  string
		status    string
		lastSync  sql.NullString
		updatedAt string
	)
	err := row.Scan(&enabled, &schedule, &lastSync, &status, &out.ProcessedCount, &out.TotalCount,
		&out.ProgressPercent, &stopping, &updatedAt)
	if err != nil {
		return model.SyncSettings{}, fmt.Errorf("reading sync settings: %w", err)
	}
	out.Enabled = enabled != 0
	out.StopRequested = stopping != 0
	out.Schedule = model.ScheduleKind(schedule)
	out.Status = model.SyncStatus(status)
	if out.LastSyncAt, err = parseNullTime(lastSync); err != nil {
		return model.SyncSettings{}, err
	}
	if ts, err := parseNullTime(nullString(updatedAt)); err == nil && ts != nil {
		out.UpdatedAt = *ts
	}
	return out, nil
}

// Configure stores the externally owned fields of the settings row.
func (s *Store) Configure(ctx context.Context, enabled bool, schedule model.ScheduleKind) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_settings SET enabled = ?, schedule = ?, updated_at = ? WHERE id = 1`,
		boolInt(enabled), string(schedule), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("configuring sync settings: %w", err)
	}
	return nil
}

// TryStart moves the status to In Progress and zeroes the progress counters,
// unless a run is in progress or a stopped run has not finished yet. The
// check and the write are one statement, so two processes sharing the
// database cannot both succeed.
func (s *Store) TryStart(ctx context.Context) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
	UPDATE sync_settings
	SET status = ?, processed_count = 0, total_count = 0, progress_percent = 0, updated_at = ?
	WHERE id = 1 AND status <> ? AND stop_requested = 0`,
		string(model.StatusInProgress), formatTime(s.now()), string(model.StatusInProgress))
	if err != nil {
		return false, fmt.Errorf("starting sync: %w", err)
	}
	return affectedOne(res)
}

// UpdateProgress writes progress counters. It never touches the status, so a
// concurrent stop request is preserved.
func (s *Store) UpdateProgress(ctx context.Context, processed, total int, percent float64) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE sync_settings
	SET processed_count = ?, total_count = ?, progress_percent = ?, updated_at = ?
	WHERE id = 1`,
		processed, total, percent, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("updating sync progress: %w", err)
	}
	return nil
}

// Finish writes a terminal status with final counters and lastSyncAt, and
// clears any stop request. A pending stop request wins over status. Returns
// the status actually stored.
func (s *Store) Finish(ctx context.Context, status model.SyncStatus, lastSyncAt time.Time, processed, total int, percent float64) (model.SyncStatus, error) {
	var stored string
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		UPDATE sync_settings
		SET status = CASE WHEN stop_requested = 1 THEN ? ELSE ? END, stop_requested = 0,
			last_sync_at = ?, processed_count = ?, total_count = ?, progress_percent = ?, updated_at = ?
		WHERE id = 1`,
			string(model.StatusStopped), string(status),
			formatTime(lastSyncAt), processed, total, percent, formatTime(s.now()))
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT status FROM sync_settings WHERE id = 1`).Scan(&stored)
	})
	if err != nil {
		return "", fmt.Errorf("finishing sync: %w", err)
	}
	return model.SyncStatus(stored), nil
}

// RequestStop marks an in-progress run as Stopped and records the request
// until the run finishes. It reports false when no run is in progress.
func (s *Store) RequestStop(ctx context.Context) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_settings SET status = ?, stop_requested = 1, updated_at = ? WHERE id = 1 AND status = ?`,
		string(model.StatusStopped), formatTime(s.now()), string(model.StatusInProgress))
	if err != nil {
		return false, fmt.Errorf("requesting stop: %w", err)
	}
	return affectedOne(res)
}

// MarkFailedIfIdle sets status Failed unless a run is in progress or still
// stopping.
func (s *Store) MarkFailedIfIdle(ctx context.Context) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_settings SET status = ?, updated_at = ? WHERE id = 1 AND status <> ? AND stop_requested = 0`,
		string(model.StatusFailed), formatTime(s.now()), string(model.StatusInProgress))
	if err != nil {
		return false, fmt.Errorf("marking sync failed: %w", err)
	}
	return affectedOne(res)
}

// Reset returns the state machine to Not Started regardless of its current
// status. It recovers a run that was killed while In Progress.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE sync_settings
	SET status = ?, stop_requested = 0, processed_count = 0, total_count = 0, progress_percent = 0, updated_at = ?
	WHERE id = 1`,
		string(model.StatusNotStarted), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("resetting sync status: %w", err)
	}
	return nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
