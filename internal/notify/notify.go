// Package notify delivers best-effort sync progress and completion events.
// Publishing never blocks or fails a sync.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/banksync/internal/model"
)

// Kind is the event type.
type Kind string

const (
	KindProgress Kind = "progress"
	KindComplete Kind = "complete"
)

// Event is a progress snapshot of one run.
type Event struct {
	Kind      Kind             `json:"kind"`
	RunID     string           `json:"run_id"`
	Scope     string           `json:"scope"`
	Status    model.SyncStatus `json:"status"`
	Account   string           `json:"account,omitempty"`
	Processed int              `json:"processed"`
	Created   int              `json:"created"`
	Skipped   int              `json:"skipped"`
	Errors    int              `json:"errors"`
	Total     int              `json:"total"`
	Percent   float64          `json:"percent"`
	At        time.Time        `json:"at"`
}

//go:generate mockgen -destination=mocks/mock_notify.go -source=notify.go Publisher

// Publisher delivers events to some sink.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Log writes events to a zerolog logger.
type Log struct {
	log zerolog.Logger
}

// NewLog returns a Publisher that logs every event.
func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Publish(_ context.Context, e Event) error {
	ev := l.log.Info()
	if e.Kind == KindProgress {
		ev = l.log.Debug()
	}
	ev.Str("kind", string(e.Kind)).
		Str("run_id", e.RunID).
		Str("status", string(e.Status)).
		Str("account", e.Account).
		Int("processed", e.Processed).
		Int("created", e.Created).
		Int("skipped", e.Skipped).
		Int("errors", e.Errors).
		Float64("percent", e.Percent).
		Msg("sync event")
	return nil
}

// Multi publishes to every publisher in order and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
