package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Async hands events to a background goroutine. When the buffer is full,
// progress events are dropped and completion events wait briefly before
// being dropped.
type Async struct {
	next    Publisher
	log     zerolog.Logger
	events  chan Event
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

const completeWait = 100 * time.Millisecond

// NewAsync starts delivering events to next.
func NewAsync(next Publisher, buffer int, log zerolog.Logger) *Async {
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		next:   next,
		log:    log,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.events {
		if err := a.next.Publish(context.Background(), e); err != nil {
			a.log.Warn().Err(err).Str("kind", string(e.Kind)).Str("run_id", e.RunID).Msg("publishing sync event")
		}
	}
}

// Publish never blocks for long and never fails.
func (a *Async) Publish(ctx context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}

	if e.Kind == KindComplete {
		select {
		case a.events <- e:
		case <-ctx.Done():
			a.drop(e)
		case <-time.After(completeWait):
			a.drop(e)
		}
		return nil
	}

	select {
	case a.events <- e:
	default:
		a.drop(e)
	}
	return nil
}

func (a *Async) drop(e Event) {
	a.dropped.Add(1)
	a.log.Warn().Str("kind", string(e.Kind)).Str("run_id", e.RunID).Msg("event buffer full, dropping sync event")
}

// Dropped returns how many events were discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()
	<-a.done
}
