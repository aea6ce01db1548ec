package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/banksync/internal/model"
	"github.com/cleared-dev/banksync/internal/notify"
	mock_notify "github.com/cleared-dev/banksync/internal/notify/mocks"
)

type fakeConn struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func testEvent(kind notify.Kind) notify.Event {
	return notify.Event{
		Kind:      kind,
		RunID:     "run-1",
		Scope:     "manual",
		Status:    model.StatusInProgress,
		Processed: 3,
		Created:   2,
		Skipped:   1,
		Percent:   50,
		At:        time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestNATS_Publish(t *testing.T) {
	conn := &fakeConn{}
	n := notify.NewNATS(conn, "banksync.sync")

	require.NoError(t, n.Publish(context.Background(), testEvent(notify.KindProgress)))
	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "banksync.sync.progress", conn.subjects[0])

	var got notify.Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &got))
	assert.Equal(t, testEvent(notify.KindProgress), got)
}

func TestNATS_PublishError(t *testing.T) {
	n := notify.NewNATS(&fakeConn{err: errors.New("no servers")}, "banksync.sync")
	err := n.Publish(context.Background(), testEvent(notify.KindComplete))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "banksync.sync.complete")
	n.Close()
}

func TestLog_Publish(t *testing.T) {
	var buf bytes.Buffer
	l := notify.NewLog(zerolog.New(&buf))
	require.NoError(t, l.Publish(context.Background(), testEvent(notify.KindComplete)))
	assert.Contains(t, buf.String(), `"run_id":"run-1"`)
	assert.Contains(t, buf.String(), `"kind":"complete"`)
}

func TestMulti_JoinsErrors(t *testing.T) {
	ok := &fakeConn{}
	m := notify.Multi{notify.NewNATS(&fakeConn{err: errors.New("down")}, "a"), notify.NewNATS(ok, "b"), notify.Nop{}}
	err := m.Publish(context.Background(), testEvent(notify.KindProgress))
	require.Error(t, err)
	assert.Len(t, ok.subjects, 1, "later publishers still receive the event")
}

func TestAsync_Delivers(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mock_notify.NewMockPublisher(ctrl)
	next.EXPECT().Publish(gomock.Any(), testEvent(notify.KindProgress)).Return(nil)
	next.EXPECT().Publish(gomock.Any(), testEvent(notify.KindComplete)).Return(errors.New("sink down"))

	a := notify.NewAsync(next, 4, zerolog.Nop())
	require.NoError(t, a.Publish(context.Background(), testEvent(notify.KindProgress)))
	require.NoError(t, a.Publish(context.Background(), testEvent(notify.KindComplete)))
	a.Close()
	assert.Zero(t, a.Dropped())
}

type blockingPublisher struct {
	release chan struct{}
	mu      sync.Mutex
	got     int
}

func (b *blockingPublisher) Publish(context.Context, notify.Event) error {
	<-b.release
	b.mu.Lock()
	b.got++
	b.mu.Unlock()
	return nil
}

func TestAsync_DropsWhenFull(t *testing.T) {
	next := &blockingPublisher{release: make(chan struct{})}
	a := notify.NewAsync(next, 1, zerolog.Nop())

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Publish(context.Background(), testEvent(notify.KindProgress)))
	}
	require.NoError(t, a.Publish(context.Background(), testEvent(notify.KindComplete)))
	assert.Less(t, time.Since(start), 2*time.Second, "publish must not block on a stuck sink")
	assert.GreaterOrEqual(t, a.Dropped(), int64(4))

	close(next.release)
	a.Close()
	assert.Equal(t, int64(6), a.Dropped()+int64(next.got))
}

func TestAsync_PublishAfterClose(t *testing.T) {
	a := notify.NewAsync(notify.Nop{}, 1, zerolog.Nop())
	a.Close()
	assert.NoError(t, a.Publish(context.Background(), testEvent(notify.KindComplete)))
	a.Close()
}
