package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Conn is the part of *nats.Conn used for publishing.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATS publishes events as JSON to <subject>.<kind>.
type NATS struct {
	conn    Conn
	subject string
	close   func()
}

// NewNATS publishes over an existing connection.
func NewNATS(conn Conn, subject string) *NATS {
	return &NATS{conn: conn, subject: subject}
}

// ConnectNATS dials url and returns a publisher that owns the connection.
func ConnectNATS(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("banksync"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", url, err)
	}
	n := NewNATS(nc, subject)
	n.close = func() {
		_ = nc.Flush()
		nc.Close()
	}
	return n, nil
}

func (n *NATS) Publish(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", e.Kind, err)
	}
	subject := n.subject + "." + string(e.Kind)
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Close flushes and closes a connection opened by ConnectNATS.
func (n *NATS) Close() {
	if n.close != nil {
		n.close()
	}
}
