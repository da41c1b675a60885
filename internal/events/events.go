// Package events publishes domain events for downstream consumers such as
// notification workers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes JSON payloads to NATS subjects under a prefix.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// Connect dials NATS with reconnect handling logged through logger.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	conn, err := nats.Connect(url,
		nats.Name("quilt-tracker"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// NewNATSPublisher creates a publisher on conn.
func NewNATSPublisher(conn *nats.Conn, prefix string, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}
}

// Publish encodes payload as JSON and sends it to prefix.subject.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", subject, err)
	}
	full := Subject(p.prefix, subject)
	if err := p.conn.Publish(full, data); err != nil {
		return fmt.Errorf("publishing event %s: %w", full, err)
	}
	p.logger.Debug("event published", "subject", full, "bytes", len(data))
	return nil
}

// Flush waits until buffered events reach the server.
func (p *NATSPublisher) Flush(ctx context.Context) error {
	return p.conn.FlushWithContext(ctx)
}

// Subject joins a prefix and a subject with a dot, ignoring an empty prefix.
func Subject(prefix, subject string) string {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }

// Message is an event captured by Recorder.
type Message struct {
	Subject string
	Payload json.RawMessage
}

// Recorder keeps published events in memory. It backs local runs without
// a broker and tests that assert on emitted events.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", subject, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Subject: subject, Payload: data})
	return nil
}

// Messages returns a copy of everything published so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Subjects lists published subjects in order.
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Subject
	}
	return out
}
