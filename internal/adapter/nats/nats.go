// Package nats connects to NATS for the summary cache bucket and the live
// task event mirror.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/tubedigest/internal/logger"
)

// SubjectPrefix prefixes every mirrored task event subject.
const SubjectPrefix = "tubedigest.events."

// HeaderRequestID carries the request id of the emitting task.
const HeaderRequestID = "X-Request-ID"

// Conn is a NATS connection with its JetStream context.
type Conn struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and initializes JetStream.
func Connect(_ context.Context, url, name string) (*Conn, error) {
	nc, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	slog.Info("nats connected", "url", url)
	return &Conn{nc: nc, js: js}, nil
}

// KeyValue creates or updates the named bucket; entries expire after ttl.
func (c *Conn) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := c.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv %s: %w", bucket, err)
	}
	return kv, nil
}

// BroadcastEvent publishes payload as JSON on SubjectPrefix+eventType over
// core NATS. Nothing is retained; observers see only live events.
func (c *Conn) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "broadcast marshal failed", "event_type", eventType, "error", err)
		return
	}
	msg := nats.NewMsg(Subject(eventType))
	msg.Data = data
	if rid := logger.RequestID(ctx); rid != "" {
		msg.Header.Set(HeaderRequestID, rid)
	}
	if err := c.nc.PublishMsg(msg); err != nil {
		slog.WarnContext(ctx, "broadcast publish failed", "event_type", eventType, "error", err)
	}
}

// Subscribe delivers mirrored events matching the subject pattern (relative
// to SubjectPrefix, ">" for all) to handler. The returned func unsubscribes.
func (c *Conn) Subscribe(pattern string, handler func(subject string, data []byte)) (func(), error) {
	sub, err := c.nc.Subscribe(SubjectPrefix+pattern, func(m *nats.Msg) {
		handler(strings.TrimPrefix(m.Subject, SubjectPrefix), m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Subject maps an event type to its NATS subject.
func Subject(eventType string) string {
	return SubjectPrefix + eventType
}

// IsConnected reports whether the connection is up.
func (c *Conn) IsConnected() bool {
	return c.nc.IsConnected()
}

// Close drains and closes the connection.
func (c *Conn) Close() error {
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
		return err
	}
	return nil
}
