// Package events publishes chat lifecycle events to NATS JetStream for
// downstream consumers (analytics, escalation tooling).
//
// Publishing is best-effort with the same policy as cache writes: a failure
// is logged and swallowed, never surfaced to the caller. The publisher is
// optional; a nil *Publisher disables events entirely.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/brightcart/support-assistant/pkg/logger"
)

const (
	// StreamName is the name of the chat events stream.
	StreamName = "SUPPORT_CHAT"

	// SubjectPrefix is the prefix for all chat event subjects.
	SubjectPrefix = "support.chat"

	publishTimeout = 2 * time.Second
)

// MessageStored is emitted after a message pair is durably persisted.
type MessageStored struct {
	SessionID   string    `json:"session_id"`
	MessageID   string    `json:"message_id"`
	Model       string    `json:"model"`
	TotalTokens int       `json:"total_tokens"`
	CreatedAt   time.Time `json:"created_at"`
}

// Publisher publishes chat events to JetStream.
type Publisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// Connect establishes the NATS connection and ensures the events stream
// exists. Returns (nil, nil) when url is empty: events disabled.
func Connect(ctx context.Context, url string, log *logger.Logger) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &Publisher{conn: nc, js: js, logger: log}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	if _, err := p.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Support chat lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("create events stream: %w", err)
	}
	return nil
}

// PublishMessageStored publishes a message-stored event. Safe on a nil
// publisher.
func (p *Publisher) PublishMessageStored(ctx context.Context, evt MessageStored) {
	if p == nil {
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("marshal chat event failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	subject := fmt.Sprintf("%s.%s.stored", SubjectPrefix, evt.SessionID)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.logger.Error("publish chat event failed",
			zap.String("subject", subject), zap.Error(err))
	}
}

// Close drains the NATS connection. Safe on a nil publisher.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
