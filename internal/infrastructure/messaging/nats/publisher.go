package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// DefaultStream captures every refresh event subject.
const (
	DefaultStream   = "CONTROLS"
	defaultSubjects = "controls.>"
)

// Publisher implements port.EventPublisher on NATS JetStream.
type Publisher struct {
	js         nats.JetStreamContext
	closeConn  func()
	ackTimeout time.Duration
	logger     *logger.Logger
}

const defaultAckTimeout = 2 * time.Second

// NewPublisher connects to NATS and makes sure the event stream exists.
func NewPublisher(natsURL, stream string, log *logger.Logger) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("controls-ux"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	if stream == "" {
		stream = DefaultStream
	}
	if err := ensureStream(js, stream); err != nil {
		nc.Close()
		return nil, err
	}

	log.Info("Connected to NATS", "url", natsURL, "stream", stream)

	return newPublisher(js, nc.Close, log), nil
}

func newPublisher(js nats.JetStreamContext, closeConn func(), log *logger.Logger) *Publisher {
	return &Publisher{
		js:         js,
		closeConn:  closeConn,
		ackTimeout: defaultAckTimeout,
		logger:     log,
	}
}

// ensureStream creates stream over controls.> unless it already exists.
func ensureStream(js nats.JetStreamContext, stream string) error {
	_, err := js.StreamInfo(stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", stream, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     stream,
		Subjects: []string{defaultSubjects},
		MaxAge:   24 * time.Hour,
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", stream, err)
	}
	return nil
}

// PublishEvent publishes event as JSON without waiting for the ack.
func (p *Publisher) PublishEvent(ctx context.Context, subject string, event interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.logger.Error("Failed to publish event", err, "subject", subject)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published", "subject", subject, "size", len(data))
	return nil
}

// Close drains pending acks and closes the connection.
func (p *Publisher) Close() error {
	if p.closeConn == nil {
		return nil
	}
	p.logger.Info("Closing NATS connection")

	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(p.ackTimeout):
		p.logger.Warn("Timed out waiting for NATS publish acks")
	}
	p.closeConn()
	p.closeConn = nil
	return nil
}
