// Package events publishes and applies portal events. The only event today is
// a cache invalidation: something changed upstream on behalf of a user, so
// that user's cached list for one resource must be dropped on every instance.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Kind string

const KindCacheInvalidate Kind = "cache.invalidate"

// Event is published as JSON. An empty Resource addresses every list of the user.
type Event struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	Username string    `json:"username"`
	Resource string    `json:"resource,omitempty"`
	At       time.Time `json:"at"`
}

func NewInvalidation(username, resource string) Event {
	return Event{
		ID:       uuid.NewString(),
		Kind:     KindCacheInvalidate,
		Username: username,
		Resource: resource,
		At:       time.Now().UTC(),
	}
}

//go:generate mockgen -source events.go -destination=events_mock_test.go -package=events

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// KafkaPublisher writes events keyed by username, so that one user's events
// stay ordered within a partition.
type KafkaPublisher struct {
	writer Writer
	logger *zap.Logger
}

func NewKafkaPublisher(w Writer, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafkago.Message{Key: []byte(e.Username), Value: value}); err != nil {
		p.logger.Error("publish event",
			zap.String("kind", string(e.Kind)),
			zap.String("username", e.Username),
			zap.Error(err),
		)
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}
	p.logger.Debug("event published",
		zap.String("id", e.ID),
		zap.String("kind", string(e.Kind)),
		zap.String("username", e.Username),
		zap.String("resource", e.Resource),
	)
	return nil
}

// Local applies events in-process. It is used alone when Kafka is not
// configured and next to KafkaPublisher so the publishing instance does not
// wait for its own consumer.
type Local struct {
	handler *Handler
}

func NewLocal(h *Handler) *Local { return &Local{handler: h} }

func (l *Local) Publish(ctx context.Context, e Event) error {
	return l.handler.Apply(ctx, e)
}

// Multi publishes to every publisher and joins the errors.
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
