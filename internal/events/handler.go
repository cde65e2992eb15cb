package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TemirB/freight-portal/internal/config"
	"github.com/TemirB/freight-portal/internal/pkg/retry"
)

var (
	ErrBadEvent        = errors.New("bad event")
	ErrUnknownResource = errors.New("unknown resource")
	ErrCircuitOpen     = errors.New("circuit breaker open")
	ErrInvalidate      = errors.New("invalidation failed")
)

//go:generate mockgen -source handler.go -destination=handler_mock_test.go -package=events

type Breaker interface {
	Allow() error
	Success()
	Failure()
}

// Invalidator drops one user's cached list of a resource.
type Invalidator interface {
	Resource() string
	Invalidate(ctx context.Context, user string) error
}

type Handler struct {
	invalidators map[string]Invalidator
	order        []string
	breaker      Breaker
	retryPolicy  config.Retry
	logger       *zap.Logger
}

func NewHandler(brk Breaker, retryPolicy config.Retry, logger *zap.Logger, invalidators ...Invalidator) *Handler {
	h := &Handler{
		invalidators: make(map[string]Invalidator, len(invalidators)),
		breaker:      brk,
		retryPolicy:  retryPolicy,
		logger:       logger,
	}
	h.Register(invalidators...)
	return h
}

// Register adds lists to invalidate. It must not be called once events flow.
func (h *Handler) Register(invalidators ...Invalidator) {
	for _, inv := range invalidators {
		if _, ok := h.invalidators[inv.Resource()]; !ok {
			h.order = append(h.order, inv.Resource())
		}
		h.invalidators[inv.Resource()] = inv
	}
}

// Handle is called by the consumer for every message on the events topic.
func (h *Handler) Handle(ctx context.Context, message kafkago.Message) error {
	var e Event
	if err := json.Unmarshal(message.Value, &e); err != nil {
		h.logger.Error("bad json format",
			zap.Error(err),
			zap.Int("partition", message.Partition),
			zap.Int64("offset", message.Offset),
		)
		return ErrBadEvent
	}
	if err := h.Apply(ctx, e); err != nil {
		h.logger.Error("event not applied",
			zap.String("id", e.ID),
			zap.Error(err),
			zap.Int("partition", message.Partition),
			zap.Int64("offset", message.Offset),
		)
		return err
	}
	return nil
}

// Apply runs one event. Kinds this version does not know are ignored.
func (h *Handler) Apply(ctx context.Context, e Event) error {
	if e.Kind != KindCacheInvalidate {
		h.logger.Debug("event ignored", zap.String("kind", string(e.Kind)))
		return nil
	}
	if e.Username == "" {
		return fmt.Errorf("%w: missing username", ErrBadEvent)
	}

	targets, err := h.targets(e.Resource)
	if err != nil {
		return err
	}

	if err := h.breaker.Allow(); err != nil {
		h.logger.Warn("circuit breaker is open", zap.Error(err), zap.String("username", e.Username))
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}

	for _, inv := range targets {
		err := retry.Do(ctx, h.retryPolicy, func() error {
			return inv.Invalidate(ctx, e.Username)
		})
		if err != nil {
			h.breaker.Failure()
			h.logger.Error("invalidation failed after retries",
				zap.String("username", e.Username),
				zap.String("resource", inv.Resource()),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %s: %v", ErrInvalidate, inv.Resource(), err)
		}
	}

	h.breaker.Success()
	h.logger.Info("cache invalidated",
		zap.String("username", e.Username),
		zap.String("resource", e.Resource),
		zap.Int("lists", len(targets)),
	)
	return nil
}

func (h *Handler) targets(resource string) ([]Invalidator, error) {
	if resource == "" {
		out := make([]Invalidator, 0, len(h.order))
		for _, r := range h.order {
			out = append(out, h.invalidators[r])
		}
		return out, nil
	}
	inv, ok := h.invalidators[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}
	return []Invalidator{inv}, nil
}
