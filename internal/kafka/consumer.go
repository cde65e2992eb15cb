// Package kafka carries portal events between instances over segmentio/kafka-go.
package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TemirB/freight-portal/internal/observability"
	"github.com/TemirB/freight-portal/internal/pkg/pool"
)

//go:generate mockgen -source consumer.go -destination=consumer_mock_test.go -package=kafka

type MessageHandler interface {
	Handle(ctx context.Context, msg kafkago.Message) error
}

type Reader interface {
	Config() kafkago.ReaderConfig
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

type Consumer struct {
	handler MessageHandler
	reader  Reader
	logger  *zap.Logger
	metrics observability.Metrics

	workers int
	// backoff after fetch errors; idleBackoff after benign idle timeouts.
	backoff     time.Duration
	idleBackoff time.Duration
}

type pending struct {
	msg    kafkago.Message
	result chan error
}

func NewConsumer(handler MessageHandler, reader Reader, workers int, logger *zap.Logger, metrics observability.Metrics) *Consumer {
	if workers < 1 {
		workers = 1
	}
	if metrics == nil {
		metrics = observability.NewNoop()
	}
	return &Consumer{
		handler:     handler,
		reader:      reader,
		logger:      logger,
		metrics:     metrics,
		workers:     workers,
		backoff:     500 * time.Millisecond,
		idleBackoff: 10 * time.Second,
	}
}

// Start consumes until ctx is done. Messages are handled concurrently on a
// worker pool, but offsets are committed strictly in fetch order: a message is
// committed only after it and every message fetched before it were handled.
func (c *Consumer) Start(ctx context.Context) {
	rc := c.reader.Config()
	c.logger.Info("starting kafka consumer",
		zap.Strings("brokers", rc.Brokers),
		zap.String("group", rc.GroupID),
		zap.String("topic", rc.Topic),
		zap.Int("workers", c.workers),
	)

	workers := pool.New(c.workers)
	queue := make(chan pending, c.workers)
	committed := make(chan struct{})
	go func() {
		defer close(committed)
		c.commitInOrder(ctx, queue)
	}()
	defer func() {
		close(queue)
		<-committed
		workers.Close()
		workers.Wait()
		c.logger.Info("kafka consumer stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			if isBenignFetchTimeout(err) {
				c.logger.Debug("fetch timeout (idle), backing off", zap.Error(err))
				sleepWithContext(ctx, c.idleBackoff)
				continue
			}
			c.logger.Warn("fetch failed, backing off", zap.Error(err))
			sleepWithContext(ctx, c.backoff)
			continue
		}

		p := pending{msg: msg, result: make(chan error, 1)}
		if !workers.Submit(ctx, func() { p.result <- c.handle(ctx, msg) }) {
			return
		}
		select {
		case queue <- p:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) error {
	start := time.Now()
	err := c.handler.Handle(ctx, msg)
	elapsed := time.Since(start)
	c.metrics.ObserveKafka(float64(elapsed.Microseconds())/1000.0, err == nil)

	if err != nil {
		c.logger.Error("message handling failed",
			zap.Error(err),
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Duration("elapsed", elapsed),
		)
		return err
	}
	c.logger.Debug("message handled",
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.Int("value_bytes", len(msg.Value)),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (c *Consumer) commitInOrder(ctx context.Context, queue <-chan pending) {
	for p := range queue {
		var err error
		select {
		case err = <-p.result:
		case <-ctx.Done():
			return
		}
		if err != nil {
			// Cache invalidations are not replayed; the entry still expires with its TTL.
			c.logger.Warn("message skipped",
				zap.Error(err),
				zap.Int("partition", p.msg.Partition),
				zap.Int64("offset", p.msg.Offset),
			)
		}
		if err := c.reader.CommitMessages(ctx, p.msg); err != nil {
			c.logger.Warn("commit failed",
				zap.Error(err),
				zap.String("topic", p.msg.Topic),
				zap.Int("partition", p.msg.Partition),
				zap.Int64("offset", p.msg.Offset),
			)
			continue
		}
		c.logger.Debug("message committed",
			zap.String("topic", p.msg.Topic),
			zap.Int("partition", p.msg.Partition),
			zap.Int64("offset", p.msg.Offset),
		)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func isBenignFetchTimeout(err error) bool {
	s := err.Error()
	return strings.Contains(s, "Request Timed Out") ||
		strings.Contains(s, "no messages received from kafka within the allocated time")
}
