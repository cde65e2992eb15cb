package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TemirB/freight-portal/internal/config"
)

// topicConfig describes the events topic. Retention is bounded because an
// invalidation older than the list cache TTL has nothing left to drop.
func topicConfig(cfg config.Kafka) (kafkago.TopicConfig, error) {
	if len(cfg.Brokers) == 0 {
		return kafkago.TopicConfig{}, errors.New("no kafka brokers configured")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return kafkago.TopicConfig{}, errors.New("empty topic")
	}
	tc := kafkago.TopicConfig{
		Topic:             cfg.Topic,
		NumPartitions:     max(cfg.Partitions, 1),
		ReplicationFactor: max(cfg.Replication, 1),
	}
	if cfg.Retention > 0 {
		tc.ConfigEntries = []kafkago.ConfigEntry{
			{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(cfg.Retention.Milliseconds(), 10)},
		}
	}
	return tc, nil
}

// EnsureTopic creates the events topic when it does not exist and waits until
// its partitions show up in the metadata. An existing topic is left as it is.
func EnsureTopic(ctx context.Context, cfg config.Kafka, logger *zap.Logger) error {
	tc, err := topicConfig(cfg)
	if err != nil {
		return err
	}

	dialer := &kafkago.Dialer{Timeout: 10 * time.Second}

	conn, err := dialer.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	if parts, err := conn.ReadPartitions(tc.Topic); err == nil && len(parts) > 0 {
		logger.Info("kafka topic exists", zap.String("topic", tc.Topic), zap.Int("partitions", len(parts)))
		return nil
	}

	// Topics can only be created on the controller.
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get controller: %w", err)
	}
	ctrlAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))

	ctrlConn, err := dialer.DialContext(ctx, "tcp", ctrlAddr)
	if err != nil {
		return fmt.Errorf("dial controller %s: %w", ctrlAddr, err)
	}
	defer ctrlConn.Close()

	logger.Info("creating kafka topic",
		zap.String("topic", tc.Topic),
		zap.Int("partitions", tc.NumPartitions),
		zap.Int("replication", tc.ReplicationFactor),
		zap.Duration("retention", cfg.Retention),
	)
	err = ctrlConn.CreateTopics(tc)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "exists") {
		return fmt.Errorf("create topic: %w", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		parts, err := conn.ReadPartitions(tc.Topic)
		if err == nil && len(parts) >= tc.NumPartitions {
			logger.Info("kafka topic is ready", zap.String("topic", tc.Topic), zap.Int("partitions", len(parts)))
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("topic %s not visible after creation", tc.Topic)
		}
		sleepWithContext(ctx, 500*time.Millisecond)
	}
}
