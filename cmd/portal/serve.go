package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TemirB/freight-portal/internal/auth"
	"github.com/TemirB/freight-portal/internal/chat"
	"github.com/TemirB/freight-portal/internal/config"
	"github.com/TemirB/freight-portal/internal/database"
	"github.com/TemirB/freight-portal/internal/documents"
	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/erp"
	"github.com/TemirB/freight-portal/internal/events"
	"github.com/TemirB/freight-portal/internal/httpapi"
	"github.com/TemirB/freight-portal/internal/kafka"
	"github.com/TemirB/freight-portal/internal/kv"
	"github.com/TemirB/freight-portal/internal/listing"
	"github.com/TemirB/freight-portal/internal/observability"
	"github.com/TemirB/freight-portal/internal/pkg/breaker"
	"github.com/TemirB/freight-portal/internal/tracking"
	"github.com/TemirB/freight-portal/internal/upstream"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	metrics := observability.NewInmem(500)

	pool, err := database.Connect(ctx, cfg.DSN(), logger.Named("pg"), tracelog.LogLevelWarn)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool, cfg.Tables); err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, pool)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("kv store ready", zap.String("backend", cfg.Store.Backend))

	// Lists are registered with the handler once they exist, the publisher
	// has to exist before the tracking client.
	invalidations := events.NewHandler(breaker.New(cfg.Breaker), cfg.Retry, logger.Named("events"))
	var pub events.Publisher = events.NewLocal(invalidations)
	if cfg.Kafka.Enabled() {
		if err := kafka.EnsureTopic(ctx, cfg.Kafka, logger.Named("kafka")); err != nil {
			return fmt.Errorf("ensure topic: %w", err)
		}
		writer := &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafkago.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafkago.RequireOne,
		}
		defer func() { _ = writer.Close() }()
		pub = events.Multi{pub, events.NewKafkaPublisher(writer, logger.Named("events"))}
	}

	erpClient := erp.New(upstream.New("erp", cfg.ERP, breaker.New(cfg.Breaker), logger).WithMetrics(metrics))
	tracker := tracking.New(
		upstream.New("tracking", cfg.Tracking, breaker.New(cfg.Breaker), logger).WithMetrics(metrics),
		pub,
		logger.Named("tracking"),
	)

	opts := listing.Options{TTL: cfg.Listing.TTL, PageSize: cfg.Listing.PageSize, Views: cfg.Listing.Views}
	quotes, err := listing.New[domain.Quote](erpClient.QuoteFetcher(), store, opts, logger, metrics)
	if err != nil {
		return err
	}
	air, err := listing.New[domain.Shipment](erpClient.AirShipmentFetcher(), store, opts, logger, metrics)
	if err != nil {
		return err
	}
	ocean, err := listing.New[domain.Shipment](erpClient.OceanShipmentFetcher(), store, opts, logger, metrics)
	if err != nil {
		return err
	}
	tracked, err := listing.New[domain.TrackedShipment](tracker, store, opts, logger, metrics)
	if err != nil {
		return err
	}
	invalidations.Register(quotes, air, ocean, tracked)

	if cfg.Kafka.Enabled() {
		reader := kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:  cfg.Kafka.Brokers,
			GroupID:  cfg.Kafka.Group,
			Topic:    cfg.Kafka.Topic,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		})
		defer func() { _ = reader.Close() }()
		consumer := kafka.NewConsumer(invalidations, reader, cfg.Kafka.Workers, logger.Named("kafka"), metrics)
		go consumer.Start(ctx)
	}

	users := database.NewUserRepo(pool, cfg.Tables)
	server := httpapi.New(httpapi.Services{
		Auth:      auth.NewService(users, store, pub, cfg.Auth, logger.Named("auth")),
		Quotes:    quotes,
		Air:       air,
		Ocean:     ocean,
		Tracked:   tracked,
		Tracker:   tracker,
		Documents: documents.NewService(database.NewDocumentRepo(pool, cfg.Tables), pub, cfg.Documents, logger.Named("documents")),
		Chat:      chat.NewService(store, nil, cfg.Chat, logger.Named("chat")),
		Stats:     metrics,
	}, httpapi.Options{
		WebDir:      cfg.WebDir,
		SwaggerFile: cfg.SwaggerFile,
	}, logger, metrics)

	return server.ListenAndServe(ctx, cfg.HTTPAddr)
}

func openStore(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (kv.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		r, err := kv.NewRedis(ctx, cfg.Store.RedisURL, "portal:")
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	case config.StorePostgres:
		return database.NewKVStore(pool, cfg.Tables), func() {}, nil
	default:
		m, err := kv.NewMemory(cfg.Store.MemoryCap)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil
	}
}
