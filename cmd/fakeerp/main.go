// Command fakeerp serves made-up ERP and tracking data for local development.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	addr    string
	token   string
	credits int
	delay   time.Duration
	seed    uint64
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:          "fakeerp",
		Short:        "Fake ERP and tracking APIs",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return run(cmd.Context(), opts, logger)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":8090", "listen address")
	cmd.Flags().StringVar(&opts.token, "token", "", "bearer token to require (empty accepts any)")
	cmd.Flags().IntVar(&opts.credits, "credits", 5, "tracking credits before POST answers 402")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "artificial latency per request")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 42, "data seed")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *zap.Logger) error {
	erp := newERP(opts.seed)
	tracker := newTracker(opts.seed, opts.credits)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, requireToken(opts.token), delay(opts.delay))
	r.Get("/Quotes", erp.quotes)
	r.Get("/AirShipments", erp.shipments("air"))
	r.Get("/OceanShipments", erp.shipments("ocean"))
	r.Get("/api/shipsgo/shipments", tracker.list)
	r.Post("/api/shipsgo/shipments", tracker.create)

	srv := &http.Server{Addr: opts.addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("fake upstream listening", zap.String("addr", opts.addr), zap.Int("credits", opts.credits))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func delay(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d > 0 {
				select {
				case <-time.After(d):
				case <-r.Context().Done():
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
