package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/TemirB/freight-portal/internal/auth"
	"github.com/TemirB/freight-portal/internal/documents"
	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/observability"
	"github.com/TemirB/freight-portal/internal/tracking"
)

//go:generate mockgen -source httpapi.go -destination=httpapi_mock_test.go -package=httpapi

type Authenticator interface {
	Login(ctx context.Context, username, password string) (*domain.Session, error)
	Me(ctx context.Context, token string) (*domain.User, error)
	Logout(ctx context.Context, token string) error
	Invalidate(ctx context.Context, token string)
	CreateUser(ctx context.Context, n auth.NewUser) (*domain.User, error)
	ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error)
	Executives(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, actor, username string) error
}

type Tracker interface {
	Create(ctx context.Context, user string, req tracking.CreateRequest) (*domain.TrackedShipment, error)
}

type DocumentStore interface {
	List(ctx context.Context, shipmentID string) ([]domain.Document, error)
	Get(ctx context.Context, shipmentID, id string) (*documents.File, error)
	Upload(ctx context.Context, user, shipmentID string, up documents.Upload) (*domain.Document, error)
	Delete(ctx context.Context, user, shipmentID, id string) error
}

type Chat interface {
	History(ctx context.Context, user string) ([]domain.ChatMessage, error)
	ClearHistory(ctx context.Context, user string) error
	Send(ctx context.Context, user, text string) (domain.ChatMessage, error)
	Stream(ctx context.Context, user, text string) (domain.ChatMessage, <-chan string, error)
}

type StatsSource interface {
	Stats() observability.Stats
}

// Services are the components the API exposes. Stats may be nil.
type Services struct {
	Auth      Authenticator
	Quotes    List[domain.Quote]
	Air       List[domain.Shipment]
	Ocean     List[domain.Shipment]
	Tracked   List[domain.TrackedShipment]
	Tracker   Tracker
	Documents DocumentStore
	Chat      Chat
	Stats     StatsSource
}

type Options struct {
	WebDir      string
	SwaggerFile string
}

type Server struct {
	svc     Services
	opts    Options
	router  chi.Router
	logger  *zap.Logger
	metrics observability.Metrics
}

func New(svc Services, opts Options, logger *zap.Logger, metrics observability.Metrics) *Server {
	if metrics == nil {
		metrics = observability.NewNoop()
	}
	s := &Server{
		svc:     svc,
		opts:    opts,
		router:  chi.NewRouter(),
		logger:  logger,
		metrics: metrics,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		AccessLog(s.logger),
		ServerTimingApp(s.metrics),
		middleware.Recoverer,
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.opts.SwaggerFile != "" {
		r.Get("/swagger.yaml", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, s.opts.SwaggerFile)
		})
		r.Handle("/docs/*", httpSwagger.Handler(httpSwagger.URL("/swagger.yaml")))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/me", s.me)
			r.Post("/logout", s.logout)
			r.Get("/executives", s.executives)

			mountList(r, s, "/quotes", s.svc.Quotes)
			mountList(r, s, "/air-shipments", s.svc.Air)
			mountList(r, s, "/ocean-shipments", s.svc.Ocean)
			mountList(r, s, "/shipsgo/shipments", s.svc.Tracked)
			r.Post("/shipsgo/shipments", s.createTracked)

			r.Route("/ocean-shipments/documentos/{shipmentID}", func(r chi.Router) {
				r.Get("/", s.listDocuments)
				r.Post("/", s.uploadDocument)
				r.Get("/{docID}", s.getDocument)
				r.Delete("/{docID}", s.deleteDocument)
			})

			r.Post("/chat", s.sendChat)
			r.Post("/chat/stream", s.streamChat)
			r.Get("/chat/history", s.chatHistory)
			r.Delete("/chat/history", s.clearChat)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(domain.RoleAdmin))
				r.Get("/users", s.listUsers)
				r.Post("/users", s.createUser)
				r.Delete("/users/{username}", s.deleteUser)
				r.Get("/debug/metrics", s.debugMetrics)
			})
		})
	})

	if s.opts.WebDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.WebDir)))
	}
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

const maxBodyBytes = 8 << 20

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody{Error: "Content-Type must be application/json"})
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad json"})
		return false
	}
	return true
}
