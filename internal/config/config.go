package config

import (
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Tables struct {
	Schema    string
	Users     string
	Documents string
	KV        string
}

type Kafka struct {
	Brokers     []string
	Topic       string
	Group       string
	Workers     int
	Partitions  int
	Replication int
	// Retention is how long the broker keeps events. Events older than the
	// list cache TTL invalidate nothing.
	Retention time.Duration
}

// Enabled reports whether events should go through Kafka at all.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

type Postgres struct {
	Host     string
	Port     string
	DB       string
	User     string
	Password string
	SSLMode  string
}

type Store struct {
	Backend   string
	MemoryCap int
	RedisURL  string
}

type Upstream struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Listing struct {
	TTL      time.Duration
	PageSize int
	Views    int
}

type Documents struct {
	MaxBytes int
}

type Auth struct {
	SessionTTL time.Duration
	BcryptCost int
}

type Chat struct {
	HistoryCap   int
	TypeInterval time.Duration
}

type Breaker struct {
	Threshold   uint32
	OpenTimeout time.Duration
	MaxHalfOpen uint32
}

type Retry struct {
	Attempts     int
	Base         time.Duration
	Max          time.Duration
	JitterFactor float64
}

type Config struct {
	HTTPAddr    string
	AppEnv      string
	WebDir      string
	SwaggerFile string

	Store     Store
	Pg        Postgres
	Tables    Tables
	ERP       Upstream
	Tracking  Upstream
	Listing   Listing
	Documents Documents
	Auth      Auth
	Chat      Chat
	Kafka     Kafka
	Breaker   Breaker
	Retry     Retry
}

// Load keeps the original API and fatals on error for simplicity in main().
func Load() Config {
	cfg, err := load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	return cfg
}

func load() (Config, error) {
	_ = godotenv.Load("env/.env")

	cfg := Config{
		HTTPAddr: envDefault("HTTP_ADDR", ":8081"),
		AppEnv:   envDefault("APP_ENV", "development"),
		WebDir:   envDefault("WEB_DIR", "web"),

		SwaggerFile: envDefault("SWAGGER_FILE", "docs/swagger.yaml"),

		Store: Store{
			Backend:   strings.ToLower(envDefault("STORE_BACKEND", StoreMemory)),
			MemoryCap: envInt("STORE_MEMORY_CAP", 10000),
			RedisURL:  strings.TrimSpace(os.Getenv("REDIS_URL")),
		},

		Pg: Postgres{
			Host:     strings.TrimSpace(os.Getenv("PG_HOST")),
			Port:     strings.TrimSpace(envDefault("PG_PORT", "5432")),
			DB:       strings.TrimSpace(os.Getenv("PG_DB")),
			User:     strings.TrimSpace(os.Getenv("PG_USER")),
			Password: strings.TrimSpace(os.Getenv("PG_PASSWORD")),
			SSLMode:  strings.TrimSpace(envDefault("PG_SSLMODE", "disable")),
		},

		Tables: Tables{
			Schema:    envDefault("DB_SCHEMA", "portal"),
			Users:     envDefault("TBL_USERS", "users"),
			Documents: envDefault("TBL_DOCUMENTS", "documents"),
			KV:        envDefault("TBL_KV", "kv_store"),
		},

		ERP: Upstream{
			BaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("ERP_BASE_URL")), "/"),
			Token:   strings.TrimSpace(os.Getenv("ERP_TOKEN")),
			Timeout: envDurationMS("ERP_TIMEOUT", 15*time.Second),
		},

		Tracking: Upstream{
			BaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("TRACKING_BASE_URL")), "/"),
			Token:   strings.TrimSpace(os.Getenv("TRACKING_TOKEN")),
			Timeout: envDurationMS("TRACKING_TIMEOUT", 15*time.Second),
		},

		Listing: Listing{
			TTL:      envDurationMS("LIST_CACHE_TTL", time.Hour),
			PageSize: envInt("LIST_PAGE_SIZE", 15),
			Views:    envInt("LIST_VIEWS", 1024),
		},

		Documents: Documents{
			MaxBytes: envInt("DOCUMENT_MAX_BYTES", 5<<20),
		},

		Auth: Auth{
			SessionTTL: envDurationMS("AUTH_SESSION_TTL", 12*time.Hour),
			BcryptCost: envInt("AUTH_BCRYPT_COST", 10),
		},

		Chat: Chat{
			HistoryCap:   envInt("CHAT_HISTORY_CAP", 50),
			TypeInterval: envDurationMS("CHAT_TYPE_INTERVAL", 20*time.Millisecond),
		},

		Kafka: Kafka{
			Brokers: splitCSV(strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))),
			Topic:   envDefault("KAFKA_TOPIC", "portal-events"),
			Group:   envDefault("KAFKA_GROUP", defaultGroup()),
			Workers: envInt("KAFKA_WORKERS", 4),

			Partitions:  envInt("KAFKA_PARTITIONS", 3),
			Replication: envInt("KAFKA_REPLICATION", 1),
			Retention:   envDurationMS("KAFKA_RETENTION", time.Hour),
		},

		Breaker: Breaker{
			Threshold:   envUint32("BREAKER_THRESHOLD", 5),
			OpenTimeout: envDurationMS("BREAKER_OPENTIMEOUT", 10*time.Second),
			MaxHalfOpen: envUint32("BREAKER_MAXHALFOPEN", 3),
		},

		Retry: Retry{
			Attempts:     envInt("RETRY_ATTEMPTS", 5),
			Base:         envDurationMS("RETRY_BASE", 100*time.Millisecond),
			Max:          envDurationMS("RETRY_MAX", 5*time.Second),
			JitterFactor: envFloat64("RETRY_JITTERFACTOR", 0.3),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	req := map[string]string{
		"PG_HOST":           c.Pg.Host,
		"PG_DB":             c.Pg.DB,
		"PG_USER":           c.Pg.User,
		"PG_PASSWORD":       c.Pg.Password,
		"ERP_BASE_URL":      c.ERP.BaseURL,
		"TRACKING_BASE_URL": c.Tracking.BaseURL,
	}
	if c.Store.Backend == StoreRedis {
		req["REDIS_URL"] = c.Store.RedisURL
	}
	for k, v := range req {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &missingEnvError{Keys: missing}
	}

	switch c.Store.Backend {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return &invalidEnvError{Key: "STORE_BACKEND", Value: c.Store.Backend}
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return &missingEnvError{Keys: []string{"KAFKA_TOPIC"}}
	}
	return nil
}

// normalize clamps values that would otherwise break the components at runtime.
func (c *Config) normalize() {
	if c.Listing.PageSize <= 0 {
		log.Printf("LIST_PAGE_SIZE is %d, adjusting to 15", c.Listing.PageSize)
		c.Listing.PageSize = 15
	}
	if c.Listing.TTL <= 0 {
		log.Printf("LIST_CACHE_TTL is %v, adjusting to 1h", c.Listing.TTL)
		c.Listing.TTL = time.Hour
	}
	if c.Listing.Views <= 0 {
		c.Listing.Views = 1
	}
	if c.Store.MemoryCap <= 0 {
		log.Printf("STORE_MEMORY_CAP is %d, adjusting to 1", c.Store.MemoryCap)
		c.Store.MemoryCap = 1
	}
	if c.Retry.Attempts < 1 {
		log.Printf("RETRY_ATTEMPTS is %d, adjusting to 1", c.Retry.Attempts)
		c.Retry.Attempts = 1
	}
	if c.Retry.Base <= 0 {
		log.Printf("RETRY_BASE is %v, adjusting to 100ms", c.Retry.Base)
		c.Retry.Base = 100 * time.Millisecond
	}
	if c.Retry.Max < c.Retry.Base {
		log.Printf("RETRY_MAX (%v) < RETRY_BASE (%v), adjusting max to base", c.Retry.Max, c.Retry.Base)
		c.Retry.Max = c.Retry.Base
	}
	if c.Chat.HistoryCap <= 0 {
		c.Chat.HistoryCap = 50
	}
	if c.Kafka.Partitions < 1 {
		log.Printf("KAFKA_PARTITIONS is %d, adjusting to 1", c.Kafka.Partitions)
		c.Kafka.Partitions = 1
	}
	if c.Kafka.Replication < 1 {
		log.Printf("KAFKA_REPLICATION is %d, adjusting to 1", c.Kafka.Replication)
		c.Kafka.Replication = 1
	}
	if c.Kafka.Retention < c.Listing.TTL {
		log.Printf("KAFKA_RETENTION (%v) < LIST_CACHE_TTL (%v), adjusting retention to the TTL", c.Kafka.Retention, c.Listing.TTL)
		c.Kafka.Retention = c.Listing.TTL
	}
}

// defaultGroup gives every instance its own consumer group, so that each one
// sees every invalidation event.
func defaultGroup() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "portal"
	}
	return "portal-" + host
}

// Production reports whether the service runs with production logging.
func (c Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

type missingEnvError struct{ Keys []string }

func (e *missingEnvError) Error() string {
	return "missing required envs: " + strings.Join(e.Keys, ", ")
}

type invalidEnvError struct{ Key, Value string }

func (e *invalidEnvError) Error() string {
	return "invalid " + e.Key + "=" + strconv.Quote(e.Value)
}

// DSN builds a proper Postgres URL, safely escaping user/pass and query.
func (c Config) DSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Pg.User, c.Pg.Password),
		Host:   net.JoinHostPort(c.Pg.Host, c.Pg.Port),
		Path:   "/" + c.Pg.DB,
	}
	q := url.Values{}
	if c.Pg.SSLMode != "" {
		q.Set("sslmode", c.Pg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func envDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d: %v", k, v, def, err)
		return def
	}
	return n
}

func envUint32(k string, def uint32) uint32 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	u, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d: %v", k, v, def, err)
		return def
	}
	return uint32(u)
}

func envFloat64(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using default %.3f: %v", k, v, def, err)
		return def
	}
	return f
}

// envDurationMS supports either plain integer milliseconds ("1500") or
// Go duration strings ("1.5s", "250ms", "2m").
func envDurationMS(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if strings.IndexFunc(v, func(r rune) bool { return r < '0' || r > '9' }) != -1 {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("invalid %s=%q, using default %v: %v", k, v, def, err)
			return def
		}
		return d
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %v: %v", k, v, def, err)
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
