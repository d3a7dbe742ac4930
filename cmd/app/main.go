package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Harvey-AU/outline-crawler/internal/api"
	"github.com/Harvey-AU/outline-crawler/internal/crawler"
	"github.com/Harvey-AU/outline-crawler/internal/db"
	"github.com/Harvey-AU/outline-crawler/internal/jobs"
	"github.com/Harvey-AU/outline-crawler/internal/observability"
	"github.com/Harvey-AU/outline-crawler/internal/sink"
	"github.com/Harvey-AU/outline-crawler/internal/store"
	"github.com/Harvey-AU/outline-crawler/internal/techdetect"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Config holds the application configuration loaded from environment variables
type Config struct {
	Port                 string // HTTP port to listen on
	Env                  string // Environment (development/production)
	SentryDSN            string // Sentry DSN for error tracking
	LogLevel             string // Log level (debug, info, warn, error)
	ObservabilityEnabled bool   // Toggle OpenTelemetry + Prometheus exporters
	MetricsAddr          string // Address for Prometheus metrics endpoint (":9464" style)
	OTLPEndpoint         string // OTLP HTTP endpoint for trace export
	OTLPHeaders          string // Comma separated headers for OTLP exporter
	OTLPInsecure         bool   // Disable TLS verification for OTLP exporter

	DatabaseEnabled bool   // Store jobs and pages in PostgreSQL
	RedisAddr       string // Crawl status store; in-memory when empty
	StatusTTL       time.Duration
	KafkaBroker     string // Page record topic; disabled when empty
	KafkaTopic      string
	Neo4jURI        string // Link graph; disabled when empty
	Neo4jUser       string
	Neo4jPassword   string

	Crawler *crawler.Config
}

func loadConfig() *Config {
	crawlerConfig := crawler.DefaultConfig()
	crawlerConfig.MaxPages = getEnvInt("CRAWL_MAX_PAGES", crawlerConfig.MaxPages)
	crawlerConfig.MaxDuration = getEnvDuration("CRAWL_MAX_DURATION", crawlerConfig.MaxDuration)
	crawlerConfig.ProbeConcurrency = getEnvInt("CRAWL_PROBE_CONCURRENCY", crawlerConfig.ProbeConcurrency)
	crawlerConfig.ProbeTimeout = getEnvDuration("CRAWL_PROBE_TIMEOUT", crawlerConfig.ProbeTimeout)
	crawlerConfig.RateLimit = getEnvFloat("CRAWL_RATE_LIMIT", crawlerConfig.RateLimit)
	crawlerConfig.RegionLinksOnly = getEnvWithDefault("CRAWL_REGION_LINKS_ONLY", "false") == "true"

	return &Config{
		Port:                 getEnvWithDefault("PORT", "8080"),
		Env:                  getEnvWithDefault("APP_ENV", "development"),
		SentryDSN:            os.Getenv("SENTRY_DSN"),
		LogLevel:             getEnvWithDefault("LOG_LEVEL", "info"),
		ObservabilityEnabled: getEnvWithDefault("OBSERVABILITY_ENABLED", "true") == "true",
		MetricsAddr:          getEnvWithDefault("METRICS_ADDR", ":9464"),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPHeaders:          os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		OTLPInsecure:         getEnvWithDefault("OTEL_EXPORTER_OTLP_INSECURE", "false") == "true",

		DatabaseEnabled: os.Getenv("DATABASE_URL") != "" || os.Getenv("POSTGRES_HOST") != "",
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		StatusTTL:       getEnvDuration("CRAWL_STATUS_TTL", 24*time.Hour),
		KafkaBroker:     os.Getenv("KAFKA_BROKER"),
		KafkaTopic:      getEnvWithDefault("KAFKA_TOPIC", "outline.crawl.pages"),
		Neo4jURI:        os.Getenv("NEO4J_URI"),
		Neo4jUser:       getEnvWithDefault("NEO4J_USER", "neo4j"),
		Neo4jPassword:   os.Getenv("NEO4J_PASSWORD"),

		Crawler: crawlerConfig,
	}
}

func main() {
	// Load .env files - .env.local takes priority for development
	_ = godotenv.Load(".env.local", ".env")

	config := loadConfig()
	setupLogging(config)

	if config.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.SentryDSN,
			Environment: config.Env,
			TracesSampleRate: func() float64 {
				if config.Env == "production" {
					return 0.1
				}
				return 1.0
			}(),
			AttachStacktrace: true,
			Debug:            config.Env == "development",
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise Sentry")
		} else {
			log.Info().Str("environment", config.Env).Msg("Sentry initialised successfully")
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Warn().Msg("Sentry DSN not configured, error tracking disabled")
	}

	var obsProviders *observability.Providers
	if config.ObservabilityEnabled {
		var err error
		obsProviders, err = observability.Init(context.Background(), observability.Config{
			Enabled:        true,
			ServiceName:    "outline-crawler",
			Environment:    config.Env,
			OTLPEndpoint:   strings.TrimSpace(config.OTLPEndpoint),
			OTLPHeaders:    parseOTLPHeaders(config.OTLPHeaders),
			OTLPInsecure:   config.OTLPInsecure,
			MetricsAddress: config.MetricsAddr,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise observability providers")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := obsProviders.Shutdown(ctx); err != nil {
					log.Warn().Err(err).Msg("Failed to flush telemetry providers cleanly")
				}
			}()

			if obsProviders.MetricsHandler != nil && config.MetricsAddr != "" {
				stopMetrics := startMetricsServer(config.MetricsAddr, obsProviders.MetricsHandler)
				defer stopMetrics()
			}
		}
	}

	statuses, closeStatuses := setupStatusStore(config)
	defer closeStatuses()

	var (
		pgDB      *db.DB
		pageStore *db.PageStore
		sinks     sink.Multi
	)

	if config.DatabaseEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		var err error
		pgDB, err = db.InitFromEnvWithRetry(ctx)
		cancel()
		if err != nil {
			sentry.CaptureException(err)
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL database")
		}
		defer pgDB.Close()

		pageStore = db.NewPageStore(pgDB)
		sinks = append(sinks, pageStore)
		log.Info().Msg("Connected to PostgreSQL database")
	}

	if config.KafkaBroker != "" {
		sinks = append(sinks, sink.NewKafkaSink(config.KafkaBroker, config.KafkaTopic))
		log.Info().Str("broker", config.KafkaBroker).Str("topic", config.KafkaTopic).Msg("Publishing page records to Kafka")
	}

	if config.Neo4jURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		graph, err := sink.NewGraphSink(ctx, config.Neo4jURI, config.Neo4jUser, config.Neo4jPassword)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Neo4j unavailable, link graph disabled")
		} else {
			sinks = append(sinks, graph)
			log.Info().Str("uri", config.Neo4jURI).Msg("Writing link graph to Neo4j")
		}
	}

	managerOpts := []jobs.ManagerOption{}
	if len(sinks) > 0 {
		managerOpts = append(managerOpts, jobs.WithSink(sinks))
	}
	if pageStore != nil {
		managerOpts = append(managerOpts, jobs.WithJobRecorder(pageStore))
	}
	if detector, err := techdetect.New(); err != nil {
		log.Warn().Err(err).Msg("Technology detection disabled")
	} else {
		managerOpts = append(managerOpts, jobs.WithDetector(detector))
	}

	manager := jobs.NewCrawlManager(crawler.New(config.Crawler), statuses, managerOpts...)

	// Typed nils would defeat the handler's nil checks.
	var (
		pages  api.PageReader
		health api.DBClient
	)
	if pageStore != nil {
		pages = pageStore
		health = pgDB
	}

	apiHandler := api.NewHandler(manager, pages, health)
	mux := http.NewServeMux()
	apiHandler.SetupRoutes(mux)

	limiter := newRateLimiter()

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.getLimiter(getClientIP(r)).Allow() {
			api.TooManyRequests(w, r, "Too many requests", time.Second)
			return
		}
		mux.ServeHTTP(w, r)
	})

	// Add middleware in reverse order (outermost last)
	handler = api.LoggingMiddleware(handler)
	handler = api.RequestIDMiddleware(handler)
	handler = api.SecurityHeadersMiddleware(handler)
	handler = api.CORSMiddleware(handler)
	handler = observability.WrapHandler(handler, obsProviders)

	server := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		<-stop
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			sentry.CaptureException(err)
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		if err := manager.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Background crawls did not stop cleanly")
		}

		close(done)
	}()

	log.Info().
		Str("port", config.Port).
		Int("max_pages", config.Crawler.MaxPages).
		Dur("max_duration", config.Crawler.MaxDuration).
		Int("probe_concurrency", config.Crawler.ProbeConcurrency).
		Int("sinks", len(sinks)).
		Msg("Starting server")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("Server error")
	}

	<-done
	log.Info().Msg("Server stopped")
}

func setupStatusStore(config *Config) (store.StatusStore, func()) {
	if config.RedisAddr == "" {
		log.Info().Msg("REDIS_ADDR not set, keeping crawl status in memory")
		return store.NewMemoryStatusStore(), func() {}
	}

	redisStore := store.NewRedisStatusStore(config.RedisAddr, "outline-crawler:status:", config.StatusTTL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisStore.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", config.RedisAddr).Msg("Redis unavailable, keeping crawl status in memory")
		_ = redisStore.Close()
		return store.NewMemoryStatusStore(), func() {}
	}

	log.Info().Str("addr", config.RedisAddr).Msg("Using Redis crawl status store")
	return redisStore, func() { _ = redisStore.Close() }
}

func startMetricsServer(addr string, handler http.Handler) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.CaptureException(err)
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Msg("Graceful shutdown of metrics server failed")
		}
	}
}

// getEnvWithDefault retrieves an environment variable or returns a default value if not set
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns a default value if not set or invalid
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Int("default", defaultValue).
			Msg("Invalid integer in environment variable, using default")
		return defaultValue
	}
	return result
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid number in environment variable, using default")
		return defaultValue
	}
	return result
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	result, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Dur("default", defaultValue).Msg("Invalid duration in environment variable, using default")
		return defaultValue
	}
	return result
}

func parseOTLPHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(strings.TrimSpace(raw), ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}

// setupLogging configures the logging system
func setupLogging(config *Config) {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Str("service", "outline-crawler").
			Logger()
	}
}

// RateLimiter hands out a token bucket per client IP
type RateLimiter struct {
	limits   map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	capacity int
}

func newRateLimiter() *RateLimiter {
	return &RateLimiter{
		limits:   make(map[string]*rate.Limiter),
		rate:     rate.Limit(5), // crawls are expensive; status polling fits comfortably
		capacity: 10,
	}
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limits[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.capacity)
		rl.limits[ip] = limiter
	}
	return limiter
}

// getClientIP extracts the client's IP address, preferring the first X-Forwarded-For hop
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
