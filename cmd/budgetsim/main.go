package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"budgetsim/internal/amqp"
	"budgetsim/internal/broadcast"
	"budgetsim/internal/cache"
	"budgetsim/internal/config"
	apphttp "budgetsim/internal/http"
	"budgetsim/internal/ledger"
	"budgetsim/internal/log"
	"budgetsim/internal/metrics"
	"budgetsim/internal/middleware/ratelimit"
	"budgetsim/internal/middleware/security"
	"budgetsim/internal/readmodel"
	"budgetsim/internal/storage"
)

const cacheCleanupInterval = time.Minute

func main() {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	m := metrics.New()

	reader := readmodel.New(repo, readmodel.Config{Size: cfg.CacheSize, TTL: cfg.CacheTTL}, logger)
	for name := range reader.Stats() {
		m.RegisterCache(name, func() cache.Stats { return reader.Stats()[name] })
	}

	nodeID := uuid.NewString()
	hubOpts := []broadcast.HubOption{
		broadcast.WithHubID(nodeID),
		broadcast.WithInvalidator(reader.Invalidate),
		broadcast.WithObserver(m),
		broadcast.WithHubLogger(logger),
	}

	var relay *amqp.Client
	if cfg.AMQPEnabled() {
		relay, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, "",
			amqp.WithOrigin(nodeID), amqp.WithLogger(logger))
		if err != nil {
			return err
		}
		defer relay.Close()
		hubOpts = append(hubOpts, broadcast.WithPublisher(relay))
		logger.Info("AMQP relay connected", "exchange", cfg.AMQPExchange, "origin", nodeID)
	} else {
		logger.Info("AMQP not configured, broadcasting to local subscribers only")
	}

	hub := broadcast.NewHub(repo, broadcast.HubConfig{Buffer: cfg.SubscriberBuffer}, hubOpts...)
	defer hub.Close()

	svc := ledger.NewService(repo,
		ledger.WithPolicy(ledger.Policy{MaxAmount: cfg.MaxTransactionAmount, AllowOverdraft: cfg.AllowOverdraft}),
		ledger.WithNotifier(hub),
		ledger.WithRecorder(m),
		ledger.WithLogger(logger),
	)

	caches := cache.NewManager(logger)
	for _, c := range reader.Cleaners() {
		caches.Register(c)
	}

	headers := security.DefaultHeadersConfig()
	headers.AllowedOrigins = cfg.CORSAllowedOrigins
	limits := ratelimit.DefaultConfig()
	limits.RequestsPerMinute = cfg.RateLimitPerMinute

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:           cfg.Addr(),
		Ledger:         svc,
		Reader:         reader,
		Stream:         hub,
		Ready:          repo,
		Metrics:        m.Handler(),
		Observer:       m,
		RateLimit:      limits,
		Headers:        headers,
		TrustedProxies: cfg.TrustedProxies,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	// Cleartext HTTP/2 lets many SSE streams share one connection.
	srv.Handler = h2c.NewHandler(srv.Handler, &http2.Server{})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "addr", srv.Addr, log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return srv.Limiter().Run(gctx) })
	g.Go(func() error { return caches.Run(gctx, cacheCleanupInterval) })
	if relay != nil {
		g.Go(func() error {
			err := relay.Relay(gctx, hub.Receive)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("Server stopped")
	return err
}
