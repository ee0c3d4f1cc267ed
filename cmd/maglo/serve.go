package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maglo/invoicing/internal/api"
	"github.com/maglo/invoicing/internal/api/handler"
	"github.com/maglo/invoicing/internal/core/ports"
	"github.com/maglo/invoicing/internal/core/service"
	"github.com/maglo/invoicing/internal/infrastructure/backend"
	"github.com/maglo/invoicing/internal/infrastructure/broker"
	"github.com/maglo/invoicing/internal/infrastructure/config"
	"github.com/maglo/invoicing/internal/infrastructure/db/memory"
	redisdb "github.com/maglo/invoicing/internal/infrastructure/db/redis"
	"github.com/maglo/invoicing/internal/infrastructure/mailer"
	"github.com/maglo/invoicing/internal/infrastructure/queue"
	"github.com/maglo/invoicing/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the invoice event dispatcher",
	Example: `  # Mongo + Redis, as configured in .env
  maglo serve

  # Single-node setup on SQLite with in-process sessions
  DOCUMENT_BACKEND=sqlite maglo serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	log := initLogger(cfg)

	app, err := newApplication(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer app.close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	// Workers outlive the signal so events emitted by in-flight requests
	// during shutdown are still delivered.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	app.dispatcher.Start(dispatchCtx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("backend", cfg.Backend.Type).Msg("starting maglo server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	stopDispatch()
	app.dispatcher.Wait()
	log.Info().Msg("server stopped gracefully")
	return err
}

// application is the state owned by the serve command: every long-lived
// component and the router built on top of them.
type application struct {
	log        zerolog.Logger
	docs       *backend.Result
	stores     *sessionBackends
	publisher  ports.EventPublisher
	dispatcher *queue.Dispatcher
	workspace  *service.Workspace
	router     *echo.Echo
}

// newApplication opens the configured backends and wires them into the HTTP
// router. reg receives the HTTP metrics; nil means the default registry.
// The dispatcher is built but not started.
func newApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger, reg *prometheus.Registry) (*application, error) {
	docs, err := backend.New(ctx, backendConfig(cfg), logger.Component("backend"))
	if err != nil {
		return nil, err
	}

	stores, err := sessionStores(ctx, cfg, log)
	if err != nil {
		closeWith(log, "document store", docs.Cleanup)
		return nil, err
	}

	checks := map[string]handler.Check{"documents": docs.Ping}
	if stores.ping != nil {
		checks["redis"] = stores.ping
	}

	publisher := eventPublisher(cfg)
	dispatcher := queue.NewDispatcher(cfg.EventWorkers, publisher, logger.Component("dispatcher"))

	auth := service.NewAuthService(docs.Docs, stores.sessions, cfg.Session.Secret, cfg.Session.TTL, logger.Component("auth"))
	workspace := service.NewWorkspace(auth, docs.Docs, service.StoreOptions{
		Events: dispatcher,
		Logger: logger.Component("invoice_store"),
	}, service.WithIdleTimeout(cfg.Session.TTL))
	invoices := service.NewInvoiceService(stores.idem, invoiceMailer(cfg), logger.Component("invoices"))

	router := api.NewRouter(api.Dependencies{
		Workspace: workspace,
		Invoices:  invoices,
		Cookie:    handler.CookieConfig{Name: cfg.SessionCookieName(), Secure: cfg.Session.CookieSecure},
		Checks:    checks,
		Logger:    logger.Component("http"),
		Registry:  reg,
	})

	return &application{
		log:        log,
		docs:       docs,
		stores:     stores,
		publisher:  publisher,
		dispatcher: dispatcher,
		workspace:  workspace,
		router:     router,
	}, nil
}

// close releases the backends in reverse order of opening.
func (a *application) close() {
	if err := a.publisher.Close(); err != nil {
		a.log.Error().Err(err).Msg("failed to close event publisher")
	}
	a.stores.close()
	closeWith(a.log, "document store", a.docs.Cleanup)
}

func initLogger(cfg *config.Config) zerolog.Logger {
	return logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "maglo",
	})
}

func backendConfig(cfg *config.Config) backend.Config {
	return backend.Config{
		Type:          backend.Type(cfg.Backend.Type),
		MongoURI:      cfg.Mongo.URI,
		MongoDatabase: cfg.Mongo.Database,
		SQLitePath:    cfg.Backend.SQLitePath,
	}
}

type sessionBackends struct {
	sessions ports.SessionRepository
	idem     ports.IdempotencyStore
	ping     handler.Check
	close    func()
}

// sessionStores connects to Redis when configured and falls back to
// in-process stores otherwise.
func sessionStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*sessionBackends, error) {
	if cfg.Redis.Addr == "" {
		log.Warn().Msg("REDIS_ADDR not set, sessions are kept in process memory")
		return &sessionBackends{
			sessions: memory.NewSessionRepository(),
			idem:     memory.NewIdempotencyStore(),
			close:    func() {},
		}, nil
	}

	client, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")

	return &sessionBackends{
		sessions: redisdb.NewSessionRepository(client, cfg.ProjectID),
		idem:     redisdb.NewIdempotencyStore(client, cfg.ProjectID),
		ping:     func(ctx context.Context) error { return client.Ping(ctx).Err() },
		close: func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close redis client")
			}
		},
	}, nil
}

func eventPublisher(cfg *config.Config) ports.EventPublisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return broker.NewLogPublisher(logger.Component("events"))
	}
	return broker.NewKafkaPublisher(logger.Get(), cfg.Kafka.Brokers, cfg.Kafka.Topic)
}

func invoiceMailer(cfg *config.Config) ports.Mailer {
	if cfg.SMTP.Host == "" {
		return mailer.NewLogMailer(logger.Component("mailer"))
	}
	return mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	})
}

func closeWith(log zerolog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("resource", name).Msg("failed to close")
	}
}
