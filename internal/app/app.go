package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/otlob/internal/domain/auth"
	"github.com/xenking/otlob/internal/domain/cart"
	"github.com/xenking/otlob/internal/domain/catalog"
	"github.com/xenking/otlob/internal/domain/order"
	"github.com/xenking/otlob/internal/handler"
	"github.com/xenking/otlob/internal/notify"
	"github.com/xenking/otlob/internal/repository"
	"github.com/xenking/otlob/pkg/health"
	"github.com/xenking/otlob/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	fee, err := cfg.Fee()
	if err != nil {
		return err
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	probes := health.New()
	probes.Register(health.Readiness, "postgres", health.Ping("postgres", pool), health.Options{Timeout: 5 * time.Second})
	probes.Register(health.Liveness, "goroutines", health.Goroutines(10000), health.Options{Timeout: time.Second})
	probes.Register(health.Liveness, "gc", health.GCPause(time.Second), health.Options{Timeout: time.Second})

	// Order events.
	var notifier order.Notifier = notify.Discard{}
	if cfg.Events.URL != "" {
		pub, err := notify.Dial(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			return errors.Wrap(err, "dial events broker")
		}
		defer func() {
			if err := pub.Close(); err != nil {
				lg.Warn("Close events publisher", zap.Error(err))
			}
		}()
		probes.Register(health.Readiness, "amqp", pub.Check, health.Options{})
		notifier = pub
		lg.Info("Publishing order events", zap.String("exchange", cfg.Events.Exchange))
	} else {
		lg.Info("Events URL not set, order events are discarded")
	}

	// Repositories.
	catalogRepo := repository.NewCatalogRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Domain services.
	authService := auth.NewService(userRepo, apikeyRepo, []byte(cfg.APIKeyPepper))
	catalogService := catalog.NewService(catalogRepo)
	orderService, err := order.NewService(orderRepo, notifier, order.Config{
		DeliveryFee:    fee,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	h := handler.New(
		handler.Config{ImageBaseURL: cfg.ImageBaseURL},
		authService,
		catalogService,
		orderService,
		cart.NewStore(),
	)

	// Router: health endpoints + API routes on one server. Middleware runs
	// inside the router so route patterns are known when logging.
	router := chi.NewRouter()
	router.Use(
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			KeyFunc: httpmiddleware.HeaderOrIP(handler.APIKeyHeader),
			Skip:    httpmiddleware.SkipPaths("/livez", "/readyz"),
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument("otlob-api", m),
		httpmiddleware.LogRequests(),
		httpmiddleware.Labeler(),
	)
	router.Method(http.MethodGet, "/livez", probes.LiveHandler())
	router.Method(http.MethodGet, "/readyz", probes.ReadyHandler())
	h.Register(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           router,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return probes.Run(gCtx, 10*time.Second)
	})
	g.Go(func() error {
		// Graceful shutdown: wait for cancellation, drain, then stop.
		<-gCtx.Done()
		probes.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		probes.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}
