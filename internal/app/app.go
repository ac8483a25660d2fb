// Package app wires the order service together.
package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/order-service/internal/broker"
	"github.com/xenking/order-service/internal/catalog"
	"github.com/xenking/order-service/internal/domain/order"
	"github.com/xenking/order-service/internal/handler"
	"github.com/xenking/order-service/internal/storage/postgres"
	"github.com/xenking/order-service/pkg/health"
	"github.com/xenking/order-service/pkg/httpmiddleware"
)

// Telemetry provides the OpenTelemetry providers. *app.Telemetry from
// go-faster/sdk satisfies it.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// App is a fully wired order service.
type App struct {
	cfg     *Config
	lg      *zap.Logger
	pool    *pgxpool.Pool
	bus     broker.Bus
	health  *health.Health
	handler http.Handler
}

// New connects to the order store and broker and builds the HTTP handler.
// Background work started by New stops when ctx is cancelled; call Close to
// release connections.
func New(ctx context.Context, lg *zap.Logger, t Telemetry, cfg *Config) (_ *App, rerr error) {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("broker", cfg.Broker.Driver))

	a := &App{cfg: cfg, lg: lg, health: health.New()}
	defer func() {
		if rerr != nil {
			_ = a.Close()
		}
	}()

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	a.pool = pool

	if cfg.Migrate {
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
	}

	a.health.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	a.health.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	a.health.Start(ctx, 10*time.Second)

	// Product catalog.
	verifier, err := catalog.New(cfg.Catalog.URL,
		catalog.WithTracerProvider(t.TracerProvider()),
		catalog.WithMeterProvider(t.MeterProvider()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create catalog client")
	}

	// Broker. An unreachable broker is logged by Open and does not stop startup.
	bus, err := broker.Open(ctx, lg, cfg.Broker)
	if err != nil {
		return nil, errors.Wrap(err, "open broker")
	}
	a.bus = bus

	// Domain service.
	metrics, err := order.NewMetrics(t.MeterProvider())
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}
	orders := order.NewService(
		verifier,
		postgres.NewOrderRepository(pool),
		broker.NewOrderEvents(bus, cfg.Broker.PublishTimeout),
		order.WithTopic(cfg.Topic),
		order.WithTracerProvider(t.TracerProvider()),
		order.WithMetrics(metrics),
	)

	// Routes: health probes + order API on one mux.
	mux := http.NewServeMux()
	a.health.Register(mux)
	handler.New(handler.Config{SplitVerificationErrors: cfg.Catalog.SplitErrors}, orders).Register(mux)

	a.handler = otelhttp.NewHandler(
		httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RequestID(),
			httpmiddleware.LogRequests(),
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				RPS:   cfg.RateLimit.RPS,
				Burst: cfg.RateLimit.Burst,
			}),
		),
		"order-service",
		otelhttp.WithTracerProvider(t.TracerProvider()),
		otelhttp.WithMeterProvider(t.MeterProvider()),
	)

	a.health.SetReady(true)
	return a, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Serve serves HTTP on ln until ctx is cancelled, then marks the service not
// ready, waits for the readiness delay and drains in-flight requests.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Handler:           a.handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.lg.Info("Server listening", zap.Stringer("addr", ln.Addr()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.health.SetReady(false)
		a.lg.Info("Readiness set to false, draining", zap.Duration("delay", a.cfg.Graceful.ReadinessDelay))
		time.Sleep(a.cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Graceful.ShutdownTimeout)
		defer cancel()

		a.lg.Info("Shutting down server", zap.Duration("timeout", a.cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}

// Close stops health checks and releases the broker and database.
func (a *App) Close() error {
	a.health.Stop()

	var err error
	if a.bus != nil {
		if cerr := a.bus.Close(); cerr != nil {
			err = errors.Wrap(cerr, "close broker")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return err
}

// Run is the single entry point used by cmd/order-service.
func Run(ctx context.Context, lg *zap.Logger, t Telemetry, cfg *Config) error {
	a, err := New(ctx, lg, t, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			lg.Error("Close", zap.Error(err))
		}
	}()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	return a.Serve(ctx, ln)
}
