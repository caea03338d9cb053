// Package bootstrap holds the startup sequence shared by the api,
// cron-worker and outbox-publisher binaries.
package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	"github.com/angelmondragon/tradeledger-backend/pkg/db"
	"github.com/angelmondragon/tradeledger-backend/pkg/instance"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
	"github.com/angelmondragon/tradeledger-backend/pkg/migrate"
	"github.com/angelmondragon/tradeledger-backend/pkg/redis"
)

const (
	ShutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Process is a started binary: config loaded, logger configured, database
// connected and, in dev, migrated.
type Process struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client

	closers []func() error
}

// Start runs the common boot steps. kind names the binary in logs and in
// cfg.Service.Kind.
func Start(ctx context.Context, kind string) (*Process, error) {
	logg := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		return nil, err
	}
	cfg.Service.Kind = kind
	p := &Process{
		Kind:   kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}

	p.DB, err = db.New(ctx, cfg.DB, p.Logger)
	if err != nil {
		return nil, p.fail(ctx, "failed to bootstrap database", err)
	}
	p.closers = append(p.closers, p.DB.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, p.Logger, p.DB); err != nil {
		return nil, p.fail(ctx, "failed to run dev migrations", err)
	}
	return p, nil
}

// Redis connects the shared redis client and closes it with the process.
func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, p.fail(ctx, "failed to bootstrap redis", err)
	}
	p.closers = append(p.closers, client.Close)
	return client, nil
}

// Context returns the base log context, cancelled on SIGINT or SIGTERM.
func (p *Process) Context() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return p.Logger.WithFields(ctx, map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Kind,
		"instance":    instance.GetID(),
	}), stop
}

// Close releases resources in reverse open order.
func (p *Process) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			p.Logger.Error(context.Background(), "error closing resource", err)
		}
	}
	p.closers = nil
}

// Exit logs err, releases resources and exits non-zero.
func (p *Process) Exit(ctx context.Context, msg string, err error) {
	p.Logger.Error(ctx, msg, err)
	p.Close()
	os.Exit(1)
}

func (p *Process) fail(ctx context.Context, msg string, err error) error {
	p.Logger.Error(ctx, msg, err)
	p.Close()
	return err
}

// Pinger is a dependency that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AdminHandler exposes /metrics and /health/ready for a worker binary.
func AdminHandler(pingers map[string]Pinger) http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, p := range pingers {
			if err := p.Ping(ctx); err != nil {
				http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// Serve runs h on ln until ctx is cancelled, then drains for up to
// ShutdownTimeout.
func Serve(ctx context.Context, ln net.Listener, h http.Handler, logg *logger.Logger) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: readHeaderTimeout}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "http shutdown failed", err)
			return err
		}
		return nil
	}
}

// ServeAdmin listens on the configured admin port in the background.
func (p *Process) ServeAdmin(ctx context.Context, pingers map[string]Pinger) {
	ln, err := net.Listen("tcp", ":"+p.Config.Service.AdminPort)
	if err != nil {
		p.Logger.Error(ctx, "admin listener unavailable, metrics not served", err)
		return
	}
	go func() {
		if err := Serve(ctx, ln, AdminHandler(pingers), p.Logger); err != nil {
			p.Logger.Error(ctx, "admin server stopped", err)
		}
	}()
}
