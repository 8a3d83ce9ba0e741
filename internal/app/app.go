package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-session/internal/api"
	"github.com/gokatarajesh/quiz-session/internal/auth"
	"github.com/gokatarajesh/quiz-session/internal/authoring"
	"github.com/gokatarajesh/quiz-session/internal/config"
	"github.com/gokatarajesh/quiz-session/internal/grading"
	"github.com/gokatarajesh/quiz-session/internal/logging"
	"github.com/gokatarajesh/quiz-session/internal/metrics"
	"github.com/gokatarajesh/quiz-session/internal/server"
	"github.com/gokatarajesh/quiz-session/internal/session"
	"github.com/gokatarajesh/quiz-session/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// Application aggregates the client's shared infrastructure: storage, the
// authenticated API client and the optional status server.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	store    storage.Store
	redis    *redis.Client
	registry *prometheus.Registry
	metrics  *metrics.Collectors

	client  *api.Client
	authSvc *auth.Service
}

// Options overrides pieces of the bootstrap, mostly for tests.
type Options struct {
	Logger         *zerolog.Logger
	Store          storage.Store
	BaseTransport  http.RoundTripper
	OnUnauthorized func()
}

// New bootstraps logger, storage, metrics and the API client.
func New(ctx context.Context, cfg *config.App, opts Options) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger.Debug().Str("api", cfg.API.BaseURL).Str("storage", cfg.Storage.Backend).Msg("starting application bootstrap")

	a := &Application{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector())
	a.metrics = metrics.New(a.registry)

	store := opts.Store
	if store == nil {
		var err error
		store, err = a.openStore(ctx)
		if err != nil {
			return nil, err
		}
	}
	a.store = store

	base := opts.BaseTransport
	if base == nil {
		base = http.DefaultTransport
	}

	refresher := auth.NewAPIRefresher(cfg.API.BaseURL, base, cfg.API.Timeout)
	tokens := auth.NewTokenSource(store, refresher, auth.TokenSourceOptions{
		Threshold: cfg.Auth.RefreshThreshold,
		Metrics:   a.metrics,
	}, logger)
	transport := auth.NewTransport(tokens, store, base, logger)

	a.client = api.NewClient(cfg.API.BaseURL, &http.Client{
		Timeout:   cfg.API.Timeout,
		Transport: transport,
	}, api.WithMetrics(a.metrics), api.WithLogger(logger))

	a.authSvc = auth.NewService(a.client, store, &auth.Session{}, logger)
	transport.OnUnauthorized = func() {
		a.authSvc.HandleUnauthorized()
		if opts.OnUnauthorized != nil {
			opts.OnUnauthorized()
		}
	}

	return a, nil
}

func (a *Application) openStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.Storage.Backend {
	case config.StorageRedis:
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			PoolSize: a.cfg.Redis.PoolSize,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return storage.NewRedisStore(a.redis, a.cfg.Storage.Profile), nil
	default:
		path := a.cfg.Storage.Path
		if path == "" {
			var err error
			if path, err = storage.DefaultPath(a.cfg.Storage.Profile); err != nil {
				return nil, err
			}
		}
		a.logger.Debug().Str("path", path).Msg("using file storage")
		return storage.NewFileStore(path), nil
	}
}

func (a *Application) Config() *config.App { return a.cfg }

func (a *Application) Logger() zerolog.Logger { return a.logger }

func (a *Application) Store() storage.Store { return a.store }

func (a *Application) Client() *api.Client { return a.client }

func (a *Application) Auth() *auth.Service { return a.authSvc }

// Authoring returns the quiz management service.
func (a *Application) Authoring() *authoring.Service {
	return authoring.NewService(a.client, a.logger)
}

// Grading returns the results and review service.
func (a *Application) Grading() *grading.Service {
	return grading.NewService(a.client, a.logger)
}

// NewSession builds a controller for one quiz using the configured intervals.
func (a *Application) NewSession(quizID string, notifier session.Notifier) *session.Controller {
	return session.New(quizID, a.client, a.store, session.Options{
		TickInterval:    a.cfg.Session.TickInterval,
		PollInterval:    a.cfg.Session.PollInterval,
		RecheckCooldown: a.cfg.Session.RecheckCooldown,
		WriteTimeout:    a.cfg.API.Timeout,
		Metrics:         a.metrics,
		Notifier:        notifier,
	}, a.logger)
}

// RequireSignIn loads the signed-in instructor or fails with
// auth.ErrSignInRequired.
func (a *Application) RequireSignIn(ctx context.Context) (api.User, error) {
	return a.authSvc.LoadMe(ctx)
}

func (a *Application) pingers() map[string]server.Pinger {
	out := map[string]server.Pinger{"api": a.client}
	if rs, ok := a.store.(*storage.RedisStore); ok {
		out["redis"] = rs
	}
	return out
}

// RunSession mounts the controller, then runs its loops, the interactive
// loop and the status server until interactive returns, a signal arrives or
// ctx is cancelled. Pending answer writes are flushed before returning.
func (a *Application) RunSession(ctx context.Context, ctrl *session.Controller, interactive func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx = logging.IntoContext(ctx, a.logger)

	if err := ctrl.Mount(ctx); err != nil {
		return fmt.Errorf("mount session: %w", err)
	}

	errCh := make(chan error, 3)

	var status *http.Server
	if a.cfg.Status.Addr != "" {
		status = server.NewHTTPServer(server.Options{
			Addr:     a.cfg.Status.Addr,
			Gatherer: a.registry,
			Views:    func() (session.View, bool) { return ctrl.View(), true },
			Pingers:  a.pingers(),
			Timeout:  a.cfg.API.Timeout,
		}, a.logger)
		go func() {
			a.logger.Info().Str("addr", status.Addr).Msg("status server listening")
			if err := status.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("status server error: %w", err)
			}
		}()
	}

	go func() {
		errCh <- ctrl.Run(ctx)
	}()

	interactiveDone := make(chan error, 1)
	go func() {
		interactiveDone <- interactive(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case runErr = <-interactiveDone:
	case err := <-errCh:
		if err != nil {
			runErr = err
		}
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}
	cancel()

	if status != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := status.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("status server shutdown error")
		}
		done()
	}

	ctrl.Flush()
	return runErr
}

// Close releases the Redis connection, if any.
func (a *Application) Close() error {
	if a.redis == nil {
		return nil
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
		return err
	}
	return nil
}
