// Package runtime turns a loaded configuration into a running person service:
// it opens the store, composes the application and owns the HTTP server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jmoiron/sqlx"

	app "github.com/R3E-Network/person_service/internal/app"
	"github.com/R3E-Network/person_service/internal/app/httpapi"
	"github.com/R3E-Network/person_service/internal/app/storage"
	"github.com/R3E-Network/person_service/internal/app/storage/memory"
	"github.com/R3E-Network/person_service/internal/app/storage/postgres"
	"github.com/R3E-Network/person_service/internal/app/system"
	"github.com/R3E-Network/person_service/internal/config"
	"github.com/R3E-Network/person_service/internal/middleware"
	"github.com/R3E-Network/person_service/internal/platform/migrations"
	"github.com/R3E-Network/person_service/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sqlx.DB
}

// NewApplication opens the configured store, applies the schema when asked
// and builds the HTTP server. seed inserts the sample records on start.
func NewApplication(ctx context.Context, cfg config.Config, log *logger.Logger, seed bool) (*Application, error) {
	if log == nil {
		log = logger.New(cfg.Logging.Logger())
	}

	store, db, err := OpenStore(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	var opts []app.Option
	if seed {
		opts = append(opts, app.WithSeed())
	}
	application, err := app.New(app.Stores{Persons: store}, log.Named("app"), opts...)
	if err != nil {
		closeDB(db, log)
		return nil, err
	}

	handlerOpts := httpapi.Options{Log: log.Named("http"), CORSOrigins: cfg.HTTP.CORSOrigins}
	if rl := cfg.HTTP.RateLimit; rl.Enabled {
		limiter := middleware.NewRateLimiter(rl.RequestsPerSecond, rl.Burst, rl.IdleTTL, log.Named("ratelimit"))
		handlerOpts.RateLimiter = limiter
		cleanup := system.Func{
			ServiceName: "ratelimit-cleanup",
			OnStart:     func(context.Context) error { return limiter.StartCleanup(rl.CleanupSchedule) },
			OnStop: func(context.Context) error {
				limiter.StopCleanup()
				return nil
			},
		}
		if err := application.Attach(cleanup); err != nil {
			closeDB(db, log)
			return nil, err
		}
	}

	return &Application{
		cfg: cfg,
		log: log,
		app: application,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      httpapi.NewHandler(application, handlerOpts),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		db: db,
	}, nil
}

// App exposes the composed application.
func (a *Application) App() *app.Application {
	return a.app
}

// Handler exposes the HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run listens on the configured address and serves until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.httpServer.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve starts the lifecycle services, then serves HTTP on ln until ctx is
// cancelled or the server fails.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.app.Start(ctx); err != nil {
		ln.Close()
		return fmt.Errorf("start application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", ln.Addr().String()).Info("HTTP server listening")
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully shuts down the HTTP server, the lifecycle services and
// the database connection.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	closeDB(a.db, a.log)
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

// OpenStore builds the person store for cfg. The returned *sqlx.DB is nil for
// the memory driver. When cfg.AutoMigrate is set the schema is applied.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (storage.PersonStore, *sqlx.DB, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		log.Warn("using in-memory person store; data is lost on exit")
		return memory.New(), nil, nil
	case config.DriverPostgres, config.DriverPGX:
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := postgres.Open(ctx, cfg.Driver, cfg.DSN, postgres.PoolOptions{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := migrations.Apply(ctx, db); err != nil {
			closeDB(db, log)
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
		log.Info("database schema applied")
	}
	return postgres.New(db), db, nil
}

func closeDB(db *sqlx.DB, log *logger.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.WithError(err).Warn("error closing database connection")
	}
}
