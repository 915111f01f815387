package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	app "github.com/R3E-Network/microblog/internal/app"
	"github.com/R3E-Network/microblog/internal/app/httpapi"
	"github.com/R3E-Network/microblog/internal/app/seed"
	"github.com/R3E-Network/microblog/internal/app/storage/cache"
	"github.com/R3E-Network/microblog/internal/app/storage/postgres"
	"github.com/R3E-Network/microblog/internal/config"
	"github.com/R3E-Network/microblog/internal/middleware"
	"github.com/R3E-Network/microblog/internal/platform/migrations"
	"github.com/R3E-Network/microblog/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	limiter    *middleware.RateLimiter
	db         *sql.DB
	redis      *redis.Client

	mu       sync.Mutex
	listener net.Listener
	errCh    chan error
	cancel   context.CancelFunc
}

// NewApplication constructs a new application instance. A nil cfg is loaded
// from the environment.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	log := NewLogger(cfg)

	if err := os.MkdirAll(cfg.Media.UploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	a := &Application{cfg: cfg, log: log}

	stores, err := a.buildStores()
	if err != nil {
		a.closeBackends()
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	application, err := app.New(stores, app.Options{
		UploadsDir:      cfg.Media.UploadsDir,
		MaxFileSize:     cfg.Media.MaxFileSize,
		JanitorSchedule: cfg.Media.JanitorSchedule,
		OrphanTTL:       cfg.Media.OrphanTTL,
	}, log)
	if err != nil {
		a.closeBackends()
		return nil, fmt.Errorf("build application: %w", err)
	}
	a.app = application

	if cfg.Database.Seed {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := seed.Run(ctx, application.Users, log.Named("seed"))
		cancel()
		if err != nil {
			a.closeBackends()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	a.limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log.Named("ratelimit"))
	handler := httpapi.Wrap(httpapi.NewHandler(application), httpapi.ChainOptions{
		Logger:      log.Named("http"),
		CORSOrigins: cfg.CORS.AllowedOrigins,
		RateLimiter: a.limiter,
	})

	a.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return a, nil
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})
}

// Start binds the listener, starts lifecycle services and serves HTTP in the
// background. A bind failure is returned immediately.
func (a *Application) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return errors.New("application already started")
	}

	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.httpServer.Addr, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if err := a.app.Start(ctx); err != nil {
		cancel()
		ln.Close()
		return fmt.Errorf("start services: %w", err)
	}
	a.limiter.StartCleanup(runCtx, time.Minute, 10*time.Minute)

	a.listener = ln
	a.cancel = cancel
	a.errCh = make(chan error, 1)

	go func(errCh chan<- error) {
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}(a.errCh)

	a.log.WithField("addr", ln.Addr().String()).Info("HTTP server listening")
	return nil
}

// Run starts the server and blocks until ctx is cancelled or serving fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case err, ok := <-a.errCh:
		if ok {
			return err
		}
		return nil
	}
}

// Addr returns the bound address once started.
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Shutdown gracefully shuts down the HTTP server, stops services and closes
// backends.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop services: %w", err))
	}

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()

	a.closeBackends()
	return errors.Join(errs...)
}

func (a *Application) buildStores() (app.Stores, error) {
	if a.cfg.Database.DSN == "" {
		a.log.Warn("MICROBLOG_DATABASE_URL not set; using in-memory store")
		return app.Stores{}, nil
	}

	db, err := openDatabase(a.cfg.Database)
	if err != nil {
		return app.Stores{}, fmt.Errorf("open database: %w", err)
	}
	a.db = db

	if a.cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := migrations.Up(ctx, db); err != nil {
			return app.Stores{}, fmt.Errorf("apply migrations: %w", err)
		}
		a.log.Info("database migrations applied")
	}

	store := postgres.New(db)
	stores := app.Stores{
		Users:   store,
		Follows: store,
		Tweets:  store,
		Media:   store,
		Likes:   store,
		Health:  store,
	}

	if addr := a.cfg.Redis.Addr; addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.log.WithError(err).Warn("redis unreachable; api key cache will fall through to postgres")
		}
		stores.Users = cache.NewUserStore(store, a.redis, a.cfg.Redis.TTL, a.log.Named("apikey-cache"))
	}

	return stores, nil
}

func (a *Application) closeBackends() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis client")
		}
		a.redis = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
}

// OpenDatabase opens and pings the configured Postgres database.
func OpenDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	return openDatabase(cfg)
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
