// Package syncd implements app.Runner for the media-sync daemon.
package syncd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/otakulab/media-sync/pkg/app/api"
	apphttp "github.com/otakulab/media-sync/pkg/app/http"
	"github.com/otakulab/media-sync/pkg/auth"
	"github.com/otakulab/media-sync/pkg/cache"
	"github.com/otakulab/media-sync/pkg/config"
	"github.com/otakulab/media-sync/pkg/consistency"
	"github.com/otakulab/media-sync/pkg/dbutil"
	"github.com/otakulab/media-sync/pkg/mediadb"
	"github.com/otakulab/media-sync/pkg/reporter"
	"github.com/otakulab/media-sync/pkg/scheduler"
	"github.com/otakulab/media-sync/pkg/txmanager"
)

const defaultRequestTimeout = 60

// Server holds cfg to init the sync daemon.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new sync daemon.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("daemon config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting media-sync daemon",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	db, err := dbutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	store := mediadb.NewStore(db)
	defer func() { _ = store.Close() }()

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	logger.Info("Connected to database", zap.String("path", cfg.Database.Path))

	metaCache, closeCache, err := s.openCache(ctx, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	tm := txmanager.NewManager(cfg.Consistency.TransactionTimeout, logger)
	validator := consistency.NewValidator(store, metaCache, logger)
	engine := consistency.NewEngine(store, metaCache, tm, logger)
	rep := reporter.NewStore(store, logger)

	sched := scheduler.NewScheduler(cfg.Consistency.CheckInterval, logger)
	sched.AddCallback(func(result *scheduler.ExecutionResult) {
		logger.Debug("Job result dispatched",
			zap.String("job_id", result.JobID),
			zap.String("status", string(result.Status)))
	})

	for _, jc := range cfg.Consistency.Jobs {
		strategy, err := consistency.ParseStrategy(jc.Strategy)
		if err != nil {
			return fmt.Errorf("job %s: %w", jc.ID, err)
		}
		job := scheduler.NewJob(jc.ID, strategy, jc.Interval, jc.Enabled, validator, engine, rep, logger)
		if err := sched.Register(job); err != nil {
			return fmt.Errorf("register job: %w", err)
		}
	}

	sched.Start(ctx)
	defer sched.Stop()

	router := s.setupRouter(sched, store, logger)

	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server, cfg.Shutdown.Timeout)

	// Stop background work before deferred closes kick in.
	sched.Stop()

	return err
}

// openCache builds the configured cache backend and returns it with a
// close function for the caller to defer
func (s *Server) openCache(ctx context.Context, logger *zap.Logger) (cache.Cache, func(), error) {
	switch s.cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     s.cfg.Cache.Redis.Addr,
			Password: s.cfg.Cache.Redis.Password,
			DB:       s.cfg.Cache.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("Connected to Redis cache", zap.String("addr", s.cfg.Cache.Redis.Addr))
		return cache.NewRedis(client, s.cfg.Cache.TTL), func() { _ = client.Close() }, nil
	default:
		logger.Info("Using in-memory cache", zap.Duration("ttl", s.cfg.Cache.TTL))
		return cache.NewMemory(s.cfg.Cache.TTL), func() {}, nil
	}
}

func (s *Server) setupRouter(
	sched *scheduler.Scheduler,
	store *mediadb.Store,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Second * defaultRequestTimeout))

	var protect func(http.Handler) http.Handler
	if s.cfg.Auth.Enabled {
		validator := auth.NewJWTValidator(s.cfg.Auth.JWTSecret, s.cfg.Auth.Issuer)
		protect = validator.Middleware
		logger.Info("Admin API auth enabled", zap.String("issuer", s.cfg.Auth.Issuer))
	}

	api.NewHandler(sched, store, logger).RegisterRoutes(r, protect)
	return r
}
