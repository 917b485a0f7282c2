package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/matchi-app/matchi-api/internal/adapters/httpapi"
	memattendancerepo "github.com/matchi-app/matchi-api/internal/adapters/memory/attendancerepo"
	memeventrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/eventrepo"
	memidempotency "github.com/matchi-app/matchi-api/internal/adapters/memory/idempotency"
	meminfopostrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/infopostrepo"
	memuserrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/userrepo"
	postgres "github.com/matchi-app/matchi-api/internal/adapters/postgres"
	pgattendancerepo "github.com/matchi-app/matchi-api/internal/adapters/postgres/attendancerepo"
	pgeventrepo "github.com/matchi-app/matchi-api/internal/adapters/postgres/eventrepo"
	pgidempotency "github.com/matchi-app/matchi-api/internal/adapters/postgres/idempotency"
	pginfopostrepo "github.com/matchi-app/matchi-api/internal/adapters/postgres/infopostrepo"
	pguserrepo "github.com/matchi-app/matchi-api/internal/adapters/postgres/userrepo"
	redisadapter "github.com/matchi-app/matchi-api/internal/adapters/redis"
	redisidempotency "github.com/matchi-app/matchi-api/internal/adapters/redis/idempotency"
	"github.com/matchi-app/matchi-api/internal/adapters/sqlite"
	sqliteattendancerepo "github.com/matchi-app/matchi-api/internal/adapters/sqlite/attendancerepo"
	sqliteeventrepo "github.com/matchi-app/matchi-api/internal/adapters/sqlite/eventrepo"
	sqliteinfopostrepo "github.com/matchi-app/matchi-api/internal/adapters/sqlite/infopostrepo"
	sqliteuserrepo "github.com/matchi-app/matchi-api/internal/adapters/sqlite/userrepo"
	"github.com/matchi-app/matchi-api/internal/app/attendance"
	"github.com/matchi-app/matchi-api/internal/app/events"
	"github.com/matchi-app/matchi-api/internal/app/infoposts"
	"github.com/matchi-app/matchi-api/internal/app/users"
	"github.com/matchi-app/matchi-api/internal/job"
	"github.com/matchi-app/matchi-api/internal/platform/auth/jwtverifier"
	platformclock "github.com/matchi-app/matchi-api/internal/platform/clock"
	"github.com/matchi-app/matchi-api/internal/platform/config"
	"github.com/matchi-app/matchi-api/internal/platform/logging"
	"github.com/matchi-app/matchi-api/internal/platform/metrics"
	attendancerepoport "github.com/matchi-app/matchi-api/internal/ports/out/attendancerepo"
	eventrepoport "github.com/matchi-app/matchi-api/internal/ports/out/eventrepo"
	idempotencyport "github.com/matchi-app/matchi-api/internal/ports/out/idempotency"
	infopostrepoport "github.com/matchi-app/matchi-api/internal/ports/out/infopostrepo"
	userrepoport "github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(getenv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

type stores struct {
	users      userrepoport.Repository
	events     eventrepoport.Repository
	attendance attendancerepoport.Repository
	infoPosts  infopostrepoport.Repository
	idem       idempotencyport.Store

	pool      *pgxpool.Pool
	sqliteDB  *sql.DB
	readiness map[string]httpapi.ReadinessCheck
	closers   []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Auth: JWT in deployed environments, X-Debug-Subject shim locally.
	var authMW func(http.Handler) http.Handler
	authIssuer := "dev"
	switch cfg.Auth.Mode {
	case config.AuthModeDev:
		logger.Warn("Dev auth enabled; bearer tokens are not verified", zap.String("default_subject", cfg.Auth.DevSubject))
		authMW = httpapi.NewDevAuthMiddleware(cfg.Auth.DevSubject)
	default:
		authMW = httpapi.NewAuthMiddleware(jwtverifier.New(cfg.Auth.JWT))
		authIssuer = cfg.Auth.JWT.Issuer
	}

	m := metrics.NewWithRegistry(prometheus.DefaultRegisterer, logger)
	clk := platformclock.NewSystemClock()

	st, err := openStores(ctx, cfg, authIssuer, logger)
	if err != nil {
		return err
	}
	defer st.close()

	usersSvc := users.NewService(st.users, clk, logger.Named("users"))
	eventsSvc := events.NewService(st.events, st.users, st.attendance, clk, logger.Named("events"), m)
	eventsSvc.CompleteAfter = cfg.Events.CompleteAfter
	attendanceSvc := attendance.NewService(st.attendance, st.events, st.users, clk, logger.Named("attendance"), m)
	infoPostsSvc := infoposts.NewService(st.infoPosts, st.users, clk, logger.Named("infoposts"), m)

	scheduler := job.NewScheduler(logger.Named("cron"))
	if err := scheduler.Add("complete-events", cfg.Events.SweepSchedule, job.NewCompletionJob(eventsSvc, time.Minute, logger.Named("cron"))); err != nil {
		return err
	}
	if stats := poolStatsFunc(st); stats != nil {
		if err := scheduler.Add("db-pool-stats", "@every 15s", job.NewPoolStatsJob(stats, m)); err != nil {
			return err
		}
	}
	if purger, ok := st.idem.(idempotencyport.Purger); ok {
		if err := scheduler.Add("purge-idempotency", "@hourly", job.NewIdempotencyPurgeJob(purger, clk, logger.Named("cron"))); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	api := httpapi.NewServer(usersSvc, eventsSvc, attendanceSvc, infoPostsSvc, st.idem, logger.Named("http"), m)
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{
		AuthMiddleware: authMW,
		Logger:         logger.Named("http"),
		Metrics:        m,
		Readiness:      st.readiness,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("idempotency", cfg.Idempotency.Backend),
			zap.String("auth", cfg.Auth.Mode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg *config.Config, authIssuer string, logger *zap.Logger) (*stores, error) {
	st := &stores{readiness: map[string]httpapi.ReadinessCheck{}}

	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL, postgres.PoolOptions{Logger: logger.Named("postgres")})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		st.closers = append(st.closers, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			st.close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		st.pool = pool
		st.users = pguserrepo.NewRepo(pool, authIssuer)
		st.events = pgeventrepo.NewRepo(pool)
		st.attendance = pgattendancerepo.NewRepo(pool).WithLockTimeout(cfg.Storage.LockTimeout)
		st.infoPosts = pginfopostrepo.NewRepo(pool)
		st.readiness["postgres"] = pool.Ping
	case config.StorageSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath, sqlite.Options{BusyTimeout: cfg.Storage.LockTimeout})
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = db.Close() })
		if err := sqlite.Migrate(ctx, db); err != nil {
			st.close()
			return nil, fmt.Errorf("sqlite migrate: %w", err)
		}
		st.sqliteDB = db
		st.users = sqliteuserrepo.NewRepo(db)
		st.events = sqliteeventrepo.NewRepo(db)
		st.attendance = sqliteattendancerepo.NewRepo(db)
		st.infoPosts = sqliteinfopostrepo.NewRepo(db)
		st.readiness["sqlite"] = db.PingContext
	default:
		evs := memeventrepo.NewRepo()
		st.users = memuserrepo.NewRepo()
		st.events = evs
		st.attendance = memattendancerepo.NewRepo(evs)
		st.infoPosts = meminfopostrepo.NewRepo()
	}

	switch cfg.Idempotency.Backend {
	case config.StoragePostgres:
		if st.pool == nil {
			st.close()
			return nil, errors.New("IDEMPOTENCY_BACKEND=postgres requires STORAGE_BACKEND=postgres")
		}
		st.idem = pgidempotency.NewStore(st.pool, authIssuer).WithTTL(cfg.Idempotency.TTL)
	case config.StorageRedis:
		client, err := redisadapter.NewClient(ctx, redisadapter.Options{
			URL:      cfg.Redis.URL,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger.Named("redis"))
		if err != nil {
			st.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		st.closers = append(st.closers, func() { _ = client.Close() })
		st.idem = redisidempotency.NewStore(client, cfg.Idempotency.TTL)
		st.readiness["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	default:
		st.idem = memidempotency.NewStoreWithTTL(cfg.Idempotency.TTL, platformclock.NewSystemClock())
	}
	return st, nil
}

func poolStatsFunc(st *stores) job.PoolStatsFunc {
	switch {
	case st.pool != nil:
		return func() metrics.PoolStats {
			s := st.pool.Stat()
			return metrics.PoolStats{Open: s.TotalConns(), InUse: s.AcquiredConns(), Idle: s.IdleConns(), Max: s.MaxConns()}
		}
	case st.sqliteDB != nil:
		return func() metrics.PoolStats {
			s := st.sqliteDB.Stats()
			return metrics.PoolStats{
				Open:  int32(s.OpenConnections),
				InUse: int32(s.InUse),
				Idle:  int32(s.Idle),
				Max:   int32(s.MaxOpenConnections),
			}
		}
	default:
		return nil
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
