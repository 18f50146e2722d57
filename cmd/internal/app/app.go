// Package app wires the vault auth server: config, logging, storage, the
// auth services and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"vaultauth/cmd/identity"
	"vaultauth/cmd/internal/audit"
	authapi "vaultauth/cmd/internal/auth/api"
	"vaultauth/cmd/internal/auth/session"
	"vaultauth/cmd/internal/auth/twofactor"
	"vaultauth/cmd/internal/metrics"
	"vaultauth/cmd/internal/migrations"
	"vaultauth/cmd/security/kdf"
	"vaultauth/cmd/security/password"
	"vaultauth/cmd/security/token"
)

// App is the server runtime. It owns every pooled resource it opened.
type App struct {
	cfg Config
	log Logger

	handler http.Handler

	pool   *pgxpool.Pool
	redis  *redis.Client
	audits *audit.Dispatcher
}

// stores groups the persistence backends selected by configuration.
type stores struct {
	accounts identity.Store
	sessions session.Store
	audit    audit.Sink
	auditLog audit.Lister
}

// New constructs a fully wired App. Subsystem configs are read from the environment.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, nil)
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	hasher, err := token.HasherFromEnv(cfg.RequireTokenHMAC || cfg.Production())
	if err != nil {
		return nil, fmt.Errorf("token hasher: %w", err)
	}
	authCfg, err := authapi.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("auth api config: %w", err)
	}
	if err := ValidateSecurityConfig(cfg, hasher, authCfg); err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	tokens, err := session.NewPasetoV4PublicManager(sessCfg)
	if err != nil {
		return nil, fmt.Errorf("access tokens: %w", err)
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}
	tfCfg, err := twofactor.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("two-factor config: %w", err)
	}

	a := &App{cfg: cfg, log: log}

	st, err := a.openStores(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	var guard twofactor.ReplayGuard
	if cfg.RedisURL != "" {
		a.redis, err = NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		guard = twofactor.NewRedisGuard(a.redis, "v2fa")
		log.Info("twofactor.guard.redis")
	} else {
		log.Info("twofactor.guard.memory")
	}

	sessions := session.NewService(sessCfg, st.sessions, tokens, hasher)

	coord, err := twofactor.NewCoordinator(tfCfg, st.accounts, sessions, guard)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("two-factor: %w", err)
	}

	sink := st.audit
	if cfg.AuditStdout {
		sink = audit.MultiSink{sink, audit.NewJSONWriterSink(os.Stdout)}
	}
	a.audits = audit.NewDispatcher(audit.DispatcherConfig{
		BufferSize: cfg.AuditBufferSize,
		DropIfFull: cfg.AuditDropIfFull,
	}, sink, log, m, m)
	recorder := audit.NewRecorder(a.audits, log, audit.WithFailureCounter(m))

	auth, err := authapi.NewHandler(log, authCfg, authapi.Deps{
		Accounts:  st.accounts,
		Sessions:  sessions,
		TwoFactor: coord,
		Passwords: pwCfg,
		KDF:       kdf.NewLimiter(cfg.KDFMaxConcurrent),
		Audit:     recorder,
		AuditLog:  st.auditLog,
		Metrics:   m,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	router := newRouter(log, auth, m, a.ready)
	a.handler = WithRequestLogging(WithSecurityHeaders(WithCORS(router, cfg, log)), log, m)
	return a, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// openStores picks Postgres when a database URL is configured, in-memory stores otherwise.
func (a *App) openStores(ctx context.Context) (stores, error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Warn("db.disabled.inmemory_store", "env", a.cfg.Env)
		if a.cfg.Production() {
			return stores{}, errors.New("security policy: in-memory stores are not allowed in production")
		}
		events := audit.NewMemorySink()
		return stores{
			accounts: identity.NewMemoryStore(),
			sessions: session.NewMemoryStore(),
			audit:    events,
			auditLog: events,
		}, nil
	}

	if a.cfg.RunMigrations {
		if err := migrations.Up(ctx, a.cfg.DatabaseURL, a.cfg.DBSchema); err != nil {
			return stores{}, err
		}
		a.log.Info("db.migrations.applied", "schema", a.cfg.DBSchema)
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return stores{}, fmt.Errorf("db: %w", err)
	}
	a.pool = pool

	accounts, err := identity.NewPostgresStore(pool, identity.WithSchema(a.cfg.DBSchema))
	if err != nil {
		return stores{}, err
	}
	events := audit.NewPostgresSink(pool, a.cfg.DBSchema)

	a.log.Info("db.enabled.postgres_store", "schema", a.cfg.DBSchema)
	return stores{
		accounts: accounts,
		sessions: session.NewPostgresStore(pool, a.cfg.DBSchema),
		audit:    events,
		auditLog: events,
	}, nil
}

func (a *App) ready(ctx context.Context) error {
	if a.cfg.ReadinessRequireDB && a.pool == nil {
		return errors.New("db not configured")
	}
	if a.pool != nil {
		if err := PingDB(ctx, a.pool, 2*time.Second); err != nil {
			return fmt.Errorf("db: %w", err)
		}
	}
	if a.redis != nil {
		if err := PingRedis(ctx, a.redis, 2*time.Second); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "env", a.cfg.Env, "db_enabled", a.pool != nil, "redis_enabled", a.redis != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.close()
		return err
	}

	a.close()
	a.log.Info("server.stopped")
	return nil
}

// close drains pending audit events before the pool they may be written to goes away.
func (a *App) close() {
	if a.audits != nil {
		a.audits.Close()
		if n := a.audits.Dropped(); n > 0 {
			a.log.Warn("audit.dropped", "count", n)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
