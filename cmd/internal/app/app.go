// Package app wires the account service runtime: config, logging, storage, HTTP routes and
// the live revocation channel.
//
// Components are built once in New and owned by the App, which closes them in reverse order on shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity"
	authapi "github.com/A1dos-Creations/login-api-website/cmd/internal/auth/api"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/auth/session"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/billing"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/geo"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/google"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/live"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/mail"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/metrics"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/upgrade"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/verify"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// App is the service runtime: it owns the HTTP server and every long-lived dependency.
type App struct {
	cfg     Config
	log     Logger
	metrics *metrics.Metrics

	pool  *pgxpool.Pool
	redis *redis.Client

	registry *live.Registry
	gateway  *live.Gateway
	outbox   *mail.Outbox

	auth *authapi.Handler
}

// New constructs a fully wired App. On error every resource opened so far is released.
func New(ctx context.Context, cfg Config, log Logger) (_ *App, err error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%w: STL_DATABASE_URL must be set", ErrConfig)
	}

	a := &App{cfg: cfg, log: log, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()

	hasher, err := newTokenHasher(cfg)
	if err != nil {
		return nil, err
	}
	sessCfg := cfg.sessionConfig()
	issuer, err := session.NewIssuer(sessCfg)
	if err != nil {
		return nil, err
	}

	a.pool, err = NewDBPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema, "auto_migrate", cfg.AutoMigrate)

	users, err := identity.NewPostgresStore(a.pool,
		identity.WithSchema(cfg.DBSchema),
		identity.WithPasswordConfig(cfg.passwordConfig()),
	)
	if err != nil {
		return nil, err
	}
	sessStore, err := session.NewPostgresStore(a.pool, cfg.DBSchema)
	if err != nil {
		return nil, err
	}

	a.registry = live.NewRegistry(log)
	sessions := session.NewService(sessCfg, sessStore, issuer, hasher,
		session.WithNotifier(a.registry),
		session.WithLogger(log),
		session.WithMetrics(a.metrics),
	)

	a.gateway, err = live.NewGateway(cfg.liveConfig(), a.registry, sessions,
		live.WithLogger(log),
		live.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}

	codeOpts := []verify.Option{
		verify.WithSchema(cfg.DBSchema),
		verify.WithLogger(log),
		verify.WithMetrics(a.metrics),
	}
	codeCfg := cfg.verifyConfig()
	if cfg.RedisURL != "" {
		a.redis, err = newRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		codeOpts = append(codeOpts,
			verify.WithLimiter(verify.NewRedisLimiter(a.redis, "stl:codes:request", codeCfg.RequestMax, codeCfg.RequestWindow)),
			verify.WithAttemptLimiter(verify.NewRedisLimiter(a.redis, "stl:codes:attempt", codeCfg.AttemptMax, codeCfg.RequestWindow)),
		)
		log.Info("redis.enabled.code_limiter")
	}
	codes, err := verify.NewService(a.pool, hasher, codeCfg, codeOpts...)
	if err != nil {
		return nil, err
	}

	keys, err := upgrade.NewService(a.pool, users,
		upgrade.WithSchema(cfg.DBSchema),
		upgrade.WithLogger(log),
		upgrade.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}

	a.outbox, err = newOutbox(cfg, log, a.metrics)
	if err != nil {
		return nil, err
	}

	deps := authapi.Deps{
		Pool:     a.pool,
		Schema:   cfg.DBSchema,
		Users:    users,
		Sessions: sessions,
		Codes:    codes,
		Keys:     keys,
		Mail:     a.outbox,
		Geo:      geo.New(cfg.geoConfig(), nil, log),
	}
	if err := wireGoogle(&deps, cfg, users, log); err != nil {
		return nil, err
	}
	if err := wireBilling(&deps, cfg, log); err != nil {
		return nil, err
	}

	a.auth, err = authapi.NewHandler(cfg.apiConfig(), deps,
		authapi.WithLogger(log),
		authapi.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// newOutbox delivers through SMTP when configured and logs messages otherwise.
func newOutbox(cfg Config, log Logger, m *metrics.Metrics) (*mail.Outbox, error) {
	mcfg := cfg.mailConfig()

	var sender mail.Sender = mail.LogSender{Log: log}
	if mcfg.Enabled() {
		smtp, err := mail.NewSMTPSender(mcfg)
		if err != nil {
			return nil, err
		}
		sender = smtp
		log.Info("mail.enabled.smtp", "host", mcfg.Host, "port", mcfg.Port)
	} else {
		log.Warn("mail.disabled", "reason", "STL_SMTP_HOST not set")
	}

	return mail.NewOutbox(sender,
		mail.WithLogger(log),
		mail.WithMetrics(m),
		mail.WithSendTimeout(mcfg.Timeout*3),
	), nil
}

// wireGoogle sets the OAuth and Calendar collaborators. They stay nil interfaces
// when Google is not configured, which the handler reports as unavailable.
func wireGoogle(deps *authapi.Deps, cfg Config, users *identity.PostgresStore, log Logger) error {
	gcfg := cfg.googleConfig()
	if !gcfg.Enabled() {
		log.Warn("google.disabled", "reason", "STL_GOOGLE_CLIENT_ID not set")
		return nil
	}
	oauth, err := google.NewOAuth(gcfg)
	if err != nil {
		return err
	}
	deps.OAuth = oauth
	deps.Calendar = google.NewCalendar(oauth, gcfg, users, log)
	return nil
}

// wireBilling sets the checkout creator and webhook verifier when payments are configured.
func wireBilling(deps *authapi.Deps, cfg Config, log Logger) error {
	bcfg := cfg.billingConfig()
	if !bcfg.Enabled() {
		log.Warn("billing.disabled", "reason", "STL_STRIPE_SECRET_KEY not set")
		return nil
	}
	if err := bcfg.Check(); err != nil {
		return err
	}
	client, err := billing.NewClient(bcfg, billing.WithLogger(log))
	if err != nil {
		return err
	}
	webhooks, err := billing.NewWebhookVerifier(bcfg.WebhookSecret, bcfg.Tolerance)
	if err != nil {
		return err
	}
	deps.Checkout = client
	deps.Webhooks = webhooks
	return nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.routes(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "base_url", base, "live_url", wsBaseURL(base)+"/live")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case runErr = <-errCh:
		a.log.Error("server.fail", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		if runErr == nil {
			runErr = err
		}
	}
	a.release(shutdownCtx)

	a.log.Info("server.stopped")
	return runErr
}

// release closes owned resources: live connections first, then pending mail, then stores.
func (a *App) release(ctx context.Context) {
	if a.registry != nil {
		if n := a.registry.CloseAll(); n > 0 {
			a.log.Info("live.shutdown", "closed", n)
		}
	}
	if err := a.outbox.Close(ctx); err != nil {
		a.log.Error("mail.outbox.close.fail", "err", err)
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
