package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ekodi-ai/gatekeeper/internal/core/service"
	"github.com/ekodi-ai/gatekeeper/internal/infra/buildinfo"
	"github.com/ekodi-ai/gatekeeper/internal/infra/confloader"
	"github.com/ekodi-ai/gatekeeper/internal/infra/shutdown"
	"github.com/ekodi-ai/gatekeeper/internal/infra/sysstat"
	"github.com/ekodi-ai/gatekeeper/internal/infra/tlsroots"
	"github.com/ekodi-ai/gatekeeper/internal/server/config"
	"github.com/ekodi-ai/gatekeeper/internal/server/httpserver"
	"github.com/ekodi-ai/gatekeeper/internal/server/httpserver/handler"
	"github.com/ekodi-ai/gatekeeper/internal/telemetry/logger"
	"github.com/ekodi-ai/gatekeeper/internal/telemetry/metric"
	"github.com/ekodi-ai/gatekeeper/internal/telemetry/tracer"
)

// ServiceName identifies the process in traces.
const ServiceName = "gatekeeper"

// Options configures New.
type Options struct {
	Config *config.ServerConfig

	// Loader, when it has a config file, enables hot reload of the
	// admission thresholds and log level.
	Loader *confloader.Loader

	Logger  *slog.Logger
	Backend handler.Backend
	Clock   func() time.Time
}

// App is an assembled gatekeeper server.
type App struct {
	cfg    *config.ServerConfig
	loader *confloader.Loader
	log    *slog.Logger
	now    func() time.Time

	stores  *stores
	tracer  *tracer.Provider
	metrics *metric.Metrics
	monitor *service.RequestMonitor
	auth    *service.AuthService

	router   http.Handler
	server   *httpserver.Server
	certs    *tlsroots.Watcher
	shutdown *shutdown.Handler
}

// New builds the server. Connections opened here are released by Run's
// shutdown, or by Close if Run is never called.
func New(ctx context.Context, opts Options) (_ *App, err error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	a := &App{
		cfg:      cfg,
		loader:   opts.Loader,
		log:      opts.Logger,
		now:      opts.Clock,
		shutdown: shutdown.NewHandler(cfg.HTTP.ShutdownTimeout),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.stores, err = openStores(ctx, cfg, a.log)
	if err != nil {
		return nil, err
	}
	a.shutdown.OnShutdown("stores", func(context.Context) error { return a.stores.close() })

	tcfg := cfg.Telemetry.Tracing
	tcfg.ServiceName = ServiceName
	tcfg.ServiceVersion = buildinfo.Get().Version
	a.tracer, err = tracer.New(ctx, tcfg)
	if err != nil {
		return nil, err
	}
	a.shutdown.OnShutdown("tracer", a.tracer.Shutdown)

	if err := a.buildServices(); err != nil {
		return nil, err
	}

	gate := service.NewAdmissionGate(a.monitor, service.AdmissionConfig{
		PassthroughPrefixes: cfg.Admission.PassthroughPrefixes,
		HeavyRoutes:         cfg.Admission.HeavyRoutes,
		RetryAfter:          cfg.Admission.RetryAfter,
		Clock:               a.now,
	})

	if cfg.Telemetry.Metrics {
		a.metrics = metric.New()
		if err := a.metrics.RegisterMonitor(a.monitor); err != nil {
			return nil, fmt.Errorf("register monitor metrics: %w", err)
		}
	}

	loc, err := cfg.Quota.Location()
	if err != nil {
		return nil, err
	}

	a.router = httpserver.NewRouter(httpserver.RouterConfig{
		Handler: handler.New(handler.Config{
			Auth:    a.auth,
			Gate:    gate,
			Backend: opts.Backend,
			Clock:   a.now,
			Logger:  a.log,
		}),
		Auth:            a.auth,
		Gate:            gate,
		Limiter:         service.NewRateLimiter(a.stores.windows, a.now),
		Quota:           service.NewDailyQuota(a.stores.directory, loc, a.now),
		Metrics:         a.metrics,
		Logger:          a.log,
		Clock:           a.now,
		RateLimit:       cfg.RateLimit.Requests,
		RateWindow:      cfg.RateLimit.Window,
		GlobalRateLimit: cfg.RateLimit.GlobalPerMinute,
		TrustProxy:      cfg.HTTP.TrustProxy,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		Development:     cfg.HTTP.Development,
	})

	scfg := httpserver.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	if cfg.HTTP.TLSCertFile != "" {
		a.certs, err = tlsroots.NewWatcher(cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile, tlsroots.WithLogger(a.log))
		if err != nil {
			return nil, err
		}
		a.shutdown.OnShutdown("certificates", func(context.Context) error { return a.certs.Stop() })
		scfg.GetCertificate = a.certs.GetCertificate
	}
	a.server = httpserver.New(scfg, a.router)
	a.shutdown.OnShutdown("http", a.server.Shutdown)

	return a, nil
}

func (a *App) buildServices() error {
	cfg := a.cfg

	a.monitor = service.NewRequestMonitor(service.MonitorConfig{
		Thresholds:     cfg.Admission.Thresholds(),
		ResponseWindow: cfg.Admission.ResponseWindow,
		SampleInterval: cfg.Admission.SampleInterval,
		Sampler:        newSampler(cfg.Admission, a.log),
		Clock:          a.now,
		Logger:         a.log,
	})

	tokens, err := service.NewTokenAuthority(service.TokenConfig{
		Secret:          []byte(cfg.Auth.TokenSecret),
		Issuer:          cfg.Auth.Issuer,
		AccessTTL:       cfg.Auth.AccessTTL,
		RefreshTTL:      cfg.Auth.RefreshTTL,
		StaffAccessTTL:  cfg.Auth.StaffAccessTTL,
		StaffRefreshTTL: cfg.Auth.StaffRefreshTTL,
		Clock:           a.now,
		Logger:          a.log,
	}, service.NewSessionRegistry(a.stores.sessions), a.stores.revocations)
	if err != nil {
		return err
	}

	login := service.NewLoginLimiter(a.stores.windows, cfg.RateLimit.LoginAttempts, cfg.RateLimit.LoginWindow, a.now)
	a.auth = service.NewAuthService(tokens, a.stores.directory, login, service.AuthServiceConfig{
		BcryptCost:   cfg.Auth.BcryptCost,
		KeyCacheSize: cfg.Auth.KeyCacheSize,
		KeyCacheTTL:  cfg.Auth.KeyCacheTTL,
		Clock:        a.now,
		Logger:       a.log,
	})
	return nil
}

// newSampler returns nil when sampling is off or procfs is unreadable, in
// which case only the concurrency ceiling is enforced.
func newSampler(cfg config.AdmissionSection, log *slog.Logger) service.SystemSampler {
	if !cfg.SystemSampling {
		return nil
	}
	var (
		s   *sysstat.Sampler
		err error
	)
	if cfg.ProcMount != "" {
		s, err = sysstat.NewWithMount(cfg.ProcMount)
	} else {
		s, err = sysstat.New()
	}
	if err != nil {
		log.Warn("system sampling disabled", "error", err)
		return nil
	}
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.router
}

// Auth returns the authentication service.
func (a *App) Auth() *service.AuthService {
	return a.auth
}

// Directory returns the user directory.
func (a *App) Directory() Directory {
	return a.stores.directory
}

// Monitor returns the request monitor.
func (a *App) Monitor() *service.RequestMonitor {
	return a.monitor
}

// Run serves on ln (or the configured address when ln is nil) until ctx is
// cancelled or a component fails, then shuts everything down.
func (a *App) Run(ctx context.Context, ln net.Listener) error {
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.HTTP.Addr)
		if err != nil {
			_ = a.Close()
			return fmt.Errorf("listen %s: %w", a.cfg.HTTP.Addr, err)
		}
	}

	if err := a.startWatchers(); err != nil {
		_ = ln.Close()
		_ = a.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("http server listening",
			"addr", ln.Addr().String(),
			"tls", a.certs != nil,
			"version", buildinfo.Get().Version,
		)
		return a.server.Serve(ln)
	})
	g.Go(func() error {
		return runJanitor(gctx, a.cfg.Storage.SweepInterval, a.stores.sweepers, a.now, a.log)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down")
		return a.Close()
	})

	err := g.Wait()
	if err == nil {
		a.log.Info("server stopped gracefully")
	}
	return err
}

func (a *App) startWatchers() error {
	if a.certs != nil {
		a.certs.StartAsync()
	}
	if a.loader == nil || a.loader.FilePath() == "" {
		return nil
	}
	w, err := confloader.NewWatcher(a.loader.FilePath(), confloader.WithWatcherLogger(a.log))
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	w.OnChange(func(string) {
		if err := a.Reload(); err != nil {
			a.log.Error("configuration reload rejected", "error", err)
		}
	})
	w.StartAsync()
	a.shutdown.OnShutdown("config_watcher", func(context.Context) error { return w.Stop() })
	return nil
}

// Reload re-reads the configuration and applies the admission thresholds
// and log level. Other sections need a restart.
func (a *App) Reload() error {
	if a.loader == nil {
		return errors.New("app: reload without a loader")
	}
	fresh := config.Default()
	if err := a.loader.Reload(fresh); err != nil {
		return err
	}
	if err := config.VerifyReloadable(fresh); err != nil {
		return err
	}

	a.monitor.SetThresholds(fresh.Admission.Thresholds())
	logger.SetLevel(fresh.Log.Level)

	t := a.monitor.Thresholds()
	a.log.Info("configuration reloaded",
		"max_concurrent", t.MaxConcurrent,
		"cpu_threshold", t.CPUPercent,
		"memory_threshold", t.MemoryPercent,
		"log_level", logger.GetLevel(),
	)
	return nil
}

// Close runs the shutdown hooks. Later calls return the first result.
func (a *App) Close() error {
	return a.shutdown.Shutdown(context.Background())
}
