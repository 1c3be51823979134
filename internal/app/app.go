package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/catalog-admin/internal/handler"
	"github.com/xenking/catalog-admin/internal/repository"
	"github.com/xenking/catalog-admin/internal/screen"
	"github.com/xenking/catalog-admin/pkg/health"
	"github.com/xenking/catalog-admin/pkg/httpmiddleware"
)

const serviceName = "catalog-admin"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store.BaseURL),
	)

	st, err := newStack(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	healthSvc := st.health
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)
	st.sessions.StartSweeper(ctx, cfg.Session.SweepInterval)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Mutations wait for the store, so leave room beyond its timeout.
		WriteTimeout:   cfg.Store.Timeout + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler:        st.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// stack is the wired application without the listener.
type stack struct {
	handler  http.Handler
	health   *health.Health
	sessions *screen.Store
}

func (st *stack) close() {
	st.sessions.Close()
	st.health.Stop()
}

func newStack(ctx context.Context, lg *zap.Logger, tp httpmiddleware.TelemetryProvider, cfg *Config) (*stack, error) {
	// Store API client, traced per request.
	storeClient := &http.Client{
		Timeout: cfg.Store.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(tp.TracerProvider()),
			otelhttp.WithMeterProvider(tp.MeterProvider()),
		),
	}
	products, err := repository.NewProductRepository(cfg.Store.BaseURL, storeClient)
	if err != nil {
		return nil, errors.Wrap(err, "create product repository")
	}

	// Health check service; started by the caller.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("store", 5*time.Second, health.PingCheck("store", products))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	// Sessions.
	screenMetrics, err := screen.NewMetrics(tp.MeterProvider())
	if err != nil {
		return nil, errors.Wrap(err, "create screen metrics")
	}
	tracer := tp.TracerProvider().Tracer(serviceName)
	sessions := screen.NewStore(screen.StoreConfig{
		TTL:         cfg.Session.TTL,
		MaxSessions: cfg.Session.MaxSessions,
		SharedTTL:   cfg.Session.SharedTTL,
		New: func() *screen.Screen {
			return screen.New(ctx, products, screen.Options{
				Logger:  lg.Named("screen"),
				Tracer:  tracer,
				Metrics: screenMetrics,
			})
		},
		Logger:  lg.Named("sessions"),
		Metrics: screenMetrics,
	})

	// HTTP handlers.
	h, err := handler.New(handler.Config{
		CookieName:   cfg.Session.CookieName,
		LoadWait:     cfg.Session.LoadWait,
		SecureCookie: cfg.Session.SecureCookie,
	}, sessions)
	if err != nil {
		return nil, errors.Wrap(err, "create handler")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	middlewares := []httpmiddleware.Middleware{
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			PathPrefixes:     []string{"/api/"},
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
			Skip:   skipRateLimit(cfg.Session.CookieName),
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Instrument(serviceName, routeFinder, tp),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	}
	if cfg.Gzip.Enabled {
		middlewares = append(middlewares, httpmiddleware.Gzip(cfg.Gzip.Level))
	}

	return &stack{
		handler:  httpmiddleware.Wrap(mux, middlewares...),
		health:   healthSvc,
		sessions: sessions,
	}, nil
}

// skipRateLimit exempts probes and reads that carry a session cookie. A read
// without one may start a session, so it counts against the limit.
func skipRateLimit(cookieName string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		switch r.URL.Path {
		case "/livez", "/readyz":
			return true
		}
		if !httpmiddleware.SkipSafeMethods(r) {
			return false
		}
		_, err := r.Cookie(cookieName)
		return err == nil
	}
}
