package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/livecode/internal/api/http"
	"github.com/GriffinCanCode/livecode/internal/api/middleware"
	"github.com/GriffinCanCode/livecode/internal/api/ws"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/config"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/livecode/internal/playground"
	"github.com/GriffinCanCode/livecode/internal/preview"
	"github.com/GriffinCanCode/livecode/internal/sandbox"
	"github.com/GriffinCanCode/livecode/internal/storage/kv"
	"github.com/GriffinCanCode/livecode/internal/storage/projects"
)

// Options holds the command-line additions to the configuration.
type Options struct {
	// SeedDir, when set, seeds every new session from a directory.
	SeedDir string
	// Watch keeps open sessions in step with writes under SeedDir.
	Watch bool
}

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	handler  http.Handler
	manager  *playground.Manager
	kv       kv.Store
	projects projects.Store
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	stop     func()
}

// NewServer creates a new server instance
func NewServer(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	mode, err := playground.ParseMode(cfg.Sandbox.Mode)
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing livecode server",
		zap.String("addr", cfg.Addr()),
		zap.String("sandbox_mode", string(mode)),
		zap.String("kv", cfg.Storage.KV),
		zap.String("projects", cfg.Storage.Projects),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	store, err := kv.Open(kv.Options{
		Kind:     cfg.Storage.KV,
		Dir:      cfg.Storage.Dir,
		RedisURL: cfg.Storage.RedisURL,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open autosave store: %w", err)
	}

	library, err := projects.Open(projects.Options{
		Kind:      cfg.Storage.Projects,
		Database:  cfg.Storage.Database,
		RemoteURL: cfg.Storage.RemoteURL,
		RemoteKey: cfg.Storage.RemoteKey,
		Metrics:   metrics,
	})
	if err != nil {
		_ = kv.Close(store)
		return nil, fmt.Errorf("failed to open project store: %w", err)
	}

	template := playground.Options{
		Mode:      mode,
		Aggregate: preview.Options{Provenance: cfg.Preview.Provenance},
		Synth:     preview.SynthOptions{Guard: cfg.Preview.Guard},
		Sandbox: sandbox.Config{
			Timeout:        cfg.Sandbox.Timeout,
			ReloadDebounce: cfg.Sandbox.ReloadDebounce,
			MaxDepth:       cfg.Sandbox.MaxDepth,
		},
		MaxEntries: cfg.Console.MaxEntries,
		KV:         store,
		Projects:   library,
		Logger:     logging.Component(logger.Logger, "playground"),
		Metrics:    metrics,
	}

	s := &Server{
		kv:       store,
		projects: library,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		tracer:   tracing.New("livecode", logging.Component(logger.Logger, "trace")),
		stop:     func() {},
	}

	var seeder *playground.Seeder
	if opts.SeedDir != "" {
		seeder = playground.NewSeeder(opts.SeedDir, logging.Component(logger.Logger, "seed"))
		files, err := seeder.Load(ctx)
		if err != nil {
			s.release()
			return nil, err
		}
		template.Seed = files
	}
	s.manager = playground.NewManager(template)

	if seeder != nil && opts.Watch {
		stop, err := seeder.Watch(ctx, s.manager)
		if err != nil {
			s.release()
			return nil, err
		}
		s.stop = stop
		logger.Info("Watching seed directory", zap.String("dir", opts.SeedDir))
	}

	s.router = s.routes(registry)
	s.handler = s.router
	if cfg.Server.Gzip {
		s.handler = compress(s.router)
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

func (s *Server) routes(registry *prometheus.Registry) *gin.Engine {
	cfg := s.config
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.AllowedOrigins)))
	if cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	var auth *middleware.Authenticator
	if cfg.Auth.Enabled {
		auth = middleware.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TTL)
		s.logger.Info("Bearer authentication enabled", zap.String("issuer", cfg.Auth.Issuer))
	}

	timeout := cfg.Sandbox.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	handlers := apihttp.NewHandlers(s.manager, logging.Component(s.logger.Logger, "api"), timeout)
	stream := ws.NewHandler(s.manager, logging.Component(s.logger.Logger, "stream"), s.metrics, cfg.Server.AllowedOrigins)

	router.GET("/", handlers.Index)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	api := router.Group("/api")
	api.Use(middleware.Auth(auth))
	handlers.Register(api)
	api.GET("/sessions/:id/stream", stream.HandleConnection)

	return router
}

// compress gzips responses except WebSocket upgrades, which must reach
// the router with a hijackable writer.
func compress(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Manager returns the session manager.
func (s *Server) Manager() *playground.Manager {
	return s.manager
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return <-errCh
}

// Close stops the seed watcher, closes every session and releases the
// stores.
func (s *Server) Close() error {
	s.stop()
	s.manager.Shutdown()
	err := s.release()

	_ = s.logger.Sync()
	return err
}

// release closes the stores and flushes pending spans.
func (s *Server) release() error {
	defer s.tracer.Close()

	var errs []error
	if err := kv.Close(s.kv); err != nil {
		s.logger.Error("Failed to close autosave store", zap.Error(err))
		errs = append(errs, err)
	}
	if err := projects.Close(s.projects); err != nil {
		s.logger.Error("Failed to close project store", zap.Error(err))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
