package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/api"
	"github.com/shalynjjj/prompt2CAD/api/handlers"
	"github.com/shalynjjj/prompt2CAD/config"
	"github.com/shalynjjj/prompt2CAD/internal/analysis"
	"github.com/shalynjjj/prompt2CAD/internal/artifact"
	"github.com/shalynjjj/prompt2CAD/internal/cache"
	"github.com/shalynjjj/prompt2CAD/internal/cad"
	"github.com/shalynjjj/prompt2CAD/internal/database"
	"github.com/shalynjjj/prompt2CAD/internal/events"
	"github.com/shalynjjj/prompt2CAD/internal/metrics"
	"github.com/shalynjjj/prompt2CAD/internal/pipeline"
	"github.com/shalynjjj/prompt2CAD/internal/render"
	"github.com/shalynjjj/prompt2CAD/internal/server"
	"github.com/shalynjjj/prompt2CAD/internal/session"
	"github.com/shalynjjj/prompt2CAD/internal/silhouette"
	"github.com/shalynjjj/prompt2CAD/internal/telemetry"
	"github.com/shalynjjj/prompt2CAD/llm"
	llmfactory "github.com/shalynjjj/prompt2CAD/llm/factory"
	"github.com/shalynjjj/prompt2CAD/llm/image"
	"github.com/shalynjjj/prompt2CAD/llm/retry"
	"github.com/shalynjjj/prompt2CAD/llm/tokenizer"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 持有 prompt2CAD 的全部运行时组件
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	level      zap.AtomicLevel

	telemetry *telemetry.Providers
	collector *metrics.Collector
	pool      *database.PoolManager
	cache     *cache.Manager
	store     *artifact.Store
	hub       *events.Hub

	orchestrator *pipeline.Orchestrator

	limiter *RateLimiter
	keys    *KeySet

	httpManager    *server.Manager
	metricsManager *server.Manager
	hotReload      *config.HotReloadManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, level zap.AtomicLevel) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		level:      level,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start builds every component and starts both listeners. It does not block.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.ctx = ctx

	providers, err := telemetry.Init(ctx, s.cfg.Telemetry, Version, s.logger)
	if err != nil {
		s.logger.Warn("telemetry unavailable, tracing disabled", zap.Error(err))
		providers = &telemetry.Providers{}
	}
	s.telemetry = providers

	s.collector = metrics.NewCollector("prompt2cad", s.logger)

	if err := s.initStorage(ctx); err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}

	mux, err := s.initRoutes()
	if err != nil {
		return fmt.Errorf("failed to init routes: %w", err)
	}

	s.initHotReload(ctx)

	if err := s.startHTTPServer(mux); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.String("http_addr", s.httpManager.Addr()),
		zap.String("metrics_addr", s.metricsManager.Addr()),
		zap.Bool("hot_reload_enabled", s.hotReload != nil),
		zap.Bool("cad_enabled", s.cfg.CAD.Enabled),
	)
	return nil
}

// initStorage opens the database, the optional Redis cache and the artifact store.
func (s *Server) initStorage(ctx context.Context) error {
	db, err := database.Open(s.cfg.Database, s.logger)
	if err != nil {
		return err
	}
	if err := database.Instrument(db, s.cfg.Database.Driver, s.collector); err != nil {
		return err
	}
	s.pool, err = database.NewPoolManager(db, database.PoolConfigFrom(s.cfg.Database), s.logger)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reportPoolStats(ctx, 15*time.Second)
	}()

	var storeOpts []artifact.StoreOption
	if s.cfg.Redis.Enabled {
		c, err := cache.NewManager(cache.Config{
			Addr:                s.cfg.Redis.Addr,
			Password:            s.cfg.Redis.Password,
			DB:                  s.cfg.Redis.DB,
			KeyPrefix:           s.cfg.Redis.KeyPrefix,
			DefaultTTL:          s.cfg.Redis.TTL,
			MaxRetries:          3,
			PoolSize:            s.cfg.Redis.PoolSize,
			MinIdleConns:        s.cfg.Redis.MinIdleConns,
			HealthCheckInterval: 30 * time.Second,
		}, s.logger, s.collector)
		if err != nil {
			s.logger.Warn("redis unavailable, analysis cache disabled", zap.Error(err))
		} else {
			s.cache = c
			storeOpts = append(storeOpts, artifact.WithAnalysisCache(c))
		}
	}

	s.store, err = artifact.NewStore(db, artifact.Config{
		Root:      s.cfg.Storage.Root,
		URLPrefix: s.cfg.Storage.URLPrefix,
	}, s.logger, storeOpts...)
	if err != nil {
		return err
	}
	if s.cfg.Database.AutoMigrate {
		if err := s.store.AutoMigrate(); err != nil {
			return err
		}
	}
	return nil
}

// reportPoolStats exports connection pool gauges until ctx is done.
func (s *Server) reportPoolStats(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.pool.GetStats()
			s.collector.RecordDBConnections(s.cfg.Database.Driver, st.OpenConnections, st.Idle)
		}
	}
}

// buildOrchestrator wires the model collaborators into the pipeline.
func (s *Server) buildOrchestrator() (*pipeline.Orchestrator, error) {
	provider, err := llmfactory.FromLLMConfig(s.cfg.LLM, s.logger)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	analyzer := analysis.New(provider, analysis.Config{
		Model:       s.cfg.LLM.Model,
		MaxTokens:   s.cfg.LLM.AnalysisMaxTokens,
		ImageDetail: analysis.DefaultConfig().ImageDetail,
		Timeout:     s.cfg.LLM.Timeout,
	}, s.logger)

	imgKey := s.cfg.Image.APIKey
	if imgKey == "" {
		imgKey = s.cfg.LLM.APIKey
	}
	policy := retry.DefaultRetryPolicy()
	policy.MaxRetries = s.cfg.LLM.MaxRetries
	images := image.NewOpenAIProvider(image.OpenAIConfig{
		APIKey:  imgKey,
		BaseURL: s.cfg.Image.BaseURL,
		Model:   s.cfg.Image.Model,
		Size:    s.cfg.Image.Size,
		Timeout: s.cfg.Image.Timeout,
	}, policy, s.logger)

	renderOpts := render.DefaultOptions()
	if s.cfg.Pipeline.RenderWidth > 0 {
		renderOpts.Width = s.cfg.Pipeline.RenderWidth
	}
	if s.cfg.Pipeline.RenderHeight > 0 {
		renderOpts.Height = s.cfg.Pipeline.RenderHeight
	}

	locks := session.NewManager(s.logger,
		session.WithTimeout(s.cfg.Pipeline.LockTimeout),
		session.WithObserver(s.collector),
	)

	opts := []pipeline.Option{
		pipeline.WithEvents(s.hub),
		pipeline.WithRecorder(s.collector),
		pipeline.WithTracerProvider(s.telemetry.TracerProvider()),
		pipeline.WithMeterProvider(s.telemetry.MeterProvider()),
		pipeline.WithConfig(pipeline.Config{
			PointsMaxSide:   s.cfg.Pipeline.PointsMaxSide,
			PointsThreshold: s.cfg.Pipeline.PointsThreshold,
			ThicknessScale:  s.cfg.Pipeline.ThicknessScale,
		}),
	}
	if s.cfg.CAD.Enabled {
		wf, err := s.buildCADWorkflow(provider)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithCADWorkflow(wf))
	}

	return pipeline.New(
		analyzer,
		silhouette.New(images, s.cfg.Image.Model, s.logger),
		render.New(renderOpts, s.logger),
		s.store,
		locks,
		s.logger,
		opts...,
	), nil
}

// buildCADWorkflow wires the OpenSCAD chat.
func (s *Server) buildCADWorkflow(provider llm.Provider) (*cad.Workflow, error) {
	model := s.cfg.CAD.Model
	if model == "" {
		model = s.cfg.LLM.Model
	}

	compiler := cad.NewCompiler(cad.CompilerConfig{
		Binary:     s.cfg.CAD.Binary,
		UseXvfb:    s.cfg.CAD.UseXvfb,
		XvfbBinary: s.cfg.CAD.XvfbBinary,
		ImageSize:  s.cfg.CAD.ImageSize,
		Timeout:    s.cfg.CAD.Timeout,
		Mock:       s.cfg.CAD.Mock,
	}, s.logger)

	coder := cad.NewCoder(provider, tokenizer.ForModel(model), cad.CoderConfig{
		Model:       model,
		Temperature: float32(s.cfg.CAD.Temperature),
		MaxTokens:   s.cfg.CAD.MaxTokens,
		CodeBudget:  s.cfg.CAD.CodeBudget,
		Timeout:     s.cfg.CAD.Timeout,
	}, s.logger)

	history := cad.NewHistoryStore(s.pool.DB())
	if s.cfg.Database.AutoMigrate {
		if err := history.AutoMigrate(); err != nil {
			return nil, err
		}
	}

	return cad.NewWorkflow(coder, compiler, history, s.store, s.logger,
		cad.WithTokenRecorder(s.collector)), nil
}

// =============================================================================
// 🌐 路由
// =============================================================================

var publicPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version"}

// initRoutes builds the handlers and registers every route.
func (s *Server) initRoutes() (*http.ServeMux, error) {
	s.hub = events.NewHub(64, s.logger)

	orch, err := s.buildOrchestrator()
	if err != nil {
		return nil, err
	}
	s.orchestrator = orch

	health := handlers.NewHealthHandler(s.logger)
	health.RegisterCheck(handlers.NewPingCheck("database", s.pool.Ping))
	health.RegisterCheck(handlers.NewStorageCheck(s.store.Root()))
	if s.cache != nil {
		health.RegisterCheck(handlers.NewPingCheck("redis", s.cache.Ping))
	}

	maxUpload := s.cfg.Server.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = api.DefaultMaxUploadBytes
	}
	pipe := handlers.NewPipelineHandler(orch, maxUpload, s.logger)
	stream := events.NewStreamHandler(s.hub, s.logger,
		events.WithOriginPatterns(originHosts(s.cfg.Server.CORSOrigins)...))
	evts := handlers.NewEventsHandler(stream, s.logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /readyz", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(api.VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}))

	mux.HandleFunc("POST "+api.PathSilhouette, pipe.HandleGenerate)
	mux.HandleFunc("POST "+api.PathSilhouetteEdit, pipe.HandleEdit)
	mux.HandleFunc("POST "+api.PathExtrude, pipe.HandleExtrude)
	mux.HandleFunc("GET "+api.PathSession, pipe.HandleSession)
	mux.HandleFunc("GET "+api.PathSessionEvents, evts.HandleEvents)
	if s.cfg.CAD.Enabled {
		mux.HandleFunc("POST "+api.PathCADChat, pipe.HandleCADChat)
		mux.HandleFunc("GET "+api.PathCADHistory, pipe.HandleCADHistory)
	}

	mux.Handle("GET "+staticPrefix(s.cfg.Storage.URLPrefix), staticHandler(s.cfg.Storage.URLPrefix, s.store.Root()))

	s.logger.Info("Routes registered", zap.Bool("cad_routes", s.cfg.CAD.Enabled))
	return mux, nil
}

// staticPrefix returns the mux subtree pattern for the artifact URL prefix.
func staticPrefix(urlPrefix string) string {
	if urlPrefix == "" {
		urlPrefix = api.PathStatic
	}
	return strings.TrimSuffix(urlPrefix, "/") + "/"
}

// staticHandler serves artifact blobs without directory listings.
func staticHandler(urlPrefix, root string) http.Handler {
	files := http.StripPrefix(strings.TrimSuffix(staticPrefix(urlPrefix), "/"), http.FileServer(http.Dir(root)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}

// originHosts converts CORS origins to the host patterns WebSocket accepts.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		if o != "" {
			hosts = append(hosts, o)
		}
	}
	return hosts
}

// handler wraps the mux in the middleware chain.
func (s *Server) handler(mux *http.ServeMux) http.Handler {
	s.limiter = NewRateLimiter(s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger)
	s.keys = NewKeySet(s.cfg.Server.APIKeys)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.limiter.Run(s.ctx)
	}()

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		Tracing(s.telemetry.TracerProvider(), mux),
		RequestLogger(s.logger),
		Metrics(s.collector, mux),
		CORS(s.cfg.Server.CORSOrigins),
		s.limiter.Middleware(),
		Authenticate(AuthOptions{
			Keys:          s.keys,
			JWT:           s.cfg.Server.JWT,
			AllowQueryKey: s.cfg.Server.AllowQueryAPIKey,
			SkipPaths:     publicPaths,
			SkipPrefixes:  []string{staticPrefix(s.cfg.Storage.URLPrefix)},
		}, s.logger),
		PromptVersion(s.promptVersion),
	)
}

func (s *Server) promptVersion() string {
	if s.hotReload != nil {
		return s.hotReload.Config().CAD.PromptVersion
	}
	return s.cfg.CAD.PromptVersion
}

// =============================================================================
// 🔄 热重载
// =============================================================================

// initHotReload watches the config file when one was given.
func (s *Server) initHotReload(ctx context.Context) {
	if s.configPath == "" {
		return
	}
	s.hotReload = config.NewHotReloadManager(s.configPath, s.cfg,
		config.WithHotReloadLogger(s.logger))
	s.hotReload.OnReload(s.applyReload)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hotReload.Run(ctx)
	}()
}

// applyReload pushes hot-reloadable fields into the running components.
func (s *Server) applyReload(oldCfg, newCfg *config.Config, changes []config.ConfigChange) {
	for _, c := range changes {
		switch c.Path {
		case "Log.Level":
			s.level.SetLevel(parseLevel(newCfg.Log.Level))
		case "Server.RateLimitRPS", "Server.RateLimitBurst":
			if s.limiter != nil {
				s.limiter.SetLimit(newCfg.Server.RateLimitRPS, newCfg.Server.RateLimitBurst)
			}
		case "Server.APIKeys":
			if s.keys != nil {
				s.keys.Set(newCfg.Server.APIKeys)
			}
		}
	}
	s.logger.Info("Configuration reloaded", zap.Int("changes", len(changes)))
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) startHTTPServer(mux *http.ServeMux) error {
	serverConfig, err := server.ConfigFromServer(s.cfg.Server, s.cfg.Server.HTTPPort)
	if err != nil {
		return err
	}
	s.httpManager = server.NewManager("api", s.handler(mux), serverConfig, s.logger)
	return s.httpManager.Start()
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	serverConfig := server.DefaultConfig()
	serverConfig.Addr = fmt.Sprintf(":%d", s.cfg.Server.MetricsPort)
	serverConfig.ReadTimeout = s.cfg.Server.ReadTimeout
	serverConfig.ShutdownTimeout = s.cfg.Server.ShutdownTimeout

	s.metricsManager = server.NewManager("metrics", mux, serverConfig, s.logger)
	return s.metricsManager.Start()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Wait blocks until ctx is cancelled or a listener fails.
func (s *Server) Wait(ctx context.Context) {
	var apiErrs, metricErrs <-chan error
	if s.httpManager != nil {
		apiErrs = s.httpManager.Errors()
	}
	if s.metricsManager != nil {
		metricErrs = s.metricsManager.Errors()
	}
	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received")
	case err := <-apiErrs:
		s.logger.Error("API server failed", zap.Error(err))
	case err := <-metricErrs:
		s.logger.Error("Metrics server failed", zap.Error(err))
	}
}

// Shutdown stops listeners, background loops and connections in that order.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if s.httpManager != nil {
		errs = append(errs, s.httpManager.Shutdown(ctx))
	}
	if s.metricsManager != nil {
		errs = append(errs, s.metricsManager.Shutdown(ctx))
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.pool != nil {
		errs = append(errs, s.pool.Close())
	}
	if s.telemetry != nil {
		errs = append(errs, s.telemetry.Shutdown(ctx))
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("Shutdown completed with errors", zap.Error(err))
		return
	}
	s.logger.Info("Graceful shutdown completed")
}
