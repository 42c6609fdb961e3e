package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/streamrelay/agent"
	"github.com/BaSui01/streamrelay/agent/persistence"
	"github.com/BaSui01/streamrelay/api/handlers"
	"github.com/BaSui01/streamrelay/config"
	"github.com/BaSui01/streamrelay/internal/database"
	"github.com/BaSui01/streamrelay/internal/metrics"
	"github.com/BaSui01/streamrelay/internal/server"
	"github.com/BaSui01/streamrelay/internal/telemetry"
	"github.com/BaSui01/streamrelay/llm"
	llmfactory "github.com/BaSui01/streamrelay/llm/factory"
	"github.com/BaSui01/streamrelay/llm/providers"
	"github.com/BaSui01/streamrelay/llm/tools"
	"github.com/BaSui01/streamrelay/types"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 streamrelay 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 依赖
	telemetry *telemetry.Providers
	registry  *prometheus.Registry
	collector *metrics.Collector
	pool      *database.PoolManager
	messages  persistence.MessageStore
	tasks     persistence.TaskStore
	providers *llm.ProviderRegistry
	tools     *tools.Registry
	service   *agent.Service

	// Handlers
	healthHandler *handlers.HealthHandler
	chatHandler   *handlers.ChatHandler
	toolsHandler  *handlers.ToolsHandler

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc

	errCh chan error
}

// NewServer 初始化所有依赖。ctx 只用于启动阶段的存储操作。
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		errCh:  make(chan error, 2),
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"telemetry", s.initTelemetry},
		{"metrics", s.initMetrics},
		{"database", s.initDatabase},
		{"stores", s.initStores},
		{"tools", s.initTools},
		{"providers", s.initProviders},
		{"handlers", s.initHandlers},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			s.Shutdown()
			return nil, fmt.Errorf("failed to init %s: %w", step.name, err)
		}
	}
	return s, nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) initTelemetry(context.Context) error {
	p, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		// 遥测不可用不阻止启动
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
		return nil
	}
	s.telemetry = p
	return nil
}

func (s *Server) initMetrics(context.Context) error {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.collector = metrics.NewCollector("streamrelay", s.registry, s.logger)
	return nil
}

func (s *Server) initDatabase(context.Context) error {
	if !s.cfg.UsesSQL() {
		return nil
	}
	conn := s.cfg.Database.Connection()
	pool, err := database.Open(conn, s.logger)
	if err != nil {
		return err
	}
	pool.OnStats(func(stats database.PoolStats) {
		s.collector.RecordDBConnections(conn.Driver, stats.OpenConnections, stats.Idle)
	})
	s.pool = pool
	s.logger.Info("Database connected", zap.String("driver", conn.Driver))
	return nil
}

func (s *Server) initStores(ctx context.Context) error {
	var db *gorm.DB
	if s.pool != nil {
		db = s.pool.DB()
	}
	messages, tasks, err := persistence.NewStores(s.cfg.Stores(), db)
	if err != nil {
		return err
	}
	s.messages, s.tasks = messages, tasks

	if len(s.cfg.Tasks) > 0 {
		if err := persistence.SeedTasks(ctx, tasks, s.cfg.Tasks); err != nil {
			return err
		}
		s.logger.Info("Tasks seeded from config", zap.Int("count", len(s.cfg.Tasks)))
		return nil
	}

	// 未配置任务时只补齐缺失的默认任务，不覆盖持久化存储中已有的内容
	for _, t := range agent.DefaultTasks() {
		_, err := tasks.ResolveTask(ctx, t.Name)
		if err == nil {
			continue
		}
		if !types.IsCode(err, types.ErrTaskNotFound) {
			return err
		}
		if err := tasks.SaveTask(ctx, &t); err != nil {
			return err
		}
		s.logger.Info("Default task created", zap.String("task", t.Name))
	}
	return nil
}

func (s *Server) initTools(context.Context) error {
	s.tools = tools.NewRegistry(s.logger)
	return tools.RegisterBuiltins(s.tools)
}

func (s *Server) initProviders(context.Context) error {
	regCfg := s.cfg.LLM.Registry()
	if len(regCfg.Providers) == 0 && regCfg.Default != "" {
		// 仅依赖环境变量或请求级凭据
		regCfg.Providers = map[string]llmfactory.ProviderConfig{regCfg.Default: {}}
	}
	reg, err := llmfactory.NewRegistryFromConfig(regCfg, s.logger)
	if err != nil {
		return err
	}
	s.providers = reg
	s.logger.Info("Providers ready",
		zap.Strings("providers", reg.List()),
		zap.String("default", regCfg.Default))
	return nil
}

func (s *Server) initHandlers(context.Context) error {
	o := s.cfg.Orchestration
	assembler := agent.NewAssembler(s.tasks, s.messages, s.tools, agent.AssemblerConfig{
		GlobalTask:   o.GlobalTask,
		DefaultTask:  o.DefaultTask,
		HistoryLimit: o.HistoryLimit,
	}, s.logger)

	recorders := []agent.Recorder{s.collector}
	if gens, err := s.telemetry.Generations(); err != nil {
		s.logger.Warn("generation instruments unavailable", zap.Error(err))
	} else {
		recorders = append(recorders, gens)
	}
	s.service = agent.NewService(assembler, s.providers, providers.RetryConfig{
		MaxRetries: s.cfg.LLM.MaxRetries,
		BaseDelay:  s.cfg.LLM.RetryBaseDelay,
	}, agent.Recorders(recorders...), s.logger).
		WithTracer(s.telemetry.Tracer(telemetry.ScopeGeneration))

	executor := tools.NewExecutor(s.tools, o.ToolConcurrency, s.logger).
		WithObserver(func(r tools.ToolResult) {
			s.collector.RecordToolExecution(r.Name, r.Error == "", r.Duration)
		})

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("message_store", s.messages.Ping))
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("task_store", s.tasks.Ping))
	if s.pool != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("database", s.pool.Ping))
	}

	s.chatHandler = handlers.NewChatHandler(s.service, nil, s.logger)
	s.toolsHandler = handlers.NewToolsHandler(s.tools, executor, s.logger)

	s.logger.Info("Handlers initialized")
	return nil
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动 HTTP 与 Metrics 服务器
func (s *Server) Start() error {
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// Errors 返回任一服务器的运行时错误
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// routes 注册所有 API 路由
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(handlers.VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}))

	// 生成
	mux.HandleFunc("POST /api/v1/chat/stream", s.chatHandler.HandleStream)
	mux.HandleFunc("GET /api/v1/chat/ws", s.chatHandler.HandleWebSocket)

	// 工具
	mux.HandleFunc("GET /api/v1/tools", s.toolsHandler.HandleList)
	mux.HandleFunc("POST /api/v1/tools/execute", s.toolsHandler.HandleExecute)

	return mux
}

// handler 构建中间件链
func (s *Server) handler(rateLimiterCtx context.Context) http.Handler {
	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		OTelTracing(s.telemetry.Tracer(telemetry.ScopeHTTP)),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares,
			RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}
	return Chain(s.routes(), middlewares...)
}

func (s *Server) startHTTPServer() error {
	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager("http", s.handler(rateLimiterCtx), serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}
	go s.forwardErrors(s.httpManager)
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort == 0 {
		s.logger.Info("Metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager("metrics", mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}
	go s.forwardErrors(s.metricsManager)
	return nil
}

func (s *Server) forwardErrors(m *server.Manager) {
	if err, ok := <-m.Errors(); ok && err != nil {
		select {
		case s.errCh <- err:
		default:
		}
	}
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Shutdown 优雅关闭所有服务。可以在部分初始化后调用。
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 HTTP 服务器（取消进行中的流）
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭存储与数据库
	for name, store := range map[string]persistence.Store{"message_store": s.messages, "task_store": s.tasks} {
		if store == nil {
			continue
		}
		if err := store.Close(); err != nil {
			s.logger.Error("Store close error", zap.String("store", name), zap.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Error("Database close error", zap.Error(err))
		}
	}

	// 4. 刷新遥测
	if err := s.telemetry.Shutdown(ctx); err != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
