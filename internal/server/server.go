package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/agent"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/agent/release"
	apihttp "github.com/Faizanmal/Mult-Agent-sub002/internal/api/http"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/api/middleware"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/api/ws"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/connectivity"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/config"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/logging"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/monitoring"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/tracing"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/install"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/lifecycle"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/paths"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/storage"
)

// Version is the daemon release version. Overridden at build time with
// -ldflags "-X .../internal/server.Version=...".
var Version = "0.3.0"

// Server assembles the daemon: connectivity monitor, agent registrar,
// install flow, storage manager, the lifecycle coordinator folding them
// together, and the HTTP surface on top.
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer

	monitor   *connectivity.Monitor
	registrar *agent.Registrar
	watcher   *release.Watcher
	updater   *release.Updater
	coord     *lifecycle.Coordinator

	router     *gin.Engine
	httpServer *http.Server

	sub      *lifecycle.Subscription
	bgCancel context.CancelFunc
}

// New wires the daemon from configuration. Nothing runs until Run.
func New(cfg *config.Config) (*Server, error) {
	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	logger.Info("initializing daemon",
		zap.String("version", Version),
		zap.String("addr", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)),
		zap.String("data_dir", cfg.Agent.DataDir),
	)

	if cfg.Agent.DataDir != "" {
		layout := paths.New(cfg.Agent.DataDir)
		for _, dir := range layout.StandardDirectories() {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create %s: %w", dir, err)
			}
		}
	}

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("workspaced", logger.Logger)

	var prober connectivity.Prober
	if cfg.Upstream.BaseURL != "" {
		prober = connectivity.NewHTTPProber(
			cfg.Upstream.BaseURL,
			cfg.Upstream.ProbePath,
			cfg.Upstream.ProbeTimeout,
		)
	}
	monitor := connectivity.NewMonitor(
		prober,
		cfg.Upstream.ProbeInterval,
		logger.Named("connectivity").Logger,
		metrics,
	)

	releases := release.NewStore(cfg.Agent.ReleasesDir, logger.Named("release").Logger)
	watcher := release.NewWatcher(releases, logger.Named("release").Logger)

	var updater *release.Updater
	if cfg.Agent.UpdateURL != "" {
		updater = release.NewUpdater(cfg.Agent.UpdateURL, releases, logger.Named("updater").Logger)
	}

	registrar := agent.NewRegistrar(
		agent.Config{
			Binary:         cfg.Agent.Binary,
			DataDir:        cfg.Agent.DataDir,
			BridgeURL:      bridgeURL(cfg.Server.Host, cfg.Server.Port),
			UpstreamURL:    cfg.Upstream.BaseURL,
			RestartBackoff: cfg.Agent.RestartBackoff,
		},
		releases,
		nil,
		logger.Named("agent").Logger,
		metrics,
	)

	desktop := install.NewDesktop(
		install.DesktopOptions{
			ApplicationsDir: cfg.Install.ApplicationsDir,
			ID:              cfg.Install.DesktopID,
			Name:            cfg.Install.Name,
			Exec:            cfg.Install.Exec,
		},
		logger.Named("install").Logger,
	)
	flow := install.NewFlow(desktop, logger.Named("install").Logger, metrics)

	var platform storage.Platform
	if cfg.Storage.Root != "" {
		platform = storage.NewDisk(
			storage.DiskOptions{
				Root:       cfg.Storage.Root,
				Exclude:    cfg.Storage.Exclude,
				QuotaBytes: cfg.Storage.QuotaBytes,
			},
			logger.Named("storage").Logger,
		)
	}
	manager := storage.NewManager(platform, logger.Named("storage").Logger, metrics)

	coord := lifecycle.New(lifecycle.Options{
		Monitor:   monitor,
		Registrar: registrar,
		Flow:      flow,
		Storage:   manager,
		Logger:    logger.Named("lifecycle").Logger,
		Metrics:   metrics,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(
		coord,
		registrar,
		manager,
		apihttp.NewStatsAggregator(metrics),
		logger.Named("api").Logger,
		Version,
	)
	stream := ws.NewStream(coord, logger.Named("stream").Logger, metrics)
	channel := ws.NewChannel(registrar, logger.Named("bridge").Logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/v1/lifecycle", handlers.Lifecycle)
	router.GET("/v1/lifecycle/stream", stream.Handle)
	router.POST("/v1/install", handlers.Install)
	router.POST("/v1/update/apply", handlers.ApplyUpdate)
	router.POST("/v1/cache/workflows", handlers.CacheWorkflows)
	router.POST("/v1/cache/tasks", handlers.CacheTasks)
	router.POST("/v1/storage/persist", handlers.StoragePersist)
	router.GET("/v1/storage/estimate", handlers.StorageEstimate)
	router.GET("/v1/agent/channel", channel.Handle)

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		monitor:   monitor,
		registrar: registrar,
		watcher:   watcher,
		updater:   updater,
		coord:     coord,
		router:    router,
		httpServer: &http.Server{
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	logger.Info("daemon initialized")
	return srv, nil
}

// Coordinator exposes the lifecycle coordinator, mainly for tests.
func (s *Server) Coordinator() *lifecycle.Coordinator {
	return s.coord
}

// Run starts background plumbing and serves HTTP until Shutdown or a
// listener error.
func (s *Server) Run() error {
	addr := net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	if s.cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.Server.MaxConns)
	}

	bg, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel
	s.httpServer.BaseContext = func(net.Listener) context.Context { return bg }

	go s.watcher.Run(bg)
	go s.registrar.WatchUpdates(bg, s.watcher.Updates())
	if s.updater != nil {
		go s.updater.Run(bg, s.cfg.Agent.UpdateInterval)
	}

	// The daemon holds its own subscription so the coordinator runs for
	// the daemon's whole life rather than only while consumers are
	// attached. This is also what launches the supervised agent.
	s.sub = s.coord.Subscribe()
	go s.observe()

	s.logger.Info("daemon listening", zap.String("addr", addr))
	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// observe drains the daemon's own subscription, logging transitions.
func (s *Server) observe() {
	for u := range s.sub.Updates() {
		s.logger.Debug("lifecycle state",
			zap.Bool("online", u.State.IsOnline),
			zap.String("sync_status", string(u.State.SyncStatus)),
			zap.Int("pending_actions", u.State.PendingActions),
			zap.Bool("update_available", u.State.UpdateAvailable),
			zap.Bool("reload", u.Reload),
		)
	}
}

// Shutdown stops the daemon: drains HTTP, releases stream connections,
// tears the coordinator down and stops the supervised agent. The
// context bounds the HTTP drain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("daemon shutting down")

	err := s.httpServer.Shutdown(ctx)

	// Cancelling the base context releases hijacked stream connections
	// and stops the release plumbing.
	if s.bgCancel != nil {
		s.bgCancel()
	}
	if s.sub != nil {
		s.sub.Cancel()
	}

	// The agent must not outlive the daemon, even if a straggling
	// subscriber kept the coordinator alive past the cancel above.
	s.registrar.Stop()

	s.tracer.Close()
	_ = s.logger.Sync()
	return err
}

// bridgeURL is the loopback endpoint handed to the agent for dialing
// back into the daemon.
func bridgeURL(host, port string) string {
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("ws://%s/v1/agent/channel", net.JoinHostPort(host, port))
}
