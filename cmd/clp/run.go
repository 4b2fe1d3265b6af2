package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"clp/pkg/cli"
	"clp/pkg/config"
	"clp/pkg/configstore"
	"clp/pkg/configwatch"
	"clp/pkg/engine"
	"clp/pkg/filters"
	"clp/pkg/hub"
	"clp/pkg/loadbalancer"
	"clp/pkg/logindex"
	"clp/pkg/requestlog"
	"clp/pkg/router"
	"clp/pkg/security/auth"
	"clp/pkg/server"
	"clp/pkg/telemetry/logging"
	"clp/pkg/telemetry/metrics"
)

var runFlags struct {
	listenClaude string
	listenCodex  string
	logLevel     string
	dryRun       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the claude and codex proxy listeners",
	Long: `Start clp's proxy listeners for each configured AI service.

Each listener proxies requests through the block check, router, load
balancer, and streaming exchange, then forwards the response to the
client while publishing realtime events and appending to the request log.

Examples:
  # Start with the default config
  clp run

  # Start with a custom config
  clp run --config /etc/clp/clp.yaml

  # Override a single listen address
  clp run --listen-claude 0.0.0.0:3210

  # Validate config without starting the listeners
  clp run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.listenClaude, "listen-claude", "", "override the claude service listen address")
	runCmd.Flags().StringVar(&runFlags.listenCodex, "listen-codex", "", "override the codex service listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the listeners")
}

// expandHome resolves a leading "~" to the current user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if runFlags.listenClaude != "" {
		cfg.Services.Claude.Listen = runFlags.listenClaude
	}
	if runFlags.listenCodex != "" {
		cfg.Services.Codex.Listen = runFlags.listenCodex
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}

	logWrapper, err := logging.New(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		AddSource:      cfg.Logging.AddSource,
		RedactPII:      cfg.Logging.RedactPII,
		BufferSize:     cfg.Logging.BufferSize,
		RedactPatterns: cfg.Logging.RedactPatterns,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logWrapper.Shutdown()
	logger := logWrapper.Slog()
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	storeDir := expandHome(cfg.StoreDir)
	if err := os.MkdirAll(filepath.Join(storeDir, "data"), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	configStore := configstore.NewStore(storeDir)
	blocker := filters.NewBlocker(filepath.Join(storeDir, "endpoint_filter.json"), logger)
	headerStripper := filters.NewHeaderStripper(filepath.Join(storeDir, "header_filter.json"), logger)
	bodyRewriter := filters.NewBodyRewriter(filepath.Join(storeDir, "filter.json"), logger)
	modelRouter := router.NewRouter(filepath.Join(storeDir, "data", "model_router_config.json"), logger)
	lb := loadbalancer.NewLoadBalancer(filepath.Join(storeDir, "data", "lb_config.json"), logger)
	realtimeHub := hub.New()
	authStore := auth.NewStore(filepath.Join(storeDir, "auth.json"))

	var metricsCollector *metrics.Collector
	if cfg.Metrics.Enabled {
		metricsCollector = metrics.NewCollector(&cfg.Metrics, prometheus.NewRegistry())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if metricsCollector != nil {
		go serveMetrics(ctx, cfg.Metrics, metricsCollector, logger)
	}

	if watcher, err := configwatch.NewFileWatcher(configwatch.DefaultFileWatcherConfig(), logger); err != nil {
		logger.Warn("failed to start config file watcher, falling back to on-access reload only", "error", err)
	} else {
		go func() {
			if err := watcher.Watch(ctx, func() error {
				logger.Debug("detected a change under the store directory", "dir", storeDir)
				return nil
			}); err != nil {
				logger.Warn("config file watcher stopped", "error", err)
			}
		}()
	}

	services := []struct {
		name   string
		listen config.ServiceListenConfig
	}{
		{"claude", cfg.Services.Claude},
		{"codex", cfg.Services.Codex},
	}

	var indexes []logindex.Storage
	var pruners []*logindex.Pruner
	defer func() {
		for _, p := range pruners {
			p.Stop()
		}
		for _, idx := range indexes {
			if err := idx.Close(); err != nil {
				logger.Warn("failed to close log index", "error", err)
			}
		}
	}()

	servers := make([]*server.ServiceServer, 0, len(services))
	for _, svc := range services {
		requestLog := requestlog.New(filepath.Join(storeDir, "data", fmt.Sprintf("proxy_requests_%s.jsonl", svc.name)), logger)

		index, err := logindex.NewSQLiteStorage(&logindex.SQLiteConfig{
			Path:         filepath.Join(storeDir, "data", fmt.Sprintf("logindex_%s.db", svc.name)),
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			WALMode:      true,
			BusyTimeout:  5 * time.Second,
		})
		if err != nil {
			logger.Warn("failed to open log index, exports and range queries will be unavailable", "service", svc.name, "error", err)
		} else {
			requestLog.SetIndex(index)
			indexes = append(indexes, index)

			pruner := logindex.NewPruner(index, logindex.DefaultRetentionConfig())
			if err := pruner.Start(); err != nil {
				logger.Warn("failed to start log index retention pruner", "service", svc.name, "error", err)
			} else {
				pruners = append(pruners, pruner)
			}
		}

		eng := engine.New(engine.Options{
			Service:        svc.name,
			ConfigStore:    configStore,
			Blocker:        blocker,
			HeaderStripper: headerStripper,
			BodyRewriter:   bodyRewriter,
			Router:         modelRouter,
			LoadBalancer:   lb,
			Hub:            realtimeHub,
			Log:            requestLog,
			Metrics:        metricsCollector,
			Logger:         logger,
		})

		validator, err := authStore.Validator()
		if err != nil {
			logger.Warn("failed to load auth tokens, denying all requests while auth is enabled", "error", err)
			validator = auth.NewTokenValidator(nil)
		}

		var logsHandler http.Handler
		if index != nil {
			logsHandler = logindex.ServeExport(index, svc.name, logger)
		}

		srv := server.NewServiceServer(server.Options{
			Name:        svc.name,
			Listen:      svc.listen,
			Engine:      eng,
			Realtime:    realtimeHub.ServeWS(svc.name, logger),
			Logs:        logsHandler,
			Validator:   validator,
			AuthEnabled: cfg.Auth.Enabled,
		})
		servers = append(servers, srv)
	}

	// ServiceServer.Start blocks until ctx is cancelled, an OS shutdown
	// signal arrives, or the listener itself fails; it handles its own
	// graceful shutdown in every case, so run only has to fan out the
	// cancellation and wait for every listener to actually stop.
	var wg sync.WaitGroup
	errChan := make(chan error, len(servers))
	for i, svc := range services {
		wg.Add(1)
		go func(name string, s *server.ServiceServer) {
			defer wg.Done()
			if err := s.Start(ctx); err != nil {
				errChan <- fmt.Errorf("%s: %w", name, err)
			}
		}(svc.name, servers[i])
	}

	fmt.Println()
	for _, svc := range services {
		fmt.Printf("✓ %s listening on %s\n", svc.name, svc.listen.Listen)
	}
	if metricsCollector != nil {
		fmt.Printf("✓ Metrics listening on %s%s\n", cfg.Metrics.Listen, cfg.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		cancel()
		return cli.NewCommandError("run", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()
		wg.Wait()
		fmt.Println("✓ Server stopped")
		return nil
	}
}

func serveMetrics(ctx context.Context, cfg config.MetricsConfig, collector *metrics.Collector, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: cfg.Listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server error", "error", err)
	}
}
