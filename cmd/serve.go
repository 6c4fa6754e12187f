package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/codeguard/codeguard/internal/api"
	"github.com/codeguard/codeguard/internal/config"
	"github.com/codeguard/codeguard/internal/core"
	"github.com/codeguard/codeguard/internal/database"
	"github.com/codeguard/codeguard/internal/dynamic"
	"github.com/codeguard/codeguard/internal/jobs"
	"github.com/codeguard/codeguard/internal/linguistic"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/internal/orchestrator"
	"github.com/codeguard/codeguard/internal/sandbox"
	"github.com/codeguard/codeguard/internal/static"
	"github.com/codeguard/codeguard/internal/telemetry"
	"github.com/codeguard/codeguard/internal/worker"
	"github.com/codeguard/codeguard/pkg/ai"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the codeguard HTTP API server",
	Long: `Start the HTTP API server.

The server answers POST /api/analyze with a preliminary record in
under two seconds and completes the linguistic stage in the
background; callers poll GET /api/analysis/{id} until the record's
status is "complete".

Example:
  codeguard serve --port 8080
  codeguard serve --config config.yaml`,
	RunE: runServe,
}

var (
	servePort int
	serveHost string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log = log.WithComponent("server")

	store, err := database.NewStore(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	orch, pool, queue, err := buildPipeline(cfg, store, log)
	if err != nil {
		return err
	}
	defer queue.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pool.Start(ctx, cfg.Worker.Count); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	defer pool.Stop()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.LoggingMiddleware(log))
	if cfg.Server.EnableCORS {
		router.Use(api.CORSMiddleware())
	}

	router.GET("/health", func(c *gin.Context) {
		healthy := true
		checks := map[string]interface{}{}

		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.DB().PingContext(pingCtx); err != nil {
			healthy = false
			checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
		} else {
			checks["database"] = map[string]interface{}{"status": "healthy", "driver": cfg.Database.Driver}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"healthy": healthy, "checks": checks, "timestamp": time.Now().Unix()})
	})

	apiGroup := router.Group("/api")
	apiGroup.Use(api.RateLimitMiddleware(cfg.Security.RateLimit))
	api.NewHandlers(orch, store, log).Register(apiGroup)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infow("HTTP server listening", "address", addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

// buildPipeline wires the analyzers, queue, orchestrator, and worker
// pool from configuration.
func buildPipeline(cfg *config.Config, store *database.Store, log *logger.Logger) (*orchestrator.Orchestrator, core.WorkerPool, core.JobQueue, error) {
	executor, err := sandbox.New(cfg.Sandbox, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize sandbox: %w", err)
	}

	aiClient, err := ai.NewClient(cfg.AI, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize AI client: %w", err)
	}

	queue, err := jobs.New(cfg.Queue, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize job queue: %w", err)
	}

	tel, err := telemetry.New(context.Background(), cfg.Telemetry)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	orch := orchestrator.New(
		store,
		queue,
		static.NewAnalyzer(log),
		dynamic.NewAnalyzer(executor, log),
		linguistic.NewAnalyzer(aiClient, log),
		tel,
		log,
	)

	pool := worker.NewPool(queue, orch, cfg.Worker.QueuePollInterval, log)
	return orch, pool, queue, nil
}
