package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/handlers"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/logger"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/rawio"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/services"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/utils"
)

const (
	appVersion      = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

// --- Main ---

func main() {
	configPath := flag.String("config", "", "path to config file (default: config.toml in . or ./config)")
	discover := flag.Bool("discover", false, "scan the local subnet for network printers and add them to the registry")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Config error:", err)
		os.Exit(1)
	}
	cfg.App.Version = appVersion

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *discover {
		if err := runDiscovery(ctx, cfg, log); err != nil {
			log.Fatal("printer discovery failed", zap.Error(err))
		}
		return
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("print bridge stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *model.Config, log *zap.Logger) error {
	log.Info("starting print bridge",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
		zap.String("mode", cfg.Print.Mode))

	// 1. Check the system can render receipts
	chromePath := cfg.Chrome.ExecPath
	if cfg.Print.Mode == services.ModeHTML && cfg.Chrome.RemoteURL == "" && chromePath == "" {
		info, err := utils.ValidateSystemRequirements(log, cfg.Print.Mode)
		if err != nil {
			return err
		}
		chromePath = info.ChromePath
	}

	// 2. Raw printing and the print service
	writer := rawio.New(rawio.Options{
		HelperTimeout: cfg.RawIO.HelperTimeout,
		TempDir:       cfg.RawIO.TempDir,
		LPPath:        cfg.RawIO.LPPath,
		SerialBaud:    cfg.RawIO.SerialBaud,
		Logger:        log,
	})
	log.Info("raw printing ready", zap.String("platform", writer.Platform().Name()))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, closeService, err := services.Build(cfg, chromePath, writer, registry, log)
	if err != nil {
		return fmt.Errorf("failed to build print service: %w", err)
	}
	defer closeService()

	// 3. HTTP API for the point of sale
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handlers.NewRouter(svc, registry, cfg.HTTP, cfg.App.Version, log),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// 4. Cloud agent
	var agent func(context.Context)
	if cfg.Agent.Enabled {
		agent = func(ctx context.Context) { runAgent(ctx, cfg, svc, log) }
	}

	fmt.Printf("--- Print bridge running on %s ---\n", cfg.HTTP.Addr)
	return serve(ctx, server, agent, log)
}

// serve runs the HTTP server and the optional agent until ctx ends or the
// server fails. Either way both are stopped before it returns.
func serve(ctx context.Context, server *http.Server, agent func(context.Context), log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if agent != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agent(ctx)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
		log.Error("http server failed", zap.Error(runErr))
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", zap.Error(err))
	}
	wg.Wait()
	return runErr
}

// runAgent obtains an agent key and keeps the WebSocket session alive until
// ctx ends.
func runAgent(ctx context.Context, cfg *model.Config, svc *services.Service, log *zap.Logger) {
	api := services.NewAPIClient(cfg.Agent.APIURL, cfg.Agent.APIKey)

	agentKey, err := services.EnsureAgentKey(ctx, cfg.Agent, api, svc.Directory(), log)
	if err != nil {
		log.Error("agent disabled, no agent key", zap.Error(err))
		return
	}
	services.NewAgent(cfg.Agent, agentKey, svc, log).Run(ctx)
}

func runDiscovery(ctx context.Context, cfg *model.Config, log *zap.Logger) error {
	printers, err := services.DiscoverPrinters(ctx, *cfg, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	if len(printers) == 0 {
		fmt.Println("No printers added.")
		return nil
	}
	if err := utils.SavePrinters(cfg.Printers.File, printers); err != nil {
		return err
	}
	log.Info("printers saved", zap.String("file", cfg.Printers.File), zap.Int("added", len(printers)))
	return nil
}
