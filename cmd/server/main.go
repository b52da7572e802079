package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xinstan/xinstan/internal/api"
	"github.com/xinstan/xinstan/internal/api/handler"
	"github.com/xinstan/xinstan/internal/config"
	"github.com/xinstan/xinstan/internal/downloader"
	"github.com/xinstan/xinstan/internal/proxy"
	"github.com/xinstan/xinstan/pkg/rapidapi"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("xinstan-server %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting xinstan server",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Initialize dependencies
	dl := downloader.NewHTTPDownloader(cfg.Proxy)
	dl.SetLogger(logger.With("component", "downloader"))
	proxySvc := proxy.NewService(dl, logger)
	converter := rapidapi.NewClient(cfg.Resolver, logger)

	if !converter.Configured() {
		logger.Warn("RAPIDAPI_KEY not set, resolve requests will fail")
	}

	// Initialize handlers
	proxyHandler := handler.NewProxyHandler(proxySvc, cfg.Proxy.CacheMaxAge, logger)
	resolveHandler := handler.NewResolveHandler(converter, logger)
	healthHandler := handler.NewHealthHandler(converter.Configured)

	// Setup router
	router := api.NewRouter(proxyHandler, resolveHandler, healthHandler, cfg.Server.RequestTimeout)

	// Setup HTTP server
	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")

		// Graceful shutdown; in-flight media streams get a bounded grace period
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	return group.Wait()
}
