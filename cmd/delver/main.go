// Delver research server accepts research runs over HTTP and streams
// progress events to subscribers.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/delverhq/delver/pkg/api"
	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/control"
	"github.com/delverhq/delver/pkg/crawl"
	"github.com/delverhq/delver/pkg/events"
	"github.com/delverhq/delver/pkg/llm"
	"github.com/delverhq/delver/pkg/research"
	"github.com/delverhq/delver/pkg/search"
	"github.com/delverhq/delver/pkg/service"
	"github.com/delverhq/delver/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("DELVER_CONFIG", "delver.yaml"),
		"Path to the YAML configuration file")
	envPath := flag.String("env", ".env", "Path to the .env file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envPath, "error", err)
	}

	slog.Info("Starting delver", "version", version.Full(), "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()
	registry := control.NewRegistry(cfg.Retention.TokenTTL, cfg.Retention.SweepInterval)
	registry.Start(ctx)
	defer registry.Stop()

	searcher := search.NewOrchestrator(
		search.BuildRegistry(cfg.SearchProviders),
		search.NewCache(0),
		cfg.Settings.SearchStrategy,
	)
	crawler := crawl.NewHTTPCrawler(cfg.Settings.CrawlerTimeout())
	router := llm.NewRouter(cfg)

	engine := research.NewEngine(cfg, bus, router, searcher, crawler, registry)
	manager := service.NewManager(engine, bus, registry)
	server := api.NewServer(cfg, manager, bus)

	if err := server.Start(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
