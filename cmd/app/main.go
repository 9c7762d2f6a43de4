package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"SybilScan/internal/di"
	"SybilScan/internal/domain/models"
	"SybilScan/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s store=%s keys=%s kafka=%t clickhouse=%t",
		cfg.Environment, cfg.Store.Type, cfg.Keys.Type, cfg.Kafka.Enabled, cfg.ClickHouse.Enabled)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Warm up the scoring path once so the first request does not pay for it.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := app.Jobs().Score(ctx, models.ZeroAddress, ""); err != nil {
		log.Printf("warm-up failed: %v", err)
	}
	cancel()
	log.Printf("model=%s ready", app.Jobs().ModelName())

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
