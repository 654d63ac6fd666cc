// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/scout-analytics/asset-pipeline/internal/config"
	"github.com/scout-analytics/asset-pipeline/internal/loader"
	plog "github.com/scout-analytics/asset-pipeline/internal/log"
	"github.com/scout-analytics/asset-pipeline/internal/store"
	"github.com/scout-analytics/asset-pipeline/internal/util"
	"go.uber.org/zap"
)

// Exit codes: 0 full success, 1 fatal stage failure, 2 completed with
// partial errors.
const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

func main() {
	// Load configuration
	cfg, err := config.LoadLoaderConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitFatal)
	}

	// Initialize logger
	logger, err := plog.NewLogger(cfg.LogDir, "asset-load", cfg.Debug, cfg.StdoutLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(exitFatal)
	}

	logger.Info("Starting dataset load",
		zap.String("dataset", cfg.DatasetPath),
		zap.String("db_host", cfg.DBHost),
		zap.Int("batch_size", cfg.BatchSize))

	// Resolve the store password from Secrets Manager when configured.
	if cfg.DBSecret != "" {
		util.LoadAWSCredentialsFromVault()
		pwd, err := util.ResolveDBPassword(cfg.DBSecret, cfg.AWSRegion)
		if err != nil {
			logger.Error("Failed to resolve store password", zap.Error(err))
			fmt.Fprintf(os.Stderr, "Failed to resolve store password: %v\n", err)
			os.Exit(exitFatal)
		}
		cfg.DBPassword = pwd
	}

	client, err := connectWithRetry(cfg, logger)
	if err != nil {
		logger.Error("Store unreachable", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Store unreachable: %v\n", err)
		os.Exit(exitFatal)
	}
	defer client.Close()

	assets := store.NewAssetStore(client, logger)

	ctx, cancel := client.Context()
	err = assets.EnsureSchema(ctx)
	cancel()
	if err != nil {
		logger.Error("Failed to ensure store schema", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Failed to ensure store schema: %v\n", err)
		os.Exit(exitFatal)
	}

	ldr := loader.NewLoader(assets, cfg.BatchSize, logger)
	stats, err := ldr.Load(context.Background(), cfg.DatasetPath)
	if err != nil {
		logger.Error("Load failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Load failed: %v\n", err)
		os.Exit(exitFatal)
	}

	// Print summary
	fmt.Printf("\n=== Load Summary ===\n")
	fmt.Printf("Dataset: %s\n", cfg.DatasetPath)
	fmt.Printf("Total rows: %d\n", stats.Total)
	fmt.Printf("Inserted: %d\n", stats.Inserted)
	fmt.Printf("Updated: %d\n", stats.Updated)
	fmt.Printf("Errors: %d\n", stats.Errors)
	fmt.Printf("====================\n")

	logger.Info("Load finished",
		zap.Int("total", stats.Total),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("errors", stats.Errors))

	if stats.Errors > 0 {
		os.Exit(exitPartial)
	}
	os.Exit(exitOK)
}

// connectWithRetry validates the store connection with exponential backoff.
func connectWithRetry(cfg *config.Config, logger *zap.Logger) (*store.SQLClient, error) {
	var lastErr error
	delay := 1 * time.Second
	for attempt := 1; attempt <= 3; attempt++ {
		client, err := store.NewSQLClient(cfg.GetDBDSN(), cfg.DBTimeout)
		if err == nil {
			logger.Info("Connected to store", zap.String("db_host", cfg.DBHost))
			return client, nil
		}
		lastErr = err
		if attempt < 3 {
			logger.Warn("Store connection failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err))
			time.Sleep(delay)
			delay = delay * 2 // Exponential backoff
		}
	}
	return nil, fmt.Errorf("failed to connect to store after retries: %w", lastErr)
}
