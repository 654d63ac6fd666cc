// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/scout-analytics/asset-pipeline/internal/config"
	plog "github.com/scout-analytics/asset-pipeline/internal/log"
	"github.com/scout-analytics/asset-pipeline/internal/pipeline"
	"github.com/scout-analytics/asset-pipeline/internal/s3arc"
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
	cfg, err := config.LoadBuildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitFatal)
	}

	// Initialize logger
	logger, err := plog.NewLogger(cfg.LogDir, "asset-build", cfg.Debug, cfg.StdoutLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(exitFatal)
	}

	logger.Info("Starting dataset build",
		zap.String("input", cfg.InputJSON),
		zap.String("output", cfg.OutputCSV),
		zap.Bool("resume", cfg.Resume))

	builder := pipeline.NewBuilder(cfg, logger)
	stats, err := builder.Run()
	if err != nil {
		// Fatal errors leave the checkpoint file intact for a future resume.
		logger.Error("Build failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(exitFatal)
	}

	archiveFailed := false
	var s3Key string
	if cfg.S3Bucket != "" {
		uploader, err := s3arc.NewUploader(cfg, logger)
		if err != nil {
			logger.Error("Failed to create S3 uploader", zap.Error(err))
			archiveFailed = true
		} else {
			s3Key, err = uploader.ArchiveDataset(context.Background(), cfg.OutputCSV)
			if err != nil {
				logger.Error("Failed to archive dataset to S3", zap.Error(err))
				archiveFailed = true
			} else {
				logger.Info("Dataset archived to S3", zap.String("s3_key", s3Key))
			}
		}
	}

	// Print summary
	fmt.Printf("\n=== Build Summary ===\n")
	fmt.Printf("Input: %s\n", cfg.InputJSON)
	fmt.Printf("Dataset: %s\n", cfg.OutputCSV)
	fmt.Printf("Total files: %d\n", stats.TotalFiles)
	fmt.Printf("Processed: %d\n", stats.Processed)
	fmt.Printf("Skipped (no campaign ancestor): %d\n", stats.Skipped)
	fmt.Printf("Errors: %d\n", stats.Errors)
	if cfg.S3Bucket != "" {
		if archiveFailed {
			fmt.Printf("S3 archive: FAILED (dataset is complete locally)\n")
		} else {
			fmt.Printf("S3 archive: s3://%s/%s\n", cfg.S3Bucket, s3Key)
		}
	}
	if !cfg.Quiet {
		fmt.Printf("\nNext step: load the dataset into the store:\n")
		fmt.Printf("  asset-load -dataset %s -db-host <host>\n", cfg.OutputCSV)
	}
	fmt.Printf("=====================\n")

	logger.Info("Build finished",
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors))

	if stats.Errors > 0 || archiveFailed {
		os.Exit(exitPartial)
	}
	os.Exit(exitOK)
}
