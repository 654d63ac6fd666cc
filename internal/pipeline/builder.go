// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

// Package pipeline drives the campaign-asset build: index the Drive tree
// export once, then walk the fixed node ordering resolving each node to its
// owning campaign folder and streaming resolved rows to the dataset, with
// periodic checkpoints for crash-safe resumption.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scout-analytics/asset-pipeline/internal/checkpoint"
	"github.com/scout-analytics/asset-pipeline/internal/config"
	"github.com/scout-analytics/asset-pipeline/internal/dataset"
	"github.com/scout-analytics/asset-pipeline/internal/tree"
	"go.uber.org/zap"
)

// Builder runs one build pass over a Drive tree export. Single-threaded and
// strictly staged: indexing completes before any resolution begins.
type Builder struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewBuilder creates a build pipeline.
func NewBuilder(cfg *config.Config, logger *zap.Logger) *Builder {
	return &Builder{cfg: cfg, logger: logger}
}

// Run executes the pipeline and returns the run statistics. A returned error
// is fatal (unparsable input, unusable output); the checkpoint file, if any,
// is left intact so a future run can resume. Per-row failures never abort the
// run; they are counted in the returned stats.
func (b *Builder) Run() (checkpoint.Stats, error) {
	var stats checkpoint.Stats

	nodes, err := tree.ParseFile(b.cfg.InputJSON)
	if err != nil {
		return stats, err
	}

	idx := tree.BuildIndex(nodes, tree.IndexConfig{
		FolderMIME:    b.cfg.FolderMIME,
		RootMarker:    b.cfg.RootMarker,
		TenantMap:     b.cfg.TenantMap,
		DefaultTenant: b.cfg.DefaultTenant,
	}, b.logger)

	cpm := checkpoint.NewManager(b.cfg.CheckpointPath)

	startIdx := 0
	resuming := false
	if b.cfg.Resume {
		cp, err := cpm.Load()
		if err != nil {
			return stats, err
		}
		if cp != nil {
			startIdx = cp.LastIdx + 1
			stats = cp.Stats
			resuming = true
			b.logger.Info("Resuming from checkpoint",
				zap.Int("start_idx", startIdx),
				zap.Time("saved_at", cp.Timestamp),
				zap.Int("processed", stats.Processed),
				zap.Int("skipped", stats.Skipped))
		} else {
			b.logger.Info("No checkpoint found, starting fresh run")
		}
	}
	stats.TotalFiles = idx.Len()

	// A resume request without a checkpoint on disk falls back to a fresh
	// run: the dataset is truncated and gets a new header.
	w, err := dataset.NewWriter(b.cfg.OutputCSV, resuming)
	if err != nil {
		return stats, err
	}

	order := idx.Order()
	sinceCheckpoint := 0
	for i, id := range order {
		if i < startIdx {
			continue
		}

		campaign, ok := idx.Resolve(id)
		if !ok {
			stats.Skipped++
			continue
		}

		rec := dataset.Record{
			AssetID:        uuid.NewString(),
			FileID:         id,
			FileName:       idx.Name(id),
			FileType:       b.cfg.FileTypeFor(idx.MIMEType(id)),
			MIMEType:       idx.MIMEType(id),
			CampaignFolder: campaign,
			TenantID:       idx.TenantFor(campaign, b.cfg.DefaultTenant),
			SizeBytes:      idx.Size(id),
			ModifiedTime:   idx.ModifiedTime(id),
			CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		}

		if err := w.Append(rec); err != nil {
			stats.Errors++
			b.logger.Warn("Failed to write dataset row",
				zap.String("file_id", id),
				zap.Error(err))
			continue
		}
		stats.Processed++
		sinceCheckpoint++

		if sinceCheckpoint >= b.cfg.CheckpointInterval {
			b.saveCheckpoint(cpm, w, i, stats)
			sinceCheckpoint = 0
		}
	}

	if err := w.Close(); err != nil {
		return stats, fmt.Errorf("failed to finalize dataset: %w", err)
	}

	// Clean completion: drop the checkpoint so the next run starts fresh.
	if err := cpm.Clear(); err != nil {
		b.logger.Warn("Failed to remove checkpoint file", zap.Error(err))
	}

	b.logger.Info("Build completed",
		zap.Int("total_files", stats.TotalFiles),
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors))

	return stats, nil
}

// saveCheckpoint flushes the dataset and persists progress. A checkpoint only
// covers rows already flushed to disk, so the flush happens first; a failed
// flush skips the save entirely. Save failures are logged and the run
// continues, trading a larger reprocessing window for forward progress.
func (b *Builder) saveCheckpoint(cpm *checkpoint.Manager, w *dataset.Writer, idx int, stats checkpoint.Stats) {
	if err := w.Flush(); err != nil {
		b.logger.Warn("Dataset flush failed, skipping checkpoint",
			zap.Int("last_idx", idx),
			zap.Error(err))
		return
	}
	if err := cpm.Save(idx, stats); err != nil {
		b.logger.Warn("Failed to save checkpoint",
			zap.Int("last_idx", idx),
			zap.Error(err))
		return
	}
	b.logger.Info("Checkpoint saved",
		zap.Int("last_idx", idx),
		zap.Int("processed", stats.Processed),
		zap.Int("total_files", stats.TotalFiles))
}
