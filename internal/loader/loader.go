// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

// Package loader validates the intermediate dataset and upserts it into the
// tenant-scoped asset store in fixed-size batches.
package loader

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/scout-analytics/asset-pipeline/internal/dataset"
	"github.com/scout-analytics/asset-pipeline/internal/store"
	"go.uber.org/zap"
)

// LoadStats summarizes one load run.
type LoadStats struct {
	Total    int
	Inserted int
	Updated  int
	Errors   int
}

// AssetUpserter is the store surface the loader needs. Satisfied by
// *store.AssetStore; mockable in tests.
type AssetUpserter interface {
	UpsertBatch(ctx context.Context, tctx store.TenantContext, rows []store.AssetRow) (inserted, updated int, err error)
}

// Loader reads a dataset row-by-row, drops invalid rows, and submits valid
// ones as per-tenant batch upserts. Row and batch failures are counted and
// never abort the run.
type Loader struct {
	store     AssetUpserter
	batchSize int
	logger    *zap.Logger
}

// NewLoader creates a loader submitting batches of batchSize rows.
func NewLoader(st AssetUpserter, batchSize int, logger *zap.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Loader{store: st, batchSize: batchSize, logger: logger}
}

// Load processes the dataset at datasetPath. A returned error is fatal
// (dataset unreadable); validation and batch failures only show up in the
// returned stats.
func (l *Loader) Load(ctx context.Context, datasetPath string) (LoadStats, error) {
	var stats LoadStats

	r, err := dataset.NewReader(datasetPath)
	if err != nil {
		return stats, err
	}
	defer r.Close()

	// Rows are grouped by tenant so every store call runs under exactly one
	// bound tenant context.
	batches := make(map[string][]store.AssetRow)

	for {
		row, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Total++
				stats.Errors++
				l.logger.Warn("Dropping malformed dataset row", zap.Error(err))
				continue
			}
			return stats, err
		}
		stats.Total++

		rec, err := validateRow(row)
		if err != nil {
			stats.Errors++
			l.logger.Warn("Dropping invalid dataset row",
				zap.String("asset_id", row["asset_id"]),
				zap.String("file_id", row["file_id"]),
				zap.Error(err))
			continue
		}

		batches[rec.TenantID] = append(batches[rec.TenantID], rec)
		if len(batches[rec.TenantID]) >= l.batchSize {
			l.submit(ctx, rec.TenantID, batches[rec.TenantID], &stats)
			batches[rec.TenantID] = nil
		}
	}

	for tenant, batch := range batches {
		if len(batch) > 0 {
			l.submit(ctx, tenant, batch, &stats)
		}
	}

	l.logger.Info("Load completed",
		zap.Int("total", stats.Total),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("errors", stats.Errors))

	return stats, nil
}

// submit upserts one batch. A failed batch counts every row in it as an
// error and the load moves on; there is no per-row retry and no cross-batch
// transaction.
func (l *Loader) submit(ctx context.Context, tenant string, batch []store.AssetRow, stats *LoadStats) {
	tctx, err := store.NewTenantContext(tenant)
	if err != nil {
		stats.Errors += len(batch)
		l.logger.Error("Skipping batch with unusable tenant",
			zap.String("tenant_id", tenant),
			zap.Int("rows", len(batch)))
		return
	}

	inserted, updated, err := l.store.UpsertBatch(ctx, tctx, batch)
	if err != nil {
		stats.Errors += len(batch)
		l.logger.Error("Batch upsert failed",
			zap.String("tenant_id", tenant),
			zap.Int("rows", len(batch)),
			zap.Error(err))
		return
	}

	stats.Inserted += inserted
	stats.Updated += updated
	l.logger.Info("Batch upserted",
		zap.String("tenant_id", tenant),
		zap.Int("rows", len(batch)),
		zap.Int("inserted", inserted),
		zap.Int("updated", updated))
}

var requiredFields = []string{
	"asset_id", "file_id", "file_name", "file_type",
	"mime_type", "campaign_folder", "tenant_id",
}

// validateRow checks a raw dataset row and converts it to a store row.
func validateRow(row dataset.Row) (store.AssetRow, error) {
	var rec store.AssetRow

	for _, f := range requiredFields {
		if row[f] == "" {
			return rec, fmt.Errorf("missing required field %q", f)
		}
	}

	if _, err := uuid.Parse(row["asset_id"]); err != nil {
		return rec, fmt.Errorf("invalid asset_id %q: %w", row["asset_id"], err)
	}

	rec = store.AssetRow{
		AssetID:        row["asset_id"],
		FileID:         row["file_id"],
		FileName:       row["file_name"],
		FileType:       row["file_type"],
		MIMEType:       row["mime_type"],
		CampaignFolder: row["campaign_folder"],
		TenantID:       row["tenant_id"],
		UpdatedAt:      time.Now().UTC(),
	}

	if v := row["size_bytes"]; v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return rec, fmt.Errorf("invalid size_bytes %q", v)
		}
		rec.SizeBytes = sql.NullInt64{Int64: n, Valid: true}
	}

	if v := row["modified_time"]; v != "" {
		t, err := parseTimestamp(v)
		if err != nil {
			return rec, fmt.Errorf("invalid modified_time %q", v)
		}
		rec.ModifiedTime = sql.NullTime{Time: t, Valid: true}
	}

	if v := row["created_at"]; v != "" {
		t, err := parseTimestamp(v)
		if err != nil {
			return rec, fmt.Errorf("invalid created_at %q", v)
		}
		rec.CreatedAt = t
	} else {
		rec.CreatedAt = time.Now().UTC()
	}

	return rec, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(v string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}
