// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const assetTable = "campaign_assets"

// AssetRow is one row of the campaign_assets table.
type AssetRow struct {
	AssetID        string
	FileID         string
	FileName       string
	FileType       string
	MIMEType       string
	CampaignFolder string
	TenantID       string
	SizeBytes      sql.NullInt64
	ModifiedTime   sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AssetStore persists campaign assets. Writes upsert on the asset_id primary
// key; the (file_id, tenant_id) unique constraint makes repeated loads of
// regenerated asset ids converge to one row per physical file per tenant.
// All operations require a bound TenantContext and only touch rows whose
// tenant_id matches it.
type AssetStore struct {
	client *SQLClient
	logger *zap.Logger
}

// NewAssetStore creates an asset store over an open SQL client.
func NewAssetStore(client *SQLClient, logger *zap.Logger) *AssetStore {
	return &AssetStore{client: client, logger: logger}
}

// EnsureSchema creates the campaign_assets table and its indexes if absent.
func (s *AssetStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			asset_id CHAR(36) NOT NULL,
			file_id VARCHAR(128) NOT NULL,
			file_name TEXT NOT NULL,
			file_type VARCHAR(32) NOT NULL,
			mime_type VARCHAR(255) NOT NULL,
			campaign_folder VARCHAR(255) NOT NULL,
			tenant_id VARCHAR(64) NOT NULL,
			size_bytes BIGINT NULL,
			modified_time DATETIME NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (asset_id),
			UNIQUE KEY uq_%s_file_tenant (file_id, tenant_id),
			KEY idx_%s_tenant_id (tenant_id),
			KEY idx_%s_campaign_folder (campaign_folder),
			KEY idx_%s_file_type (file_type)
		)`, assetTable, assetTable, assetTable, assetTable, assetTable)

	if _, err := s.client.GetDB().ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure asset schema: %w", err)
	}
	return nil
}

// UpsertBatch submits one batch as a single multi-row upsert. Every row must
// carry the bound tenant id; a mismatch rejects the whole batch before any
// write. Returns the inserted/updated split for the batch.
func (s *AssetStore) UpsertBatch(ctx context.Context, tctx TenantContext, rows []AssetRow) (inserted, updated int, err error) {
	if err := tctx.check(); err != nil {
		return 0, 0, err
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}

	for _, r := range rows {
		if r.TenantID != tctx.TenantID() {
			return 0, 0, fmt.Errorf("row for tenant %q submitted under tenant context %q",
				r.TenantID, tctx.TenantID())
		}
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO " + assetTable + ` (
		asset_id, file_id, file_name, file_type, mime_type,
		campaign_folder, tenant_id, size_bytes, modified_time,
		created_at, updated_at
	) VALUES `)

	args := make([]interface{}, 0, len(rows)*11)
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			r.AssetID, r.FileID, r.FileName, r.FileType, r.MIMEType,
			r.CampaignFolder, r.TenantID, r.SizeBytes, r.ModifiedTime,
			r.CreatedAt, r.UpdatedAt)
	}

	// The duplicate-key clause fires on either the asset_id primary key or
	// the (file_id, tenant_id) unique key. asset_id is deliberately not
	// updated: a regenerated id colliding on (file_id, tenant_id) keeps the
	// row's original primary key.
	sb.WriteString(` ON DUPLICATE KEY UPDATE
		file_name = VALUES(file_name),
		file_type = VALUES(file_type),
		mime_type = VALUES(mime_type),
		campaign_folder = VALUES(campaign_folder),
		size_bytes = VALUES(size_bytes),
		modified_time = VALUES(modified_time),
		updated_at = VALUES(updated_at)`)

	res, err := s.client.GetDB().ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, 0, fmt.Errorf("batch upsert failed: %w", err)
	}

	// MySQL affected-rows semantics for upserts: 1 per inserted row, 2 per
	// updated row, 0 per row left unchanged. Derive the split from that and
	// clamp, since unchanged rows blur the identity.
	affected, err := res.RowsAffected()
	if err != nil {
		return len(rows), 0, nil
	}
	n := int64(len(rows))
	upd := affected - n
	if upd < 0 {
		upd = 0
	}
	if upd > n {
		upd = n
	}
	return int(n - upd), int(upd), nil
}

// Count returns the number of assets visible to the bound tenant.
func (s *AssetStore) Count(ctx context.Context, tctx TenantContext) (int64, error) {
	if err := tctx.check(); err != nil {
		return 0, err
	}

	var n int64
	query := "SELECT COUNT(*) FROM " + assetTable + " WHERE tenant_id = ?"
	if err := s.client.GetDB().QueryRowContext(ctx, query, tctx.TenantID()).Scan(&n); err != nil {
		return 0, fmt.Errorf("asset count failed: %w", err)
	}
	return n, nil
}

// ListByCampaign returns the bound tenant's assets for one campaign folder,
// ordered by file id.
func (s *AssetStore) ListByCampaign(ctx context.Context, tctx TenantContext, campaign string) ([]AssetRow, error) {
	if err := tctx.check(); err != nil {
		return nil, err
	}

	query := `SELECT asset_id, file_id, file_name, file_type, mime_type,
			campaign_folder, tenant_id, size_bytes, modified_time,
			created_at, updated_at
		FROM ` + assetTable + `
		WHERE tenant_id = ? AND campaign_folder = ?
		ORDER BY file_id`

	rows, err := s.client.GetDB().QueryContext(ctx, query, tctx.TenantID(), campaign)
	if err != nil {
		return nil, fmt.Errorf("asset list failed: %w", err)
	}
	defer rows.Close()

	var result []AssetRow
	for rows.Next() {
		var r AssetRow
		if err := rows.Scan(&r.AssetID, &r.FileID, &r.FileName, &r.FileType,
			&r.MIMEType, &r.CampaignFolder, &r.TenantID, &r.SizeBytes,
			&r.ModifiedTime, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan asset row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("asset row iteration error: %w", err)
	}

	return result, nil
}
