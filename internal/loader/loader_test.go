// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scout-analytics/asset-pipeline/internal/dataset"
	"github.com/scout-analytics/asset-pipeline/internal/store"
	"go.uber.org/zap/zaptest"
)

// mockUpserter records submitted batches; optionally fails selected tenants.
type mockUpserter struct {
	batches     []submittedBatch
	failTenants map[string]bool
}

type submittedBatch struct {
	tenant string
	rows   []store.AssetRow
}

func (m *mockUpserter) UpsertBatch(ctx context.Context, tctx store.TenantContext, rows []store.AssetRow) (int, int, error) {
	if m.failTenants[tctx.TenantID()] {
		return 0, 0, fmt.Errorf("simulated batch failure for tenant %s", tctx.TenantID())
	}
	for _, r := range rows {
		if r.TenantID != tctx.TenantID() {
			return 0, 0, fmt.Errorf("row tenant %q does not match context %q", r.TenantID, tctx.TenantID())
		}
	}
	m.batches = append(m.batches, submittedBatch{tenant: tctx.TenantID(), rows: rows})
	return len(rows), 0, nil
}

const validUUID = "7c2f8a8e-3b1d-4d5a-9f6e-2b7c8d9e0f1a"

func writeDataset(t *testing.T, rows []dataset.Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	w, err := dataset.NewWriter(path, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if err := w.Append(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func validRecord(assetID, fileID, tenant string) dataset.Record {
	return dataset.Record{
		AssetID:        assetID,
		FileID:         fileID,
		FileName:       "brief.pdf",
		FileType:       "pdf",
		MIMEType:       "application/pdf",
		CampaignFolder: "Summer Launch",
		TenantID:       tenant,
		SizeBytes:      2048,
		ModifiedTime:   "2024-03-01T10:00:00Z",
		CreatedAt:      "2024-06-01T00:00:00Z",
	}
}

func TestLoad_ValidRows(t *testing.T) {
	path := writeDataset(t, []dataset.Record{
		validRecord(validUUID, "f1", "scout"),
		validRecord("8d3f9b9f-4c2e-4e6b-a07f-3c8d9e0f1a2b", "f2", "scout"),
	})

	mock := &mockUpserter{}
	stats, err := NewLoader(mock, 1000, zaptest.NewLogger(t)).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}

	if stats.Total != 2 || stats.Inserted != 2 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want Total=2 Inserted=2 Errors=0", stats)
	}
	if len(mock.batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(mock.batches))
	}
	if mock.batches[0].rows[0].ModifiedTime.Valid == false {
		t.Error("modified_time should be parsed into a valid sql.NullTime")
	}
	if mock.batches[0].rows[0].SizeBytes.Int64 != 2048 {
		t.Errorf("size_bytes = %d, want 2048", mock.batches[0].rows[0].SizeBytes.Int64)
	}
}

func TestLoad_ValidationDropsMalformedRows(t *testing.T) {
	missingTenant := validRecord("9e4f0c0f-5d3e-4f7c-b18f-4d9e0f1a2b3c", "f-no-tenant", "scout")
	missingTenant.TenantID = ""

	badUUID := validRecord("not-a-uuid", "f-bad-uuid", "scout")

	badTime := validRecord("af5f1d1f-6e4f-4a8d-c29f-5e0f1a2b3c4d", "f-bad-time", "scout")
	badTime.ModifiedTime = "yesterday-ish"

	rows := []dataset.Record{
		validRecord(validUUID, "f-ok", "scout"),
		missingTenant,
		badUUID,
		badTime,
	}
	path := writeDataset(t, rows)

	mock := &mockUpserter{}
	stats, err := NewLoader(mock, 1000, zaptest.NewLogger(t)).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if stats.Errors != 3 {
		t.Errorf("Errors = %d, want 3", stats.Errors)
	}
	if stats.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1; valid rows must still load", stats.Inserted)
	}
	if len(mock.batches) != 1 || len(mock.batches[0].rows) != 1 {
		t.Fatalf("expected exactly the valid row to be submitted, got %+v", mock.batches)
	}
	if mock.batches[0].rows[0].FileID != "f-ok" {
		t.Errorf("submitted row file_id = %q, want f-ok", mock.batches[0].rows[0].FileID)
	}
}

func TestLoad_BadUUIDVariants(t *testing.T) {
	tests := []struct {
		name    string
		assetID string
		wantOK  bool
	}{
		{"canonical uuid", validUUID, true},
		{"empty", "", false},
		{"truncated", "7c2f8a8e-3b1d-4d5a", false},
		{"random text", "hello-world", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord(tt.assetID, "f1", "scout")
			row := dataset.Row{
				"asset_id":        rec.AssetID,
				"file_id":         rec.FileID,
				"file_name":       rec.FileName,
				"file_type":       rec.FileType,
				"mime_type":       rec.MIMEType,
				"campaign_folder": rec.CampaignFolder,
				"tenant_id":       rec.TenantID,
			}
			_, err := validateRow(row)
			if (err == nil) != tt.wantOK {
				t.Errorf("validateRow() error = %v, wantOK %v", err, tt.wantOK)
			}
		})
	}
}

func TestLoad_BatchFailureCountsWholeBatchAndContinues(t *testing.T) {
	path := writeDataset(t, []dataset.Record{
		validRecord("7c2f8a8e-3b1d-4d5a-9f6e-2b7c8d9e0f1a", "f1", "doomed"),
		validRecord("8d3f9b9f-4c2e-4e6b-a07f-3c8d9e0f1a2b", "f2", "doomed"),
		validRecord("9e4f0c0f-5d3e-4f7c-b18f-4d9e0f1a2b3c", "f3", "scout"),
	})

	mock := &mockUpserter{failTenants: map[string]bool{"doomed": true}}
	stats, err := NewLoader(mock, 1000, zaptest.NewLogger(t)).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}

	if stats.Errors != 2 {
		t.Errorf("Errors = %d, want 2 (whole failed batch)", stats.Errors)
	}
	if stats.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1 (other tenant's batch still loads)", stats.Inserted)
	}
}

func TestLoad_BatchSizeSplitsSubmissions(t *testing.T) {
	var recs []dataset.Record
	for i := 0; i < 5; i++ {
		recs = append(recs, validRecord(
			fmt.Sprintf("7c2f8a8e-3b1d-4d5a-9f6e-2b7c8d9e0f%02d", i), fmt.Sprintf("f%d", i), "scout"))
	}
	path := writeDataset(t, recs)

	mock := &mockUpserter{}
	stats, err := NewLoader(mock, 2, zaptest.NewLogger(t)).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}

	if stats.Inserted != 5 {
		t.Errorf("Inserted = %d, want 5", stats.Inserted)
	}
	// 2 + 2 + trailing 1
	if len(mock.batches) != 3 {
		t.Errorf("expected 3 batch submissions, got %d", len(mock.batches))
	}
}

func TestLoad_RowsGroupedByTenant(t *testing.T) {
	path := writeDataset(t, []dataset.Record{
		validRecord("7c2f8a8e-3b1d-4d5a-9f6e-2b7c8d9e0f1a", "f1", "tenant-a"),
		validRecord("8d3f9b9f-4c2e-4e6b-a07f-3c8d9e0f1a2b", "f2", "tenant-b"),
		validRecord("9e4f0c0f-5d3e-4f7c-b18f-4d9e0f1a2b3c", "f3", "tenant-a"),
	})

	mock := &mockUpserter{}
	if _, err := NewLoader(mock, 1000, zaptest.NewLogger(t)).Load(context.Background(), path); err != nil {
		t.Fatalf("Load(): %v", err)
	}

	perTenant := map[string]int{}
	for _, b := range mock.batches {
		perTenant[b.tenant] += len(b.rows)
		for _, r := range b.rows {
			if r.TenantID != b.tenant {
				t.Errorf("batch for %q contains row for tenant %q", b.tenant, r.TenantID)
			}
		}
	}
	if perTenant["tenant-a"] != 2 || perTenant["tenant-b"] != 1 {
		t.Errorf("per tenant rows = %v, want tenant-a:2 tenant-b:1", perTenant)
	}
}

func TestLoad_MissingDatasetIsFatal(t *testing.T) {
	mock := &mockUpserter{}
	_, err := NewLoader(mock, 1000, zaptest.NewLogger(t)).Load(
		context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil {
		t.Error("Load() on a missing dataset should fail")
	}
}

func TestLoad_MalformedCSVRowDropped(t *testing.T) {
	// A bare quote makes the csv reader return a parse error for the row.
	path := filepath.Join(t.TempDir(), "dataset.csv")
	content := strings.Join(dataset.Header, ",") + "\n" +
		validUUID + `,f1,brief.pdf,pdf,application/pdf,Summer Launch,scout,2048,2024-03-01T10:00:00Z,2024-06-01T00:00:00Z` + "\n" +
		`"broken` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	mock := &mockUpserter{}
	stats, err := NewLoader(mock, 1000, zaptest.NewLogger(t)).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if stats.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", stats.Inserted)
	}
}
