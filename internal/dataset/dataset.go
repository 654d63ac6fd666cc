// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

// Package dataset reads and writes the intermediate campaign-asset dataset,
// a CSV file with one row per resolved asset.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Header is the dataset column order. The loader depends on it.
var Header = []string{
	"asset_id",
	"file_id",
	"file_name",
	"file_type",
	"mime_type",
	"campaign_folder",
	"tenant_id",
	"size_bytes",
	"modified_time",
	"created_at",
}

// Record is one dataset row. String-typed fields mirror the CSV contract;
// parsing and validation happen at load time.
type Record struct {
	AssetID        string
	FileID         string
	FileName       string
	FileType       string
	MIMEType       string
	CampaignFolder string
	TenantID       string
	SizeBytes      int64
	ModifiedTime   string
	CreatedAt      string
}

func (r Record) fields() []string {
	return []string{
		r.AssetID,
		r.FileID,
		r.FileName,
		r.FileType,
		r.MIMEType,
		r.CampaignFolder,
		r.TenantID,
		strconv.FormatInt(r.SizeBytes, 10),
		r.ModifiedTime,
		r.CreatedAt,
	}
}

// Writer streams records to the dataset file. A fresh writer truncates the
// file and writes the header row; a resuming writer appends and writes none.
type Writer struct {
	f  *os.File
	cw *csv.Writer
}

// NewWriter opens the dataset file for writing.
func NewWriter(path string, resume bool) (*Writer, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if resume {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}

	w := &Writer{f: f, cw: csv.NewWriter(f)}
	if !resume {
		if err := w.cw.Write(Header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write dataset header: %w", err)
		}
	}
	return w, nil
}

// Append writes one record.
func (w *Writer) Append(rec Record) error {
	if err := w.cw.Write(rec.fields()); err != nil {
		return fmt.Errorf("failed to write dataset row: %w", err)
	}
	return nil
}

// Flush forces buffered rows to the file. Rows are only durable, and therefore
// only safe to cover with a checkpoint, after a successful flush.
func (w *Writer) Flush() error {
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return fmt.Errorf("failed to flush dataset: %w", err)
	}
	return nil
}

// Close flushes and closes the dataset file.
func (w *Writer) Close() error {
	flushErr := w.Flush()
	if err := w.f.Close(); err != nil {
		return err
	}
	return flushErr
}

// Row is one raw dataset row as read back by the loader, keyed by column name.
type Row map[string]string

// Reader streams rows from a dataset file.
type Reader struct {
	f       *os.File
	cr      *csv.Reader
	columns []string
}

// NewReader opens a dataset file and consumes its header row.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1 // row width validated per record by the loader

	header, err := cr.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}

	return &Reader{f: f, cr: cr, columns: header}, nil
}

// Next returns the next row, or io.EOF when the dataset is exhausted.
func (r *Reader) Next() (Row, error) {
	fields, err := r.cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read dataset row: %w", err)
	}

	row := make(Row, len(r.columns))
	for i, col := range r.columns {
		if i < len(fields) {
			row[col] = fields[i]
		}
	}
	return row, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}
