// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

package tree

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"
)

// FileNode is one entry from a flat Drive tree export. Parents holds the ids
// of the node's parent folders in listing order; Drive permits multiple
// parents, so the export is a DAG rather than a tree, and shared edges can
// produce cycles in practice.
type FileNode struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MIMEType     string   `json:"mimeType"`
	Parents      []string `json:"parents"`
	ModifiedTime string   `json:"modifiedTime"`
	Size         int64    `json:"size"`
}

// IndexConfig carries the constants the indexer needs to classify nodes.
type IndexConfig struct {
	FolderMIME    string            // MIME type that denotes a folder
	RootMarker    string            // synthetic parent id marking top-level folders
	TenantMap     map[string]string // campaign folder name -> tenant id
	DefaultTenant string            // tenant for unmapped campaign folders
}

// Index holds the lookup structures built once per run from a node export.
// Campaign folders are folder-typed nodes directly under the synthetic root;
// they are the resolution targets for every file in the export.
type Index struct {
	names     map[string]string
	mimes     map[string]string
	modified  map[string]string
	sizes     map[string]int64
	parentsOf map[string][]string
	campaigns map[string]string // folder id -> folder name
	tenantOf  map[string]string // campaign name -> tenant id
	order     []string          // node ids, sorted; fixed iteration order for resume
}

// ParseNodes decodes a Drive tree export from r. A malformed document is a
// fatal input error; missing optional fields on individual entries are not.
func ParseNodes(r io.Reader) ([]FileNode, error) {
	var nodes []FileNode
	dec := json.NewDecoder(r)
	if err := dec.Decode(&nodes); err != nil {
		return nil, fmt.Errorf("failed to parse drive tree export: %w", err)
	}
	for i, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("drive tree entry %d has no id", i)
		}
	}
	return nodes, nil
}

// ParseFile reads and decodes a Drive tree export file.
func ParseFile(path string) ([]FileNode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open drive tree export: %w", err)
	}
	defer f.Close()
	return ParseNodes(f)
}

// BuildIndex builds the per-run lookup structures from an ordered node export.
func BuildIndex(nodes []FileNode, cfg IndexConfig, logger *zap.Logger) *Index {
	idx := &Index{
		names:     make(map[string]string, len(nodes)),
		mimes:     make(map[string]string, len(nodes)),
		modified:  make(map[string]string, len(nodes)),
		sizes:     make(map[string]int64, len(nodes)),
		parentsOf: make(map[string][]string, len(nodes)),
		campaigns: make(map[string]string),
		tenantOf:  make(map[string]string),
	}

	for _, n := range nodes {
		idx.names[n.ID] = n.Name
		idx.mimes[n.ID] = n.MIMEType
		idx.modified[n.ID] = n.ModifiedTime
		idx.sizes[n.ID] = n.Size
		if len(n.Parents) > 0 {
			idx.parentsOf[n.ID] = append(idx.parentsOf[n.ID], n.Parents...)
		}
	}

	// Campaign folders: folder-typed nodes directly under the synthetic root.
	for id, mime := range idx.mimes {
		if mime != cfg.FolderMIME {
			continue
		}
		for _, p := range idx.parentsOf[id] {
			if p == cfg.RootMarker {
				idx.campaigns[id] = idx.names[id]
				break
			}
		}
	}

	for _, name := range idx.campaigns {
		if t, ok := cfg.TenantMap[name]; ok {
			idx.tenantOf[name] = t
		} else {
			idx.tenantOf[name] = cfg.DefaultTenant
		}
	}

	// Materialize a deterministic iteration order. Index-based checkpoint
	// resume is only meaningful against this fixed sequence; map iteration
	// order must never leak into it.
	idx.order = make([]string, 0, len(idx.names))
	for id := range idx.names {
		idx.order = append(idx.order, id)
	}
	sort.Strings(idx.order)

	logger.Info("Drive tree indexed",
		zap.Int("nodes", len(idx.order)),
		zap.Int("campaign_folders", len(idx.campaigns)))

	return idx
}

// Order returns the fixed, deterministic iteration order over the node set.
func (x *Index) Order() []string {
	return x.order
}

// Len returns the number of indexed nodes.
func (x *Index) Len() int {
	return len(x.order)
}

// Name returns the node's name.
func (x *Index) Name(id string) string { return x.names[id] }

// MIMEType returns the node's MIME type.
func (x *Index) MIMEType(id string) string { return x.mimes[id] }

// ModifiedTime returns the node's modification timestamp, empty if the export
// omitted it.
func (x *Index) ModifiedTime(id string) string { return x.modified[id] }

// Size returns the node's size in bytes, zero if the export omitted it.
func (x *Index) Size(id string) int64 { return x.sizes[id] }

// Parents returns the node's parent ids in listing order.
func (x *Index) Parents(id string) []string { return x.parentsOf[id] }

// CampaignName returns the campaign folder name for a folder id, if the id
// identifies a campaign folder.
func (x *Index) CampaignName(id string) (string, bool) {
	name, ok := x.campaigns[id]
	return name, ok
}

// Campaigns returns the number of campaign folders identified in the export.
func (x *Index) Campaigns() int { return len(x.campaigns) }

// TenantFor returns the tenant id owning a campaign folder name. Unknown
// campaign names fall back to defaultTenant.
func (x *Index) TenantFor(campaign, defaultTenant string) string {
	if t, ok := x.tenantOf[campaign]; ok {
		return t
	}
	return defaultTenant
}
