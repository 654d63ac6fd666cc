// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

package tree

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func buildTestIndex(t *testing.T, nodes []FileNode) *Index {
	t.Helper()
	return BuildIndex(nodes, testIndexConfig(), zaptest.NewLogger(t))
}

func TestResolve_NearestCampaignAncestor(t *testing.T) {
	// root -> campaign C -> folder D -> file F
	nodes := []FileNode{
		{ID: "C", Name: "Summer Launch", MIMEType: folderMIME, Parents: []string{rootMarker}},
		{ID: "D", Name: "Drafts", MIMEType: folderMIME, Parents: []string{"C"}},
		{ID: "F", Name: "brief.pdf", MIMEType: "application/pdf", Parents: []string{"D"}},
	}
	idx := buildTestIndex(t, nodes)

	campaign, ok := idx.Resolve("F")
	if !ok {
		t.Fatal("F should resolve to a campaign")
	}
	if campaign != "Summer Launch" {
		t.Errorf("Resolve(F) = %q, want %q", campaign, "Summer Launch")
	}
}

func TestResolve_BreadthFirstTieBreak(t *testing.T) {
	// F has two parents, each one hop from a different campaign. The parent
	// listed first wins.
	nodes := []FileNode{
		{ID: "C1", Name: "Campaign One", MIMEType: folderMIME, Parents: []string{rootMarker}},
		{ID: "C2", Name: "Campaign Two", MIMEType: folderMIME, Parents: []string{rootMarker}},
		{ID: "F", Name: "shared.pdf", MIMEType: "application/pdf", Parents: []string{"C1", "C2"}},
	}
	idx := buildTestIndex(t, nodes)

	campaign, ok := idx.Resolve("F")
	if !ok {
		t.Fatal("F should resolve")
	}
	if campaign != "Campaign One" {
		t.Errorf("Resolve(F) = %q, want first-listed parent's campaign %q", campaign, "Campaign One")
	}
}

func TestResolve_NearerAncestorBeatsFartherOne(t *testing.T) {
	// F's first parent path reaches a campaign in two hops, the second in
	// one. Breadth-first means the one-hop campaign wins despite parent
	// order.
	nodes := []FileNode{
		{ID: "Cfar", Name: "Far Campaign", MIMEType: folderMIME, Parents: []string{rootMarker}},
		{ID: "Cnear", Name: "Near Campaign", MIMEType: folderMIME, Parents: []string{rootMarker}},
		{ID: "mid", Name: "Subfolder", MIMEType: folderMIME, Parents: []string{"Cfar"}},
		{ID: "F", Name: "asset.png", MIMEType: "image/png", Parents: []string{"mid", "Cnear"}},
	}
	idx := buildTestIndex(t, nodes)

	campaign, ok := idx.Resolve("F")
	if !ok {
		t.Fatal("F should resolve")
	}
	if campaign != "Near Campaign" {
		t.Errorf("Resolve(F) = %q, want nearest campaign %q", campaign, "Near Campaign")
	}
}

func TestResolve_CycleTerminates(t *testing.T) {
	// A parent cycle with no campaign folder anywhere: must return
	// unresolved in bounded time instead of looping.
	nodes := []FileNode{
		{ID: "a", Name: "a", MIMEType: folderMIME, Parents: []string{"b"}},
		{ID: "b", Name: "b", MIMEType: folderMIME, Parents: []string{"c"}},
		{ID: "c", Name: "c", MIMEType: folderMIME, Parents: []string{"a"}},
		{ID: "F", Name: "lost.pdf", MIMEType: "application/pdf", Parents: []string{"a"}},
	}
	idx := buildTestIndex(t, nodes)

	if campaign, ok := idx.Resolve("F"); ok {
		t.Errorf("Resolve(F) in campaignless cycle = %q, want unresolved", campaign)
	}
}

func TestResolve_CycleAboveCampaignStillResolves(t *testing.T) {
	// Shared-folder edges can form a cycle above the file; a reachable
	// campaign must still be found.
	nodes := []FileNode{
		{ID: "C", Name: "Summer Launch", MIMEType: folderMIME, Parents: []string{rootMarker}},
		{ID: "x", Name: "x", MIMEType: folderMIME, Parents: []string{"y", "C"}},
		{ID: "y", Name: "y", MIMEType: folderMIME, Parents: []string{"x"}},
		{ID: "F", Name: "deep.pdf", MIMEType: "application/pdf", Parents: []string{"y"}},
	}
	idx := buildTestIndex(t, nodes)

	campaign, ok := idx.Resolve("F")
	if !ok {
		t.Fatal("F should resolve despite the cycle")
	}
	if campaign != "Summer Launch" {
		t.Errorf("Resolve(F) = %q, want %q", campaign, "Summer Launch")
	}
}

func TestResolve_Unreachable(t *testing.T) {
	tests := []struct {
		name  string
		nodes []FileNode
		file  string
	}{
		{
			name: "no parents at all",
			nodes: []FileNode{
				{ID: "F", Name: "orphan.pdf", MIMEType: "application/pdf"},
			},
			file: "F",
		},
		{
			name: "parents chain ends without campaign",
			nodes: []FileNode{
				{ID: "d", Name: "folder", MIMEType: folderMIME, Parents: []string{"gone"}},
				{ID: "F", Name: "stray.pdf", MIMEType: "application/pdf", Parents: []string{"d"}},
			},
			file: "F",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := buildTestIndex(t, tt.nodes)
			if campaign, ok := idx.Resolve(tt.file); ok {
				t.Errorf("Resolve(%s) = %q, want unresolved", tt.file, campaign)
			}
		})
	}
}
