// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

package tree

// Resolve walks the parent graph outward from fileID and returns the name of
// the owning campaign folder, or false if no campaign folder is reachable.
//
// The walk is an iterative breadth-first search over the multi-parent
// adjacency, so the nearest campaign ancestor wins; among equidistant
// ancestors the one reached first in parent-list order wins. Nodes are marked
// visited on enqueue, which both preserves that tie-break and bounds the walk
// on cyclic inputs.
func (x *Index) Resolve(fileID string) (string, bool) {
	parents := x.parentsOf[fileID]
	if len(parents) == 0 {
		return "", false
	}

	visited := make(map[string]bool, len(parents))
	queue := make([]string, 0, len(parents))
	for _, p := range parents {
		if !visited[p] {
			visited[p] = true
			queue = append(queue, p)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if name, ok := x.campaigns[id]; ok {
			return name, true
		}

		for _, p := range x.parentsOf[id] {
			if !visited[p] {
				visited[p] = true
				queue = append(queue, p)
			}
		}
	}

	return "", false
}
