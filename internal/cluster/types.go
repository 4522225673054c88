// Package cluster implements the hierarchical clusterer: per-cell local
// clusters and the inter-cell connections between them, computed
// bottom-up over the cell hierarchy honoring the connectivity registry,
// without ever flattening the layout.
package cluster

import (
	"sort"

	"netextract/internal/connreg"
	"netextract/internal/deeplayer"
	"netextract/internal/layout"
	"netextract/pkg/geom"
)

// ClusterID is dense *within its cell*.
type ClusterID int

// Connection is a pseudo-element absorbed by a local cluster: inside
// cell X, a pair (child_instance, child_cluster_id) declaring that this
// local cluster is electrically the same as child_cluster_id inside the
// cell instanced by child_instance.
type Connection struct {
	ChildInstance int // index into the cell's Instances slice
	ChildCluster  ClusterID
}

// LocalCluster is a connected component of shapes within a single cell.
type LocalCluster struct {
	ID          ClusterID
	Shapes      map[deeplayer.LayerID][]layout.ShapeRef
	Box         geom.Box
	Connections []Connection
	GlobalIDs   []connreg.GlobalID

	// Escaping is the eligibility flag deciding whether this cluster is
	// a candidate pseudo-element at the next level up: true iff it owns
	// a shape on an actively connected layer, or has any connection to
	// an escaping child cluster, or carries a global id. It does NOT
	// mean the cluster has a pin — pin existence is a netlist-level fact
	// decided by whether some parent cell's connection list actually
	// references this cluster.
	Escaping bool
}

// HasGlobal reports whether id is among the cluster's global net ids.
func (c *LocalCluster) HasGlobal(id connreg.GlobalID) bool {
	for _, g := range c.GlobalIDs {
		if g == id {
			return true
		}
	}
	return false
}

// CellClusters holds the local clusters computed for one cell.
type CellClusters struct {
	Cell     layout.CellID
	Clusters []*LocalCluster
}

// Cluster returns the cluster with the given id, or nil if out of range
// — callers treat an out-of-range id as an invariant violation, since
// every reference originates from this same HierClusters.
func (c *CellClusters) Cluster(id ClusterID) *LocalCluster {
	if int(id) < 0 || int(id) >= len(c.Clusters) {
		return nil
	}
	return c.Clusters[id]
}

// HierClusters holds, for every cell, its local clusters and their
// connections.
type HierClusters struct {
	ByCell map[layout.CellID]*CellClusters
}

func newHierClusters() *HierClusters {
	return &HierClusters{ByCell: make(map[layout.CellID]*CellClusters)}
}

// Cell returns the CellClusters for id, or nil if HierClusters never
// visited that cell (a cell with no shapes on any active layer and no
// escaping descendants is legal and produces an empty CellClusters, not
// a nil one — nil only occurs for a cell id HierClusters never visited,
// which is itself an invariant violation for any cell reachable from the
// layout's top cell).
func (h *HierClusters) Cell(id layout.CellID) *CellClusters {
	return h.ByCell[id]
}

// SortedCellIDs returns the cell ids with clusters, ascending — useful
// for deterministic iteration in tests and diagnostics.
func (h *HierClusters) SortedCellIDs() []layout.CellID {
	out := make([]layout.CellID, 0, len(h.ByCell))
	for id := range h.ByCell {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
