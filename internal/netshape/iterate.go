// Package netshape delivers the shapes of a net, in flat or
// hierarchy-preserving form, and probes a point back to the net that
// owns it. It reads the hierarchical clusterer's output and the deep
// layer store but never mutates either.
package netshape

import (
	"fmt"

	"netextract/internal/cluster"
	"netextract/internal/connreg"
	"netextract/internal/deeplayer"
	"netextract/internal/layout"
	"netextract/pkg/geom"
)

// NetIdentity names a net by the cell that owns its local cluster and
// the cluster id within that cell.
type NetIdentity struct {
	Cell    layout.CellID
	Cluster cluster.ClusterID
}

// Shapes is a small read-only view over the pieces DeliverRecursive and
// DeliverNonRecursive need: the layout, the deep-layer store, and the
// hier-clusters output.
type Shapes struct {
	Layout *layout.Layout
	Store  *deeplayer.Store
	Hier   *cluster.HierClusters
}

// DeliverRecursive yields every polygon reference belonging to the net,
// everywhere in the hierarchy, pre-multiplied by the composed
// parent-to-leaf transform — a depth-first walk over connections
// starting at identity, following the same parent-pointer-then-reverse
// shape as a path reconstruction, except here the path is never
// materialized: each shape is emitted transformed as soon as it is
// found.
func (s *Shapes) DeliverRecursive(net NetIdentity, layer deeplayer.LayerID) ([]layout.ShapeRef, error) {
	var out []layout.ShapeRef
	if err := s.deliverRecursive(net, layer, geom.Identity, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Shapes) deliverRecursive(net NetIdentity, layer deeplayer.LayerID, running geom.Trans, out *[]layout.ShapeRef) error {
	cc := s.Hier.Cell(net.Cell)
	if cc == nil {
		return fmt.Errorf("netshape: no clusters recorded for cell %d", net.Cell)
	}
	lc := cc.Cluster(net.Cluster)
	if lc == nil {
		return fmt.Errorf("netshape: invariant violation: no cluster %d in cell %d", net.Cluster, net.Cell)
	}

	for _, shapeLayer := range lc.Shapes[layer] {
		*out = append(*out, layout.ShapeRef{
			Polygon: shapeLayer.Polygon,
			Trans:   running.Compose(shapeLayer.Trans),
		})
	}

	cell := s.Layout.Cell(net.Cell)
	for _, conn := range lc.Connections {
		inst := cell.Instances[conn.ChildInstance]
		if err := s.deliverRecursive(NetIdentity{Cell: inst.Cell, Cluster: conn.ChildCluster}, layer, running.Compose(inst.Trans), out); err != nil {
			return err
		}
	}
	return nil
}

// Preserved reports whether cell survives into the post-extraction
// netlist as a circuit or device — DeliverNonRecursive needs this to
// decide whether to skip past an instance's subtree or flatten it.
type Preserved func(layout.CellID) bool

// DeliverNonRecursive yields shapes local to net's own cell, flattening
// in any child instance whose cell did not survive as a circuit or
// device (skip_cell's complement: rather than an iterator primitive that
// advances past a subtree, this recursive form simply declines to
// recurse into subtrees Preserved reports as kept).
func (s *Shapes) DeliverNonRecursive(net NetIdentity, layer deeplayer.LayerID, preserved Preserved) ([]layout.ShapeRef, error) {
	var out []layout.ShapeRef
	if err := s.deliverNonRecursive(net, layer, geom.Identity, preserved, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Shapes) deliverNonRecursive(net NetIdentity, layer deeplayer.LayerID, running geom.Trans, preserved Preserved, out *[]layout.ShapeRef) error {
	cc := s.Hier.Cell(net.Cell)
	if cc == nil {
		return fmt.Errorf("netshape: no clusters recorded for cell %d", net.Cell)
	}
	lc := cc.Cluster(net.Cluster)
	if lc == nil {
		return fmt.Errorf("netshape: invariant violation: no cluster %d in cell %d", net.Cluster, net.Cell)
	}

	for _, shapeLayer := range lc.Shapes[layer] {
		*out = append(*out, layout.ShapeRef{
			Polygon: shapeLayer.Polygon,
			Trans:   running.Compose(shapeLayer.Trans),
		})
	}

	cell := s.Layout.Cell(net.Cell)
	for _, conn := range lc.Connections {
		inst := cell.Instances[conn.ChildInstance]
		if preserved(inst.Cell) {
			continue // skip_cell: owned by the subcircuit/device cell instead
		}
		if err := s.deliverNonRecursive(NetIdentity{Cell: inst.Cell, Cluster: conn.ChildCluster}, layer, running.Compose(inst.Trans), preserved, out); err != nil {
			return err
		}
	}
	return nil
}

// ActiveLayersUsed returns reg's sorted active layers — every layer any
// cluster's shapes can lie on — so callers delivering "all layers of
// this net" don't need to probe every registered layer individually. It
// is not narrowed to the layers one particular cluster spans.
func ActiveLayersUsed(reg *connreg.Registry) []deeplayer.LayerID {
	return reg.ActiveLayers()
}
