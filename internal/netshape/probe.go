package netshape

import (
	"fmt"

	"netextract/internal/cluster"
	"netextract/internal/deeplayer"
	"netextract/internal/layout"
	"netextract/internal/netlist"
	"netextract/pkg/geom"
)

// InstancePathElem is one hop of a probe's descent, recorded for the
// upward climb: which instance of the parent cell was taken, and its
// placement transform.
type InstancePathElem struct {
	InstanceIdx int
	Trans       geom.Trans
}

// ProbeResult is the outcome of descending the cell tree to find the
// point: the leaf cell and cluster that own it, plus the instance path
// from the top cell down to that leaf.
type ProbeResult struct {
	Cell    layout.CellID
	Cluster cluster.ClusterID
	Path    []InstancePathElem
}

// ProbeNet locates the net containing point on layer by building a
// 2-DBU test square around it and descending the cell tree from the top
// cell: each level tests its own local clusters first, then recurses
// into touching instances with the query transformed into the child's
// local frame. A path element is pushed on the way back up from a hit,
// so the path collects leaf-to-root and is reversed once at the end.
func (s *Shapes) ProbeNet(layer deeplayer.LayerID, point geom.Point) (*ProbeResult, error) {
	if s.Hier == nil {
		return nil, fmt.Errorf("netshape: probe requires extracted hier-clusters")
	}
	query := geom.NewBoxPolygon(geom.Box{Left: point.X - 1, Bottom: point.Y - 1, Right: point.X + 1, Top: point.Y + 1})

	var reversed []InstancePathElem
	cellID, clusterID, found := s.probeDescend(s.Layout.TopCell, layer, query, &reversed)
	if !found {
		return nil, nil
	}

	path := make([]InstancePathElem, len(reversed))
	for i, e := range reversed {
		path[len(reversed)-1-i] = e
	}
	return &ProbeResult{Cell: cellID, Cluster: clusterID, Path: path}, nil
}

func (s *Shapes) probeDescend(cellID layout.CellID, layer deeplayer.LayerID, query geom.Polygon, reversed *[]InstancePathElem) (layout.CellID, cluster.ClusterID, bool) {
	if cc := s.Hier.Cell(cellID); cc != nil {
		qbox := query.BoundingBox()
		for _, lc := range cc.Clusters {
			if !lc.Box.Touches(qbox) {
				continue
			}
			for _, shape := range lc.Shapes[layer] {
				if shape.Shape().Touches(query) {
					return cellID, lc.ID, true
				}
			}
		}
	}

	cell := s.Layout.Cell(cellID)
	for idx, inst := range cell.Instances {
		invT, ok := inst.Trans.Inverse()
		if !ok {
			continue
		}
		localQuery := query.Transformed(invT)
		if leafCell, leafCluster, ok := s.probeDescend(inst.Cell, layer, localQuery, reversed); ok {
			*reversed = append(*reversed, InstancePathElem{InstanceIdx: idx, Trans: inst.Trans})
			return leafCell, leafCluster, true
		}
	}
	return 0, 0, false
}

// cellSeq reconstructs the sequence of cells a probe's path visited,
// top cell first, leaf cell last.
func cellSeq(l *layout.Layout, leaf layout.CellID, path []InstancePathElem) []layout.CellID {
	seq := make([]layout.CellID, len(path)+1)
	seq[0] = l.TopCell
	for i, elem := range path {
		seq[i+1] = l.Cell(seq[i]).Instances[elem.InstanceIdx].Cell
	}
	seq[len(seq)-1] = leaf
	return seq
}

// ClimbToOutermost walks a probe hit upward through pin connections as
// long as the current net carries at least one pin and the instance path
// is non-empty, stopping at the first circuit where the net has no
// parent-side connection or no pins at all — the highest-level net on
// the path, i.e. the net as seen at the outermost circuit where it is
// still electrically distinct.
func ClimbToOutermost(l *layout.Layout, nl *netlist.Netlist, pr *ProbeResult) (*netlist.Circuit, *netlist.Net, error) {
	seq := cellSeq(l, pr.Cell, pr.Path)
	level := len(seq) - 1 // index into seq/path for the current circuit

	circuit := nl.CircuitByCell(seq[level])
	if circuit == nil {
		return nil, nil, nil // leaf cell was optimized away: not-found
	}
	net := circuit.NetByCluster(pr.Cluster)
	if net == nil {
		return nil, nil, fmt.Errorf("netshape: invariant violation: no net for cluster %d in circuit %d", pr.Cluster, circuit.ID)
	}

	for len(net.Pins) > 0 && level > 0 {
		pinID := net.Pins[0]
		parentCircuit := nl.CircuitByCell(seq[level-1])
		if parentCircuit == nil {
			break
		}
		instIdx := pr.Path[level-1].InstanceIdx
		var parentNetID netlist.NetID
		found := false
		for _, sc := range parentCircuit.Subcircuits {
			if sc.InstanceIdx != instIdx || sc.ChildCircuit != circuit.ID {
				continue
			}
			if nid, ok := sc.NetOfPin[pinID]; ok {
				parentNetID, found = nid, true
			}
			break
		}
		if !found {
			break
		}
		circuit = parentCircuit
		net = circuit.Net(parentNetID)
		level--
	}
	return circuit, net, nil
}
