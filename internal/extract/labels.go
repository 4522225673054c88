package extract

import (
	"netextract/internal/cluster"
	"netextract/internal/layout"
	"netextract/internal/netlist"
	"netextract/pkg/geom"
)

// LabelPoint is one text label a text-layer source reported: a net name
// anchored at a point, in the cell that owns it. Labels never escape
// their own cell, so no hierarchy walk is needed to resolve one.
type LabelPoint struct {
	Cell  layout.CellID
	Name  string
	Point geom.Point
}

// collectLabels pulls every label src reports, across every cell in l.
func collectLabels(l *layout.Layout, src layout.ShapeSource) []LabelPoint {
	var out []LabelPoint
	for i := 0; i < l.NumCells(); i++ {
		cell := layout.CellID(i)
		for _, lbl := range src.Labels(cell) {
			out = append(out, LabelPoint{Cell: cell, Name: lbl.Text, Point: lbl.Point.Shape().BoundingBox().Center()})
		}
	}
	return out
}

// assignLabels tags each circuit's net with the label of any text
// anchored inside one of its own cell's local clusters. A label that
// lands on no cluster, or on a cell that was elided entirely, is
// silently dropped — matching a stray label in the source having no
// shape under it at all.
func assignLabels(l *layout.Layout, hc *cluster.HierClusters, nl *netlist.Netlist, labels []LabelPoint) {
	for _, lbl := range labels {
		circuit := nl.CircuitByCell(lbl.Cell)
		if circuit == nil {
			continue
		}
		cc := hc.Cell(lbl.Cell)
		if cc == nil {
			continue
		}
		query := geom.NewBoxPolygon(geom.Box{Left: lbl.Point.X, Bottom: lbl.Point.Y, Right: lbl.Point.X, Top: lbl.Point.Y})
		qbox := query.BoundingBox()

		for _, lc := range cc.Clusters {
			if !lc.Box.Touches(qbox) {
				continue
			}
			if !clusterTouches(lc, query) {
				continue
			}
			if net := circuit.NetByCluster(lc.ID); net != nil {
				net.Label = lbl.Name
			}
			break
		}
	}
}

func clusterTouches(lc *cluster.LocalCluster, query geom.Polygon) bool {
	for _, shapes := range lc.Shapes {
		for _, s := range shapes {
			if s.Shape().Touches(query) {
				return true
			}
		}
	}
	return false
}
