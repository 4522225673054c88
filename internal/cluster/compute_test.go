package cluster

import (
	"testing"

	"netextract/internal/connreg"
	"netextract/internal/deeplayer"
	"netextract/internal/layout"
	"netextract/pkg/geom"
)

func rect(l, b, r, t int64) layout.ShapeRef {
	return layout.ShapeRef{
		Polygon: geom.NewBoxPolygon(geom.Box{Left: l, Bottom: b, Right: r, Top: t}),
		Trans:   geom.Identity,
	}
}

func buildSimpleLayout(t *testing.T) (*layout.Layout, *deeplayer.Store, *connreg.Registry, layout.SourceLayer) {
	t.Helper()
	l := layout.New()
	metal := layout.SourceLayer(0)
	return l, deeplayer.New(l), connreg.New(), metal
}

// TestTwoOverlappingRectanglesOneNet covers the scenario where two
// touching rectangles on the same connected layer in one cell collapse
// into a single local cluster.
func TestTwoOverlappingRectanglesOneNet(t *testing.T) {
	l, store, reg, metal := buildSimpleLayout(t)
	top := l.TopCell
	l.AddShape(top, metal, rect(0, 0, 10, 10))
	l.AddShape(top, metal, rect(10, 0, 20, 10)) // shares the x=10 edge

	lyr, err := store.CreatePolygonLayer(layout.NewSource(l, metal))
	if err != nil {
		t.Fatal(err)
	}
	reg.MarkPersisted(lyr)
	if err := reg.Connect(lyr); err != nil {
		t.Fatal(err)
	}

	hc, err := Compute(l, store, reg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	cc := hc.Cell(top)
	if len(cc.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(cc.Clusters))
	}
}

// TestNonTouchingRectanglesTwoNets covers two disjoint rectangles on the
// same connected layer producing distinct local clusters.
func TestNonTouchingRectanglesTwoNets(t *testing.T) {
	l, store, reg, metal := buildSimpleLayout(t)
	top := l.TopCell
	l.AddShape(top, metal, rect(0, 0, 10, 10))
	l.AddShape(top, metal, rect(100, 0, 110, 10))

	lyr, err := store.CreatePolygonLayer(layout.NewSource(l, metal))
	if err != nil {
		t.Fatal(err)
	}
	reg.MarkPersisted(lyr)
	_ = reg.Connect(lyr)

	hc, err := Compute(l, store, reg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(hc.Cell(top).Clusters); got != 2 {
		t.Fatalf("expected 2 clusters, got %d", got)
	}
}

// TestSiblingInstancesMergeAtParent covers two instances of the same
// child cell whose escaping clusters touch once placed in the parent.
func TestSiblingInstancesMergeAtParent(t *testing.T) {
	l, store, reg, metal := buildSimpleLayout(t)
	child := l.AddCell("LEAF")
	l.AddShape(child, metal, rect(0, 0, 10, 10))

	top := l.TopCell
	a := l.AddInstance(top, layout.Instance{Cell: child, Trans: geom.NewTrans(0, 1, geom.Pt(0, 0))})
	b := l.AddInstance(top, layout.Instance{Cell: child, Trans: geom.NewTrans(0, 1, geom.Pt(10, 0))})
	_ = a
	_ = b

	lyr, err := store.CreatePolygonLayer(layout.NewSource(l, metal))
	if err != nil {
		t.Fatal(err)
	}
	reg.MarkPersisted(lyr)
	_ = reg.Connect(lyr)

	hc, err := Compute(l, store, reg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(hc.Cell(child).Clusters); got != 1 {
		t.Fatalf("expected leaf to have 1 cluster, got %d", got)
	}
	if !hc.Cell(child).Clusters[0].Escaping {
		t.Fatalf("expected leaf cluster to be escaping")
	}
	topCC := hc.Cell(top)
	if got := len(topCC.Clusters); got != 1 {
		t.Fatalf("expected the two instances to merge into 1 top cluster, got %d", got)
	}
	if got := len(topCC.Clusters[0].Connections); got != 2 {
		t.Fatalf("expected 2 connections (one per instance), got %d", got)
	}
}

// TestNonTouchingInstancesStayDistinct covers two instances placed far
// apart, producing two distinct top-cell clusters.
func TestNonTouchingInstancesStayDistinct(t *testing.T) {
	l, store, reg, metal := buildSimpleLayout(t)
	child := l.AddCell("LEAF")
	l.AddShape(child, metal, rect(0, 0, 10, 10))

	top := l.TopCell
	l.AddInstance(top, layout.Instance{Cell: child, Trans: geom.NewTrans(0, 1, geom.Pt(0, 0))})
	l.AddInstance(top, layout.Instance{Cell: child, Trans: geom.NewTrans(0, 1, geom.Pt(1000, 0))})

	lyr, err := store.CreatePolygonLayer(layout.NewSource(l, metal))
	if err != nil {
		t.Fatal(err)
	}
	reg.MarkPersisted(lyr)
	_ = reg.Connect(lyr)

	hc, err := Compute(l, store, reg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(hc.Cell(top).Clusters); got != 2 {
		t.Fatalf("expected 2 distinct top clusters, got %d", got)
	}
}

// TestGlobalNetTiesDistantClusters covers two far-apart shapes tied
// together purely by sharing a declared global net, with no geometric
// overlap anywhere in the hierarchy.
func TestGlobalNetTiesDistantClusters(t *testing.T) {
	l, store, reg, metal := buildSimpleLayout(t)
	top := l.TopCell
	l.AddShape(top, metal, rect(0, 0, 10, 10))
	l.AddShape(top, metal, rect(1000, 0, 1010, 10))

	lyr, err := store.CreatePolygonLayer(layout.NewSource(l, metal))
	if err != nil {
		t.Fatal(err)
	}
	reg.MarkPersisted(lyr)
	if _, err := reg.ConnectGlobal(lyr, "GND"); err != nil {
		t.Fatal(err)
	}

	hc, err := Compute(l, store, reg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(hc.Cell(top).Clusters); got != 1 {
		t.Fatalf("expected global net to fold both shapes into 1 cluster, got %d", got)
	}
}

// TestCrossLayerConnection covers two touching shapes on two distinct
// but registered-connected layers merging into one cluster.
func TestCrossLayerConnection(t *testing.T) {
	l := layout.New()
	store := deeplayer.New(l)
	reg := connreg.New()
	top := l.TopCell

	m1 := layout.SourceLayer(0)
	via := layout.SourceLayer(1)
	l.AddShape(top, m1, rect(0, 0, 10, 10))
	l.AddShape(top, via, rect(5, 5, 6, 6))

	m1Lyr, err := store.CreatePolygonLayer(layout.NewSource(l, m1))
	if err != nil {
		t.Fatal(err)
	}
	viaLyr, err := store.CreatePolygonLayer(layout.NewSource(l, via))
	if err != nil {
		t.Fatal(err)
	}
	reg.MarkPersisted(m1Lyr)
	reg.MarkPersisted(viaLyr)
	if err := reg.ConnectPair(m1Lyr, viaLyr); err != nil {
		t.Fatal(err)
	}

	hc, err := Compute(l, store, reg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(hc.Cell(top).Clusters); got != 1 {
		t.Fatalf("expected cross-layer connection to merge into 1 cluster, got %d", got)
	}
}

// TestDeterministicAcrossRuns covers that repeated runs with identical
// input produce identical cluster assignment.
func TestDeterministicAcrossRuns(t *testing.T) {
	l, store, reg, metal := buildSimpleLayout(t)
	top := l.TopCell
	l.AddShape(top, metal, rect(0, 0, 10, 10))
	l.AddShape(top, metal, rect(20, 0, 30, 10))
	l.AddShape(top, metal, rect(10, 0, 20, 10))

	lyr, err := store.CreatePolygonLayer(layout.NewSource(l, metal))
	if err != nil {
		t.Fatal(err)
	}
	reg.MarkPersisted(lyr)
	_ = reg.Connect(lyr)

	hc1, err := Compute(l, store, reg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	hc2, err := Compute(l, store, reg, Options{})
	if err != nil {
		t.Fatal(err)
	}

	c1 := hc1.Cell(top).Clusters
	c2 := hc2.Cell(top).Clusters
	if len(c1) != len(c2) {
		t.Fatalf("expected stable cluster count across runs: %d vs %d", len(c1), len(c2))
	}
	for i := range c1 {
		if c1[i].Box != c2[i].Box {
			t.Fatalf("expected identical cluster %d box across runs", i)
		}
	}
}

// TestConcurrentMatchesSequential checks that running with a multi-
// threaded worker pool over independent cells yields the same result as
// the sequential path.
func TestConcurrentMatchesSequential(t *testing.T) {
	l := layout.New()
	store := deeplayer.New(l)
	reg := connreg.New()
	metal := layout.SourceLayer(0)
	top := l.TopCell

	for i := 0; i < 5; i++ {
		c := l.AddCell("LEAF")
		l.AddShape(c, metal, rect(0, 0, 10, 10))
		off := int64(i * 100)
		l.AddInstance(top, layout.Instance{Cell: c, Trans: geom.NewTrans(0, 1, geom.Pt(off, 0))})
	}

	lyr, err := store.CreatePolygonLayer(layout.NewSource(l, metal))
	if err != nil {
		t.Fatal(err)
	}
	reg.MarkPersisted(lyr)
	_ = reg.Connect(lyr)

	seq, err := Compute(l, store, reg, Options{Threads: 1})
	if err != nil {
		t.Fatal(err)
	}
	par, err := Compute(l, store, reg, Options{Threads: 4})
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range seq.SortedCellIDs() {
		a := seq.Cell(id).Clusters
		b := par.Cell(id).Clusters
		if len(a) != len(b) {
			t.Fatalf("cell %d: sequential/parallel cluster count mismatch: %d vs %d", id, len(a), len(b))
		}
	}
}
