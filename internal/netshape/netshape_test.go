package netshape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netextract/internal/cluster"
	"netextract/internal/connreg"
	"netextract/internal/deeplayer"
	"netextract/internal/layout"
	"netextract/internal/netlist"
	"netextract/pkg/geom"
)

func rect(l, b, r, t int64) layout.ShapeRef {
	return layout.ShapeRef{
		Polygon: geom.NewBoxPolygon(geom.Box{Left: l, Bottom: b, Right: r, Top: t}),
		Trans:   geom.Identity,
	}
}

// buildParentChild assembles a two-level layout: a leaf cell with one
// metal rectangle, instanced once inside the top cell at the origin, so
// the leaf's escaping cluster surfaces at the top cell as a cluster
// built from one pseudo-element: no shapes of its own, and a single
// connection back to the leaf.
func buildParentChild(t *testing.T) (*layout.Layout, *deeplayer.Store, *cluster.HierClusters, layout.CellID, deeplayer.LayerID) {
	t.Helper()
	l := layout.New()
	metal := layout.SourceLayer(0)
	child := l.AddCell("LEAF")
	l.AddShape(child, metal, rect(0, 0, 10, 10))

	top := l.TopCell
	l.AddInstance(top, layout.Instance{Cell: child, Trans: geom.NewTrans(0, 1, geom.Pt(0, 0))})

	store := deeplayer.New(l)
	reg := connreg.New()
	lyr, err := store.CreatePolygonLayer(layout.NewSource(l, metal))
	require.NoError(t, err)
	reg.MarkPersisted(lyr)
	require.NoError(t, reg.Connect(lyr))

	hc, err := cluster.Compute(l, store, reg, cluster.Options{})
	require.NoError(t, err)
	return l, store, hc, child, lyr
}

func TestDeliverRecursiveFollowsConnectionIntoChild(t *testing.T) {
	l, store, hc, _, lyr := buildParentChild(t)
	top := l.TopCell

	topCC := hc.Cell(top)
	require.Len(t, topCC.Clusters, 1)
	topClusterID := topCC.Clusters[0].ID

	s := &Shapes{Layout: l, Store: store, Hier: hc}
	shapes, err := s.DeliverRecursive(NetIdentity{Cell: top, Cluster: topClusterID}, lyr)
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	assert.Equal(t, geom.Box{Left: 0, Bottom: 0, Right: 10, Top: 10}, shapes[0].Shape().BoundingBox())
}

func TestDeliverNonRecursiveStopsAtPreservedChild(t *testing.T) {
	l, store, hc, child, lyr := buildParentChild(t)
	top := l.TopCell
	topClusterID := hc.Cell(top).Clusters[0].ID

	s := &Shapes{Layout: l, Store: store, Hier: hc}

	preserved := func(c layout.CellID) bool { return c == child }
	shapes, err := s.DeliverNonRecursive(NetIdentity{Cell: top, Cluster: topClusterID}, lyr, preserved)
	require.NoError(t, err)
	assert.Empty(t, shapes, "a preserved child cell's shapes belong to its own circuit, not the parent's flattened view")

	flattenAll := func(layout.CellID) bool { return false }
	shapes, err = s.DeliverNonRecursive(NetIdentity{Cell: top, Cluster: topClusterID}, lyr, flattenAll)
	require.NoError(t, err)
	assert.Len(t, shapes, 1, "an unpreserved child cell flattens straight into the parent's delivery")
}

func TestProbeNetFindsLeafClusterAndClimbs(t *testing.T) {
	l, store, hc, child, lyr := buildParentChild(t)
	top := l.TopCell
	topClusterID := hc.Cell(top).Clusters[0].ID
	leafClusterID := hc.Cell(child).Clusters[0].ID

	s := &Shapes{Layout: l, Store: store, Hier: hc}
	res, err := s.ProbeNet(lyr, geom.Pt(5, 5))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, child, res.Cell)
	assert.Equal(t, leafClusterID, res.Cluster)
	require.Len(t, res.Path, 1)
	assert.Equal(t, 0, res.Path[0].InstanceIdx)

	// Miss: a point far outside every shape.
	miss, err := s.ProbeNet(lyr, geom.Pt(5000, 5000))
	require.NoError(t, err)
	assert.Nil(t, miss)

	nl := netlist.New()
	childCircuit := nl.AddCircuit(child, "LEAF")
	childNet := childCircuit.AddNet(leafClusterID)
	pin := childCircuit.AddPin(childNet.ID, "p")

	topCircuit := nl.AddCircuit(top, "TOP")
	topNet := topCircuit.AddNet(topClusterID)
	topCircuit.Subcircuits = append(topCircuit.Subcircuits, &netlist.Subcircuit{
		ID:           0,
		InstanceIdx:  0,
		ChildCircuit: childCircuit.ID,
		NetOfPin:     map[netlist.PinID]netlist.NetID{pin.ID: topNet.ID},
	})

	circuit, net, err := ClimbToOutermost(l, nl, res)
	require.NoError(t, err)
	require.NotNil(t, circuit)
	require.NotNil(t, net)
	assert.Equal(t, topCircuit.ID, circuit.ID)
	assert.Equal(t, topNet.ID, net.ID)
}

func TestProbeNetMissingNetlistEntryYieldsNotFound(t *testing.T) {
	l, store, hc, child, lyr := buildParentChild(t)

	s := &Shapes{Layout: l, Store: store, Hier: hc}
	res, err := s.ProbeNet(lyr, geom.Pt(5, 5))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, child, res.Cell)

	nl := netlist.New() // no circuits registered at all
	circuit, net, err := ClimbToOutermost(l, nl, res)
	require.NoError(t, err)
	assert.Nil(t, circuit)
	assert.Nil(t, net)
}
