package netshape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netextract/internal/cluster"
	"netextract/internal/deeplayer"
	"netextract/internal/layout"
	"netextract/internal/netlist"
	"netextract/pkg/geom"
)

// buildProbedNetlist wires up the netlist.Netlist a façade would produce
// for buildParentChild's fixture: one net per circuit, a Subcircuit
// connecting the leaf's escaping pin to the top cluster's net.
func buildProbedNetlist(t *testing.T, child, top layout.CellID, leafClusterID, topClusterID cluster.ClusterID, instanceIdx int) (*netlist.Netlist, *netlist.Circuit, *netlist.Circuit) {
	t.Helper()
	nl := netlist.New()
	childCircuit := nl.AddCircuit(child, "LEAF")
	childNet := childCircuit.AddNet(leafClusterID)
	pin := childCircuit.AddPin(childNet.ID, "p")

	topCircuit := nl.AddCircuit(top, "TOP")
	topNet := topCircuit.AddNet(topClusterID)
	topCircuit.Subcircuits = append(topCircuit.Subcircuits, &netlist.Subcircuit{
		ID:           0,
		InstanceIdx:  instanceIdx,
		ChildCircuit: childCircuit.ID,
		NetOfPin:     map[netlist.PinID]netlist.NetID{pin.ID: topNet.ID},
	})
	return nl, childCircuit, topCircuit
}

func TestBuildAllNetsPromotesLocalNetToTopAndInstancesLeaf(t *testing.T) {
	l, store, hc, child, lyr := buildParentChild(t)
	top := l.TopCell
	topClusterID := hc.Cell(top).Clusters[0].ID
	leafClusterID := hc.Cell(child).Clusters[0].ID

	nl, childCircuit, topCircuit := buildProbedNetlist(t, child, top, leafClusterID, topClusterID, 0)

	target := layout.New()
	metalTarget := layout.SourceLayer(0)

	cells, err := BuildAllNets(l, store, hc, nl, target, BuildOptions{
		DBUSource: 1, DBUTarget: 1,
		LayerMap:              map[deeplayer.LayerID]layout.SourceLayer{lyr: metalTarget},
		CircuitCellNamePrefix: "C$",
	})
	require.NoError(t, err)

	topTarget, ok := cells[topCircuit.ID]
	require.True(t, ok)
	leafTarget, ok := cells[childCircuit.ID]
	require.True(t, ok)

	topCell := target.Cell(topTarget)
	assert.Len(t, topCell.Shapes[metalTarget], 1, "the leaf's net was promoted up to top and drawn directly since NetCellNamePrefix is empty")
	assert.Len(t, topCell.Instances, 1, "top must still instance the leaf circuit structurally")
	assert.Equal(t, leafTarget, topCell.Instances[0].Cell)

	leafCell := target.Cell(leafTarget)
	assert.Empty(t, leafCell.Shapes[metalTarget], "the leaf circuit owns no nets of its own once its only net is promoted to top")
}

func TestBuildAllNetsHonorsMagnification(t *testing.T) {
	l, store, hc, child, lyr := buildParentChild(t)
	top := l.TopCell
	topClusterID := hc.Cell(top).Clusters[0].ID
	leafClusterID := hc.Cell(child).Clusters[0].ID

	nl, _, topCircuit := buildProbedNetlist(t, child, top, leafClusterID, topClusterID, 0)

	target := layout.New()
	metalTarget := layout.SourceLayer(0)

	cells, err := BuildAllNets(l, store, hc, nl, target, BuildOptions{
		DBUSource: 2, DBUTarget: 1, // target DBU is half as coarse: coordinates double
		LayerMap:              map[deeplayer.LayerID]layout.SourceLayer{lyr: metalTarget},
		CircuitCellNamePrefix: "C$",
	})
	require.NoError(t, err)

	topTarget := cells[topCircuit.ID]
	shapes := target.Cell(topTarget).Shapes[metalTarget]
	require.Len(t, shapes, 1)
	assert.Equal(t, geom.Box{Left: 0, Bottom: 0, Right: 20, Top: 20}, shapes[0].Shape().BoundingBox())
}
