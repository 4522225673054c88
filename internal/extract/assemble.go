package extract

import (
	"fmt"
	"sort"

	"netextract/internal/cluster"
	"netextract/internal/deeplayer"
	"netextract/internal/layout"
	"netextract/internal/netlist"
)

// assembleNetlist walks the freshly computed hier-clusters bottom-up and
// builds the netlist arena: one Circuit per non-device cell that
// retains at least one local cluster, one Net per surviving cluster, one
// Pin per cluster some parent connection actually reaches, and one
// Subcircuit or Device per child instance depending on whether that
// child cell survived as a circuit or was marked device-abstract by a
// prior ExtractDevices call.
//
// termNameOf resolves a device terminal's name from the deep layer its
// shapes were drawn on; a cluster whose shapes span none of those layers
// falls back to a positional name, since an extractor is free to leave a
// terminal layer unconnected.
func assembleNetlist(l *layout.Layout, hc *cluster.HierClusters, termNameOf map[deeplayer.LayerID]string) *netlist.Netlist {
	nl := netlist.New()

	for _, cellID := range hc.SortedCellIDs() {
		cc := hc.Cell(cellID)
		if l.Cell(cellID).DeviceAbstract || len(cc.Clusters) == 0 {
			continue
		}
		name := l.Cell(cellID).Name
		circuit := nl.AddCircuit(cellID, name)
		for _, lc := range cc.Clusters {
			circuit.AddNet(lc.ID)
		}
	}

	// escaped[cell][cluster] is set whenever some parent's connection
	// list names (cell, cluster) as its child — the fact that decides
	// whether a net gets a pin, independent of LocalCluster.Escaping
	// (which only decides eligibility to be promoted another level up).
	escaped := make(map[layout.CellID]map[cluster.ClusterID]bool)
	for _, cellID := range hc.SortedCellIDs() {
		cc := hc.Cell(cellID)
		cell := l.Cell(cellID)
		for _, lc := range cc.Clusters {
			for _, conn := range lc.Connections {
				childCell := cell.Instances[conn.ChildInstance].Cell
				if escaped[childCell] == nil {
					escaped[childCell] = make(map[cluster.ClusterID]bool)
				}
				escaped[childCell][conn.ChildCluster] = true
			}
		}
	}

	for _, circuit := range nl.Circuits() {
		for clusterID := range escaped[circuit.Cell] {
			net := circuit.NetByCluster(clusterID)
			if net == nil {
				continue // escaping child cluster belonged to a device-abstract cell
			}
			if len(net.Pins) > 0 {
				continue
			}
			circuit.AddPin(net.ID, fmt.Sprintf("p%d", int(clusterID)))
		}
	}

	for _, circuit := range nl.Circuits() {
		assembleInstances(l, hc, nl, circuit, termNameOf)
	}

	return nl
}

// assembleInstances groups circuit's own clusters' connections by child
// instance and appends one Subcircuit or Device per group, in
// ascending instance-index order.
func assembleInstances(l *layout.Layout, hc *cluster.HierClusters, nl *netlist.Netlist, circuit *netlist.Circuit, termNameOf map[deeplayer.LayerID]string) {
	cell := l.Cell(circuit.Cell)
	cc := hc.Cell(circuit.Cell)

	type group struct {
		instIdx int
		conns   []connWithOwner
	}
	var order []int
	groups := make(map[int]*group)

	for _, lc := range cc.Clusters {
		ownerNet := circuit.NetByCluster(lc.ID)
		for _, conn := range lc.Connections {
			g, ok := groups[conn.ChildInstance]
			if !ok {
				g = &group{instIdx: conn.ChildInstance}
				groups[conn.ChildInstance] = g
				order = append(order, conn.ChildInstance)
			}
			g.conns = append(g.conns, connWithOwner{childCluster: conn.ChildCluster, ownerNet: ownerNet.ID})
		}
	}
	sort.Ints(order)

	for _, instIdx := range order {
		g := groups[instIdx]
		childCell := cell.Instances[instIdx].Cell

		if l.Cell(childCell).DeviceAbstract {
			dv := buildDevice(l, hc, instIdx, childCell, g.conns, termNameOf)
			dv.ID = netlist.DeviceID(len(circuit.Devices))
			circuit.Devices = append(circuit.Devices, dv)
			continue
		}

		childCircuit := nl.CircuitByCell(childCell)
		if childCircuit == nil {
			continue // child cell carried no surviving cluster: elided
		}

		sc := &netlist.Subcircuit{
			ID:           netlist.SubcircuitID(len(circuit.Subcircuits)),
			InstanceIdx:  instIdx,
			ChildCircuit: childCircuit.ID,
			NetOfPin:     make(map[netlist.PinID]netlist.NetID),
		}
		for _, c := range g.conns {
			childNet := childCircuit.NetByCluster(c.childCluster)
			if childNet == nil || len(childNet.Pins) == 0 {
				continue
			}
			sc.NetOfPin[childNet.Pins[0]] = c.ownerNet
		}
		circuit.Subcircuits = append(circuit.Subcircuits, sc)
	}
}

type connWithOwner struct {
	childCluster cluster.ClusterID
	ownerNet     netlist.NetID
}

// buildDevice synthesizes a Device for a device-abstract child instance:
// one TerminalNets entry per connection, named from the deep layer its
// child cluster's shapes were drawn on.
func buildDevice(l *layout.Layout, hc *cluster.HierClusters, instIdx int, childCell layout.CellID, conns []connWithOwner, termNameOf map[deeplayer.LayerID]string) *netlist.Device {
	dv := &netlist.Device{
		InstanceIdx:  instIdx,
		Kind:         l.Cell(childCell).DeviceKind,
		TerminalNets: make(map[string]netlist.NetID),
	}
	childCC := hc.Cell(childCell)
	for _, c := range conns {
		name := terminalName(childCC, c.childCluster, termNameOf)
		dv.TerminalNets[name] = c.ownerNet
	}
	return dv
}

// terminalName resolves a device cluster's terminal name from the
// lowest-numbered deep layer it carries shapes on, falling back to a
// positional name when termNameOf has no entry for any of them.
func terminalName(cc *cluster.CellClusters, id cluster.ClusterID, termNameOf map[deeplayer.LayerID]string) string {
	lc := cc.Cluster(id)
	if lc == nil {
		return fmt.Sprintf("t%d", int(id))
	}
	layers := make([]deeplayer.LayerID, 0, len(lc.Shapes))
	for lyr := range lc.Shapes {
		layers = append(layers, lyr)
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i] < layers[j] })
	for _, lyr := range layers {
		if name, ok := termNameOf[lyr]; ok {
			return name
		}
	}
	return fmt.Sprintf("t%d", int(id))
}
