// Package netlist is the arena-allocated netlist data model: circuits,
// nets, pins, subcircuits, and devices addressed by dense ids within the
// owning Netlist, never by pointer — back-references are ids, matching
// the owning arena's lifetime rather than an object graph's.
package netlist

import (
	"fmt"
	"sort"

	"netextract/internal/cluster"
	"netextract/internal/layout"
)

// CircuitID, NetID, PinID, SubcircuitID, and DeviceID are dense ids
// within a Netlist (CircuitID) or within one Circuit (the rest).
type (
	CircuitID    int
	NetID        int
	PinID        int
	SubcircuitID int
	DeviceID     int
)

// Net is the netlist-level counterpart of a local cluster: (circuit,
// cluster_id). Its expanded name follows the precedence a global net
// name, then a joined label, then an auto-generated "net<id>" fallback.
// JoinNetsByLabel can fold another net's cluster into this one; extra
// holds those absorbed cluster ids so the survivor still answers for
// every physical cluster it now represents.
type Net struct {
	ID         NetID
	Cluster    cluster.ClusterID
	Pins       []PinID
	GlobalName string
	Label      string

	extra []cluster.ClusterID
}

// Clusters returns every local cluster id this net represents: its own
// Cluster plus any absorbed by a label join, in absorption order.
func (n *Net) Clusters() []cluster.ClusterID {
	out := make([]cluster.ClusterID, 0, 1+len(n.extra))
	out = append(out, n.Cluster)
	out = append(out, n.extra...)
	return out
}

// Pin is a named port of a circuit corresponding to a net that escapes
// upward to at least one parent connection.
type Pin struct {
	ID   PinID
	Net  NetID
	Name string
}

// Subcircuit is a netlist-level instance of a child circuit inside a
// parent circuit, one per child instance whose cell yielded a circuit.
type Subcircuit struct {
	ID           SubcircuitID
	InstanceIdx  int
	ChildCircuit CircuitID
	// NetOfPin maps the child circuit's PinID to the parent-side NetID
	// it connects to in this circuit.
	NetOfPin map[PinID]NetID
}

// Device is a netlist-level counterpart of a device-abstract cell: one
// per device-abstract cell encountered, in place of a subcircuit.
type Device struct {
	ID           DeviceID
	InstanceIdx  int
	Kind         string
	TerminalNets map[string]NetID
}

// Circuit is the netlist-level counterpart of a cell that retains at
// least one non-device cluster.
type Circuit struct {
	ID   CircuitID
	Cell layout.CellID
	Name string

	nets         []*Net
	netByCluster map[cluster.ClusterID]NetID
	pins         []*Pin
	Subcircuits  []*Subcircuit
	Devices      []*Device
}

// Nets returns the circuit's nets, ordered by NetID.
func (c *Circuit) Nets() []*Net { return c.nets }

// Net returns the net with the given id, or nil if out of range.
func (c *Circuit) Net(id NetID) *Net {
	if int(id) < 0 || int(id) >= len(c.nets) {
		return nil
	}
	return c.nets[id]
}

// NetByCluster returns the net backing cluster id, or nil if this
// circuit has no net for that cluster.
func (c *Circuit) NetByCluster(id cluster.ClusterID) *Net {
	nid, ok := c.netByCluster[id]
	if !ok {
		return nil
	}
	return c.nets[nid]
}

// Pins returns the circuit's pins, ordered by PinID.
func (c *Circuit) Pins() []*Pin { return c.pins }

// Pin returns the pin with the given id, or nil if out of range.
func (c *Circuit) Pin(id PinID) *Pin {
	if int(id) < 0 || int(id) >= len(c.pins) {
		return nil
	}
	return c.pins[id]
}

// AddNet allocates a net for cluster id, returning the new Net (its ID
// field holds the dense NetID). The
// façade calls this once per surviving local cluster while walking a
// cell's hier-clusters into a circuit.
func (c *Circuit) AddNet(clusterID cluster.ClusterID) *Net {
	id := NetID(len(c.nets))
	n := &Net{ID: id, Cluster: clusterID}
	c.nets = append(c.nets, n)
	c.netByCluster[clusterID] = id
	return n
}

// AddPin allocates a pin on net, returning the new Pin (its ID field
// holds the dense PinID).
func (c *Circuit) AddPin(net NetID, name string) *Pin {
	id := PinID(len(c.pins))
	p := &Pin{ID: id, Net: net, Name: name}
	c.pins = append(c.pins, p)
	c.nets[net].Pins = append(c.nets[net].Pins, id)
	return p
}

// Netlist is the top-level arena: one Circuit per cell that retains a
// non-device cluster, addressed by dense CircuitID.
type Netlist struct {
	circuits      []*Circuit
	circuitByCell map[layout.CellID]CircuitID
}

// New creates an empty Netlist.
func New() *Netlist {
	return &Netlist{circuitByCell: make(map[layout.CellID]CircuitID)}
}

// Circuits returns every circuit, ordered by CircuitID.
func (nl *Netlist) Circuits() []*Circuit { return nl.circuits }

// Circuit returns the circuit with the given id, or nil if out of range.
func (nl *Netlist) Circuit(id CircuitID) *Circuit {
	if int(id) < 0 || int(id) >= len(nl.circuits) {
		return nil
	}
	return nl.circuits[id]
}

// CircuitByCell returns the circuit for cell, or nil if that cell was
// optimized away (no non-device cluster, or never visited).
func (nl *Netlist) CircuitByCell(cell layout.CellID) *Circuit {
	id, ok := nl.circuitByCell[cell]
	if !ok {
		return nil
	}
	return nl.circuits[id]
}

// AddCircuit allocates a circuit for cell, returning the new Circuit
// (its ID field holds the dense CircuitID). Calling AddCircuit twice for the same cell is a programmer
// error: callers must check CircuitByCell first.
func (nl *Netlist) AddCircuit(cell layout.CellID, name string) *Circuit {
	if _, exists := nl.circuitByCell[cell]; exists {
		panic(fmt.Sprintf("netlist: invariant violation: circuit already exists for cell %d", cell))
	}
	id := CircuitID(len(nl.circuits))
	c := &Circuit{ID: id, Cell: cell, Name: name, netByCluster: make(map[cluster.ClusterID]NetID)}
	nl.circuits = append(nl.circuits, c)
	nl.circuitByCell[cell] = id
	return c
}

// sortedClusterIDs returns keys ascending, for deterministic iteration
// over a cluster set.
func sortedClusterIDs(ids map[cluster.ClusterID]bool) []cluster.ClusterID {
	out := make([]cluster.ClusterID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
