package netlist

import (
	"bytes"
	"fmt"
)

// ToDOT renders circuit and its subcircuit tree as a Graphviz DOT
// digraph: one cluster subgraph per circuit, one node per net, one edge
// per pin connecting a subcircuit's child net to the parent net it is
// wired to. This is a diagnostic dump, not a rendering path — nothing in
// this package rasterizes the result.
func (nl *Netlist) ToDOT(root CircuitID) string {
	var buf bytes.Buffer
	buf.WriteString("digraph Netlist {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [fontname=\"monospace\", fontsize=10];\n\n")

	visited := make(map[CircuitID]bool)
	nl.writeDOTCircuit(&buf, root, visited)

	buf.WriteString("}\n")
	return buf.String()
}

func (nl *Netlist) writeDOTCircuit(buf *bytes.Buffer, id CircuitID, visited map[CircuitID]bool) {
	if visited[id] {
		return
	}
	visited[id] = true
	c := nl.Circuit(id)
	if c == nil {
		return
	}

	fmt.Fprintf(buf, "  subgraph cluster_%d {\n", id)
	fmt.Fprintf(buf, "    label=%q;\n", c.Name)
	for _, n := range c.nets {
		fmt.Fprintf(buf, "    %s [label=%q, shape=box, style=\"filled,rounded\"];\n", netNodeID(id, n.ID), n.ExpandedName())
	}
	for _, dv := range c.Devices {
		fmt.Fprintf(buf, "    %s [label=%q, shape=diamond];\n", deviceNodeID(id, dv.ID), dv.Kind)
		for term, net := range dv.TerminalNets {
			fmt.Fprintf(buf, "    %s -> %s [label=%q];\n", deviceNodeID(id, dv.ID), netNodeID(id, net), term)
		}
	}
	buf.WriteString("  }\n\n")

	for _, sc := range c.Subcircuits {
		nl.writeDOTCircuit(buf, sc.ChildCircuit, visited)
		child := nl.Circuit(sc.ChildCircuit)
		if child == nil {
			continue
		}
		for pid, parentNet := range sc.NetOfPin {
			pin := child.Pin(pid)
			if pin == nil {
				continue
			}
			fmt.Fprintf(buf, "  %s -> %s [label=%q];\n", netNodeID(sc.ChildCircuit, pin.Net), netNodeID(id, parentNet), child.Name)
		}
	}
}

func netNodeID(c CircuitID, n NetID) string {
	return fmt.Sprintf("c%d_n%d", c, n)
}

func deviceNodeID(c CircuitID, d DeviceID) string {
	return fmt.Sprintf("c%d_d%d", c, d)
}
