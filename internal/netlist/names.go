package netlist

import "fmt"

// ExpandedName returns a net's display name, preferring a global net
// name over a joined label over the auto-generated "net<id>" fallback —
// the same precedence the teacher's BetterNetName gives signal/user
// names over component-pin names over auto-generated ones, adapted here
// to a fixed three-tier precedence instead of a length tie-break.
func (n *Net) ExpandedName() string {
	if n.GlobalName != "" {
		return n.GlobalName
	}
	if n.Label != "" {
		return n.Label
	}
	return fmt.Sprintf("net%d", n.ID)
}

// JoinNetsByLabel merges, within circuit, any nets that share an
// assigned label — the post-clustering label join the façade's
// extract_netlist(join_nets_by_label) step performs when the caller asks
// for it. Two nets sharing a label are folded by moving the
// higher-numbered net's pins and clusters onto the lower-numbered one
// and dropping the higher one from the circuit's net list; this keeps
// NetID dense within the circuit by renumbering the survivors
// afterward. The dropped net's cluster(s) stay reachable through the
// survivor (Net.Clusters, and circuit.NetByCluster of the dropped
// cluster id) — deliverers and ProbeNet never see a merged-away net as
// missing.
func JoinNetsByLabel(c *Circuit) {
	byLabel := make(map[string][]*Net)
	for _, n := range c.nets {
		if n.Label == "" {
			continue
		}
		byLabel[n.Label] = append(byLabel[n.Label], n)
	}

	mergedInto := make(map[NetID]NetID)
	for _, group := range byLabel {
		if len(group) < 2 {
			continue
		}
		survivor := group[0]
		for _, n := range group[1:] {
			if _, already := mergedInto[n.ID]; already {
				continue
			}
			for _, pid := range n.Pins {
				c.pins[pid].Net = survivor.ID
				survivor.Pins = append(survivor.Pins, pid)
			}
			if survivor.GlobalName == "" {
				survivor.GlobalName = n.GlobalName
			}
			survivor.extra = append(survivor.extra, n.Clusters()...)
			n.Pins = nil
			mergedInto[n.ID] = survivor.ID
		}
	}
	if len(mergedInto) == 0 {
		return
	}
	renumber(c, mergedInto)
}

// renumber compacts c.nets after JoinNetsByLabel drops entries, keeping
// NetID dense and updating every pin and netByCluster entry to match.
// mergedInto maps each dropped NetID to the (pre-renumber) survivor it
// was folded into.
func renumber(c *Circuit, mergedInto map[NetID]NetID) {
	var kept []*Net
	remap := make(map[NetID]NetID, len(c.nets))
	for _, n := range c.nets {
		if _, dropped := mergedInto[n.ID]; dropped {
			continue
		}
		newID := NetID(len(kept))
		remap[n.ID] = newID
		n.ID = newID
		kept = append(kept, n)
	}
	c.nets = kept

	resolve := func(id NetID) NetID {
		if survivor, dropped := mergedInto[id]; dropped {
			return remap[survivor]
		}
		return remap[id]
	}

	for cid, old := range c.netByCluster {
		c.netByCluster[cid] = resolve(old)
	}
	for _, p := range c.pins {
		p.Net = resolve(p.Net)
	}
	for _, sc := range c.Subcircuits {
		for pid, netID := range sc.NetOfPin {
			sc.NetOfPin[pid] = resolve(netID)
		}
	}
}
