// Package connreg implements the connectivity registry: the declarative
// input of intra-layer, inter-layer, and global connections that drives
// hierarchical clustering.
package connreg

import (
	"fmt"
	"sort"

	"netextract/internal/deeplayer"
)

// GlobalID is a dense id for a global net name (e.g. "GND", "VDD").
type GlobalID int

// edge is an unordered pair of layer ids; intra-layer connections use
// a == b.
type edge struct{ a, b deeplayer.LayerID }

func newEdge(a, b deeplayer.LayerID) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

// Registry accumulates connectivity declarations until extraction
// freezes it.
type Registry struct {
	persisted map[deeplayer.LayerID]bool
	edges     map[edge]bool

	globalEdges map[deeplayer.LayerID]map[GlobalID]bool
	globalNames map[GlobalID]string
	globalIDs   map[string]GlobalID
	nextGlobal  GlobalID

	frozen bool
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		persisted:   make(map[deeplayer.LayerID]bool),
		edges:       make(map[edge]bool),
		globalEdges: make(map[deeplayer.LayerID]map[GlobalID]bool),
		globalNames: make(map[GlobalID]string),
		globalIDs:   make(map[string]GlobalID),
	}
}

// MarkPersisted records that layer has a registered name: every layer
// participating in a connection must be persisted first. The façade
// calls this whenever it names a layer.
func (r *Registry) MarkPersisted(layer deeplayer.LayerID) {
	r.persisted[layer] = true
}

// IsPersisted reports whether layer has a registered name.
func (r *Registry) IsPersisted(layer deeplayer.LayerID) bool {
	return r.persisted[layer]
}

// ErrNotPersisted is returned when connect() is called on a layer that
// has no registered name.
var ErrNotPersisted = fmt.Errorf("connreg: layer is not persisted (has no registered name)")

// ErrExtracted is returned by every mutator once the registry has been
// frozen by extraction.
var ErrExtracted = fmt.Errorf("connreg: connectivity is frozen after extraction")

// Connect marks layer l as internally connected: shapes on l in the same
// cell, if they touch, are one cluster. Idempotent.
func (r *Registry) Connect(l deeplayer.LayerID) error {
	return r.ConnectPair(l, l)
}

// ConnectPair marks layers a and b as mutually connected. Idempotent and
// commutative: ConnectPair(a,b) and ConnectPair(b,a) have identical
// effect.
func (r *Registry) ConnectPair(a, b deeplayer.LayerID) error {
	if r.frozen {
		return ErrExtracted
	}
	if !r.persisted[a] {
		return fmt.Errorf("connreg: layer %d: %w", a, ErrNotPersisted)
	}
	if !r.persisted[b] {
		return fmt.Errorf("connreg: layer %d: %w", b, ErrNotPersisted)
	}
	r.edges[newEdge(a, b)] = true
	return nil
}

// ConnectGlobal associates layer l with a global net name, returning its
// dense id. Multiple layers may share a name.
func (r *Registry) ConnectGlobal(l deeplayer.LayerID, name string) (GlobalID, error) {
	if r.frozen {
		return 0, ErrExtracted
	}
	if !r.persisted[l] {
		return 0, fmt.Errorf("connreg: layer %d: %w", l, ErrNotPersisted)
	}
	id := r.GlobalNetID(name)
	if r.globalEdges[l] == nil {
		r.globalEdges[l] = make(map[GlobalID]bool)
	}
	r.globalEdges[l][id] = true
	return id, nil
}

// GlobalNetID allocates (if new) or returns the id for name.
func (r *Registry) GlobalNetID(name string) GlobalID {
	if id, ok := r.globalIDs[name]; ok {
		return id
	}
	id := r.nextGlobal
	r.nextGlobal++
	r.globalIDs[name] = id
	r.globalNames[id] = name
	return id
}

// GlobalNetName returns the name for id, or "" if unknown.
func (r *Registry) GlobalNetName(id GlobalID) string {
	return r.globalNames[id]
}

// GlobalsOf returns the sorted global ids attached to a layer.
func (r *Registry) GlobalsOf(l deeplayer.LayerID) []GlobalID {
	m := r.globalEdges[l]
	if len(m) == 0 {
		return nil
	}
	out := make([]GlobalID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ConnectedLayers returns, for layer l, the sorted set of layers
// connected to it (including l itself if self-connected).
func (r *Registry) ConnectedLayers(l deeplayer.LayerID) []deeplayer.LayerID {
	set := make(map[deeplayer.LayerID]bool)
	for e := range r.edges {
		if e.a == l {
			set[e.b] = true
		} else if e.b == l {
			set[e.a] = true
		}
	}
	out := make([]deeplayer.LayerID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Connected reports whether a and b are directly connected, in either
// order.
func (r *Registry) Connected(a, b deeplayer.LayerID) bool {
	return r.edges[newEdge(a, b)]
}

// ActiveLayers returns the sorted set of layers that participate in any
// connection or global-net association — the layers clustering must
// consider when building the shape-element set for a cell.
func (r *Registry) ActiveLayers() []deeplayer.LayerID {
	set := make(map[deeplayer.LayerID]bool)
	for e := range r.edges {
		set[e.a] = true
		set[e.b] = true
	}
	for l := range r.globalEdges {
		set[l] = true
	}
	out := make([]deeplayer.LayerID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ConnectedPairs returns every declared (a,b) edge, a<=b, sorted.
func (r *Registry) ConnectedPairs() [][2]deeplayer.LayerID {
	out := make([][2]deeplayer.LayerID, 0, len(r.edges))
	for e := range r.edges {
		out = append(out, [2]deeplayer.LayerID{e.a, e.b})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// Freeze prevents any further mutation: connections accumulate until
// extraction fires; after that the registry's state is frozen.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Frozen reports whether the registry has been frozen.
func (r *Registry) Frozen() bool {
	return r.frozen
}
