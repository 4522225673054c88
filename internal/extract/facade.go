// Package extract is the extraction façade: the single entry point that
// ties the geometry kernel, the deep-layer store, the connectivity
// registry, the hierarchical clusterer, the net-shape iterator, and the
// netlist arena into the two-phase pipeline a caller actually drives —
// declare connectivity while Building, then query the derived netlist
// and hier-clusters once Extracted.
package extract

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"netextract/internal/cluster"
	"netextract/internal/connreg"
	"netextract/internal/deeplayer"
	"netextract/internal/layout"
	"netextract/internal/netlist"
	"netextract/internal/netshape"
	"netextract/pkg/geom"
)

// State is the façade's lifecycle phase.
type State int

const (
	// Building accepts layer/connectivity declarations; Netlist,
	// ProbeNet, BuildNet, and BuildAllNets are unavailable.
	Building State = iota
	// Extracted holds a frozen netlist and hier-clusters; no further
	// layer or connectivity declaration is accepted.
	Extracted
)

func (s State) String() string {
	if s == Extracted {
		return "extracted"
	}
	return "building"
}

// ErrWrongState reports an operation attempted in the wrong lifecycle
// phase (connect after extract, query before extract).
var ErrWrongState = fmt.Errorf("extract: operation not valid in the façade's current state")

// ErrDuplicateLayerName reports a layer-name registration collision.
var ErrDuplicateLayerName = fmt.Errorf("extract: layer name already registered to a different layer")

// Facade owns the shared layout, the deep-layer store, and the
// connectivity registry behind one mutex, following the same
// own-all-subsystem-state-behind-a-lock shape as the teacher's
// application state: every public method locks, mutates or reads, and
// unlocks, never holding the lock across a call back into user code.
type Facade struct {
	mu sync.RWMutex

	layout *layout.Layout
	store  *deeplayer.Store
	reg    *connreg.Registry

	state State

	names map[string]deeplayer.LayerID
	ids   map[deeplayer.LayerID]string
	held  map[deeplayer.LayerID]deeplayer.Handle

	termNameOf map[deeplayer.LayerID]string
	labels     []LabelPoint

	hier *cluster.HierClusters
	nl   *netlist.Netlist

	logger  *zap.Logger
	threads int
	runID   string
}

// New creates a Facade over a fresh, empty layout.
func New() *Facade {
	l := layout.New()
	return NewOver(l)
}

// NewOver creates a Facade over an already-populated layout — the path
// a caller takes when the source hierarchy comes from elsewhere (a
// decoded file format, a generator) rather than being built up shape by
// shape through this façade.
func NewOver(l *layout.Layout) *Facade {
	return &Facade{
		layout:     l,
		store:      deeplayer.New(l),
		reg:        connreg.New(),
		names:      make(map[string]deeplayer.LayerID),
		ids:        make(map[deeplayer.LayerID]string),
		held:       make(map[deeplayer.LayerID]deeplayer.Handle),
		termNameOf: make(map[deeplayer.LayerID]string),
		logger:     zap.NewNop(),
		threads:    1,
	}
}

// Layout returns the shared source layout, mutable by callers adding
// shapes and instances before extraction.
func (f *Facade) Layout() *layout.Layout { return f.layout }

// SetLogger installs l for every subsequent clustering pass; nil
// resets to a no-op logger.
func (f *Facade) SetLogger(l *zap.Logger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	f.logger = l
}

// SetThreads configures the worker-pool size used for both deep-layer
// ingestion and local clustering. 0 or 1 means sequential.
func (f *Facade) SetThreads(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 1 {
		n = 1
	}
	f.threads = n
	f.store.SetThreads(n)
}

// MakePolygonLayer pulls shapes through src into a new deep layer,
// holding a reference to it for the façade's lifetime, and — if name is
// non-empty — registers that name the same way RegisterLayer would.
func (f *Facade) MakePolygonLayer(src layout.ShapeSource, name string) (deeplayer.LayerID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Building {
		return 0, fmt.Errorf("extract: make_polygon_layer: %w", ErrWrongState)
	}
	id, err := f.store.CreatePolygonLayer(src)
	if err != nil {
		return 0, err
	}
	f.held[id] = deeplayer.NewHandle(f.store, id)
	if name != "" {
		if err := f.registerLayerLocked(id, name); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// MakeTextLayer pulls label shapes out of src for later label-based net
// joining, asking src for the labels of every cell; src's shape filter
// must admit texts for it to report any. It creates no deep layer of its own — labels never cluster,
// they only name a net that clustering already grouped.
func (f *Facade) MakeTextLayer(src layout.ShapeSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Building {
		return fmt.Errorf("extract: make_text_layer: %w", ErrWrongState)
	}
	if err := layout.CheckUnclipped(src); err != nil {
		return err
	}
	f.labels = append(f.labels, collectLabels(f.layout, src)...)
	return nil
}

// RegisterLayer names an existing layer. Renaming a layer drops its old
// name; naming two different layers the same name fails with
// ErrDuplicateLayerName.
func (f *Facade) RegisterLayer(id deeplayer.LayerID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Building {
		return fmt.Errorf("extract: register_layer: %w", ErrWrongState)
	}
	return f.registerLayerLocked(id, name)
}

func (f *Facade) registerLayerLocked(id deeplayer.LayerID, name string) error {
	if existing, ok := f.names[name]; ok && existing != id {
		return fmt.Errorf("extract: register_layer: name %q: %w", name, ErrDuplicateLayerName)
	}
	if old, ok := f.ids[id]; ok && old != name {
		delete(f.names, old)
	}
	f.names[name] = id
	f.ids[id] = name
	f.reg.MarkPersisted(id)
	return nil
}

// Connect marks layer l as internally connected.
func (f *Facade) Connect(l deeplayer.LayerID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Building {
		return fmt.Errorf("extract: connect: %w", ErrWrongState)
	}
	return f.reg.Connect(l)
}

// ConnectPair marks layers a and b as mutually connected.
func (f *Facade) ConnectPair(a, b deeplayer.LayerID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Building {
		return fmt.Errorf("extract: connect: %w", ErrWrongState)
	}
	return f.reg.ConnectPair(a, b)
}

// ConnectGlobal associates layer l with a named global net.
func (f *Facade) ConnectGlobal(l deeplayer.LayerID, name string) (connreg.GlobalID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Building {
		return 0, fmt.Errorf("extract: connect_global: %w", ErrWrongState)
	}
	return f.reg.ConnectGlobal(l, name)
}

// ExtractDevices runs extractor over the caller's named input layers,
// then folds every RecognizedDevice it returns into the shared layout:
// one device-abstract cell per device, one shape per terminal drawn
// into it, and one fresh deep layer per distinct terminal source layer
// — connected and held — so later clustering gives each terminal its
// own local cluster inside the device's cell.
func (f *Facade) ExtractDevices(extractor DeviceExtractor, layersByName map[string]deeplayer.LayerID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Building {
		return fmt.Errorf("extract: extract_devices: %w", ErrWrongState)
	}

	devices, err := extractor.ExtractDevices(f.store, layersByName)
	if err != nil {
		return err
	}

	srcLayerName := make(map[layout.SourceLayer]string)
	for _, dv := range devices {
		abstractCell := f.layout.AddCell(dv.Kind)
		cell := f.layout.Cell(abstractCell)
		cell.DeviceAbstract = true
		cell.DeviceKind = dv.Kind
		for _, term := range dv.Terminals {
			f.layout.AddShape(abstractCell, term.Layer, term.Shape)
			srcLayerName[term.Layer] = term.Name
		}
		f.layout.AddInstance(dv.Parent, layout.Instance{Cell: abstractCell, Trans: dv.Trans})
	}

	srcLayers := make([]layout.SourceLayer, 0, len(srcLayerName))
	for lyr := range srcLayerName {
		srcLayers = append(srcLayers, lyr)
	}
	sort.Slice(srcLayers, func(i, j int) bool { return srcLayers[i] < srcLayers[j] })

	for _, srcLayer := range srcLayers {
		id, err := f.store.CreatePolygonLayer(layout.NewSource(f.layout, srcLayer))
		if err != nil {
			return err
		}
		f.held[id] = deeplayer.NewHandle(f.store, id)
		f.reg.MarkPersisted(id)
		if err := f.reg.Connect(id); err != nil {
			return err
		}
		f.termNameOf[id] = srcLayerName[srcLayer]
	}
	return nil
}

// ExtractNetlist runs the hierarchical clusterer, freezes connectivity,
// and assembles the netlist: one Circuit per surviving non-device cell,
// one Subcircuit or Device per instance, and — when joinNetsByLabel is
// set — a per-circuit label join over any nets a text layer named.
func (f *Facade) ExtractNetlist(joinNetsByLabel bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Building {
		return fmt.Errorf("extract: extract_netlist: %w", ErrWrongState)
	}

	f.runID = uuid.New().String()
	f.logger.Info("extract_netlist", zap.String("run_id", f.runID), zap.Bool("join_nets_by_label", joinNetsByLabel))

	hc, err := cluster.Compute(f.layout, f.store, f.reg, cluster.Options{Threads: f.threads, Logger: f.logger})
	if err != nil {
		return err
	}
	f.reg.Freeze()

	nl := assembleNetlist(f.layout, hc, f.termNameOf)
	assignLabels(f.layout, hc, nl, f.labels)
	if joinNetsByLabel {
		for _, c := range nl.Circuits() {
			netlist.JoinNetsByLabel(c)
		}
	}

	f.hier = hc
	f.nl = nl
	f.state = Extracted
	return nil
}

// LastRunID returns the run identifier stamped on the most recent
// ExtractNetlist call, for correlating it with the log lines that call
// emitted, or "" before the first run.
func (f *Facade) LastRunID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.runID
}

// Netlist returns the extracted netlist, or nil before ExtractNetlist
// runs.
func (f *Facade) Netlist() *netlist.Netlist {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nl
}

// LayerByName resolves a registered layer name to its id.
func (f *Facade) LayerByName(name string) (deeplayer.LayerID, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.names[name]
	return id, ok
}

// LayerByIndex returns a held reference to layer id, for a caller that
// obtained the numeric id some other way (e.g. from NameOfLayer's
// inverse, or a persisted record) and needs an owned handle back.
func (f *Facade) LayerByIndex(id deeplayer.LayerID) (deeplayer.Handle, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	h, ok := f.held[id]
	return h, ok
}

// NameOfLayer returns the registered name for layer id, if any.
func (f *Facade) NameOfLayer(id deeplayer.LayerID) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	name, ok := f.ids[id]
	return name, ok
}

func (f *Facade) preserved(cell layout.CellID) bool {
	if f.nl.CircuitByCell(cell) != nil {
		return true
	}
	return f.layout.Cell(cell).DeviceAbstract
}

// ShapesOfNet delivers a net's shapes on layer, either flattened
// through the whole subtree (recursive) or only as far as the next
// surviving circuit or device boundary.
func (f *Facade) ShapesOfNet(circuitID netlist.CircuitID, netID netlist.NetID, layer deeplayer.LayerID, recursive bool) ([]layout.ShapeRef, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state != Extracted {
		return nil, fmt.Errorf("extract: shapes_of_net: %w", ErrWrongState)
	}
	circuit := f.nl.Circuit(circuitID)
	if circuit == nil {
		return nil, fmt.Errorf("extract: invariant violation: no circuit %d", circuitID)
	}
	net := circuit.Net(netID)
	if net == nil {
		return nil, fmt.Errorf("extract: invariant violation: no net %d in circuit %d", netID, circuitID)
	}

	s := &netshape.Shapes{Layout: f.layout, Store: f.store, Hier: f.hier}
	var out []layout.ShapeRef
	for _, cl := range net.Clusters() {
		ident := netshape.NetIdentity{Cell: circuit.Cell, Cluster: cl}
		var shapes []layout.ShapeRef
		var err error
		if recursive {
			shapes, err = s.DeliverRecursive(ident, layer)
		} else {
			shapes, err = s.DeliverNonRecursive(ident, layer, f.preserved)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, shapes...)
	}
	return out, nil
}

// BuildNet rebuilds one net's geometry into an already-existing
// targetCell of target.
func (f *Facade) BuildNet(circuitID netlist.CircuitID, netID netlist.NetID, target *layout.Layout, targetCell layout.CellID, opts netshape.BuildOptions) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state != Extracted {
		return fmt.Errorf("extract: build_net: %w", ErrWrongState)
	}
	return netshape.BuildNet(f.layout, f.store, f.hier, f.nl, circuitID, netID, target, targetCell, opts)
}

// BuildAllNets rebuilds every circuit into target, returning the target
// cell built for each.
func (f *Facade) BuildAllNets(target *layout.Layout, opts netshape.BuildOptions) (map[netlist.CircuitID]layout.CellID, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state != Extracted {
		return nil, fmt.Errorf("extract: build_all_nets: %w", ErrWrongState)
	}
	return netshape.BuildAllNets(f.layout, f.store, f.hier, f.nl, target, opts)
}

// ProbeNet locates point on layer and climbs it to the outermost
// circuit where it is still electrically distinct, returning that
// circuit and net — or (nil, nil, nil) if point hits no shape.
func (f *Facade) ProbeNet(layer deeplayer.LayerID, point geom.Point) (*netlist.Circuit, *netlist.Net, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state != Extracted {
		return nil, nil, fmt.Errorf("extract: probe_net: %w", ErrWrongState)
	}
	if !f.reg.IsPersisted(layer) {
		return nil, nil, fmt.Errorf("extract: probe_net: layer %d: %w", layer, connreg.ErrNotPersisted)
	}
	s := &netshape.Shapes{Layout: f.layout, Store: f.store, Hier: f.hier}
	res, err := s.ProbeNet(layer, point)
	if err != nil {
		return nil, nil, err
	}
	if res == nil {
		return nil, nil, nil
	}
	return netshape.ClimbToOutermost(f.layout, f.nl, res)
}

// CellMappingInto builds every circuit into target via BuildAllNets and
// returns one CellMapping per instance BuildAllNets placed.
func (f *Facade) CellMappingInto(target *layout.Layout, opts netshape.BuildOptions, withDeviceCells bool) ([]CellMapping, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state != Extracted {
		return nil, fmt.Errorf("extract: cell_mapping_into: %w", ErrWrongState)
	}
	cells, err := netshape.BuildAllNets(f.layout, f.store, f.hier, f.nl, target, opts)
	if err != nil {
		return nil, err
	}
	return mappingsFrom(target, cells, withDeviceCells), nil
}

// ConstCellMappingInto reports the same mapping CellMappingInto would,
// given a cells map an earlier BuildAllNets call already produced,
// without rebuilding anything.
func (f *Facade) ConstCellMappingInto(target *layout.Layout, cells map[netlist.CircuitID]layout.CellID, withDeviceCells bool) []CellMapping {
	return mappingsFrom(target, cells, withDeviceCells)
}
