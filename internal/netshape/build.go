package netshape

import (
	"fmt"
	"math"
	"sort"

	"netextract/internal/cluster"
	"netextract/internal/deeplayer"
	"netextract/internal/layout"
	"netextract/internal/netlist"
	"netextract/pkg/geom"
)

// BuildOptions configures hierarchy rebuild: the database-unit scale
// conversion between source and target, the per-source-layer mapping
// into target source layers, and the naming prefixes for net, circuit,
// and device cells. A zero-value NetCellNamePrefix means "emit net
// shapes directly into the circuit's cell" rather than "create a
// dedicated net subcell". Circuit and device cells are always created;
// an empty CircuitCellNamePrefix or DeviceCellNamePrefix only leaves
// their names unprefixed.
type BuildOptions struct {
	DBUSource, DBUTarget float64

	LayerMap map[deeplayer.LayerID]layout.SourceLayer

	NetCellNamePrefix     string
	CircuitCellNamePrefix string
	DeviceCellNamePrefix  string
}

func (o BuildOptions) magnification() float64 {
	if o.DBUSource == 0 || o.DBUTarget == 0 {
		return 1
	}
	return o.DBUSource / o.DBUTarget
}

// Builder rebuilds a netlist's circuits back into a concrete target
// layout: one target cell per circuit, with the circuit's nets either
// drawn directly into it or broken out into dedicated net subcells, and
// subcircuit/device connections instanced in as recursively rebuilt
// child cells. The dbu_source/dbu_target scale is never attached to an
// instance transform — it is baked once into every emitted polygon and
// every instance displacement instead. A rebuilt instance keeps the
// rotation and magnification of its source instance unchanged.
type Builder struct {
	Src   *layout.Layout
	Store *deeplayer.Store
	Hier  *cluster.HierClusters
	NL    *netlist.Netlist

	Target *layout.Layout
	Opts   BuildOptions

	circuitCells map[netlist.CircuitID]layout.CellID
	netCells     map[ownerKey]layout.CellID
	deviceCells  map[layout.CellID]layout.CellID

	owners map[ownerKey]netOwner
}

type ownerKey struct {
	Circuit netlist.CircuitID
	Net     netlist.NetID
}

// netOwner records, for a (circuit, net) pair, its ultimate owning
// (circuit, net) and the transform mapping this net's native cluster
// coordinates into that owner's frame. A net with no upward connection
// owns itself under the identity transform.
type netOwner struct {
	Owner   ownerKey
	ToOwner geom.Trans
}

// BuildAllNets rebuilds every circuit in nl into target, promoting local
// nets of child circuits up to the topmost circuit that owns them so the
// same physical net is never drawn twice. It returns the target cell
// built for each circuit.
func BuildAllNets(src *layout.Layout, store *deeplayer.Store, hier *cluster.HierClusters, nl *netlist.Netlist, target *layout.Layout, opts BuildOptions) (map[netlist.CircuitID]layout.CellID, error) {
	b := &Builder{
		Src: src, Store: store, Hier: hier, NL: nl, Target: target, Opts: opts,
		circuitCells: make(map[netlist.CircuitID]layout.CellID),
		netCells:     make(map[ownerKey]layout.CellID),
		deviceCells:  make(map[layout.CellID]layout.CellID),
	}
	b.owners = b.resolveOwners()

	for _, c := range nl.Circuits() {
		if _, err := b.buildCircuit(c.ID); err != nil {
			return nil, err
		}
	}

	if top := nl.CircuitByCell(src.TopCell); top != nil {
		if topCell, ok := b.circuitCells[top.ID]; ok && topCell != target.TopCell {
			target.AddInstance(target.TopCell, layout.Instance{Cell: topCell, Trans: geom.Identity})
		}
	}
	return b.circuitCells, nil
}

// BuildNet rebuilds a single net's geometry into an already-existing
// targetCell, promoting any locally-owned child nets into it exactly as
// BuildAllNets would for the owning circuit, but without materializing
// any other part of the hierarchy. The net must own itself under the
// promotion map; a net promoted to an ancestor circuit must be built
// from that ancestor's net instead.
func BuildNet(src *layout.Layout, store *deeplayer.Store, hier *cluster.HierClusters, nl *netlist.Netlist, circuitID netlist.CircuitID, netID netlist.NetID, target *layout.Layout, targetCell layout.CellID, opts BuildOptions) error {
	b := &Builder{
		Src: src, Store: store, Hier: hier, NL: nl, Target: target, Opts: opts,
		circuitCells: make(map[netlist.CircuitID]layout.CellID),
		netCells:     make(map[ownerKey]layout.CellID),
		deviceCells:  make(map[layout.CellID]layout.CellID),
	}
	b.owners = b.resolveOwners()

	circuit := b.NL.Circuit(circuitID)
	if circuit == nil {
		return fmt.Errorf("netshape: invariant violation: no circuit %d", circuitID)
	}
	net := circuit.Net(netID)
	if net == nil {
		return fmt.Errorf("netshape: invariant violation: no net %d in circuit %d", netID, circuitID)
	}
	key := ownerKey{circuitID, netID}
	if b.owners[key].Owner != key {
		return fmt.Errorf("netshape: net %d of circuit %d is owned by an ancestor circuit; build that net instead", netID, circuitID)
	}
	return b.buildOwnedNet(targetCell, circuit, net)
}

// resolveOwners builds the promotion map used to decide, for every net
// in every circuit, whether it is rendered here or at some ancestor
// circuit instead. A net is promoted to its parent's net the first time
// a subcircuit connection is found linking them; ambiguity from the same
// child net reaching multiple parents through different instances is
// resolved by keeping the first link discovered in circuit/subcircuit/
// pin id order, matching the single-emission behavior the rebuild is
// grounded on.
func (b *Builder) resolveOwners() map[ownerKey]netOwner {
	type hop struct {
		Parent ownerKey
		Trans  geom.Trans
	}
	parentOf := make(map[ownerKey]hop)

	for _, parent := range b.NL.Circuits() {
		parentCell := b.Src.Cell(parent.Cell)
		for _, sc := range parent.Subcircuits {
			child := b.NL.Circuit(sc.ChildCircuit)
			if child == nil || sc.InstanceIdx >= len(parentCell.Instances) {
				continue
			}
			instTrans := parentCell.Instances[sc.InstanceIdx].Trans
			pinIDs := make([]netlist.PinID, 0, len(sc.NetOfPin))
			for pid := range sc.NetOfPin {
				pinIDs = append(pinIDs, pid)
			}
			sort.Slice(pinIDs, func(i, j int) bool { return pinIDs[i] < pinIDs[j] })
			for _, pid := range pinIDs {
				pin := child.Pin(pid)
				if pin == nil {
					continue
				}
				key := ownerKey{sc.ChildCircuit, pin.Net}
				if _, exists := parentOf[key]; exists {
					continue
				}
				parentOf[key] = hop{Parent: ownerKey{parent.ID, sc.NetOfPin[pid]}, Trans: instTrans}
			}
		}
	}

	owners := make(map[ownerKey]netOwner)
	var resolve func(key ownerKey) netOwner
	resolve = func(key ownerKey) netOwner {
		if o, ok := owners[key]; ok {
			return o
		}
		h, ok := parentOf[key]
		if !ok {
			o := netOwner{Owner: key, ToOwner: geom.Identity}
			owners[key] = o
			return o
		}
		parentOwner := resolve(h.Parent)
		o := netOwner{Owner: parentOwner.Owner, ToOwner: parentOwner.ToOwner.Compose(h.Trans)}
		owners[key] = o
		return o
	}
	for _, c := range b.NL.Circuits() {
		for _, n := range c.Nets() {
			resolve(ownerKey{c.ID, n.ID})
		}
	}
	return owners
}

func (b *Builder) scale() geom.Trans {
	return geom.Trans{Rot: 0, Mag: b.Opts.magnification(), Disp: geom.Point{}}
}

func scaleDisp(p geom.Point, m float64) geom.Point {
	return geom.Pt(int64(math.Round(float64(p.X)*m)), int64(math.Round(float64(p.Y)*m)))
}

func (b *Builder) preserved(cell layout.CellID) bool {
	if b.NL.CircuitByCell(cell) != nil {
		return true
	}
	return b.Src.Cell(cell).DeviceAbstract
}

func (b *Builder) shapesOf(circuit *netlist.Circuit, net *netlist.Net, layer deeplayer.LayerID) ([]layout.ShapeRef, error) {
	s := &Shapes{Layout: b.Src, Store: b.Store, Hier: b.Hier}
	var out []layout.ShapeRef
	for _, cl := range net.Clusters() {
		shapes, err := s.DeliverNonRecursive(NetIdentity{Cell: circuit.Cell, Cluster: cl}, layer, b.preserved)
		if err != nil {
			return nil, err
		}
		out = append(out, shapes...)
	}
	return out, nil
}

// buildCircuit materializes circuit's target cell, memoized by circuit
// id: every net it owns, every subcircuit instanced into it, and every
// device it abstracts.
func (b *Builder) buildCircuit(id netlist.CircuitID) (layout.CellID, error) {
	if cellID, ok := b.circuitCells[id]; ok {
		return cellID, nil
	}
	circuit := b.NL.Circuit(id)
	name := b.Opts.CircuitCellNamePrefix + b.Src.Cell(circuit.Cell).Name
	cellID := b.Target.AddCell(name)
	b.circuitCells[id] = cellID

	for _, net := range circuit.Nets() {
		key := ownerKey{id, net.ID}
		if b.owners[key].Owner != key {
			continue // promoted to an ancestor circuit; drawn there instead
		}
		if err := b.buildOwnedNet(cellID, circuit, net); err != nil {
			return 0, err
		}
	}

	for _, sc := range circuit.Subcircuits {
		if err := b.instanceSubcircuit(cellID, circuit, sc); err != nil {
			return 0, err
		}
	}
	for _, dv := range circuit.Devices {
		b.instanceDevice(cellID, circuit, dv)
	}
	return cellID, nil
}

// buildOwnedNet draws net (which owns itself under the promotion map)
// into parentTarget, including the shapes of every descendant net that
// was promoted up to it, each composed through its recorded transform
// into net's circuit frame before the global dbu scale is applied.
func (b *Builder) buildOwnedNet(parentTarget layout.CellID, circuit *netlist.Circuit, net *netlist.Net) error {
	key := ownerKey{circuit.ID, net.ID}
	m := b.scale()

	var allShapes = make(map[deeplayer.LayerID][]geom.Polygon)
	addShapes := func(c *netlist.Circuit, n *netlist.Net, toOwner geom.Trans) error {
		for deepLayer := range b.Opts.LayerMap {
			shapes, err := b.shapesOf(c, n, deepLayer)
			if err != nil {
				return err
			}
			for _, sh := range shapes {
				abs := sh.Shape().Transformed(toOwner)
				allShapes[deepLayer] = append(allShapes[deepLayer], abs)
			}
		}
		return nil
	}
	if err := addShapes(circuit, net, geom.Identity); err != nil {
		return err
	}
	var contributors []ownerKey
	for k, o := range b.owners {
		if o.Owner == key && k != key {
			contributors = append(contributors, k)
		}
	}
	sort.Slice(contributors, func(i, j int) bool {
		if contributors[i].Circuit != contributors[j].Circuit {
			return contributors[i].Circuit < contributors[j].Circuit
		}
		return contributors[i].Net < contributors[j].Net
	})
	for _, k := range contributors {
		childCircuit := b.NL.Circuit(k.Circuit)
		childNet := childCircuit.Net(k.Net)
		if err := addShapes(childCircuit, childNet, b.owners[k].ToOwner); err != nil {
			return err
		}
	}

	hasShapes := false
	for _, polys := range allShapes {
		if len(polys) > 0 {
			hasShapes = true
		}
	}
	if !hasShapes && len(net.Pins) == 0 {
		return nil // empty-cell elision: nothing to draw and nothing connecting through it
	}

	dest := parentTarget
	if b.Opts.NetCellNamePrefix != "" {
		dest = b.Target.AddCell(b.Opts.NetCellNamePrefix + net.ExpandedName())
		b.Target.AddInstance(parentTarget, layout.Instance{Cell: dest, Trans: geom.Identity})
	}
	for deepLayer, polys := range allShapes {
		targetLayer := b.Opts.LayerMap[deepLayer]
		for _, poly := range polys {
			b.Target.AddShape(dest, targetLayer, layout.ShapeRef{Polygon: poly.Transformed(m), Trans: geom.Identity})
		}
	}
	return nil
}

func (b *Builder) instanceSubcircuit(parentTarget layout.CellID, parent *netlist.Circuit, sc *netlist.Subcircuit) error {
	child := b.NL.Circuit(sc.ChildCircuit)
	childTarget, err := b.buildCircuit(sc.ChildCircuit)
	if err != nil {
		return err
	}
	parentCell := b.Src.Cell(parent.Cell)
	if sc.InstanceIdx >= len(parentCell.Instances) {
		return fmt.Errorf("netshape: invariant violation: subcircuit instance index %d out of range for cell %d", sc.InstanceIdx, parent.Cell)
	}
	srcInst := parentCell.Instances[sc.InstanceIdx]
	targetTrans := geom.Trans{Rot: srcInst.Trans.Rot, Mag: srcInst.Trans.Mag, Disp: scaleDisp(srcInst.Trans.Disp, b.Opts.magnification())}
	b.Target.AddInstance(parentTarget, layout.Instance{Cell: childTarget, Trans: targetTrans})

	b.renderFloatingChildNets(parentTarget, child, sc, srcInst.Trans)
	return nil
}

// renderFloatingChildNets handles the dangling-pin case: a child pin
// this particular subcircuit instance never wired to a parent net still
// has a real net on the child side, so it is drawn explicitly in the
// calling circuit under a "prefix + subcircuit-label + : + net-name"
// cell rather than silently dropped.
func (b *Builder) renderFloatingChildNets(parentTarget layout.CellID, child *netlist.Circuit, sc *netlist.Subcircuit, instTrans geom.Trans) {
	m := b.scale()
	label := fmt.Sprintf("%s#%d", child.Name, sc.InstanceIdx)
	for _, pin := range child.Pins() {
		if _, wired := sc.NetOfPin[pin.ID]; wired {
			continue
		}
		net := child.Net(pin.Net)
		if net == nil {
			continue
		}
		owner := b.owners[ownerKey{child.ID, net.ID}]
		if owner.Owner != (ownerKey{child.ID, net.ID}) {
			continue // this net is promoted elsewhere regardless of this dangling pin
		}
		name := b.Opts.NetCellNamePrefix + label + ":" + net.ExpandedName()
		dest := b.Target.AddCell(name)
		b.Target.AddInstance(parentTarget, layout.Instance{Cell: dest, Trans: geom.Identity})
		for deepLayer, targetLayer := range b.Opts.LayerMap {
			shapes, err := b.shapesOf(child, net, deepLayer)
			if err != nil {
				continue
			}
			for _, sh := range shapes {
				abs := sh.Shape().Transformed(instTrans).Transformed(m)
				b.Target.AddShape(dest, targetLayer, layout.ShapeRef{Polygon: abs, Trans: geom.Identity})
			}
		}
	}
}

// instanceDevice places a nameless abstract cell standing in for a
// device-extractor result: device geometry itself is outside this
// package's concern (internal/extract's device hook owns it), so the
// rebuilt hierarchy records the device's presence and position only.
func (b *Builder) instanceDevice(parentTarget layout.CellID, circuit *netlist.Circuit, dv *netlist.Device) {
	parentCell := b.Src.Cell(circuit.Cell)
	if dv.InstanceIdx >= len(parentCell.Instances) {
		return
	}
	srcInst := parentCell.Instances[dv.InstanceIdx]
	abstractCell := srcInst.Cell

	target, ok := b.deviceCells[abstractCell]
	if !ok {
		target = b.Target.AddCell(b.Opts.DeviceCellNamePrefix + dv.Kind)
		b.deviceCells[abstractCell] = target
	}
	targetTrans := geom.Trans{Rot: srcInst.Trans.Rot, Mag: srcInst.Trans.Mag, Disp: scaleDisp(srcInst.Trans.Disp, b.Opts.magnification())}
	b.Target.AddInstance(parentTarget, layout.Instance{Cell: target, Trans: targetTrans})
}
