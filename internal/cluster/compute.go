package cluster

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"netextract/internal/connreg"
	"netextract/internal/deeplayer"
	"netextract/internal/layout"
	"netextract/pkg/geom"
)

// Options configures Compute.
type Options struct {
	// Threads is the worker-pool size for independent per-cell local
	// clustering. 0 or 1 means sequential.
	Threads int
	Logger  *zap.Logger
}

type elementKind int

const (
	kindShape elementKind = iota
	kindPseudo
)

type element struct {
	kind   elementKind
	layers []deeplayer.LayerID
	box    geom.Box
	global []connreg.GlobalID

	// shape fields
	shapeLayer deeplayer.LayerID
	shape      layout.ShapeRef

	// pseudo fields
	instanceIdx  int
	childCluster ClusterID
}

// Compute runs the hierarchical clusterer over l, pulling shapes through
// store and honoring the connections declared in reg.
func Compute(l *layout.Layout, store *deeplayer.Store, reg *connreg.Registry, opts Options) (*HierClusters, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}

	order := l.PostOrder()
	result := newHierClusters()

	// Cells are processed level-by-level: within a level, independent
	// cells may run concurrently, since neither depends on the other's
	// output. PostOrder already guarantees every cell's children precede
	// it, so we simply batch the post-order sequence into levels by
	// dependency depth.
	levels := levelize(l, order)

	for _, level := range levels {
		if threads <= 1 || len(level) <= 1 {
			for _, id := range level {
				cc, err := computeCell(l, store, reg, result, id, logger)
				if err != nil {
					return nil, err
				}
				result.ByCell[id] = cc
			}
			continue
		}

		g := new(errgroup.Group)
		g.SetLimit(threads)
		partial := make([]*CellClusters, len(level))
		for i, id := range level {
			i, id := i, id
			g.Go(func() error {
				cc, err := computeCell(l, store, reg, result, id, logger)
				if err != nil {
					return err
				}
				partial[i] = cc
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for i, id := range level {
			result.ByCell[id] = partial[i]
		}
	}

	return result, nil
}

// levelize groups post-order cell ids into dependency levels: level k
// contains cells whose deepest child is in level k-1. Leaves are level
// 0. Cells within a level have no dependency on each other and may run
// concurrently.
func levelize(l *layout.Layout, order []layout.CellID) [][]layout.CellID {
	depth := make(map[layout.CellID]int, len(order))
	for _, id := range order {
		d := 0
		for _, inst := range l.Cell(id).Instances {
			if cd, ok := depth[inst.Cell]; ok && cd+1 > d {
				d = cd + 1
			}
		}
		depth[id] = d
	}
	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	levels := make([][]layout.CellID, maxDepth+1)
	for _, id := range order {
		levels[depth[id]] = append(levels[depth[id]], id)
	}
	return levels
}

func computeCell(l *layout.Layout, store *deeplayer.Store, reg *connreg.Registry, prior *HierClusters, id layout.CellID, logger *zap.Logger) (*CellClusters, error) {
	cell := l.Cell(id)
	active := reg.ActiveLayers()

	var elems []element

	for _, lyr := range active {
		shapes, err := store.Shapes(id, lyr)
		if err != nil {
			return nil, fmt.Errorf("cluster: cell %q layer %d: %w", cell.Name, lyr, err)
		}
		for _, s := range shapes {
			elems = append(elems, element{
				kind:       kindShape,
				layers:     []deeplayer.LayerID{lyr},
				box:        s.Box(),
				global:     reg.GlobalsOf(lyr),
				shapeLayer: lyr,
				shape:      s,
			})
		}
	}

	for instIdx, inst := range cell.Instances {
		childCC := prior.ByCell[inst.Cell]
		if childCC == nil {
			continue
		}
		ids := make([]ClusterID, 0, len(childCC.Clusters))
		for _, c := range childCC.Clusters {
			if c.Escaping {
				ids = append(ids, c.ID)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, cid := range ids {
			child := childCC.Cluster(cid)
			elems = append(elems, element{
				kind:         kindPseudo,
				layers:       layerKeys(child.Shapes),
				box:          child.Box.Transformed(inst.Trans),
				global:       child.GlobalIDs,
				instanceIdx:  instIdx,
				childCluster: cid,
			})
		}
	}

	groups := sweepCluster(elems, reg)
	provisional := buildProvisional(elems, groups)
	finalGroups := foldGlobals(provisional)
	clusters := assembleClusters(provisional, finalGroups)
	markEscaping(clusters)

	logger.Debug("computed local clusters", zap.String("cell", cell.Name), zap.Int("clusters", len(clusters)))

	return &CellClusters{Cell: id, Clusters: clusters}, nil
}

func layerKeys(m map[deeplayer.LayerID][]layout.ShapeRef) []deeplayer.LayerID {
	out := make([]deeplayer.LayerID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// anyConnected reports whether any layer of a is connected to any layer
// of b, per the registry.
func anyConnected(reg *connreg.Registry, a, b []deeplayer.LayerID) bool {
	for _, la := range a {
		for _, lb := range b {
			if reg.Connected(la, lb) {
				return true
			}
		}
	}
	return false
}

// touches performs the geometric test between two elements: exact
// polygon touching for two real shapes, box-only overlap whenever either
// side is a pseudo-element representing a child cluster's transformed
// bounding region.
func touches(a, b element) bool {
	if !a.box.Touches(b.box) {
		return false
	}
	if a.kind == kindShape && b.kind == kindShape {
		return a.shape.Shape().Touches(b.shape.Shape())
	}
	return true
}

// sweepCluster runs a box-sweep (sort by left edge, sliding active
// window) over elems, unioning every connectivity-eligible touching
// pair, and returns the union-find's group assignment per element.
func sweepCluster(elems []element, reg *connreg.Registry) []int {
	n := len(elems)
	uf := newUnionFind(n)
	if n == 0 {
		return nil
	}

	type idxBox struct {
		idx  int
		left int64
	}
	order := make([]idxBox, n)
	for i, e := range elems {
		order[i] = idxBox{idx: i, left: e.box.Left}
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].left < order[j].left })

	var active []int
	for _, cur := range order {
		i := cur.idx
		kept := active[:0]
		for _, j := range active {
			if elems[j].box.Right >= elems[i].box.Left {
				kept = append(kept, j)
			}
		}
		active = kept
		for _, j := range active {
			if anyConnected(reg, elems[i].layers, elems[j].layers) && touches(elems[i], elems[j]) {
				uf.union(i, j)
			}
		}
		active = append(active, i)
	}

	groups := make([]int, n)
	for i := range elems {
		groups[i] = uf.find(i)
	}
	return groups
}

type provisionalCluster struct {
	seq         int // min original element index, for deterministic ordering
	shapes      map[deeplayer.LayerID][]layout.ShapeRef
	box         geom.Box
	connections []Connection
	global      map[connreg.GlobalID]bool
}

func buildProvisional(elems []element, groups []int) []*provisionalCluster {
	byRoot := make(map[int]*provisionalCluster)
	var order []int
	for i, e := range elems {
		root := groups[i]
		pc, ok := byRoot[root]
		if !ok {
			pc = &provisionalCluster{seq: i, shapes: make(map[deeplayer.LayerID][]layout.ShapeRef), box: geom.EmptyBox, global: make(map[connreg.GlobalID]bool)}
			byRoot[root] = pc
			order = append(order, root)
		}
		pc.box = pc.box.Union(e.box)
		for _, g := range e.global {
			pc.global[g] = true
		}
		switch e.kind {
		case kindShape:
			pc.shapes[e.shapeLayer] = append(pc.shapes[e.shapeLayer], e.shape)
		case kindPseudo:
			pc.connections = append(pc.connections, Connection{ChildInstance: e.instanceIdx, ChildCluster: e.childCluster})
		}
	}
	out := make([]*provisionalCluster, 0, len(order))
	for _, root := range order {
		out = append(out, byRoot[root])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// foldGlobals merges, within a cell, any local clusters carrying the
// same global id; their connection lists are unioned.
func foldGlobals(provisional []*provisionalCluster) []int {
	n := len(provisional)
	uf := newUnionFind(n)
	lastSeen := make(map[connreg.GlobalID]int)
	for i, pc := range provisional {
		for g := range pc.global {
			if j, ok := lastSeen[g]; ok {
				uf.union(i, j)
			}
			lastSeen[g] = i
		}
	}
	groups := make([]int, n)
	for i := range provisional {
		groups[i] = uf.find(i)
	}
	return groups
}

func assembleClusters(provisional []*provisionalCluster, groups []int) []*LocalCluster {
	byRoot := make(map[int]*LocalCluster)
	var order []int
	seqOf := make(map[int]int)

	for i, pc := range provisional {
		root := groups[i]
		lc, ok := byRoot[root]
		if !ok {
			lc = &LocalCluster{Shapes: make(map[deeplayer.LayerID][]layout.ShapeRef), Box: geom.EmptyBox}
			byRoot[root] = lc
			order = append(order, root)
			seqOf[root] = pc.seq
		} else if pc.seq < seqOf[root] {
			seqOf[root] = pc.seq
		}
		lc.Box = lc.Box.Union(pc.box)
		for lyr, shapes := range pc.shapes {
			lc.Shapes[lyr] = append(lc.Shapes[lyr], shapes...)
		}
		seen := make(map[Connection]bool)
		for _, c := range lc.Connections {
			seen[c] = true
		}
		for _, c := range pc.connections {
			if seen[c] {
				continue // duplicate connection entries collapse via set semantics
			}
			seen[c] = true
			lc.Connections = append(lc.Connections, c)
		}
		for g := range pc.global {
			if !lc.HasGlobal(g) {
				lc.GlobalIDs = append(lc.GlobalIDs, g)
			}
		}
	}

	sort.Slice(order, func(i, j int) bool { return seqOf[order[i]] < seqOf[order[j]] })
	clusters := make([]*LocalCluster, len(order))
	for id, root := range order {
		lc := byRoot[root]
		lc.ID = ClusterID(id)
		sort.Slice(lc.GlobalIDs, func(i, j int) bool { return lc.GlobalIDs[i] < lc.GlobalIDs[j] })
		clusters[id] = lc
	}
	return clusters
}

func markEscaping(clusters []*LocalCluster) {
	for _, c := range clusters {
		c.Escaping = len(c.Shapes) > 0 || len(c.Connections) > 0 || len(c.GlobalIDs) > 0
	}
}
