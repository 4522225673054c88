// Package deeplayer implements the deep-layer store: opaque,
// content-addressed storage of polygon sets organized per cell per
// layer, surfaced through refcounted handles that keep a shared internal
// layout alive.
package deeplayer

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"netextract/internal/layout"
)

// LayerID is a dense id for a deep layer within a Store.
type LayerID int

type cellShapes struct {
	hash  [32]byte
	boxed bool
	data  []layout.ShapeRef
}

// Store is the deep-layer store. It owns no geometry of its own — it
// indexes into a shared *layout.Layout, deduplicating identical per-cell
// shape sets across layers and anchor handles via a content hash.
type Store struct {
	mu sync.Mutex

	l *layout.Layout

	layers    map[LayerID]map[layout.CellID]*cellShapes
	refcounts map[LayerID]int
	nextID    LayerID

	// pool dedups per-cell shape sets by content hash across layers.
	pool map[[32]byte]*cellShapes

	threads int
}

// New creates a Store backed by l. l is the single source of truth for
// cell geometry — the Store never copies the cell/instance tree, only
// shape content.
func New(l *layout.Layout) *Store {
	return &Store{
		l:         l,
		layers:    make(map[LayerID]map[layout.CellID]*cellShapes),
		refcounts: make(map[LayerID]int),
		pool:      make(map[[32]byte]*cellShapes),
		threads:   1,
	}
}

// SetThreads configures the worker-pool size used while ingesting shapes
// per cell. Default is 1, meaning sequential.
func (s *Store) SetThreads(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	s.threads = n
	s.mu.Unlock()
}

// Layout returns the shared internal layout.
func (s *Store) Layout() *layout.Layout {
	return s.l
}

// CreatePolygonLayer pulls shapes through src and stores them as a new
// deep layer, returning its id. An empty source is legal and used for
// anchor handles that keep the layout alive with no user-visible layer
// registered.
func (s *Store) CreatePolygonLayer(src layout.ShapeSource) (LayerID, error) {
	if err := layout.CheckUnclipped(src); err != nil {
		return 0, err
	}
	if src.Layout() != s.l {
		return 0, fmt.Errorf("deeplayer: shape source is not backed by this store's layout")
	}

	cells := s.l.PostOrder()
	perCell := make(map[layout.CellID]*cellShapes, len(cells))
	var mu sync.Mutex

	ingest := func(id layout.CellID) error {
		shapes := collectShapes(s.l.Cell(id), src.Layer(), src.Filter())
		cs := &cellShapes{data: shapes, hash: hashShapes(shapes)}
		mu.Lock()
		perCell[id] = s.dedup(cs)
		mu.Unlock()
		return nil
	}

	s.mu.Lock()
	threads := s.threads
	s.mu.Unlock()

	if threads <= 1 {
		for _, id := range cells {
			if err := ingest(id); err != nil {
				return 0, err
			}
		}
	} else {
		g := new(errgroup.Group)
		g.SetLimit(threads)
		for _, id := range cells {
			id := id
			g.Go(func() error { return ingest(id) })
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.layers[id] = perCell
	s.refcounts[id] = 1
	return id, nil
}

// dedup returns the pooled *cellShapes sharing cs's content hash,
// registering cs in the pool if this is the first occurrence. This is
// the store's content-addressing: identical per-cell shape sets, even
// across different layers or cells, share one backing slice.
func (s *Store) dedup(cs *cellShapes) *cellShapes {
	if existing, ok := s.pool[cs.hash]; ok {
		return existing
	}
	s.pool[cs.hash] = cs
	return cs
}

func collectShapes(c *layout.Cell, lyr layout.SourceLayer, filter layout.ShapeFilter) []layout.ShapeRef {
	if filter == layout.FilterNothing || filter == layout.FilterTextsOnly {
		return nil
	}
	src := c.Shapes[lyr]
	out := make([]layout.ShapeRef, len(src))
	copy(out, src)
	return out
}

func hashShapes(shapes []layout.ShapeRef) [32]byte {
	sorted := make([]layout.ShapeRef, len(shapes))
	copy(sorted, shapes)
	sort.Slice(sorted, func(i, j int) bool {
		bi, bj := sorted[i].Box(), sorted[j].Box()
		if bi.Left != bj.Left {
			return bi.Left < bj.Left
		}
		if bi.Bottom != bj.Bottom {
			return bi.Bottom < bj.Bottom
		}
		if bi.Right != bj.Right {
			return bi.Right < bj.Right
		}
		return bi.Top < bj.Top
	})

	h := sha256.New()
	var buf [8]byte
	for _, s := range sorted {
		for _, v := range []int64{s.Trans.Disp.X, s.Trans.Disp.Y} {
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			h.Write(buf[:])
		}
		for _, p := range s.Polygon.Points {
			binary.LittleEndian.PutUint64(buf[:], uint64(p.X))
			h.Write(buf[:])
			binary.LittleEndian.PutUint64(buf[:], uint64(p.Y))
			h.Write(buf[:])
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Shapes returns the shapes stored for layer id in cell. Returns an
// error if layer id is unknown — this differs from a cell simply having
// zero shapes on a known layer, which is a legal empty result.
func (s *Store) Shapes(cell layout.CellID, id LayerID) ([]layout.ShapeRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	perCell, ok := s.layers[id]
	if !ok {
		return nil, fmt.Errorf("deeplayer: unknown layer id %d", id)
	}
	cs, ok := perCell[cell]
	if !ok {
		return nil, nil
	}
	return cs.data, nil
}

// Ref increments the refcount on a layer handle.
func (s *Store) Ref(id LayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refcounts[id]++
}

// Unref decrements the refcount on a layer handle, releasing the
// layer's storage once it reaches zero.
func (s *Store) Unref(id LayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refcounts[id]--
	if s.refcounts[id] <= 0 {
		delete(s.layers, id)
		delete(s.refcounts, id)
	}
}
