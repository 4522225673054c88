// Package layout holds the cell/instance hierarchy that the extraction
// core operates on: a tree of cells, each containing shapes on named
// source layers and instances of child cells, rooted at a single top
// cell.
package layout

import (
	"fmt"

	"netextract/pkg/geom"
)

// CellID identifies a cell within a Layout. Dense, starting at 0.
type CellID int

// SourceLayer identifies a layer as presented by the caller, before any
// deep-layer handle is created for it. Dense, starting at 0.
type SourceLayer int

// ShapeRef is a (shape, transform) pair: an interned polygon together
// with the placement transform that was in effect when it was collected.
type ShapeRef struct {
	Polygon geom.Polygon
	Trans   geom.Trans
}

// Box returns the shape's bounding box after its transform.
func (s ShapeRef) Box() geom.Box {
	return s.Polygon.Transformed(s.Trans).BoundingBox()
}

// Shape returns the transformed polygon.
func (s ShapeRef) Shape() geom.Polygon {
	return s.Polygon.Transformed(s.Trans)
}

// Instance places a child cell inside a parent cell under a complex
// transform.
type Instance struct {
	Cell  CellID
	Trans geom.Trans
}

// Cell is one node of the layout hierarchy: a stable id, shapes on
// source layers, and child instances.
type Cell struct {
	ID        CellID
	Name      string
	Shapes    map[SourceLayer][]ShapeRef
	Instances []Instance

	// DeviceAbstract marks a pseudo-cell synthesized by a device
	// extractor: it participates in clustering identically to an
	// ordinary cell but maps to a device rather than a subcircuit in the
	// netlist.
	DeviceAbstract bool
	DeviceKind     string
}

// Layout is the shared hierarchy rooted at a single top cell. It is the
// single source of truth for cell geometry; it is mutated only when
// shapes or cells are added, and is otherwise read-only.
type Layout struct {
	TopCell CellID

	cells  []*Cell
	byName map[string]CellID
}

// New creates an empty Layout whose top cell is "TOP".
func New() *Layout {
	l := &Layout{byName: make(map[string]CellID)}
	l.TopCell = l.AddCell("TOP")
	return l
}

// AddCell creates a new, empty cell and returns its id. Cell names need
// not be unique; CellByName resolves only the most recently added cell with
// a given name.
func (l *Layout) AddCell(name string) CellID {
	id := CellID(len(l.cells))
	l.cells = append(l.cells, &Cell{ID: id, Name: name, Shapes: make(map[SourceLayer][]ShapeRef)})
	l.byName[name] = id
	return id
}

// Cell returns the cell for id, panicking if it doesn't exist — a
// missing cell is an invariant violation, never a normal not-found
// result, since cell ids are only ever handed out by this Layout.
func (l *Layout) Cell(id CellID) *Cell {
	if int(id) < 0 || int(id) >= len(l.cells) {
		panic(fmt.Sprintf("layout: invariant violation: no such cell %d", id))
	}
	return l.cells[id]
}

// CellByName looks up a cell by name.
func (l *Layout) CellByName(name string) (CellID, bool) {
	id, ok := l.byName[name]
	return id, ok
}

// NumCells returns the number of cells in the layout.
func (l *Layout) NumCells() int {
	return len(l.cells)
}

// AddShape appends a shape on the given source layer to cell.
func (l *Layout) AddShape(cell CellID, layer SourceLayer, s ShapeRef) {
	c := l.Cell(cell)
	c.Shapes[layer] = append(c.Shapes[layer], s)
}

// AddInstance appends a child-cell instance to parent and returns its
// index within parent.Instances.
func (l *Layout) AddInstance(parent CellID, inst Instance) int {
	c := l.Cell(parent)
	c.Instances = append(c.Instances, inst)
	return len(c.Instances) - 1
}

// PostOrder returns cell ids in bottom-up (DFS post-order) order over the
// cell-dependency DAG, the order local clustering needs so that every
// cell's children are already clustered by the time it runs. The layout
// hierarchy is acyclic by construction; a cycle indicates an invariant
// violation, not a normal error.
func (l *Layout) PostOrder() []CellID {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(l.cells))
	order := make([]CellID, 0, len(l.cells))

	var visit func(id CellID)
	visit = func(id CellID) {
		switch color[id] {
		case black:
			return
		case gray:
			panic(fmt.Sprintf("layout: invariant violation: cycle through cell %d", id))
		}
		color[id] = gray
		for _, inst := range l.Cell(id).Instances {
			visit(inst.Cell)
		}
		color[id] = black
		order = append(order, id)
	}
	visit(l.TopCell)
	for id := range l.cells {
		if color[id] == white {
			visit(CellID(id))
		}
	}
	return order
}
