package layout

import "fmt"

// ShapeFilter selects which shape kinds a ShapeSource delivers.
type ShapeFilter int

const (
	// FilterNothing delivers no shapes.
	FilterNothing ShapeFilter = iota
	// FilterPolygonsOnly delivers polygon shapes only.
	FilterPolygonsOnly
	// FilterTextsOnly delivers text/label shapes only.
	FilterTextsOnly
	// FilterAll delivers every shape kind.
	FilterAll
)

// Label is a text shape at a point, used for label-based net joining.
type Label struct {
	Text  string
	Point ShapeRef // zero-area box shape marking the label's anchor
}

// ShapeSource is the recursive shape iterator over a source layout: it
// exposes the layout and its top cell, a shape-kind filter, and a layer
// selector. Clipping regions must be absent — the whole layout is
// always visible; a ShapeSource that reports a clip region makes
// CreatePolygonLayer fail with an error.
type ShapeSource interface {
	Layout() *Layout
	Layer() SourceLayer
	Filter() ShapeFilter
	// Clipped reports whether this source declares a non-world clip
	// region. The core rejects such sources at construction.
	Clipped() bool
	// Labels returns text shapes on the source layer for cell, if Filter
	// permits texts.
	Labels(cell CellID) []Label
}

// WholeLayoutSource is the trivial ShapeSource: every shape on one source
// layer of a Layout, unclipped, plus whatever labels LabelsByCell holds
// (none unless set). This is the source used
// by every in-process caller in this repo — the core never reads an
// external file format.
type WholeLayoutSource struct {
	L            *Layout
	Lyr          SourceLayer
	Filt         ShapeFilter
	LabelsByCell map[CellID][]Label
}

func (s *WholeLayoutSource) Layout() *Layout     { return s.L }
func (s *WholeLayoutSource) Layer() SourceLayer  { return s.Lyr }
func (s *WholeLayoutSource) Filter() ShapeFilter { return s.Filt }
func (s *WholeLayoutSource) Clipped() bool       { return false }
func (s *WholeLayoutSource) Labels(cell CellID) []Label {
	if s.LabelsByCell == nil {
		return nil
	}
	if s.Filt != FilterTextsOnly && s.Filt != FilterAll {
		return nil
	}
	return s.LabelsByCell[cell]
}

// NewSource builds a WholeLayoutSource for a polygon layer.
func NewSource(l *Layout, lyr SourceLayer) *WholeLayoutSource {
	return &WholeLayoutSource{L: l, Lyr: lyr, Filt: FilterPolygonsOnly}
}

// CheckUnclipped is the one reusable assertion every consumer of a
// ShapeSource must perform before pulling shapes through it.
func CheckUnclipped(src ShapeSource) error {
	if src.Clipped() {
		return fmt.Errorf("layout: shape source for layer %d declares a clip region", src.Layer())
	}
	return nil
}
