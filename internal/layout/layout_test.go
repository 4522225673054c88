package layout

import (
	"testing"

	"netextract/pkg/geom"
)

func TestPostOrderBottomUp(t *testing.T) {
	l := New()
	child := l.AddCell("CHILD")
	l.AddInstance(l.TopCell, Instance{Cell: child, Trans: geom.Identity})

	order := l.PostOrder()
	if len(order) != 2 {
		t.Fatalf("expected 2 cells in post-order, got %d", len(order))
	}
	if order[0] != child || order[1] != l.TopCell {
		t.Fatalf("expected child before top, got %v", order)
	}
}

func TestPostOrderDiamond(t *testing.T) {
	l := New()
	leaf := l.AddCell("LEAF")
	mid1 := l.AddCell("MID1")
	mid2 := l.AddCell("MID2")
	l.AddInstance(mid1, Instance{Cell: leaf, Trans: geom.Identity})
	l.AddInstance(mid2, Instance{Cell: leaf, Trans: geom.Identity})
	l.AddInstance(l.TopCell, Instance{Cell: mid1, Trans: geom.Identity})
	l.AddInstance(l.TopCell, Instance{Cell: mid2, Trans: geom.Identity})

	order := l.PostOrder()
	pos := make(map[CellID]int, len(order))
	for i, c := range order {
		pos[c] = i
	}
	if pos[leaf] >= pos[mid1] || pos[leaf] >= pos[mid2] {
		t.Fatalf("leaf must precede both parents in post-order: %v", order)
	}
	if pos[mid1] >= pos[l.TopCell] || pos[mid2] >= pos[l.TopCell] {
		t.Fatalf("mid cells must precede top in post-order: %v", order)
	}
}

func TestCellPanicsOnUnknownID(t *testing.T) {
	l := New()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on invariant violation")
		}
	}()
	l.Cell(CellID(99))
}

func TestCheckUnclipped(t *testing.T) {
	l := New()
	src := NewSource(l, 0)
	if err := CheckUnclipped(src); err != nil {
		t.Fatalf("unexpected error for unclipped source: %v", err)
	}
}
