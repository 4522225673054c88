package geom

import "testing"

func TestBoxTouchesSharedEdge(t *testing.T) {
	a := Box{Left: 0, Bottom: 0, Right: 10, Top: 10}
	b := Box{Left: 10, Bottom: 0, Right: 20, Top: 10}
	if !a.Touches(b) {
		t.Fatalf("expected boxes sharing an edge to touch")
	}
	c := Box{Left: 11, Bottom: 0, Right: 20, Top: 10}
	if a.Touches(c) {
		t.Fatalf("expected disjoint boxes not to touch")
	}
}

func TestBoxTouchesCorner(t *testing.T) {
	a := Box{Left: 0, Bottom: 0, Right: 10, Top: 10}
	b := Box{Left: 10, Bottom: 10, Right: 20, Top: 20}
	if !a.Touches(b) {
		t.Fatalf("expected boxes sharing only a corner to touch")
	}
}

func TestTransComposeAndInverse(t *testing.T) {
	t1 := NewTrans(1, 1, Pt(10, 0)) // rot90 then translate
	t2 := NewTrans(4, 1, Pt(0, 5))  // mirror-x then translate
	composed := t1.Compose(t2)

	p := Pt(3, 4)
	want := t1.Apply(t2.Apply(p))
	got := composed.Apply(p)
	if got != want {
		t.Fatalf("compose mismatch: got %+v want %+v", got, want)
	}

	inv, ok := composed.Inverse()
	if !ok {
		t.Fatalf("expected invertible transform")
	}
	back := inv.Apply(composed.Apply(p))
	if back != p {
		t.Fatalf("inverse round-trip mismatch: got %+v want %+v", back, p)
	}
}

func TestTransMagnificationPassThrough(t *testing.T) {
	tr := NewTrans(2, 2.5, Pt(4, 4))
	rt := tr.RotTransOnly()
	if rt.Mag != 1 {
		t.Fatalf("expected magnification factored out, got %v", rt.Mag)
	}
	if rt.Rot != tr.Rot || rt.Disp != tr.Disp {
		t.Fatalf("rotation/translation must be preserved")
	}
}

func TestPolygonIsBox(t *testing.T) {
	box := Box{Left: 0, Bottom: 0, Right: 5, Top: 5}
	poly := NewBoxPolygon(box)
	got, ok := poly.IsBox()
	if !ok || got != box {
		t.Fatalf("expected IsBox to recognize a rectangle, got %+v ok=%v", got, ok)
	}

	tri := NewPolygon([]Point{{0, 0}, {5, 0}, {0, 5}})
	if _, ok := tri.IsBox(); ok {
		t.Fatalf("triangle must not be recognized as a box")
	}
}

func TestPolygonTouchesSharedVertex(t *testing.T) {
	a := NewBoxPolygon(Box{Left: 0, Bottom: 0, Right: 10, Top: 10})
	b := NewBoxPolygon(Box{Left: 10, Bottom: 10, Right: 20, Top: 20})
	if !a.Touches(b) {
		t.Fatalf("expected polygons sharing only a corner to touch")
	}
}

func TestPolygonContainsPointOnBoundary(t *testing.T) {
	box := NewBoxPolygon(Box{Left: 0, Bottom: 0, Right: 10, Top: 10})
	if !box.ContainsPoint(Pt(0, 5)) {
		t.Fatalf("expected boundary point to be contained")
	}
	if box.ContainsPoint(Pt(20, 20)) {
		t.Fatalf("expected far point not to be contained")
	}
}
