package geom

// Box is an axis-aligned integer rectangle, left/bottom inclusive,
// right/top inclusive — i.e. it may have zero width or height ("flat"
// boxes are legal and represent a point or a segment).
type Box struct {
	Left, Bottom, Right, Top int64
}

// EmptyBox is the canonical empty box (use IsEmpty to test, not ==).
var EmptyBox = Box{Left: 1, Bottom: 1, Right: 0, Top: 0}

// NewBox constructs a normalized box from two opposite corners.
func NewBox(a, b Point) Box {
	l, r := a.X, b.X
	if l > r {
		l, r = r, l
	}
	bo, t := a.Y, b.Y
	if bo > t {
		bo, t = t, bo
	}
	return Box{Left: l, Bottom: bo, Right: r, Top: t}
}

// IsEmpty reports whether the box contains no points.
func (b Box) IsEmpty() bool {
	return b.Left > b.Right || b.Bottom > b.Top
}

// Width returns the box's width, or 0 for an empty box.
func (b Box) Width() int64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Right - b.Left
}

// Height returns the box's height, or 0 for an empty box.
func (b Box) Height() int64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Top - b.Bottom
}

// Center returns the box's center point (truncated toward zero).
func (b Box) Center() Point {
	return Point{X: (b.Left + b.Right) / 2, Y: (b.Bottom + b.Top) / 2}
}

// Contains reports whether p lies within the closed box.
func (b Box) Contains(p Point) bool {
	return !b.IsEmpty() && p.X >= b.Left && p.X <= b.Right && p.Y >= b.Bottom && p.Y <= b.Top
}

// Touches reports whether b and o share at least one point, including
// boundary-only contact (shared edge or corner). This is the "non-strict
// interior intersection" spec calls for in local clustering tie-breaks:
// shapes sharing only an edge or a corner are considered touching.
func (b Box) Touches(o Box) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return b.Left <= o.Right && b.Right >= o.Left && b.Bottom <= o.Top && b.Top >= o.Bottom
}

// Union returns the smallest box containing both b and o. An empty
// operand is ignored.
func (b Box) Union(o Box) Box {
	if b.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return b
	}
	return Box{
		Left:   min64(b.Left, o.Left),
		Bottom: min64(b.Bottom, o.Bottom),
		Right:  max64(b.Right, o.Right),
		Top:    max64(b.Top, o.Top),
	}
}

// Enlarge grows the box by d on all sides (d may be negative).
func (b Box) Enlarge(d int64) Box {
	if b.IsEmpty() {
		return b
	}
	return Box{Left: b.Left - d, Bottom: b.Bottom - d, Right: b.Right + d, Top: b.Top + d}
}

// Transformed returns the box's bounding box after applying t.
func (b Box) Transformed(t Trans) Box {
	if b.IsEmpty() {
		return b
	}
	corners := [4]Point{
		{b.Left, b.Bottom}, {b.Right, b.Bottom}, {b.Left, b.Top}, {b.Right, b.Top},
	}
	out := EmptyBox
	for _, c := range corners {
		out = out.Union(NewBox(t.Apply(c), t.Apply(c)))
	}
	return out
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
