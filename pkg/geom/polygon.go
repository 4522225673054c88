package geom

// Polygon is a simple (non-self-intersecting) integer polygon, stored as
// a closed point sequence (first point not repeated at the end).
type Polygon struct {
	Points []Point
}

// NewPolygon constructs a Polygon from a point sequence.
func NewPolygon(pts []Point) Polygon {
	return Polygon{Points: pts}
}

// NewBoxPolygon builds the 4-point rectangle for a box. Box-shaped
// references are common enough that callers build them this way rather
// than through a general polygon constructor.
func NewBoxPolygon(b Box) Polygon {
	return Polygon{Points: []Point{
		{b.Left, b.Bottom}, {b.Right, b.Bottom}, {b.Right, b.Top}, {b.Left, b.Top},
	}}
}

// IsBox reports whether the polygon is exactly an axis-aligned rectangle,
// and returns it as a Box if so. Spec §3 calls for box-shaped references
// to be "recognized as such" for compact storage.
func (p Polygon) IsBox() (Box, bool) {
	if len(p.Points) != 4 {
		return Box{}, false
	}
	box := p.BoundingBox()
	for _, pt := range p.Points {
		onVert := pt.X == box.Left || pt.X == box.Right
		onHoriz := pt.Y == box.Bottom || pt.Y == box.Top
		if !onVert || !onHoriz {
			return Box{}, false
		}
	}
	return box, true
}

// BoundingBox computes the polygon's axis-aligned bounding box.
func (p Polygon) BoundingBox() Box {
	if len(p.Points) == 0 {
		return EmptyBox
	}
	b := NewBox(p.Points[0], p.Points[0])
	for _, pt := range p.Points[1:] {
		b = b.Union(NewBox(pt, pt))
	}
	return b
}

// Transformed returns the polygon with t applied to every vertex.
func (p Polygon) Transformed(t Trans) Polygon {
	out := make([]Point, len(p.Points))
	for i, pt := range p.Points {
		out[i] = t.Apply(pt)
	}
	return Polygon{Points: out}
}

// ContainsPoint reports whether pt lies inside or on the boundary of p,
// using a ray-casting test with an on-edge check so boundary points count
// the non-strict touching rule extends to point containment: a point
// sitting exactly on an edge counts as contained.
func (p Polygon) ContainsPoint(pt Point) bool {
	n := len(p.Points)
	if n < 3 {
		return false
	}
	if !p.BoundingBox().Contains(pt) {
		return false
	}
	for i := 0; i < n; i++ {
		a := p.Points[i]
		b := p.Points[(i+1)%n]
		if onSegment(a, b, pt) {
			return true
		}
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p.Points[j], p.Points[i]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			xInt := float64(b.X-a.X)*float64(pt.Y-a.Y)/float64(b.Y-a.Y) + float64(a.X)
			if float64(pt.X) < xInt {
				inside = !inside
			}
		}
	}
	return inside
}

func onSegment(a, b, p Point) bool {
	cross := b.Sub(a).Cross(p.Sub(a))
	if cross != 0 {
		return false
	}
	minX, maxX := a.X, b.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := a.Y, b.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return p.X >= minX && p.X <= maxX && p.Y >= minY && p.Y <= maxY
}

// segmentsTouch reports whether two closed segments share at least one
// point (including endpoints).
func segmentsTouch(a1, a2, b1, b2 Point) bool {
	d1 := b2.Sub(b1).Cross(a1.Sub(b1))
	d2 := b2.Sub(b1).Cross(a2.Sub(b1))
	d3 := a2.Sub(a1).Cross(b1.Sub(a1))
	d4 := a2.Sub(a1).Cross(b2.Sub(a1))

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return onSegment(a1, a2, b1) || onSegment(a1, a2, b2) ||
		onSegment(b1, b2, a1) || onSegment(b1, b2, a2)
}

// Touches reports whether polygon p touches polygon o: they overlap, or
// share any boundary point (edge or corner contact): two polygons
// sharing only an edge or a corner count as touching, not just polygons
// whose interiors overlap.
func (p Polygon) Touches(o Polygon) bool {
	if !p.BoundingBox().Touches(o.BoundingBox()) {
		return false
	}
	if len(p.Points) >= 3 && len(o.Points) >= 1 && p.ContainsPoint(o.Points[0]) {
		return true
	}
	if len(o.Points) >= 3 && len(p.Points) >= 1 && o.ContainsPoint(p.Points[0]) {
		return true
	}
	for i := 0; i < len(p.Points); i++ {
		a1, a2 := p.Points[i], p.Points[(i+1)%len(p.Points)]
		for j := 0; j < len(o.Points); j++ {
			b1, b2 := o.Points[j], o.Points[(j+1)%len(o.Points)]
			if segmentsTouch(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// Area returns the polygon's signed area (via the shoelace formula,
// doubled to stay in integers); callers that need an orientation check
// compare against zero, magnitude users divide by two.
func (p Polygon) Area2() int64 {
	n := len(p.Points)
	var a int64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a += p.Points[i].X*p.Points[j].Y - p.Points[j].X*p.Points[i].Y
	}
	return a
}
