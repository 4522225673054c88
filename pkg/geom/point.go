// Package geom provides the integer geometry kernel: points, boxes,
// polygons and complex transforms used throughout the extraction core.
package geom

// Point is an integer-coordinate point in database units (DBU).
type Point struct {
	X, Y int64
}

// Pt constructs a Point.
func Pt(x, y int64) Point {
	return Point{X: x, Y: y}
}

// Add returns the sum of two points.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns the difference of two points.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Cross returns the 2D cross product of p and o, treated as vectors.
func (p Point) Cross(o Point) int64 {
	return p.X*o.Y - p.Y*o.X
}
