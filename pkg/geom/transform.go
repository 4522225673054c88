package geom

import "math"

// rotMatrices are the eight fixpoint rotation/mirror matrices: four 90°
// rotations, and the same four composed with a mirror about the x-axis.
// Index 0-3 are plain rotations (0/90/180/270 CCW); index 4-7 add the
// mirror. Each entry is (a,b,c,d) for x' = a*x+b*y, y' = c*x+d*y.
var rotMatrices = [8][4]int64{
	{1, 0, 0, 1},   // 0: identity
	{0, -1, 1, 0},  // 1: rot90
	{-1, 0, 0, -1}, // 2: rot180
	{0, 1, -1, 0},  // 3: rot270
	{1, 0, 0, -1},  // 4: mirror-x
	{0, 1, 1, 0},   // 5: mirror-x + rot90
	{-1, 0, 0, 1},  // 6: mirror-x + rot180
	{0, -1, -1, 0}, // 7: mirror-x + rot270
}

// Trans is an integer complex transform: one of the 8 fixpoint
// rotations/mirrors, a scalar magnification, and an integer translation
// applied last.
type Trans struct {
	Rot  int // 0-7, index into rotMatrices
	Mag  float64
	Disp Point
}

// Identity is the no-op transform.
var Identity = Trans{Rot: 0, Mag: 1, Disp: Point{}}

// NewTrans constructs a transform, defaulting Mag to 1 if zero.
func NewTrans(rot int, mag float64, disp Point) Trans {
	if mag == 0 {
		mag = 1
	}
	return Trans{Rot: rot % 8, Mag: mag, Disp: disp}
}

func matrixMul(a, b [4]int64) [4]int64 {
	return [4]int64{
		a[0]*b[0] + a[1]*b[2], a[0]*b[1] + a[1]*b[3],
		a[2]*b[0] + a[3]*b[2], a[2]*b[1] + a[3]*b[3],
	}
}

func rotCodeForMatrix(m [4]int64) int {
	for i, cand := range rotMatrices {
		if cand == m {
			return i
		}
	}
	// unreachable for any composition of two fixpoint matrices
	panic("geom: matrix is not a fixpoint rotation/mirror")
}

func applyMatrix(rot int, p Point) Point {
	m := rotMatrices[rot]
	return Point{X: m[0]*p.X + m[1]*p.Y, Y: m[2]*p.X + m[3]*p.Y}
}

// Apply transforms p: mirror/rotate, magnify, then translate.
func (t Trans) Apply(p Point) Point {
	r := applyMatrix(t.Rot, p)
	if t.Mag == 1 {
		return Point{X: r.X + t.Disp.X, Y: r.Y + t.Disp.Y}
	}
	return Point{
		X: int64(math.Round(float64(r.X)*t.Mag)) + t.Disp.X,
		Y: int64(math.Round(float64(r.Y)*t.Mag)) + t.Disp.Y,
	}
}

// Compose returns t then applied-after-other: (t.Compose(o)).Apply(p) ==
// t.Apply(o.Apply(p)).
func (t Trans) Compose(o Trans) Trans {
	m := matrixMul(rotMatrices[t.Rot], rotMatrices[o.Rot])
	dispFromO := applyMatrix(t.Rot, o.Disp)
	mag := t.Mag * o.Mag
	disp := Point{
		X: int64(math.Round(float64(dispFromO.X)*t.Mag)) + t.Disp.X,
		Y: int64(math.Round(float64(dispFromO.Y)*t.Mag)) + t.Disp.Y,
	}
	return Trans{Rot: rotCodeForMatrix(m), Mag: mag, Disp: disp}
}

// Inverse returns the inverse transform. Fails (ok=false) only for zero
// magnification, which cannot occur via NewTrans but may arise from
// externally constructed or decoded transforms.
func (t Trans) Inverse() (Trans, bool) {
	if t.Mag == 0 {
		return Trans{}, false
	}
	// A is its own kind of involution-free group element; find k with
	// rotMatrices[k] == A^-1 by brute search (det is always +-1).
	a := rotMatrices[t.Rot]
	det := a[0]*a[3] - a[1]*a[2]
	if det == 0 {
		return Trans{}, false
	}
	inv := [4]int64{a[3] / det, -a[1] / det, -a[2] / det, a[0] / det}
	invRot := rotCodeForMatrix(inv)
	invMag := 1 / t.Mag
	negDisp := Point{X: -t.Disp.X, Y: -t.Disp.Y}
	rotated := applyMatrix(invRot, negDisp)
	disp := Point{
		X: int64(math.Round(float64(rotated.X) * invMag)),
		Y: int64(math.Round(float64(rotated.Y) * invMag)),
	}
	return Trans{Rot: invRot, Mag: invMag, Disp: disp}, true
}

// IsMirror reports whether the transform includes a mirror component.
func (t Trans) IsMirror() bool {
	return t.Rot >= 4
}

// RotTransOnly returns the transform with magnification factored out
// (Mag set to 1): rotation and translation stay on the local instance
// placement, and the scalar magnification propagates separately through
// the recursion.
func (t Trans) RotTransOnly() Trans {
	return Trans{Rot: t.Rot, Mag: 1, Disp: t.Disp}
}

// Magnification returns the transform's scalar magnification.
func (t Trans) Magnification() float64 {
	if t.Mag == 0 {
		return 1
	}
	return t.Mag
}

// WithMag returns a copy of t with Mag replaced.
func (t Trans) WithMag(mag float64) Trans {
	t.Mag = mag
	return t
}
