package geom

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// FitMagnification estimates the scalar magnification that best maps a
// set of source bounding-box extents onto a corresponding set of target
// extents, by least squares over target = m*source (grounded on
// cm68-traces/internal/alignment/transform.go's use of gonum's QR solver
// for affine fits; here the unknown collapses to a single scalar since
// a DBU magnification has no rotation part). Nothing in this module
// calls it: the cell mappings in internal/extract take the
// dbu_source/dbu_target ratio from the BuildOptions they are given.
func FitMagnification(source, target []float64) (float64, error) {
	n := len(source)
	if n == 0 || n != len(target) {
		return 0, fmt.Errorf("geom: FitMagnification needs matching non-empty slices, got %d/%d", n, len(target))
	}

	a := mat.NewDense(n, 1, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, source[i])
		b.SetVec(i, target[i])
	}

	var qr mat.QR
	qr.Factorize(a)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, b); err != nil {
		return 0, fmt.Errorf("geom: least-squares magnification fit failed: %w", err)
	}
	m := params.AtVec(0)
	if m == 0 {
		return 0, fmt.Errorf("geom: fitted magnification is zero")
	}
	return m, nil
}
