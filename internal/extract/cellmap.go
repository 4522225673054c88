package extract

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"netextract/internal/layout"
	"netextract/internal/netlist"
	"netextract/pkg/geom"
)

// CellMapping is a builder-facing record of one instance BuildAllNets
// placed while rebuilding a circuit: which source circuit it belongs
// to, the target cell it instances, and that instance's placement as a
// 3x3 homogeneous affine matrix — a form an external builder can feed
// straight into its own linear-algebra pipeline instead of decoding
// geom.Trans's 8-fold rotation code itself.
type CellMapping struct {
	Circuit netlist.CircuitID
	Cell    layout.CellID
	Matrix  *mat.Dense
}

// TransformMatrix renders t as the 3x3 homogeneous affine matrix
// [[a b tx][c d ty][0 0 1]] acting on column vectors (x, y, 1); a, b,
// c, d are read off of t's rotation/mirror component by applying it,
// unmagnified, to the two basis vectors, then scaled by t's
// magnification.
func TransformMatrix(t geom.Trans) *mat.Dense {
	rt := geom.Trans{Rot: t.Rot, Mag: 1}
	ex := rt.Apply(geom.Pt(1, 0))
	ey := rt.Apply(geom.Pt(0, 1))
	m := t.Magnification()
	return mat.NewDense(3, 3, []float64{
		float64(ex.X) * m, float64(ey.X) * m, float64(t.Disp.X),
		float64(ex.Y) * m, float64(ey.Y) * m, float64(t.Disp.Y),
		0, 0, 1,
	})
}

// mappingsFrom walks every instance BuildAllNets placed inside the
// target cells it returned and reports it as a CellMapping, in
// ascending circuit order, then in each circuit cell's instance order.
// An instance whose target cell is not itself one of the circuit cells
// is included only when withDeviceCells is set; such cells are the
// device cells BuildAllNets instanced in place of a subcircuit, and
// also any net cells it created (a net-cell prefix was given, or a
// dangling subcircuit pin was rendered), which are not told apart from
// device cells here.
func mappingsFrom(target *layout.Layout, cells map[netlist.CircuitID]layout.CellID, withDeviceCells bool) []CellMapping {
	isCircuitCell := make(map[layout.CellID]bool, len(cells))
	for _, c := range cells {
		isCircuitCell[c] = true
	}

	ids := make([]netlist.CircuitID, 0, len(cells))
	for id := range cells {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []CellMapping
	for _, id := range ids {
		for _, inst := range target.Cell(cells[id]).Instances {
			if !withDeviceCells && !isCircuitCell[inst.Cell] {
				continue
			}
			out = append(out, CellMapping{Circuit: id, Cell: inst.Cell, Matrix: TransformMatrix(inst.Trans)})
		}
	}
	return out
}
