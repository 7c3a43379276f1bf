package reconcile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/rtree"

	"drawing-ocr/api/internal/geometry"
	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/ocr"
)

var Logger = logger.GetLogger("reconcile")

// DefaultExpand is how far each fragment box is grown before intersection tests.
const DefaultExpand = 20

type Axis int

const (
	AxisNone Axis = iota
	AxisColumns
	AxisRows
)

func (a Axis) String() string {
	switch a {
	case AxisColumns:
		return "columns"
	case AxisRows:
		return "rows"
	default:
		return "none"
	}
}

func (a Axis) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Axis) UnmarshalText(b []byte) error {
	switch string(b) {
	case "columns":
		*a = AxisColumns
	case "rows":
		*a = AxisRows
	case "none", "":
		*a = AxisNone
	default:
		return fmt.Errorf("reconcile: unknown axis %q", b)
	}
	return nil
}

// AxisPolicy decides how two intersecting fragments are joined.
// inter is the overlap of the expanded boxes; a and b are the original boxes.
// ok=false means the pair is not merged.
type AxisPolicy func(inter, a, b geometry.Box) (Axis, bool)

// WidthHeightPolicy: a tall narrow overlap is a vertical seam (join columns),
// anything else is a horizontal seam (join rows).
func WidthHeightPolicy(inter, _, _ geometry.Box) (Axis, bool) {
	if inter.IsEmpty() {
		return AxisNone, false
	}
	if inter.Width() < inter.Height() {
		return AxisColumns, true
	}
	return AxisRows, true
}

// Table is a reconciled table in page coordinates.
type Table struct {
	Grid    Grid         `json:"grid"`
	Box     geometry.Box `json:"box"`
	Merged  bool         `json:"merged"`
	Axis    Axis         `json:"axis,omitempty"`
	Sources []int        `json:"sources"`
}

type Reconciler struct {
	Expand int
	Policy AxisPolicy
}

func New() *Reconciler {
	return &Reconciler{Expand: DefaultExpand, Policy: WidthHeightPolicy}
}

type pair struct {
	i, j int
	axis Axis
}

// Reconcile merges fragments split by tile seams. Boxes must already be in
// page coordinates. Output: untouched fragments in input order, then merged
// tables in (i,j) order. Fragments violating their declared size are left out
// and reported in the returned error; the rest is still reconciled.
func (r *Reconciler) Reconcile(frags []ocr.Table) ([]Table, error) {
	policy := r.Policy
	if policy == nil {
		policy = WidthHeightPolicy
	}

	grids := make([]Grid, len(frags))
	var errs []error
	for i, f := range frags {
		g, err := ToGrid(f)
		if err != nil {
			var se *StructuralError
			if errors.As(err, &se) {
				se.Table = i
			}
			errs = append(errs, err)
			continue
		}
		grids[i] = g
	}

	// расширенные копии только для сравнения, в выход идут исходные рамки
	expanded := make([]geometry.Box, len(frags))
	var tr rtree.RTreeG[int]
	for i, f := range frags {
		if grids[i] == nil {
			continue
		}
		expanded[i] = f.Box.Expand(r.Expand)
		tr.Insert(boxMin(expanded[i]), boxMax(expanded[i]), i)
	}

	var pairs []pair
	for i := range frags {
		if grids[i] == nil {
			continue
		}
		tr.Search(boxMin(expanded[i]), boxMax(expanded[i]), func(_, _ [2]float64, j int) bool {
			if j <= i {
				return true
			}
			inter := expanded[i].Intersect(expanded[j])
			if axis, ok := policy(inter, frags[i].Box, frags[j].Box); ok {
				pairs = append(pairs, pair{i, j, axis})
			}
			return true
		})
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].i != pairs[b].i {
			return pairs[a].i < pairs[b].i
		}
		return pairs[a].j < pairs[b].j
	})

	used := make(map[int]int, 2*len(pairs))
	merged := make([]Table, 0, len(pairs))
	for _, p := range pairs {
		used[p.i]++
		used[p.j]++
		merged = append(merged, mergePair(frags, grids, p))
	}
	for idx, n := range used {
		if n > 1 {
			// цепочки из 3+ фрагментов не собираются
			Logger.Warn("fragment merged with several partners", "fragment", idx, "partners", n)
		}
	}

	out := make([]Table, 0, len(frags)-len(used)+len(merged))
	for i, f := range frags {
		if grids[i] == nil || used[i] > 0 {
			continue
		}
		out = append(out, Table{Grid: grids[i], Box: f.Box, Sources: []int{i}})
	}
	out = append(out, merged...)

	Logger.Debug("reconciled", "fragments", len(frags), "pairs", len(pairs), "tables", len(out))
	return out, errors.Join(errs...)
}

// mergePair keeps the left (or upper) fragment first regardless of input order.
func mergePair(frags []ocr.Table, grids []Grid, p pair) Table {
	first, second := p.i, p.j
	a, b := frags[first].Box, frags[second].Box
	switch p.axis {
	case AxisColumns:
		if b.X0 < a.X0 {
			first, second = second, first
		}
	case AxisRows:
		if b.Y0 < a.Y0 {
			first, second = second, first
		}
	}

	var g Grid
	if p.axis == AxisColumns {
		g = ConcatColumns(grids[first], grids[second])
	} else {
		g = ConcatRows(grids[first], grids[second])
	}
	DedupeHeaders(g)

	return Table{
		Grid:    g,
		Box:     a.Union(b),
		Merged:  true,
		Axis:    p.axis,
		Sources: []int{p.i, p.j},
	}
}

func boxMin(b geometry.Box) [2]float64 { return [2]float64{float64(b.X0), float64(b.Y0)} }
func boxMax(b geometry.Box) [2]float64 { return [2]float64{float64(b.X1), float64(b.Y1)} }
