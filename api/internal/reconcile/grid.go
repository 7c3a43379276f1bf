package reconcile

import (
	"errors"
	"fmt"
	"strconv"

	"drawing-ocr/api/internal/ocr"
)

// Grid is a table as rows of cell text; row 0 is the header.
type Grid [][]string

var (
	ErrCellOutOfBounds = errors.New("reconcile: cell outside declared table size")
	ErrCellOverlap     = errors.New("reconcile: cells overlap")
)

// StructuralError ties a broken cell to the fragment (and region, on the
// region path) it came from. Err is ErrCellOutOfBounds or ErrCellOverlap.
type StructuralError struct {
	Table  int
	Region string
	Cell   ocr.Cell
	Rows   int
	Cols   int
	Err    error
}

func (e *StructuralError) Error() string {
	what := "outside"
	if errors.Is(e.Unwrap(), ErrCellOverlap) {
		what = "overlaps another cell in"
	}
	msg := fmt.Sprintf("table %d: cell (%d,%d) span %dx%d %s %dx%d",
		e.Table, e.Cell.RowIndex, e.Cell.ColIndex, max(e.Cell.RowSpan, 1), max(e.Cell.ColSpan, 1), what, e.Rows, e.Cols)
	if e.Region != "" {
		msg = "region " + strconv.Quote(e.Region) + ": " + msg
	}
	return msg
}

func (e *StructuralError) Unwrap() error {
	if e.Err == nil {
		return ErrCellOutOfBounds
	}
	return e.Err
}

// ToGrid lays cells out on a RowCount x ColCount grid. A cell is placed at
// its anchor (row, column) only; spans do not replicate content but do
// occupy their positions. A span running past the declared size, or two
// cells covering the same position, is an error, never clamped.
func ToGrid(t ocr.Table) (Grid, error) {
	if t.RowCount < 0 || t.ColCount < 0 {
		return nil, &StructuralError{Table: -1, Rows: t.RowCount, Cols: t.ColCount}
	}
	g := NewGrid(t.RowCount, t.ColCount)
	taken := make([]bool, t.RowCount*t.ColCount)
	for _, c := range t.Cells {
		rs, cs := c.Span()
		if c.RowIndex < 0 || c.ColIndex < 0 || rs > t.RowCount-c.RowIndex || cs > t.ColCount-c.ColIndex {
			return nil, &StructuralError{Table: -1, Cell: c, Rows: t.RowCount, Cols: t.ColCount, Err: ErrCellOutOfBounds}
		}
		for r := c.RowIndex; r < c.RowIndex+rs; r++ {
			for col := c.ColIndex; col < c.ColIndex+cs; col++ {
				i := r*t.ColCount + col
				if taken[i] {
					return nil, &StructuralError{Table: -1, Cell: c, Rows: t.RowCount, Cols: t.ColCount, Err: ErrCellOverlap}
				}
				taken[i] = true
			}
		}
		g[c.RowIndex][c.ColIndex] = c.Content
	}
	return g, nil
}

func NewGrid(rows, cols int) Grid {
	g := make(Grid, rows)
	for i := range g {
		g[i] = make([]string, cols)
	}
	return g
}

func (g Grid) Rows() int { return len(g) }

// Cols returns the widest row length.
func (g Grid) Cols() int {
	n := 0
	for _, r := range g {
		n = max(n, len(r))
	}
	return n
}

func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i, r := range g {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// ConcatColumns places b to the right of a, aligning rows by index.
// Missing cells on the shorter side become "".
func ConcatColumns(a, b Grid) Grid {
	ac, bc := a.Cols(), b.Cols()
	rows := max(len(a), len(b))
	out := make(Grid, rows)
	for i := 0; i < rows; i++ {
		row := make([]string, ac+bc)
		if i < len(a) {
			copy(row, a[i])
		}
		if i < len(b) {
			copy(row[ac:], b[i])
		}
		out[i] = row
	}
	return out
}

// ConcatRows stacks b under a, aligning columns by index.
func ConcatRows(a, b Grid) Grid {
	cols := max(a.Cols(), b.Cols())
	out := make(Grid, 0, len(a)+len(b))
	for _, src := range []Grid{a, b} {
		for _, r := range src {
			row := make([]string, cols)
			copy(row, r)
			out = append(out, row)
		}
	}
	return out
}

// DedupeHeaders suffixes repeated header texts in row 0 with their column
// position: "Value","Value" -> "Value","Value_1". If that name is already a
// header, the suffix is bumped until it is free. Empty headers are left as is.
func DedupeHeaders(g Grid) {
	if len(g) == 0 {
		return
	}
	seen := make(map[string]bool, len(g[0]))
	for _, h := range g[0] {
		seen[h] = true
	}
	first := make(map[string]bool, len(g[0]))
	for i, h := range g[0] {
		if h == "" {
			continue
		}
		if !first[h] {
			first[h] = true
			continue
		}
		n := i
		name := h + "_" + strconv.Itoa(n)
		for seen[name] {
			n++
			name = h + "_" + strconv.Itoa(n)
		}
		seen[name] = true
		first[name] = true
		g[0][i] = name
	}
}
