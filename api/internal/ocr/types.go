package ocr

import "drawing-ocr/api/internal/geometry"

// Word: одно распознанное слово в координатах своего тайла (или страницы после rebase).
type Word struct {
	Content    string       `json:"content"`
	Box        geometry.Box `json:"box"`
	Confidence float64      `json:"confidence,omitempty"`
}

// CellKind mirrors the layout service's cell kinds.
type CellKind string

const (
	KindContent      CellKind = "content"
	KindColumnHeader CellKind = "columnHeader"
	KindRowHeader    CellKind = "rowHeader"
	KindStubHead     CellKind = "stubHead"
	KindDescription  CellKind = "description"
)

type Cell struct {
	RowIndex int      `json:"row_index"`
	ColIndex int      `json:"column_index"`
	RowSpan  int      `json:"row_span,omitempty"`
	ColSpan  int      `json:"column_span,omitempty"`
	Content  string   `json:"content"`
	Kind     CellKind `json:"kind,omitempty"`
}

// Span returns row/column spans with zero treated as 1.
func (c Cell) Span() (rows, cols int) {
	rows, cols = c.RowSpan, c.ColSpan
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return rows, cols
}

// Table is a table fragment as reported for one image.
type Table struct {
	RowCount int          `json:"row_count"`
	ColCount int          `json:"column_count"`
	Box      geometry.Box `json:"box"`
	Cells    []Cell       `json:"cells"`
}

// Analysis is everything an engine found on one image.
type Analysis struct {
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	Words  []Word  `json:"words"`
	Tables []Table `json:"tables"`
}

// Rebase shifts every box by the given offset.
func (a Analysis) Rebase(offsetX, offsetY int) Analysis {
	out := Analysis{Width: a.Width, Height: a.Height}
	out.Words = make([]Word, len(a.Words))
	for i, w := range a.Words {
		w.Box = geometry.Rebase(w.Box, offsetX, offsetY)
		out.Words[i] = w
	}
	out.Tables = make([]Table, len(a.Tables))
	for i, t := range a.Tables {
		t.Box = geometry.Rebase(t.Box, offsetX, offsetY)
		out.Tables[i] = t
	}
	return out
}
