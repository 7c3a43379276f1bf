package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"drawing-ocr/api/internal/geometry"
	"drawing-ocr/api/internal/ocr"
)

type MetaTable struct {
	ID        int64       `json:"id"`
	FileID    int64       `json:"file_id"`
	CreatedAt time.Time   `json:"created_at"`
	Tables    []TableData `json:"tabledata"`
}

type TableData struct {
	ID          int64  `json:"id"`
	MetaTableID int64  `json:"metatable_id"`
	RowCount    int    `json:"row_count"`
	ColCount    int    `json:"col_count"`
	Polygon     []int  `json:"polygon"`
	Cells       []Cell `json:"tablecells,omitempty"`
}

type Cell struct {
	ID         int64        `json:"id"`
	Kind       ocr.CellKind `json:"kind"`
	RowIndex   int          `json:"row_index"`
	ColIndex   int          `json:"col_index"`
	RowSpan    int          `json:"row_span"`
	ColSpan    int          `json:"col_span"`
	Content    string       `json:"content"`
	Selectable bool         `json:"selectable"`
}

// CellEdit is one change requested by the table editor.
type CellEdit struct {
	ID         int64  `json:"id"`
	Content    string `json:"content"`
	Selectable bool   `json:"selectable"`
}

// Table converts stored data back into a fragment for grid building.
func (t TableData) Table() ocr.Table {
	out := ocr.Table{RowCount: t.RowCount, ColCount: t.ColCount}
	if len(t.Polygon) == 4 {
		out.Box = geometry.Box{X0: t.Polygon[0], Y0: t.Polygon[1], X1: t.Polygon[2], Y1: t.Polygon[3]}
	}
	for _, c := range t.Cells {
		out.Cells = append(out.Cells, ocr.Cell{
			RowIndex: c.RowIndex,
			ColIndex: c.ColIndex,
			RowSpan:  c.RowSpan,
			ColSpan:  c.ColSpan,
			Content:  c.Content,
			Kind:     c.Kind,
		})
	}
	return out
}

type TableRepo struct{ DB *sql.DB }

func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{DB: db} }

// SaveScan creates a meta table for the file and stores all tables with
// their cells in one transaction.
func (r *TableRepo) SaveScan(ctx context.Context, fileID int64, tables []ocr.Table) (MetaTable, error) {
	ms, err := r.SaveScans(ctx, fileID, [][]ocr.Table{tables})
	if err != nil {
		return MetaTable{}, err
	}
	return ms[0], nil
}

// SaveScans stores one meta table per page of a scan. All pages go in one
// transaction: either every page is saved or none is.
func (r *TableRepo) SaveScans(ctx context.Context, fileID int64, pages [][]ocr.Table) ([]MetaTable, error) {
	var out []MetaTable
	err := inTx(ctx, r.DB, func(tx *sql.Tx) error {
		for p, tables := range pages {
			m := MetaTable{FileID: fileID, Tables: []TableData{}}
			if err := tx.QueryRowContext(ctx,
				`insert into meta_tables(file_id) values ($1) returning id, created_at`, fileID,
			).Scan(&m.ID, &m.CreatedAt); err != nil {
				return fmt.Errorf("page %d: %w", p, err)
			}
			for i, t := range tables {
				td, err := insertTable(ctx, tx, m.ID, t)
				if err != nil {
					return fmt.Errorf("page %d table %d: %w", p, i, err)
				}
				m.Tables = append(m.Tables, td)
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, m := range out {
		Logger.Info("scan saved", "file", fileID, "meta_table", m.ID, "tables", len(m.Tables))
	}
	return out, nil
}

func insertTable(ctx context.Context, tx *sql.Tx, metaID int64, t ocr.Table) (TableData, error) {
	td := TableData{
		MetaTableID: metaID,
		RowCount:    t.RowCount,
		ColCount:    t.ColCount,
		Polygon:     []int{t.Box.X0, t.Box.Y0, t.Box.X1, t.Box.Y1},
	}
	poly, _ := json.Marshal(td.Polygon)
	const qt = `insert into table_data(meta_table_id, row_count, col_count, polygon)
	            values ($1,$2,$3,$4) returning id`
	if err := tx.QueryRowContext(ctx, qt, metaID, td.RowCount, td.ColCount, poly).Scan(&td.ID); err != nil {
		return TableData{}, err
	}
	const qc = `insert into table_cells(table_data_id, kind, row_index, col_index, row_span, col_span, content)
	            values ($1,$2,$3,$4,$5,$6,$7) returning id`
	for _, c := range t.Cells {
		rs, cs := c.Span()
		cell := Cell{Kind: c.Kind, RowIndex: c.RowIndex, ColIndex: c.ColIndex, RowSpan: rs, ColSpan: cs, Content: c.Content}
		if err := tx.QueryRowContext(ctx, qc, td.ID, string(c.Kind), c.RowIndex, c.ColIndex, rs, cs, c.Content).Scan(&cell.ID); err != nil {
			return TableData{}, err
		}
		td.Cells = append(td.Cells, cell)
	}
	return td, nil
}

// MetaTable returns the meta table with its tables, cells not loaded.
func (r *TableRepo) MetaTable(ctx context.Context, fileID, id int64) (MetaTable, error) {
	var m MetaTable
	if err := r.DB.QueryRowContext(ctx,
		`select id, file_id, created_at from meta_tables where id=$1 and file_id=$2`, id, fileID,
	).Scan(&m.ID, &m.FileID, &m.CreatedAt); err != nil {
		return MetaTable{}, err
	}

	rows, err := r.DB.QueryContext(ctx,
		`select id, meta_table_id, row_count, col_count, polygon from table_data where meta_table_id=$1 order by id`, id)
	if err != nil {
		return MetaTable{}, err
	}
	defer rows.Close()
	m.Tables = []TableData{}
	for rows.Next() {
		td, err := scanTable(rows)
		if err != nil {
			return MetaTable{}, err
		}
		m.Tables = append(m.Tables, td)
	}
	return m, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanTable(s scanner) (TableData, error) {
	var (
		td   TableData
		poly []byte
	)
	if err := s.Scan(&td.ID, &td.MetaTableID, &td.RowCount, &td.ColCount, &poly); err != nil {
		return TableData{}, err
	}
	if err := json.Unmarshal(poly, &td.Polygon); err != nil {
		return TableData{}, fmt.Errorf("table %d polygon: %w", td.ID, err)
	}
	return td, nil
}

// Table returns one table of a meta table with its cells.
func (r *TableRepo) Table(ctx context.Context, metaID, id int64) (TableData, error) {
	td, err := scanTable(r.DB.QueryRowContext(ctx,
		`select id, meta_table_id, row_count, col_count, polygon from table_data where id=$1 and meta_table_id=$2`, id, metaID))
	if err != nil {
		return TableData{}, err
	}
	rows, err := r.DB.QueryContext(ctx, `
select id, kind, row_index, col_index, row_span, col_span, content, selectable
from table_cells where table_data_id=$1 order by row_index, col_index, id`, id)
	if err != nil {
		return TableData{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var c Cell
		if err := rows.Scan(&c.ID, &c.Kind, &c.RowIndex, &c.ColIndex, &c.RowSpan, &c.ColSpan, &c.Content, &c.Selectable); err != nil {
			return TableData{}, err
		}
		td.Cells = append(td.Cells, c)
	}
	return td, rows.Err()
}

// UpdateCellContent applies content edits; cells outside the table are ignored.
// Returns the number of updated cells.
func (r *TableRepo) UpdateCellContent(ctx context.Context, metaID, tableID int64, edits []CellEdit) (int, error) {
	return r.updateCells(ctx, `
update table_cells c set content=$1
from table_data t
where c.table_data_id=t.id and t.id=$2 and t.meta_table_id=$3 and c.id=$4`,
		metaID, tableID, edits, func(e CellEdit) any { return e.Content })
}

func (r *TableRepo) UpdateCellSelectable(ctx context.Context, metaID, tableID int64, edits []CellEdit) (int, error) {
	return r.updateCells(ctx, `
update table_cells c set selectable=$1
from table_data t
where c.table_data_id=t.id and t.id=$2 and t.meta_table_id=$3 and c.id=$4`,
		metaID, tableID, edits, func(e CellEdit) any { return e.Selectable })
}

func (r *TableRepo) updateCells(ctx context.Context, q string, metaID, tableID int64, edits []CellEdit, value func(CellEdit) any) (int, error) {
	var n int64
	err := inTx(ctx, r.DB, func(tx *sql.Tx) error {
		for _, e := range edits {
			res, err := tx.ExecContext(ctx, q, value(e), tableID, metaID, e.ID)
			if err != nil {
				return err
			}
			k, _ := res.RowsAffected()
			n += k
		}
		return nil
	})
	return int(n), err
}
