package store

import (
	"context"
	"database/sql"

	"drawing-ocr/api/internal/region"
)

// StoredRegion is a region at original resolution bound to a scanned page.
type StoredRegion struct {
	ID     int64 `json:"id"`
	PageID int64 `json:"scanned_file_id"`
	region.Region
}

type RegionRepo struct{ DB *sql.DB }

func NewRegionRepo(db *sql.DB) *RegionRepo { return &RegionRepo{DB: db} }

// InsertBatch stores an already validated batch in one transaction:
// either every region is saved or none.
func (r *RegionRepo) InsertBatch(ctx context.Context, pageID int64, regions []region.Region) ([]StoredRegion, error) {
	out := make([]StoredRegion, 0, len(regions))
	err := inTx(ctx, r.DB, func(tx *sql.Tx) error {
		const q = `insert into file_regions(scanned_page_id, label, x_min, x_max, y_min, y_max)
		           values ($1,$2,$3,$4,$5,$6) returning id`
		for _, reg := range regions {
			s := StoredRegion{PageID: pageID, Region: reg}
			if err := tx.QueryRowContext(ctx, q, pageID, reg.Label, reg.XMin, reg.XMax, reg.YMin, reg.YMax).Scan(&s.ID); err != nil {
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RegionRepo) List(ctx context.Context, pageID int64) ([]StoredRegion, error) {
	const q = `select id, scanned_page_id, label, x_min, x_max, y_min, y_max
	           from file_regions where scanned_page_id=$1 order by id`
	rows, err := r.DB.QueryContext(ctx, q, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StoredRegion{}
	for rows.Next() {
		var s StoredRegion
		if err := rows.Scan(&s.ID, &s.PageID, &s.Label, &s.XMin, &s.XMax, &s.YMin, &s.YMax); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *RegionRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `delete from file_regions where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Regions strips the storage fields.
func Regions(in []StoredRegion) []region.Region {
	out := make([]region.Region, len(in))
	for i, s := range in {
		out[i] = s.Region
	}
	return out
}
