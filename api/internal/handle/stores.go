package handle

import (
	"context"

	"drawing-ocr/api/internal/extract"
	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/region"
	"drawing-ocr/api/internal/store"
)

// Storage as the handlers use it; *store.XxxRepo satisfy these.

type ProjectStore interface {
	Create(ctx context.Context, name, limaNumber, version string) (store.Project, error)
	Get(ctx context.Context, id int64) (store.Project, error)
	List(ctx context.Context) ([]store.Project, error)
}

type FileStore interface {
	Insert(ctx context.Context, f store.File) (store.File, error)
	Get(ctx context.Context, projectID, id int64) (store.File, error)
	List(ctx context.Context, projectID int64) ([]store.File, error)
	Delete(ctx context.Context, projectID, id int64) error
	Page(ctx context.Context, fileID, pageID int64) (store.Page, error)
}

type RegionStore interface {
	InsertBatch(ctx context.Context, pageID int64, regions []region.Region) ([]store.StoredRegion, error)
	List(ctx context.Context, pageID int64) ([]store.StoredRegion, error)
	Delete(ctx context.Context, id int64) error
}

type TableStore interface {
	SaveScans(ctx context.Context, fileID int64, pages [][]ocr.Table) ([]store.MetaTable, error)
	MetaTable(ctx context.Context, fileID, id int64) (store.MetaTable, error)
	Table(ctx context.Context, metaID, id int64) (store.TableData, error)
	UpdateCellContent(ctx context.Context, metaID, tableID int64, edits []store.CellEdit) (int, error)
	UpdateCellSelectable(ctx context.Context, metaID, tableID int64, edits []store.CellEdit) (int, error)
}

type ResultStore interface {
	FindLatest(ctx context.Context, docID string) (*extract.Result, error)
	Upsert(ctx context.Context, res *extract.Result) error
}
