package store

import (
	"context"
	"database/sql"
	"time"
)

// File: загруженный документ; Pages: его растровые страницы.
type File struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	FileName  string    `json:"file_name"`
	Format    string    `json:"format"`
	DocHash   string    `json:"doc_hash"`
	CreatedAt time.Time `json:"created_at"`
	Pages     []Page    `json:"scanned_files,omitempty"`
}

// Page is one rasterized page stored as an image under the upload path.
type Page struct {
	ID         int64  `json:"id"`
	FileID     int64  `json:"file_id"`
	PageNumber int    `json:"page_number"`
	FileName   string `json:"file_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

type FileRepo struct{ DB *sql.DB }

func NewFileRepo(db *sql.DB) *FileRepo { return &FileRepo{DB: db} }

// Insert stores the file and all its pages at once.
func (r *FileRepo) Insert(ctx context.Context, f File) (File, error) {
	err := inTx(ctx, r.DB, func(tx *sql.Tx) error {
		const qf = `insert into files(project_id, file_name, format, doc_hash) values ($1,$2,$3,$4)
		            returning id, created_at`
		if err := tx.QueryRowContext(ctx, qf, f.ProjectID, f.FileName, f.Format, f.DocHash).Scan(&f.ID, &f.CreatedAt); err != nil {
			return err
		}
		const qp = `insert into scanned_pages(file_id, page_number, file_name, width, height)
		            values ($1,$2,$3,$4,$5) returning id`
		for i := range f.Pages {
			p := &f.Pages[i]
			p.FileID = f.ID
			if err := tx.QueryRowContext(ctx, qp, f.ID, p.PageNumber, p.FileName, p.Width, p.Height).Scan(&p.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return f, err
}

// Get loads a file of the project with its pages.
func (r *FileRepo) Get(ctx context.Context, projectID, id int64) (File, error) {
	const q = `select id, project_id, file_name, format, doc_hash, created_at
	           from files where id=$1 and project_id=$2`
	var f File
	if err := r.DB.QueryRowContext(ctx, q, id, projectID).Scan(&f.ID, &f.ProjectID, &f.FileName, &f.Format, &f.DocHash, &f.CreatedAt); err != nil {
		return File{}, err
	}
	pages, err := r.Pages(ctx, id)
	if err != nil {
		return File{}, err
	}
	f.Pages = pages
	return f, nil
}

func (r *FileRepo) List(ctx context.Context, projectID int64) ([]File, error) {
	const q = `select id, project_id, file_name, format, doc_hash, created_at
	           from files where project_id=$1 order by id`
	rows, err := r.DB.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []File{}
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.FileName, &f.Format, &f.DocHash, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Delete removes the file; pages, regions and tables go with it.
func (r *FileRepo) Delete(ctx context.Context, projectID, id int64) error {
	res, err := r.DB.ExecContext(ctx, `delete from files where id=$1 and project_id=$2`, id, projectID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *FileRepo) Pages(ctx context.Context, fileID int64) ([]Page, error) {
	const q = `select id, file_id, page_number, file_name, width, height
	           from scanned_pages where file_id=$1 order by page_number, id`
	rows, err := r.DB.QueryContext(ctx, q, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.ID, &p.FileID, &p.PageNumber, &p.FileName, &p.Width, &p.Height); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *FileRepo) Page(ctx context.Context, fileID, pageID int64) (Page, error) {
	const q = `select id, file_id, page_number, file_name, width, height
	           from scanned_pages where id=$1 and file_id=$2`
	var p Page
	err := r.DB.QueryRowContext(ctx, q, pageID, fileID).Scan(&p.ID, &p.FileID, &p.PageNumber, &p.FileName, &p.Width, &p.Height)
	return p, err
}
