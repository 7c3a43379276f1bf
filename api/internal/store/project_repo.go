package store

import (
	"context"
	"database/sql"
	"time"
)

type Project struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	LimaNumber string    `json:"lima_number"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}

type ProjectRepo struct{ DB *sql.DB }

func NewProjectRepo(db *sql.DB) *ProjectRepo { return &ProjectRepo{DB: db} }

func (r *ProjectRepo) Create(ctx context.Context, name, limaNumber, version string) (Project, error) {
	const q = `insert into projects(name, lima_number, version) values ($1,$2,$3)
	           returning id, created_at`
	p := Project{Name: name, LimaNumber: limaNumber, Version: version}
	err := r.DB.QueryRowContext(ctx, q, name, limaNumber, version).Scan(&p.ID, &p.CreatedAt)
	return p, err
}

func (r *ProjectRepo) Get(ctx context.Context, id int64) (Project, error) {
	const q = `select id, name, lima_number, version, created_at from projects where id=$1`
	var p Project
	err := r.DB.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Name, &p.LimaNumber, &p.Version, &p.CreatedAt)
	return p, err
}

func (r *ProjectRepo) List(ctx context.Context) ([]Project, error) {
	const q = `select id, name, lima_number, version, created_at from projects order by id`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.LimaNumber, &p.Version, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
