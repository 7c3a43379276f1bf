package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"drawing-ocr/api/internal/extract"
)

// ResultRepo: кэш результатов обработки документа по (doc_id, profile, engine).
type ResultRepo struct{ DB *sql.DB }

func NewResultRepo(db *sql.DB) *ResultRepo { return &ResultRepo{DB: db} }

// Find returns the cached result. If maxAge > 0 and the row is older,
// it returns ErrNotFound so the document is processed again.
func (r *ResultRepo) Find(ctx context.Context, docID, profile, engine string, maxAge time.Duration) (*extract.Result, error) {
	const q = `select result_json, created_at
	           from results_cache
	           where doc_id=$1 and profile=$2 and engine=$3`
	var (
		js []byte
		ts time.Time
	)
	if err := r.DB.QueryRowContext(ctx, q, docID, profile, engine).Scan(&js, &ts); err != nil {
		return nil, err
	}
	if maxAge > 0 && time.Since(ts) > maxAge {
		return nil, ErrNotFound
	}
	var res extract.Result
	if err := json.Unmarshal(js, &res); err != nil {
		// битый кэш считаем отсутствующим
		Logger.Warn("broken cached result", "doc", docID, "err", err)
		return nil, ErrNotFound
	}
	return &res, nil
}

// FindLatest returns the most recent result for a document, any profile/engine.
func (r *ResultRepo) FindLatest(ctx context.Context, docID string) (*extract.Result, error) {
	const q = `select result_json from results_cache where doc_id=$1 order by created_at desc limit 1`
	var js []byte
	if err := r.DB.QueryRowContext(ctx, q, docID).Scan(&js); err != nil {
		return nil, err
	}
	var res extract.Result
	if err := json.Unmarshal(js, &res); err != nil {
		return nil, ErrNotFound
	}
	return &res, nil
}

func (r *ResultRepo) Upsert(ctx context.Context, res *extract.Result) error {
	js, err := json.Marshal(res)
	if err != nil {
		return err
	}
	const q = `
insert into results_cache(doc_id, profile, engine, result_json)
values ($1,$2,$3,$4)
on conflict (doc_id, profile, engine)
do update set result_json=excluded.result_json, created_at=now()`
	_, err = r.DB.ExecContext(ctx, q, res.DocID, res.Profile, res.Engine, js)
	return err
}
