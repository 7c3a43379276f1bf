package handle

import (
	"context"
	"errors"
	"sync"

	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/region"
	"drawing-ocr/api/internal/store"
)

var errNotImplemented = errors.New("not implemented in fake")

type fakeProjects struct{}

func (fakeProjects) Create(_ context.Context, name, lima, version string) (store.Project, error) {
	return store.Project{ID: 1, Name: name, LimaNumber: lima, Version: version}, nil
}
func (fakeProjects) Get(_ context.Context, id int64) (store.Project, error) {
	if id != 1 {
		return store.Project{}, store.ErrNotFound
	}
	return store.Project{ID: 1, Name: "p"}, nil
}
func (fakeProjects) List(context.Context) ([]store.Project, error) {
	return []store.Project{{ID: 1, Name: "p"}}, nil
}

// fakeFiles holds one file (id 1, project 1) with one page (id 7) plus any
// extra pages.
type fakeFiles struct {
	page  store.Page
	extra []store.Page
}

func (f *fakeFiles) Insert(_ context.Context, file store.File) (store.File, error) {
	file.ID = 2
	return file, nil
}
func (f *fakeFiles) Get(_ context.Context, pid, id int64) (store.File, error) {
	if pid != 1 || id != 1 {
		return store.File{}, store.ErrNotFound
	}
	return store.File{ID: 1, ProjectID: 1, Pages: append([]store.Page{f.page}, f.extra...)}, nil
}
func (f *fakeFiles) List(context.Context, int64) ([]store.File, error) { return nil, errNotImplemented }
func (f *fakeFiles) Delete(context.Context, int64, int64) error { return errNotImplemented }
func (f *fakeFiles) Page(_ context.Context, fileID, pageID int64) (store.Page, error) {
	if fileID != 1 || pageID != f.page.ID {
		return store.Page{}, store.ErrNotFound
	}
	return f.page, nil
}

type fakeRegions struct {
	mu    sync.Mutex
	saved []store.StoredRegion
	calls int
}

func (f *fakeRegions) InsertBatch(_ context.Context, pageID int64, rs []region.Region) ([]store.StoredRegion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var out []store.StoredRegion
	for _, r := range rs {
		s := store.StoredRegion{ID: int64(len(f.saved) + 1), PageID: pageID, Region: r}
		f.saved = append(f.saved, s)
		out = append(out, s)
	}
	return out, nil
}
func (f *fakeRegions) List(_ context.Context, pageID int64) ([]store.StoredRegion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.StoredRegion
	for _, s := range f.saved {
		if s.PageID == pageID {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeRegions) Delete(context.Context, int64) error { return errNotImplemented }

type fakeTables struct {
	saved []ocr.Table
	table store.TableData
}

// SaveScans numbers meta tables from 3.
func (f *fakeTables) SaveScans(_ context.Context, fileID int64, pages [][]ocr.Table) ([]store.MetaTable, error) {
	var out []store.MetaTable
	for i, ts := range pages {
		f.saved = append(f.saved, ts...)
		out = append(out, store.MetaTable{ID: int64(3 + i), FileID: fileID})
	}
	return out, nil
}
func (f *fakeTables) MetaTable(_ context.Context, fileID, id int64) (store.MetaTable, error) {
	if id != 3 {
		return store.MetaTable{}, store.ErrNotFound
	}
	return store.MetaTable{ID: 3, FileID: fileID, Tables: []store.TableData{f.table}}, nil
}
func (f *fakeTables) Table(_ context.Context, metaID, id int64) (store.TableData, error) {
	if metaID != 3 || id != f.table.ID {
		return store.TableData{}, store.ErrNotFound
	}
	return f.table, nil
}
func (f *fakeTables) UpdateCellContent(_ context.Context, _, _ int64, edits []store.CellEdit) (int, error) {
	return len(edits), nil
}
func (f *fakeTables) UpdateCellSelectable(_ context.Context, _, _ int64, edits []store.CellEdit) (int, error) {
	return len(edits), nil
}
