package handle

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"drawing-ocr/api/internal/extract"
	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/region"
	"drawing-ocr/api/internal/store"
)

type regionBatch struct {
	Regions []region.Region `json:"regions"`
}

// CreateRegions: POST /api/projects/{pid}/files/{fid}/pages/{page}/regions?size=
// Regions are drawn on the preview of the given size and stored at original
// resolution. One bad region rejects the whole batch; nothing is saved.
func (h *Handle) CreateRegions(w http.ResponseWriter, r *http.Request) {
	scale, err := region.ParseScale(r.URL.Query().Get("size"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req regionBatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	orig, err := region.ValidateBatch(req.Regions, scale, p.Width, p.Height)
	if err != nil {
		writeError(w, err)
		return
	}
	saved, err := h.Regions.InsertBatch(r.Context(), p.ID, orig)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// ListRegions: GET /api/projects/{pid}/files/{fid}/pages/{page}/regions
func (h *Handle) ListRegions(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	rs, err := h.Regions.List(r.Context(), p.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// DeleteRegion: DELETE /api/regions/{rid}
func (h *Handle) DeleteRegion(w http.ResponseWriter, r *http.Request) {
	rid, ok := pathID(r, "rid")
	if !ok {
		http.Error(w, "bad region id", http.StatusBadRequest)
		return
	}
	if err := h.Regions.Delete(r.Context(), rid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": rid})
}

type scanResponse struct {
	MetaTableID  int64   `json:"metatable_id"`
	MetaTableIDs []int64 `json:"metatable_ids"`
	Tables       int     `json:"tables"`
}

type scanFailure struct {
	Error   string                 `json:"error"`
	Results []extract.RegionResult `json:"results"`
}

// Scan: POST /api/projects/{pid}/files/{fid}/scan?engine=&intensity=
// OCRs the stored regions of every page and saves the tables found, one
// meta table per page. Pages are saved only after all of them were scanned
// cleanly, in one transaction; any failure leaves the store untouched.
func (h *Handle) Scan(w http.ResponseWriter, r *http.Request) {
	ref, ok := fileRefOf(w, r)
	if !ok {
		return
	}
	intensity := 1.0
	if s := r.URL.Query().Get("intensity"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 || v > 4 {
			http.Error(w, "intensity must be in (0, 4]", http.StatusBadRequest)
			return
		}
		intensity = v
	}
	eng, err := h.engine(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := withDeadline(r)
	defer cancel()

	f, err := h.Files.Get(ctx, ref.pid, ref.fid)
	if err != nil {
		writeError(w, err)
		return
	}

	var pages [][]ocr.Table
	for _, p := range f.Pages {
		regs, err := h.Regions.List(ctx, p.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(regs) == 0 {
			Logger.Warn("page has no regions", "file", f.ID, "page", p.ID)
			continue
		}
		img, err := loadImage(filepath.Join(h.uploads, p.FileName))
		if err != nil {
			writeError(w, err)
			return
		}
		results, err := h.pipe.Scan(ctx, img, store.Regions(regs), intensity, eng)
		if err != nil {
			if results != nil {
				// таблицы с битой структурой: ничего не сохраняем
				writeJSON(w, statusFor(err), scanFailure{Error: fmt.Sprintf("page %d: %v", p.ID, err), Results: results})
				return
			}
			writeError(w, err)
			return
		}
		var tables []ocr.Table
		for _, res := range results {
			tables = append(tables, res.Tables...)
		}
		pages = append(pages, tables)
	}
	if len(pages) == 0 {
		writeError(w, fmt.Errorf("file %d has no regions to scan: %w", f.ID, store.ErrNotFound))
		return
	}

	metas, err := h.Tables.SaveScans(ctx, f.ID, pages)
	if err != nil {
		writeError(w, err)
		return
	}
	out := scanResponse{MetaTableIDs: []int64{}}
	for i, m := range metas {
		out.MetaTableID = m.ID
		out.MetaTableIDs = append(out.MetaTableIDs, m.ID)
		out.Tables += len(pages[i])
	}
	writeJSON(w, http.StatusOK, out)
}
