package handle

import (
	"encoding/json"
	"net/http"
	"strconv"

	"drawing-ocr/api/internal/reconcile"
	"drawing-ocr/api/internal/store"
)

// metaTable checks the {pid}/{fid}/{mid} chain and returns the meta table.
func (h *Handle) metaTable(w http.ResponseWriter, r *http.Request) (store.MetaTable, bool) {
	ref, ok := fileRefOf(w, r)
	if !ok {
		return store.MetaTable{}, false
	}
	mid, ok := pathID(r, "mid")
	if !ok {
		http.Error(w, "bad meta table id", http.StatusBadRequest)
		return store.MetaTable{}, false
	}
	if _, err := h.Files.Get(r.Context(), ref.pid, ref.fid); err != nil {
		writeError(w, err)
		return store.MetaTable{}, false
	}
	m, err := h.Tables.MetaTable(r.Context(), ref.fid, mid)
	if err != nil {
		writeError(w, err)
		return store.MetaTable{}, false
	}
	return m, true
}

func (h *Handle) tableData(w http.ResponseWriter, r *http.Request) (store.TableData, bool) {
	m, ok := h.metaTable(w, r)
	if !ok {
		return store.TableData{}, false
	}
	tid, ok := pathID(r, "tid")
	if !ok {
		http.Error(w, "bad table id", http.StatusBadRequest)
		return store.TableData{}, false
	}
	td, err := h.Tables.Table(r.Context(), m.ID, tid)
	if err != nil {
		writeError(w, err)
		return store.TableData{}, false
	}
	return td, true
}

// GetMetaTable: GET /api/projects/{pid}/files/{fid}/meta-tables/{mid}
func (h *Handle) GetMetaTable(w http.ResponseWriter, r *http.Request) {
	if m, ok := h.metaTable(w, r); ok {
		writeJSON(w, http.StatusOK, m)
	}
}

// GetTable: GET .../meta-tables/{mid}/tables/{tid}
func (h *Handle) GetTable(w http.ResponseWriter, r *http.Request) {
	if td, ok := h.tableData(w, r); ok {
		writeJSON(w, http.StatusOK, td)
	}
}

// TableDataframe: GET .../tables/{tid}/dataframe returns rows 1.. as records
// keyed by the (deduplicated) header row.
func (h *Handle) TableDataframe(w http.ResponseWriter, r *http.Request) {
	td, ok := h.tableData(w, r)
	if !ok {
		return
	}
	g, err := reconcile.ToGrid(td.Table())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dataframe(g))
}

func dataframe(g reconcile.Grid) []map[string]string {
	out := []map[string]string{}
	if g.Rows() == 0 {
		return out
	}
	g = g.Clone()
	reconcile.DedupeHeaders(g)
	keys := make([]string, g.Cols())
	for c := range keys {
		keys[c] = strconv.Itoa(c)
		if c < len(g[0]) && g[0][c] != "" {
			keys[c] = g[0][c]
		}
	}
	for _, row := range g[1:] {
		rec := make(map[string]string, len(keys))
		for c, k := range keys {
			if c < len(row) {
				rec[k] = row[c]
			}
		}
		out = append(out, rec)
	}
	return out
}

type cellsRequest struct {
	Data []store.CellEdit `json:"data"`
}

// PatchTable: PATCH .../tables/{tid}?type=content|selectable
func (h *Handle) PatchTable(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")
	if kind == "" {
		kind = "content"
	}
	if kind != "content" && kind != "selectable" {
		http.Error(w, "wrong type: use content or selectable", http.StatusBadRequest)
		return
	}
	var req cellsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	td, ok := h.tableData(w, r)
	if !ok {
		return
	}

	var (
		n   int
		err error
	)
	if kind == "content" {
		n, err = h.Tables.UpdateCellContent(r.Context(), td.MetaTableID, td.ID, req.Data)
	} else {
		n, err = h.Tables.UpdateCellSelectable(r.Context(), td.MetaTableID, td.ID, req.Data)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}
