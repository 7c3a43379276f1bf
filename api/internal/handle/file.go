package handle

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"drawing-ocr/api/internal/extract"
	"drawing-ocr/api/internal/region"
	"drawing-ocr/api/internal/source"
	"drawing-ocr/api/internal/store"
)

type fileRef struct {
	pid, fid int64
}

func fileRefOf(w http.ResponseWriter, r *http.Request) (fileRef, bool) {
	pid, ok1 := pathID(r, "pid")
	fid, ok2 := pathID(r, "fid")
	if !ok1 || !ok2 {
		http.Error(w, "bad project or file id", http.StatusBadRequest)
		return fileRef{}, false
	}
	return fileRef{pid, fid}, true
}

// UploadFile: POST /api/projects/{pid}/files (multipart "file").
// The original is kept under the upload path, every raster page is stored
// as PNG next to it.
func (h *Handle) UploadFile(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathID(r, "pid")
	if !ok {
		http.Error(w, "bad project id", http.StatusBadRequest)
		return
	}
	data, err := readUpload(w, r)
	if err != nil {
		http.Error(w, "file: "+err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := h.Projects.Get(r.Context(), pid); err != nil {
		writeError(w, err)
		return
	}
	pages, kind, err := source.Pages(data)
	if err != nil {
		writeError(w, err)
		return
	}

	uid := uuid.NewString()
	name := uid + "." + string(kind)
	if err := os.MkdirAll(h.uploads, 0o755); err != nil {
		writeError(w, err)
		return
	}
	if err := os.WriteFile(filepath.Join(h.uploads, name), data, 0o644); err != nil {
		writeError(w, err)
		return
	}

	f := store.File{ProjectID: pid, FileName: name, Format: string(kind), DocHash: extract.DocID(data)}
	for _, p := range pages {
		pname := fmt.Sprintf("%s_%d.png", uid, p.Number)
		if err := savePNG(filepath.Join(h.uploads, pname), p.Image); err != nil {
			writeError(w, err)
			return
		}
		pw, ph := p.Size()
		f.Pages = append(f.Pages, store.Page{PageNumber: p.Number, FileName: pname, Width: pw, Height: ph})
	}
	f, err = h.Files.Insert(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	Logger.Info("file uploaded", "project", pid, "file", f.ID, "format", kind, "pages", len(f.Pages))
	writeJSON(w, http.StatusCreated, f)
}

// ListFiles: GET /api/projects/{pid}/files
func (h *Handle) ListFiles(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathID(r, "pid")
	if !ok {
		http.Error(w, "bad project id", http.StatusBadRequest)
		return
	}
	fs, err := h.Files.List(r.Context(), pid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

// GetFile: GET /api/projects/{pid}/files/{fid}
func (h *Handle) GetFile(w http.ResponseWriter, r *http.Request) {
	ref, ok := fileRefOf(w, r)
	if !ok {
		return
	}
	f, err := h.Files.Get(r.Context(), ref.pid, ref.fid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// DeleteFile: DELETE /api/projects/{pid}/files/{fid}
func (h *Handle) DeleteFile(w http.ResponseWriter, r *http.Request) {
	ref, ok := fileRefOf(w, r)
	if !ok {
		return
	}
	if err := h.Files.Delete(r.Context(), ref.pid, ref.fid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": ref.fid})
}

// PageImage: GET /api/projects/{pid}/files/{fid}/pages/{page}/image?size=
// serves the page at original, medium or small scale.
func (h *Handle) PageImage(w http.ResponseWriter, r *http.Request) {
	scale, err := region.ParseScale(r.URL.Query().Get("size"))
	if err != nil {
		writeError(w, err)
		return
	}
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	path := filepath.Join(h.uploads, p.FileName)
	if scale == region.Original {
		w.Header().Set("Content-Type", "image/png")
		http.ServeFile(w, r, path)
		return
	}
	img, err := loadImage(path)
	if err != nil {
		writeError(w, err)
		return
	}
	writePNG(w, region.Preview(img, scale))
}

// page resolves {pid}/{fid}/{page} to a stored page of that project's file.
func (h *Handle) page(w http.ResponseWriter, r *http.Request) (store.Page, bool) {
	ref, ok := fileRefOf(w, r)
	if !ok {
		return store.Page{}, false
	}
	pageID, ok := pathID(r, "page")
	if !ok {
		http.Error(w, "bad page id", http.StatusBadRequest)
		return store.Page{}, false
	}
	if _, err := h.Files.Get(r.Context(), ref.pid, ref.fid); err != nil {
		writeError(w, err)
		return store.Page{}, false
	}
	p, err := h.Files.Page(r.Context(), ref.fid, pageID)
	if err != nil {
		writeError(w, err)
		return store.Page{}, false
	}
	return p, true
}
