package handle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"drawing-ocr/api/internal/export"
	"drawing-ocr/api/internal/extract"
	"drawing-ocr/api/internal/normalize"
	"drawing-ocr/api/internal/source"
	"drawing-ocr/api/internal/store"
	"drawing-ocr/api/internal/tiling"
	"drawing-ocr/api/internal/util"
)

var reDocID = regexp.MustCompile(`^[0-9a-f]{16}$`)

type imageRequest struct {
	Image string `json:"image"` // base64 или data:URL
}

// readUpload returns the multipart "file" field or, for a JSON body, the
// decoded {"image": "<base64>"}.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req imageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("bad json: %w", err)
		}
		data, _, err := util.DecodeBase64MaybeDataURL(req.Image)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, errors.New("empty image")
		}
		return data, nil
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	return data, nil
}

type processFailure struct {
	Error  string          `json:"error"`
	Result *extract.Result `json:"result"`
}

// Process: POST /api/document-ocr/process (multipart "file", ?profile=&engine=)
// runs the whole page through tiling, OCR, reconciliation and cleanup.
func (h *Handle) Process(w http.ResponseWriter, r *http.Request) {
	data, err := readUpload(w, r)
	if err != nil {
		http.Error(w, "file: "+err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := withDeadline(r)
	defer cancel()

	res, err := h.process(ctx, r, data, false)
	switch {
	case res == nil:
		writeError(w, err)
	case err != nil:
		// часть фрагментов нарушила контракт движка
		writeJSON(w, statusFor(err), processFailure{Error: err.Error(), Result: res})
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// ProcessXLSX: POST /api/document-ocr/process/xlsx, same input, xlsx output.
// A document already processed with the same profile and engine is served
// from the cache.
func (h *Handle) ProcessXLSX(w http.ResponseWriter, r *http.Request) {
	data, err := readUpload(w, r)
	if err != nil {
		http.Error(w, "file: "+err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := withDeadline(r)
	defer cancel()

	res, err := h.process(ctx, r, data, true)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeXLSX(w, res)
}

// ExportXLSX: GET /api/document-ocr/{doc}/xlsx exports a processed document.
func (h *Handle) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	doc := r.PathValue("doc")
	if !reDocID.MatchString(doc) {
		http.Error(w, "bad document id", http.StatusBadRequest)
		return
	}
	res, err := h.lookup(r.Context(), doc)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeXLSX(w, res)
}

// CropImage: GET /api/document-ocr/{doc}/image?x1=&y1=&x2=&y2= returns a PNG
// of that rectangle of the processed page.
func (h *Handle) CropImage(w http.ResponseWriter, r *http.Request) {
	doc := r.PathValue("doc")
	if !reDocID.MatchString(doc) {
		http.Error(w, "bad document id", http.StatusBadRequest)
		return
	}
	var c [4]int
	for i, k := range []string{"x1", "y1", "x2", "y2"} {
		v, err := strconv.Atoi(r.URL.Query().Get(k))
		if err != nil {
			http.Error(w, "bad "+k, http.StatusBadRequest)
			return
		}
		c[i] = v
	}

	img, err := loadImage(h.previewPath(doc))
	if err != nil {
		writeError(w, err)
		return
	}
	rect := image.Rect(c[0], c[1], c[2], c[3]).Intersect(img.Bounds())
	if rect.Empty() {
		http.Error(w, "rectangle outside the page", http.StatusBadRequest)
		return
	}
	writePNG(w, tiling.Crop(img, rect))
}

func (h *Handle) process(ctx context.Context, r *http.Request, data []byte, useCache bool) (*extract.Result, error) {
	prof, err := h.profiles.Get(r.URL.Query().Get("profile"))
	if err != nil {
		return nil, err
	}
	eng, err := h.engine(r)
	if err != nil {
		return nil, err
	}
	docID := extract.DocID(data)
	if useCache {
		if res, ok := h.cache.Get(docID); ok && res.Profile == prof.Name && res.Engine == eng.Name() {
			Logger.Debug("cache hit", "doc", docID)
			return res, nil
		}
	}

	page, err := source.First(data)
	if err != nil {
		return nil, err
	}
	if err := h.savePreview(docID, page.Image); err != nil {
		Logger.Warn("preview not saved", "doc", docID, "err", err)
	}
	res, err := h.pipe.Process(ctx, docID, page.Image, prof, eng)
	if err != nil {
		return res, err
	}
	h.cache.Put(res)
	if h.Results != nil {
		if err := h.Results.Upsert(ctx, res); err != nil {
			Logger.Warn("result not persisted", "doc", docID, "err", err)
		}
	}
	return res, nil
}

func (h *Handle) lookup(ctx context.Context, docID string) (*extract.Result, error) {
	if res, ok := h.cache.Get(docID); ok {
		return res, nil
	}
	if h.Results == nil {
		return nil, fmt.Errorf("document %s: %w", docID, store.ErrNotFound)
	}
	res, err := h.Results.FindLatest(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", docID, err)
	}
	h.cache.Put(res)
	return res, nil
}

func (h *Handle) writeXLSX(w http.ResponseWriter, res *extract.Result) {
	tables := make([]normalize.Records, len(res.Tables))
	for i, t := range res.Tables {
		tables[i] = t.Data
	}
	data, err := export.Workbook(tables)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="data.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handle) previewPath(docID string) string {
	return filepath.Join(h.uploads, "documents", docID+".png")
}

func (h *Handle) savePreview(docID string, img image.Image) error {
	if h.uploads == "" {
		return nil
	}
	return savePNG(h.previewPath(docID), img)
}

func savePNG(path string, img image.Image) error {
	data, err := tiling.EncodePNG(img)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func loadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrDecode, err)
	}
	return img, nil
}

func writePNG(w http.ResponseWriter, img image.Image) {
	data, err := tiling.EncodePNG(img)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
