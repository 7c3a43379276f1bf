package handle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"drawing-ocr/api/internal/config"
	"drawing-ocr/api/internal/export"
	"drawing-ocr/api/internal/extract"
	"drawing-ocr/api/internal/geometry"
	"drawing-ocr/api/internal/normalize"
	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/ocr/ocrtest"
	"drawing-ocr/api/internal/reconcile"
	"drawing-ocr/api/internal/region"
	"drawing-ocr/api/internal/source"
	"drawing-ocr/api/internal/store"
	"drawing-ocr/api/internal/tiling"
)

type env struct {
	srv     *httptest.Server
	h       *Handle
	regions *fakeRegions
	tables  *fakeTables
	files   *fakeFiles
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newEnv(t *testing.T, eng ocr.Engine) *env {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "page.png"), pngBytes(t, 100, 80), 0o644); err != nil {
		t.Fatal(err)
	}
	profiles := config.Profiles{"raw": {
		Name:      "raw",
		Tiling:    tiling.Policy{MaxTileDim: 1000, Axes: tiling.AxisX},
		Expand:    reconcile.DefaultExpand,
		Normalize: normalize.Config{KeepEmptyCell: true},
	}}
	h := New(ocr.NewEngines(eng.Name(), eng), profiles, extract.New(2, 0), extract.NewResultCache(8), dir)
	e := &env{h: h, regions: &fakeRegions{}, tables: &fakeTables{},
		files: &fakeFiles{page: store.Page{ID: 7, FileID: 1, FileName: "page.png", Width: 100, Height: 80}}}
	h.Projects = fakeProjects{}
	h.Files = e.files
	h.Regions = e.regions
	h.Tables = e.tables

	mux := http.NewServeMux()
	h.Register(mux)
	e.srv = httptest.NewServer(mux)
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) upload(t *testing.T, path string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "drawing.png")
	_, _ = fw.Write(data)
	_ = mw.Close()
	resp, err := http.Post(e.srv.URL+path, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *env) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func weldTable(box geometry.Box) ocr.Table {
	return ocr.Table{RowCount: 2, ColCount: 2, Box: box, Cells: []ocr.Cell{
		{RowIndex: 0, ColIndex: 0, Content: "Weld No"},
		{RowIndex: 0, ColIndex: 1, Content: "Weld Gap"},
		{RowIndex: 1, ColIndex: 0, Content: "W03"},
		{RowIndex: 1, ColIndex: 1, Content: "1,2"},
	}}
}

func oneTable(image.Image) (ocr.Analysis, error) {
	return ocr.Analysis{Tables: []ocr.Table{weldTable(geometry.Box{X0: 0, Y0: 0, X1: 5, Y1: 5})}}, nil
}

func TestProcessExportAndCrop(t *testing.T) {
	fake := &ocrtest.Fake{Respond: oneTable}
	e := newEnv(t, fake)
	data := pngBytes(t, 60, 30)

	resp := e.upload(t, "/api/document-ocr/process?profile=raw", data)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d: %s", resp.StatusCode, b)
	}
	var res extract.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.DocID != extract.DocID(data) || len(res.Tables) != 1 {
		t.Fatalf("result = %+v", res)
	}
	want := normalize.Records{{"Weld No", "Weld Gap"}, {"W03", "1,2"}}
	if !reflect.DeepEqual(res.Tables[0].Data, want) {
		t.Errorf("data = %q", res.Tables[0].Data)
	}

	xl := e.do(t, http.MethodGet, "/api/document-ocr/"+res.DocID+"/xlsx", "")
	body, _ := io.ReadAll(xl.Body)
	if xl.StatusCode != http.StatusOK || xl.Header.Get("Content-Type") != export.ContentTypeXLSX || !bytes.HasPrefix(body, []byte("PK")) {
		t.Errorf("xlsx: status %d type %q", xl.StatusCode, xl.Header.Get("Content-Type"))
	}

	crop := e.do(t, http.MethodGet, "/api/document-ocr/"+res.DocID+"/image?x1=0&y1=0&x2=10&y2=5", "")
	img, err := png.Decode(crop.Body)
	if err != nil {
		t.Fatalf("crop: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 10 || b.Dy() != 5 {
		t.Errorf("crop size %v", b)
	}

	// тот же документ: xlsx из кэша, без повторного OCR
	again := e.upload(t, "/api/document-ocr/process/xlsx?profile=raw", data)
	if again.StatusCode != http.StatusOK || fake.Calls() != 1 {
		t.Errorf("status %d, ocr calls %d", again.StatusCode, fake.Calls())
	}
}

func TestProcessErrors(t *testing.T) {
	structural := func(image.Image) (ocr.Analysis, error) {
		bad := weldTable(geometry.Box{X0: 0, Y0: 0, X1: 5, Y1: 5})
		bad.Cells = append(bad.Cells, ocr.Cell{RowIndex: 0, ColIndex: 9})
		return ocr.Analysis{Tables: []ocr.Table{bad}}, nil
	}
	transient := func(image.Image) (ocr.Analysis, error) {
		return ocr.Analysis{}, fmt.Errorf("HTTP 429: %w", ocr.ErrTransient)
	}
	cases := []struct {
		name      string
		respond   func(image.Image) (ocr.Analysis, error)
		query     string
		data      []byte
		status    int
		retryable bool
	}{
		{"transient", transient, "?profile=raw", nil, http.StatusBadGateway, true},
		{"structural", structural, "?profile=raw", nil, http.StatusUnprocessableEntity, false},
		{"unsupported", oneTable, "?profile=raw", []byte("GIF89a......"), http.StatusBadRequest, false},
		{"unknown profile", oneTable, "?profile=pipes", nil, http.StatusBadRequest, false},
		{"unknown engine", oneTable, "?profile=raw&engine=nope", nil, http.StatusBadRequest, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e := newEnv(t, &ocrtest.Fake{Respond: c.respond})
			data := c.data
			if data == nil {
				data = pngBytes(t, 40, 20)
			}
			resp := e.upload(t, "/api/document-ocr/process"+c.query, data)
			var body struct {
				Error     string          `json:"error"`
				Retryable bool            `json:"retryable"`
				Result    *extract.Result `json:"result"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&body)
			if resp.StatusCode != c.status || body.Retryable != c.retryable || body.Error == "" {
				t.Errorf("status %d retryable %v body %+v", resp.StatusCode, body.Retryable, body)
			}
			if c.name == "structural" && body.Result == nil {
				t.Error("structural failure lost the result")
			}
		})
	}
}

func TestProcessRequiresFile(t *testing.T) {
	e := newEnv(t, &ocrtest.Fake{})
	resp := e.do(t, http.MethodPost, "/api/document-ocr/process", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status %d", resp.StatusCode)
	}
	if r := e.do(t, http.MethodGet, "/api/document-ocr/0123456789abcdef/xlsx", ""); r.StatusCode != http.StatusNotFound {
		t.Errorf("unknown doc: status %d", r.StatusCode)
	}
	if r := e.do(t, http.MethodGet, "/api/document-ocr/not-a-doc/image?x1=0&y1=0&x2=1&y2=1", ""); r.StatusCode != http.StatusBadRequest {
		t.Errorf("bad doc id: status %d", r.StatusCode)
	}
}

func TestProcessBase64(t *testing.T) {
	e := newEnv(t, &ocrtest.Fake{Respond: oneTable})
	body := `{"image":"data:image/png;base64,` + base64.StdEncoding.EncodeToString(pngBytes(t, 20, 10)) + `"}`
	resp, err := http.Post(e.srv.URL+"/api/document-ocr/process?profile=raw", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var res extract.Result
	_ = json.NewDecoder(resp.Body).Decode(&res)
	if resp.StatusCode != http.StatusOK || res.Width != 20 || len(res.Tables) != 1 {
		t.Errorf("status %d: %+v", resp.StatusCode, res)
	}
}

func TestUploadFile(t *testing.T) {
	e := newEnv(t, &ocrtest.Fake{})
	resp := e.upload(t, "/api/projects/1/files", pngBytes(t, 30, 20))
	var f store.File
	_ = json.NewDecoder(resp.Body).Decode(&f)
	if resp.StatusCode != http.StatusCreated || f.ID != 2 || f.Format != "png" || len(f.Pages) != 1 {
		t.Fatalf("status %d: %+v", resp.StatusCode, f)
	}
	if p := f.Pages[0]; p.Width != 30 || p.Height != 20 {
		t.Errorf("page = %+v", p)
	}
	if _, err := os.Stat(filepath.Join(e.h.uploads, f.Pages[0].FileName)); err != nil {
		t.Errorf("page not stored: %v", err)
	}
	if r := e.upload(t, "/api/projects/9/files", pngBytes(t, 30, 20)); r.StatusCode != http.StatusNotFound {
		t.Errorf("unknown project: status %d", r.StatusCode)
	}
}

func TestCreateRegions(t *testing.T) {
	e := newEnv(t, &ocrtest.Fake{})
	const path = "/api/projects/1/files/1/pages/7/regions"

	bad := `{"regions":[
	  {"label":"a","x_min":0,"x_max":10,"y_min":0,"y_max":10},
	  {"label":"b","x_min":50,"x_max":100,"y_min":0,"y_max":10},
	  {"label":"c","x_min":20,"x_max":30,"y_min":20,"y_max":30}]}`
	resp := e.do(t, http.MethodPost, path, bad)
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(b), "One or more Regions out of bounds: b.") {
		t.Errorf("status %d: %s", resp.StatusCode, b)
	}
	if e.regions.calls != 0 {
		t.Fatalf("batch partly persisted: %d inserts", e.regions.calls)
	}

	var many []string
	for i := 0; i < region.MaxBatch+1; i++ {
		many = append(many, `{"label":"r","x_min":0,"x_max":1,"y_min":0,"y_max":1}`)
	}
	if r := e.do(t, http.MethodPost, path, `{"regions":[`+strings.Join(many, ",")+`]}`); r.StatusCode != http.StatusBadRequest {
		t.Errorf("11 regions: status %d", r.StatusCode)
	}

	ok := e.do(t, http.MethodPost, path+"?size=medium", `{"regions":[{"label":"a","x_min":2,"x_max":20,"y_min":2,"y_max":20}]}`)
	if ok.StatusCode != http.StatusCreated {
		t.Fatalf("status %d", ok.StatusCode)
	}
	got := e.regions.saved[0].Region
	if want := (region.Region{Label: "a", XMin: 5, XMax: 50, YMin: 5, YMax: 50}); got != want {
		t.Errorf("stored %+v, want %+v", got, want)
	}
}

func TestScan(t *testing.T) {
	e := newEnv(t, &ocrtest.Fake{Respond: oneTable})
	e.regions.saved = []store.StoredRegion{{ID: 1, PageID: 7, Region: region.Region{Label: "a", XMin: 10, XMax: 40, YMin: 20, YMax: 50}}}

	resp := e.do(t, http.MethodPost, "/api/projects/1/files/1/scan", "")
	var out scanResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK || out.MetaTableID != 3 || out.Tables != 1 {
		t.Fatalf("status %d: %+v", resp.StatusCode, out)
	}
	if box := e.tables.saved[0].Box; box != (geometry.Box{X0: 10, Y0: 20, X1: 15, Y1: 25}) {
		t.Errorf("saved box %v", box)
	}

	e.regions.saved = nil
	if r := e.do(t, http.MethodPost, "/api/projects/1/files/1/scan", ""); r.StatusCode != http.StatusNotFound {
		t.Errorf("no regions: status %d", r.StatusCode)
	}
}

func TestScanRejectsBrokenTable(t *testing.T) {
	e := newEnv(t, &ocrtest.Fake{Respond: func(image.Image) (ocr.Analysis, error) {
		return ocr.Analysis{Tables: []ocr.Table{
			{RowCount: 1, ColCount: 1, Cells: []ocr.Cell{{RowIndex: 3, ColIndex: 9, Content: "x"}}},
		}}, nil
	}})
	e.regions.saved = []store.StoredRegion{{ID: 1, PageID: 7, Region: region.Region{Label: "spec", XMin: 10, XMax: 40, YMin: 20, YMax: 50}}}

	resp := e.do(t, http.MethodPost, "/api/projects/1/files/1/scan", "")
	var out scanFailure
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d: %+v", resp.StatusCode, out)
	}
	if !strings.Contains(out.Error, `region "spec"`) || len(out.Results) != 1 {
		t.Errorf("body %+v", out)
	}
	if len(e.tables.saved) != 0 {
		t.Errorf("saved %d tables", len(e.tables.saved))
	}
}

func TestScanAllOrNothing(t *testing.T) {
	e := newEnv(t, &ocrtest.Fake{Respond: func(img image.Image) (ocr.Analysis, error) {
		if img.Bounds().Dx() == 20 { // регион второй страницы
			return ocr.Analysis{}, fmt.Errorf("HTTP 503: %w", ocr.ErrTransient)
		}
		return oneTable(img)
	}})
	e.files.extra = []store.Page{{ID: 8, FileID: 1, FileName: "page.png", Width: 100, Height: 80}}
	e.regions.saved = []store.StoredRegion{
		{ID: 1, PageID: 7, Region: region.Region{Label: "a", XMin: 10, XMax: 40, YMin: 20, YMax: 50}},
		{ID: 2, PageID: 8, Region: region.Region{Label: "b", XMin: 0, XMax: 20, YMin: 0, YMax: 10}},
	}

	resp := e.do(t, http.MethodPost, "/api/projects/1/files/1/scan", "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if len(e.tables.saved) != 0 {
		t.Errorf("second page failed but %d tables were saved", len(e.tables.saved))
	}

	// обе страницы в порядке: по мета-таблице на страницу
	e.regions.saved[1].Region = region.Region{Label: "b", XMin: 0, XMax: 30, YMin: 0, YMax: 10}
	resp = e.do(t, http.MethodPost, "/api/projects/1/files/1/scan", "")
	var out scanResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK || !reflect.DeepEqual(out.MetaTableIDs, []int64{3, 4}) || out.Tables != 2 {
		t.Errorf("status %d: %+v", resp.StatusCode, out)
	}
}

func TestPageImage(t *testing.T) {
	e := newEnv(t, &ocrtest.Fake{})
	resp := e.do(t, http.MethodGet, "/api/projects/1/files/1/pages/7/image?size=medium", "")
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 32 {
		t.Errorf("medium preview %v", b)
	}
	if r := e.do(t, http.MethodGet, "/api/projects/1/files/1/pages/7/image?size=huge", ""); r.StatusCode != http.StatusBadRequest {
		t.Errorf("bad size: status %d", r.StatusCode)
	}
	if r := e.do(t, http.MethodGet, "/api/projects/2/files/1/pages/7/image", ""); r.StatusCode != http.StatusNotFound {
		t.Errorf("foreign project: status %d", r.StatusCode)
	}
}

func TestTableRoutes(t *testing.T) {
	e := newEnv(t, &ocrtest.Fake{})
	e.tables.table = store.TableData{ID: 5, MetaTableID: 3, RowCount: 2, ColCount: 2, Cells: []store.Cell{
		{ID: 1, RowIndex: 0, ColIndex: 0, Content: "Value"},
		{ID: 2, RowIndex: 0, ColIndex: 1, Content: "Value"},
		{ID: 3, RowIndex: 1, ColIndex: 0, Content: "(3)"},
		{ID: 4, RowIndex: 1, ColIndex: 1, Content: "(4)"},
	}}
	const base = "/api/projects/1/files/1/meta-tables/3/tables/5"

	resp := e.do(t, http.MethodGet, base+"/dataframe", "")
	var recs []map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&recs)
	if want := []map[string]string{{"Value": "(3)", "Value_1": "(4)"}}; !reflect.DeepEqual(recs, want) {
		t.Errorf("dataframe = %v", recs)
	}

	patch := e.do(t, http.MethodPatch, base+"?type=selectable", `{"data":[{"id":1,"selectable":true},{"id":2}]}`)
	var upd map[string]int
	_ = json.NewDecoder(patch.Body).Decode(&upd)
	if patch.StatusCode != http.StatusOK || upd["updated"] != 2 {
		t.Errorf("patch: status %d %v", patch.StatusCode, upd)
	}
	if r := e.do(t, http.MethodPatch, base+"?type=colour", `{"data":[]}`); r.StatusCode != http.StatusBadRequest {
		t.Errorf("bad type: status %d", r.StatusCode)
	}
	if r := e.do(t, http.MethodGet, "/api/projects/1/files/1/meta-tables/4", ""); r.StatusCode != http.StatusNotFound {
		t.Errorf("unknown meta table: status %d", r.StatusCode)
	}
}

func TestDataframe(t *testing.T) {
	g := reconcile.Grid{{"Value", "Value", ""}, {"1", "2", "3"}}
	got := dataframe(g)
	want := []map[string]string{{"Value": "1", "Value_1": "2", "2": "3"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dataframe = %v", got)
	}
	if g[0][1] != "Value" {
		t.Error("input grid modified")
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("x: %w", ocr.ErrTransient), http.StatusBadGateway},
		{ocr.ErrInvalidCredentials, http.StatusBadGateway},
		{&reconcile.StructuralError{}, http.StatusUnprocessableEntity},
		{&reconcile.StructuralError{Err: reconcile.ErrCellOverlap}, http.StatusUnprocessableEntity},
		{&source.NoRasterError{Pages: []int{1}, Total: 1}, http.StatusBadRequest},
		{&region.BoundsError{Labels: []string{"a"}}, http.StatusBadRequest},
		{region.ErrTooManyRegions, http.StatusBadRequest},
		{source.ErrUnsupported, http.StatusBadRequest},
		{config.ErrUnknownProfile, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
