package yandex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"drawing-ocr/api/internal/geometry"
	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/util"
)

var Logger = logger.GetLogger("ocr/yandex")

const recognizeURL = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"

// Engine: Yandex Vision OCR, модель "table".
type Engine struct {
	URL      string
	Langs    []string
	iamc     *IamClient
	folderID string
	httpc    *http.Client
}

func New(oauth2Token, folderID string) *Engine {
	return &Engine{
		URL:      recognizeURL,
		Langs:    []string{"ru", "en", "de"},
		iamc:     NewIamClient(oauth2Token),
		folderID: folderID,
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "yandex" }

type request struct {
	Content       string   `json:"content"`
	MimeType      string   `json:"mimeType,omitempty"`      // "JPEG" | "PNG" | "PDF"
	LanguageCodes []string `json:"languageCodes,omitempty"` // ["ru","en"]
	Model         string   `json:"model,omitempty"`
}

// int64 в proto-JSON приходят строками
type num int

func (n *num) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("yandex: bad number %s", b)
	}
	*n = num(v)
	return nil
}

type polygon struct {
	Vertices []struct {
		X num `json:"x"`
		Y num `json:"y"`
	} `json:"vertices"`
}

func (p polygon) box() (geometry.Box, error) {
	pts := make([]image.Point, len(p.Vertices))
	for i, v := range p.Vertices {
		pts[i] = image.Pt(int(v.X), int(v.Y))
	}
	return geometry.FromPoints(pts)
}

type textAnnotation struct {
	Width  num `json:"width"`
	Height num `json:"height"`
	Blocks []struct {
		Lines []struct {
			Words []struct {
				BoundingBox polygon `json:"boundingBox"`
				Text        string  `json:"text"`
			} `json:"words"`
		} `json:"lines"`
	} `json:"blocks"`
	Tables []struct {
		BoundingBox polygon `json:"boundingBox"`
		RowCount    num     `json:"rowCount"`
		ColumnCount num     `json:"columnCount"`
		Cells       []struct {
			RowIndex    num    `json:"rowIndex"`
			ColumnIndex num    `json:"columnIndex"`
			ColumnSpan  num    `json:"columnSpan"`
			RowSpan     num    `json:"rowSpan"`
			Text        string `json:"text"`
		} `json:"cells"`
	} `json:"tables"`
}

type response struct {
	Result *struct {
		TextAnnotation *textAnnotation `json:"textAnnotation,omitempty"`
	} `json:"result,omitempty"`
}

func (r *response) GetTextAnnotation() *textAnnotation {
	if r == nil || r.Result == nil {
		return nil
	}
	return r.Result.TextAnnotation
}

func (e *Engine) Analyze(ctx context.Context, image []byte) (ocr.Analysis, error) {
	payload, _ := json.Marshal(request{
		Content:       base64.StdEncoding.EncodeToString(image),
		MimeType:      util.SniffMimeForOCR(image),
		LanguageCodes: e.Langs,
		Model:         "table",
	})

	resp, err := e.do(ctx, payload)
	if err != nil {
		return ocr.Analysis{}, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// один ретрай со свежим IAM-токеном
		resp.Body.Close()
		e.iamc.Invalidate()
		if resp, err = e.do(ctx, payload); err != nil {
			return ocr.Analysis{}, err
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return ocr.Analysis{}, ocr.StatusError("yandex ocr", resp.StatusCode, string(x))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ocr.Analysis{}, fmt.Errorf("yandex ocr: decode: %w", err)
	}
	ta := out.GetTextAnnotation()
	if ta == nil {
		return ocr.Analysis{}, nil
	}
	return convert(ta)
}

func (e *Engine) do(ctx context.Context, payload []byte) (*http.Response, error) {
	iamToken, err := e.iamc.Token(ctx)
	if err != nil {
		return nil, err
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+iamToken)
	req.Header.Set("x-folder-id", e.folderID)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yandex ocr: %w: %w", ocr.ErrTransient, err)
	}
	return resp, nil
}

func convert(ta *textAnnotation) (ocr.Analysis, error) {
	out := ocr.Analysis{Width: int(ta.Width), Height: int(ta.Height)}
	for _, b := range ta.Blocks {
		for _, l := range b.Lines {
			for _, w := range l.Words {
				box, err := w.BoundingBox.box()
				if err != nil {
					continue
				}
				out.Words = append(out.Words, ocr.Word{Content: w.Text, Box: box})
			}
		}
	}
	for i, t := range ta.Tables {
		box, err := t.BoundingBox.box()
		if err != nil {
			return ocr.Analysis{}, fmt.Errorf("yandex ocr: table %d: %w", i, err)
		}
		tbl := ocr.Table{RowCount: int(t.RowCount), ColCount: int(t.ColumnCount), Box: box}
		for _, c := range t.Cells {
			tbl.Cells = append(tbl.Cells, ocr.Cell{
				RowIndex: int(c.RowIndex),
				ColIndex: int(c.ColumnIndex),
				RowSpan:  int(c.RowSpan),
				ColSpan:  int(c.ColumnSpan),
				Content:  strings.TrimSpace(c.Text),
				Kind:     ocr.KindContent,
			})
		}
		out.Tables = append(out.Tables, tbl)
	}
	Logger.Debug("recognized", "words", len(out.Words), "tables", len(out.Tables))
	return out, nil
}
