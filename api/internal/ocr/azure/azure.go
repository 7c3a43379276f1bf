package azure

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"drawing-ocr/api/internal/geometry"
	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/ocr"
)

var Logger = logger.GetLogger("ocr/azure")

const apiVersion = "2024-11-30"

// Engine calls Azure AI Document Intelligence (prebuilt-layout) over REST.
type Engine struct {
	Endpoint string
	Key      string
	Model    string
	// PollInterval is used when the service sends no Retry-After.
	PollInterval time.Duration
	httpc        *http.Client
}

func New(endpoint, key, model string) *Engine {
	if model == "" {
		model = "prebuilt-layout"
	}
	return &Engine{
		Endpoint:     strings.TrimRight(endpoint, "/"),
		Key:          key,
		Model:        model,
		PollInterval: time.Second,
		httpc:        &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "azure" }

type analyzeRequest struct {
	Base64Source string `json:"base64Source"`
}

type operation struct {
	Status string `json:"status"` // notStarted | running | succeeded | failed
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	AnalyzeResult *analyzeResult `json:"analyzeResult,omitempty"`
}

type analyzeResult struct {
	Pages []struct {
		PageNumber int     `json:"pageNumber"`
		Width      float64 `json:"width"`
		Height     float64 `json:"height"`
		Unit       string  `json:"unit"`
		Words      []struct {
			Content    string    `json:"content"`
			Polygon    []float64 `json:"polygon"`
			Confidence float64   `json:"confidence"`
		} `json:"words"`
	} `json:"pages"`
	Tables []struct {
		RowCount        int `json:"rowCount"`
		ColumnCount     int `json:"columnCount"`
		BoundingRegions []struct {
			PageNumber int       `json:"pageNumber"`
			Polygon    []float64 `json:"polygon"`
		} `json:"boundingRegions"`
		Cells []struct {
			Kind        string `json:"kind"`
			RowIndex    int    `json:"rowIndex"`
			ColumnIndex int    `json:"columnIndex"`
			RowSpan     int    `json:"rowSpan"`
			ColumnSpan  int    `json:"columnSpan"`
			Content     string `json:"content"`
		} `json:"cells"`
	} `json:"tables"`
}

func (e *Engine) Analyze(ctx context.Context, image []byte) (ocr.Analysis, error) {
	if e.Endpoint == "" || e.Key == "" {
		return ocr.Analysis{}, fmt.Errorf("azure: endpoint or key is empty: %w", ocr.ErrInvalidCredentials)
	}
	opURL, err := e.submit(ctx, image)
	if err != nil {
		return ocr.Analysis{}, err
	}
	res, err := e.poll(ctx, opURL)
	if err != nil {
		return ocr.Analysis{}, err
	}
	return convert(res)
}

func (e *Engine) submit(ctx context.Context, image []byte) (string, error) {
	payload, _ := json.Marshal(analyzeRequest{Base64Source: base64.StdEncoding.EncodeToString(image)})
	url := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s", e.Endpoint, e.Model, apiVersion)

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", e.Key)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", transport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		x, _ := io.ReadAll(resp.Body)
		return "", ocr.StatusError("azure", resp.StatusCode, string(x))
	}
	loc := resp.Header.Get("Operation-Location")
	if loc == "" {
		return "", errors.New("azure: no Operation-Location in response")
	}
	return loc, nil
}

// poll ждёт завершения операции; Retry-After от сервиса имеет приоритет.
func (e *Engine) poll(ctx context.Context, opURL string) (*analyzeResult, error) {
	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
		req.Header.Set("Ocp-Apim-Subscription-Key", e.Key)
		resp, err := e.httpc.Do(req)
		if err != nil {
			return nil, transport(err)
		}
		if resp.StatusCode != http.StatusOK {
			x, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, ocr.StatusError("azure", resp.StatusCode, string(x))
		}
		var op operation
		err = json.NewDecoder(resp.Body).Decode(&op)
		wait := retryAfter(resp.Header.Get("Retry-After"), e.PollInterval)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("azure: decode operation: %w", err)
		}

		switch strings.ToLower(op.Status) {
		case "succeeded":
			if op.AnalyzeResult == nil {
				return nil, errors.New("azure: succeeded without analyzeResult")
			}
			return op.AnalyzeResult, nil
		case "failed", "canceled":
			msg := op.Status
			if op.Error != nil {
				msg = op.Error.Code + ": " + op.Error.Message
			}
			return nil, fmt.Errorf("azure analyze %s", msg)
		}

		Logger.Debug("operation pending", "status", op.Status, "wait", wait)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("azure: %w: %w", ocr.ErrTransient, ctx.Err())
		case <-time.After(wait):
		}
	}
}

func retryAfter(h string, def time.Duration) time.Duration {
	if n, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func transport(err error) error {
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("azure: %w: %w", ocr.ErrTransient, err)
	}
	return fmt.Errorf("azure: %w", err)
}

// convert берёт только первую страницу: на вход всегда одно изображение.
func convert(res *analyzeResult) (ocr.Analysis, error) {
	var out ocr.Analysis
	if len(res.Pages) > 0 {
		p := res.Pages[0]
		out.Width, out.Height = int(p.Width), int(p.Height)
		for _, w := range p.Words {
			box, err := geometry.FromPolygon(w.Polygon)
			if err != nil {
				continue
			}
			out.Words = append(out.Words, ocr.Word{Content: w.Content, Box: box, Confidence: w.Confidence})
		}
	}
	for i, t := range res.Tables {
		if len(t.BoundingRegions) == 0 {
			return ocr.Analysis{}, fmt.Errorf("azure: table %d has no bounding region", i)
		}
		box, err := geometry.FromPolygon(t.BoundingRegions[0].Polygon)
		if err != nil {
			return ocr.Analysis{}, fmt.Errorf("azure: table %d: %w", i, err)
		}
		tbl := ocr.Table{RowCount: t.RowCount, ColCount: t.ColumnCount, Box: box}
		for _, c := range t.Cells {
			tbl.Cells = append(tbl.Cells, ocr.Cell{
				RowIndex: c.RowIndex,
				ColIndex: c.ColumnIndex,
				RowSpan:  c.RowSpan,
				ColSpan:  c.ColumnSpan,
				Content:  c.Content,
				Kind:     ocr.CellKind(c.Kind),
			})
		}
		out.Tables = append(out.Tables, tbl)
	}
	return out, nil
}
