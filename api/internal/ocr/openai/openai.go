package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/ocr/llmlayout"
	"drawing-ocr/api/internal/util"
)

var Logger = logger.GetLogger("ocr/openai")

const chatURL = "https://api.openai.com/v1/chat/completions"

// Engine asks a vision chat model for the llmlayout JSON.
type Engine struct {
	URL    string
	APIKey string
	Model  string
	httpc  *http.Client
}

func New(key, model string) *Engine {
	return &Engine{
		URL:    chatURL,
		APIKey: strings.TrimSpace(key),
		Model:  strings.TrimSpace(model),
		httpc:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (e *Engine) Name() string { return "gpt" }

func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Analyze(ctx context.Context, img []byte) (ocr.Analysis, error) {
	if e.APIKey == "" {
		return ocr.Analysis{}, fmt.Errorf("OPENAI_API_KEY is empty: %w", ocr.ErrInvalidCredentials)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return ocr.Analysis{}, fmt.Errorf("openai: decode image: %w", err)
	}
	dataURL := "data:" + util.SniffMimeHTTP(img) + ";base64," + base64.StdEncoding.EncodeToString(img)

	body := map[string]any{
		"model": e.Model,
		"messages": []any{
			map[string]any{"role": "system", "content": llmlayout.SystemPrompt},
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": llmlayout.UserPrompt(cfg.Width, cfg.Height)},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": dataURL, "detail": "high"}},
				},
			},
		},
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
	}
	payload, _ := json.Marshal(body)

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return ocr.Analysis{}, fmt.Errorf("openai: %w: %w", ocr.ErrTransient, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return ocr.Analysis{}, ocr.StatusError("openai", resp.StatusCode, string(x))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return ocr.Analysis{}, fmt.Errorf("openai: decode: %w", err)
	}
	if len(raw.Choices) == 0 {
		return ocr.Analysis{}, fmt.Errorf("openai: empty response")
	}
	a, err := llmlayout.Parse(raw.Choices[0].Message.Content)
	if err != nil {
		return ocr.Analysis{}, fmt.Errorf("openai: %w", err)
	}
	a.Width, a.Height = cfg.Width, cfg.Height
	Logger.Debug("layout parsed", "model", e.Model, "words", len(a.Words), "tables", len(a.Tables))
	return a, nil
}
