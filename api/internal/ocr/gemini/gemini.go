package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/ocr/llmlayout"
	"drawing-ocr/api/internal/util"
)

var Logger = logger.GetLogger("ocr/gemini")

type Engine struct {
	APIKey string
	Model  string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Analyze(ctx context.Context, img []byte) (ocr.Analysis, error) {
	if e.APIKey == "" {
		return ocr.Analysis{}, fmt.Errorf("GEMINI_API_KEY is empty: %w", ocr.ErrInvalidCredentials)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return ocr.Analysis{}, fmt.Errorf("gemini: decode image: %w", err)
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return ocr.Analysis{}, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	// Возвращаем строго JSON
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(llmlayout.SystemPrompt)}}

	parts := []genai.Part{
		genai.Text(llmlayout.UserPrompt(cfg.Width, cfg.Height)),
		&genai.Blob{MIMEType: util.PickMIME("", "", img), Data: img},
	}
	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return ocr.Analysis{}, classify(err)
	}
	a, err := llmlayout.Parse(firstText(resp))
	if err != nil {
		return ocr.Analysis{}, fmt.Errorf("gemini: %w", err)
	}
	a.Width, a.Height = cfg.Width, cfg.Height
	Logger.Debug("layout parsed", "model", e.Model, "words", len(a.Words), "tables", len(a.Tables))
	return a, nil
}

func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return ocr.StatusError("gemini", gerr.Code, gerr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gemini: %w: %w", ocr.ErrTransient, err)
	}
	return fmt.Errorf("gemini: %w", err)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
