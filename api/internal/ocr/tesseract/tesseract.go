//go:build tesseract

// Package tesseract runs the local Tesseract engine through gosseract.
//
// Tesseract has no table model, so Analyze returns words only. It is useful
// for region scans of title blocks and as an offline fallback.
//
// Build with:
//
//	go build -tags tesseract
//
// libtesseract and leptonica must be installed (apt-get install libtesseract-dev).
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"drawing-ocr/api/internal/geometry"
	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/ocr"
)

var Logger = logger.GetLogger("ocr/tesseract")

const Enabled = true

type Engine struct {
	Langs         []string
	clientFactory func() *gosseract.Client
}

func New(langs ...string) *Engine {
	return &Engine{Langs: langs, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Analyze(ctx context.Context, img []byte) (ocr.Analysis, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return ocr.Analysis{}, fmt.Errorf("tesseract: decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return ocr.Analysis{}, err
	}

	c := e.clientFactory()
	defer c.Close()
	if len(e.Langs) > 0 {
		if err := c.SetLanguage(e.Langs...); err != nil {
			return ocr.Analysis{}, fmt.Errorf("tesseract: set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(img); err != nil {
		return ocr.Analysis{}, fmt.Errorf("tesseract: set image: %w", err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return ocr.Analysis{}, fmt.Errorf("tesseract: recognize: %w", err)
	}

	out := ocr.Analysis{Width: cfg.Width, Height: cfg.Height}
	for _, b := range boxes {
		w := strings.TrimSpace(b.Word)
		if w == "" {
			continue
		}
		out.Words = append(out.Words, ocr.Word{
			Content:    w,
			Box:        geometry.FromRect(b.Box),
			Confidence: b.Confidence / 100,
		})
	}
	Logger.Debug("recognized", "words", len(out.Words))
	return out, nil
}
