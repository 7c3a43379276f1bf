//go:build !tesseract

package tesseract

import (
	"context"
	"errors"

	"drawing-ocr/api/internal/ocr"
)

// Enabled reports whether gosseract is compiled in.
const Enabled = false

// ErrNotEnabled is returned when the binary was built without -tags tesseract.
var ErrNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags tesseract")

type Engine struct {
	Langs []string
}

func New(langs ...string) *Engine { return &Engine{Langs: langs} }

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Analyze(context.Context, []byte) (ocr.Analysis, error) {
	return ocr.Analysis{}, ErrNotEnabled
}
