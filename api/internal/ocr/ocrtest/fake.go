// Package ocrtest provides an in-memory ocr.Engine for tests.
package ocrtest

import (
	"bytes"
	"context"
	"image"
	_ "image/png"
	"sync"

	"drawing-ocr/api/internal/ocr"
)

// Fake decodes every image it gets and hands it to Respond.
// With Respond nil it returns an empty analysis sized to the image.
type Fake struct {
	Label   string
	Respond func(img image.Image) (ocr.Analysis, error)

	mu    sync.Mutex
	sizes []image.Point
}

func (f *Fake) Name() string {
	if f.Label == "" {
		return "fake"
	}
	return f.Label
}

func (f *Fake) Analyze(ctx context.Context, data []byte) (ocr.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Analysis{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ocr.Analysis{}, err
	}
	b := img.Bounds()

	f.mu.Lock()
	f.sizes = append(f.sizes, image.Pt(b.Dx(), b.Dy()))
	f.mu.Unlock()

	if f.Respond == nil {
		return ocr.Analysis{Width: b.Dx(), Height: b.Dy()}, nil
	}
	return f.Respond(img)
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sizes)
}

func (f *Fake) Sizes() []image.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]image.Point(nil), f.sizes...)
}
