package extract

import (
	"context"
	"errors"
	"image"

	"drawing-ocr/api/internal/geometry"
	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/reconcile"
	"drawing-ocr/api/internal/region"
)

// RegionResult holds the raw table fragments found in one region, with boxes
// in page coordinates. Regions are analyzed whole, nothing is reconciled.
type RegionResult struct {
	Region region.Region `json:"region"`
	Tables []ocr.Table   `json:"tables"`
}

// Regions validates the batch against img (regions are given at scale s),
// crops each region at original resolution resampled by intensity and runs
// OCR on all crops. An out-of-bounds region rejects the batch before any
// OCR call.
func (p *Pipeline) Regions(ctx context.Context, img image.Image, regions []region.Region, s region.Scale, intensity float64, eng ocr.Engine) ([]RegionResult, error) {
	b := img.Bounds()
	orig, err := region.ValidateBatch(regions, s, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	return p.Scan(ctx, img, orig, intensity, eng)
}

// Scan is Regions for a batch already validated at original resolution,
// e.g. regions loaded from the store. Tables whose cells break their declared
// size are left out and reported as *reconcile.StructuralError carrying the
// region label; the rest is returned alongside the error.
func (p *Pipeline) Scan(ctx context.Context, img image.Image, regions []region.Region, intensity float64, eng ocr.Engine) ([]RegionResult, error) {
	if intensity <= 0 {
		intensity = 1
	}
	crops, err := region.Crop(img, regions, intensity)
	if err != nil {
		return nil, err
	}
	analyses, err := p.analyzeAll(ctx, eng, crops)
	if err != nil {
		Logger.Error("region ocr failed", "engine", eng.Name(), "regions", len(regions), "err", err)
		return nil, err
	}

	out := make([]RegionResult, len(regions))
	var errs []error
	for i, a := range analyses {
		r := regions[i]
		tables := make([]ocr.Table, 0, len(a.Tables))
		for j, t := range a.Tables {
			if _, err := reconcile.ToGrid(t); err != nil {
				var se *reconcile.StructuralError
				if errors.As(err, &se) {
					se.Table, se.Region = j, r.Label
				}
				errs = append(errs, err)
				continue
			}
			t.Box = geometry.Rebase(unscale(t.Box, intensity), r.XMin, r.YMin)
			tables = append(tables, t)
		}
		out[i] = RegionResult{Region: r, Tables: tables}
	}
	if len(errs) > 0 {
		Logger.Warn("region tables rejected", "engine", eng.Name(), "rejected", len(errs))
		return out, errors.Join(errs...)
	}
	Logger.Debug("regions scanned", "regions", len(regions), "engine", eng.Name())
	return out, nil
}

// unscale maps a box from a resampled crop back to crop pixels.
func unscale(b geometry.Box, intensity float64) geometry.Box {
	if intensity == 1 {
		return b
	}
	f := func(v int) int { return int(float64(v) / intensity) }
	return geometry.Box{X0: f(b.X0), Y0: f(b.Y0), X1: f(b.X1), Y1: f(b.Y1)}
}
