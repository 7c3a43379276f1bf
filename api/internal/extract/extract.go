// Package extract runs a page through the whole chain: tiling, concurrent
// OCR, rebasing, fragment reconciliation and normalization. The region path
// (targeted re-scan of user rectangles) lives in regions.go.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"time"

	"golang.org/x/sync/errgroup"

	"drawing-ocr/api/internal/config"
	"drawing-ocr/api/internal/geometry"
	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/normalize"
	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/reconcile"
	"drawing-ocr/api/internal/tiling"
)

var Logger = logger.GetLogger("extract")

const DefaultConcurrency = 4

// Table is one normalized table in page coordinates.
type Table struct {
	Box     geometry.Box      `json:"polygon"`
	Merged  bool              `json:"merged"`
	Axis    reconcile.Axis    `json:"axis,omitempty"`
	Sources []int             `json:"sources"`
	Data    normalize.Records `json:"data"`
}

type Result struct {
	DocID   string     `json:"doc_id"`
	Profile string     `json:"profile"`
	Engine  string     `json:"engine"`
	Width   int        `json:"width"`
	Height  int        `json:"height"`
	Tiles   int        `json:"tiles"`
	Words   []ocr.Word `json:"words,omitempty"`
	Tables  []Table    `json:"tables"`
}

type Pipeline struct {
	// Concurrency caps in-flight OCR calls per document.
	Concurrency int
	// PartTimeout bounds a single OCR call; zero means only ctx applies.
	PartTimeout time.Duration
}

func New(concurrency int, partTimeout time.Duration) *Pipeline {
	return &Pipeline{Concurrency: concurrency, PartTimeout: partTimeout}
}

// DocID derives a stable document identifier from its bytes.
func DocID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Process extracts normalized tables from one page.
//
// Any OCR failure aborts the whole document; nothing is reconciled from a
// partial tile set. Fragments that break their declared size are dropped and
// reported via an error wrapping reconcile.ErrCellOutOfBounds, returned
// together with the remaining tables.
func (p *Pipeline) Process(ctx context.Context, docID string, img image.Image, prof config.Profile, eng ocr.Engine) (*Result, error) {
	rules, err := prof.Normalize.Build()
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", prof.Name, err)
	}
	tiles, err := tiling.Split(img, prof.Tiling)
	if err != nil {
		return nil, err
	}
	parts := make([][]byte, len(tiles))
	for i, t := range tiles {
		parts[i] = t.Data
	}

	start := time.Now()
	analyses, err := p.analyzeAll(ctx, eng, parts)
	if err != nil {
		Logger.Error("ocr failed", "doc", docID, "engine", eng.Name(), "tiles", len(tiles), "err", err)
		return nil, err
	}
	Logger.Info("ocr done", "doc", docID, "engine", eng.Name(), "tiles", len(tiles), "took", time.Since(start).Round(time.Millisecond))

	b := img.Bounds()
	res := &Result{
		DocID:   docID,
		Profile: prof.Name,
		Engine:  eng.Name(),
		Width:   b.Dx(),
		Height:  b.Dy(),
		Tiles:   len(tiles),
		Tables:  []Table{},
	}

	// fan-in по индексу тайла: ответ всегда сдвигается своим смещением
	var frags []ocr.Table
	for i, a := range analyses {
		g := a.Rebase(tiles[i].OffsetX, tiles[i].OffsetY)
		res.Words = append(res.Words, g.Words...)
		frags = append(frags, g.Tables...)
	}

	tables, rerr := prof.Reconciler().Reconcile(frags)
	for _, t := range tables {
		recs := rules.Run(normalize.Records(t.Grid))
		if !normalize.Keep(recs) {
			continue
		}
		res.Tables = append(res.Tables, Table{
			Box:     t.Box,
			Merged:  t.Merged,
			Axis:    t.Axis,
			Sources: t.Sources,
			Data:    recs,
		})
	}
	if rerr != nil {
		Logger.Warn("fragments rejected", "doc", docID, "err", rerr)
	}
	Logger.Debug("processed", "doc", docID, "fragments", len(frags), "tables", len(res.Tables))
	return res, rerr
}

// analyzeAll sends every part to eng with bounded concurrency. The first
// failure cancels the rest; results keep the order of parts.
func (p *Pipeline) analyzeAll(ctx context.Context, eng ocr.Engine, parts [][]byte) ([]ocr.Analysis, error) {
	out := make([]ocr.Analysis, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit())
	for i, data := range parts {
		g.Go(func() error {
			actx := gctx
			if p.PartTimeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(gctx, p.PartTimeout)
				defer cancel()
			}
			a, err := eng.Analyze(actx, data)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ocr.ErrTransient) {
					err = fmt.Errorf("%w: %w", ocr.ErrTransient, err)
				}
				return fmt.Errorf("%s: part %d: %w", eng.Name(), i, err)
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) limit() int {
	if p == nil || p.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return p.Concurrency
}
