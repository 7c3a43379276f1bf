package tiling

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"

	"drawing-ocr/api/internal/geometry"
	"drawing-ocr/api/internal/logger"
)

var Logger = logger.GetLogger("tiling")

var (
	ErrInvalidPolicy = errors.New("tiling: invalid policy")
	ErrEmptyImage    = errors.New("tiling: empty image")
)

// Axis selects the directions along which a page is cut.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisBoth
)

func (a Axis) String() string {
	switch a {
	case AxisY:
		return "y"
	case AxisBoth:
		return "both"
	default:
		return "x"
	}
}

func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "both", "xy":
		return AxisBoth, nil
	}
	return AxisX, fmt.Errorf("%w: unknown axis %q", ErrInvalidPolicy, s)
}

func (a *Axis) UnmarshalText(b []byte) error {
	v, err := ParseAxis(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a Axis) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Policy описывает, как резать страницу.
// Margin: высота нижней полосы (штамп/подпись), которая в тайлы не попадает.
type Policy struct {
	MaxTileDim int  `yaml:"max_tile_dim" json:"max_tile_dim"`
	Axes       Axis `yaml:"axes" json:"axes"`
	Margin     int  `yaml:"margin" json:"margin"`
}

// Tile is one piece of a page plus the offset of its top-left corner.
type Tile struct {
	Index   int
	Col     int
	Row     int
	OffsetX int
	OffsetY int
	Width   int
	Height  int
	Data    []byte // PNG
}

func (t Tile) Bounds() geometry.Box {
	return geometry.Box{X0: t.OffsetX, Y0: t.OffsetY, X1: t.OffsetX + t.Width, Y1: t.OffsetY + t.Height}
}

// Rebase maps a box reported in this tile's local frame into page coordinates.
func (t Tile) Rebase(local geometry.Box) geometry.Box {
	return geometry.Rebase(local, t.OffsetX, t.OffsetY)
}

func (p Policy) validate(w, h int) error {
	if w <= 0 || h <= 0 {
		return ErrEmptyImage
	}
	if p.MaxTileDim <= 0 {
		return fmt.Errorf("%w: max tile dim %d", ErrInvalidPolicy, p.MaxTileDim)
	}
	if p.Margin < 0 || p.Margin >= h {
		return fmt.Errorf("%w: margin %d for height %d", ErrInvalidPolicy, p.Margin, h)
	}
	return nil
}

// Plan lays out tiles over [0,w) x [0,h-Margin) without image data.
// Tiles are ordered row-major; the last tile on a cut axis is clipped.
func (p Policy) Plan(w, h int) ([]Tile, error) {
	if err := p.validate(w, h); err != nil {
		return nil, err
	}
	contentH := h - p.Margin

	xs := []span{{0, w}}
	ys := []span{{0, contentH}}
	if p.Axes == AxisX || p.Axes == AxisBoth {
		xs = spans(w, p.MaxTileDim)
	}
	if p.Axes == AxisY || p.Axes == AxisBoth {
		ys = spans(contentH, p.MaxTileDim)
	}

	tiles := make([]Tile, 0, len(xs)*len(ys))
	for j, y := range ys {
		for i, x := range xs {
			tiles = append(tiles, Tile{
				Index:   len(tiles),
				Col:     i,
				Row:     j,
				OffsetX: x.start,
				OffsetY: y.start,
				Width:   x.size,
				Height:  y.size,
			})
		}
	}
	Logger.Debug("planned tiles", "width", w, "height", h, "axes", p.Axes.String(), "tiles", len(tiles))
	return tiles, nil
}

type span struct{ start, size int }

func spans(total, step int) []span {
	out := make([]span, 0, (total+step-1)/step)
	for s := 0; s < total; s += step {
		out = append(out, span{s, min(step, total-s)})
	}
	return out
}

// Split crops img according to the plan and PNG-encodes every tile.
func Split(img image.Image, p Policy) ([]Tile, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	tiles, err := p.Plan(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	for i := range tiles {
		r := tiles[i].Bounds().Rect().Add(b.Min)
		data, err := EncodePNG(Crop(img, r))
		if err != nil {
			return nil, fmt.Errorf("tile %d: %w", i, err)
		}
		tiles[i].Data = data
	}
	return tiles, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the r-part of img with its origin moved to (0,0).
func Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if si, ok := img.(subImager); ok && r.Min == (image.Point{}) {
		return si.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
