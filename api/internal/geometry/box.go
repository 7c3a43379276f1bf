package geometry

import (
	"fmt"
	"image"
	"math"
)

// Box is an axis-aligned rectangle in integer pixel coordinates.
// A valid box has X0 < X1 and Y0 < Y1.
type Box struct {
	X0 int `json:"x_min"`
	Y0 int `json:"y_min"`
	X1 int `json:"x_max"`
	Y1 int `json:"y_max"`
}

var Empty = Box{}

func (b Box) IsEmpty() bool { return b.X0 >= b.X1 || b.Y0 >= b.Y1 }
func (b Box) Width() int    { return b.X1 - b.X0 }
func (b Box) Height() int   { return b.Y1 - b.Y0 }

func (b Box) Area() int {
	if b.IsEmpty() {
		return 0
	}
	return b.Width() * b.Height()
}

func (b Box) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", b.X0, b.Y0, b.X1, b.Y1)
}

// Union: наименьший прямоугольник, содержащий оба.
func (b Box) Union(o Box) Box {
	if b.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return b
	}
	return Box{min(b.X0, o.X0), min(b.Y0, o.Y0), max(b.X1, o.X1), max(b.Y1, o.Y1)}
}

// Intersect returns the overlap, or Empty when the overlap has zero width or height.
func (b Box) Intersect(o Box) Box {
	r := Box{max(b.X0, o.X0), max(b.Y0, o.Y0), min(b.X1, o.X1), min(b.Y1, o.Y1)}
	if r.IsEmpty() {
		return Empty
	}
	return r
}

// Expand grows the box by d pixels on every side.
func (b Box) Expand(d int) Box {
	return Box{b.X0 - d, b.Y0 - d, b.X1 + d, b.Y1 + d}
}

// Rebase translates a tile-local box into global coordinates.
func Rebase(local Box, offsetX, offsetY int) Box {
	return Box{
		X0: local.X0 + offsetX,
		Y0: local.Y0 + offsetY,
		X1: local.X1 + offsetX,
		Y1: local.Y1 + offsetY,
	}
}

func (b Box) Rect() image.Rectangle { return image.Rect(b.X0, b.Y0, b.X1, b.Y1) }

func FromRect(r image.Rectangle) Box { return Box{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y} }

// FromPolygon derives a box from a flat [x1,y1,x2,y2,...] vertex list by
// taking the extrema. Fractional coordinates are widened outward.
func FromPolygon(poly []float64) (Box, error) {
	if len(poly) < 4 || len(poly)%2 != 0 {
		return Empty, fmt.Errorf("polygon: want even number of coords >= 4, got %d", len(poly))
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i < len(poly); i += 2 {
		x, y := poly[i], poly[i+1]
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return Box{
		X0: int(math.Floor(minX)),
		Y0: int(math.Floor(minY)),
		X1: int(math.Ceil(maxX)),
		Y1: int(math.Ceil(maxY)),
	}, nil
}

// FromPoints is FromPolygon for vertex pairs.
func FromPoints(pts []image.Point) (Box, error) {
	flat := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		flat = append(flat, float64(p.X), float64(p.Y))
	}
	return FromPolygon(flat)
}
