package region

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"

	"drawing-ocr/api/internal/geometry"
	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/tiling"
)

var Logger = logger.GetLogger("region")

// MaxBatch is the largest number of regions accepted in one request.
const MaxBatch = 10

var (
	ErrTooManyRegions = fmt.Errorf("region: maximum %d regions are allowed", MaxBatch)
	ErrUnknownScale   = errors.New("region: unknown scale")
	ErrEmptyBatch     = errors.New("region: no regions")
)

// Region: прямоугольник, нарисованный пользователем на превью.
type Region struct {
	Label string `json:"label"`
	XMin  int    `json:"x_min"`
	XMax  int    `json:"x_max"`
	YMin  int    `json:"y_min"`
	YMax  int    `json:"y_max"`
}

func (r Region) Box() geometry.Box {
	return geometry.Box{X0: r.XMin, Y0: r.YMin, X1: r.XMax, Y1: r.YMax}
}

// Scale is the preview size a region was drawn on. The factor is kept as a
// fraction so rescaling is exact: 0.4 is 2/5.
type Scale struct {
	Name string
	num  int
	den  int
}

var (
	Original = Scale{"original", 1, 1}
	Medium   = Scale{"medium", 2, 5}
	Small    = Scale{"small", 1, 10}
)

func ParseScale(s string) (Scale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "original":
		return Original, nil
	case "medium":
		return Medium, nil
	case "small":
		return Small, nil
	}
	return Scale{}, fmt.Errorf("%w %q", ErrUnknownScale, s)
}

func (s Scale) Factor() float64 { return float64(s.num) / float64(s.den) }

// Up maps a preview coordinate to the original image: ceil(v / factor).
func (s Scale) Up(v int) int {
	n := v * s.den
	q := n / s.num
	if n%s.num != 0 && n > 0 {
		q++
	}
	return q
}

// Down maps an original size to the preview size: floor(v * factor).
func (s Scale) Down(v int) int {
	return v * s.num / s.den
}

// Rescale converts a region drawn at scale s to original coordinates.
func Rescale(r Region, s Scale) Region {
	return Region{
		Label: r.Label,
		XMin:  s.Up(r.XMin),
		XMax:  s.Up(r.XMax),
		YMin:  s.Up(r.YMin),
		YMax:  s.Up(r.YMax),
	}
}

func (r Region) inside(w, h int) bool {
	return r.XMin >= 0 && r.XMin < r.XMax && r.XMax < w &&
		r.YMin >= 0 && r.YMin < r.YMax && r.YMax < h
}

// BoundsError lists every region of a batch that does not fit the image.
type BoundsError struct {
	Labels []string
}

func (e *BoundsError) Error() string {
	return "One or more Regions out of bounds: " + strings.Join(e.Labels, ", ") + "."
}

// ValidateBatch rescales the batch to original resolution and checks it
// against a w x h image. Any failure rejects the whole batch.
func ValidateBatch(regions []Region, s Scale, w, h int) ([]Region, error) {
	if len(regions) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(regions) > MaxBatch {
		return nil, ErrTooManyRegions
	}
	out := make([]Region, 0, len(regions))
	var bad []string
	for _, r := range regions {
		up := Rescale(r, s)
		if !up.inside(w, h) {
			bad = append(bad, r.Label)
			continue
		}
		out = append(out, up)
	}
	if len(bad) > 0 {
		Logger.Warn("region batch rejected", "scale", s.Name, "out_of_bounds", len(bad))
		return nil, &BoundsError{Labels: bad}
	}
	return out, nil
}

// Crop cuts each region from img and, when intensity != 1, resamples it to
// floor(size*intensity). Results are PNG-encoded in input order.
func Crop(img image.Image, regions []Region, intensity float64) ([][]byte, error) {
	if len(regions) == 0 {
		return nil, ErrEmptyBatch
	}
	if intensity <= 0 {
		intensity = 1
	}
	out := make([][]byte, 0, len(regions))
	for _, r := range regions {
		sub := tiling.Crop(img, r.Box().Rect().Add(img.Bounds().Min))
		if intensity != 1 {
			b := sub.Bounds()
			sub = Resize(sub, int(float64(b.Dx())*intensity), int(float64(b.Dy())*intensity))
		}
		data, err := tiling.EncodePNG(sub)
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", r.Label, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// Resize resamples src to w x h with Catmull-Rom.
func Resize(src image.Image, w, h int) image.Image {
	w, h = max(w, 1), max(h, 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// Preview returns img downscaled to s; Original returns img itself.
func Preview(img image.Image, s Scale) image.Image {
	if s == Original {
		return img
	}
	b := img.Bounds()
	return Resize(img, s.Down(b.Dx()), s.Down(b.Dy()))
}
