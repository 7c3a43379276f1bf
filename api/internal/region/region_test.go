package region

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"reflect"
	"testing"
)

func TestScaleUp(t *testing.T) {
	cases := []struct {
		s    Scale
		v    int
		want int
	}{
		{Original, 123, 123},
		{Medium, 100, 250},
		{Medium, 101, 253}, // 252.5 -> 253
		{Small, 7, 70},
		{Small, 0, 0},
	}
	for _, c := range cases {
		if got := c.s.Up(c.v); got != c.want {
			t.Errorf("%s.Up(%d) = %d, want %d", c.s.Name, c.v, got, c.want)
		}
	}
}

func TestParseScale(t *testing.T) {
	for in, want := range map[string]Scale{"": Original, "MEDIUM": Medium, "small": Small} {
		got, err := ParseScale(in)
		if err != nil || got != want {
			t.Errorf("ParseScale(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseScale("huge"); !errors.Is(err, ErrUnknownScale) {
		t.Errorf("err = %v", err)
	}
}

func TestValidateBatchRejectsWholeBatch(t *testing.T) {
	const w, h = 1000, 800
	batch := []Region{
		{Label: "a", XMin: 10, XMax: 100, YMin: 10, YMax: 100},
		{Label: "b", XMin: 500, XMax: w, YMin: 10, YMax: 100},
		{Label: "c", XMin: 200, XMax: 300, YMin: 200, YMax: 300},
	}
	got, err := ValidateBatch(batch, Original, w, h)
	if got != nil {
		t.Errorf("partial batch returned: %v", got)
	}
	var be *BoundsError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *BoundsError", err)
	}
	if !reflect.DeepEqual(be.Labels, []string{"b"}) {
		t.Errorf("labels = %v", be.Labels)
	}
}

func TestValidateBatchRules(t *testing.T) {
	cases := []struct {
		name string
		r    Region
		ok   bool
	}{
		{"inside", Region{XMin: 0, XMax: 99, YMin: 0, YMax: 49}, true},
		{"x_max at width", Region{XMin: 0, XMax: 100, YMin: 0, YMax: 10}, false},
		{"y_max at height", Region{XMin: 0, XMax: 10, YMin: 0, YMax: 50}, false},
		{"negative", Region{XMin: -1, XMax: 10, YMin: 0, YMax: 10}, false},
		{"inverted", Region{XMin: 20, XMax: 10, YMin: 0, YMax: 10}, false},
		{"zero height", Region{XMin: 0, XMax: 10, YMin: 5, YMax: 5}, false},
	}
	for _, c := range cases {
		_, err := ValidateBatch([]Region{c.r}, Original, 100, 50)
		if (err == nil) != c.ok {
			t.Errorf("%s: err = %v", c.name, err)
		}
	}
}

func TestValidateBatchScalesFirst(t *testing.T) {
	// 0.4-превью: 100 -> 250, 300 -> 750
	got, err := ValidateBatch([]Region{{Label: "t", XMin: 100, XMax: 300, YMin: 100, YMax: 300}}, Medium, 1000, 1000)
	if err != nil {
		t.Fatal(err)
	}
	want := Region{Label: "t", XMin: 250, XMax: 750, YMin: 250, YMax: 750}
	if got[0] != want {
		t.Errorf("got %+v, want %+v", got[0], want)
	}

	if _, err := ValidateBatch([]Region{{XMin: 1, XMax: 500, YMin: 1, YMax: 2}}, Medium, 1000, 1000); err == nil {
		t.Error("region scaled past width accepted")
	}
}

func TestValidateBatchLimits(t *testing.T) {
	many := make([]Region, MaxBatch+1)
	for i := range many {
		many[i] = Region{XMin: 0, XMax: 1, YMin: 0, YMax: 1}
	}
	if _, err := ValidateBatch(many, Original, 10, 10); !errors.Is(err, ErrTooManyRegions) {
		t.Errorf("err = %v", err)
	}
	if _, err := ValidateBatch(nil, Original, 10, 10); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("err = %v", err)
	}
}

func TestCrop(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 100))
	regions := []Region{
		{Label: "a", XMin: 10, XMax: 50, YMin: 20, YMax: 40},
		{Label: "b", XMin: 100, XMax: 180, YMin: 0, YMax: 60},
	}
	crops, err := Crop(img, regions, 1)
	if err != nil {
		t.Fatal(err)
	}
	sizes := [][2]int{{40, 20}, {80, 60}}
	for i, data := range crops {
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			t.Fatal(err)
		}
		if got := [2]int{cfg.Width, cfg.Height}; got != sizes[i] {
			t.Errorf("crop %d size %v, want %v", i, got, sizes[i])
		}
	}

	half, err := Crop(img, regions[:1], 0.5)
	if err != nil {
		t.Fatal(err)
	}
	cfg, _ := png.DecodeConfig(bytes.NewReader(half[0]))
	if cfg.Width != 20 || cfg.Height != 10 {
		t.Errorf("resampled crop %dx%d, want 20x10", cfg.Width, cfg.Height)
	}
}

func TestPreview(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1000, 500))
	if p := Preview(img, Small).Bounds(); p.Dx() != 100 || p.Dy() != 50 {
		t.Errorf("small preview %v", p)
	}
	if p := Preview(img, Medium).Bounds(); p.Dx() != 400 || p.Dy() != 200 {
		t.Errorf("medium preview %v", p)
	}
}
