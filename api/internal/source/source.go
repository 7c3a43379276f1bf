package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/util"
)

var Logger = logger.GetLogger("source")

var (
	ErrUnsupported = errors.New("source: unsupported document format")
	ErrNoPages     = errors.New("source: document has no raster pages")
	ErrDecode      = errors.New("source: cannot decode document")
)

// NoRasterError reports PDF pages without an embedded scan. Vector drawings
// are not rasterized: export such sheets as PNG/TIFF or print them to a
// scanned PDF.
type NoRasterError struct {
	Pages []int
	Total int
}

func (e *NoRasterError) Error() string {
	return fmt.Sprintf("source: pdf pages %v of %d have no scanned image (vector drawing?); upload the sheet as PNG/TIFF or a scanned PDF", e.Pages, e.Total)
}

func (e *NoRasterError) Unwrap() error { return ErrNoPages }

// Page is one raster of an uploaded document, numbered from 1.
type Page struct {
	Number int
	Image  image.Image
}

func (p Page) Size() (int, int) {
	b := p.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Pages decodes an upload into rasters. Images give one page; a scanned PDF
// gives the largest embedded image of every page. Pages without an image
// are skipped; if none has one the error is a *NoRasterError.
func Pages(data []byte) ([]Page, util.Kind, error) {
	kind := util.SniffKind(data)
	switch kind {
	case util.KindPNG, util.KindJPEG, util.KindTIFF, util.KindBMP:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, kind, fmt.Errorf("%w: %s: %w", ErrDecode, kind, err)
		}
		return []Page{{Number: 1, Image: img}}, kind, nil
	case util.KindPDF:
		pages, err := pdfPages(bytes.NewReader(data))
		return pages, kind, err
	}
	return nil, kind, ErrUnsupported
}

// First returns the first page of a document.
func First(data []byte) (Page, error) {
	pages, _, err := Pages(data)
	if err != nil {
		return Page{}, err
	}
	return pages[0], nil
}

func pdfPages(rs io.ReadSeeker) (pages []Page, err error) {
	// pdfcpu паникует на битых файлах
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: pdf: %v", ErrDecode, r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	best := map[int]image.Image{}
	digest := func(img model.Image, _ bool, _ int) error {
		if img.Thumb || img.IsImgMask {
			return nil
		}
		decoded, _, derr := image.Decode(img)
		if derr != nil {
			Logger.Debug("skip pdf image", "page", img.PageNr, "obj", img.ObjNr, "type", img.FileType, "err", derr)
			return nil
		}
		if cur, ok := best[img.PageNr]; ok && area(cur) >= area(decoded) {
			return nil
		}
		best[img.PageNr] = decoded
		return nil
	}
	if err := api.ExtractImages(rs, nil, digest, conf); err != nil {
		return nil, fmt.Errorf("%w: pdf: %w", ErrDecode, err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	total, err := api.PageCount(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf: %w", ErrDecode, err)
	}
	var vector []int
	for n := 1; n <= total; n++ {
		if _, ok := best[n]; !ok {
			vector = append(vector, n)
		}
	}
	if len(best) == 0 {
		return nil, &NoRasterError{Pages: vector, Total: total}
	}
	if len(vector) > 0 {
		Logger.Warn("pdf pages without raster skipped", "pages", vector, "total", total)
	}

	nums := make([]int, 0, len(best))
	for n := range best {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	pages = make([]Page, 0, len(nums))
	for _, n := range nums {
		pages = append(pages, Page{Number: n, Image: best[n]})
	}
	Logger.Info("pdf rasters extracted", "pages", len(pages))
	return pages, nil
}

func area(img image.Image) int {
	b := img.Bounds()
	return b.Dx() * b.Dy()
}
