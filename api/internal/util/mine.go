package util

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"
)

// Kind: формат загруженного документа по сигнатуре.
type Kind string

const (
	KindUnknown Kind = ""
	KindPDF     Kind = "pdf"
	KindPNG     Kind = "png"
	KindJPEG    Kind = "jpeg"
	KindTIFF    Kind = "tiff"
	KindBMP     Kind = "bmp"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func SniffKind(b []byte) Kind {
	switch {
	case len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8:
		return KindJPEG
	case bytes.HasPrefix(b, pngMagic):
		return KindPNG
	case bytes.HasPrefix(b, []byte("%PDF-")):
		return KindPDF
	case bytes.HasPrefix(b, []byte("II*\x00")), bytes.HasPrefix(b, []byte("MM\x00*")):
		return KindTIFF
	case bytes.HasPrefix(b, []byte("BM")):
		return KindBMP
	}
	return KindUnknown
}

// SniffMimeForOCR returns the upper-case format name OCR REST APIs expect.
func SniffMimeForOCR(b []byte) string {
	switch SniffKind(b) {
	case KindJPEG:
		return "JPEG"
	case KindPNG:
		return "PNG"
	case KindPDF:
		return "PDF"
	}
	return ""
}

func SniffMimeHTTP(b []byte) string {
	switch SniffKind(b) {
	case KindJPEG:
		return "image/jpeg"
	case KindPNG:
		return "image/png"
	case KindPDF:
		return "application/pdf"
	case KindTIFF:
		return "image/tiff"
	case KindBMP:
		return "image/bmp"
	}
	return "application/octet-stream"
}

// DecodeBase64MaybeDataURL декодирует base64. Если это data:URI, вернёт MIME из префикса.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		// data:<mime>;base64,<payload>
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	}
	// стандартная base64, затем URL-safe
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, hintMIME, nil
	}
	if b2, err2 := base64.URLEncoding.DecodeString(s); err2 == nil {
		return b2, hintMIME, nil
	}
	return nil, "", err
}

// PickMIME берём явный MIME, затем из data:URI, иначе детектим по байтам.
func PickMIME(explicit, hint string, data []byte) string {
	if exp := strings.TrimSpace(explicit); exp != "" {
		return exp
	}
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	if k := SniffKind(data); k != KindUnknown {
		return SniffMimeHTTP(data)
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "image/png"
}
