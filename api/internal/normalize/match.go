package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// fold приводит текст заголовка к виду для сравнения: NFC + case folding,
// переводы строк схлопываются в пробел (OCR рвёт заголовки на строки).
func fold(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}

// Contains reports whether header contains keyword, ignoring case.
func Contains(header, keyword string) bool {
	k := fold(keyword)
	if k == "" {
		return false
	}
	return strings.Contains(fold(header), k)
}

func containsAny(header string, keywords []string) bool {
	for _, k := range keywords {
		if Contains(header, k) {
			return true
		}
	}
	return false
}

// FindColumn returns the first header index containing any keyword, in keyword order.
func FindColumn(header []string, keywords ...string) int {
	for _, k := range keywords {
		for i, h := range header {
			if Contains(h, k) {
				return i
			}
		}
	}
	return -1
}
