package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// ColumnFilter keeps columns by header keyword, decided once from row 0.
// A Paired match keeps the column and its right neighbour; the neighbour is
// not evaluated on its own. A Single match keeps just that column.
type ColumnFilter struct {
	Paired []string `yaml:"paired"`
	Single []string `yaml:"single"`
}

func (ColumnFilter) Name() string { return "column_filter" }

func (f ColumnFilter) Apply(in Records) Records {
	if len(in) == 0 {
		return in
	}
	header := in[0]
	keep := make([]bool, len(header))
	for i := 0; i < len(header); i++ {
		switch {
		case containsAny(header[i], f.Paired):
			keep[i] = true
			if i+1 < len(header) {
				keep[i+1] = true
			}
			i++
		case containsAny(header[i], f.Single):
			keep[i] = true
		}
	}

	out := make(Records, len(in))
	for r, row := range in {
		kept := make([]string, 0, len(row))
		for c, v := range row {
			if c < len(keep) && keep[c] {
				kept = append(kept, v)
			}
		}
		out[r] = kept
	}
	return out
}

// DropSubHeader removes rows 1..Depth-1: the units line under the main header.
// Depth 2 (one sub-header row) is the weld-table convention.
type DropSubHeader struct {
	Depth int `yaml:"depth"`
}

func (DropSubHeader) Name() string { return "drop_sub_header" }

func (d DropSubHeader) Apply(in Records) Records {
	if d.Depth <= 1 || len(in) == 0 {
		return in
	}
	cut := min(d.Depth, len(in))
	out := make(Records, 0, len(in)-cut+1)
	out = append(out, in[0])
	return append(out, in[cut:]...)
}

// SplitPairedRows unzips rows carrying two identifiers (LH/RH) into two rows.
type SplitPairedRows struct {
	Keyword string `yaml:"keyword"`
}

func (SplitPairedRows) Name() string { return "split_paired_rows" }

func (s SplitPairedRows) Apply(in Records) Records {
	if len(in) == 0 {
		return in
	}
	col := FindColumn(in[0], s.Keyword)
	if col < 0 {
		return in
	}
	out := make(Records, 0, len(in))
	out = append(out, in[0])
	for i := 1; i < len(in); i++ {
		row := in[i]
		if col+1 >= len(row) || row[col] == "" || row[col+1] == "" {
			out = append(out, row)
			continue
		}
		left := append([]string(nil), row...)
		left[col+1] = ""
		right := append([]string(nil), row...)
		right[col] = ""
		// вставленная строка в out, во входе дальше идём по i
		out = append(out, left, right)
	}
	return out
}

var multiplierRe = regexp.MustCompile(`\(x[0-9]+\)`)

// StripDecoration removes a pattern (the "(x2)" multiplier by default) from
// the data rows of the column matching Keyword.
type StripDecoration struct {
	Keyword string         `yaml:"keyword"`
	Pattern *regexp.Regexp `yaml:"-"`
}

func (StripDecoration) Name() string { return "strip_decoration" }

func (s StripDecoration) Apply(in Records) Records {
	if len(in) == 0 {
		return in
	}
	col := FindColumn(in[0], s.Keyword)
	if col < 0 {
		return in
	}
	re := s.Pattern
	if re == nil {
		re = multiplierRe
	}
	out := make(Records, len(in))
	out[0] = in[0]
	for i := 1; i < len(in); i++ {
		row := in[i]
		if col < len(row) {
			row = append([]string(nil), row...)
			row[col] = strings.TrimSpace(re.ReplaceAllString(row[col], ""))
		}
		out[i] = row
	}
	return out
}

var parenNumberRe = regexp.MustCompile(`\((\d+)\)`)

// SumPairedValues adds the parenthesised numbers of a column and its right
// neighbour, stores the sum in the column and drops the neighbour from every
// row, header included. Keywords are tried in order; the first hit wins.
type SumPairedValues struct {
	Keywords []string `yaml:"keywords"`
}

func (SumPairedValues) Name() string { return "sum_paired_values" }

func (s SumPairedValues) Apply(in Records) Records {
	if len(in) == 0 {
		return in
	}
	col := FindColumn(in[0], s.Keywords...)
	if col < 0 {
		return in
	}
	out := make(Records, len(in))
	for i, row := range in {
		row = append([]string(nil), row...)
		if i > 0 && col < len(row) {
			sum := parenNumber(row[col])
			if col+1 < len(row) {
				sum += parenNumber(row[col+1])
			}
			row[col] = strconv.Itoa(sum)
		}
		if col+1 < len(row) {
			row = append(row[:col+1], row[col+2:]...)
		}
		out[i] = row
	}
	return out
}

func parenNumber(s string) int {
	m := parenNumberRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// PruneEmpty drops empty cells from each row and rows left with nothing.
// Row 0 is always kept so the caller can see an empty header.
type PruneEmpty struct{}

func (PruneEmpty) Name() string { return "prune_empty" }

func (PruneEmpty) Apply(in Records) Records {
	out := make(Records, 0, len(in))
	for i, row := range in {
		kept := make([]string, 0, len(row))
		for _, v := range row {
			if v != "" {
				kept = append(kept, v)
			}
		}
		if i > 0 && len(kept) == 0 {
			continue
		}
		out = append(out, kept)
	}
	return out
}
