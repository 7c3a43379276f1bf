package normalize

import (
	"reflect"
	"regexp"
	"testing"
)

func TestColumnFilter(t *testing.T) {
	in := Records{
		{"Naht Nr. Weld No.", "", "Sequenz", "TOTAL WELD LENGTH", "(Overlapping)", "", "Other"},
		{"LH", "RH", "x", "mm", "in", "out", "y"},
	}
	got := ColumnFilter{
		Paired: []string{"weld no", "overlapping"},
		Single: []string{"total weld length"},
	}.Apply(in)
	want := Records{
		{"Naht Nr. Weld No.", "", "TOTAL WELD LENGTH", "(Overlapping)", ""},
		{"LH", "RH", "mm", "in", "out"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v\nwant %v", got, want)
	}
}

// Сосед парной колонки сам не проверяется, даже если совпадает.
func TestColumnFilterSkipsNeighbour(t *testing.T) {
	in := Records{{"weld no", "weld no", "weld gap", "x"}}
	got := ColumnFilter{Paired: []string{"weld no"}, Single: []string{"weld gap"}}.Apply(in)
	want := Records{{"weld no", "weld no", "weld gap"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDropSubHeader(t *testing.T) {
	in := Records{{"h"}, {"units"}, {"1"}, {"2"}}
	cases := []struct {
		depth int
		want  Records
	}{
		{1, in},
		{2, Records{{"h"}, {"1"}, {"2"}}},
		{3, Records{{"h"}, {"2"}}},
		{9, Records{{"h"}}},
	}
	for _, c := range cases {
		if got := (DropSubHeader{Depth: c.depth}).Apply(in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("depth %d: got %v, want %v", c.depth, got, c.want)
		}
	}
}

func TestSplitPairedRows(t *testing.T) {
	in := Records{
		{"Weld No", "", "Len"},
		{"W03", "W04", "45"},
		{"W05", "", "43"},
		{"W07", "W08", "12"},
	}
	got := SplitPairedRows{Keyword: "weld no"}.Apply(in)
	want := Records{
		{"Weld No", "", "Len"},
		{"W03", "", "45"},
		{"", "W04", "45"},
		{"W05", "", "43"},
		{"W07", "", "12"},
		{"", "W08", "12"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v\nwant %v", got, want)
	}
	if in[1][1] != "W04" {
		t.Error("input mutated")
	}
}

func TestSplitPairedRowsCleanInputUnchanged(t *testing.T) {
	in := Records{
		{"Weld No", "", "Len"},
		{"W03", "", "45"},
		{"", "W04", "45"},
	}
	got := SplitPairedRows{Keyword: "weld no"}.Apply(in)
	if len(got) != len(in) || !reflect.DeepEqual(got, in) {
		t.Errorf("clean input changed: %v", got)
	}
}

func TestStripDecoration(t *testing.T) {
	in := Records{
		{"Total Weld Length [mm]"},
		{"45(x2)"},
		{"100"},
		{"121 (x2)"},
	}
	got := StripDecoration{Keyword: "total weld length"}.Apply(in)
	want := Records{{"Total Weld Length [mm]"}, {"45"}, {"100"}, {"121"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	custom := StripDecoration{Keyword: "total", Pattern: regexp.MustCompile(`mm$`)}.Apply(Records{{"Total"}, {"12mm"}})
	if custom[1][0] != "12" {
		t.Errorf("custom pattern: %v", custom)
	}
}

func TestSumPairedValues(t *testing.T) {
	in := Records{
		{"No", "(Overlapping)", "", "Gap"},
		{"W1", "(3)", "(4)", "1,2"},
		{"W2", "0", "(5)", "1,2"},
		{"W3", "", "", "1,2"},
	}
	got := SumPairedValues{Keywords: []string{"overlapping", "ueberlappung"}}.Apply(in)
	want := Records{
		{"No", "(Overlapping)", "Gap"},
		{"W1", "7", "1,2"},
		{"W2", "5", "1,2"},
		{"W3", "0", "1,2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v\nwant %v", got, want)
	}
}

func TestSumPairedValuesGermanFallback(t *testing.T) {
	in := Records{{"Ueberlappung", "x"}, {"(2)", "(2)"}}
	got := SumPairedValues{Keywords: []string{"overlapping", "ueberlappung"}}.Apply(in)
	want := Records{{"Ueberlappung"}, {"4"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPruneEmpty(t *testing.T) {
	in := Records{{"a", "", "b"}, {"", ""}, {"", "1"}}
	got := PruneEmpty{}.Apply(in)
	want := Records{{"a", "b"}, {"1"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWeldPipeline(t *testing.T) {
	in := Records{
		{"Naht Nr. Weld No.", "", "Sequenz Sequence", "Feld", "Gesamt Nahtlaenge [mm] Total Weld Length [mm]", "(Ueberlappung) (Overlapping)", "", "Einbrandtiefe Penetration depth", "ax. Schweiss Spalt [mm]"},
		{"LH", "RH", "", "", "", "ext: Einlauf", "ext: Auslauf", "", ""},
		{"W03", "WO4", "", "D13", "45(x2)", "(5)", "(5)", "≥ 0,35", "1,2"},
		{"W11", "W12", "", "D2", "118(x2)", "0", "0", "≥ 0,3", "1,2"},
	}
	got := Weld().Run(in)
	want := Records{
		{"Naht Nr. Weld No.", "Gesamt Nahtlaenge [mm] Total Weld Length [mm]", "(Ueberlappung) (Overlapping)", "ax. Schweiss Spalt [mm]"},
		{"W03", "45", "10", "1,2"},
		{"WO4", "45", "10", "1,2"},
		{"W11", "118", "0", "1,2"},
		{"W12", "118", "0", "1,2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got\n%v\nwant\n%v", got, want)
	}
	if in[2][4] != "45(x2)" {
		t.Error("pipeline mutated its input")
	}
	if !Keep(got) {
		t.Error("weld table should be kept")
	}
}

func TestKeepDropsTablesWithoutHeader(t *testing.T) {
	got := Weld().Run(Records{{"Datum", "Name"}, {"units"}, {"20.08.21", "MUTHU"}})
	if Keep(got) {
		t.Errorf("revision table kept: %v", got)
	}
}

func TestContainsFolding(t *testing.T) {
	cases := []struct {
		header, kw string
		want       bool
	}{
		{"Naht Nr.\nWeld  No.", "weld no", true},
		{"SCHWEISS", "schweiss", true},
		{"Schweiß", "schweiss", true},
		{"Feld", "weld", false},
		{"anything", "", false},
	}
	for _, c := range cases {
		if got := Contains(c.header, c.kw); got != c.want {
			t.Errorf("Contains(%q,%q) = %v", c.header, c.kw, got)
		}
	}
}

func TestConfigBuildRejectsBadPattern(t *testing.T) {
	c := WeldConfig()
	c.StripPattern = "("
	if _, err := c.Build(); err == nil {
		t.Error("bad pattern accepted")
	}
}
