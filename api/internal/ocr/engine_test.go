package ocr

import (
	"context"
	"errors"
	"testing"

	"drawing-ocr/api/internal/geometry"
)

type namedEngine string

func (n namedEngine) Name() string { return string(n) }
func (n namedEngine) Analyze(context.Context, []byte) (Analysis, error) {
	return Analysis{}, nil
}

func TestStatusError(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
		creds     bool
	}{
		{401, false, true},
		{403, false, true},
		{429, true, false},
		{503, true, false},
		{400, false, false},
	}
	for _, c := range cases {
		err := StatusError("azure", c.status, "boom")
		if got := errors.Is(err, ErrTransient); got != c.transient {
			t.Errorf("%d: transient = %v", c.status, got)
		}
		if got := errors.Is(err, ErrInvalidCredentials); got != c.creds {
			t.Errorf("%d: credentials = %v", c.status, got)
		}
		if Retryable(err) != (c.transient || c.creds) {
			t.Errorf("%d: retryable mismatch", c.status)
		}
	}
}

func TestEnginesAndManager(t *testing.T) {
	engs := NewEngines("azure", namedEngine("azure"), namedEngine("yandex"), nil)

	if e, err := engs.GetEngine(""); err != nil || e.Name() != "azure" {
		t.Fatalf("default engine = %v, %v", e, err)
	}
	if e, err := engs.GetEngine(" Yandex "); err != nil || e.Name() != "yandex" {
		t.Fatalf("lookup yandex = %v, %v", e, err)
	}
	if _, err := engs.GetEngine("gpt"); !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("unknown engine err = %v", err)
	}

	m := NewManager(engs)
	if got := m.Get(42).Name(); got != "azure" {
		t.Errorf("unset chat engine = %s", got)
	}
	if err := m.Set(42, "yandex"); err != nil {
		t.Fatal(err)
	}
	if got := m.Get(42).Name(); got != "yandex" {
		t.Errorf("chat engine = %s", got)
	}
	if err := m.Set(42, "nope"); err == nil {
		t.Error("Set accepted unknown engine")
	}
}

func TestAnalysisRebase(t *testing.T) {
	a := Analysis{
		Words:  []Word{{Content: "WN", Box: geometry.Box{X0: 0, Y0: 1, X1: 2, Y1: 3}}},
		Tables: []Table{{RowCount: 1, ColCount: 1, Box: geometry.Box{X0: 0, Y0: 100, X1: 200, Y1: 300}}},
	}
	got := a.Rebase(4500, 10)
	if got.Words[0].Box != (geometry.Box{X0: 4500, Y0: 11, X1: 4502, Y1: 13}) {
		t.Errorf("word box = %v", got.Words[0].Box)
	}
	if got.Tables[0].Box != (geometry.Box{X0: 4500, Y0: 110, X1: 4700, Y1: 310}) {
		t.Errorf("table box = %v", got.Tables[0].Box)
	}
	if a.Tables[0].Box.X0 != 0 {
		t.Error("Rebase mutated its receiver")
	}
}
