package normalize

import (
	"fmt"
	"regexp"

	"drawing-ocr/api/internal/logger"
)

var Logger = logger.GetLogger("normalize")

// Records is a table as rows of strings; row 0 is the header.
// After PruneEmpty rows may differ in length.
type Records [][]string

func (r Records) Clone() Records {
	out := make(Records, len(r))
	for i, row := range r {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// Rule is one step of the cleanup. Apply must not modify its input.
type Rule interface {
	Name() string
	Apply(Records) Records
}

// Pipeline runs rules in order; the order matters.
type Pipeline struct {
	Rules []Rule
}

func (p Pipeline) Run(in Records) Records {
	out := in.Clone()
	for _, r := range p.Rules {
		out = r.Apply(out)
		Logger.Debug("rule applied", "rule", r.Name(), "rows", len(out))
	}
	return out
}

// Keep reports whether a normalized table is worth returning.
func Keep(r Records) bool {
	return len(r) > 0 && len(r[0]) > 0
}

// Config is the YAML shape of a rule set for one document type.
type Config struct {
	Paired        []string `yaml:"paired"`
	Single        []string `yaml:"single"`
	HeaderDepth   int      `yaml:"header_depth"`
	SplitKeyword  string   `yaml:"split_keyword"`
	StripKeyword  string   `yaml:"strip_keyword"`
	StripPattern  string   `yaml:"strip_pattern"`
	SumKeywords   []string `yaml:"sum_keywords"`
	KeepEmptyCell bool     `yaml:"keep_empty_cells"`
}

// WeldConfig is the reference rule set for weld seam tables.
func WeldConfig() Config {
	return Config{
		Paired:       []string{"weld no", "overlapping", "ueberlappung"},
		Single:       []string{"total weld length", "weld gap", "schweiss"},
		HeaderDepth:  2,
		SplitKeyword: "weld no",
		StripKeyword: "total weld length",
		StripPattern: `\(x[0-9]+\)`,
		SumKeywords:  []string{"overlapping", "ueberlappung"},
	}
}

// Build turns a config into a pipeline; empty parts are skipped.
func (c Config) Build() (Pipeline, error) {
	var rules []Rule
	if len(c.Paired) > 0 || len(c.Single) > 0 {
		rules = append(rules, ColumnFilter{Paired: c.Paired, Single: c.Single})
	}
	if c.HeaderDepth > 1 {
		rules = append(rules, DropSubHeader{Depth: c.HeaderDepth})
	}
	if c.SplitKeyword != "" {
		rules = append(rules, SplitPairedRows{Keyword: c.SplitKeyword})
	}
	if c.StripKeyword != "" {
		rule := StripDecoration{Keyword: c.StripKeyword}
		if c.StripPattern != "" {
			re, err := regexp.Compile(c.StripPattern)
			if err != nil {
				return Pipeline{}, fmt.Errorf("strip_pattern: %w", err)
			}
			rule.Pattern = re
		}
		rules = append(rules, rule)
	}
	if len(c.SumKeywords) > 0 {
		rules = append(rules, SumPairedValues{Keywords: c.SumKeywords})
	}
	if !c.KeepEmptyCell {
		rules = append(rules, PruneEmpty{})
	}
	return Pipeline{Rules: rules}, nil
}

// Weld returns the reference pipeline.
func Weld() Pipeline {
	p, _ := WeldConfig().Build()
	return p
}
