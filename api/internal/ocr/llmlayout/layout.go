// Package llmlayout is the JSON contract shared by the vision-LLM engines:
// the prompt that asks for it and the decoder that turns it into ocr types.
package llmlayout

import (
	"encoding/json"
	"fmt"

	"drawing-ocr/api/internal/geometry"
	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/util"
)

const SystemPrompt = `You are a layout-analysis module for scanned engineering drawings.
Find every table and every word in the image and return STRICT JSON:
{
  "words":  [{"content": string, "box": [x_min, y_min, x_max, y_max]}],
  "tables": [{
    "row_count": int, "column_count": int,
    "box": [x_min, y_min, x_max, y_max],
    "cells": [{"row_index": int, "column_index": int, "row_span": int, "column_span": int,
               "content": string, "kind": "columnHeader" | "content"}]
  }]
}
Rules:
1) Coordinates are integer pixels of the given image, origin top-left.
2) Copy cell text verbatim, including brackets such as "(5)" or "45(x2)". Empty cells are "".
3) Every cell index must be smaller than row_count / column_count.
4) No comments, no text outside JSON.`

// UserPrompt goes next to the image.
func UserPrompt(w, h int) string {
	return fmt.Sprintf("Image size: %dx%d px. Return JSON only.", w, h)
}

type layout struct {
	Words []struct {
		Content string `json:"content"`
		Box     []int  `json:"box"`
	} `json:"words"`
	Tables []struct {
		RowCount int   `json:"row_count"`
		ColCount int   `json:"column_count"`
		Box      []int `json:"box"`
		Cells    []struct {
			RowIndex int    `json:"row_index"`
			ColIndex int    `json:"column_index"`
			RowSpan  int    `json:"row_span"`
			ColSpan  int    `json:"column_span"`
			Content  string `json:"content"`
			Kind     string `json:"kind"`
		} `json:"cells"`
	} `json:"tables"`
}

// Parse decodes a model reply; code fences around the JSON are tolerated.
// Items with a malformed or degenerate box are dropped.
func Parse(reply string) (ocr.Analysis, error) {
	txt := util.StripCodeFences(reply)
	if txt == "" {
		return ocr.Analysis{}, fmt.Errorf("empty response")
	}
	var l layout
	if err := json.Unmarshal([]byte(txt), &l); err != nil {
		return ocr.Analysis{}, fmt.Errorf("bad JSON: %w (%s)", err, util.ShortText(txt, 120))
	}

	var a ocr.Analysis
	for _, w := range l.Words {
		if b, ok := boxOf(w.Box); ok {
			a.Words = append(a.Words, ocr.Word{Content: w.Content, Box: b})
		}
	}
	for _, t := range l.Tables {
		b, ok := boxOf(t.Box)
		if !ok {
			continue
		}
		tbl := ocr.Table{RowCount: t.RowCount, ColCount: t.ColCount, Box: b}
		for _, c := range t.Cells {
			kind := ocr.CellKind(c.Kind)
			if kind == "" {
				kind = ocr.KindContent
			}
			tbl.Cells = append(tbl.Cells, ocr.Cell{
				RowIndex: c.RowIndex,
				ColIndex: c.ColIndex,
				RowSpan:  c.RowSpan,
				ColSpan:  c.ColSpan,
				Content:  c.Content,
				Kind:     kind,
			})
		}
		a.Tables = append(a.Tables, tbl)
	}
	return a, nil
}

func boxOf(v []int) (geometry.Box, bool) {
	if len(v) != 4 {
		return geometry.Empty, false
	}
	b := geometry.Box{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}
	return b, !b.IsEmpty()
}
