// Package export renders normalized tables as an xlsx workbook.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/normalize"
)

var Logger = logger.GetLogger("export")

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName is the sheet for the i-th table: Sheet0, Sheet1, ...
func SheetName(i int) string { return fmt.Sprintf("Sheet%d", i) }

// Workbook writes one sheet per table, rows as they are (ragged rows stay ragged).
func Workbook(tables []normalize.Records) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			Logger.Warn("close workbook", "err", err)
		}
	}()

	// в новой книге уже есть Sheet1, переименовываем её под первую таблицу
	first := f.GetSheetName(0)
	if err := f.SetSheetName(first, SheetName(0)); err != nil {
		return nil, err
	}
	for i, t := range tables {
		name := SheetName(i)
		if i > 0 {
			if _, err := f.NewSheet(name); err != nil {
				return nil, fmt.Errorf("sheet %s: %w", name, err)
			}
		}
		for r, row := range t {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return nil, err
			}
			vals := make([]any, len(row))
			for c, v := range row {
				vals[c] = v
			}
			if err := f.SetSheetRow(name, cell, &vals); err != nil {
				return nil, fmt.Errorf("sheet %s row %d: %w", name, r, err)
			}
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	Logger.Debug("workbook written", "sheets", max(len(tables), 1), "bytes", buf.Len())
	return buf.Bytes(), nil
}
