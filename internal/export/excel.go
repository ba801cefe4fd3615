package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// sheetWriter appends rows to sheets of an excelize workbook.
type sheetWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

var sheetNameReplacer = strings.NewReplacer(
	":", " ", `\`, " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")",
)

// SheetName makes name usable as an Excel sheet name (31 characters, no : \ / ? * [ ]).
func SheetName(name string) string {
	name = strings.TrimSpace(sheetNameReplacer.Replace(name))
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	if name == "" {
		name = "Sheet"
	}
	return name
}

// AddSheet adds a new sheet and makes it current.
func (w *sheetWriter) AddSheet(name string) error {
	name = SheetName(name)

	// The first sheet reuses the default one.
	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold column headers to current sheet.
func (w *sheetWriter) WriteHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	start := w.currentRow
	if err := w.WriteRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, start)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), start)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}
	return nil
}

// WriteRow writes a data row to current sheet.
func (w *sheetWriter) WriteRow(row []any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
	}

	w.currentRow++
	return nil
}

func (w *sheetWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *sheetWriter) Close() error {
	return w.file.Close()
}
