package fill

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// SheetLayout maps form field IDs to cells in a spreadsheet template.
type SheetLayout struct {
	Sheet string            // target sheet name
	Cells map[string]string // field ID -> cell reference, e.g. "B4"
}

// FillTemplate opens an existing workbook template, writes mapped values
// into the layout's cells, and saves the result to outputPath. Cells not
// named in the layout, including formulas, are left untouched.
func FillTemplate(templatePath, outputPath string, layout SheetLayout, result model.MappedFormResult) error {
	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return eris.Wrapf(err, "fill: open template %s", templatePath)
	}
	defer f.Close()

	sheet := layout.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	filled := 0
	for fieldID, cell := range layout.Cells {
		v, ok := result.FieldValues[fieldID]
		if !ok {
			continue
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return eris.Wrapf(err, "fill: set cell %s!%s", sheet, cell)
		}
		filled++
	}

	if err := f.SaveAs(outputPath); err != nil {
		return eris.Wrapf(err, "fill: save %s", outputPath)
	}

	zap.L().Info("fill: template filled",
		zap.String("form", result.FormID),
		zap.String("output", outputPath),
		zap.Int("cells", filled),
	)
	return nil
}

// WriteSummaryWorkbook writes a review workbook with one sheet listing
// every mapped field across all forms with its confidence, plus the
// per-form coverage.
func WriteSummaryWorkbook(path, applicationID string, results []model.MappedFormResult) error {
	f := excelize.NewFile()
	const sheet = "Mapping"
	if _, err := f.NewSheet(sheet); err != nil {
		return eris.Wrap(err, "fill: create sheet")
	}
	if err := f.DeleteSheet(f.GetSheetName(0)); err != nil {
		return eris.Wrap(err, "fill: drop default sheet")
	}

	headers := []string{"Form", "Field", "Value", "Confidence", "Form Coverage"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range results {
		for _, fieldID := range sortedFieldIDs(r) {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(sheet, cell, v)
			}
			write(1, r.FormID)
			write(2, fieldID)
			write(3, fmt.Sprintf("%v", r.FieldValues[fieldID]))
			write(4, r.FieldConfidences[fieldID])
			write(5, r.Coverage)
			row++
		}
	}

	_ = f.SetColWidth(sheet, "A", "B", 24)
	_ = f.SetColWidth(sheet, "C", "C", 40)
	_ = f.SetColWidth(sheet, "D", "E", 14)

	if err := f.SaveAs(path); err != nil {
		return eris.Wrapf(err, "fill: save summary workbook %s", path)
	}

	zap.L().Info("fill: wrote summary workbook",
		zap.String("application", applicationID),
		zap.String("path", path),
		zap.Int("rows", row-2),
	)
	return nil
}

func sortedFieldIDs(r model.MappedFormResult) []string {
	ids := make([]string, 0, len(r.FieldValues))
	for id := range r.FieldValues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
