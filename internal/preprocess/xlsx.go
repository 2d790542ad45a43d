package preprocess

import (
	"strings"

	"github.com/tealeg/xlsx/v2"
)

// renderWorkbook converts a spreadsheet into one text page per non-empty
// sheet. Rendering cells as tab-separated text keeps numbers and labels
// adjacent, which the model reads more reliably than a rasterized grid.
func renderWorkbook(path string) ([]Page, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, &FailureError{Path: path, Cause: err}
	}

	var pages []Page
	for _, sheet := range f.Sheets {
		text := renderSheet(sheet)
		if text == "" {
			continue
		}
		pages = append(pages, Page{
			Number: len(pages) + 1,
			Text:   "Sheet: " + sheet.Name + "\n" + text,
		})
	}
	if len(pages) == 0 {
		return nil, &FailureError{Path: path, Cause: errEmptyWorkbook}
	}
	return pages, nil
}

var errEmptyWorkbook = &emptyWorkbookError{}

type emptyWorkbookError struct{}

func (*emptyWorkbookError) Error() string { return "workbook has no non-empty sheets" }

func renderSheet(sheet *xlsx.Sheet) string {
	var b strings.Builder
	for _, row := range sheet.Rows {
		var cells []string
		empty := true
		for _, cell := range row.Cells {
			v := strings.TrimSpace(cell.String())
			if v != "" {
				empty = false
			}
			cells = append(cells, v)
		}
		if empty {
			continue
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, "\t"), "\t"))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
