package dataset

import (
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	errx "github.com/retail-analyst/server/internal/core/error"
)

// readSpreadsheet returns the header and rows of the first sheet of a workbook.
func readSpreadsheet(r io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, errx.Load(errx.ErrParse, "open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errx.Load(errx.ErrParse, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, errx.Load(errx.ErrParse, "read sheet %q: %v", sheets[0], err)
	}
	// GetRows drops trailing empty rows but keeps blank ones in between.
	out := rows[:0]
	for _, row := range rows {
		if !blank(row) {
			out = append(out, row)
		}
	}
	if len(out) == 0 {
		return nil, nil, errx.Load(errx.ErrParse, "empty file")
	}
	return out[0], out[1:], nil
}

func blank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

// excelSerialDate reads a cell holding an Excel serial date number.
func excelSerialDate(s string) (time.Time, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(v, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
