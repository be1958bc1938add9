package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	errx "github.com/retail-analyst/server/internal/core/error"
	logx "github.com/retail-analyst/server/pkg/logger"
)

// requiredRoles must resolve for a file to load.
var requiredRoles = []Role{RoleDate, RoleCustomer, RoleSales}

// optionalRoles are attached to the typed view when a column can be identified.
// Quantity precedes product so "item" cannot take a Total_Items column.
var optionalRoles = []Role{
	RoleTransaction, RoleQuantity, RoleProduct, RoleDiscount,
	RoleStore, RoleCity, RolePayment, RolePromotion, RoleCategory,
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006 15:04",
	"1/2/2006",
	"1/2/06 15:04",
	"1/2/06",
}

// Load reads a transaction table from path. CSV and TSV are read as delimited
// text; .xlsx files are read from their first sheet.
func Load(path string) (*Dataset, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, errx.Load(errx.ErrNotFound, "%s", path)
	case errors.Is(err, fs.ErrPermission):
		return nil, errx.Load(errx.ErrPermission, "%s", path)
	case err != nil:
		return nil, errx.Load(errx.ErrNotFound, "%s: %v", path, err)
	case info.IsDir():
		return nil, errx.Load(errx.ErrNotFound, "%s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, errx.Load(errx.ErrPermission, "%s", path)
		}
		return nil, errx.Load(errx.ErrNotFound, "%s: %v", path, err)
	}
	defer f.Close()

	ds, err := Parse(filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	logx.Info().
		Str("path", path).
		Int("rows", ds.Len()).
		Interface("schema", ds.schema).
		Msg("dataset loaded")
	return ds, nil
}

// Parse reads a transaction table from r. The format is picked from the
// extension of name.
func Parse(name string, r io.Reader) (*Dataset, error) {
	var (
		header []string
		rows   [][]string
		serial bool
		err    error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		header, rows, err = readSpreadsheet(r)
		serial = true
	case ".tsv":
		header, rows, err = readDelimited(r, '\t')
	default:
		header, rows, err = readDelimited(r, ',')
	}
	if err != nil {
		return nil, err
	}
	return build(name, header, rows, serial)
}

func readDelimited(r io.Reader, comma rune) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = 0

	records, err := cr.ReadAll()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, nil, errx.Load(errx.ErrParse, "line %d: %v", pe.Line, pe.Err)
		}
		return nil, nil, errx.Load(errx.ErrParse, "%v", err)
	}
	if len(records) == 0 {
		return nil, nil, errx.Load(errx.ErrParse, "empty file")
	}
	return records[0], records[1:], nil
}

func build(name string, header []string, rows [][]string, serialDates bool) (*Dataset, error) {
	columns := make([]string, 0, len(header)+3)
	index := make(map[string]int, len(header)+3)
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			return nil, errx.Load(errx.ErrParse, "empty column name at position %d", i+1)
		}
		key := strings.ToLower(h)
		if _, dup := index[key]; dup {
			return nil, errx.Load(errx.ErrParse, "duplicate column %q", h)
		}
		index[key] = i
		columns = append(columns, h)
	}
	if len(rows) == 0 {
		return nil, errx.Load(errx.ErrParse, "no data rows")
	}

	schema, fail := resolve(columns, requiredRoles)
	if fail != nil {
		return nil, errx.Load(fail.kind, "%s", fail.detail)
	}
	claimed := map[string]bool{}
	for _, c := range schema {
		claimed[strings.ToLower(c)] = true
	}
	for _, role := range optionalRoles {
		col, err := resolveRole(columns, role, claimed)
		if err != nil {
			if !errors.Is(err, errNoMatch) {
				logx.Warn().Str("role", string(role)).Err(err).Msg("optional column skipped")
			} else if bound, berr := resolveRole(columns, role, nil); berr == nil {
				logx.Warn().Str("role", string(role)).Str("column", bound).Msg("optional column already bound to another role")
			}
			continue
		}
		claimed[strings.ToLower(col)] = true
		schema[role] = col
	}

	width := len(columns)
	derived := [3]int{-1, -1, -1}
	for i, col := range []string{ColumnMonth, ColumnYear, ColumnSeason} {
		if at, ok := index[strings.ToLower(col)]; ok {
			derived[i] = at
			continue
		}
		derived[i] = len(columns)
		index[strings.ToLower(col)] = len(columns)
		columns = append(columns, col)
	}

	dateCol := index[strings.ToLower(schema[RoleDate])]
	ds := &Dataset{
		name:    name,
		columns: columns,
		index:   index,
		cells:   make([][]string, len(rows)),
		dates:   make([]time.Time, len(rows)),
		schema:  schema,
	}
	for r, row := range rows {
		line := r + 2
		if len(row) > width {
			return nil, errx.Load(errx.ErrParse, "line %d: %d fields, header has %d", line, len(row), width)
		}
		cells := make([]string, len(columns))
		copy(cells, row)

		raw := strings.TrimSpace(cells[dateCol])
		t, ok := parseDate(raw, serialDates)
		if !ok {
			return nil, errx.Load(errx.ErrParse, "line %d: unparseable date %q in column %s", line, raw, schema[RoleDate])
		}
		cells[derived[0]] = strconv.Itoa(int(t.Month()))
		cells[derived[1]] = strconv.Itoa(t.Year())
		cells[derived[2]] = string(SeasonOf(t.Month()))

		ds.cells[r] = cells
		ds.dates[r] = t
	}
	if err := ds.buildRecords(); err != nil {
		return nil, errx.Load(errx.ErrParse, "%v", err)
	}
	return ds, nil
}

func parseDate(s string, serial bool) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if serial {
		return excelSerialDate(s)
	}
	return time.Time{}, false
}
