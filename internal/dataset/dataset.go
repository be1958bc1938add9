package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	errx "github.com/retail-analyst/server/internal/core/error"
)

// Derived column names appended by the loader.
const (
	ColumnMonth  = "Month"
	ColumnYear   = "Year"
	ColumnSeason = "Season"
)

// Transaction is the typed view of one dataset row.
type Transaction struct {
	Row           int       `json:"row"`
	ID            string    `json:"id,omitempty"`
	Date          time.Time `json:"date"`
	Customer      string    `json:"customer"`
	Products      []string  `json:"products,omitempty"`
	Items         float64   `json:"items"`
	Cost          float64   `json:"cost"`
	Discount      float64   `json:"discount"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	City          string    `json:"city,omitempty"`
	StoreType     string    `json:"store_type,omitempty"`
	Promotion     string    `json:"promotion,omitempty"`
	Category      string    `json:"category,omitempty"`
	Month         int       `json:"month"`
	Year          int       `json:"year"`
	Season        Season    `json:"season"`
}

// Dataset is an immutable in-memory table of retail transactions. Tools read
// it concurrently; nothing mutates it after Load returns.
type Dataset struct {
	name    string
	columns []string
	index   map[string]int
	cells   [][]string
	dates   []time.Time
	schema  ColumnMap
	records []Transaction
}

// Name is the base name of the source file.
func (d *Dataset) Name() string { return d.name }

// Columns returns a copy of the column names, derived columns included.
func (d *Dataset) Columns() []string { return append([]string(nil), d.columns...) }

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.cells) }

// Schema returns the column assigned to each retail role found at load time.
func (d *Dataset) Schema() ColumnMap {
	out := make(ColumnMap, len(d.schema))
	for k, v := range d.schema {
		out[k] = v
	}
	return out
}

// Records returns the typed transactions. The slice is shared and must not be modified.
func (d *Dataset) Records() []Transaction { return d.records }

// Column finds a column by case-insensitive name.
func (d *Dataset) Column(name string) (int, error) {
	if i, ok := d.index[strings.ToLower(strings.TrimSpace(name))]; ok {
		return i, nil
	}
	return -1, errx.Compute(errx.ErrColumnNotFound, "no column %q in [%s]", name, strings.Join(d.columns, ", "))
}

// String returns the raw cell at (row, col).
func (d *Dataset) String(row, col int) string {
	return d.cells[row][col]
}

// Date returns the parsed transaction date of row.
func (d *Dataset) Date(row int) time.Time {
	return d.dates[row]
}

// Float parses the cell at (row, col) as a number. Empty cells are reported as not ok.
func (d *Dataset) Float(row, col int) (float64, bool) {
	return parseNumber(d.cells[row][col])
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	switch strings.ToLower(s) {
	case "true", "yes":
		return 1, true
	case "false", "no":
		return 0, true
	}
	s = strings.NewReplacer("$", "", ",", "", "%", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SplitProducts reads a basket cell which is either a list literal such as
// "['Milk', 'Bread']" or a single product name.
func SplitProducts(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return []string{s}
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(inner, ",") {
		p = strings.Trim(strings.TrimSpace(p), `'"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (d *Dataset) buildRecords() error {
	idx := func(role Role) int {
		if c, ok := d.schema[role]; ok {
			return d.index[strings.ToLower(c)]
		}
		return -1
	}
	get := func(row []string, i int) string {
		if i < 0 {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	num := func(row []string, i int, role Role, n int) (float64, error) {
		raw := get(row, i)
		if raw == "" {
			return 0, nil
		}
		v, ok := parseNumber(raw)
		if !ok {
			return 0, fmt.Errorf("row %d: %s value %q is not numeric", n, role, raw)
		}
		return v, nil
	}

	var (
		iID, iCust, iProd = idx(RoleTransaction), idx(RoleCustomer), idx(RoleProduct)
		iQty, iCost, iDisc = idx(RoleQuantity), idx(RoleSales), idx(RoleDiscount)
		iPay, iCity, iStore = idx(RolePayment), idx(RoleCity), idx(RoleStore)
		iPromo, iCat        = idx(RolePromotion), idx(RoleCategory)
	)

	d.records = make([]Transaction, len(d.cells))
	for r, row := range d.cells {
		n := r + 2 // header is line 1
		items, err := num(row, iQty, RoleQuantity, n)
		if err != nil {
			return err
		}
		cost, err := num(row, iCost, RoleSales, n)
		if err != nil {
			return err
		}
		disc, err := num(row, iDisc, RoleDiscount, n)
		if err != nil {
			return err
		}
		t := d.dates[r]
		d.records[r] = Transaction{
			Row:           r,
			ID:            get(row, iID),
			Date:          t,
			Customer:      get(row, iCust),
			Products:      SplitProducts(get(row, iProd)),
			Items:         items,
			Cost:          cost,
			Discount:      disc,
			PaymentMethod: get(row, iPay),
			City:          get(row, iCity),
			StoreType:     get(row, iStore),
			Promotion:     get(row, iPromo),
			Category:      get(row, iCat),
			Month:         int(t.Month()),
			Year:          t.Year(),
			Season:        SeasonOf(t.Month()),
		}
	}
	return nil
}
