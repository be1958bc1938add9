package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"

	errx "github.com/retail-analyst/server/internal/core/error"
)

// Metric is an aggregation applied to the Value column of each group.
type Metric string

const (
	MetricCount   Metric = "count"
	MetricSum     Metric = "sum"
	MetricMean    Metric = "mean"
	MetricNUnique Metric = "nunique"
	MetricMin     Metric = "min"
	MetricMax     Metric = "max"
)

// Op is a filter comparison.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpContains Op = "contains"
	OpGt       Op = "gt"
	OpLt       Op = "lt"
)

const (
	DefaultQueryLimit = 50
	MaxQueryLimit     = 500
)

// Filter keeps rows whose Column compares to Value under Op. Text comparisons
// ignore case; gt and lt compare numerically and drop non-numeric cells.
type Filter struct {
	Column string `json:"column"`
	Op     Op     `json:"op"`
	Value  string `json:"value"`
}

// Query is a filter, group and aggregate request over a Dataset. Without
// GroupBy and Metric the matching rows themselves are returned.
type Query struct {
	Filters   []Filter `json:"filters,omitempty"`
	GroupBy   []string `json:"group_by,omitempty"`
	Metric    Metric   `json:"metric,omitempty"`
	Value     string   `json:"value,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Ascending bool     `json:"ascending,omitempty"`
}

// QueryResult is a small table. Matched counts rows that passed the filters.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Matched   int      `json:"matched"`
	Truncated bool     `json:"truncated,omitempty"`
}

type boundFilter struct {
	col int
	op  Op
	raw string
	num float64
}

type accumulator struct {
	key   []string
	n     int
	count int
	sum   float64
	min   float64
	max   float64
	uniq  map[string]struct{}
}

// Run evaluates q against d.
func (d *Dataset) Run(q Query) (*QueryResult, error) {
	filters, err := d.bindFilters(q.Filters)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	var matched []int
	for r := range d.cells {
		if d.matches(r, filters) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return nil, errx.Compute(errx.ErrEmptyData, "no rows match the filters")
	}

	if len(q.GroupBy) == 0 && q.Metric == "" {
		res := &QueryResult{Columns: d.Columns(), Matched: len(matched)}
		for i, r := range matched {
			if i == limit {
				res.Truncated = true
				break
			}
			row := make([]any, len(d.columns))
			for c, v := range d.cells[r] {
				row[c] = v
			}
			res.Rows = append(res.Rows, row)
		}
		return res, nil
	}
	return d.aggregate(q, matched, limit)
}

func (d *Dataset) bindFilters(in []Filter) ([]boundFilter, error) {
	out := make([]boundFilter, 0, len(in))
	for _, f := range in {
		col, err := d.Column(f.Column)
		if err != nil {
			return nil, err
		}
		b := boundFilter{col: col, op: Op(strings.ToLower(string(f.Op))), raw: strings.TrimSpace(f.Value)}
		switch b.op {
		case "":
			b.op = OpEq
		case OpEq, OpNe, OpContains:
		case OpGt, OpLt:
			v, ok := parseNumber(b.raw)
			if !ok {
				return nil, errx.Compute(errx.ErrInvalidInput, "filter %s %s needs a numeric value, got %q", f.Column, b.op, f.Value)
			}
			b.num = v
		default:
			return nil, errx.Compute(errx.ErrInvalidInput, "unknown filter op %q", f.Op)
		}
		out = append(out, b)
	}
	return out, nil
}

func (d *Dataset) matches(row int, filters []boundFilter) bool {
	for _, f := range filters {
		cell := strings.TrimSpace(d.cells[row][f.col])
		switch f.op {
		case OpEq:
			if !strings.EqualFold(cell, f.raw) {
				return false
			}
		case OpNe:
			if strings.EqualFold(cell, f.raw) {
				return false
			}
		case OpContains:
			if !strings.Contains(strings.ToLower(cell), strings.ToLower(f.raw)) {
				return false
			}
		case OpGt, OpLt:
			v, ok := parseNumber(cell)
			if !ok || (f.op == OpGt && v <= f.num) || (f.op == OpLt && v >= f.num) {
				return false
			}
		}
	}
	return true
}

func (d *Dataset) aggregate(q Query, rows []int, limit int) (*QueryResult, error) {
	metric := Metric(strings.ToLower(string(q.Metric)))
	if metric == "" {
		metric = MetricCount
	}
	switch metric {
	case MetricCount, MetricSum, MetricMean, MetricNUnique, MetricMin, MetricMax:
	default:
		return nil, errx.Compute(errx.ErrInvalidInput, "unknown metric %q", q.Metric)
	}

	groupCols := make([]int, len(q.GroupBy))
	for i, g := range q.GroupBy {
		c, err := d.Column(g)
		if err != nil {
			return nil, err
		}
		groupCols[i] = c
	}
	valueCol := -1
	if metric != MetricCount || q.Value != "" {
		if q.Value == "" {
			return nil, errx.Compute(errx.ErrInvalidInput, "metric %s needs a value column", metric)
		}
		c, err := d.Column(q.Value)
		if err != nil {
			return nil, err
		}
		valueCol = c
	}

	groups := map[string]*accumulator{}
	var order []*accumulator
	for _, r := range rows {
		key := make([]string, len(groupCols))
		for i, c := range groupCols {
			key[i] = strings.TrimSpace(d.cells[r][c])
		}
		k := strings.Join(key, "\x1f")
		acc, ok := groups[k]
		if !ok {
			acc = &accumulator{key: key}
			groups[k] = acc
			order = append(order, acc)
		}
		acc.count++
		if valueCol < 0 {
			continue
		}
		cell := strings.TrimSpace(d.cells[r][valueCol])
		if metric == MetricNUnique {
			if acc.uniq == nil {
				acc.uniq = map[string]struct{}{}
			}
			acc.uniq[cell] = struct{}{}
			continue
		}
		v, ok := parseNumber(cell)
		if !ok {
			continue
		}
		if acc.n == 0 || v < acc.min {
			acc.min = v
		}
		if acc.n == 0 || v > acc.max {
			acc.max = v
		}
		acc.n++
		acc.sum += v
	}

	type scored struct {
		acc   *accumulator
		value float64
		ok    bool
	}
	out := make([]scored, 0, len(order))
	for _, acc := range order {
		v, ok := acc.result(metric)
		out = append(out, scored{acc, v, ok})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ok != b.ok {
			return a.ok
		}
		if a.value != b.value {
			if q.Ascending {
				return a.value < b.value
			}
			return a.value > b.value
		}
		return strings.Join(a.acc.key, "\x1f") < strings.Join(b.acc.key, "\x1f")
	})

	label := string(metric)
	if valueCol >= 0 {
		label = fmt.Sprintf("%s(%s)", metric, d.columns[valueCol])
	}
	res := &QueryResult{Matched: len(rows)}
	for _, c := range groupCols {
		res.Columns = append(res.Columns, d.columns[c])
	}
	res.Columns = append(res.Columns, label)
	for i, s := range out {
		if i == limit {
			res.Truncated = true
			break
		}
		row := make([]any, 0, len(s.acc.key)+1)
		for _, k := range s.acc.key {
			row = append(row, k)
		}
		if s.ok {
			row = append(row, round(s.value))
		} else {
			row = append(row, nil)
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func (a *accumulator) result(m Metric) (float64, bool) {
	switch m {
	case MetricCount:
		return float64(a.count), true
	case MetricNUnique:
		return float64(len(a.uniq)), true
	}
	if a.n == 0 {
		return 0, false
	}
	switch m {
	case MetricSum:
		return a.sum, true
	case MetricMean:
		return a.sum / float64(a.n), true
	case MetricMin:
		return a.min, true
	default:
		return a.max, true
	}
}

// round trims float noise for display.
func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
