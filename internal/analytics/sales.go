package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	errx "github.com/retail-analyst/server/internal/core/error"
	"github.com/retail-analyst/server/internal/dataset"
)

// Breakdown dimensions.
const (
	DimensionPayment   = "payment_method"
	DimensionStore     = "store_type"
	DimensionCity      = "city"
	DimensionSeason    = "season"
	DimensionCategory  = "customer_category"
	DimensionPromotion = "promotion"
)

// Time granularities.
const (
	GranularityDay   = "day"
	GranularityWeek  = "week"
	GranularityMonth = "month"
	GranularityYear  = "year"
)

var dimensionRoles = map[string]dataset.Role{
	DimensionPayment:   dataset.RolePayment,
	DimensionStore:     dataset.RoleStore,
	DimensionCity:      dataset.RoleCity,
	DimensionCategory:  dataset.RoleCategory,
	DimensionPromotion: dataset.RolePromotion,
}

// Bucket aggregates total cost over one value of a dimension.
type Bucket struct {
	Key          string  `json:"key"`
	Total        float64 `json:"total"`
	Mean         float64 `json:"mean"`
	Transactions int     `json:"transactions"`
}

// SalesBreakdown groups sales by one dimension.
type SalesBreakdown struct {
	Dimension string   `json:"dimension"`
	Buckets   []Bucket `json:"buckets"`
}

// Period aggregates total cost over one time bucket.
type Period struct {
	Period       string  `json:"period"`
	Total        float64 `json:"total"`
	Mean         float64 `json:"mean"`
	Transactions int     `json:"transactions"`
}

// SalesOverTime is total and average sales per period, oldest first.
type SalesOverTime struct {
	Granularity string   `json:"granularity"`
	Periods     []Period `json:"periods"`
}

// Overview holds headline KPIs of the dataset.
type Overview struct {
	TotalSales         float64   `json:"total_sales"`
	AverageTransaction float64   `json:"average_transaction_value"`
	Transactions       int       `json:"transactions"`
	UniqueCustomers    int       `json:"unique_customers"`
	TotalItems         float64   `json:"total_items"`
	DiscountedShare    float64   `json:"discounted_share,omitempty"`
	FirstDate          time.Time `json:"first_date"`
	LastDate           time.Time `json:"last_date"`
}

// Dimensions lists the accepted SalesBreakdown dimensions.
func Dimensions() []string {
	return []string{DimensionPayment, DimensionStore, DimensionCity, DimensionSeason, DimensionCategory, DimensionPromotion}
}

// Granularities lists the accepted SalesOverTime granularities.
func Granularities() []string {
	return []string{GranularityDay, GranularityWeek, GranularityMonth, GranularityYear}
}

// SalesBreakdown sums, averages and counts sales per value of dimension,
// highest total first. Cities are cut to the top ranks.
func (c *Catalog) SalesBreakdown(ds *dataset.Dataset, dimension string) (*SalesBreakdown, error) {
	dim := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(dimension)), " ", "_")
	if err := nonEmpty(ds); err != nil {
		return nil, err
	}
	var keyOf func(dataset.Transaction) string
	switch dim {
	case DimensionSeason:
		keyOf = func(t dataset.Transaction) string { return string(t.Season) }
	case DimensionPayment:
		keyOf = func(t dataset.Transaction) string { return t.PaymentMethod }
	case DimensionStore:
		keyOf = func(t dataset.Transaction) string { return t.StoreType }
	case DimensionCity:
		keyOf = func(t dataset.Transaction) string { return t.City }
	case DimensionCategory:
		keyOf = func(t dataset.Transaction) string { return t.Category }
	case DimensionPromotion:
		keyOf = func(t dataset.Transaction) string { return t.Promotion }
	default:
		return nil, errx.Compute(errx.ErrUnknownVariant, "dimension %q (known: %s)", dimension, strings.Join(Dimensions(), ", "))
	}
	if role, ok := dimensionRoles[dim]; ok {
		if err := requireRoles(ds, role); err != nil {
			return nil, err
		}
	}

	idx := map[string]int{}
	var buckets []Bucket
	for _, r := range ds.Records() {
		k := keyOf(r)
		i, ok := idx[k]
		if !ok {
			i = len(buckets)
			idx[k] = i
			buckets = append(buckets, Bucket{Key: k})
		}
		buckets[i].Total += r.Cost
		buckets[i].Transactions++
	}
	for i := range buckets {
		buckets[i].Mean = buckets[i].Total / float64(buckets[i].Transactions)
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].Total != buckets[j].Total {
			return buckets[i].Total > buckets[j].Total
		}
		return buckets[i].Key < buckets[j].Key
	})
	if dim == DimensionCity {
		buckets = head(buckets, c.Top.TopCities)
	}
	return &SalesBreakdown{Dimension: dim, Buckets: buckets}, nil
}

// SalesOverTime buckets sales by day, ISO week, month (the default) or year.
func (c *Catalog) SalesOverTime(ds *dataset.Dataset, granularity string) (*SalesOverTime, error) {
	g := strings.ToLower(strings.TrimSpace(granularity))
	var label func(time.Time) string
	switch g {
	case GranularityDay:
		label = func(t time.Time) string { return t.Format("2006-01-02") }
	case GranularityWeek:
		label = func(t time.Time) string {
			y, w := t.ISOWeek()
			return fmt.Sprintf("%04d-W%02d", y, w)
		}
	case GranularityMonth, "":
		g = GranularityMonth
		label = func(t time.Time) string { return t.Format("2006-01") }
	case GranularityYear:
		label = func(t time.Time) string { return t.Format("2006") }
	default:
		return nil, errx.Compute(errx.ErrUnknownVariant, "granularity %q (known: %s)", granularity, strings.Join(Granularities(), ", "))
	}
	if err := nonEmpty(ds); err != nil {
		return nil, err
	}

	idx := map[string]int{}
	var periods []Period
	for _, r := range ds.Records() {
		k := label(r.Date)
		i, ok := idx[k]
		if !ok {
			i = len(periods)
			idx[k] = i
			periods = append(periods, Period{Period: k})
		}
		periods[i].Total += r.Cost
		periods[i].Transactions++
	}
	for i := range periods {
		periods[i].Mean = periods[i].Total / float64(periods[i].Transactions)
	}
	sort.SliceStable(periods, func(i, j int) bool { return periods[i].Period < periods[j].Period })
	return &SalesOverTime{Granularity: g, Periods: periods}, nil
}

// Overview computes headline KPIs.
func (c *Catalog) Overview(ds *dataset.Dataset) (*Overview, error) {
	if err := nonEmpty(ds); err != nil {
		return nil, err
	}
	out := &Overview{}
	customers := map[string]struct{}{}
	discounted := 0
	for i, r := range ds.Records() {
		out.TotalSales += r.Cost
		out.TotalItems += r.Items
		out.Transactions++
		customers[r.Customer] = struct{}{}
		if r.Discount > 0 {
			discounted++
		}
		if i == 0 || r.Date.Before(out.FirstDate) {
			out.FirstDate = r.Date
		}
		if i == 0 || r.Date.After(out.LastDate) {
			out.LastDate = r.Date
		}
	}
	out.UniqueCustomers = len(customers)
	out.AverageTransaction = out.TotalSales / float64(out.Transactions)
	if _, ok := ds.Schema()[dataset.RoleDiscount]; ok {
		out.DiscountedShare = float64(discounted) / float64(out.Transactions)
	}
	return out, nil
}
