package analytics

import (
	"sort"
	"strings"

	"github.com/retail-analyst/server/internal/dataset"
)

// ProductSales is the aggregate of one product in one store.
type ProductSales struct {
	Store    string  `json:"store"`
	Product  string  `json:"product"`
	Sales    float64 `json:"sales"`
	Quantity float64 `json:"quantity"`
}

// StoreProducts lists the leading products of one store.
type StoreProducts struct {
	Store    string         `json:"store"`
	Products []ProductSales `json:"products"`
}

// ProductPerformance is the result of the product performance tool. Top is
// set by the default variant, ByStore by "top per location".
type ProductPerformance struct {
	Columns dataset.ColumnMap `json:"columns"`
	Top     []ProductSales    `json:"top,omitempty"`
	ByStore []StoreProducts   `json:"by_store,omitempty"`
}

// ProductPerformance aggregates sales and quantity per store and product. The
// product, store, quantity and sales columns are identified from the column
// names. A basket listing several products gives each an equal share of the
// row's sales and quantity.
func (c *Catalog) ProductPerformance(ds *dataset.Dataset, v string) (*ProductPerformance, error) {
	mode, err := variant(v, VariantTopPerLocation)
	if err != nil {
		return nil, err
	}
	if err := nonEmpty(ds); err != nil {
		return nil, err
	}
	cols, err := dataset.ResolveColumns(sourceColumns(ds), dataset.RoleProduct, dataset.RoleStore, dataset.RoleQuantity, dataset.RoleSales)
	if err != nil {
		return nil, err
	}
	at := map[dataset.Role]int{}
	for role, name := range cols {
		at[role], err = ds.Column(name)
		if err != nil {
			return nil, err
		}
	}

	type key struct{ store, product string }
	agg := map[key]*ProductSales{}
	for row := 0; row < ds.Len(); row++ {
		products := dataset.SplitProducts(ds.String(row, at[dataset.RoleProduct]))
		if len(products) == 0 {
			continue
		}
		store := strings.TrimSpace(ds.String(row, at[dataset.RoleStore]))
		sales, _ := ds.Float(row, at[dataset.RoleSales])
		qty, _ := ds.Float(row, at[dataset.RoleQuantity])
		for _, p := range products {
			k := key{store, p}
			ps, ok := agg[k]
			if !ok {
				ps = &ProductSales{Store: store, Product: p}
				agg[k] = ps
			}
			ps.Sales += share(sales, len(products))
			ps.Quantity += share(qty, len(products))
		}
	}

	all := make([]ProductSales, 0, len(agg))
	for _, ps := range agg {
		all = append(all, *ps)
	}
	out := &ProductPerformance{Columns: cols}
	if mode == VariantTopPerLocation {
		out.ByStore = topPerStore(all, c.Top.TopPerLocation, func(p ProductSales) float64 { return p.Quantity })
		return out, nil
	}
	rankProducts(all, func(p ProductSales) float64 { return p.Sales })
	out.Top = head(all, c.Top.TopProducts)
	return out, nil
}

// sourceColumns drops the derived calendar columns so they never take part in
// role detection.
func sourceColumns(ds *dataset.Dataset) []string {
	var out []string
	for _, col := range ds.Columns() {
		switch col {
		case dataset.ColumnMonth, dataset.ColumnYear, dataset.ColumnSeason:
			continue
		}
		out = append(out, col)
	}
	return out
}

func rankProducts(ps []ProductSales, by func(ProductSales) float64) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := by(ps[i]), by(ps[j])
		if a != b {
			return a > b
		}
		if ps[i].Store != ps[j].Store {
			return ps[i].Store < ps[j].Store
		}
		return ps[i].Product < ps[j].Product
	})
}

// topPerStore groups ps by store (stores in name order) and keeps the n best
// of each.
func topPerStore(ps []ProductSales, n int, by func(ProductSales) float64) []StoreProducts {
	groups := map[string][]ProductSales{}
	for _, p := range ps {
		groups[p.Store] = append(groups[p.Store], p)
	}
	stores := make([]string, 0, len(groups))
	for s := range groups {
		stores = append(stores, s)
	}
	sort.Strings(stores)
	out := make([]StoreProducts, 0, len(stores))
	for _, s := range stores {
		g := groups[s]
		rankProducts(g, by)
		out = append(out, StoreProducts{Store: s, Products: head(g, n)})
	}
	return out
}
