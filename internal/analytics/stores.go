package analytics

import (
	"sort"

	"github.com/retail-analyst/server/internal/dataset"
)

// StoreSummary aggregates the transactions of one store type.
type StoreSummary struct {
	StoreType    string  `json:"store_type"`
	TotalCost    float64 `json:"total_cost"`
	TotalItems   float64 `json:"total_items"`
	Customers    int     `json:"customers"`
	Transactions int     `json:"transactions"`
}

// StorePerformance is the result of the store performance tool. TopItems is
// only set by the "top per location" variant.
type StorePerformance struct {
	Stores   []StoreSummary  `json:"stores"`
	TopItems []StoreProducts `json:"top_items,omitempty"`
}

// StorePerformance reports cost, items and distinct customers per store type,
// highest total cost first.
func (c *Catalog) StorePerformance(ds *dataset.Dataset, v string) (*StorePerformance, error) {
	mode, err := variant(v, VariantTopPerLocation)
	if err != nil {
		return nil, err
	}
	if err := nonEmpty(ds); err != nil {
		return nil, err
	}
	if err := requireRoles(ds, dataset.RoleStore); err != nil {
		return nil, err
	}

	idx := map[string]int{}
	var stores []StoreSummary
	customers := map[string]map[string]struct{}{}
	type key struct{ store, product string }
	items := map[key]*ProductSales{}

	for _, r := range ds.Records() {
		i, ok := idx[r.StoreType]
		if !ok {
			i = len(stores)
			idx[r.StoreType] = i
			stores = append(stores, StoreSummary{StoreType: r.StoreType})
			customers[r.StoreType] = map[string]struct{}{}
		}
		stores[i].TotalCost += r.Cost
		stores[i].TotalItems += r.Items
		stores[i].Transactions++
		customers[r.StoreType][r.Customer] = struct{}{}

		if mode != VariantTopPerLocation {
			continue
		}
		for _, p := range r.Products {
			k := key{r.StoreType, p}
			ps, ok := items[k]
			if !ok {
				ps = &ProductSales{Store: r.StoreType, Product: p}
				items[k] = ps
			}
			ps.Quantity += share(r.Items, len(r.Products))
			ps.Sales += share(r.Cost, len(r.Products))
		}
	}
	for i := range stores {
		stores[i].Customers = len(customers[stores[i].StoreType])
	}
	sort.SliceStable(stores, func(i, j int) bool {
		if stores[i].TotalCost != stores[j].TotalCost {
			return stores[i].TotalCost > stores[j].TotalCost
		}
		return stores[i].StoreType < stores[j].StoreType
	})

	out := &StorePerformance{Stores: stores}
	if mode == VariantTopPerLocation {
		all := make([]ProductSales, 0, len(items))
		for _, ps := range items {
			all = append(all, *ps)
		}
		out.TopItems = topPerStore(all, c.Top.TopPerLocation, func(p ProductSales) float64 { return p.Quantity })
	}
	return out, nil
}
