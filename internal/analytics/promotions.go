package analytics

import (
	"sort"

	errx "github.com/retail-analyst/server/internal/core/error"
	"github.com/retail-analyst/server/internal/dataset"
)

// PromotionStore aggregates discount behaviour of one store type.
type PromotionStore struct {
	StoreType        string  `json:"store_type"`
	MeanDiscountRate float64 `json:"mean_discount_rate"`
	TotalCost        float64 `json:"total_cost"`
	TotalItems       float64 `json:"total_items"`
	Transactions     int     `json:"transactions"`
}

// PromotionValue is the mean transaction value under one promotion.
type PromotionValue struct {
	Promotion            string  `json:"promotion"`
	MeanTransactionValue float64 `json:"mean_transaction_value"`
	Transactions         int     `json:"transactions"`
}

// PromotionCorrelation is the discount rate to cost correlation within a store type.
type PromotionCorrelation struct {
	StoreType   string  `json:"store_type"`
	Correlation float64 `json:"correlation"`
	Samples     int     `json:"samples"`
}

// PromotionEffectiveness is the result of the promotion effectiveness tool.
// MostEffective is only set by the "correlation" variant.
type PromotionEffectiveness struct {
	Stores           []PromotionStore       `json:"stores"`
	ByPromotion      []PromotionValue       `json:"by_promotion,omitempty"`
	MostEffective    []PromotionCorrelation `json:"most_effective_promotions,omitempty"`
	ExcludedZeroCost int                    `json:"excluded_zero_cost_rows,omitempty"`
}

// PromotionEffectiveness computes a discount rate (discount / cost) per row
// and aggregates it per store type. Rows with zero cost have no rate and are
// excluded. The "correlation" variant returns the store types where rate and
// cost are positively correlated, strongest first.
func (c *Catalog) PromotionEffectiveness(ds *dataset.Dataset, v string) (*PromotionEffectiveness, error) {
	mode, err := variant(v, VariantCorrelation)
	if err != nil {
		return nil, err
	}
	if err := nonEmpty(ds); err != nil {
		return nil, err
	}
	if err := requireRoles(ds, dataset.RoleStore, dataset.RoleDiscount); err != nil {
		return nil, err
	}

	type acc struct {
		PromotionStore
		rates []float64
		costs []float64
	}
	idx := map[string]int{}
	var stores []*acc
	excluded := 0
	for _, r := range ds.Records() {
		if r.Cost == 0 {
			excluded++
			continue
		}
		i, ok := idx[r.StoreType]
		if !ok {
			i = len(stores)
			idx[r.StoreType] = i
			stores = append(stores, &acc{PromotionStore: PromotionStore{StoreType: r.StoreType}})
		}
		a := stores[i]
		a.rates = append(a.rates, r.Discount/r.Cost)
		a.costs = append(a.costs, r.Cost)
		a.TotalCost += r.Cost
		a.TotalItems += r.Items
		a.Transactions++
	}
	if len(stores) == 0 {
		return nil, errx.Compute(errx.ErrDivisionByZero, "every row has zero total cost, discount rate is undefined")
	}

	out := &PromotionEffectiveness{ExcludedZeroCost: excluded}
	for _, a := range stores {
		a.MeanDiscountRate = mean(a.rates)
		out.Stores = append(out.Stores, a.PromotionStore)
		if mode != VariantCorrelation {
			continue
		}
		if r, ok := pearson(a.rates, a.costs); ok && r > 0 {
			out.MostEffective = append(out.MostEffective, PromotionCorrelation{StoreType: a.StoreType, Correlation: r, Samples: len(a.rates)})
		}
	}
	sort.SliceStable(out.Stores, func(i, j int) bool { return out.Stores[i].StoreType < out.Stores[j].StoreType })
	sort.SliceStable(out.MostEffective, func(i, j int) bool {
		a, b := out.MostEffective[i], out.MostEffective[j]
		if a.Correlation != b.Correlation {
			return a.Correlation > b.Correlation
		}
		return a.StoreType < b.StoreType
	})
	out.ByPromotion = byPromotion(ds)
	return out, nil
}

// byPromotion reports the mean transaction value per promotion, highest first.
func byPromotion(ds *dataset.Dataset) []PromotionValue {
	if _, ok := ds.Schema()[dataset.RolePromotion]; !ok {
		return nil
	}
	idx := map[string]int{}
	var out []PromotionValue
	for _, r := range ds.Records() {
		i, ok := idx[r.Promotion]
		if !ok {
			i = len(out)
			idx[r.Promotion] = i
			out = append(out, PromotionValue{Promotion: r.Promotion})
		}
		out[i].MeanTransactionValue += r.Cost
		out[i].Transactions++
	}
	for i := range out {
		out[i].MeanTransactionValue /= float64(out[i].Transactions)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MeanTransactionValue != out[j].MeanTransactionValue {
			return out[i].MeanTransactionValue > out[j].MeanTransactionValue
		}
		return out[i].Promotion < out[j].Promotion
	})
	return out
}
