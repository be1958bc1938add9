package analytics

import (
	"sort"

	"github.com/retail-analyst/server/internal/dataset"
)

// CustomerValue is the lifetime spend of one customer.
type CustomerValue struct {
	Customer string  `json:"customer"`
	Total    float64 `json:"total"`
}

// CustomerFrequency counts the transactions of one customer.
type CustomerFrequency struct {
	Customer     string  `json:"customer"`
	Transactions int     `json:"transactions"`
	TotalCost    float64 `json:"total_cost"`
}

// CustomerLifetimeValue returns the customers with the highest total spend,
// highest first. Ties are broken by name.
func (c *Catalog) CustomerLifetimeValue(ds *dataset.Dataset) ([]CustomerValue, error) {
	if err := nonEmpty(ds); err != nil {
		return nil, err
	}
	customers := perCustomer(ds)
	out := make([]CustomerValue, len(customers))
	for i, cs := range customers {
		out[i] = CustomerValue{Customer: cs.name, Total: cs.cost}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Customer < out[j].Customer
	})
	return head(out, c.Top.TopCustomers), nil
}

// PurchaseFrequency returns the customers with the most transactions.
func (c *Catalog) PurchaseFrequency(ds *dataset.Dataset) ([]CustomerFrequency, error) {
	if err := nonEmpty(ds); err != nil {
		return nil, err
	}
	customers := perCustomer(ds)
	out := make([]CustomerFrequency, len(customers))
	for i, cs := range customers {
		out[i] = CustomerFrequency{Customer: cs.name, Transactions: cs.n, TotalCost: cs.cost}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Transactions != out[j].Transactions {
			return out[i].Transactions > out[j].Transactions
		}
		return out[i].Customer < out[j].Customer
	})
	return head(out, c.Top.TopFrequentCustomers), nil
}

func head[T any](xs []T, n int) []T {
	if n > 0 && len(xs) > n {
		return xs[:n]
	}
	return xs
}
