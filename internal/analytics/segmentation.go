package analytics

import (
	"sort"

	errx "github.com/retail-analyst/server/internal/core/error"
	"github.com/retail-analyst/server/internal/dataset"
)

const segmentCount = 3

// Segment labels, lowest spend first.
var segmentLabels = [segmentCount]string{"Budget Conscious", "Average Spenders", "High-Value Customers"}

// Segment summarizes the customers of one cluster.
type Segment struct {
	Label         string  `json:"label"`
	Customers     int     `json:"customers"`
	MeanCost      float64 `json:"mean_cost"`
	MeanItems     float64 `json:"mean_items"`
	MeanFrequency float64 `json:"mean_purchase_frequency"`
	TotalCost     float64 `json:"total_cost"`
}

// Assignment places one customer in a segment. Together the assignments form
// a derived table; the dataset itself is never modified.
type Assignment struct {
	Customer     string  `json:"customer"`
	Segment      string  `json:"segment"`
	MeanCost     float64 `json:"mean_cost"`
	MeanItems    float64 `json:"mean_items"`
	Transactions int     `json:"transactions"`
	TotalCost    float64 `json:"total_cost"`
}

// Segmentation is the result of SegmentCustomers.
type Segmentation struct {
	Segments    []Segment    `json:"segments"`
	Assignments []Assignment `json:"assignments"`
}

type customerStats struct {
	name  string
	n     int
	cost  float64
	items float64
}

// SegmentCustomers clusters customers on their mean transaction cost and mean
// item count. Clusters are ordered by mean cost before they are labelled, so
// labels do not depend on the internal cluster numbering.
func (c *Catalog) SegmentCustomers(ds *dataset.Dataset) (*Segmentation, error) {
	if err := nonEmpty(ds); err != nil {
		return nil, err
	}
	customers := perCustomer(ds)
	if len(customers) < segmentCount {
		return nil, errx.Compute(errx.ErrInsufficientData, "segmentation needs at least %d customers, found %d", segmentCount, len(customers))
	}

	features := make([][]float64, len(customers))
	for i, cs := range customers {
		features[i] = []float64{cs.cost / float64(cs.n), cs.items / float64(cs.n)}
	}
	fit := kmeans(standardize(features), segmentCount)

	// Rank clusters by the mean spend of their members in original units.
	spend := make([]float64, segmentCount)
	members := make([]int, segmentCount)
	for i, l := range fit.labels {
		spend[l] += features[i][0]
		members[l]++
	}
	order := []int{0, 1, 2}
	sort.SliceStable(order, func(a, b int) bool {
		ma, mb := clusterMean(spend[order[a]], members[order[a]]), clusterMean(spend[order[b]], members[order[b]])
		if ma != mb {
			return ma < mb
		}
		return fit.centroids[order[a]][0] < fit.centroids[order[b]][0]
	})
	rank := make([]int, segmentCount)
	for pos, cluster := range order {
		rank[cluster] = pos
	}

	out := &Segmentation{
		Segments:    make([]Segment, segmentCount),
		Assignments: make([]Assignment, len(customers)),
	}
	freq := make([]float64, segmentCount)
	items := make([]float64, segmentCount)
	for pos := range out.Segments {
		out.Segments[pos].Label = segmentLabels[pos]
	}
	for i, cs := range customers {
		pos := rank[fit.labels[i]]
		seg := &out.Segments[pos]
		seg.Customers++
		seg.MeanCost += features[i][0]
		items[pos] += features[i][1]
		freq[pos] += float64(cs.n)
		seg.TotalCost += cs.cost
		out.Assignments[i] = Assignment{
			Customer:     cs.name,
			Segment:      segmentLabels[pos],
			MeanCost:     features[i][0],
			MeanItems:    features[i][1],
			Transactions: cs.n,
			TotalCost:    cs.cost,
		}
	}
	for pos := range out.Segments {
		seg := &out.Segments[pos]
		if seg.Customers == 0 {
			continue
		}
		n := float64(seg.Customers)
		seg.MeanCost /= n
		seg.MeanItems = items[pos] / n
		seg.MeanFrequency = freq[pos] / n
	}
	return out, nil
}

func clusterMean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// perCustomer aggregates transactions by customer, sorted by name.
func perCustomer(ds *dataset.Dataset) []customerStats {
	idx := map[string]int{}
	var out []customerStats
	for _, r := range ds.Records() {
		i, ok := idx[r.Customer]
		if !ok {
			i = len(out)
			idx[r.Customer] = i
			out = append(out, customerStats{name: r.Customer})
		}
		out[i].n++
		out[i].cost += r.Cost
		out[i].items += r.Items
	}
	sort.Slice(out, func(a, b int) bool { return out[a].name < out[b].name })
	return out
}
