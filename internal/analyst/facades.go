package analyst

import (
	"context"
	"sort"
	"strings"

	errx "github.com/retail-analyst/server/internal/core/error"
)

// CustomAnalysis is the analysis type that takes a caller supplied question.
const CustomAnalysis = "custom"

// Facade is a canned analysis: one or more fixed questions asked in order.
type Facade struct {
	Type      string   `json:"analysis_type"`
	Title     string   `json:"title"`
	Questions []string `json:"questions"`
}

var defaultFacades = []Facade{
	{"product", "Product analysis", []string{"What are the top 5 products by total sales?"}},
	{"customer", "Customer analysis", []string{
		"Can you perform customer segmentation and describe the characteristics of each segment?",
		"Who are our top 10 customers by lifetime value?",
	}},
	{"seasonal", "Seasonal analysis", []string{"What are the seasonal trends in our sales data?"}},
	{"financial", "Financial analysis", []string{"Is there a correlation between discount applied and total cost?"}},
	{"transaction", "Transaction analysis", []string{
		"What's the most common payment method for high-value transactions?",
		"How does the average transaction value vary across different store types?",
	}},
	{"anomaly", "Anomaly detection", []string{"Can you identify any interesting patterns or anomalies in the data?"}},
	{"gender_based_item", "Items by gender", []string{"What are the top products purchased by male and female customers?"}},
	{"location_based_category", "Categories by location", []string{"What are the top categories of products sold in each location?"}},
	{"location_based_item", "Items by location", []string{"What are the top products sold in each location?"}},
	{"payment_method", "Payment methods", []string{"What are the most common payment methods used by customers in each location and category?"}},
	{"basket_size", "Basket size", []string{"What is the average basket size, and how does it vary by store type and season?"}},
	{"profit_margin", "Revenue and discount margin", []string{"Which store types and products lose the most revenue to discounts relative to their sales?"}},
	{"product_association", "Product association", []string{"Which products are most often bought together in the same transaction?"}},
	{"customer_spending_behavior", "Customer spending behavior", []string{"How does spending behavior differ across customer segments and customer categories?"}},
	{"customer_retention", "Customer retention", []string{"How many customers purchase again in a later month, and how does that differ by customer category?"}},
	{"product_return", "Low-volume products", []string{"Which products sell in the lowest quantities relative to how often they appear in transactions?"}},
	{"weather_impact", "Seasonal impact", []string{"How do sales and basket size change between seasons, and which season is strongest?"}},
	{"loyalty_program", "Loyal customers", []string{"Who are the most frequent customers, and how does their spending compare to the average customer?"}},
	{"underperforming_products", "Underperforming products", []string{"Which products have the lowest total sales, and in which store types do they underperform?"}},
	{"marketing_channel_effectiveness", "Promotion channels", []string{"Which promotions and payment methods are associated with the highest average transaction value?"}},
	{"repeat_purchase_interval", "Repeat purchase interval", []string{"How often do repeat customers come back, measured by transactions per customer over time?"}},
	{"urban_rural_sales", "Sales by city", []string{"How are sales distributed across cities, and which cities lead in average transaction value?"}},
	{"staff_training_impact", "Store type comparison", []string{"Which store types show the highest sales per transaction and the most distinct customers?"}},
	{"seasonal_promotion_impact", "Seasonal promotion impact", []string{"How does the effect of promotions on sales change from season to season?"}},
	{"optimal_pricing", "Discount and pricing", []string{"Is there a discount rate range that is associated with higher total cost per transaction?"}},
	{"promotion", "Promotion analysis", []string{"What are the promotions that cause the greatest increase in sales?"}},
}

// Facades binds the canned analyses to an Analyzer.
type Facades struct {
	analyzer Analyzer
	byType   map[string]Facade
}

func NewFacades(analyzer Analyzer) *Facades {
	f := &Facades{analyzer: analyzer, byType: make(map[string]Facade, len(defaultFacades))}
	for _, fc := range defaultFacades {
		f.byType[fc.Type] = fc
	}
	return f
}

// Types lists the canned analysis types, sorted.
func (f *Facades) Types() []string {
	out := make([]string, 0, len(f.byType))
	for t := range f.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// List returns the canned analyses, sorted by type.
func (f *Facades) List() []Facade {
	out := make([]Facade, 0, len(f.byType))
	for _, t := range f.Types() {
		out = append(out, f.byType[t])
	}
	return out
}

// Lookup returns the facade for analysisType.
func (f *Facades) Lookup(analysisType string) (Facade, bool) {
	fc, ok := f.byType[normalizeType(analysisType)]
	return fc, ok
}

// Run asks the questions of analysisType in order and joins the answers.
func (f *Facades) Run(ctx context.Context, analysisType string) (string, error) {
	fc, ok := f.Lookup(analysisType)
	if !ok {
		return "", errx.Invalid(errx.ErrUnknownAnalysis, "%q", analysisType)
	}
	answers := make([]string, 0, len(fc.Questions))
	for _, q := range fc.Questions {
		a, err := f.analyzer.Analyze(ctx, q)
		if err != nil {
			return "", err
		}
		answers = append(answers, a)
	}
	return strings.Join(answers, "\n\n"), nil
}

// Ask answers a custom question.
func (f *Facades) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errx.Invalid(errx.ErrInvalidInput, "custom question is required for custom analysis")
	}
	return f.analyzer.Analyze(ctx, question)
}

// Dispatch runs analysisType, or the custom question when analysisType is "custom".
func (f *Facades) Dispatch(ctx context.Context, analysisType, customQuestion string) (string, error) {
	if normalizeType(analysisType) == CustomAnalysis {
		return f.Ask(ctx, customQuestion)
	}
	return f.Run(ctx, analysisType)
}

func normalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
