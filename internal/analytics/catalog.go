// Package analytics holds the deterministic computations exposed as tools.
// Every method reads an immutable *dataset.Dataset and returns a typed result
// or an errx compute-stage error.
package analytics

import (
	"strings"

	errx "github.com/retail-analyst/server/internal/core/error"
	"github.com/retail-analyst/server/internal/dataset"
)

// Variant discriminators accepted by the tools.
const (
	VariantTopPerLocation = "top per location"
	VariantAnomaly        = "anomaly"
	VariantCorrelation    = "correlation"
)

// Thresholds bound the size of ranked results.
type Thresholds struct {
	TopCustomers         int `envconfig:"TOOL_TOP_CUSTOMERS" default:"10"`
	TopProducts          int `envconfig:"TOOL_TOP_PRODUCTS" default:"10"`
	TopPerLocation       int `envconfig:"TOOL_TOP_PER_LOCATION" default:"5"`
	TopFrequentCustomers int `envconfig:"TOOL_TOP_FREQUENT_CUSTOMERS" default:"20"`
	TopCities            int `envconfig:"TOOL_TOP_CITIES" default:"10"`
}

// DefaultThresholds returns the ranking sizes used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TopCustomers:         10,
		TopProducts:          10,
		TopPerLocation:       5,
		TopFrequentCustomers: 20,
		TopCities:            10,
	}
}

// Catalog runs the analytical tools.
type Catalog struct {
	Top Thresholds
}

// NewCatalog fills unset thresholds with defaults.
func NewCatalog(top Thresholds) *Catalog {
	def := DefaultThresholds()
	if top.TopCustomers <= 0 {
		top.TopCustomers = def.TopCustomers
	}
	if top.TopProducts <= 0 {
		top.TopProducts = def.TopProducts
	}
	if top.TopPerLocation <= 0 {
		top.TopPerLocation = def.TopPerLocation
	}
	if top.TopFrequentCustomers <= 0 {
		top.TopFrequentCustomers = def.TopFrequentCustomers
	}
	if top.TopCities <= 0 {
		top.TopCities = def.TopCities
	}
	return &Catalog{Top: top}
}

// variant normalizes a discriminator and checks it against the allowed set.
// The empty string always selects the default shape.
func variant(v string, allowed ...string) (string, error) {
	v = strings.Join(strings.Fields(strings.ToLower(v)), " ")
	if v == "" {
		return "", nil
	}
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", errx.Compute(errx.ErrUnknownVariant, "%q (known: %s)", v, strings.Join(allowed, ", "))
}

func nonEmpty(ds *dataset.Dataset) error {
	if ds == nil || ds.Len() == 0 {
		return errx.Compute(errx.ErrEmptyData, "dataset has no rows")
	}
	return nil
}

// requireRoles fails when the dataset has no column for one of roles.
func requireRoles(ds *dataset.Dataset, roles ...dataset.Role) error {
	schema := ds.Schema()
	var missing []string
	for _, r := range roles {
		if _, ok := schema[r]; !ok {
			missing = append(missing, string(r))
		}
	}
	if len(missing) > 0 {
		return errx.Compute(errx.ErrColumnNotFound, "no column for %s in [%s]",
			strings.Join(missing, ", "), strings.Join(ds.Columns(), ", "))
	}
	return nil
}
