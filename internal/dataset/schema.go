package dataset

import (
	"errors"
	"fmt"
	"strings"

	errx "github.com/retail-analyst/server/internal/core/error"
)

// Role is the semantic meaning of a column in a retail dataset.
type Role string

const (
	RoleDate        Role = "date"
	RoleTransaction Role = "transaction"
	RoleCustomer    Role = "customer"
	RoleProduct     Role = "product"
	RoleQuantity    Role = "quantity"
	RoleSales       Role = "sales"
	RoleDiscount    Role = "discount"
	RoleStore       Role = "store"
	RoleCity        Role = "city"
	RolePayment     Role = "payment"
	RolePromotion   Role = "promotion"
	RoleCategory    Role = "category"
)

// rolePatterns holds the lower-case name fragments tried for each role, most
// specific first.
var rolePatterns = map[Role][]string{
	RoleDate:        {"date", "timestamp"},
	RoleTransaction: {"transaction_id", "transaction", "order_id", "invoice"},
	RoleCustomer:    {"customer_name", "customer_id", "customer", "client"},
	RoleProduct:     {"product", "item"},
	RoleQuantity:    {"quantity", "qty", "total_items", "items", "units"},
	RoleSales:       {"sales", "total_cost", "revenue", "amount", "cost"},
	RoleDiscount:    {"discount"},
	RoleStore:       {"store", "location"},
	RoleCity:        {"city", "location"},
	RolePayment:     {"payment"},
	RolePromotion:   {"promotion", "promo"},
	RoleCategory:    {"customer_category", "category", "gender"},
}

// Patterns returns the name fragments tried for role.
func Patterns(role Role) []string {
	return append([]string(nil), rolePatterns[role]...)
}

// ColumnMap maps each resolved role to its column name.
type ColumnMap map[Role]string

var errNoMatch = errors.New("no match")

// ResolveColumns assigns a column to every requested role. For each role the
// patterns are tried in order; an exact name match beats a substring match,
// and a pattern that matches more than one column is ambiguous. Two roles may
// not claim the same column.
func ResolveColumns(columns []string, roles ...Role) (ColumnMap, error) {
	cm, f := resolve(columns, roles)
	if f != nil {
		return nil, errx.Compute(f.kind, "%s", f.detail)
	}
	return cm, nil
}

type resolveFailure struct {
	kind   error
	detail string
}

func resolve(columns []string, roles []Role) (ColumnMap, *resolveFailure) {
	cm := make(ColumnMap, len(roles))
	claimed := map[string]Role{}
	var missing []string
	for _, role := range roles {
		col, err := resolveRole(columns, role, nil)
		if errors.Is(err, errNoMatch) {
			missing = append(missing, string(role))
			continue
		}
		if err != nil {
			return nil, &resolveFailure{errx.ErrAmbiguousColumn, err.Error()}
		}
		if other, ok := claimed[strings.ToLower(col)]; ok {
			return nil, &resolveFailure{errx.ErrAmbiguousColumn, fmt.Sprintf("column %q matches both %s and %s", col, other, role)}
		}
		claimed[strings.ToLower(col)] = role
		cm[role] = col
	}
	if len(missing) > 0 {
		return nil, &resolveFailure{errx.ErrColumnNotFound, fmt.Sprintf("no column for %s in [%s]", strings.Join(missing, ", "), strings.Join(columns, ", "))}
	}
	return cm, nil
}

// resolveRole finds the column for role. Columns in taken are not candidates.
func resolveRole(columns []string, role Role, taken map[string]bool) (string, error) {
	patterns, ok := rolePatterns[role]
	if !ok {
		return "", fmt.Errorf("unknown role %q", role)
	}
	free := make([]string, 0, len(columns))
	for _, c := range columns {
		if !taken[strings.ToLower(c)] {
			free = append(free, c)
		}
	}
	for _, p := range patterns {
		for _, c := range free {
			if normalizeName(c) == p {
				return c, nil
			}
		}
		var hits []string
		for _, c := range free {
			if strings.Contains(normalizeName(c), p) {
				hits = append(hits, c)
			}
		}
		switch len(hits) {
		case 0:
			continue
		case 1:
			return hits[0], nil
		default:
			return "", fmt.Errorf("%s matches several columns for %q: %s", role, p, strings.Join(hits, ", "))
		}
	}
	return "", errNoMatch
}

// normalizeName lower-cases a header and folds spaces and hyphens to underscores.
func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
