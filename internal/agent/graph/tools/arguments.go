package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/retail-analyst/server/internal/dataset"
)

// SanitizeArguments coerces model-produced tool arguments into the shapes the
// tool inputs decode. It never fails: arguments that are not a JSON object
// become "{}".
func SanitizeArguments(name, arguments string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil || m == nil {
		return "{}"
	}

	switch name {
	case ToolSeasonalTrends, ToolProductPerformance, ToolStorePerformance, ToolPromotionEffect:
		trimString(m, "variant")
	case ToolSalesBreakdown:
		trimString(m, "dimension")
	case ToolSalesOverTime:
		trimString(m, "granularity")
	case ToolQueryTransactions:
		sanitizeQuery(m)
	default:
		// No-argument tools ignore whatever the model sent.
		if _, ok := toolsWithoutArguments[name]; ok {
			return "{}"
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return arguments
	}
	return string(b)
}

var toolsWithoutArguments = map[string]struct{}{
	ToolCustomerSegmentation:  {},
	ToolCustomerLifetimeValue: {},
	ToolPurchaseFrequency:     {},
	ToolSalesOverview:         {},
}

// trimString trims a string field and drops it when it has another type.
func trimString(m map[string]any, key string) {
	v, ok := m[key]
	if !ok {
		return
	}
	if s, ok := v.(string); ok {
		m[key] = strings.TrimSpace(s)
		return
	}
	delete(m, key)
}

func sanitizeQuery(m map[string]any) {
	trimString(m, "value")
	if v, ok := m["metric"].(string); ok {
		m["metric"] = strings.ToLower(strings.TrimSpace(v))
	} else {
		delete(m, "metric")
	}

	if v, ok := m["limit"]; ok {
		switch vv := v.(type) {
		case float64:
			m["limit"] = clampInt(int(vv), 1, dataset.MaxQueryLimit)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(vv)); err == nil {
				m["limit"] = clampInt(n, 1, dataset.MaxQueryLimit)
			} else {
				delete(m, "limit")
			}
		default:
			delete(m, "limit")
		}
	}

	if v, ok := m["ascending"]; ok {
		switch vv := v.(type) {
		case bool:
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(vv))
			if err != nil {
				delete(m, "ascending")
			} else {
				m["ascending"] = b
			}
		default:
			delete(m, "ascending")
		}
	}

	if v, ok := m["group_by"]; ok {
		switch vv := v.(type) {
		case string:
			m["group_by"] = splitList(vv)
		case []any:
			cols := make([]string, 0, len(vv))
			for _, c := range vv {
				if s := strings.TrimSpace(fmt.Sprint(c)); s != "" {
					cols = append(cols, s)
				}
			}
			m["group_by"] = cols
		default:
			delete(m, "group_by")
		}
	}

	if v, ok := m["filters"]; ok {
		list, ok := v.([]any)
		if !ok {
			delete(m, "filters")
			return
		}
		filters := make([]map[string]any, 0, len(list))
		for _, f := range list {
			fm, ok := f.(map[string]any)
			if !ok {
				continue
			}
			for _, k := range []string{"column", "op", "value"} {
				fv, ok := fm[k]
				if !ok || fv == nil {
					continue
				}
				s, isString := fv.(string)
				if !isString {
					s = fmt.Sprint(fv)
				}
				fm[k] = strings.TrimSpace(s)
			}
			if op, ok := fm["op"].(string); ok {
				fm["op"] = strings.ToLower(op)
			}
			filters = append(filters, fm)
		}
		m["filters"] = filters
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// clampInt returns v limited to [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
