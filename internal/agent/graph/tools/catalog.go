package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/retail-analyst/server/internal/agent/model"
	"github.com/retail-analyst/server/internal/analytics"
	errx "github.com/retail-analyst/server/internal/core/error"
	"github.com/retail-analyst/server/internal/dataset"
	"github.com/retail-analyst/server/pkg/metrics"
	logx "github.com/retail-analyst/server/pkg/logger"
)

const (
	ToolCustomerSegmentation  = "customer_segmentation"
	ToolSeasonalTrends        = "seasonal_trends"
	ToolCustomerLifetimeValue = "customer_lifetime_value"
	ToolProductPerformance    = "product_performance"
	ToolStorePerformance      = "store_performance"
	ToolPromotionEffect       = "promotion_effectiveness"
	ToolSalesBreakdown        = "sales_breakdown"
	ToolSalesOverTime         = "sales_over_time"
	ToolPurchaseFrequency     = "purchase_frequency"
	ToolSalesOverview         = "sales_overview"
	ToolQueryTransactions     = "query_transactions"
)

// Catalog exposes the analytical computations as eino tools. Every tool reads
// the store's current snapshot at call time.
type Catalog struct {
	store     *dataset.Store
	analytics *analytics.Catalog
	tools     []tool.InvokableTool
	byName    map[string]tool.InvokableTool
	names     []string
}

// NewCatalog builds the tool set over store.
func NewCatalog(ctx context.Context, store *dataset.Store, an *analytics.Catalog) (*Catalog, error) {
	if store == nil {
		return nil, fmt.Errorf("dataset store is nil")
	}
	if an == nil {
		an = analytics.NewCatalog(analytics.DefaultThresholds())
	}
	c := &Catalog{store: store, analytics: an, byName: map[string]tool.InvokableTool{}}
	c.tools = []tool.InvokableTool{
		c.customerSegmentationTool(),
		c.seasonalTrendsTool(),
		c.customerLifetimeValueTool(),
		c.productPerformanceTool(),
		c.storePerformanceTool(),
		c.promotionEffectivenessTool(),
		c.salesBreakdownTool(),
		c.salesOverTimeTool(),
		c.purchaseFrequencyTool(),
		c.salesOverviewTool(),
		c.queryTransactionsTool(),
	}
	for _, t := range c.tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		c.byName[info.Name] = t
		c.names = append(c.names, info.Name)
	}
	return c, nil
}

// Tools returns the tools for a compose.ToolsNode.
func (c *Catalog) Tools() []tool.BaseTool {
	out := make([]tool.BaseTool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t)
	}
	return out
}

// Infos returns the tool descriptions to bind on a chat model.
func (c *Catalog) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(c.tools))
	for _, t := range c.tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Names lists the tool names in catalog order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Has reports whether name is a known tool.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Invoke runs one tool outside the graph. The returned JSON is a
// model.ToolResult; a computation failure is reported inside it, only an
// unknown tool name is returned as an error.
func (c *Catalog) Invoke(ctx context.Context, name, arguments string) (string, error) {
	t, ok := c.byName[name]
	if !ok {
		return "", errx.Invalid(errx.ErrUnknownAnalysis, "unknown tool %q", name)
	}
	return t.InvokableRun(ctx, SanitizeArguments(name, arguments))
}

// exec runs fn against the current snapshot and folds the outcome into a
// ToolResult. It never returns a Go error, so a failing tool cannot abort the
// reasoning loop.
func (c *Catalog) exec(name string, fn func(ds *dataset.Dataset) (any, error)) (res *model.ToolResult) {
	start := time.Now()
	res = &model.ToolResult{Tool: name}
	outcome := "ok"

	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("tool", name).Interface("panic", r).Msg("tool panicked")
			res = &model.ToolResult{Tool: name, Error: fmt.Sprintf("internal error: %v", r), Kind: "internal"}
			outcome = "error"
		}
		metrics.ToolCalls.WithLabelValues(name, outcome).Inc()
		metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	out, err := fn(c.store.Current())
	if err != nil {
		res.Error = errx.Detail(err)
		res.Kind = errx.KindName(err)
		if errx.IsBenign(err) {
			outcome = "benign"
			logx.Debug().Str("tool", name).Err(err).Msg("tool returned no result")
		} else {
			outcome = "error"
			logx.Warn().Str("tool", name).Str("stage", string(errx.StageOf(err))).Err(err).Msg("tool failed")
		}
		return res
	}
	res.Result = out
	logx.Debug().Str("tool", name).Dur("elapsed", time.Since(start)).Msg("tool completed")
	return res
}
