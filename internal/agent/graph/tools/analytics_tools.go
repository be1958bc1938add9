package tools

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/retail-analyst/server/internal/agent/model"
	"github.com/retail-analyst/server/internal/analytics"
	"github.com/retail-analyst/server/internal/dataset"
)

type NoInput struct{}

type VariantInput struct {
	Variant string `json:"variant,omitempty"`
}

type BreakdownInput struct {
	Dimension string `json:"dimension"`
}

type OverTimeInput struct {
	Granularity string `json:"granularity,omitempty"`
}

func variantParam(desc string, variants ...string) map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"variant": {
			Type: schema.String,
			Desc: desc,
			Enum: variants,
		},
	}
}

func (c *Catalog) customerSegmentationTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolCustomerSegmentation,
			Desc: "Cluster customers into three spending segments (Budget Conscious, Average Spenders, High-Value Customers) " +
				"from their mean transaction cost and mean items per transaction. Returns per segment customer count, " +
				"mean cost, mean items, mean purchase frequency and total cost.",
		},
		func(ctx context.Context, _ *NoInput) (*model.ToolResult, error) {
			return c.exec(ToolCustomerSegmentation, func(ds *dataset.Dataset) (any, error) {
				seg, err := c.analytics.SegmentCustomers(ds)
				if err != nil {
					return nil, err
				}
				// Per-customer assignments are too large for the model context.
				return seg.Segments, nil
			}), nil
		},
	)
}

func (c *Catalog) seasonalTrendsTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSeasonalTrends,
			Desc: "Total sales per season and year. With variant \"anomaly\" also returns year-over-year change per season, " +
				"flags changes above 20%, flags seasons more than two standard deviations from their average and names the peak season.",
			ParamsOneOf: schema.NewParamsOneOfByParams(variantParam(
				"Leave empty for the season by year totals, or \"anomaly\" for anomaly detection.",
				analytics.VariantAnomaly,
			)),
		},
		func(ctx context.Context, in *VariantInput) (*model.ToolResult, error) {
			return c.exec(ToolSeasonalTrends, func(ds *dataset.Dataset) (any, error) {
				return c.analytics.SeasonalTrends(ds, in.Variant)
			}), nil
		},
	)
}

func (c *Catalog) customerLifetimeValueTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolCustomerLifetimeValue,
			Desc: "Top customers by total spend across all their transactions, highest first.",
		},
		func(ctx context.Context, _ *NoInput) (*model.ToolResult, error) {
			return c.exec(ToolCustomerLifetimeValue, func(ds *dataset.Dataset) (any, error) {
				return c.analytics.CustomerLifetimeValue(ds)
			}), nil
		},
	)
}

func (c *Catalog) productPerformanceTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolProductPerformance,
			Desc: "Product sales by store. By default returns the top products by sales across all stores. " +
				"With variant \"top per location\" returns the best selling products by quantity for every store.",
			ParamsOneOf: schema.NewParamsOneOfByParams(variantParam(
				"Leave empty for the overall ranking, or \"top per location\" for a ranking per store.",
				analytics.VariantTopPerLocation,
			)),
		},
		func(ctx context.Context, in *VariantInput) (*model.ToolResult, error) {
			return c.exec(ToolProductPerformance, func(ds *dataset.Dataset) (any, error) {
				return c.analytics.ProductPerformance(ds, in.Variant)
			}), nil
		},
	)
}

func (c *Catalog) storePerformanceTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolStorePerformance,
			Desc: "Total cost, total items, transactions and distinct customers per store type. " +
				"With variant \"top per location\" also lists the top items of each store type.",
			ParamsOneOf: schema.NewParamsOneOfByParams(variantParam(
				"Leave empty for the store summary, or \"top per location\" to add top items per store type.",
				analytics.VariantTopPerLocation,
			)),
		},
		func(ctx context.Context, in *VariantInput) (*model.ToolResult, error) {
			return c.exec(ToolStorePerformance, func(ds *dataset.Dataset) (any, error) {
				return c.analytics.StorePerformance(ds, in.Variant)
			}), nil
		},
	)
}

func (c *Catalog) promotionEffectivenessTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolPromotionEffect,
			Desc: "Discount rate (discount divided by cost) per store type with total cost and items, plus the mean " +
				"transaction value per promotion. With variant \"correlation\" also returns the store types where discount " +
				"rate and cost are positively correlated, strongest first.",
			ParamsOneOf: schema.NewParamsOneOfByParams(variantParam(
				"Leave empty for the summary, or \"correlation\" for the most effective promotions.",
				analytics.VariantCorrelation,
			)),
		},
		func(ctx context.Context, in *VariantInput) (*model.ToolResult, error) {
			return c.exec(ToolPromotionEffect, func(ds *dataset.Dataset) (any, error) {
				return c.analytics.PromotionEffectiveness(ds, in.Variant)
			}), nil
		},
	)
}

func (c *Catalog) salesBreakdownTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSalesBreakdown,
			Desc: "Total, mean and count of sales grouped by one dimension, highest total first.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"dimension": {
					Type:     schema.String,
					Desc:     "Dimension to group by: " + strings.Join(analytics.Dimensions(), ", ") + ".",
					Enum:     analytics.Dimensions(),
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *BreakdownInput) (*model.ToolResult, error) {
			return c.exec(ToolSalesBreakdown, func(ds *dataset.Dataset) (any, error) {
				return c.analytics.SalesBreakdown(ds, in.Dimension)
			}), nil
		},
	)
}

func (c *Catalog) salesOverTimeTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSalesOverTime,
			Desc: "Total sales, mean transaction value and transaction count per time period, oldest first.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"granularity": {
					Type: schema.String,
					Desc: "Period size: day, week, month (default) or year.",
					Enum: analytics.Granularities(),
				},
			}),
		},
		func(ctx context.Context, in *OverTimeInput) (*model.ToolResult, error) {
			return c.exec(ToolSalesOverTime, func(ds *dataset.Dataset) (any, error) {
				return c.analytics.SalesOverTime(ds, in.Granularity)
			}), nil
		},
	)
}

func (c *Catalog) purchaseFrequencyTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolPurchaseFrequency,
			Desc: "Customers with the most transactions, with their total spend.",
		},
		func(ctx context.Context, _ *NoInput) (*model.ToolResult, error) {
			return c.exec(ToolPurchaseFrequency, func(ds *dataset.Dataset) (any, error) {
				return c.analytics.PurchaseFrequency(ds)
			}), nil
		},
	)
}

func (c *Catalog) salesOverviewTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSalesOverview,
			Desc: "Headline KPIs: total sales, average transaction value, transaction count, unique customers, " +
				"total items, share of discounted transactions and the covered date range.",
		},
		func(ctx context.Context, _ *NoInput) (*model.ToolResult, error) {
			return c.exec(ToolSalesOverview, func(ds *dataset.Dataset) (any, error) {
				return c.analytics.Overview(ds)
			}), nil
		},
	)
}
