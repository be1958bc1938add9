package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/retail-analyst/server/internal/agent/model"
	"github.com/retail-analyst/server/internal/dataset"
)

func (c *Catalog) queryTransactionsTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolQueryTransactions,
			Desc: "Free-form query over the raw transaction table for questions the other tools do not answer. " +
				"Filter rows, then either list them or group them and aggregate one column. " +
				"Column names are matched case-insensitively; derived Month, Year and Season columns are available.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"filters": {
					Type: schema.Array,
					Desc: "Row filters, all of which must hold.",
					ElemInfo: &schema.ParameterInfo{
						Type: schema.Object,
						SubParams: map[string]*schema.ParameterInfo{
							"column": {Type: schema.String, Desc: "Column name.", Required: true},
							"op": {
								Type: schema.String,
								Desc: "Comparison; eq, ne and contains ignore case, gt and lt compare numbers. Default eq.",
								Enum: []string{string(dataset.OpEq), string(dataset.OpNe), string(dataset.OpContains), string(dataset.OpGt), string(dataset.OpLt)},
							},
							"value": {Type: schema.String, Desc: "Value to compare with.", Required: true},
						},
					},
				},
				"group_by": {
					Type:     schema.Array,
					Desc:     "Columns to group by.",
					ElemInfo: &schema.ParameterInfo{Type: schema.String},
				},
				"metric": {
					Type: schema.String,
					Desc: "Aggregation per group. sum, mean, min and max need value. Default count.",
					Enum: []string{
						string(dataset.MetricCount), string(dataset.MetricSum), string(dataset.MetricMean),
						string(dataset.MetricNUnique), string(dataset.MetricMin), string(dataset.MetricMax),
					},
				},
				"value": {Type: schema.String, Desc: "Column the metric is computed over."},
				"limit": {
					Type: schema.Integer,
					Desc: fmt.Sprintf("Maximum rows returned (default %d, max %d).", dataset.DefaultQueryLimit, dataset.MaxQueryLimit),
				},
				"ascending": {Type: schema.Boolean, Desc: "Sort groups by metric ascending instead of descending."},
			}),
		},
		func(ctx context.Context, in *dataset.Query) (*model.ToolResult, error) {
			return c.exec(ToolQueryTransactions, func(ds *dataset.Dataset) (any, error) {
				return ds.Run(*in)
			}), nil
		},
	)
}
