package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/retail-analyst/server/internal/agent/graph/tools"
	"github.com/retail-analyst/server/internal/agent/model"
	"github.com/retail-analyst/server/internal/dataset"
)

//go:embed template/analyst_prompt.txt
var analystSystemPrompt string

type toolLine struct {
	Name string
	Desc string
}

// RenderAnalystSystem renders the analyst system prompt for the current
// dataset snapshot through the eino prompt component, which emits prompt callbacks.
func RenderAnalystSystem(ctx context.Context, config model.AnalystPromptConfig, ds *dataset.Dataset, infos []*schema.ToolInfo) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(analystSystemPrompt),
	)

	lines := make([]toolLine, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		lines = append(lines, toolLine{Name: info.Name, Desc: info.Desc})
	}

	vars := map[string]any{
		"BusinessName": config.BusinessName,
		"Currency":     config.Currency,
		"QueryTool":    tools.ToolQueryTransactions,
		"DatasetName":  "unknown",
		"Rows":         0,
		"FirstDate":    "n/a",
		"LastDate":     "n/a",
		"Columns":      "",
		"Tools":        lines,
	}
	if ds != nil {
		vars["DatasetName"] = ds.Name()
		vars["Rows"] = ds.Len()
		vars["Columns"] = strings.Join(ds.Columns(), ", ")
		if first, last, ok := dateRange(ds); ok {
			vars["FirstDate"] = first
			vars["LastDate"] = last
		}
	}

	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("analyst prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("analyst prompt render: empty result")
	}
	return msgs[0].Content, nil
}

func dateRange(ds *dataset.Dataset) (string, string, bool) {
	if ds.Len() == 0 {
		return "", "", false
	}
	first, last := ds.Date(0), ds.Date(0)
	for i := 1; i < ds.Len(); i++ {
		d := ds.Date(i)
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first.Format("2006-01-02"), last.Format("2006-01-02"), true
}
