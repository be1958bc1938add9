package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retail-analyst/server/internal/agent/model"
	"github.com/retail-analyst/server/internal/dataset"
)

const retailCSV = `Transaction_ID,Date,Customer_Name,Product,Total_Items,Total_Cost,Payment_Method,City,Store_Type,Discount_Applied,Customer_Category,Season,Promotion
1000000000,2022-12-21 06:27:29,Stacey Price,"['Ketchup', 'Shaving Cream']",3,71.65,Mobile Payment,Los Angeles,Warehouse Club,True,Homemaker,Spring,None
1000000001,2023-07-01 13:05:11,Ryan Wright,['Bread'],2,25.93,Cash,San Francisco,Supermarket,False,Professional,Winter,BOGO (Buy One Get One)
`

func TestRenderAnalystSystem(t *testing.T) {
	ds, err := dataset.Parse("retail.csv", strings.NewReader(retailCSV))
	require.NoError(t, err)

	infos := []*schema.ToolInfo{
		{Name: "seasonal_trends", Desc: "Sales per season."},
		nil,
	}
	out, err := RenderAnalystSystem(context.Background(), model.AnalystPromptConfig{BusinessName: "Acme Mart", Currency: "EUR"}, ds, infos)
	require.NoError(t, err)

	assert.Contains(t, out, "working for Acme Mart")
	assert.Contains(t, out, `dataset "retail.csv"`)
	assert.Contains(t, out, "Monetary values are in EUR")
	assert.Contains(t, out, "Rows: 2")
	assert.Contains(t, out, "Period: 2022-12-21 to 2023-07-01")
	assert.Contains(t, out, "- seasonal_trends: Sales per season.")
	assert.Contains(t, out, "Use query_transactions only")
}

func TestRenderAnalystSystemWithoutDataset(t *testing.T) {
	out, err := RenderAnalystSystem(context.Background(), model.AnalystPromptConfig{BusinessName: "Acme Mart", Currency: "USD"}, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Rows: 0")
	assert.Contains(t, out, "Period: n/a to n/a")
}
