package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const retailCSV = `Transaction_ID,Date,Customer_Name,Product,Total_Items,Total_Cost,Payment_Method,City,Store_Type,Discount_Applied,Customer_Category,Season,Promotion
1000000000,2022-12-21 06:27:29,Stacey Price,"['Ketchup', 'Shaving Cream']",3,71.65,Mobile Payment,Los Angeles,Warehouse Club,True,Homemaker,Spring,None
1000000001,2023-07-01 13:05:11,Ryan Wright,['Bread'],2,25.93,Cash,San Francisco,Supermarket,False,Professional,Winter,BOGO (Buy One Get One)
1000000002,2023-03-15 09:00:00,Stacey Price,Milk,1,12.40,Credit Card,Los Angeles,Supermarket,False,Homemaker,Fall,Discount on Selected Items
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "retail.csv")
	require.NoError(t, os.WriteFile(path, []byte(retailCSV), 0o644))

	cmd := NewRootCommand("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(dir, "missing.env"), "--dataset", path}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestToolCommandPrintsResult(t *testing.T) {
	out, err := execute(t, "tool", "customer_lifetime_value")
	require.NoError(t, err)

	var res struct {
		Tool   string `json:"tool"`
		Result []struct {
			Customer string  `json:"customer"`
			Total    float64 `json:"total"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "customer_lifetime_value", res.Tool)
	assert.Contains(t, out, "Stacey Price")
}

func TestToolCommandFlagsBecomeArguments(t *testing.T) {
	out, err := execute(t, "tool", "sales_breakdown", "--dimension", "store_type")
	require.NoError(t, err)
	assert.Contains(t, out, "Warehouse Club")
	assert.Contains(t, out, "Supermarket")
}

func TestToolCommandReportsFailure(t *testing.T) {
	out, err := execute(t, "tool", "seasonal_trends", "--variant", "sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown_variant")
	assert.Contains(t, out, `"kind": "unknown_variant"`)
}

func TestToolCommandRejectsUnknownTool(t *testing.T) {
	_, err := execute(t, "tool", "crystal_ball")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestToolCommandRejectsMalformedArguments(t *testing.T) {
	_, err := execute(t, "tool", "sales_breakdown", "{dimension")
	require.Error(t, err)
}

func TestToolsCommandListsCatalog(t *testing.T) {
	out, err := execute(t, "tools")
	require.NoError(t, err)
	assert.Contains(t, out, "customer_segmentation")
	assert.Contains(t, out, "query_transactions")
}

func TestAnalysesCommand(t *testing.T) {
	out, err := execute(t, "analyses", "--json")
	require.NoError(t, err)

	var facades []struct {
		Type string `json:"analysis_type"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &facades))
	assert.Len(t, facades, 26)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DatasetPath)
	assert.Equal(t, 256, cfg.Reasoner.CacheCapacity)
	assert.Equal(t, 10, cfg.Tools.TopCustomers)
}
