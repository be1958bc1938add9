package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	errx "github.com/retail-analyst/server/internal/core/error"
)

const retailCSV = `Transaction_ID,Date,Customer_Name,Product,Total_Items,Total_Cost,Payment_Method,City,Store_Type,Discount_Applied,Customer_Category,Season,Promotion
1000000000,2022-12-21 06:27:29,Stacey Price,"['Ketchup', 'Shaving Cream']",3,71.65,Mobile Payment,Los Angeles,Warehouse Club,True,Homemaker,Spring,None
1000000001,2023-07-01 13:05:11,Ryan Wright,['Bread'],2,25.93,Cash,San Francisco,Supermarket,False,Professional,Winter,BOGO (Buy One Get One)
1000000002,2023-03-15 09:00:00,Stacey Price,Milk,1,12.40,Credit Card,Los Angeles,Supermarket,False,Homemaker,Fall,Discount on Selected Items
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSeasonOfIsPureInMonth(t *testing.T) {
	want := map[time.Month]Season{
		time.December: Winter, time.January: Winter, time.February: Winter,
		time.March: Spring, time.April: Spring, time.May: Spring,
		time.June: Summer, time.July: Summer, time.August: Summer,
		time.September: Fall, time.October: Fall, time.November: Fall,
	}
	for m := time.January; m <= time.December; m++ {
		for _, year := range []int{1999, 2022, 2024} {
			d := time.Date(year, m, 15, 0, 0, 0, 0, time.UTC)
			got := SeasonOf(d.Month())
			assert.Equal(t, want[m], got, "month %s year %d", m, year)
			assert.GreaterOrEqual(t, got.Index(), 0)
		}
	}
}

func TestLoadDerivesCalendarColumns(t *testing.T) {
	ds, err := Load(writeFile(t, "retail.csv", retailCSV))
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	recs := ds.Records()
	assert.Equal(t, Winter, recs[0].Season)
	assert.Equal(t, Summer, recs[1].Season)
	assert.Equal(t, Spring, recs[2].Season)
	assert.Equal(t, 12, recs[0].Month)
	assert.Equal(t, 2022, recs[0].Year)

	// The Season column from the file is overwritten by the derived value.
	col, err := ds.Column("season")
	require.NoError(t, err)
	assert.Equal(t, "Winter", ds.String(0, col))
	assert.Equal(t, "Summer", ds.String(1, col))

	month, err := ds.Column(ColumnMonth)
	require.NoError(t, err)
	v, ok := ds.Float(1, month)
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
}

func TestLoadTypedView(t *testing.T) {
	ds, err := Load(writeFile(t, "retail.csv", retailCSV))
	require.NoError(t, err)

	schema := ds.Schema()
	assert.Equal(t, "Customer_Name", schema[RoleCustomer])
	assert.Equal(t, "Total_Cost", schema[RoleSales])
	assert.Equal(t, "Total_Items", schema[RoleQuantity])
	assert.Equal(t, "Store_Type", schema[RoleStore])
	assert.Equal(t, "City", schema[RoleCity])
	assert.Equal(t, "Discount_Applied", schema[RoleDiscount])
	assert.Equal(t, "Customer_Category", schema[RoleCategory])

	r := ds.Records()[0]
	assert.Equal(t, "Stacey Price", r.Customer)
	assert.Equal(t, []string{"Ketchup", "Shaving Cream"}, r.Products)
	assert.Equal(t, 3.0, r.Items)
	assert.InDelta(t, 71.65, r.Cost, 1e-9)
	assert.Equal(t, 1.0, r.Discount)
	assert.Equal(t, "Warehouse Club", r.StoreType)
	assert.Equal(t, []string{"Milk"}, ds.Records()[2].Products)
	assert.Equal(t, 0.0, ds.Records()[1].Discount)
}

func TestLoadFailureKinds(t *testing.T) {
	t.Run("missing path is not found", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
		require.Error(t, err)
		assert.ErrorIs(t, err, errx.ErrNotFound)
		assert.NotErrorIs(t, err, errx.ErrParse)
		assert.Equal(t, errx.StageLoad, errx.StageOf(err))
	})
	t.Run("directory is not found", func(t *testing.T) {
		_, err := Load(t.TempDir())
		assert.ErrorIs(t, err, errx.ErrNotFound)
	})
	t.Run("unreadable file", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root ignores file modes")
		}
		path := writeFile(t, "locked.csv", retailCSV)
		require.NoError(t, os.Chmod(path, 0))
		_, err := Load(path)
		assert.ErrorIs(t, err, errx.ErrPermission)
	})
	t.Run("bad date", func(t *testing.T) {
		body := "Date,Customer,Cost\n2023-01-01,A,1\nyesterday,B,2\n"
		_, err := Load(writeFile(t, "bad.csv", body))
		require.Error(t, err)
		assert.ErrorIs(t, err, errx.ErrParse)
		assert.Contains(t, err.Error(), "line 3")
	})
	t.Run("ragged row", func(t *testing.T) {
		body := "Date,Customer,Cost\n2023-01-01,A,1\n2023-01-02,B\n"
		_, err := Load(writeFile(t, "ragged.csv", body))
		assert.ErrorIs(t, err, errx.ErrParse)
	})
	t.Run("header only", func(t *testing.T) {
		_, err := Load(writeFile(t, "empty.csv", "Date,Customer,Cost\n"))
		assert.ErrorIs(t, err, errx.ErrParse)
	})
	t.Run("missing date column", func(t *testing.T) {
		_, err := Load(writeFile(t, "nodate.csv", "Customer,Cost\nA,1\n"))
		assert.ErrorIs(t, err, errx.ErrColumnNotFound)
	})
	t.Run("non numeric cost", func(t *testing.T) {
		body := "Date,Customer,Cost\n2023-01-01,A,lots\n"
		_, err := Load(writeFile(t, "cost.csv", body))
		assert.ErrorIs(t, err, errx.ErrParse)
	})
}

func TestParseTSV(t *testing.T) {
	body := "Date\tCustomer\tSales\n01/15/2023\tA\t10\n"
	ds, err := Parse("data.tsv", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, Winter, ds.Records()[0].Season)
	assert.Equal(t, 10.0, ds.Records()[0].Cost)
}

func TestResolveColumns(t *testing.T) {
	t.Run("substring match", func(t *testing.T) {
		cm, err := ResolveColumns([]string{"Store", "Item", "Qty", "Cost"}, RoleStore, RoleProduct, RoleQuantity, RoleSales)
		require.NoError(t, err)
		assert.Equal(t, "Qty", cm[RoleQuantity])
		assert.Equal(t, "Cost", cm[RoleSales])
		assert.Equal(t, "Item", cm[RoleProduct])
		assert.Equal(t, "Store", cm[RoleStore])
	})
	t.Run("no sales-like column", func(t *testing.T) {
		_, err := ResolveColumns([]string{"Store", "Item", "Qty"}, RoleStore, RoleProduct, RoleQuantity, RoleSales)
		require.Error(t, err)
		assert.ErrorIs(t, err, errx.ErrColumnNotFound)
		assert.Contains(t, err.Error(), "unable to identify columns")
	})
	t.Run("ambiguous pattern", func(t *testing.T) {
		_, err := ResolveColumns([]string{"Net Sales", "Gross Sales"}, RoleSales)
		assert.ErrorIs(t, err, errx.ErrAmbiguousColumn)
	})
	t.Run("exact name beats substring", func(t *testing.T) {
		cm, err := ResolveColumns([]string{"Customer_Name", "Customer_Category"}, RoleCustomer)
		require.NoError(t, err)
		assert.Equal(t, "Customer_Name", cm[RoleCustomer])
	})
	t.Run("two roles on one column", func(t *testing.T) {
		_, err := ResolveColumns([]string{"Location", "Cost"}, RoleStore, RoleCity)
		assert.ErrorIs(t, err, errx.ErrAmbiguousColumn)
	})
}

func TestQuery(t *testing.T) {
	ds, err := Load(writeFile(t, "retail.csv", retailCSV))
	require.NoError(t, err)

	t.Run("group and sum", func(t *testing.T) {
		res, err := ds.Run(Query{GroupBy: []string{"customer_name"}, Metric: MetricSum, Value: "Total_Cost"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Customer_Name", "sum(Total_Cost)"}, res.Columns)
		require.Len(t, res.Rows, 2)
		assert.Equal(t, "Stacey Price", res.Rows[0][0])
		assert.InDelta(t, 84.05, res.Rows[0][1], 1e-9)
	})
	t.Run("filters", func(t *testing.T) {
		res, err := ds.Run(Query{
			Filters: []Filter{{Column: "City", Op: OpEq, Value: "los angeles"}, {Column: "Total_Cost", Op: OpGt, Value: "20"}},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Matched)
		require.Len(t, res.Rows, 1)
	})
	t.Run("count by season ascending", func(t *testing.T) {
		res, err := ds.Run(Query{GroupBy: []string{"Season"}, Ascending: true, Limit: 2})
		require.NoError(t, err)
		assert.True(t, res.Truncated)
		assert.Len(t, res.Rows, 2)
		assert.Equal(t, "Spring", res.Rows[0][0])
	})
	t.Run("no match is benign", func(t *testing.T) {
		_, err := ds.Run(Query{Filters: []Filter{{Column: "City", Value: "Paris"}}})
		require.Error(t, err)
		assert.True(t, errx.IsBenign(err))
	})
	t.Run("unknown column", func(t *testing.T) {
		_, err := ds.Run(Query{GroupBy: []string{"Region"}})
		assert.ErrorIs(t, err, errx.ErrColumnNotFound)
	})
	t.Run("bad metric", func(t *testing.T) {
		_, err := ds.Run(Query{Metric: "median", Value: "Total_Cost"})
		assert.ErrorIs(t, err, errx.ErrInvalidInput)
	})
}

func TestStoreReloadNotifies(t *testing.T) {
	path := writeFile(t, "retail.csv", retailCSV)
	store, err := OpenStore(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), store.Version())

	var seen []int
	store.Subscribe(func(ds *Dataset) { seen = append(seen, ds.Len()) })

	require.NoError(t, os.WriteFile(path, []byte("Date,Customer,Cost\n2023-01-01,A,1\n"), 0o600))
	ds, err := store.Reload()
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, []int{1}, seen)
	assert.Equal(t, uint64(2), store.Version())

	require.NoError(t, os.Remove(path))
	_, err = store.Reload()
	assert.ErrorIs(t, err, errx.ErrNotFound)
	assert.Same(t, ds, store.Current())
}

func TestParseBindsItemsToQuantityWithoutProductColumn(t *testing.T) {
	csv := "Date,Customer_Name,Store_Type,Total_Items,Total_Cost\n2023-01-01,A,Mall,5,10\n"
	ds, err := Parse("lean.csv", strings.NewReader(csv))
	require.NoError(t, err)

	schema := ds.Schema()
	assert.Equal(t, "Total_Items", schema[RoleQuantity])
	assert.NotContains(t, schema, RoleProduct)

	rec := ds.Records()[0]
	assert.InDelta(t, 5, rec.Items, 1e-9)
	assert.Empty(t, rec.Products)
	assert.InDelta(t, 10, rec.Cost, 1e-9)
}

func TestLoadSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Date", "Customer_Name", "Product", "Total_Items", "Total_Cost", "Store_Type"},
		{"2023-07-01 13:05:11", "Ryan Wright", "['Bread']", 2, 25.5, "Supermarket"},
		{45000, "Stacey Price", "Milk", 1, 12.5, "Warehouse Club"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "retail.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	ds, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	recs := ds.Records()
	assert.Equal(t, 7, recs[0].Month)
	assert.Equal(t, 2023, recs[0].Year)
	assert.Equal(t, Summer, recs[0].Season)
	assert.Equal(t, []string{"Bread"}, recs[0].Products)

	// 45000 is the serial number of 2023-03-15.
	assert.Equal(t, time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC), ds.Date(1))
	assert.Equal(t, 3, recs[1].Month)
	assert.Equal(t, Spring, recs[1].Season)
	assert.InDelta(t, 12.5, recs[1].Cost, 1e-9)

	year, err := ds.Column(ColumnYear)
	require.NoError(t, err)
	assert.Equal(t, "2023", ds.String(1, year))
}
