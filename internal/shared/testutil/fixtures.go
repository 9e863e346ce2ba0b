package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// SampleHeader uses the spellings found in the raw supply-chain export, so
// loaders and the cleaner see un-normalized labels.
var SampleHeader = []string{
	"Product type", "SKU", "Price", "Availability", "Number of products sold",
	"Revenue generated", "Customer demographics", "Stock levels", "Lead times",
	"Order quantities", "Shipping times", "Shipping carriers", "Shipping costs",
	"Supplier name", "Location", "Lead time", "Production volumes",
	"Manufacturing lead time", "Manufacturing costs", "Inspection results",
	"Defect rates", "Transportation modes", "Routes", "Costs",
}

// SampleRows holds five shipments across three locations. Lead times 9 and
// 12 are delayed, 7 is not.
var SampleRows = [][]string{
	{"haircare", "SKU0", "10", "50", "100", "1000", "Female", "10", "5", "10", "2", "Carrier A", "20", "Supplier 1", "Mumbai", "5", "200", "10", "30", "Pass", "1.5", "Road", "Route A", "100"},
	{"skincare", "SKU1", "20", "40", "200", "4000", "Male", "20", "9", "20", "3", "Carrier B", "40", "Supplier 2", "Mumbai", "9", "300", "12", "40", "Fail", "2.5", "Air", "Route B", "200"},
	{"cosmetics", "SKU2", "30", "30", "300", "9000", "Unknown", "30", "3", "30", "4", "Carrier A", "60", "Supplier 1", "Delhi", "3", "400", "14", "50", "Pass", "0.5", "Sea", "Route A", "300"},
	{"haircare", "SKU3", "40", "20", "50", "2000", "Female", "40", "12", "25", "5", "Carrier C", "50", "Supplier 3", "Delhi", "12", "500", "16", "60", "Pending", "3.5", "Rail", "Route C", "400"},
	{"skincare", "SKU4", "50", "10", "150", "7500", "Non-binary", "50", "7", "15", "6", "Carrier B", "30", "Supplier 2", "Kolkata", "7", "600", "18", "70", "Pass", "4.5", "Road", "Route B", "500"},
}

// Known aggregates of SampleRows.
const (
	SampleTotalRevenue     = 23500.0
	SampleAvgLeadTime      = 7.2
	SampleDelayed          = 2
	SampleMeanDelivery     = 0.6
	SampleMeanTurnover     = 6.85
	SampleMeanShippingCost = 2.0
)

// SampleCSV renders SampleHeader and SampleRows as CSV text.
func SampleCSV(t *testing.T) string {
	t.Helper()
	return CSVText(t, SampleHeader, SampleRows)
}

// CSVText renders header and rows as CSV text.
func CSVText(t *testing.T, header []string, rows [][]string) string {
	t.Helper()

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	require.NoError(t, w.Write(header))
	require.NoError(t, w.WriteAll(rows))
	return sb.String()
}

// WriteCSVFile writes header and rows to name inside dir and returns the path.
func WriteCSVFile(t *testing.T, dir, name string, header []string, rows [][]string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(CSVText(t, header, rows)), 0644))
	return path
}

// WriteSampleCSV writes the sample shipments to a temp directory.
func WriteSampleCSV(t *testing.T) string {
	t.Helper()
	return WriteCSVFile(t, t.TempDir(), "supply_chain_data.csv", SampleHeader, SampleRows)
}

// WriteXLSXFile writes header and rows to the named sheet of a new workbook.
func WriteXLSXFile(t *testing.T, dir, name, sheet string, header []string, rows [][]string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
		require.NoError(t, f.DeleteSheet("Sheet1"))
	}

	all := append([][]string{header}, rows...)
	for r, row := range all {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}

	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

// ReplaceColumn returns a deep copy of rows with column col set to values.
func ReplaceColumn(rows [][]string, col int, values ...string) [][]string {
	out := CloneRows(rows)
	for i := range out {
		if i < len(values) {
			out[i][col] = values[i]
		}
	}
	return out
}

// CloneRows deep-copies a row grid.
func CloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// ColumnIndex returns the position of name in header or -1.
func ColumnIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
