package exporter

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"scdash/internal/dataprocessing"
	"scdash/internal/shared/testutil"
	"scdash/pkg/contracts/domain"
)

func enrichedSample(t *testing.T, rows [][]string) *dataprocessing.EnrichedTable {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	cleaned, _ := dataprocessing.NewCleaner(dataprocessing.DefaultFillDefaults(), logger).
		Clean(dataprocessing.NewTable(testutil.SampleHeader, rows))
	e, err := dataprocessing.NewCalculator(dataprocessing.DefaultDelayThreshold, logger).Calculate(cleaned)
	require.NoError(t, err)
	return e
}

func TestXLSXWriter_Write(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	w := NewXLSXWriter(logger)
	path := filepath.Join(t.TempDir(), "out", "processed.xlsx")

	e := enrichedSample(t, testutil.SampleRows)
	require.NoError(t, w.Write(path, e))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{ProcessedSheet}, f.GetSheetList())

	back, err := dataprocessing.LoadFile(path, dataprocessing.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, e.Header(), back.Columns)
	require.Equal(t, 5, back.Len())

	assert.Equal(t, "SKU0", back.Value(0, domain.ColSKU))
	assert.Equal(t, "1000", back.Value(0, domain.ColTotalRevenue))
	assert.Equal(t, "1", back.Value(1, domain.ColDelayedShipment))
	assert.Equal(t, "0.5", back.Value(1, domain.ColDeliveryRatio))
	assert.Equal(t, "1.25", back.Value(3, domain.ColInventoryTurnover))

	testutil.AssertLogContains(t, handler, slog.LevelInfo, "wrote processed workbook")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestXLSXWriter_OverwritesAndLeavesUndefinedEmpty(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	w := NewXLSXWriter(logger)
	path := filepath.Join(t.TempDir(), "processed.xlsx")

	require.NoError(t, w.Write(path, enrichedSample(t, testutil.SampleRows)))

	// Zero stock and zero order quantity on the only row.
	rows := testutil.ReplaceColumn(testutil.SampleRows[:1], 7, "0")
	rows = testutil.ReplaceColumn(rows, 9, "0")
	require.NoError(t, w.Write(path, enrichedSample(t, rows)))

	back, err := dataprocessing.LoadFile(path, dataprocessing.LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, back.Len())
	assert.Equal(t, "", back.Value(0, domain.ColInventoryTurnover))
	assert.Equal(t, "", back.Value(0, domain.ColAvgShippingCost))
	assert.Equal(t, "0", back.Value(0, domain.ColStockLevels))
}

func TestXLSXWriter_WriteTo(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	var buf bytes.Buffer
	require.NoError(t, NewXLSXWriter(logger).WriteTo(&buf, enrichedSample(t, testutil.SampleRows)))

	back, err := dataprocessing.LoadBytes(buf.Bytes(), dataprocessing.FormatXLSX, dataprocessing.LoadOptions{Sheet: ProcessedSheet})
	require.NoError(t, err)
	assert.Equal(t, 5, back.Len())
}

func TestCSVWriter_WriteEnriched(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	w := NewCSVWriter(logger)
	path := filepath.Join(t.TempDir(), "reports", "processed.csv")

	rows := testutil.ReplaceColumn(testutil.SampleRows, 9, "0")
	require.NoError(t, w.WriteEnriched(path, enrichedSample(t, rows)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, utf8BOM))

	back, err := dataprocessing.LoadFile(path, dataprocessing.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "product_type", back.Columns[0])
	assert.Equal(t, "", back.Value(0, domain.ColAvgShippingCost))
	assert.Equal(t, "10", back.Value(0, domain.ColInventoryTurnover))
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	w := NewCSVWriter(logger)
	path := filepath.Join(t.TempDir(), "log.csv")

	tests := []struct {
		name string
		opts WriteOptions
		want string
	}{
		{"create", WriteOptions{Headers: []string{"a", "b"}, Records: [][]string{{"1", "2"}}}, "a,b\n1,2\n"},
		{"rewrite replaces earlier rows", WriteOptions{Headers: []string{"a", "b"}, Records: [][]string{{"3", "4"}}}, "a,b\n3,4\n"},
		{"bom prefix", WriteOptions{Headers: []string{"a"}, Records: [][]string{{"5"}}, BOMPrefix: true}, "\ufeffa\n5\n"},
		{"truncate with quoting", WriteOptions{Headers: []string{"a"}, Records: [][]string{{"x,y"}}}, "a\n\"x,y\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, w.WriteCSV(path, tt.opts))
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{2.5, "2.5"},
		{1000.0, "1000"},
		{3, "3"},
		{int64(7), "7"},
		{true, "true"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.in))
	}
}
