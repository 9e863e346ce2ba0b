package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scdash/pkg/contracts/domain"
)

func TestEnrichedTable_HeaderAndRow(t *testing.T) {
	calc, _ := newTestCalculator(t)
	enriched, err := calc.Calculate(NewTable(minimalColumns, [][]string{
		{"S", "L", "9", "10", "0", "6", "3", "50"},
	}))
	require.NoError(t, err)

	header := enriched.Header()
	assert.Equal(t, minimalColumns, header[:len(minimalColumns)])
	assert.Equal(t, domain.DerivedColumns, header[len(minimalColumns):])

	row := enriched.Row(0)
	require.Len(t, row, len(header))
	assert.Equal(t, "S", row[0])
	assert.Equal(t, []interface{}{50.0, 1, 0.0, nil, 2.0}, row[len(minimalColumns):])
}

func TestEnrichedTable_SelectKeepsFullTableStatistics(t *testing.T) {
	calc, _ := newTestCalculator(t)
	enriched, err := calc.Calculate(cleanedSample(t))
	require.NoError(t, err)

	// Only the first Mumbai row survives the filter; its ratio still
	// reflects both Mumbai rows.
	sub := enriched.Select([]int{0, 4})
	require.Equal(t, 2, sub.Len())
	assert.Equal(t, "SKU0", sub.Records[0].SKU)
	assert.Equal(t, "SKU4", sub.Records[1].SKU)
	assert.Equal(t, 0.5, sub.KPIs[0].DeliveryRatio)
	assert.Equal(t, 1.0, sub.KPIs[1].DeliveryRatio)
	assert.Equal(t, enriched.Table.Rows[4], sub.Table.Rows[1])

	sub.Table.Rows[0][0] = "changed"
	assert.NotEqual(t, "changed", enriched.Table.Rows[0][0])
}

func TestBindRecords_OptionalFields(t *testing.T) {
	cols := append(append([]string(nil), minimalColumns...), domain.ColPrice, domain.ColRoutes)
	records, err := BindRecords(NewTable(cols, [][]string{
		{" S1 ", "L", "1", "2", "3", "4", "5", "6", "", "Route A"},
	}))
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, 1, rec.Row)
	assert.Equal(t, "S1", rec.SKU)
	assert.Equal(t, 0.0, rec.Price)
	assert.Equal(t, "Route A", rec.Route)
	assert.Equal(t, 6.0, rec.RevenueGenerated)
	assert.Equal(t, "", rec.ProductType)
}
