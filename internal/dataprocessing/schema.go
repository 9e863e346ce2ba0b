package dataprocessing

import (
	"fmt"
	"strings"

	apperrors "scdash/internal/errors"
	"scdash/pkg/contracts/domain"
)

// ValidateColumns fails with a schema error naming every absent column.
func ValidateColumns(t *Table, required []string) error {
	var missing []string
	for _, col := range required {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewSchemaError(
			fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")), nil).
			WithContext("missing_columns", missing)
	}
	return nil
}

type binder struct {
	t   *Table
	idx map[string]int
}

func newBinder(t *Table) *binder {
	b := &binder{t: t, idx: make(map[string]int, len(t.Columns))}
	for i, c := range t.Columns {
		if _, dup := b.idx[c]; !dup {
			b.idx[c] = i
		}
	}
	return b
}

func (b *binder) text(row []string, col string) string {
	i, ok := b.idx[col]
	if !ok || IsMissing(row[i]) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// requiredText fails when the cell is missing.
func (b *binder) requiredText(row []string, n int, col string) (string, error) {
	v := b.text(row, col)
	if v == "" {
		return "", cellError(n, col, "missing value")
	}
	return v, nil
}

// number parses an optional numeric cell: missing is 0, garbage is an error.
func (b *binder) number(row []string, n int, col string) (float64, error) {
	i, ok := b.idx[col]
	if !ok || IsMissing(row[i]) {
		return 0, nil
	}
	v, ok := ParseNumber(row[i])
	if !ok {
		return 0, cellError(n, col, fmt.Sprintf("non-numeric value %q", row[i]))
	}
	return v, nil
}

// requiredNumber fails on missing and non-numeric cells.
func (b *binder) requiredNumber(row []string, n int, col string) (float64, error) {
	i := b.idx[col]
	if IsMissing(row[i]) {
		return 0, cellError(n, col, "missing value")
	}
	return b.number(row, n, col)
}

func cellError(row int, col, msg string) error {
	return apperrors.NewSchemaError(fmt.Sprintf("row %d, column %s: %s", row, col, msg), nil).
		WithContext("row", row).
		WithContext("column", col)
}

// BindRecords converts a cleaned table into typed records. Row numbers are
// 1-based data rows. Required columns must be present with a value in
// every row; optional numeric columns read missing cells as 0.
func BindRecords(t *Table) ([]domain.ShipmentRecord, error) {
	if err := ValidateColumns(t, domain.RequiredColumns); err != nil {
		return nil, err
	}

	b := newBinder(t)
	records := make([]domain.ShipmentRecord, len(t.Rows))

	for i, row := range t.Rows {
		n := i + 1
		rec := domain.ShipmentRecord{
			Row:                n,
			ProductType:        b.text(row, domain.ColProductType),
			ShippingCarrier:    b.text(row, domain.ColShippingCarriers),
			SupplierName:       b.text(row, domain.ColSupplierName),
			InspectionResult:   b.text(row, domain.ColInspectionResults),
			TransportationMode: b.text(row, domain.ColTransportationModes),
			Route:              b.text(row, domain.ColRoutes),
			ShipmentDate:       b.text(row, domain.ColShipmentDate),
		}

		var err error
		if rec.SKU, err = b.requiredText(row, n, domain.ColSKU); err != nil {
			return nil, err
		}
		if rec.Location, err = b.requiredText(row, n, domain.ColLocation); err != nil {
			return nil, err
		}

		required := []struct {
			col string
			dst *float64
		}{
			{domain.ColLeadTime, &rec.LeadTime},
			{domain.ColUnitsSold, &rec.UnitsSold},
			{domain.ColStockLevels, &rec.StockLevel},
			{domain.ColShippingCosts, &rec.ShippingCost},
			{domain.ColOrderQuantities, &rec.OrderQuantity},
			{domain.ColRevenueGenerated, &rec.RevenueGenerated},
		}
		for _, f := range required {
			if *f.dst, err = b.requiredNumber(row, n, f.col); err != nil {
				return nil, err
			}
		}

		optional := []struct {
			col string
			dst *float64
		}{
			{domain.ColPrice, &rec.Price},
			{domain.ColAvailability, &rec.Availability},
			{domain.ColLeadTimes, &rec.LeadTimes},
			{domain.ColShippingTimes, &rec.ShippingTime},
			{domain.ColManufacturingCosts, &rec.ManufacturingCost},
			{domain.ColDefectRates, &rec.DefectRate},
		}
		for _, f := range optional {
			if *f.dst, err = b.number(row, n, f.col); err != nil {
				return nil, err
			}
		}

		records[i] = rec
	}

	return records, nil
}
