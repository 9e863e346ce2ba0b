package dataprocessing

import (
	"scdash/pkg/contracts/domain"
)

// EnrichedTable is a cleaned table with its bound records and the derived
// KPIs of each row. Records[i] and KPIs[i] describe Table.Rows[i].
type EnrichedTable struct {
	Table   *Table
	Records []domain.ShipmentRecord
	KPIs    []domain.KPI
	// Undefined counts rows whose ratio had a zero denominator, per metric.
	Undefined map[string]int
	// Warnings holds one computation error per metric with undefined rows.
	Warnings []error
}

// Len returns the number of rows.
func (e *EnrichedTable) Len() int {
	return len(e.Records)
}

// Header returns the source columns followed by the derived columns.
func (e *EnrichedTable) Header() []string {
	h := make([]string, 0, len(e.Table.Columns)+len(domain.DerivedColumns))
	h = append(h, e.Table.Columns...)
	return append(h, domain.DerivedColumns...)
}

// DerivedValues returns the derived cells of row i in DerivedColumns order.
// Undefined ratios are nil.
func (e *EnrichedTable) DerivedValues(i int) []interface{} {
	k := e.KPIs[i]
	vals := []interface{}{k.TotalRevenue, k.DelayedShipment, k.DeliveryRatio, nil, nil}
	if k.InventoryTurnover.Valid {
		vals[3] = k.InventoryTurnover.Float64
	}
	if k.AvgShippingCost.Valid {
		vals[4] = k.AvgShippingCost.Float64
	}
	return vals
}

// Row returns the full output row i: source cells as strings followed by
// the derived values.
func (e *EnrichedTable) Row(i int) []interface{} {
	src := e.Table.Rows[i]
	row := make([]interface{}, 0, len(src)+len(domain.DerivedColumns))
	for _, cell := range src {
		row = append(row, cell)
	}
	return append(row, e.DerivedValues(i)...)
}

// Select returns the given rows without recomputing any group statistic.
func (e *EnrichedTable) Select(rows []int) *EnrichedTable {
	out := &EnrichedTable{
		Table:     e.Table.Select(rows),
		Records:   make([]domain.ShipmentRecord, 0, len(rows)),
		KPIs:      make([]domain.KPI, 0, len(rows)),
		Undefined: map[string]int{domain.ColInventoryTurnover: 0, domain.ColAvgShippingCost: 0},
	}
	for _, i := range rows {
		out.Records = append(out.Records, e.Records[i])
		k := e.KPIs[i]
		out.KPIs = append(out.KPIs, k)
		if !k.InventoryTurnover.Valid {
			out.Undefined[domain.ColInventoryTurnover]++
		}
		if !k.AvgShippingCost.Valid {
			out.Undefined[domain.ColAvgShippingCost]++
		}
	}
	return out
}
