package dashboard

import (
	"fmt"
	"sort"

	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
	"scdash/internal/forecast"
	"scdash/pkg/contracts/domain"
)

// Group is one aggregated value keyed by a column value.
type Group struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// metricValue reads a numeric metric of row i: a derived column from the
// computed KPIs, anything else from the source cell.
func metricValue(e *dataprocessing.EnrichedTable, i int, metric string) (float64, bool) {
	k := e.KPIs[i]
	switch metric {
	case domain.ColTotalRevenue:
		return k.TotalRevenue, true
	case domain.ColDelayedShipment:
		return float64(k.DelayedShipment), true
	case domain.ColDeliveryRatio:
		return k.DeliveryRatio, true
	case domain.ColInventoryTurnover:
		return k.InventoryTurnover.Float64, k.InventoryTurnover.Valid
	case domain.ColAvgShippingCost:
		return k.AvgShippingCost.Float64, k.AvgShippingCost.Valid
	}
	return dataprocessing.ParseNumber(e.Table.Value(i, metric))
}

// aggregate folds metric per distinct value of key.
func aggregate(e *dataprocessing.EnrichedTable, key, metric string) map[string]*mean {
	groups := make(map[string]*mean)
	for i := 0; i < e.Len(); i++ {
		v, ok := metricValue(e, i, metric)
		if !ok {
			continue
		}
		k := e.Table.Value(i, key)
		g, found := groups[k]
		if !found {
			g = &mean{}
			groups[k] = g
		}
		g.add(v)
	}
	return groups
}

func sortedGroups(groups map[string]*mean, value func(*mean) float64) []Group {
	out := make([]Group, 0, len(groups))
	for k, g := range groups {
		out = append(out, Group{Key: k, Value: value(g)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SumBy sums metric per value of key.
func SumBy(e *dataprocessing.EnrichedTable, key, metric string) []Group {
	return sortedGroups(aggregate(e, key, metric), func(m *mean) float64 { return m.sum })
}

// MeanBy averages metric per value of key, skipping undefined values.
func MeanBy(e *dataprocessing.EnrichedTable, key, metric string) []Group {
	return sortedGroups(aggregate(e, key, metric), func(m *mean) float64 { return *m.value() })
}

// PivotTable is a rows × columns grid of means. A nil cell has no data.
type PivotTable struct {
	Rows    []string     `json:"rows"`
	Columns []string     `json:"columns"`
	Cells   [][]*float64 `json:"cells"`
}

// Pivot averages metric over every (rowKey, colKey) pair present in e.
func Pivot(e *dataprocessing.EnrichedTable, rowKey, colKey, metric string) PivotTable {
	rowSet, colSet := map[string]bool{}, map[string]bool{}
	cells := make(map[[2]string]*mean)
	for i := 0; i < e.Len(); i++ {
		v, ok := metricValue(e, i, metric)
		if !ok {
			continue
		}
		r, c := e.Table.Value(i, rowKey), e.Table.Value(i, colKey)
		rowSet[r], colSet[c] = true, true
		m, found := cells[[2]string{r, c}]
		if !found {
			m = &mean{}
			cells[[2]string{r, c}] = m
		}
		m.add(v)
	}

	p := PivotTable{Rows: sortedKeys(rowSet), Columns: sortedKeys(colSet)}
	p.Cells = make([][]*float64, len(p.Rows))
	for i, r := range p.Rows {
		p.Cells[i] = make([]*float64, len(p.Columns))
		for j, c := range p.Columns {
			if m, ok := cells[[2]string{r, c}]; ok {
				p.Cells[i][j] = m.value()
			}
		}
	}
	return p
}

// RevenueTrend sums total revenue per shipment date in chronological order.
// It returns nil when the table has no shipment_date column.
func RevenueTrend(e *dataprocessing.EnrichedTable) ([]Group, error) {
	if !e.Table.HasColumn(domain.ColShipmentDate) {
		return nil, nil
	}

	sums := make(map[string]float64)
	for i, k := range e.KPIs {
		cell := e.Table.Value(i, domain.ColShipmentDate)
		if dataprocessing.IsMissing(cell) {
			continue
		}
		d, ok := forecast.ParseDate(cell)
		if !ok {
			return nil, apperrors.NewSchemaError(
				fmt.Sprintf("row %d, column %s: cannot parse date %q", i+1, domain.ColShipmentDate, cell), nil)
		}
		sums[d.Format("2006-01-02")] += k.TotalRevenue
	}

	out := make([]Group, 0, len(sums))
	for day, v := range sums {
		out = append(out, Group{Key: day, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
