package dashboard

import (
	"scdash/internal/dataprocessing"
	"scdash/pkg/contracts/domain"
)

// ComputeKPIs summarizes e. Means skip undefined ratios and are nil when
// nothing contributes.
func ComputeKPIs(e *dataprocessing.EnrichedTable) domain.KPISummary {
	s := domain.KPISummary{Rows: e.Len()}

	var lead, ratio, turnover, cost mean
	for i, k := range e.KPIs {
		s.TotalRevenue += k.TotalRevenue
		s.DelayedShipments += k.DelayedShipment
		lead.add(e.Records[i].LeadTime)
		ratio.add(k.DeliveryRatio)
		if k.InventoryTurnover.Valid {
			turnover.add(k.InventoryTurnover.Float64)
		}
		if k.AvgShippingCost.Valid {
			cost.add(k.AvgShippingCost.Float64)
		}
	}

	s.AvgLeadTime = lead.value()
	s.DeliveryRatio = ratio.value()
	s.AvgInventoryTurnover = turnover.value()
	s.AvgShippingCost = cost.value()
	return s
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m *mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}
