package dataprocessing

import (
	"database/sql"
	"fmt"
	"log/slog"

	apperrors "scdash/internal/errors"
	"scdash/pkg/contracts/domain"
)

// DefaultDelayThreshold is the lead time in days above which a shipment
// counts as delayed.
const DefaultDelayThreshold = 7.0

// Calculator derives the KPI columns from a cleaned table.
type Calculator struct {
	delayThreshold float64
	logger         *slog.Logger
}

// NewCalculator creates a calculator. A lead time strictly greater than
// delayThreshold marks a shipment as delayed.
func NewCalculator(delayThreshold float64, logger *slog.Logger) *Calculator {
	return &Calculator{
		delayThreshold: delayThreshold,
		logger:         logger.With(slog.String("component", "kpi_calculator")),
	}
}

type groupStat struct {
	sum   float64
	count int
}

func (g groupStat) mean() float64 {
	return g.sum / float64(g.count)
}

// Calculate binds the table and appends total_revenue, delayed_shipment,
// delivery_ratio, inventory_turnover and avg_shipping_cost. Group means are
// taken over exactly the rows of t. Derived columns already present in t are
// recomputed, so running Calculate on its own output gives the same values.
func (c *Calculator) Calculate(t *Table) (*EnrichedTable, error) {
	base := t.DropColumns(domain.DerivedColumns...)

	records, err := BindRecords(base)
	if err != nil {
		return nil, err
	}

	delayed := make([]int, len(records))
	byLocation := make(map[string]groupStat)
	bySKU := make(map[string]groupStat)

	for i, rec := range records {
		if rec.LeadTime > c.delayThreshold {
			delayed[i] = 1
		}

		loc := byLocation[rec.Location]
		loc.sum += float64(delayed[i])
		loc.count++
		byLocation[rec.Location] = loc

		sku := bySKU[rec.SKU]
		sku.sum += rec.StockLevel
		sku.count++
		bySKU[rec.SKU] = sku
	}

	enriched := &EnrichedTable{
		Table:     base,
		Records:   records,
		KPIs:      make([]domain.KPI, len(records)),
		Undefined: map[string]int{domain.ColInventoryTurnover: 0, domain.ColAvgShippingCost: 0},
	}

	for i, rec := range records {
		kpi := domain.KPI{
			TotalRevenue:    rec.RevenueGenerated,
			DelayedShipment: delayed[i],
			DeliveryRatio:   1 - byLocation[rec.Location].mean(),
		}

		if avgStock := bySKU[rec.SKU].mean(); avgStock != 0 {
			kpi.InventoryTurnover = sql.NullFloat64{Float64: rec.UnitsSold / avgStock, Valid: true}
		} else {
			enriched.Undefined[domain.ColInventoryTurnover]++
		}

		if rec.OrderQuantity != 0 {
			kpi.AvgShippingCost = sql.NullFloat64{Float64: rec.ShippingCost / rec.OrderQuantity, Valid: true}
		} else {
			enriched.Undefined[domain.ColAvgShippingCost]++
		}

		enriched.KPIs[i] = kpi
	}

	c.reportUndefined(enriched)

	c.logger.Debug("derived KPI columns",
		slog.Int("rows", len(records)),
		slog.Int("locations", len(byLocation)),
		slog.Int("skus", len(bySKU)))

	return enriched, nil
}

func (c *Calculator) reportUndefined(e *EnrichedTable) {
	reasons := map[string]string{
		domain.ColInventoryTurnover: "average stock level of the SKU is zero",
		domain.ColAvgShippingCost:   "order quantity is zero",
	}

	for _, metric := range []string{domain.ColInventoryTurnover, domain.ColAvgShippingCost} {
		n := e.Undefined[metric]
		if n == 0 {
			continue
		}
		warn := apperrors.NewComputationError(
			fmt.Sprintf("%s undefined for %d rows: %s", metric, n, reasons[metric]), nil).
			WithContext("metric", metric).
			WithContext("rows", n)
		e.Warnings = append(e.Warnings, warn)

		c.logger.Warn("derived metric left undefined",
			slog.String("metric", metric),
			slog.Int("rows", n),
			slog.String("error", warn.Error()))
	}
}
