package domain

import (
	"database/sql"
	"encoding/json"
)

// Canonical column labels after normalization. These are the keys the
// cleaner, binder and persisters agree on.
const (
	ColProductType           = "product_type"
	ColSKU                   = "sku"
	ColPrice                 = "price"
	ColAvailability          = "availability"
	ColUnitsSold             = "number_of_products_sold"
	ColRevenueGenerated      = "revenue_generated"
	ColCustomerDemographics  = "customer_demographics"
	ColStockLevels           = "stock_levels"
	ColLeadTimes             = "lead_times"
	ColOrderQuantities       = "order_quantities"
	ColShippingTimes         = "shipping_times"
	ColShippingCarriers      = "shipping_carriers"
	ColShippingCosts         = "shipping_costs"
	ColSupplierName          = "supplier_name"
	ColLocation              = "location"
	ColLeadTime              = "lead_time"
	ColProductionVolumes     = "production_volumes"
	ColManufacturingLeadTime = "manufacturing_lead_time"
	ColManufacturingCosts    = "manufacturing_costs"
	ColInspectionResults     = "inspection_results"
	ColDefectRates           = "defect_rates"
	ColTransportationModes   = "transportation_modes"
	ColRoutes                = "routes"
	ColCosts                 = "costs"
	ColShipmentDate          = "shipment_date"
)

// Derived column labels appended by the KPI calculator, in output order.
const (
	ColTotalRevenue      = "total_revenue"
	ColDelayedShipment   = "delayed_shipment"
	ColDeliveryRatio     = "delivery_ratio"
	ColInventoryTurnover = "inventory_turnover"
	ColAvgShippingCost   = "avg_shipping_cost"
)

// DerivedColumns lists the KPI columns in the order they are appended.
var DerivedColumns = []string{
	ColTotalRevenue,
	ColDelayedShipment,
	ColDeliveryRatio,
	ColInventoryTurnover,
	ColAvgShippingCost,
}

// RequiredColumns are the columns the KPI calculator cannot run without.
var RequiredColumns = []string{
	ColLeadTime,
	ColLocation,
	ColUnitsSold,
	ColSKU,
	ColStockLevels,
	ColShippingCosts,
	ColOrderQuantities,
	ColRevenueGenerated,
}

// ShipmentRecord is one product/shipment observation bound from a cleaned table.
// Optional attributes absent from the source are left at their zero value.
type ShipmentRecord struct {
	Row                int     `json:"row"`
	SKU                string  `json:"sku" validate:"required"`
	ProductType        string  `json:"product_type"`
	Location           string  `json:"location" validate:"required"`
	Price              float64 `json:"price"`
	Availability       float64 `json:"availability"`
	UnitsSold          float64 `json:"number_of_products_sold"`
	RevenueGenerated   float64 `json:"revenue_generated"`
	StockLevel         float64 `json:"stock_levels"`
	LeadTimes          float64 `json:"lead_times"`
	LeadTime           float64 `json:"lead_time"`
	OrderQuantity      float64 `json:"order_quantities"`
	ShippingTime       float64 `json:"shipping_times"`
	ShippingCarrier    string  `json:"shipping_carriers"`
	ShippingCost       float64 `json:"shipping_costs"`
	SupplierName       string  `json:"supplier_name"`
	ManufacturingCost  float64 `json:"manufacturing_costs"`
	DefectRate         float64 `json:"defect_rates"`
	InspectionResult   string  `json:"inspection_results"`
	TransportationMode string  `json:"transportation_modes"`
	Route              string  `json:"routes"`
	ShipmentDate       string  `json:"shipment_date,omitempty"`
}

// KPI holds the derived metrics of one record. Ratios whose denominator is
// zero are left invalid rather than infinite.
type KPI struct {
	TotalRevenue      float64         `json:"total_revenue"`
	DelayedShipment   int             `json:"delayed_shipment"`
	DeliveryRatio     float64         `json:"delivery_ratio"`
	InventoryTurnover sql.NullFloat64 `json:"inventory_turnover"`
	AvgShippingCost   sql.NullFloat64 `json:"avg_shipping_cost"`
}

// MarshalJSON writes undefined ratios as null.
func (k KPI) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TotalRevenue      float64  `json:"total_revenue"`
		DelayedShipment   int      `json:"delayed_shipment"`
		DeliveryRatio     float64  `json:"delivery_ratio"`
		InventoryTurnover *float64 `json:"inventory_turnover"`
		AvgShippingCost   *float64 `json:"avg_shipping_cost"`
	}{
		TotalRevenue:      k.TotalRevenue,
		DelayedShipment:   k.DelayedShipment,
		DeliveryRatio:     k.DeliveryRatio,
		InventoryTurnover: NullableFloat(k.InventoryTurnover),
		AvgShippingCost:   NullableFloat(k.AvgShippingCost),
	})
}

// NullableFloat converts an sql.NullFloat64 to a pointer, nil when invalid.
func NullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// KPISummary is the set of headline metrics shown on the dashboard. Means
// are nil when no row contributes a defined value.
type KPISummary struct {
	Rows                 int      `json:"rows"`
	TotalRevenue         float64  `json:"total_revenue"`
	AvgLeadTime          *float64 `json:"avg_lead_time"`
	DelayedShipments     int      `json:"delayed_shipments"`
	DeliveryRatio        *float64 `json:"delivery_ratio"`
	AvgInventoryTurnover *float64 `json:"avg_inventory_turnover"`
	AvgShippingCost      *float64 `json:"avg_shipping_cost"`
}
