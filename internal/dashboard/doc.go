// Package dashboard turns an enriched shipment table into what the
// dashboard page shows: filter options, headline KPIs, grouped aggregates
// and server-rendered charts.
//
// Filtering never recomputes derived metrics. Group statistics such as the
// delivery ratio and inventory turnover stay those of the full data set.
package dashboard
