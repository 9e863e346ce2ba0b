// Package dataprocessing turns raw supply-chain exports into enriched,
// typed tables.
//
// The stages run in order and each returns a new value:
//
//	raw, err := dataprocessing.LoadFile("data/supply_chain_data.csv", dataprocessing.LoadOptions{})
//	cleaned, report := dataprocessing.NewCleaner(dataprocessing.DefaultFillDefaults(), logger).Clean(raw)
//	enriched, err := dataprocessing.NewCalculator(dataprocessing.DefaultDelayThreshold, logger).Calculate(cleaned)
//
// LoadFile reads CSV, TSV and XLSX files into a Table of string cells that
// keeps the source column and row order. The Cleaner normalizes column
// labels and fills missing cells from an explicit FillDefaults policy. The
// Calculator binds every row to a domain.ShipmentRecord, failing fast with a
// schema error, and derives the KPI columns. Ratios with a zero denominator
// stay undefined and are reported as computation warnings.
//
// TableCache memoizes parsed tables by content digest for the dashboard,
// which re-reads its source file on every render.
package dataprocessing
