// Package shared holds helpers used across the scdash packages that do not
// belong to a single domain layer.
//
// The testutil subpackage provides a capturing slog handler and supply-chain
// fixtures (CSV and XLSX shipment files with known KPI values) used by the
// dataprocessing, exporter, storage, dashboard and transport tests.
//
// Nothing here may depend on business packages, so any internal package can
// import it from its tests without creating a cycle.
package shared
