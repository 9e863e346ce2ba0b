// Package http implements the HTTP handlers of the supply chain dashboard.
//
// Handlers stay thin: they parse the request, call a service and format
// the response. JSON endpoints answer failures with RFC 7807 problem
// details through errors.ErrorHandler. The HTML pages show problems caused
// by the submitted data, such as a file with missing columns, inline and
// hand everything else to the error handler.
//
// Routes:
//
//	GET  /                          dashboard page
//	POST /upload                    replace the dashboard source file
//	GET  /charts                    dashboard chart page (same filters as /)
//	GET  /download/processed.xlsx   processed workbook
//	GET  /forecast, POST /forecast  demand forecast page
//	GET  /forecast/charts           forecast chart page
//	GET  /api/kpis                  KPI summary as JSON
//	GET  /api/forecast              latest forecast report as JSON
//	POST /api/pipeline/run          run the ETL pipeline
//	GET  /api/pipeline/status       last run and cache counters
//	POST /api/cache/clear           drop parsed tables
//	GET  /api/health[/ready|/live]  health probes
//	GET  /api/version               build information
//	GET  /metrics                   Prometheus metrics
package http
