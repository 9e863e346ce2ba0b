// Package app wires the supply chain dashboard together: configuration,
// logging, OpenTelemetry, the ETL pipeline, services, HTTP routing and
// graceful shutdown.
//
// Initialization order:
//
//	1. Load configuration (defaults, YAML file, SCDASH_* environment)
//	2. Initialize the slog logger and OpenTelemetry providers
//	3. Open the database when persistence is enabled
//	4. Build the pipeline and the services on top of it
//	5. Register middleware and handlers on a chi router
//	6. Serve until SIGINT/SIGTERM, then shut down gracefully
//
// BuildPipeline is shared with the batch processor command.
package app
