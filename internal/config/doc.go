// Package config loads the application configuration.
//
// Values come from three layers, later layers winning:
//
//	1. Default()
//	2. an optional YAML file (config.yaml, configs/config.yaml, or the file
//	   named by SCDASH_CONFIG_FILE)
//	3. SCDASH_* environment variables, e.g. SCDASH_SERVER_PORT=9090,
//	   SCDASH_DATABASE_DRIVER=mysql, SCDASH_FORECAST_EPOCHS=10,
//	   SCDASH_PIPELINE_FILL_DEFAULTS=price:0,lead_times:median
//
// Paths are resolved separately with GetPaths so that commands can override
// individual files (for example the processor's -input flag) before the
// directories are created.
package config
