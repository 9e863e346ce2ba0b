package config

import "time"

// Application constants
const (
	AppName    = "Supply Chain Dashboard"
	AppVersion = "1.0.0"

	DefaultDataDir       = "data"
	DefaultLogsDir       = "logs"
	DefaultInputFile     = "supply_chain_data.csv"
	DefaultProcessedFile = "processed_supply_chain_data.xlsx"
	DefaultDatabaseFile  = "supply_chain.db"
	DefaultModelFile     = "models/demand_forecasting_model.json"
	DefaultQueriesFile   = "sql/queries.sql"
	DefaultTableName     = "supply_chain"

	// Shipments with a lead time strictly above this are delayed.
	DefaultDelayThresholdDays = 7
	DefaultForecastTarget     = "HistoricalSales"

	DefaultRateLimit      = 20 // requests per second
	DefaultBurstSize      = 40
	DefaultMaxUploadBytes = 32 << 20

	DefaultRequestTimeout = 2 * time.Minute
	DefaultStepTimeout    = 5 * time.Minute
)
