package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. SCDASH_SERVER_PORT.
const EnvPrefix = "SCDASH"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Forecast  ForecastConfig  `yaml:"forecast" envconfig:"FORECAST"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	SecurityHeaders bool            `yaml:"security_headers" envconfig:"SECURITY_HEADERS"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig holds file locations. Relative entries resolve against
// BaseDir, and file entries other than QueriesFile resolve inside DataDir.
type PathsConfig struct {
	BaseDir       string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir       string `yaml:"data_dir" envconfig:"DATA_DIR"`
	LogsDir       string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
	InputFile     string `yaml:"input_file" envconfig:"INPUT_FILE"`
	ProcessedFile string `yaml:"processed_file" envconfig:"PROCESSED_FILE"`
	DatabaseFile  string `yaml:"database_file" envconfig:"DATABASE_FILE"`
	ModelFile     string `yaml:"model_file" envconfig:"MODEL_FILE"`
	QueriesFile   string `yaml:"queries_file" envconfig:"QUERIES_FILE"`
}

// DatabaseConfig selects the relational persister backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver" envconfig:"DRIVER"`
	// DSN overrides the sqlite file path; required for mysql.
	DSN          string        `yaml:"dsn" envconfig:"DSN"`
	Table        string        `yaml:"table" envconfig:"TABLE"`
	MaxOpenConns int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	ConnTimeout  time.Duration `yaml:"conn_timeout" envconfig:"CONN_TIMEOUT"`
}

// PipelineConfig tunes the cleaning and KPI steps.
type PipelineConfig struct {
	DelayThresholdDays float64 `yaml:"delay_threshold_days" envconfig:"DELAY_THRESHOLD_DAYS"`
	// FillDefaults maps a normalized column to a constant or "median".
	FillDefaults map[string]string `yaml:"fill_defaults" envconfig:"FILL_DEFAULTS"`
	StepTimeout  time.Duration     `yaml:"step_timeout" envconfig:"STEP_TIMEOUT"`
	PersistDB    bool              `yaml:"persist_db" envconfig:"PERSIST_DB"`
}

// ForecastConfig holds the demand model hyperparameters.
type ForecastConfig struct {
	Target          string  `yaml:"target" envconfig:"TARGET"`
	Epochs          int     `yaml:"epochs" envconfig:"EPOCHS"`
	BatchSize       int     `yaml:"batch_size" envconfig:"BATCH_SIZE"`
	LearningRate    float64 `yaml:"learning_rate" envconfig:"LEARNING_RATE"`
	Seed            int64   `yaml:"seed" envconfig:"SEED"`
	TestSize        float64 `yaml:"test_size" envconfig:"TEST_SIZE"`
	ValidationSplit float64 `yaml:"validation_split" envconfig:"VALIDATION_SPLIT"`
	HiddenLayers    []int   `yaml:"hidden_layers" envconfig:"HIDDEN_LAYERS"`
}

// TelemetryConfig controls OpenTelemetry exporters.
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// Load builds the configuration from defaults, then an optional YAML file,
// then SCDASH_* environment variables, and validates the result.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file. An empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Only variables that are actually set override; no field carries a
	// default tag, so unset variables leave file and default values alone.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// ResolvePaths resolves the configured locations to absolute paths.
func (c *Config) ResolvePaths() (*Paths, error) {
	return GetPaths(c.Paths)
}

func (c *Config) validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid server port: %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		problems = append(problems, "server read and write timeouts must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		problems = append(problems, "server max upload bytes must be positive")
	}

	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
		if c.Database.DSN == "" {
			problems = append(problems, "database dsn is required for the mysql driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported database driver: %q", c.Database.Driver))
	}
	if c.Database.Table == "" {
		problems = append(problems, "database table must be set")
	}

	if c.Pipeline.DelayThresholdDays < 0 {
		problems = append(problems, "pipeline delay threshold must not be negative")
	}

	f := c.Forecast
	if f.Target == "" {
		problems = append(problems, "forecast target must be set")
	}
	if f.Epochs <= 0 || f.BatchSize <= 0 || f.LearningRate <= 0 {
		problems = append(problems, "forecast epochs, batch size and learning rate must be positive")
	}
	if f.TestSize <= 0 || f.TestSize >= 1 {
		problems = append(problems, fmt.Sprintf("forecast test size must be in (0,1): %v", f.TestSize))
	}
	if f.ValidationSplit < 0 || f.ValidationSplit >= 1 {
		problems = append(problems, fmt.Sprintf("forecast validation split must be in [0,1): %v", f.ValidationSplit))
	}
	for _, h := range f.HiddenLayers {
		if h <= 0 {
			problems = append(problems, "forecast hidden layer sizes must be positive")
			break
		}
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// getConfigFilePath returns the first config file found, or "".
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  DefaultRequestTimeout,
			MaxUploadBytes:  DefaultMaxUploadBytes,
		},
		Security: SecurityConfig{
			SecurityHeaders: true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			DataDir:       DefaultDataDir,
			LogsDir:       DefaultLogsDir,
			InputFile:     DefaultInputFile,
			ProcessedFile: DefaultProcessedFile,
			DatabaseFile:  DefaultDatabaseFile,
			ModelFile:     DefaultModelFile,
			QueriesFile:   DefaultQueriesFile,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Table:        DefaultTableName,
			MaxOpenConns: 1,
			ConnTimeout:  10 * time.Second,
		},
		Pipeline: PipelineConfig{
			DelayThresholdDays: DefaultDelayThresholdDays,
			FillDefaults:       DefaultFillDefaults(),
			StepTimeout:        DefaultStepTimeout,
			PersistDB:          false,
		},
		Forecast: ForecastConfig{
			Target:          DefaultForecastTarget,
			Epochs:          50,
			BatchSize:       32,
			LearningRate:    0.001,
			Seed:            42,
			TestSize:        0.2,
			ValidationSplit: 0.2,
			HiddenLayers:    []int{128, 64, 32},
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}

// DefaultFillDefaults is the missing-value policy of the cleaning step.
func DefaultFillDefaults() map[string]string {
	return map[string]string{
		"price":                   "0",
		"availability":            "0",
		"number_of_products_sold": "0",
		"revenue_generated":       "0",
		"stock_levels":            "0",
		"lead_times":              "median",
		"shipping_costs":          "0",
		"manufacturing_costs":     "0",
		"defect_rates":            "0",
	}
}
