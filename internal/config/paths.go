package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains every resolved file system location the application uses.
type Paths struct {
	BaseDir       string
	DataDir       string
	LogsDir       string
	ModelsDir     string
	InputFile     string
	ProcessedFile string
	DatabaseFile  string
	ModelFile     string
	QueriesFile   string
}

// GetPaths resolves pc to absolute paths. An empty BaseDir means the
// current working directory, which matches how the batch processor is run.
func GetPaths(pc PathsConfig) (*Paths, error) {
	base := pc.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	dataDir := under(base, orDefault(pc.DataDir, DefaultDataDir))
	modelFile := under(dataDir, orDefault(pc.ModelFile, DefaultModelFile))

	return &Paths{
		BaseDir:       base,
		DataDir:       dataDir,
		LogsDir:       under(base, orDefault(pc.LogsDir, DefaultLogsDir)),
		ModelsDir:     filepath.Dir(modelFile),
		InputFile:     under(dataDir, orDefault(pc.InputFile, DefaultInputFile)),
		ProcessedFile: under(dataDir, orDefault(pc.ProcessedFile, DefaultProcessedFile)),
		DatabaseFile:  under(dataDir, orDefault(pc.DatabaseFile, DefaultDatabaseFile)),
		ModelFile:     modelFile,
		QueriesFile:   under(base, orDefault(pc.QueriesFile, DefaultQueriesFile)),
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.LogsDir, p.ModelsDir, filepath.Dir(p.ProcessedFile)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LogPathResolution logs the resolved locations at debug level.
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Debug("path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("logs", p.LogsDir),
			slog.String("models", p.ModelsDir),
		),
		slog.Group("files",
			slog.String("input", p.InputFile),
			slog.String("processed", p.ProcessedFile),
			slog.String("database", p.DatabaseFile),
			slog.String("model", p.ModelFile),
			slog.String("queries", p.QueriesFile),
		))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func under(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
