package validation

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
)

// FileValidator checks source files and output directories before a run
// touches them.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateSourceFile checks that path is a readable, non-empty CSV, TSV or
// XLSX file and returns its format.
func (v *FileValidator) ValidateSourceFile(path string) (dataprocessing.Format, error) {
	format, err := dataprocessing.DetectFormat(path)
	if err != nil {
		v.logger.Error("Unsupported source file",
			slog.String("file", path),
			slog.String("extension", filepath.Ext(path)))
		return "", err
	}

	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("Refusing temporary Excel lock file", slog.String("file", path))
		return "", apperrors.NewIOError("source is a temporary Excel lock file", nil).
			WithContext("file", path)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("Source file does not exist", slog.String("file", path))
		return "", apperrors.NewIOError("source file does not exist", err).WithContext("file", path)
	}
	if err != nil {
		return "", apperrors.NewIOError("cannot stat source file", err).WithContext("file", path)
	}
	if info.IsDir() {
		return "", apperrors.NewIOError("source path is a directory", nil).WithContext("file", path)
	}
	if info.Size() == 0 {
		return "", apperrors.NewIOError("source file is empty", nil).WithContext("file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", apperrors.NewIOError("source file is not readable", err).WithContext("file", path)
	}
	file.Close()

	v.logger.Debug("Source file validated",
		slog.String("file", path),
		slog.String("format", string(format)),
		slog.Int64("size", info.Size()))
	return format, nil
}

// ValidateOutputDirectory creates dir when missing and proves it is writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewIOError("cannot create output directory", err).WithContext("directory", dir)
	}

	file, err := os.CreateTemp(dir, ".write_test-*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewIOError("output directory is not writable", err).WithContext("directory", dir)
	}
	name := file.Name()
	file.Close()
	os.Remove(name)

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}
