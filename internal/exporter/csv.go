package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	return &CSVWriter{logger: logger.With(slog.String("component", "csv_writer"))}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV replaces the file at path with the header and records of options
func (w *CSVWriter) WriteCSV(path string, options WriteOptions) error {
	w.logger.Info("Writing CSV file",
		slog.String("file_path", path),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewIOError("failed to create directory", err).WithContext("file", path)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return apperrors.NewIOError("failed to open file", err).WithContext("file", path)
	}
	defer file.Close()

	if options.BOMPrefix {
		if _, err := file.Write(utf8BOM); err != nil {
			return apperrors.NewIOError("failed to write BOM", err).WithContext("file", path)
		}
	}

	writer := csv.NewWriter(file)

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return apperrors.NewIOError("failed to write headers", err).WithContext("file", path)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return apperrors.NewIOError(fmt.Sprintf("failed to write record %d", i), err).WithContext("file", path)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.NewIOError("failed to flush CSV", err).WithContext("file", path)
	}
	return file.Close()
}

// WriteEnriched overwrites path with the source columns and derived KPI
// columns of e. Undefined ratios are empty cells.
func (w *CSVWriter) WriteEnriched(path string, e *dataprocessing.EnrichedTable) error {
	records := make([][]string, e.Len())
	for i := range records {
		row := e.Row(i)
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = formatValue(v)
		}
		records[i] = rec
	}

	return w.WriteCSV(path, WriteOptions{
		Headers:   e.Header(),
		Records:   records,
		BOMPrefix: true,
	})
}
