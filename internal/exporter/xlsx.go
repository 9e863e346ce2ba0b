package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
)

// ProcessedSheet is the sheet name of the processed workbook.
const ProcessedSheet = "processed_data"

// XLSXWriter renders enriched tables as a single-sheet workbook.
type XLSXWriter struct {
	sheet  string
	logger *slog.Logger
}

// NewXLSXWriter creates a writer for the processed_data sheet.
func NewXLSXWriter(logger *slog.Logger) *XLSXWriter {
	return &XLSXWriter{
		sheet:  ProcessedSheet,
		logger: logger.With(slog.String("component", "xlsx_writer")),
	}
}

// Write overwrites path with the workbook of e. The file is written to a
// temporary sibling first and renamed, so readers never see a partial
// workbook.
func (w *XLSXWriter) Write(path string, e *dataprocessing.EnrichedTable) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewIOError("failed to create directory", err).WithContext("file", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".processed-*.xlsx")
	if err != nil {
		return apperrors.NewIOError("failed to create workbook", err).WithContext("file", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := w.WriteTo(tmp, e); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewIOError("failed to close workbook", err).WithContext("file", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return apperrors.NewIOError("failed to replace workbook", err).WithContext("file", path)
	}

	w.logger.Info("wrote processed workbook",
		slog.String("file_path", path),
		slog.Int("rows", e.Len()),
		slog.Int("columns", len(e.Header())))
	return nil
}

// WriteTo streams the workbook of e to out.
func (w *XLSXWriter) WriteTo(out io.Writer, e *dataprocessing.EnrichedTable) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), w.sheet); err != nil {
		return apperrors.NewIOError("failed to name sheet", err)
	}

	sw, err := f.NewStreamWriter(w.sheet)
	if err != nil {
		return apperrors.NewIOError("failed to open sheet writer", err)
	}

	header := e.Header()
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := sw.SetRow("A1", headerRow); err != nil {
		return apperrors.NewIOError("failed to write header row", err)
	}

	nSource := len(e.Table.Columns)
	for i := 0; i < e.Len(); i++ {
		row := e.Row(i)
		for j := 0; j < nSource; j++ {
			row[j] = cellValue(row[j].(string))
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apperrors.NewIOError(fmt.Sprintf("invalid row %d", i+1), err)
		}
		if err := sw.SetRow(cell, row); err != nil {
			return apperrors.NewIOError(fmt.Sprintf("failed to write row %d", i+1), err)
		}
	}

	if err := sw.Flush(); err != nil {
		return apperrors.NewIOError("failed to flush sheet", err)
	}
	if _, err := f.WriteTo(out); err != nil {
		return apperrors.NewIOError("failed to write workbook", err)
	}
	return nil
}
