// Package exporter writes enriched supply-chain tables to disk or to an
// io.Writer.
//
// XLSXWriter produces the processed workbook (sheet "processed_data") that
// the dashboard serves for download. CSVWriter writes the same rows as CSV
// with a UTF-8 BOM so Excel opens it with the right encoding.
//
// Example usage:
//
//	w := exporter.NewXLSXWriter(logger)
//	if err := w.Write(paths.ProcessedFile, enriched); err != nil {
//		return err
//	}
package exporter
