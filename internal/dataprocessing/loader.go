package dataprocessing

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "scdash/internal/errors"
)

// Format identifies how a source file is parsed.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// LoadOptions tunes parsing. Zero values auto-detect.
type LoadOptions struct {
	// Delimiter for delimited files. 0 sniffs the header line for ',', ';'
	// or tab.
	Delimiter rune
	// Sheet to read from a workbook. Empty means the first sheet.
	Sheet string
}

const utf8BOM = "\ufeff"

// DetectFormat maps a file name to its format by extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", apperrors.NewIOError(fmt.Sprintf("unsupported file type %q", filepath.Ext(name)), nil).
			WithContext("file", filepath.Base(name))
	}
}

// LoadFile reads a delimited or spreadsheet file into a table.
func LoadFile(path string, opts LoadOptions) (*Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewIOError("cannot open input file", err).WithContext("file", path)
	}
	defer f.Close()

	t, err := LoadReader(f, format, opts)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			appErr.WithContext("file", path)
		}
		return nil, err
	}
	return t, nil
}

// LoadBytes parses an in-memory file.
func LoadBytes(data []byte, format Format, opts LoadOptions) (*Table, error) {
	return LoadReader(bytes.NewReader(data), format, opts)
}

// LoadReader parses r according to format.
func LoadReader(r io.Reader, format Format, opts LoadOptions) (*Table, error) {
	switch format {
	case FormatCSV:
		return readDelimited(r, opts.Delimiter)
	case FormatTSV:
		if opts.Delimiter == 0 {
			opts.Delimiter = '\t'
		}
		return readDelimited(r, opts.Delimiter)
	case FormatXLSX:
		return readWorkbook(r, opts.Sheet)
	default:
		return nil, apperrors.NewIOError(fmt.Sprintf("unsupported format %q", format), nil)
	}
}

func readDelimited(r io.Reader, delim rune) (*Table, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
		br.Discard(len(utf8BOM))
	}

	if delim == 0 {
		delim = sniffDelimiter(br)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = 0

	records, err := cr.ReadAll()
	if err != nil {
		return nil, apperrors.NewIOError("malformed delimited file", err)
	}
	if len(records) == 0 {
		return nil, apperrors.NewIOError("file is empty", nil)
	}
	if blankRow(records[0]) {
		return nil, apperrors.NewIOError("missing header row", nil)
	}

	return NewTable(records[0], records[1:]), nil
}

// sniffDelimiter picks the most frequent candidate in the first line.
func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(64 * 1024)
	line := string(peek)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	best, bestCount := ',', 0
	for _, c := range []rune{',', ';', '\t'} {
		if n := strings.Count(line, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func readWorkbook(r io.Reader, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewIOError("cannot read workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewIOError("workbook has no sheets", nil)
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, apperrors.NewIOError(fmt.Sprintf("sheet %q not found", sheet), nil).
			WithContext("sheets", sheets)
	}

	// Stored values, not the number-format display text.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewIOError(fmt.Sprintf("cannot read sheet %q", sheet), err)
	}

	for len(rows) > 0 && blankRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return nil, apperrors.NewIOError(fmt.Sprintf("sheet %q is empty", sheet), nil)
	}
	if blankRow(rows[0]) {
		return nil, apperrors.NewIOError("missing header row", nil)
	}

	header := rows[0]
	for i, row := range rows[1:] {
		for j := len(header); j < len(row); j++ {
			if strings.TrimSpace(row[j]) != "" {
				return nil, apperrors.NewIOError(
					fmt.Sprintf("row %d has more cells than the header", i+1), nil)
			}
		}
	}

	return NewTable(header, rows[1:]), nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
