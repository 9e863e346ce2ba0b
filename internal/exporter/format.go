package exporter

import (
	"strconv"

	"scdash/internal/dataprocessing"
)

// cellValue converts a source cell for a typed sink: numbers become float64,
// missing cells nil, anything else stays text.
func cellValue(cell string) interface{} {
	if dataprocessing.IsMissing(cell) {
		return nil
	}
	if v, ok := dataprocessing.ParseNumber(cell); ok {
		return v
	}
	return cell
}

// formatValue renders an output value as CSV text. nil is an empty cell.
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}
