package forecast

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
)

// Column names with special handling.
const (
	DateColumn    = "Date"
	DefaultTarget = "HistoricalSales"
)

// CategoricalColumns are one-hot encoded when present, in this order.
var CategoricalColumns = []string{"Promotion", "Weather", "EconomicIndicators"}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	time.RFC3339,
}

// Dataset is a numeric feature matrix with its target column.
type Dataset struct {
	Target   string
	Features []string
	X        [][]float64
	Y        []float64
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Y) }

// Rows returns the feature rows at idx.
func (d *Dataset) Rows(idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = d.X[j]
	}
	return out
}

// Targets returns the target values at idx.
func (d *Dataset) Targets(idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = d.Y[j]
	}
	return out
}

// FeatureMeans returns the mean of every feature column.
func (d *Dataset) FeatureMeans() []float64 {
	means := make([]float64, len(d.Features))
	if d.Len() == 0 {
		return means
	}
	for _, row := range d.X {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(d.Len())
	}
	return means
}

// column is one named column of string cells under construction.
type column struct {
	name  string
	cells []string
}

// Prepare turns a raw table into a numeric dataset: rows with any missing
// cell are dropped, a Date column becomes Month, DayOfWeek (Monday=0) and
// Quarter, categorical columns are one-hot encoded, and every remaining
// non-target column must be numeric.
func Prepare(t *dataprocessing.Table, target string) (*Dataset, error) {
	if target == "" {
		target = DefaultTarget
	}

	var keep []int
	for i, row := range t.Rows {
		complete := true
		for _, cell := range row {
			if dataprocessing.IsMissing(cell) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}

	cols := make([]column, len(t.Columns))
	for j, name := range t.Columns {
		cells := make([]string, len(keep))
		for i, r := range keep {
			cells[i] = strings.TrimSpace(t.Rows[r][j])
		}
		cols[j] = column{name: name, cells: cells}
	}

	cols, err := expandDate(cols)
	if err != nil {
		return nil, err
	}
	for _, name := range CategoricalColumns {
		cols = oneHot(cols, name)
	}

	targetIdx := -1
	for j, c := range cols {
		if c.name == target {
			targetIdx = j
			break
		}
	}
	if targetIdx < 0 {
		return nil, apperrors.NewSchemaError(fmt.Sprintf("target column %q not found in dataset", target), nil).
			WithContext("target", target)
	}
	if len(keep) == 0 {
		return nil, apperrors.NewSchemaError("dataset has no complete rows", nil)
	}

	ds := &Dataset{Target: target, Y: make([]float64, len(keep)), X: make([][]float64, len(keep))}
	for i := range ds.X {
		ds.X[i] = make([]float64, 0, len(cols)-1)
	}

	for j, c := range cols {
		if j != targetIdx {
			ds.Features = append(ds.Features, c.name)
		}
		for i, cell := range c.cells {
			v, ok := dataprocessing.ParseNumber(cell)
			if !ok {
				return nil, apperrors.NewSchemaError(
					fmt.Sprintf("row %d, column %s: non-numeric value %q", keep[i]+1, c.name, cell), nil).
					WithContext("column", c.name)
			}
			if j == targetIdx {
				ds.Y[i] = v
			} else {
				ds.X[i] = append(ds.X[i], v)
			}
		}
	}
	if len(ds.Features) == 0 {
		return nil, apperrors.NewSchemaError("dataset has no feature columns", nil)
	}

	return ds, nil
}

// Workbook date serials accepted by ParseDate: 1900-01-01 to 9999-12-31.
const (
	minDateSerial = 1
	maxDateSerial = 2958465
)

// ParseDate parses s with the first accepted layout that matches. Workbook
// cells read as stored values carry dates as serial day numbers, which are
// accepted too.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	if v, ok := dataprocessing.ParseNumber(s); ok && v >= minDateSerial && v <= maxDateSerial {
		if d, err := excelize.ExcelDateToTime(v, false); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// expandDate replaces the Date column with Month, DayOfWeek and Quarter
// columns appended at the end.
func expandDate(cols []column) ([]column, error) {
	idx := -1
	for j, c := range cols {
		if c.name == DateColumn {
			idx = j
			break
		}
	}
	if idx < 0 {
		return cols, nil
	}

	src := cols[idx].cells
	month := make([]string, len(src))
	dow := make([]string, len(src))
	quarter := make([]string, len(src))
	for i, cell := range src {
		d, ok := ParseDate(cell)
		if !ok {
			return nil, apperrors.NewSchemaError(fmt.Sprintf("column %s: cannot parse date %q", DateColumn, cell), nil).
				WithContext("column", DateColumn)
		}
		m := int(d.Month())
		month[i] = fmt.Sprint(m)
		dow[i] = fmt.Sprint((int(d.Weekday()) + 6) % 7)
		quarter[i] = fmt.Sprint((m-1)/3 + 1)
	}

	out := make([]column, 0, len(cols)+2)
	out = append(out, cols[:idx]...)
	out = append(out, cols[idx+1:]...)
	return append(out,
		column{name: "Month", cells: month},
		column{name: "DayOfWeek", cells: dow},
		column{name: "Quarter", cells: quarter},
	), nil
}

// oneHot replaces the named column with one 0/1 column per distinct value,
// named name_value in sorted value order and appended at the end.
func oneHot(cols []column, name string) []column {
	idx := -1
	for j, c := range cols {
		if c.name == name {
			idx = j
			break
		}
	}
	if idx < 0 {
		return cols
	}

	src := cols[idx].cells
	seen := make(map[string]bool)
	var values []string
	for _, v := range src {
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	sort.Strings(values)

	out := make([]column, 0, len(cols)-1+len(values))
	out = append(out, cols[:idx]...)
	out = append(out, cols[idx+1:]...)
	for _, v := range values {
		cells := make([]string, len(src))
		for i, s := range src {
			if s == v {
				cells[i] = "1"
			} else {
				cells[i] = "0"
			}
		}
		out = append(out, column{name: name + "_" + v, cells: cells})
	}
	return out
}
