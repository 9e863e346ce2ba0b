package dataprocessing

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	apperrors "scdash/internal/errors"
)

// FillDefault is the replacement for missing cells of one column: either a
// constant or the median of the column's numeric cells.
type FillDefault struct {
	Value  float64
	Median bool
}

// Constant fills with v.
func Constant(v float64) FillDefault { return FillDefault{Value: v} }

// Median fills with the column median, or 0 when it has no numeric cells.
func Median() FillDefault { return FillDefault{Median: true} }

func (f FillDefault) String() string {
	if f.Median {
		return "median"
	}
	return FormatNumber(f.Value)
}

// FillDefaults maps a normalized column label to its fill policy.
type FillDefaults map[string]FillDefault

// DefaultFillDefaults is the standard policy for supply-chain exports.
func DefaultFillDefaults() FillDefaults {
	return FillDefaults{
		"price":                   Constant(0),
		"availability":            Constant(0),
		"number_of_products_sold": Constant(0),
		"revenue_generated":       Constant(0),
		"stock_levels":            Constant(0),
		"lead_times":              Median(),
		"shipping_costs":          Constant(0),
		"manufacturing_costs":     Constant(0),
		"defect_rates":            Constant(0),
	}
}

// ParseFillDefaults converts the configuration form ("median" or a number
// per column) into fill policies. Column labels are normalized.
func ParseFillDefaults(raw map[string]string) (FillDefaults, error) {
	out := make(FillDefaults, len(raw))
	for col, rule := range raw {
		rule = strings.TrimSpace(rule)
		name := NormalizeColumnName(col)
		if strings.EqualFold(rule, "median") {
			out[name] = Median()
			continue
		}
		v, err := strconv.ParseFloat(rule, 64)
		if err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("invalid fill default for %q: %q", col, rule), err)
		}
		out[name] = Constant(v)
	}
	return out, nil
}

// NormalizeColumnName trims, lowercases and replaces spaces with underscores.
func NormalizeColumnName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// CleanReport counts the cells filled per column.
type CleanReport struct {
	Rows   int            `json:"rows"`
	Filled map[string]int `json:"filled"`
}

// TotalFilled sums the filled cells across columns.
func (r CleanReport) TotalFilled() int {
	n := 0
	for _, v := range r.Filled {
		n += v
	}
	return n
}

// Cleaner normalizes labels and fills missing cells.
type Cleaner struct {
	fills  FillDefaults
	logger *slog.Logger
}

// NewCleaner creates a cleaner with an explicit fill policy.
func NewCleaner(fills FillDefaults, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		fills:  fills,
		logger: logger.With(slog.String("component", "cleaner")),
	}
}

// Clean returns a new table with normalized labels and filled cells. The
// input is left untouched. Columns without a fill policy keep their missing
// cells, and applying Clean to its own output changes nothing.
func (c *Cleaner) Clean(in *Table) (*Table, CleanReport) {
	out := in.Clone()
	for i, col := range out.Columns {
		out.Columns[i] = NormalizeColumnName(col)
	}

	report := CleanReport{Rows: out.Len(), Filled: make(map[string]int)}

	names := make([]string, 0, len(c.fills))
	for name := range c.fills {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		idx := out.ColumnIndex(name)
		if idx < 0 {
			continue
		}

		fill := c.fills[name]
		value := fill.Value
		if fill.Median {
			value, _ = median(out, idx)
		}
		cell := FormatNumber(value)

		for _, row := range out.Rows {
			if IsMissing(row[idx]) {
				row[idx] = cell
				report.Filled[name]++
			}
		}
	}

	if total := report.TotalFilled(); total > 0 {
		c.logger.Info("filled missing cells",
			slog.Int("rows", report.Rows),
			slog.Int("cells", total),
			slog.Any("per_column", report.Filled))
	}

	return out, report
}
