package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
)

func TestPrepare_DateAndDummies(t *testing.T) {
	table := dataprocessing.NewTable(
		[]string{"Date", "Price", "Promotion", "Weather", "HistoricalSales"},
		[][]string{
			{"2024-01-01", "10", "Yes", "Sunny", "100"},
			{"2024-05-18", "12", "No", "Rainy", "120"},
			{"", "11", "No", "Sunny", "90"},
			{"11/30/2024", "9", "Yes", "Cloudy", "80"},
		},
	)

	ds, err := Prepare(table, "")
	require.NoError(t, err)

	assert.Equal(t, DefaultTarget, ds.Target)
	assert.Equal(t, []string{
		"Price", "Month", "DayOfWeek", "Quarter",
		"Promotion_No", "Promotion_Yes",
		"Weather_Cloudy", "Weather_Rainy", "Weather_Sunny",
	}, ds.Features)
	assert.Equal(t, []float64{100, 120, 80}, ds.Y)
	assert.Equal(t, [][]float64{
		{10, 1, 0, 1, 0, 1, 0, 0, 1},
		{12, 5, 5, 2, 1, 0, 0, 1, 0},
		{9, 11, 5, 4, 0, 1, 1, 0, 0},
	}, ds.X)
}

func TestPrepare_Errors(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		rows    [][]string
		msg     string
	}{
		{
			name:    "missing target",
			columns: []string{"Price"},
			rows:    [][]string{{"1"}},
			msg:     `target column "HistoricalSales" not found`,
		},
		{
			name:    "no complete rows",
			columns: []string{"Price", "HistoricalSales"},
			rows:    [][]string{{"", "1"}},
			msg:     "no complete rows",
		},
		{
			name:    "non numeric feature",
			columns: []string{"Region", "HistoricalSales"},
			rows:    [][]string{{"1", "1"}, {"north", "2"}},
			msg:     `row 2, column Region: non-numeric value "north"`,
		},
		{
			name:    "bad date",
			columns: []string{"Date", "HistoricalSales"},
			rows:    [][]string{{"yesterday", "1"}},
			msg:     "cannot parse date",
		},
		{
			name:    "target only",
			columns: []string{"HistoricalSales"},
			rows:    [][]string{{"1"}},
			msg:     "no feature columns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(dataprocessing.NewTable(tt.columns, tt.rows), "")
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseDate(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{"2024-01-01", jan1, true},
		{"2024-01-01 00:00:00", jan1, true},
		{"01/01/2024", jan1, true},
		{"2024-01-01T00:00:00Z", jan1, true},
		{"45292", jan1, true},
		{" 45292 ", jan1, true},
		{"0", time.Time{}, false},
		{"-3", time.Time{}, false},
		{"yesterday", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseDate(tt.in)
		assert.Equal(t, tt.wantOK, ok, "%q", tt.in)
		if tt.wantOK {
			assert.True(t, tt.want.Equal(got), "%q parsed as %v", tt.in, got)
		}
	}
}

func TestDataset_RowsTargetsMeans(t *testing.T) {
	ds := &Dataset{
		Features: []string{"a", "b"},
		X:        [][]float64{{1, 10}, {3, 20}, {5, 30}},
		Y:        []float64{7, 8, 9},
	}

	assert.Equal(t, [][]float64{{5, 30}, {1, 10}}, ds.Rows([]int{2, 0}))
	assert.Equal(t, []float64{8}, ds.Targets([]int{1}))
	assert.Equal(t, []float64{3, 20}, ds.FeatureMeans())
}

func TestSplit(t *testing.T) {
	train, test := Split(10, 0.2, 42)
	assert.Len(t, test, 2)
	assert.Len(t, train, 8)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, append(append([]int{}, train...), test...))

	train2, test2 := Split(10, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, test = Split(11, 0.2, 42)
	assert.Len(t, test, 3, "test size rounds up")

	train, test = Split(2, 0.9, 1)
	assert.Len(t, train, 1)
	assert.Len(t, test, 1)

	train, test = Split(0, 0.2, 1)
	assert.Empty(t, train)
	assert.Empty(t, test)
}

func TestStandardScaler(t *testing.T) {
	s := FitScaler([][]float64{{1, 5}, {3, 5}})
	assert.Equal(t, []float64{2, 5}, s.Mean)
	assert.Equal(t, []float64{1, 1}, s.Scale, "constant feature keeps scale 1")

	assert.Equal(t, []float64{1, 0}, s.TransformRow([]float64{3, 5}))
	assert.Equal(t, [][]float64{{-1, 0}, {0, 2}}, s.Transform([][]float64{{1, 5}, {2, 7}}))

	s = FitScaler([][]float64{{0}, {4}})
	assert.Equal(t, []float64{2}, s.Scale)
}
