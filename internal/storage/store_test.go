package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scdash/internal/config"
	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
	"scdash/internal/shared/testutil"
)

func enrichedRows(t *testing.T, rows [][]string) *dataprocessing.EnrichedTable {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	cleaned, _ := dataprocessing.NewCleaner(dataprocessing.DefaultFillDefaults(), logger).
		Clean(dataprocessing.NewTable(testutil.SampleHeader, rows))
	e, err := dataprocessing.NewCalculator(dataprocessing.DefaultDelayThreshold, logger).Calculate(cleaned)
	require.NoError(t, err)
	return e
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	cfg := config.Default().Database
	s, err := Open(context.Background(), cfg, filepath.Join(t.TempDir(), "data", "supply_chain.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func queryStrings(t *testing.T, s *Store, q string) [][]string {
	t.Helper()
	res, err := s.run(context.Background(), q)
	require.NoError(t, err)
	return res.Rows
}

func TestStore_Replace(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Replace(ctx, enrichedRows(t, testutil.SampleRows)))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	rows := queryStrings(t, s, "SELECT sku, delayed_shipment, delivery_ratio, inventory_turnover FROM supply_chain ORDER BY sku")
	assert.Equal(t, [][]string{
		{"SKU0", "0", "0.5", "10"},
		{"SKU1", "1", "0.5", "10"},
		{"SKU2", "0", "0.5", "10"},
		{"SKU3", "1", "0.5", "1.25"},
		{"SKU4", "0", "1", "3"},
	}, rows)

	types := queryStrings(t, s, "SELECT typeof(sku), typeof(price), typeof(lead_time), typeof(customer_demographics) FROM supply_chain LIMIT 1")
	assert.Equal(t, [][]string{{"text", "real", "integer", "text"}}, types)
}

func TestStore_ReplaceKeepsOnlyLatestRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Replace(ctx, enrichedRows(t, testutil.SampleRows)))
	require.NoError(t, s.Replace(ctx, enrichedRows(t, testutil.SampleRows[:2])))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, [][]string{{"SKU0"}, {"SKU1"}}, queryStrings(t, s, "SELECT sku FROM supply_chain ORDER BY sku"))
}

func TestStore_UndefinedMetricsAreNull(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rows := testutil.ReplaceColumn(testutil.SampleRows, 9, "0", "0")
	require.NoError(t, s.Replace(ctx, enrichedRows(t, rows)))

	got := queryStrings(t, s, "SELECT COUNT(*) FROM supply_chain WHERE avg_shipping_cost IS NULL")
	assert.Equal(t, [][]string{{"2"}}, got)
}

func TestStore_DuplicateSKUIsStorageError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Replace(ctx, enrichedRows(t, testutil.SampleRows)))

	dup := testutil.ReplaceColumn(testutil.SampleRows, 1, "SKU0", "SKU0")
	err := s.Replace(ctx, enrichedRows(t, dup))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
	assert.Contains(t, err.Error(), "row 2")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n, "failed replace rolls back to the previous contents")
}

func TestStore_RunQueries(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Replace(ctx, enrichedRows(t, testutil.SampleRows)))

	path := filepath.Join(t.TempDir(), "queries.sql")
	script := `
SELECT location, SUM(total_revenue) FROM supply_chain GROUP BY location ORDER BY location;
;
UPDATE supply_chain SET price = 1 WHERE sku = 'SKU0';
SELECT COUNT(*) FROM supply_chain WHERE price = 1
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0644))

	results, err := s.RunQueries(ctx, path)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, [][]string{{"Delhi", "11000"}, {"Kolkata", "7500"}, {"Mumbai", "5000"}}, results[0].Rows)
	assert.Len(t, results[0].Columns, 2)
	assert.Equal(t, int64(1), results[1].RowsAffected)
	assert.Equal(t, [][]string{{"1"}}, results[2].Rows)
}

func TestStore_RunQueriesStopsAtFailure(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Replace(ctx, enrichedRows(t, testutil.SampleRows)))

	path := filepath.Join(t.TempDir(), "queries.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT 1; SELECT nope FROM missing_table; SELECT 2"), 0644))

	results, err := s.RunQueries(ctx, path)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
	assert.Contains(t, err.Error(), "statement 2")
	assert.Len(t, results, 1)

	_, err = s.RunQueries(ctx, filepath.Join(t.TempDir(), "absent.sql"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeIO))
}

func TestOpen_Errors(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		path string
	}{
		{"unknown driver", config.DatabaseConfig{Driver: "oracle"}, "x.db"},
		{"mysql without dsn", config.DatabaseConfig{Driver: DriverMySQL}, ""},
		{"sqlite without path", config.DatabaseConfig{Driver: DriverSQLite}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.cfg, tt.path, logger)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
		})
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"SELECT 1", []string{"SELECT 1"}},
		{" SELECT 1 ;\n\n; SELECT 2;", []string{"SELECT 1", "SELECT 2"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitStatements(tt.in))
	}
}

func TestDialect_CreateTable(t *testing.T) {
	cols := []string{"sku", "price", "lead_time", "extra col"}

	sqlite := sqliteDialect.createTable("supply_chain", cols)
	assert.Contains(t, sqlite, `"sku" TEXT PRIMARY KEY`)
	assert.Contains(t, sqlite, `"price" REAL`)
	assert.Contains(t, sqlite, `"lead_time" INTEGER`)
	assert.Contains(t, sqlite, `"extra col" TEXT`)

	mysql := mysqlDialect.createTable("supply_chain", cols)
	assert.True(t, strings.HasPrefix(mysql, "CREATE TABLE `supply_chain`"))
	assert.Contains(t, mysql, "`sku` VARCHAR(255) PRIMARY KEY")
	assert.Contains(t, mysql, "`lead_time` BIGINT")

	assert.Equal(t, "INSERT INTO `t` (`a`, `b`) VALUES (?, ?)", mysqlDialect.insert("t", []string{"a", "b"}))
	assert.Equal(t, `"a""b"`, sqliteDialect.ident(`a"b`))
}
