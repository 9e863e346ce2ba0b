package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	apperrors "scdash/internal/errors"
)

// QueryResult is the outcome of one statement from a query file. Row-
// returning statements fill Columns and Rows; others report RowsAffected.
type QueryResult struct {
	Statement    string     `json:"statement"`
	Columns      []string   `json:"columns,omitempty"`
	Rows         [][]string `json:"rows,omitempty"`
	RowsAffected int64      `json:"rows_affected"`
}

// SplitStatements splits a script on ';' and drops empty statements.
func SplitStatements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RunQueries executes every statement of the file at path in order and
// stops at the first failure.
func (s *Store) RunQueries(ctx context.Context, path string) ([]QueryResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewIOError("cannot read query file", err).WithContext("file", path)
	}

	statements := SplitStatements(string(data))
	results := make([]QueryResult, 0, len(statements))
	for i, stmt := range statements {
		res, err := s.run(ctx, stmt)
		if err != nil {
			return results, apperrors.NewStorageError(fmt.Sprintf("statement %d failed", i+1), err).
				WithContext("file", path).
				WithContext("statement", stmt)
		}
		results = append(results, res)

		s.logger.Info("executed query",
			slog.Int("statement", i+1),
			slog.Int("rows", len(res.Rows)),
			slog.Int64("rows_affected", res.RowsAffected))
	}
	return results, nil
}

func returnsRows(stmt string) bool {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "PRAGMA", "SHOW", "EXPLAIN", "DESCRIBE":
		return true
	}
	return false
}

func (s *Store) run(ctx context.Context, stmt string) (QueryResult, error) {
	res := QueryResult{Statement: stmt}

	if !returnsRows(stmt) {
		r, err := s.db.ExecContext(ctx, stmt)
		if err != nil {
			return res, err
		}
		res.RowsAffected, _ = r.RowsAffected()
		return res, nil
	}

	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return res, err
	}
	defer rows.Close()

	if res.Columns, err = rows.Columns(); err != nil {
		return res, err
	}

	for rows.Next() {
		cells := make([]sql.NullString, len(res.Columns))
		dest := make([]interface{}, len(cells))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return res, err
		}
		row := make([]string, len(cells))
		for i, c := range cells {
			if c.Valid {
				row[i] = c.String
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}
