package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"scdash/internal/config"
	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Store writes enriched tables to one database table.
type Store struct {
	db      *sql.DB
	dialect dialect
	table   string
	logger  *slog.Logger
}

// Open connects to the database described by cfg and verifies the
// connection. For sqlite an empty DSN falls back to sqlitePath, whose
// directory is created if needed.
func Open(ctx context.Context, cfg config.DatabaseConfig, sqlitePath string, logger *slog.Logger) (*Store, error) {
	var (
		d   dialect
		dsn string
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		d = sqliteDialect
		dsn = cfg.DSN
		if dsn == "" {
			if sqlitePath == "" {
				return nil, apperrors.NewConfigError("sqlite database path is empty", nil)
			}
			if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
				return nil, apperrors.NewStorageError("cannot create database directory", err).
					WithContext("file", sqlitePath)
			}
			dsn = sqlitePath + "?_pragma=busy_timeout(5000)"
		}
	case DriverMySQL:
		if cfg.DSN == "" {
			return nil, apperrors.NewConfigError("mysql requires a DSN", nil)
		}
		d = mysqlDialect
		dsn = cfg.DSN
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported database driver %q", cfg.Driver), nil)
	}

	table := cfg.Table
	if table == "" {
		table = config.DefaultTableName
	}

	db, err := sql.Open(d.name, dsn)
	if err != nil {
		return nil, apperrors.NewStorageError("cannot open database", err).WithContext("driver", d.name)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx := ctx
	if cfg.ConnTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("cannot connect to database", err).WithContext("driver", d.name)
	}

	return &Store{
		db:      db,
		dialect: d,
		table:   table,
		logger:  logger.With(slog.String("component", "storage"), slog.String("driver", d.name)),
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewStorageError("database unreachable", err)
	}
	return nil
}

// Table returns the name of the target table.
func (s *Store) Table() string {
	return s.table
}

// Replace drops the target table, recreates it for the columns of e and
// inserts every row in a single transaction. On SQLite a failure leaves the
// previous contents untouched. MySQL commits DDL implicitly, so there a
// failed insert leaves an empty table.
func (s *Store) Replace(ctx context.Context, e *dataprocessing.EnrichedTable) (err error) {
	start := time.Now()
	columns := e.Header()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("cannot begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Error("rollback failed", slog.String("error", rbErr.Error()))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, s.dialect.dropTable(s.table)); err != nil {
		return apperrors.NewStorageError("cannot drop table", err).WithContext("table", s.table)
	}
	if _, err = tx.ExecContext(ctx, s.dialect.createTable(s.table, columns)); err != nil {
		return apperrors.NewStorageError("cannot create table", err).WithContext("table", s.table)
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.insert(s.table, columns))
	if err != nil {
		return apperrors.NewStorageError("cannot prepare insert", err).WithContext("table", s.table)
	}
	defer stmt.Close()

	nSource := len(e.Table.Columns)
	for i := 0; i < e.Len(); i++ {
		row := e.Row(i)
		for j := 0; j < nSource; j++ {
			row[j] = bindValue(columns[j], row[j].(string))
		}
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("cannot insert row %d", i+1), err).
				WithContext("table", s.table).
				WithContext("sku", e.Records[i].SKU)
		}
	}

	if err = tx.Commit(); err != nil {
		return apperrors.NewStorageError("cannot commit", err).WithContext("table", s.table)
	}

	s.logger.Info("replaced table",
		slog.String("table", s.table),
		slog.Int("rows", e.Len()),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Count returns the number of rows in the target table.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.dialect.ident(s.table)).Scan(&n)
	if err != nil {
		return 0, apperrors.NewStorageError("cannot count rows", err).WithContext("table", s.table)
	}
	return n, nil
}

// bindValue converts a source cell to the Go type of its column.
func bindValue(col, cell string) interface{} {
	if dataprocessing.IsMissing(cell) {
		return nil
	}
	t := typeOf(col)
	if t == typeText {
		return cell
	}
	v, ok := dataprocessing.ParseNumber(cell)
	if !ok {
		return strings.TrimSpace(cell)
	}
	if t == typeInteger && v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return int64(v)
	}
	return v
}
