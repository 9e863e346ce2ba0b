// Package storage persists enriched supply-chain tables to a relational
// database. SQLite (modernc.org/sqlite, pure Go) is the default; MySQL is
// available through github.com/go-sql-driver/mysql.
//
// Every Replace drops and recreates the target table, so the database
// always holds exactly the rows of the latest pipeline run.
package storage
