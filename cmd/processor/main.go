package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"


	"scdash/internal/app"
	"scdash/internal/config"
	"scdash/internal/infrastructure"
	"scdash/internal/operations"
	"scdash/internal/storage"
	"scdash/internal/validation"
)

type options struct {
	baseDir   string
	input     string
	output    string
	csv       string
	persistDB bool
	queries   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("processor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.baseDir, "base", "", "base directory for relative paths (defaults to the configured base dir)")
	fs.StringVar(&o.input, "input", "", "source CSV or XLSX file (defaults to the configured input file)")
	fs.StringVar(&o.output, "output", "", "processed workbook (defaults to the configured processed file)")
	fs.StringVar(&o.csv, "csv", "", "also write the enriched table as CSV")
	fs.BoolVar(&o.persistDB, "db", false, "replace the database table with the enriched rows")
	fs.StringVar(&o.queries, "queries", "", "SQL file to run after persisting (requires -db; defaults to the configured queries file when it exists)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return o, nil
}

// run executes the batch pipeline and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}
	if o.queries != "" && !o.persistDB {
		fmt.Fprintln(stderr, "-queries requires -db")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	if o.baseDir != "" {
		cfg.Paths.BaseDir = o.baseDir
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, "processor")

	if err := process(ctx, cfg, o, logger, stdout); err != nil {
		logger.ErrorContext(ctx, "processing failed", slog.String("error", err.Error()))
		fmt.Fprintf(stderr, "processing failed: %v\n", err)
		return 1
	}
	return 0
}

func process(ctx context.Context, cfg *config.Config, o options, logger *slog.Logger, stdout io.Writer) error {
	paths, err := cfg.ResolvePaths()
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}

	input := orDefault(o.input, paths.InputFile)
	output := orDefault(o.output, paths.ProcessedFile)

	validator := validation.NewFileValidator(logger)
	if _, err := validator.ValidateSourceFile(input); err != nil {
		return err
	}
	for _, out := range []string{output, o.csv} {
		if out == "" {
			continue
		}
		if err := validator.ValidateOutputDirectory(filepath.Dir(out)); err != nil {
			return err
		}
	}

	var store *storage.Store
	if o.persistDB {
		store, err = storage.Open(ctx, cfg.Database, paths.DatabaseFile, logger)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	pipeline, err := app.BuildPipeline(cfg, store, nil, nil, logger)
	if err != nil {
		return err
	}

	// The operation ID doubles as the trace ID of every log line of the run.
	ctx = infrastructure.EnsureTraceID(ctx)
	req := operations.OperationRequest{
		ID:         infrastructure.GetTraceID(ctx),
		InputFile:  input,
		OutputFile: output,
		CSVFile:    o.csv,
		PersistDB:  &o.persistDB,
	}
	logger.InfoContext(ctx, "Starting supply chain processing",
		slog.String("operation_id", req.ID),
		slog.String("input", req.InputFile),
		slog.String("output", req.OutputFile),
		slog.Bool("persist_db", req.PersistsDB()))

	resp, err := pipeline.Manager.Execute(ctx, req)
	if err != nil {
		return err
	}
	printSummary(stdout, resp)

	if store == nil {
		return nil
	}
	queries := o.queries
	if queries == "" {
		if !config.FileExists(paths.QueriesFile) {
			return nil
		}
		queries = paths.QueriesFile
	}
	results, err := store.RunQueries(ctx, queries)
	if err != nil {
		return err
	}
	printQueryResults(stdout, results)
	return nil
}

func printSummary(w io.Writer, resp *operations.OperationResponse) {
	s := resp.Summary
	if s == nil {
		fmt.Fprintf(w, "Operation %s: %s\n", resp.ID, resp.Status)
		return
	}
	fmt.Fprintf(w, "Processed %d rows, %d columns -> %s\n", s.Rows, s.Columns, s.OutputFile)
	if s.CSVFile != "" {
		fmt.Fprintf(w, "CSV written to %s\n", s.CSVFile)
	}
	if s.PersistedDB {
		fmt.Fprintf(w, "Inserted %d rows into the database\n", s.Rows)
	}
	for _, col := range nonZeroKeys(s.Filled) {
		fmt.Fprintf(w, "Filled %d missing values in %s\n", s.Filled[col], col)
	}
	for _, col := range nonZeroKeys(s.Undefined) {
		fmt.Fprintf(w, "%s undefined for %d rows\n", col, s.Undefined[col])
	}
	for _, warning := range s.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}

// nonZeroKeys returns the columns with a positive count, sorted.
func nonZeroKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for _, col := range slices.Sorted(maps.Keys(counts)) {
		if counts[col] > 0 {
			keys = append(keys, col)
		}
	}
	return keys
}

func printQueryResults(w io.Writer, results []storage.QueryResult) {
	for _, r := range results {
		fmt.Fprintf(w, "\n> %s\n", r.Statement)
		if len(r.Columns) == 0 {
			fmt.Fprintf(w, "%d rows affected\n", r.RowsAffected)
			continue
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(r.Columns, "\t"))
		for _, row := range r.Rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		tw.Flush()
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
