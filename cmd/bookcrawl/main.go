package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-books-catalog/api"
	"github.com/aluiziolira/go-books-catalog/config"
	"github.com/aluiziolira/go-books-catalog/crawler"
	"github.com/aluiziolira/go-books-catalog/database"
	"github.com/aluiziolira/go-books-catalog/export"
	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/scraper"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	command, rest := args[0], args[1:]
	switch command {
	case "serve":
		return runServe(ctx, cfg, rest, stderr)
	case "categories":
		return runCategories(ctx, cfg, rest, stdout, stderr)
	case "books":
		return runBooks(ctx, cfg, rest, stdout, stderr)
	case "export":
		return runExport(ctx, cfg, rest, stdout, stderr)
	case "migrate":
		return runMigrate(cfg, rest, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		usage(stderr)
		return errUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: bookcrawl <command> [flags]

Commands:
  serve        run the HTTP API
  categories   discover and store catalog categories
  books        crawl books (-page N, -category ID, or neither to resume)
  export       write stored books to CSV and/or JSON lines
  migrate      apply (up) or roll back (down) the database schema

Run "bookcrawl <command> -h" for command flags.
`)
}

// newFlagSet registers the flags every command shares onto cfg.
func newFlagSet(name string, cfg *config.Config, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection URL")
	return fs
}

func addCrawlFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Catalog base URL")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	fs.Float64Var(&cfg.RequestsPerSecond, "rps", cfg.RequestsPerSecond, "Request rate limit (0 disables)")
	fs.IntVar(&cfg.Burst, "burst", cfg.Burst, "Rate limiter burst size")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return errUsage
	}
	return nil
}

// app holds the collaborators a command runs against.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	db         *sqlx.DB
	metrics    *scraper.Metrics
	categories *database.CategoryRepository
	books      *database.BookRepository
	logs       *database.CrawlLogRepository
}

func newApp(cfg *config.Config) (*app, error) {
	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		metrics:    scraper.NewMetrics(),
		categories: database.NewCategoryRepository(db),
		books:      database.NewBookRepository(db),
		logs:       database.NewCrawlLogRepository(db),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("close database", slog.Any("error", err))
	}
}

func (a *app) engine() (*crawler.Engine, error) {
	fetcher, err := scraper.NewFetcher(a.cfg, a.metrics, a.logger)
	if err != nil {
		return nil, fmt.Errorf("initialising fetcher: %w", err)
	}
	stores := crawler.Stores{
		Categories: a.categories,
		Books:      a.books,
		Logs:       a.logs,
	}
	return crawler.NewEngine(a.cfg, fetcher, stores, a.metrics, a.logger), nil
}

// startMetricsServer exposes /metrics on cfg.MetricsAddr for one-shot runs.
// The returned func stops it.
func (a *app) startMetricsServer() func() {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}

	server := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	a.logger.Info("metrics server enabled", slog.String("addr", a.cfg.MetricsAddr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func runServe(ctx context.Context, cfg *config.Config, args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", cfg, stderr)
	addCrawlFlags(fs, cfg)
	fs.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "HTTP listen address")
	autoMigrate := fs.Bool("migrate", true, "Apply pending migrations before serving")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if *autoMigrate {
		if err := database.MigrateUp(a.db, a.logger); err != nil {
			return err
		}
	}

	engine, err := a.engine()
	if err != nil {
		return err
	}

	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.SetupRouter(api.Dependencies{
		Crawler:    engine,
		Books:      a.books,
		Categories: a.categories,
		CrawlLogs:  a.logs,
		Metrics:    a.metrics,
	}, a.logger)
	server := api.NewHTTPServer(cfg.ListenAddr, router)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		a.logger.Info("shutdown signal received, waiting for in-flight requests to finish")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func runCategories(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("categories", cfg, stderr)
	addCrawlFlags(fs, cfg)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.engine()
	if err != nil {
		return err
	}
	stopMetrics := a.startMetricsServer()
	defer stopMetrics()

	a.logger.Info("starting category discovery", slog.String("base_url", cfg.BaseURL))
	start := time.Now()
	categories, err := engine.DiscoverCategories(ctx)
	if err != nil {
		return fmt.Errorf("category discovery failed: %w", err)
	}

	printSummary(stdout, "Category discovery complete",
		summaryRow{"Categories", fmt.Sprint(len(categories))},
		summaryRow{"Duration", time.Since(start).Round(time.Millisecond).String()},
	)
	return nil
}

func runBooks(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("books", cfg, stderr)
	addCrawlFlags(fs, cfg)
	page := fs.Int("page", 0, "Crawl a single catalog page")
	category := fs.String("category", "", "Crawl every page of one category id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var pagePtr *int
	var categoryPtr *string
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "page":
			pagePtr = page
		case "category":
			categoryPtr = category
		}
	})
	target, err := crawler.NewTarget(pagePtr, categoryPtr)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.engine()
	if err != nil {
		return err
	}
	stopMetrics := a.startMetricsServer()
	defer stopMetrics()

	a.logger.Info("starting book crawl",
		slog.String("base_url", cfg.BaseURL),
		slog.String("mode", target.Mode().String()),
	)
	start := time.Now()
	summary, err := engine.Run(ctx, target)
	if err != nil {
		return fmt.Errorf("book crawl failed: %w", err)
	}

	rows := []summaryRow{
		{"Mode", target.Mode().String()},
		{"Books added", fmt.Sprint(summary.Count)},
	}
	if summary.Page > 0 {
		rows = append(rows, summaryRow{"Page", fmt.Sprint(summary.Page)})
	}
	if summary.CategoryID != "" {
		rows = append(rows, summaryRow{"Category", summary.CategoryID})
	}
	rows = append(rows,
		summaryRow{"Result", summary.Message},
		summaryRow{"Duration", time.Since(start).Round(time.Millisecond).String()},
	)
	printSummary(stdout, "Book crawl complete", rows...)
	return nil
}

func runExport(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("export", cfg, stderr)
	fs.StringVar(&cfg.ExportFile, "output", cfg.ExportFile, "Output file path")
	fs.StringVar(&cfg.ExportFormat, "format", cfg.ExportFormat, "Output format: csv, json, or dual")
	categoryID := fs.String("category-id", "", "Only export books of this category id")
	batch := fs.Int("batch", export.DefaultBatchSize, "Books read per query")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg.ExportFormat = strings.ToLower(cfg.ExportFormat)

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	writer, err := export.NewWriter(cfg.ExportFormat, cfg.ExportFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	start := time.Now()
	exporter := export.NewExporter(a.books, *batch, a.logger)
	written, err := exporter.Export(ctx, models.BookFilter{CategoryID: *categoryID}, writer)
	if closeErr := writer.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close writer: %w", closeErr)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}

	printSummary(stdout, "Export complete",
		summaryRow{"Books", fmt.Sprint(written)},
		summaryRow{"Format", cfg.ExportFormat},
		summaryRow{"Output file", cfg.ExportFile},
		summaryRow{"Duration", time.Since(start).Round(time.Millisecond).String()},
	)
	return nil
}

func runMigrate(cfg *config.Config, args []string, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "migrate requires a direction: up or down")
		return errUsage
	}
	direction := args[0]
	if direction != "up" && direction != "down" {
		fmt.Fprintf(stderr, "unknown migrate direction %q\n", direction)
		return errUsage
	}

	fs := newFlagSet("migrate "+direction, cfg, stderr)
	steps := fs.Int("steps", 1, "Migrations to roll back (down only)")
	if err := parseFlags(fs, args[1:]); err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if direction == "up" {
		return database.MigrateUp(a.db, a.logger)
	}
	return database.MigrateDown(a.db, *steps, a.logger)
}

type summaryRow struct {
	label string
	value string
}

func printSummary(w io.Writer, title string, rows ...summaryRow) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, title)
	for _, row := range rows {
		fmt.Fprintf(w, "  %-14s %s\n", row.label+":", row.value)
	}
	fmt.Fprintln(w, separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
