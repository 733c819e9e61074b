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

	"github.com/google/uuid"

	"github.com/ahmethakanbesel/fxreport/internal/apperror"
	"github.com/ahmethakanbesel/fxreport/internal/config"
	"github.com/ahmethakanbesel/fxreport/internal/rate"
	"github.com/ahmethakanbesel/fxreport/internal/report"
	"github.com/ahmethakanbesel/fxreport/internal/server"
)

const usage = `usage: fxreport <command> [flags]

commands:
  report      generate a historical or analytical report file (default)
  serve       run the HTTP API
  currencies  list supported currency codes
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := "report"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "report":
		err = runReport(args, stderr)
	case "serve":
		err = runServe(args, stderr)
	case "currencies":
		for _, c := range rate.SupportedCurrencies() {
			_, _ = fmt.Fprintln(stdout, c)
		}
	case "help", "-h", "--help":
		_, _ = fmt.Fprint(stdout, usage)
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}

	if err == nil {
		return 0
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	slog.Error("command failed", "command", cmd, "error", err)
	_, _ = fmt.Fprintln(stderr, "error:", err)
	if ae, ok := apperror.As(err); ok {
		return ae.ExitCode()
	}
	return 1
}

type reportFlags struct {
	reportType string
	currency   string
	startDate  string
	endDate    string
	dir        string
	filename   string
	format     string
	debug      bool
	overwrite  bool
}

func parseReportFlags(args []string, stderr io.Writer) (reportFlags, error) {
	var f reportFlags
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.reportType, "r", "h", "report type: h|historical or a|analytical")
	fs.StringVar(&f.reportType, "report-type", "h", "report type: h|historical or a|analytical")
	fs.StringVar(&f.currency, "c", "", "comma separated ISO 4217 codes, empty for all")
	fs.StringVar(&f.currency, "currency", "", "comma separated ISO 4217 codes, empty for all")
	fs.StringVar(&f.startDate, "s", "", "first day YYYY-MM-DD, default today")
	fs.StringVar(&f.startDate, "start-date", "", "first day YYYY-MM-DD, default today")
	fs.StringVar(&f.endDate, "e", "", "last day YYYY-MM-DD, default today")
	fs.StringVar(&f.endDate, "end-date", "", "last day YYYY-MM-DD, default today")
	fs.StringVar(&f.dir, "p", ".", "output directory, must exist")
	fs.StringVar(&f.dir, "dir", ".", "output directory, must exist")
	fs.StringVar(&f.filename, "n", report.DefaultFilename, "output file name")
	fs.StringVar(&f.filename, "filename", report.DefaultFilename, "output file name")
	fs.StringVar(&f.format, "f", "", "csv or json, overrides the filename extension")
	fs.StringVar(&f.format, "format", "", "csv or json, overrides the filename extension")
	fs.BoolVar(&f.debug, "d", false, "enable debug logs")
	fs.BoolVar(&f.debug, "debug", false, "enable debug logs")
	fs.BoolVar(&f.overwrite, "overwrite", false, "replace an existing report file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return f, err
		}
		return f, apperror.Wrap(apperror.Validation, "invalid arguments", err)
	}
	if fs.NArg() > 0 {
		return f, apperror.New(apperror.Validation, "unexpected arguments: "+strings.Join(fs.Args(), " "))
	}
	return f, nil
}

// toRequest converts parsed flags into a report request and output format.
func (f reportFlags) toRequest() (report.Request, report.Format, error) {
	typ, err := report.ParseType(f.reportType)
	if err != nil {
		return report.Request{}, "", apperror.Wrap(apperror.Validation, "invalid report type", err)
	}
	currencies, err := rate.ParseCurrencies(f.currency)
	if err != nil {
		return report.Request{}, "", apperror.Wrap(apperror.Validation, "invalid currency", err)
	}
	start, err := parseDate(f.startDate)
	if err != nil {
		return report.Request{}, "", err
	}
	end, err := parseDate(f.endDate)
	if err != nil {
		return report.Request{}, "", err
	}

	var format report.Format
	if f.format != "" {
		format, err = report.ParseFormat(f.format)
		if err != nil {
			return report.Request{}, "", apperror.Wrap(apperror.Validation, "invalid format", err)
		}
	}

	return report.Request{Type: typ, Currencies: currencies, StartDate: start, EndDate: end}, format, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperror.Wrap(apperror.Validation, "dates must be YYYY-MM-DD", err)
	}
	return t, nil
}

func runReport(args []string, stderr io.Writer) error {
	f, err := parseReportFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return apperror.Wrap(apperror.Validation, "invalid configuration", err)
	}
	setupLogger(stderr, cfg, f.debug)

	req, format, err := f.toRequest()
	if err != nil {
		return err
	}
	path, format, err := report.ResolvePath(f.dir, f.filename, format)
	if err != nil {
		return err
	}
	slog.Debug("report target resolved", "path", path, "format", format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.reports.Generate(ctx, req)
	if err != nil {
		return err
	}
	if err := report.WriteFile(path, rep, format, f.overwrite); err != nil {
		return err
	}
	a.metrics.ObserveReport(string(rep.Type()), string(format))

	if cfg.MetricsTextfile != "" {
		if err := a.metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			slog.Warn("could not write metrics", "path", cfg.MetricsTextfile, "error", err)
		}
	}

	slog.Info("report written", "path", path, "type", rep.Type(), "format", format)
	return nil
}

func runServe(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	port := fs.String("port", "", "listen port, overrides PORT")
	debug := fs.Bool("debug", false, "enable debug logs")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return apperror.Wrap(apperror.Validation, "invalid arguments", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return apperror.Wrap(apperror.Validation, "invalid configuration", err)
	}
	if *port != "" {
		cfg.Port = *port
	}
	setupLogger(stderr, cfg, *debug)

	// Root context: cancelled on shutdown so in-flight upstream fetches stop.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	a, err := newApp(rootCtx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(rootCtx, cfg.Port, a.reports, a.metrics)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-done:
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	}

	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func setupLogger(w io.Writer, cfg config.Config, debug bool) {
	level := cfg.Level()
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger.With("run", uuid.NewString()))
}
