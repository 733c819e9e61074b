package report

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ahmethakanbesel/fxreport/internal/apperror"
)

// DefaultFilename is used when the caller gives no name.
const DefaultFilename = "exchange_rates_report.csv"

// ResolvePath joins dir and filename and settles the output format. An
// explicit format replaces the filename extension; otherwise the extension
// decides and anything other than csv or json falls back to csv.
func ResolvePath(dir, filename string, format Format) (string, Format, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", "", fmt.Errorf("resolve dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", "", apperror.New(apperror.Validation, "directory does not exist: "+abs)
	}

	if filename == "" {
		filename = DefaultFilename
	}
	if strings.ContainsRune(filename, os.PathSeparator) {
		return "", "", apperror.New(apperror.Validation, "filename must not contain a path separator")
	}

	stem, ext, hasExt := strings.Cut(filename, ".")
	switch {
	case format != "":
	case !hasExt:
		format = FormatCSV
	default:
		f, perr := ParseFormat(ext)
		if perr != nil {
			slog.Warn("unsupported report extension, using csv", "filename", filename)
			f = FormatCSV
		}
		format = f
	}

	return filepath.Join(abs, stem+"."+string(format)), format, nil
}

// WriteFile renders r into path atomically. An existing file is replaced
// only when overwrite is set.
func WriteFile(path string, r Report, f Format, overwrite bool) error {
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return apperror.New(apperror.Validation, "report already exists: "+path)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat report: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Encode(tmp, r, f); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode report: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}
