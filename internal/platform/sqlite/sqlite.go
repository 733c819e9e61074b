package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Register sqlite driver
)

//go:embed migrations/001_initial.sql
var migration string

const memoryDSN = ":memory:"

// connPragmas are applied by the driver to every pooled connection.
var connPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

type DB struct {
	*sql.DB
}

// Open opens the rate cache at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// In-memory databases are per-connection; keep a single connection so
	// the schema and every query see the same data.
	if path == memoryDSN {
		db.SetMaxOpenConns(1)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{db}, nil
}

// dsn turns a file path into a URI carrying connPragmas and an immediate
// transaction lock, so concurrent writers wait for busy_timeout instead of
// failing with SQLITE_BUSY.
func dsn(path string) string {
	if path == memoryDSN {
		return path
	}

	params := make([]string, 0, len(connPragmas)+1)
	for _, p := range connPragmas {
		params = append(params, "_pragma="+p)
	}
	params = append(params, "_txlock=immediate")

	uri := path
	if !strings.HasPrefix(uri, "file:") {
		uri = "file:" + uri
	}
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + strings.Join(params, "&")
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(migration)
	return err
}
