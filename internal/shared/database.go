package shared

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Database wraps [sql.DB] with the name of the driver it was opened with, so
// queries written with "?" placeholders can be rebound for Postgres.
type Database struct {
	*sql.DB
	driver   string
	inMemory bool
}

// NewDatabase opens a connection using the given driver and data source.
//
// For SQLite the source is a file path, or ":memory:" for an in-memory database.
// Foreign keys and a busy timeout are enabled on every SQLite connection.
// Returns an open database connection or an error if connection fails.
func NewDatabase(driver, source string) (*Database, error) {
	if driver == "" {
		driver = DriverSQLite
	}

	dsn := source
	inMemory := false
	switch driver {
	case DriverSQLite:
		inMemory = strings.HasPrefix(source, ":memory:")
		dsn = sqliteDSN(source)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to ":memory:" is a distinct database
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db, driver: driver, inMemory: inMemory}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Driver returns the database/sql driver name.
func (d *Database) Driver() string {
	return d.driver
}

// Rebind rewrites "?" placeholders into the positional form the driver expects.
func (d *Database) Rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ConfigureDatabase sets connection pool settings for the database.
// Recommended for production use to limit connections and improve performance.
// In-memory SQLite databases stay pinned to a single connection.
func ConfigureDatabase(db *Database, maxOpenConns, maxIdleConns int) {
	if db.inMemory {
		return
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}
