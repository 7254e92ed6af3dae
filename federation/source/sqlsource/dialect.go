package sqlsource

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect encapsulates database-engine-specific SQL
type Dialect interface {
	// DriverName returns the database/sql driver name
	DriverName() string

	// QuoteIdentifier wraps a table or column name in dialect-specific quoting
	QuoteIdentifier(name string) string

	// Placeholder returns the parameter placeholder for the n-th parameter (1-based)
	Placeholder(n int) string

	// CreateTable returns the statements creating the triple table and its indices
	CreateTable(table string) []string
}

// DialectFor returns the dialect for a driver name
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return SQLiteDialect{}, nil
	case "mysql":
		return MySQLDialect{}, nil
	case "postgres", "postgresql":
		return PostgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported SQL driver %q", driver)
	}
}

func indexStatements(d Dialect, table string, oCol string) []string {
	t := d.QuoteIdentifier(table)
	return []string{
		fmt.Sprintf("CREATE INDEX %s ON %s (s, p)", d.QuoteIdentifier(table+"_sp"), t),
		fmt.Sprintf("CREATE INDEX %s ON %s (p, %s)", d.QuoteIdentifier(table+"_po"), t, oCol),
		fmt.Sprintf("CREATE INDEX %s ON %s (%s)", d.QuoteIdentifier(table+"_o"), t, oCol),
	}
}

// SQLiteDialect uses the pure-Go modernc.org/sqlite driver
type SQLiteDialect struct{}

func (SQLiteDialect) DriverName() string { return "sqlite" }

func (SQLiteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLiteDialect) Placeholder(int) string { return "?" }

func (d SQLiteDialect) CreateTable(table string) []string {
	return append([]string{
		fmt.Sprintf("CREATE TABLE %s (s TEXT NOT NULL, p TEXT NOT NULL, o TEXT NOT NULL)", d.QuoteIdentifier(table)),
	}, indexStatements(d, table, "o")...)
}

// MySQLDialect uses github.com/go-sql-driver/mysql
type MySQLDialect struct{}

func (MySQLDialect) DriverName() string { return "mysql" }

func (MySQLDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (MySQLDialect) Placeholder(int) string { return "?" }

func (d MySQLDialect) CreateTable(table string) []string {
	// objects may be long literals: index a prefix only
	return append([]string{
		fmt.Sprintf("CREATE TABLE %s (s VARCHAR(255) NOT NULL, p VARCHAR(255) NOT NULL, o TEXT NOT NULL)", d.QuoteIdentifier(table)),
	}, indexStatements(d, table, "o(255)")...)
}

// PostgresDialect uses github.com/lib/pq
type PostgresDialect struct{}

func (PostgresDialect) DriverName() string { return "postgres" }

func (PostgresDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (PostgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (d PostgresDialect) CreateTable(table string) []string {
	return append([]string{
		fmt.Sprintf("CREATE TABLE %s (s TEXT NOT NULL, p TEXT NOT NULL, o TEXT NOT NULL)", d.QuoteIdentifier(table)),
	}, indexStatements(d, table, "o")...)
}
