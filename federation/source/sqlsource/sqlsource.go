// Package sqlsource serves a triple table in a SQL database. Patterns are
// translated into self-joins; sqlite, MySQL and PostgreSQL are supported.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/annotations"
	"github.com/wbrown/janus-federation/federation/cardinality"
	"github.com/wbrown/janus-federation/federation/executor"
	"github.com/wbrown/janus-federation/federation/query"
)

// Config describes a SQL source
type Config struct {
	Name   string
	Driver string // sqlite, mysql or postgres
	DSN    string
	Table  string // Triple table (default "triples")

	MaxOpenConns   int
	ConnectTimeout time.Duration

	PageSize     int
	CloseTimeout time.Duration

	// ExactCounts runs COUNT queries for cardinality estimates
	ExactCounts bool
}

// Source answers conjunctive queries from a triple table
type Source struct {
	name      string
	db        *sql.DB
	dialect   Dialect
	table     string
	config    Config
	collector *annotations.Collector
}

// Open connects to the database described by cfg
func Open(ctx context.Context, cfg Config) (*Source, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Name, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Name, err)
	}
	return New(db, dialect, cfg), nil
}

// New serves an open database
func New(db *sql.DB, dialect Dialect, cfg Config) *Source {
	if cfg.Table == "" {
		cfg.Table = "triples"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 256
	}
	return &Source{name: cfg.Name, db: db, dialect: dialect, table: cfg.Table, config: cfg}
}

// SetCollector reports page fetches and close timeouts to c
func (s *Source) SetCollector(c *annotations.Collector) {
	s.collector = c
}

func (s *Source) Name() string { return s.name }

// Capabilities declares every modifier: filters and values run in Go on
// the fetched rows, the rest are pushed into SQL when possible
func (s *Source) Capabilities() query.Capabilities {
	return query.CapAsk | query.CapProjection | query.CapDistinct | query.CapFilter | query.CapLimit | query.CapValues
}

// CreateTable creates the triple table and its indices
func (s *Source) CreateTable(ctx context.Context) error {
	for _, stmt := range s.dialect.CreateTable(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// Load inserts triples in one transaction
func (s *Source) Load(ctx context.Context, triples []federation.Triple) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert := fmt.Sprintf("INSERT INTO %s (s, p, o) VALUES (%s, %s, %s)",
		s.dialect.QuoteIdentifier(s.table),
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range triples {
		if !t.IsGround() {
			return fmt.Errorf("cannot store non-ground triple %s", t)
		}
		if _, err := stmt.ExecContext(ctx, t.S.String(), t.P.String(), t.O.String()); err != nil {
			return fmt.Errorf("insert %s: %w", t, err)
		}
	}
	return tx.Commit()
}

// Close closes the database
func (s *Source) Close() error {
	return s.db.Close()
}

// Execute runs the translated query; rows are read a page at a time on
// the producer goroutine
func (s *Source) Execute(ctx context.Context, q *query.CQuery) (executor.Results, error) {
	if len(q.Triples) == 0 {
		return executor.ApplyModifiers(executor.NewSliceResults(nil, []federation.Solution{{}}), q.Modifiers), nil
	}
	push := pushable(q)
	stmt, err := translate(s.dialect, s.table, q, push)
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	fetch := func(ctx context.Context, page int) ([]federation.Solution, bool, error) {
		if rows == nil {
			// rows close themselves when ctx is cancelled
			r, err := s.db.QueryContext(ctx, stmt.text, stmt.args...)
			if err != nil {
				return nil, false, fmt.Errorf("%s: %w", s.name, err)
			}
			rows = r
		}
		sols, more, err := readPage(rows, stmt.vars, s.config.PageSize)
		if err != nil || !more {
			rows.Close()
		}
		return sols, !more, err
	}
	r := executor.NewAsyncResults(ctx, stmt.vars, fetch, executor.AsyncOptions{
		Name:         s.name,
		CloseTimeout: s.config.CloseTimeout,
		Collector:    s.collector,
	})
	if push {
		return r, nil
	}
	return executor.ApplyModifiers(r, q.Modifiers), nil
}

// readPage scans up to n rows; more is false once the rows are exhausted
func readPage(rows *sql.Rows, vars []string, n int) ([]federation.Solution, bool, error) {
	var out []federation.Solution
	raw := make([]sql.NullString, len(vars))
	dest := make([]interface{}, len(vars))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if len(vars) == 0 {
		var one int
		dest = []interface{}{&one}
	}
	for len(out) < n {
		if !rows.Next() {
			return out, false, rows.Err()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, false, err
		}
		sol := make(federation.Solution, len(vars))
		for i, v := range vars {
			if !raw[i].Valid {
				continue
			}
			term, err := federation.ParseTerm(raw[i].String)
			if err != nil {
				return nil, false, fmt.Errorf("column %s: %w", v, err)
			}
			sol[v] = term
		}
		out = append(out, sol)
	}
	return out, true, nil
}

// EstimateCardinality counts the answers of q in the database when
// ExactCounts is set
func (s *Source) EstimateCardinality(q *query.CQuery) cardinality.Cardinality {
	if !s.config.ExactCounts || len(q.Triples) == 0 || len(q.RequiredInputVars()) > 0 ||
		len(q.Modifiers.Values()) > 0 {
		return cardinality.Unknown
	}
	push := pushable(q)
	stmt, err := translate(s.dialect, s.table, q, push)
	if err != nil {
		return cardinality.Unknown
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var n int64
	count := "SELECT COUNT(*) FROM (" + stmt.text + ") counted"
	if err := s.db.QueryRowContext(ctx, count, stmt.args...).Scan(&n); err != nil {
		return cardinality.Unknown
	}
	if push {
		return cardinality.NewExact(n)
	}
	// filters run later and can only remove rows
	return cardinality.NewUpperBound(n)
}
