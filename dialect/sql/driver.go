package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/syssam/fluent/dialect"
)

// Driver wraps a *sql.DB opened for a single dialect.
type Driver struct {
	Conn
}

// NewDriver creates a new Driver with the given Conn.
func NewDriver(c Conn) *Driver {
	return &Driver{Conn: c}
}

// Open wraps the database/sql.Open method and returns a Driver for the dialect.
// The dialect name doubles as the registered database/sql driver name.
func Open(dialect, source string, opts ...StatsOption) (*Driver, error) {
	db, err := sql.Open(dialect, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(dialect, db, opts...), nil
}

// OpenDB wraps the given database/sql.DB with a Driver.
func OpenDB(dialect string, db *sql.DB, opts ...StatsOption) *Driver {
	return NewDriver(Conn{ExecQuerier: db, dialect: dialect, rec: NewRecorder(opts...)})
}

// DB returns the underlying *sql.DB instance.
func (d *Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Ping verifies the database is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	return d.DB().PingContext(ctx)
}

// BeginTx starts a transaction with options.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{
		Conn: Conn{ExecQuerier: tx, dialect: d.dialect, rec: d.rec},
		Tx:   tx,
	}, nil
}

// Close closes the underlying connection pool.
func (d *Driver) Close() error { return d.DB().Close() }

// QueryStats returns the statistics collected for statements run through the driver.
func (d *Driver) QueryStats() *QueryStats {
	return d.rec.QueryStats()
}

// Recorder returns the statistics recorder shared by the driver and its transactions.
func (d *Driver) Recorder() *Recorder {
	return d.rec
}

// Tx is a transaction started by a Driver.
type Tx struct {
	Conn
	driver.Tx
}

// Conn executes statements against an ExecQuerier in a given dialect.
// Placeholders are written as "?" and rebound for dialects that number them.
// Errors are returned as reported by the database driver.
type Conn struct {
	dialect.ExecQuerier
	dialect string
	rec     *Recorder
}

// Dialect returns the dialect name of the connection.
func (c Conn) Dialect() string {
	// If the underlying driver is registered under a wrapped name.
	for _, name := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		if strings.HasPrefix(c.dialect, name) {
			return name
		}
	}
	return c.dialect
}

// Exec executes a statement that does not return rows.
func (c Conn) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	start := time.Now()
	res, err := c.ExecContext(ctx, Rebind(c.Dialect(), query), args...)
	c.rec.Record(ctx, query, args, start, err, false)
	return res, err
}

// Query executes a statement that returns rows.
func (c Conn) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	start := time.Now()
	rows, err := c.QueryContext(ctx, Rebind(c.Dialect(), query), args...)
	c.rec.Record(ctx, query, args, start, err, true)
	if err != nil {
		return nil, err
	}
	return &Rows{rows}, nil
}

// Prepare creates a server-side prepared statement.
func (c Conn) Prepare(ctx context.Context, query string) (*Stmt, error) {
	stmt, err := c.PrepareContext(ctx, Rebind(c.Dialect(), query))
	if err != nil {
		return nil, err
	}
	return &Stmt{Stmt: stmt, query: query, rec: c.rec}, nil
}

// Stmt is a prepared statement.
type Stmt struct {
	*sql.Stmt
	query string
	rec   *Recorder
}

// SQL returns the statement text as it was given to Prepare.
func (s *Stmt) SQL() string { return s.query }

// Exec binds args positionally and executes the statement.
func (s *Stmt) Exec(ctx context.Context, args ...any) (Result, error) {
	start := time.Now()
	res, err := s.ExecContext(ctx, args...)
	s.rec.Record(ctx, s.query, args, start, err, false)
	return res, err
}

// Query binds args positionally and executes the statement, returning its rows.
func (s *Stmt) Query(ctx context.Context, args ...any) (*Rows, error) {
	start := time.Now()
	rows, err := s.QueryContext(ctx, args...)
	s.rec.Record(ctx, s.query, args, start, err, true)
	if err != nil {
		return nil, err
	}
	return &Rows{rows}, nil
}

type (
	// Rows wraps the sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

// ScanMaps reads every remaining row into a column-name keyed map and closes
// the rows. Byte slices are copied into strings. The column names are
// returned in result order.
func ScanMaps(rows ColumnScanner) (columns []string, out []map[string]any, rerr error) {
	defer func() { rerr = errors.Join(rerr, rows.Close()) }()
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	out = make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		m := make(map[string]any, len(columns))
		for i, name := range columns {
			if b, ok := values[i].([]byte); ok {
				m[name] = string(b)
				continue
			}
			m[name] = values[i]
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}
