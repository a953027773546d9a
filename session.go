package fluent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	dsql "github.com/syssam/fluent/dialect/sql"
)

// Session runs statements against the drivers of a Pool and buffers the
// result of the last one. A Session tracks one active profile, at most one
// open transaction and one last statement, so it must not be shared between
// goroutines. Create one per request or job instead.
type Session struct {
	pool     *Pool
	probe    EnvProbe
	logger   *slog.Logger
	debug    bool
	cache    Cache
	cacheTTL time.Duration
	sid      string

	id  ID
	drv *dsql.Driver
	tx  *dsql.Tx

	// last statement and its result.
	query    string
	stmt     *dsql.Stmt
	pending  *dsql.Rows
	columns  []string
	rows     []Row
	loadErr  error
	buffered bool
	executed bool
}

// Option configures a Session.
type Option func(*Session)

// WithDebug enables debug mode: statements are logged and query errors carry
// the statement text.
func WithDebug(on bool) Option {
	return func(s *Session) {
		s.debug = on
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithEnvProbe sets the probe used to pick the default profile.
func WithEnvProbe(probe EnvProbe) Option {
	return func(s *Session) {
		s.probe = probe
	}
}

// WithCache enables ReadCached with the given cache and entry lifetime.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *Session) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// NewSession returns a Session over pool.
func NewSession(pool *Pool, opts ...Option) *Session {
	s := &Session{
		pool:   pool,
		probe:  DetectEnv,
		logger: slog.Default(),
		sid:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.sid)
	return s
}

// ExecOption configures a single statement execution.
type ExecOption func(*execConfig)

type execConfig struct {
	message string
	profile ID
}

func newExecConfig(opts []ExecOption) execConfig {
	var cfg execConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithMessage replaces the message of the QueryError returned on failure.
func WithMessage(msg string) ExecOption {
	return func(c *execConfig) {
		c.message = msg
	}
}

// WithProfile switches the session to id before executing.
func WithProfile(id ID) ExecOption {
	return func(c *execConfig) {
		c.profile = id
	}
}

// ID returns the unique identifier of the session used in its log records.
func (s *Session) ID() string {
	return s.sid
}

// Profile returns the active connection identifier, or "" if none is active.
func (s *Session) Profile() ID {
	return s.id
}

// Driver returns the active driver, or nil if none is active.
func (s *Session) Driver() *dsql.Driver {
	return s.drv
}

// SetDebug toggles debug mode.
func (s *Session) SetDebug(on bool) {
	s.debug = on
}

// Debug reports whether debug mode is on.
func (s *Session) Debug() bool {
	return s.debug
}

// UseProfile makes id the active connection identifier, opening its driver
// through the pool if needed, and clears the last result. It fails with
// ErrTxInProgress when a transaction is open on another identifier.
func (s *Session) UseProfile(ctx context.Context, id ID) (*dsql.Driver, error) {
	if s.tx != nil && id != s.id {
		return nil, fmt.Errorf("%w on %q: cannot switch to %q", ErrTxInProgress, string(s.id), string(id))
	}
	drv, err := s.pool.Connect(ctx, id)
	if err != nil {
		return nil, err
	}
	s.reset()
	s.id, s.drv = id, drv
	return drv, nil
}

// ensure returns the connection statements must run on: the open
// transaction, or the driver of the active profile. Without an active profile
// the default for the environment reported by the probe is used.
func (s *Session) ensure(ctx context.Context, cfg execConfig) (dsql.Conn, error) {
	switch {
	case cfg.profile != "" && (cfg.profile != s.id || s.drv == nil):
		if _, err := s.UseProfile(ctx, cfg.profile); err != nil {
			return dsql.Conn{}, err
		}
	case s.drv == nil:
		id, err := s.pool.Profiles().Default(s.probe())
		if err != nil {
			return dsql.Conn{}, err
		}
		if _, err := s.UseProfile(ctx, id); err != nil {
			return dsql.Conn{}, err
		}
	}
	if s.tx != nil {
		return s.tx.Conn, nil
	}
	return s.drv.Conn, nil
}

// reset releases the last statement and clears its result.
func (s *Session) reset() {
	if s.pending != nil {
		if err := s.pending.Close(); err != nil {
			s.logger.Debug("close rows", "error", err)
		}
		s.pending = nil
	}
	if s.stmt != nil {
		s.closeStmt(s.stmt)
		s.stmt = nil
	}
	s.query = ""
	s.columns, s.rows, s.loadErr = nil, nil, nil
	s.buffered, s.executed = false, false
}

func (s *Session) closeStmt(stmt *dsql.Stmt) {
	if err := stmt.Close(); err != nil {
		s.logger.Debug("close statement", "error", err)
	}
}

// ExecutePrepared prepares query, binds params to its "?" placeholders in
// order and executes it. It returns the number of affected rows; statements
// that return rows report 0 and keep their rows for the fetch accessors.
func (s *Session) ExecutePrepared(ctx context.Context, query string, params []any, opts ...ExecOption) (int64, error) {
	s.reset()
	cfg := newExecConfig(opts)
	conn, err := s.ensure(ctx, cfg)
	if err != nil {
		return 0, err
	}
	if n := dsql.CountPlaceholders(conn.Dialect(), query); n != len(params) {
		return 0, &CountMismatchError{Placeholders: n, Values: len(params)}
	}
	s.trace(ctx, query, params)
	stmt, err := conn.Prepare(ctx, query)
	if err != nil {
		return 0, s.fail(ctx, query, params, err, cfg)
	}
	var affected int64
	if dsql.ReturnsRows(query) {
		rows, err := stmt.Query(ctx, params...)
		if err != nil {
			s.closeStmt(stmt)
			return 0, s.fail(ctx, query, params, err, cfg)
		}
		s.pending = rows
	} else {
		res, err := stmt.Exec(ctx, params...)
		if err != nil {
			s.closeStmt(stmt)
			return 0, s.fail(ctx, query, params, err, cfg)
		}
		affected = rowsAffected(res)
	}
	s.query, s.stmt, s.executed = query, stmt, true
	return affected, nil
}

// ExecuteStatic executes query as literal SQL without binding. It returns the
// number of affected rows like ExecutePrepared.
func (s *Session) ExecuteStatic(ctx context.Context, query string, opts ...ExecOption) (int64, error) {
	s.reset()
	cfg := newExecConfig(opts)
	conn, err := s.ensure(ctx, cfg)
	if err != nil {
		return 0, err
	}
	if n := dsql.CountPlaceholders(conn.Dialect(), query); n != 0 {
		return 0, &CountMismatchError{Placeholders: n}
	}
	s.trace(ctx, query, nil)
	var affected int64
	if dsql.ReturnsRows(query) {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return 0, s.fail(ctx, query, nil, err, cfg)
		}
		s.pending = rows
	} else {
		res, err := conn.Exec(ctx, query)
		if err != nil {
			return 0, s.fail(ctx, query, nil, err, cfg)
		}
		affected = rowsAffected(res)
	}
	s.query, s.executed = query, true
	return affected, nil
}

// rowsAffected returns 0 for drivers that cannot report the count.
func rowsAffected(res dsql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

func (s *Session) trace(ctx context.Context, query string, args []any) {
	if s.debug {
		s.logger.InfoContext(ctx, "execute", "profile", s.id, "query", collapseSpace(query), "args", args, "tx", s.tx != nil)
	}
}

func (s *Session) fail(ctx context.Context, query string, args []any, err error, cfg execConfig) error {
	qe := newQueryError(query, args, err, cfg.message, s.debug)
	if s.debug {
		s.logger.WarnContext(ctx, "query failed", "profile", s.id, "error", err)
	}
	return qe
}

// Close releases the last statement and rolls back an open transaction.
// The session may be used again afterwards.
func (s *Session) Close() error {
	s.reset()
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Rollback()
}
