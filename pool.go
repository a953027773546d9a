package fluent

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/fluent/dialect"
	dsql "github.com/syssam/fluent/dialect/sql"
)

// OpenFunc opens and verifies a database handle for a registered
// database/sql driver name and data source name.
type OpenFunc func(ctx context.Context, driverName, dsn string) (*sql.DB, error)

// openDB is the default OpenFunc. database/sql opens lazily, so the handle is
// pinged to surface connection errors immediately.
func openDB(ctx context.Context, driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return db, nil
}

// Pool resolves connection identifiers into live drivers. It opens at most
// one driver per identifier and keeps it until Close. A Pool is safe for
// concurrent use.
type Pool struct {
	profiles  *ProfileTable
	open      OpenFunc
	logger    *slog.Logger
	statsOpts []dsql.StatsOption

	mu      sync.RWMutex
	handles map[ID]*dsql.Driver
	closed  bool
	group   singleflight.Group
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithOpener replaces the function used to open database handles.
func WithOpener(fn OpenFunc) PoolOption {
	return func(p *Pool) {
		p.open = fn
	}
}

// WithPoolLogger sets the logger used for connection events and slow queries.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithStatsOptions configures the statistics recorder of every opened driver.
// Slow queries are logged to the pool logger unless a hook is given here.
func WithStatsOptions(opts ...dsql.StatsOption) PoolOption {
	return func(p *Pool) {
		p.statsOpts = append(p.statsOpts, opts...)
	}
}

// NewPool creates a Pool over the given profiles.
func NewPool(profiles *ProfileTable, opts ...PoolOption) *Pool {
	p := &Pool{
		profiles: profiles,
		open:     openDB,
		logger:   slog.Default(),
		handles:  make(map[ID]*dsql.Driver),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Profiles returns the profile table of the pool.
func (p *Pool) Profiles() *ProfileTable {
	return p.profiles
}

// Connect returns the driver for id, opening it on first use. Later calls
// with the same identifier return the same *dsql.Driver.
//
// Concurrent first calls share one open. The open is not cancelled with the
// caller that started it; a caller whose ctx is done stops waiting and gets
// its context error while the others keep waiting for the result.
func (p *Pool) Connect(ctx context.Context, id ID) (*dsql.Driver, error) {
	prof, database, err := p.profiles.Resolve(id)
	if err != nil {
		return nil, err
	}
	if drv, ok, err := p.lookup(id); ok || err != nil {
		return drv, err
	}
	dialCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(string(id), func() (any, error) {
		if drv, ok, err := p.lookup(id); ok || err != nil {
			return drv, err
		}
		drv, err := p.dial(dialCtx, id, prof, database)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return nil, errors.Join(&ConnectionError{ID: id, Err: errPoolClosed}, drv.Close())
		}
		p.handles[id] = drv
		return drv, nil
	})
	select {
	case <-ctx.Done():
		return nil, &ConnectionError{ID: id, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*dsql.Driver), nil
	}
}

var errPoolClosed = errors.New("pool closed")

func (p *Pool) lookup(id ID) (*dsql.Driver, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, false, &ConnectionError{ID: id, Err: errPoolClosed}
	}
	drv, ok := p.handles[id]
	return drv, ok, nil
}

func (p *Pool) dial(ctx context.Context, id ID, prof Profile, database string) (*dsql.Driver, error) {
	dsn, err := prof.DSN(database)
	if err != nil {
		return nil, &ConnectionError{ID: id, Err: err}
	}
	db, err := p.open(ctx, prof.Driver, dsn)
	if err != nil {
		p.logger.WarnContext(ctx, "open connection failed", "id", id, "driver", prof.Driver, "error", err)
		return nil, &ConnectionError{ID: id, Err: err}
	}
	switch {
	case prof.MaxOpenConns > 0:
		db.SetMaxOpenConns(prof.MaxOpenConns)
	case prof.Driver == dialect.SQLite:
		// SQLite serialises writers; a single connection avoids lock errors.
		db.SetMaxOpenConns(1)
	}
	if prof.MaxIdleConns > 0 {
		db.SetMaxIdleConns(prof.MaxIdleConns)
	}
	if prof.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(prof.ConnMaxLifetime)
	}
	opts := append([]dsql.StatsOption{dsql.WithSlowQueryLog(p.logger.With("id", id))}, p.statsOpts...)
	p.logger.InfoContext(ctx, "opened connection", "id", id, "driver", prof.Driver)
	return dsql.OpenDB(prof.Driver, db, opts...), nil
}

// Len returns the number of open drivers.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handles)
}

// Stats returns the statement statistics of the driver opened for id.
func (p *Pool) Stats(id ID) (dsql.StatsSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	drv, ok := p.handles[id]
	if !ok {
		return dsql.StatsSnapshot{}, false
	}
	return drv.QueryStats().Stats(), true
}

// Close closes every open driver. Connect fails once the pool is closed.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var errs []error
	for id, drv := range p.handles {
		if err := drv.Close(); err != nil {
			errs = append(errs, &ConnectionError{ID: id, Err: err})
		}
		delete(p.handles, id)
	}
	return errors.Join(errs...)
}
