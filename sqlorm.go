// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlorm

import (
	"context"
	"sync/atomic"

	"github.com/jmhodges/clock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// ErrPoolClosed is returned by every operation on a [Pool] after
// [Pool.Close] has been called.
var ErrPoolClosed = errors.New("sqlorm: pool is closed")

// Row is a single result row, mapping column names to values. Values the
// driver returns as raw bytes are converted to strings.
type Row map[string]any

// Querier runs SQL statements. [Pool] is the implementation used in
// production; [Table] methods accept any Querier.
type Querier interface {
	// Select runs a query and returns at most limit rows, or all rows if
	// limit is not positive.
	Select(ctx context.Context, query string, args []any, limit int) ([]Row, error)
	// Query runs a query and calls each for at most limit rows, or all rows
	// if limit is not positive. It returns the number of rows visited.
	Query(ctx context.Context, query string, args []any, limit int, each func(*sqlx.Rows) error) (int, error)
	// Execute runs a statement and returns the number of affected rows.
	Execute(ctx context.Context, query string, args ...any) (int64, error)
	// Logger returns the logger statements are logged to.
	Logger() logrus.FieldLogger
}

// Pool is a handle on a pool of database connections. Every statement leases
// one connection from the pool for the duration of the call. A Pool is safe
// for concurrent use and must be closed with [Pool.Close] when no longer
// needed.
type Pool struct {
	db      *sqlx.DB
	log     logrus.FieldLogger
	clk     clock.Clock
	metrics *metrics
	closed  atomic.Bool
}

var _ Querier = (*Pool)(nil)

type poolConfig struct {
	log  logrus.FieldLogger
	reg  prometheus.Registerer
	clk  clock.Clock
	name string
}

// PoolOption configures a [Pool].
type PoolOption func(*poolConfig)

// WithLogger sets the logger the pool logs statements to. The default is the
// logrus standard logger.
func WithLogger(log logrus.FieldLogger) PoolOption {
	return func(c *poolConfig) { c.log = log }
}

// WithRegisterer registers the pool's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) PoolOption {
	return func(c *poolConfig) { c.reg = reg }
}

// WithClock sets the clock used to time statements.
func WithClock(clk clock.Clock) PoolOption {
	return func(c *poolConfig) { c.clk = clk }
}

// WithName sets the db_name label of the pool statistics metrics. [CreatePool]
// uses the database option. Each pool also carries its own pool label, so
// several pools on one registry may share a name.
func WithName(name string) PoolOption {
	return func(c *poolConfig) { c.name = name }
}

// CreatePool opens a pool of connections to the MySQL database described by
// opts and checks that it is reachable. Errors from the driver are returned
// unchanged.
func CreatePool(ctx context.Context, opts Options, poolOpts ...PoolOption) (*Pool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	dsn, err := opts.DSN()
	if err != nil {
		return nil, err
	}

	cfg := newPoolConfig(append([]PoolOption{WithName(opts.Database)}, poolOpts...))
	cfg.log.WithFields(logrus.Fields{
		"host":     opts.Host,
		"port":     opts.Port,
		"database": opts.Database,
	}).Info("create database connection pool...")

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(opts.MaxSize)
	db.SetMaxIdleConns(opts.MinSize)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	p, err := newPool(db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewPool creates a [Pool] from an already opened database. It is used for
// drivers other than MySQL; the driver must accept backtick-quoted
// identifiers.
func NewPool(db *sqlx.DB, poolOpts ...PoolOption) (*Pool, error) {
	if db == nil {
		return nil, errors.New("cannot create pool from nil database")
	}
	return newPool(db, newPoolConfig(poolOpts))
}

func newPoolConfig(poolOpts []PoolOption) poolConfig {
	cfg := poolConfig{
		log: logrus.StandardLogger(),
		clk: clock.New(),
	}
	for _, o := range poolOpts {
		o(&cfg)
	}
	return cfg
}

func newPool(db *sqlx.DB, cfg poolConfig) (*Pool, error) {
	name := cfg.name
	if name == "" {
		name = db.DriverName()
	}
	m, err := newMetrics(cfg.reg, db.DB, name)
	if err != nil {
		return nil, errors.Wrap(err, "registering metrics")
	}
	return &Pool{db: db, log: cfg.log, clk: cfg.clk, metrics: m}, nil
}

// DB returns the underlying database object.
func (p *Pool) DB() *sqlx.DB {
	return p.db
}

// Logger returns the logger the pool logs statements to.
func (p *Pool) Logger() logrus.FieldLogger {
	return p.log
}

// Close closes the pool and all of its idle connections. Connections in use
// are closed when released.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrPoolClosed
	}
	p.metrics.unregister()
	return p.db.Close()
}

// Select runs a query and returns at most limit rows, or all rows if limit is
// not positive. `?` placeholders in the query are bound to args.
func (p *Pool) Select(ctx context.Context, query string, args []any, limit int) ([]Row, error) {
	rs := []Row{}
	_, err := p.Query(ctx, query, args, limit, func(rows *sqlx.Rows) error {
		row := Row{}
		if err := rows.MapScan(row); err != nil {
			return err
		}
		for col, v := range row {
			if b, ok := v.([]byte); ok {
				row[col] = string(b)
			}
		}
		rs = append(rs, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// Query runs a query on a leased connection and calls each once per row, for
// at most limit rows, or all rows if limit is not positive. The connection is
// released before Query returns. Errors are logged and returned unchanged.
func (p *Pool) Query(ctx context.Context, query string, args []any, limit int, each func(*sqlx.Rows) error) (n int, err error) {
	if p.closed.Load() {
		return 0, ErrPoolClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.logSQL(query)
	start := p.clk.Now()
	defer func() {
		p.metrics.observe(kindSelect, p.clk.Since(start), err)
		if err != nil {
			p.logFailure(query, err)
		}
	}()

	conn, err := p.db.Connx(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	rows, err := conn.QueryxContext(ctx, conn.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	for (limit <= 0 || n < limit) && rows.Next() {
		if err := each(rows); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	p.log.Infof("rows returned: %d", n)
	return n, nil
}

// Execute runs an insert, update or delete statement on a leased connection
// and returns the number of affected rows. Errors are logged and returned
// unchanged.
func (p *Pool) Execute(ctx context.Context, query string, args ...any) (affected int64, err error) {
	if p.closed.Load() {
		return 0, ErrPoolClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.logSQL(query)
	start := p.clk.Now()
	defer func() {
		p.metrics.observe(kindExecute, p.clk.Since(start), err)
		if err != nil {
			p.logFailure(query, err)
		}
	}()

	conn, err := p.db.Connx(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	result, err := conn.ExecContext(ctx, conn.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (p *Pool) logSQL(query string) {
	p.log.Infof("SQL: %s", query)
}

func (p *Pool) logFailure(query string, err error) {
	p.log.WithError(err).WithField("sql", query).Error("statement failed")
}
