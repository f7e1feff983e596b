package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/devmarvs/bear/config"
)

// Reader is the query-only view of a transaction.
type Reader interface {
	Queryer
	QueryRower
}

// Main is the application database: a single-connection writer pool that
// serializes write transactions, and a reader pool for read-only work.
type Main struct {
	driver  string
	dialect Dialect
	writer  *sql.DB
	reader  *sql.DB
	timeout time.Duration
}

// MainOption customizes Main.
type MainOption func(*mainOptions)

type mainOptions struct {
	pool    Options
	timeout time.Duration
}

// WithPool overrides reader pool options. The writer pool always holds one
// connection.
func WithPool(options Options) MainOption {
	return func(o *mainOptions) {
		o.pool = options
	}
}

// WithStatementTimeout sets the timeout applied by the typed primitives.
func WithStatementTimeout(timeout time.Duration) MainOption {
	return func(o *mainOptions) {
		o.timeout = timeout
	}
}

// New opens both pools for the configured driver.
func New(cfg config.Database, options ...MainOption) (*Main, error) {
	opts := mainOptions{timeout: 5 * time.Second}
	for _, opt := range options {
		opt(&opts)
	}

	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	writerDSN, readerDSN := cfg.WriterDSN, cfg.ReaderDSN
	if readerDSN == "" {
		readerDSN = writerDSN
	}
	if cfg.Driver == "sqlite3" {
		writerDSN = withParams(writerDSN, "_journal_mode=WAL", "_busy_timeout=5000", "_txlock=immediate", "_foreign_keys=on")
		readerDSN = withParams(readerDSN, "_busy_timeout=5000", "_query_only=on")
	}

	writerOpts := opts.pool
	writerOpts.MaxOpenConns = 1
	writerOpts.MaxIdleConns = 1
	writer, err := Open(cfg.Driver, writerDSN, writerOpts)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	readerOpts := opts.pool
	if readerOpts.MaxOpenConns == 0 {
		readerOpts.MaxOpenConns = cfg.MaxReaders
	}
	reader, err := Open(cfg.Driver, readerDSN, readerOpts)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}

	return &Main{
		driver:  cfg.Driver,
		dialect: dialect,
		writer:  writer,
		reader:  reader,
		timeout: opts.timeout,
	}, nil
}

// DialectFor returns the placeholder dialect of a driver.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3":
		return DialectQuestion, nil
	case "pgx":
		return DialectDollar, nil
	default:
		return DialectQuestion, fmt.Errorf("unsupported driver %q", driver)
	}
}

// BeginWrite starts a transaction on the writer pool. The transaction is
// rolled back by database/sql if ctx is cancelled before it finishes.
func (m *Main) BeginWrite(ctx context.Context) (*sql.Tx, error) {
	return m.writer.BeginTx(ctx, nil)
}

// BeginRead starts a transaction on the reader pool.
func (m *Main) BeginRead(ctx context.Context) (*sql.Tx, error) {
	var opts *sql.TxOptions
	if m.driver == "pgx" {
		opts = &sql.TxOptions{ReadOnly: true}
	}
	return m.reader.BeginTx(ctx, opts)
}

// Ping checks both pools.
func (m *Main) Ping(ctx context.Context) error {
	return errors.Join(m.PingWriter(ctx), m.PingReader(ctx))
}

// PingWriter checks the writer pool.
func (m *Main) PingWriter(ctx context.Context) error {
	if err := m.writer.PingContext(ctx); err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	return nil
}

// PingReader checks the reader pool.
func (m *Main) PingReader(ctx context.Context) error {
	if err := m.reader.PingContext(ctx); err != nil {
		return fmt.Errorf("reader: %w", err)
	}
	return nil
}

// Close closes both pools.
func (m *Main) Close() error {
	return errors.Join(m.writer.Close(), m.reader.Close())
}

// Writer returns the writer pool, for schema migrations.
func (m *Main) Writer() *sql.DB {
	return m.writer
}

// Driver returns the configured driver name.
func (m *Main) Driver() string {
	return m.driver
}

// Dialect returns the placeholder dialect.
func (m *Main) Dialect() Dialect {
	return m.dialect
}

// Table addresses a table with this database's dialect and statement timeout.
func (m *Main) Table(name string) Table {
	return Table{Name: name, Dialect: m.dialect, Timeout: m.timeout}
}
