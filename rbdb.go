// Package rbdb is the embedded deductive database described by spec.md: a
// Datalog-style Horn-clause engine layered transparently over SQLite, so
// that a predicate asserted as a fact or derived by a rule can be read and
// written through ordinary SQL (SELECT, INSERT) as if it were a table.
//
// Open a Session against a SQLite database file or an in-memory database,
// declare predicates with CREATE TABLE through Execute, assert facts and
// rules with Assert (or INSERT through a predicate's view via Execute),
// and read them back with Query or a raw SELECT through Execute.
package rbdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/rbdb/rbdb/catalog"
	"github.com/rbdb/rbdb/cursor"
	"github.com/rbdb/rbdb/udf"
	"github.com/rbdb/rbdb/view"
)

// sqliteDriverName is the name modernc.org/sqlite registers itself under
// with database/sql.
const sqliteDriverName = "sqlite"

// Session holds the one SQLite connection spec.md §5 fixes the engine to
// ("the session holds one connection to the underlying SQL engine and all
// operations are serialized on it") plus the session-scoped materializer
// state built on top of it. RBDB's deductive-engine components (catalog,
// view, udf, cursor) are SQLite-only, so Session talks to database/sql
// directly rather than through a generic dialect abstraction.
type Session struct {
	db           *sql.DB
	conn         *sql.Conn
	materializer *view.Materializer
	logger       *slog.Logger
	cache        Cache

	statements int64
	rescues    int64
	recovered  int64
}

// Stats is a snapshot of the statement and rescue counts a Session has
// accumulated since Open, per spec.md §6's observability surface.
type Stats struct {
	Statements int64
	Rescues    int64
	Recovered  int64
}

// Config holds the options Open applies before a Session is returned.
type Config struct {
	logger *slog.Logger
	cache  Cache
}

// Option configures a Session at Open time.
type Option func(*Config)

// WithLogger sets the logger Execute/Query use to report rescues. The
// default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.logger = l }
}

// WithCache attaches a Cache the Query Coordinator's caller may use to
// memoize compiled query results. Session does not consult it itself; it
// is exposed via Session.Cache for callers that want it.
func WithCache(cache Cache) Option {
	return func(c *Config) { c.cache = cache }
}

// Open registers the engine's user-defined scalar functions (once per
// process), opens dsn as a SQLite database, installs the Rule Store schema
// (spec.md §4.8) if absent, and returns a ready-to-use Session.
func Open(ctx context.Context, dsn string, opts ...Option) (*Session, error) {
	cfg := &Config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := udf.Register(); err != nil {
		return nil, fmt.Errorf("rbdb: open: %w", err)
	}

	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("rbdb: open: %w", err)
	}
	// One connection for the whole session, per spec.md §5: sql_exec (package
	// udf) runs against whichever connection Bind recorded, and every
	// statement this session issues must serialize through that same one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("rbdb: open: acquire connection: %w", err)
	}
	udf.Bind(conn)

	if err := catalog.Install(ctx, db); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("rbdb: open: %w", err)
	}

	return &Session{
		db:           db,
		conn:         conn,
		materializer: view.NewMaterializer(),
		logger:       cfg.logger,
		cache:        cfg.cache,
	}, nil
}

// Cache returns the Cache supplied with WithCache, or nil if none was set.
func (s *Session) Cache() Cache { return s.cache }

// Stats reports how many Execute or Query calls this session has run
// through a cursor (one count per call, however many statements its SQL
// text holds; CREATE TABLE handled by the DDL Interceptor is not counted),
// how many rescue attempts were made, and how many of those recovered, per
// spec.md §6's observability surface.
func (s *Session) Stats() Stats {
	return Stats{
		Statements: atomic.LoadInt64(&s.statements),
		Rescues:    atomic.LoadInt64(&s.rescues),
		Recovered:  atomic.LoadInt64(&s.recovered),
	}
}

// rescue implements cursor.RescueFunc: it looks up name in the catalog and,
// if declared, rebuilds its session view and trigger before the Cursor
// retries the failing statement (spec.md §4.7, §7's MissingRelation row).
// Every call counts toward Stats, and is logged at debug level so a caller
// running with WithLogger can see which predicates got rescued.
func (s *Session) rescue(ctx context.Context, name string) (bool, error) {
	atomic.AddInt64(&s.rescues, 1)
	columns, err := catalog.Columns(ctx, s.db, name)
	if err != nil {
		if IsUnknownPredicate(err) {
			s.logger.Debug("rbdb: rescue found no catalog entry", "predicate", name)
			return false, nil
		}
		return false, err
	}
	if err := s.materializer.Materialize(ctx, s.db, name, columns); err != nil {
		return false, err
	}
	atomic.AddInt64(&s.recovered, 1)
	s.logger.Debug("rbdb: rescue rebuilt view and trigger", "predicate", name)
	return true, nil
}

// DropPredicateView drops the session-scoped view and trigger materialized
// for name, without touching its declaration in _predicate or any rows
// already asserted for it. The next statement that references name as a
// table triggers the Cursor's rescue path (spec.md §4.7) to rebuild it.
// Exposed chiefly for exercising Scenario B's rescue path in tests.
func (s *Session) DropPredicateView(ctx context.Context, name string) error {
	return view.Drop(ctx, s.db, name)
}

// Close closes the session's connection and database handle. It does not
// track or close cursors the session has returned.
func (s *Session) Close() error {
	connErr := s.conn.Close()
	dbErr := s.db.Close()
	if connErr != nil {
		return connErr
	}
	return dbErr
}

var _ cursor.RescueFunc = (*Session)(nil).rescue
