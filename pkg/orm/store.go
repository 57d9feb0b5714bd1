package orm

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/jmoiron/sqlx"

	"github.com/mesh-intelligence/narwhal/internal/sqlite"
	"github.com/mesh-intelligence/narwhal/pkg/query"
	"github.com/mesh-intelligence/narwhal/pkg/types"
)

// Engine is the relational engine a Store drives. *sqlx.DB satisfies it.
type Engine interface {
	sqlx.Ext
	Beginx() (*sqlx.Tx, error)
	Close() error
}

// Store is the storage manager: it owns the schema registry, runs every
// statement, and keeps the identity map and result cache consistent with
// the rows it writes. A Store is not safe for concurrent use.
type Store struct {
	engine Engine
	log    *slog.Logger

	models  map[reflect.Type]*model
	order   []*model
	pending map[reflect.Type][]*relation
	types   map[reflect.Type]*customType
	frozen  bool
	closed  bool

	identity *identityMap
	cache    *resultCache
	session  *Session
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	cache       bool
	identityMap bool
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCache enables the result cache, and with it the identity map.
func WithCache() Option {
	return func(o *options) { o.cache = true }
}

// WithIdentityMap enables the identity map.
func WithIdentityMap() Option {
	return func(o *options) { o.identityMap = true }
}

// NewStore returns a Store over engine.
func NewStore(engine Engine, opts ...Option) *Store {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		engine:   engine,
		log:      o.logger,
		models:   make(map[reflect.Type]*model),
		pending:  make(map[reflect.Type][]*relation),
		types:    make(map[reflect.Type]*customType),
		identity: newIdentityMap(o.identityMap || o.cache),
		cache:    newResultCache(o.cache),
	}
}

// Open opens the engine described by config and returns a Store over it.
// The cache and identity map settings of config come before opts.
func Open(config types.Config, opts ...Option) (*Store, error) {
	db, err := sqlite.Open(config)
	if err != nil {
		return nil, err
	}
	var all []Option
	if config.Cache {
		all = append(all, WithCache())
	}
	if config.UseIdentityMap() {
		all = append(all, WithIdentityMap())
	}
	return NewStore(db, append(all, opts...)...), nil
}

// Close rolls back an open session and closes the engine.
func (s *Store) Close() error {
	if s.closed {
		return types.ErrStoreClosed
	}
	var err error
	if s.session != nil {
		err = s.session.Rollback()
	}
	s.closed = true
	return errors.Join(err, s.engine.Close())
}

func (s *Store) checkOpen() error {
	if s.closed {
		return types.ErrStoreClosed
	}
	return nil
}

// conn returns the transaction of the active session, or the engine.
func (s *Store) conn() sqlx.Ext {
	if s.session != nil {
		return s.session.tx
	}
	return s.engine
}

func (s *Store) logStatement(op, stmt string, args []any) {
	attrs := []any{"op", op, "sql", stmt, "args", len(args)}
	if s.session != nil {
		attrs = append(attrs, "session", s.session.ID.String())
	}
	s.log.Debug("statement", attrs...)
}

func (s *Store) exec(op, stmt string, args ...any) (sql.Result, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	metricStatements.WithLabelValues(op).Inc()
	s.logStatement(op, stmt, args)
	return s.conn().Exec(stmt, args...)
}

// queryRows runs stmt and scans every row into a column map.
func (s *Store) queryRows(op, stmt string, args []any) (_ []map[string]any, rerr error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	metricStatements.WithLabelValues(op).Inc()
	s.logStatement(op, stmt, args)

	rows, err := s.conn().Queryx(stmt, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		rerr = errors.Join(rerr, rows.Close())
	}()

	var out []map[string]any
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) queryInt(op, stmt string, args []any) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	metricStatements.WithLabelValues(op).Inc()
	s.logStatement(op, stmt, args)

	var n int64
	if err := s.conn().QueryRowx(stmt, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Stats describes the in-memory state of a Store.
type Stats struct {
	Models   int
	Resident int
	Cached   int
}

// Stats returns the number of registered types, resident instances and
// cached results.
func (s *Store) Stats() Stats {
	return Stats{
		Models:   len(s.models),
		Resident: s.identity.len(),
		Cached:   s.cache.len(),
	}
}

// Tables returns the table names of the registered types, in registration
// order.
func (s *Store) Tables() []string {
	out := make([]string, len(s.order))
	for i, m := range s.order {
		out[i] = m.table
	}
	return out
}

// Clear deletes every row of proto's type and forgets its resident
// instances. Keys held by those instances are left as they were.
func (s *Store) Clear(proto Entity) error {
	m, err := s.modelFor(reflect.TypeOf(proto))
	if err != nil {
		return err
	}
	err = s.write(func(*Session) error {
		if _, err := s.exec(opClear, "delete from "+m.table); err != nil {
			return fmt.Errorf("clearing %s: %w", m.table, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.identity.forget(m.typ)
	s.cache.invalidateTable(m.table)
	return nil
}

// TableLength returns the number of rows of proto's type.
func (s *Store) TableLength(proto Entity) (int64, error) {
	m, err := s.modelFor(reflect.TypeOf(proto))
	if err != nil {
		return 0, err
	}
	return s.count(m, query.Predicate{})
}
