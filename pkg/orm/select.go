package orm

import (
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/narwhal/pkg/query"
)

func selectSQL(m *model, where query.Predicate, orders []query.Order) string {
	stmt := "select * from " + m.table
	if !where.IsZero() {
		stmt += " where " + where.Clause
	}
	if o := query.OrderChain(orders...); o != "" {
		stmt += " order by " + o.String()
	}
	return stmt
}

// selectModel returns the entities of m matching where, in the given order.
func (s *Store) selectModel(m *model, where query.Predicate, orders ...query.Order) ([]Entity, error) {
	args, err := s.bindArgs(m, where)
	if err != nil {
		return nil, err
	}
	return s.run(m, opSelect, selectSQL(m, where, orders), args, true)
}

// run executes a select statement, consulting the result cache when
// cacheable is set.
func (s *Store) run(m *model, op, stmt string, args []any, cacheable bool) ([]Entity, error) {
	var ck uint64
	if cacheable && s.cache.enabled {
		ck = cacheKey(stmt, args)
		if rows, ok := s.cache.get(ck); ok {
			return rows, nil
		}
	}

	rows, err := s.queryRows(op, stmt, args)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", m.table, err)
	}
	out := make([]Entity, 0, len(rows))
	for _, row := range rows {
		e, err := s.materialize(m, row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	if cacheable {
		s.cache.put(ck, m.table, out)
	}
	return out, nil
}

func (s *Store) selectOne(m *model, where query.Predicate, orders ...query.Order) (Entity, bool, error) {
	args, err := s.bindArgs(m, where)
	if err != nil {
		return nil, false, err
	}
	found, err := s.run(m, opSelect, selectSQL(m, where, orders)+" limit 1", args, true)
	if err != nil || len(found) == 0 {
		return nil, false, err
	}
	return found[0], true, nil
}

// selectAtIndex looks up the row with key, trying the identity map first.
func (s *Store) selectAtIndex(m *model, key int64) (Entity, bool, error) {
	if e, ok := s.identity.get(m.typ, key); ok {
		return e, true, nil
	}
	return s.selectOne(m, query.Equals(PrimaryKey, key))
}

func (s *Store) count(m *model, where query.Predicate) (int64, error) {
	args, err := s.bindArgs(m, where)
	if err != nil {
		return 0, err
	}
	stmt := "select count(1) from " + m.table
	if !where.IsZero() {
		stmt += " where " + where.Clause
	}
	n, err := s.queryInt(opCount, stmt, args)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", m.table, err)
	}
	return n, nil
}

// random returns up to n rows chosen at random, at least one when the
// table is not empty. Random results are never cached.
func (s *Store) random(m *model, n int) ([]Entity, error) {
	stmt := "select * from " + m.table + " order by random() limit ?"
	return s.run(m, opRandom, stmt, []any{max(n, 1)}, false)
}

// Select returns the entities of proto's type matching where, ordered by
// orders. A zero where matches every row.
func (s *Store) Select(proto Entity, where query.Predicate, orders ...query.Order) ([]Entity, error) {
	m, err := s.modelFor(reflect.TypeOf(proto))
	if err != nil {
		return nil, err
	}
	return s.selectModel(m, where, orders...)
}

// SelectOne returns the first entity of proto's type matching where.
func (s *Store) SelectOne(proto Entity, where query.Predicate, orders ...query.Order) (Entity, bool, error) {
	m, err := s.modelFor(reflect.TypeOf(proto))
	if err != nil {
		return nil, false, err
	}
	return s.selectOne(m, where, orders...)
}

// SelectAll returns every entity of proto's type.
func (s *Store) SelectAll(proto Entity) ([]Entity, error) {
	return s.Select(proto, query.Predicate{})
}

// SelectAtIndex returns the entity of proto's type with key.
func (s *Store) SelectAtIndex(proto Entity, key int64) (Entity, bool, error) {
	m, err := s.modelFor(reflect.TypeOf(proto))
	if err != nil {
		return nil, false, err
	}
	return s.selectAtIndex(m, key)
}

// Count returns the number of rows of proto's type matching where.
func (s *Store) Count(proto Entity, where query.Predicate) (int64, error) {
	m, err := s.modelFor(reflect.TypeOf(proto))
	if err != nil {
		return 0, err
	}
	return s.count(m, where)
}

// RandomEntries returns up to n entities of proto's type chosen at random.
func (s *Store) RandomEntries(proto Entity, n int) ([]Entity, error) {
	m, err := s.modelFor(reflect.TypeOf(proto))
	if err != nil {
		return nil, err
	}
	return s.random(m, n)
}

func modelOf[T Entity](s *Store) (*model, error) {
	return s.modelFor(reflect.TypeFor[T]())
}

func typed[T Entity](es []Entity) []T {
	out := make([]T, len(es))
	for i, e := range es {
		out[i] = e.(T)
	}
	return out
}

// Select returns the T entities matching where, ordered by orders.
func Select[T Entity](s *Store, where query.Predicate, orders ...query.Order) ([]T, error) {
	m, err := modelOf[T](s)
	if err != nil {
		return nil, err
	}
	es, err := s.selectModel(m, where, orders...)
	if err != nil {
		return nil, err
	}
	return typed[T](es), nil
}

// SelectOne returns the first T matching where. It reports false when no
// row matches.
func SelectOne[T Entity](s *Store, where query.Predicate, orders ...query.Order) (T, bool, error) {
	var zero T
	m, err := modelOf[T](s)
	if err != nil {
		return zero, false, err
	}
	e, ok, err := s.selectOne(m, where, orders...)
	if err != nil || !ok {
		return zero, false, err
	}
	return e.(T), true, nil
}

// SelectAll returns every stored T.
func SelectAll[T Entity](s *Store) ([]T, error) {
	return Select[T](s, query.Predicate{})
}

// SelectAtIndex returns the T with key. It reports false when there is no
// such row.
func SelectAtIndex[T Entity](s *Store, key int64) (T, bool, error) {
	var zero T
	m, err := modelOf[T](s)
	if err != nil {
		return zero, false, err
	}
	e, ok, err := s.selectAtIndex(m, key)
	if err != nil || !ok {
		return zero, false, err
	}
	return e.(T), true, nil
}

// SelectRandom returns up to n T chosen at random.
func SelectRandom[T Entity](s *Store, n int) ([]T, error) {
	m, err := modelOf[T](s)
	if err != nil {
		return nil, err
	}
	es, err := s.random(m, n)
	if err != nil {
		return nil, err
	}
	return typed[T](es), nil
}

// Count returns the number of stored T matching where.
func Count[T Entity](s *Store, where query.Predicate) (int64, error) {
	m, err := modelOf[T](s)
	if err != nil {
		return 0, err
	}
	return s.count(m, where)
}

// TableLength returns the number of stored T.
func TableLength[T Entity](s *Store) (int64, error) {
	return Count[T](s, query.Predicate{})
}
