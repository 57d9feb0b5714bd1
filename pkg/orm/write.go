package orm

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mesh-intelligence/narwhal/pkg/types"
)

// prepare returns e's model and binds e to the store if it is not yet.
func (ss *Session) prepare(e Entity) (*model, error) {
	if isNilEntity(e) {
		panic(contractf("nil entity"))
	}
	s := ss.store
	m, err := s.modelFor(reflect.TypeOf(e))
	if err != nil {
		return nil, err
	}
	if b := e.entityBase(); b.store == nil {
		s.bind(m, e)
	} else if b.store != s {
		panic(contractf("%s bound to another store", m.name))
	}
	return m, nil
}

// columnValues returns the column names of m and e's values for them.
// Pending reference targets are inserted first. Reference fields whose
// target is still being inserted are written as NullKey and returned as
// deferred.
func (ss *Session) columnValues(m *model, e Entity) (cols []string, vals []any, deferred []*field, err error) {
	v := reflect.ValueOf(e).Elem()
	fields := m.stored()
	cols = make([]string, 0, len(fields)+2*len(m.companions))
	vals = make([]any, 0, cap(cols))

	for _, f := range fields {
		fv := v.FieldByIndex(f.index)
		var val any
		switch f.kind {
		case kindScalar:
			val = scalarToStorage(f, fv)
		case kindCustom:
			x, err := f.custom.toStorage(fv.Interface())
			if err != nil {
				return nil, nil, nil, fmt.Errorf("%s.%s: %w", m.name, f.name, err)
			}
			val = x
		case kindReference:
			key, later, err := fv.Addr().Interface().(referenceField).adapt(ss)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("%s.%s: %w", m.name, f.name, err)
			}
			if later {
				deferred = append(deferred, f)
			}
			val = key
		}
		cols = append(cols, f.column)
		vals = append(vals, val)
	}

	b := e.entityBase()
	for _, r := range m.companions {
		cols = append(cols, r.idColumn, r.orderColumn)
		vals = append(vals, b.link(r.idColumn), b.link(r.orderColumn))
	}
	return cols, vals, deferred, nil
}

func (m *model) listFields(e Entity) []listField {
	v := reflect.ValueOf(e).Elem()
	out := make([]listField, 0, len(m.lists))
	for _, f := range m.lists {
		out = append(out, v.FieldByIndex(f.index).Addr().Interface().(listField))
	}
	return out
}

// insert writes a transient entity and the pending targets it reaches.
// Once the outermost insert finishes, reference columns deferred by a
// cycle are written with their targets' keys.
func (ss *Session) insert(e Entity) error {
	if e.entityBase().keyed {
		return ss.update(e, false)
	}
	if ss.inserting == nil {
		ss.inserting = make(map[Entity]int)
	}
	err := ss.trackInsert(e)
	if len(ss.inserting) > 0 {
		return err
	}

	pending := ss.backrefs
	ss.backrefs = nil
	if err != nil {
		return err
	}
	return ss.writeBackrefs(pending)
}

func (ss *Session) trackInsert(e Entity) error {
	ss.inserting[e]++
	defer func() {
		if ss.inserting[e]--; ss.inserting[e] == 0 {
			delete(ss.inserting, e)
		}
	}()
	return ss.insertRow(e)
}

func (ss *Session) insertRow(e Entity) error {
	s := ss.store
	m, err := ss.prepare(e)
	if err != nil {
		return err
	}
	if len(m.columns()) == 0 {
		return fmt.Errorf("inserting %s: %w", m.name, types.ErrNoColumns)
	}

	cols, vals, deferred, err := ss.columnValues(m, e)
	if err != nil {
		return err
	}
	// A list flushed by a pending target may have stored e already.
	if e.entityBase().keyed {
		return nil
	}

	stmt := "insert into " + m.table + " (" + strings.Join(cols, ", ") + ") values (" + placeholders(len(cols)) + ")"
	res, err := s.exec(opInsert, stmt, vals...)
	if err != nil {
		return fmt.Errorf("inserting %s: %w", m.name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("inserting %s: %w", m.name, err)
	}

	b := e.entityBase()
	b.setKey(id)
	ss.deferBackrefs(m, e, deferred)
	ss.inserted = append(ss.inserted, e)
	s.identity.put(e)
	s.cache.invalidateTable(m.table)

	for _, l := range m.listFields(e) {
		if err := l.flushInsert(ss); err != nil {
			return err
		}
	}
	return nil
}

func (ss *Session) update(e Entity, force bool) error {
	b := e.entityBase()
	if !b.keyed {
		return ss.insert(e)
	}
	s := ss.store
	m, err := ss.prepare(e)
	if err != nil {
		return err
	}
	if m.immutable && !force {
		s.log.Warn("update of immutable entity skipped", "type", m.name, "key", b.key)
		return fmt.Errorf("updating %s %d: %w", m.name, b.key, types.ErrImmutable)
	}

	cols, vals, deferred, err := ss.columnValues(m, e)
	if err != nil {
		return err
	}
	ss.deferBackrefs(m, e, deferred)
	if len(cols) > 0 {
		sets := make([]string, len(cols))
		for i, c := range cols {
			sets[i] = c + " = ?"
		}
		stmt := "update " + m.table + " set " + strings.Join(sets, ", ") + " where " + PrimaryKey + " = ?"
		if _, err := s.exec(opUpdate, stmt, append(vals, b.key)...); err != nil {
			return fmt.Errorf("updating %s %d: %w", m.name, b.key, err)
		}
	}
	s.identity.put(e)
	s.cache.invalidateTable(m.table)

	for _, l := range m.listFields(e) {
		if err := l.flushUpdate(ss); err != nil {
			return err
		}
	}
	return nil
}

func (ss *Session) delete(e Entity, force bool) error {
	b := e.entityBase()
	if !b.keyed {
		return nil
	}
	s := ss.store
	m, err := ss.prepare(e)
	if err != nil {
		return err
	}
	if m.immutable && !force {
		s.log.Warn("delete of immutable entity skipped", "type", m.name, "key", b.key)
		return fmt.Errorf("deleting %s %d: %w", m.name, b.key, types.ErrImmutable)
	}

	for _, l := range m.listFields(e) {
		if err := l.flushDelete(ss); err != nil {
			return err
		}
	}

	key := b.key
	stmt := "delete from " + m.table + " where " + PrimaryKey + " = ?"
	if _, err := s.exec(opDelete, stmt, key); err != nil {
		return fmt.Errorf("deleting %s %d: %w", m.name, key, err)
	}

	s.cache.invalidateEntity(e)
	s.identity.remove(m.typ, key)
	s.cascade(m, e)
	ss.deleted = append(ss.deleted, deletion{entity: e, key: key})
	b.clearKey()
	return nil
}

func (ss *Session) deferBackrefs(m *model, e Entity, fields []*field) {
	if len(fields) > 0 {
		ss.backrefs = append(ss.backrefs, backref{entity: e, model: m, fields: fields})
	}
}

// writeBackrefs stores the keys of reference columns that were written as
// null while their targets were being inserted.
func (ss *Session) writeBackrefs(brs []backref) error {
	s := ss.store
	for _, br := range brs {
		b := br.entity.entityBase()
		if !b.keyed {
			continue
		}
		v := reflect.ValueOf(br.entity).Elem()
		sets := make([]string, len(br.fields))
		args := make([]any, 0, len(br.fields)+1)
		for i, f := range br.fields {
			sets[i] = f.column + " = ?"
			args = append(args, v.FieldByIndex(f.index).Addr().Interface().(referenceField).rawKey())
		}
		stmt := "update " + br.model.table + " set " + strings.Join(sets, ", ") + " where " + PrimaryKey + " = ?"
		if _, err := s.exec(opUpdate, stmt, append(args, b.key)...); err != nil {
			return fmt.Errorf("linking %s %d: %w", br.model.name, b.key, err)
		}
		s.cache.invalidateTable(br.model.table)
	}
	return nil
}

// persistMember writes a list member. Immutable members that are already
// stored are left as they are.
func (ss *Session) persistMember(e Entity) error {
	err := ss.insert(e)
	if errors.Is(err, types.ErrImmutable) {
		return nil
	}
	return err
}

// cascade drops a deleted entity from the resident instances that point
// at it: references to it become null and loaded lists lose it.
func (s *Store) cascade(deleted *model, e Entity) {
	key := e.entityBase().key
	for _, m := range s.order {
		var refs, lists []*field
		for _, f := range m.refs {
			if f.target == deleted.typ {
				refs = append(refs, f)
			}
		}
		for _, f := range m.lists {
			if f.target == deleted.typ {
				lists = append(lists, f)
			}
		}
		if len(refs) == 0 && len(lists) == 0 {
			continue
		}

		for _, owner := range s.identity.residents(m.typ) {
			v := reflect.ValueOf(owner).Elem()
			for _, f := range refs {
				rf := v.FieldByIndex(f.index).Addr().Interface().(referenceField)
				if rf.rawKey() == key {
					rf.reset()
				}
			}
			for _, f := range lists {
				v.FieldByIndex(f.index).Addr().Interface().(listField).drop(e)
			}
		}
	}
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
