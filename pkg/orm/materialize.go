package orm

import (
	"fmt"
	"reflect"
)

// materialize turns a scanned row into an entity of m. A resident instance
// with the same key is refreshed in place and returned.
func (s *Store) materialize(m *model, row map[string]any) (Entity, error) {
	key, err := toInt64(row[PrimaryKey])
	if err != nil {
		return nil, fmt.Errorf("%s: reading %s: %w", m.table, PrimaryKey, err)
	}

	e, ok := s.identity.get(m.typ, key)
	if !ok {
		e = reflect.New(m.typ.Elem()).Interface().(Entity)
		s.bind(m, e)
	}
	if err := s.copyRow(m, e, key, row); err != nil {
		return nil, err
	}
	s.identity.put(e)
	return e, nil
}

// copyRow assigns the columns of row to e. Reference columns set the raw
// key without resolving it; companion columns go to e's Base.
func (s *Store) copyRow(m *model, e Entity, key int64, row map[string]any) error {
	b := e.entityBase()
	b.setKey(key)
	v := reflect.ValueOf(e).Elem()

	for col, raw := range row {
		if col == PrimaryKey {
			continue
		}
		if m.isCompanion(col) {
			n := NullKey
			if raw != nil {
				x, err := toInt64(raw)
				if err != nil {
					return fmt.Errorf("%s: reading %s: %w", m.table, col, err)
				}
				n = x
			}
			b.setLink(col, n)
			continue
		}

		f := m.fieldByColumn(col)
		if f == nil {
			continue
		}
		fv := v.FieldByIndex(f.index)
		switch f.kind {
		case kindScalar:
			if err := scalarFromStorage(f, fv, raw); err != nil {
				return fmt.Errorf("%s: %w", m.table, err)
			}
		case kindCustom:
			x, err := f.custom.fromStorage(raw)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", m.name, f.name, err)
			}
			fv.Set(x)
		case kindReference:
			k := NullKey
			if raw != nil {
				x, err := toInt64(raw)
				if err != nil {
					return fmt.Errorf("%s: reading %s: %w", m.table, col, err)
				}
				k = x
			}
			fv.Addr().Interface().(referenceField).setRawKey(k)
		}
	}

	for _, l := range m.listFields(e) {
		l.markFromStorage()
	}
	return nil
}
