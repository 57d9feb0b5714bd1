package orm

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mesh-intelligence/narwhal/pkg/types"
)

// Session is an explicit transaction. While a session is open every
// statement of its Store, reads and lazy loads included, runs inside it.
// Only one session may be open per Store.
type Session struct {
	// ID identifies the session in log records.
	ID uuid.UUID

	store *Store
	tx    *sqlx.Tx
	done  bool

	inserted      []Entity
	insertedLists []listField
	deleted       []deletion

	// inserting counts the entities whose insert is under way; backrefs
	// holds reference columns written as null because their target was
	// one of them.
	inserting map[Entity]int
	backrefs  []backref
}

type backref struct {
	entity Entity
	model  *model
	fields []*field
}

type deletion struct {
	entity Entity
	key    int64
}

// Begin opens a session.
func (s *Store) Begin() (*Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if s.session != nil {
		return nil, types.ErrSessionActive
	}
	tx, err := s.engine.Beginx()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("generating session id: %w", err), tx.Rollback())
	}
	ss := &Session{ID: id, store: s, tx: tx}
	s.session = ss
	s.log.Debug("session begun", "session", id.String())
	return ss, nil
}

// Transaction runs fn in a new session. The session commits when fn
// returns nil and rolls back when fn returns an error or panics.
func (s *Store) Transaction(fn func(ss *Session) error) error {
	ss, err := s.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = ss.Rollback()
			panic(p)
		}
	}()

	if err := fn(ss); err != nil {
		if ss.done {
			return err
		}
		return errors.Join(err, ss.Rollback())
	}
	if ss.done {
		return nil
	}
	return ss.Commit()
}

// write runs fn in the open session, or in a session of its own.
func (s *Store) write(fn func(ss *Session) error) error {
	if s.session != nil {
		return fn(s.session)
	}
	return s.Transaction(fn)
}

// Commit makes the session's writes durable.
func (ss *Session) Commit() error {
	if ss.done {
		return types.ErrSessionDone
	}
	ss.finish()
	if err := ss.tx.Commit(); err != nil {
		ss.undo()
		return fmt.Errorf("committing session %s: %w", ss.ID, err)
	}
	ss.store.log.Debug("session committed", "session", ss.ID.String())
	return nil
}

// Rollback discards the session's writes. Keys assigned inside the session
// are cleared and those entities leave the identity map; entities deleted
// inside the session get their keys back. The result cache is emptied.
func (ss *Session) Rollback() error {
	if ss.done {
		return types.ErrSessionDone
	}
	ss.finish()
	err := ss.tx.Rollback()
	ss.undo()
	ss.store.log.Debug("session rolled back", "session", ss.ID.String())
	if err != nil {
		return fmt.Errorf("rolling back session %s: %w", ss.ID, err)
	}
	return nil
}

func (ss *Session) finish() {
	ss.done = true
	if ss.store.session == ss {
		ss.store.session = nil
	}
}

func (ss *Session) undo() {
	s := ss.store
	for _, d := range ss.deleted {
		d.entity.entityBase().setKey(d.key)
		s.identity.put(d.entity)
	}
	// Entities both inserted and deleted here end up transient.
	for _, e := range ss.inserted {
		b := e.entityBase()
		if b.keyed {
			s.identity.remove(reflect.TypeOf(e), b.key)
			b.clearKey()
		}
	}
	for _, l := range ss.insertedLists {
		l.undoInsert()
	}
	s.cache.clear()
}

func (ss *Session) check() error {
	if ss.done {
		return types.ErrSessionDone
	}
	return nil
}

// Insert stores e inside the session. A keyed entity is updated instead.
func (ss *Session) Insert(e Entity) error {
	if err := ss.check(); err != nil {
		return err
	}
	return ss.insert(e)
}

// InsertAll stores each entity in order, stopping at the first error.
func (ss *Session) InsertAll(es ...Entity) error {
	if err := ss.check(); err != nil {
		return err
	}
	for _, e := range es {
		if err := ss.insert(e); err != nil {
			return err
		}
	}
	return nil
}

// Update writes every column of e inside the session. A transient entity
// is inserted instead. Immutable types return types.ErrImmutable unless
// force is set.
func (ss *Session) Update(e Entity, force bool) error {
	if err := ss.check(); err != nil {
		return err
	}
	return ss.update(e, force)
}

// UpdateAll updates each entity in order, stopping at the first error.
func (ss *Session) UpdateAll(es []Entity, force bool) error {
	if err := ss.check(); err != nil {
		return err
	}
	for _, e := range es {
		if err := ss.update(e, force); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes e's row inside the session.
func (ss *Session) Delete(e Entity, force bool) error {
	if err := ss.check(); err != nil {
		return err
	}
	return ss.delete(e, force)
}

// Insert stores e, joining the open session if there is one.
func (s *Store) Insert(e Entity) error {
	return s.write(func(ss *Session) error { return ss.insert(e) })
}

// InsertAll stores each entity in one session.
func (s *Store) InsertAll(es ...Entity) error {
	return s.write(func(ss *Session) error { return ss.InsertAll(es...) })
}

// Update writes e, joining the open session if there is one.
func (s *Store) Update(e Entity, force bool) error {
	return s.write(func(ss *Session) error { return ss.update(e, force) })
}

// UpdateAll updates each entity in one session.
func (s *Store) UpdateAll(es []Entity, force bool) error {
	return s.write(func(ss *Session) error { return ss.UpdateAll(es, force) })
}

// Delete removes e's row, joining the open session if there is one.
func (s *Store) Delete(e Entity, force bool) error {
	return s.write(func(ss *Session) error { return ss.delete(e, force) })
}
