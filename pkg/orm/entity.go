package orm

import (
	"reflect"
)

// NullKey is the key held by an unset reference and by the companion
// columns of a child that belongs to no list.
const NullKey int64 = -1

// PrimaryKey is the name of the surrogate key column of every table.
const PrimaryKey = "dbid"

// Entity is implemented by pointers to structs that embed Mutable or
// Immutable.
type Entity interface {
	entityBase() *Base

	// IsImmutable reports whether stored rows of the type may only be
	// updated or deleted when forced.
	IsImmutable() bool
}

// Base holds the storage state shared by every entity: its surrogate key,
// the store it is bound to and the companion values of the lists it
// belongs to.
type Base struct {
	key   int64
	keyed bool
	store *Store
	self  Entity
	links map[string]int64
}

func (b *Base) entityBase() *Base { return b }

// Key returns the surrogate key, or NullKey while the entity is transient.
func (b *Base) Key() int64 {
	if !b.keyed {
		return NullKey
	}
	return b.key
}

// HasKey reports whether the entity has been stored.
func (b *Base) HasKey() bool { return b.keyed }

// Store returns the store the entity is bound to, or nil.
func (b *Base) Store() *Store { return b.store }

func (b *Base) setKey(key int64) {
	b.key = key
	b.keyed = true
}

func (b *Base) clearKey() {
	b.key = 0
	b.keyed = false
}

// link returns the companion value stored under column, or NullKey.
func (b *Base) link(column string) int64 {
	v, ok := b.links[column]
	if !ok {
		return NullKey
	}
	return v
}

func (b *Base) setLink(column string, v int64) {
	if b.links == nil {
		b.links = make(map[string]int64)
	}
	b.links[column] = v
}

func (b *Base) bound() *Store {
	if b.store == nil || b.self == nil {
		panic(contractf("entity used before Store.Init"))
	}
	return b.store
}

// Serialize stores the entity: an update when it already has a key, an
// insert otherwise. Updates of immutable types are skipped unless force is
// set.
func (b *Base) Serialize(force bool) error {
	s := b.bound()
	if b.keyed {
		return s.Update(b.self, force)
	}
	return s.Insert(b.self)
}

// Delete removes the stored row. It does nothing for a transient entity.
// Immutable types are only deleted when force is set.
func (b *Base) Delete(force bool) error {
	if !b.keyed {
		return nil
	}
	return b.bound().Delete(b.self, force)
}

// Mutable marks a struct as a stored type whose rows may be updated and
// deleted freely.
type Mutable struct {
	Base
}

// IsImmutable returns false.
func (Mutable) IsImmutable() bool { return false }

// Immutable marks a struct as a stored type whose rows are written once.
// Cached references to immutable targets are never re-fetched.
type Immutable struct {
	Base
}

// IsImmutable returns true.
func (Immutable) IsImmutable() bool { return true }

// Equal reports whether a and b denote the same stored row: the same
// runtime type and the same assigned key. A transient entity is only equal
// to itself.
func Equal(a, b Entity) bool {
	if isNilEntity(a) || isNilEntity(b) {
		return isNilEntity(a) && isNilEntity(b)
	}
	if a == b {
		return true
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	ab, bb := a.entityBase(), b.entityBase()
	return ab.keyed && bb.keyed && ab.key == bb.key
}

// New allocates a T and binds it and its relation fields to s. T must be a
// pointer to a registered struct type.
func New[T Entity](s *Store) T {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		panic(contractf("%s is not a pointer to a struct", t))
	}
	e := reflect.New(t.Elem()).Interface().(T)
	s.Init(e)
	return e
}

func isNilEntity(e Entity) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
