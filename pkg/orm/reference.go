package orm

import (
	"reflect"
)

// referenceField is the view the store has of a Reference field.
type referenceField interface {
	targetType() reflect.Type
	bind(s *Store)
	rawKey() int64
	setRawKey(key int64)
	adapt(ss *Session) (key int64, deferred bool, err error)
	reset()
}

// Reference is a nullable to-one relation stored as the target's key.
// The zero value is a null reference.
//
// A reference set to a transient target keeps that target and stores it
// first when the owning entity is written. A stored reference is resolved
// lazily by Get.
type Reference[T Entity] struct {
	key      int64
	linked   bool
	cached   T
	hasCache bool
	pending  bool
	resolved bool
	store    *Store
}

func (r *Reference[T]) targetType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (r *Reference[T]) bind(s *Store) {
	r.store = s
}

// Set points the reference at target, or clears it when target is nil.
// It panics with a *ContractError if target's runtime type is not T.
func (r *Reference[T]) Set(target T) {
	if isNilEntity(target) {
		r.reset()
		return
	}
	if got, want := reflect.TypeOf(target), r.targetType(); got != want {
		panic(contractf("reference to %s assigned a %s", want, got))
	}

	r.cached = target
	r.hasCache = true
	r.resolved = true
	if b := target.entityBase(); b.keyed {
		r.key = b.key
		r.linked = true
		r.pending = false
		return
	}
	r.key = 0
	r.linked = false
	r.pending = true
}

// Get returns the target. A null reference returns the zero T without
// touching storage, as does a reference to a target that has not been
// stored yet. A cached immutable target is returned as is; anything else is
// looked up by key through the store, which returns the resident instance
// when the identity map is enabled.
func (r *Reference[T]) Get() (T, error) {
	var zero T
	if r.pending {
		b := r.cached.entityBase()
		if !b.keyed {
			return r.cached, nil
		}
		r.key = b.key
		r.linked = true
		r.pending = false
	}
	if !r.linked {
		r.resolved = true
		return zero, nil
	}
	if r.hasCache && r.cached.IsImmutable() {
		return r.cached, nil
	}
	if r.store == nil {
		panic(contractf("reference to %s resolved before Store.Init", r.targetType()))
	}

	m, err := r.store.modelFor(r.targetType())
	if err != nil {
		return zero, err
	}
	e, ok, err := r.store.selectAtIndex(m, r.key)
	if err != nil {
		return zero, err
	}
	r.resolved = true
	if !ok {
		r.cached = zero
		r.hasCache = false
		return zero, nil
	}
	r.cached = e.(T)
	r.hasCache = true
	return r.cached, nil
}

// Key returns the stored key without resolving the target, or NullKey.
func (r *Reference[T]) Key() int64 {
	return r.rawKey()
}

// SetKey points the reference at key without resolving it. NullKey clears
// the reference.
func (r *Reference[T]) SetKey(key int64) {
	r.setRawKey(key)
}

// IsNull reports whether the reference has neither a key nor a pending
// target.
func (r *Reference[T]) IsNull() bool {
	return !r.pending && !r.linked
}

// Resolved reports whether the target has been fetched or assigned since
// the key was last loaded from storage.
func (r *Reference[T]) Resolved() bool {
	return r.resolved
}

func (r *Reference[T]) rawKey() int64 {
	if r.pending {
		if b := r.cached.entityBase(); b.keyed {
			return b.key
		}
		return NullKey
	}
	if !r.linked {
		return NullKey
	}
	return r.key
}

func (r *Reference[T]) setRawKey(key int64) {
	if key == NullKey {
		r.reset()
		return
	}
	if r.rawKey() == key {
		if r.pending {
			r.key = key
			r.linked = true
			r.pending = false
		}
		return
	}
	var zero T
	r.key = key
	r.linked = true
	r.pending = false
	r.cached = zero
	r.hasCache = false
	r.resolved = false
}

// adapt returns the key to store for this reference. A pending transient
// target is inserted first within ss, without committing. A target whose
// own insert is still under way, as in a reference cycle, has no key yet:
// adapt returns NullKey and reports the column as deferred.
func (r *Reference[T]) adapt(ss *Session) (int64, bool, error) {
	if r.pending && !r.cached.entityBase().keyed {
		if ss.inserting[Entity(r.cached)] > 0 {
			return NullKey, true, nil
		}
		if err := ss.insert(r.cached); err != nil {
			return NullKey, false, err
		}
	}
	return r.rawKey(), false, nil
}

func (r *Reference[T]) reset() {
	var zero T
	r.key = 0
	r.linked = false
	r.pending = false
	r.cached = zero
	r.hasCache = false
	r.resolved = false
}
