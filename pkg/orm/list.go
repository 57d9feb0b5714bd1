package orm

import (
	"fmt"
	"iter"
	"reflect"
	"slices"

	"github.com/mesh-intelligence/narwhal/pkg/query"
	"github.com/mesh-intelligence/narwhal/pkg/types"
)

// listField is the view the store has of a List field.
type listField interface {
	childType() reflect.Type
	bind(owner Entity, s *Store, rel *relation)
	markFromStorage()
	flushInsert(ss *Session) error
	flushUpdate(ss *Session) error
	flushDelete(ss *Session) error
	drop(e Entity)
	undoInsert()
}

// List is an ordered one-to-many relation. Each member stores the owner's
// key and its order value in two companion columns on the child table.
//
// A list loaded from storage fetches its members on first use. Mutations
// stay in memory until the owner is written, at which point removed
// members are unlinked before current members are linked, so moving a
// member between two lists within one session is safe.
//
// Order values are unique and increase along the list. Append extends
// them from the last member; Remove renumbers the members after the
// removed one contiguously from its order value; ReplaceAt gives the new
// member the order value of the one it replaces.
type List[T Entity] struct {
	owner       Entity
	store       *Store
	rel         *relation
	loaded      bool
	fromStorage bool
	items       []T
	former      []T
}

func (l *List[T]) childType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (l *List[T]) bind(owner Entity, s *Store, rel *relation) {
	l.owner = owner
	l.store = s
	l.rel = rel
}

func (l *List[T]) markFromStorage() {
	l.fromStorage = true
}

func (l *List[T]) mustBind() {
	if l.owner == nil || l.rel == nil {
		panic(contractf("list of %s used before Store.Init", l.childType()))
	}
}

func (l *List[T]) checkType(child T) {
	if isNilEntity(child) {
		panic(contractf("nil member for list %s", l.rel.ident))
	}
	if got, want := reflect.TypeOf(child), l.childType(); got != want {
		panic(contractf("list %s of %s given a %s", l.rel.ident, want, got))
	}
}

func (l *List[T]) order(e T) int64 {
	return e.entityBase().link(l.rel.orderColumn)
}

func (l *List[T]) stamp(e T, order int64) {
	b := e.entityBase()
	if ob := l.owner.entityBase(); ob.keyed {
		b.setLink(l.rel.idColumn, ob.key)
	}
	b.setLink(l.rel.orderColumn, order)
}

// owns reports whether e's companion owner key still names this list's
// owner. A member appended to another list of the same relation is owned
// by that list.
func (l *List[T]) owns(e T) bool {
	want := NullKey
	if ob := l.owner.entityBase(); ob.keyed {
		want = ob.key
	}
	return e.entityBase().link(l.rel.idColumn) == want
}

// unlink clears e's companion values unless another list has claimed it.
func (l *List[T]) unlink(e T) {
	if !l.owns(e) {
		return
	}
	b := e.entityBase()
	b.setLink(l.rel.idColumn, NullKey)
	b.setLink(l.rel.orderColumn, NullKey)
}

// slot returns the order value held by the member at i, or the one it
// would hold if it has been claimed by another list.
func (l *List[T]) slot(i int) int64 {
	if it := l.items[i]; l.owns(it) && l.order(it) >= 0 {
		return l.order(it)
	}
	if i > 0 {
		return l.order(l.items[i-1]) + 1
	}
	return 0
}

func (l *List[T]) index(e Entity) int {
	return slices.IndexFunc(l.items, func(it T) bool { return Equal(it, e) })
}

func (l *List[T]) addFormer(e T) {
	if !slices.ContainsFunc(l.former, func(it T) bool { return Equal(it, e) }) {
		l.former = append(l.former, e)
	}
}

// EnsureLoaded fetches the members of a list loaded from storage, once.
// It panics with a *ContractError when the owner has no key.
func (l *List[T]) EnsureLoaded() error {
	l.mustBind()
	if !l.fromStorage || l.loaded {
		return nil
	}
	ob := l.owner.entityBase()
	if !ob.keyed {
		panic(contractf("list %s loaded before its owner has a key", l.rel.ident))
	}

	m, err := l.store.modelFor(l.childType())
	if err != nil {
		return err
	}
	found, err := l.store.selectModel(m,
		query.Equals(l.rel.idColumn, ob.key),
		query.OrderAscending(l.rel.orderColumn))
	if err != nil {
		return fmt.Errorf("loading list %s: %w", l.rel.ident, err)
	}
	l.items = make([]T, 0, len(found))
	for _, e := range found {
		l.items = append(l.items, e.(T))
	}
	l.loaded = true
	return nil
}

// Len returns the number of members.
func (l *List[T]) Len() (int, error) {
	if err := l.EnsureLoaded(); err != nil {
		return 0, err
	}
	return len(l.items), nil
}

// At returns the member at index i. It panics with a *ContractError when i
// is out of range.
func (l *List[T]) At(i int) (T, error) {
	if err := l.EnsureLoaded(); err != nil {
		var zero T
		return zero, err
	}
	l.checkIndex(i)
	return l.items[i], nil
}

// All returns a copy of the members in order.
func (l *List[T]) All() ([]T, error) {
	if err := l.EnsureLoaded(); err != nil {
		return nil, err
	}
	return slices.Clone(l.items), nil
}

// Each returns an iterator over the members in order.
func (l *List[T]) Each() (iter.Seq2[int, T], error) {
	items, err := l.All()
	if err != nil {
		return nil, err
	}
	return func(yield func(int, T) bool) {
		for i, it := range items {
			if !yield(i, it) {
				return
			}
		}
	}, nil
}

// Contains reports whether child is a member.
func (l *List[T]) Contains(child T) (bool, error) {
	l.mustBind()
	l.checkType(child)
	if err := l.EnsureLoaded(); err != nil {
		return false, err
	}
	return l.index(child) >= 0, nil
}

func (l *List[T]) checkIndex(i int) {
	if i < 0 || i >= len(l.items) {
		panic(contractf("index %d out of range for list %s of length %d", i, l.rel.ident, len(l.items)))
	}
}

// Append adds child at the end of the list. It panics with a
// *ContractError when child is already a member.
func (l *List[T]) Append(child T) error {
	l.mustBind()
	l.checkType(child)
	if err := l.EnsureLoaded(); err != nil {
		return err
	}
	if l.index(child) >= 0 {
		panic(contractf("%s %d is already a member of list %s", l.childType(), child.entityBase().Key(), l.rel.ident))
	}

	var next int64
	if n := len(l.items); n > 0 {
		next = l.order(l.items[n-1]) + 1
	}
	l.stamp(child, next)
	l.items = append(l.items, child)
	return nil
}

// Remove unlinks child from the list. It returns types.ErrNotMember when
// child is not a member.
func (l *List[T]) Remove(child T) error {
	l.mustBind()
	l.checkType(child)
	if err := l.EnsureLoaded(); err != nil {
		return err
	}
	i := l.index(child)
	if i < 0 {
		return fmt.Errorf("removing from list %s: %w", l.rel.ident, types.ErrNotMember)
	}
	l.removeAt(i, true)
	return nil
}

// RemoveAt unlinks the member at index i. It panics with a *ContractError
// when i is out of range.
func (l *List[T]) RemoveAt(i int) error {
	l.mustBind()
	if err := l.EnsureLoaded(); err != nil {
		return err
	}
	l.checkIndex(i)
	l.removeAt(i, true)
	return nil
}

// removeAt unlinks the member at i and renumbers the members after it
// contiguously from its order value.
func (l *List[T]) removeAt(i int, recordFormer bool) {
	it := l.items[i]
	start := l.slot(i)
	l.unlink(it)
	for j := i + 1; j < len(l.items); j++ {
		l.items[j].entityBase().setLink(l.rel.orderColumn, start+int64(j-i-1))
	}
	l.items = slices.Delete(l.items, i, i+1)
	if recordFormer {
		l.addFormer(it)
	}
}

// ReplaceAt puts child at index i in place of the current member, which is
// unlinked. child takes over the replaced member's order value. It panics
// with a *ContractError when i is out of range or child is already a member
// elsewhere in the list.
func (l *List[T]) ReplaceAt(i int, child T) error {
	l.mustBind()
	l.checkType(child)
	if err := l.EnsureLoaded(); err != nil {
		return err
	}
	l.checkIndex(i)
	old := l.items[i]
	if Equal(old, child) {
		return nil
	}
	if l.index(child) >= 0 {
		panic(contractf("%s %d is already a member of list %s", l.childType(), child.entityBase().Key(), l.rel.ident))
	}

	// Order number, not necessarily the index.
	vacated := l.slot(i)
	l.unlink(old)
	l.addFormer(old)

	l.stamp(child, vacated)
	l.items[i] = child
	return nil
}

// ReplaceAll makes children the members of the list, in order. Current
// members not in children are unlinked.
func (l *List[T]) ReplaceAll(children []T) error {
	l.mustBind()
	for _, c := range children {
		l.checkType(c)
	}
	if err := l.EnsureLoaded(); err != nil {
		return err
	}

	for _, it := range l.items {
		l.unlink(it)
		survives := slices.ContainsFunc(children, func(c T) bool { return Equal(c, it) })
		if !survives {
			l.addFormer(it)
		}
	}
	l.items = nil
	for _, c := range children {
		if err := l.Append(c); err != nil {
			return err
		}
	}
	return nil
}

// flushInsert links every member to the freshly inserted owner. A list
// that is already linked to storage is flushed as an update instead.
func (l *List[T]) flushInsert(ss *Session) error {
	if l.fromStorage {
		return l.flushUpdate(ss)
	}
	ownerKey := l.ownerKey()

	l.former = nil
	if err := l.persistItems(ss, ownerKey); err != nil {
		return err
	}
	l.fromStorage = true
	l.loaded = true
	ss.insertedLists = append(ss.insertedLists, l)
	return nil
}

// flushUpdate writes removed members first, then every current member.
// An unloaded list has no changes to write.
func (l *List[T]) flushUpdate(ss *Session) error {
	if !l.loaded {
		return nil
	}
	ownerKey := l.ownerKey()

	if err := l.persistFormer(ss); err != nil {
		return err
	}
	if err := l.persistItems(ss, ownerKey); err != nil {
		return err
	}
	l.fromStorage = true
	return nil
}

// persistFormer writes the members removed since the last flush. A
// resident member refreshed from storage in the meantime carries its old
// companion values again, so it is unlinked once more; one that has been
// claimed by another list, or put back into this one, is left alone.
func (l *List[T]) persistFormer(ss *Session) error {
	for _, it := range l.former {
		if l.index(it) >= 0 {
			continue
		}
		l.unlink(it)
		if err := ss.persistMember(it); err != nil {
			return err
		}
	}
	l.former = nil
	return nil
}

// persistItems stamps every member with ownerKey and writes it. Order
// values that do not increase along the list, as left by a refresh of a
// resident member between a mutation and this flush, are moved up past
// the previous member's.
func (l *List[T]) persistItems(ss *Session, ownerKey int64) error {
	prev := int64(-1)
	for _, it := range l.items {
		b := it.entityBase()
		b.setLink(l.rel.idColumn, ownerKey)
		if o := b.link(l.rel.orderColumn); o <= prev {
			b.setLink(l.rel.orderColumn, prev+1)
		}
		prev = b.link(l.rel.orderColumn)
		if err := ss.persistMember(it); err != nil {
			return err
		}
	}
	return nil
}

// flushDelete unlinks every member before the owner's row is deleted.
func (l *List[T]) flushDelete(ss *Session) error {
	if err := l.EnsureLoaded(); err != nil {
		return err
	}
	if err := l.persistFormer(ss); err != nil {
		return err
	}

	for _, it := range l.items {
		l.unlink(it)
		if err := ss.persistMember(it); err != nil {
			return err
		}
	}
	l.items = nil
	return nil
}

// drop removes a deleted entity from a list held in memory, without
// recording it for a later write. Lists not yet loaded are left alone.
func (l *List[T]) drop(e Entity) {
	if l.rel == nil || (l.fromStorage && !l.loaded) {
		return
	}
	if i := l.index(e); i >= 0 {
		l.removeAt(i, false)
	}
}

// undoInsert forgets the storage linkage made by a rolled back flushInsert.
func (l *List[T]) undoInsert() {
	l.fromStorage = false
	l.loaded = false
	for _, it := range l.items {
		it.entityBase().setLink(l.rel.idColumn, NullKey)
	}
}

func (l *List[T]) ownerKey() int64 {
	ob := l.owner.entityBase()
	if !ob.keyed {
		panic(contractf("list %s flushed before its owner has a key", l.rel.ident))
	}
	return ob.key
}

// ReverseLookup returns the owner whose list field holds child, by reading
// the child's companion owner key for the relation (P, field). field is
// the Go field name or the column name of the list. It reports false when
// the child belongs to no such list.
func ReverseLookup[P Entity](s *Store, child Entity, field string) (P, bool, error) {
	var zero P
	m, err := s.modelFor(reflect.TypeFor[P]())
	if err != nil {
		return zero, false, err
	}
	rel := m.list(field)
	if rel == nil {
		return zero, false, fmt.Errorf("%s has no list field %q: %w", m.name, field, types.ErrUnknownField)
	}
	ownerKey := child.entityBase().link(rel.idColumn)
	if ownerKey == NullKey {
		return zero, false, nil
	}
	e, ok, err := s.selectAtIndex(m, ownerKey)
	if err != nil || !ok {
		return zero, false, err
	}
	return e.(P), true, nil
}

// ListColumns returns the companion owner-key and order columns that the
// list field of P adds to its child table, for use in predicates.
func ListColumns[P Entity](s *Store, field string) (id, order string, err error) {
	m, err := s.modelFor(reflect.TypeFor[P]())
	if err != nil {
		return "", "", err
	}
	rel := m.list(field)
	if rel == nil {
		return "", "", fmt.Errorf("%s has no list field %q: %w", m.name, field, types.ErrUnknownField)
	}
	return rel.idColumn, rel.orderColumn, nil
}
