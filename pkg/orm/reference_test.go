package orm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/narwhal/pkg/query"
)

var errRollback = errors.New("abandon voyage")

func TestReferenceNull(t *testing.T) {
	s, eng := newTestStore(t)
	c := newCrew(s, "Ana", 1)

	reads := eng.reads
	v, err := c.Ship.Get()
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.True(t, c.Ship.IsNull())
	assert.Equal(t, NullKey, c.Ship.Key())
	assert.Equal(t, reads, eng.reads, "a null reference never touches storage")
}

func TestReferencePendingTarget(t *testing.T) {
	s, _ := newTestStore(t)

	v := newVessel(s, "Kestrel")
	c := newCrew(s, "Ana", 1)
	c.Ship.Set(v)
	assert.False(t, c.Ship.IsNull())
	assert.Equal(t, NullKey, c.Ship.Key())

	got, err := c.Ship.Get()
	require.NoError(t, err)
	assert.Same(t, v, got, "transient target is returned as is")

	// Storing the owner stores the target first.
	require.NoError(t, c.Serialize(false))
	assert.True(t, v.HasKey())
	assert.Equal(t, v.Key(), c.Ship.Key())

	stored, _, err := SelectAtIndex[*Crew](s, c.Key())
	require.NoError(t, err)
	assert.Equal(t, v.Key(), stored.Ship.Key())
	assert.False(t, stored.Ship.Resolved(), "materialization does not resolve")
}

func TestReferenceLazyResolution(t *testing.T) {
	s, eng := newTestStore(t)

	v := newVessel(s, "Kestrel")
	require.NoError(t, v.Serialize(false))
	c := newCrew(s, "Ana", 1)
	c.Ship.Set(v)
	require.NoError(t, c.Serialize(false))

	stored, _, err := SelectAtIndex[*Crew](s, c.Key())
	require.NoError(t, err)

	reads := eng.reads
	ship, err := stored.Ship.Get()
	require.NoError(t, err)
	require.NotNil(t, ship)
	assert.Equal(t, "Kestrel", ship.Name)
	assert.True(t, stored.Ship.Resolved())
	assert.Equal(t, reads+1, eng.reads)
}

func TestReferenceImmutableTargetCached(t *testing.T) {
	s, eng := newTestStore(t)

	vc := New[*VesselClass](s)
	vc.Name = "Sloop"
	v := newVessel(s, "Kestrel")
	v.Class.Set(vc)
	require.NoError(t, v.Serialize(false))
	assert.True(t, vc.HasKey())

	reads := eng.reads
	got, err := v.Class.Get()
	require.NoError(t, err)
	assert.Same(t, vc, got)
	assert.Equal(t, reads, eng.reads, "immutable targets are not re-fetched")
}

func TestReferenceSetKey(t *testing.T) {
	s, _ := newTestStore(t, WithIdentityMap())

	v := newVessel(s, "Kestrel")
	require.NoError(t, v.Serialize(false))

	c := newCrew(s, "Ana", 1)
	c.Ship.SetKey(v.Key())
	assert.False(t, c.Ship.Resolved())
	got, err := c.Ship.Get()
	require.NoError(t, err)
	assert.Same(t, v, got)

	c.Ship.SetKey(NullKey)
	assert.True(t, c.Ship.IsNull())

	c.Ship.Set(v)
	c.Ship.Set(nil)
	assert.True(t, c.Ship.IsNull())
}

func TestReferenceToMissingRow(t *testing.T) {
	s, _ := newTestStore(t)

	c := newCrew(s, "Ana", 1)
	c.Ship.SetKey(99)
	got, err := c.Ship.Get()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReferenceClearedOnDelete(t *testing.T) {
	s, _ := newTestStore(t, WithIdentityMap())

	v := newVessel(s, "Kestrel")
	a := newCrew(s, "Ana", 1)
	a.Ship.Set(v)
	b := newCrew(s, "Bo", 1)
	require.NoError(t, s.InsertAll(a, b))
	require.False(t, a.Ship.IsNull())

	require.NoError(t, v.Delete(false))
	assert.True(t, a.Ship.IsNull(), "resident references to a deleted row are reset")
	assert.True(t, b.Ship.IsNull())
}

func TestReferenceBeforeInitPanics(t *testing.T) {
	c := &Crew{}
	c.Ship.SetKey(3)
	requireContractPanic(t, func() { _, _ = c.Ship.Get() })
}

func TestReferenceCycleBetweenTransients(t *testing.T) {
	s := newCycleStore(t)

	sh := New[*Ship](s)
	sh.Name = "Surprise"
	o := New[*Officer](s)
	o.Name = "Aubrey"
	sh.Captain.Set(o)
	o.Ship.Set(sh)

	require.NoError(t, sh.Serialize(false))
	require.True(t, sh.HasKey())
	require.True(t, o.HasKey())
	assert.Equal(t, o.Key(), sh.Captain.Key())
	assert.Equal(t, sh.Key(), o.Ship.Key())

	storedShip, ok, err := SelectAtIndex[*Ship](s, sh.Key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, o.Key(), storedShip.Captain.Key())

	storedOfficer, ok, err := SelectAtIndex[*Officer](s, o.Key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sh.Key(), storedOfficer.Ship.Key())

	ship, err := storedOfficer.Ship.Get()
	require.NoError(t, err)
	assert.Equal(t, "Surprise", ship.Name)
}

func TestReferenceToSelf(t *testing.T) {
	s := newCycleStore(t)

	o := New[*Officer](s)
	o.Name = "Pullings"
	o.Mentor.Set(o)
	require.NoError(t, s.Insert(o))

	stored, ok, err := SelectAtIndex[*Officer](s, o.Key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, o.Key(), stored.Mentor.Key())
	assert.True(t, stored.Ship.IsNull())
}

func TestReferenceCycleInSession(t *testing.T) {
	s := newCycleStore(t, WithIdentityMap())

	sh := New[*Ship](s)
	sh.Name = "Sophie"
	first, second := New[*Officer](s), New[*Officer](s)
	first.Name, second.Name = "Aubrey", "Dillon"
	sh.Captain.Set(first)
	first.Mentor.Set(second)
	second.Mentor.Set(first)
	second.Ship.Set(sh)

	require.NoError(t, s.Transaction(func(ss *Session) error {
		return ss.Insert(sh)
	}))
	for _, e := range []Entity{sh, first, second} {
		assert.True(t, e.entityBase().HasKey())
	}

	n, err := Count[*Officer](s, query.Equals("mentor", first))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "the deferred mentor column was written")
	n, err = Count[*Officer](s, query.Equals("ship", sh))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestReferenceCycleRolledBack(t *testing.T) {
	s := newCycleStore(t)

	sh := New[*Ship](s)
	o := New[*Officer](s)
	sh.Captain.Set(o)
	o.Ship.Set(sh)

	err := s.Transaction(func(ss *Session) error {
		if err := ss.Insert(sh); err != nil {
			return err
		}
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)
	assert.False(t, sh.HasKey())
	assert.False(t, o.HasKey())

	require.NoError(t, sh.Serialize(false))
	assert.Equal(t, sh.Key(), o.Ship.Key())
	n, err := TableLength[*Officer](s)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
