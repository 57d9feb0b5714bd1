package fleet

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/narwhal/pkg/orm"
	"github.com/mesh-intelligence/narwhal/pkg/query"
	"github.com/mesh-intelligence/narwhal/pkg/types"
)

// Fleet errors.
var (
	ErrShortHanded = errors.New("not enough unassigned crew")
	ErrNoSuchCrew  = errors.New("no such crew member")
	ErrNoSuchShip  = errors.New("no such vessel")
)

// CrewField is the list field of Vessel that holds its crew.
const CrewField = "Crew"

// Register declares the fleet schema on s and creates its tables.
func Register(s *orm.Store) error {
	if err := registerTypes(s); err != nil {
		return fmt.Errorf("registering column types: %w", err)
	}
	if err := s.Register(&VesselClass{}, &HistoryEntry{}, &Crew{}, &Vessel{}); err != nil {
		return fmt.Errorf("registering schema: %w", err)
	}
	return s.CreateTables()
}

// Open opens a store for config with the fleet schema in place.
func Open(config types.Config, opts ...orm.Option) (*orm.Store, error) {
	s, err := orm.Open(config, opts...)
	if err != nil {
		return nil, err
	}
	if err := Register(s); err != nil {
		return nil, errors.Join(err, s.Close())
	}
	return s, nil
}

// NewRecruit returns an unstored crew member with attribute scores drawn
// from rng.
func NewRecruit(s *orm.Store, name string, rng *rand.Rand) *Crew {
	c := orm.New[*Crew](s)
	c.Name = name
	c.Rank = "seaman"
	c.Health = 1 + rng.IntN(100)
	for _, score := range []*int{
		&c.Courage, &c.Strength, &c.Intelligence, &c.Seamanship, &c.Charisma,
		&c.Reliability, &c.Experience, &c.Leadership, &c.Political, &c.Ambition,
	} {
		*score = rng.IntN(100)
	}
	return c
}

// Recruit stores one new crew member per name in a single transaction.
func Recruit(s *orm.Store, names []string, rng *rand.Rand) ([]*Crew, error) {
	crew := make([]*Crew, len(names))
	es := make([]orm.Entity, len(names))
	for i, n := range names {
		crew[i] = NewRecruit(s, n, rng)
		es[i] = crew[i]
	}
	err := s.Transaction(func(ss *orm.Session) error {
		return ss.InsertAll(es...)
	})
	if err != nil {
		return nil, fmt.Errorf("recruiting %d crew: %w", len(names), err)
	}
	return crew, nil
}

// Unassigned returns the stored crew serving on no vessel, by key.
func Unassigned(s *orm.Store) ([]*Crew, error) {
	id, _, err := orm.ListColumns[*Vessel](s, CrewField)
	if err != nil {
		return nil, err
	}
	return orm.Select[*Crew](s, query.Equals(id, orm.NullKey), query.OrderAscending(orm.PrimaryKey))
}

// Unfit returns the crew whose health is gone, by name.
func Unfit(s *orm.Store) ([]*Crew, error) {
	return orm.Select[*Crew](s, query.LessThanOrEqual("health", 0), query.OrderAscending("name"))
}

// Commission stores a new vessel of class crewed by n unassigned sailors
// chosen with rng. class is stored first when it is new.
func Commission(s *orm.Store, name string, class *VesselClass, n int, rng *rand.Rand) (*Vessel, error) {
	pool, err := Unassigned(s)
	if err != nil {
		return nil, err
	}
	if len(pool) < n {
		return nil, fmt.Errorf("commissioning %s with %d crew, %d available: %w", name, n, len(pool), ErrShortHanded)
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	v := orm.New[*Vessel](s)
	v.Name = name
	v.Registry = uuid.New()
	if class != nil {
		v.Class.Set(class)
	}
	for _, c := range pool[:n] {
		if err := v.Crew.Append(c); err != nil {
			return nil, err
		}
	}
	if err := v.Serialize(false); err != nil {
		return nil, fmt.Errorf("commissioning %s: %w", name, err)
	}
	return v, nil
}

// FindVessel returns the vessel with the given name.
func FindVessel(s *orm.Store, name string) (*Vessel, error) {
	v, ok, err := orm.SelectOne[*Vessel](s, query.Equals("name", name))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNoSuchShip)
	}
	return v, nil
}

// ClassNamed returns the stored class with the given name, or a new
// unstored one carrying only the name.
func ClassNamed(s *orm.Store, name string) (*VesselClass, error) {
	vc, ok, err := orm.SelectOne[*VesselClass](s, query.Equals("name", name))
	if err != nil {
		return nil, err
	}
	if !ok {
		vc = orm.New[*VesselClass](s)
		vc.Name = name
		vc.PointsOfSail = NewBearings()
	}
	return vc, nil
}

// FindCrew returns the crew member stored under key.
func FindCrew(s *orm.Store, key int64) (*Crew, error) {
	c, ok, err := orm.SelectAtIndex[*Crew](s, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("crew %d: %w", key, ErrNoSuchCrew)
	}
	return c, nil
}

// ServesOn returns the vessel whose crew c belongs to.
func ServesOn(s *orm.Store, c *Crew) (*Vessel, bool, error) {
	return orm.ReverseLookup[*Vessel](s, c, CrewField)
}

// Assign moves c to the end of v's crew, taking it off the vessel it
// served on before. Both vessels are written in one transaction.
func Assign(s *orm.Store, v *Vessel, c *Crew) error {
	prev, ok, err := ServesOn(s, c)
	if err != nil {
		return err
	}
	if ok && orm.Equal(prev, v) {
		return nil
	}
	return s.Transaction(func(ss *orm.Session) error {
		if ok {
			if err := prev.Crew.Remove(c); err != nil {
				return err
			}
			// The previous vessel may hold its own copy of c; write it
			// before v links c.
			if err := ss.Update(prev, false); err != nil {
				return err
			}
		}
		if err := v.Crew.Append(c); err != nil {
			return err
		}
		return ss.Update(v, false)
	})
}

// Note appends a dated line to c's service record and stores it.
func Note(c *Crew, line string, date time.Time) error {
	s := c.Store()
	h := orm.New[*HistoryEntry](s)
	h.Line = line
	h.Date = date
	if err := c.History.Append(h); err != nil {
		return err
	}
	return c.Serialize(false)
}
