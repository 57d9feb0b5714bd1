package orm

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/narwhal/internal/sqlite"
	"github.com/mesh-intelligence/narwhal/pkg/types"
)

// Test schema: a vessel has a class and an ordered crew; a crew member
// points back at the vessel it serves on.

type Position struct {
	X, Y float64
}

type VesselClass struct {
	Immutable
	Name    string
	Tonnage int
}

type Vessel struct {
	Mutable
	Name     string
	Class    Reference[*VesselClass]
	Position Position
	Crew     List[*Crew]
}

type Crew struct {
	Mutable
	Name    string
	Health  int
	Courage float64
	OnDuty  bool
	Joined  time.Time
	Born    time.Time `orm:"date"`
	Notes   string    `db:"-"`
	Ship    Reference[*Vessel]
}

type Node struct {
	Mutable
	Label    string
	Children List[*Node]
}

type Harbor struct {
	Mutable
	Name string `db:"harbor_name"`
}

func (*Harbor) TableName() string { return "harbors" }

type Flagged struct {
	Mutable
	Tags []string
}

func adaptPosition(p Position) (any, error) {
	return fmt.Sprintf("%g,%g", p.X, p.Y), nil
}

func convertPosition(raw any) (Position, error) {
	s, ok := raw.(string)
	if !ok {
		return Position{}, errors.New("position is not text")
	}
	var p Position
	_, err := fmt.Sscanf(s, "%g,%g", &p.X, &p.Y)
	return p, err
}

// countingEngine counts the statements issued outside a session.
type countingEngine struct {
	*sqlx.DB
	reads  int
	writes int
}

func (c *countingEngine) Queryx(query string, args ...any) (*sqlx.Rows, error) {
	c.reads++
	return c.DB.Queryx(query, args...)
}

func (c *countingEngine) QueryRowx(query string, args ...any) *sqlx.Row {
	c.reads++
	return c.DB.QueryRowx(query, args...)
}

func (c *countingEngine) Exec(query string, args ...any) (sql.Result, error) {
	c.writes++
	return c.DB.Exec(query, args...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore returns a store over a fresh in-memory engine with the test
// schema created.
func newTestStore(t *testing.T, opts ...Option) (*Store, *countingEngine) {
	t.Helper()
	db, err := sqlite.Open(types.Config{Backend: types.BackendSQLite, InMemory: true})
	require.NoError(t, err)
	eng := &countingEngine{DB: db}

	s := NewStore(eng, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, RegisterType(s, "text", adaptPosition, convertPosition, Position{}))
	require.NoError(t, s.Register(&VesselClass{}, &Vessel{}, &Crew{}, &Node{}, &Harbor{}))
	require.NoError(t, s.CreateTables())
	t.Cleanup(func() { s.Close() })
	return s, eng
}

// Ship and Officer refer to each other; an officer may also have a mentor
// of its own type.
type Ship struct {
	Mutable
	Name    string
	Captain Reference[*Officer]
}

type Officer struct {
	Mutable
	Name   string
	Ship   Reference[*Ship]
	Mentor Reference[*Officer]
}

// newCycleStore returns an in-memory store holding the Ship and Officer
// tables.
func newCycleStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	db, err := sqlite.Open(types.Config{Backend: types.BackendSQLite, InMemory: true})
	require.NoError(t, err)
	s := NewStore(db, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, s.Register(&Ship{}, &Officer{}))
	require.NoError(t, s.CreateTables())
	t.Cleanup(func() { s.Close() })
	return s
}

func newCrew(s *Store, name string, health int) *Crew {
	c := New[*Crew](s)
	c.Name = name
	c.Health = health
	return c
}

func newVessel(s *Store, name string) *Vessel {
	v := New[*Vessel](s)
	v.Name = name
	return v
}

// orders returns the order values the members of l hold.
func orders[T Entity](t *testing.T, l *List[T]) []int64 {
	t.Helper()
	items, err := l.All()
	require.NoError(t, err)
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = l.order(it)
	}
	return out
}

func names(cs []*Crew) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

// requireContractPanic fails unless fn panics with a *ContractError.
func requireContractPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		p := recover()
		require.NotNil(t, p, "expected a panic")
		err, ok := p.(error)
		require.True(t, ok, "panic value %v is not an error", p)
		require.ErrorIs(t, err, types.ErrContract)
	}()
	fn()
}
