// Package fleet is an example schema for narwhal: sailing vessels, their
// classes and the crews that serve on them.
package fleet

import (
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/narwhal/pkg/orm"
)

// VesselClass describes a ship design. Classes are written once.
type VesselClass struct {
	orm.Immutable
	Name           string
	Length         float64 // ft
	Beam           float64 // ft
	Displacement   int     // short tons
	Masts          int
	PointsOfSail   Bearings
	MaxSpeed       float64 // knots
	Decks          int
	HasQuarterdeck bool
	MaxCrew        int
}

// HistoryEntry is a dated line in a crew member's service record.
type HistoryEntry struct {
	orm.Immutable
	Line string
	Date time.Time `orm:"date"`
}

// Crew is a sailor. Attribute scores are plain integers; Health at or
// below zero means unfit for duty.
type Crew struct {
	orm.Mutable
	Name         string
	Rank         string
	Nation       int
	History      orm.List[*HistoryEntry]
	Health       int
	Courage      int
	Strength     int
	Intelligence int
	Seamanship   int
	Charisma     int
	Reliability  int
	Experience   int
	Leadership   int
	Political    int
	Ambition     int
	Wealth       int
}

// Vessel is a ship in service.
type Vessel struct {
	orm.Mutable
	Class    orm.Reference[*VesselClass]
	Registry uuid.UUID
	Name     string
	Year     int
	Nation   int

	// PositionActual is where the vessel is; PositionKnown is where its
	// captain believes it to be.
	PositionActual Position
	PositionKnown  Position
	Heading        int
	Speed          float64 // knots
	Crew           orm.List[*Crew]
}

// Fit reports whether the crew member can serve.
func (c *Crew) Fit() bool { return c.Health > 0 }
