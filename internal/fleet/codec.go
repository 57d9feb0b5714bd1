package fleet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/narwhal/pkg/orm"
)

// SailPoints is the number of headings a class records a speed factor for.
const SailPoints = 32

var errBadCodec = errors.New("malformed stored value")

// Position is a latitude/longitude pair in degrees.
type Position struct {
	Lat, Lng float64
}

// FromGIS builds a Position from a (lng, lat) point.
func FromGIS(lng, lat float64) Position { return Position{Lat: lat, Lng: lng} }

// GIS returns the position as a (lng, lat) point.
func (p Position) GIS() (lng, lat float64) { return p.Lng, p.Lat }

func (p Position) String() string {
	return fmt.Sprintf("%.4f,%.4f", p.Lat, p.Lng)
}

// Bearings holds one speed factor per point of sail.
type Bearings []float64

// NewBearings returns SailPoints zero factors.
func NewBearings() Bearings { return make(Bearings, SailPoints) }

func adaptPosition(p Position) (any, error) {
	return joinFloats([]float64{p.Lat, p.Lng}), nil
}

func convertPosition(raw any) (Position, error) {
	fs, err := splitFloats(raw)
	if err != nil {
		return Position{}, err
	}
	if len(fs) != 2 {
		return Position{}, fmt.Errorf("position with %d parts: %w", len(fs), errBadCodec)
	}
	return Position{Lat: fs[0], Lng: fs[1]}, nil
}

func adaptBearings(b Bearings) (any, error) {
	return joinFloats(b), nil
}

func convertBearings(raw any) (Bearings, error) {
	fs, err := splitFloats(raw)
	return Bearings(fs), err
}

func adaptUUID(u uuid.UUID) (any, error) { return u.String(), nil }

func convertUUID(raw any) (uuid.UUID, error) {
	s, err := text(raw)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(s)
}

// registerTypes declares the custom column types of the schema.
func registerTypes(s *orm.Store) error {
	if err := orm.RegisterType(s, "text", adaptPosition, convertPosition, Position{}); err != nil {
		return err
	}
	if err := orm.RegisterType(s, "text", adaptBearings, convertBearings, NewBearings()); err != nil {
		return err
	}
	return orm.RegisterType(s, "text", adaptUUID, convertUUID, uuid.Nil)
}

func joinFloats(fs []float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, ";")
}

func splitFloats(raw any) ([]float64, error) {
	s, err := text(raw)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	fs := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", p, err)
		}
		fs[i] = f
	}
	return fs, nil
}

func text(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	return "", fmt.Errorf("%T is not text: %w", raw, errBadCodec)
}
