package orm

import (
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/narwhal/pkg/types"
)

// customType marshals a registered Go type to and from a storable
// primitive.
type customType struct {
	typ     reflect.Type
	sqlType string
	adapt   func(any) (any, error)
	convert func(any) (any, error)
	def     any
}

// RegisterType teaches s to store fields of type V in a column of sqlType.
// adapt turns a value into a primitive the engine accepts; convert turns a
// stored primitive back into a value. def is the value of a NULL column;
// a convert error is returned to the caller as is.
//
// Custom types must be registered before the entity types that use them,
// and before any table is created.
func RegisterType[V any](s *Store, sqlType string, adapt func(V) (any, error), convert func(any) (V, error), def V) error {
	if s.frozen {
		return types.ErrRegistryFrozen
	}
	t := reflect.TypeFor[V]()
	if sqlType == "" || adapt == nil || convert == nil {
		panic(contractf("incomplete registration of %s", t))
	}
	s.types[t] = &customType{
		typ:     t,
		sqlType: sqlType,
		adapt: func(v any) (any, error) {
			return adapt(v.(V))
		},
		convert: func(raw any) (any, error) {
			if raw == nil {
				return def, nil
			}
			return convert(raw)
		},
		def: def,
	}
	s.log.Debug("registered custom type", "go_type", t.String(), "sql_type", sqlType)
	return nil
}

// toStorage adapts a value of ct's type for a statement argument.
func (ct *customType) toStorage(v any) (any, error) {
	out, err := ct.adapt(v)
	if err != nil {
		return nil, fmt.Errorf("adapting %s: %w", ct.typ, err)
	}
	return out, nil
}

// fromStorage converts a stored primitive into a value of ct's type.
func (ct *customType) fromStorage(raw any) (reflect.Value, error) {
	v, err := ct.convert(raw)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("converting %s: %w", ct.typ, err)
	}
	if v == nil {
		return reflect.Zero(ct.typ), nil
	}
	return reflect.ValueOf(v), nil
}
