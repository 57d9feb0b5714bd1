package orm

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/mesh-intelligence/narwhal/pkg/query"
)

// Text layouts of time columns.
const (
	TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
	DateLayout      = "2006-01-02"
)

// scalarToStorage returns the statement argument for a scalar field value.
func scalarToStorage(f *field, v reflect.Value) any {
	if f.typ == timeType {
		return formatTime(v.Interface().(time.Time), f.sqlType)
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		if v.Bool() {
			return int64(1)
		}
		return int64(0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	return v.Interface()
}

// formatTime renders t in the text layout of a timestamp or date column.
// Dates keep the calendar day of t's own location.
func formatTime(t time.Time, sqlType string) string {
	if sqlType == sqlDate {
		return t.Format(DateLayout)
	}
	return t.UTC().Format(TimestampLayout)
}

// scalarFromStorage assigns a stored value to a scalar field. NULL leaves
// the zero value.
func scalarFromStorage(f *field, dst reflect.Value, raw any) error {
	if raw == nil {
		dst.SetZero()
		return nil
	}
	if f.typ == timeType {
		t, err := toTime(raw, f.sqlType)
		if err != nil {
			return fmt.Errorf("column %s: %w", f.column, err)
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		switch x := raw.(type) {
		case string:
			dst.SetString(x)
		case []byte:
			dst.SetString(string(x))
		default:
			dst.SetString(fmt.Sprint(x))
		}
	case reflect.Bool:
		n, err := toInt64(raw)
		if err != nil {
			return fmt.Errorf("column %s: %w", f.column, err)
		}
		dst.SetBool(n != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(raw)
		if err != nil {
			return fmt.Errorf("column %s: %w", f.column, err)
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt64(raw)
		if err != nil {
			return fmt.Errorf("column %s: %w", f.column, err)
		}
		dst.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		x, err := toFloat64(raw)
		if err != nil {
			return fmt.Errorf("column %s: %w", f.column, err)
		}
		dst.SetFloat(x)
	default:
		return fmt.Errorf("column %s: unsupported kind %s", f.column, dst.Kind())
	}
	return nil
}

func toInt64(raw any) (int64, error) {
	switch x := raw.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	}
	return 0, fmt.Errorf("cannot read %T as integer", raw)
}

func toFloat64(raw any) (float64, error) {
	switch x := raw.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	}
	return 0, fmt.Errorf("cannot read %T as real", raw)
}

// toTime reads a time column. The driver hands back time.Time for columns
// declared timestamp or date, and text otherwise.
func toTime(raw any, sqlType string) (time.Time, error) {
	var s string
	switch x := raw.(type) {
	case time.Time:
		if sqlType == sqlDate {
			return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		return x.UTC(), nil
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return time.Time{}, fmt.Errorf("cannot read %T as time", raw)
	}
	if sqlType == sqlDate {
		return time.Parse(DateLayout, s)
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC(), nil
}

// bindArgs adapts the arguments of where for the engine: entities become
// their keys, registered custom values go through their adapter, booleans
// become 0 or 1 and times take the layout of the column they are compared
// against, the timestamp layout when that column is unknown.
func (s *Store) bindArgs(m *model, where query.Predicate) ([]any, error) {
	out := make([]any, len(where.Args))
	for i, a := range where.Args {
		switch x := a.(type) {
		case nil:
			out[i] = nil
		case Entity:
			if isNilEntity(x) {
				out[i] = NullKey
			} else {
				out[i] = x.entityBase().Key()
			}
		case time.Time:
			sqlType := sqlTimestamp
			if f := m.fieldByColumn(where.Column(i)); f != nil && f.sqlType == sqlDate {
				sqlType = sqlDate
			}
			out[i] = formatTime(x, sqlType)
		case bool:
			if x {
				out[i] = int64(1)
			} else {
				out[i] = int64(0)
			}
		default:
			if ct, ok := s.types[reflect.TypeOf(a)]; ok {
				v, err := ct.toStorage(a)
				if err != nil {
					return nil, err
				}
				out[i] = v
				continue
			}
			out[i] = a
		}
	}
	return out, nil
}
