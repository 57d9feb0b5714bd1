package orm

import (
	"reflect"
)

// identityMap keeps one live instance per stored row, keyed by type and
// surrogate key. A disabled map holds nothing.
type identityMap struct {
	enabled bool
	byType  map[reflect.Type]map[int64]Entity
}

func newIdentityMap(enabled bool) *identityMap {
	return &identityMap{
		enabled: enabled,
		byType:  make(map[reflect.Type]map[int64]Entity),
	}
}

func (im *identityMap) get(t reflect.Type, key int64) (Entity, bool) {
	if !im.enabled {
		return nil, false
	}
	e, ok := im.byType[t][key]
	metricIdentityLookups.WithLabelValues(lookupResult(ok)).Inc()
	return e, ok
}

func (im *identityMap) put(e Entity) {
	b := e.entityBase()
	if !im.enabled || !b.keyed {
		return
	}
	t := reflect.TypeOf(e)
	rows, ok := im.byType[t]
	if !ok {
		rows = make(map[int64]Entity)
		im.byType[t] = rows
	}
	rows[b.key] = e
}

func (im *identityMap) remove(t reflect.Type, key int64) {
	delete(im.byType[t], key)
}

// residents returns the live instances of t.
func (im *identityMap) residents(t reflect.Type) []Entity {
	rows := im.byType[t]
	out := make([]Entity, 0, len(rows))
	for _, e := range rows {
		out = append(out, e)
	}
	return out
}

func (im *identityMap) forget(t reflect.Type) {
	delete(im.byType, t)
}

func (im *identityMap) len() int {
	n := 0
	for _, rows := range im.byType {
		n += len(rows)
	}
	return n
}
