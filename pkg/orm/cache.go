package orm

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// resultCache remembers the entities returned by a statement, keyed by a
// hash of the statement with its arguments substituted. Entries hold
// resident instances, so a cache requires the identity map.
type resultCache struct {
	enabled bool
	entries map[uint64]*cacheEntry
}

type cacheEntry struct {
	table string
	rows  []Entity
}

func newResultCache(enabled bool) *resultCache {
	return &resultCache{
		enabled: enabled,
		entries: make(map[uint64]*cacheEntry),
	}
}

// cacheKey hashes stmt with each '?' replaced by the matching argument and
// runs of whitespace collapsed.
func cacheKey(stmt string, args []any) uint64 {
	var sb strings.Builder
	next := 0
	for _, r := range stmt {
		if r == '?' && next < len(args) {
			fmt.Fprintf(&sb, "%T(%v)", args[next], args[next])
			next++
			continue
		}
		sb.WriteRune(r)
	}
	return xxhash.Sum64String(strings.Join(strings.Fields(sb.String()), " "))
}

func (c *resultCache) get(key uint64) ([]Entity, bool) {
	if !c.enabled {
		return nil, false
	}
	ent, ok := c.entries[key]
	metricCacheLookups.WithLabelValues(lookupResult(ok)).Inc()
	if !ok {
		return nil, false
	}
	return slices.Clone(ent.rows), true
}

func (c *resultCache) put(key uint64, table string, rows []Entity) {
	if !c.enabled {
		return
	}
	c.entries[key] = &cacheEntry{table: table, rows: slices.Clone(rows)}
}

// invalidateTable drops every entry read from table.
func (c *resultCache) invalidateTable(table string) {
	for k, ent := range c.entries {
		if ent.table == table {
			delete(c.entries, k)
		}
	}
}

// invalidateEntity drops every entry that holds e.
func (c *resultCache) invalidateEntity(e Entity) {
	for k, ent := range c.entries {
		if slices.ContainsFunc(ent.rows, func(r Entity) bool { return Equal(r, e) }) {
			delete(c.entries, k)
		}
	}
}

func (c *resultCache) clear() {
	clear(c.entries)
}

func (c *resultCache) len() int {
	return len(c.entries)
}
