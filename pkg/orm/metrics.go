package orm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Statement operations.
const (
	opCreate = "create"
	opInsert = "insert"
	opUpdate = "update"
	opDelete = "delete"
	opSelect = "select"
	opCount  = "count"
	opRandom = "random"
	opClear  = "clear"
)

var (
	metricStatements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "narwhal_statements_total",
			Help: "Number of statements sent to the engine.",
		},
		[]string{"op"},
	)
	metricCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "narwhal_cache_lookups_total",
			Help: "Number of result cache lookups.",
		},
		[]string{"result"}, // hit, miss
	)
	metricIdentityLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "narwhal_identity_map_lookups_total",
			Help: "Number of identity map lookups.",
		},
		[]string{"result"}, // hit, miss
	)
)

func lookupResult(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
