package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/narwhal/internal/fleet"
	"github.com/mesh-intelligence/narwhal/pkg/orm"
)

// statsView is the printed form of the stats command.
type statsView struct {
	Tables   map[string]int64   `json:"tables"`
	Models   int                `json:"models"`
	Resident int                `json:"resident"`
	Cached   int                `json:"cached"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

func newStatsCmd(a *app) *cobra.Command {
	var metrics bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print row counts and storage manager statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *orm.Store) error {
				view, err := collectStats(s)
				if err != nil {
					return err
				}
				if metrics {
					if view.Metrics, err = gatherMetrics(prometheus.DefaultGatherer); err != nil {
						return err
					}
				}
				w := cmd.OutOrStdout()
				if a.flags.jsonMode {
					return printJSON(w, view)
				}
				var rows [][]string
				for _, name := range sortedKeys(view.Tables) {
					rows = append(rows, []string{name, fmt.Sprint(view.Tables[name])})
				}
				printTable(w, []string{"TABLE", "ROWS"}, rows)
				fmt.Fprintf(w, "Models: %d  Resident: %d  Cached: %d\n", view.Models, view.Resident, view.Cached)
				if len(view.Metrics) > 0 {
					fmt.Fprintln(w)
					var mrows [][]string
					for _, name := range sortedKeys(view.Metrics) {
						mrows = append(mrows, []string{name, fmt.Sprint(view.Metrics[name])})
					}
					printTable(w, []string{"METRIC", "VALUE"}, mrows)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&metrics, "metrics", false, "include the narwhal counters of this process")
	return cmd
}

func collectStats(s *orm.Store) (statsView, error) {
	view := statsView{Tables: make(map[string]int64)}
	for _, t := range []struct {
		name  string
		count func(*orm.Store) (int64, error)
	}{
		{"vessel_class", orm.TableLength[*fleet.VesselClass]},
		{"vessel", orm.TableLength[*fleet.Vessel]},
		{"crew", orm.TableLength[*fleet.Crew]},
		{"history", orm.TableLength[*fleet.HistoryEntry]},
	} {
		n, err := t.count(s)
		if err != nil {
			return view, fmt.Errorf("count %s: %w", t.name, err)
		}
		view.Tables[t.name] = n
	}
	st := s.Stats()
	view.Models, view.Resident, view.Cached = st.Models, st.Resident, st.Cached
	return view, nil
}

// gatherMetrics flattens the narwhal counter families of g into
// name{label=value} keys.
func gatherMetrics(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "narwhal_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			out[mf.GetName()+"{"+strings.Join(labels, ",")+"}"] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
