package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/narwhal/internal/fleet"
)

// crewView is the printed form of a crew member.
type crewView struct {
	Key     int64  `json:"key"`
	Name    string `json:"name"`
	Rank    string `json:"rank"`
	Health  int    `json:"health"`
	Courage int    `json:"courage"`
}

func viewCrew(cs []*fleet.Crew) []crewView {
	out := make([]crewView, len(cs))
	for i, c := range cs {
		out[i] = crewView{Key: c.Key(), Name: c.Name, Rank: c.Rank, Health: c.Health, Courage: c.Courage}
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printTable writes rows under header as aligned columns, trimming trailing
// padding from each line.
func printTable(w io.Writer, header []string, rows [][]string) {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	tw.Flush()

	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

func printCrew(w io.Writer, cs []crewView) {
	if len(cs) == 0 {
		fmt.Fprintln(w, "No crew found.")
		return
	}
	rows := make([][]string, len(cs))
	for i, c := range cs {
		rows[i] = []string{
			fmt.Sprint(c.Key), c.Name, c.Rank, fmt.Sprint(c.Health), fmt.Sprint(c.Courage),
		}
	}
	printTable(w, []string{"KEY", "NAME", "RANK", "HEALTH", "COURAGE"}, rows)
	fmt.Fprintf(w, "Total: %d crew\n", len(cs))
}
