package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/narwhal/internal/fleet"
	"github.com/mesh-intelligence/narwhal/internal/sqlite"
	"github.com/mesh-intelligence/narwhal/pkg/orm"
)

// Files written by the export command.
const (
	exportCrewFile    = "crew.jsonl"
	exportVesselsFile = "vessels.jsonl"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export DIR",
		Short: "Write crew and vessels to JSONL files",
		Long: `Export writes crew.jsonl and vessels.jsonl to DIR, one JSON document
per line. Existing files are replaced atomically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return sysErr("create export dir: %w", err)
			}
			return a.withStore(cmd, func(s *orm.Store) error {
				crew, err := orm.SelectAll[*fleet.Crew](s)
				if err != nil {
					return fmt.Errorf("export crew: %w", err)
				}
				if err := sqlite.WriteJSONL(filepath.Join(dir, exportCrewFile), viewCrew(crew)); err != nil {
					return sysErr("export crew: %w", err)
				}

				vs, err := orm.SelectAll[*fleet.Vessel](s)
				if err != nil {
					return fmt.Errorf("export vessels: %w", err)
				}
				views := make([]vesselView, len(vs))
				for i, v := range vs {
					if views[i], err = viewVessel(v); err != nil {
						return err
					}
				}
				if err := sqlite.WriteJSONL(filepath.Join(dir, exportVesselsFile), views); err != nil {
					return sysErr("export vessels: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d crew and %d vessels to %s\n", len(crew), len(vs), dir)
				return nil
			})
		},
	}
}
