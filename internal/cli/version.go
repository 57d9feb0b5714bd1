package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/narwhal/internal/fleet"
	"github.com/mesh-intelligence/narwhal/internal/sqlite"
	"github.com/mesh-intelligence/narwhal/pkg/orm"
	"github.com/mesh-intelligence/narwhal/pkg/types"
)

// Version is the fleet release.
const Version = "0.1.0"

const (
	modulePath = "github.com/mesh-intelligence/narwhal"
	enginePath = "modernc.org/sqlite"
)

// versionView is the printed form of the version command.
type versionView struct {
	Version string   `json:"version"`
	Module  string   `json:"module"`
	Engine  string   `json:"engine"`
	Tables  []string `json:"tables"`
}

// schemaTables returns the tables the fleet schema synthesizes, read from
// a scratch in-memory store so that no data directory is touched.
func schemaTables() ([]string, error) {
	s, err := fleet.Open(types.Config{Backend: types.BackendSQLite, InMemory: true},
		orm.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		return nil, sysErr("open scratch store: %w", err)
	}
	defer s.Close()
	return s.Tables(), nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fleet version, storage engine and schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := schemaTables()
			if err != nil {
				return err
			}
			view := versionView{
				Version: Version,
				Module:  modulePath,
				Engine:  sqlite.DriverName + " (" + enginePath + ")",
				Tables:  tables,
			}
			w := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return printJSON(w, view)
			}
			fmt.Fprintf(w, "fleet v%s\nmodule: %s\nengine: %s\nschema: %s\n",
				view.Version, view.Module, view.Engine, strings.Join(view.Tables, ", "))
			return nil
		},
	}
}
