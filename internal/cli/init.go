package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/narwhal/internal/sqlite"
	"github.com/mesh-intelligence/narwhal/pkg/orm"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize fleet storage",
		Long:  "Create the configuration and data directories, then create the fleet tables.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.storeConfig()
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(s *orm.Store) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Fleet initialized at %s\n", sqlite.Path(cfg))
				return nil
			})
		},
	}
}
