package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/narwhal/internal/fleet"
	"github.com/mesh-intelligence/narwhal/pkg/orm"
)

func newCrewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crew",
		Short: "Manage crew members",
	}
	cmd.AddCommand(newCrewAddCmd(a), newCrewListCmd(a), newCrewDeleteCmd(a), newCrewNoteCmd(a))
	return cmd
}

func newCrewAddCmd(a *app) *cobra.Command {
	var (
		count int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "add [NAME...]",
		Short: "Recruit crew members",
		Long: `Add recruits one crew member per name with random attribute scores.
Without names, --count members named recruit-N are recruited.

Example:
  fleet crew add "Jack Aubrey" "Stephen Maturin"
  fleet crew add --count 1000 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				if count <= 0 {
					return fmt.Errorf("give names or a positive --count")
				}
				for i := range count {
					names = append(names, fmt.Sprintf("recruit-%d", i+1))
				}
			}
			return a.withStore(cmd, func(s *orm.Store) error {
				crew, err := fleet.Recruit(s, names, newRand(seed))
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), viewCrew(crew))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recruited %d crew (keys %d-%d)\n",
					len(crew), crew[0].Key(), crew[len(crew)-1].Key())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "number of generated recruits when no names are given")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for attribute scores (0 = clock)")
	return cmd
}

func newCrewListCmd(a *app) *cobra.Command {
	var unassigned, unfit bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List crew members",
		Long: `List prints stored crew members by key.

Example:
  fleet crew list
  fleet crew list --unassigned
  fleet crew list --unfit --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if unassigned && unfit {
				return fmt.Errorf("--unassigned and --unfit are exclusive")
			}
			return a.withStore(cmd, func(s *orm.Store) error {
				var (
					crew []*fleet.Crew
					err  error
				)
				switch {
				case unassigned:
					crew, err = fleet.Unassigned(s)
				case unfit:
					crew, err = fleet.Unfit(s)
				default:
					crew, err = orm.SelectAll[*fleet.Crew](s)
				}
				if err != nil {
					return fmt.Errorf("list crew: %w", err)
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), viewCrew(crew))
				}
				printCrew(cmd.OutOrStdout(), viewCrew(crew))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unassigned, "unassigned", false, "only crew serving on no vessel")
	cmd.Flags().BoolVar(&unfit, "unfit", false, "only crew with no health left")
	return cmd
}

func newCrewDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Discharge a crew member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(s *orm.Store) error {
				c, err := fleet.FindCrew(s, key)
				if err != nil {
					return err
				}
				if err := c.Delete(false); err != nil {
					return fmt.Errorf("delete crew %d: %w", key, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Discharged %s (%d)\n", c.Name, key)
				return nil
			})
		},
	}
}

func newCrewNoteCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "note KEY LINE",
		Short: "Add a line to a crew member's service record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			when := time.Now().UTC()
			if date != "" {
				if when, err = time.Parse(orm.DateLayout, date); err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
			}
			return a.withStore(cmd, func(s *orm.Store) error {
				c, err := fleet.FindCrew(s, key)
				if err != nil {
					return err
				}
				if err := fleet.Note(c, args[1], when); err != nil {
					return fmt.Errorf("note crew %d: %w", key, err)
				}
				n, err := c.History.Len()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s has %d entries in the service record\n", c.Name, n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "entry date as YYYY-MM-DD (default: today)")
	return cmd
}

func parseKey(arg string) (int64, error) {
	key, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || key <= 0 {
		return 0, fmt.Errorf("invalid key %q", arg)
	}
	return key, nil
}
