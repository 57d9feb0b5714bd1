package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/narwhal/internal/fleet"
	"github.com/mesh-intelligence/narwhal/pkg/orm"
)

// vesselView is the printed form of a vessel.
type vesselView struct {
	Key      int64      `json:"key"`
	Name     string     `json:"name"`
	Class    string     `json:"class,omitempty"`
	Registry string     `json:"registry"`
	Position string     `json:"position"`
	Crew     []crewView `json:"crew"`
}

func viewVessel(v *fleet.Vessel) (vesselView, error) {
	view := vesselView{
		Key:      v.Key(),
		Name:     v.Name,
		Registry: v.Registry.String(),
		Position: v.PositionActual.String(),
	}
	class, err := v.Class.Get()
	if err != nil {
		return view, fmt.Errorf("load class of %s: %w", v.Name, err)
	}
	if class != nil {
		view.Class = class.Name
	}
	crew, err := v.Crew.All()
	if err != nil {
		return view, fmt.Errorf("load crew of %s: %w", v.Name, err)
	}
	view.Crew = viewCrew(crew)
	return view, nil
}

func newVesselCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vessel",
		Short: "Manage vessels",
	}
	cmd.AddCommand(newVesselAddCmd(a), newVesselAssignCmd(a), newVesselShowCmd(a), newVesselListCmd(a))
	return cmd
}

func newVesselAddCmd(a *app) *cobra.Command {
	var (
		class string
		crew  int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Commission a vessel",
		Long: `Add commissions a vessel crewed by randomly chosen unassigned crew.
A class that does not exist yet is created.

Example:
  fleet vessel add Bellona --class Bellona-class --crew 300`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *orm.Store) error {
				var vc *fleet.VesselClass
				if class != "" {
					var err error
					if vc, err = fleet.ClassNamed(s, class); err != nil {
						return err
					}
				}
				v, err := fleet.Commission(s, args[0], vc, crew, newRand(seed))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Commissioned %s (%d, registry %s) with %d crew\n",
					v.Name, v.Key(), v.Registry, crew)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "vessel class name")
	cmd.Flags().IntVar(&crew, "crew", 0, "number of unassigned crew to take aboard")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for choosing crew (0 = clock)")
	return cmd
}

func newVesselAssignCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assign VESSEL CREW_KEY",
		Short: "Move a crew member aboard a vessel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[1])
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(s *orm.Store) error {
				v, err := fleet.FindVessel(s, args[0])
				if err != nil {
					return err
				}
				c, err := fleet.FindCrew(s, key)
				if err != nil {
					return err
				}
				if err := fleet.Assign(s, v, c); err != nil {
					return fmt.Errorf("assign %s to %s: %w", c.Name, v.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s now serves on %s\n", c.Name, v.Name)
				return nil
			})
		},
	}
}

func newVesselShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a vessel and its crew",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *orm.Store) error {
				v, err := fleet.FindVessel(s, args[0])
				if err != nil {
					return err
				}
				view, err := viewVessel(v)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if a.flags.jsonMode {
					return printJSON(w, view)
				}
				class := view.Class
				if class == "" {
					class = "-"
				}
				printTable(w, []string{"FIELD", "VALUE"}, [][]string{
					{"Name", view.Name},
					{"Class", class},
					{"Registry", view.Registry},
					{"Position", view.Position},
				})
				fmt.Fprintln(w)
				printCrew(w, view.Crew)
				return nil
			})
		},
	}
}

func newVesselListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List vessels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *orm.Store) error {
				vs, err := orm.SelectAll[*fleet.Vessel](s)
				if err != nil {
					return fmt.Errorf("list vessels: %w", err)
				}
				views := make([]vesselView, len(vs))
				for i, v := range vs {
					if views[i], err = viewVessel(v); err != nil {
						return err
					}
				}
				w := cmd.OutOrStdout()
				if a.flags.jsonMode {
					return printJSON(w, views)
				}
				if len(views) == 0 {
					fmt.Fprintln(w, "No vessels found.")
					return nil
				}
				rows := make([][]string, len(views))
				for i, v := range views {
					rows[i] = []string{fmt.Sprint(v.Key), v.Name, v.Class, fmt.Sprint(len(v.Crew))}
				}
				printTable(w, []string{"KEY", "NAME", "CLASS", "CREW"}, rows)
				return nil
			})
		},
	}
}
