// Package cli implements the fleet command-line interface, a small client
// of the narwhal storage manager over the fleet example schema.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/narwhal/internal/fleet"
	"github.com/mesh-intelligence/narwhal/internal/paths"
	"github.com/mesh-intelligence/narwhal/pkg/orm"
	"github.com/mesh-intelligence/narwhal/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool
}

// app is the state shared by the commands of one invocation.
type app struct {
	flags rootFlags
	cfg   *viper.Viper
}

// NewRootCmd creates the top-level "fleet" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "fleet",
		Short: "Keep a fleet of sailing vessels and their crews",
		Long: "Fleet stores vessels, vessel classes and crew in an embedded SQLite\n" +
			"database through the narwhal object-relational mapper.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		PersistentPreRunE: a.loadConfig,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "log storage statements to stderr")

	root.AddCommand(newVersionCmd(a))
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newCrewCmd(a))
	root.AddCommand(newVesselCmd(a))
	root.AddCommand(newStatsCmd(a))
	root.AddCommand(newExportCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// systemError marks failures of the environment rather than of the
// command line: unreadable config, an engine that will not open.
type systemError struct {
	err error
}

func (e *systemError) Error() string { return e.err.Error() }
func (e *systemError) Unwrap() error { return e.err }

func sysErr(format string, args ...any) error {
	return &systemError{err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var se *systemError
	if errors.As(err, &se) {
		return exitSysError
	}
	return exitUserError
}

// loadConfig resolves the config directory and reads config.yaml.
func (a *app) loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysErr("resolve config dir: %w", err)
	}
	v, err := loadConfig(dir)
	if err != nil {
		return &systemError{err: err}
	}
	a.cfg = v
	return nil
}

// storeConfig builds the storage configuration from flags, environment and
// config.yaml.
func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, sysErr("resolve data dir: %w", err)
	}
	return types.Config{
		Backend:     types.BackendSQLite,
		DataDir:     dataDir,
		Cache:       a.cfg.GetBool(cfgKeyCache),
		IdentityMap: a.cfg.GetBool(cfgKeyIdentityMap),
	}, nil
}

func (a *app) logger(cmd *cobra.Command) *slog.Logger {
	if !a.flags.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// withStore opens the fleet store, runs fn and closes the store.
func (a *app) withStore(cmd *cobra.Command, fn func(s *orm.Store) error) (rerr error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return err
	}
	s, err := fleet.Open(cfg, orm.WithLogger(a.logger(cmd)))
	if err != nil {
		return sysErr("open store: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil && rerr == nil {
			rerr = sysErr("close store: %w", err)
		}
	}()
	return fn(s)
}

// newRand returns a generator seeded with seed, or with the clock when
// seed is zero.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
