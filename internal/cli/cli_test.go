package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/narwhal/internal/fleet"
	"github.com/mesh-intelligence/narwhal/internal/paths"
	"github.com/mesh-intelligence/narwhal/internal/sqlite"
)

// testEnv runs fleet commands in process against private directories.
type testEnv struct {
	t         *testing.T
	configDir string
	dataDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv(paths.EnvConfigDir, "")
	t.Setenv(paths.EnvDataDir, "")
	return &testEnv{t: t, configDir: t.TempDir(), dataDir: t.TempDir()}
}

func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...))
	err := root.Execute()
	return out.String(), err
}

func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "fleet %v: %s", args, out)
	return out
}

func parseJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), "output: %s", s)
	return v
}

func TestInitCreatesConfigAndDatabase(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("init")
	assert.Contains(t, out, "Fleet initialized")

	_, err := os.Stat(filepath.Join(env.dataDir, sqlite.DBFileName))
	assert.NoError(t, err, "database file should exist")

	data, err := os.ReadFile(filepath.Join(env.configDir, configFileExt))
	require.NoError(t, err)
	assert.Contains(t, string(data), "identity_map: true")
	assert.Contains(t, string(data), "cache: false")

	// Running init again is harmless.
	env.mustRun("init")
}

func TestConfigDataDir(t *testing.T) {
	t.Setenv(paths.EnvDataDir, "")
	configDir, dataDir := t.TempDir(), filepath.Join(t.TempDir(), "from-config")
	require.NoError(t, writeConfigIfMissing(filepath.Join(configDir, configFileExt),
		configFile{DataDir: dataDir, Cache: true, IdentityMap: true}))

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config-dir", configDir, "init"})
	require.NoError(t, root.Execute())

	_, err := os.Stat(filepath.Join(dataDir, sqlite.DBFileName))
	assert.NoError(t, err, "data_dir from config.yaml is used")
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")
	v, err := loadConfig(dir)
	require.NoError(t, err)
	assert.True(t, v.GetBool(cfgKeyIdentityMap))
	assert.False(t, v.GetBool(cfgKeyCache))
	assert.Empty(t, v.GetString(cfgKeyDataDir))
}

func TestCrewLifecycle(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("crew", "add", "Jack Aubrey", "Stephen Maturin", "--seed", "7")
	assert.Contains(t, out, "Recruited 2 crew (keys 1-2)")
	env.mustRun("crew", "add", "--count", "3", "--seed", "7")

	crew := parseJSON[[]crewView](t, env.mustRun("crew", "list", "--json"))
	require.Len(t, crew, 5)
	assert.Equal(t, "Jack Aubrey", crew[0].Name)
	assert.Equal(t, "recruit-3", crew[4].Name)
	assert.Equal(t, "seaman", crew[0].Rank)

	out = env.mustRun("crew", "list")
	assert.Contains(t, out, "Stephen Maturin")
	assert.Contains(t, out, "Total: 5 crew")

	out = env.mustRun("crew", "note", "1", "made post", "--date", "1800-04-01")
	assert.Contains(t, out, "1 entries")

	out = env.mustRun("crew", "delete", "2")
	assert.Contains(t, out, "Discharged Stephen Maturin")
	crew = parseJSON[[]crewView](t, env.mustRun("crew", "list", "--json"))
	assert.Len(t, crew, 4)

	_, err := env.run("crew", "delete", "2")
	assert.ErrorIs(t, err, fleet.ErrNoSuchCrew)
	_, err = env.run("crew", "delete", "two")
	assert.Error(t, err)
	_, err = env.run("crew", "add")
	assert.Error(t, err)
}

func TestVesselLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("crew", "add", "--count", "6", "--seed", "1")

	out := env.mustRun("vessel", "add", "Bellona", "--class", "Bellona-class", "--crew", "3", "--seed", "2")
	assert.Contains(t, out, "Commissioned Bellona")
	env.mustRun("vessel", "add", "Aurora", "--class", "Bellona-class", "--crew", "1", "--seed", "3")

	_, err := env.run("vessel", "add", "Victory", "--crew", "10")
	assert.ErrorIs(t, err, fleet.ErrShortHanded)

	bellona := parseJSON[vesselView](t, env.mustRun("vessel", "show", "Bellona", "--json"))
	assert.Equal(t, "Bellona-class", bellona.Class)
	require.Len(t, bellona.Crew, 3)
	assert.NotEmpty(t, bellona.Registry)

	unassigned := parseJSON[[]crewView](t, env.mustRun("crew", "list", "--unassigned", "--json"))
	assert.Len(t, unassigned, 2)

	moved := bellona.Crew[0]
	out = env.mustRun("vessel", "assign", "Aurora", fmt.Sprint(moved.Key))
	assert.Contains(t, out, moved.Name+" now serves on Aurora")

	aurora := parseJSON[vesselView](t, env.mustRun("vessel", "show", "Aurora", "--json"))
	require.Len(t, aurora.Crew, 2)
	assert.Equal(t, moved.Key, aurora.Crew[1].Key)
	bellona = parseJSON[vesselView](t, env.mustRun("vessel", "show", "Bellona", "--json"))
	assert.Len(t, bellona.Crew, 2)

	vessels := parseJSON[[]vesselView](t, env.mustRun("vessel", "list", "--json"))
	require.Len(t, vessels, 2)
	assert.Equal(t, "Bellona", vessels[0].Name)

	out = env.mustRun("vessel", "show", "Aurora")
	assert.Contains(t, out, "Bellona-class")
	assert.Contains(t, out, "Total: 2 crew")

	_, err = env.run("vessel", "show", "Flying Dutchman")
	assert.ErrorIs(t, err, fleet.ErrNoSuchShip)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("crew", "add", "--count", "4", "--seed", "1")
	env.mustRun("vessel", "add", "Bellona", "--class", "Bellona-class", "--crew", "2", "--seed", "1")

	view := parseJSON[statsView](t, env.mustRun("stats", "--json", "--metrics"))
	assert.Equal(t, int64(4), view.Tables["crew"])
	assert.Equal(t, int64(1), view.Tables["vessel"])
	assert.Equal(t, int64(1), view.Tables["vessel_class"])
	assert.Equal(t, 4, view.Models)
	assert.Positive(t, view.Metrics["narwhal_statements_total{op=insert}"])

	out := env.mustRun("stats")
	assert.Contains(t, out, "TABLE")
	assert.Contains(t, out, "Models: 4")
}

func TestVersion(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "fleet v"+Version+"\n"+
		"module: "+modulePath+"\n"+
		"engine: sqlite (modernc.org/sqlite)\n"+
		"schema: vesselclass_table, historyentry_table, crew_table, vessel_table\n", out.String())

	root = NewRootCmd()
	out.Reset()
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--json"})
	require.NoError(t, root.Execute())
	view := parseJSON[versionView](t, out.String())
	assert.Equal(t, Version, view.Version)
	assert.Len(t, view.Tables, 4)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitSuccess, exitCode(nil))
	assert.Equal(t, exitUserError, exitCode(errors.New("bad flag")))
	assert.Equal(t, exitSysError, exitCode(sysErr("open store: %w", errors.New("disk full"))))
	assert.Equal(t, exitSysError, exitCode(fmt.Errorf("wrapped: %w", sysErr("x"))))
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("crew", "add", "--count", "3", "--seed", "1")
	env.mustRun("vessel", "add", "Bellona", "--crew", "2", "--seed", "1")

	dir := filepath.Join(t.TempDir(), "out")
	out := env.mustRun("export", dir)
	assert.Contains(t, out, "Exported 3 crew and 1 vessels")

	data, err := os.ReadFile(filepath.Join(dir, exportCrewFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	first := parseJSON[crewView](t, lines[0])
	assert.Equal(t, "recruit-1", first.Name)

	data, err = os.ReadFile(filepath.Join(dir, exportVesselsFile))
	require.NoError(t, err)
	v := parseJSON[vesselView](t, strings.TrimSpace(string(data)))
	assert.Equal(t, "Bellona", v.Name)
	assert.Len(t, v.Crew, 2)
}
