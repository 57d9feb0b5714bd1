package types

import "errors"

// Config holds engine selection and storage manager options.
type Config struct {
	Backend  string `json:"backend" yaml:"backend"`
	DataDir  string `json:"data_dir" yaml:"data_dir"`
	InMemory bool   `json:"in_memory" yaml:"in_memory"`

	// Cache enables the result cache. A cache implies an identity map.
	Cache       bool `json:"cache" yaml:"cache"`
	IdentityMap bool `json:"identity_map" yaml:"identity_map"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDataDirEmpty   = errors.New("data directory must not be empty unless in memory")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if !c.InMemory && c.DataDir == "" {
		return ErrDataDirEmpty
	}
	return nil
}

// UseIdentityMap reports whether the identity map is enabled, either
// explicitly or because the result cache requires it.
func (c Config) UseIdentityMap() bool {
	return c.IdentityMap || c.Cache
}
