// Package types defines the configuration and standard errors shared by the
// narwhal storage manager, its SQLite engine and the command-line client.
package types
