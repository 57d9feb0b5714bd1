//go:build mage

// Package main provides build targets for the narwhal project using Mage.
//
// Usage:
//
//	mage build          Compile the fleet binary to bin/
//	mage test:all       Run all tests
//	mage test:cover     Run all tests with a coverage profile
//	mage test:race      Run all tests with the race detector
//	mage lint           Check gofmt, then run go vet and golangci-lint
//	mage fmt            List files that need gofmt
//	mage demo           Build fleet and run the Bellona scenario
//	mage clean          Remove build artifacts
//	mage install        Install fleet to GOPATH/bin
//	mage stats          Print Go line counts per package
package main
