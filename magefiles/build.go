//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "fleet"
	binaryDir  = "bin"
	cmdDir     = "./cmd/fleet"
)

// Build compiles the fleet binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	if err := os.RemoveAll(coverProfile); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Demo builds fleet and runs the Bellona scenario in a scratch directory:
// a thousand recruits, a vessel of three hundred and a look at its crew.
func Demo() error {
	mg.Deps(Build)
	dir, err := os.MkdirTemp("", "fleet-demo-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	bin, err := filepath.Abs(filepath.Join(binaryDir, binaryName))
	if err != nil {
		return err
	}
	global := []string{"--config-dir", filepath.Join(dir, "config"), "--data-dir", filepath.Join(dir, "data")}
	steps := [][]string{
		{"init"},
		{"crew", "add", "--count", "1000"},
		{"vessel", "add", "Bellona", "--class", "Bellona-class", "--crew", "300"},
		{"vessel", "list"},
		{"stats", "--metrics"},
	}
	for _, step := range steps {
		fmt.Printf("$ fleet %v\n", step)
		if err := sh.RunV(bin, append(global, step...)...); err != nil {
			return err
		}
	}
	return nil
}
