//go:build mage

// Package main provides build targets for the daybook project using Mage.
//
// Usage:
//
//	mage build           Compile the daybook binary to bin/
//	mage test:all        Run all tests
//	mage test:short      Run tests with -short
//	mage test:cover      Run tests with a coverage profile
//	mage test:race       Run tests with the race detector
//	mage lint            Run golangci-lint
//	mage clean           Remove build artifacts
//	mage install         Install daybook to GOPATH/bin
//	mage stats           Print Go LOC and documentation word counts
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "daybook"
	binaryDir  = "bin"
	cmdDir     = "./cmd/daybook"
)

// ldflags stamps the version from `git describe`, or "dev" outside a
// checkout.
func ldflags() string {
	version := "dev"
	if out, err := sh.Output("git", "describe", "--tags", "--always", "--dirty"); err == nil && strings.TrimSpace(out) != "" {
		version = strings.TrimSpace(out)
	}
	return "-X main.version=" + version
}

// Build compiles the daybook binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-ldflags", ldflags(), "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	if err := os.Remove(coverProfile); err != nil && !os.IsNotExist(err) {
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
