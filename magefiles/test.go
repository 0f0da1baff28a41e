//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const coverProfile = "coverage.out"

// Test groups test targets.
type Test mg.Namespace

// All runs every test.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Short runs tests with -short.
func (Test) Short() error {
	return sh.RunV(binGo, "test", "-short", "./...")
}

// Cover runs tests with a coverage profile and prints the per-function
// summary.
func (Test) Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile="+coverProfile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func="+coverProfile)
}

// Race runs tests with the race detector. The store, the notify hub and
// the streak tracker are shared across goroutines.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}
