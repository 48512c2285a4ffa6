//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Test mg.Namespace

// Runs every package test.
func (Test) All() error {
	return sh.RunV("go", "test", "./...")
}

// Runs tests with race detector, web and status spawn goroutines.
func (Test) Race() error {
	return sh.RunV("go", "test", "-race", "./web/...", "./status/...", "./resources/...")
}

// Runs go vet after the tests.
func Vet() error {
	mg.Deps(Test.All)
	return sh.RunV("go", "vet", "./...")
}

// Tidies module requirements.
func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}
