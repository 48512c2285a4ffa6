//go:build mage

package main

import (
	"fmt"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binaryName = "badger_converter"

type Build mg.Namespace

// Builds the converter binary into bin/.
func (Build) Binary() error {
	out := "bin/" + binaryName
	if runtime.GOOS == "windows" {
		out += ".exe"
	}
	fmt.Println("Building", out)
	return sh.RunV("go", "build", "-o", out, ".")
}

// Cross compiles release binaries for linux, windows and darwin.
func (Build) Release() error {
	for _, target := range [][2]string{{"linux", "amd64"}, {"windows", "amd64"}, {"darwin", "arm64"}} {
		out := fmt.Sprintf("bin/%s_%s_%s", binaryName, target[0], target[1])
		if target[0] == "windows" {
			out += ".exe"
		}
		env := map[string]string{"GOOS": target[0], "GOARCH": target[1], "CGO_ENABLED": "0"}
		if err := sh.RunWithV(env, "go", "build", "-trimpath", "-o", out, "."); err != nil {
			return err
		}
	}
	return nil
}
