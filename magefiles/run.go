//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Engine checks the shaders, then runs the engine with the bundled config.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run engine...")
	return goCmd(withArgs("run", ".", "-config", filepath.FromSlash(configFile)))
}
