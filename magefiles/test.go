//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Unit runs every package's tests with the race detector.
func (Test) Unit() error {
	return goCmd(withArgs("test", "-race", "-count=1", "./..."))
}

// Renderer runs the renderer packages only. None of them need a GPU.
func (Test) Renderer() error {
	return goCmd(withArgs("test", "-count=1", "./..."), withDir(filepath.Join("engine", "renderer")))
}
