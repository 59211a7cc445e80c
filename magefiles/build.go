//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"

	"github.com/spaghettifunk/usu/engine/renderer/shader"
)

type Build mg.Namespace

// Engine compiles the binary into bin/.
func (Build) Engine() error {
	return goCmd(withArgs("build", "-o", filepath.Join(binDir, binaryName), "."))
}

// Shaders compiles every WGSL file under assets/shaders to SPIR-V in
// bin/shaders, failing on the first compile error.
func (Build) Shaders() error {
	sources, err := filepath.Glob(filepath.Join(filepath.FromSlash(shaderSrc), "*.wgsl"))
	if err != nil {
		return err
	}
	for _, src := range sources {
		text, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		module, err := shader.Compile(string(text), shader.DefaultEntryPoints())
		if err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
		name := strings.TrimSuffix(filepath.Base(src), ".wgsl") + ".spv"
		if err := writeSPIRV(filepath.Join(binDir, "shaders", name), module.Words); err != nil {
			return err
		}
		fmt.Printf("Compiled %s (%d words)\n", src, len(module.Words))
	}
	return nil
}
