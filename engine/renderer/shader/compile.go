// Package shader turns WGSL source into SPIR-V for the Vulkan backend.
package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/naga/wgsl"

	"github.com/spaghettifunk/usu/engine/core"
)

const (
	DefaultVertexEntry   = "vs_main"
	DefaultFragmentEntry = "fs_main"
)

// EntryPoints names the two functions a pipeline is built from.
type EntryPoints struct {
	Vertex   string
	Fragment string
}

func DefaultEntryPoints() EntryPoints {
	return EntryPoints{Vertex: DefaultVertexEntry, Fragment: DefaultFragmentEntry}
}

// Module is a compiled SPIR-V module holding both entry points.
type Module struct {
	Entries EntryPoints
	Words   []uint32
}

// Phase is the compiler stage that produced a diagnostic.
type Phase string

const (
	PhaseParse      Phase = "parse"
	PhaseLower      Phase = "lower"
	PhaseValidate   Phase = "validate"
	PhaseEntryPoint Phase = "entry_point"
	PhaseGenerate   Phase = "spirv"
)

// CompileError carries the compiler diagnostic. It matches
// core.ErrShaderCompile with errors.Is.
type CompileError struct {
	Phase      Phase
	Entry      string
	Diagnostic string
}

func (e *CompileError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("shader %s error (%s): %s", e.Phase, e.Entry, e.Diagnostic)
	}
	return fmt.Sprintf("shader %s error: %s", e.Phase, e.Diagnostic)
}

func (e *CompileError) Is(target error) bool {
	return target == core.ErrShaderCompile
}

// Compile builds one SPIR-V module from source and checks that both entry
// points exist with the right stage.
func Compile(source string, entries EntryPoints) (*Module, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, &CompileError{Phase: PhaseParse, Diagnostic: diagnostic(err)}
	}

	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, &CompileError{Phase: PhaseLower, Diagnostic: diagnostic(err)}
	}

	if err := checkEntryPoints(module, entries); err != nil {
		return nil, err
	}

	problems, err := naga.Validate(module)
	if err != nil {
		return nil, &CompileError{Phase: PhaseValidate, Diagnostic: err.Error()}
	}
	if len(problems) > 0 {
		msgs := make([]string, 0, len(problems))
		for i := range problems {
			msgs = append(msgs, problems[i].Error())
		}
		return nil, &CompileError{Phase: PhaseValidate, Diagnostic: strings.Join(msgs, "\n")}
	}

	code, err := naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		return nil, &CompileError{Phase: PhaseGenerate, Diagnostic: err.Error()}
	}
	words, err := BytesToWords(code)
	if err != nil {
		return nil, &CompileError{Phase: PhaseGenerate, Diagnostic: err.Error()}
	}

	return &Module{Entries: entries, Words: words}, nil
}

func checkEntryPoints(module *ir.Module, entries EntryPoints) error {
	want := []struct {
		name  string
		stage ir.ShaderStage
	}{
		{entries.Vertex, ir.StageVertex},
		{entries.Fragment, ir.StageFragment},
	}
	for _, w := range want {
		found := false
		for _, ep := range module.EntryPoints {
			if ep.Name != w.name {
				continue
			}
			if ep.Stage != w.stage {
				return &CompileError{Phase: PhaseEntryPoint, Entry: w.name, Diagnostic: "entry point has the wrong stage"}
			}
			found = true
		}
		if !found {
			return &CompileError{Phase: PhaseEntryPoint, Entry: w.name, Diagnostic: "entry point not found"}
		}
	}
	return nil
}

// diagnostic prefers the caret-annotated form when the parser kept the source.
func diagnostic(err error) string {
	var list wgsl.SourceErrors
	if errors.As(err, &list) && len(list) > 0 {
		return list.FormatAll()
	}
	var se *wgsl.SourceError
	if errors.As(err, &se) {
		return se.FormatWithContext()
	}
	return err.Error()
}

const spirvMagic = 0x07230203

// BytesToWords reinterprets a little-endian SPIR-V binary as 32-bit words.
func BytesToWords(code []byte) ([]uint32, error) {
	if len(code) < 20 || len(code)%4 != 0 {
		return nil, fmt.Errorf("spirv binary has invalid size %d", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("spirv magic 0x%08x", words[0])
	}
	return words, nil
}
