package renderer

import (
	"fmt"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
	"github.com/spaghettifunk/usu/engine/renderer/shader"
)

// PipelineBuilder compiles shader source and turns it into an immutable
// pipeline with fixed conservative state: no culling, no blending, no depth
// test, triangle lists.
type PipelineBuilder struct {
	device  *DeviceContext
	entries shader.EntryPoints
	current Pipeline
}

func NewPipelineBuilder(device *DeviceContext, entries shader.EntryPoints) *PipelineBuilder {
	return &PipelineBuilder{
		device:  device,
		entries: entries,
	}
}

// Describe compiles source and returns the full pipeline description.
func (pb *PipelineBuilder) Describe(name, source string, layout []metadata.VertexAttribute, stride uint32) (metadata.PipelineDesc, error) {
	if err := metadata.ValidateLayout(layout, stride); err != nil {
		return metadata.PipelineDesc{}, err
	}
	mod, err := shader.Compile(source, pb.entries)
	if err != nil {
		return metadata.PipelineDesc{}, err
	}
	return metadata.PipelineDesc{
		Name:          name,
		SPIRV:         mod.Words,
		VertexEntry:   mod.Entries.Vertex,
		FragmentEntry: mod.Entries.Fragment,
		VertexStride:  stride,
		Attributes:    layout,
		Bindings:      metadata.BindingLayout(),
		Sampler:       metadata.SamplerDesc{Filter: metadata.FilterModeLinear, Address: metadata.AddressModeRepeat},
		CullMode:      metadata.CullModeNone,
		BlendEnabled:  false,
		DepthTest:     false,
		Topology:      metadata.TopologyTriangleList,
	}, nil
}

// Build compiles source and creates the pipeline, which becomes the current
// one. When a pipeline already exists this is a Rebuild.
func (pb *PipelineBuilder) Build(name, source string, layout []metadata.VertexAttribute) (Pipeline, error) {
	if pb.current != nil {
		return pb.Rebuild(name, source, layout)
	}
	desc, err := pb.Describe(name, source, layout, metadata.VertexStride)
	if err != nil {
		core.LogError("Pipeline '%s': %s", name, err)
		return nil, err
	}
	p, err := pb.device.Backend().CreatePipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline '%s': %w", name, err)
	}
	pb.current = p
	return p, nil
}

// Rebuild replaces the current pipeline. On failure the previous pipeline is
// kept and the error returned.
func (pb *PipelineBuilder) Rebuild(name, source string, layout []metadata.VertexAttribute) (Pipeline, error) {
	desc, err := pb.Describe(name, source, layout, metadata.VertexStride)
	if err != nil {
		return pb.current, err
	}
	if err := pb.device.SignalAndWait(); err != nil {
		return pb.current, err
	}
	p, err := pb.device.Backend().CreatePipeline(desc)
	if err != nil {
		return pb.current, fmt.Errorf("failed to create pipeline '%s': %w", name, err)
	}
	if pb.current != nil {
		pb.current.Release()
	}
	pb.current = p
	return p, nil
}

func (pb *PipelineBuilder) Current() Pipeline {
	return pb.current
}

func (pb *PipelineBuilder) Release() {
	if pb.current != nil {
		pb.current.Release()
		pb.current = nil
	}
}
