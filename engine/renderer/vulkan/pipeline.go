package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

/**
 * @brief Holds a Vulkan pipeline. The layout belongs to the signature it
 * was built against.
 */
type VulkanPipeline struct {
	id      uuid.UUID
	context *VulkanContext
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	desc   metadata.PipelineDesc
}

var ErrDepthUnsupported = errors.New("depth testing needs a depth attachment, which the swapchain pass does not have")

func cullModeFlags(mode metadata.CullMode) vk.CullModeFlags {
	switch mode {
	case metadata.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.CullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func colorBlendAttachment(blend bool) vk.PipelineColorBlendAttachmentState {
	state := vk.PipelineColorBlendAttachmentState{
		BlendEnable:    vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if blend {
		state.BlendEnable = vk.True
		state.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		state.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		state.ColorBlendOp = vk.BlendOpAdd
		state.SrcAlphaBlendFactor = vk.BlendFactorOne
		state.DstAlphaBlendFactor = vk.BlendFactorZero
		state.AlphaBlendOp = vk.BlendOpAdd
	}
	return state
}

// NewGraphicsPipeline builds desc against the context's signature and the
// swapchain render pass. Viewport and scissor are dynamic.
func NewGraphicsPipeline(context *VulkanContext, desc metadata.PipelineDesc) (*VulkanPipeline, error) {
	if desc.DepthTest {
		return nil, fmt.Errorf("pipeline '%s': %w", desc.Name, ErrDepthUnsupported)
	}
	if context.Swapchain == nil || context.Swapchain.Renderpass == nil {
		return nil, fmt.Errorf("pipeline '%s': no swapchain render pass: %w", desc.Name, core.ErrNotInitialized)
	}
	binding, attributes, err := vertexInputDescription(desc.VertexStride, desc.Attributes)
	if err != nil {
		return nil, fmt.Errorf("pipeline '%s': %w", desc.Name, err)
	}

	module, err := NewShaderModule(context, desc.SPIRV)
	if err != nil {
		return nil, fmt.Errorf("pipeline '%s': %w", desc.Name, err)
	}
	// the module is only needed while the pipeline is created
	defer vk.DestroyShaderModule(context.Device.LogicalDevice, module, context.Allocator)
	stages := shaderStages(module, desc)

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{binding},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                cullModeFlags(desc.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}
	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}
	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment(desc.BlendEnabled)},
	}
	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              context.Signature.PipelineLayout,
		RenderPass:          context.Swapchain.Renderpass.Handle,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := context.Locks.SafeCall(PipelineManagement, func() error {
		return check("create graphics pipeline", vk.CreateGraphicsPipelines(
			context.Device.LogicalDevice, vk.PipelineCache(vk.NullHandle), 1,
			[]vk.GraphicsPipelineCreateInfo{info}, context.Allocator, pipelines))
	}); err != nil {
		return nil, fmt.Errorf("pipeline '%s': %w", desc.Name, err)
	}

	core.LogDebug("Graphics pipeline '%s' created.", desc.Name)
	return &VulkanPipeline{
		id:      core.NewResourceID(),
		context: context,
		Handle:  pipelines[0],
		desc:    desc,
	}, nil
}

func (p *VulkanPipeline) ID() uuid.UUID { return p.id }
func (p *VulkanPipeline) Desc() metadata.PipelineDesc { return p.desc }

func (p *VulkanPipeline) Release() {
	if p.Handle == vk.NullPipeline {
		return
	}
	_ = p.context.Locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(p.context.Device.LogicalDevice, p.Handle, p.context.Allocator)
		return nil
	})
	p.Handle = vk.NullPipeline
}
