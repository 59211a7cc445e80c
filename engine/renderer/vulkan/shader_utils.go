package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

// NewShaderModule wraps a SPIR-V binary holding every entry point of a
// pipeline.
func NewShaderModule(context *VulkanContext, code []uint32) (vk.ShaderModule, error) {
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if err := check("create shader module", vk.CreateShaderModule(context.Device.LogicalDevice, &info, context.Allocator, &module)); err != nil {
		return vk.NullShaderModule, err
	}
	return module, nil
}

func shaderStages(module vk.ShaderModule, desc metadata.PipelineDesc) []vk.PipelineShaderStageCreateInfo {
	return []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: module,
			PName:  VulkanSafeString(desc.VertexEntry),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: module,
			PName:  VulkanSafeString(desc.FragmentEntry),
		},
	}
}
