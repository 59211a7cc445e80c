package vulkan

import (
	"fmt"
	"sort"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

// VulkanSignature is the one binding signature every pipeline is built
// against: one descriptor set layout per binding group and the pipeline
// layout over them, plus the pool their sets come from.
type VulkanSignature struct {
	Bindings       []metadata.Binding
	SetLayouts     []vk.DescriptorSetLayout
	PipelineLayout vk.PipelineLayout
	Pool           vk.DescriptorPool

	// one set per constant buffer; the frame region is a dynamic offset
	constants map[uuid.UUID]vk.DescriptorSet
}

func descriptorType(t metadata.BindingType) vk.DescriptorType {
	switch t {
	case metadata.BindingTypeSampledTexture:
		return vk.DescriptorTypeSampledImage
	case metadata.BindingTypeSampler:
		return vk.DescriptorTypeSampler
	}
	return vk.DescriptorTypeUniformBufferDynamic
}

func shaderStageFlags(stages metadata.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if stages&metadata.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if stages&metadata.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(flags)
}

// groupBindings splits bindings by group. Groups must be dense from 0.
func groupBindings(bindings []metadata.Binding) ([][]metadata.Binding, error) {
	var groups [][]metadata.Binding
	for _, b := range bindings {
		for uint32(len(groups)) <= b.Group {
			groups = append(groups, nil)
		}
		groups[b.Group] = append(groups[b.Group], b)
	}
	for i, g := range groups {
		if len(g) == 0 {
			return nil, fmt.Errorf("vulkan: binding group %d is empty", i)
		}
		sort.Slice(g, func(a, b int) bool { return g[a].Binding < g[b].Binding })
	}
	return groups, nil
}

// poolSizes reserves room for the constant sets plus one set per texture.
func poolSizes(bindings []metadata.Binding) ([]vk.DescriptorPoolSize, uint32) {
	counts := map[vk.DescriptorType]uint32{}
	var order []vk.DescriptorType
	for _, b := range bindings {
		t := descriptorType(b.Type)
		per := VULKAN_MAX_TEXTURE_COUNT
		if b.Type == metadata.BindingTypeUniformBuffer {
			per = VULKAN_MAX_CONSTANT_BUFFER_COUNT
		}
		if _, ok := counts[t]; !ok {
			order = append(order, t)
		}
		counts[t] += per
	}
	sizes := make([]vk.DescriptorPoolSize, 0, len(order))
	for _, t := range order {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: counts[t]})
	}
	return sizes, VULKAN_MAX_TEXTURE_COUNT + VULKAN_MAX_CONSTANT_BUFFER_COUNT
}

func NewSignature(context *VulkanContext, bindings []metadata.Binding) (*VulkanSignature, error) {
	groups, err := groupBindings(bindings)
	if err != nil {
		return nil, err
	}
	device := context.Device.LogicalDevice
	sig := &VulkanSignature{
		Bindings:  bindings,
		constants: map[uuid.UUID]vk.DescriptorSet{},
	}

	for _, group := range groups {
		layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(group))
		for i, b := range group {
			layoutBindings[i] = vk.DescriptorSetLayoutBinding{
				Binding:         b.Binding,
				DescriptorType:  descriptorType(b.Type),
				DescriptorCount: 1,
				StageFlags:      shaderStageFlags(b.Stages),
			}
		}
		info := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(layoutBindings)),
			PBindings:    layoutBindings,
		}
		var layout vk.DescriptorSetLayout
		if err := check("create descriptor set layout", vk.CreateDescriptorSetLayout(device, &info, context.Allocator, &layout)); err != nil {
			sig.Destroy(context)
			return nil, err
		}
		sig.SetLayouts = append(sig.SetLayouts, layout)
	}

	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(sig.SetLayouts)),
		PSetLayouts:    sig.SetLayouts,
	}
	var pipelineLayout vk.PipelineLayout
	if err := check("create pipeline layout", vk.CreatePipelineLayout(device, &layoutInfo, context.Allocator, &pipelineLayout)); err != nil {
		sig.Destroy(context)
		return nil, err
	}
	sig.PipelineLayout = pipelineLayout

	sizes, maxSets := poolSizes(bindings)
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
		MaxSets:       maxSets,
	}
	var pool vk.DescriptorPool
	if err := check("create descriptor pool", vk.CreateDescriptorPool(device, &poolInfo, context.Allocator, &pool)); err != nil {
		sig.Destroy(context)
		return nil, err
	}
	sig.Pool = pool
	return sig, nil
}

func (s *VulkanSignature) allocate(context *VulkanContext, group uint32) (vk.DescriptorSet, error) {
	if int(group) >= len(s.SetLayouts) {
		return vk.DescriptorSet(vk.NullHandle), fmt.Errorf("vulkan: no binding group %d", group)
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     s.Pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{s.SetLayouts[group]},
	}
	var set vk.DescriptorSet
	err := context.Locks.SafeCall(DescriptorManagement, func() error {
		return check("allocate descriptor set", vk.AllocateDescriptorSets(context.Device.LogicalDevice, &info, &set))
	})
	return set, err
}

func (s *VulkanSignature) free(context *VulkanContext, set vk.DescriptorSet) {
	_ = context.Locks.SafeCall(DescriptorManagement, func() error {
		return check("free descriptor set", vk.FreeDescriptorSets(context.Device.LogicalDevice, s.Pool, 1, &set))
	})
}

// ConstantsSet returns the set exposing one FrameConstantsAlignment window
// of buffer, allocating it on first use.
func (s *VulkanSignature) ConstantsSet(context *VulkanContext, buffer *VulkanBuffer) (vk.DescriptorSet, error) {
	if set, ok := s.constants[buffer.ID()]; ok {
		return set, nil
	}
	set, err := s.allocate(context, metadata.FrameConstantsGroup)
	if err != nil {
		return vk.DescriptorSet(vk.NullHandle), err
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer.Handle,
			Offset: 0,
			Range:  vk.DeviceSize(metadata.FrameConstantsAlignment),
		}},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	s.constants[buffer.ID()] = set
	return set, nil
}

func (s *VulkanSignature) ForgetConstants(context *VulkanContext, buffer *VulkanBuffer) {
	set, ok := s.constants[buffer.ID()]
	if !ok {
		return
	}
	delete(s.constants, buffer.ID())
	s.free(context, set)
}

// TextureSet allocates and fills the texture group for one image and sampler.
func (s *VulkanSignature) TextureSet(context *VulkanContext, view vk.ImageView, sampler vk.Sampler) (vk.DescriptorSet, error) {
	set, err := s.allocate(context, metadata.TextureGroup)
	if err != nil {
		return vk.DescriptorSet(vk.NullHandle), err
	}
	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			PImageInfo: []vk.DescriptorImageInfo{{
				ImageView:   view,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      1,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampler,
			PImageInfo: []vk.DescriptorImageInfo{{
				Sampler: sampler,
			}},
		},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	return set, nil
}

func (s *VulkanSignature) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if s.Pool != vk.NullDescriptorPool {
		// destroying the pool frees every set
		vk.DestroyDescriptorPool(device, s.Pool, context.Allocator)
		s.Pool = vk.NullDescriptorPool
	}
	s.constants = map[uuid.UUID]vk.DescriptorSet{}
	if s.PipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(device, s.PipelineLayout, context.Allocator)
		s.PipelineLayout = vk.NullPipelineLayout
	}
	for _, layout := range s.SetLayouts {
		vk.DestroyDescriptorSetLayout(device, layout, context.Allocator)
	}
	s.SetLayouts = nil
}
