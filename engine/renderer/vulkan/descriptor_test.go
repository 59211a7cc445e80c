package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

func TestGroupBindings(t *testing.T) {
	groups, err := groupBindings(metadata.BindingLayout())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Len(t, groups[metadata.FrameConstantsGroup], 1)
	require.Len(t, groups[metadata.TextureGroup], 2)
	assert.Equal(t, metadata.BindingTypeSampledTexture, groups[metadata.TextureGroup][0].Type)
	assert.Equal(t, metadata.BindingTypeSampler, groups[metadata.TextureGroup][1].Type)

	// a gap in the groups cannot be expressed as a pipeline layout
	_, err = groupBindings([]metadata.Binding{{Group: 1, Binding: 0, Type: metadata.BindingTypeSampler}})
	assert.Error(t, err)
}

func TestDescriptorMapping(t *testing.T) {
	assert.Equal(t, vk.DescriptorTypeUniformBufferDynamic, descriptorType(metadata.BindingTypeUniformBuffer))
	assert.Equal(t, vk.DescriptorTypeSampledImage, descriptorType(metadata.BindingTypeSampledTexture))
	assert.Equal(t, vk.DescriptorTypeSampler, descriptorType(metadata.BindingTypeSampler))

	both := shaderStageFlags(metadata.ShaderStageVertex | metadata.ShaderStageFragment)
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit), both)
}

func TestPoolSizes(t *testing.T) {
	sizes, maxSets := poolSizes(metadata.BindingLayout())
	require.Len(t, sizes, 3)
	assert.Equal(t, vk.DescriptorPoolSize{Type: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: VULKAN_MAX_CONSTANT_BUFFER_COUNT}, sizes[0])
	assert.Equal(t, vk.DescriptorPoolSize{Type: vk.DescriptorTypeSampledImage, DescriptorCount: VULKAN_MAX_TEXTURE_COUNT}, sizes[1])
	assert.Equal(t, uint32(VULKAN_MAX_TEXTURE_COUNT+VULKAN_MAX_CONSTANT_BUFFER_COUNT), maxSets)
}
