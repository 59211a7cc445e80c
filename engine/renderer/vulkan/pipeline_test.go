package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

func TestVertexInputDescription(t *testing.T) {
	binding, attrs, err := vertexInputDescription(metadata.VertexStride, metadata.VertexLayout())
	require.NoError(t, err)
	assert.Equal(t, uint32(metadata.VertexStride), binding.Stride)
	assert.Equal(t, vk.VertexInputRateVertex, binding.InputRate)
	require.Len(t, attrs, 3)
	assert.Equal(t, vk.FormatR32g32b32Sfloat, attrs[0].Format)
	assert.Equal(t, vk.FormatR32g32b32Sfloat, attrs[1].Format)
	assert.Equal(t, vk.FormatR32g32Sfloat, attrs[2].Format)
	assert.Equal(t, uint32(24), attrs[2].Offset)

	_, _, err = vertexInputDescription(4, []metadata.VertexAttribute{{Name: "bad", Format: metadata.VertexFormat(99)}})
	assert.Error(t, err)
}

func TestFixedFunctionMapping(t *testing.T) {
	assert.Equal(t, vk.CullModeFlags(vk.CullModeNone), cullModeFlags(metadata.CullModeNone))
	assert.Equal(t, vk.CullModeFlags(vk.CullModeBackBit), cullModeFlags(metadata.CullModeBack))

	opaque := colorBlendAttachment(false)
	assert.Equal(t, vk.Bool32(vk.False), opaque.BlendEnable)
	blended := colorBlendAttachment(true)
	assert.Equal(t, vk.Bool32(vk.True), blended.BlendEnable)
	assert.Equal(t, vk.BlendFactorOneMinusSrcAlpha, blended.DstColorBlendFactor)

	assert.Equal(t, vk.FilterNearest, samplerFilter(metadata.FilterModeNearest))
	assert.Equal(t, vk.SamplerAddressModeClampToEdge, samplerAddressMode(metadata.AddressModeClampToEdge))
}

func TestImageTransitions(t *testing.T) {
	toTarget := transitionFor(metadata.ResourceStatePresent, metadata.ResourceStateRenderTarget)
	assert.Equal(t, vk.ImageLayoutPresentSrc, toTarget.oldLayout)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, toTarget.newLayout)
	assert.Equal(t, vk.AccessFlagBits(vk.AccessColorAttachmentWriteBit), toTarget.dstAccess)

	first := transitionFor(metadata.ResourceStateUndefined, metadata.ResourceStateRenderTarget)
	assert.Equal(t, vk.ImageLayoutUndefined, first.oldLayout)
	assert.Equal(t, vk.PipelineStageFlagBits(vk.PipelineStageColorAttachmentOutputBit), first.srcStage)

	upload := transitionFor(metadata.ResourceStateCopyDest, metadata.ResourceStateShaderResource)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, upload.oldLayout)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, upload.newLayout)
	assert.Equal(t, vk.PipelineStageFlagBits(vk.PipelineStageFragmentShaderBit), upload.dstStage)
}
