package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/renderer"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// VulkanCommandBuffer is a primary command buffer. Frame command lists are
// long lived and reset every use; single-use buffers are freed after their
// submit completes.
type VulkanCommandBuffer struct {
	context *VulkanContext
	pool    vk.CommandPool
	Handle  vk.CommandBuffer
	State   VulkanCommandBufferState

	// first recording failure since the last Reset, reported by End
	err error
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb := &VulkanCommandBuffer{
		context: context,
		pool:    pool,
		State:   COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	err := context.Locks.SafeCall(CommandBufferManagement, func() error {
		return check("allocate command buffer", vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, buffers))
	})
	if err != nil {
		return nil, err
	}
	cb.Handle = buffers[0]
	cb.State = COMMAND_BUFFER_STATE_READY
	return cb, nil
}

func (v *VulkanCommandBuffer) Free() {
	if v.Handle == nil {
		return
	}
	_ = v.context.Locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(v.context.Device.LogicalDevice, v.pool, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) begin(singleUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if singleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if err := check("begin command buffer", vk.BeginCommandBuffer(v.Handle, &beginInfo)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) Reset() error {
	if err := check("reset command buffer", vk.ResetCommandBuffer(v.Handle, 0)); err != nil {
		return err
	}
	v.err = nil
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (v *VulkanCommandBuffer) Begin() error {
	return v.begin(true)
}

// End closes the buffer. A command that failed while recording makes End
// fail too, so a partial frame is never submitted.
func (v *VulkanCommandBuffer) End() error {
	if err := check("end command buffer", vk.EndCommandBuffer(v.Handle)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return v.err
}

// fail logs a recording failure and keeps the first one for End.
func (v *VulkanCommandBuffer) fail(format string, args ...interface{}) {
	err := fmt.Errorf(format+": %w", append(args, core.ErrCommandRecording)...)
	core.LogError(err.Error())
	if v.err == nil {
		v.err = err
	}
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Release() {
	v.Free()
}

func (v *VulkanCommandBuffer) SetViewport(width, height uint32) {
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{{
		X:        0,
		Y:        0,
		Width:    float32(width),
		Height:   float32(height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
}

func (v *VulkanCommandBuffer) SetScissor(width, height uint32) {
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: width, Height: height},
	}})
}

func (v *VulkanCommandBuffer) TransitionSwapImage(imageIndex uint32, from, to metadata.ResourceState) {
	sc := v.context.Swapchain
	if sc == nil || imageIndex >= sc.ImageCount {
		v.fail("transition of swap image %d without a matching swapchain", imageIndex)
		return
	}
	recordTransition(v.Handle, sc.Images[imageIndex], transitionFor(from, to))
}

func (v *VulkanCommandBuffer) BeginRendering(imageIndex uint32, clearColour [4]float32) {
	sc := v.context.Swapchain
	if sc == nil || imageIndex >= sc.ImageCount {
		v.fail("render pass for swap image %d without a matching swapchain", imageIndex)
		return
	}
	sc.Renderpass.RenderpassBegin(v, sc.Framebuffers[imageIndex], clearColour)
}

func (v *VulkanCommandBuffer) BindPipeline(pipeline renderer.Pipeline) {
	p, ok := pipeline.(*VulkanPipeline)
	if !ok {
		v.fail("bind of foreign pipeline %T", pipeline)
		return
	}
	vk.CmdBindPipeline(v.Handle, vk.PipelineBindPointGraphics, p.Handle)
}

func (v *VulkanCommandBuffer) BindVertexBuffer(view renderer.VertexBufferView) {
	b, ok := view.Buffer.(*VulkanBuffer)
	if !ok {
		v.fail("bind of foreign vertex buffer %T", view.Buffer)
		return
	}
	vk.CmdBindVertexBuffers(v.Handle, 0, 1, []vk.Buffer{b.Handle}, []vk.DeviceSize{0})
}

func (v *VulkanCommandBuffer) BindIndexBuffer(view renderer.IndexBufferView) {
	b, ok := view.Buffer.(*VulkanBuffer)
	if !ok {
		v.fail("bind of foreign index buffer %T", view.Buffer)
		return
	}
	vk.CmdBindIndexBuffer(v.Handle, b.Handle, 0, vk.IndexTypeUint32)
}

// BindFrameConstants binds the constant buffer through the dynamic uniform
// descriptor, so offset selects the frame's region without a new set.
func (v *VulkanCommandBuffer) BindFrameConstants(buffer renderer.Buffer, offset uint64) {
	b, ok := buffer.(*VulkanBuffer)
	if !ok {
		v.fail("bind of foreign constant buffer %T", buffer)
		return
	}
	sig := v.context.Signature
	set, err := sig.ConstantsSet(v.context, b)
	if err != nil {
		v.fail("frame constants descriptor: %w", err)
		return
	}
	vk.CmdBindDescriptorSets(v.Handle, vk.PipelineBindPointGraphics, sig.PipelineLayout,
		metadata.FrameConstantsGroup, 1, []vk.DescriptorSet{set}, 1, []uint32{uint32(offset)})
}

func (v *VulkanCommandBuffer) BindTexture(texture renderer.Texture) {
	t, ok := texture.(*VulkanTexture)
	if !ok {
		v.fail("bind of foreign texture %T", texture)
		return
	}
	vk.CmdBindDescriptorSets(v.Handle, vk.PipelineBindPointGraphics, v.context.Signature.PipelineLayout,
		metadata.TextureGroup, 1, []vk.DescriptorSet{t.Set}, 0, nil)
}

func (v *VulkanCommandBuffer) DrawIndexed(indexCount uint32) {
	vk.CmdDrawIndexed(v.Handle, indexCount, 1, 0, 0, 0)
}

func (v *VulkanCommandBuffer) EndRendering() {
	if v.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return
	}
	v.context.Swapchain.Renderpass.RenderpassEnd(v)
}

// AllocateAndBeginSingleUse allocates a command buffer and begins recording.
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool)
	if err != nil {
		return nil, err
	}
	if err := cb.begin(true); err != nil {
		cb.Free()
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends recording, submits, waits for the queue to go idle and
// frees the buffer.
func (v *VulkanCommandBuffer) EndSingleUse(queue vk.Queue, queueFamily uint32) error {
	defer v.Free()
	if err := v.End(); err != nil {
		return err
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	return v.context.Locks.SafeQueueCall(queueFamily, func() error {
		if err := check("single use submit", vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence)); err != nil {
			return err
		}
		return check("single use wait", vk.QueueWaitIdle(queue))
	})
}

// imageTransition is everything a layout barrier needs.
type imageTransition struct {
	oldLayout vk.ImageLayout
	newLayout vk.ImageLayout
	srcAccess vk.AccessFlagBits
	dstAccess vk.AccessFlagBits
	srcStage  vk.PipelineStageFlagBits
	dstStage  vk.PipelineStageFlagBits
}

func imageLayout(state metadata.ResourceState) vk.ImageLayout {
	switch state {
	case metadata.ResourceStatePresent:
		return vk.ImageLayoutPresentSrc
	case metadata.ResourceStateRenderTarget:
		return vk.ImageLayoutColorAttachmentOptimal
	case metadata.ResourceStateCopyDest:
		return vk.ImageLayoutTransferDstOptimal
	case metadata.ResourceStateShaderResource:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case metadata.ResourceStateGenericRead:
		return vk.ImageLayoutGeneral
	}
	return vk.ImageLayoutUndefined
}

func accessAndStage(state metadata.ResourceState, asSource bool) (vk.AccessFlagBits, vk.PipelineStageFlagBits) {
	switch state {
	case metadata.ResourceStateRenderTarget:
		return vk.AccessColorAttachmentWriteBit, vk.PipelineStageColorAttachmentOutputBit
	case metadata.ResourceStateCopyDest:
		return vk.AccessTransferWriteBit, vk.PipelineStageTransferBit
	case metadata.ResourceStateShaderResource:
		return vk.AccessShaderReadBit, vk.PipelineStageFragmentShaderBit
	case metadata.ResourceStatePresent:
		if asSource {
			// the acquire fence already ordered the presentation engine
			return 0, vk.PipelineStageColorAttachmentOutputBit
		}
		return 0, vk.PipelineStageBottomOfPipeBit
	}
	return 0, vk.PipelineStageTopOfPipeBit
}

func transitionFor(from, to metadata.ResourceState) imageTransition {
	t := imageTransition{
		oldLayout: imageLayout(from),
		newLayout: imageLayout(to),
	}
	t.srcAccess, t.srcStage = accessAndStage(from, true)
	t.dstAccess, t.dstStage = accessAndStage(to, false)
	if from == metadata.ResourceStateUndefined {
		t.srcAccess, t.srcStage = 0, vk.PipelineStageTopOfPipeBit
		if to == metadata.ResourceStateRenderTarget {
			t.srcStage = vk.PipelineStageColorAttachmentOutputBit
		}
	}
	return t
}

func recordTransition(cb vk.CommandBuffer, image vk.Image, t imageTransition) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           t.oldLayout,
		NewLayout:           t.newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		SrcAccessMask: vk.AccessFlags(t.srcAccess),
		DstAccessMask: vk.AccessFlags(t.dstAccess),
	}
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(t.srcStage), vk.PipelineStageFlags(t.dstStage),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}
