package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/usu/engine/core"
	m "github.com/spaghettifunk/usu/engine/math"
)

// VulkanSwapchain owns the presentable images and everything sized by them:
// views, framebuffers and the per-image render-finished semaphores.
type VulkanSwapchain struct {
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	Extent      vk.Extent2D
	PresentMode vk.PresentMode
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView

	Renderpass   *VulkanRenderpass
	Framebuffers []*VulkanFramebuffer

	// RenderFinished[i] is signaled by the submit that draws image i and
	// waited on by its present.
	RenderFinished []vk.Semaphore
	// acquireFence makes AcquireNextImage return only once the image is
	// really available.
	acquireFence vk.Fence
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	}
	return formats[0]
}

// choosePresentMode maps a sync interval onto a present mode: 0 presents
// without waiting for vertical blank when the surface allows it, anything
// else uses FIFO, which every surface supports.
func choosePresentMode(modes []vk.PresentMode, syncInterval int) vk.PresentMode {
	if syncInterval > 0 {
		return vk.PresentModeFifo
	}
	best := vk.PresentModeFifo
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
		if mode == vk.PresentModeImmediate {
			best = mode
		}
	}
	return best
}

func chooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  m.Clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: m.Clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// chooseImageCount honours the request inside the surface limits. A
// MaxImageCount of 0 means unbounded.
func chooseImageCount(caps vk.SurfaceCapabilities, requested uint32) uint32 {
	count := requested
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func SwapchainCreate(context *VulkanContext, width, height, imageCount uint32, syncInterval int) (*VulkanSwapchain, error) {
	dev := context.Device
	support, err := DeviceQuerySwapchainSupport(dev.PhysicalDevice, context.Surface)
	if err != nil {
		return nil, err
	}
	if len(support.Formats) == 0 {
		return nil, fmt.Errorf("vulkan: surface reports no formats: %w", core.ErrNoCompatibleAdapter)
	}

	sc := &VulkanSwapchain{
		ImageFormat: chooseSurfaceFormat(support.Formats),
		PresentMode: choosePresentMode(support.PresentModes, syncInterval),
		Extent:      chooseExtent(support.Capabilities, width, height),
	}
	if sc.Extent.Width == 0 || sc.Extent.Height == 0 {
		return nil, fmt.Errorf("vulkan: surface extent %dx%d: %w", sc.Extent.Width, sc.Extent.Height, core.ErrZeroDimension)
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    chooseImageCount(support.Capabilities, imageCount),
		ImageFormat:      sc.ImageFormat.Format,
		ImageColorSpace:  sc.ImageFormat.ColorSpace,
		ImageExtent:      sc.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      sc.PresentMode,
		Clipped:          vk.True,
	}
	if dev.GraphicsQueueIndex != dev.PresentQueueIndex {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = 2
		info.PQueueFamilyIndices = []uint32{uint32(dev.GraphicsQueueIndex), uint32(dev.PresentQueueIndex)}
	} else {
		info.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if err := check("create swapchain", vk.CreateSwapchain(dev.LogicalDevice, &info, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	sc.Handle = handle

	if err := sc.createImages(context); err != nil {
		sc.SwapchainDestroy(context)
		return nil, err
	}
	core.LogInfo("Swapchain created: %dx%d, %d images, present mode %d.", sc.Extent.Width, sc.Extent.Height, sc.ImageCount, sc.PresentMode)
	return sc, nil
}

func (vs *VulkanSwapchain) createImages(context *VulkanContext) error {
	device := context.Device.LogicalDevice
	var count uint32
	if err := check("get swapchain images", vk.GetSwapchainImages(device, vs.Handle, &count, nil)); err != nil {
		return err
	}
	vs.Images = make([]vk.Image, count)
	if err := check("get swapchain images", vk.GetSwapchainImages(device, vs.Handle, &count, vs.Images)); err != nil {
		return err
	}
	vs.ImageCount = count

	rp, err := RenderpassCreate(context, vs.ImageFormat.Format)
	if err != nil {
		return err
	}
	vs.Renderpass = rp

	vs.Views = make([]vk.ImageView, 0, count)
	vs.Framebuffers = make([]*VulkanFramebuffer, 0, count)
	vs.RenderFinished = make([]vk.Semaphore, 0, count)
	for i := uint32(0); i < count; i++ {
		view, err := createImageView(context, vs.Images[i], vs.ImageFormat.Format)
		if err != nil {
			return err
		}
		vs.Views = append(vs.Views, view)

		fb, err := FramebufferCreate(context, rp, vs.Extent.Width, vs.Extent.Height, []vk.ImageView{view})
		if err != nil {
			return err
		}
		vs.Framebuffers = append(vs.Framebuffers, fb)

		semaphoreInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
		var sem vk.Semaphore
		if err := check("create semaphore", vk.CreateSemaphore(device, &semaphoreInfo, context.Allocator, &sem)); err != nil {
			return err
		}
		vs.RenderFinished = append(vs.RenderFinished, sem)
	}

	fenceInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	var fence vk.Fence
	if err := check("create fence", vk.CreateFence(device, &fenceInfo, context.Allocator, &fence)); err != nil {
		return err
	}
	vs.acquireFence = fence
	return nil
}

// SwapchainAcquireNextImageIndex blocks until the next image can be drawn.
// Suboptimal counts as success; the caller recreates on its own schedule.
func (vs *VulkanSwapchain) SwapchainAcquireNextImageIndex(context *VulkanContext) (uint32, error) {
	device := context.Device.LogicalDevice
	var index uint32
	res := vk.AcquireNextImage(device, vs.Handle, math.MaxUint64, vk.NullSemaphore, vs.acquireFence, &index)
	if res != vk.Success && res != vk.Suboptimal {
		return 0, &ResultError{Op: "acquire next image", Result: res}
	}
	if err := check("wait acquire", vk.WaitForFences(device, 1, []vk.Fence{vs.acquireFence}, vk.True, math.MaxUint64)); err != nil {
		return 0, err
	}
	if err := check("reset acquire", vk.ResetFences(device, 1, []vk.Fence{vs.acquireFence})); err != nil {
		return 0, err
	}
	return index, nil
}

func (vs *VulkanSwapchain) SwapchainPresent(context *VulkanContext, imageIndex uint32) error {
	if imageIndex >= vs.ImageCount {
		return fmt.Errorf("vulkan: present image %d of %d", imageIndex, vs.ImageCount)
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{vs.RenderFinished[imageIndex]},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	dev := context.Device
	var res vk.Result
	_ = context.Locks.SafeQueueCall(uint32(dev.PresentQueueIndex), func() error {
		res = vk.QueuePresent(dev.PresentQueue, &presentInfo)
		return nil
	})
	if res == vk.Suboptimal {
		return nil
	}
	return check("present", res)
}

func (vs *VulkanSwapchain) SwapchainDestroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	vk.DeviceWaitIdle(device)

	if vs.acquireFence != vk.NullFence {
		vk.DestroyFence(device, vs.acquireFence, context.Allocator)
		vs.acquireFence = vk.NullFence
	}
	for _, sem := range vs.RenderFinished {
		vk.DestroySemaphore(device, sem, context.Allocator)
	}
	vs.RenderFinished = nil
	for _, fb := range vs.Framebuffers {
		fb.Destroy(context)
	}
	vs.Framebuffers = nil
	// Only the views; the images belong to the swapchain.
	for _, view := range vs.Views {
		vk.DestroyImageView(device, view, context.Allocator)
	}
	vs.Views = nil
	if vs.Renderpass != nil {
		vs.Renderpass.RenderpassDestroy(context)
		vs.Renderpass = nil
	}
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(device, vs.Handle, context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
	vs.Images = nil
	vs.ImageCount = 0
}
