package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/renderer"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

// Surface is what the backend needs from the window system.
type Surface interface {
	RequiredInstanceExtensions() []string
	CreateWindowSurface(instance vk.Instance) (vk.Surface, error)
}

// VulkanBackend implements renderer.Backend on a single graphics queue.
type VulkanBackend struct {
	context    *VulkanContext
	debug      bool
	candidates []physicalDeviceCandidate
}

var _ renderer.Backend = (*VulkanBackend)(nil)

// New loads Vulkan through GLFW, creates the instance and the surface of the
// window. Validation layers and the debug report callback are enabled when
// debug is set.
func New(window Surface, appName string, debug bool) (*VulkanBackend, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("vulkan: GetInstanceProcAddress is nil: %w", core.ErrNoCompatibleAdapter)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("vulkan: init: %w", err)
	}

	vb := &VulkanBackend{
		context: NewVulkanContext(),
		debug:   debug,
	}
	if err := vb.createInstance(appName, window.RequiredInstanceExtensions()); err != nil {
		return nil, err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateWindowSurface(vb.context.Instance)
	if err != nil {
		vb.Shutdown()
		return nil, fmt.Errorf("vulkan: surface: %w", err)
	}
	vb.context.Surface = surface
	core.LogDebug("Vulkan surface created.")
	return vb, nil
}

func (vb *VulkanBackend) createInstance(appName string, windowExtensions []string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(VULKAN_API_VERSION_MAJOR, VULKAN_API_VERSION_MINOR, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("UsU Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string{}, windowExtensions...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if vb.debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		layers = []string{"VK_LAYER_KHRONOS_validation"}
		ok, err := instanceHasLayers(layers)
		if err != nil {
			return err
		}
		if !ok {
			core.LogWarn("validation layers %v are missing, continuing without them", layers)
			layers = nil
			extensions = extensions[:len(extensions)-1]
		}
	}
	for _, e := range extensions {
		core.LogDebug("Required extension: %s", e)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if err := check("create instance", vk.CreateInstance(&createInfo, vb.context.Allocator, &instance)); err != nil {
		return err
	}
	vb.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if len(layers) > 0 {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := check("create debug report callback", vk.CreateDebugReportCallback(instance, &debugCreateInfo, nil, &dbg)); err != nil {
			return err
		}
		vb.context.debugCallback = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func instanceHasLayers(names []string) (bool, error) {
	var count uint32
	if err := check("enumerate layers", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return false, err
	}
	available := make([]vk.LayerProperties, count)
	if err := check("enumerate layers", vk.EnumerateInstanceLayerProperties(&count, available)); err != nil {
		return false, err
	}
	have := make(map[string]bool, count)
	for i := range available {
		available[i].Deref()
		have[vk.ToString(available[i].LayerName[:])] = true
	}
	for _, name := range names {
		if !have[name] {
			return false, nil
		}
	}
	return true, nil
}

func (vb *VulkanBackend) EnumerateAdapters() ([]renderer.AdapterInfo, error) {
	devices, err := enumeratePhysicalDevices(vb.context)
	if err != nil {
		return nil, err
	}
	vb.candidates = vb.candidates[:0]
	infos := make([]renderer.AdapterInfo, 0, len(devices))
	for i, d := range devices {
		c, err := describePhysicalDevice(vb.context, i, d)
		if err != nil {
			return nil, err
		}
		vb.candidates = append(vb.candidates, c)
		infos = append(infos, c.info)
	}
	return infos, nil
}

func (vb *VulkanBackend) CreateDevice(adapter renderer.AdapterInfo) error {
	var candidate *physicalDeviceCandidate
	for i := range vb.candidates {
		if vb.candidates[i].info.Index == adapter.Index {
			candidate = &vb.candidates[i]
		}
	}
	if candidate == nil || !candidate.queues.Complete() {
		return fmt.Errorf("vulkan: adapter %d '%s': %w", adapter.Index, adapter.Name, core.ErrNoCompatibleAdapter)
	}
	if err := DeviceCreate(vb.context, *candidate); err != nil {
		return err
	}
	sig, err := NewSignature(vb.context, metadata.BindingLayout())
	if err != nil {
		DeviceDestroy(vb.context)
		return err
	}
	vb.context.Signature = sig
	vb.context.Timeline = NewVulkanTimeline(newDeviceFences(vb.context))
	return nil
}

func (vb *VulkanBackend) DestroyDevice() {
	ctx := vb.context
	if ctx.Device == nil {
		return
	}
	vk.DeviceWaitIdle(ctx.Device.LogicalDevice)
	vb.DestroySwapchain()
	if ctx.Timeline != nil {
		ctx.Timeline.Destroy()
		ctx.Timeline = nil
	}
	if ctx.Signature != nil {
		ctx.Signature.Destroy(ctx)
		ctx.Signature = nil
	}
	DeviceDestroy(ctx)
}

func (vb *VulkanBackend) ready() error {
	if vb.context.Device == nil {
		return fmt.Errorf("vulkan: no device: %w", core.ErrNotInitialized)
	}
	return nil
}

func (vb *VulkanBackend) SignalFence(value uint64) error {
	if err := vb.ready(); err != nil {
		return err
	}
	return vb.context.Timeline.Signal(value)
}

func (vb *VulkanBackend) CompletedFenceValue() (uint64, error) {
	if err := vb.ready(); err != nil {
		return 0, err
	}
	return vb.context.Timeline.Completed()
}

func (vb *VulkanBackend) WaitFence(value uint64) error {
	if err := vb.ready(); err != nil {
		return err
	}
	return vb.context.Timeline.Wait(value)
}

func (vb *VulkanBackend) CreateSwapchain(width, height, imageCount uint32, syncInterval int) (renderer.SwapchainInfo, error) {
	if err := vb.ready(); err != nil {
		return renderer.SwapchainInfo{}, err
	}
	if vb.context.Swapchain != nil {
		vb.DestroySwapchain()
	}
	sc, err := SwapchainCreate(vb.context, width, height, imageCount, syncInterval)
	if err != nil {
		return renderer.SwapchainInfo{}, err
	}
	vb.context.Swapchain = sc
	return renderer.SwapchainInfo{
		ImageCount: sc.ImageCount,
		Width:      sc.Extent.Width,
		Height:     sc.Extent.Height,
	}, nil
}

func (vb *VulkanBackend) DestroySwapchain() {
	if vb.context.Swapchain == nil {
		return
	}
	vb.context.Swapchain.SwapchainDestroy(vb.context)
	vb.context.Swapchain = nil
}

func (vb *VulkanBackend) AcquireNextImage() (uint32, error) {
	if vb.context.Swapchain == nil {
		return 0, fmt.Errorf("vulkan: acquire without swapchain: %w", core.ErrNotInitialized)
	}
	return vb.context.Swapchain.SwapchainAcquireNextImageIndex(vb.context)
}

// Present ignores syncInterval: the present mode is fixed when the swapchain
// is created.
func (vb *VulkanBackend) Present(imageIndex uint32, syncInterval int) error {
	if vb.context.Swapchain == nil {
		return fmt.Errorf("vulkan: present without swapchain: %w", core.ErrNotInitialized)
	}
	return vb.context.Swapchain.SwapchainPresent(vb.context, imageIndex)
}

func (vb *VulkanBackend) CreateCommandList() (renderer.CommandList, error) {
	if err := vb.ready(); err != nil {
		return nil, err
	}
	return NewVulkanCommandBuffer(vb.context, vb.context.Device.GraphicsCommandPool)
}

// Submit queues list and signals the render-finished semaphore of
// imageIndex, which the present of that image waits on.
func (vb *VulkanBackend) Submit(list renderer.CommandList, imageIndex uint32) error {
	cb, ok := list.(*VulkanCommandBuffer)
	if !ok {
		return fmt.Errorf("vulkan: submit of foreign command list %T", list)
	}
	sc := vb.context.Swapchain
	if sc == nil || imageIndex >= sc.ImageCount {
		return fmt.Errorf("vulkan: submit for image %d without a matching swapchain: %w", imageIndex, core.ErrNotInitialized)
	}
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{sc.RenderFinished[imageIndex]},
	}
	dev := vb.context.Device
	if err := vb.context.Locks.SafeQueueCall(uint32(dev.GraphicsQueueIndex), func() error {
		return check("queue submit", vk.QueueSubmit(dev.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence))
	}); err != nil {
		return err
	}
	cb.UpdateSubmitted()
	return nil
}

func (vb *VulkanBackend) CreateBuffer(desc renderer.BufferDesc) (renderer.Buffer, error) {
	if err := vb.ready(); err != nil {
		return nil, err
	}
	return NewVulkanBuffer(vb.context, desc)
}

func (vb *VulkanBackend) CreateTexture(desc renderer.TextureDesc) (renderer.Texture, error) {
	if err := vb.ready(); err != nil {
		return nil, err
	}
	return NewVulkanTexture(vb.context, desc)
}

func (vb *VulkanBackend) CreatePipeline(desc metadata.PipelineDesc) (renderer.Pipeline, error) {
	if err := vb.ready(); err != nil {
		return nil, err
	}
	return NewGraphicsPipeline(vb.context, desc)
}

// Shutdown destroys the device if still open, then the surface, the debug
// callback and the instance, in that order.
func (vb *VulkanBackend) Shutdown() {
	ctx := vb.context
	vb.DestroyDevice()
	if ctx.Instance == nil {
		return
	}
	if ctx.Surface != vk.NullSurface {
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = vk.NullSurface
	}
	if ctx.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugCallback, ctx.Allocator)
		ctx.debugCallback = vk.NullDebugReportCallback
	}
	vk.DestroyInstance(ctx.Instance, ctx.Allocator)
	ctx.Instance = nil
	core.LogInfo("Vulkan instance destroyed.")
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
