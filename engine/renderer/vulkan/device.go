package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/renderer"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// VulkanPhysicalDeviceQueueFamilyInfo holds -1 for a family that was not found.
type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

func (q VulkanPhysicalDeviceQueueFamilyInfo) Complete() bool {
	return q.GraphicsFamilyIndex >= 0 && q.PresentFamilyIndex >= 0
}

// physicalDeviceCandidate is one enumerated GPU with what was learned about it.
type physicalDeviceCandidate struct {
	handle vk.PhysicalDevice
	info   renderer.AdapterInfo
	queues VulkanPhysicalDeviceQueueFamilyInfo
}

var requiredDeviceExtensions = []string{vk.KhrSwapchainExtensionName}

// pickQueueFamilies prefers one family that both draws and presents, then
// falls back to the first of each.
func pickQueueFamilies(flags []vk.QueueFlags, present []bool) VulkanPhysicalDeviceQueueFamilyInfo {
	out := VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, PresentFamilyIndex: -1}
	for i := range flags {
		graphics := flags[i]&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		if graphics && present[i] {
			return VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: int32(i), PresentFamilyIndex: int32(i)}
		}
		if graphics && out.GraphicsFamilyIndex < 0 {
			out.GraphicsFamilyIndex = int32(i)
		}
		if present[i] && out.PresentFamilyIndex < 0 {
			out.PresentFamilyIndex = int32(i)
		}
	}
	return out
}

func adapterType(t vk.PhysicalDeviceType) renderer.AdapterType {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return renderer.AdapterTypeDiscrete
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return renderer.AdapterTypeIntegrated
	case vk.PhysicalDeviceTypeVirtualGpu:
		return renderer.AdapterTypeVirtual
	case vk.PhysicalDeviceTypeCpu:
		return renderer.AdapterTypeCPU
	}
	return renderer.AdapterTypeOther
}

func deviceLocalMemory(memory *vk.PhysicalDeviceMemoryProperties) uint64 {
	var largest uint64
	for i := uint32(0); i < memory.MemoryHeapCount; i++ {
		heap := memory.MemoryHeaps[i]
		heap.Deref()
		if heap.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 && uint64(heap.Size) > largest {
			largest = uint64(heap.Size)
		}
	}
	return largest
}

func enumeratePhysicalDevices(context *VulkanContext) ([]vk.PhysicalDevice, error) {
	var count uint32
	if err := check("enumerate physical devices", vk.EnumeratePhysicalDevices(context.Instance, &count, nil)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check("enumerate physical devices", vk.EnumeratePhysicalDevices(context.Instance, &count, devices)); err != nil {
		return nil, err
	}
	return devices[:count], nil
}

func describePhysicalDevice(context *VulkanContext, index int, device vk.PhysicalDevice) (physicalDeviceCandidate, error) {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(device, &properties)
	properties.Deref()

	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(device, &memory)
	memory.Deref()

	queues, err := queryQueueFamilies(device, context.Surface)
	if err != nil {
		return physicalDeviceCandidate{}, err
	}

	info := renderer.AdapterInfo{
		Index:             index,
		Name:              vk.ToString(properties.DeviceName[:]),
		Type:              adapterType(properties.DeviceType),
		APIVersion:        properties.ApiVersion,
		SupportsGraphics:  queues.GraphicsFamilyIndex >= 0,
		SupportsPresent:   queues.PresentFamilyIndex >= 0,
		DeviceLocalMemory: deviceLocalMemory(&memory),
	}

	if info.SupportsPresent {
		ok, err := deviceHasExtensions(device, requiredDeviceExtensions)
		if err != nil {
			return physicalDeviceCandidate{}, err
		}
		if !ok {
			core.LogInfo("device '%s' lacks %v, cannot present", info.Name, requiredDeviceExtensions)
			info.SupportsPresent = false
		}
	}
	if info.SupportsPresent {
		support, err := DeviceQuerySwapchainSupport(device, context.Surface)
		if err != nil {
			return physicalDeviceCandidate{}, err
		}
		if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
			core.LogInfo("device '%s' has no swapchain support for this surface", info.Name)
			info.SupportsPresent = false
		}
	}

	core.LogDebug("adapter %d: '%s' type=%s api=%d.%d.%d graphics=%t present=%t local=%d MiB",
		index, info.Name, info.Type,
		vk.Version(properties.ApiVersion).Major(),
		vk.Version(properties.ApiVersion).Minor(),
		vk.Version(properties.ApiVersion).Patch(),
		info.SupportsGraphics, info.SupportsPresent, info.DeviceLocalMemory>>20)

	return physicalDeviceCandidate{handle: device, info: info, queues: queues}, nil
}

func queryQueueFamilies(device vk.PhysicalDevice, surface vk.Surface) (VulkanPhysicalDeviceQueueFamilyInfo, error) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)

	flags := make([]vk.QueueFlags, count)
	present := make([]bool, count)
	for i := uint32(0); i < count; i++ {
		families[i].Deref()
		flags[i] = families[i].QueueFlags
		var supported vk.Bool32
		if err := check("surface support", vk.GetPhysicalDeviceSurfaceSupport(device, i, surface, &supported)); err != nil {
			return VulkanPhysicalDeviceQueueFamilyInfo{}, err
		}
		present[i] = supported.B()
	}
	return pickQueueFamilies(flags, present), nil
}

func deviceHasExtensions(device vk.PhysicalDevice, names []string) (bool, error) {
	var count uint32
	if err := check("enumerate device extensions", vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)); err != nil {
		return false, err
	}
	available := make([]vk.ExtensionProperties, count)
	if err := check("enumerate device extensions", vk.EnumerateDeviceExtensionProperties(device, "", &count, available)); err != nil {
		return false, err
	}
	have := make(map[string]bool, count)
	for i := range available {
		available[i].Deref()
		have[vk.ToString(available[i].ExtensionName[:])] = true
	}
	for _, name := range names {
		if !have[name] {
			return false, nil
		}
	}
	return true, nil
}

// DeviceCreate opens the logical device, its queues and the graphics command
// pool on the chosen physical device.
func DeviceCreate(context *VulkanContext, candidate physicalDeviceCandidate) error {
	core.LogInfo("Creating logical device on '%s'...", candidate.info.Name)

	dev := &VulkanDevice{
		PhysicalDevice:     candidate.handle,
		GraphicsQueueIndex: candidate.queues.GraphicsFamilyIndex,
		PresentQueueIndex:  candidate.queues.PresentFamilyIndex,
	}
	vk.GetPhysicalDeviceProperties(dev.PhysicalDevice, &dev.Properties)
	dev.Properties.Deref()
	vk.GetPhysicalDeviceMemoryProperties(dev.PhysicalDevice, &dev.Memory)
	dev.Memory.Deref()

	// No additional queue for a shared family.
	indices := []uint32{uint32(dev.GraphicsQueueIndex)}
	if dev.PresentQueueIndex != dev.GraphicsQueueIndex {
		indices = append(indices, uint32(dev.PresentQueueIndex))
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensions := append([]string{}, requiredDeviceExtensions...)
	if runtime.GOOS == "darwin" {
		ok, err := deviceHasExtensions(dev.PhysicalDevice, []string{"VK_KHR_portability_subset"})
		if err != nil {
			return err
		}
		if ok {
			extensions = append(extensions, "VK_KHR_portability_subset")
		}
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}

	var device vk.Device
	if err := check("create device", vk.CreateDevice(dev.PhysicalDevice, &deviceCreateInfo, context.Allocator, &device)); err != nil {
		return err
	}
	dev.LogicalDevice = device
	context.Device = dev
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(dev.LogicalDevice, uint32(dev.GraphicsQueueIndex), 0, &queue)
	dev.GraphicsQueue = queue
	vk.GetDeviceQueue(dev.LogicalDevice, uint32(dev.PresentQueueIndex), 0, &queue)
	dev.PresentQueue = queue
	context.Locks.SetQueueFamily(uint32(dev.GraphicsQueueIndex))
	context.Locks.SetQueueFamily(uint32(dev.PresentQueueIndex))

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(dev.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := check("create command pool", vk.CreateCommandPool(dev.LogicalDevice, &poolCreateInfo, context.Allocator, &pool)); err != nil {
		DeviceDestroy(context)
		return err
	}
	dev.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	dev := context.Device
	if dev == nil {
		return
	}
	dev.GraphicsQueue = nil
	dev.PresentQueue = nil

	if dev.GraphicsCommandPool != vk.NullCommandPool {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(dev.LogicalDevice, dev.GraphicsCommandPool, context.Allocator)
		dev.GraphicsCommandPool = vk.NullCommandPool
	}
	if dev.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(dev.LogicalDevice, context.Allocator)
		dev.LogicalDevice = nil
	}
	// Physical devices are not destroyed.
	dev.PhysicalDevice = nil
	context.Device = nil
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (VulkanSwapchainSupportInfo, error) {
	var support VulkanSwapchainSupportInfo
	if err := check("surface capabilities", vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &support.Capabilities)); err != nil {
		return support, err
	}
	support.Capabilities.Deref()
	support.Capabilities.CurrentExtent.Deref()
	support.Capabilities.MinImageExtent.Deref()
	support.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if err := check("surface formats", vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil)); err != nil {
		return support, err
	}
	if formatCount > 0 {
		support.Formats = make([]vk.SurfaceFormat, formatCount)
		if err := check("surface formats", vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, support.Formats)); err != nil {
			return support, err
		}
		for i := range support.Formats {
			support.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if err := check("present modes", vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, nil)); err != nil {
		return support, err
	}
	if modeCount > 0 {
		support.PresentModes = make([]vk.PresentMode, modeCount)
		if err := check("present modes", vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, support.PresentModes)); err != nil {
			return support, err
		}
	}
	return support, nil
}

func (q VulkanPhysicalDeviceQueueFamilyInfo) String() string {
	return fmt.Sprintf("graphics=%d present=%d", q.GraphicsFamilyIndex, q.PresentFamilyIndex)
}
