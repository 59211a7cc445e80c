package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/renderer"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

// VulkanBuffer is a buffer with its own memory allocation. Host-visible
// buffers stay mapped from the first Map until Unmap or Release.
type VulkanBuffer struct {
	id      uuid.UUID
	context *VulkanContext
	Name    string
	Handle  vk.Buffer
	Memory  vk.DeviceMemory
	size    uint64
	usage   renderer.BufferUsage
	mapped  []byte
}

func bufferUsageFlags(usage renderer.BufferUsage) vk.BufferUsageFlagBits {
	switch usage {
	case renderer.BufferUsageVertex:
		return vk.BufferUsageVertexBufferBit
	case renderer.BufferUsageIndex:
		return vk.BufferUsageIndexBufferBit
	case renderer.BufferUsageUniform:
		return vk.BufferUsageUniformBufferBit
	}
	return 0
}

func memoryFlags(hostVisible bool) vk.MemoryPropertyFlagBits {
	if hostVisible {
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	return vk.MemoryPropertyDeviceLocalBit
}

func NewVulkanBuffer(context *VulkanContext, desc renderer.BufferDesc) (*VulkanBuffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer '%s': %w", desc.Name, core.ErrZeroDimension)
	}
	usage := bufferUsageFlags(desc.Usage)
	if !desc.HostVisible {
		usage |= vk.BufferUsageTransferDstBit
	}
	handle, memory, err := createBuffer(context, desc.Size, vk.BufferUsageFlags(usage), vk.MemoryPropertyFlags(memoryFlags(desc.HostVisible)))
	if err != nil {
		return nil, fmt.Errorf("buffer '%s': %w", desc.Name, err)
	}
	return &VulkanBuffer{
		id:      core.NewResourceID(),
		context: context,
		Name:    desc.Name,
		Handle:  handle,
		Memory:  memory,
		size:    desc.Size,
		usage:   desc.Usage,
	}, nil
}

func createBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (vk.Buffer, vk.DeviceMemory, error) {
	device := context.Device.LogicalDevice
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := check("create buffer", vk.CreateBuffer(device, &info, context.Allocator, &buffer)); err != nil {
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer, &requirements)
	requirements.Deref()

	index, err := context.FindMemoryIndex(requirements.MemoryTypeBits, properties)
	if err != nil {
		vk.DestroyBuffer(device, buffer, context.Allocator)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: index,
	}
	var memory vk.DeviceMemory
	if err := check("allocate buffer memory", vk.AllocateMemory(device, &allocInfo, context.Allocator, &memory)); err != nil {
		vk.DestroyBuffer(device, buffer, context.Allocator)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	if err := check("bind buffer memory", vk.BindBufferMemory(device, buffer, memory, 0)); err != nil {
		vk.FreeMemory(device, memory, context.Allocator)
		vk.DestroyBuffer(device, buffer, context.Allocator)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	return buffer, memory, nil
}

func (b *VulkanBuffer) ID() uuid.UUID { return b.id }
func (b *VulkanBuffer) Size() uint64 { return b.size }
func (b *VulkanBuffer) Usage() renderer.BufferUsage { return b.usage }

// State is always generic read: every buffer lives in upload memory.
func (b *VulkanBuffer) State() metadata.ResourceState {
	return metadata.ResourceStateGenericRead
}

func (b *VulkanBuffer) Map() ([]byte, error) {
	if b.mapped != nil {
		return b.mapped, nil
	}
	var data unsafe.Pointer
	if err := check("map memory", vk.MapMemory(b.context.Device.LogicalDevice, b.Memory, 0, vk.DeviceSize(b.size), 0, &data)); err != nil {
		return nil, err
	}
	b.mapped = unsafe.Slice((*byte)(data), b.size)
	return b.mapped, nil
}

func (b *VulkanBuffer) Unmap() {
	if b.mapped == nil {
		return
	}
	vk.UnmapMemory(b.context.Device.LogicalDevice, b.Memory)
	b.mapped = nil
}

func (b *VulkanBuffer) Release() {
	if b.Handle == vk.NullBuffer {
		return
	}
	b.Unmap()
	if sig := b.context.Signature; sig != nil {
		sig.ForgetConstants(b.context, b)
	}
	_ = b.context.Locks.SafeCall(ResourceManagement, func() error {
		device := b.context.Device.LogicalDevice
		vk.DestroyBuffer(device, b.Handle, b.context.Allocator)
		vk.FreeMemory(device, b.Memory, b.context.Allocator)
		return nil
	})
	b.Handle = vk.NullBuffer
	b.Memory = vk.NullDeviceMemory
}
