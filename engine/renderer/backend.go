package renderer

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

type AdapterType int

const (
	AdapterTypeOther AdapterType = iota
	AdapterTypeDiscrete
	AdapterTypeIntegrated
	AdapterTypeVirtual
	AdapterTypeCPU
)

func (t AdapterType) String() string {
	switch t {
	case AdapterTypeDiscrete:
		return "discrete"
	case AdapterTypeIntegrated:
		return "integrated"
	case AdapterTypeVirtual:
		return "virtual"
	case AdapterTypeCPU:
		return "cpu"
	}
	return "other"
}

// AdapterInfo describes one physical GPU as reported by the backend.
type AdapterInfo struct {
	Index            int
	Name             string
	Type             AdapterType
	APIVersion       uint32
	SupportsGraphics bool
	SupportsPresent  bool
	// DeviceLocalMemory is the largest device-local heap in bytes.
	DeviceLocalMemory uint64
}

// SwapchainInfo is what the surface actually granted.
type SwapchainInfo struct {
	ImageCount uint32
	Width      uint32
	Height     uint32
}

type BufferUsage int

const (
	BufferUsageVertex BufferUsage = iota
	BufferUsageIndex
	BufferUsageUniform
)

type BufferDesc struct {
	Name        string
	Size        uint64
	Usage       BufferUsage
	HostVisible bool
}

type TextureDesc struct {
	Name    string
	Width   uint32
	Height  uint32
	Sampler metadata.SamplerDesc
}

// Buffer is a GPU buffer in CPU-writable memory.
type Buffer interface {
	ID() uuid.UUID
	Size() uint64
	Usage() BufferUsage
	State() metadata.ResourceState
	// Map returns the buffer memory; the slice is only valid until Unmap.
	Map() ([]byte, error)
	Unmap()
	Release()
}

// Texture is a sampled RGBA8 2D image plus the binding that exposes it to
// the fragment stage.
type Texture interface {
	ID() uuid.UUID
	Width() uint32
	Height() uint32
	State() metadata.ResourceState
	WritePixels(pixels []uint8) error
	Release()
}

// Pipeline is an immutable graphics pipeline built from a PipelineDesc.
type Pipeline interface {
	ID() uuid.UUID
	Desc() metadata.PipelineDesc
	Release()
}

// CommandList records the commands of one frame.
type CommandList interface {
	Reset() error
	Begin() error
	SetViewport(width, height uint32)
	SetScissor(width, height uint32)
	TransitionSwapImage(imageIndex uint32, from, to metadata.ResourceState)
	BeginRendering(imageIndex uint32, clearColour [4]float32)
	BindPipeline(pipeline Pipeline)
	BindVertexBuffer(view VertexBufferView)
	BindIndexBuffer(view IndexBufferView)
	BindFrameConstants(buffer Buffer, offset uint64)
	BindTexture(texture Texture)
	DrawIndexed(indexCount uint32)
	EndRendering()
	End() error
	Release()
}

// Backend is the GPU API the renderer core drives. The Vulkan package
// provides the production implementation.
type Backend interface {
	EnumerateAdapters() ([]AdapterInfo, error)
	CreateDevice(adapter AdapterInfo) error
	DestroyDevice()

	// SignalFence enqueues a signal of value on the graphics queue.
	SignalFence(value uint64) error
	CompletedFenceValue() (uint64, error)
	// WaitFence blocks until the completed value reaches value.
	WaitFence(value uint64) error

	CreateSwapchain(width, height uint32, imageCount uint32, syncInterval int) (SwapchainInfo, error)
	DestroySwapchain()
	// AcquireNextImage asks the surface which image is rendered next.
	AcquireNextImage() (uint32, error)
	Present(imageIndex uint32, syncInterval int) error

	CreateCommandList() (CommandList, error)
	Submit(list CommandList, imageIndex uint32) error

	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateTexture(desc TextureDesc) (Texture, error)
	CreatePipeline(desc metadata.PipelineDesc) (Pipeline, error)
}

// VertexBufferView is what a draw binds for vertex fetch.
type VertexBufferView struct {
	Buffer      Buffer
	Stride      uint32
	SizeInBytes uint64
}

type IndexFormat int

const (
	IndexFormatUint32 IndexFormat = iota
)

type IndexBufferView struct {
	Buffer      Buffer
	Format      IndexFormat
	SizeInBytes uint64
	Count       uint32
}
