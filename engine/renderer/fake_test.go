package renderer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

// fakeBackend is an in-memory Backend. Every call is appended to calls so
// tests can assert on ordering; the GPU completes work after lag signals.
type fakeBackend struct {
	adapters []AdapterInfo
	calls    []string

	signaled  uint64
	completed uint64
	lag       int
	pending   []uint64

	imageCount   uint32
	grantImages  uint32
	current      uint32
	swapchain    bool
	width        uint32
	height       uint32
	outOfDate    bool
	failPipeline bool
	failBind     bool

	buffers   []*fakeBuffer
	textures  []*fakeTexture
	pipelines []*fakePipeline
	lists     []*fakeCommandList
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		adapters: []AdapterInfo{
			{Index: 0, Name: "fake gpu", Type: AdapterTypeDiscrete, SupportsGraphics: true, SupportsPresent: true},
		},
	}
}

func (f *fakeBackend) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeBackend) EnumerateAdapters() ([]AdapterInfo, error) {
	f.record("enumerate")
	return f.adapters, nil
}

func (f *fakeBackend) CreateDevice(adapter AdapterInfo) error {
	f.record("create_device %s", adapter.Name)
	return nil
}

func (f *fakeBackend) DestroyDevice() {
	f.record("destroy_device")
}

func (f *fakeBackend) SignalFence(value uint64) error {
	f.record("signal %d", value)
	f.signaled = value
	f.pending = append(f.pending, value)
	for len(f.pending) > f.lag {
		f.completed = f.pending[0]
		f.pending = f.pending[1:]
	}
	return nil
}

func (f *fakeBackend) CompletedFenceValue() (uint64, error) {
	return f.completed, nil
}

func (f *fakeBackend) WaitFence(value uint64) error {
	f.record("wait %d", value)
	for len(f.pending) > 0 && f.completed < value {
		f.completed = f.pending[0]
		f.pending = f.pending[1:]
	}
	if f.completed < value {
		return errors.New("waiting on a value that was never signaled")
	}
	return nil
}

func (f *fakeBackend) CreateSwapchain(width, height uint32, imageCount uint32, syncInterval int) (SwapchainInfo, error) {
	f.record("create_swapchain %dx%d", width, height)
	f.swapchain = true
	f.width, f.height = width, height
	f.imageCount = imageCount
	if f.grantImages > 0 {
		f.imageCount = f.grantImages
	}
	f.current = f.imageCount - 1
	return SwapchainInfo{ImageCount: f.imageCount, Width: width, Height: height}, nil
}

func (f *fakeBackend) DestroySwapchain() {
	f.record("destroy_swapchain")
	f.swapchain = false
}

func (f *fakeBackend) AcquireNextImage() (uint32, error) {
	f.current = (f.current + 1) % f.imageCount
	f.record("acquire %d", f.current)
	return f.current, nil
}

func (f *fakeBackend) Present(imageIndex uint32, syncInterval int) error {
	f.record("present %d", imageIndex)
	if f.outOfDate {
		f.outOfDate = false
		return core.ErrSwapchainOutOfDate
	}
	return nil
}

func (f *fakeBackend) CreateCommandList() (CommandList, error) {
	l := &fakeCommandList{backend: f, index: len(f.lists)}
	f.lists = append(f.lists, l)
	f.record("create_command_list")
	return l, nil
}

func (f *fakeBackend) Submit(list CommandList, imageIndex uint32) error {
	f.record("submit %d", imageIndex)
	return nil
}

func (f *fakeBackend) CreateBuffer(desc BufferDesc) (Buffer, error) {
	f.record("create_buffer %s %d", desc.Name, desc.Size)
	b := &fakeBuffer{id: uuid.New(), desc: desc, data: make([]byte, desc.Size)}
	f.buffers = append(f.buffers, b)
	return b, nil
}

func (f *fakeBackend) CreateTexture(desc TextureDesc) (Texture, error) {
	f.record("create_texture %s", desc.Name)
	t := &fakeTexture{id: uuid.New(), desc: desc}
	f.textures = append(f.textures, t)
	return t, nil
}

func (f *fakeBackend) CreatePipeline(desc metadata.PipelineDesc) (Pipeline, error) {
	f.record("create_pipeline %s", desc.Name)
	if f.failPipeline {
		return nil, errors.New("driver rejected pipeline")
	}
	p := &fakePipeline{id: uuid.New(), desc: desc}
	f.pipelines = append(f.pipelines, p)
	return p, nil
}

// resetCalls clears the call log, usually after setup.
func (f *fakeBackend) resetCalls() {
	f.calls = nil
}

type fakeBuffer struct {
	id       uuid.UUID
	desc     BufferDesc
	data     []byte
	mapped   bool
	released bool
}

func (b *fakeBuffer) ID() uuid.UUID { return b.id }
func (b *fakeBuffer) Size() uint64 { return b.desc.Size }
func (b *fakeBuffer) Usage() BufferUsage { return b.desc.Usage }
func (b *fakeBuffer) State() metadata.ResourceState { return metadata.ResourceStateGenericRead }
func (b *fakeBuffer) Map() ([]byte, error) {
	b.mapped = true
	return b.data, nil
}
func (b *fakeBuffer) Unmap() { b.mapped = false }
func (b *fakeBuffer) Release() { b.released = true }

type fakeTexture struct {
	id       uuid.UUID
	desc     TextureDesc
	pixels   []uint8
	released bool
}

func (t *fakeTexture) ID() uuid.UUID { return t.id }
func (t *fakeTexture) Width() uint32 { return t.desc.Width }
func (t *fakeTexture) Height() uint32 { return t.desc.Height }
func (t *fakeTexture) State() metadata.ResourceState { return metadata.ResourceStateShaderResource }
func (t *fakeTexture) WritePixels(pixels []uint8) error {
	t.pixels = append([]uint8(nil), pixels...)
	return nil
}
func (t *fakeTexture) Release() { t.released = true }

type fakePipeline struct {
	id       uuid.UUID
	desc     metadata.PipelineDesc
	released bool
}

func (p *fakePipeline) ID() uuid.UUID { return p.id }
func (p *fakePipeline) Desc() metadata.PipelineDesc { return p.desc }
func (p *fakePipeline) Release() { p.released = true }

// fakeCommandList logs commands into its own slice.
type fakeCommandList struct {
	backend  *fakeBackend
	index    int
	commands []string
	released bool
	err      error
}

func (l *fakeCommandList) add(format string, args ...interface{}) {
	l.commands = append(l.commands, fmt.Sprintf(format, args...))
}

func (l *fakeCommandList) Reset() error {
	l.commands = nil
	l.err = nil
	return nil
}
func (l *fakeCommandList) Begin() error { l.add("begin"); return nil }
func (l *fakeCommandList) SetViewport(width, height uint32) { l.add("viewport %dx%d", width, height) }
func (l *fakeCommandList) SetScissor(width, height uint32) { l.add("scissor %dx%d", width, height) }
func (l *fakeCommandList) TransitionSwapImage(imageIndex uint32, from, to metadata.ResourceState) {
	l.add("barrier %d %s->%s", imageIndex, from, to)
}
func (l *fakeCommandList) BeginRendering(imageIndex uint32, clearColour [4]float32) {
	l.add("begin_rendering %d", imageIndex)
}
func (l *fakeCommandList) BindPipeline(pipeline Pipeline) { l.add("bind_pipeline") }
func (l *fakeCommandList) BindVertexBuffer(view VertexBufferView) {
	l.add("bind_vertex stride=%d", view.Stride)
}
func (l *fakeCommandList) BindIndexBuffer(view IndexBufferView) {
	l.add("bind_index count=%d", view.Count)
}
func (l *fakeCommandList) BindFrameConstants(buffer Buffer, offset uint64) {
	if l.backend.failBind {
		l.err = fmt.Errorf("constants descriptor: %w", core.ErrCommandRecording)
		return
	}
	l.add("bind_constants %d", offset)
}
func (l *fakeCommandList) BindTexture(texture Texture) { l.add("bind_texture") }
func (l *fakeCommandList) DrawIndexed(indexCount uint32) { l.add("draw %d", indexCount) }
func (l *fakeCommandList) EndRendering() { l.add("end_rendering") }
func (l *fakeCommandList) End() error { l.add("end"); return l.err }
func (l *fakeCommandList) Release() { l.released = true }
