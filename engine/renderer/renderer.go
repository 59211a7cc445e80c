package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/math"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
	"github.com/spaghettifunk/usu/engine/renderer/shader"
)

// Options configures a Renderer.
type Options struct {
	Adapter      AdapterPreferences
	FrameCount   uint32
	SyncInterval int
	ClearColour  [4]float32
	Entries      shader.EntryPoints
}

// Renderer drives one mesh through one pipeline into the swapchain.
type Renderer struct {
	opts Options

	device    *DeviceContext
	presenter *FramePresenter
	builder   *PipelineBuilder
	uploader  *ResourceUploader
	recorder  *FrameRecorder

	meshName  string
	suspended bool
	frames    uint64
}

func New(backend Backend, opts Options) *Renderer {
	if opts.FrameCount == 0 {
		opts.FrameCount = 2
	}
	if opts.Entries.Vertex == "" || opts.Entries.Fragment == "" {
		opts.Entries = shader.DefaultEntryPoints()
	}
	device := NewDeviceContext(backend, opts.Adapter)
	presenter := NewFramePresenter(device, opts.FrameCount, opts.SyncInterval)
	uploader := NewResourceUploader(device)
	return &Renderer{
		opts:      opts,
		device:    device,
		presenter: presenter,
		builder:   NewPipelineBuilder(device, opts.Entries),
		uploader:  uploader,
		recorder:  NewFrameRecorder(device, presenter, uploader),
	}
}

// Initialize creates the device, the swapchain and the per-image resources.
// The placeholder white texture is published until LoadTexture replaces it.
func (r *Renderer) Initialize(width, height uint32) error {
	if err := r.device.Initialize(); err != nil {
		return err
	}
	if err := r.presenter.CreateOrResize(width, height); err != nil {
		return err
	}
	if err := r.allocateFrames(); err != nil {
		return err
	}
	if err := r.uploader.UploadTexture("default_white", metadata.WhiteImage()); err != nil {
		return err
	}
	core.LogInfo("Renderer initialized %dx%d with %d frames in flight.", width, height, r.presenter.ImageCount())
	return nil
}

// allocateFrames sizes the command lists and constant regions to the number
// of images the surface actually granted.
func (r *Renderer) allocateFrames() error {
	count := r.presenter.ImageCount()
	if err := r.recorder.Allocate(count); err != nil {
		return err
	}
	return r.uploader.CreateFrameConstants(count)
}

func (r *Renderer) LoadPipeline(name, source string) error {
	_, err := r.builder.Build(name, source, metadata.VertexLayout())
	return err
}

// ReloadPipeline rebuilds from new source. On failure the running pipeline
// stays in use.
func (r *Renderer) ReloadPipeline(name, source string) error {
	if _, err := r.builder.Rebuild(name, source, metadata.VertexLayout()); err != nil {
		core.LogWarn("Keeping previous pipeline: %s", err)
		return err
	}
	core.LogInfo("Pipeline '%s' reloaded.", name)
	return nil
}

func (r *Renderer) LoadMesh(mesh *metadata.Mesh) error {
	if _, err := r.uploader.UploadMesh(mesh); err != nil {
		return fmt.Errorf("failed to upload mesh '%s': %w", mesh.Name, err)
	}
	r.meshName = mesh.Name
	return nil
}

func (r *Renderer) LoadTexture(name string, img *metadata.ImageData) error {
	return r.uploader.UploadTexture(name, img)
}

// DrawFrame records, submits and presents one frame with the given MVP. A
// minimized window draws nothing.
func (r *Renderer) DrawFrame(mvp math.Mat4) error {
	if r.suspended {
		return nil
	}
	mesh, _ := r.uploader.MeshViews()
	index := r.presenter.FrameIndex()

	if err := r.recorder.Begin(index); err != nil {
		return err
	}
	err := r.recorder.Record(FrameInputs{
		Pipeline:    r.builder.Current(),
		Mesh:        mesh,
		Texture:     r.uploader.Texture(),
		MVP:         mvp,
		ClearColour: r.opts.ClearColour,
	})
	if err != nil {
		r.recorder.Abort()
		return err
	}
	if err := r.recorder.Submit(); err != nil {
		r.recorder.Abort()
		return err
	}

	err = r.presenter.Present(r.opts.SyncInterval)
	if cerr := r.recorder.Complete(); cerr != nil {
		return cerr
	}
	if errors.Is(err, core.ErrSwapchainOutOfDate) {
		core.LogDebug("Swapchain out of date, recreating.")
		w, h := r.presenter.Size()
		return r.recreate(w, h)
	}
	if err != nil {
		return err
	}
	r.frames++
	return nil
}

// OnResize recreates the swapchain. Zero dimensions suspend drawing and
// leave every resource alone.
func (r *Renderer) OnResize(width, height uint32) error {
	if width == 0 || height == 0 {
		r.suspended = true
		return nil
	}
	r.suspended = false
	if w, h := r.presenter.Size(); w == width && h == height {
		return nil
	}
	return r.recreate(width, height)
}

func (r *Renderer) recreate(width, height uint32) error {
	before := r.presenter.ImageCount()
	if err := r.presenter.CreateOrResize(width, height); err != nil {
		return err
	}
	if r.presenter.ImageCount() != before {
		return r.allocateFrames()
	}
	return nil
}

func (r *Renderer) FrameIndex() uint32 {
	return r.presenter.FrameIndex()
}

func (r *Renderer) FramesPresented() uint64 {
	return r.frames
}

func (r *Renderer) Device() *DeviceContext {
	return r.device
}

func (r *Renderer) Presenter() *FramePresenter {
	return r.presenter
}

// Shutdown drains the GPU, then releases everything in reverse creation
// order. It is safe to call on a partially initialized renderer.
func (r *Renderer) Shutdown() error {
	var errs []error
	if r.device.initialized {
		if err := r.device.SignalAndWait(); err != nil {
			errs = append(errs, err)
		}
	}
	r.recorder.Release()
	r.uploader.Release()
	r.builder.Release()
	if err := r.presenter.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := r.device.Close(); err != nil {
		errs = append(errs, err)
	}
	core.LogInfo("Renderer shut down after %d frames.", r.frames)
	return errors.Join(errs...)
}
