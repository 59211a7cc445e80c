package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/spaghettifunk/usu/engine/assets"
	"github.com/spaghettifunk/usu/engine/config"
	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/math"
	"github.com/spaghettifunk/usu/engine/platform"
	"github.com/spaghettifunk/usu/engine/renderer"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
	"github.com/spaghettifunk/usu/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine has released everything
	EngineStageStopped
)

// window is the part of the platform the loop drives.
type window interface {
	PumpMessages() bool
	WaitMessages()
	FramebufferSize() (uint32, uint32)
	Shutdown() error
}

// frameRenderer is the part of the renderer the loop drives.
type frameRenderer interface {
	LoadPipeline(name, source string) error
	ReloadPipeline(name, source string) error
	LoadMesh(mesh *metadata.Mesh) error
	LoadTexture(name string, img *metadata.ImageData) error
	DrawFrame(mvp math.Mat4) error
	OnResize(width, height uint32) error
	Shutdown() error
}

// Engine is the application context. Everything the frame loop touches
// hangs off it.
type Engine struct {
	config       config.Config
	currentStage Stage
	isRunning    bool
	isSuspended  bool

	events       *core.EventBus
	input        *core.Input
	accumulator  *core.InputAccumulator
	clock        *core.Clock
	metrics      *core.Metrics
	assetManager *assets.AssetManager

	window   window
	backend  *vulkan.VulkanBackend
	renderer frameRenderer
	scene    *Scene

	width    uint32
	height   uint32
	lastTime float64
}

func New(cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		config:       cfg,
		currentStage: EngineStageUninitialized,
		events:       core.NewEventBus(),
		input:        core.NewInput(),
		accumulator: core.NewInputAccumulator(core.InputAccumulatorConfig{
			ScaleRate:  cfg.Input.ScaleStep,
			ScaleMin:   cfg.Input.ScaleMin,
			ScaleMax:   cfg.Input.ScaleMax,
			YawRate:    cfg.Input.YawStep,
			AutoRotate: cfg.Input.AutoRotate,
		}),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		assetManager: am,
		width:        cfg.Window.Width,
		height:       cfg.Window.Height,
	}, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// Initialize opens the window, brings up the GPU and loads the scene.
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageBooting
	e.registerEvents()

	p, err := platform.New(e.events)
	if err != nil {
		return err
	}
	win := e.config.Window
	if err := p.Startup(win.Title, win.X, win.Y, win.Width, win.Height); err != nil {
		return err
	}
	e.window = p
	e.width, e.height = p.FramebufferSize()

	backend, err := vulkan.New(p, win.Title, e.config.Renderer.Validation)
	if err != nil {
		return err
	}
	e.backend = backend

	r := renderer.New(backend, renderer.Options{
		Adapter:      renderer.AdapterPreferences{PreferHighPerformance: e.config.Renderer.PreferHighPerformance},
		FrameCount:   e.config.Renderer.FrameCount,
		SyncInterval: e.config.Renderer.SyncInterval,
		ClearColour:  e.config.Renderer.ClearColour,
	})
	e.renderer = r
	if err := r.Initialize(e.width, e.height); err != nil {
		return err
	}

	scene, err := LoadScene(e.assetManager, e.config)
	if err != nil {
		return err
	}
	if err := e.loadScene(scene); err != nil {
		return err
	}

	if e.config.Assets.HotReload {
		if _, err := e.assetManager.Watch(scene.ShaderPath); err != nil {
			core.LogWarn("Shader hot reload disabled: %s", err)
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// loadScene hands the scene's assets to the renderer.
func (e *Engine) loadScene(scene *Scene) error {
	if err := e.renderer.LoadPipeline(scene.PipelineName, scene.ShaderSource); err != nil {
		return err
	}
	if err := e.renderer.LoadMesh(scene.Mesh); err != nil {
		return err
	}
	if scene.Texture != nil {
		if err := e.renderer.LoadTexture(scene.TextureName, scene.Texture); err != nil {
			core.LogWarn("Texture '%s' not uploaded, keeping white: %s", scene.TextureName, err)
		}
	}
	e.scene = scene
	return nil
}

func (e *Engine) registerEvents() {
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	e.events.Register(core.EVENT_CODE_KEY_RELEASED, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e.onResized)
	e.events.Register(core.EVENT_CODE_ASSET_CHANGED, e.onAssetChanged)
}

// Run drives frames until the window closes, a quit event arrives, ctx is
// cancelled or a frame fails. The returned error is the frame failure.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine run: %w", core.ErrNotInitialized)
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var runErr error
	for e.isRunning {
		select {
		case <-ctx.Done():
			core.LogInfo("Interrupted, shutting down.")
			e.isRunning = false
			continue
		default:
		}

		if !e.window.PumpMessages() {
			e.isRunning = false
			break
		}
		e.drainAssetChanges()

		if e.isSuspended {
			e.window.WaitMessages()
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if err := e.frame(float32(delta)); err != nil {
			core.LogError("Frame failed, shutting down: %s", err)
			runErr = err
			e.isRunning = false
			break
		}

		if e.metrics.Update(delta) {
			core.LogDebug("FPS: %.0f, frame time %.2f ms", e.metrics.FPS(), e.metrics.FrameTime())
		}
		e.lastTime = currentTime
	}
	return runErr
}

// frame advances input by dt seconds and draws once.
func (e *Engine) frame(dt float32) error {
	e.accumulator.Update(e.input, dt)
	mvp := e.scene.ModelViewProjection(e.accumulator.Scale(), e.accumulator.Yaw(), e.aspect())
	err := e.renderer.DrawFrame(mvp)

	// NOTE: Input update/state copying should always be handled
	// after any input should be recorded; I.E. before this line.
	e.input.Update()
	return err
}

func (e *Engine) aspect() float32 {
	if e.height == 0 {
		return 1
	}
	return float32(e.width) / float32(e.height)
}

// drainAssetChanges moves watcher notifications onto the event bus between
// frames, so handlers run on the render thread.
func (e *Engine) drainAssetChanges() {
	for {
		select {
		case path, ok := <-e.assetManager.Changes():
			if !ok {
				return
			}
			e.events.Fire(core.EventContext{Type: core.EVENT_CODE_ASSET_CHANGED, Data: &core.AssetEvent{Path: path}})
		default:
			return
		}
	}
}

// Shutdown drains the GPU and releases everything in reverse order. It is
// safe after a failed Initialize.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageStopped {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var errs []error
	if e.renderer != nil {
		if err := e.renderer.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.backend != nil {
		e.backend.Shutdown()
	}
	if err := e.assetManager.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.window != nil {
		if err := e.window.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	e.events.Shutdown()
	e.currentStage = EngineStageStopped
	return errors.Join(errs...)
}

func (e *Engine) onEvent(context core.EventContext) {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
	}
}

func (e *Engine) onKey(context core.EventContext) {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}

	keyCode := ke.KeyCode
	pressed := context.Type == core.EVENT_CODE_KEY_PRESSED
	e.input.ProcessKey(keyCode, pressed)
	if !pressed {
		return
	}

	switch keyCode {
	case core.KEY_ESCAPE:
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
	case core.KEY_R:
		e.accumulator.Reset()
		core.LogDebug("Transform reset.")
	case core.KEY_F5:
		if e.scene != nil {
			e.reloadShader(e.scene.ShaderPath)
		}
	}
}

func (e *Engine) onResized(context core.EventContext) {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}

	width := se.WindowWidth
	height := se.WindowHeight
	if width == e.width && height == e.height && !e.isSuspended {
		return
	}
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		if !e.isSuspended {
			core.LogInfo("Window minimized, suspending application.")
		}
		e.isSuspended = true
		_ = e.renderer.OnResize(width, height)
		return
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.width = width
	e.height = height
	if err := e.renderer.OnResize(width, height); err != nil {
		core.LogError("Resize to %dx%d failed: %s", width, height, err)
		e.isRunning = false
	}
}

func (e *Engine) onAssetChanged(context core.EventContext) {
	ae, ok := context.Data.(*core.AssetEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	if e.scene == nil || ae.Path != e.scene.ShaderPath {
		return
	}
	e.reloadShader(ae.Path)
}

// reloadShader rebuilds the pipeline from the file on disk. A broken
// shader leaves the running pipeline in place.
func (e *Engine) reloadShader(path string) {
	res, err := e.assetManager.LoadAsset(path, metadata.ResourceTypeShader, nil)
	if err != nil {
		core.LogWarn("Shader reload skipped: %s", err)
		return
	}
	source := res.Data.(string)
	if err := e.renderer.ReloadPipeline(e.scene.PipelineName, source); err != nil {
		return
	}
	e.scene.ShaderSource = source
}
