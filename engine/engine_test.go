package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/usu/engine/config"
	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/math"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

type fakeWindow struct {
	open     int
	waits    int
	shutdown bool
}

func (w *fakeWindow) PumpMessages() bool {
	if w.open <= 0 {
		return false
	}
	w.open--
	return true
}

func (w *fakeWindow) WaitMessages()                     { w.waits++ }
func (w *fakeWindow) FramebufferSize() (uint32, uint32) { return 1280, 720 }
func (w *fakeWindow) Shutdown() error                   { w.shutdown = true; return nil }

type fakeRenderer struct {
	draws     []math.Mat4
	resizes   [][2]uint32
	reloads   []string
	drawErr   error
	reloadErr error
	shutdown  bool
}

func (r *fakeRenderer) LoadPipeline(name, source string) error { return nil }
func (r *fakeRenderer) ReloadPipeline(name, source string) error {
	r.reloads = append(r.reloads, source)
	return r.reloadErr
}
func (r *fakeRenderer) LoadMesh(mesh *metadata.Mesh) error                     { return nil }
func (r *fakeRenderer) LoadTexture(name string, img *metadata.ImageData) error { return nil }
func (r *fakeRenderer) DrawFrame(mvp math.Mat4) error {
	if r.drawErr != nil {
		return r.drawErr
	}
	r.draws = append(r.draws, mvp)
	return nil
}
func (r *fakeRenderer) OnResize(width, height uint32) error {
	r.resizes = append(r.resizes, [2]uint32{width, height})
	return nil
}
func (r *fakeRenderer) Shutdown() error { r.shutdown = true; return nil }

// newTestEngine wires fakes in place of the window and the GPU and loads
// the default triangle with a shader read from a temporary file.
func newTestEngine(t *testing.T, frames int) (*Engine, *fakeWindow, *fakeRenderer) {
	t.Helper()
	shader := filepath.Join(t.TempDir(), "mesh.wgsl")
	require.NoError(t, os.WriteFile(shader, []byte("// v1"), 0o644))

	cfg := config.Default()
	cfg.Assets.Shader = shader
	cfg.Assets.Mesh = ""
	e, err := New(cfg)
	require.NoError(t, err)

	scene, err := LoadScene(e.assetManager, cfg)
	require.NoError(t, err)

	win := &fakeWindow{open: frames}
	rend := &fakeRenderer{}
	e.window = win
	e.renderer = rend
	e.registerEvents()
	require.NoError(t, e.loadScene(scene))
	e.currentStage = EngineStageInitialized
	t.Cleanup(func() { e.Shutdown() })
	return e, win, rend
}

func TestRunDrawsUntilWindowCloses(t *testing.T) {
	e, win, rend := newTestEngine(t, 3)
	require.NoError(t, e.Run(context.Background()))
	assert.Len(t, rend.draws, 3)
	assert.Zero(t, win.open)

	require.NoError(t, e.Shutdown())
	assert.True(t, rend.shutdown)
	assert.True(t, win.shutdown)
	assert.Equal(t, EngineStageStopped, e.Stage())
}

func TestRunRequiresInitialize(t *testing.T) {
	e, err := New(config.Default())
	require.NoError(t, err)
	defer e.Shutdown()
	assert.ErrorIs(t, e.Run(context.Background()), core.ErrNotInitialized)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	e, _, rend := newTestEngine(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))
	assert.Empty(t, rend.draws)
}

func TestRunReturnsFrameFailure(t *testing.T) {
	e, _, rend := newTestEngine(t, 10)
	rend.drawErr = errors.New("device lost")
	err := e.Run(context.Background())
	assert.EqualError(t, err, "device lost")
}

func TestEscapeQuits(t *testing.T) {
	e, _, rend := newTestEngine(t, 100)
	e.isRunning = true
	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_ESCAPE}})
	assert.False(t, e.isRunning)
	assert.Empty(t, rend.draws)
}

func TestHeldKeysDriveTransform(t *testing.T) {
	e, _, _ := newTestEngine(t, 0)
	start := e.accumulator.Scale()

	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_W}})
	require.NoError(t, e.frame(0.1))
	assert.Greater(t, e.accumulator.Scale(), start)

	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_KEY_RELEASED, Data: &core.KeyEvent{KeyCode: core.KEY_W}})
	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_R}})
	assert.Equal(t, start, e.accumulator.Scale())
	assert.Zero(t, e.accumulator.Yaw())
}

func TestMinimizeSuspendsDrawing(t *testing.T) {
	e, win, rend := newTestEngine(t, 2)
	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 0, WindowHeight: 720}})
	assert.True(t, e.isSuspended)

	require.NoError(t, e.Run(context.Background()))
	assert.Empty(t, rend.draws)
	assert.Equal(t, 2, win.waits)
	assert.Equal(t, uint32(1280), e.width, "a zero size is never stored")

	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 800, WindowHeight: 600}})
	assert.False(t, e.isSuspended)
	assert.Equal(t, [][2]uint32{{0, 720}, {800, 600}}, rend.resizes)
	assert.InDelta(t, 800.0/600.0, e.aspect(), 1e-6)
}

func TestShaderChangeReloadsPipeline(t *testing.T) {
	e, _, rend := newTestEngine(t, 0)
	require.NoError(t, os.WriteFile(e.scene.ShaderPath, []byte("// v2"), 0o644))

	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_ASSET_CHANGED, Data: &core.AssetEvent{Path: "/elsewhere/other.wgsl"}})
	assert.Empty(t, rend.reloads)

	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_ASSET_CHANGED, Data: &core.AssetEvent{Path: e.scene.ShaderPath}})
	assert.Equal(t, []string{"// v2"}, rend.reloads)
	assert.Equal(t, "// v2", e.scene.ShaderSource)

	// a rejected shader keeps the previous source
	rend.reloadErr = errors.New("compile failed")
	require.NoError(t, os.WriteFile(e.scene.ShaderPath, []byte("// broken"), 0o644))
	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_F5}})
	assert.Len(t, rend.reloads, 2)
	assert.Equal(t, "// v2", e.scene.ShaderSource)
}

func TestShutdownWithoutInitialize(t *testing.T) {
	e, err := New(config.Default())
	require.NoError(t, err)
	assert.NoError(t, e.Shutdown())
	assert.NoError(t, e.Shutdown())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Renderer.FrameCount = 7
	_, err := New(cfg)
	assert.Error(t, err)
}
