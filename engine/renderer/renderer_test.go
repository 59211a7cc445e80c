package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/math"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

func newTestRenderer(t *testing.T, fb *fakeBackend) *Renderer {
	t.Helper()
	r := New(fb, Options{ClearColour: [4]float32{0, 0, 1, 1}, SyncInterval: 1})
	require.NoError(t, r.Initialize(1280, 720))
	require.NoError(t, r.LoadPipeline("mesh", loadMeshShader(t)))
	require.NoError(t, r.LoadMesh(metadata.DefaultTriangle()))
	return r
}

func TestRendererDrawFrames(t *testing.T) {
	fb := newFakeBackend()
	r := newTestRenderer(t, fb)
	start := r.FrameIndex()

	for n := uint32(1); n <= 5; n++ {
		require.NoError(t, r.DrawFrame(math.NewMat4Identity()))
		assert.Equal(t, (start+n)%2, r.FrameIndex())
	}
	assert.Equal(t, uint64(5), r.FramesPresented())
	assert.Contains(t, fb.lists[0].commands, "draw 3")
	assert.Contains(t, fb.lists[0].commands, "bind_texture")
}

func TestRendererFailedBindFailsFrame(t *testing.T) {
	fb := newFakeBackend()
	r := newTestRenderer(t, fb)
	fb.resetCalls()
	fb.failBind = true

	err := r.DrawFrame(math.NewMat4Identity())
	require.ErrorIs(t, err, core.ErrCommandRecording)
	for _, c := range fb.calls {
		assert.NotContains(t, c, "submit")
		assert.NotContains(t, c, "present")
	}
	assert.Equal(t, uint64(0), r.FramesPresented())

	fb.failBind = false
	require.NoError(t, r.DrawFrame(math.NewMat4Identity()), "recorder is idle again")
}

func TestRendererUsesGrantedImageCount(t *testing.T) {
	fb := newFakeBackend()
	fb.grantImages = 3
	r := newTestRenderer(t, fb)
	assert.Len(t, fb.lists, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.DrawFrame(math.NewMat4Identity()))
	}
	assert.Contains(t, fb.lists[2].commands, "bind_constants 512")
}

func TestRendererZeroResizeSuspends(t *testing.T) {
	fb := newFakeBackend()
	r := newTestRenderer(t, fb)
	fb.resetCalls()

	require.NoError(t, r.OnResize(0, 0))
	require.NoError(t, r.DrawFrame(math.NewMat4Identity()))
	assert.Empty(t, fb.calls)

	require.NoError(t, r.OnResize(1280, 720))
	assert.Empty(t, fb.calls, "same size does not recreate")
	require.NoError(t, r.DrawFrame(math.NewMat4Identity()))
	assert.Contains(t, fb.calls, "present 0")
}

func TestRendererResize(t *testing.T) {
	fb := newFakeBackend()
	r := newTestRenderer(t, fb)
	require.NoError(t, r.DrawFrame(math.NewMat4Identity()))

	require.NoError(t, r.OnResize(800, 600))
	w, h := r.Presenter().Size()
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), h)
	assert.GreaterOrEqual(t, fb.completed, fb.signaled)

	require.NoError(t, r.DrawFrame(math.NewMat4Identity()))
	assert.Contains(t, fb.lists[r.FrameIndex()^1].commands, "viewport 800x600")
}

func TestRendererRecreatesOutOfDateSwapchain(t *testing.T) {
	fb := newFakeBackend()
	r := newTestRenderer(t, fb)
	fb.outOfDate = true
	fb.resetCalls()

	require.NoError(t, r.DrawFrame(math.NewMat4Identity()))
	assert.Contains(t, fb.calls, "destroy_swapchain")
	assert.Contains(t, fb.calls, "create_swapchain 1280x720")
	assert.Equal(t, RecorderIdle, r.recorder.State())

	require.NoError(t, r.DrawFrame(math.NewMat4Identity()))
}

func TestRendererReloadKeepsPipelineOnError(t *testing.T) {
	fb := newFakeBackend()
	r := newTestRenderer(t, fb)
	before := r.builder.Current()

	assert.Error(t, r.ReloadPipeline("mesh", "not wgsl"))
	assert.Same(t, before, r.builder.Current())
	require.NoError(t, r.DrawFrame(math.NewMat4Identity()))
}

func TestRendererShutdown(t *testing.T) {
	fb := newFakeBackend()
	fb.lag = 1
	r := newTestRenderer(t, fb)
	require.NoError(t, r.DrawFrame(math.NewMat4Identity()))

	require.NoError(t, r.Shutdown())
	assert.Equal(t, fb.signaled, fb.completed)
	assert.False(t, fb.swapchain)
	assert.Equal(t, "destroy_device", fb.calls[len(fb.calls)-1])
	for _, b := range fb.buffers {
		assert.True(t, b.released)
	}
	for _, l := range fb.lists {
		assert.True(t, l.released)
	}
	assert.True(t, fb.pipelines[0].released)

	assert.NoError(t, r.Shutdown())
}
