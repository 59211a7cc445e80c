package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/usu/engine/core"
)

func TestTranslateKey(t *testing.T) {
	assert.Equal(t, core.KEY_PLUS, translateKey(glfw.KeyEqual))
	assert.Equal(t, core.KEY_ADD, translateKey(glfw.KeyKPAdd))
	assert.Equal(t, core.KEY_ENTER, translateKey(glfw.KeyKPEnter))
	assert.Equal(t, core.KEY_ESCAPE, translateKey(glfw.KeyEscape))
	assert.Equal(t, core.KEY_UNKNOWN, translateKey(glfw.KeyQ))
}

func TestCallbacksFireEvents(t *testing.T) {
	bus := core.NewEventBus()
	p, err := New(bus)
	require.NoError(t, err)

	var pressed, released []core.KeyCode
	var resized *core.SystemEvent
	quit := false
	bus.Register(core.EVENT_CODE_KEY_PRESSED, func(ctx core.EventContext) {
		pressed = append(pressed, ctx.Data.(*core.KeyEvent).KeyCode)
	})
	bus.Register(core.EVENT_CODE_KEY_RELEASED, func(ctx core.EventContext) {
		released = append(released, ctx.Data.(*core.KeyEvent).KeyCode)
	})
	bus.Register(core.EVENT_CODE_RESIZED, func(ctx core.EventContext) {
		resized = ctx.Data.(*core.SystemEvent)
	})
	bus.Register(core.EVENT_CODE_APPLICATION_QUIT, func(core.EventContext) { quit = true })

	p.keyCallback(nil, glfw.KeyW, 0, glfw.Press, 0)
	p.keyCallback(nil, glfw.KeyW, 0, glfw.Repeat, 0)
	p.keyCallback(nil, glfw.KeyW, 0, glfw.Release, 0)
	p.keyCallback(nil, glfw.KeyQ, 0, glfw.Press, 0)
	p.framebufferSizeCallback(nil, 640, 0)
	p.closeCallback(nil)

	assert.Equal(t, []core.KeyCode{core.KEY_W}, pressed)
	assert.Equal(t, []core.KeyCode{core.KEY_W}, released)
	require.NotNil(t, resized)
	assert.Equal(t, uint32(640), resized.WindowWidth)
	assert.Equal(t, uint32(0), resized.WindowHeight)
	assert.True(t, quit)
}

func TestNewRequiresEventBus(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, core.ErrNotInitialized)
}
