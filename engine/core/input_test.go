package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/usu/engine/math"
)

func testAccumulator() *InputAccumulator {
	return NewInputAccumulator(InputAccumulatorConfig{
		ScaleRate: 1,
		ScaleMin:  0.5,
		ScaleMax:  2,
		YawRate:   math.K_PI,
	})
}

func TestInputKeyState(t *testing.T) {
	in := NewInput()
	in.ProcessKey(KEY_W, true)
	assert.True(t, in.IsKeyDown(KEY_W))
	assert.False(t, in.WasKeyDown(KEY_W))

	in.Update()
	assert.True(t, in.WasKeyDown(KEY_W))

	in.ProcessKey(KEYS_MAX_KEYS, true)
	assert.False(t, in.IsKeyDown(KEYS_MAX_KEYS))
}

func TestEveryKeyCanBePressed(t *testing.T) {
	keys := []KeyCode{
		KEY_ENTER, KEY_ESCAPE, KEY_SPACE, KEY_LEFT, KEY_UP, KEY_RIGHT, KEY_DOWN,
		KEY_A, KEY_D, KEY_R, KEY_S, KEY_W, KEY_ADD, KEY_SUBTRACT, KEY_F5,
		KEY_PLUS, KEY_MINUS,
	}
	in := NewInput()
	for _, key := range keys {
		assert.Less(t, key, KEYS_MAX_KEYS)
		in.ProcessKey(key, true)
		assert.True(t, in.IsKeyDown(key), "key 0x%X", key)
		in.ProcessKey(key, false)
		assert.False(t, in.IsKeyDown(key), "key 0x%X", key)
	}
}

func TestScaleSaturates(t *testing.T) {
	acc := testAccumulator()
	in := NewInput()
	in.ProcessKey(KEY_PLUS, true)
	for i := 0; i < 100; i++ {
		acc.Update(in, 0.1)
	}
	assert.Equal(t, float32(2), acc.Scale())

	in.ProcessKey(KEY_PLUS, false)
	in.ProcessKey(KEY_S, true)
	for i := 0; i < 100; i++ {
		acc.Update(in, 0.1)
	}
	assert.Equal(t, float32(0.5), acc.Scale())
}

func TestOpposingKeysCancel(t *testing.T) {
	acc := testAccumulator()
	in := NewInput()
	in.ProcessKey(KEY_W, true)
	in.ProcessKey(KEY_MINUS, true)
	in.ProcessKey(KEY_A, true)
	in.ProcessKey(KEY_RIGHT, true)
	ds, dy := acc.Deltas(in, 1)
	assert.Zero(t, ds)
	assert.Zero(t, dy)
}

func TestYawWraps(t *testing.T) {
	acc := testAccumulator()
	in := NewInput()
	in.ProcessKey(KEY_D, true)
	for i := 0; i < 25; i++ {
		acc.Update(in, 0.1)
		assert.LessOrEqual(t, acc.Yaw(), math.K_PI)
		assert.GreaterOrEqual(t, acc.Yaw(), -math.K_PI)
	}
	// 2.5 turns of half a circle each second lands on +π/2
	assert.InDelta(t, math.K_HALF_PI, acc.Yaw(), 1e-3)

	acc.Reset()
	assert.Equal(t, float32(1), acc.Scale())
	assert.Zero(t, acc.Yaw())
}

func TestAutoRotate(t *testing.T) {
	acc := NewInputAccumulator(InputAccumulatorConfig{ScaleRate: 1, ScaleMin: 0.5, ScaleMax: 2, YawRate: 1, AutoRotate: 0.5})
	_, dy := acc.Deltas(NewInput(), 2)
	assert.InDelta(t, 1.0, dy, 1e-6)
}
