package core

import (
	"github.com/spaghettifunk/usu/engine/math"
)

// Key code definitions
type KeyCode uint16

const (
	KEY_UNKNOWN  KeyCode = 0x00
	KEY_ENTER    KeyCode = 0x0D
	KEY_ESCAPE   KeyCode = 0x1B
	KEY_SPACE    KeyCode = 0x20
	KEY_LEFT     KeyCode = 0x25
	KEY_UP       KeyCode = 0x26
	KEY_RIGHT    KeyCode = 0x27
	KEY_DOWN     KeyCode = 0x28
	KEY_A        KeyCode = 0x41
	KEY_D        KeyCode = 0x44
	KEY_R        KeyCode = 0x52
	KEY_S        KeyCode = 0x53
	KEY_W        KeyCode = 0x57
	KEY_ADD      KeyCode = 0x6B
	KEY_SUBTRACT KeyCode = 0x6D
	KEY_F5       KeyCode = 0x74
	KEY_PLUS     KeyCode = 0xBB
	KEY_MINUS    KeyCode = 0xBD

	KEYS_MAX_KEYS KeyCode = 0x100
)

// Keyboard state structure
type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// Input holds the current and previous keyboard state.
type Input struct {
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
}

func NewInput() *Input {
	return &Input{}
}

// Update copies the current state to the previous one. Call it once per
// frame, after everything that reads input.
func (i *Input) Update() {
	i.KeyboardPrevious = i.KeyboardCurrent
}

func (i *Input) ProcessKey(key KeyCode, pressed bool) {
	if key >= KEYS_MAX_KEYS {
		return
	}
	i.KeyboardCurrent.Keys[key] = pressed
}

func (i *Input) IsKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && i.KeyboardCurrent.Keys[key]
}

func (i *Input) WasKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && i.KeyboardPrevious.Keys[key]
}

// InputAccumulatorConfig sets the rates (per second) and scale bounds.
type InputAccumulatorConfig struct {
	ScaleRate  float32
	ScaleMin   float32
	ScaleMax   float32
	YawRate    float32
	AutoRotate float32
}

// InputAccumulator turns held keys into the model scale and yaw used by the
// per-frame transform. Scale saturates at the configured bounds and yaw stays
// in [-π, π].
type InputAccumulator struct {
	config InputAccumulatorConfig
	scale  float32
	yaw    float32
}

func NewInputAccumulator(config InputAccumulatorConfig) *InputAccumulator {
	return &InputAccumulator{
		config: config,
		scale:  math.Clamp(1.0, config.ScaleMin, config.ScaleMax),
	}
}

// Deltas maps the held keys to scale and yaw deltas for a frame of dt seconds.
func (a *InputAccumulator) Deltas(in *Input, dt float32) (scaleDelta, yawDelta float32) {
	if in.IsKeyDown(KEY_W) || in.IsKeyDown(KEY_UP) || in.IsKeyDown(KEY_ADD) || in.IsKeyDown(KEY_PLUS) {
		scaleDelta += a.config.ScaleRate * dt
	}
	if in.IsKeyDown(KEY_S) || in.IsKeyDown(KEY_DOWN) || in.IsKeyDown(KEY_SUBTRACT) || in.IsKeyDown(KEY_MINUS) {
		scaleDelta -= a.config.ScaleRate * dt
	}
	if in.IsKeyDown(KEY_A) || in.IsKeyDown(KEY_LEFT) {
		yawDelta -= a.config.YawRate * dt
	}
	if in.IsKeyDown(KEY_D) || in.IsKeyDown(KEY_RIGHT) {
		yawDelta += a.config.YawRate * dt
	}
	yawDelta += a.config.AutoRotate * dt
	return scaleDelta, yawDelta
}

// Apply accumulates the deltas.
func (a *InputAccumulator) Apply(scaleDelta, yawDelta float32) {
	a.scale = math.Clamp(a.scale+scaleDelta, a.config.ScaleMin, a.config.ScaleMax)
	a.yaw = math.WrapAngle(a.yaw + yawDelta)
}

func (a *InputAccumulator) Update(in *Input, dt float32) {
	a.Apply(a.Deltas(in, dt))
}

// Reset puts scale back to 1 and yaw to 0.
func (a *InputAccumulator) Reset() {
	a.scale = math.Clamp(1.0, a.config.ScaleMin, a.config.ScaleMax)
	a.yaw = 0
}

func (a *InputAccumulator) Scale() float32 {
	return a.scale
}

func (a *InputAccumulator) Yaw() float32 {
	return a.yaw
}
