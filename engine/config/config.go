package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	Title  string `toml:"title"`
	X      uint32 `toml:"x"`
	Y      uint32 `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	FrameCount   uint32     `toml:"frame_count"`
	SyncInterval int        `toml:"sync_interval"`
	ClearColour  [4]float32 `toml:"clear_colour"`
	// Validation turns on the Vulkan validation layer when it is installed.
	Validation            bool    `toml:"validation"`
	PreferHighPerformance bool    `toml:"prefer_high_performance"`
	FieldOfView           float32 `toml:"fov_degrees"`
	Near                  float32 `toml:"near"`
	Far                   float32 `toml:"far"`
}

type AssetsConfig struct {
	Mesh    string `toml:"mesh"`
	Shader  string `toml:"shader"`
	Texture string `toml:"texture"`
	// HotReload watches the shader file and rebuilds the pipeline on save.
	HotReload bool `toml:"hot_reload"`
}

type InputConfig struct {
	ScaleStep  float32 `toml:"scale_step"`
	ScaleMin   float32 `toml:"scale_min"`
	ScaleMax   float32 `toml:"scale_max"`
	YawStep    float32 `toml:"yaw_step"`
	AutoRotate float32 `toml:"auto_rotate"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	Input    InputConfig    `toml:"input"`
	Log      LogConfig      `toml:"log"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:  "UsU Engine (Vulkan)",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			FrameCount:            2,
			SyncInterval:          1,
			ClearColour:           [4]float32{0, 0, 1, 1},
			PreferHighPerformance: true,
			FieldOfView:           60,
			Near:                  0.1,
			Far:                   100,
		},
		Assets: AssetsConfig{
			Mesh:      "assets/mesh/cube.obj",
			Shader:    "assets/shaders/mesh.wgsl",
			HotReload: true,
		},
		Input: InputConfig{
			ScaleStep:  1.0,
			ScaleMin:   0.1,
			ScaleMax:   5.0,
			YawStep:    2.0,
			AutoRotate: 0.5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load overlays the file at path on Default. A missing file yields the
// defaults; a malformed one is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config '%s': %w", path, err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config '%s': %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML into cfg, keeping the fields the document omits.
// Unknown keys are rejected so typos do not pass silently.
func Parse(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("line %d column %d: %s", row, col, derr.Error())
		}
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return &ConfigError{Field: "window.width/height", Reason: "must be non-zero"}
	}
	if c.Renderer.FrameCount < 2 || c.Renderer.FrameCount > 3 {
		return &ConfigError{Field: "renderer.frame_count", Reason: "must be 2 or 3"}
	}
	if c.Renderer.SyncInterval < 0 || c.Renderer.SyncInterval > 4 {
		return &ConfigError{Field: "renderer.sync_interval", Reason: "must be in [0, 4]"}
	}
	for _, ch := range c.Renderer.ClearColour {
		if ch < 0 || ch > 1 {
			return &ConfigError{Field: "renderer.clear_colour", Reason: "channels must be in [0, 1]"}
		}
	}
	if c.Renderer.FieldOfView <= 0 || c.Renderer.FieldOfView >= 180 {
		return &ConfigError{Field: "renderer.fov_degrees", Reason: "must be in (0, 180)"}
	}
	if c.Renderer.Near <= 0 || c.Renderer.Far <= c.Renderer.Near {
		return &ConfigError{Field: "renderer.near/far", Reason: "need 0 < near < far"}
	}
	if c.Assets.Shader == "" {
		return &ConfigError{Field: "assets.shader", Reason: "must be set"}
	}
	if c.Input.ScaleMin <= 0 || c.Input.ScaleMin >= c.Input.ScaleMax {
		return &ConfigError{Field: "input.scale_min/scale_max", Reason: "need 0 < min < max"}
	}
	if c.Input.ScaleStep <= 0 {
		return &ConfigError{Field: "input.scale_step", Reason: "must be positive"}
	}
	if c.Input.YawStep <= 0 {
		return &ConfigError{Field: "input.yaw_step", Reason: "must be positive"}
	}
	return nil
}

// ConfigError names the offending key.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Field + " " + e.Reason
}
