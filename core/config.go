package core

import (
	"log/slog"
	"math/bits"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

// EngineConfig is the demo and engine configuration, read from TOML.
type EngineConfig struct {
	Window WindowConfig `toml:"window"`
	Render RenderConfig `toml:"render"`
	Log    LogConfig    `toml:"log"`
	Assets AssetConfig  `toml:"assets"`
}

type WindowConfig struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	Title      string `toml:"title"`
	Resizable  bool   `toml:"resizable"`
	VSync      bool   `toml:"vsync"`
	Fullscreen bool   `toml:"fullscreen"`
}

func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Width:      1280,
		Height:     720,
		Title:      "vkframe",
		Resizable:  true,
		VSync:      true,
		Fullscreen: false,
	}
}

type RenderConfig struct {
	// Samples is the requested MSAA sample count; it is clamped to what the
	// device supports.
	Samples          uint32     `toml:"samples"`
	ColorAttachments int        `toml:"color_attachments"`
	ClearColor       [4]float32 `toml:"clear_color"`
	Validation       bool       `toml:"validation"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type AssetConfig struct {
	ShaderDir string `toml:"shader_dir"`
	Scene     string `toml:"scene"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Window: DefaultWindowConfig(),
		Render: RenderConfig{
			Samples:          4,
			ColorAttachments: 2,
			ClearColor:       [4]float32{0.05, 0.05, 0.08, 1},
			Validation:       true,
		},
		Log: LogConfig{Level: "info"},
		Assets: AssetConfig{
			ShaderDir: "shaders",
			Scene:     "scene.yaml",
		},
	}
}

// LoadEngineConfig reads path over the defaults. A missing file yields the
// defaults unchanged.
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

func (c EngineConfig) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.Newf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if s := c.Render.Samples; s == 0 || s > 64 || bits.OnesCount32(s) != 1 {
		return errors.Newf("render.samples %d must be a power of two between 1 and 64", s)
	}
	if n := c.Render.ColorAttachments; n < 1 || n > 8 {
		return errors.Newf("render.color_attachments %d must be between 1 and 8", n)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Level as a slog level name ("debug", "info", "warn",
// "error").
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, errors.Wrapf(err, "log.level %q", c.Level)
	}
	return level, nil
}
