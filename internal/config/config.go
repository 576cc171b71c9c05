// Package config handles viewer and tool configuration loading.
package config

import (
	"errors"
	"fmt"
)

// Config holds all settings.
type Config struct {
	Graphics  GraphicsConfig  `yaml:"graphics"`
	Device    DeviceConfig    `yaml:"device"`
	Animation AnimationConfig `yaml:"animation"`
	Assets    AssetsConfig    `yaml:"assets"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GraphicsConfig holds display settings.
type GraphicsConfig struct {
	Width      int        `yaml:"width"`
	Height     int        `yaml:"height"`
	Fullscreen bool       `yaml:"fullscreen"`
	VSync      bool       `yaml:"vsync"`
	FPSLimit   int        `yaml:"fps_limit"`
	ClearColor [4]float32 `yaml:"clear_color"`
	// Sun angles in degrees for the key light.
	SunLongitude float32 `yaml:"sun_longitude"`
	SunLatitude  float32 `yaml:"sun_latitude"`
	// ScreenshotDir receives F12 captures.
	ScreenshotDir string `yaml:"screenshot_dir"`
}

// Device backends.
const (
	BackendGL     = "gl"
	BackendMemory = "memory"
)

// DeviceConfig selects the device and the binding points of the skinning
// program.
type DeviceConfig struct {
	Backend           string `yaml:"backend"`
	MaxBones          int    `yaml:"max_bones"`
	BoneBindPoint     int32  `yaml:"bone_bind_point"`
	MaterialBindPoint int32  `yaml:"material_bind_point"`
	TextureUnit       int32  `yaml:"texture_unit"`
}

// AnimationConfig holds playback settings.
type AnimationConfig struct {
	Clip  string  `yaml:"clip"` // played on load, if set
	Loop  bool    `yaml:"loop"`
	Speed float64 `yaml:"speed"`
}

// AssetsConfig holds asset file paths.
type AssetsConfig struct {
	RigPath      string   `yaml:"rig_path"`
	TexturePaths []string `yaml:"texture_paths"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:         1280,
			Height:        720,
			Fullscreen:    false,
			VSync:         true,
			FPSLimit:      0,
			ClearColor:    [4]float32{0.1, 0.1, 0.12, 1},
			SunLongitude:  30,
			SunLatitude:   60,
			ScreenshotDir: "screenshots",
		},
		Device: DeviceConfig{
			Backend:           BackendGL,
			MaxBones:          100,
			BoneBindPoint:     0,
			MaterialBindPoint: 1,
			TextureUnit:       0,
		},
		Animation: AnimationConfig{
			Loop:  true,
			Speed: 1,
		},
		Assets: AssetsConfig{
			RigPath: "rig.yaml",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

var (
	ErrUnknownBackend = errors.New("unknown device backend")
	ErrBindPoint      = errors.New("uniform blocks share a binding point")
)

// Validate checks settings that would otherwise fail deep inside the
// renderer.
func (c *Config) Validate() error {
	switch c.Device.Backend {
	case BackendGL, BackendMemory:
	default:
		return fmt.Errorf("device.backend %q: %w", c.Device.Backend, ErrUnknownBackend)
	}
	if c.Device.MaxBones <= 0 {
		return fmt.Errorf("device.max_bones must be positive, got %d", c.Device.MaxBones)
	}
	bp, mp := c.Device.BoneBindPoint, c.Device.MaterialBindPoint
	if bp >= 0 && bp == mp {
		return fmt.Errorf("device: bones and material at %d: %w", bp, ErrBindPoint)
	}
	if c.Graphics.SunLatitude < -90 || c.Graphics.SunLatitude > 90 {
		return fmt.Errorf("graphics.sun_latitude %v outside -90..90", c.Graphics.SunLatitude)
	}
	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		return fmt.Errorf("graphics: invalid size %dx%d", c.Graphics.Width, c.Graphics.Height)
	}
	return nil
}
