package core

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexStrides(t *testing.T) {
	assert.Equal(t, uint32(44), VertexStride)
	assert.Equal(t, uint32(68), AnimatedVertexStride)

	mesh := MeshData{
		Vertices: make([]Vertex, 3),
		Indices:  []uint32{0, 1, 2},
	}
	assert.Len(t, mesh.VertexBytes(), 3*44)
	assert.Len(t, mesh.IndexBytes(), 12)
	assert.Nil(t, MeshData{}.VertexBytes())
}

func TestTransformMatrix(t *testing.T) {
	tr := NewTransform()
	assert.True(t, tr.GetMatrix().ApproxEqual(mgl32.Ident4()))

	tr.Position = mgl32.Vec3{1, 2, 3}
	tr.Scale = mgl32.Vec3{2, 2, 2}
	p := tr.GetMatrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDeltaSlice(t, []float32{3, 2, 3, 1}, p[:], 1e-5)

	tr.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	fwd := tr.GetForward()
	assert.InDeltaSlice(t, []float32{-1, 0, 0}, fwd[:], 1e-5)
}

func TestLoadEngineConfig(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadEngineConfig(filepath.Join(t.TempDir(), "nope.toml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultEngineConfig(), cfg)
	})

	t.Run("file overlays defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "engine.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[window]
width = 640
title = "test"

[render]
samples = 8

[log]
level = "debug"
`), 0o644))

		cfg, err := LoadEngineConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 640, cfg.Window.Width)
		assert.Equal(t, 720, cfg.Window.Height)
		assert.Equal(t, "test", cfg.Window.Title)
		assert.Equal(t, uint32(8), cfg.Render.Samples)
		assert.Equal(t, 2, cfg.Render.ColorAttachments)

		level, err := cfg.Log.SlogLevel()
		require.NoError(t, err)
		assert.Equal(t, slog.LevelDebug, level)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "engine.toml")
		require.NoError(t, os.WriteFile(path, []byte("[window\n"), 0o644))
		_, err := LoadEngineConfig(path)
		assert.Error(t, err)
	})
}

func TestEngineConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EngineConfig)
	}{
		{"zero width", func(c *EngineConfig) { c.Window.Width = 0 }},
		{"samples not power of two", func(c *EngineConfig) { c.Render.Samples = 3 }},
		{"samples too high", func(c *EngineConfig) { c.Render.Samples = 128 }},
		{"no color attachments", func(c *EngineConfig) { c.Render.ColorAttachments = 0 }},
		{"bad log level", func(c *EngineConfig) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, DefaultEngineConfig().Validate())
}

func TestSetLogger(t *testing.T) {
	assert.False(t, Logger().Enabled(context.Background(), slog.LevelError))

	SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	assert.True(t, Logger().Enabled(context.Background(), slog.LevelInfo))

	SetLogger(nil)
	assert.False(t, Logger().Enabled(context.Background(), slog.LevelError))
}
