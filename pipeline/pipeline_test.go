package pipeline

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkframe/descriptor"
	"vkframe/gpu"
	"vkframe/gpu/gputest"
)

func spirv(words ...uint32) []byte {
	code := binary.LittleEndian.AppendUint32(nil, spirvMagic)
	for _, w := range words {
		code = binary.LittleEndian.AppendUint32(code, w)
	}
	return code
}

func TestVertexLayouts(t *testing.T) {
	assert.Equal(t, uint32(44), Static.Stride())
	assert.Equal(t, uint32(68), Animated.Stride())

	var offsets []uint32
	for _, a := range Static.Attributes() {
		offsets = append(offsets, a.Offset)
	}
	assert.Equal(t, []uint32{0, 12, 24, 32}, offsets)

	animated := Animated.Attributes()
	require.Len(t, animated, 6)
	assert.Equal(t, Static.Attributes(), animated[:4])
	assert.Equal(t, gpu.VertexAttribute{Location: 4, Format: gpu.FormatR32G32B32Sint, Offset: 44}, animated[4])
	assert.Equal(t, gpu.VertexAttribute{Location: 5, Format: gpu.FormatR32G32B32Sfloat, Offset: 56}, animated[5])
	assert.Len(t, Static.Attributes(), 4, "animated layout must not alias the static one")
}

func TestLoadProgram(t *testing.T) {
	dir := t.TempDir()
	sig := descriptor.NewSignature(descriptor.Uniform, descriptor.Sampler)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "basic.vert.spv"), spirv(1, 2), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "basic.frag.spv"), spirv(3), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.vert.spv"), []byte("void main() {}"), 0o644))

	p, err := LoadProgram(dir, "basic", sig, 192)
	require.NoError(t, err)
	assert.Equal(t, "basic", p.Name)
	assert.Equal(t, spirv(1, 2), p.Vertex)
	assert.Equal(t, spirv(3), p.Fragment)
	assert.Equal(t, []uint64{192}, p.Uniforms)

	tests := []struct {
		name     string
		program  string
		uniforms []uint64
	}{
		{"missing artifact", "missing", []uint64{192}},
		{"not spir-v", "broken", []uint64{192}},
		{"uniform sizes", "basic", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProgram(dir, tt.program, sig, tt.uniforms...)
			assert.True(t, errors.Is(err, gpu.ErrFatalInit))
		})
	}
}

type caches struct {
	ctx      *gputest.Context
	layouts  *descriptor.LayoutCache
	passes   *RenderPassCache
	cache    *Cache
	program  *Program
	animated *Program
}

func newCaches() *caches {
	ctx := gputest.New(3)
	layouts := descriptor.NewLayoutCache(ctx)
	passes := NewRenderPassCache(ctx)
	sig := descriptor.NewSignature(descriptor.Uniform, descriptor.Sampler)
	return &caches{
		ctx:      ctx,
		layouts:  layouts,
		passes:   passes,
		cache:    NewCache(ctx, layouts, passes),
		program:  &Program{Name: "basic", Vertex: spirv(1), Fragment: spirv(2), Signature: sig},
		animated: &Program{Name: "skinned", Vertex: spirv(1), Fragment: spirv(2), Signature: sig},
	}
}

func TestCacheReturnsSamePipeline(t *testing.T) {
	c := newCaches()
	sig := c.program.Signature
	target := RenderTargetSignature{Samples: gpu.Samples4, ColorAttachments: 2, Present: true}

	a, err := c.cache.GetOrCreate(c.program, Static, sig, target)
	require.NoError(t, err)
	b, err := c.cache.GetOrCreate(c.program, Static, descriptor.NewSignature(descriptor.Uniform, descriptor.Sampler), target)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, c.cache.Len())
	assert.Len(t, c.ctx.Events("create-pipeline"), 1)
	assert.Zero(t, c.ctx.Live("shader"), "shader modules are destroyed after compilation")

	assert.Equal(t, 1, c.layouts.Len(), "pipelines share the entity's set layout")

	variants := []struct {
		name    string
		program *Program
		vertex  VertexLayoutKind
		target  RenderTargetSignature
	}{
		{"other program", c.animated, Static, target},
		{"animated layout", c.program, Animated, target},
		{"sample count", c.program, Static, RenderTargetSignature{Samples: gpu.Samples1, ColorAttachments: 2, Present: true}},
		{"offscreen", c.program, Static, RenderTargetSignature{Samples: gpu.Samples4, ColorAttachments: 2}},
	}
	for _, v := range variants {
		p, err := c.cache.GetOrCreate(v.program, v.vertex, sig, v.target)
		require.NoError(t, err, v.name)
		assert.NotSame(t, a, p, v.name)
	}
	assert.Equal(t, 5, c.cache.Len())
	assert.Equal(t, 3, c.ctx.Live("render-pass"))

	c.cache.Destroy()
	c.passes.Destroy()
	c.layouts.Destroy()
	assert.Zero(t, c.ctx.Live(""))
}

func TestPipelineFixedState(t *testing.T) {
	c := newCaches()
	target := RenderTargetSignature{Samples: gpu.Samples8, ColorAttachments: 1, Present: true}
	p, err := c.cache.GetOrCreate(c.program, Animated, c.program.Signature, target)
	require.NoError(t, err)

	info := c.ctx.Pipelines[p.Handle]
	assert.Equal(t, gpu.FixedFunction{
		CullBack:       true,
		FrontClockwise: true,
		DepthTest:      true,
		DepthWrite:     true,
		DepthCompare:   gpu.CompareLess,
	}, info.State)
	assert.Equal(t, uint32(68), info.Stride)
	assert.Equal(t, gpu.Samples8, info.Samples)
	assert.Equal(t, p.Layout, info.Layout)
	assert.Equal(t, p.RenderPass, info.RenderPass)

	rp := c.ctx.RenderPasses[p.RenderPass]
	assert.Equal(t, gpu.FormatB8G8R8A8Srgb, rp.ColorFormat)
	assert.Equal(t, gpu.FormatD32Sfloat, rp.DepthFormat)
	assert.True(t, rp.Present)
}

func TestCacheRejectsForeignSignature(t *testing.T) {
	c := newCaches()
	_, err := c.cache.GetOrCreate(c.program, Static, descriptor.NewSignature(descriptor.Uniform), RenderTargetSignature{Samples: gpu.Samples1, ColorAttachments: 1})
	assert.True(t, errors.Is(err, descriptor.ErrSignatureMismatch))
	assert.Zero(t, c.cache.Len())
}

func TestCompilationFailureIsFatal(t *testing.T) {
	c := newCaches()
	c.program.Fragment = nil
	_, err := c.cache.GetOrCreate(c.program, Static, c.program.Signature, RenderTargetSignature{Samples: gpu.Samples1, ColorAttachments: 1})
	assert.True(t, errors.Is(err, gpu.ErrFatalInit))
	assert.True(t, errors.Is(err, gpu.ErrResourceCreation))
	assert.Zero(t, c.ctx.Live("shader"))
	assert.Zero(t, c.ctx.Live("pipeline-layout"))
}

func TestRenderPassCache(t *testing.T) {
	ctx := gputest.New(2)
	passes := NewRenderPassCache(ctx)
	present := RenderTargetSignature{Samples: gpu.Samples4, ColorAttachments: 2, Present: true}

	a, err := passes.GetOrCreate(present)
	require.NoError(t, err)
	b, err := passes.GetOrCreate(present)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	off, err := passes.GetOrCreate(RenderTargetSignature{Samples: gpu.Samples4, ColorAttachments: 2})
	require.NoError(t, err)
	assert.NotEqual(t, a, off, "final layout differs for offscreen targets")
	assert.Len(t, ctx.Events("create-render-pass"), 2)

	passes.Destroy()
	assert.Zero(t, ctx.Live("render-pass"))
}
