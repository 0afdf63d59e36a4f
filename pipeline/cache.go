package pipeline

import (
	"github.com/cockroachdb/errors"

	"vkframe/core"
	"vkframe/descriptor"
	"vkframe/gpu"
)

// fixedState is shared by every pipeline. Viewport and scissor are dynamic.
var fixedState = gpu.FixedFunction{
	CullBack:       true,
	FrontClockwise: true,
	DepthTest:      true,
	DepthWrite:     true,
	DepthCompare:   gpu.CompareLess,
	Blend:          false,
}

type Pipeline struct {
	Handle     gpu.Pipeline
	Layout     gpu.PipelineLayout
	RenderPass gpu.RenderPass
}

type cacheKey struct {
	program   string
	vertex    VertexLayoutKind
	signature string
	target    RenderTargetSignature
}

// Cache creates one Pipeline per program, vertex layout, binding signature
// and render target.
type Cache struct {
	dev       gpu.Device
	layouts   *descriptor.LayoutCache
	passes    *RenderPassCache
	pipelines map[cacheKey]*Pipeline
}

func NewCache(dev gpu.Device, layouts *descriptor.LayoutCache, passes *RenderPassCache) *Cache {
	return &Cache{
		dev:       dev,
		layouts:   layouts,
		passes:    passes,
		pipelines: make(map[cacheKey]*Pipeline),
	}
}

func (c *Cache) Len() int { return len(c.pipelines) }

// GetOrCreate returns the cached pipeline for the arguments, compiling it on
// first use. Compilation failures are fatal init errors.
func (c *Cache) GetOrCreate(program *Program, vertex VertexLayoutKind, sig descriptor.Signature, target RenderTargetSignature) (*Pipeline, error) {
	if program.Signature != sig {
		return nil, errors.Wrapf(descriptor.ErrSignatureMismatch, "program %s reads %s, entity binds %s", program.Name, program.Signature, sig)
	}
	key := cacheKey{program: program.Name, vertex: vertex, signature: sig.Key(), target: target}
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}

	p, err := c.create(program, vertex, sig, target)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "pipeline %s", program.Name), gpu.ErrFatalInit)
	}
	c.pipelines[key] = p
	core.Logger().Debug("pipeline created",
		"program", program.Name,
		"vertex", vertex,
		"signature", sig.Key(),
		"samples", target.Samples,
		"color_attachments", target.ColorAttachments)
	return p, nil
}

func (c *Cache) create(program *Program, vertex VertexLayoutKind, sig descriptor.Signature, target RenderTargetSignature) (*Pipeline, error) {
	setLayout, err := c.layouts.GetOrCreate(sig)
	if err != nil {
		return nil, err
	}
	rp, err := c.passes.GetOrCreate(target)
	if err != nil {
		return nil, err
	}

	vert, err := c.dev.CreateShaderModule(program.Vertex)
	if err != nil {
		return nil, gpu.CreationError(err, "vertex shader module")
	}
	defer c.dev.DestroyShaderModule(vert)
	frag, err := c.dev.CreateShaderModule(program.Fragment)
	if err != nil {
		return nil, gpu.CreationError(err, "fragment shader module")
	}
	defer c.dev.DestroyShaderModule(frag)

	layout, err := c.dev.CreatePipelineLayout([]gpu.DescriptorSetLayout{setLayout.Handle})
	if err != nil {
		return nil, gpu.CreationError(err, "pipeline layout")
	}
	handle, err := c.dev.CreateGraphicsPipeline(gpu.GraphicsPipelineInfo{
		Vertex:           vert,
		Fragment:         frag,
		Layout:           layout,
		RenderPass:       rp,
		Stride:           vertex.Stride(),
		Attributes:       vertex.Attributes(),
		Samples:          target.Samples,
		ColorAttachments: target.ColorAttachments,
		State:            fixedState,
	})
	if err != nil {
		c.dev.DestroyPipelineLayout(layout)
		return nil, gpu.CreationError(err, "graphics pipeline")
	}
	return &Pipeline{Handle: handle, Layout: layout, RenderPass: rp}, nil
}

// Destroy destroys every cached pipeline and its layout.
func (c *Cache) Destroy() {
	for key, p := range c.pipelines {
		c.dev.DestroyPipeline(p.Handle)
		c.dev.DestroyPipelineLayout(p.Layout)
		delete(c.pipelines, key)
	}
}
