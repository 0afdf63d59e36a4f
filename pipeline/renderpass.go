package pipeline

import (
	"vkframe/core"
	"vkframe/gpu"
)

// RenderTargetSignature is everything about a render target that a render
// pass and the pipelines drawn into it depend on. A presenting target ends in
// PRESENT_SRC, an offscreen one stays in COLOR_ATTACHMENT so it can be read
// back.
type RenderTargetSignature struct {
	Samples          gpu.SampleCount
	ColorAttachments int
	Present          bool
}

// RenderPassCache creates one render pass per RenderTargetSignature.
type RenderPassCache struct {
	ctx    gpu.Context
	passes map[RenderTargetSignature]gpu.RenderPass
}

func NewRenderPassCache(ctx gpu.Context) *RenderPassCache {
	return &RenderPassCache{ctx: ctx, passes: make(map[RenderTargetSignature]gpu.RenderPass)}
}

func (c *RenderPassCache) GetOrCreate(target RenderTargetSignature) (gpu.RenderPass, error) {
	if rp, ok := c.passes[target]; ok {
		return rp, nil
	}
	rp, err := c.ctx.Device().CreateRenderPass(gpu.RenderPassInfo{
		ColorFormat:      c.ctx.ColorFormat(),
		DepthFormat:      c.ctx.DepthFormat(),
		Samples:          target.Samples,
		ColorAttachments: target.ColorAttachments,
		Present:          target.Present,
	})
	if err != nil {
		return 0, gpu.CreationError(err, "render pass")
	}
	c.passes[target] = rp
	core.Logger().Debug("render pass created",
		"samples", target.Samples,
		"color_attachments", target.ColorAttachments,
		"present", target.Present)
	return rp, nil
}

func (c *RenderPassCache) Destroy() {
	dev := c.ctx.Device()
	for target, rp := range c.passes {
		dev.DestroyRenderPass(rp)
		delete(c.passes, target)
	}
}
