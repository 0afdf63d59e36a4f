package renderer

import (
	"vkframe/gpu"
	"vkframe/resource"
)

func (r *Renderer) createAttachments() error {
	pool := r.world.Pool
	n := r.cfg.ColorAttachments
	colorFormat := r.ctx.ColorFormat()

	r.color = make([]*resource.Image, n)
	for i := range r.color {
		if i == 0 && r.cfg.Present {
			continue
		}
		img, err := pool.CreateImage(resource.ImageInfo{
			Extent:  r.extent,
			Format:  colorFormat,
			Samples: gpu.Samples1,
			Usage:   gpu.ImageUsageColorAttachment | gpu.ImageUsageTransferSrc | gpu.ImageUsageSampled,
			Layout:  gpu.LayoutColorAttachment,
		})
		if err != nil {
			return err
		}
		r.color[i] = img
	}

	if r.cfg.Samples.Multisampled() {
		r.msaa = make([]*resource.Image, n)
		for i := range r.msaa {
			img, err := pool.CreateImage(resource.ImageInfo{
				Extent:  r.extent,
				Format:  colorFormat,
				Samples: r.cfg.Samples,
				Usage:   gpu.ImageUsageColorAttachment | gpu.ImageUsageTransient,
				Layout:  gpu.LayoutColorAttachment,
			})
			if err != nil {
				return err
			}
			r.msaa[i] = img
		}
	}

	depth, err := pool.CreateImage(resource.ImageInfo{
		Extent:  r.extent,
		Format:  r.ctx.DepthFormat(),
		Samples: r.cfg.Samples,
		Usage:   gpu.ImageUsageDepthStencil,
		Layout:  gpu.LayoutDepthStencilAttachment,
	})
	if err != nil {
		return err
	}
	r.depth = depth
	return nil
}

func (r *Renderer) destroyAttachments() {
	pool := r.world.Pool
	for _, img := range append(r.color, r.msaa...) {
		if img != nil {
			pool.Destroy(img)
		}
	}
	if r.depth != nil {
		pool.Destroy(r.depth)
	}
	r.color, r.msaa, r.depth = nil, nil, nil
}

// attachments returns the framebuffer views for back buffer index. Without
// multisampling: [output, color1..N-1, depth]. With it:
// [msaa0..N-1, depth, output, color1..N-1], the single-sample images being
// the resolve targets.
func (r *Renderer) attachments(index int) []gpu.ImageView {
	output := r.ctx.BackBufferViews()[index]
	if !r.cfg.Present {
		output = r.color[0].View
	}

	var views []gpu.ImageView
	if r.cfg.Samples.Multisampled() {
		for _, img := range r.msaa {
			views = append(views, img.View)
		}
		views = append(views, r.depth.View)
	}
	views = append(views, output)
	for _, img := range r.color[1:] {
		views = append(views, img.View)
	}
	if !r.cfg.Samples.Multisampled() {
		views = append(views, r.depth.View)
	}
	return views
}

func (r *Renderer) createFramebuffers() error {
	count := r.ctx.BackBufferCount()
	r.framebuffers = make([]gpu.Framebuffer, 0, count)
	for i := 0; i < count; i++ {
		fb, err := r.dev.CreateFramebuffer(gpu.FramebufferInfo{
			RenderPass:  r.pass,
			Attachments: r.attachments(i),
			Extent:      r.extent,
		})
		if err != nil {
			return gpu.CreationError(err, "framebuffer")
		}
		r.framebuffers = append(r.framebuffers, fb)
	}
	return nil
}

func (r *Renderer) destroyFramebuffers() {
	for _, fb := range r.framebuffers {
		r.dev.DestroyFramebuffer(fb)
	}
	r.framebuffers = nil
}
