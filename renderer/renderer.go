// Package renderer implements render targets: the color, depth and resolve
// attachments of one render pass, a framebuffer and a prerecorded command
// list per back buffer, and the semaphores that chain targets together.
package renderer

import (
	"cogentcore.org/core/ordmap"
	"github.com/cockroachdb/errors"

	"vkframe/core"
	"vkframe/gpu"
	"vkframe/pipeline"
	"vkframe/resource"
	"vkframe/scene"
)

type Config struct {
	Name string
	// ColorAttachments defaults to 1.
	ColorAttachments int
	// Samples is clamped to what the device supports.
	Samples gpu.SampleCount
	// ClearColors[i] clears color attachment i. Missing entries clear to
	// opaque black.
	ClearColors [][4]float32
	// Present renders color 0 into the back buffer. Otherwise it goes to an
	// image owned by the renderer.
	Present bool
	// Extent sizes an offscreen target. Zero follows the back buffers.
	Extent gpu.Extent2D
}

// Renderer is one render target in the frame chain.
type Renderer struct {
	Name string

	world  *scene.World
	ctx    gpu.Context
	dev    gpu.Device
	cfg    Config
	target pipeline.RenderTargetSignature
	pass   gpu.RenderPass
	extent gpu.Extent2D
	clears []gpu.ClearValue

	// color[i] is the single-sample image for color attachment i. color[0]
	// is nil when presenting.
	color []*resource.Image
	// msaa[i] is the multisampled image resolved into color i.
	msaa         []*resource.Image
	depth        *resource.Image
	framebuffers []gpu.Framebuffer
	commands     []gpu.CommandBuffer
	done         []gpu.Semaphore

	entities *ordmap.Map[string, scene.Entity]
	drawn    []string
	stats    Stats
	closed   bool
}

// Stats counts what the current command lists draw per frame.
type Stats struct {
	Objects   int
	Triangles int
}

// New builds the attachments, framebuffers, done semaphores and empty
// command lists of a render target.
func New(world *scene.World, cfg Config) (*Renderer, error) {
	ctx := world.Context()
	cfg.ColorAttachments = max(cfg.ColorAttachments, 1)
	cfg.Samples = gpu.ClampSamples(cfg.Samples, ctx.MaxSamples())

	r := &Renderer{
		Name:  cfg.Name,
		world: world,
		ctx:   ctx,
		dev:   ctx.Device(),
		cfg:   cfg,
		target: pipeline.RenderTargetSignature{
			Samples:          cfg.Samples,
			ColorAttachments: cfg.ColorAttachments,
			Present:          cfg.Present,
		},
	}
	r.clears = clearValues(cfg)

	var err error
	if r.pass, err = world.RenderPasses.GetOrCreate(r.target); err != nil {
		return nil, errors.Wrapf(err, "renderer %s", cfg.Name)
	}
	if err := r.build(); err != nil {
		r.Cleanup()
		return nil, errors.Wrapf(err, "renderer %s", cfg.Name)
	}
	for i := 0; i < gpu.MaxFramesInFlight; i++ {
		sem, err := r.dev.CreateSemaphore()
		if err != nil {
			r.Cleanup()
			return nil, gpu.CreationError(err, "renderer done semaphore")
		}
		r.done = append(r.done, sem)
	}
	if err := r.RebuildCommandLists(nil); err != nil {
		r.Cleanup()
		return nil, err
	}

	core.Logger().Info("renderer created",
		"name", cfg.Name,
		"samples", cfg.Samples,
		"color_attachments", cfg.ColorAttachments,
		"present", cfg.Present,
		"extent", r.extent)
	return r, nil
}

// clearValues follows the attachment order of the render pass.
func clearValues(cfg Config) []gpu.ClearValue {
	colors := make([]gpu.ClearValue, cfg.ColorAttachments)
	for i := range colors {
		colors[i] = gpu.ClearColor(0, 0, 0, 1)
		if i < len(cfg.ClearColors) {
			colors[i] = gpu.ClearValue{Color: cfg.ClearColors[i]}
		}
	}
	clears := append(colors, gpu.ClearDepth(1))
	if cfg.Samples.Multisampled() {
		clears = append(clears, make([]gpu.ClearValue, cfg.ColorAttachments)...)
	}
	return clears
}

func (r *Renderer) build() error {
	r.extent = r.ctx.Extent()
	if !r.cfg.Present && !r.cfg.Extent.Empty() {
		r.extent = r.cfg.Extent
	}
	if err := r.createAttachments(); err != nil {
		return err
	}
	return r.createFramebuffers()
}

// Refresh rebuilds attachments, framebuffers and command lists against the
// current back buffers. The device must be idle.
func (r *Renderer) Refresh() error {
	r.destroyFramebuffers()
	r.destroyAttachments()
	if err := r.build(); err != nil {
		return errors.Wrapf(err, "refresh renderer %s", r.Name)
	}
	return r.RebuildCommandLists(r.entities)
}

func (r *Renderer) Target() pipeline.RenderTargetSignature { return r.target }

func (r *Renderer) Extent() gpu.Extent2D { return r.extent }

// CommandList returns the command list for back buffer index.
func (r *Renderer) CommandList(index int) gpu.CommandBuffer { return r.commands[index] }

func (r *Renderer) CommandListCount() int { return len(r.commands) }

func (r *Renderer) FramebufferCount() int { return len(r.framebuffers) }

// Done returns the semaphore signaled when this renderer's work for frame
// slot finishes.
func (r *Renderer) Done(slot int) gpu.Semaphore { return r.done[slot] }

// ColorImage returns the single-sample image of color attachment i, or nil
// for attachment 0 of a presenting renderer.
func (r *Renderer) ColorImage(i int) *resource.Image {
	if i < 0 || i >= len(r.color) {
		return nil
	}
	return r.color[i]
}

// Drawn returns the names of the entities the command lists draw, in order.
func (r *Renderer) Drawn() []string { return r.drawn }

func (r *Renderer) DrawStats() Stats { return r.stats }

// Cleanup destroys everything the renderer owns. The render pass belongs to
// the World's cache.
func (r *Renderer) Cleanup() {
	if r.closed {
		return
	}
	r.closed = true
	if len(r.commands) > 0 {
		r.dev.FreeCommandBuffers(r.commands)
		r.commands = nil
	}
	r.destroyFramebuffers()
	r.destroyAttachments()
	for _, sem := range r.done {
		r.dev.DestroySemaphore(sem)
	}
	r.done = nil
}
