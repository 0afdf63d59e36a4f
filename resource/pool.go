// Package resource creates and destroys GPU buffers and images, performs
// staged uploads and readbacks, and owns the image layout transition table.
package resource

import (
	"github.com/cockroachdb/errors"

	"vkframe/core"
	"vkframe/gpu"
)

// Resource is anything Pool.Destroy can release.
type Resource interface {
	release(dev gpu.Device)
}

// Pool is the resource factory for one graphics context. It is used from the
// single driving goroutine only.
type Pool struct {
	ctx      gpu.Context
	dev      gpu.Device
	samplers map[uint32]gpu.Sampler

	// MaxTextureSize clamps the larger side of uploaded textures.
	MaxTextureSize int
}

func NewPool(ctx gpu.Context) *Pool {
	return &Pool{
		ctx:            ctx,
		dev:            ctx.Device(),
		samplers:       make(map[uint32]gpu.Sampler),
		MaxTextureSize: 4096,
	}
}

func (p *Pool) Context() gpu.Context {
	return p.ctx
}

// Destroy releases the handle, memory and any view of r. Destroying an
// already destroyed resource is a no-op.
func (p *Pool) Destroy(r Resource) {
	if r == nil {
		return
	}
	r.release(p.dev)
}

// Sampler returns the shared sampler for images with mipLevels levels.
func (p *Pool) Sampler(mipLevels uint32) (gpu.Sampler, error) {
	if s, ok := p.samplers[mipLevels]; ok {
		return s, nil
	}
	s, err := p.dev.CreateSampler(mipLevels)
	if err != nil {
		return 0, gpu.CreationError(err, "sampler")
	}
	core.Logger().Debug("sampler created", "mip_levels", mipLevels)
	p.samplers[mipLevels] = s
	return s, nil
}

// Close destroys the cached samplers. Buffers and images stay owned by their
// creators.
func (p *Pool) Close() {
	for mips, s := range p.samplers {
		p.dev.DestroySampler(s)
		delete(p.samplers, mips)
	}
}

// allocate creates memory of the given properties for requirements and
// returns it unbound.
func (p *Pool) allocate(req gpu.MemoryRequirements, props gpu.MemoryProperty) (gpu.Memory, error) {
	memType, err := p.ctx.FindMemoryType(req.TypeBits, props)
	if err != nil {
		return 0, errors.Mark(err, gpu.ErrOutOfMemoryType)
	}
	mem, err := p.dev.AllocateMemory(req.Size, memType)
	if err != nil {
		return 0, errors.Wrapf(err, "allocate %d bytes", req.Size)
	}
	return mem, nil
}
