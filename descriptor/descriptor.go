package descriptor

import (
	"github.com/cockroachdb/errors"

	"vkframe/gpu"
	"vkframe/resource"
)

// ErrSignatureMismatch is returned when the resources handed to New cannot
// fill the signature.
var ErrSignatureMismatch = errors.New("resources do not match binding signature")

// Descriptor owns a pool holding one descriptor set per back buffer.
type Descriptor struct {
	Signature Signature
	Layout    *Layout

	dev  gpu.Device
	pool gpu.DescriptorPool
	sets []gpu.DescriptorSet
}

// New allocates one set per back buffer and fills each set positionally: the
// n-th Uniform binding takes uniforms[n] and the n-th Sampler binding takes
// textures[n]. Surplus resources are ignored. Set i of a uniform binding
// points at the uniform's buffer for back buffer i.
func New(ctx gpu.Context, sig Signature, layout *Layout, uniforms []*resource.UniformBuffer, textures []*resource.Texture) (*Descriptor, error) {
	count := ctx.BackBufferCount()
	if err := validate(sig, layout, uniforms, textures, count); err != nil {
		return nil, err
	}

	dev := ctx.Device()
	sizes := make([]gpu.PoolSize, sig.Len())
	for i := range sizes {
		sizes[i] = gpu.PoolSize{Type: sig.At(i).descriptorType(), Count: uint32(count)}
	}
	pool, err := dev.CreateDescriptorPool(sizes, uint32(count))
	if err != nil {
		return nil, gpu.CreationError(err, "descriptor pool "+sig.String())
	}
	sets, err := dev.AllocateDescriptorSets(pool, layout.Handle, count)
	if err != nil {
		dev.DestroyDescriptorPool(pool)
		return nil, gpu.CreationError(err, "descriptor sets "+sig.String())
	}

	d := &Descriptor{Signature: sig, Layout: layout, dev: dev, pool: pool, sets: sets}
	for i, set := range sets {
		dev.UpdateDescriptorSets(d.writes(set, i, uniforms, textures))
	}
	return d, nil
}

func validate(sig Signature, layout *Layout, uniforms []*resource.UniformBuffer, textures []*resource.Texture, count int) error {
	if sig.Len() == 0 {
		return errors.Wrap(ErrSignatureMismatch, "empty signature")
	}
	if layout == nil || layout.Signature != sig {
		return errors.Wrapf(ErrSignatureMismatch, "layout is not for %s", sig)
	}
	if n := sig.Count(Uniform); len(uniforms) < n {
		return errors.Wrapf(ErrSignatureMismatch, "%s needs %d uniforms, got %d", sig, n, len(uniforms))
	}
	if n := sig.Count(Sampler); len(textures) < n {
		return errors.Wrapf(ErrSignatureMismatch, "%s needs %d samplers, got %d", sig, n, len(textures))
	}
	for i, u := range uniforms[:sig.Count(Uniform)] {
		if u == nil || len(u.Buffers) < count {
			return errors.Wrapf(ErrSignatureMismatch, "uniform %d does not hold %d buffers", i, count)
		}
	}
	for i, t := range textures[:sig.Count(Sampler)] {
		if t == nil || t.Image == nil {
			return errors.Wrapf(ErrSignatureMismatch, "sampler %d has no image", i)
		}
	}
	return nil
}

func (d *Descriptor) writes(set gpu.DescriptorSet, index int, uniforms []*resource.UniformBuffer, textures []*resource.Texture) []gpu.DescriptorWrite {
	writes := make([]gpu.DescriptorWrite, d.Signature.Len())
	nextUniform, nextTexture := 0, 0
	for j := range writes {
		b := d.Signature.At(j)
		w := gpu.DescriptorWrite{Set: set, Binding: uint32(j), Type: b.descriptorType()}
		switch b {
		case Uniform:
			u := uniforms[nextUniform]
			nextUniform++
			w.Buffer = u.Buffers[index].Handle
			w.Range = u.Size
		case Sampler:
			t := textures[nextTexture]
			nextTexture++
			w.View = t.Image.View
			w.Sampler = t.Sampler
		}
		writes[j] = w
	}
	return writes
}

// Set returns the descriptor set for back buffer index.
func (d *Descriptor) Set(index int) gpu.DescriptorSet {
	return d.sets[index]
}

func (d *Descriptor) Len() int { return len(d.sets) }

// Cleanup destroys the pool and with it every set. The shared layout is left
// to the LayoutCache.
func (d *Descriptor) Cleanup() {
	if d.pool == 0 {
		return
	}
	d.dev.DestroyDescriptorPool(d.pool)
	d.pool, d.sets = 0, nil
}
