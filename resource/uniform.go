package resource

import (
	"github.com/cockroachdb/errors"

	"vkframe/gpu"
)

// UniformBuffer holds one uniform buffer per back buffer so a frame can be
// written while earlier frames still read their own copy.
type UniformBuffer struct {
	Buffers []*Buffer
	Size    uint64

	pool *Pool
}

// NewUniformBuffer creates size-byte uniform buffers, one per back buffer.
func (p *Pool) NewUniformBuffer(size uint64) (*UniformBuffer, error) {
	count := p.ctx.BackBufferCount()
	u := &UniformBuffer{Size: size, pool: p}
	for i := 0; i < count; i++ {
		buf, err := p.CreateBuffer(size, Uniform, 0, nil)
		if err != nil {
			p.Destroy(u)
			return nil, errors.Wrapf(err, "uniform buffer %d of %d", i, count)
		}
		u.Buffers = append(u.Buffers, buf)
	}
	return u, nil
}

// Update overwrites the buffer belonging to back buffer index.
func (u *UniformBuffer) Update(data []byte, index int) error {
	if index < 0 || index >= len(u.Buffers) {
		return errors.Newf("uniform buffer index %d out of range [0,%d)", index, len(u.Buffers))
	}
	return u.pool.UpdateBuffer(u.Buffers[index], data)
}

func (u *UniformBuffer) release(dev gpu.Device) {
	for _, buf := range u.Buffers {
		buf.release(dev)
	}
	u.Buffers = nil
}
