package resource

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"vkframe/core"
	"vkframe/gpu"
)

// ErrNotHostVisible is returned when mapping a device-local buffer.
var ErrNotHostVisible = errors.New("buffer is not host visible")

type BufferKind int

const (
	// Uniform buffers are host visible and coherent and remapped per update.
	Uniform BufferKind = iota
	// Staging buffers are host visible transfer sources, written once.
	Staging
	// DeviceLocal buffers are filled through a temporary staging buffer.
	DeviceLocal
	// Readback buffers are host visible transfer destinations.
	Readback
)

func (k BufferKind) String() string {
	switch k {
	case Uniform:
		return "uniform"
	case Staging:
		return "staging"
	case DeviceLocal:
		return "device-local"
	case Readback:
		return "readback"
	}
	return fmt.Sprintf("BufferKind(%d)", int(k))
}

func (k BufferKind) HostVisible() bool {
	return k != DeviceLocal
}

func (k BufferKind) usage() gpu.BufferUsage {
	switch k {
	case Uniform:
		return gpu.BufferUsageUniform
	case Staging:
		return gpu.BufferUsageTransferSrc
	case DeviceLocal:
		return gpu.BufferUsageTransferDst | gpu.BufferUsageTransferSrc
	default:
		return gpu.BufferUsageTransferDst
	}
}

func (k BufferKind) properties() gpu.MemoryProperty {
	if k == DeviceLocal {
		return gpu.MemoryDeviceLocal
	}
	return gpu.MemoryHostVisible | gpu.MemoryHostCoherent
}

type Buffer struct {
	Handle gpu.Buffer
	Memory gpu.Memory
	Size   uint64
	Kind   BufferKind
	Usage  gpu.BufferUsage
}

func (b *Buffer) release(dev gpu.Device) {
	if b.Handle == 0 {
		return
	}
	dev.DestroyBuffer(b.Handle)
	dev.FreeMemory(b.Memory)
	b.Handle, b.Memory = 0, 0
}

// CreateBuffer creates a buffer of size bytes. usage is added to the usage
// implied by kind (vertex or index for device-local meshes). When data is
// non-nil it is written zero-padded to size; for DeviceLocal this goes
// through a staging buffer that is destroyed before returning.
func (p *Pool) CreateBuffer(size uint64, kind BufferKind, usage gpu.BufferUsage, data []byte) (*Buffer, error) {
	buf, err := p.createBuffer(size, kind, usage)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return buf, nil
	}

	if kind.HostVisible() {
		err = p.UpdateBuffer(buf, data)
	} else {
		err = p.upload(buf, data)
	}
	if err != nil {
		p.Destroy(buf)
		return nil, err
	}
	return buf, nil
}

func (p *Pool) createBuffer(size uint64, kind BufferKind, usage gpu.BufferUsage) (*Buffer, error) {
	what := fmt.Sprintf("%s buffer of %d bytes", kind, size)
	if size == 0 {
		return nil, gpu.CreationError(errors.New("zero size"), what)
	}

	usage |= kind.usage()
	handle, req, err := p.dev.CreateBuffer(size, usage)
	if err != nil {
		return nil, gpu.CreationError(err, what)
	}
	mem, err := p.allocate(req, kind.properties())
	if err != nil {
		p.dev.DestroyBuffer(handle)
		return nil, gpu.CreationError(err, what)
	}
	if err := p.dev.BindBufferMemory(handle, mem); err != nil {
		p.dev.DestroyBuffer(handle)
		p.dev.FreeMemory(mem)
		return nil, gpu.CreationError(err, what)
	}

	core.Logger().Debug("buffer created", "kind", kind, "size", size)
	return &Buffer{Handle: handle, Memory: mem, Size: size, Kind: kind, Usage: usage}, nil
}

func (p *Pool) upload(dst *Buffer, data []byte) error {
	staging, err := p.CreateBuffer(dst.Size, Staging, 0, data)
	if err != nil {
		return err
	}
	defer p.Destroy(staging)

	err = gpu.ExecuteOneShot(p.dev, func(rec gpu.Recorder) {
		rec.CopyBuffer(staging.Handle, dst.Handle, dst.Size)
	})
	return errors.Wrap(err, "staged buffer upload")
}

// UpdateBuffer overwrites the full size of a host-visible buffer with data,
// zero-padding or truncating it.
func (p *Pool) UpdateBuffer(buf *Buffer, data []byte) error {
	if !buf.Kind.HostVisible() {
		return errors.Wrapf(ErrNotHostVisible, "update %s buffer", buf.Kind)
	}
	mapped, err := p.dev.MapMemory(buf.Memory, buf.Size)
	if err != nil {
		return errors.Wrap(err, "map buffer memory")
	}
	n := copy(mapped, data)
	clear(mapped[n:])
	p.dev.UnmapMemory(buf.Memory)
	return nil
}

// ReadBuffer returns the contents of buf. Device-local buffers are copied
// into a temporary readback buffer first.
func (p *Pool) ReadBuffer(buf *Buffer) ([]byte, error) {
	src := buf
	if !buf.Kind.HostVisible() {
		readback, err := p.createBuffer(buf.Size, Readback, 0)
		if err != nil {
			return nil, err
		}
		defer p.Destroy(readback)

		err = gpu.ExecuteOneShot(p.dev, func(rec gpu.Recorder) {
			rec.CopyBuffer(buf.Handle, readback.Handle, buf.Size)
		})
		if err != nil {
			return nil, errors.Wrap(err, "buffer readback")
		}
		src = readback
	}
	return p.readMapped(src)
}

func (p *Pool) readMapped(buf *Buffer) ([]byte, error) {
	mapped, err := p.dev.MapMemory(buf.Memory, buf.Size)
	if err != nil {
		return nil, errors.Wrap(err, "map buffer memory")
	}
	out := make([]byte, buf.Size)
	copy(out, mapped)
	p.dev.UnmapMemory(buf.Memory)
	return out, nil
}
