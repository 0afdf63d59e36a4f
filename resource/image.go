package resource

import (
	"fmt"
	"math/bits"

	"github.com/cockroachdb/errors"

	"vkframe/core"
	"vkframe/gpu"
)

// Image is a device-local image with its view. Layout, Access and Stage
// track the state left by the last recorded transition.
type Image struct {
	Handle    gpu.Image
	View      gpu.ImageView
	Memory    gpu.Memory
	Format    gpu.Format
	Extent    gpu.Extent2D
	MipLevels uint32
	Samples   gpu.SampleCount

	Layout gpu.ImageLayout
	Access gpu.Access
	Stage  gpu.PipelineStage
}

type ImageInfo struct {
	Extent    gpu.Extent2D
	Format    gpu.Format
	MipLevels uint32
	Samples   gpu.SampleCount
	Usage     gpu.ImageUsage
	// Layout is the layout the image is transitioned to before CreateImage
	// returns.
	Layout gpu.ImageLayout
}

func (img *Image) release(dev gpu.Device) {
	if img.Handle == 0 {
		return
	}
	dev.DestroyImageView(img.View)
	dev.DestroyImage(img.Handle)
	dev.FreeMemory(img.Memory)
	img.Handle, img.View, img.Memory = 0, 0, 0
}

// MipLevels returns the length of a full mip chain for a width x height image.
func MipLevels(width, height uint32) uint32 {
	return uint32(bits.Len32(max(width, height, 1)))
}

// CreateImage creates a device-local image and view and transitions it from
// UNDEFINED to info.Layout.
func (p *Pool) CreateImage(info ImageInfo) (*Image, error) {
	if info.MipLevels == 0 {
		info.MipLevels = 1
	}
	if info.Samples == 0 {
		info.Samples = gpu.Samples1
	}
	what := fmt.Sprintf("%dx%d image", info.Extent.Width, info.Extent.Height)
	if info.Extent.Empty() {
		return nil, gpu.CreationError(errors.New("empty extent"), what)
	}

	handle, req, err := p.dev.CreateImage(gpu.ImageInfo{
		Extent:    info.Extent,
		Format:    info.Format,
		MipLevels: info.MipLevels,
		Samples:   info.Samples,
		Usage:     info.Usage,
	})
	if err != nil {
		return nil, gpu.CreationError(err, what)
	}
	img := &Image{
		Handle:    handle,
		Format:    info.Format,
		Extent:    info.Extent,
		MipLevels: info.MipLevels,
		Samples:   info.Samples,
		Layout:    gpu.LayoutUndefined,
	}

	img.Memory, err = p.allocate(req, gpu.MemoryDeviceLocal)
	if err != nil {
		p.dev.DestroyImage(handle)
		return nil, gpu.CreationError(err, what)
	}
	if err := p.dev.BindImageMemory(handle, img.Memory); err != nil {
		p.Destroy(img)
		return nil, gpu.CreationError(err, what)
	}

	if info.Layout != gpu.LayoutUndefined {
		if err := p.TransitionLayout(img, info.Layout); err != nil {
			p.Destroy(img)
			return nil, gpu.CreationError(err, what)
		}
	}

	img.View, err = p.dev.CreateImageView(handle, info.Format, info.Format.Aspect(), info.MipLevels)
	if err != nil {
		p.Destroy(img)
		return nil, gpu.CreationError(err, what+" view")
	}

	core.Logger().Debug("image created",
		"extent", fmt.Sprintf("%dx%d", info.Extent.Width, info.Extent.Height),
		"format", info.Format,
		"mips", info.MipLevels,
		"samples", info.Samples,
		"layout", img.Layout)
	return img, nil
}

// TransitionLayout moves img to layout with a one-shot barrier. A pair with
// no recipe is logged and skipped without error; see recordTransition.
func (p *Pool) TransitionLayout(img *Image, layout gpu.ImageLayout) error {
	if !SupportsTransition(img.Layout, layout) {
		recordTransition(nil, img, layout)
		return nil
	}
	return gpu.ExecuteOneShot(p.dev, func(rec gpu.Recorder) {
		recordTransition(rec, img, layout)
	})
}

// GenerateMipmaps fills every level of img from level 0 by repeated halving
// blits and leaves the whole image shader readable. img must be in
// TRANSFER_DST with level 0 uploaded.
func (p *Pool) GenerateMipmaps(img *Image) error {
	if img.MipLevels <= 1 {
		return p.TransitionLayout(img, gpu.LayoutShaderReadOnly)
	}
	if img.Layout != gpu.LayoutTransferDst {
		return errors.Newf("generate mipmaps: image in %s, want %s", img.Layout, gpu.LayoutTransferDst)
	}

	aspect := img.Format.Aspect()
	level := func(mip uint32, from, to gpu.ImageLayout, src, dst gpu.Access, srcStage, dstStage gpu.PipelineStage) gpu.ImageBarrier {
		return gpu.ImageBarrier{
			Image:     img.Handle,
			OldLayout: from,
			NewLayout: to,
			SrcAccess: src,
			DstAccess: dst,
			SrcStage:  srcStage,
			DstStage:  dstStage,
			Aspect:    aspect,
			BaseMip:   mip,
			MipCount:  1,
		}
	}

	err := gpu.ExecuteOneShot(p.dev, func(rec gpu.Recorder) {
		extent := img.Extent
		for i := uint32(1); i < img.MipLevels; i++ {
			rec.PipelineBarrier(level(i-1,
				gpu.LayoutTransferDst, gpu.LayoutTransferSrc,
				gpu.AccessTransferWrite, gpu.AccessTransferRead,
				gpu.StageTransfer, gpu.StageTransfer))

			next := extent.Half()
			rec.BlitImage(gpu.Blit{
				Src:       img.Handle,
				Dst:       img.Handle,
				SrcMip:    i - 1,
				DstMip:    i,
				SrcExtent: extent,
				DstExtent: next,
			})

			rec.PipelineBarrier(level(i-1,
				gpu.LayoutTransferSrc, gpu.LayoutShaderReadOnly,
				gpu.AccessTransferRead, gpu.AccessShaderRead,
				gpu.StageTransfer, gpu.StageFragmentShader))
			extent = next
		}

		rec.PipelineBarrier(level(img.MipLevels-1,
			gpu.LayoutTransferDst, gpu.LayoutShaderReadOnly,
			gpu.AccessTransferWrite, gpu.AccessShaderRead,
			gpu.StageTransfer, gpu.StageFragmentShader))
	})
	if err != nil {
		return errors.Wrap(err, "generate mipmaps")
	}

	img.Layout = gpu.LayoutShaderReadOnly
	img.Access = gpu.AccessShaderRead
	img.Stage = gpu.StageFragmentShader
	return nil
}

// ReadImage copies mip level 0 of a single-sampled, 4 byte per texel image
// back to the host. The image is moved to TRANSFER_SRC for the copy and back
// to its previous layout afterwards.
func (p *Pool) ReadImage(img *Image) ([]byte, error) {
	if img.Samples.Multisampled() {
		return nil, errors.Newf("read image: %d samples, resolve it first", img.Samples)
	}
	previous := img.Layout
	if !SupportsTransition(previous, gpu.LayoutTransferSrc) || !SupportsTransition(gpu.LayoutTransferSrc, previous) {
		return nil, errors.Wrapf(gpu.ErrUnsupportedTransition, "read image in %s", previous)
	}

	size := uint64(img.Extent.Width) * uint64(img.Extent.Height) * 4
	readback, err := p.createBuffer(size, Readback, 0)
	if err != nil {
		return nil, err
	}
	defer p.Destroy(readback)

	err = gpu.ExecuteOneShot(p.dev, func(rec gpu.Recorder) {
		recordTransition(rec, img, gpu.LayoutTransferSrc)
		rec.CopyImageToBuffer(img.Handle, readback.Handle, img.Extent, img.Format.Aspect())
		recordTransition(rec, img, previous)
	})
	if err != nil {
		return nil, errors.Wrap(err, "image readback")
	}
	return p.readMapped(readback)
}
