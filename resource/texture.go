package resource

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/draw"

	"vkframe/gpu"
)

// Texture is a mipmapped, shader readable RGBA image with its shared sampler.
type Texture struct {
	Name    string
	Image   *Image
	Sampler gpu.Sampler
	Path    string // empty for procedural textures
}

// The sampler belongs to the pool's cache and outlives the texture.
func (t *Texture) release(dev gpu.Device) {
	if t.Image != nil {
		t.Image.release(dev)
	}
}

func (t *Texture) Width() uint32  { return t.Image.Extent.Width }
func (t *Texture) Height() uint32 { return t.Image.Extent.Height }

// LoadTexture decodes a PNG or JPEG file and uploads it.
func (p *Pool) LoadTexture(name, path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load texture %s", name)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode texture %s", path)
	}
	tex, err := p.CreateTexture(name, img)
	if err != nil {
		return nil, err
	}
	tex.Path = path
	return tex, nil
}

// CreateTexture uploads src with a full mip chain. Images larger than
// MaxTextureSize are scaled down first.
func (p *Pool) CreateTexture(name string, src image.Image) (*Texture, error) {
	rgba := toRGBA(src, p.MaxTextureSize)
	bounds := rgba.Bounds()
	return p.CreateTextureFromPixels(name, uint32(bounds.Dx()), uint32(bounds.Dy()), rgba.Pix)
}

// CreateTextureFromPixels uploads tightly packed RGBA8 pixels.
func (p *Pool) CreateTextureFromPixels(name string, width, height uint32, pixels []byte) (*Texture, error) {
	size := uint64(width) * uint64(height) * 4
	if uint64(len(pixels)) < size {
		return nil, errors.Newf("texture %s: %d bytes of pixels for %dx%d", name, len(pixels), width, height)
	}

	staging, err := p.CreateBuffer(size, Staging, 0, pixels[:size])
	if err != nil {
		return nil, errors.Wrapf(err, "texture %s", name)
	}
	defer p.Destroy(staging)

	mips := MipLevels(width, height)
	img, err := p.CreateImage(ImageInfo{
		Extent:    gpu.Extent2D{Width: width, Height: height},
		Format:    gpu.FormatR8G8B8A8Srgb,
		MipLevels: mips,
		Samples:   gpu.Samples1,
		Usage:     gpu.ImageUsageTransferSrc | gpu.ImageUsageTransferDst | gpu.ImageUsageSampled,
		Layout:    gpu.LayoutTransferDst,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "texture %s", name)
	}

	err = gpu.ExecuteOneShot(p.dev, func(rec gpu.Recorder) {
		rec.CopyBufferToImage(staging.Handle, img.Handle, img.Extent, gpu.AspectColor)
	})
	if err == nil {
		err = p.GenerateMipmaps(img)
	}
	if err != nil {
		p.Destroy(img)
		return nil, errors.Wrapf(err, "upload texture %s", name)
	}

	sampler, err := p.Sampler(mips)
	if err != nil {
		p.Destroy(img)
		return nil, err
	}
	return &Texture{Name: name, Image: img, Sampler: sampler}, nil
}

// CreateSolidColorTexture creates a 1x1 texture of c.
func (p *Pool) CreateSolidColorTexture(name string, c color.RGBA) (*Texture, error) {
	return p.CreateTextureFromPixels(name, 1, 1, []byte{c.R, c.G, c.B, c.A})
}

// CreateCheckerTexture creates a size x size checkerboard of 8x8 blocks.
func (p *Pool) CreateCheckerTexture(name string, size uint32, c1, c2 color.RGBA) (*Texture, error) {
	img := image.NewRGBA(image.Rect(0, 0, int(size), int(size)))
	block := max(int(size)/8, 1)
	for y := 0; y < int(size); y++ {
		for x := 0; x < int(size); x++ {
			if (x/block+y/block)%2 == 0 {
				img.SetRGBA(x, y, c1)
			} else {
				img.SetRGBA(x, y, c2)
			}
		}
	}
	return p.CreateTextureFromPixels(name, size, size, img.Pix)
}

// toRGBA converts src to a zero-origin RGBA image whose larger side is at
// most maxSize.
func toRGBA(src image.Image, maxSize int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize > 0 && max(w, h) > maxSize {
		if w >= h {
			w, h = maxSize, max(h*maxSize/w, 1)
		} else {
			w, h = max(w*maxSize/h, 1), maxSize
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		return dst
	}

	if rgba, ok := src.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*w {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
