package resource

import (
	"bytes"
	"image"
	"image/color"
	"log/slog"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkframe/core"
	"vkframe/gpu"
	"vkframe/gpu/gputest"
)

func newPool(t *testing.T) (*Pool, *gputest.Context) {
	t.Helper()
	ctx := gputest.New(3)
	return NewPool(ctx), ctx
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}

func TestDeviceLocalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		size uint64
		data []byte
		want []byte
	}{
		{"4 bytes zero padded", 4, []byte{1, 2, 3}, []byte{1, 2, 3, 0}},
		{"64 bytes", 64, pattern(64), pattern(64)},
		{"64 KiB", 64 << 10, pattern(64 << 10), pattern(64 << 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, ctx := newPool(t)

			buf, err := pool.CreateBuffer(tt.size, DeviceLocal, gpu.BufferUsageVertex, tt.data)
			require.NoError(t, err)
			assert.Equal(t, 1, ctx.Live("buffer"), "staging buffer must be destroyed")

			got, err := pool.ReadBuffer(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			pool.Destroy(buf)
			assert.Zero(t, ctx.Live(""))
		})
	}
}

func TestCreateBufferKinds(t *testing.T) {
	pool, _ := newPool(t)

	tests := []struct {
		kind      BufferKind
		wantUsage gpu.BufferUsage
	}{
		{Uniform, gpu.BufferUsageUniform},
		{Staging, gpu.BufferUsageTransferSrc},
		{DeviceLocal, gpu.BufferUsageTransferDst | gpu.BufferUsageTransferSrc | gpu.BufferUsageIndex},
		{Readback, gpu.BufferUsageTransferDst},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			extra := gpu.BufferUsage(0)
			if tt.kind == DeviceLocal {
				extra = gpu.BufferUsageIndex
			}
			buf, err := pool.CreateBuffer(16, tt.kind, extra, nil)
			require.NoError(t, err)
			defer pool.Destroy(buf)
			assert.Equal(t, tt.wantUsage, buf.Usage)
			assert.Equal(t, tt.kind != DeviceLocal, buf.Kind.HostVisible())
		})
	}
}

func TestCreateBufferErrors(t *testing.T) {
	t.Run("no memory type", func(t *testing.T) {
		pool, ctx := newPool(t)
		ctx.FailMemoryType = true

		_, err := pool.CreateBuffer(64, DeviceLocal, 0, pattern(64))
		require.Error(t, err)
		assert.True(t, errors.Is(err, gpu.ErrOutOfMemoryType))
		assert.True(t, errors.Is(err, gpu.ErrResourceCreation))
		assert.Zero(t, ctx.Live(""), "partial creation must not leak")
	})

	t.Run("zero size", func(t *testing.T) {
		pool, _ := newPool(t)
		_, err := pool.CreateBuffer(0, Uniform, 0, nil)
		assert.True(t, errors.Is(err, gpu.ErrResourceCreation))
	})
}

func TestUpdateBuffer(t *testing.T) {
	pool, ctx := newPool(t)

	buf, err := pool.CreateBuffer(8, Uniform, 0, pattern(8))
	require.NoError(t, err)

	require.NoError(t, pool.UpdateBuffer(buf, []byte{9, 9}))
	assert.Equal(t, []byte{9, 9, 0, 0, 0, 0, 0, 0}, ctx.BufferContents(buf.Handle), "short data overwrites the full size")

	require.NoError(t, pool.UpdateBuffer(buf, pattern(16)))
	assert.Equal(t, pattern(8), ctx.BufferContents(buf.Handle), "long data is truncated")

	local, err := pool.CreateBuffer(8, DeviceLocal, 0, nil)
	require.NoError(t, err)
	err = pool.UpdateBuffer(local, pattern(8))
	assert.True(t, errors.Is(err, ErrNotHostVisible))
}

func TestDestroyIsIdempotent(t *testing.T) {
	pool, ctx := newPool(t)
	buf, err := pool.CreateBuffer(4, Staging, 0, nil)
	require.NoError(t, err)

	pool.Destroy(buf)
	pool.Destroy(buf)
	pool.Destroy(nil)
	assert.Zero(t, ctx.Live(""))
}

func barriers(cmds []gputest.Command) []gpu.ImageBarrier {
	var out []gpu.ImageBarrier
	for _, cmd := range cmds {
		if cmd.Op == "barrier" {
			out = append(out, cmd.Barrier)
		}
	}
	return out
}

func TestCreateImageTransitionsOnce(t *testing.T) {
	tests := []struct {
		name      string
		format    gpu.Format
		layout    gpu.ImageLayout
		aspect    gpu.ImageAspect
		dstAccess gpu.Access
		dstStage  gpu.PipelineStage
	}{
		{"depth", gpu.FormatD32Sfloat, gpu.LayoutDepthStencilAttachment, gpu.AspectDepth,
			gpu.AccessDepthStencilAttachmentRead | gpu.AccessDepthStencilAttachmentWrite, gpu.StageEarlyFragmentTests},
		{"depth stencil", gpu.FormatD24UnormS8Uint, gpu.LayoutDepthStencilAttachment, gpu.AspectDepth | gpu.AspectStencil,
			gpu.AccessDepthStencilAttachmentRead | gpu.AccessDepthStencilAttachmentWrite, gpu.StageEarlyFragmentTests},
		{"color", gpu.FormatB8G8R8A8Srgb, gpu.LayoutColorAttachment, gpu.AspectColor,
			gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite, gpu.StageColorAttachmentOutput},
		{"upload target", gpu.FormatR8G8B8A8Srgb, gpu.LayoutTransferDst, gpu.AspectColor,
			gpu.AccessTransferWrite, gpu.StageTransfer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, ctx := newPool(t)
			img, err := pool.CreateImage(ImageInfo{
				Extent: gpu.Extent2D{Width: 32, Height: 32},
				Format: tt.format,
				Layout: tt.layout,
			})
			require.NoError(t, err)

			got := barriers(ctx.Executed)
			require.Len(t, got, 1)
			assert.Equal(t, gpu.LayoutUndefined, got[0].OldLayout)
			assert.Equal(t, tt.layout, got[0].NewLayout)
			assert.Equal(t, tt.aspect, got[0].Aspect)
			assert.Equal(t, tt.dstAccess, got[0].DstAccess)
			assert.Equal(t, gpu.StageTopOfPipe, got[0].SrcStage)
			assert.Equal(t, tt.dstStage, got[0].DstStage)

			assert.Equal(t, tt.layout, img.Layout)
			assert.NotZero(t, img.View)
			assert.Equal(t, uint32(1), img.MipLevels)
			assert.Equal(t, gpu.Samples1, img.Samples)

			pool.Destroy(img)
			assert.Zero(t, ctx.Live(""))
		})
	}
}

func TestUnsupportedTransitionIsSkipped(t *testing.T) {
	var logs bytes.Buffer
	core.SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	defer core.SetLogger(nil)

	pool, ctx := newPool(t)
	img, err := pool.CreateImage(ImageInfo{
		Extent: gpu.Extent2D{Width: 4, Height: 4},
		Format: gpu.FormatR8G8B8A8Srgb,
		Layout: gpu.LayoutTransferDst,
	})
	require.NoError(t, err)
	ctx.ResetLog()

	err = pool.TransitionLayout(img, gpu.LayoutDepthStencilAttachment)
	require.NoError(t, err)

	assert.Equal(t, gpu.LayoutTransferDst, img.Layout, "layout is left unchanged")
	assert.Zero(t, img.Access)
	assert.Zero(t, img.Stage)
	assert.Empty(t, ctx.Submits, "no barrier is submitted")
	assert.Contains(t, logs.String(), "image layout transition skipped")
	assert.Contains(t, logs.String(), gpu.ErrUnsupportedTransition.Error())

	// The image stays usable for supported transitions afterwards.
	require.NoError(t, pool.TransitionLayout(img, gpu.LayoutShaderReadOnly))
	assert.Equal(t, gpu.LayoutShaderReadOnly, img.Layout)
}

func TestCreateImageWithUnsupportedTargetContinues(t *testing.T) {
	pool, _ := newPool(t)
	img, err := pool.CreateImage(ImageInfo{
		Extent: gpu.Extent2D{Width: 4, Height: 4},
		Format: gpu.FormatR8G8B8A8Srgb,
		Layout: gpu.LayoutPresentSrc,
	})
	require.NoError(t, err)
	assert.Equal(t, gpu.LayoutUndefined, img.Layout)
	assert.Zero(t, img.Access)
	assert.NotZero(t, img.View)
}

func TestMipLevels(t *testing.T) {
	tests := []struct {
		w, h uint32
		want uint32
	}{
		{0, 0, 1},
		{1, 1, 1},
		{2, 1, 2},
		{16, 8, 5},
		{640, 480, 10},
		{1024, 1024, 11},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MipLevels(tt.w, tt.h), "%dx%d", tt.w, tt.h)
	}
}

func TestGenerateMipmaps(t *testing.T) {
	pool, ctx := newPool(t)
	img, err := pool.CreateImage(ImageInfo{
		Extent:    gpu.Extent2D{Width: 16, Height: 8},
		Format:    gpu.FormatR8G8B8A8Srgb,
		MipLevels: MipLevels(16, 8),
		Layout:    gpu.LayoutTransferDst,
	})
	require.NoError(t, err)
	ctx.ResetLog()

	require.NoError(t, pool.GenerateMipmaps(img))
	require.Len(t, ctx.Submits, 1, "the whole chain is one one-shot command")

	var ops []string
	var blits []gpu.Blit
	for _, cmd := range ctx.Executed {
		ops = append(ops, cmd.Op)
		if cmd.Op == "blit" {
			blits = append(blits, cmd.Blit)
		}
	}
	want := []string{}
	for i := 1; i < 5; i++ {
		want = append(want, "barrier", "blit", "barrier")
	}
	want = append(want, "barrier")
	assert.Equal(t, want, ops)

	extents := []gpu.Extent2D{
		{Width: 16, Height: 8},
		{Width: 8, Height: 4},
		{Width: 4, Height: 2},
		{Width: 2, Height: 1},
		{Width: 1, Height: 1},
	}
	require.Len(t, blits, 4)
	for i, b := range blits {
		assert.Equal(t, uint32(i), b.SrcMip)
		assert.Equal(t, uint32(i+1), b.DstMip)
		assert.Equal(t, extents[i], b.SrcExtent)
		assert.Equal(t, extents[i+1], b.DstExtent)
	}

	bs := barriers(ctx.Executed)
	// Level i-1 goes write -> read before the blit, read -> shader after.
	assert.Equal(t, gpu.LayoutTransferDst, bs[0].OldLayout)
	assert.Equal(t, gpu.LayoutTransferSrc, bs[0].NewLayout)
	assert.Equal(t, uint32(0), bs[0].BaseMip)
	assert.Equal(t, gpu.LayoutTransferSrc, bs[1].OldLayout)
	assert.Equal(t, gpu.LayoutShaderReadOnly, bs[1].NewLayout)
	last := bs[len(bs)-1]
	assert.Equal(t, uint32(4), last.BaseMip)
	assert.Equal(t, gpu.LayoutTransferDst, last.OldLayout)
	assert.Equal(t, gpu.LayoutShaderReadOnly, last.NewLayout)

	assert.Equal(t, gpu.LayoutShaderReadOnly, img.Layout)
}

func TestGenerateMipmapsRequiresTransferDst(t *testing.T) {
	pool, _ := newPool(t)
	img, err := pool.CreateImage(ImageInfo{
		Extent:    gpu.Extent2D{Width: 8, Height: 8},
		Format:    gpu.FormatR8G8B8A8Srgb,
		MipLevels: 4,
		Layout:    gpu.LayoutColorAttachment,
	})
	require.NoError(t, err)
	assert.Error(t, pool.GenerateMipmaps(img))
}

func TestTextureUploadAndReadImage(t *testing.T) {
	pool, ctx := newPool(t)
	pixels := pattern(4 * 4 * 4)

	tex, err := pool.CreateTextureFromPixels("checker", 4, 4, pixels)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), tex.Image.MipLevels)
	assert.Equal(t, gpu.LayoutShaderReadOnly, tex.Image.Layout)
	assert.Equal(t, 1, ctx.Live("buffer")+ctx.Live("image"), "only the image survives the upload")

	got, err := pool.ReadImage(tex.Image)
	require.NoError(t, err)
	assert.Equal(t, pixels, got)
	assert.Equal(t, gpu.LayoutShaderReadOnly, tex.Image.Layout, "layout restored after readback")

	pool.Destroy(tex)
	pool.Close()
	assert.Zero(t, ctx.Live(""))
}

func TestReadImageRejectsMultisampled(t *testing.T) {
	pool, _ := newPool(t)
	img, err := pool.CreateImage(ImageInfo{
		Extent:  gpu.Extent2D{Width: 4, Height: 4},
		Format:  gpu.FormatB8G8R8A8Srgb,
		Samples: gpu.Samples4,
		Layout:  gpu.LayoutColorAttachment,
	})
	require.NoError(t, err)
	_, err = pool.ReadImage(img)
	assert.Error(t, err)
}

func TestSamplerCache(t *testing.T) {
	pool, ctx := newPool(t)
	a, err := pool.Sampler(4)
	require.NoError(t, err)
	b, err := pool.Sampler(4)
	require.NoError(t, err)
	c, err := pool.Sampler(1)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 2, ctx.Live("sampler"))
	pool.Close()
	assert.Zero(t, ctx.Live("sampler"))
}

func TestUniformBuffer(t *testing.T) {
	pool, ctx := newPool(t)
	u, err := pool.NewUniformBuffer(16)
	require.NoError(t, err)
	assert.Len(t, u.Buffers, 3, "one buffer per back buffer")

	require.NoError(t, u.Update(pattern(16), 2))
	assert.Equal(t, pattern(16), ctx.BufferContents(u.Buffers[2].Handle))
	assert.Equal(t, make([]byte, 16), ctx.BufferContents(u.Buffers[0].Handle))
	assert.Error(t, u.Update(nil, 3))

	pool.Destroy(u)
	assert.Zero(t, ctx.Live(""))
}

func TestToRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 30, 20))
	src.Set(10, 10, color.NRGBA{R: 255, A: 255})

	got := toRGBA(src, 0)
	assert.Equal(t, image.Rect(0, 0, 20, 10), got.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, got.RGBAAt(0, 0))

	scaled := toRGBA(src, 8)
	assert.Equal(t, image.Rect(0, 0, 8, 4), scaled.Bounds())
}
