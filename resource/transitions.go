package resource

import (
	"vkframe/core"
	"vkframe/gpu"
)

type layoutPair struct {
	from, to gpu.ImageLayout
}

type barrierMasks struct {
	srcAccess, dstAccess gpu.Access
	srcStage, dstStage   gpu.PipelineStage
}

// transitions holds the barrier recipe for every supported layout change.
var transitions = map[layoutPair]barrierMasks{
	{gpu.LayoutUndefined, gpu.LayoutTransferDst}: {
		dstAccess: gpu.AccessTransferWrite,
		srcStage:  gpu.StageTopOfPipe,
		dstStage:  gpu.StageTransfer,
	},
	{gpu.LayoutTransferDst, gpu.LayoutShaderReadOnly}: {
		srcAccess: gpu.AccessTransferWrite,
		dstAccess: gpu.AccessShaderRead,
		srcStage:  gpu.StageTransfer,
		dstStage:  gpu.StageFragmentShader,
	},
	{gpu.LayoutUndefined, gpu.LayoutDepthStencilAttachment}: {
		dstAccess: gpu.AccessDepthStencilAttachmentRead | gpu.AccessDepthStencilAttachmentWrite,
		srcStage:  gpu.StageTopOfPipe,
		dstStage:  gpu.StageEarlyFragmentTests,
	},
	{gpu.LayoutUndefined, gpu.LayoutColorAttachment}: {
		dstAccess: gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite,
		srcStage:  gpu.StageTopOfPipe,
		dstStage:  gpu.StageColorAttachmentOutput,
	},
	{gpu.LayoutShaderReadOnly, gpu.LayoutTransferSrc}: {
		srcAccess: gpu.AccessShaderRead,
		dstAccess: gpu.AccessTransferRead,
		srcStage:  gpu.StageFragmentShader,
		dstStage:  gpu.StageTransfer,
	},
	{gpu.LayoutTransferSrc, gpu.LayoutShaderReadOnly}: {
		srcAccess: gpu.AccessTransferRead,
		dstAccess: gpu.AccessShaderRead,
		srcStage:  gpu.StageTransfer,
		dstStage:  gpu.StageFragmentShader,
	},
	{gpu.LayoutColorAttachment, gpu.LayoutTransferSrc}: {
		srcAccess: gpu.AccessColorAttachmentWrite,
		dstAccess: gpu.AccessTransferRead,
		srcStage:  gpu.StageColorAttachmentOutput,
		dstStage:  gpu.StageTransfer,
	},
	{gpu.LayoutTransferSrc, gpu.LayoutColorAttachment}: {
		srcAccess: gpu.AccessTransferRead,
		dstAccess: gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite,
		srcStage:  gpu.StageTransfer,
		dstStage:  gpu.StageColorAttachmentOutput,
	},
}

// SupportsTransition reports whether a barrier recipe exists for from → to.
func SupportsTransition(from, to gpu.ImageLayout) bool {
	_, ok := transitions[layoutPair{from, to}]
	return ok
}

// recordTransition records the barrier moving img to layout and updates its
// layout state. An unsupported pair is logged and skipped: the image keeps
// its layout, its access and stage are cleared, and false is returned.
func recordTransition(rec gpu.Recorder, img *Image, layout gpu.ImageLayout) bool {
	masks, ok := transitions[layoutPair{img.Layout, layout}]
	if !ok {
		core.Logger().Warn("image layout transition skipped",
			"image", img.Handle,
			"from", img.Layout,
			"to", layout,
			"err", gpu.ErrUnsupportedTransition)
		img.Access, img.Stage = 0, 0
		return false
	}

	rec.PipelineBarrier(gpu.ImageBarrier{
		Image:     img.Handle,
		OldLayout: img.Layout,
		NewLayout: layout,
		SrcAccess: masks.srcAccess,
		DstAccess: masks.dstAccess,
		SrcStage:  masks.srcStage,
		DstStage:  masks.dstStage,
		Aspect:    img.Format.Aspect(),
		BaseMip:   0,
		MipCount:  img.MipLevels,
	})
	img.Layout, img.Access, img.Stage = layout, masks.dstAccess, masks.dstStage
	return true
}
