package gpu

import "fmt"

// Enum values mirror the Vulkan constants so the backend converts by cast.

type Format uint32

const (
	FormatUndefined         Format = 0
	FormatR8G8B8A8Unorm     Format = 37
	FormatR8G8B8A8Srgb      Format = 43
	FormatB8G8R8A8Unorm     Format = 44
	FormatB8G8R8A8Srgb      Format = 50
	FormatR32G32Sfloat      Format = 103
	FormatR32G32B32Sint     Format = 105
	FormatR32G32B32Sfloat   Format = 106
	FormatR32G32B32A32Float Format = 109
	FormatD32Sfloat         Format = 126
	FormatD24UnormS8Uint    Format = 129
	FormatD32SfloatS8Uint   Format = 130
)

// HasStencil reports whether a depth format carries a stencil component.
func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

func (f Format) IsDepth() bool {
	return f == FormatD32Sfloat || f.HasStencil()
}

// Aspect returns the aspect mask used for views and barriers of f.
func (f Format) Aspect() ImageAspect {
	switch {
	case f.HasStencil():
		return AspectDepth | AspectStencil
	case f.IsDepth():
		return AspectDepth
	default:
		return AspectColor
	}
}

type ImageLayout uint32

const (
	LayoutUndefined              ImageLayout = 0
	LayoutGeneral                ImageLayout = 1
	LayoutColorAttachment        ImageLayout = 2
	LayoutDepthStencilAttachment ImageLayout = 3
	LayoutDepthStencilReadOnly   ImageLayout = 4
	LayoutShaderReadOnly         ImageLayout = 5
	LayoutTransferSrc            ImageLayout = 6
	LayoutTransferDst            ImageLayout = 7
	LayoutPreinitialized         ImageLayout = 8
	LayoutPresentSrc             ImageLayout = 1000001002
)

var layoutNames = map[ImageLayout]string{
	LayoutUndefined:              "undefined",
	LayoutGeneral:                "general",
	LayoutColorAttachment:        "color-attachment",
	LayoutDepthStencilAttachment: "depth-stencil-attachment",
	LayoutDepthStencilReadOnly:   "depth-stencil-read-only",
	LayoutShaderReadOnly:         "shader-read-only",
	LayoutTransferSrc:            "transfer-src",
	LayoutTransferDst:            "transfer-dst",
	LayoutPreinitialized:         "preinitialized",
	LayoutPresentSrc:             "present-src",
}

func (l ImageLayout) String() string {
	if name, ok := layoutNames[l]; ok {
		return name
	}
	return fmt.Sprintf("layout(%d)", uint32(l))
}

type PipelineStage uint32

const (
	StageTopOfPipe             PipelineStage = 0x00000001
	StageVertexShader          PipelineStage = 0x00000008
	StageFragmentShader        PipelineStage = 0x00000080
	StageEarlyFragmentTests    PipelineStage = 0x00000100
	StageLateFragmentTests     PipelineStage = 0x00000200
	StageColorAttachmentOutput PipelineStage = 0x00000400
	StageTransfer              PipelineStage = 0x00001000
	StageBottomOfPipe          PipelineStage = 0x00002000
)

type Access uint32

const (
	AccessUniformRead                 Access = 0x00000008
	AccessShaderRead                  Access = 0x00000020
	AccessColorAttachmentRead         Access = 0x00000080
	AccessColorAttachmentWrite        Access = 0x00000100
	AccessDepthStencilAttachmentRead  Access = 0x00000200
	AccessDepthStencilAttachmentWrite Access = 0x00000400
	AccessTransferRead                Access = 0x00000800
	AccessTransferWrite               Access = 0x00001000
)

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 0x00000001
	BufferUsageTransferDst BufferUsage = 0x00000002
	BufferUsageUniform     BufferUsage = 0x00000010
	BufferUsageIndex       BufferUsage = 0x00000040
	BufferUsageVertex      BufferUsage = 0x00000080
)

type ImageUsage uint32

const (
	ImageUsageTransferSrc     ImageUsage = 0x00000001
	ImageUsageTransferDst     ImageUsage = 0x00000002
	ImageUsageSampled         ImageUsage = 0x00000004
	ImageUsageColorAttachment ImageUsage = 0x00000010
	ImageUsageDepthStencil    ImageUsage = 0x00000020
	ImageUsageTransient       ImageUsage = 0x00000040
)

type MemoryProperty uint32

const (
	MemoryDeviceLocal  MemoryProperty = 0x00000001
	MemoryHostVisible  MemoryProperty = 0x00000002
	MemoryHostCoherent MemoryProperty = 0x00000004
	MemoryHostCached   MemoryProperty = 0x00000008
)

type ImageAspect uint32

const (
	AspectColor   ImageAspect = 0x00000001
	AspectDepth   ImageAspect = 0x00000002
	AspectStencil ImageAspect = 0x00000004
)

type SampleCount uint32

const (
	Samples1  SampleCount = 0x00000001
	Samples2  SampleCount = 0x00000002
	Samples4  SampleCount = 0x00000004
	Samples8  SampleCount = 0x00000008
	Samples16 SampleCount = 0x00000010
	Samples32 SampleCount = 0x00000020
	Samples64 SampleCount = 0x00000040
)

// Multisampled reports whether resolve attachments are needed.
func (s SampleCount) Multisampled() bool {
	return s > Samples1
}

// ClampSamples returns the highest supported count not above want.
func ClampSamples(want, max SampleCount) SampleCount {
	if want == 0 {
		return Samples1
	}
	for s := want; s > Samples1; s >>= 1 {
		if s <= max {
			return s
		}
	}
	return Samples1
}

type ShaderStage uint32

const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageFragment ShaderStage = 0x00000010
)

type DescriptorType uint32

const (
	DescriptorCombinedImageSampler DescriptorType = 1
	DescriptorUniformBuffer        DescriptorType = 6
)

type CompareOp uint32

const (
	CompareNever   CompareOp = 0
	CompareLess    CompareOp = 1
	CompareEqual   CompareOp = 2
	CompareLEqual  CompareOp = 3
	CompareGreater CompareOp = 4
	CompareAlways  CompareOp = 7
)
