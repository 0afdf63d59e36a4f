// Package gpu defines the graphics device seam the frame pipeline is built on:
// opaque handles, Vulkan-valued enums, and the Device, Recorder and Context
// interfaces implemented by the vulkan backend and by gputest.
package gpu

// MaxFramesInFlight bounds the number of frames submitted but not yet
// confirmed complete by their fence.
const MaxFramesInFlight = 2

// Opaque backend handles. The zero value is the null handle.
type (
	Buffer              uint64
	Memory              uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	PipelineLayout      uint64
	Pipeline            uint64
	RenderPass          uint64
	Framebuffer         uint64
	ShaderModule        uint64
	CommandBuffer       uint64
	Semaphore           uint64
	Fence               uint64
)

// Extent2D is a width/height pair in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Half returns the extent of the next mip level.
func (e Extent2D) Half() Extent2D {
	h := Extent2D{Width: e.Width / 2, Height: e.Height / 2}
	if h.Width == 0 {
		h.Width = 1
	}
	if h.Height == 0 {
		h.Height = 1
	}
	return h
}

func (e Extent2D) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	TypeBits  uint32
}

type ImageInfo struct {
	Extent    Extent2D
	Format    Format
	MipLevels uint32
	Samples   SampleCount
	Usage     ImageUsage
}

// ImageBarrier is a single image memory barrier over a mip range.
type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcAccess Access
	DstAccess Access
	SrcStage  PipelineStage
	DstStage  PipelineStage
	Aspect    ImageAspect
	BaseMip   uint32
	MipCount  uint32
}

// Blit copies SrcMip of Src into DstMip of Dst with linear filtering.
type Blit struct {
	Src       Image
	Dst       Image
	SrcMip    uint32
	DstMip    uint32
	SrcExtent Extent2D
	DstExtent Extent2D
}

type LayoutBinding struct {
	Binding uint32
	Type    DescriptorType
	Stage   ShaderStage
}

type PoolSize struct {
	Type  DescriptorType
	Count uint32
}

// DescriptorWrite fills one binding of one set. Buffer/Range are used for
// uniform buffers, View/Sampler for combined image samplers.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding uint32
	Type    DescriptorType
	Buffer  Buffer
	Range   uint64
	View    ImageView
	Sampler Sampler
}

// RenderPassInfo describes a single-subpass render pass. Attachment order is
// fixed by the render target: without multisampling
// [output, color1..colorN-1, depth]; with multisampling
// [color0..colorN-1, depth, output, resolve1..resolveN-1].
type RenderPassInfo struct {
	ColorFormat      Format
	DepthFormat      Format
	Samples          SampleCount
	ColorAttachments int
	Present          bool
}

type FramebufferInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent2D
}

type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

// FixedFunction is the rasterizer, depth and blend state of a pipeline.
type FixedFunction struct {
	CullBack       bool
	FrontClockwise bool
	DepthTest      bool
	DepthWrite     bool
	DepthCompare   CompareOp
	Blend          bool
}

type GraphicsPipelineInfo struct {
	Vertex           ShaderModule
	Fragment         ShaderModule
	Layout           PipelineLayout
	RenderPass       RenderPass
	Stride           uint32
	Attributes       []VertexAttribute
	Samples          SampleCount
	ColorAttachments int
	State            FixedFunction
}

// ClearValue clears either a color or a depth attachment.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
	IsDepth bool
}

func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

func ClearDepth(depth float32) ClearValue {
	return ClearValue{Depth: depth, IsDepth: true}
}

// SubmitInfo is one queue submission. WaitStages pairs with Wait.
type SubmitInfo struct {
	CommandBuffers []CommandBuffer
	Wait           []Semaphore
	WaitStages     []PipelineStage
	Signal         []Semaphore
}

// Device creates and destroys GPU objects and owns the graphics queue and the
// single command pool.
type Device interface {
	CreateBuffer(size uint64, usage BufferUsage) (Buffer, MemoryRequirements, error)
	DestroyBuffer(Buffer)
	CreateImage(ImageInfo) (Image, MemoryRequirements, error)
	DestroyImage(Image)
	CreateImageView(img Image, format Format, aspect ImageAspect, mipLevels uint32) (ImageView, error)
	DestroyImageView(ImageView)
	AllocateMemory(size uint64, memoryType uint32) (Memory, error)
	FreeMemory(Memory)
	BindBufferMemory(Buffer, Memory) error
	BindImageMemory(Image, Memory) error
	MapMemory(mem Memory, size uint64) ([]byte, error)
	UnmapMemory(Memory)
	CreateSampler(mipLevels uint32) (Sampler, error)
	DestroySampler(Sampler)

	CreateDescriptorSetLayout([]LayoutBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(DescriptorSetLayout)
	CreateDescriptorPool(sizes []PoolSize, maxSets uint32) (DescriptorPool, error)
	DestroyDescriptorPool(DescriptorPool)
	AllocateDescriptorSets(pool DescriptorPool, layout DescriptorSetLayout, count int) ([]DescriptorSet, error)
	UpdateDescriptorSets([]DescriptorWrite)

	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(ShaderModule)
	CreatePipelineLayout([]DescriptorSetLayout) (PipelineLayout, error)
	DestroyPipelineLayout(PipelineLayout)
	CreateGraphicsPipeline(GraphicsPipelineInfo) (Pipeline, error)
	DestroyPipeline(Pipeline)
	CreateRenderPass(RenderPassInfo) (RenderPass, error)
	DestroyRenderPass(RenderPass)
	CreateFramebuffer(FramebufferInfo) (Framebuffer, error)
	DestroyFramebuffer(Framebuffer)

	AllocateCommandBuffers(count int) ([]CommandBuffer, error)
	FreeCommandBuffers([]CommandBuffer)
	Recorder(CommandBuffer) Recorder

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(Semaphore)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(Fence)
	WaitForFence(Fence) error
	ResetFence(Fence) error

	Submit(SubmitInfo, Fence) error
	QueueWaitIdle() error
	WaitIdle() error
}

// Recorder records commands into one command buffer.
type Recorder interface {
	Begin(oneTime bool) error
	End() error
	BeginRenderPass(rp RenderPass, fb Framebuffer, extent Extent2D, clears []ClearValue)
	EndRenderPass()
	SetViewport(extent Extent2D)
	BindPipeline(Pipeline)
	BindVertexBuffer(Buffer)
	BindIndexBuffer(Buffer)
	BindDescriptorSet(layout PipelineLayout, set DescriptorSet)
	DrawIndexed(indexCount uint32)
	CopyBuffer(src, dst Buffer, size uint64)
	CopyBufferToImage(src Buffer, dst Image, extent Extent2D, aspect ImageAspect)
	CopyImageToBuffer(src Image, dst Buffer, extent Extent2D, aspect ImageAspect)
	PipelineBarrier(ImageBarrier)
	BlitImage(Blit)
}

// Context is the graphics context the frame pipeline consumes: the device,
// the back-buffer chain and memory-type lookup.
type Context interface {
	Device() Device
	FindMemoryType(typeBits uint32, props MemoryProperty) (uint32, error)
	MaxSamples() SampleCount

	BackBufferCount() int
	Extent() Extent2D
	BackBufferViews() []ImageView
	ColorFormat() Format
	DepthFormat() Format

	// Acquire returns the next back-buffer index and signals the semaphore
	// once it is available. It returns ErrOutOfDate when the chain must be
	// recreated before drawing.
	Acquire(signal Semaphore) (uint32, error)
	// Present queues the back buffer for display after wait is signaled.
	// ErrOutOfDate and ErrSuboptimal ask for a refresh.
	Present(index uint32, wait Semaphore) error
	RecreateSwapchain() error
}
