// Package gputest provides a deterministic in-memory gpu.Context. Buffers and
// images are backed by byte slices and transfer commands really execute on
// submit, so upload and readback paths can be checked end to end. Every call
// that matters for ordering is appended to Log.
package gputest

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"vkframe/gpu"
)

// Command is one recorded command.
type Command struct {
	Op      string
	Handles []uint64
	Count   uint64
	Extent  gpu.Extent2D
	Barrier gpu.ImageBarrier
	Blit    gpu.Blit
	Clears  []gpu.ClearValue
}

// Submission is one call to Submit.
type Submission struct {
	Info  gpu.SubmitInfo
	Fence gpu.Fence
}

var memoryTypes = []gpu.MemoryProperty{
	gpu.MemoryDeviceLocal,
	gpu.MemoryHostVisible | gpu.MemoryHostCoherent,
}

// Context is a recording fake of gpu.Context and gpu.Device.
type Context struct {
	Log      []string
	Submits  []Submission
	Presents []uint32
	Writes   []gpu.DescriptorWrite
	// Executed holds every command of every submitted command buffer.
	Executed []Command

	Pipelines    map[gpu.Pipeline]gpu.GraphicsPipelineInfo
	RenderPasses map[gpu.RenderPass]gpu.RenderPassInfo
	Framebuffers map[gpu.Framebuffer]gpu.FramebufferInfo

	// AcquireErrs and PresentErrs are consumed one per call; a nil entry or
	// an empty queue means success.
	AcquireErrs []error
	PresentErrs []error
	// NextExtent, when non-zero, becomes the extent on RecreateSwapchain.
	NextExtent gpu.Extent2D
	// NextBackBuffers, when non-zero, becomes the back-buffer count on
	// RecreateSwapchain.
	NextBackBuffers int

	FailMemoryType bool
	Samples        gpu.SampleCount

	next        uint64
	live        map[uint64]string
	memory      map[gpu.Memory][]byte
	memoryType  map[gpu.Memory]uint32
	mapped      map[gpu.Memory]bool
	bufferMem   map[gpu.Buffer]gpu.Memory
	bufferSize  map[gpu.Buffer]uint64
	imageMem    map[gpu.Image]gpu.Memory
	imageInfo   map[gpu.Image]gpu.ImageInfo
	commands    map[gpu.CommandBuffer][]Command
	recording   map[gpu.CommandBuffer]bool
	fences      map[gpu.Fence]bool
	backBuffers int
	extent      gpu.Extent2D
	views       []gpu.ImageView
	acquired    uint32
}

var _ gpu.Context = (*Context)(nil)
var _ gpu.Device = (*Context)(nil)

// New returns a context with the given number of back buffers at 800x600.
func New(backBuffers int) *Context {
	c := &Context{
		Samples:      gpu.Samples8,
		Pipelines:    make(map[gpu.Pipeline]gpu.GraphicsPipelineInfo),
		RenderPasses: make(map[gpu.RenderPass]gpu.RenderPassInfo),
		Framebuffers: make(map[gpu.Framebuffer]gpu.FramebufferInfo),
		live:         make(map[uint64]string),
		memory:       make(map[gpu.Memory][]byte),
		memoryType:   make(map[gpu.Memory]uint32),
		mapped:       make(map[gpu.Memory]bool),
		bufferMem:    make(map[gpu.Buffer]gpu.Memory),
		bufferSize:   make(map[gpu.Buffer]uint64),
		imageMem:     make(map[gpu.Image]gpu.Memory),
		imageInfo:    make(map[gpu.Image]gpu.ImageInfo),
		commands:     make(map[gpu.CommandBuffer][]Command),
		recording:    make(map[gpu.CommandBuffer]bool),
		fences:       make(map[gpu.Fence]bool),
		backBuffers:  backBuffers,
		extent:       gpu.Extent2D{Width: 800, Height: 600},
	}
	c.createViews()
	return c
}

func (c *Context) handle(kind string) uint64 {
	c.next++
	c.live[c.next] = kind
	return c.next
}

func (c *Context) release(h uint64, kind string) {
	if h == 0 {
		return
	}
	if c.live[h] != kind {
		panic(fmt.Sprintf("gputest: destroy of %s %d which is not live (%q)", kind, h, c.live[h]))
	}
	delete(c.live, h)
}

func (c *Context) logf(format string, args ...any) {
	c.Log = append(c.Log, fmt.Sprintf(format, args...))
}

func (c *Context) createViews() {
	c.views = make([]gpu.ImageView, c.backBuffers)
	for i := range c.views {
		c.next++
		c.views[i] = gpu.ImageView(c.next)
	}
}

// Live returns the number of live objects of kind, or of every kind when
// kind is empty.
func (c *Context) Live(kind string) int {
	n := 0
	for _, k := range c.live {
		if kind == "" || k == kind {
			n++
		}
	}
	return n
}

// Events returns the log entries whose operation is one of ops, in order.
func (c *Context) Events(ops ...string) []string {
	var out []string
	for _, entry := range c.Log {
		op, _, _ := strings.Cut(entry, " ")
		for _, want := range ops {
			if op == want {
				out = append(out, entry)
				break
			}
		}
	}
	return out
}

// ResetLog clears Log, Submits, Presents and Executed.
func (c *Context) ResetLog() {
	c.Log = nil
	c.Submits = nil
	c.Presents = nil
	c.Executed = nil
}

// Commands returns the commands recorded into cb since its last Begin.
func (c *Context) Commands(cb gpu.CommandBuffer) []Command {
	return c.commands[cb]
}

// Ops returns the operation names recorded into cb.
func (c *Context) Ops(cb gpu.CommandBuffer) []string {
	var ops []string
	for _, cmd := range c.commands[cb] {
		ops = append(ops, cmd.Op)
	}
	return ops
}

// ImageInfo returns the creation info of a live image.
func (c *Context) ImageInfo(img gpu.Image) gpu.ImageInfo {
	return c.imageInfo[img]
}

// BufferContents returns a copy of the memory bound to buf.
func (c *Context) BufferContents(buf gpu.Buffer) []byte {
	mem := c.memory[c.bufferMem[buf]]
	out := make([]byte, c.bufferSize[buf])
	copy(out, mem)
	return out
}

// Context

func (c *Context) Device() gpu.Device { return c }

func (c *Context) FindMemoryType(typeBits uint32, props gpu.MemoryProperty) (uint32, error) {
	if !c.FailMemoryType {
		for i, t := range memoryTypes {
			if typeBits&(1<<i) != 0 && t&props == props {
				return uint32(i), nil
			}
		}
	}
	return 0, errors.Mark(errors.Newf("no memory type for bits %#x props %#x", typeBits, props), gpu.ErrOutOfMemoryType)
}

func (c *Context) MaxSamples() gpu.SampleCount     { return c.Samples }
func (c *Context) BackBufferCount() int            { return c.backBuffers }
func (c *Context) Extent() gpu.Extent2D            { return c.extent }
func (c *Context) BackBufferViews() []gpu.ImageView { return c.views }
func (c *Context) ColorFormat() gpu.Format         { return gpu.FormatB8G8R8A8Srgb }
func (c *Context) DepthFormat() gpu.Format         { return gpu.FormatD32Sfloat }

func (c *Context) Acquire(signal gpu.Semaphore) (uint32, error) {
	c.logf("acquire %d", signal)
	if err := popErr(&c.AcquireErrs); err != nil && !errors.Is(err, gpu.ErrSuboptimal) {
		return 0, err
	}
	index := c.acquired % uint32(c.backBuffers)
	c.acquired++
	return index, nil
}

func (c *Context) Present(index uint32, wait gpu.Semaphore) error {
	c.logf("present %d", index)
	c.Presents = append(c.Presents, index)
	return popErr(&c.PresentErrs)
}

func (c *Context) RecreateSwapchain() error {
	c.logf("recreate-swapchain")
	if !c.NextExtent.Empty() {
		c.extent = c.NextExtent
		c.NextExtent = gpu.Extent2D{}
	}
	if c.NextBackBuffers > 0 {
		c.backBuffers = c.NextBackBuffers
		c.NextBackBuffers = 0
	}
	c.createViews()
	c.acquired = 0
	return nil
}

func popErr(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

// Device: memory and resources

func (c *Context) CreateBuffer(size uint64, usage gpu.BufferUsage) (gpu.Buffer, gpu.MemoryRequirements, error) {
	b := gpu.Buffer(c.handle("buffer"))
	c.bufferSize[b] = size
	c.logf("create-buffer %d", b)
	return b, gpu.MemoryRequirements{Size: size, Alignment: 4, TypeBits: 0b11}, nil
}

func (c *Context) DestroyBuffer(b gpu.Buffer) {
	c.release(uint64(b), "buffer")
	delete(c.bufferMem, b)
	delete(c.bufferSize, b)
	c.logf("destroy-buffer %d", b)
}

func (c *Context) CreateImage(info gpu.ImageInfo) (gpu.Image, gpu.MemoryRequirements, error) {
	img := gpu.Image(c.handle("image"))
	c.imageInfo[img] = info
	c.logf("create-image %d", img)
	size := uint64(info.Extent.Width) * uint64(info.Extent.Height) * 4
	return img, gpu.MemoryRequirements{Size: size, Alignment: 4, TypeBits: 0b11}, nil
}

func (c *Context) DestroyImage(img gpu.Image) {
	c.release(uint64(img), "image")
	delete(c.imageMem, img)
	delete(c.imageInfo, img)
	c.logf("destroy-image %d", img)
}

func (c *Context) CreateImageView(img gpu.Image, format gpu.Format, aspect gpu.ImageAspect, mipLevels uint32) (gpu.ImageView, error) {
	v := gpu.ImageView(c.handle("view"))
	c.logf("create-view %d", v)
	return v, nil
}

func (c *Context) DestroyImageView(v gpu.ImageView) {
	c.release(uint64(v), "view")
	c.logf("destroy-view %d", v)
}

func (c *Context) AllocateMemory(size uint64, memoryType uint32) (gpu.Memory, error) {
	m := gpu.Memory(c.handle("memory"))
	c.memory[m] = make([]byte, size)
	c.memoryType[m] = memoryType
	return m, nil
}

func (c *Context) FreeMemory(m gpu.Memory) {
	if c.mapped[m] {
		panic(fmt.Sprintf("gputest: free of mapped memory %d", m))
	}
	c.release(uint64(m), "memory")
	delete(c.memory, m)
	delete(c.memoryType, m)
}

func (c *Context) BindBufferMemory(b gpu.Buffer, m gpu.Memory) error {
	c.bufferMem[b] = m
	return nil
}

func (c *Context) BindImageMemory(img gpu.Image, m gpu.Memory) error {
	c.imageMem[img] = m
	return nil
}

func (c *Context) MapMemory(m gpu.Memory, size uint64) ([]byte, error) {
	if memoryTypes[c.memoryType[m]]&gpu.MemoryHostVisible == 0 {
		return nil, errors.Newf("map of device-local memory %d", m)
	}
	if c.mapped[m] {
		return nil, errors.Newf("memory %d already mapped", m)
	}
	c.mapped[m] = true
	return c.memory[m][:size], nil
}

func (c *Context) UnmapMemory(m gpu.Memory) {
	c.mapped[m] = false
}

func (c *Context) CreateSampler(mipLevels uint32) (gpu.Sampler, error) {
	return gpu.Sampler(c.handle("sampler")), nil
}

func (c *Context) DestroySampler(s gpu.Sampler) { c.release(uint64(s), "sampler") }

// Device: descriptors and pipelines

func (c *Context) CreateDescriptorSetLayout(bindings []gpu.LayoutBinding) (gpu.DescriptorSetLayout, error) {
	l := gpu.DescriptorSetLayout(c.handle("set-layout"))
	c.logf("create-set-layout %d", l)
	return l, nil
}

func (c *Context) DestroyDescriptorSetLayout(l gpu.DescriptorSetLayout) {
	c.release(uint64(l), "set-layout")
}

func (c *Context) CreateDescriptorPool(sizes []gpu.PoolSize, maxSets uint32) (gpu.DescriptorPool, error) {
	return gpu.DescriptorPool(c.handle("descriptor-pool")), nil
}

func (c *Context) DestroyDescriptorPool(p gpu.DescriptorPool) {
	c.release(uint64(p), "descriptor-pool")
}

func (c *Context) AllocateDescriptorSets(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout, count int) ([]gpu.DescriptorSet, error) {
	sets := make([]gpu.DescriptorSet, count)
	for i := range sets {
		// Sets are owned by their pool and are not tracked as live objects.
		c.next++
		sets[i] = gpu.DescriptorSet(c.next)
	}
	return sets, nil
}

func (c *Context) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	c.Writes = append(c.Writes, writes...)
}

func (c *Context) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 {
		return 0, errors.New("empty shader code")
	}
	return gpu.ShaderModule(c.handle("shader")), nil
}

func (c *Context) DestroyShaderModule(m gpu.ShaderModule) { c.release(uint64(m), "shader") }

func (c *Context) CreatePipelineLayout(layouts []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	return gpu.PipelineLayout(c.handle("pipeline-layout")), nil
}

func (c *Context) DestroyPipelineLayout(l gpu.PipelineLayout) {
	c.release(uint64(l), "pipeline-layout")
}

func (c *Context) CreateGraphicsPipeline(info gpu.GraphicsPipelineInfo) (gpu.Pipeline, error) {
	p := gpu.Pipeline(c.handle("pipeline"))
	c.Pipelines[p] = info
	c.logf("create-pipeline %d", p)
	return p, nil
}

func (c *Context) DestroyPipeline(p gpu.Pipeline) { c.release(uint64(p), "pipeline") }

func (c *Context) CreateRenderPass(info gpu.RenderPassInfo) (gpu.RenderPass, error) {
	rp := gpu.RenderPass(c.handle("render-pass"))
	c.RenderPasses[rp] = info
	c.logf("create-render-pass %d", rp)
	return rp, nil
}

func (c *Context) DestroyRenderPass(rp gpu.RenderPass) { c.release(uint64(rp), "render-pass") }

func (c *Context) CreateFramebuffer(info gpu.FramebufferInfo) (gpu.Framebuffer, error) {
	fb := gpu.Framebuffer(c.handle("framebuffer"))
	c.Framebuffers[fb] = info
	c.logf("create-framebuffer %d", fb)
	return fb, nil
}

func (c *Context) DestroyFramebuffer(fb gpu.Framebuffer) {
	c.release(uint64(fb), "framebuffer")
	c.logf("destroy-framebuffer %d", fb)
}

// Device: commands and synchronization

func (c *Context) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	cmds := make([]gpu.CommandBuffer, count)
	for i := range cmds {
		cmds[i] = gpu.CommandBuffer(c.handle("command-buffer"))
	}
	c.logf("allocate-commands %d", count)
	return cmds, nil
}

func (c *Context) FreeCommandBuffers(cmds []gpu.CommandBuffer) {
	for _, cb := range cmds {
		c.release(uint64(cb), "command-buffer")
		delete(c.commands, cb)
		delete(c.recording, cb)
	}
	c.logf("free-commands %d", len(cmds))
}

func (c *Context) Recorder(cb gpu.CommandBuffer) gpu.Recorder {
	return &recorder{ctx: c, cb: cb}
}

func (c *Context) CreateSemaphore() (gpu.Semaphore, error) {
	return gpu.Semaphore(c.handle("semaphore")), nil
}

func (c *Context) DestroySemaphore(s gpu.Semaphore) { c.release(uint64(s), "semaphore") }

func (c *Context) CreateFence(signaled bool) (gpu.Fence, error) {
	f := gpu.Fence(c.handle("fence"))
	c.fences[f] = signaled
	return f, nil
}

func (c *Context) DestroyFence(f gpu.Fence) {
	c.release(uint64(f), "fence")
	delete(c.fences, f)
}

func (c *Context) WaitForFence(f gpu.Fence) error {
	c.logf("wait-fence %d", f)
	if !c.fences[f] {
		return errors.Newf("wait on unsignaled fence %d would never return", f)
	}
	return nil
}

func (c *Context) ResetFence(f gpu.Fence) error {
	c.logf("reset-fence %d", f)
	c.fences[f] = false
	return nil
}

// Submit executes transfer commands immediately and signals the fence.
func (c *Context) Submit(info gpu.SubmitInfo, fence gpu.Fence) error {
	c.logf("submit %d", fence)
	for _, cb := range info.CommandBuffers {
		if c.recording[cb] {
			return errors.Newf("submit of command buffer %d still recording", cb)
		}
		c.execute(cb)
	}
	c.Submits = append(c.Submits, Submission{Info: info, Fence: fence})
	if fence != 0 {
		if c.fences[fence] {
			return errors.Newf("submit with signaled fence %d", fence)
		}
		c.fences[fence] = true
	}
	return nil
}

func (c *Context) QueueWaitIdle() error {
	c.logf("queue-wait-idle")
	return nil
}

func (c *Context) WaitIdle() error {
	c.logf("wait-idle")
	return nil
}

func (c *Context) execute(cb gpu.CommandBuffer) {
	for _, cmd := range c.commands[cb] {
		c.Executed = append(c.Executed, cmd)
		switch cmd.Op {
		case "copy-buffer":
			src := c.memory[c.bufferMem[gpu.Buffer(cmd.Handles[0])]]
			dst := c.memory[c.bufferMem[gpu.Buffer(cmd.Handles[1])]]
			copy(dst[:cmd.Count], src[:cmd.Count])
		case "copy-buffer-to-image":
			src := c.memory[c.bufferMem[gpu.Buffer(cmd.Handles[0])]]
			dst := c.memory[c.imageMem[gpu.Image(cmd.Handles[1])]]
			copy(dst, src)
		case "copy-image-to-buffer":
			src := c.memory[c.imageMem[gpu.Image(cmd.Handles[0])]]
			dst := c.memory[c.bufferMem[gpu.Buffer(cmd.Handles[1])]]
			copy(dst, src)
		}
	}
}

type recorder struct {
	ctx *Context
	cb  gpu.CommandBuffer
}

func (r *recorder) add(cmd Command) {
	r.ctx.commands[r.cb] = append(r.ctx.commands[r.cb], cmd)
}

func (r *recorder) Begin(oneTime bool) error {
	r.ctx.commands[r.cb] = nil
	r.ctx.recording[r.cb] = true
	r.ctx.logf("begin %d", r.cb)
	return nil
}

func (r *recorder) End() error {
	if !r.ctx.recording[r.cb] {
		return errors.Newf("end of command buffer %d not recording", r.cb)
	}
	r.ctx.recording[r.cb] = false
	return nil
}

func (r *recorder) BeginRenderPass(rp gpu.RenderPass, fb gpu.Framebuffer, extent gpu.Extent2D, clears []gpu.ClearValue) {
	r.add(Command{Op: "begin-render-pass", Handles: []uint64{uint64(rp), uint64(fb)}, Extent: extent, Clears: clears})
}

func (r *recorder) EndRenderPass() { r.add(Command{Op: "end-render-pass"}) }

func (r *recorder) SetViewport(extent gpu.Extent2D) {
	r.add(Command{Op: "set-viewport", Extent: extent})
}

func (r *recorder) BindPipeline(p gpu.Pipeline) {
	r.add(Command{Op: "bind-pipeline", Handles: []uint64{uint64(p)}})
}

func (r *recorder) BindVertexBuffer(b gpu.Buffer) {
	r.add(Command{Op: "bind-vertex-buffer", Handles: []uint64{uint64(b)}})
}

func (r *recorder) BindIndexBuffer(b gpu.Buffer) {
	r.add(Command{Op: "bind-index-buffer", Handles: []uint64{uint64(b)}})
}

func (r *recorder) BindDescriptorSet(layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	r.add(Command{Op: "bind-descriptor-set", Handles: []uint64{uint64(layout), uint64(set)}})
}

func (r *recorder) DrawIndexed(indexCount uint32) {
	r.add(Command{Op: "draw-indexed", Count: uint64(indexCount)})
}

func (r *recorder) CopyBuffer(src, dst gpu.Buffer, size uint64) {
	r.add(Command{Op: "copy-buffer", Handles: []uint64{uint64(src), uint64(dst)}, Count: size})
}

func (r *recorder) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, extent gpu.Extent2D, aspect gpu.ImageAspect) {
	r.add(Command{Op: "copy-buffer-to-image", Handles: []uint64{uint64(src), uint64(dst)}, Extent: extent})
}

func (r *recorder) CopyImageToBuffer(src gpu.Image, dst gpu.Buffer, extent gpu.Extent2D, aspect gpu.ImageAspect) {
	r.add(Command{Op: "copy-image-to-buffer", Handles: []uint64{uint64(src), uint64(dst)}, Extent: extent})
}

func (r *recorder) PipelineBarrier(b gpu.ImageBarrier) {
	r.add(Command{Op: "barrier", Barrier: b})
}

func (r *recorder) BlitImage(b gpu.Blit) {
	r.add(Command{Op: "blit", Blit: b})
}
