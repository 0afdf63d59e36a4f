package vulkan

/*
#include <vulkan/vulkan.h>
*/
import "C"
import (
	"unsafe"

	"vkframe/gpu"
)

func (d *Device) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	if count == 0 {
		return nil, nil
	}
	var a arena
	defer a.free()

	info := C.VkCommandBufferAllocateInfo{
		sType:              C.VK_STRUCTURE_TYPE_COMMAND_BUFFER_ALLOCATE_INFO,
		commandPool:        d.pool,
		level:              C.VK_COMMAND_BUFFER_LEVEL_PRIMARY,
		commandBufferCount: C.uint32_t(count),
	}
	handles := carray[C.VkCommandBuffer](&a, count)
	if err := vkError(C.vkAllocateCommandBuffers(d.handle, &info, first(handles)), "allocate command buffers"); err != nil {
		return nil, creationFailed(err)
	}
	out := make([]gpu.CommandBuffer, count)
	for i, h := range handles {
		out[i] = gpu.CommandBuffer(handle(unsafe.Pointer(h)))
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(cmds []gpu.CommandBuffer) {
	if len(cmds) == 0 {
		return
	}
	var a arena
	defer a.free()
	handles := carray[C.VkCommandBuffer](&a, len(cmds))
	for i, cb := range cmds {
		handles[i] = C.VkCommandBuffer(pointer(uint64(cb)))
	}
	C.vkFreeCommandBuffers(d.handle, d.pool, C.uint32_t(len(handles)), first(handles))
}

func (d *Device) Recorder(cb gpu.CommandBuffer) gpu.Recorder {
	return &recorder{cmd: C.VkCommandBuffer(pointer(uint64(cb)))}
}

// recorder records into one primary command buffer on the graphics queue.
type recorder struct {
	cmd C.VkCommandBuffer
}

// Begin resets the buffer implicitly, which the pool's RESET flag allows.
func (r *recorder) Begin(oneTime bool) error {
	info := C.VkCommandBufferBeginInfo{sType: C.VK_STRUCTURE_TYPE_COMMAND_BUFFER_BEGIN_INFO}
	if oneTime {
		info.flags = C.VK_COMMAND_BUFFER_USAGE_ONE_TIME_SUBMIT_BIT
	}
	return vkError(C.vkBeginCommandBuffer(r.cmd, &info), "begin command buffer")
}

func (r *recorder) End() error {
	return vkError(C.vkEndCommandBuffer(r.cmd), "end command buffer")
}

func (r *recorder) BeginRenderPass(rp gpu.RenderPass, fb gpu.Framebuffer, extent gpu.Extent2D, clears []gpu.ClearValue) {
	var a arena
	defer a.free()

	values := carray[C.VkClearValue](&a, len(clears))
	for i, c := range clears {
		if c.IsDepth {
			ds := (*C.VkClearDepthStencilValue)(unsafe.Pointer(&values[i]))
			ds.depth = C.float(c.Depth)
			ds.stencil = C.uint32_t(c.Stencil)
			continue
		}
		color := (*[4]C.float)(unsafe.Pointer(&values[i]))
		for j, v := range c.Color {
			color[j] = C.float(v)
		}
	}

	info := cnew[C.VkRenderPassBeginInfo](&a)
	info.sType = C.VK_STRUCTURE_TYPE_RENDER_PASS_BEGIN_INFO
	info.renderPass = C.VkRenderPass(pointer(uint64(rp)))
	info.framebuffer = C.VkFramebuffer(pointer(uint64(fb)))
	info.renderArea.extent.width = C.uint32_t(extent.Width)
	info.renderArea.extent.height = C.uint32_t(extent.Height)
	info.clearValueCount = C.uint32_t(len(values))
	info.pClearValues = first(values)
	C.vkCmdBeginRenderPass(r.cmd, info, C.VK_SUBPASS_CONTENTS_INLINE)
}

func (r *recorder) EndRenderPass() {
	C.vkCmdEndRenderPass(r.cmd)
}

// SetViewport sets the dynamic viewport and a matching scissor.
func (r *recorder) SetViewport(extent gpu.Extent2D) {
	viewport := C.VkViewport{
		width:    C.float(extent.Width),
		height:   C.float(extent.Height),
		maxDepth: 1,
	}
	C.vkCmdSetViewport(r.cmd, 0, 1, &viewport)
	var scissor C.VkRect2D
	scissor.extent.width = C.uint32_t(extent.Width)
	scissor.extent.height = C.uint32_t(extent.Height)
	C.vkCmdSetScissor(r.cmd, 0, 1, &scissor)
}

func (r *recorder) BindPipeline(p gpu.Pipeline) {
	C.vkCmdBindPipeline(r.cmd, C.VK_PIPELINE_BIND_POINT_GRAPHICS, C.VkPipeline(pointer(uint64(p))))
}

func (r *recorder) BindVertexBuffer(b gpu.Buffer) {
	buffer := C.VkBuffer(pointer(uint64(b)))
	var offset C.VkDeviceSize
	C.vkCmdBindVertexBuffers(r.cmd, 0, 1, &buffer, &offset)
}

func (r *recorder) BindIndexBuffer(b gpu.Buffer) {
	C.vkCmdBindIndexBuffer(r.cmd, C.VkBuffer(pointer(uint64(b))), 0, C.VK_INDEX_TYPE_UINT32)
}

func (r *recorder) BindDescriptorSet(layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	s := C.VkDescriptorSet(pointer(uint64(set)))
	C.vkCmdBindDescriptorSets(r.cmd, C.VK_PIPELINE_BIND_POINT_GRAPHICS, C.VkPipelineLayout(pointer(uint64(layout))), 0, 1, &s, 0, nil)
}

func (r *recorder) DrawIndexed(indexCount uint32) {
	C.vkCmdDrawIndexed(r.cmd, C.uint32_t(indexCount), 1, 0, 0, 0)
}

func (r *recorder) CopyBuffer(src, dst gpu.Buffer, size uint64) {
	region := C.VkBufferCopy{size: C.VkDeviceSize(size)}
	C.vkCmdCopyBuffer(r.cmd, C.VkBuffer(pointer(uint64(src))), C.VkBuffer(pointer(uint64(dst))), 1, &region)
}

func imageCopy(extent gpu.Extent2D, aspect gpu.ImageAspect) C.VkBufferImageCopy {
	var region C.VkBufferImageCopy
	region.imageSubresource.aspectMask = C.VkImageAspectFlags(aspect)
	region.imageSubresource.layerCount = 1
	region.imageExtent.width = C.uint32_t(extent.Width)
	region.imageExtent.height = C.uint32_t(extent.Height)
	region.imageExtent.depth = 1
	return region
}

// CopyBufferToImage writes mip 0 of dst, which must be in TRANSFER_DST.
func (r *recorder) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, extent gpu.Extent2D, aspect gpu.ImageAspect) {
	region := imageCopy(extent, aspect)
	C.vkCmdCopyBufferToImage(r.cmd, C.VkBuffer(pointer(uint64(src))), C.VkImage(pointer(uint64(dst))),
		C.VK_IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL, 1, &region)
}

// CopyImageToBuffer reads mip 0 of src, which must be in TRANSFER_SRC.
func (r *recorder) CopyImageToBuffer(src gpu.Image, dst gpu.Buffer, extent gpu.Extent2D, aspect gpu.ImageAspect) {
	region := imageCopy(extent, aspect)
	C.vkCmdCopyImageToBuffer(r.cmd, C.VkImage(pointer(uint64(src))), C.VK_IMAGE_LAYOUT_TRANSFER_SRC_OPTIMAL,
		C.VkBuffer(pointer(uint64(dst))), 1, &region)
}

// PipelineBarrier records one image barrier. A MipCount of zero covers every
// level from BaseMip.
func (r *recorder) PipelineBarrier(b gpu.ImageBarrier) {
	barrier := C.VkImageMemoryBarrier{
		sType:               C.VK_STRUCTURE_TYPE_IMAGE_MEMORY_BARRIER,
		srcAccessMask:       C.VkAccessFlags(b.SrcAccess),
		dstAccessMask:       C.VkAccessFlags(b.DstAccess),
		oldLayout:           C.VkImageLayout(b.OldLayout),
		newLayout:           C.VkImageLayout(b.NewLayout),
		srcQueueFamilyIndex: C.VK_QUEUE_FAMILY_IGNORED,
		dstQueueFamilyIndex: C.VK_QUEUE_FAMILY_IGNORED,
		image:               C.VkImage(pointer(uint64(b.Image))),
	}
	barrier.subresourceRange.aspectMask = C.VkImageAspectFlags(b.Aspect)
	barrier.subresourceRange.baseMipLevel = C.uint32_t(b.BaseMip)
	barrier.subresourceRange.levelCount = C.uint32_t(b.MipCount)
	if b.MipCount == 0 {
		barrier.subresourceRange.levelCount = C.VK_REMAINING_MIP_LEVELS
	}
	barrier.subresourceRange.layerCount = 1

	C.vkCmdPipelineBarrier(r.cmd, C.VkPipelineStageFlags(b.SrcStage), C.VkPipelineStageFlags(b.DstStage),
		0, 0, nil, 0, nil, 1, &barrier)
}

// BlitImage scales one color mip level with linear filtering. Src must be in
// TRANSFER_SRC and Dst in TRANSFER_DST.
func (r *recorder) BlitImage(b gpu.Blit) {
	var blit C.VkImageBlit
	blit.srcOffsets[1] = C.VkOffset3D{x: C.int32_t(b.SrcExtent.Width), y: C.int32_t(b.SrcExtent.Height), z: 1}
	blit.srcSubresource.aspectMask = C.VK_IMAGE_ASPECT_COLOR_BIT
	blit.srcSubresource.mipLevel = C.uint32_t(b.SrcMip)
	blit.srcSubresource.layerCount = 1
	blit.dstOffsets[1] = C.VkOffset3D{x: C.int32_t(b.DstExtent.Width), y: C.int32_t(b.DstExtent.Height), z: 1}
	blit.dstSubresource.aspectMask = C.VK_IMAGE_ASPECT_COLOR_BIT
	blit.dstSubresource.mipLevel = C.uint32_t(b.DstMip)
	blit.dstSubresource.layerCount = 1

	C.vkCmdBlitImage(r.cmd,
		C.VkImage(pointer(uint64(b.Src))), C.VK_IMAGE_LAYOUT_TRANSFER_SRC_OPTIMAL,
		C.VkImage(pointer(uint64(b.Dst))), C.VK_IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL,
		1, &blit, C.VK_FILTER_LINEAR)
}
