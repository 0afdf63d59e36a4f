package vulkan

/*
#include <vulkan/vulkan.h>
*/
import "C"
import (
	"unsafe"

	"github.com/cockroachdb/errors"

	"vkframe/gpu"
)

// CreateShaderModule wraps SPIR-V code. The code is copied to C memory since
// Vulkan requires 4-byte alignment.
func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Mark(errors.Newf("shader code size %d is not a multiple of 4", len(code)), gpu.ErrFatalInit)
	}
	var a arena
	defer a.free()

	words := carray[byte](&a, len(code))
	copy(words, code)
	info := cnew[C.VkShaderModuleCreateInfo](&a)
	info.sType = C.VK_STRUCTURE_TYPE_SHADER_MODULE_CREATE_INFO
	info.codeSize = C.size_t(len(code))
	info.pCode = (*C.uint32_t)(unsafe.Pointer(first(words)))

	var module C.VkShaderModule
	if err := vkError(C.vkCreateShaderModule(d.handle, info, nil, &module), "create shader module"); err != nil {
		return 0, errors.Mark(err, gpu.ErrFatalInit)
	}
	return gpu.ShaderModule(handle(unsafe.Pointer(module))), nil
}

func (d *Device) DestroyShaderModule(m gpu.ShaderModule) {
	C.vkDestroyShaderModule(d.handle, C.VkShaderModule(pointer(uint64(m))), nil)
}

func (d *Device) CreatePipelineLayout(layouts []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	var a arena
	defer a.free()

	cl := carray[C.VkDescriptorSetLayout](&a, len(layouts))
	for i, l := range layouts {
		cl[i] = C.VkDescriptorSetLayout(pointer(uint64(l)))
	}
	info := cnew[C.VkPipelineLayoutCreateInfo](&a)
	info.sType = C.VK_STRUCTURE_TYPE_PIPELINE_LAYOUT_CREATE_INFO
	info.setLayoutCount = C.uint32_t(len(cl))
	info.pSetLayouts = first(cl)

	var layout C.VkPipelineLayout
	if err := vkError(C.vkCreatePipelineLayout(d.handle, info, nil, &layout), "create pipeline layout"); err != nil {
		return 0, creationFailed(err)
	}
	return gpu.PipelineLayout(handle(unsafe.Pointer(layout))), nil
}

func (d *Device) DestroyPipelineLayout(l gpu.PipelineLayout) {
	C.vkDestroyPipelineLayout(d.handle, C.VkPipelineLayout(pointer(uint64(l))), nil)
}

// CreateGraphicsPipeline builds a triangle-list pipeline with one interleaved
// vertex binding. Viewport and scissor are dynamic.
func (d *Device) CreateGraphicsPipeline(p gpu.GraphicsPipelineInfo) (gpu.Pipeline, error) {
	var a arena
	defer a.free()

	entry := a.cstring("main")
	stages := carray[C.VkPipelineShaderStageCreateInfo](&a, 2)
	stages[0].sType = C.VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO
	stages[0].stage = C.VK_SHADER_STAGE_VERTEX_BIT
	stages[0].module = C.VkShaderModule(pointer(uint64(p.Vertex)))
	stages[0].pName = entry
	stages[1].sType = C.VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO
	stages[1].stage = C.VK_SHADER_STAGE_FRAGMENT_BIT
	stages[1].module = C.VkShaderModule(pointer(uint64(p.Fragment)))
	stages[1].pName = entry

	binding := cnew[C.VkVertexInputBindingDescription](&a)
	binding.stride = C.uint32_t(p.Stride)
	binding.inputRate = C.VK_VERTEX_INPUT_RATE_VERTEX
	attrs := carray[C.VkVertexInputAttributeDescription](&a, len(p.Attributes))
	for i, attr := range p.Attributes {
		attrs[i].location = C.uint32_t(attr.Location)
		attrs[i].format = C.VkFormat(attr.Format)
		attrs[i].offset = C.uint32_t(attr.Offset)
	}
	vertexInput := cnew[C.VkPipelineVertexInputStateCreateInfo](&a)
	vertexInput.sType = C.VK_STRUCTURE_TYPE_PIPELINE_VERTEX_INPUT_STATE_CREATE_INFO
	vertexInput.vertexBindingDescriptionCount = 1
	vertexInput.pVertexBindingDescriptions = binding
	vertexInput.vertexAttributeDescriptionCount = C.uint32_t(len(attrs))
	vertexInput.pVertexAttributeDescriptions = first(attrs)

	assembly := cnew[C.VkPipelineInputAssemblyStateCreateInfo](&a)
	assembly.sType = C.VK_STRUCTURE_TYPE_PIPELINE_INPUT_ASSEMBLY_STATE_CREATE_INFO
	assembly.topology = C.VK_PRIMITIVE_TOPOLOGY_TRIANGLE_LIST

	viewport := cnew[C.VkPipelineViewportStateCreateInfo](&a)
	viewport.sType = C.VK_STRUCTURE_TYPE_PIPELINE_VIEWPORT_STATE_CREATE_INFO
	viewport.viewportCount = 1
	viewport.scissorCount = 1

	raster := cnew[C.VkPipelineRasterizationStateCreateInfo](&a)
	raster.sType = C.VK_STRUCTURE_TYPE_PIPELINE_RASTERIZATION_STATE_CREATE_INFO
	raster.polygonMode = C.VK_POLYGON_MODE_FILL
	raster.lineWidth = 1
	raster.cullMode = C.VK_CULL_MODE_NONE
	if p.State.CullBack {
		raster.cullMode = C.VK_CULL_MODE_BACK_BIT
	}
	raster.frontFace = C.VK_FRONT_FACE_COUNTER_CLOCKWISE
	if p.State.FrontClockwise {
		raster.frontFace = C.VK_FRONT_FACE_CLOCKWISE
	}

	multisample := cnew[C.VkPipelineMultisampleStateCreateInfo](&a)
	multisample.sType = C.VK_STRUCTURE_TYPE_PIPELINE_MULTISAMPLE_STATE_CREATE_INFO
	multisample.rasterizationSamples = C.VkSampleCountFlagBits(max(p.Samples, gpu.Samples1))

	depth := cnew[C.VkPipelineDepthStencilStateCreateInfo](&a)
	depth.sType = C.VK_STRUCTURE_TYPE_PIPELINE_DEPTH_STENCIL_STATE_CREATE_INFO
	depth.depthTestEnable = vkBool(p.State.DepthTest)
	depth.depthWriteEnable = vkBool(p.State.DepthWrite)
	depth.depthCompareOp = C.VkCompareOp(p.State.DepthCompare)

	blends := carray[C.VkPipelineColorBlendAttachmentState](&a, max(p.ColorAttachments, 1))
	for i := range blends {
		blends[i].colorWriteMask = C.VK_COLOR_COMPONENT_R_BIT | C.VK_COLOR_COMPONENT_G_BIT |
			C.VK_COLOR_COMPONENT_B_BIT | C.VK_COLOR_COMPONENT_A_BIT
		if p.State.Blend {
			blends[i].blendEnable = C.VK_TRUE
			blends[i].srcColorBlendFactor = C.VK_BLEND_FACTOR_SRC_ALPHA
			blends[i].dstColorBlendFactor = C.VK_BLEND_FACTOR_ONE_MINUS_SRC_ALPHA
			blends[i].colorBlendOp = C.VK_BLEND_OP_ADD
			blends[i].srcAlphaBlendFactor = C.VK_BLEND_FACTOR_ONE
			blends[i].dstAlphaBlendFactor = C.VK_BLEND_FACTOR_ZERO
			blends[i].alphaBlendOp = C.VK_BLEND_OP_ADD
		}
	}
	blend := cnew[C.VkPipelineColorBlendStateCreateInfo](&a)
	blend.sType = C.VK_STRUCTURE_TYPE_PIPELINE_COLOR_BLEND_STATE_CREATE_INFO
	blend.attachmentCount = C.uint32_t(len(blends))
	blend.pAttachments = first(blends)

	dynamicStates := carray[C.VkDynamicState](&a, 2)
	dynamicStates[0] = C.VK_DYNAMIC_STATE_VIEWPORT
	dynamicStates[1] = C.VK_DYNAMIC_STATE_SCISSOR
	dynamic := cnew[C.VkPipelineDynamicStateCreateInfo](&a)
	dynamic.sType = C.VK_STRUCTURE_TYPE_PIPELINE_DYNAMIC_STATE_CREATE_INFO
	dynamic.dynamicStateCount = 2
	dynamic.pDynamicStates = first(dynamicStates)

	info := cnew[C.VkGraphicsPipelineCreateInfo](&a)
	info.sType = C.VK_STRUCTURE_TYPE_GRAPHICS_PIPELINE_CREATE_INFO
	info.stageCount = 2
	info.pStages = first(stages)
	info.pVertexInputState = vertexInput
	info.pInputAssemblyState = assembly
	info.pViewportState = viewport
	info.pRasterizationState = raster
	info.pMultisampleState = multisample
	info.pDepthStencilState = depth
	info.pColorBlendState = blend
	info.pDynamicState = dynamic
	info.layout = C.VkPipelineLayout(pointer(uint64(p.Layout)))
	info.renderPass = C.VkRenderPass(pointer(uint64(p.RenderPass)))

	var pipeline C.VkPipeline
	if err := vkError(C.vkCreateGraphicsPipelines(d.handle, nil, 1, info, nil, &pipeline), "create graphics pipeline"); err != nil {
		return 0, errors.Mark(err, gpu.ErrFatalInit)
	}
	return gpu.Pipeline(handle(unsafe.Pointer(pipeline))), nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	C.vkDestroyPipeline(d.handle, C.VkPipeline(pointer(uint64(p))), nil)
}

// CreateRenderPass builds a single-subpass render pass in the attachment
// order documented on gpu.RenderPassInfo.
func (d *Device) CreateRenderPass(rp gpu.RenderPassInfo) (gpu.RenderPass, error) {
	var a arena
	defer a.free()

	n := max(rp.ColorAttachments, 1)
	msaa := rp.Samples.Multisampled()
	outputLayout := C.VkImageLayout(C.VK_IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL)
	if rp.Present {
		outputLayout = C.VK_IMAGE_LAYOUT_PRESENT_SRC_KHR
	}

	total := n + 1
	if msaa {
		total += n
	}
	attachments := carray[C.VkAttachmentDescription](&a, total)
	colorRefs := carray[C.VkAttachmentReference](&a, n)
	depthRef := cnew[C.VkAttachmentReference](&a)

	color := func(i int, samples gpu.SampleCount, store bool, final C.VkImageLayout) {
		attachments[i].format = C.VkFormat(rp.ColorFormat)
		attachments[i].samples = C.VkSampleCountFlagBits(max(samples, gpu.Samples1))
		attachments[i].loadOp = C.VK_ATTACHMENT_LOAD_OP_CLEAR
		attachments[i].storeOp = C.VK_ATTACHMENT_STORE_OP_DONT_CARE
		if store {
			attachments[i].storeOp = C.VK_ATTACHMENT_STORE_OP_STORE
		}
		attachments[i].stencilLoadOp = C.VK_ATTACHMENT_LOAD_OP_DONT_CARE
		attachments[i].stencilStoreOp = C.VK_ATTACHMENT_STORE_OP_DONT_CARE
		attachments[i].initialLayout = C.VK_IMAGE_LAYOUT_UNDEFINED
		attachments[i].finalLayout = final
	}

	for i := 0; i < n; i++ {
		final := C.VkImageLayout(C.VK_IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL)
		if i == 0 && !msaa {
			final = outputLayout
		}
		color(i, rp.Samples, !msaa, final)
		colorRefs[i].attachment = C.uint32_t(i)
		colorRefs[i].layout = C.VK_IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL
	}

	attachments[n].format = C.VkFormat(rp.DepthFormat)
	attachments[n].samples = C.VkSampleCountFlagBits(max(rp.Samples, gpu.Samples1))
	attachments[n].loadOp = C.VK_ATTACHMENT_LOAD_OP_CLEAR
	attachments[n].storeOp = C.VK_ATTACHMENT_STORE_OP_DONT_CARE
	attachments[n].stencilLoadOp = C.VK_ATTACHMENT_LOAD_OP_DONT_CARE
	attachments[n].stencilStoreOp = C.VK_ATTACHMENT_STORE_OP_DONT_CARE
	attachments[n].initialLayout = C.VK_IMAGE_LAYOUT_UNDEFINED
	attachments[n].finalLayout = C.VK_IMAGE_LAYOUT_DEPTH_STENCIL_ATTACHMENT_OPTIMAL
	depthRef.attachment = C.uint32_t(n)
	depthRef.layout = C.VK_IMAGE_LAYOUT_DEPTH_STENCIL_ATTACHMENT_OPTIMAL

	subpass := cnew[C.VkSubpassDescription](&a)
	subpass.pipelineBindPoint = C.VK_PIPELINE_BIND_POINT_GRAPHICS
	subpass.colorAttachmentCount = C.uint32_t(n)
	subpass.pColorAttachments = first(colorRefs)
	subpass.pDepthStencilAttachment = depthRef

	if msaa {
		resolveRefs := carray[C.VkAttachmentReference](&a, n)
		for i := 0; i < n; i++ {
			idx := n + 1 + i
			final := C.VkImageLayout(C.VK_IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL)
			if i == 0 {
				final = outputLayout
			}
			color(idx, gpu.Samples1, true, final)
			attachments[idx].loadOp = C.VK_ATTACHMENT_LOAD_OP_DONT_CARE
			resolveRefs[i].attachment = C.uint32_t(idx)
			resolveRefs[i].layout = C.VK_IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL
		}
		subpass.pResolveAttachments = first(resolveRefs)
	}

	dependency := cnew[C.VkSubpassDependency](&a)
	dependency.srcSubpass = C.VK_SUBPASS_EXTERNAL
	dependency.dstSubpass = 0
	dependency.srcStageMask = C.VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT | C.VK_PIPELINE_STAGE_EARLY_FRAGMENT_TESTS_BIT
	dependency.dstStageMask = C.VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT | C.VK_PIPELINE_STAGE_EARLY_FRAGMENT_TESTS_BIT
	dependency.dstAccessMask = C.VK_ACCESS_COLOR_ATTACHMENT_WRITE_BIT | C.VK_ACCESS_DEPTH_STENCIL_ATTACHMENT_WRITE_BIT

	info := cnew[C.VkRenderPassCreateInfo](&a)
	info.sType = C.VK_STRUCTURE_TYPE_RENDER_PASS_CREATE_INFO
	info.attachmentCount = C.uint32_t(len(attachments))
	info.pAttachments = first(attachments)
	info.subpassCount = 1
	info.pSubpasses = subpass
	info.dependencyCount = 1
	info.pDependencies = dependency

	var pass C.VkRenderPass
	if err := vkError(C.vkCreateRenderPass(d.handle, info, nil, &pass), "create render pass"); err != nil {
		return 0, creationFailed(err)
	}
	return gpu.RenderPass(handle(unsafe.Pointer(pass))), nil
}

func (d *Device) DestroyRenderPass(rp gpu.RenderPass) {
	C.vkDestroyRenderPass(d.handle, C.VkRenderPass(pointer(uint64(rp))), nil)
}

func (d *Device) CreateFramebuffer(fb gpu.FramebufferInfo) (gpu.Framebuffer, error) {
	var a arena
	defer a.free()

	views := carray[C.VkImageView](&a, len(fb.Attachments))
	for i, v := range fb.Attachments {
		views[i] = C.VkImageView(pointer(uint64(v)))
	}
	info := cnew[C.VkFramebufferCreateInfo](&a)
	info.sType = C.VK_STRUCTURE_TYPE_FRAMEBUFFER_CREATE_INFO
	info.renderPass = C.VkRenderPass(pointer(uint64(fb.RenderPass)))
	info.attachmentCount = C.uint32_t(len(views))
	info.pAttachments = first(views)
	info.width = C.uint32_t(fb.Extent.Width)
	info.height = C.uint32_t(fb.Extent.Height)
	info.layers = 1

	var framebuffer C.VkFramebuffer
	if err := vkError(C.vkCreateFramebuffer(d.handle, info, nil, &framebuffer), "create framebuffer"); err != nil {
		return 0, creationFailed(err)
	}
	return gpu.Framebuffer(handle(unsafe.Pointer(framebuffer))), nil
}

func (d *Device) DestroyFramebuffer(fb gpu.Framebuffer) {
	C.vkDestroyFramebuffer(d.handle, C.VkFramebuffer(pointer(uint64(fb))), nil)
}
