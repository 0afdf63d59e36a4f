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

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.LayoutBinding) (gpu.DescriptorSetLayout, error) {
	var a arena
	defer a.free()

	cb := carray[C.VkDescriptorSetLayoutBinding](&a, len(bindings))
	for i, b := range bindings {
		cb[i].binding = C.uint32_t(b.Binding)
		cb[i].descriptorType = C.VkDescriptorType(b.Type)
		cb[i].descriptorCount = 1
		cb[i].stageFlags = C.VkShaderStageFlags(b.Stage)
	}
	info := cnew[C.VkDescriptorSetLayoutCreateInfo](&a)
	info.sType = C.VK_STRUCTURE_TYPE_DESCRIPTOR_SET_LAYOUT_CREATE_INFO
	info.bindingCount = C.uint32_t(len(cb))
	info.pBindings = first(cb)

	var layout C.VkDescriptorSetLayout
	if err := vkError(C.vkCreateDescriptorSetLayout(d.handle, info, nil, &layout), "create descriptor set layout"); err != nil {
		return 0, creationFailed(err)
	}
	return gpu.DescriptorSetLayout(handle(unsafe.Pointer(layout))), nil
}

func (d *Device) DestroyDescriptorSetLayout(l gpu.DescriptorSetLayout) {
	C.vkDestroyDescriptorSetLayout(d.handle, C.VkDescriptorSetLayout(pointer(uint64(l))), nil)
}

func (d *Device) CreateDescriptorPool(sizes []gpu.PoolSize, maxSets uint32) (gpu.DescriptorPool, error) {
	var a arena
	defer a.free()

	cs := carray[C.VkDescriptorPoolSize](&a, len(sizes))
	for i, s := range sizes {
		cs[i]._type = C.VkDescriptorType(s.Type)
		cs[i].descriptorCount = C.uint32_t(s.Count)
	}
	info := cnew[C.VkDescriptorPoolCreateInfo](&a)
	info.sType = C.VK_STRUCTURE_TYPE_DESCRIPTOR_POOL_CREATE_INFO
	info.poolSizeCount = C.uint32_t(len(cs))
	info.pPoolSizes = first(cs)
	info.maxSets = C.uint32_t(maxSets)

	var pool C.VkDescriptorPool
	if err := vkError(C.vkCreateDescriptorPool(d.handle, info, nil, &pool), "create descriptor pool"); err != nil {
		return 0, creationFailed(err)
	}
	return gpu.DescriptorPool(handle(unsafe.Pointer(pool))), nil
}

func (d *Device) DestroyDescriptorPool(p gpu.DescriptorPool) {
	C.vkDestroyDescriptorPool(d.handle, C.VkDescriptorPool(pointer(uint64(p))), nil)
}

// AllocateDescriptorSets allocates count sets sharing one layout.
func (d *Device) AllocateDescriptorSets(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout, count int) ([]gpu.DescriptorSet, error) {
	if count == 0 {
		return nil, nil
	}
	var a arena
	defer a.free()

	layouts := carray[C.VkDescriptorSetLayout](&a, count)
	for i := range layouts {
		layouts[i] = C.VkDescriptorSetLayout(pointer(uint64(layout)))
	}
	info := cnew[C.VkDescriptorSetAllocateInfo](&a)
	info.sType = C.VK_STRUCTURE_TYPE_DESCRIPTOR_SET_ALLOCATE_INFO
	info.descriptorPool = C.VkDescriptorPool(pointer(uint64(pool)))
	info.descriptorSetCount = C.uint32_t(count)
	info.pSetLayouts = first(layouts)

	sets := carray[C.VkDescriptorSet](&a, count)
	if err := vkError(C.vkAllocateDescriptorSets(d.handle, info, first(sets)), "allocate descriptor sets"); err != nil {
		return nil, errors.Mark(err, gpu.ErrResourceCreation)
	}
	out := make([]gpu.DescriptorSet, count)
	for i, s := range sets {
		out[i] = gpu.DescriptorSet(handle(unsafe.Pointer(s)))
	}
	return out, nil
}

// UpdateDescriptorSets applies all writes in one call. Image writes expect
// the view in SHADER_READ_ONLY_OPTIMAL layout.
func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	if len(writes) == 0 {
		return
	}
	var a arena
	defer a.free()

	cw := carray[C.VkWriteDescriptorSet](&a, len(writes))
	for i, w := range writes {
		cw[i].sType = C.VK_STRUCTURE_TYPE_WRITE_DESCRIPTOR_SET
		cw[i].dstSet = C.VkDescriptorSet(pointer(uint64(w.Set)))
		cw[i].dstBinding = C.uint32_t(w.Binding)
		cw[i].descriptorType = C.VkDescriptorType(w.Type)
		cw[i].descriptorCount = 1

		switch w.Type {
		case gpu.DescriptorUniformBuffer:
			info := cnew[C.VkDescriptorBufferInfo](&a)
			info.buffer = C.VkBuffer(pointer(uint64(w.Buffer)))
			info._range = C.VkDeviceSize(w.Range)
			cw[i].pBufferInfo = info
		case gpu.DescriptorCombinedImageSampler:
			info := cnew[C.VkDescriptorImageInfo](&a)
			info.sampler = C.VkSampler(pointer(uint64(w.Sampler)))
			info.imageView = C.VkImageView(pointer(uint64(w.View)))
			info.imageLayout = C.VK_IMAGE_LAYOUT_SHADER_READ_ONLY_OPTIMAL
			cw[i].pImageInfo = info
		}
	}
	C.vkUpdateDescriptorSets(d.handle, C.uint32_t(len(cw)), first(cw), 0, nil)
}
