package vulkan

/*
#include <vulkan/vulkan.h>
*/
import "C"
import (
	"unsafe"

	"vkframe/gpu"
)

func requirements(r C.VkMemoryRequirements) gpu.MemoryRequirements {
	return gpu.MemoryRequirements{
		Size:      uint64(r.size),
		Alignment: uint64(r.alignment),
		TypeBits:  uint32(r.memoryTypeBits),
	}
}

func (d *Device) CreateBuffer(size uint64, usage gpu.BufferUsage) (gpu.Buffer, gpu.MemoryRequirements, error) {
	info := C.VkBufferCreateInfo{
		sType:       C.VK_STRUCTURE_TYPE_BUFFER_CREATE_INFO,
		size:        C.VkDeviceSize(size),
		usage:       C.VkBufferUsageFlags(usage),
		sharingMode: C.VK_SHARING_MODE_EXCLUSIVE,
	}
	var buf C.VkBuffer
	if err := vkError(C.vkCreateBuffer(d.handle, &info, nil, &buf), "create buffer"); err != nil {
		return 0, gpu.MemoryRequirements{}, creationFailed(err)
	}
	var req C.VkMemoryRequirements
	C.vkGetBufferMemoryRequirements(d.handle, buf, &req)
	return gpu.Buffer(handle(unsafe.Pointer(buf))), requirements(req), nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	C.vkDestroyBuffer(d.handle, C.VkBuffer(pointer(uint64(b))), nil)
}

func (d *Device) CreateImage(ii gpu.ImageInfo) (gpu.Image, gpu.MemoryRequirements, error) {
	info := C.VkImageCreateInfo{
		sType:         C.VK_STRUCTURE_TYPE_IMAGE_CREATE_INFO,
		imageType:     C.VK_IMAGE_TYPE_2D,
		format:        C.VkFormat(ii.Format),
		mipLevels:     C.uint32_t(max(ii.MipLevels, 1)),
		arrayLayers:   1,
		samples:       C.VkSampleCountFlagBits(max(ii.Samples, gpu.Samples1)),
		tiling:        C.VK_IMAGE_TILING_OPTIMAL,
		usage:         C.VkImageUsageFlags(ii.Usage),
		sharingMode:   C.VK_SHARING_MODE_EXCLUSIVE,
		initialLayout: C.VK_IMAGE_LAYOUT_UNDEFINED,
	}
	info.extent.width = C.uint32_t(ii.Extent.Width)
	info.extent.height = C.uint32_t(ii.Extent.Height)
	info.extent.depth = 1

	var img C.VkImage
	if err := vkError(C.vkCreateImage(d.handle, &info, nil, &img), "create image"); err != nil {
		return 0, gpu.MemoryRequirements{}, creationFailed(err)
	}
	var req C.VkMemoryRequirements
	C.vkGetImageMemoryRequirements(d.handle, img, &req)
	return gpu.Image(handle(unsafe.Pointer(img))), requirements(req), nil
}

func (d *Device) DestroyImage(img gpu.Image) {
	C.vkDestroyImage(d.handle, C.VkImage(pointer(uint64(img))), nil)
}

func (d *Device) CreateImageView(img gpu.Image, format gpu.Format, aspect gpu.ImageAspect, mipLevels uint32) (gpu.ImageView, error) {
	view, err := d.createView(C.VkImage(pointer(uint64(img))), C.VkFormat(format), C.VkImageAspectFlags(aspect), mipLevels)
	if err != nil {
		return 0, err
	}
	return gpu.ImageView(handle(unsafe.Pointer(view))), nil
}

func (d *Device) createView(img C.VkImage, format C.VkFormat, aspect C.VkImageAspectFlags, mipLevels uint32) (C.VkImageView, error) {
	info := C.VkImageViewCreateInfo{
		sType:    C.VK_STRUCTURE_TYPE_IMAGE_VIEW_CREATE_INFO,
		image:    img,
		viewType: C.VK_IMAGE_VIEW_TYPE_2D,
		format:   format,
		subresourceRange: C.VkImageSubresourceRange{
			aspectMask: aspect,
			levelCount: C.uint32_t(max(mipLevels, 1)),
			layerCount: 1,
		},
	}
	var view C.VkImageView
	if err := vkError(C.vkCreateImageView(d.handle, &info, nil, &view), "create image view"); err != nil {
		return nil, creationFailed(err)
	}
	return view, nil
}

func (d *Device) DestroyImageView(v gpu.ImageView) {
	C.vkDestroyImageView(d.handle, C.VkImageView(pointer(uint64(v))), nil)
}

func (d *Device) AllocateMemory(size uint64, memoryType uint32) (gpu.Memory, error) {
	info := C.VkMemoryAllocateInfo{
		sType:           C.VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_INFO,
		allocationSize:  C.VkDeviceSize(size),
		memoryTypeIndex: C.uint32_t(memoryType),
	}
	var mem C.VkDeviceMemory
	if err := vkError(C.vkAllocateMemory(d.handle, &info, nil, &mem), "allocate memory"); err != nil {
		return 0, creationFailed(err)
	}
	return gpu.Memory(handle(unsafe.Pointer(mem))), nil
}

func (d *Device) FreeMemory(m gpu.Memory) {
	C.vkFreeMemory(d.handle, C.VkDeviceMemory(pointer(uint64(m))), nil)
}

func (d *Device) BindBufferMemory(b gpu.Buffer, m gpu.Memory) error {
	return vkError(C.vkBindBufferMemory(d.handle, C.VkBuffer(pointer(uint64(b))), C.VkDeviceMemory(pointer(uint64(m))), 0), "bind buffer memory")
}

func (d *Device) BindImageMemory(img gpu.Image, m gpu.Memory) error {
	return vkError(C.vkBindImageMemory(d.handle, C.VkImage(pointer(uint64(img))), C.VkDeviceMemory(pointer(uint64(m))), 0), "bind image memory")
}

// MapMemory maps the first size bytes of m. The slice aliases device memory
// and is valid until UnmapMemory.
func (d *Device) MapMemory(m gpu.Memory, size uint64) ([]byte, error) {
	var data unsafe.Pointer
	if err := vkError(C.vkMapMemory(d.handle, C.VkDeviceMemory(pointer(uint64(m))), 0, C.VkDeviceSize(size), 0, &data), "map memory"); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(data), size), nil
}

func (d *Device) UnmapMemory(m gpu.Memory) {
	C.vkUnmapMemory(d.handle, C.VkDeviceMemory(pointer(uint64(m))))
}

// CreateSampler creates a repeating linear sampler with anisotropy covering
// mipLevels levels.
func (d *Device) CreateSampler(mipLevels uint32) (gpu.Sampler, error) {
	info := C.VkSamplerCreateInfo{
		sType:                   C.VK_STRUCTURE_TYPE_SAMPLER_CREATE_INFO,
		magFilter:               C.VK_FILTER_LINEAR,
		minFilter:               C.VK_FILTER_LINEAR,
		mipmapMode:              C.VK_SAMPLER_MIPMAP_MODE_LINEAR,
		addressModeU:            C.VK_SAMPLER_ADDRESS_MODE_REPEAT,
		addressModeV:            C.VK_SAMPLER_ADDRESS_MODE_REPEAT,
		addressModeW:            C.VK_SAMPLER_ADDRESS_MODE_REPEAT,
		anisotropyEnable:        C.VK_TRUE,
		maxAnisotropy:           d.maxAnisotropy(),
		borderColor:             C.VK_BORDER_COLOR_INT_OPAQUE_BLACK,
		unnormalizedCoordinates: C.VK_FALSE,
		compareEnable:           C.VK_FALSE,
		compareOp:               C.VK_COMPARE_OP_ALWAYS,
		maxLod:                  C.float(max(mipLevels, 1)),
	}
	var sampler C.VkSampler
	if err := vkError(C.vkCreateSampler(d.handle, &info, nil, &sampler), "create sampler"); err != nil {
		return 0, creationFailed(err)
	}
	return gpu.Sampler(handle(unsafe.Pointer(sampler))), nil
}

func (d *Device) DestroySampler(s gpu.Sampler) {
	C.vkDestroySampler(d.handle, C.VkSampler(pointer(uint64(s))), nil)
}
