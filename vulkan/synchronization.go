package vulkan

/*
#include <vulkan/vulkan.h>
*/
import "C"
import (
	"math"
	"unsafe"

	"vkframe/gpu"
)

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	info := C.VkSemaphoreCreateInfo{sType: C.VK_STRUCTURE_TYPE_SEMAPHORE_CREATE_INFO}
	var sem C.VkSemaphore
	if err := vkError(C.vkCreateSemaphore(d.handle, &info, nil, &sem), "create semaphore"); err != nil {
		return 0, creationFailed(err)
	}
	return gpu.Semaphore(handle(unsafe.Pointer(sem))), nil
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	C.vkDestroySemaphore(d.handle, C.VkSemaphore(pointer(uint64(s))), nil)
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	info := C.VkFenceCreateInfo{sType: C.VK_STRUCTURE_TYPE_FENCE_CREATE_INFO}
	if signaled {
		info.flags = C.VK_FENCE_CREATE_SIGNALED_BIT
	}
	var fence C.VkFence
	if err := vkError(C.vkCreateFence(d.handle, &info, nil, &fence), "create fence"); err != nil {
		return 0, creationFailed(err)
	}
	return gpu.Fence(handle(unsafe.Pointer(fence))), nil
}

func (d *Device) DestroyFence(f gpu.Fence) {
	C.vkDestroyFence(d.handle, C.VkFence(pointer(uint64(f))), nil)
}

// WaitForFence blocks without a timeout until f is signaled.
func (d *Device) WaitForFence(f gpu.Fence) error {
	fence := C.VkFence(pointer(uint64(f)))
	return vkError(C.vkWaitForFences(d.handle, 1, &fence, C.VK_TRUE, C.uint64_t(math.MaxUint64)), "wait for fence")
}

func (d *Device) ResetFence(f gpu.Fence) error {
	fence := C.VkFence(pointer(uint64(f)))
	return vkError(C.vkResetFences(d.handle, 1, &fence), "reset fence")
}
