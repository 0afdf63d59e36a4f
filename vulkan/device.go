package vulkan

/*
#include <vulkan/vulkan.h>
#include <stdbool.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
    uint32_t graphicsFamily;
    uint32_t presentFamily;
    bool hasGraphicsFamily;
    bool hasPresentFamily;
} QueueFamilies;

static void findQueueFamilies(VkPhysicalDevice device, VkSurfaceKHR surface, QueueFamilies* out) {
    uint32_t count = 0;
    vkGetPhysicalDeviceQueueFamilyProperties(device, &count, NULL);

    VkQueueFamilyProperties* families = (VkQueueFamilyProperties*)malloc(count * sizeof(VkQueueFamilyProperties));
    vkGetPhysicalDeviceQueueFamilyProperties(device, &count, families);

    for (uint32_t i = 0; i < count; i++) {
        if (!out->hasGraphicsFamily && (families[i].queueFlags & VK_QUEUE_GRAPHICS_BIT)) {
            out->graphicsFamily = i;
            out->hasGraphicsFamily = true;
        }

        VkBool32 presentSupport = VK_FALSE;
        vkGetPhysicalDeviceSurfaceSupportKHR(device, i, surface, &presentSupport);
        if (!out->hasPresentFamily && presentSupport) {
            out->presentFamily = i;
            out->hasPresentFamily = true;
        }

        if (out->hasGraphicsFamily && out->hasPresentFamily) {
            break;
        }
    }

    free(families);
}

static bool hasSwapchainExtension(VkPhysicalDevice device) {
    uint32_t count = 0;
    vkEnumerateDeviceExtensionProperties(device, NULL, &count, NULL);

    VkExtensionProperties* available = (VkExtensionProperties*)malloc(count * sizeof(VkExtensionProperties));
    vkEnumerateDeviceExtensionProperties(device, NULL, &count, available);

    bool found = false;
    for (uint32_t i = 0; i < count; i++) {
        if (strcmp(VK_KHR_SWAPCHAIN_EXTENSION_NAME, available[i].extensionName) == 0) {
            found = true;
            break;
        }
    }

    free(available);
    return found;
}

static uint32_t rateDevice(VkPhysicalDevice device, VkSurfaceKHR surface) {
    VkPhysicalDeviceProperties properties;
    VkPhysicalDeviceFeatures features;
    vkGetPhysicalDeviceProperties(device, &properties);
    vkGetPhysicalDeviceFeatures(device, &features);

    QueueFamilies families = {0};
    findQueueFamilies(device, surface, &families);
    if (!families.hasGraphicsFamily || !families.hasPresentFamily) {
        return 0;
    }
    if (!features.samplerAnisotropy || !hasSwapchainExtension(device)) {
        return 0;
    }

    uint32_t score = properties.limits.maxImageDimension2D;
    if (properties.deviceType == VK_PHYSICAL_DEVICE_TYPE_DISCRETE_GPU) {
        score += 1000;
    }
    return score;
}
*/
import "C"
import (
	"github.com/cockroachdb/errors"

	"vkframe/gpu"
)

// Device is the logical device with its graphics and present queues and the
// command pool every command buffer is allocated from.
type Device struct {
	physical C.VkPhysicalDevice
	handle   C.VkDevice
	graphics C.VkQueue
	present  C.VkQueue
	pool     C.VkCommandPool

	graphicsFamily uint32
	presentFamily  uint32
	properties     C.VkPhysicalDeviceProperties
	memory         C.VkPhysicalDeviceMemoryProperties
}

var _ gpu.Device = (*Device)(nil)

// pickDevice selects the highest rated physical device able to draw to and
// present on surface, then creates the logical device on it.
func pickDevice(inst *instance, surface C.VkSurfaceKHR) (*Device, error) {
	var count C.uint32_t
	C.vkEnumeratePhysicalDevices(inst.handle, &count, nil)
	if count == 0 {
		return nil, errors.Mark(errors.New("no GPU with Vulkan support"), gpu.ErrFatalInit)
	}

	var a arena
	defer a.free()
	physical := carray[C.VkPhysicalDevice](&a, int(count))
	C.vkEnumeratePhysicalDevices(inst.handle, &count, first(physical))

	var best C.VkPhysicalDevice
	var bestScore C.uint32_t
	for _, p := range physical {
		if score := C.rateDevice(p, surface); score > bestScore {
			best, bestScore = p, score
		}
	}
	if best == nil {
		return nil, errors.Mark(errors.New("no suitable GPU"), gpu.ErrFatalInit)
	}

	d := &Device{physical: best}
	C.vkGetPhysicalDeviceProperties(best, &d.properties)
	C.vkGetPhysicalDeviceMemoryProperties(best, &d.memory)
	if err := d.createLogical(surface); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) createLogical(surface C.VkSurfaceKHR) error {
	var a arena
	defer a.free()

	var families C.QueueFamilies
	C.findQueueFamilies(d.physical, surface, &families)
	d.graphicsFamily = uint32(families.graphicsFamily)
	d.presentFamily = uint32(families.presentFamily)

	unique := []uint32{d.graphicsFamily}
	if d.presentFamily != d.graphicsFamily {
		unique = append(unique, d.presentFamily)
	}
	priority := cnew[C.float](&a)
	*priority = 1
	queues := carray[C.VkDeviceQueueCreateInfo](&a, len(unique))
	for i, family := range unique {
		queues[i].sType = C.VK_STRUCTURE_TYPE_DEVICE_QUEUE_CREATE_INFO
		queues[i].queueFamilyIndex = C.uint32_t(family)
		queues[i].queueCount = 1
		queues[i].pQueuePriorities = priority
	}

	features := cnew[C.VkPhysicalDeviceFeatures](&a)
	features.samplerAnisotropy = C.VK_TRUE

	extensions := carray[*C.char](&a, 1)
	extensions[0] = a.cstring(C.VK_KHR_SWAPCHAIN_EXTENSION_NAME)

	info := cnew[C.VkDeviceCreateInfo](&a)
	info.sType = C.VK_STRUCTURE_TYPE_DEVICE_CREATE_INFO
	info.queueCreateInfoCount = C.uint32_t(len(queues))
	info.pQueueCreateInfos = first(queues)
	info.pEnabledFeatures = features
	info.enabledExtensionCount = 1
	info.ppEnabledExtensionNames = first(extensions)

	if err := vkError(C.vkCreateDevice(d.physical, info, nil, &d.handle), "create logical device"); err != nil {
		return errors.Mark(err, gpu.ErrFatalInit)
	}
	C.vkGetDeviceQueue(d.handle, C.uint32_t(d.graphicsFamily), 0, &d.graphics)
	C.vkGetDeviceQueue(d.handle, C.uint32_t(d.presentFamily), 0, &d.present)

	poolInfo := cnew[C.VkCommandPoolCreateInfo](&a)
	poolInfo.sType = C.VK_STRUCTURE_TYPE_COMMAND_POOL_CREATE_INFO
	poolInfo.queueFamilyIndex = C.uint32_t(d.graphicsFamily)
	poolInfo.flags = C.VK_COMMAND_POOL_CREATE_RESET_COMMAND_BUFFER_BIT
	if err := vkError(C.vkCreateCommandPool(d.handle, poolInfo, nil, &d.pool), "create command pool"); err != nil {
		return errors.Mark(err, gpu.ErrFatalInit)
	}
	return nil
}

func (d *Device) destroy() {
	if d.pool != nil {
		C.vkDestroyCommandPool(d.handle, d.pool, nil)
	}
	if d.handle != nil {
		C.vkDestroyDevice(d.handle, nil)
	}
}

// Name returns the driver-reported GPU name.
func (d *Device) Name() string {
	return C.GoString(&d.properties.deviceName[0])
}

func (d *Device) Type() string {
	switch d.properties.deviceType {
	case C.VK_PHYSICAL_DEVICE_TYPE_INTEGRATED_GPU:
		return "integrated"
	case C.VK_PHYSICAL_DEVICE_TYPE_DISCRETE_GPU:
		return "discrete"
	case C.VK_PHYSICAL_DEVICE_TYPE_VIRTUAL_GPU:
		return "virtual"
	case C.VK_PHYSICAL_DEVICE_TYPE_CPU:
		return "cpu"
	default:
		return "unknown"
	}
}

// maxSamples is the highest sample count usable by both color and depth
// attachments.
func (d *Device) maxSamples() gpu.SampleCount {
	counts := d.properties.limits.framebufferColorSampleCounts & d.properties.limits.framebufferDepthSampleCounts
	for s := gpu.Samples64; s > gpu.Samples1; s >>= 1 {
		if uint32(counts)&uint32(s) != 0 {
			return s
		}
	}
	return gpu.Samples1
}

func (d *Device) findMemoryType(typeBits uint32, props gpu.MemoryProperty) (uint32, error) {
	want := C.VkMemoryPropertyFlags(props)
	for i := uint32(0); i < uint32(d.memory.memoryTypeCount); i++ {
		if typeBits&(1<<i) != 0 && d.memory.memoryTypes[i].propertyFlags&want == want {
			return i, nil
		}
	}
	return 0, errors.Mark(errors.Newf("no memory type for bits %#x with properties %#x", typeBits, uint32(props)), gpu.ErrOutOfMemoryType)
}

// depthFormat returns the first depth format supporting optimal-tiling depth
// attachments.
func (d *Device) depthFormat() (gpu.Format, error) {
	for _, f := range []gpu.Format{gpu.FormatD32Sfloat, gpu.FormatD32SfloatS8Uint, gpu.FormatD24UnormS8Uint} {
		var props C.VkFormatProperties
		C.vkGetPhysicalDeviceFormatProperties(d.physical, C.VkFormat(f), &props)
		if props.optimalTilingFeatures&C.VK_FORMAT_FEATURE_DEPTH_STENCIL_ATTACHMENT_BIT != 0 {
			return f, nil
		}
	}
	return gpu.FormatUndefined, errors.Mark(errors.New("no supported depth format"), gpu.ErrFatalInit)
}

func (d *Device) maxAnisotropy() C.float {
	return d.properties.limits.maxSamplerAnisotropy
}

func (d *Device) WaitIdle() error {
	return vkError(C.vkDeviceWaitIdle(d.handle), "wait device idle")
}

func (d *Device) QueueWaitIdle() error {
	return vkError(C.vkQueueWaitIdle(d.graphics), "wait queue idle")
}

// Submit queues one submission on the graphics queue. fence may be zero.
func (d *Device) Submit(s gpu.SubmitInfo, fence gpu.Fence) error {
	var a arena
	defer a.free()

	buffers := carray[C.VkCommandBuffer](&a, len(s.CommandBuffers))
	for i, cb := range s.CommandBuffers {
		buffers[i] = C.VkCommandBuffer(pointer(uint64(cb)))
	}
	wait := carray[C.VkSemaphore](&a, len(s.Wait))
	stages := carray[C.VkPipelineStageFlags](&a, len(s.Wait))
	for i, sem := range s.Wait {
		wait[i] = C.VkSemaphore(pointer(uint64(sem)))
		stages[i] = C.VkPipelineStageFlags(s.WaitStages[i])
	}
	signal := carray[C.VkSemaphore](&a, len(s.Signal))
	for i, sem := range s.Signal {
		signal[i] = C.VkSemaphore(pointer(uint64(sem)))
	}

	info := cnew[C.VkSubmitInfo](&a)
	info.sType = C.VK_STRUCTURE_TYPE_SUBMIT_INFO
	info.commandBufferCount = C.uint32_t(len(buffers))
	info.pCommandBuffers = first(buffers)
	info.waitSemaphoreCount = C.uint32_t(len(wait))
	info.pWaitSemaphores = first(wait)
	info.pWaitDstStageMask = first(stages)
	info.signalSemaphoreCount = C.uint32_t(len(signal))
	info.pSignalSemaphores = first(signal)

	return vkError(C.vkQueueSubmit(d.graphics, 1, info, C.VkFence(pointer(uint64(fence)))), "queue submit")
}
