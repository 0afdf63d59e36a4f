package vulkan

/*
#include <vulkan/vulkan.h>
#include <stdint.h>
#include <stdlib.h>

typedef struct {
    VkSurfaceCapabilitiesKHR capabilities;
    VkSurfaceFormatKHR* formats;
    uint32_t formatCount;
    VkPresentModeKHR* presentModes;
    uint32_t presentModeCount;
} SwapchainSupport;

static void querySwapchainSupport(VkPhysicalDevice device, VkSurfaceKHR surface, SwapchainSupport* details) {
    vkGetPhysicalDeviceSurfaceCapabilitiesKHR(device, surface, &details->capabilities);

    vkGetPhysicalDeviceSurfaceFormatsKHR(device, surface, &details->formatCount, NULL);
    if (details->formatCount != 0) {
        details->formats = (VkSurfaceFormatKHR*)malloc(details->formatCount * sizeof(VkSurfaceFormatKHR));
        vkGetPhysicalDeviceSurfaceFormatsKHR(device, surface, &details->formatCount, details->formats);
    }

    vkGetPhysicalDeviceSurfacePresentModesKHR(device, surface, &details->presentModeCount, NULL);
    if (details->presentModeCount != 0) {
        details->presentModes = (VkPresentModeKHR*)malloc(details->presentModeCount * sizeof(VkPresentModeKHR));
        vkGetPhysicalDeviceSurfacePresentModesKHR(device, surface, &details->presentModeCount, details->presentModes);
    }
}

static void freeSwapchainSupport(SwapchainSupport* details) {
    free(details->formats);
    free(details->presentModes);
}

static VkSurfaceFormatKHR chooseSurfaceFormat(const VkSurfaceFormatKHR* formats, uint32_t count) {
    for (uint32_t i = 0; i < count; i++) {
        if (formats[i].format == VK_FORMAT_B8G8R8A8_SRGB &&
            formats[i].colorSpace == VK_COLOR_SPACE_SRGB_NONLINEAR_KHR) {
            return formats[i];
        }
    }
    return formats[0];
}

static VkPresentModeKHR choosePresentMode(const VkPresentModeKHR* modes, uint32_t count) {
    for (uint32_t i = 0; i < count; i++) {
        if (modes[i] == VK_PRESENT_MODE_MAILBOX_KHR) {
            return modes[i];
        }
    }
    return VK_PRESENT_MODE_FIFO_KHR;
}

static VkExtent2D chooseExtent(const VkSurfaceCapabilitiesKHR* caps, uint32_t width, uint32_t height) {
    if (caps->currentExtent.width != UINT32_MAX) {
        return caps->currentExtent;
    }
    VkExtent2D extent = {width, height};
    if (extent.width < caps->minImageExtent.width) {
        extent.width = caps->minImageExtent.width;
    } else if (extent.width > caps->maxImageExtent.width) {
        extent.width = caps->maxImageExtent.width;
    }
    if (extent.height < caps->minImageExtent.height) {
        extent.height = caps->minImageExtent.height;
    } else if (extent.height > caps->maxImageExtent.height) {
        extent.height = caps->maxImageExtent.height;
    }
    return extent;
}
*/
import "C"
import (
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"

	"vkframe/gpu"
)

type swapchain struct {
	handle C.VkSwapchainKHR
	images []C.VkImage
	views  []gpu.ImageView
	format C.VkFormat
	extent C.VkExtent2D
}

// newSwapchain creates the back-buffer chain for surface, retiring old when
// it is not nil. width and height are used only when the surface leaves the
// extent to the application.
func newSwapchain(d *Device, surface C.VkSurfaceKHR, width, height int, vsync bool, old *swapchain) (*swapchain, error) {
	var details C.SwapchainSupport
	C.querySwapchainSupport(d.physical, surface, &details)
	defer C.freeSwapchainSupport(&details)
	if details.formatCount == 0 || details.presentModeCount == 0 {
		return nil, errors.Mark(errors.New("surface has no formats or present modes"), gpu.ErrFatalInit)
	}

	surfaceFormat := C.chooseSurfaceFormat(details.formats, details.formatCount)
	presentMode := C.VkPresentModeKHR(C.VK_PRESENT_MODE_FIFO_KHR)
	if !vsync {
		presentMode = C.choosePresentMode(details.presentModes, details.presentModeCount)
	}
	extent := C.chooseExtent(&details.capabilities, C.uint32_t(width), C.uint32_t(height))

	imageCount := details.capabilities.minImageCount + 1
	if details.capabilities.maxImageCount > 0 && imageCount > details.capabilities.maxImageCount {
		imageCount = details.capabilities.maxImageCount
	}

	var a arena
	defer a.free()
	info := cnew[C.VkSwapchainCreateInfoKHR](&a)
	info.sType = C.VK_STRUCTURE_TYPE_SWAPCHAIN_CREATE_INFO_KHR
	info.surface = surface
	info.minImageCount = imageCount
	info.imageFormat = surfaceFormat.format
	info.imageColorSpace = surfaceFormat.colorSpace
	info.imageExtent = extent
	info.imageArrayLayers = 1
	info.imageUsage = C.VK_IMAGE_USAGE_COLOR_ATTACHMENT_BIT | C.VK_IMAGE_USAGE_TRANSFER_SRC_BIT
	info.preTransform = details.capabilities.currentTransform
	info.compositeAlpha = C.VK_COMPOSITE_ALPHA_OPAQUE_BIT_KHR
	info.presentMode = presentMode
	info.clipped = C.VK_TRUE
	if old != nil {
		info.oldSwapchain = old.handle
	}
	info.imageSharingMode = C.VK_SHARING_MODE_EXCLUSIVE
	if d.graphicsFamily != d.presentFamily {
		families := carray[C.uint32_t](&a, 2)
		families[0] = C.uint32_t(d.graphicsFamily)
		families[1] = C.uint32_t(d.presentFamily)
		info.imageSharingMode = C.VK_SHARING_MODE_CONCURRENT
		info.queueFamilyIndexCount = 2
		info.pQueueFamilyIndices = first(families)
	}

	sc := &swapchain{format: surfaceFormat.format, extent: extent}
	if err := vkError(C.vkCreateSwapchainKHR(d.handle, info, nil, &sc.handle), "create swapchain"); err != nil {
		return nil, errors.Mark(err, gpu.ErrFatalInit)
	}

	var count C.uint32_t
	C.vkGetSwapchainImagesKHR(d.handle, sc.handle, &count, nil)
	images := carray[C.VkImage](&a, int(count))
	C.vkGetSwapchainImagesKHR(d.handle, sc.handle, &count, first(images))
	sc.images = append([]C.VkImage(nil), images...)

	for _, img := range sc.images {
		view, err := d.createView(img, sc.format, C.VK_IMAGE_ASPECT_COLOR_BIT, 1)
		if err != nil {
			sc.destroy(d)
			return nil, err
		}
		sc.views = append(sc.views, gpu.ImageView(handle(unsafe.Pointer(view))))
	}
	return sc, nil
}

// destroy releases the views and the chain. The images belong to the chain.
func (sc *swapchain) destroy(d *Device) {
	for _, v := range sc.views {
		d.DestroyImageView(v)
	}
	sc.views = nil
	C.vkDestroySwapchainKHR(d.handle, sc.handle, nil)
}

func (sc *swapchain) acquire(d *Device, signal gpu.Semaphore) (uint32, error) {
	var index C.uint32_t
	result := C.vkAcquireNextImageKHR(d.handle, sc.handle, C.uint64_t(math.MaxUint64),
		C.VkSemaphore(pointer(uint64(signal))), nil, &index)
	if result == C.VK_SUBOPTIMAL_KHR {
		// the semaphore is signaled and the image usable
		return uint32(index), nil
	}
	return uint32(index), vkError(result, "acquire back buffer")
}

func (sc *swapchain) present(d *Device, index uint32, wait gpu.Semaphore) error {
	var a arena
	defer a.free()

	sems := carray[C.VkSemaphore](&a, 1)
	sems[0] = C.VkSemaphore(pointer(uint64(wait)))
	chains := carray[C.VkSwapchainKHR](&a, 1)
	chains[0] = sc.handle
	indices := carray[C.uint32_t](&a, 1)
	indices[0] = C.uint32_t(index)

	info := cnew[C.VkPresentInfoKHR](&a)
	info.sType = C.VK_STRUCTURE_TYPE_PRESENT_INFO_KHR
	info.waitSemaphoreCount = 1
	info.pWaitSemaphores = first(sems)
	info.swapchainCount = 1
	info.pSwapchains = first(chains)
	info.pImageIndices = first(indices)

	return vkError(C.vkQueuePresentKHR(d.present, info), "present")
}
