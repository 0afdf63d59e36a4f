package vulkan

/*
#include <vulkan/vulkan.h>
#include <string.h>

extern void vkframeDebugMessage(int severity, char* message);

static VKAPI_ATTR VkBool32 VKAPI_CALL debugCallback(
    VkDebugUtilsMessageSeverityFlagBitsEXT messageSeverity,
    VkDebugUtilsMessageTypeFlagsEXT messageType,
    const VkDebugUtilsMessengerCallbackDataEXT* pCallbackData,
    void* pUserData) {
    vkframeDebugMessage((int)messageSeverity, (char*)pCallbackData->pMessage);
    return VK_FALSE;
}

static void fillDebugInfo(VkDebugUtilsMessengerCreateInfoEXT* info) {
    info->sType = VK_STRUCTURE_TYPE_DEBUG_UTILS_MESSENGER_CREATE_INFO_EXT;
    info->messageSeverity = VK_DEBUG_UTILS_MESSAGE_SEVERITY_VERBOSE_BIT_EXT |
        VK_DEBUG_UTILS_MESSAGE_SEVERITY_WARNING_BIT_EXT |
        VK_DEBUG_UTILS_MESSAGE_SEVERITY_ERROR_BIT_EXT;
    info->messageType = VK_DEBUG_UTILS_MESSAGE_TYPE_GENERAL_BIT_EXT |
        VK_DEBUG_UTILS_MESSAGE_TYPE_VALIDATION_BIT_EXT |
        VK_DEBUG_UTILS_MESSAGE_TYPE_PERFORMANCE_BIT_EXT;
    info->pfnUserCallback = debugCallback;
}

static VkResult createDebugMessenger(VkInstance instance, const VkDebugUtilsMessengerCreateInfoEXT* info, VkDebugUtilsMessengerEXT* messenger) {
    PFN_vkCreateDebugUtilsMessengerEXT fn = (PFN_vkCreateDebugUtilsMessengerEXT)vkGetInstanceProcAddr(instance, "vkCreateDebugUtilsMessengerEXT");
    if (fn == NULL) {
        return VK_ERROR_EXTENSION_NOT_PRESENT;
    }
    return fn(instance, info, NULL, messenger);
}

static void destroyDebugMessenger(VkInstance instance, VkDebugUtilsMessengerEXT messenger) {
    PFN_vkDestroyDebugUtilsMessengerEXT fn = (PFN_vkDestroyDebugUtilsMessengerEXT)vkGetInstanceProcAddr(instance, "vkDestroyDebugUtilsMessengerEXT");
    if (fn != NULL) {
        fn(instance, messenger, NULL);
    }
}
*/
import "C"
import (
	"unsafe"

	"github.com/cockroachdb/errors"

	"vkframe/core"
	"vkframe/gpu"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

type instance struct {
	handle    C.VkInstance
	messenger C.VkDebugUtilsMessengerEXT
}

// newInstance creates the instance with the window system extensions and,
// when validation is requested and available, the Khronos validation layer
// reporting through the engine logger.
func newInstance(appName string, extensions []string, validation bool) (*instance, error) {
	var a arena
	defer a.free()

	if validation && !validationLayerAvailable() {
		core.Logger().Warn("validation layer requested but not available", "layer", validationLayer)
		validation = false
	}
	if validation {
		extensions = append(extensions, "VK_EXT_debug_utils")
	}

	appInfo := cnew[C.VkApplicationInfo](&a)
	appInfo.sType = C.VK_STRUCTURE_TYPE_APPLICATION_INFO
	appInfo.pApplicationName = a.cstring(appName)
	appInfo.applicationVersion = makeVersion(1, 0, 0)
	appInfo.pEngineName = a.cstring("vkframe")
	appInfo.engineVersion = makeVersion(1, 0, 0)
	appInfo.apiVersion = C.VK_API_VERSION_1_2

	names := carray[*C.char](&a, len(extensions))
	for i, ext := range extensions {
		names[i] = a.cstring(ext)
	}

	info := cnew[C.VkInstanceCreateInfo](&a)
	info.sType = C.VK_STRUCTURE_TYPE_INSTANCE_CREATE_INFO
	info.pApplicationInfo = appInfo
	info.enabledExtensionCount = C.uint32_t(len(names))
	info.ppEnabledExtensionNames = first(names)

	var debugInfo *C.VkDebugUtilsMessengerCreateInfoEXT
	if validation {
		layers := carray[*C.char](&a, 1)
		layers[0] = a.cstring(validationLayer)
		info.enabledLayerCount = 1
		info.ppEnabledLayerNames = first(layers)

		debugInfo = cnew[C.VkDebugUtilsMessengerCreateInfoEXT](&a)
		C.fillDebugInfo(debugInfo)
		info.pNext = unsafe.Pointer(debugInfo)
	}

	inst := &instance{}
	if err := vkError(C.vkCreateInstance(info, nil, &inst.handle), "create instance"); err != nil {
		return nil, errors.Mark(err, gpu.ErrFatalInit)
	}

	if validation {
		if err := vkError(C.createDebugMessenger(inst.handle, debugInfo, &inst.messenger), "create debug messenger"); err != nil {
			core.Logger().Warn("validation messages disabled", "err", err)
		}
	}
	return inst, nil
}

func (i *instance) destroy() {
	if i.messenger != nil {
		C.destroyDebugMessenger(i.handle, i.messenger)
	}
	C.vkDestroyInstance(i.handle, nil)
}

func validationLayerAvailable() bool {
	var count C.uint32_t
	C.vkEnumerateInstanceLayerProperties(&count, nil)
	if count == 0 {
		return false
	}
	var a arena
	defer a.free()
	layers := carray[C.VkLayerProperties](&a, int(count))
	C.vkEnumerateInstanceLayerProperties(&count, first(layers))

	name := a.cstring(validationLayer)
	for i := range layers {
		if C.strcmp(&layers[i].layerName[0], name) == 0 {
			return true
		}
	}
	return false
}

func makeVersion(major, minor, patch uint32) C.uint32_t {
	return C.uint32_t((major << 22) | (minor << 12) | patch)
}
