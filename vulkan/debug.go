package vulkan

/*
#include <vulkan/vulkan.h>
*/
import "C"

import "vkframe/core"

//export vkframeDebugMessage
func vkframeDebugMessage(severity C.int, message *C.char) {
	msg := C.GoString(message)
	switch {
	case severity >= C.VK_DEBUG_UTILS_MESSAGE_SEVERITY_ERROR_BIT_EXT:
		core.Logger().Warn("validation error", "msg", msg)
	case severity >= C.VK_DEBUG_UTILS_MESSAGE_SEVERITY_WARNING_BIT_EXT:
		core.Logger().Warn("validation warning", "msg", msg)
	default:
		core.Logger().Debug("validation", "msg", msg)
	}
}
