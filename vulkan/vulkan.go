// Package vulkan implements gpu.Context and gpu.Device on the Vulkan C API
// through cgo. Every handle crosses the gpu seam as the uint64 value of the
// Vulkan handle, so 64-bit targets are required.
package vulkan

/*
#cgo windows LDFLAGS: -lvulkan-1
#cgo linux LDFLAGS: -lvulkan
#cgo darwin LDFLAGS: -framework MoltenVK
#include <vulkan/vulkan.h>
*/
import "C"
import (
	"unsafe"

	"github.com/cockroachdb/errors"

	"vkframe/gpu"
)

// vkError converts a VkResult into an error, or nil on VK_SUCCESS. The
// presentation and allocation results carry the matching gpu sentinel.
func vkError(result C.VkResult, what string) error {
	switch result {
	case C.VK_SUCCESS:
		return nil
	case C.VK_ERROR_OUT_OF_DATE_KHR:
		return errors.Mark(errors.Newf("%s: out of date (%d)", what, result), gpu.ErrOutOfDate)
	case C.VK_SUBOPTIMAL_KHR:
		return errors.Mark(errors.Newf("%s: suboptimal (%d)", what, result), gpu.ErrSuboptimal)
	case C.VK_ERROR_OUT_OF_HOST_MEMORY, C.VK_ERROR_OUT_OF_DEVICE_MEMORY:
		return errors.Mark(errors.Newf("%s: out of memory (%d)", what, result), gpu.ErrResourceCreation)
	case C.VK_ERROR_INITIALIZATION_FAILED, C.VK_ERROR_LAYER_NOT_PRESENT,
		C.VK_ERROR_EXTENSION_NOT_PRESENT, C.VK_ERROR_FEATURE_NOT_PRESENT,
		C.VK_ERROR_INCOMPATIBLE_DRIVER:
		return errors.Mark(errors.Newf("%s: %d", what, result), gpu.ErrFatalInit)
	}
	return errors.Newf("%s: %d", what, result)
}

func handle(p unsafe.Pointer) uint64 { return uint64(uintptr(p)) }

func pointer(h uint64) unsafe.Pointer { return unsafe.Pointer(uintptr(h)) }

func vkBool(b bool) C.VkBool32 {
	if b {
		return C.VK_TRUE
	}
	return C.VK_FALSE
}

// creationFailed marks a failed vkCreate* result as a resource creation
// error unless it already carries a fatal or memory sentinel.
func creationFailed(err error) error {
	if errors.Is(err, gpu.ErrFatalInit) || errors.Is(err, gpu.ErrResourceCreation) {
		return err
	}
	return errors.Mark(err, gpu.ErrResourceCreation)
}
