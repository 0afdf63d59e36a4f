package vulkan

/*
#include <stdlib.h>
*/
import "C"
import "unsafe"

// arena collects zeroed C allocations referenced from create-info structs.
// Vulkan reads them during the call, so callers free the arena right after.
type arena struct {
	ptrs []unsafe.Pointer
}

func (a *arena) alloc(size uintptr) unsafe.Pointer {
	p := C.calloc(1, C.size_t(size))
	a.ptrs = append(a.ptrs, p)
	return p
}

func (a *arena) cstring(s string) *C.char {
	p := C.CString(s)
	a.ptrs = append(a.ptrs, unsafe.Pointer(p))
	return p
}

func (a *arena) free() {
	for _, p := range a.ptrs {
		C.free(p)
	}
	a.ptrs = nil
}

func cnew[T any](a *arena) *T {
	var zero T
	return (*T)(a.alloc(unsafe.Sizeof(zero)))
}

// carray returns n zeroed elements in C memory, or nil when n is 0.
func carray[T any](a *arena, n int) []T {
	if n == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*T)(a.alloc(unsafe.Sizeof(zero)*uintptr(n))), n)
}

// first returns a pointer to the first element, or nil for an empty slice.
func first[T any](s []T) *T {
	if len(s) == 0 {
		return nil
	}
	return &s[0]
}
