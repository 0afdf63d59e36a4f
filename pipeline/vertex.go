// Package pipeline compiles and caches graphics pipelines and render passes.
package pipeline

import (
	"fmt"
	"unsafe"

	"vkframe/core"
	"vkframe/gpu"
)

// VertexLayoutKind selects one of the two vertex input layouts.
type VertexLayoutKind int

const (
	// Static vertices carry position, color, uv and normal.
	Static VertexLayoutKind = iota
	// Animated vertices add three joint indices and three weights.
	Animated
)

func (k VertexLayoutKind) String() string {
	switch k {
	case Static:
		return "static"
	case Animated:
		return "animated"
	}
	return fmt.Sprintf("VertexLayoutKind(%d)", int(k))
}

var (
	staticVertex   core.Vertex
	animatedVertex core.AnimatedVertex
)

var staticAttributes = []gpu.VertexAttribute{
	{Location: 0, Format: gpu.FormatR32G32B32Sfloat, Offset: uint32(unsafe.Offsetof(staticVertex.Position))},
	{Location: 1, Format: gpu.FormatR32G32B32Sfloat, Offset: uint32(unsafe.Offsetof(staticVertex.Color))},
	{Location: 2, Format: gpu.FormatR32G32Sfloat, Offset: uint32(unsafe.Offsetof(staticVertex.UV))},
	{Location: 3, Format: gpu.FormatR32G32B32Sfloat, Offset: uint32(unsafe.Offsetof(staticVertex.Normal))},
}

var animatedAttributes = append(staticAttributes[:len(staticAttributes):len(staticAttributes)],
	gpu.VertexAttribute{Location: 4, Format: gpu.FormatR32G32B32Sint, Offset: uint32(unsafe.Offsetof(animatedVertex.Joints))},
	gpu.VertexAttribute{Location: 5, Format: gpu.FormatR32G32B32Sfloat, Offset: uint32(unsafe.Offsetof(animatedVertex.Weights))},
)

// Attributes returns the vertex attributes of k, ordered by location.
func (k VertexLayoutKind) Attributes() []gpu.VertexAttribute {
	if k == Animated {
		return animatedAttributes
	}
	return staticAttributes
}

func (k VertexLayoutKind) Stride() uint32 {
	if k == Animated {
		return core.AnimatedVertexStride
	}
	return core.VertexStride
}
