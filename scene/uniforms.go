package scene

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	MaxJoints = 100
	MaxLights = 50
)

// Uniform block layouts. Matrices are column-major as the shaders expect.
type (
	MVP struct {
		Model      mgl32.Mat4
		View       mgl32.Mat4
		Projection mgl32.Mat4
	}

	JointData [MaxJoints]mgl32.Mat4

	Tint mgl32.Vec4

	ScreenSize struct {
		Width, Height float32
		_             [2]float32
	}

	// SceneLighting stores each light field in its own array. Mods holds
	// intensity, distance and spread; a distance of -1 is directional and a
	// spread of -1 is a point light.
	SceneLighting struct {
		Position  [MaxLights]mgl32.Vec4
		Direction [MaxLights]mgl32.Vec4
		Tint      [MaxLights]mgl32.Vec4
		Mods      [MaxLights]mgl32.Vec4
	}
)

// Sizes to declare on a pipeline.Program.
const (
	MVPSize        = uint64(unsafe.Sizeof(MVP{}))
	JointDataSize  = uint64(unsafe.Sizeof(JointData{}))
	TintSize       = uint64(unsafe.Sizeof(Tint{}))
	ScreenSizeSize = uint64(unsafe.Sizeof(ScreenSize{}))
	LightingSize   = uint64(unsafe.Sizeof(SceneLighting{}))
)

// NewJointData copies up to MaxJoints matrices and fills the rest with
// identity.
func NewJointData(joints []mgl32.Mat4) *JointData {
	var d JointData
	n := copy(d[:], joints)
	for i := n; i < MaxJoints; i++ {
		d[i] = mgl32.Ident4()
	}
	return &d
}

// Bytes views v as raw memory for a uniform upload.
func Bytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}
