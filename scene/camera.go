package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// vulkanClip flips Y and maps depth from [-1,1] to [0,1].
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Camera is a perspective view camera. FOV is the vertical field of view in
// radians.
type Camera struct {
	Position    mgl32.Vec3
	Rotation    mgl32.Quat
	FOV         float32
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32

	viewMatrix       mgl32.Mat4
	projectionMatrix mgl32.Mat4
	dirty            bool
}

func NewCamera(fov, aspectRatio, nearPlane, farPlane float32) *Camera {
	return &Camera{
		Rotation:    mgl32.QuatIdent(),
		FOV:         fov,
		AspectRatio: aspectRatio,
		NearPlane:   nearPlane,
		FarPlane:    farPlane,
		dirty:       true,
	}
}

func (c *Camera) UpdateAspectRatio(width, height float32) {
	if height > 0 {
		c.AspectRatio = width / height
		c.dirty = true
	}
}

func (c *Camera) SetPosition(pos mgl32.Vec3) {
	c.Position = pos
	c.dirty = true
}

func (c *Camera) SetRotation(rot mgl32.Quat) {
	c.Rotation = rot
	c.dirty = true
}

func (c *Camera) Translate(delta mgl32.Vec3) {
	c.Position = c.Position.Add(delta)
	c.dirty = true
}

func (c *Camera) Rotate(axis mgl32.Vec3, angle float32) {
	c.Rotation = c.Rotation.Mul(mgl32.QuatRotate(angle, axis)).Normalize()
	c.dirty = true
}

// LookAt turns the camera towards target.
func (c *Camera) LookAt(target, up mgl32.Vec3) {
	view := mgl32.LookAtV(c.Position, target, up)
	c.Rotation = mgl32.Mat4ToQuat(view).Inverse().Normalize()
	c.dirty = true
}

func (c *Camera) View() mgl32.Mat4 {
	if c.dirty {
		c.updateMatrices()
	}
	return c.viewMatrix
}

// Projection returns the perspective projection in Vulkan clip space.
func (c *Camera) Projection() mgl32.Mat4 {
	if c.dirty {
		c.updateMatrices()
	}
	return c.projectionMatrix
}

func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

func (c *Camera) Forward() mgl32.Vec3 { return c.Rotation.Rotate(mgl32.Vec3{0, 0, -1}) }
func (c *Camera) Right() mgl32.Vec3   { return c.Rotation.Rotate(mgl32.Vec3{1, 0, 0}) }
func (c *Camera) Up() mgl32.Vec3      { return c.Rotation.Rotate(mgl32.Vec3{0, 1, 0}) }

func (c *Camera) updateMatrices() {
	translation := mgl32.Translate3D(-c.Position.X(), -c.Position.Y(), -c.Position.Z())
	c.viewMatrix = c.Rotation.Inverse().Mat4().Mul4(translation)
	c.projectionMatrix = vulkanClip.Mul4(mgl32.Perspective(c.FOV, c.AspectRatio, c.NearPlane, c.FarPlane))
	c.dirty = false
}

// OrbitCamera circles Target at Distance. Yaw and Pitch are in radians.
type OrbitCamera struct {
	*Camera
	Target   mgl32.Vec3
	Distance float32
	Yaw      float32
	Pitch    float32
}

func NewOrbitCamera(camera *Camera, target mgl32.Vec3, distance float32) *OrbitCamera {
	c := &OrbitCamera{Camera: camera, Target: target, Distance: distance, Pitch: 0.3}
	c.UpdatePosition()
	return c
}

func (c *OrbitCamera) UpdatePosition() {
	c.Pitch = mgl32.Clamp(c.Pitch, -1.5, 1.5)

	cosPitch := float32(math.Cos(float64(c.Pitch)))
	sinPitch := float32(math.Sin(float64(c.Pitch)))
	cosYaw := float32(math.Cos(float64(c.Yaw)))
	sinYaw := float32(math.Sin(float64(c.Yaw)))

	offset := mgl32.Vec3{
		c.Distance * cosPitch * sinYaw,
		c.Distance * sinPitch,
		c.Distance * cosPitch * cosYaw,
	}
	c.SetPosition(c.Target.Add(offset))
	c.LookAt(c.Target, mgl32.Vec3{0, 1, 0})
}

func (c *OrbitCamera) Orbit(deltaYaw, deltaPitch float32) {
	c.Yaw += deltaYaw
	c.Pitch += deltaPitch
	c.UpdatePosition()
}

func (c *OrbitCamera) Zoom(delta float32) {
	c.Distance = max(c.Distance+delta, 0.1)
	c.UpdatePosition()
}
