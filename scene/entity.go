package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"vkframe/core"
	"vkframe/descriptor"
	"vkframe/pipeline"
)

// Entity is anything the frame scheduler updates each frame. Update writes
// the entity's per-frame data for back buffer index.
type Entity interface {
	Node() EntityID
	Update(index int, dt float32) error
	Cleanup()
}

// Renderable entities are recorded into command lists. Entities with a nil
// Mesh are skipped.
type Renderable interface {
	Entity
	Mesh() *Mesh
	Program() *pipeline.Program
	Descriptor() *descriptor.Descriptor
}

type Hideable interface {
	Hidden() bool
}

type Animated interface {
	Animator() Animator
}

// Animator produces joint matrices for a skinned mesh.
type Animator interface {
	Update(dt float32)
	Joints() []mgl32.Mat4
}

// BindPose keeps every joint at identity.
type BindPose struct {
	joints []mgl32.Mat4
}

func NewBindPose(count int) *BindPose {
	joints := make([]mgl32.Mat4, min(count, MaxJoints))
	for i := range joints {
		joints[i] = mgl32.Ident4()
	}
	return &BindPose{joints: joints}
}

func (b *BindPose) Update(float32) {}

func (b *BindPose) Joints() []mgl32.Mat4 { return b.joints }

// Object is the graph node shared by every entity kind.
type Object struct {
	World *World
	ID    EntityID
}

func (o *Object) Node() EntityID { return o.ID }

// Transform returns the local transform for in-place edits.
func (o *Object) Transform() *core.Transform { return o.World.Graph.Transform(o.ID) }

func (o *Object) release() {
	o.World.Graph.Remove(o.ID)
	o.ID = NoEntity
}
