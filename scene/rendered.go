package scene

import (
	"github.com/cockroachdb/errors"

	"vkframe/core"
	"vkframe/descriptor"
	"vkframe/pipeline"
	"vkframe/resource"
)

// RenderedOptions name the registered resources a rendered entity draws
// with. An empty Mesh gives an entity that updates but is never drawn. An
// empty LightScene skips the lighting uniform.
type RenderedOptions struct {
	Transform  core.Transform
	Mesh       string
	Program    string
	Textures   []string
	LightScene string
}

// RenderedEntity draws a mesh with a program. Uniform 0 receives the MVP
// matrices and, with a light scene, uniform 1 the scene lighting.
type RenderedEntity struct {
	Object
	Hide bool

	mesh       *Mesh
	program    *pipeline.Program
	uniforms   []*resource.UniformBuffer
	descriptor *descriptor.Descriptor
	lights     *LightScene
}

func NewRenderedEntity(w *World, opts RenderedOptions) (*RenderedEntity, error) {
	e := &RenderedEntity{}
	if err := e.init(w, opts); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *RenderedEntity) init(w *World, opts RenderedOptions) error {
	var err error
	if opts.Mesh != "" {
		if e.mesh, err = w.Meshes.Get(opts.Mesh); err != nil {
			return err
		}
	}
	if e.program, err = w.Programs.Get(opts.Program); err != nil {
		return err
	}
	textures := make([]*resource.Texture, 0, len(opts.Textures))
	for _, name := range opts.Textures {
		t, err := w.Textures.Get(name)
		if err != nil {
			return err
		}
		textures = append(textures, t)
	}
	if opts.LightScene != "" {
		e.lights = w.LightScene(opts.LightScene)
	}

	for _, size := range e.program.Uniforms {
		u, err := w.Pool.NewUniformBuffer(size)
		if err != nil {
			e.releaseUniforms(w)
			return errors.Wrapf(err, "entity uniforms for %s", e.program.Name)
		}
		e.uniforms = append(e.uniforms, u)
	}

	if sig := e.program.Signature; sig.Len() > 0 {
		layout, err := w.Layouts.GetOrCreate(sig)
		if err == nil {
			e.descriptor, err = descriptor.New(w.Context(), sig, layout, e.uniforms, textures)
		}
		if err != nil {
			e.releaseUniforms(w)
			return errors.Wrapf(err, "entity descriptor for %s", e.program.Name)
		}
	}

	e.Object = Object{World: w, ID: w.Graph.Add(opts.Transform)}
	return nil
}

func (e *RenderedEntity) releaseUniforms(w *World) {
	for _, u := range e.uniforms {
		w.Pool.Destroy(u)
	}
	e.uniforms = nil
}

func (e *RenderedEntity) Mesh() *Mesh                        { return e.mesh }
func (e *RenderedEntity) Program() *pipeline.Program         { return e.program }
func (e *RenderedEntity) Descriptor() *descriptor.Descriptor { return e.descriptor }
func (e *RenderedEntity) Hidden() bool                       { return e.Hide }

// Uniform returns the i-th uniform buffer.
func (e *RenderedEntity) Uniform(i int) *resource.UniformBuffer { return e.uniforms[i] }

func (e *RenderedEntity) Update(index int, _ float32) error {
	if len(e.uniforms) == 0 {
		return nil
	}
	cam := e.World.Camera
	mvp := MVP{
		Model:      e.World.Graph.WorldMatrix(e.ID),
		View:       cam.View(),
		Projection: cam.Projection(),
	}
	if err := e.uniforms[0].Update(Bytes(&mvp), index); err != nil {
		return errors.Wrap(err, "mvp uniform")
	}
	if e.lights != nil && len(e.uniforms) > 1 {
		if err := e.uniforms[1].Update(Bytes(e.lights.Data(e.World.Graph)), index); err != nil {
			return errors.Wrap(err, "lighting uniform")
		}
	}
	return nil
}

// Cleanup frees the uniforms and descriptor pool. Shared meshes, textures
// and programs stay in the World's registries.
func (e *RenderedEntity) Cleanup() {
	if e.ID == NoEntity {
		return
	}
	if e.descriptor != nil {
		e.descriptor.Cleanup()
	}
	e.releaseUniforms(e.World)
	e.release()
}

// AnimatedEntity is a RenderedEntity whose joint matrices come from an
// Animator. The joints uniform follows the lighting uniform when there is
// one, otherwise it is uniform 1.
type AnimatedEntity struct {
	RenderedEntity
	animator Animator
}

func NewAnimatedEntity(w *World, opts RenderedOptions, animator Animator) (*AnimatedEntity, error) {
	e := &AnimatedEntity{animator: animator}
	if err := e.init(w, opts); err != nil {
		return nil, err
	}
	if len(e.uniforms) <= e.jointsUniform() {
		e.RenderedEntity.Cleanup()
		return nil, errors.Newf("program %s declares no joints uniform", e.program.Name)
	}
	return e, nil
}

func (e *AnimatedEntity) Animator() Animator { return e.animator }

func (e *AnimatedEntity) jointsUniform() int {
	if e.lights != nil {
		return 2
	}
	return 1
}

func (e *AnimatedEntity) Update(index int, dt float32) error {
	if err := e.RenderedEntity.Update(index, dt); err != nil {
		return err
	}
	e.animator.Update(dt)
	joints := NewJointData(e.animator.Joints())
	return errors.Wrap(e.uniforms[e.jointsUniform()].Update(Bytes(joints), index), "joints uniform")
}
