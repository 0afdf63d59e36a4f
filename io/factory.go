package io

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"vkframe/core"
	"vkframe/scene"
)

// Factory builds the entity an EntityRecord describes. Every resource it
// names is already registered in w.
type Factory func(w *scene.World, rec EntityRecord) (scene.Entity, error)

// Factories maps an entity kind to its constructor.
type Factories map[string]Factory

// DefaultFactories knows the "rendered", "animated" and "light" kinds.
func DefaultFactories() Factories {
	return Factories{
		"rendered": newRendered,
		"animated": newAnimated,
		"light":    newLight,
	}
}

// Build runs the factory registered for rec.Kind.
func (f Factories) Build(w *scene.World, rec EntityRecord) (scene.Entity, error) {
	build, ok := f[rec.Kind]
	if !ok {
		return nil, errors.Newf("entity %q: unknown kind %q", rec.Name, rec.Kind)
	}
	e, err := build(w, rec)
	if err != nil {
		return nil, errors.Wrapf(err, "entity %q", rec.Name)
	}
	return e, nil
}

func renderedOptions(rec EntityRecord) scene.RenderedOptions {
	return scene.RenderedOptions{
		Transform:  rec.Transform.Transform(),
		Mesh:       rec.Mesh,
		Program:    rec.Program,
		Textures:   rec.Textures,
		LightScene: rec.LightScene,
	}
}

func newRendered(w *scene.World, rec EntityRecord) (scene.Entity, error) {
	e, err := scene.NewRenderedEntity(w, renderedOptions(rec))
	if err != nil {
		return nil, err
	}
	e.Hide = rec.Hidden
	return e, nil
}

// newAnimated poses the entity with a bind pose of rec.Joints joints.
func newAnimated(w *scene.World, rec EntityRecord) (scene.Entity, error) {
	if rec.Joints < 0 || rec.Joints > scene.MaxJoints {
		return nil, errors.Newf("%d joints, want 0 to %d", rec.Joints, scene.MaxJoints)
	}
	e, err := scene.NewAnimatedEntity(w, renderedOptions(rec), scene.NewBindPose(rec.Joints))
	if err != nil {
		return nil, err
	}
	e.Hide = rec.Hidden
	return e, nil
}

func newLight(w *scene.World, rec EntityRecord) (scene.Entity, error) {
	return scene.NewLight(w, scene.LightOptions{
		Transform: rec.Transform.Transform(),
		Tint:      rec.Tint,
		Intensity: rec.Intensity,
		Distance:  rec.Distance,
		Spread:    rec.Spread,
		Scene:     rec.LightScene,
	}), nil
}

// Transform converts the record, filling in identity rotation and unit
// scale when they are zero.
func (t TransformRecord) Transform() core.Transform {
	tr := core.NewTransform()
	tr.Position = t.Position
	if t.Rotation != [4]float32{} {
		tr.Rotation = mgl32.Quat{W: t.Rotation[3], V: mgl32.Vec3{t.Rotation[0], t.Rotation[1], t.Rotation[2]}}.Normalize()
	}
	if t.Scale != [3]float32{} {
		tr.Scale = t.Scale
	}
	return tr
}
