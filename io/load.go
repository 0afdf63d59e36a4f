package io

import (
	"image/color"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"vkframe/core"
	"vkframe/descriptor"
	"vkframe/pipeline"
	"vkframe/resource"
	"vkframe/scene"
)

// uniformSizes maps the uniform names a ProgramRecord may use to their size
// in bytes.
var uniformSizes = map[string]uint64{
	"mvp":         scene.MVPSize,
	"joints":      scene.JointDataSize,
	"tint":        scene.TintSize,
	"screen_size": scene.ScreenSizeSize,
	"lighting":    scene.LightingSize,
}

// Sink receives the loaded entities in file order. frame.Scheduler is one.
type Sink interface {
	AddEntity(name string, e scene.Entity) error
}

// Loader instantiates a Schema into a World.
type Loader struct {
	// ShaderDir holds <program>.vert.spv and <program>.frag.spv.
	ShaderDir string
	// BaseDir resolves relative texture paths.
	BaseDir   string
	Factories Factories
}

// Loaded is what Load produced besides registry entries.
type Loaded struct {
	// Orbit is set when the camera mode is "orbit".
	Orbit    *scene.OrbitCamera
	Entities []string
}

// LoadFile parses path and loads it with textures resolved next to it.
func LoadFile(w *scene.World, path, shaderDir string, sink Sink) (*Loaded, error) {
	s, err := LoadSchema(path)
	if err != nil {
		return nil, err
	}
	l := Loader{ShaderDir: shaderDir, BaseDir: filepath.Dir(path), Factories: DefaultFactories()}
	return l.Load(w, s, sink)
}

// Load registers the meshes, textures and programs of s in w, applies the
// camera and hands every entity to sink. Loading stops at the first error;
// whatever was registered stays in w.
func (l Loader) Load(w *scene.World, s *Schema, sink Sink) (*Loaded, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	factories := l.Factories
	if factories == nil {
		factories = DefaultFactories()
	}

	out := &Loaded{Orbit: applyCamera(w, s.Camera)}
	for _, m := range s.Meshes {
		if err := l.loadMesh(w, m); err != nil {
			return nil, err
		}
	}
	for _, t := range s.Textures {
		if err := l.loadTexture(w, t); err != nil {
			return nil, err
		}
	}
	for _, p := range s.Programs {
		if err := l.loadProgram(w, p); err != nil {
			return nil, err
		}
	}

	nodes := make(map[string]scene.EntityID, len(s.Entities))
	for _, rec := range s.Entities {
		e, err := factories.Build(w, rec)
		if err != nil {
			return nil, err
		}
		if rec.Parent != "" {
			if err := w.Graph.SetParent(e.Node(), nodes[rec.Parent]); err != nil {
				e.Cleanup()
				return nil, errors.Wrapf(err, "entity %q", rec.Name)
			}
		}
		if err := sink.AddEntity(rec.Name, e); err != nil {
			return nil, errors.Wrapf(err, "add entity %q", rec.Name)
		}
		nodes[rec.Name] = e.Node()
		out.Entities = append(out.Entities, rec.Name)
	}
	core.Logger().Info("scene loaded",
		"scene", s.Name,
		"meshes", len(s.Meshes),
		"textures", len(s.Textures),
		"programs", len(s.Programs),
		"entities", len(out.Entities))
	return out, nil
}

func applyCamera(w *scene.World, c CameraRecord) *scene.OrbitCamera {
	cam := w.Camera
	if c.FOV > 0 {
		cam.FOV = mgl32.DegToRad(c.FOV)
	}
	if c.Near > 0 {
		cam.NearPlane = c.Near
	}
	if c.Far > 0 {
		cam.FarPlane = c.Far
	}
	target := mgl32.Vec3(c.Target)
	if c.Mode == "orbit" {
		distance := c.Distance
		if distance <= 0 {
			distance = mgl32.Vec3(c.Position).Sub(target).Len()
		}
		orbit := scene.NewOrbitCamera(cam, target, distance)
		orbit.Yaw = mgl32.DegToRad(c.Yaw)
		if c.Pitch != 0 {
			orbit.Pitch = mgl32.DegToRad(c.Pitch)
		}
		orbit.UpdatePosition()
		return orbit
	}
	cam.SetPosition(c.Position)
	if mgl32.Vec3(c.Position) != target {
		cam.LookAt(target, mgl32.Vec3{0, 1, 0})
	}
	return nil
}

func (l Loader) loadMesh(w *scene.World, m MeshRecord) error {
	var data core.MeshData
	switch m.Shape {
	case "cube":
		data = scene.CubeData(orDefault(m.Size, 1))
	case "plane":
		data = scene.PlaneData(orDefault(m.Width, 1), orDefault(m.Depth, 1), max(m.Subdivisions, 1))
	case "sphere":
		data = scene.SphereData(orDefault(m.Radius, 0.5), max(m.Segments, 16), max(m.Rings, 8))
	default:
		return errors.Newf("mesh %q: unknown shape %q", m.Name, m.Shape)
	}
	mesh, err := scene.NewMesh(w.Pool, m.Name, data)
	if err != nil {
		return err
	}
	w.Meshes.Add(m.Name, mesh)
	return nil
}

func orDefault(v, def float32) float32 {
	if v <= 0 {
		return def
	}
	return v
}

func (l Loader) loadTexture(w *scene.World, t TextureRecord) error {
	var tex *resource.Texture
	var err error
	switch {
	case t.Path != "":
		path := t.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(l.BaseDir, path)
		}
		tex, err = w.Pool.LoadTexture(t.Name, path)
	case t.Color != nil:
		tex, err = w.Pool.CreateSolidColorTexture(t.Name, rgba(*t.Color))
	default:
		tex, err = w.Pool.CreateCheckerTexture(t.Name, max(t.Checker.Size, 2), rgba(t.Checker.A), rgba(t.Checker.B))
	}
	if err != nil {
		return errors.Wrapf(err, "texture %q", t.Name)
	}
	w.Textures.Add(t.Name, tex)
	return nil
}

func rgba(c [4]uint8) color.RGBA {
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: c[3]}
}

func (l Loader) loadProgram(w *scene.World, p ProgramRecord) error {
	sig, err := descriptor.ParseSignature(p.Bindings)
	if err != nil {
		return errors.Wrapf(err, "program %q", p.Name)
	}
	sizes := make([]uint64, len(p.Uniforms))
	for i, name := range p.Uniforms {
		size, ok := uniformSizes[name]
		if !ok {
			return errors.Newf("program %q: unknown uniform %q", p.Name, name)
		}
		sizes[i] = size
	}
	program, err := pipeline.LoadProgram(l.ShaderDir, p.Name, sig, sizes...)
	if err != nil {
		return err
	}
	w.Programs.Add(p.Name, program)
	return nil
}
