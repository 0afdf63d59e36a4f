package scene

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkframe/core"
	"vkframe/descriptor"
	"vkframe/gpu/gputest"
	"vkframe/pipeline"
)

func at(x, y, z float32) core.Transform {
	t := core.NewTransform()
	t.Position = mgl32.Vec3{x, y, z}
	return t
}

func TestGraphWorldMatrix(t *testing.T) {
	g := NewGraph()
	root := g.Add(at(1, 0, 0))
	child := g.Add(at(0, 2, 0))
	leaf := g.Add(at(0, 0, 3))
	require.NoError(t, g.SetParent(child, root))
	require.NoError(t, g.SetParent(leaf, child))

	assert.Equal(t, mgl32.Vec3{1, 2, 3}, g.WorldPosition(leaf))
	assert.Equal(t, []EntityID{child}, g.Children(root))
	parent, ok := g.Parent(leaf)
	assert.True(t, ok)
	assert.Equal(t, child, parent)

	g.Transform(root).Scale = mgl32.Vec3{2, 2, 2}
	assert.Equal(t, mgl32.Vec3{1, 4, 6}, g.WorldPosition(leaf))

	g.Remove(child)
	assert.False(t, g.Valid(child))
	_, ok = g.Parent(leaf)
	assert.False(t, ok, "children of a removed node become roots")
	assert.Equal(t, mgl32.Vec3{0, 0, 3}, g.WorldPosition(leaf))
	assert.Equal(t, 2, g.Len())

	next := g.Add(core.NewTransform())
	assert.NotEqual(t, child, next, "ids are not reused")
}

func TestGraphRejectsCycles(t *testing.T) {
	g := NewGraph()
	a := g.Add(core.NewTransform())
	b := g.Add(core.NewTransform())
	c := g.Add(core.NewTransform())
	require.NoError(t, g.SetParent(b, a))
	require.NoError(t, g.SetParent(c, b))

	tests := []struct {
		name          string
		child, parent EntityID
		want          error
	}{
		{"self", a, a, ErrCycle},
		{"grandchild", a, c, ErrCycle},
		{"child", b, c, ErrCycle},
		{"unknown parent", a, 42, ErrInvalidEntity},
		{"unknown child", 42, a, ErrInvalidEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.SetParent(tt.child, tt.parent)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	_, ok := g.Parent(a)
	assert.False(t, ok)
	require.NoError(t, g.SetParent(c, NoEntity))
	assert.Empty(t, g.Children(b))
}

func TestRegistry(t *testing.T) {
	var released []string
	r := NewRegistry("thing", func(s string) { released = append(released, s) })
	r.Add("a", "a1")
	r.Add("b", "b1")
	r.Add("c", "c1")
	r.Add("a", "a2")

	assert.Equal(t, []string{"a1"}, released)
	r.Add("a", "a2")
	assert.Equal(t, []string{"a1"}, released, "re-adding the same value keeps it alive")
	assert.Equal(t, []string{"a", "b", "c"}, r.Names(), "replacement keeps its position")
	assert.Equal(t, []string{"a2", "b1", "c1"}, r.Values())
	v, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a2", v)

	_, err = r.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), `thing "missing"`)

	assert.True(t, r.Remove("b"))
	assert.False(t, r.Remove("b"))
	assert.False(t, r.Has("b"))

	released = nil
	r.Clear()
	assert.Equal(t, []string{"c1", "a2"}, released)
	assert.Zero(t, r.Len())
}

func TestMeshRegistryReAddKeepsBuffers(t *testing.T) {
	f := newFixture(t)
	mesh, err := f.world.Meshes.Get("cube")
	require.NoError(t, err)
	live := f.ctx.Live("buffer")

	f.world.Meshes.Add("cube", mesh)
	assert.Equal(t, live, f.ctx.Live("buffer"))
	f.world.Close()
	assert.Zero(t, f.ctx.Live(""))
}

func TestUniformSizes(t *testing.T) {
	assert.Equal(t, uint64(192), MVPSize)
	assert.Equal(t, uint64(6400), JointDataSize)
	assert.Equal(t, uint64(16), TintSize)
	assert.Equal(t, uint64(16), ScreenSizeSize)
	assert.Equal(t, uint64(3200), LightingSize)

	joints := NewJointData([]mgl32.Mat4{mgl32.Scale3D(2, 2, 2)})
	assert.Equal(t, mgl32.Scale3D(2, 2, 2), joints[0])
	assert.Equal(t, mgl32.Ident4(), joints[MaxJoints-1])
	assert.Len(t, Bytes(joints), int(JointDataSize))
}

func TestCamera(t *testing.T) {
	cam := NewCamera(mgl32.DegToRad(60), 1, 0.1, 100)
	cam.SetPosition(mgl32.Vec3{0, 0, 5})
	cam.LookAt(mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})

	fwd := cam.Forward()
	assert.InDeltaSlice(t, []float32{0, 0, -1}, fwd[:], 1e-5)
	origin := cam.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, -5, origin.Z(), 1e-5)

	clip := cam.ViewProjection().Mul4x1(mgl32.Vec4{0, 1, 0, 1})
	assert.Less(t, clip.Y(), float32(0), "y points down in clip space")
	depth := clip.Z() / clip.W()
	assert.True(t, depth > 0 && depth < 1, "depth %f", depth)

	cam.UpdateAspectRatio(1600, 800)
	assert.Equal(t, float32(2), cam.AspectRatio)
	cam.UpdateAspectRatio(1600, 0)
	assert.Equal(t, float32(2), cam.AspectRatio)
}

func TestPrimitives(t *testing.T) {
	cube := CubeData(2)
	assert.Len(t, cube.Vertices, 24)
	assert.Len(t, cube.Indices, 36)

	plane := PlaneData(4, 4, 2)
	assert.Len(t, plane.Vertices, 9)
	assert.Len(t, plane.Indices, 24)

	sphere := SphereData(1, 8, 4)
	assert.Len(t, sphere.Vertices, 9*5)
	assert.Len(t, sphere.Indices, 8*4*6)
}

type fixture struct {
	ctx   *gputest.Context
	world *World
}

func newFixture(t *testing.T) *fixture {
	ctx := gputest.New(3)
	w := NewWorld(ctx)

	mesh, err := NewMesh(w.Pool, "cube", CubeData(1))
	require.NoError(t, err)
	w.Meshes.Add("cube", mesh)
	w.Programs.Add("lit", &pipeline.Program{
		Name:      "lit",
		Signature: descriptor.NewSignature(descriptor.Uniform, descriptor.Uniform),
		Uniforms:  []uint64{MVPSize, LightingSize},
	})
	w.Programs.Add("skinned", &pipeline.Program{
		Name:      "skinned",
		Signature: descriptor.NewSignature(descriptor.Uniform, descriptor.Uniform, descriptor.Uniform),
		Uniforms:  []uint64{MVPSize, LightingSize, JointDataSize},
	})
	return &fixture{ctx: ctx, world: w}
}

func TestMeshUpload(t *testing.T) {
	f := newFixture(t)
	mesh, err := f.world.Meshes.Get("cube")
	require.NoError(t, err)

	data := CubeData(1)
	assert.Equal(t, uint32(36), mesh.IndexCount)
	assert.Equal(t, pipeline.Static, mesh.Layout)
	assert.Equal(t, AABB{Min: mgl32.Vec3{-0.5, -0.5, -0.5}, Max: mgl32.Vec3{0.5, 0.5, 0.5}}, mesh.Bounds)
	assert.Equal(t, data.VertexBytes(), f.ctx.BufferContents(mesh.Vertices.Handle))
	assert.Equal(t, data.IndexBytes(), f.ctx.BufferContents(mesh.Indices.Handle))

	_, err = NewMesh(f.world.Pool, "empty", core.MeshData{Vertices: data.Vertices})
	assert.Error(t, err)
}

func TestRenderedEntityUpdate(t *testing.T) {
	f := newFixture(t)
	w := f.world
	light := NewLight(w, LightOptions{Transform: at(0, 10, 0), Tint: mgl32.Vec3{1, 0.5, 0}, Intensity: 2, Distance: -1, Spread: -1, Scene: "main"})

	e, err := NewRenderedEntity(w, RenderedOptions{Transform: at(1, 2, 3), Mesh: "cube", Program: "lit", LightScene: "main"})
	require.NoError(t, err)
	require.Equal(t, 3, e.Descriptor().Len())

	require.NoError(t, e.Update(1, 0.016))
	want := MVP{Model: mgl32.Translate3D(1, 2, 3), View: w.Camera.View(), Projection: w.Camera.Projection()}
	assert.Equal(t, Bytes(&want), f.ctx.BufferContents(e.Uniform(0).Buffers[1].Handle))
	assert.Equal(t, make([]byte, MVPSize), f.ctx.BufferContents(e.Uniform(0).Buffers[0].Handle), "other back buffers untouched")

	lighting := (&LightScene{Lights: []*Light{light}}).Data(w.Graph)
	assert.Equal(t, mgl32.Vec4{0, 10, 0, 0}, lighting.Position[0])
	assert.Equal(t, mgl32.Vec4{2, -1, -1, 0}, lighting.Mods[0])
	assert.Equal(t, Bytes(lighting), f.ctx.BufferContents(e.Uniform(1).Buffers[1].Handle))

	light.Cleanup()
	assert.Empty(t, w.LightScene("main").Lights)
}

func TestRenderedEntityErrors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		opts RenderedOptions
	}{
		{"unknown mesh", RenderedOptions{Mesh: "teapot", Program: "lit"}},
		{"unknown program", RenderedOptions{Mesh: "cube", Program: "toon"}},
		{"unknown texture", RenderedOptions{Mesh: "cube", Program: "lit", Textures: []string{"brick"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRenderedEntity(f.world, tt.opts)
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
	assert.Zero(t, f.ctx.Live("descriptor-pool"))
	assert.Zero(t, f.world.Graph.Len())
}

type countingAnimator struct {
	ticks int
}

func (a *countingAnimator) Update(float32) { a.ticks++ }

func (a *countingAnimator) Joints() []mgl32.Mat4 {
	return []mgl32.Mat4{mgl32.Translate3D(float32(a.ticks), 0, 0)}
}

func TestAnimatedEntityWritesJoints(t *testing.T) {
	f := newFixture(t)
	anim := &countingAnimator{}
	e, err := NewAnimatedEntity(f.world, RenderedOptions{Mesh: "cube", Program: "skinned", LightScene: "main"}, anim)
	require.NoError(t, err)

	var ent Entity = e
	_, ok := ent.(Animated)
	assert.True(t, ok)
	_, ok = ent.(Renderable)
	assert.True(t, ok)

	require.NoError(t, e.Update(2, 0.016))
	want := NewJointData([]mgl32.Mat4{mgl32.Translate3D(1, 0, 0)})
	assert.Equal(t, Bytes(want), f.ctx.BufferContents(e.Uniform(2).Buffers[2].Handle))

	_, err = NewAnimatedEntity(f.world, RenderedOptions{Mesh: "cube", Program: "lit", LightScene: "main"}, NewBindPose(4))
	assert.Error(t, err, "lit declares no joints uniform")
}

func TestWorldCloseReleasesEverything(t *testing.T) {
	f := newFixture(t)
	e, err := NewRenderedEntity(f.world, RenderedOptions{Mesh: "cube", Program: "lit"})
	require.NoError(t, err)
	e.Hide = true
	assert.True(t, e.Hidden())

	e.Cleanup()
	e.Cleanup()
	assert.Zero(t, f.ctx.Live("descriptor-pool"))

	f.world.Close()
	assert.Zero(t, f.ctx.Live(""))
}
