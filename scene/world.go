// Package scene holds everything entities are built from: the World with
// its named resource registries and GPU caches, the transform graph, camera,
// meshes, uniform layouts and the rendered entity kinds.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"vkframe/core"
	"vkframe/descriptor"
	"vkframe/gpu"
	"vkframe/pipeline"
	"vkframe/resource"
)

// World is the shared state one graphics context renders from. It is
// passed to whatever needs it; there is no package-level instance.
type World struct {
	ctx gpu.Context

	Pool         *resource.Pool
	Layouts      *descriptor.LayoutCache
	RenderPasses *pipeline.RenderPassCache
	Pipelines    *pipeline.Cache

	Meshes   *Registry[*Mesh]
	Textures *Registry[*resource.Texture]
	Programs *Registry[*pipeline.Program]
	Lights   *Registry[*LightScene]

	Graph  *Graph
	Camera *Camera
}

func NewWorld(ctx gpu.Context) *World {
	dev := ctx.Device()
	pool := resource.NewPool(ctx)
	layouts := descriptor.NewLayoutCache(dev)
	passes := pipeline.NewRenderPassCache(ctx)

	w := &World{
		ctx:          ctx,
		Pool:         pool,
		Layouts:      layouts,
		RenderPasses: passes,
		Pipelines:    pipeline.NewCache(dev, layouts, passes),
		Meshes:       NewRegistry("mesh", func(m *Mesh) { m.Destroy(pool) }),
		Textures:     NewRegistry("texture", func(t *resource.Texture) { pool.Destroy(t) }),
		Programs:     NewRegistry[*pipeline.Program]("program", nil),
		Lights:       NewRegistry[*LightScene]("light scene", nil),
		Graph:        NewGraph(),
		Camera:       NewCamera(mgl32.DegToRad(60), 1, 0.1, 1000),
	}
	w.Resize()
	return w
}

func (w *World) Context() gpu.Context { return w.ctx }

// Resize matches the camera aspect ratio to the current back-buffer extent.
func (w *World) Resize() {
	extent := w.ctx.Extent()
	w.Camera.UpdateAspectRatio(float32(extent.Width), float32(extent.Height))
}

// LightScene returns the named light scene, creating it on first use.
func (w *World) LightScene(name string) *LightScene {
	if ls, err := w.Lights.Get(name); err == nil {
		return ls
	}
	ls := &LightScene{Name: name}
	w.Lights.Add(name, ls)
	return ls
}

// Close releases every registered resource and cache. Entities must be
// cleaned up first.
func (w *World) Close() {
	w.Meshes.Clear()
	w.Textures.Clear()
	w.Programs.Clear()
	w.Lights.Clear()
	w.Pipelines.Destroy()
	w.RenderPasses.Destroy()
	w.Layouts.Destroy()
	w.Pool.Close()
	core.Logger().Debug("world closed")
}
