package renderer

import (
	"strings"
	"testing"

	"cogentcore.org/core/ordmap"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkframe/core"
	"vkframe/descriptor"
	"vkframe/gpu"
	"vkframe/gpu/gputest"
	"vkframe/pipeline"
	"vkframe/scene"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07}

func newWorld(t *testing.T) (*gputest.Context, *scene.World) {
	ctx := gputest.New(3)
	w := scene.NewWorld(ctx)
	mesh, err := scene.NewMesh(w.Pool, "cube", scene.CubeData(1))
	require.NoError(t, err)
	w.Meshes.Add("cube", mesh)
	w.Programs.Add("basic", &pipeline.Program{
		Name:      "basic",
		Vertex:    spirv,
		Fragment:  spirv,
		Signature: descriptor.NewSignature(descriptor.Uniform),
		Uniforms:  []uint64{scene.MVPSize},
	})
	return ctx, w
}

func entity(t *testing.T, w *scene.World, mesh string) *scene.RenderedEntity {
	e, err := scene.NewRenderedEntity(w, scene.RenderedOptions{Transform: core.NewTransform(), Mesh: mesh, Program: "basic"})
	require.NoError(t, err)
	return e
}

func TestSingleSampleAttachments(t *testing.T) {
	ctx, w := newWorld(t)
	r, err := New(w, Config{Name: "main", ColorAttachments: 2, Samples: gpu.Samples1, Present: true,
		ClearColors: [][4]float32{{0.1, 0.2, 0.3, 1}}})
	require.NoError(t, err)

	assert.Nil(t, r.ColorImage(0), "color 0 is the back buffer")
	require.NotNil(t, r.ColorImage(1))
	assert.Equal(t, 3, r.FramebufferCount())
	assert.Equal(t, 3, r.CommandListCount())

	views := ctx.BackBufferViews()
	for i, fb := range r.framebuffers {
		info := ctx.Framebuffers[fb]
		assert.Equal(t, []gpu.ImageView{views[i], r.ColorImage(1).View, r.depth.View}, info.Attachments)
		assert.Equal(t, ctx.Extent(), info.Extent)
	}
	assert.Equal(t, []gpu.ClearValue{
		gpu.ClearColor(0.1, 0.2, 0.3, 1),
		gpu.ClearColor(0, 0, 0, 1),
		gpu.ClearDepth(1),
	}, r.clears)

	assert.Equal(t, gpu.LayoutColorAttachment, r.ColorImage(1).Layout)
	assert.Equal(t, gpu.LayoutDepthStencilAttachment, r.depth.Layout)
	rp := ctx.RenderPasses[r.pass]
	assert.True(t, rp.Present)
	assert.Equal(t, 2, rp.ColorAttachments)
}

func TestMultisampleAttachments(t *testing.T) {
	ctx, w := newWorld(t)
	ctx.Samples = gpu.Samples4
	r, err := New(w, Config{Name: "offscreen", ColorAttachments: 2, Samples: gpu.Samples8,
		Extent: gpu.Extent2D{Width: 64, Height: 32}})
	require.NoError(t, err)

	assert.Equal(t, gpu.Samples4, r.Target().Samples, "clamped to the device limit")
	assert.Equal(t, gpu.Extent2D{Width: 64, Height: 32}, r.Extent())
	require.Len(t, r.msaa, 2)

	want := []gpu.ImageView{
		r.msaa[0].View, r.msaa[1].View, r.depth.View,
		r.ColorImage(0).View, r.ColorImage(1).View,
	}
	for _, fb := range r.framebuffers {
		assert.Equal(t, want, ctx.Framebuffers[fb].Attachments)
	}
	assert.Len(t, r.clears, 5)
	assert.True(t, r.clears[2].IsDepth)

	assert.Equal(t, gpu.Samples4, ctx.ImageInfo(r.msaa[0].Handle).Samples)
	assert.Equal(t, gpu.Samples4, ctx.ImageInfo(r.depth.Handle).Samples)
	assert.Equal(t, gpu.Samples1, ctx.ImageInfo(r.ColorImage(0).Handle).Samples)
	assert.NotZero(t, ctx.ImageInfo(r.msaa[0].Handle).Usage&gpu.ImageUsageTransient)

	pixels, err := w.Pool.ReadImage(r.ColorImage(0))
	require.NoError(t, err)
	assert.Len(t, pixels, 64*32*4)
	assert.Equal(t, gpu.LayoutColorAttachment, r.ColorImage(0).Layout, "readback restores the layout")
}

func TestRebuildCommandLists(t *testing.T) {
	ctx, w := newWorld(t)
	r, err := New(w, Config{Name: "main", Present: true})
	require.NoError(t, err)

	visible := entity(t, w, "cube")
	hidden := entity(t, w, "cube")
	hidden.Hide = true
	meshless := entity(t, w, "")
	light := scene.NewLight(w, scene.LightOptions{Transform: core.NewTransform(), Scene: "main"})

	entities := ordmap.New[string, scene.Entity]()
	entities.Add("light", light)
	entities.Add("hidden", hidden)
	entities.Add("visible", visible)
	entities.Add("meshless", meshless)
	require.NoError(t, r.RebuildCommandLists(entities))

	assert.Equal(t, []string{"visible"}, r.Drawn())
	assert.Equal(t, Stats{Objects: 1, Triangles: 12}, r.DrawStats())
	require.Equal(t, 3, r.CommandListCount())
	for i := 0; i < 3; i++ {
		cb := r.CommandList(i)
		assert.Equal(t, []string{
			"begin-render-pass", "set-viewport",
			"bind-pipeline", "bind-vertex-buffer", "bind-index-buffer", "bind-descriptor-set", "draw-indexed",
			"end-render-pass",
		}, ctx.Ops(cb))
		cmds := ctx.Commands(cb)
		assert.Equal(t, uint64(r.framebuffers[i]), cmds[0].Handles[1])
		assert.Equal(t, uint64(visible.Descriptor().Set(i)), cmds[5].Handles[1])
		assert.Equal(t, uint64(36), cmds[6].Count)
	}

	hidden.Hide = false
	require.NoError(t, r.RebuildCommandLists(entities))
	assert.Equal(t, []string{"hidden", "visible"}, r.Drawn())
	assert.Equal(t, 1, w.Pipelines.Len(), "entities with one signature share a pipeline")
	assert.Equal(t, 3, ctx.Live("command-buffer"), "old lists are freed")
}

func TestRefreshRebuildsInOrder(t *testing.T) {
	ctx, w := newWorld(t)
	r, err := New(w, Config{Name: "main", Present: true})
	require.NoError(t, err)
	entities := ordmap.New[string, scene.Entity]()
	entities.Add("cube", entity(t, w, "cube"))
	require.NoError(t, r.RebuildCommandLists(entities))

	ctx.NextExtent = gpu.Extent2D{Width: 1024, Height: 768}
	require.NoError(t, ctx.RecreateSwapchain())
	ctx.ResetLog()
	require.NoError(t, r.Refresh())

	assert.Equal(t, gpu.Extent2D{Width: 1024, Height: 768}, r.Extent())
	assert.Equal(t, []string{"cube"}, r.Drawn())

	var ops []string
	for _, e := range ctx.Events("create-image", "create-framebuffer", "allocate-commands") {
		if e == "allocate-commands 1" {
			// layout transitions run on one-shot buffers
			continue
		}
		op, _, _ := strings.Cut(e, " ")
		if len(ops) == 0 || ops[len(ops)-1] != op {
			ops = append(ops, op)
		}
	}
	assert.Equal(t, []string{"create-image", "create-framebuffer", "allocate-commands"}, ops)
	assert.Len(t, ctx.Events("destroy-framebuffer"), 3)
	for i, fb := range r.framebuffers {
		assert.Equal(t, ctx.BackBufferViews()[i], ctx.Framebuffers[fb].Attachments[0], "framebuffers use the new back buffers")
	}
}

func TestRefreshWithMoreBackBuffersFails(t *testing.T) {
	ctx, w := newWorld(t)
	r, err := New(w, Config{Name: "main", Present: true})
	require.NoError(t, err)
	entities := ordmap.New[string, scene.Entity]()
	entities.Add("cube", entity(t, w, "cube"))
	require.NoError(t, r.RebuildCommandLists(entities))

	ctx.NextBackBuffers = 4
	require.NoError(t, ctx.RecreateSwapchain())
	err = r.Refresh()
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrBackBufferCount))
}

func TestCleanupReleasesEverything(t *testing.T) {
	ctx, w := newWorld(t)
	r, err := New(w, Config{Name: "main", ColorAttachments: 3, Samples: gpu.Samples2, Present: true})
	require.NoError(t, err)
	e := entity(t, w, "cube")
	entities := ordmap.New[string, scene.Entity]()
	entities.Add("cube", e)
	require.NoError(t, r.RebuildCommandLists(entities))

	r.Cleanup()
	r.Cleanup()
	e.Cleanup()
	w.Close()
	assert.Zero(t, ctx.Live(""))
}
