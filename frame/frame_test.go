package frame

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkframe/core"
	"vkframe/descriptor"
	"vkframe/gpu"
	"vkframe/gpu/gputest"
	"vkframe/pipeline"
	"vkframe/renderer"
	"vkframe/resource"
	"vkframe/scene"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07}

type fixture struct {
	ctx   *gputest.Context
	world *scene.World
	s     *Scheduler
}

func newFixture(t *testing.T, renderers int) *fixture {
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

	s, err := New(w)
	require.NoError(t, err)
	for i := 0; i < renderers; i++ {
		r, err := renderer.New(w, renderer.Config{Name: fmt.Sprintf("r%d", i), Present: i == renderers-1})
		require.NoError(t, err)
		require.NoError(t, s.AddRenderer(r))
	}
	return &fixture{ctx: ctx, world: w, s: s}
}

func (f *fixture) entity(t *testing.T, mesh string, hidden bool) *scene.RenderedEntity {
	e, err := scene.NewRenderedEntity(f.world, scene.RenderedOptions{Transform: core.NewTransform(), Mesh: mesh, Program: "basic"})
	require.NoError(t, err)
	e.Hide = hidden
	return e
}

func TestDrawnSetFollowsEntities(t *testing.T) {
	f := newFixture(t, 2)
	type op struct {
		add    bool
		name   string
		mesh   string
		hidden bool
	}
	steps := []op{
		{add: true, name: "a", mesh: "cube"},
		{add: true, name: "b", mesh: "cube", hidden: true},
		{add: true, name: "c"},
		{add: true, name: "d", mesh: "cube"},
		{name: "a"},
		{add: true, name: "d", mesh: "cube", hidden: true},
		{add: true, name: "e", mesh: "cube"},
		{name: "c"},
		{add: true, name: "a", mesh: "cube"},
	}

	want := map[string]bool{}
	var order []string
	for i, st := range steps {
		if st.add {
			require.NoError(t, f.s.AddEntity(st.name, f.entity(t, st.mesh, st.hidden)))
			if !contains(order, st.name) {
				order = append(order, st.name)
			}
			want[st.name] = st.mesh != "" && !st.hidden
		} else {
			require.NoError(t, f.s.RemoveEntity(st.name))
			order = remove(order, st.name)
			delete(want, st.name)
		}

		var drawn []string
		for _, name := range order {
			if want[name] {
				drawn = append(drawn, name)
			}
		}
		for _, r := range f.s.Renderers() {
			assert.Equal(t, f.ctx.BackBufferCount(), r.CommandListCount(), "step %d", i)
			assert.Equal(t, f.ctx.BackBufferCount(), r.FramebufferCount(), "step %d", i)
			assert.ElementsMatch(t, drawn, r.Drawn(), "step %d", i)
		}
	}
	assert.Equal(t, order, f.s.EntityNames())

	err := f.s.RemoveEntity("missing")
	assert.True(t, errors.Is(err, scene.ErrNotFound))
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func remove(names []string, name string) []string {
	var out []string
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func TestReplacingEntityCleansUpOld(t *testing.T) {
	f := newFixture(t, 1)
	old := f.entity(t, "cube", false)
	require.NoError(t, f.s.AddEntity("a", old))
	require.NoError(t, f.s.AddEntity("a", f.entity(t, "cube", false)))
	assert.Equal(t, scene.NoEntity, old.Node())
	assert.Equal(t, 1, f.ctx.Live("descriptor-pool"))
}

func TestFrameSlotsCycle(t *testing.T) {
	f := newFixture(t, 1)
	require.NoError(t, f.s.AddEntity("a", f.entity(t, "cube", false)))
	f.ctx.ResetLog()

	for frame := 0; frame < 5; frame++ {
		assert.Equal(t, frame%2, f.s.CurrentFrame())
		require.NoError(t, f.s.Draw())
		assert.Equal(t, Idle, f.s.State())
	}

	var pending = map[string]bool{}
	submits := 0
	for _, e := range f.ctx.Events("wait-fence", "reset-fence", "submit") {
		op, fence, _ := strings.Cut(e, " ")
		switch op {
		case "wait-fence":
			pending[fence] = true
		case "reset-fence":
			require.True(t, pending[fence], "fence %s reset before it was waited", fence)
		case "submit":
			if fence == "0" {
				continue
			}
			require.True(t, pending[fence], "fence %s used before it was waited", fence)
			pending[fence] = false
			submits++
		}
	}
	assert.Equal(t, 5, submits)

	require.Len(t, f.ctx.Submits, 5)
	for i, sub := range f.ctx.Submits {
		slot := f.s.slots[i%2]
		assert.Equal(t, slot.InFlight, sub.Fence, "frame %d", i)
		assert.Equal(t, []gpu.Semaphore{slot.ImageAvailable}, sub.Info.Wait)
		assert.Equal(t, []gpu.Semaphore{slot.RenderFinished}, sub.Info.Signal)
	}
	assert.Equal(t, []uint32{0, 1, 2, 0, 1}, f.ctx.Presents)
}

func TestRendererChainSubmits(t *testing.T) {
	f := newFixture(t, 3)
	require.NoError(t, f.s.AddEntity("a", f.entity(t, "cube", false)))
	f.ctx.ResetLog()
	require.NoError(t, f.s.Draw())
	require.NoError(t, f.s.Draw())

	rs := f.s.Renderers()
	require.Len(t, f.ctx.Submits, 6)
	for frame := 0; frame < 2; frame++ {
		slot := f.s.slots[frame]
		subs := f.ctx.Submits[frame*3 : frame*3+3]
		index := frame

		assert.Equal(t, []gpu.Semaphore{slot.ImageAvailable}, subs[0].Info.Wait)
		assert.Equal(t, []gpu.Semaphore{rs[0].Done(frame)}, subs[0].Info.Signal)
		assert.Zero(t, subs[0].Fence)

		assert.Equal(t, []gpu.Semaphore{rs[0].Done(frame)}, subs[1].Info.Wait)
		assert.Equal(t, []gpu.Semaphore{rs[1].Done(frame)}, subs[1].Info.Signal)
		assert.Zero(t, subs[1].Fence)

		assert.Equal(t, []gpu.Semaphore{rs[1].Done(frame)}, subs[2].Info.Wait)
		assert.Equal(t, []gpu.Semaphore{slot.RenderFinished}, subs[2].Info.Signal)
		assert.Equal(t, slot.InFlight, subs[2].Fence)

		for k, sub := range subs {
			assert.Equal(t, []gpu.CommandBuffer{rs[k].CommandList(index)}, sub.Info.CommandBuffers)
			assert.Equal(t, []gpu.PipelineStage{gpu.StageColorAttachmentOutput}, sub.Info.WaitStages)
		}
	}
	assert.Len(t, f.ctx.Presents, 2)
}

func TestUnsupportedTransitionKeepsDrawing(t *testing.T) {
	var logs bytes.Buffer
	core.SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	defer core.SetLogger(nil)

	f := newFixture(t, 1)
	img, err := f.world.Pool.CreateImage(resource.ImageInfo{
		Extent: gpu.Extent2D{Width: 4, Height: 4},
		Format: gpu.FormatR8G8B8A8Unorm,
		Usage:  gpu.ImageUsageSampled,
		Layout: gpu.LayoutPresentSrc,
	})
	require.NoError(t, err)
	assert.Equal(t, gpu.LayoutUndefined, img.Layout)
	assert.Zero(t, img.Access)
	assert.Zero(t, img.Stage)
	assert.Contains(t, logs.String(), "image layout transition skipped")

	require.NoError(t, f.s.AddEntity("a", f.entity(t, "cube", false)))
	f.ctx.ResetLog()
	require.NoError(t, f.s.Draw())
	assert.Len(t, f.ctx.Submits, 1)
	assert.Len(t, f.ctx.Presents, 1)
	f.world.Pool.Destroy(img)
}

func TestResizeRefreshesOnce(t *testing.T) {
	f := newFixture(t, 2)
	require.NoError(t, f.s.AddEntity("a", f.entity(t, "cube", false)))
	require.NoError(t, f.s.Draw())

	f.ctx.NextExtent = gpu.Extent2D{Width: 1280, Height: 640}
	f.s.Resized()
	f.ctx.ResetLog()
	require.NoError(t, f.s.Draw())

	assert.Len(t, f.ctx.Events("recreate-swapchain"), 1)
	assert.Len(t, f.ctx.Presents, 1)

	var ops []string
	refreshing := false
	for _, e := range f.ctx.Events("present", "recreate-swapchain", "create-image", "create-framebuffer", "allocate-commands", "acquire") {
		op, _, _ := strings.Cut(e, " ")
		if op == "recreate-swapchain" {
			refreshing = true
		}
		if !refreshing || e == "allocate-commands 1" {
			continue
		}
		assert.NotContains(t, []string{"acquire", "present"}, op, "no frame is drawn during refresh")
		if len(ops) == 0 || ops[len(ops)-1] != op {
			ops = append(ops, op)
		}
	}
	assert.Equal(t, []string{"recreate-swapchain", "create-image", "create-framebuffer", "allocate-commands", "create-image", "create-framebuffer", "allocate-commands"}, ops)
	assert.Equal(t, 1, frameSubmits(f.ctx), "only the frame before the refresh is submitted")

	for _, r := range f.s.Renderers() {
		assert.Equal(t, f.ctx.Extent(), r.Extent())
		assert.Equal(t, []string{"a"}, r.Drawn())
	}
	assert.Equal(t, float32(2), f.world.Camera.AspectRatio)

	f.ctx.ResetLog()
	require.NoError(t, f.s.Draw())
	assert.Empty(t, f.ctx.Events("recreate-swapchain"), "the flag is cleared")
}

func TestResizeWithOutOfDateAcquireRefreshesOnce(t *testing.T) {
	f := newFixture(t, 1)
	require.NoError(t, f.s.AddEntity("a", f.entity(t, "cube", false)))
	require.NoError(t, f.s.Draw())

	f.s.Resized()
	f.ctx.AcquireErrs = []error{gpu.ErrOutOfDate}
	f.ctx.ResetLog()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.s.Draw())
	}
	assert.Len(t, f.ctx.Events("recreate-swapchain"), 1)
	assert.Len(t, f.ctx.Presents, 2)
}

func TestBackBufferCountChangeFails(t *testing.T) {
	f := newFixture(t, 1)
	require.NoError(t, f.s.AddEntity("a", f.entity(t, "cube", false)))

	f.ctx.NextBackBuffers = 4
	err := f.s.Refresh()
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrBackBufferCount))
	assert.Equal(t, Idle, f.s.State())
}

// frameSubmits counts submissions that carry a frame fence. One-shot
// transfers submit without one.
func frameSubmits(ctx *gputest.Context) int {
	n := 0
	for _, sub := range ctx.Submits {
		if sub.Fence != 0 {
			n++
		}
	}
	return n
}

func TestOutOfDateAcquireSkipsFrame(t *testing.T) {
	f := newFixture(t, 1)
	f.ctx.AcquireErrs = []error{gpu.ErrOutOfDate}
	f.ctx.ResetLog()

	require.NoError(t, f.s.Draw())
	assert.Zero(t, frameSubmits(f.ctx))
	assert.Empty(t, f.ctx.Presents)
	assert.Len(t, f.ctx.Events("recreate-swapchain"), 1)
	assert.Equal(t, 0, f.s.CurrentFrame())

	require.NoError(t, f.s.Draw())
	assert.Equal(t, 1, frameSubmits(f.ctx))
}

func TestTransientPresentErrorsRefresh(t *testing.T) {
	for _, err := range []error{gpu.ErrOutOfDate, gpu.ErrSuboptimal} {
		t.Run(err.Error(), func(t *testing.T) {
			f := newFixture(t, 1)
			f.ctx.PresentErrs = []error{errors.Wrap(err, "present")}
			f.ctx.ResetLog()
			require.NoError(t, f.s.Draw())
			assert.Len(t, f.ctx.Events("recreate-swapchain"), 1)
			assert.Equal(t, 1, f.s.CurrentFrame())
		})
	}

	f := newFixture(t, 1)
	f.ctx.AcquireErrs = []error{gpu.ErrSuboptimal}
	f.ctx.ResetLog()
	require.NoError(t, f.s.Draw())
	assert.Len(t, f.ctx.Presents, 1, "suboptimal acquire still draws")
	assert.Empty(t, f.ctx.Events("recreate-swapchain"))
}

type failingEntity struct {
	scene.Object
	updates int
}

func (e *failingEntity) Update(int, float32) error {
	e.updates++
	return errors.New("uniform upload failed")
}

func (e *failingEntity) Cleanup() {}

func TestEntityUpdateFailureDegradesFrame(t *testing.T) {
	f := newFixture(t, 1)
	bad := &failingEntity{Object: scene.Object{World: f.world, ID: f.world.Graph.Add(core.NewTransform())}}
	require.NoError(t, f.s.AddEntity("bad", bad))
	require.NoError(t, f.s.AddEntity("a", f.entity(t, "cube", false)))
	f.ctx.ResetLog()

	require.NoError(t, f.s.Draw())
	assert.Equal(t, 1, bad.updates)
	assert.Len(t, f.ctx.Presents, 1)
	assert.Equal(t, Idle, f.s.State())
}

func TestReadPixels(t *testing.T) {
	f := newFixture(t, 0)
	off, err := renderer.New(f.world, renderer.Config{Name: "picking", Extent: gpu.Extent2D{Width: 8, Height: 8}})
	require.NoError(t, err)
	require.NoError(t, f.s.AddRenderer(off))
	main, err := renderer.New(f.world, renderer.Config{Name: "main", Present: true})
	require.NoError(t, err)
	require.NoError(t, f.s.AddRenderer(main))

	pixels, err := f.s.ReadPixels(off, 0)
	require.NoError(t, err)
	assert.Len(t, pixels, 8*8*4)

	_, err = f.s.ReadPixels(main, 0)
	assert.Error(t, err)
}

func TestCleanup(t *testing.T) {
	f := newFixture(t, 2)
	require.NoError(t, f.s.AddEntity("a", f.entity(t, "cube", false)))
	require.NoError(t, f.s.Draw())

	f.s.Cleanup()
	f.s.Cleanup()
	f.world.Close()
	assert.Zero(t, f.ctx.Live(""))
	assert.Empty(t, f.s.EntityNames())
}
