// Package frame drives rendering: it owns the frames in flight, the ordered
// entity set and the renderer chain, and turns each Draw into acquire,
// update, submit and present.
package frame

import (
	"time"

	"cogentcore.org/core/ordmap"
	"github.com/cockroachdb/errors"

	"vkframe/core"
	"vkframe/gpu"
	"vkframe/renderer"
	"vkframe/scene"
)

// Scheduler must be used from a single goroutine.
type Scheduler struct {
	world *scene.World
	ctx   gpu.Context
	dev   gpu.Device

	slots     [gpu.MaxFramesInFlight]Slot
	current   int
	entities  *ordmap.Map[string, scene.Entity]
	renderers []*renderer.Renderer

	state     State
	resized   bool
	lastDraw  time.Time
	frameTime time.Duration
	closed    bool
}

func New(world *scene.World) (*Scheduler, error) {
	ctx := world.Context()
	s := &Scheduler{
		world:    world,
		ctx:      ctx,
		dev:      ctx.Device(),
		entities: ordmap.New[string, scene.Entity](),
	}
	for i := range s.slots {
		slot, err := newSlot(s.dev)
		if err != nil {
			s.Cleanup()
			return nil, errors.Wrapf(err, "frame slot %d", i)
		}
		s.slots[i] = slot
	}
	return s, nil
}

func (s *Scheduler) State() State { return s.state }

// CurrentFrame returns the slot the next Draw uses.
func (s *Scheduler) CurrentFrame() int { return s.current }

// FrameTime returns how long the last Draw took.
func (s *Scheduler) FrameTime() time.Duration { return s.frameTime }

// Resized flags a window resize. The next Draw refreshes after presenting.
func (s *Scheduler) Resized() { s.resized = true }

// Draw renders and presents one frame. Out of date and suboptimal
// presentation is absorbed by refreshing. Only device failures and a
// refresh that cannot rebuild are returned.
func (s *Scheduler) Draw() error {
	if len(s.renderers) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		s.frameTime = time.Since(start)
		s.state = Idle
	}()
	var dt float32
	if !s.lastDraw.IsZero() {
		dt = float32(start.Sub(s.lastDraw).Seconds())
	}
	s.lastDraw = start

	slot := &s.slots[s.current]
	if err := s.dev.WaitForFence(slot.InFlight); err != nil {
		return errors.Wrap(err, "wait for frame fence")
	}

	s.state = Acquiring
	index, err := s.ctx.Acquire(slot.ImageAvailable)
	switch {
	case errors.Is(err, gpu.ErrOutOfDate):
		core.Logger().Warn("frame skipped", "frame", s.current, "err", err)
		return s.Refresh()
	case err != nil && !errors.Is(err, gpu.ErrSuboptimal):
		core.Logger().Warn("frame skipped", "frame", s.current, "err", err)
		return nil
	}

	for _, kv := range s.entities.Order {
		if err := kv.Value.Update(int(index), dt); err != nil {
			core.Logger().Warn("entity update failed", "entity", kv.Key, "err", err)
		}
	}

	if err := s.dev.ResetFence(slot.InFlight); err != nil {
		return errors.Wrap(err, "reset frame fence")
	}
	s.state = Submitting
	if err := s.submit(slot, int(index)); err != nil {
		return err
	}

	s.state = Presenting
	err = s.ctx.Present(index, slot.RenderFinished)
	s.current = (s.current + 1) % gpu.MaxFramesInFlight
	if gpu.IsTransientPresent(err) || s.resized {
		return s.Refresh()
	}
	if err != nil {
		core.Logger().Warn("present failed", "index", index, "err", err)
	}
	return nil
}

// submit sends each renderer's command list in chain order. Each waits on
// the previous stage; the last one signals RenderFinished and the fence.
func (s *Scheduler) submit(slot *Slot, index int) error {
	wait := slot.ImageAvailable
	last := len(s.renderers) - 1
	for k, r := range s.renderers {
		info := gpu.SubmitInfo{
			CommandBuffers: []gpu.CommandBuffer{r.CommandList(index)},
			Wait:           []gpu.Semaphore{wait},
			WaitStages:     []gpu.PipelineStage{gpu.StageColorAttachmentOutput},
		}
		var fence gpu.Fence
		if k == last {
			info.Signal = []gpu.Semaphore{slot.RenderFinished}
			fence = slot.InFlight
		} else {
			info.Signal = []gpu.Semaphore{r.Done(s.current)}
		}
		if err := s.dev.Submit(info, fence); err != nil {
			return errors.Wrapf(err, "submit renderer %s", r.Name)
		}
		wait = r.Done(s.current)
	}
	return nil
}

// Refresh recreates the presentation chain and every renderer's
// attachments, framebuffers and command lists. No frame is drawn while it
// runs. It consumes a pending resize flag.
//
// Entity uniforms and descriptor sets are sized to the back-buffer count at
// creation, so a chain that comes back with a different count fails with
// gpu.ErrBackBufferCount.
func (s *Scheduler) Refresh() error {
	s.state = Refreshing
	defer func() { s.state = Idle }()
	s.resized = false

	if err := s.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before refresh")
	}
	count := s.ctx.BackBufferCount()
	if err := s.ctx.RecreateSwapchain(); err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}
	if n := s.ctx.BackBufferCount(); n != count {
		return errors.Mark(errors.Newf("back buffers went from %d to %d", count, n), gpu.ErrBackBufferCount)
	}
	s.world.Resize()
	for _, r := range s.renderers {
		if err := r.Refresh(); err != nil {
			return err
		}
	}
	core.Logger().Info("swapchain recreated", "extent", s.ctx.Extent(), "renderers", len(s.renderers))
	return nil
}

// AddEntity inserts e under name and re-records every renderer. An entity
// already registered under name is cleaned up and replaced in place.
func (s *Scheduler) AddEntity(name string, e scene.Entity) error {
	if err := s.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before adding entity")
	}
	if old, ok := s.entities.ValueByKeyTry(name); ok && old != e {
		old.Cleanup()
	}
	s.entities.Add(name, e)
	return s.rebuild()
}

// RemoveEntity cleans up the entity registered under name and re-records
// every renderer.
func (s *Scheduler) RemoveEntity(name string) error {
	e, ok := s.entities.ValueByKeyTry(name)
	if !ok {
		return errors.Wrapf(scene.ErrNotFound, "entity %q", name)
	}
	if err := s.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before removing entity")
	}
	e.Cleanup()
	s.entities.DeleteKey(name)
	return s.rebuild()
}

func (s *Scheduler) Entity(name string) (scene.Entity, bool) {
	return s.entities.ValueByKeyTry(name)
}

// EntityNames returns the entity names in update and draw order.
func (s *Scheduler) EntityNames() []string { return s.entities.Keys() }

// AddRenderer appends r to the chain, making it the presenting stage, and
// records it against the current entities.
func (s *Scheduler) AddRenderer(r *renderer.Renderer) error {
	if err := r.RebuildCommandLists(s.entities); err != nil {
		return err
	}
	s.renderers = append(s.renderers, r)
	core.Logger().Info("renderer added", "name", r.Name, "position", len(s.renderers)-1)
	return nil
}

func (s *Scheduler) Renderers() []*renderer.Renderer { return s.renderers }

func (s *Scheduler) rebuild() error {
	for _, r := range s.renderers {
		if err := r.RebuildCommandLists(s.entities); err != nil {
			return err
		}
	}
	return nil
}

// ReadPixels copies color attachment i of r back to the host as RGBA8.
func (s *Scheduler) ReadPixels(r *renderer.Renderer, attachment int) ([]byte, error) {
	img := r.ColorImage(attachment)
	if img == nil {
		return nil, errors.Newf("renderer %s attachment %d is not readable", r.Name, attachment)
	}
	if err := s.dev.WaitIdle(); err != nil {
		return nil, errors.Wrap(err, "wait idle before readback")
	}
	return s.world.Pool.ReadImage(img)
}

// Cleanup waits for the device, then destroys renderers, entities and frame
// slots in that order. The World is left to its owner.
func (s *Scheduler) Cleanup() {
	if s.closed {
		return
	}
	s.closed = true
	if err := s.dev.WaitIdle(); err != nil {
		core.Logger().Warn("wait idle before cleanup", "err", err)
	}
	for _, r := range s.renderers {
		r.Cleanup()
	}
	s.renderers = nil
	for _, e := range s.entities.Values() {
		e.Cleanup()
	}
	s.entities.Reset()
	for i := range s.slots {
		s.slots[i].destroy(s.dev)
	}
}
