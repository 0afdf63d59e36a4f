package frame

import (
	"fmt"

	"vkframe/gpu"
)

// Slot holds the synchronization objects of one frame in flight.
type Slot struct {
	ImageAvailable gpu.Semaphore
	RenderFinished gpu.Semaphore
	// InFlight is created signaled so the first wait returns at once.
	InFlight gpu.Fence
}

func newSlot(dev gpu.Device) (Slot, error) {
	var s Slot
	var err error
	if s.ImageAvailable, err = dev.CreateSemaphore(); err != nil {
		return s, gpu.CreationError(err, "image available semaphore")
	}
	if s.RenderFinished, err = dev.CreateSemaphore(); err != nil {
		s.destroy(dev)
		return s, gpu.CreationError(err, "render finished semaphore")
	}
	if s.InFlight, err = dev.CreateFence(true); err != nil {
		s.destroy(dev)
		return s, gpu.CreationError(err, "in flight fence")
	}
	return s, nil
}

func (s *Slot) destroy(dev gpu.Device) {
	if s.ImageAvailable != 0 {
		dev.DestroySemaphore(s.ImageAvailable)
	}
	if s.RenderFinished != 0 {
		dev.DestroySemaphore(s.RenderFinished)
	}
	if s.InFlight != 0 {
		dev.DestroyFence(s.InFlight)
	}
	*s = Slot{}
}

// State is the phase of the scheduler.
type State int

const (
	Idle State = iota
	Acquiring
	Submitting
	Presenting
	Refreshing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquiring:
		return "acquiring"
	case Submitting:
		return "submitting"
	case Presenting:
		return "presenting"
	case Refreshing:
		return "refreshing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
