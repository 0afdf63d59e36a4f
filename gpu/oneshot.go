package gpu

import "github.com/cockroachdb/errors"

// ExecuteOneShot records fn into a transient command buffer, submits it and
// waits for the queue to drain before freeing the buffer. Uploads performed
// this way are serialized against frame submission and against each other.
func ExecuteOneShot(dev Device, fn func(Recorder)) error {
	cmds, err := dev.AllocateCommandBuffers(1)
	if err != nil {
		return errors.Wrap(err, "allocate one-shot command buffer")
	}
	defer dev.FreeCommandBuffers(cmds)

	rec := dev.Recorder(cmds[0])
	if err := rec.Begin(true); err != nil {
		return errors.Wrap(err, "begin one-shot command buffer")
	}
	fn(rec)
	if err := rec.End(); err != nil {
		return errors.Wrap(err, "end one-shot command buffer")
	}

	if err := dev.Submit(SubmitInfo{CommandBuffers: cmds}, 0); err != nil {
		return errors.Wrap(err, "submit one-shot command buffer")
	}
	return dev.QueueWaitIdle()
}
