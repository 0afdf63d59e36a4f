package gpu

import "github.com/cockroachdb/errors"

// Error taxonomy. Backends and core packages mark their errors with one of
// these so callers can branch with errors.Is.
var (
	// ErrFatalInit covers missing device features or formats and failed
	// pipeline compilation. Startup cannot continue.
	ErrFatalInit = errors.New("fatal init error")
	// ErrResourceCreation covers buffer, image, descriptor and pipeline
	// allocation failures. Not retried.
	ErrResourceCreation = errors.New("resource creation failed")
	// ErrOutOfMemoryType is returned when no memory type satisfies a request.
	ErrOutOfMemoryType = errors.New("no suitable memory type")
	// ErrOutOfDate reports a back-buffer chain that no longer matches the surface.
	ErrOutOfDate = errors.New("presentation target out of date")
	// ErrSuboptimal reports a usable but mismatched back-buffer chain.
	ErrSuboptimal = errors.New("presentation target suboptimal")
	// ErrUnsupportedTransition reports an image layout pair with no barrier
	// recipe. Layout transitions log it and continue.
	ErrUnsupportedTransition = errors.New("unsupported layout transition")
	// ErrBackBufferCount reports a recreated back-buffer chain whose image
	// count differs from the one per-entity bindings were sized for.
	ErrBackBufferCount = errors.New("back-buffer count changed")
)

// IsTransientPresent reports whether err is recoverable by recreating the
// back-buffer chain.
func IsTransientPresent(err error) bool {
	return errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSuboptimal)
}

// CreationError wraps err as a resource creation failure for what.
func CreationError(err error, what string) error {
	return errors.Mark(errors.Wrapf(err, "create %s", what), ErrResourceCreation)
}
