package vulkan

/*
#include <vulkan/vulkan.h>
*/
import "C"
import (
	"unsafe"

	"github.com/cockroachdb/errors"

	"vkframe/core"
	"vkframe/gpu"
	"vkframe/window"
)

type Config struct {
	AppName    string
	Validation bool
	VSync      bool
}

func DefaultConfig() Config {
	return Config{AppName: "vkframe", Validation: true, VSync: true}
}

// Context is the Vulkan graphics context: instance, window surface, device
// and the back-buffer chain presented to the window.
type Context struct {
	cfg     Config
	win     *window.Window
	inst    *instance
	surface C.VkSurfaceKHR
	device  *Device
	chain   *swapchain
	depth   gpu.Format
}

var _ gpu.Context = (*Context)(nil)

// NewContext initializes Vulkan for win. Every failure here is marked
// gpu.ErrFatalInit.
func NewContext(win *window.Window, cfg Config) (*Context, error) {
	c := &Context{cfg: cfg, win: win}

	inst, err := newInstance(cfg.AppName, win.GetRequiredInstanceExtensions(), cfg.Validation)
	if err != nil {
		return nil, err
	}
	c.inst = inst

	surface, err := win.CreateWindowSurface(unsafe.Pointer(inst.handle))
	if err != nil {
		c.Destroy()
		return nil, errors.Mark(err, gpu.ErrFatalInit)
	}
	c.surface = C.VkSurfaceKHR(pointer(uint64(surface)))

	if c.device, err = pickDevice(inst, c.surface); err != nil {
		c.Destroy()
		return nil, err
	}
	if c.depth, err = c.device.depthFormat(); err != nil {
		c.Destroy()
		return nil, err
	}

	width, height := win.GetFramebufferSize()
	if c.chain, err = newSwapchain(c.device, c.surface, width, height, cfg.VSync, nil); err != nil {
		c.Destroy()
		return nil, err
	}

	core.Logger().Info("vulkan context ready",
		"gpu", c.device.Name(),
		"type", c.device.Type(),
		"back_buffers", len(c.chain.views),
		"extent", c.Extent(),
		"max_samples", c.MaxSamples())
	return c, nil
}

func (c *Context) Device() gpu.Device { return c.device }

func (c *Context) FindMemoryType(typeBits uint32, props gpu.MemoryProperty) (uint32, error) {
	return c.device.findMemoryType(typeBits, props)
}

func (c *Context) MaxSamples() gpu.SampleCount { return c.device.maxSamples() }

func (c *Context) BackBufferCount() int { return len(c.chain.views) }

func (c *Context) Extent() gpu.Extent2D {
	return gpu.Extent2D{Width: uint32(c.chain.extent.width), Height: uint32(c.chain.extent.height)}
}

func (c *Context) BackBufferViews() []gpu.ImageView { return c.chain.views }

func (c *Context) ColorFormat() gpu.Format { return gpu.Format(c.chain.format) }

func (c *Context) DepthFormat() gpu.Format { return c.depth }

func (c *Context) Acquire(signal gpu.Semaphore) (uint32, error) {
	return c.chain.acquire(c.device, signal)
}

func (c *Context) Present(index uint32, wait gpu.Semaphore) error {
	return c.chain.present(c.device, index, wait)
}

// RecreateSwapchain waits out a minimized window and device work, then
// replaces the chain at the current framebuffer size.
func (c *Context) RecreateSwapchain() error {
	c.win.WaitWhileMinimized()
	if err := c.device.WaitIdle(); err != nil {
		return err
	}
	width, height := c.win.GetFramebufferSize()
	chain, err := newSwapchain(c.device, c.surface, width, height, c.cfg.VSync, c.chain)
	if err != nil {
		return err
	}
	c.chain.destroy(c.device)
	c.chain = chain
	core.Logger().Debug("swapchain recreated", "extent", c.Extent(), "back_buffers", len(chain.views))
	return nil
}

// Destroy releases everything in reverse creation order. Resources created
// through Device must be destroyed first.
func (c *Context) Destroy() {
	if c.device != nil {
		if err := c.device.WaitIdle(); err != nil {
			core.Logger().Warn("wait idle before destroy", "err", err)
		}
		if c.chain != nil {
			c.chain.destroy(c.device)
			c.chain = nil
		}
		c.device.destroy()
		c.device = nil
	}
	if c.inst != nil {
		if c.surface != nil {
			C.vkDestroySurfaceKHR(c.inst.handle, c.surface, nil)
			c.surface = nil
		}
		c.inst.destroy()
		c.inst = nil
	}
}
