package descriptor

import (
	"vkframe/core"
	"vkframe/gpu"
)

// Layout is a descriptor set layout shared by every entity with the same
// signature.
type Layout struct {
	Handle    gpu.DescriptorSetLayout
	Signature Signature
}

// LayoutCache creates one Layout per signature.
type LayoutCache struct {
	dev     gpu.Device
	layouts map[Signature]*Layout
}

func NewLayoutCache(dev gpu.Device) *LayoutCache {
	return &LayoutCache{dev: dev, layouts: make(map[Signature]*Layout)}
}

// GetOrCreate returns the cached layout for sig, creating it on first use.
func (c *LayoutCache) GetOrCreate(sig Signature) (*Layout, error) {
	if l, ok := c.layouts[sig]; ok {
		return l, nil
	}
	handle, err := c.dev.CreateDescriptorSetLayout(sig.layoutBindings())
	if err != nil {
		return nil, gpu.CreationError(err, "descriptor set layout "+sig.String())
	}
	l := &Layout{Handle: handle, Signature: sig}
	c.layouts[sig] = l
	core.Logger().Debug("descriptor set layout created", "signature", sig.Key())
	return l, nil
}

func (c *LayoutCache) Len() int { return len(c.layouts) }

// Destroy destroys every cached layout. No descriptor built from them may be
// in use.
func (c *LayoutCache) Destroy() {
	for sig, l := range c.layouts {
		c.dev.DestroyDescriptorSetLayout(l.Handle)
		delete(c.layouts, sig)
	}
}
