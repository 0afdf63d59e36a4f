package scene

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"vkframe/core"
)

// Light is a non-rendered entity contributing to a LightScene.
type Light struct {
	Object
	Tint      mgl32.Vec3
	Intensity float32
	// Distance -1 makes the light directional.
	Distance float32
	// Spread -1 makes the light a point light.
	Spread float32

	scene *LightScene
}

type LightOptions struct {
	Transform core.Transform
	Tint      mgl32.Vec3
	Intensity float32
	Distance  float32
	Spread    float32
	Scene     string
}

// NewLight adds a light to the named light scene. Lights past MaxLights are
// kept but not uploaded.
func NewLight(w *World, opts LightOptions) *Light {
	l := &Light{
		Object:    Object{World: w, ID: w.Graph.Add(opts.Transform)},
		Tint:      opts.Tint,
		Intensity: opts.Intensity,
		Distance:  opts.Distance,
		Spread:    opts.Spread,
		scene:     w.LightScene(opts.Scene),
	}
	l.scene.Lights = append(l.scene.Lights, l)
	if len(l.scene.Lights) > MaxLights {
		core.Logger().Warn("light scene full, light ignored", "scene", opts.Scene, "max", MaxLights)
	}
	return l
}

func (l *Light) Update(int, float32) error { return nil }

func (l *Light) Cleanup() {
	if l.ID == NoEntity {
		return
	}
	l.scene.Lights = slices.DeleteFunc(l.scene.Lights, func(o *Light) bool { return o == l })
	l.release()
}

// LightScene groups the lights uploaded together into one lighting uniform.
type LightScene struct {
	Name   string
	Lights []*Light
}

// Data packs the first MaxLights lights in world space.
func (s *LightScene) Data(g *Graph) *SceneLighting {
	var d SceneLighting
	for i, l := range s.Lights {
		if i == MaxLights {
			break
		}
		d.Position[i] = g.WorldPosition(l.ID).Vec4(0)
		d.Direction[i] = g.Transform(l.ID).GetForward().Vec4(0)
		d.Tint[i] = l.Tint.Vec4(0)
		d.Mods[i] = mgl32.Vec4{l.Intensity, l.Distance, l.Spread, 0}
	}
	return &d
}
