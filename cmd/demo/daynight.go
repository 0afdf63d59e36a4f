package main

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"vkframe/scene"
)

// dayPalette is the sun state at one key time of day.
type dayPalette struct {
	t         float32 // normalized time 0..1
	tint      mgl32.Vec3
	intensity float32
}

// palettes is ordered by t and wraps (0 == 1).
var palettes = []dayPalette{
	{t: 0.00, tint: mgl32.Vec3{1.00, 0.98, 0.92}, intensity: 1.20}, // noon
	{t: 0.22, tint: mgl32.Vec3{1.00, 0.65, 0.25}, intensity: 0.90}, // golden hour
	{t: 0.30, tint: mgl32.Vec3{0.70, 0.40, 0.55}, intensity: 0.25}, // dusk
	{t: 0.50, tint: mgl32.Vec3{0.40, 0.45, 0.65}, intensity: 0.12}, // moonlight
	{t: 0.70, tint: mgl32.Vec3{0.75, 0.42, 0.60}, intensity: 0.20}, // pre-dawn
	{t: 0.78, tint: mgl32.Vec3{1.00, 0.60, 0.28}, intensity: 0.70}, // sunrise
}

// DayNight animates the directional lights of a light scene over a day.
type DayNight struct {
	Time   float32 // 0..1: 0=noon, 0.25=sunset, 0.5=midnight, 0.75=sunrise
	Speed  float32 // full-cycle duration in seconds
	Active bool
}

func NewDayNight() *DayNight {
	return &DayNight{Speed: 120, Active: true}
}

func (dn *DayNight) Update(dt float32) {
	if !dn.Active {
		return
	}
	dn.Time += dt / dn.Speed
	for dn.Time >= 1 {
		dn.Time--
	}
}

// samplePalette interpolates between the two keys surrounding t.
func samplePalette(t float32) dayPalette {
	n := len(palettes)
	for i := range palettes {
		a, b := palettes[i], palettes[(i+1)%n]
		end := b.t
		if i == n-1 {
			end = 1
		}
		if t >= a.t && t < end {
			local := (t - a.t) / (end - a.t)
			return dayPalette{
				t:         t,
				tint:      a.tint.Add(b.tint.Sub(a.tint).Mul(local)),
				intensity: a.intensity + (b.intensity-a.intensity)*local,
			}
		}
	}
	return palettes[0]
}

// SunDirection circles the XY plane, straight down at noon.
func (dn *DayNight) SunDirection() mgl32.Vec3 {
	angle := float64(dn.Time * 2 * math.Pi)
	return mgl32.Vec3{float32(math.Sin(angle)), -float32(math.Cos(angle)), 0.35}.Normalize()
}

// Apply sets tint, intensity and orientation of every directional light in
// ls. Point and spot lights are left alone.
func (dn *DayNight) Apply(ls *scene.LightScene) {
	p := samplePalette(dn.Time)
	rotation := mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, -1}, dn.SunDirection())
	for _, l := range ls.Lights {
		if l.Distance != -1 {
			continue
		}
		l.Tint = p.tint
		l.Intensity = p.intensity
		l.Transform().Rotation = rotation
	}
}

func (dn *DayNight) TimeOfDay() string {
	// Time 0 is noon.
	hours := math.Mod(float64(dn.Time)*24+12, 24)
	h := int(hours)
	m := int((hours - float64(h)) * 60)
	return fmt.Sprintf("%02d:%02d", h, m)
}
