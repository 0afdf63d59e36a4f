package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"

	"vkframe/core"
	"vkframe/frame"
	"vkframe/gpu"
	"vkframe/io"
	"vkframe/renderer"
	"vkframe/scene"
	"vkframe/vulkan"
	"vkframe/window"
)

const (
	orbitSpeed = 1.5 // radians per second
	zoomSpeed  = 6.0 // units per second
)

func main() {
	configPath := flag.String("config", "vkframe.toml", "engine configuration file")
	scenePath := flag.String("scene", "", "scene file, overrides assets.scene")
	capturePath := flag.String("capture", "", "write an offscreen PNG capture after the first frames")
	flag.Parse()

	if err := run(*configPath, *scenePath, *capturePath); err != nil {
		fmt.Fprintf(os.Stderr, "vkframe: %+v\n", err)
		os.Exit(1)
	}
}

func run(configPath, scenePath, capturePath string) error {
	cfg, err := core.LoadEngineConfig(configPath)
	if err != nil {
		return err
	}
	level, _ := cfg.Log.SlogLevel()
	core.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	if scenePath == "" {
		scenePath = cfg.Assets.Scene
	}

	win, err := window.New(cfg.Window)
	if err != nil {
		return err
	}
	defer win.Destroy()

	ctx, err := vulkan.NewContext(win, vulkan.Config{
		AppName:    cfg.Window.Title,
		Validation: cfg.Render.Validation,
		VSync:      cfg.Window.VSync,
	})
	if err != nil {
		return err
	}
	defer ctx.Destroy()

	world := scene.NewWorld(ctx)
	defer world.Close()

	sched, err := frame.New(world)
	if err != nil {
		return err
	}
	defer sched.Cleanup()

	var capture *renderer.Renderer
	if capturePath != "" {
		capture, err = renderer.New(world, renderer.Config{
			Name:        "capture",
			Samples:     gpu.SampleCount(cfg.Render.Samples),
			ClearColors: [][4]float32{cfg.Render.ClearColor},
			Extent:      gpu.Extent2D{Width: 512, Height: 512},
		})
		if err != nil {
			return err
		}
		if err := sched.AddRenderer(capture); err != nil {
			return err
		}
	}

	presenter, err := renderer.New(world, renderer.Config{
		Name:             "main",
		ColorAttachments: cfg.Render.ColorAttachments,
		Samples:          gpu.SampleCount(cfg.Render.Samples),
		ClearColors:      [][4]float32{cfg.Render.ClearColor},
		Present:          true,
	})
	if err != nil {
		return err
	}
	if err := sched.AddRenderer(presenter); err != nil {
		return err
	}

	loaded, err := io.LoadFile(world, scenePath, cfg.Assets.ShaderDir, sched)
	if err != nil {
		return err
	}
	win.OnResize(func(int, int) { sched.Resized() })

	dayNight := NewDayNight()
	overlay := &DebugOverlay{}
	var (
		frames    int
		lastTitle time.Time
		last      = time.Now()
	)
	for !win.ShouldClose() {
		win.PollEvents()
		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		handleInput(win, loaded.Orbit, dayNight, dt)
		dayNight.Update(dt)
		for _, ls := range world.Lights.Values() {
			dayNight.Apply(ls)
		}

		if err := sched.Draw(); err != nil {
			return err
		}
		frames++

		if capture != nil && frames == 3 {
			if err := writeCapture(sched, capture, ctx.ColorFormat(), capturePath); err != nil {
				core.Logger().Warn("capture failed", "path", capturePath, "err", err)
			}
		}

		if now.Sub(lastTitle) >= 500*time.Millisecond {
			lastTitle = now
			stats := presenter.DrawStats()
			overlay.Clear()
			overlay.AddLine("%s", cfg.Window.Title)
			overlay.AddLine("%.2f ms", float64(sched.FrameTime().Microseconds())/1000)
			overlay.AddLine("%d objects, %d triangles", stats.Objects, stats.Triangles)
			overlay.AddLine("%s", dayNight.TimeOfDay())
			win.SetTitle(overlay.Text())
		}
	}
	return nil
}

// handleInput maps arrows to orbit, W/S to zoom and N to pausing the day
// cycle. Without an orbit camera only the day cycle responds.
func handleInput(win *window.Window, orbit *scene.OrbitCamera, dn *DayNight, dt float32) {
	if win.IsKeyPressed(glfw.KeyN) {
		dn.Active = false
	}
	if win.IsKeyPressed(glfw.KeyM) {
		dn.Active = true
	}
	if orbit == nil {
		return
	}
	var yaw, pitch, zoom float32
	if win.IsKeyPressed(glfw.KeyLeft) {
		yaw -= orbitSpeed * dt
	}
	if win.IsKeyPressed(glfw.KeyRight) {
		yaw += orbitSpeed * dt
	}
	if win.IsKeyPressed(glfw.KeyUp) {
		pitch += orbitSpeed * dt
	}
	if win.IsKeyPressed(glfw.KeyDown) {
		pitch -= orbitSpeed * dt
	}
	if win.IsKeyPressed(glfw.KeyW) {
		zoom -= zoomSpeed * dt
	}
	if win.IsKeyPressed(glfw.KeyS) {
		zoom += zoomSpeed * dt
	}
	if yaw != 0 || pitch != 0 {
		orbit.Orbit(yaw, pitch)
	}
	if zoom != 0 {
		orbit.Zoom(zoom)
	}
}

// writeCapture reads color attachment 0 of r and encodes it as PNG. BGRA
// back-buffer formats are swizzled to RGBA.
func writeCapture(s *frame.Scheduler, r *renderer.Renderer, format gpu.Format, path string) error {
	pixels, err := s.ReadPixels(r, 0)
	if err != nil {
		return err
	}
	extent := r.Extent()
	img := image.NewRGBA(image.Rect(0, 0, int(extent.Width), int(extent.Height)))
	copy(img.Pix, pixels)
	if format == gpu.FormatB8G8R8A8Srgb || format == gpu.FormatB8G8R8A8Unorm {
		for i := 0; i+3 < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create capture file")
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return errors.Wrap(err, "encode capture")
	}
	core.Logger().Info("capture written", "path", path, "extent", extent)
	return nil
}
