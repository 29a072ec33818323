// lightview opens a scene in a window, bakes it a slice per frame and draws
// the dynamic shadows of its moving objects.
//
// Keys: arrows or WASD orbit, +/- zoom, space spins the shapes, R rebakes,
// T terminates the bake, F11 dumps shadow textures, F12 saves a screenshot,
// Esc quits.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-lighting/internal/config"
	"github.com/Faultbox/midgard-lighting/internal/engine/camera"
	"github.com/Faultbox/midgard-lighting/internal/engine/debug"
	"github.com/Faultbox/midgard-lighting/internal/engine/framebuffer"
	"github.com/Faultbox/midgard-lighting/internal/engine/pool"
	"github.com/Faultbox/midgard-lighting/internal/engine/shadow/glrender"
	"github.com/Faultbox/midgard-lighting/internal/engine/window"
	"github.com/Faultbox/midgard-lighting/internal/export"
	"github.com/Faultbox/midgard-lighting/internal/lightsys"
	"github.com/Faultbox/midgard-lighting/internal/logger"
	"github.com/Faultbox/midgard-lighting/internal/scene"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

var shotDir = flag.String("shots", "screenshots", "Directory for F12 screenshots and F11 shadow dumps")

const (
	orbitStep = 3.14159265 / 36
	zoomStep  = 1.1
	spinSpeed = 45 // degrees per second
)

func moveCamera(c *camera.OrbitCamera, k sdl.Keycode) {
	switch k {
	case sdl.K_LEFT, sdl.K_a:
		c.Orbit(-orbitStep, 0)
	case sdl.K_RIGHT, sdl.K_d:
		c.Orbit(orbitStep, 0)
	case sdl.K_UP, sdl.K_w:
		c.Orbit(0, orbitStep)
	case sdl.K_DOWN, sdl.K_s:
		c.Orbit(0, -orbitStep)
	case sdl.K_EQUALS, sdl.K_KP_PLUS:
		c.Zoom(1 / zoomStep)
	case sdl.K_MINUS, sdl.K_KP_MINUS:
		c.Zoom(zoomStep)
	}
}

func sceneBounds(sc *scene.Scene) math.Box {
	var box math.Box
	first := true
	for _, r := range sc.Receivers() {
		if first {
			box, first = r.WorldBox(), false
			continue
		}
		box = box.Union(r.WorldBox())
	}
	for _, s := range sc.Shapes {
		if first {
			box, first = s.WorldBox(), false
			continue
		}
		box = box.Union(s.WorldBox())
	}
	return box
}

func main() {
	config.ParseFlags()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lightview [global flags] <scene>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, flag.Arg(0)); err != nil {
		logger.Error("lightview failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, path string) error {
	sc, err := scene.Load(path)
	if err != nil {
		return err
	}

	win, err := window.New(window.Config{
		Title:  "lightview - " + sc.Name,
		Width:  cfg.Viewer.Width,
		Height: cfg.Viewer.Height,
		VSync:  cfg.Viewer.VSync,
	})
	if err != nil {
		return err
	}
	defer win.Close()

	renderer, err := glrender.New()
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	ctx, err := lightsys.New(cfg, framebuffer.Allocator{}, renderer)
	if err != nil {
		return err
	}
	defer func() {
		if err := ctx.Close(); err != nil {
			logger.Warn("closing lighting context", zap.Error(err))
		}
	}()
	if err := ctx.SetScene(sc); err != nil {
		return err
	}

	startBake := func() {
		opts, err := ctx.BakeOptions()
		if err == nil {
			_, err = ctx.StartBake(opts)
		}
		if err != nil {
			logger.Warn("bake not started", zap.Error(err))
		}
	}
	startBake()

	cam := camera.NewOrbitCamera()
	cam.FitToBox(sceneBounds(sc))

	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return err
	}
	shots := debug.NewScreenshotCapture(*shotDir, sc.Name, format)

	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)

	spin := false
	var spinDeg float32
	lastTitle := time.Time{}
	lastFrame := time.Now()
	for {
		now := time.Now()
		dt := float32(now.Sub(lastFrame).Seconds())
		lastFrame = now

		keys, quit := win.Events()
		if quit {
			return nil
		}
		for _, k := range keys {
			switch k {
			case sdl.K_ESCAPE, sdl.K_q:
				return nil
			case sdl.K_r:
				if !ctx.BakeRunning() {
					startBake()
				}
			case sdl.K_t:
				ctx.TerminateBake()
			case sdl.K_SPACE:
				spin = !spin
			case sdl.K_F11:
				dumpShadows(ctx, shots)
			case sdl.K_F12:
				w, h := win.DrawableSize()
				screenshot(shots, w, h)
			default:
				moveCamera(cam, k)
			}
		}

		if spin {
			spinDeg += spinSpeed * dt
			for _, s := range sc.Shapes {
				s.SetYaw(spinDeg)
			}
		}
		ctx.StepBake()

		w, h := win.DrawableSize()
		gl.Viewport(0, 0, int32(w), int32(h))
		gl.ClearColor(0.12, 0.12, 0.14, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

		eye := cam.Position()
		renderer.SetCamera(
			mgl32.Vec3{eye.X, eye.Y, eye.Z},
			mgl32.Vec3{cam.Center.X, cam.Center.Y, cam.Center.Z},
			cam.FovY, float32(w)/float32(max(h, 1)), cam.Distance*0.01, cam.Distance*10)
		rendered := ctx.RenderShadows(eye)

		if time.Since(lastTitle) > 250*time.Millisecond {
			win.SetTitle(title(sc.Name, ctx, rendered))
			lastTitle = time.Now()
		}
		win.SwapBuffers()
	}
}

func screenshot(shots *debug.ScreenshotCapture, w, h int) {
	pixels := make([]byte, w*h*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	path, err := shots.CaptureFromPixels(pixels, w, h)
	if err != nil {
		logger.Warn("screenshot failed", zap.Error(err))
		return
	}
	logger.Info("screenshot saved", zap.String("path", path))
}

func dumpShadows(ctx *lightsys.Context, shots *debug.ScreenshotCapture) {
	var textures []*pool.Texture
	for _, s := range ctx.Casters() {
		textures = append(textures, s.Textures()...)
	}
	paths, err := shots.CaptureTextures(textures)
	if err != nil {
		logger.Warn("shadow dump failed", zap.Error(err))
	}
	logger.Info("shadow textures saved", zap.Int("count", len(paths)))
}

func title(name string, ctx *lightsys.Context, shadows int) string {
	status := "idle"
	if b := ctx.Baker(); b != nil {
		switch {
		case ctx.BakeRunning():
			status = fmt.Sprintf("baking %.0f%%", b.Progress()*100)
		case b.Err() != nil:
			status = "bake failed"
		case b.Terminated():
			status = "bake terminated"
		case b.FromCache():
			status = "cached"
		default:
			status = "baked"
		}
	}
	return fmt.Sprintf("lightview - %s - %s - %d shadows, %d pooled",
		name, status, shadows, ctx.Pool.HandedOut())
}
