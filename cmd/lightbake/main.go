// lightbake is a CLI for baking, inspecting and exporting static lighting.
package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/midgard-lighting/internal/bake"
	"github.com/Faultbox/midgard-lighting/internal/config"
	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/internal/engine/shadow"
	"github.com/Faultbox/midgard-lighting/internal/export"
	"github.com/Faultbox/midgard-lighting/internal/lightsys"
	"github.com/Faultbox/midgard-lighting/internal/logger"
	"github.com/Faultbox/midgard-lighting/internal/scene"
	"github.com/Faultbox/midgard-lighting/pkg/formats"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

func main() {
	config.ParseFlags()
	args := flag.Args()
	if len(args) < 1 {
		printUsage()
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

	command, rest := args[0], args[1:]
	switch command {
	case "bake":
		cmdBake(cfg, rest)
	case "info":
		cmdInfo(rest)
	case "gc":
		cmdGC(cfg, rest)
	case "export", "x":
		cmdExport(cfg, rest)
	case "best":
		cmdBest(cfg, rest)
	case "blob":
		cmdBlob(cfg, rest)
	case "attenuation":
		cmdAttenuation(cfg, rest)
	case "config":
		cmdConfig(cfg, rest)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lightbake - static lighting baker

Usage:
  lightbake [global flags] <command> [options]

Global flags:
  -config <file>     Config file
  -debug             Debug logging
  -quality <q>       Bake quality: full, design, draft
  -cache-dir <dir>   Lighting cache directory
  -max-lights <n>    Lights returned per query
  -no-persist        Do not read or write the cache

Commands:
  bake <scene>                 Bake lightmaps for a .yaml or .gltf scene
  info <file.ml>               Show the chunks of a lighting cache file
  gc <dir>                     Remove stale and over-quota cache files
  export <file.ml> <dir>       Write stored lightmaps as images
  best <scene> -box <box>      Rank the lights reaching a region
  blob <out>                   Write the generic blob shadow texture
  attenuation <dir>            Write the falloff volume slices of a lighting model
  config                       Print or save the effective configuration

Examples:
  lightbake bake -export out scenes/courtyard.yaml
  lightbake -quality draft bake -steps 20 scenes/courtyard.yaml
  lightbake info lighting/courtyard.ml
  lightbake export -scene scenes/courtyard.yaml -format webp lighting/courtyard.ml out
  lightbake best -box 0,0,0,4,4,3 -object hut scenes/courtyard.yaml`)
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
	os.Exit(1)
}

func exportFormat(cfg *config.Config, flagValue string) export.Format {
	name := cfg.Export.Format
	if flagValue != "" {
		name = flagValue
	}
	f, err := export.ParseFormat(name)
	if err != nil {
		fail("%v", err)
	}
	return f
}

func cmdBake(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("bake", flag.ExitOnError)
	steps := fs.Int("steps", 0, "Terminate after N steps (0 = run to completion)")
	outDir := fs.String("export", "", "Write the baked lightmaps into this directory")
	format := fs.String("format", "", "Export format: png, tga, bmp, webp")
	noShadows := fs.Bool("no-shadows", false, "Ignore static shadow casters")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lightbake bake [options] <scene>")
		os.Exit(1)
	}
	sc, err := scene.Load(fs.Arg(0))
	if err != nil {
		fail("%v", err)
	}

	ctx, err := lightsys.New(cfg, nil, nil)
	if err != nil {
		fail("%v", err)
	}
	defer ctx.Close()
	if err := ctx.SetScene(sc); err != nil {
		fail("%v", err)
	}
	opts, err := ctx.BakeOptions()
	if err != nil {
		fail("%v", err)
	}
	opts.NoShadows = *noShadows
	b, err := ctx.StartBake(opts)
	if err != nil {
		fail("%v", err)
	}

	n := 0
	for b.Step() {
		n++
		fmt.Printf("\rBaking %s: %5.1f%%", sc.Name, b.Progress()*100)
		if *steps > 0 && n >= *steps {
			b.Terminate()
		}
	}
	fmt.Printf("\rBaking %s: %5.1f%%\n", sc.Name, b.Progress()*100)
	if err := b.Err(); err != nil {
		fail("%v", err)
	}

	switch {
	case b.Terminated():
		fmt.Println("Terminated; nothing was saved.")
	case b.FromCache():
		fmt.Printf("Loaded from %s\n", b.CachePath())
	case b.CachePath() != "":
		fmt.Printf("Saved %s (crc %08x)\n", b.CachePath(), b.MissionCRC())
	}
	for _, p := range b.Proxies() {
		fmt.Printf("  %-8s %-20s %d lightmap(s), %d light(s)\n",
			p.Object.Kind(), p.Name(), len(p.Final), len(p.Lights))
	}

	if *outDir == "" {
		return
	}
	f := exportFormat(cfg, *format)
	for _, p := range b.Proxies() {
		paths, err := export.Object(*outDir, p.Name(), p.Final, f, false)
		if err != nil {
			fail("%v", err)
		}
		for _, path := range paths {
			fmt.Printf("Wrote %s\n", path)
		}
	}
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lightbake info <file.ml>")
		os.Exit(1)
	}
	ml, err := formats.LoadML(args[0])
	if err != nil {
		fail("%v", err)
	}

	fmt.Printf("File:    %s\n", args[0])
	fmt.Printf("Version: 0x%x\n", formats.MLVersion)
	fmt.Printf("Mission: %08x\n", ml.MissionCRC())
	fmt.Printf("Objects: %d\n", len(ml.Objects()))
	fmt.Println()
	for i, c := range ml.Objects() {
		switch {
		case c.Interior != nil:
			normals := 0
			for _, n := range c.Interior.NormalLightmaps {
				if n != nil {
					normals++
				}
			}
			fmt.Printf("  %3d %-8s %08x  %d lightmaps, %d normal maps, %d bytes vertex lighting\n",
				i, c.Type, c.CRC, len(c.Interior.Lightmaps), normals, len(c.Interior.VertexLighting))
		case c.Lightmap != nil:
			fmt.Printf("  %3d %-8s %08x  %dx%d\n", i, c.Type, c.CRC, c.Lightmap.Width, c.Lightmap.Height)
		default:
			fmt.Printf("  %3d %-8s %08x\n", i, c.Type, c.CRC)
		}
	}
}

func cmdGC(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("gc", flag.ExitOnError)
	quota := fs.Int64("quota", cfg.Cache.QuotaKB, "Directory quota in KB (-1 = unlimited)")
	method := fs.String("method", cfg.Cache.PurgeMethod, "Purge order: lastModified, lastCreated, minSize, maxSize")
	keep := fs.String("keep", "", "Cache file that must never be removed")
	fs.Parse(args)

	dir := cfg.Cache.Dir
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	m, err := bake.ParsePurgeMethod(*method)
	if err != nil {
		fail("%v", err)
	}
	removed, err := bake.GC(dir, *keep, *quota, m)
	for _, path := range removed {
		fmt.Printf("Removed %s\n", path)
	}
	if err != nil {
		fail("%v", err)
	}
	logger.Info("cache collected", zap.String("dir", dir), zap.Int("removed", len(removed)))
	fmt.Printf("%d file(s) removed\n", len(removed))
}

func cmdExport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", "", "Image format: png, tga, bmp, webp")
	scenePath := fs.String("scene", "", "Scene the file was baked from, for names and interior colors")
	separate := fs.Bool("separate", false, "One image per lightmap instead of an atlas")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: lightbake export [options] <file.ml> <dir>")
		os.Exit(1)
	}
	ml, err := formats.LoadML(fs.Arg(0))
	if err != nil {
		fail("%v", err)
	}

	var objects []export.ObjectInfo
	if *scenePath != "" {
		sc, err := scene.Load(*scenePath)
		if err != nil {
			fail("%v", err)
		}
		for _, r := range sc.Receivers() {
			info := export.ObjectInfo{Name: r.Name()}
			if r.Kind() == scene.KindInterior {
				base := r.BaseColor()
				info.Base = &base
			}
			objects = append(objects, info)
		}
		if len(objects) != len(ml.Objects()) {
			fmt.Fprintf(os.Stderr, "Warning: scene has %d objects, file has %d\n", len(objects), len(ml.Objects()))
		}
	}

	paths, err := export.ML(ml, fs.Arg(1), exportFormat(cfg, *format), objects, *separate)
	for _, p := range paths {
		fmt.Printf("Wrote %s\n", p)
	}
	if err != nil {
		fail("%v", err)
	}
}

func parseBox(s string) (math.Box, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return math.Box{}, fmt.Errorf("box needs 6 comma-separated numbers, got %q", s)
	}
	var v [6]float32
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return math.Box{}, fmt.Errorf("box: %w", err)
		}
		v[i] = float32(f)
	}
	return math.BoxAround(
		math.Vec3{X: v[0], Y: v[1], Z: v[2]},
		math.Vec3{X: v[3], Y: v[4], Z: v[5]},
	), nil
}

func cmdBest(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("best", flag.ExitOnError)
	boxFlag := fs.String("box", "", "Region as minX,minY,minZ,maxX,maxY,maxZ")
	object := fs.String("object", "", "Filter by the zones of this object, and use its box when -box is empty")
	dual := fs.Bool("dual", false, "Pair each light with a secondary light")
	uniforms := fs.Bool("uniforms", false, "Print the lights as flattened for shader upload")
	fs.Parse(args)

	if fs.NArg() < 1 || (*boxFlag == "" && *object == "") {
		fmt.Fprintln(os.Stderr, "Usage: lightbake best -box <box> [-object name] <scene>")
		os.Exit(1)
	}
	sc, err := scene.Load(fs.Arg(0))
	if err != nil {
		fail("%v", err)
	}
	ctx, err := lightsys.New(cfg, nil, nil)
	if err != nil {
		fail("%v", err)
	}
	defer ctx.Close()
	if err := ctx.SetScene(sc); err != nil {
		fail("%v", err)
	}

	var obj lighting.Zoned
	var box math.Box
	if *object != "" {
		r, ok := sc.Find(*object)
		if !ok {
			fail("no object %q in %s", *object, sc.Name)
		}
		obj, box = r, r.WorldBox()
	}
	if *boxFlag != "" {
		if box, err = parseBox(*boxFlag); err != nil {
			fail("%v", err)
		}
	}

	best := ctx.BestLights(box, obj)
	if len(best) == 0 {
		fmt.Println("No lights reach this region.")
		return
	}
	if *uniforms {
		buf := lighting.NewUniformBuffer()
		buf.SetLights(ctx.Lights, best)
		kinds := buf.Kinds()
		for i, u := range buf.Lights[:buf.Count] {
			fmt.Printf("%2d. kind %d pos %v dir %v color %v ambient %v atten %v spot %.3f\n",
				i+1, kinds[i], u.Position, u.Direction, u.Color, u.Ambient, u.Attenuation, u.SpotCos)
		}
		return
	}
	if *dual {
		for i, d := range lighting.BestLightsDual(best) {
			second := "-"
			if d.Secondary != nil {
				second = d.Secondary.String()
			}
			fmt.Printf("%2d. %-30s + %s\n", i+1, d.Primary, second)
		}
		return
	}
	for i, l := range best {
		fmt.Printf("%2d. %-30s %-12s score %d\n", i+1, l, l.Kind, l.Score)
	}
}

func cmdBlob(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("blob", flag.ExitOnError)
	dim := fs.Int("dim", shadow.BlobTextureDim, "Texture edge in pixels")
	alpha := fs.Int("alpha", shadow.BlobMaxAlpha, "Alpha at the blob center")
	format := fs.String("format", "", "Image format; defaults to the output extension")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lightbake blob [options] <out>")
		os.Exit(1)
	}
	out := fs.Arg(0)
	if *dim < 2 || *dim > 1024 || *alpha < 0 || *alpha > 255 {
		fail("dim must be 2..1024 and alpha 0..255")
	}
	name := *format
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(out), ".")
	}
	f := exportFormat(cfg, name)

	img := image.NewNRGBA(image.Rect(0, 0, *dim, *dim))
	copy(img.Pix, shadow.GenerateBlobTexture(*dim, byte(*alpha)))
	if err := export.WriteImage(out, img, f); err != nil {
		fail("%v", err)
	}
	fmt.Printf("Wrote %s (%dx%d)\n", out, *dim, *dim)
}

func cmdAttenuation(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("attenuation", flag.ExitOnError)
	model := fs.String("model", cfg.Lighting.DefaultModel,
		"Lighting model: "+strings.Join(lighting.ModelNames(), ", "))
	format := fs.String("format", "", "Image format: png, tga, bmp, webp")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lightbake attenuation [options] <dir>")
		os.Exit(1)
	}
	kind, ok := lighting.ParseModel(*model)
	if !ok {
		fail("unknown lighting model %q (have %s)", *model, strings.Join(lighting.ModelNames(), ", "))
	}
	vol := lighting.BuildAttenuationVolume(kind)
	f := exportFormat(cfg, *format)

	// Slices along z are tiled row by row into one square image.
	n := vol.Size
	cols := 1
	for cols*cols < n {
		cols++
	}
	for _, which := range []string{"omni", "spot"} {
		img := image.NewGray(image.Rect(0, 0, cols*n, cols*n))
		for z := 0; z < n; z++ {
			ox, oy := (z%cols)*n, (z/cols)*n
			for x := 0; x < n; x++ {
				for y := 0; y < n; y++ {
					omni, spot := vol.At(x, y, z)
					v := omni
					if which == "spot" {
						v = spot
					}
					img.Pix[img.PixOffset(ox+x, oy+y)] = v
				}
			}
		}
		path := filepath.Join(fs.Arg(0), fmt.Sprintf("%s_%s%s", *model, which, f.Ext()))
		if err := export.WriteImage(path, img, f); err != nil {
			fail("%v", err)
		}
		fmt.Printf("Wrote %s\n", path)
	}
}

func cmdConfig(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	write := fs.String("write", "", "Write the configuration to this file")
	save := fs.Bool("save", false, "Save the configuration to the user config directory")
	fs.Parse(args)

	switch {
	case *save:
		if err := cfg.Save(); err != nil {
			fail("%v", err)
		}
		fmt.Printf("Saved %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	case *write != "":
		if err := cfg.SaveTo(*write); err != nil {
			fail("%v", err)
		}
		fmt.Printf("Wrote %s\n", *write)
	default:
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fail("%v", err)
		}
		os.Stdout.Write(data)
	}
}
