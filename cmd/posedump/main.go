// posedump evaluates rig animations on the in-memory device and prints the
// skinning matrices a GPU would receive.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	gomath "math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/engine/assets"
	"github.com/Faultbox/glr/internal/engine/device/memdevice"
	"github.com/Faultbox/glr/internal/engine/model"
	"github.com/Faultbox/glr/internal/engine/record"
	"github.com/Faultbox/glr/internal/engine/skeleton"
	"github.com/Faultbox/glr/internal/engine/texture"
	"github.com/Faultbox/glr/internal/logger"
	"github.com/Faultbox/glr/pkg/math"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	level := os.Getenv("GLR_LOG")
	if level == "" {
		level = "warn"
	}
	if err := logger.Init(level, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "info":
		err = cmdInfo(args)
	case "pose":
		err = cmdPose(args)
	case "textures", "tex":
		err = cmdTextures(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`posedump - skeletal pose inspector

Usage:
  posedump <command> [options]

Commands:
  info <rig.yaml>                          Show bones, meshes and animations
  pose [options] <rig.yaml> <clip> <sec>.. Print skinning matrices at times
  textures [options] <rig.yaml> <outdir>   Round-trip texture layers through
                                           the device and save them as WebP

Pose options:
  -from, -to   Tick window to clamp playback to
  -once        Stop at the last tick instead of looping

Textures options:
  -size WxH    Resize layers before saving

Set GLR_LOG=debug to see device activity.

Examples:
  posedump info hero.yaml
  posedump pose hero.yaml walk 0 0.5 1.25
  posedump pose -from 10 -to 20 hero.yaml run 0.1 2
  posedump textures -size 64x64 hero.yaml ./out`)
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: posedump info <rig.yaml>")
	}
	rig, err := record.LoadRig(args[0])
	if err != nil {
		return err
	}
	h, err := record.ToHierarchy(rig.Bones)
	if err != nil {
		return err
	}

	fmt.Printf("Rig:    %s\n", rig.Name)
	fmt.Printf("Bones:  %d\n", h.Len())
	depth := make([]int, h.Len())
	h.Walk(func(i int, b *skeleton.Bone) {
		if b.Parent >= 0 {
			depth[i] = depth[b.Parent] + 1
		}
		fmt.Printf("  %s%s  t=%v\n", strings.Repeat("  ", depth[i]), b.Name, b.Transform.Translation())
	})

	fmt.Printf("Skin:   %d slots\n", len(rig.Skin))
	fmt.Printf("Meshes: %d\n", len(rig.Meshes))
	for _, m := range rig.Meshes {
		fmt.Printf("  %-16s %6d vertices  %d texture layers\n", m.Name, len(m.Positions), len(m.Textures))
	}
	fmt.Printf("Animations: %d\n", len(rig.Animations))
	for _, a := range rig.Animations {
		fmt.Printf("  %-16s %8.2f ticks @ %g/s  %d channels\n", a.Name, a.Duration, a.TicksPerSecond, len(a.Channels))
	}
	return nil
}

func cmdPose(args []string) error {
	fs := flag.NewFlagSet("pose", flag.ExitOnError)
	from := fs.Float64("from", 0, "Window start tick")
	to := fs.Float64("to", 0, "Window end tick")
	once := fs.Bool("once", false, "Do not loop")
	fs.Parse(args)

	if fs.NArg() < 3 {
		return fmt.Errorf("usage: posedump pose [options] <rig.yaml> <clip> <seconds>...")
	}
	rig, err := record.LoadRig(fs.Arg(0))
	if err != nil {
		return err
	}
	clip := fs.Arg(1)

	var times []float64
	for _, s := range fs.Args()[2:] {
		t, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("time %q: %w", s, err)
		}
		times = append(times, t)
	}

	dev := memdevice.New()
	ctx := assets.NewContext(dev, len(rig.Skin))
	defer ctx.Close()

	m, err := rig.Instantiate(ctx, true)
	if err != nil {
		return err
	}
	if *from != 0 || *to != 0 {
		err = m.PlayAnimationRange(clip, *from, *to, !*once)
	} else {
		err = m.PlayAnimation(clip, 0, !*once)
	}
	if err != nil {
		return err
	}

	slots := m.Meshes()
	for _, t := range times {
		m.SetAnimationTime(t)
		dev.ResetDraws()
		if err := m.Render(model.DefaultBindings()); err != nil {
			return err
		}
		fmt.Printf("t=%gs\n", t)
		for i, d := range dev.Draws() {
			msh, _ := ctx.Mesh(slots[i].Mesh)
			fmt.Printf("  mesh %s\n", msh.Name())
			printPose(msh.BoneData(), decodeMatrices(d.Uniforms[uint32(model.DefaultBindings().Bones)]))
		}
	}
	return nil
}

func printPose(bones *skeleton.BoneData, pose []math.Mat4) {
	for i := 0; i < bones.Len() && i < len(pose); i++ {
		fmt.Printf("    [%d] %s\n", i, bones.Name(i))
		p := pose[i]
		for row := 0; row < 4; row++ {
			fmt.Printf("      % .5f % .5f % .5f % .5f\n", p[row], p[4+row], p[8+row], p[12+row])
		}
	}
}

// decodeMatrices reads a uniform buffer snapshot as std140 mat4s.
func decodeMatrices(b []byte) []math.Mat4 {
	out := make([]math.Mat4, len(b)/math.Mat4Size)
	for i := range out {
		for j := range out[i] {
			off := i*math.Mat4Size + j*4
			out[i][j] = gomath.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
		}
	}
	return out
}

func cmdTextures(args []string) error {
	fs := flag.NewFlagSet("textures", flag.ExitOnError)
	size := fs.String("size", "", "Resize layers to WxH")
	fs.Parse(args)

	if fs.NArg() < 2 {
		return fmt.Errorf("usage: posedump textures [options] <rig.yaml> <outdir>")
	}
	width, height, err := parseSize(*size)
	if err != nil {
		return err
	}
	rig, err := record.LoadRig(fs.Arg(0))
	if err != nil {
		return err
	}
	outDir := fs.Arg(1)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	ctx := assets.NewContext(memdevice.New(), len(rig.Skin))
	defer ctx.Close()
	if _, err := rig.Instantiate(ctx, true); err != nil {
		return err
	}

	written := 0
	var walkErr error
	ctx.Textures.Each(func(_ assets.Handle[*texture.Array], tex *texture.Array) {
		if walkErr != nil {
			return
		}
		// Read back what the device holds rather than the decoded files.
		tex.FreeLocalData()
		if walkErr = tex.PullFromVideoMemory(); walkErr != nil {
			return
		}
		base := strings.ReplaceAll(tex.Name(), "/", "_")
		for i, layer := range tex.Layers() {
			if width > 0 {
				if layer, walkErr = texture.Resize(layer, width, height); walkErr != nil {
					return
				}
			}
			path := filepath.Join(outDir, fmt.Sprintf("%s_%d.webp", base, i))
			if walkErr = writeWebP(path, layer); walkErr != nil {
				return
			}
			fmt.Printf("  %s (%dx%d)\n", path, layer.Width, layer.Height)
			written++
		}
	})
	if walkErr != nil {
		return walkErr
	}
	fmt.Printf("Wrote %d layers\n", written)
	return nil
}

func writeWebP(path string, img texture.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := texture.WriteWebP(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseSize(s string) (int, int, error) {
	if s == "" {
		return 0, 0, nil
	}
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q: want WxH", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("size %q: must be positive", s)
	}
	return width, height, nil
}
