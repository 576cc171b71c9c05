package main

import (
	"errors"
	"fmt"
	"image/color"

	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/config"
	"github.com/Faultbox/glr/internal/engine/assets"
	"github.com/Faultbox/glr/internal/engine/camera"
	"github.com/Faultbox/glr/internal/engine/debug"
	"github.com/Faultbox/glr/internal/engine/device/gldevice"
	"github.com/Faultbox/glr/internal/engine/input"
	"github.com/Faultbox/glr/internal/engine/lighting"
	"github.com/Faultbox/glr/internal/engine/material"
	"github.com/Faultbox/glr/internal/engine/model"
	"github.com/Faultbox/glr/internal/engine/record"
	"github.com/Faultbox/glr/internal/engine/scene"
	"github.com/Faultbox/glr/internal/engine/shader"
	"github.com/Faultbox/glr/internal/engine/texture"
	"github.com/Faultbox/glr/internal/engine/window"
	"github.com/Faultbox/glr/internal/logger"
	"github.com/Faultbox/glr/pkg/math"
)

var errQuit = errors.New("quit")

const stepSeconds = 0.1

type viewer struct {
	cfg *config.Config
	log *zap.Logger

	win     *window.Window
	dev     *gldevice.Device
	ctx     *assets.Context
	program *shader.Skinning
	input   *input.Input
	cam     *camera.Orbit
	shots   *debug.Screenshots

	scene    *scene.Scene
	node     *scene.ModelNode
	bindings model.Bindings

	clips   []string
	clip    int
	paused  bool
	loop    bool
	capture bool
	width   int
	height  int
}

func newViewer(cfg *config.Config) (*viewer, error) {
	v := &viewer{
		cfg:   cfg,
		log:   logger.Named("viewer"),
		input: input.New(),
		cam:   camera.NewOrbit(),
		shots: debug.NewScreenshots(cfg.Graphics.ScreenshotDir, "glr"),
		scene: scene.New(),
		loop:  cfg.Animation.Loop,
		bindings: model.Bindings{
			Texture:  cfg.Device.TextureUnit,
			Material: cfg.Device.MaterialBindPoint,
			Bones:    cfg.Device.BoneBindPoint,
		},
	}

	rig, err := record.LoadRig(cfg.Assets.RigPath)
	if err != nil {
		return nil, err
	}

	v.win, err = window.New(window.Config{
		Title:      "glr - " + rig.Name,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, err
	}

	v.dev, err = gldevice.New(gldevice.Config{ClearColor: cfg.Graphics.ClearColor, DepthTest: true})
	if err != nil {
		v.win.Close()
		return nil, err
	}
	v.width, v.height = v.win.Size()
	v.dev.Viewport(v.width, v.height)

	if err := v.load(rig); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

// skinSize is the largest bone table any mesh of rig uses.
func skinSize(rig *record.Rig) int {
	n := len(rig.Skin)
	for _, m := range rig.Meshes {
		n = max(n, len(m.Skin))
	}
	return max(n, 1)
}

func (v *viewer) load(rig *record.Rig) error {
	bones := skinSize(rig)
	if bones > v.cfg.Device.MaxBones {
		return fmt.Errorf("rig %q needs %d bones, device.max_bones is %d", rig.Name, bones, v.cfg.Device.MaxBones)
	}

	var err error
	v.program, err = shader.NewSkinning(bones, shader.Bindings{
		Bones:       uint32(max(v.bindings.Bones, 0)),
		Material:    uint32(max(v.bindings.Material, 0)),
		TextureUnit: max(v.bindings.Texture, 0),
	})
	if err != nil {
		return err
	}
	v.program.Use()
	v.program.SetLightDir(lighting.LightDir(v.cfg.Graphics.SunLongitude, v.cfg.Graphics.SunLatitude))

	v.ctx = assets.NewContext(v.dev, v.cfg.Device.MaxBones)
	m, err := rig.Instantiate(v.ctx, true)
	if err != nil {
		return err
	}
	if err := v.fillSlots(m); err != nil {
		return err
	}

	v.node = scene.NewModelNode(m)
	v.scene.Add(v.node)

	var points []math.Vec3
	for _, mr := range rig.Meshes {
		for _, p := range mr.Positions {
			points = append(points, math.Vec3{X: p[0], Y: p[1], Z: p[2]})
		}
	}
	v.cam.Fit(camera.Bounds(points))

	v.clips = m.Animations()
	if want := v.cfg.Animation.Clip; want != "" {
		for i, c := range v.clips {
			if c == want {
				v.clip = i
			}
		}
	}
	return v.play()
}

// fillSlots gives every slot a texture and material, so the program never
// samples an unbound unit or block. Configured texture paths override the
// rig's textures.
func (v *viewer) fillSlots(m *model.Model) error {
	var layers []texture.Image
	for _, p := range v.cfg.Assets.TexturePaths {
		img, err := texture.Load(p, true)
		if err != nil {
			return err
		}
		layers = append(layers, img)
	}
	override := len(layers) > 0
	if !override {
		layers = []texture.Image{texture.Solid(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})}
	}
	tex, err := v.ctx.AddTexture("viewer/texture", layers, true)
	if err != nil {
		return err
	}
	mat, err := v.ctx.AddMaterial("viewer/material", material.Default(), true)
	if err != nil {
		return err
	}

	for i, s := range m.Meshes() {
		if override || s.Texture.IsZero() {
			if err := m.SetTexture(i, tex); err != nil {
				return err
			}
		}
		if s.Material.IsZero() {
			if err := m.SetMaterial(i, mat); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *viewer) play() error {
	if len(v.clips) == 0 {
		v.node.StopAnimation()
		return nil
	}
	name := v.clips[v.clip]
	v.log.Info("playing", zap.String("clip", name), zap.Bool("loop", v.loop))
	v.win.SetTitle(fmt.Sprintf("glr - %s - %s", v.node.Name(), name))
	return v.node.PlayAnimation(name, 0, v.loop)
}

// Run drives the frame loop until the window closes.
func (v *viewer) Run() error {
	last := window.Ticks()
	for {
		if err := v.handleInput(); err != nil {
			return err
		}

		now := window.Ticks()
		dt := now - last
		last = now
		if !v.paused {
			v.scene.Update(dt * v.cfg.Animation.Speed)
		}

		if err := v.draw(); err != nil {
			return err
		}
		if v.capture {
			v.capture = false
			v.screenshot()
		}
		v.win.SwapBuffers()
	}
}

func (v *viewer) handleInput() error {
	quit := v.input.Update()
	for _, e := range v.input.Events() {
		switch e.Action {
		case input.ActionResize:
			v.width, v.height = v.win.Size()
			v.dev.Viewport(v.width, v.height)
		case input.ActionTogglePause:
			v.paused = !v.paused
		case input.ActionNextClip:
			if len(v.clips) > 0 {
				v.clip = (v.clip + 1) % len(v.clips)
				if err := v.play(); err != nil {
					return err
				}
			}
		case input.ActionStepBack:
			v.node.Advance(-stepSeconds)
		case input.ActionStepForward:
			v.node.Advance(stepSeconds)
		case input.ActionToggleLoop:
			v.loop = !v.loop
			if err := v.play(); err != nil {
				return err
			}
		case input.ActionRestart:
			v.node.SetAnimationTime(0)
		case input.ActionOrbit:
			v.cam.HandleDrag(e.DX, e.DY)
		case input.ActionZoom:
			v.cam.HandleZoom(e.DY)
		case input.ActionScreenshot:
			v.capture = true
		}
	}
	if quit {
		return errQuit
	}
	return nil
}

func (v *viewer) draw() error {
	v.dev.Clear()
	v.program.Use()
	v.program.SetViewProj(v.cam.ViewProj(float32(v.width) / float32(max(v.height, 1))))
	v.program.SetLayer(0)
	return v.scene.DrawAll(v.bindings, v.program.SetModel)
}

// screenshot captures the frame drawn but not yet presented.
func (v *viewer) screenshot() {
	name, err := v.shots.Capture(v.dev.ReadPixels(v.width, v.height), v.width, v.height)
	if err != nil {
		v.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("path", name))
}

// Close frees device memory before the context goes away.
func (v *viewer) Close() {
	if v.ctx != nil {
		if err := v.ctx.Close(); err != nil {
			v.log.Warn("freeing assets", zap.Error(err))
		}
	}
	if v.program != nil {
		v.program.Delete()
	}
	if v.win != nil {
		v.win.Close()
	}
}
