package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	gomath "math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/glr/internal/engine/animation"
	"github.com/Faultbox/glr/internal/engine/assets"
	"github.com/Faultbox/glr/internal/engine/device/memdevice"
	"github.com/Faultbox/glr/internal/engine/model"
	"github.com/Faultbox/glr/internal/engine/skeleton"
	"github.com/Faultbox/glr/pkg/math"
)

const slideRig = `
name: hero
bones:
  - name: root
    transform: {}
  - name: child
    parent: root
    transform:
      translation: [0, 1, 0]
skin:
  - name: root
    offset: [1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1]
  - name: child
    offset: [1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, -1, 0, 1]
meshes:
  - name: body
    positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]
    weights:
      - {ids: [0, 0, 0, 0], weights: [1, 0, 0, 0]}
      - {ids: [1, 0, 0, 0], weights: [1, 0, 0, 0]}
      - {ids: [0, 1, 0, 0], weights: [0.5, 0.5, 0, 0]}
    textures: [skin.png]
    material:
      diffuse: [1, 0, 0, 1]
      shininess: 16
animations:
  - name: slide
    duration: 1
    ticks_per_second: 1
    channels:
      - bone: child
        positions:
          - {t: 0, v: [0, 1, 0]}
          - {t: 1, v: [1, 1, 0]}
`

func writeRig(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skin.png"), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "hero.yaml")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndInstantiate(t *testing.T) {
	rig, err := LoadRig(writeRig(t, slideRig))
	if err != nil {
		t.Fatal(err)
	}

	dev := memdevice.New()
	ctx := assets.NewContext(dev, 8)
	m, err := rig.Instantiate(ctx, true)
	if err != nil {
		t.Fatal(err)
	}

	if got := m.Animations(); len(got) != 1 || got[0] != "slide" {
		t.Fatalf("animations = %v", got)
	}
	if _, ok := ctx.Animations.Lookup("hero/anim/slide"); !ok {
		t.Error("track should be registered under the rig-qualified name")
	}
	if got := dev.Live().Textures; got != 1 {
		t.Errorf("live textures = %d, want 1", got)
	}

	if err := m.PlayAnimation("slide", 0.5, true); err != nil {
		t.Fatal(err)
	}
	if err := m.Render(model.DefaultBindings()); err != nil {
		t.Fatal(err)
	}
	draws := dev.Draws()
	if len(draws) != 1 {
		t.Fatalf("got %d draws", len(draws))
	}
	if _, ok := draws[0].Textures[0]; !ok {
		t.Error("texture not bound on unit 0")
	}
	if got := len(draws[0].Uniforms[1]); got == 0 {
		t.Error("material not bound")
	}

	// child global = translate(0.5, 1, 0); offset undoes the bind height.
	b := draws[0].Uniforms[0][math.Mat4Size:]
	x := gomath.Float32frombits(binary.LittleEndian.Uint32(b[12*4:]))
	y := gomath.Float32frombits(binary.LittleEndian.Uint32(b[13*4:]))
	if x < 0.49999 || x > 0.50001 || y < -1e-5 || y > 1e-5 {
		t.Errorf("child skin translation = (%v, %v), want (0.5, 0)", x, y)
	}
}

func TestInstantiateTwiceReusesAssets(t *testing.T) {
	rig, err := LoadRig(writeRig(t, slideRig))
	if err != nil {
		t.Fatal(err)
	}
	dev := memdevice.New()
	ctx := assets.NewContext(dev, 8)
	if _, err := rig.Instantiate(ctx, true); err != nil {
		t.Fatal(err)
	}
	before := dev.Live()
	if _, err := rig.Instantiate(ctx, true); err != nil {
		t.Fatal(err)
	}
	if after := dev.Live(); after != before {
		t.Errorf("second instance allocated more: %+v -> %+v", before, after)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "weight outside skin",
			src: `
name: r
bones: [{name: root}]
skin: [{name: root, offset: [1,0,0,0,0,1,0,0,0,0,1,0,0,0,0,1]}]
meshes:
  - name: m
    positions: [[0,0,0]]
    weights: [{ids: [3,0,0,0], weights: [1,0,0,0]}]
`,
			want: ErrSkinIndex,
		},
		{
			name: "duplicate mesh",
			src: `
name: r
bones: [{name: root}]
meshes: [{name: m, positions: [[0,0,0]]}, {name: m, positions: [[0,0,0]]}]
`,
			want: ErrDuplicateName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(tt.src)); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Decode(strings.NewReader("name: r\nbonez: []\n")); err == nil {
		t.Error("unknown field should be rejected")
	}
}

func TestUnknownParent(t *testing.T) {
	_, err := ToHierarchy([]Bone{{Name: "root"}, {Name: "arm", Parent: "torso"}})
	if !errors.Is(err, ErrUnknownBone) {
		t.Errorf("got %v, want ErrUnknownBone", err)
	}
}

func TestTransformDefaults(t *testing.T) {
	if m := (Transform{}).Matrix4(); !m.IsIdentity() {
		t.Errorf("empty transform = %v, want identity", m)
	}
	tr := [3]float32{1, 2, 3}
	if got := (Transform{Translation: &tr}).Matrix4().Translation(); got != (math.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("translation = %v", got)
	}
}

func TestHierarchyRoundTrip(t *testing.T) {
	h, err := skeleton.New([]skeleton.Joint{
		{Name: "root", Transform: math.Translate(1, 0, 0), Parent: -1},
		{Name: "a", Transform: math.Scale(2, 2, 2), Parent: 0},
		{Name: "b", Transform: math.Identity(), Parent: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	back, err := ToHierarchy(FromHierarchy(h))
	if err != nil {
		t.Fatal(err)
	}
	for i, j := range h.Joints() {
		got := back.Joints()[i]
		if got != j {
			t.Errorf("joint %d = %+v, want %+v", i, got, j)
		}
	}
}

func TestTrackRoundTrip(t *testing.T) {
	track, err := animation.NewTrack("wave", 4, 30, map[string]animation.Channels{
		"arm": {
			Rotations: []animation.QuatKey{{Time: 0, Value: math.QuatIdentity()}, {Time: 4, Value: math.Quat{Z: 1}}},
		},
		"hand": {
			Scales: []animation.VectorKey{{Time: 2, Value: math.Vec3One()}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	rec := FromTrack(track)
	if len(rec.Channels) != 2 || rec.Channels[0].Bone != "arm" {
		t.Fatalf("channels = %+v", rec.Channels)
	}

	back, err := ToTrack(rec)
	if err != nil {
		t.Fatal(err)
	}
	if back.Duration() != 4 || back.TicksPerSecond() != 30 {
		t.Errorf("duration/tps = %v/%v", back.Duration(), back.TicksPerSecond())
	}
	ch, _ := back.Channels("arm")
	if len(ch.Rotations) != 2 || ch.Rotations[1].Value != (math.Quat{Z: 1}) {
		t.Errorf("arm rotations = %+v", ch.Rotations)
	}

	rec.Channels = append(rec.Channels, rec.Channels[0])
	if _, err := ToTrack(rec); !errors.Is(err, ErrDuplicateChannel) {
		t.Errorf("got %v, want ErrDuplicateChannel", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	rig, err := Decode(strings.NewReader(slideRig))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, rig); err != nil {
		t.Fatal(err)
	}
	again, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decoding encoded rig: %v\n%s", err, buf.String())
	}
	if len(again.Meshes[0].Weights) != 3 || again.Meshes[0].Material.Shininess != 16 {
		t.Errorf("mesh = %+v", again.Meshes[0])
	}
	if again.Animations[0].Channels[0].Positions[1].Value != [3]float32{1, 1, 0} {
		t.Errorf("keys = %+v", again.Animations[0].Channels[0].Positions)
	}

	path := filepath.Join(t.TempDir(), "out", "rig.yaml")
	if err := SaveRig(path, rig); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRig(path); err != nil {
		t.Fatal(err)
	}
}
