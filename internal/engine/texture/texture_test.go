package texture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"

	"github.com/Faultbox/glr/internal/engine/device"
	"github.com/Faultbox/glr/internal/engine/device/memdevice"
	"github.com/Faultbox/glr/internal/engine/resource"
)

func TestArrayLifecycle(t *testing.T) {
	dev := memdevice.New()
	red := Solid(2, 2, color.RGBA{R: 255, A: 255})
	blue := Solid(2, 2, color.RGBA{B: 255, A: 255})
	a := NewArray(dev, "skins", []Image{red, blue})

	if err := a.AllocateVideoMemory(); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := a.AllocateVideoMemory(); !errors.Is(err, resource.ErrAlreadyAllocated) {
		t.Fatalf("second allocate: got %v", err)
	}
	if err := a.PushToVideoMemory(); err != nil {
		t.Fatalf("push: %v", err)
	}

	a.FreeLocalData()
	if a.IsLocalDataLoaded() {
		t.Error("layers should be dropped")
	}
	if d := a.Desc(); d.Width != 2 || d.Height != 2 || d.Layers != 2 || d.Format != device.FormatRGBA8 {
		t.Errorf("Desc after FreeLocalData = %+v", d)
	}

	if err := a.PullFromVideoMemory(); err != nil {
		t.Fatalf("pull: %v", err)
	}
	layers := a.Layers()
	if len(layers) != 2 || !bytes.Equal(layers[1].Data, blue.Data) {
		t.Errorf("pulled layers do not match the upload")
	}

	if err := a.Bind(3); err != nil {
		t.Errorf("bind: %v", err)
	}
}

func TestArrayFreeIsStrict(t *testing.T) {
	dev := memdevice.New()
	a := NewArray(dev, "skins", []Image{Solid(1, 1, color.RGBA{A: 255})})

	var se *resource.StateError
	if err := a.FreeVideoMemory(); !errors.As(err, &se) || !errors.Is(err, resource.ErrNoBuffer) {
		t.Fatalf("free before allocate: got %v", err)
	}

	if err := a.AllocateVideoMemory(); err != nil {
		t.Fatal(err)
	}
	if err := a.FreeVideoMemory(); err != nil {
		t.Fatalf("free: %v", err)
	}
	if err := a.FreeVideoMemory(); !errors.Is(err, resource.ErrNoBuffer) {
		t.Errorf("double free: got %v, want ErrNoBuffer", err)
	}
	if dev.Live().Textures != 0 {
		t.Error("texture leaked")
	}
}

func TestArrayRejectsMixedLayers(t *testing.T) {
	gray := Image{Width: 2, Height: 2, Format: device.FormatR8, Data: make([]byte, 4)}
	tests := []struct {
		name   string
		layers []Image
		want   error
	}{
		{"formats", []Image{Solid(2, 2, color.RGBA{}), gray}, resource.ErrMixedFormats},
		{"sizes", []Image{Solid(2, 2, color.RGBA{}), Solid(4, 4, color.RGBA{})}, resource.ErrMixedSizes},
		{"unknown", []Image{{Width: 1, Height: 1, Format: device.FormatUnknown}}, resource.ErrUnknownFormat},
		{"short", []Image{{Width: 4, Height: 4, Format: device.FormatRGBA8, Data: make([]byte, 3)}}, ErrShortLayer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := memdevice.New()
			a := NewArray(dev, tt.name, tt.layers)
			err := a.AllocateVideoMemory()
			var fe *resource.FormatError
			if !errors.As(err, &fe) || !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want FormatError wrapping %v", err, tt.want)
			}
			if a.State() != resource.Unallocated || dev.Live().Textures != 0 {
				t.Error("rejected array should not hold a texture")
			}
		})
	}
}

func TestArrayEmptyGetsPlaceholder(t *testing.T) {
	dev := memdevice.New()
	a := NewArray(dev, "empty", nil)
	if err := a.AllocateVideoMemory(); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if d, ok := dev.Texture(a.Handle()); !ok || d.Width != 1 || d.Layers != 1 {
		t.Errorf("placeholder texture = %+v, %v", d, ok)
	}
}

func TestArrayGrowsOnPush(t *testing.T) {
	dev := memdevice.New()
	a := NewArray(dev, "skins", []Image{Solid(2, 2, color.RGBA{A: 255})})
	if err := a.AllocateVideoMemory(); err != nil {
		t.Fatal(err)
	}
	a.AddLayer(Solid(2, 2, color.RGBA{G: 255, A: 255}))
	if !a.IsDirty() {
		t.Fatal("AddLayer should mark dirty")
	}
	if err := a.PushToVideoMemory(); err != nil {
		t.Fatalf("push: %v", err)
	}
	if d, _ := dev.Texture(a.Handle()); d.Layers != 2 {
		t.Errorf("device texture has %d layers, want 2", d.Layers)
	}
	if dev.Live().Textures != 1 {
		t.Errorf("live textures = %d, want 1", dev.Live().Textures)
	}
}

func TestArrayShrinkReusesStorage(t *testing.T) {
	dev := memdevice.New()
	red := Solid(2, 2, color.RGBA{R: 255, A: 255})
	green := Solid(2, 2, color.RGBA{G: 255, A: 255})
	a := NewArray(dev, "skins", []Image{red, green})
	if err := a.AllocateVideoMemory(); err != nil {
		t.Fatal(err)
	}
	if err := a.PushToVideoMemory(); err != nil {
		t.Fatal(err)
	}
	h := a.Handle()

	a.SetLayers([]Image{green})
	if err := a.PushToVideoMemory(); err != nil {
		t.Fatalf("push: %v", err)
	}
	if a.Handle() != h {
		t.Error("shrinking should keep the device texture")
	}
	if d, _ := dev.Texture(h); d.Layers != 2 {
		t.Errorf("storage has %d layers, want 2", d.Layers)
	}
	if a.Desc().Layers != 1 {
		t.Errorf("Desc().Layers = %d, want 1", a.Desc().Layers)
	}

	a.FreeLocalData()
	if err := a.PullFromVideoMemory(); err != nil {
		t.Fatalf("pull: %v", err)
	}
	layers := a.Layers()
	if len(layers) != 1 {
		t.Fatalf("pulled %d layers, want 1", len(layers))
	}
	if !bytes.Equal(layers[0].Data, green.Data) {
		t.Errorf("pulled layer starts %v, want green", layers[0].Data[:4])
	}

	// Growing past the storage recreates it.
	a.SetLayers([]Image{red, green, red})
	if err := a.PushToVideoMemory(); err != nil {
		t.Fatalf("grow: %v", err)
	}
	if d, _ := dev.Texture(a.Handle()); d.Layers != 3 {
		t.Errorf("storage has %d layers, want 3", d.Layers)
	}
	if dev.Live().Textures != 1 {
		t.Errorf("live textures = %d, want 1", dev.Live().Textures)
	}
}

func TestAllocateDeviceError(t *testing.T) {
	dev := memdevice.New()
	dev.FailNext(memdevice.OpCreateTextureArray, device.CodeOutOfMemory)
	a := NewArray(dev, "big", []Image{Solid(2, 2, color.RGBA{})})

	var de *resource.DeviceError
	if err := a.AllocateVideoMemory(); !errors.As(err, &de) {
		t.Fatalf("got %v, want DeviceError", err)
	}
	if dev.Live().Textures != 0 || a.Handle() != device.None {
		t.Error("failed texture should be released")
	}
}

func TestDecodePNGWithMagentaKey(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, color.RGBA{R: 255, B: 255, A: 255})
	src.SetRGBA(1, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	img, err := Decode(&buf, true)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Width != 2 || img.Height != 1 || img.Format != device.FormatRGBA8 {
		t.Fatalf("decoded %dx%d %s", img.Width, img.Height, img.Format)
	}
	if !bytes.Equal(img.Data, []byte{0, 0, 0, 0, 10, 20, 30, 255}) {
		t.Errorf("pixels = %v", img.Data)
	}
}

func TestLoadEveryFormat(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(src.Pix); i += 4 {
		copy(src.Pix[i:], []byte{10, 20, 30, 255})
	}

	encoders := map[string]func(io.Writer, image.Image) error{
		"skin.png":  png.Encode,
		"skin.bmp":  bmp.Encode,
		"skin.tga":  tga.Encode,
		"skin.webp": func(w io.Writer, m image.Image) error { return nativewebp.Encode(w, m, nil) },
	}
	dir := t.TempDir()
	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			f, err := os.Create(path)
			if err != nil {
				t.Fatal(err)
			}
			if err := encode(f, src); err != nil {
				f.Close()
				t.Fatalf("encode: %v", err)
			}
			f.Close()

			img, err := Load(path, false)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if img.Width != 2 || img.Height != 2 {
				t.Fatalf("size %dx%d", img.Width, img.Height)
			}
			if !bytes.Equal(img.Data[:4], []byte{10, 20, 30, 255}) {
				t.Errorf("first pixel = %v", img.Data[:4])
			}
		})
	}
}

func TestDecodeGarbageFails(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("not an image")), false); err == nil {
		t.Error("expected error")
	}
}

// far reports whether v is more than 1 away from want.
func far(v, want byte) bool {
	d := int(v) - int(want)
	return d > 1 || d < -1
}

func TestResizeAndWebP(t *testing.T) {
	img := Solid(4, 4, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	small, err := Resize(img, 2, 2)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if small.Width != 2 || len(small.Data) != 16 {
		t.Fatalf("resized to %dx%d with %d bytes", small.Width, small.Height, len(small.Data))
	}
	if far(small.Data[0], 200) || far(small.Data[3], 255) {
		t.Errorf("solid color should survive resizing, got %v", small.Data[:4])
	}

	var buf bytes.Buffer
	if err := WriteWebP(&buf, small); err != nil {
		t.Fatalf("WriteWebP: %v", err)
	}
	back, err := Decode(&buf, false)
	if err != nil {
		t.Fatalf("decode webp: %v", err)
	}
	if back.Width != 2 || back.Height != 2 {
		t.Errorf("webp round trip size %dx%d", back.Width, back.Height)
	}

	if _, err := Resize(Image{Format: device.FormatRGB8}, 1, 1); err == nil {
		t.Error("RGB8 resize should fail")
	}
}
