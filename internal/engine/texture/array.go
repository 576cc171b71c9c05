package texture

import (
	"fmt"
	"image/color"

	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/engine/device"
	"github.com/Faultbox/glr/internal/engine/resource"
	"github.com/Faultbox/glr/internal/logger"
)

// Array is a GPU-backed 2D texture array; every layer shares one size and
// format. Freeing an array that holds no device texture is an error.
type Array struct {
	resource.Lifecycle

	dev    device.Device
	name   string
	layers []Image

	desc device.TextureDesc
	// capacity is the layer count of the device storage; it can exceed
	// desc.Layers after the array shrinks.
	capacity int
	handle   device.Handle
}

var _ resource.Resource = (*Array)(nil)

// NewArray returns an unallocated array holding layers.
func NewArray(dev device.Device, name string, layers []Image) *Array {
	a := &Array{
		Lifecycle: resource.NewLifecycle("texture", name, resource.FreeStrict),
		dev:       dev,
		name:      name,
		layers:    layers,
	}
	if len(layers) > 0 {
		first := layers[0]
		a.desc = device.TextureDesc{Width: first.Width, Height: first.Height, Layers: len(layers), Format: first.Format}
	}
	return a
}

// Name returns the texture name.
func (a *Array) Name() string { return a.name }

// Layers returns the local layers.
func (a *Array) Layers() []Image { return a.layers }

// Desc returns the size and format of the array. It survives FreeLocalData.
func (a *Array) Desc() device.TextureDesc { return a.desc }

// IsLocalDataLoaded reports whether local layers are present.
func (a *Array) IsLocalDataLoaded() bool { return len(a.layers) > 0 }

// Handle returns the device texture, or device.None.
func (a *Array) Handle() device.Handle { return a.handle }

// SetLayers replaces every layer.
func (a *Array) SetLayers(layers []Image) {
	a.layers = layers
	a.MarkDirty()
}

// AddLayer appends a layer.
func (a *Array) AddLayer(img Image) {
	a.layers = append(a.layers, img)
	a.MarkDirty()
}

// describe checks that the layers can be uploaded together.
func (a *Array) describe() (device.TextureDesc, error) {
	first := a.layers[0]
	if first.Format.BytesPerPixel() == 0 {
		return device.TextureDesc{}, a.FormatError(resource.ErrUnknownFormat, "layer 0")
	}
	for i, l := range a.layers[1:] {
		if l.Format != first.Format {
			return device.TextureDesc{}, a.FormatError(resource.ErrMixedFormats,
				fmt.Sprintf("layer %d is %s, layer 0 is %s", i+1, l.Format, first.Format))
		}
		if l.Width != first.Width || l.Height != first.Height {
			return device.TextureDesc{}, a.FormatError(resource.ErrMixedSizes,
				fmt.Sprintf("layer %d is %dx%d, layer 0 is %dx%d", i+1, l.Width, l.Height, first.Width, first.Height))
		}
	}
	for i, l := range a.layers {
		if len(l.Data) < l.Width*l.Height*l.Format.BytesPerPixel() {
			return device.TextureDesc{}, a.FormatError(ErrShortLayer,
				fmt.Sprintf("layer %d holds %d bytes", i, len(l.Data)))
		}
	}
	return device.TextureDesc{Width: first.Width, Height: first.Height, Layers: len(a.layers), Format: first.Format}, nil
}

// AllocateVideoMemory creates the device texture. An array without layers
// gets a single transparent 1x1 layer so it can still be bound.
func (a *Array) AllocateVideoMemory() error {
	if err := a.BeginAllocate(); err != nil {
		return err
	}
	if len(a.layers) == 0 {
		logger.Warn("allocating texture array with no data", zap.String("resource", a.name))
		a.layers = []Image{Solid(1, 1, color.RGBA{})}
	}
	desc, err := a.describe()
	if err != nil {
		return err
	}
	if err := a.create(desc); err != nil {
		return err
	}
	a.Allocated()
	return nil
}

func (a *Array) create(desc device.TextureDesc) error {
	h := a.dev.CreateTextureArray(desc)
	if err := a.CheckDevice(a.dev, "allocate"); err != nil {
		a.dev.ReleaseTexture(h)
		return err
	}
	a.handle = h
	a.desc = desc
	a.capacity = desc.Layers
	return nil
}

// PushToVideoMemory uploads every layer. A change of size or format, or more
// layers than the storage holds, recreates the device texture first; fewer
// layers reuse it.
func (a *Array) PushToVideoMemory() error {
	if err := a.BeginPush(); err != nil {
		return err
	}
	if a.State() == resource.PushedCurrent {
		return nil
	}
	if len(a.layers) == 0 {
		return &resource.StateError{Resource: "texture " + a.name, Op: "push", State: a.State(), Err: ErrNoLocalData}
	}
	desc, err := a.describe()
	if err != nil {
		return err
	}

	if a.needsRebuild(desc) {
		logger.Debug("recreating texture array",
			zap.String("resource", a.name),
			zap.Int("layers", desc.Layers),
			zap.Int("width", desc.Width),
			zap.Int("height", desc.Height),
		)
		a.dev.ReleaseTexture(a.handle)
		a.handle = device.None
		if err := a.create(desc); err != nil {
			a.capacity = 0
			a.Freed()
			return err
		}
	}

	a.desc = desc
	for i, l := range a.layers {
		a.dev.WriteTextureLayer(a.handle, i, desc, l.Data)
	}
	if err := a.CheckDevice(a.dev, "push"); err != nil {
		return err
	}
	a.Pushed()
	return nil
}

func (a *Array) needsRebuild(desc device.TextureDesc) bool {
	return desc.Width != a.desc.Width || desc.Height != a.desc.Height ||
		desc.Format != a.desc.Format || desc.Layers > a.capacity
}

// PullFromVideoMemory reads the layers in use back into local data.
func (a *Array) PullFromVideoMemory() error {
	if err := a.BeginPull(); err != nil {
		return err
	}
	storage := a.desc
	storage.Layers = a.capacity
	data := make([]byte, storage.Size())
	a.dev.ReadTextureLayers(a.handle, storage, data)
	if err := a.CheckDevice(a.dev, "pull"); err != nil {
		return err
	}

	size := a.desc.LayerSize()
	layers := make([]Image, a.desc.Layers)
	for i := range layers {
		layers[i] = Image{
			Width:  a.desc.Width,
			Height: a.desc.Height,
			Format: a.desc.Format,
			Data:   data[i*size : (i+1)*size : (i+1)*size],
		}
	}
	a.layers = layers
	return nil
}

// FreeVideoMemory releases the device texture. It fails when there is none.
func (a *Array) FreeVideoMemory() error {
	ok, err := a.BeginFree()
	if !ok {
		return err
	}
	a.dev.ReleaseTexture(a.handle)
	a.handle = device.None
	a.capacity = 0
	a.Freed()
	return nil
}

// FreeLocalData drops the pixels. Desc still reports size and format.
func (a *Array) FreeLocalData() {
	a.layers = nil
}

// Bind binds the array to a texture unit.
func (a *Array) Bind(unit uint32) error {
	if err := a.BeginBind(); err != nil {
		return err
	}
	a.dev.BindTextureArray(a.handle, unit)
	return nil
}
