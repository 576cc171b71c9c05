// Package material keeps surface colors in a std140 uniform buffer.
package material

import (
	"github.com/Faultbox/glr/internal/engine/device"
	"github.com/Faultbox/glr/internal/engine/resource"
	"github.com/Faultbox/glr/pkg/math"
)

// Properties is the uniform block layout, std140.
type Properties struct {
	Ambient   math.Vec4
	Diffuse   math.Vec4
	Specular  math.Vec4
	Emission  math.Vec4
	Shininess float32
	Strength  float32
	_         [2]float32
}

// Default returns a plain white diffuse material.
func Default() Properties {
	return Properties{
		Ambient:   math.Vec4{X: 0.2, Y: 0.2, Z: 0.2, W: 1},
		Diffuse:   math.Splat4(1),
		Specular:  math.Vec4{W: 1},
		Emission:  math.Vec4{W: 1},
		Shininess: 0,
		Strength:  1,
	}
}

// Size is the byte size of the uniform block.
var Size = device.SizeOf[Properties](1)

// Material is a GPU-backed uniform block. Freeing it twice is a no-op.
type Material struct {
	resource.Lifecycle

	dev    device.Device
	name   string
	props  Properties
	handle device.Handle
}

var _ resource.Resource = (*Material)(nil)

// New returns an unallocated material.
func New(dev device.Device, name string, props Properties) *Material {
	return &Material{
		Lifecycle: resource.NewLifecycle("material", name, resource.FreeTolerant),
		dev:       dev,
		name:      name,
		props:     props,
	}
}

// Name returns the material name.
func (m *Material) Name() string { return m.name }

// Properties returns the local values.
func (m *Material) Properties() Properties { return m.props }

// SetProperties replaces the local values.
func (m *Material) SetProperties(p Properties) {
	m.props = p
	m.MarkDirty()
}

// Handle returns the uniform buffer, or device.None.
func (m *Material) Handle() device.Handle { return m.handle }

// AllocateVideoMemory creates the uniform buffer.
func (m *Material) AllocateVideoMemory() error {
	if err := m.BeginAllocate(); err != nil {
		return err
	}
	h := m.dev.CreateBuffer(device.UniformBuffer, Size)
	if err := m.CheckDevice(m.dev, "allocate"); err != nil {
		m.dev.ReleaseBuffer(h)
		return err
	}
	m.handle = h
	m.Allocated()
	return nil
}

// PushToVideoMemory uploads the properties.
func (m *Material) PushToVideoMemory() error {
	if err := m.BeginPush(); err != nil {
		return err
	}
	if m.State() == resource.PushedCurrent {
		return nil
	}
	m.dev.WriteBuffer(m.handle, 0, device.Bytes([]Properties{m.props}))
	if err := m.CheckDevice(m.dev, "push"); err != nil {
		return err
	}
	m.Pushed()
	return nil
}

// PullFromVideoMemory reads the properties back.
func (m *Material) PullFromVideoMemory() error {
	if err := m.BeginPull(); err != nil {
		return err
	}
	dst := make([]Properties, 1)
	m.dev.ReadBuffer(m.handle, 0, device.Bytes(dst))
	if err := m.CheckDevice(m.dev, "pull"); err != nil {
		return err
	}
	m.props = dst[0]
	return nil
}

// FreeVideoMemory releases the uniform buffer.
func (m *Material) FreeVideoMemory() error {
	ok, err := m.BeginFree()
	if !ok {
		return err
	}
	m.dev.ReleaseBuffer(m.handle)
	m.handle = device.None
	m.Freed()
	return nil
}

// FreeLocalData resets the local values to Default. The uploaded block is
// left as is.
func (m *Material) FreeLocalData() {
	m.props = Default()
}

// Bind attaches the block to a uniform binding point.
func (m *Material) Bind(bindPoint uint32) error {
	if err := m.BeginBind(); err != nil {
		return err
	}
	m.dev.BindUniformBuffer(m.handle, bindPoint)
	return nil
}
