// Package memdevice is a device.Device that keeps every object in host
// memory. It backs headless tools and tests, and can be told to fail the next
// call of a given operation.
package memdevice

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/engine/device"
	"github.com/Faultbox/glr/internal/logger"
)

// Op names a device operation for failure injection.
type Op string

const (
	OpCreateBuffer       Op = "CreateBuffer"
	OpWriteBuffer        Op = "WriteBuffer"
	OpReadBuffer         Op = "ReadBuffer"
	OpCreateVertexArray  Op = "CreateVertexArray"
	OpAttachVertexBuffer Op = "AttachVertexBuffer"
	OpCreateTextureArray Op = "CreateTextureArray"
	OpWriteTextureLayer  Op = "WriteTextureLayer"
	OpReadTextureLayers  Op = "ReadTextureLayers"
)

type buffer struct {
	target device.Target
	data   []byte
}

type textureArray struct {
	desc device.TextureDesc
	data []byte
}

// DrawCall records one DrawArrays call and the bindings in effect.
type DrawCall struct {
	VAO         device.Handle
	VertexCount int
	Uniforms    map[uint32][]byte
	Textures    map[uint32]device.Handle
}

// Counts is the number of live objects of each kind.
type Counts struct {
	Buffers      int
	VertexArrays int
	Textures     int
}

// Device is an in-memory device.Device. It is safe for concurrent use,
// although the resources driving it are not.
type Device struct {
	mu sync.Mutex

	next     device.Handle
	buffers  map[device.Handle]*buffer
	vaos     map[device.Handle][]device.Attribute
	textures map[device.Handle]*textureArray

	uniforms map[uint32]device.Handle
	units    map[uint32]device.Handle
	draws    []DrawCall

	pending device.Error
	fail    map[Op]uint32
}

// New returns an empty device.
func New() *Device {
	return &Device{
		buffers:  make(map[device.Handle]*buffer),
		vaos:     make(map[device.Handle][]device.Attribute),
		textures: make(map[device.Handle]*textureArray),
		uniforms: make(map[uint32]device.Handle),
		units:    make(map[uint32]device.Handle),
		fail:     make(map[Op]uint32),
	}
}

var _ device.Device = (*Device)(nil)

// FailNext makes the next call of op record code as the device error.
// Create calls still hand out a handle, as a real driver does when storage
// allocation fails after the name was generated.
func (d *Device) FailNext(op Op, code uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[op] = code
}

// injected consumes a pending failure for op. Callers hold d.mu.
func (d *Device) injected(op Op) bool {
	code, ok := d.fail[op]
	if !ok {
		return false
	}
	delete(d.fail, op)
	d.record(code)
	logger.Debug("memdevice: injected failure", zap.String("op", string(op)), zap.String("error", device.ErrorName(code)))
	return true
}

// record keeps the first error until Error is called, like glGetError.
func (d *Device) record(code uint32) {
	if d.pending.OK() {
		d.pending = device.NewError(code)
	}
}

func (d *Device) newHandle() device.Handle {
	d.next++
	return d.next
}

func (d *Device) CreateBuffer(target device.Target, size int) device.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	if size < 0 {
		d.record(device.CodeInvalidValue)
		return device.None
	}
	h := d.newHandle()
	if d.injected(OpCreateBuffer) {
		d.buffers[h] = &buffer{target: target}
		return h
	}
	d.buffers[h] = &buffer{target: target, data: make([]byte, size)}
	return h
}

func (d *Device) WriteBuffer(h device.Handle, offset int, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.injected(OpWriteBuffer) {
		return
	}
	b, ok := d.buffers[h]
	if !ok {
		d.record(device.CodeInvalidOperation)
		return
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		d.record(device.CodeInvalidValue)
		return
	}
	copy(b.data[offset:], data)
}

func (d *Device) ReadBuffer(h device.Handle, offset int, dst []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.injected(OpReadBuffer) {
		return
	}
	b, ok := d.buffers[h]
	if !ok {
		d.record(device.CodeInvalidOperation)
		return
	}
	if offset < 0 || offset+len(dst) > len(b.data) {
		d.record(device.CodeInvalidValue)
		return
	}
	copy(dst, b.data[offset:])
}

func (d *Device) ReleaseBuffer(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Releasing zero or an unknown name is silently ignored.
	delete(d.buffers, h)
	for bp, bound := range d.uniforms {
		if bound == h {
			delete(d.uniforms, bp)
		}
	}
}

func (d *Device) CreateVertexArray() device.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := d.newHandle()
	d.vaos[h] = nil
	d.injected(OpCreateVertexArray)
	return h
}

func (d *Device) AttachVertexBuffer(vao, buf device.Handle, attr device.Attribute) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.injected(OpAttachVertexBuffer) {
		return
	}
	attrs, ok := d.vaos[vao]
	if !ok {
		d.record(device.CodeInvalidOperation)
		return
	}
	if _, ok := d.buffers[buf]; !ok {
		d.record(device.CodeInvalidOperation)
		return
	}
	d.vaos[vao] = append(attrs, attr)
}

func (d *Device) ReleaseVertexArray(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.vaos, h)
}

func (d *Device) CreateTextureArray(desc device.TextureDesc) device.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.Format.BytesPerPixel() == 0 {
		d.record(device.CodeInvalidEnum)
		return device.None
	}
	if desc.Width <= 0 || desc.Height <= 0 || desc.Layers <= 0 {
		d.record(device.CodeInvalidValue)
		return device.None
	}
	h := d.newHandle()
	if d.injected(OpCreateTextureArray) {
		d.textures[h] = &textureArray{desc: desc}
		return h
	}
	d.textures[h] = &textureArray{desc: desc, data: make([]byte, desc.Size())}
	return h
}

func (d *Device) WriteTextureLayer(h device.Handle, layer int, desc device.TextureDesc, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.injected(OpWriteTextureLayer) {
		return
	}
	tex, ok := d.textures[h]
	if !ok {
		d.record(device.CodeInvalidOperation)
		return
	}
	if desc.Format != tex.desc.Format {
		d.record(device.CodeInvalidOperation)
		return
	}
	size := tex.desc.LayerSize()
	if layer < 0 || layer >= tex.desc.Layers || len(data) < size ||
		desc.Width != tex.desc.Width || desc.Height != tex.desc.Height {
		d.record(device.CodeInvalidValue)
		return
	}
	copy(tex.data[layer*size:(layer+1)*size], data)
}

func (d *Device) ReadTextureLayers(h device.Handle, desc device.TextureDesc, dst []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.injected(OpReadTextureLayers) {
		return
	}
	tex, ok := d.textures[h]
	if !ok {
		d.record(device.CodeInvalidOperation)
		return
	}
	if desc.Format != tex.desc.Format || len(dst) < len(tex.data) {
		d.record(device.CodeInvalidOperation)
		return
	}
	copy(dst, tex.data)
}

func (d *Device) ReleaseTexture(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.textures, h)
	for unit, bound := range d.units {
		if bound == h {
			delete(d.units, unit)
		}
	}
}

func (d *Device) BindUniformBuffer(h device.Handle, bindPoint uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if h == device.None {
		delete(d.uniforms, bindPoint)
		return
	}
	b, ok := d.buffers[h]
	if !ok || b.target != device.UniformBuffer {
		d.record(device.CodeInvalidOperation)
		return
	}
	d.uniforms[bindPoint] = h
}

func (d *Device) BindTextureArray(h device.Handle, unit uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if h == device.None {
		delete(d.units, unit)
		return
	}
	if _, ok := d.textures[h]; !ok {
		d.record(device.CodeInvalidOperation)
		return
	}
	d.units[unit] = h
}

func (d *Device) DrawArrays(vao device.Handle, vertexCount int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.vaos[vao]; !ok {
		d.record(device.CodeInvalidOperation)
		return
	}

	call := DrawCall{
		VAO:         vao,
		VertexCount: vertexCount,
		Uniforms:    make(map[uint32][]byte, len(d.uniforms)),
		Textures:    make(map[uint32]device.Handle, len(d.units)),
	}
	for bp, h := range d.uniforms {
		call.Uniforms[bp] = append([]byte(nil), d.buffers[h].data...)
	}
	for unit, h := range d.units {
		call.Textures[unit] = h
	}
	d.draws = append(d.draws, call)
}

// Error returns and clears the pending error.
func (d *Device) Error() device.Error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.pending
	d.pending = device.Error{}
	return e
}

// Live reports how many objects are currently allocated.
func (d *Device) Live() Counts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Counts{Buffers: len(d.buffers), VertexArrays: len(d.vaos), Textures: len(d.textures)}
}

// BufferData returns a copy of a buffer's contents.
func (d *Device) BufferData(h device.Handle) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[h]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b.data...), true
}

// Attributes returns the attributes attached to a vertex array.
func (d *Device) Attributes(vao device.Handle) []device.Attribute {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]device.Attribute(nil), d.vaos[vao]...)
}

// Texture returns the description of a texture array.
func (d *Device) Texture(h device.Handle) (device.TextureDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, ok := d.textures[h]
	if !ok {
		return device.TextureDesc{}, false
	}
	return tex.desc, true
}

// Draws returns the draw calls recorded since the last ResetDraws.
func (d *Device) Draws() []DrawCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DrawCall(nil), d.draws...)
}

// ResetDraws clears the recorded draw calls.
func (d *Device) ResetDraws() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws = nil
}
