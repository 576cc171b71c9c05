// Package gldevice implements device.Device on OpenGL 4.1 core.
// IMPORTANT: New must be called after the GL context is current, and every
// method must run on that context's thread.
package gldevice

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/engine/device"
	"github.com/Faultbox/glr/internal/logger"
)

// Config holds default render state.
type Config struct {
	ClearColor [4]float32
	DepthTest  bool
}

// Device issues OpenGL calls on the current context.
type Device struct {
	config Config
}

var _ device.Device = (*Device)(nil)

// New loads the GL entry points and applies the default render state.
func New(cfg Config) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	version := gl.GoStr(gl.GetString(gl.VERSION))
	rendererName := gl.GoStr(gl.GetString(gl.RENDERER))
	var maxUBO int32
	gl.GetIntegerv(gl.MAX_UNIFORM_BLOCK_SIZE, &maxUBO)
	logger.Info("OpenGL initialized",
		zap.String("version", version),
		zap.String("renderer", rendererName),
		zap.Int32("maxUniformBlockSize", maxUBO),
	)

	if cfg.DepthTest {
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(gl.LESS)
	}
	c := cfg.ClearColor
	gl.ClearColor(c[0], c[1], c[2], c[3])

	return &Device{config: cfg}, nil
}

// Clear clears the color and depth buffers.
func (d *Device) Clear() {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Viewport sets the viewport size.
func (d *Device) Viewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
}

// ReadPixels returns the RGBA8 contents of the current framebuffer, rows
// bottom to top.
func (d *Device) ReadPixels(width, height int) []byte {
	pixels := make([]byte, width*height*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, ptr(pixels))
	return pixels
}

func glTarget(t device.Target) uint32 {
	if t == device.UniformBuffer {
		return gl.UNIFORM_BUFFER
	}
	return gl.ARRAY_BUFFER
}

func glUsage(t device.Target) uint32 {
	if t == device.UniformBuffer {
		return gl.DYNAMIC_DRAW
	}
	return gl.STATIC_DRAW
}

// ptr returns a GL pointer for data, or nil when it is empty.
func ptr(data []byte) unsafe.Pointer {
	if len(data) == 0 {
		return nil
	}
	return gl.Ptr(data)
}

func (d *Device) CreateBuffer(target device.Target, size int) device.Handle {
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(glTarget(target), id)
	gl.BufferData(glTarget(target), size, nil, glUsage(target))
	gl.BindBuffer(glTarget(target), 0)
	return device.Handle(id)
}

// Buffer data is written and read through the copy targets so the
// binding used for drawing is left untouched.
func (d *Device) WriteBuffer(h device.Handle, offset int, data []byte) {
	if len(data) == 0 {
		return
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, uint32(h))
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, offset, len(data), gl.Ptr(data))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
}

func (d *Device) ReadBuffer(h device.Handle, offset int, dst []byte) {
	if len(dst) == 0 {
		return
	}
	gl.BindBuffer(gl.COPY_READ_BUFFER, uint32(h))
	gl.GetBufferSubData(gl.COPY_READ_BUFFER, offset, len(dst), gl.Ptr(dst))
	gl.BindBuffer(gl.COPY_READ_BUFFER, 0)
}

func (d *Device) ReleaseBuffer(h device.Handle) {
	id := uint32(h)
	if id != 0 {
		gl.DeleteBuffers(1, &id)
	}
}

func (d *Device) CreateVertexArray() device.Handle {
	var id uint32
	gl.GenVertexArrays(1, &id)
	return device.Handle(id)
}

func (d *Device) AttachVertexBuffer(vao, buf device.Handle, attr device.Attribute) {
	gl.BindVertexArray(uint32(vao))
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(buf))
	gl.EnableVertexAttribArray(attr.Index)
	if attr.Type == device.Int32 {
		gl.VertexAttribIPointerWithOffset(attr.Index, int32(attr.Components), gl.INT, int32(attr.Stride), uintptr(attr.Offset))
	} else {
		gl.VertexAttribPointerWithOffset(attr.Index, int32(attr.Components), gl.FLOAT, false, int32(attr.Stride), uintptr(attr.Offset))
	}
	gl.BindVertexArray(0)
}

func (d *Device) ReleaseVertexArray(h device.Handle) {
	id := uint32(h)
	if id != 0 {
		gl.DeleteVertexArrays(1, &id)
	}
}

// glFormat returns the internal format and pixel format for f.
func glFormat(f device.Format) (internal int32, format uint32) {
	switch f {
	case device.FormatR8:
		return gl.R8, gl.RED
	case device.FormatRGB8:
		return gl.RGB8, gl.RGB
	case device.FormatRGBA8:
		return gl.RGBA8, gl.RGBA
	default:
		return 0, 0
	}
}

func (d *Device) CreateTextureArray(desc device.TextureDesc) device.Handle {
	internal, format := glFormat(desc.Format)

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage3D(gl.TEXTURE_2D_ARRAY, 0, internal,
		int32(desc.Width), int32(desc.Height), int32(desc.Layers),
		0, format, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D_ARRAY, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D_ARRAY, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D_ARRAY, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D_ARRAY, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, 0)
	return device.Handle(id)
}

func (d *Device) WriteTextureLayer(h device.Handle, layer int, desc device.TextureDesc, data []byte) {
	_, format := glFormat(desc.Format)

	gl.BindTexture(gl.TEXTURE_2D_ARRAY, uint32(h))
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexSubImage3D(gl.TEXTURE_2D_ARRAY, 0, 0, 0, int32(layer),
		int32(desc.Width), int32(desc.Height), 1,
		format, gl.UNSIGNED_BYTE, ptr(data))
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, 0)
}

func (d *Device) ReadTextureLayers(h device.Handle, desc device.TextureDesc, dst []byte) {
	_, format := glFormat(desc.Format)

	gl.BindTexture(gl.TEXTURE_2D_ARRAY, uint32(h))
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.GetTexImage(gl.TEXTURE_2D_ARRAY, 0, format, gl.UNSIGNED_BYTE, ptr(dst))
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, 0)
}

func (d *Device) ReleaseTexture(h device.Handle) {
	id := uint32(h)
	if id != 0 {
		gl.DeleteTextures(1, &id)
	}
}

func (d *Device) BindUniformBuffer(h device.Handle, bindPoint uint32) {
	gl.BindBufferBase(gl.UNIFORM_BUFFER, bindPoint, uint32(h))
}

func (d *Device) BindTextureArray(h device.Handle, unit uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, uint32(h))
}

func (d *Device) DrawArrays(vao device.Handle, vertexCount int) {
	gl.BindVertexArray(uint32(vao))
	gl.DrawArrays(gl.TRIANGLES, 0, int32(vertexCount))
	gl.BindVertexArray(0)
}

// Error returns and clears the oldest GL error flag.
func (d *Device) Error() device.Error {
	return device.NewError(gl.GetError())
}
