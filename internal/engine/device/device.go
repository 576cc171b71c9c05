// Package device defines the graphics device contract that GPU-backed assets
// allocate, upload and bind through. All calls must be made on the thread that
// owns the device context.
package device

import (
	"fmt"
	"unsafe"
)

// Handle names a device object. Zero is never a live object.
type Handle uint32

// None is the zero handle.
const None Handle = 0

// Target is the binding target a buffer is created for.
type Target int

const (
	// VertexBuffer holds per-vertex attributes.
	VertexBuffer Target = iota
	// UniformBuffer holds a std140 uniform block.
	UniformBuffer
)

func (t Target) String() string {
	switch t {
	case VertexBuffer:
		return "vertex"
	case UniformBuffer:
		return "uniform"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// ComponentType is the scalar type of a vertex attribute.
type ComponentType int

const (
	Float32 ComponentType = iota
	Int32
)

// Attribute describes how a vertex buffer feeds one shader input.
type Attribute struct {
	Index      uint32
	Components int
	Type       ComponentType
	Stride     int
	Offset     int
}

// Format is the pixel layout of a texture.
type Format int

const (
	FormatUnknown Format = iota
	FormatR8
	FormatRGB8
	FormatRGBA8
)

// BytesPerPixel returns the size of one texel, or 0 for FormatUnknown.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatR8:
		return 1
	case FormatRGB8:
		return 3
	case FormatRGBA8:
		return 4
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f {
	case FormatR8:
		return "R8"
	case FormatRGB8:
		return "RGB8"
	case FormatRGBA8:
		return "RGBA8"
	default:
		return "unknown"
	}
}

// TextureDesc sizes a 2D texture array.
type TextureDesc struct {
	Width  int
	Height int
	Layers int
	Format Format
}

// LayerSize returns the byte size of one layer.
func (d TextureDesc) LayerSize() int {
	return d.Width * d.Height * d.Format.BytesPerPixel()
}

// Size returns the byte size of every layer together.
func (d TextureDesc) Size() int {
	return d.LayerSize() * d.Layers
}

// Error is the last error a device reported. Code 0 means no error.
type Error struct {
	Code uint32
	Name string
}

// OK reports whether e carries no error.
func (e Error) OK() bool {
	return e.Code == 0
}

func (e Error) String() string {
	if e.OK() {
		return "no error"
	}
	return fmt.Sprintf("%s (0x%04x)", e.Name, e.Code)
}

// Device error codes. The values match the OpenGL error enums so both
// implementations report the same names.
const (
	CodeInvalidEnum      uint32 = 0x0500
	CodeInvalidValue     uint32 = 0x0501
	CodeInvalidOperation uint32 = 0x0502
	CodeOutOfMemory      uint32 = 0x0505
	CodeInvalidFramebuf  uint32 = 0x0506
)

// NewError builds an Error with the canonical name for code.
func NewError(code uint32) Error {
	return Error{Code: code, Name: ErrorName(code)}
}

// ErrorName returns the symbolic name of a device error code.
func ErrorName(code uint32) string {
	switch code {
	case 0:
		return "GL_NO_ERROR"
	case CodeInvalidEnum:
		return "GL_INVALID_ENUM"
	case CodeInvalidValue:
		return "GL_INVALID_VALUE"
	case CodeInvalidOperation:
		return "GL_INVALID_OPERATION"
	case CodeOutOfMemory:
		return "GL_OUT_OF_MEMORY"
	case CodeInvalidFramebuf:
		return "GL_INVALID_FRAMEBUFFER_OPERATION"
	default:
		return fmt.Sprintf("unknown error 0x%04x", code)
	}
}

// Device is the set of operations GPU-backed assets need from a graphics
// context. Create calls return None and record an error on failure; callers
// check Error after each step, which also clears it.
type Device interface {
	CreateBuffer(target Target, size int) Handle
	WriteBuffer(h Handle, offset int, data []byte)
	ReadBuffer(h Handle, offset int, dst []byte)
	ReleaseBuffer(h Handle)

	CreateVertexArray() Handle
	AttachVertexBuffer(vao Handle, buf Handle, attr Attribute)
	ReleaseVertexArray(h Handle)

	CreateTextureArray(desc TextureDesc) Handle
	WriteTextureLayer(h Handle, layer int, desc TextureDesc, data []byte)
	ReadTextureLayers(h Handle, desc TextureDesc, dst []byte)
	ReleaseTexture(h Handle)

	BindUniformBuffer(h Handle, bindPoint uint32)
	BindTextureArray(h Handle, unit uint32)
	DrawArrays(vao Handle, vertexCount int)

	Error() Error
}

// Bytes views a slice of plain values as raw bytes without copying.
func Bytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// SizeOf returns the byte size of n values of T.
func SizeOf[T any](n int) int {
	var zero T
	return n * int(unsafe.Sizeof(zero))
}
