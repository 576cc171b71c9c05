// Package texture decodes images into texture layers and uploads them as a
// 2D texture array.
package texture

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/Faultbox/glr/internal/engine/device"
)

// Image is one layer of pixel data, rows top to bottom.
type Image struct {
	Width  int
	Height int
	Format device.Format
	Data   []byte
}

// Load decodes an image file. PNG, JPEG, BMP, WebP and TGA are supported.
func Load(path string, magentaKey bool) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("open texture: %w", err)
	}
	defer f.Close()

	img, err := Decode(f, magentaKey)
	if err != nil {
		return Image{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// TGA has no magic number and registers itself with image.RegisterFormat
// as matching anything, so image.Decode cannot be trusted to pick a
// decoder. Formats are sniffed here instead, with TGA as the fallback.
var decoders = []struct {
	magic  []byte
	decode func(io.Reader) (image.Image, error)
}{
	{[]byte("\x89PNG\r\n\x1a\n"), png.Decode},
	{[]byte("\xff\xd8"), jpeg.Decode},
	{[]byte("BM"), bmp.Decode},
	{[]byte("RIFF"), webp.Decode},
}

// Decode reads a PNG, JPEG, BMP, WebP or TGA image into an RGBA8 layer.
func Decode(r io.Reader, magentaKey bool) (Image, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(12)

	decode := tga.Decode
	for _, d := range decoders {
		if bytes.HasPrefix(head, d.magic) {
			decode = d.decode
			break
		}
	}

	src, err := decode(br)
	if err != nil {
		return Image{}, err
	}
	return FromImage(src, magentaKey), nil
}

// FromImage converts img to an RGBA8 layer. With magentaKey set, magenta
// pixels become transparent black.
func FromImage(img image.Image, magentaKey bool) Image {
	rgba := ImageToRGBA(img, magentaKey)
	return Image{
		Width:  rgba.Rect.Dx(),
		Height: rgba.Rect.Dy(),
		Format: device.FormatRGBA8,
		Data:   rgba.Pix,
	}
}

// ToImage returns the layer as an image. Only RGBA8 and R8 layers convert.
func (img Image) ToImage() (image.Image, error) {
	rect := image.Rect(0, 0, img.Width, img.Height)
	switch img.Format {
	case device.FormatRGBA8:
		return &image.RGBA{Pix: img.Data, Stride: img.Width * 4, Rect: rect}, nil
	case device.FormatR8:
		return &image.Gray{Pix: img.Data, Stride: img.Width, Rect: rect}, nil
	default:
		return nil, fmt.Errorf("cannot convert %s layer to an image", img.Format)
	}
}

// Resize scales an RGBA8 layer to width x height with Catmull-Rom filtering.
func Resize(img Image, width, height int) (Image, error) {
	src, err := img.ToImage()
	if err != nil {
		return Image{}, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return FromImage(dst, false), nil
}

// WriteWebP encodes the layer as lossless WebP.
func WriteWebP(w io.Writer, img Image) error {
	src, err := img.ToImage()
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(w, src, nil); err != nil {
		return fmt.Errorf("webp encode: %w", err)
	}
	return nil
}

// IsMagentaKey checks if an RGB color is the magenta transparency key.
// Uses tolerance (R >= 250, G <= 10, B >= 250) to absorb lossy decoding.
func IsMagentaKey(r, g, b uint8) bool {
	return r >= 250 && g <= 10 && b >= 250
}

// ImageToRGBA converts any image.Image to *image.RGBA anchored at the
// origin. If applyMagentaKey is true, magenta pixels are made transparent.
func ImageToRGBA(img image.Image, applyMagentaKey bool) *image.RGBA {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Rect, img, bounds.Min, draw.Src)

	if applyMagentaKey {
		for i := 0; i < len(rgba.Pix); i += 4 {
			if IsMagentaKey(rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2]) {
				// Transparent black so filtering does not bleed magenta.
				copy(rgba.Pix[i:i+4], []byte{0, 0, 0, 0})
			}
		}
	}
	return rgba
}

// Solid returns a width x height RGBA8 layer filled with c.
func Solid(width, height int, c color.RGBA) Image {
	data := make([]byte, width*height*4)
	for i := 0; i < len(data); i += 4 {
		data[i], data[i+1], data[i+2], data[i+3] = c.R, c.G, c.B, c.A
	}
	return Image{Width: width, Height: height, Format: device.FormatRGBA8, Data: data}
}
