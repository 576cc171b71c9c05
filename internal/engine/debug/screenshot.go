// Package debug provides debug capture utilities.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Faultbox/glr/internal/engine/device"
	"github.com/Faultbox/glr/internal/engine/texture"
)

// Screenshots writes framebuffer captures as lossless WebP files.
type Screenshots struct {
	dir    string
	prefix string
	now    func() time.Time
}

// NewScreenshots returns a capturer writing prefix_<timestamp>.webp files
// into dir. An empty dir means the working directory.
func NewScreenshots(dir, prefix string) *Screenshots {
	return &Screenshots{dir: dir, prefix: prefix, now: time.Now}
}

// Filename returns the path the next capture is written to.
func (s *Screenshots) Filename() string {
	name := fmt.Sprintf("%s_%s.webp", s.prefix, s.now().Format("2006-01-02_15-04-05.000"))
	if s.dir != "" {
		name = filepath.Join(s.dir, name)
	}
	return name
}

// Capture saves RGBA pixels read back from the framebuffer. Rows arrive
// bottom to top and are flipped on the way out.
func (s *Screenshots) Capture(pixels []byte, width, height int) (string, error) {
	if len(pixels) != width*height*4 {
		return "", fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	img := texture.Image{Width: width, Height: height, Format: device.FormatRGBA8, Data: make([]byte, len(pixels))}
	row := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * row
		copy(img.Data[y*row:(y+1)*row], pixels[src:src+row])
	}

	name := s.Filename()
	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if err := texture.WriteWebP(f, img); err != nil {
		return "", err
	}
	return name, nil
}
