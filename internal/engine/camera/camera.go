// Package camera provides the orbit camera the viewer looks at rigs with.
package camera

import (
	gomath "math"

	"github.com/Faultbox/glr/pkg/math"
)

// Orbit circles a center point at a distance.
type Orbit struct {
	Center math.Vec3

	// Spherical coordinates
	Distance float32
	Pitch    float32 // radians above the horizon
	Yaw      float32 // radians around +Y

	FovY      float32
	Near, Far float32

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	DragSensitivity float32
	ZoomSensitivity float32
}

// NewOrbit returns a camera sized for a rig about two units tall.
func NewOrbit() *Orbit {
	return &Orbit{
		Distance:        5,
		Pitch:           0.3,
		FovY:            float32(gomath.Pi / 4),
		Near:            0.05,
		Far:             500,
		MinDistance:     0.1,
		MaxDistance:     1000,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Position returns the camera position in world space.
func (c *Orbit) Position() math.Vec3 {
	cp := gomath.Cos(float64(c.Pitch))
	offset := math.Vec3{
		X: c.Distance * float32(cp*gomath.Sin(float64(c.Yaw))),
		Y: c.Distance * float32(gomath.Sin(float64(c.Pitch))),
		Z: c.Distance * float32(cp*gomath.Cos(float64(c.Yaw))),
	}
	return c.Center.Add(offset)
}

// ViewMatrix returns the view matrix.
func (c *Orbit) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position(), c.Center, math.Vec3{Y: 1})
}

// ViewProj returns projection * view for a viewport of the given aspect.
func (c *Orbit) ViewProj(aspect float32) math.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return math.Perspective(c.FovY, aspect, c.Near, c.Far).Mul(c.ViewMatrix())
}

// HandleDrag rotates by a mouse drag delta in pixels.
func (c *Orbit) HandleDrag(deltaX, deltaY float32) {
	c.Yaw -= deltaX * c.DragSensitivity
	c.Pitch = clamp(c.Pitch+deltaY*c.DragSensitivity, c.MinPitch, c.MaxPitch)
}

// HandleZoom moves closer for positive wheel deltas.
func (c *Orbit) HandleZoom(delta float32) {
	c.Distance = clamp(c.Distance-delta*c.Distance*c.ZoomSensitivity, c.MinDistance, c.MaxDistance)
}

// Fit centers the camera on the box [lo, hi] and backs off until it fits
// the field of view.
func (c *Orbit) Fit(lo, hi math.Vec3) {
	c.Center = lo.Add(hi).Scale(0.5)
	radius := hi.Sub(lo).Length() / 2
	if radius == 0 {
		radius = 1
	}
	half := float64(c.FovY) / 2
	c.Distance = clamp(radius/float32(gomath.Sin(half)), c.MinDistance, c.MaxDistance)
	c.Far = c.Distance + radius*4
}

// Bounds returns the axis-aligned box around points. No points gives an
// empty box at the origin.
func Bounds(points []math.Vec3) (lo, hi math.Vec3) {
	if len(points) == 0 {
		return
	}
	lo, hi = points[0], points[0]
	for _, p := range points[1:] {
		lo = math.Vec3{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = math.Vec3{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	return lo, hi
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
