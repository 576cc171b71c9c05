// Package lighting turns scene light settings into shader inputs.
package lighting

import (
	gomath "math"

	"github.com/Faultbox/glr/pkg/math"
)

// SunDirection converts angles in degrees to the unit vector pointing
// towards the sun. Longitude turns around +Y starting at +Z; latitude is
// elevation above the horizon.
func SunDirection(longitude, latitude float32) math.Vec3 {
	lon := float64(longitude) * gomath.Pi / 180
	lat := float64(latitude) * gomath.Pi / 180
	return math.Vec3{
		X: float32(gomath.Cos(lat) * gomath.Sin(lon)),
		Y: float32(gomath.Sin(lat)),
		Z: float32(gomath.Cos(lat) * gomath.Cos(lon)),
	}
}

// LightDir is the direction light travels, away from the sun.
func LightDir(longitude, latitude float32) math.Vec3 {
	return SunDirection(longitude, latitude).Scale(-1)
}
