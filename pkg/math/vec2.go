package math

// Vec2 is a 2D vector, used for texture coordinates.
type Vec2 struct {
	X, Y float32
}

// Vec4 is a 4-component vector, used for vertex colors and material terms.
type Vec4 struct {
	X, Y, Z, W float32
}

// Splat4 returns a Vec4 with every component set to s.
func Splat4(s float32) Vec4 {
	return Vec4{s, s, s, s}
}
