// Package scene places drawable and animatable objects in the world and
// drives them each frame.
package scene

import (
	"github.com/Faultbox/glr/internal/engine/model"
	"github.com/Faultbox/glr/pkg/math"
)

// Node is the placement shared by everything in a scene.
type Node struct {
	Position math.Vec3
	Rotation math.Quat
	Scale    math.Vec3
	Hidden   bool
}

// NewNode returns a visible node at the origin.
func NewNode() Node {
	return Node{Rotation: math.QuatIdentity(), Scale: math.Vec3One()}
}

// Base returns the node itself, so types embedding Node satisfy Object.
func (n *Node) Base() *Node { return n }

// Transform returns the world matrix.
func (n *Node) Transform() math.Mat4 {
	return math.Compose(n.Position, n.Rotation, n.Scale)
}

// Object is anything placed in a scene.
type Object interface {
	Base() *Node
}

// Animatable objects have a clock that advances every frame.
type Animatable interface {
	Advance(dt float64)
}

// Drawable objects issue draw calls.
type Drawable interface {
	Render(b model.Bindings) error
}

// ModelNode places a model instance in the scene.
type ModelNode struct {
	Node
	*model.Model
}

// NewModelNode wraps m at the origin.
func NewModelNode(m *model.Model) *ModelNode {
	return &ModelNode{Node: NewNode(), Model: m}
}

var (
	_ Object     = (*ModelNode)(nil)
	_ Animatable = (*ModelNode)(nil)
	_ Drawable   = (*ModelNode)(nil)
)
