// Package skeleton holds the bone hierarchy a rig animates and the per-mesh
// bone tables that map bone names to skinning slots.
package skeleton

import (
	"errors"
	"fmt"

	"github.com/Faultbox/glr/pkg/math"
)

var (
	ErrDuplicateBone = errors.New("duplicate bone name")
	ErrBadParent     = errors.New("parent index out of range")
	ErrRoot          = errors.New("hierarchy must have exactly one root")
	ErrCycle         = errors.New("bone is not reachable from the root")
)

// Joint describes one bone when building a hierarchy. Parent is the index of
// the parent joint in the same slice, or -1 for the root.
type Joint struct {
	Name      string
	Transform math.Mat4
	Parent    int
}

// Bone is a node of a built hierarchy.
type Bone struct {
	Name      string
	Transform math.Mat4 // local to parent, bind pose
	Parent    int
	Children  []int
}

// Hierarchy is an immutable bone tree. It is safe to share between
// goroutines once built.
type Hierarchy struct {
	bones  []Bone
	root   int
	byName map[string]int
}

// New builds a hierarchy from joints. An empty slice yields an empty
// hierarchy. Children keep the order they appear in joints.
func New(joints []Joint) (*Hierarchy, error) {
	h := &Hierarchy{
		bones:  make([]Bone, len(joints)),
		root:   -1,
		byName: make(map[string]int, len(joints)),
	}
	if len(joints) == 0 {
		return h, nil
	}

	for i, j := range joints {
		if _, dup := h.byName[j.Name]; dup {
			return nil, fmt.Errorf("bone %d %q: %w", i, j.Name, ErrDuplicateBone)
		}
		h.byName[j.Name] = i

		switch {
		case j.Parent == -1:
			if h.root != -1 {
				return nil, fmt.Errorf("bones %q and %q: %w", joints[h.root].Name, j.Name, ErrRoot)
			}
			h.root = i
		case j.Parent < 0 || j.Parent >= len(joints) || j.Parent == i:
			return nil, fmt.Errorf("bone %q parent %d: %w", j.Name, j.Parent, ErrBadParent)
		}
		h.bones[i] = Bone{Name: j.Name, Transform: j.Transform, Parent: j.Parent}
	}
	if h.root == -1 {
		return nil, ErrRoot
	}

	for i, j := range joints {
		if j.Parent >= 0 {
			h.bones[j.Parent].Children = append(h.bones[j.Parent].Children, i)
		}
	}

	// With one root and in-range parents, a cycle shows up as bones the
	// root never reaches.
	seen := 0
	h.Walk(func(int, *Bone) { seen++ })
	if seen != len(joints) {
		for i := range h.bones {
			if !h.reaches(i) {
				return nil, fmt.Errorf("bone %q: %w", h.bones[i].Name, ErrCycle)
			}
		}
	}

	return h, nil
}

// reaches reports whether following parents from i ends at the root.
func (h *Hierarchy) reaches(i int) bool {
	for steps := 0; steps <= len(h.bones); steps++ {
		if i == h.root {
			return true
		}
		i = h.bones[i].Parent
	}
	return false
}

// Len returns the number of bones.
func (h *Hierarchy) Len() int {
	if h == nil {
		return 0
	}
	return len(h.bones)
}

// Root returns the root index, or -1 for an empty hierarchy.
func (h *Hierarchy) Root() int {
	if h == nil {
		return -1
	}
	return h.root
}

// Bone returns the bone at index i.
func (h *Hierarchy) Bone(i int) *Bone {
	return &h.bones[i]
}

// Lookup returns the index of the named bone.
func (h *Hierarchy) Lookup(name string) (int, bool) {
	if h == nil {
		return -1, false
	}
	i, ok := h.byName[name]
	return i, ok
}

// Joints returns the hierarchy in the form New accepts.
func (h *Hierarchy) Joints() []Joint {
	joints := make([]Joint, h.Len())
	for i, b := range h.bones {
		joints[i] = Joint{Name: b.Name, Transform: b.Transform, Parent: b.Parent}
	}
	return joints
}

// Walk visits every bone reachable from the root, parents before children,
// children in order. The bone passed to fn must not be modified.
func (h *Hierarchy) Walk(fn func(index int, b *Bone)) {
	if h.Root() < 0 {
		return
	}
	stack := []int{h.root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		b := &h.bones[i]
		fn(i, b)
		for c := len(b.Children) - 1; c >= 0; c-- {
			stack = append(stack, b.Children[c])
		}
	}
}
