package scene

import (
	"fmt"
	"sync"

	"github.com/Faultbox/glr/internal/engine/model"
	"github.com/Faultbox/glr/pkg/math"
)

// PlaceFunc receives the world matrix of an object before it draws, to set
// whatever per-object state the active program needs.
type PlaceFunc func(world math.Mat4)

// Scene is an ordered set of objects. Objects draw in insertion order.
type Scene struct {
	mu      sync.Mutex
	objects []Object
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{}
}

// Add appends o.
func (s *Scene) Add(o Object) {
	s.mu.Lock()
	s.objects = append(s.objects, o)
	s.mu.Unlock()
}

// Remove drops o. It reports whether o was present.
func (s *Scene) Remove(o Object) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, obj := range s.objects {
		if obj == o {
			s.objects = append(s.objects[:i], s.objects[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of objects.
func (s *Scene) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *Scene) snapshot() []Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Object(nil), s.objects...)
}

// Update advances every animatable object by dt seconds.
func (s *Scene) Update(dt float64) {
	for _, o := range s.snapshot() {
		if a, ok := o.(Animatable); ok {
			a.Advance(dt)
		}
	}
}

// DrawAll renders every visible drawable object. place may be nil. The
// first error stops the pass. Must run on the device thread.
func (s *Scene) DrawAll(b model.Bindings, place PlaceFunc) error {
	for i, o := range s.snapshot() {
		d, ok := o.(Drawable)
		if !ok {
			continue
		}
		n := o.Base()
		if n.Hidden {
			continue
		}
		if place != nil {
			place(n.Transform())
		}
		if err := d.Render(b); err != nil {
			return fmt.Errorf("draw object %d: %w", i, err)
		}
	}
	return nil
}
