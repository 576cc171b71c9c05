// Package model ties a skeleton to the meshes, textures, materials and
// animations it is drawn with, and holds the per-instance playback clock.
package model

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/engine/animation"
	"github.com/Faultbox/glr/internal/engine/assets"
	"github.com/Faultbox/glr/internal/engine/material"
	"github.com/Faultbox/glr/internal/engine/mesh"
	"github.com/Faultbox/glr/internal/engine/skeleton"
	"github.com/Faultbox/glr/internal/engine/texture"
	"github.com/Faultbox/glr/internal/logger"
	"github.com/Faultbox/glr/pkg/math"
)

// Slot is one drawable part of a model. A zero texture or material handle
// leaves that binding untouched.
type Slot struct {
	Mesh     assets.Handle[*mesh.Mesh]
	Texture  assets.Handle[*texture.Array]
	Material assets.Handle[*material.Material]
}

// Model is an instance of a rigged asset. Meshes, textures, materials and
// animations are shared through the asset context; the hierarchy is shared
// and read-only; playback state belongs to the instance.
type Model struct {
	mu sync.Mutex

	ctx           *assets.Context
	name          string
	hierarchy     *skeleton.Hierarchy
	globalInverse math.Mat4

	slots      []Slot
	animations map[string]assets.Handle[*animation.Animation]

	playing     assets.Handle[*animation.Animation]
	playingName string
	playback    animation.Playback
	cache       animation.KeyCache
}

// New returns a model over h. The global inverse is the inverse of the
// root bone transform.
func New(ctx *assets.Context, name string, h *skeleton.Hierarchy) *Model {
	globalInverse := math.Identity()
	if root := h.Root(); root >= 0 {
		globalInverse = h.Bone(root).Transform.Inverse()
	}
	return &Model{
		ctx:           ctx,
		name:          name,
		hierarchy:     h,
		globalInverse: globalInverse,
		animations:    make(map[string]assets.Handle[*animation.Animation]),
	}
}

// Name returns the instance name.
func (m *Model) Name() string { return m.name }

// Hierarchy returns the shared bone hierarchy.
func (m *Model) Hierarchy() *skeleton.Hierarchy { return m.hierarchy }

// GlobalInverse returns the matrix applied ahead of every bone transform.
func (m *Model) GlobalInverse() math.Mat4 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.globalInverse
}

// SetGlobalInverse replaces the global inverse.
func (m *Model) SetGlobalInverse(g math.Mat4) {
	m.mu.Lock()
	m.globalInverse = g
	m.mu.Unlock()
}

// Copy returns a new instance named name sharing every asset of m. The
// playback clock is copied; the key cache starts cold.
func (m *Model) Copy(name string) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &Model{
		ctx:           m.ctx,
		name:          name,
		hierarchy:     m.hierarchy,
		globalInverse: m.globalInverse,
		slots:         slices.Clone(m.slots),
		animations:    make(map[string]assets.Handle[*animation.Animation], len(m.animations)),
		playing:       m.playing,
		playingName:   m.playingName,
		playback:      m.playback,
	}
	for k, v := range m.animations {
		c.animations[k] = v
	}
	return c
}

// Meshes returns a copy of the slot list.
func (m *Model) Meshes() []Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.slots)
}

// AddMesh appends a slot and returns its index.
func (m *Model) AddMesh(s Slot) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = append(m.slots, s)
	return len(m.slots) - 1
}

// InsertMesh inserts a slot at i, shifting later slots up.
func (m *Model) InsertMesh(i int, s Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i > len(m.slots) {
		return fmt.Errorf("insert mesh %d of %d: %w", i, len(m.slots), ErrSlotRange)
	}
	m.slots = slices.Insert(m.slots, i, s)
	return nil
}

// RemoveMesh removes the slot at i. The mesh itself stays in the context.
func (m *Model) RemoveMesh(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.slots) {
		return fmt.Errorf("remove mesh %d of %d: %w", i, len(m.slots), ErrSlotRange)
	}
	m.slots = slices.Delete(m.slots, i, i+1)
	return nil
}

// SetTexture sets the texture drawn with slot i.
func (m *Model) SetTexture(i int, h assets.Handle[*texture.Array]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.slots) {
		return fmt.Errorf("set texture on mesh %d of %d: %w", i, len(m.slots), ErrSlotRange)
	}
	m.slots[i].Texture = h
	return nil
}

// SetMaterial sets the material drawn with slot i.
func (m *Model) SetMaterial(i int, h assets.Handle[*material.Material]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.slots) {
		return fmt.Errorf("set material on mesh %d of %d: %w", i, len(m.slots), ErrSlotRange)
	}
	m.slots[i].Material = h
	return nil
}

// AddAnimation makes the animation playable on this model under its clip
// name.
func (m *Model) AddAnimation(h assets.Handle[*animation.Animation]) error {
	a, ok := m.ctx.Animation(h)
	if !ok {
		return fmt.Errorf("add animation %v: %w", h, assets.ErrStaleHandle)
	}
	return m.AddAnimationAs(a.Name(), h)
}

// AddAnimationAs makes the animation playable on this model under name.
func (m *Model) AddAnimationAs(name string, h assets.Handle[*animation.Animation]) error {
	if _, ok := m.ctx.Animation(h); !ok {
		return fmt.Errorf("add animation %q: %w", name, assets.ErrStaleHandle)
	}
	m.mu.Lock()
	m.animations[name] = h
	m.mu.Unlock()
	return nil
}

// Animations returns the names of the playable animations, sorted.
func (m *Model) Animations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.animations))
	for name := range m.animations {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// PlayAnimation starts the named animation at seconds over the whole clip.
func (m *Model) PlayAnimation(name string, seconds float64, loop bool) error {
	return m.play(name, animation.Playback{Time: seconds, Once: !loop})
}

// PlayAnimationRange starts the named animation clamped to the tick window
// [start, end].
func (m *Model) PlayAnimationRange(name string, start, end float64, loop bool) error {
	p := animation.Playback{Once: !loop}
	p.SetFrameClamp(start, end)
	return m.play(name, p)
}

func (m *Model) play(name string, p animation.Playback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.animations[name]
	if !ok {
		return fmt.Errorf("play %q on %s: %w", name, m.name, ErrUnknownAnimation)
	}
	m.playing, m.playingName = h, name
	m.playback = p
	m.cache.Reset()
	logger.Debug("animation started",
		zap.String("model", m.name),
		zap.String("animation", name),
	)
	return nil
}

// StopAnimation returns the model to its bind pose.
func (m *Model) StopAnimation() {
	m.mu.Lock()
	m.playing, m.playingName = assets.Handle[*animation.Animation]{}, ""
	m.playback = animation.Playback{}
	m.cache.Reset()
	m.mu.Unlock()
}

// PlayingAnimation returns the name of the current animation.
func (m *Model) PlayingAnimation() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playing.IsZero() {
		return "", false
	}
	if _, ok := m.ctx.Animation(m.playing); !ok {
		return "", false
	}
	return m.playingName, true
}

// SetAnimationTime sets the running time in seconds.
func (m *Model) SetAnimationTime(seconds float64) {
	m.mu.Lock()
	m.playback.SetTime(seconds)
	m.mu.Unlock()
}

// Advance moves the running time forward by dt seconds.
func (m *Model) Advance(dt float64) {
	m.mu.Lock()
	m.playback.Time += dt
	m.mu.Unlock()
}

// SetFrameClamp restricts playback to the tick window [start, end].
func (m *Model) SetFrameClamp(start, end float64) {
	m.mu.Lock()
	m.playback.SetFrameClamp(start, end)
	m.mu.Unlock()
}

// Playback returns the instance clock.
func (m *Model) Playback() animation.Playback {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playback
}
