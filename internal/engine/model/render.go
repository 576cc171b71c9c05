package model

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/engine/animation"
	"github.com/Faultbox/glr/internal/engine/assets"
	"github.com/Faultbox/glr/internal/engine/mesh"
	"github.com/Faultbox/glr/internal/engine/resource"
	"github.com/Faultbox/glr/internal/logger"
)

// Bindings are the texture unit and uniform block binding points a model is
// drawn with. A negative value skips that binding.
type Bindings struct {
	Texture  int32
	Material int32
	Bones    int32
}

// DefaultBindings matches the skinning shader.
func DefaultBindings() Bindings {
	return Bindings{Texture: 0, Material: 1, Bones: 0}
}

// Render draws every slot. The shared animation's clock is set from this
// instance, the pose evaluated, uploaded and bound immediately before each
// draw, so no other instance may render between those steps. Must run on
// the device thread.
func (m *Model) Render(b Bindings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var anim *animation.Animation
	if !m.playing.IsZero() {
		a, ok := m.ctx.Animation(m.playing)
		if !ok {
			logger.Warn("playing animation was removed",
				zap.String("model", m.name),
				zap.Stringer("handle", m.playing),
			)
			m.playing, m.playingName = assets.Handle[*animation.Animation]{}, ""
		} else {
			anim = a
		}
	}

	for i, s := range m.slots {
		msh, ok := m.ctx.Mesh(s.Mesh)
		if !ok {
			return fmt.Errorf("render %s mesh %d: %w", m.name, i, assets.ErrStaleHandle)
		}
		if err := m.bindSlot(s, b); err != nil {
			return fmt.Errorf("render %s mesh %d: %w", m.name, i, err)
		}
		if b.Bones >= 0 {
			if err := m.bindPose(anim, msh, uint32(b.Bones)); err != nil {
				return fmt.Errorf("render %s mesh %d: %w", m.name, i, err)
			}
		}
		if err := msh.Render(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) bindSlot(s Slot, b Bindings) error {
	if b.Texture >= 0 && !s.Texture.IsZero() {
		tex, ok := m.ctx.Texture(s.Texture)
		if !ok {
			return fmt.Errorf("texture %v: %w", s.Texture, assets.ErrStaleHandle)
		}
		if err := tex.Bind(uint32(b.Texture)); err != nil {
			return err
		}
	}
	if b.Material >= 0 && !s.Material.IsZero() {
		mat, ok := m.ctx.Material(s.Material)
		if !ok {
			return fmt.Errorf("material %v: %w", s.Material, assets.ErrStaleHandle)
		}
		if err := mat.Bind(uint32(b.Material)); err != nil {
			return err
		}
	}
	return nil
}

// bindPose evaluates anim for msh, or falls back to the identity animation,
// then uploads and binds it.
func (m *Model) bindPose(anim *animation.Animation, msh *mesh.Mesh, bindPoint uint32) error {
	if anim == nil {
		anim = m.ctx.IdentityAnimation()
	} else {
		anim.SetAnimationTime(m.playback.Time)
		anim.SetFrameClamp(m.playback.Start, m.playback.End)
		anim.SetLooping(!m.playback.Once)
	}
	anim.Calculate(m.globalInverse, m.hierarchy, msh.BoneData(), &m.cache)

	if anim.State() == resource.Unallocated {
		if err := anim.AllocateVideoMemory(); err != nil {
			return err
		}
	}
	if err := anim.PushToVideoMemory(); err != nil {
		return err
	}
	anim.Bind(bindPoint)
	return nil
}
