package animation

import (
	"github.com/Faultbox/glr/internal/engine/skeleton"
	"github.com/Faultbox/glr/pkg/math"
)

// IdentityPose returns n identity matrices.
func IdentityPose(n int) []math.Mat4 {
	return fillIdentity(make([]math.Mat4, n))
}

func fillIdentity(m []math.Mat4) []math.Mat4 {
	for i := range m {
		m[i] = math.Identity()
	}
	return m
}

// EvaluatePose computes one skinning matrix per bone registered in bones:
// globalInverse * global(bone) * offset(bone). Bones of the hierarchy that
// bones does not register still carry their transform to their children.
// Slots no bone wrote stay identity. cache may be nil.
//
// A track without channels yields identity matrices without walking the
// hierarchy. Missing bones, empty hierarchies and zero durations fall back
// to the bind pose instead of failing.
func EvaluatePose(track *Track, h *skeleton.Hierarchy, bones *skeleton.BoneData, globalInverse math.Mat4, p Playback, cache *KeyCache) []math.Mat4 {
	var e Evaluator
	return e.Evaluate(track, h, bones, globalInverse, p, cache)
}

// Evaluator reuses its buffers between evaluations. The slice returned by
// Evaluate is overwritten by the next call.
type Evaluator struct {
	out     []math.Mat4
	globals []math.Mat4
}

// Evaluate is EvaluatePose writing into the evaluator's buffers.
func (e *Evaluator) Evaluate(track *Track, h *skeleton.Hierarchy, bones *skeleton.BoneData, globalInverse math.Mat4, p Playback, cache *KeyCache) []math.Mat4 {
	n := bones.Len()
	e.out = fillIdentity(resize(e.out, n))
	if track.Len() == 0 || h.Len() == 0 {
		return e.out
	}
	if cache == nil {
		cache = new(KeyCache)
	}

	t := p.EffectiveTime(track)
	e.globals = resize(e.globals, h.Len())

	h.Walk(func(i int, b *skeleton.Bone) {
		local := b.Transform
		if ch, ok := track.channels[b.Name]; ok {
			local = ch.localTransform(t, cache, b.Transform)
		}

		global := local
		if b.Parent >= 0 {
			global = e.globals[b.Parent].Mul(local)
		}
		e.globals[i] = global

		if info, ok := bones.Lookup(b.Name); ok {
			e.out[info.Index] = globalInverse.Mul(global).Mul(info.Offset)
		}
	})
	return e.out
}

func resize(m []math.Mat4, n int) []math.Mat4 {
	if cap(m) < n {
		return make([]math.Mat4, n)
	}
	return m[:n]
}
