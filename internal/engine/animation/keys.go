package animation

import "github.com/Faultbox/glr/pkg/math"

// Slots of a KeyCache.
const (
	PositionSlot = iota
	RotationSlot
	ScaleSlot
)

// KeyCache remembers the last key index found for each channel kind so a
// clip played forward resumes its search where the previous frame stopped.
// The slots are shared by every bone, so a stale hint is common and only
// costs a rescan.
type KeyCache [3]int

// Reset seeds every slot back to 0.
func (c *KeyCache) Reset() {
	*c = KeyCache{}
}

// findKey returns i such that keys[i] and keys[i+1] bracket t, starting the
// forward scan at hint. A hint that is out of range or already past t
// restarts the scan at 0, so the result never depends on the hint.
func findKey[K interface{ keyTime() float64 }](keys []K, t float64, hint int) int {
	last := len(keys) - 2
	if last < 0 {
		return 0
	}
	i := hint
	if i < 0 || i > last || keys[i].keyTime() > t {
		i = 0
	}
	for i < last && keys[i+1].keyTime() <= t {
		i++
	}
	return i
}

// factor returns how far t lies between a and b, in [0, 1].
func factor(a, b, t float64) float32 {
	dt := b - a
	if dt <= 0 {
		return 1
	}
	f := (t - a) / dt
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return float32(f)
}

// interpolateVector samples a position or scale channel at t. Times outside
// the keys clamp to the first or last key.
func interpolateVector(keys []VectorKey, t float64, slot *int) math.Vec3 {
	if len(keys) == 1 {
		return keys[0].Value
	}
	i := findKey(keys, t, *slot)
	*slot = i
	a, b := keys[i], keys[i+1]
	if t <= a.Time {
		return a.Value
	}
	return a.Value.Lerp(b.Value, factor(a.Time, b.Time, t))
}

// interpolateRotation samples a rotation channel at t.
func interpolateRotation(keys []QuatKey, t float64, slot *int) math.Quat {
	if len(keys) == 1 {
		return keys[0].Value
	}
	i := findKey(keys, t, *slot)
	*slot = i
	a, b := keys[i], keys[i+1]
	if t <= a.Time {
		return a.Value
	}
	return a.Value.Slerp(b.Value, factor(a.Time, b.Time, t))
}

// localTransform composes the bone's T*R*S at t. A channel without keys
// takes its component from the bind pose.
func (c *Channels) localTransform(t float64, cache *KeyCache, bind math.Mat4) math.Mat4 {
	var bindT, bindS math.Vec3
	var bindR math.Quat
	if len(c.Positions) == 0 || len(c.Rotations) == 0 || len(c.Scales) == 0 {
		bindT, bindR, bindS = bind.Decompose()
	}

	pos := bindT
	if len(c.Positions) > 0 {
		pos = interpolateVector(c.Positions, t, &cache[PositionSlot])
	}
	rot := bindR
	if len(c.Rotations) > 0 {
		rot = interpolateRotation(c.Rotations, t, &cache[RotationSlot])
	}
	scale := bindS
	if len(c.Scales) > 0 {
		scale = interpolateVector(c.Scales, t, &cache[ScaleSlot])
	}
	return math.Compose(pos, rot, scale)
}
