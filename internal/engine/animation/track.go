// Package animation evaluates keyframed skeletal animation into skinning
// matrices and keeps the resulting pose in a device uniform buffer.
package animation

import (
	"fmt"
	"sort"

	"github.com/Faultbox/glr/pkg/math"
)

// VectorKey is a position or scale sample. Time is in ticks.
type VectorKey struct {
	Time  float64
	Value math.Vec3
}

// QuatKey is a rotation sample. Time is in ticks.
type QuatKey struct {
	Time  float64
	Value math.Quat
}

func (k VectorKey) keyTime() float64 { return k.Time }
func (k QuatKey) keyTime() float64   { return k.Time }

// Channels holds the three key sequences of one bone.
type Channels struct {
	Positions []VectorKey
	Rotations []QuatKey
	Scales    []VectorKey
}

// Track is one named clip. It is immutable once built and shared by every
// instance that plays it.
type Track struct {
	name           string
	duration       float64
	ticksPerSecond float64
	channels       map[string]Channels
}

// NewTrack validates and copies channels into a track. Key times in every
// channel must be non-decreasing.
func NewTrack(name string, duration, ticksPerSecond float64, channels map[string]Channels) (*Track, error) {
	t := &Track{
		name:           name,
		duration:       duration,
		ticksPerSecond: ticksPerSecond,
		channels:       make(map[string]Channels, len(channels)),
	}
	for bone, ch := range channels {
		if err := checkOrder(ch.Positions); err != nil {
			return nil, fmt.Errorf("track %q bone %q positions: %w", name, bone, err)
		}
		if err := checkOrder(ch.Rotations); err != nil {
			return nil, fmt.Errorf("track %q bone %q rotations: %w", name, bone, err)
		}
		if err := checkOrder(ch.Scales); err != nil {
			return nil, fmt.Errorf("track %q bone %q scales: %w", name, bone, err)
		}
		t.channels[bone] = Channels{
			Positions: append([]VectorKey(nil), ch.Positions...),
			Rotations: append([]QuatKey(nil), ch.Rotations...),
			Scales:    append([]VectorKey(nil), ch.Scales...),
		}
	}
	return t, nil
}

func checkOrder[K interface{ keyTime() float64 }](keys []K) error {
	for i := 1; i < len(keys); i++ {
		if keys[i].keyTime() < keys[i-1].keyTime() {
			return fmt.Errorf("key %d at %v comes before key %d at %v", i, keys[i].keyTime(), i-1, keys[i-1].keyTime())
		}
	}
	return nil
}

// Name returns the clip name.
func (t *Track) Name() string { return t.name }

// Duration returns the clip length in ticks.
func (t *Track) Duration() float64 { return t.duration }

// TicksPerSecond returns the rate declared by the clip, which may be 0.
func (t *Track) TicksPerSecond() float64 { return t.ticksPerSecond }

// Len returns how many bones the clip animates. A track with none is an
// identity track.
func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.channels)
}

// Channels returns the keys for bone.
func (t *Track) Channels(bone string) (Channels, bool) {
	ch, ok := t.channels[bone]
	return ch, ok
}

// Bones returns the animated bone names, sorted.
func (t *Track) Bones() []string {
	names := make([]string, 0, len(t.channels))
	for name := range t.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
