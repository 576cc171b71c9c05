package animation

import gomath "math"

// DefaultTicksPerSecond is used for clips that declare a rate of 0.
const DefaultTicksPerSecond = 25.0

// Playback is the per-instance clock of a clip. Start and End bound playback
// to a window of ticks; 0, 0 means the whole clip, looping.
type Playback struct {
	Time  float64 // seconds
	Start float64
	End   float64
	// Once stops at the last tick instead of wrapping.
	Once bool
}

// SetTime sets the running time in seconds.
func (p *Playback) SetTime(seconds float64) {
	p.Time = seconds
}

// SetFrameClamp restricts playback to [start, end]. A reversed window is
// swapped.
func (p *Playback) SetFrameClamp(start, end float64) {
	if start > end {
		start, end = end, start
	}
	p.Start, p.End = start, end
}

// Clamped reports whether a frame window is set.
func (p Playback) Clamped() bool {
	return p.Start != 0 || p.End != 0
}

// TicksPerSecond returns the rate track plays at.
func TicksPerSecond(track *Track) float64 {
	if track == nil || track.ticksPerSecond == 0 {
		return DefaultTicksPerSecond
	}
	return track.ticksPerSecond
}

// EffectiveTime converts the running time to ticks within track.
func (p Playback) EffectiveTime(track *Track) float64 {
	ticks := p.Time * TicksPerSecond(track)

	if p.Clamped() {
		return gomath.Min(gomath.Max(ticks, p.Start), p.End)
	}

	duration := 0.0
	if track != nil {
		duration = track.duration
	}
	if duration <= 0 || gomath.IsNaN(ticks) || gomath.IsInf(ticks, 0) {
		return 0
	}
	if p.Once {
		return gomath.Min(gomath.Max(ticks, 0), duration)
	}
	t := gomath.Mod(ticks, duration)
	if t < 0 {
		t += duration
	}
	return t
}
