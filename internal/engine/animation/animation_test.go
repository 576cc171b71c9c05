package animation

import (
	"errors"
	gomath "math"
	"testing"

	"github.com/Faultbox/glr/internal/engine/device"
	"github.com/Faultbox/glr/internal/engine/device/memdevice"
	"github.com/Faultbox/glr/internal/engine/resource"
	"github.com/Faultbox/glr/internal/engine/skeleton"
	"github.com/Faultbox/glr/pkg/math"
)

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func vecNear(a, b math.Vec3) bool {
	return abs(a.X-b.X) < 1e-5 && abs(a.Y-b.Y) < 1e-5 && abs(a.Z-b.Z) < 1e-5
}

// rootChild builds root -> child with identity bind poses, both registered
// in the returned bone table with identity offsets.
func rootChild(t *testing.T) (*skeleton.Hierarchy, *skeleton.BoneData) {
	t.Helper()
	h, err := skeleton.New([]skeleton.Joint{
		{Name: "root", Transform: math.Identity(), Parent: -1},
		{Name: "child", Transform: math.Identity(), Parent: 0},
	})
	if err != nil {
		t.Fatalf("skeleton.New: %v", err)
	}
	bones := skeleton.NewBoneData()
	bones.Add("root", math.Identity())
	bones.Add("child", math.Identity())
	return h, bones
}

func mustTrack(t *testing.T, name string, duration, tps float64, ch map[string]Channels) *Track {
	t.Helper()
	track, err := NewTrack(name, duration, tps, ch)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	return track
}

func TestRootChildTranslation(t *testing.T) {
	h, bones := rootChild(t)
	track := mustTrack(t, "slide", 1, 1, map[string]Channels{
		"child": {Positions: []VectorKey{
			{Time: 0, Value: math.Vec3{}},
			{Time: 1, Value: math.Vec3{X: 1}},
		}},
	})

	pose := EvaluatePose(track, h, bones, math.Identity(), Playback{Time: 0.5}, nil)
	if len(pose) != 2 {
		t.Fatalf("got %d matrices, want 2", len(pose))
	}
	if got := pose[1].Translation(); !vecNear(got, math.Vec3{X: 0.5}) {
		t.Errorf("child translation = %v, want (0.5, 0, 0)", got)
	}
	if !pose[0].IsIdentity() {
		t.Errorf("root should stay at its identity bind pose, got %v", pose[0])
	}
}

func TestIdentityTrack(t *testing.T) {
	h, _ := rootChild(t)
	bones := skeleton.NewBoneData()
	bones.Add("a", math.Translate(1, 2, 3))
	bones.Add("b", math.Identity())
	bones.Add("c", math.Identity())

	track := mustTrack(t, "none", 10, 24, nil)
	pose := EvaluatePose(track, h, bones, math.Translate(5, 5, 5), Playback{Time: 3}, nil)
	if len(pose) != 3 {
		t.Fatalf("got %d matrices, want 3", len(pose))
	}
	for i, m := range pose {
		if !m.IsIdentity() {
			t.Errorf("matrix %d is not identity: %v", i, m)
		}
	}
}

func TestFrameClampWindow(t *testing.T) {
	track := mustTrack(t, "run", 100, 24, nil)

	var p Playback
	p.SetFrameClamp(10, 20)

	tests := []struct {
		seconds float64
		want    float64
	}{
		{0, 10},
		{0.5, 12},
		{20.0 / 24, 20},
		{1, 20},
		{5, 20},
		{100, 20},
	}
	for _, tt := range tests {
		p.SetTime(tt.seconds)
		got := p.EffectiveTime(track)
		if gomath.Abs(got-tt.want) > 1e-9 {
			t.Errorf("time %vs: effective %v, want %v", tt.seconds, got, tt.want)
		}
		if got < 10 || got > 20 {
			t.Errorf("time %vs: effective %v left the window", tt.seconds, got)
		}
	}
}

func TestFrameClampPose(t *testing.T) {
	h, bones := rootChild(t)
	track := mustTrack(t, "walk", 30, 24, map[string]Channels{
		"child": {Positions: []VectorKey{
			{Time: 0, Value: math.Vec3{}},
			{Time: 30, Value: math.Vec3{X: 30}},
		}},
	})

	p := Playback{}
	p.SetFrameClamp(10, 20)
	for _, sec := range []float64{1, 2, 10} {
		p.SetTime(sec)
		pose := EvaluatePose(track, h, bones, math.Identity(), p, nil)
		if got := pose[1].Translation(); !vecNear(got, math.Vec3{X: 20}) {
			t.Errorf("time %vs: translation %v, want clamped at 20", sec, got)
		}
	}
}

func TestEffectiveTime(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		tps      float64
		p        Playback
		want     float64
	}{
		{"wraps", 10, 1, Playback{Time: 12}, 2},
		{"default rate", 100, 0, Playback{Time: 2}, 50},
		{"zero duration", 0, 24, Playback{Time: 5}, 0},
		{"negative time wraps forward", 10, 1, Playback{Time: -3}, 7},
		{"once stops at end", 10, 1, Playback{Time: 12, Once: true}, 10},
		{"reversed window", 100, 1, func() Playback {
			var p Playback
			p.SetFrameClamp(20, 10)
			p.SetTime(50)
			return p
		}(), 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track := mustTrack(t, tt.name, tt.duration, tt.tps, nil)
			if got := tt.p.EffectiveTime(track); gomath.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EffectiveTime = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEndpointsExact(t *testing.T) {
	pos := []VectorKey{
		{Time: 1, Value: math.Vec3{X: 0.1, Y: 0.7, Z: -3}},
		{Time: 4, Value: math.Vec3{X: 9.3, Y: -2.2, Z: 0.01}},
		{Time: 9, Value: math.Vec3{X: 1.0 / 3, Y: 5, Z: 6}},
	}
	rot := []QuatKey{
		{Time: 1, Value: math.QuatFromAxisAngle(math.Vec3{X: 1}, 0.4)},
		{Time: 9, Value: math.QuatFromAxisAngle(math.Vec3{Y: 1}, 2.9)},
	}

	for _, k := range pos {
		var slot int
		if got := interpolateVector(pos, k.Time, &slot); got != k.Value {
			t.Errorf("position at %v = %v, want %v", k.Time, got, k.Value)
		}
	}
	for _, k := range rot {
		var slot int
		if got := interpolateRotation(rot, k.Time, &slot); got != k.Value {
			t.Errorf("rotation at %v = %v, want %v", k.Time, got, k.Value)
		}
	}

	// Outside the keys the endpoints are held.
	var slot int
	if got := interpolateVector(pos, -5, &slot); got != pos[0].Value {
		t.Errorf("before first key = %v", got)
	}
	if got := interpolateVector(pos, 50, &slot); got != pos[2].Value {
		t.Errorf("after last key = %v", got)
	}
	if got := interpolateRotation(rot, 50, &slot); got != rot[1].Value {
		t.Errorf("rotation after last key = %v", got)
	}
}

func TestSingleKeyIsConstant(t *testing.T) {
	keys := []VectorKey{{Time: 3, Value: math.Vec3{X: 1, Y: 2, Z: 3}}}
	for _, tm := range []float64{-1, 0, 3, 7.5, 1e6} {
		slot := 1
		if got := interpolateVector(keys, tm, &slot); got != keys[0].Value {
			t.Errorf("t=%v: got %v", tm, got)
		}
	}
}

func TestFindKeyIgnoresHint(t *testing.T) {
	keys := []VectorKey{{Time: 0}, {Time: 1}, {Time: 1}, {Time: 2}, {Time: 5}, {Time: 8}}
	for _, tm := range []float64{-1, 0, 0.5, 1, 1.5, 2, 4.9, 5, 7, 8, 9} {
		want := findKey(keys, tm, 0)
		for hint := -2; hint < len(keys)+2; hint++ {
			if got := findKey(keys, tm, hint); got != want {
				t.Errorf("t=%v hint=%d: got %d, want %d", tm, hint, got, want)
			}
		}
	}
}

// walkRig is a three bone chain with channels of different lengths, so the
// shared cache slots are stale for most bones.
func walkRig(t *testing.T) (*Track, *skeleton.Hierarchy, *skeleton.BoneData) {
	t.Helper()
	h, err := skeleton.New([]skeleton.Joint{
		{Name: "hips", Transform: math.Translate(0, 1, 0), Parent: -1},
		{Name: "thigh", Transform: math.Translate(0.2, -0.1, 0), Parent: 0},
		{Name: "shin", Transform: math.Translate(0, -0.5, 0), Parent: 1},
		{Name: "toe", Transform: math.Translate(0, -0.5, 0.1), Parent: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	bones := skeleton.NewBoneData()
	bones.Add("shin", math.Translate(0, 0.6, 0))
	bones.Add("hips", math.Translate(0, -1, 0))
	bones.Add("toe", math.Identity())

	axis := math.Vec3{X: 1}
	track := mustTrack(t, "walk", 40, 20, map[string]Channels{
		"hips": {
			Positions: []VectorKey{{0, math.Vec3{Y: 1}}, {20, math.Vec3{Y: 1.1}}, {40, math.Vec3{Y: 1}}},
		},
		"thigh": {
			Rotations: []QuatKey{
				{0, math.QuatFromAxisAngle(axis, -0.5)},
				{10, math.QuatFromAxisAngle(axis, 0)},
				{20, math.QuatFromAxisAngle(axis, 0.5)},
				{30, math.QuatFromAxisAngle(axis, 0)},
				{40, math.QuatFromAxisAngle(axis, -0.5)},
			},
			Scales: []VectorKey{{5, math.Vec3One()}, {35, math.Vec3{X: 1, Y: 1.2, Z: 1}}},
		},
		"shin": {
			Positions: []VectorKey{{0, math.Vec3{Y: -0.5}}},
			Rotations: []QuatKey{{0, math.QuatIdentity()}, {13, math.QuatFromAxisAngle(axis, 0.8)}, {27, math.QuatIdentity()}},
			Scales:    []VectorKey{{0, math.Vec3One()}},
		},
		"ghost": {Positions: []VectorKey{{0, math.Vec3{X: 100}}}},
	})
	return track, h, bones
}

func TestWarmCacheMatchesCold(t *testing.T) {
	track, h, bones := walkRig(t)
	inv := math.Translate(0, 0, -2)

	var warm KeyCache
	var e Evaluator
	for step := 0; step < 200; step++ {
		p := Playback{Time: float64(step) * 0.0137}
		hot := e.Evaluate(track, h, bones, inv, p, &warm)

		var cold KeyCache
		ref := EvaluatePose(track, h, bones, inv, p, &cold)
		if len(hot) != len(ref) {
			t.Fatalf("step %d: lengths differ", step)
		}
		for i := range ref {
			if hot[i] != ref[i] {
				t.Fatalf("step %d bone %d: warm %v != cold %v", step, i, hot[i], ref[i])
			}
		}
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	track, h, bones := walkRig(t)
	p := Playback{Time: 0.77}

	var c1, c2 KeyCache
	a := EvaluatePose(track, h, bones, math.Identity(), p, &c1)
	b := EvaluatePose(track, h, bones, math.Identity(), p, &c2)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("bone %d differs between evaluations", i)
		}
	}
	if c1 != c2 {
		t.Errorf("caches differ: %v vs %v", c1, c2)
	}
}

func TestUnregisteredBonePropagates(t *testing.T) {
	track, h, bones := walkRig(t)

	// At t=0 thigh is rotated -0.5 rad around X; it is not registered but
	// its children must see that rotation.
	pose := EvaluatePose(track, h, bones, math.Identity(), Playback{}, nil)

	hips := math.Translate(0, 1, 0)
	thigh := math.Compose(math.Vec3{X: 0.2, Y: -0.1}, math.QuatFromAxisAngle(math.Vec3{X: 1}, -0.5), math.Vec3One())
	shin := math.Translate(0, -0.5, 0)
	want := hips.Mul(thigh).Mul(shin).Mul(math.Translate(0, 0.6, 0))

	if !pose[0].ApproxEqual(want, 1e-5) {
		t.Errorf("shin matrix = %v, want %v", pose[0], want)
	}
}

func TestBindPoseFallbacks(t *testing.T) {
	h, err := skeleton.New([]skeleton.Joint{
		{Name: "root", Transform: math.Compose(math.Vec3{X: 2}, math.QuatFromAxisAngle(math.Vec3{Z: 1}, 0.3), math.Vec3{X: 2, Y: 2, Z: 2}), Parent: -1},
		{Name: "still", Transform: math.Translate(0, 3, 0), Parent: 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	bones := skeleton.NewBoneData()
	bones.Add("root", math.Identity())
	bones.Add("still", math.Identity())

	// root only animates position; rotation and scale come from the bind pose.
	track := mustTrack(t, "bob", 10, 1, map[string]Channels{
		"root": {Positions: []VectorKey{{0, math.Vec3{Y: 1}}}},
	})
	pose := EvaluatePose(track, h, bones, math.Identity(), Playback{Time: 4}, nil)

	root := math.Compose(math.Vec3{Y: 1}, math.QuatFromAxisAngle(math.Vec3{Z: 1}, 0.3), math.Vec3{X: 2, Y: 2, Z: 2})
	if !pose[0].ApproxEqual(root, 1e-5) {
		t.Errorf("root = %v, want %v", pose[0], root)
	}
	if !pose[1].ApproxEqual(root.Mul(math.Translate(0, 3, 0)), 1e-5) {
		t.Errorf("still bone should keep its bind transform under the animated root")
	}
}

func TestDegenerateInputsDoNotPanic(t *testing.T) {
	empty, err := skeleton.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	bones := skeleton.NewBoneData()
	bones.Add("x", math.Identity())

	track := mustTrack(t, "zero", 0, 0, map[string]Channels{
		"nobody": {Positions: []VectorKey{{0, math.Vec3{X: 1}}, {0, math.Vec3{X: 2}}}},
	})

	pose := EvaluatePose(track, empty, bones, math.Identity(), Playback{Time: 3}, nil)
	if len(pose) != 1 || !pose[0].IsIdentity() {
		t.Errorf("empty hierarchy: got %v", pose)
	}

	h, _ := rootChild(t)
	pose = EvaluatePose(track, h, nil, math.Identity(), Playback{Time: 3}, nil)
	if len(pose) != 0 {
		t.Errorf("nil bone data: got %d matrices", len(pose))
	}
	pose = EvaluatePose(nil, h, bones, math.Identity(), Playback{}, nil)
	if len(pose) != 1 {
		t.Errorf("nil track: got %d matrices", len(pose))
	}
}

func TestNewTrackRejectsUnorderedKeys(t *testing.T) {
	_, err := NewTrack("bad", 10, 1, map[string]Channels{
		"b": {Rotations: []QuatKey{{Time: 2, Value: math.QuatIdentity()}, {Time: 1, Value: math.QuatIdentity()}}},
	})
	if err == nil {
		t.Fatal("expected an error for decreasing key times")
	}

	track := mustTrack(t, "ok", 10, 1, map[string]Channels{"b": {}, "a": {}})
	if names := track.Bones(); len(names) != 2 || names[0] != "a" {
		t.Errorf("Bones() = %v", names)
	}
}

func TestAnimationLifecycle(t *testing.T) {
	dev := memdevice.New()
	h, bones := rootChild(t)
	track := mustTrack(t, "slide", 1, 1, map[string]Channels{
		"child": {Positions: []VectorKey{{0, math.Vec3{}}, {1, math.Vec3{X: 1}}}},
	})
	a := New(dev, track)

	if err := a.PushToVideoMemory(); !errors.Is(err, resource.ErrNotAllocated) {
		t.Fatalf("push before allocate: got %v", err)
	}
	if err := a.AllocateVideoMemory(); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	var se *resource.StateError
	if err := a.AllocateVideoMemory(); !errors.As(err, &se) {
		t.Fatalf("second allocate: got %v, want StateError", err)
	}

	var cache KeyCache
	a.SetAnimationTime(0.5)
	a.Calculate(math.Identity(), h, bones, &cache)
	if a.State() != resource.Dirty {
		t.Errorf("state after Calculate = %v, want dirty", a.State())
	}

	// Two matrices do not fit the single-matrix buffer made at allocation.
	before := a.Handle()
	if err := a.PushToVideoMemory(); err != nil {
		t.Fatalf("push: %v", err)
	}
	if a.Handle() == before {
		t.Error("growing the pose should reallocate the buffer")
	}
	if dev.Live().Buffers != 1 {
		t.Errorf("live buffers = %d, want 1", dev.Live().Buffers)
	}

	data, ok := dev.BufferData(a.Handle())
	if !ok || len(data) != 2*math.Mat4Size {
		t.Fatalf("buffer holds %d bytes, want %d", len(data), 2*math.Mat4Size)
	}
	if string(data) != string(device.Bytes(a.Transforms())) {
		t.Error("uploaded bytes differ from the local pose")
	}
	if a.State() != resource.PushedCurrent {
		t.Errorf("state = %v, want pushed", a.State())
	}

	if err := a.PullFromVideoMemory(); err != nil {
		t.Errorf("pull: %v", err)
	}

	if err := a.FreeVideoMemory(); err != nil {
		t.Fatalf("free: %v", err)
	}
	if err := a.FreeVideoMemory(); err != nil {
		t.Errorf("second free should be a no-op, got %v", err)
	}
	if dev.Live().Buffers != 0 {
		t.Error("buffer leaked")
	}
}

func TestAnimationAllocateDeviceError(t *testing.T) {
	dev := memdevice.New()
	a := New(dev, mustTrack(t, "x", 1, 1, nil))
	dev.FailNext(memdevice.OpCreateBuffer, device.CodeOutOfMemory)

	err := a.AllocateVideoMemory()
	var de *resource.DeviceError
	if !errors.As(err, &de) || de.Name != "GL_OUT_OF_MEMORY" {
		t.Fatalf("got %v, want DeviceError GL_OUT_OF_MEMORY", err)
	}
	if a.State() != resource.Unallocated || a.Handle() != device.None {
		t.Error("failed allocation should leave the animation unallocated")
	}
	if dev.Live().Buffers != 0 {
		t.Error("partial buffer should be released")
	}
}

func TestIdentityAnimationIsStateless(t *testing.T) {
	dev := memdevice.New()
	a := NewIdentity(dev, 2)
	h, _ := rootChild(t)

	a.SetAnimationTime(12)
	a.SetFrameClamp(3, 4)
	if a.Playback() != (Playback{}) {
		t.Error("identity animation should ignore time and window")
	}

	bones := skeleton.NewBoneData()
	for _, n := range []string{"a", "b", "c"} {
		bones.Add(n, math.Translate(1, 1, 1))
	}
	pose := a.Calculate(math.Translate(9, 9, 9), h, bones, nil)
	if len(pose) != 3 {
		t.Fatalf("got %d matrices, want 3", len(pose))
	}
	for i, m := range pose {
		if !m.IsIdentity() {
			t.Errorf("matrix %d not identity", i)
		}
	}

	if err := a.AllocateVideoMemory(); err != nil {
		t.Fatal(err)
	}
	if err := a.PushToVideoMemory(); err != nil {
		t.Fatal(err)
	}
	a.Calculate(math.Identity(), h, bones, nil)
	if a.State() != resource.PushedCurrent {
		t.Error("recalculating identity should not dirty the buffer")
	}
}

func TestGenerateIdentity(t *testing.T) {
	a := New(memdevice.New(), mustTrack(t, "x", 1, 1, nil))
	a.GenerateIdentity(4)
	if len(a.Transforms()) != 4 || !a.Transforms()[3].IsIdentity() {
		t.Errorf("GenerateIdentity(4) = %v", a.Transforms())
	}
	a.FreeLocalData()
	if a.Transforms() != nil {
		t.Error("FreeLocalData should drop the pose")
	}
}
