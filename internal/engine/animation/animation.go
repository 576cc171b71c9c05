package animation

import (
	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/engine/device"
	"github.com/Faultbox/glr/internal/engine/resource"
	"github.com/Faultbox/glr/internal/engine/skeleton"
	"github.com/Faultbox/glr/internal/logger"
	"github.com/Faultbox/glr/pkg/math"
)

// Animation is a shared clip plus the uniform buffer its current pose is
// uploaded to. Every instance playing the clip writes the same buffer, so
// set time, Calculate, push and draw must run back to back on the device
// thread for one instance before the next starts.
type Animation struct {
	resource.Lifecycle

	dev      device.Device
	track    *Track
	identity bool

	playback   Playback
	eval       Evaluator
	transforms []math.Mat4

	handle   device.Handle
	capacity int
}

var _ resource.Resource = (*Animation)(nil)

// New wraps track. The buffer is not allocated until AllocateVideoMemory.
func New(dev device.Device, track *Track) *Animation {
	return &Animation{
		Lifecycle: resource.NewLifecycle("animation", track.Name(), resource.FreeTolerant),
		dev:       dev,
		track:     track,
	}
}

// NewIdentity returns the fallback animation bound to meshes with nothing
// playing. It always holds identity matrices; time and window are ignored.
func NewIdentity(dev device.Device, bones int) *Animation {
	track, _ := NewTrack("identity", 0, 0, nil)
	a := New(dev, track)
	a.identity = true
	a.transforms = IdentityPose(bones)
	return a
}

// Name returns the clip name.
func (a *Animation) Name() string { return a.track.Name() }

// Track returns the shared clip.
func (a *Animation) Track() *Track { return a.track }

// IsIdentity reports whether this is an identity animation.
func (a *Animation) IsIdentity() bool { return a.identity }

// SetAnimationTime sets the running time, in seconds, of the next Calculate.
func (a *Animation) SetAnimationTime(seconds float64) {
	if a.identity {
		return
	}
	a.playback.SetTime(seconds)
}

// SetFrameClamp sets the tick window of the next Calculate.
func (a *Animation) SetFrameClamp(start, end float64) {
	if a.identity {
		return
	}
	a.playback.SetFrameClamp(start, end)
}

// SetLooping chooses between wrapping and stopping at the end of the clip.
func (a *Animation) SetLooping(loop bool) {
	if a.identity {
		return
	}
	a.playback.Once = !loop
}

// Playback returns the clock the next Calculate uses.
func (a *Animation) Playback() Playback { return a.playback }

// Calculate evaluates the pose for bones into the local transforms and
// returns them.
func (a *Animation) Calculate(globalInverse math.Mat4, h *skeleton.Hierarchy, bones *skeleton.BoneData, cache *KeyCache) []math.Mat4 {
	if a.identity {
		// Grow only; the content never changes.
		if n := bones.Len(); n > len(a.transforms) {
			a.transforms = IdentityPose(n)
			a.MarkDirty()
		}
		return a.transforms[:bones.Len()]
	}

	pose := a.eval.Evaluate(a.track, h, bones, globalInverse, a.playback, cache)
	a.transforms = append(a.transforms[:0], pose...)
	a.MarkDirty()
	return a.transforms
}

// GenerateIdentity replaces the local transforms with n identity matrices.
func (a *Animation) GenerateIdentity(n int) {
	a.transforms = fillIdentity(resize(a.transforms, n))
	a.MarkDirty()
}

// Transforms returns the local pose.
func (a *Animation) Transforms() []math.Mat4 { return a.transforms }

// Handle returns the uniform buffer, or device.None.
func (a *Animation) Handle() device.Handle { return a.handle }

func (a *Animation) size() int {
	// An empty uniform buffer cannot be bound; keep room for one matrix.
	return max(len(a.transforms), 1) * math.Mat4Size
}

// AllocateVideoMemory creates a uniform buffer sized to the local pose.
func (a *Animation) AllocateVideoMemory() error {
	if err := a.BeginAllocate(); err != nil {
		return err
	}
	if err := a.create(a.size()); err != nil {
		return err
	}
	a.Allocated()
	return nil
}

func (a *Animation) create(size int) error {
	h := a.dev.CreateBuffer(device.UniformBuffer, size)
	if err := a.CheckDevice(a.dev, "allocate"); err != nil {
		a.dev.ReleaseBuffer(h)
		return err
	}
	a.handle = h
	a.capacity = size
	return nil
}

// PushToVideoMemory uploads the local pose, growing the buffer when the
// pose no longer fits.
func (a *Animation) PushToVideoMemory() error {
	if err := a.BeginPush(); err != nil {
		return err
	}
	if a.State() == resource.PushedCurrent {
		return nil
	}

	if size := a.size(); size > a.capacity {
		logger.Debug("growing pose buffer",
			zap.String("resource", a.Name()),
			zap.Int("from", a.capacity),
			zap.Int("to", size),
		)
		a.dev.ReleaseBuffer(a.handle)
		a.handle, a.capacity = device.None, 0
		if err := a.create(size); err != nil {
			a.Freed()
			return err
		}
	}

	a.dev.WriteBuffer(a.handle, 0, device.Bytes(a.transforms))
	if err := a.CheckDevice(a.dev, "push"); err != nil {
		return err
	}
	a.Pushed()
	return nil
}

// PullFromVideoMemory does nothing; the pose is always recomputed locally.
func (a *Animation) PullFromVideoMemory() error {
	return a.BeginPull()
}

// FreeVideoMemory releases the buffer. Freeing twice is a no-op.
func (a *Animation) FreeVideoMemory() error {
	ok, err := a.BeginFree()
	if !ok {
		return err
	}
	a.dev.ReleaseBuffer(a.handle)
	a.handle, a.capacity = device.None, 0
	a.Freed()
	return nil
}

// FreeLocalData drops the local pose.
func (a *Animation) FreeLocalData() {
	a.transforms = nil
}

// Bind attaches the pose buffer to a uniform block binding point.
func (a *Animation) Bind(bindPoint uint32) {
	a.dev.BindUniformBuffer(a.handle, bindPoint)
}
