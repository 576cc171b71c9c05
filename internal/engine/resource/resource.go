// Package resource holds the lifecycle shared by every GPU-backed asset:
// allocate, push, pull, free and freeing local data, plus the errors those
// steps report.
package resource

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/engine/device"
	"github.com/Faultbox/glr/internal/logger"
)

// State is where a resource is in its device lifecycle.
type State int

const (
	Unallocated State = iota
	Allocated
	PushedCurrent
	Dirty
)

func (s State) String() string {
	switch s {
	case Unallocated:
		return "unallocated"
	case Allocated:
		return "allocated"
	case PushedCurrent:
		return "pushed"
	case Dirty:
		return "dirty"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FreePolicy decides what freeing an unallocated resource does.
type FreePolicy int

const (
	// FreeTolerant makes a second free a no-op.
	FreeTolerant FreePolicy = iota
	// FreeStrict makes freeing without a device buffer an error.
	FreeStrict
)

// Resource is the device-side contract of an asset. Every method except
// FreeLocalData, State and Handle must run on the device thread.
type Resource interface {
	AllocateVideoMemory() error
	PushToVideoMemory() error
	PullFromVideoMemory() error
	FreeVideoMemory() error
	FreeLocalData()
	State() State
	Handle() device.Handle
}

// Lifecycle tracks the state of one resource and produces its errors.
// Assets embed it and call the Begin/transition methods around their device
// work.
type Lifecycle struct {
	Kind   string
	Name   string
	Policy FreePolicy

	state State
}

// NewLifecycle returns an unallocated lifecycle.
func NewLifecycle(kind, name string, policy FreePolicy) Lifecycle {
	return Lifecycle{Kind: kind, Name: name, Policy: policy}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return l.state
}

// IsVideoMemoryAllocated reports whether device storage exists.
func (l *Lifecycle) IsVideoMemoryAllocated() bool {
	return l.state != Unallocated
}

// IsDirty reports whether local data changed since the last push.
func (l *Lifecycle) IsDirty() bool {
	return l.state == Dirty
}

// BeginAllocate fails unless the resource is unallocated.
func (l *Lifecycle) BeginAllocate() error {
	if l.state != Unallocated {
		return l.stateError("allocate", ErrAlreadyAllocated)
	}
	return nil
}

// Allocated records a successful allocation.
func (l *Lifecycle) Allocated() {
	l.state = Allocated
	logger.Debug("allocated video memory", l.fields()...)
}

// BeginPush fails when nothing was allocated.
func (l *Lifecycle) BeginPush() error {
	return l.requireAllocated("push")
}

// Pushed records a successful upload.
func (l *Lifecycle) Pushed() {
	l.state = PushedCurrent
}

// BeginPull fails when nothing was allocated.
func (l *Lifecycle) BeginPull() error {
	return l.requireAllocated("pull")
}

// BeginBind fails when there is nothing to bind or draw.
func (l *Lifecycle) BeginBind() error {
	return l.requireAllocated("bind")
}

func (l *Lifecycle) requireAllocated(op string) error {
	if l.state == Unallocated {
		return l.stateError(op, ErrNotAllocated)
	}
	return nil
}

// MarkDirty records a local mutation. Unallocated resources stay unallocated.
func (l *Lifecycle) MarkDirty() {
	if l.state == Allocated || l.state == PushedCurrent {
		l.state = Dirty
	}
}

// BeginFree reports whether there is device storage to release. Freeing an
// unallocated resource is an error under FreeStrict and a no-op otherwise.
func (l *Lifecycle) BeginFree() (bool, error) {
	if l.state != Unallocated {
		return true, nil
	}
	if l.Policy == FreeStrict {
		return false, l.stateError("free", ErrNoBuffer)
	}
	return false, nil
}

// Freed records that device storage was released.
func (l *Lifecycle) Freed() {
	l.state = Unallocated
	logger.Debug("freed video memory", l.fields()...)
}

// CheckDevice turns a pending device error into a DeviceError for op.
func (l *Lifecycle) CheckDevice(dev device.Device, op string) error {
	e := dev.Error()
	if e.OK() {
		return nil
	}
	err := &DeviceError{Resource: l.label(), Op: op, Code: e.Code, Name: e.Name}
	logger.Error("device error", append(l.fields(), zap.String("op", op), zap.String("error", e.Name))...)
	return err
}

// FormatError builds a FormatError for this resource.
func (l *Lifecycle) FormatError(err error, detail string) error {
	return &FormatError{Resource: l.label(), Err: err, Detail: detail}
}

func (l *Lifecycle) stateError(op string, err error) error {
	return &StateError{Resource: l.label(), Op: op, State: l.state, Err: err}
}

func (l *Lifecycle) label() string {
	if l.Name == "" {
		return l.Kind
	}
	return l.Kind + " " + l.Name
}

func (l *Lifecycle) fields() []zap.Field {
	return []zap.Field{
		zap.String("kind", l.Kind),
		zap.String("resource", l.Name),
	}
}
