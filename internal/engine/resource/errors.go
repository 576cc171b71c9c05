package resource

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyAllocated = errors.New("video memory already allocated")
	ErrNotAllocated     = errors.New("video memory not allocated")
	ErrNoBuffer         = errors.New("no device buffer to free")
	ErrMixedFormats     = errors.New("layers have mixed formats")
	ErrUnknownFormat    = errors.New("unknown format")
	ErrMixedSizes       = errors.New("layers have mixed sizes")
	ErrStreamLength     = errors.New("vertex streams have different lengths")
)

// StateError reports an operation called in the wrong lifecycle state.
type StateError struct {
	Resource string
	Op       string
	State    State
	Err      error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: cannot %s while %s: %v", e.Resource, e.Op, e.State, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

// DeviceError reports an error code raised by the device during op.
type DeviceError struct {
	Resource string
	Op       string
	Code     uint32
	Name     string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %s: device error %s (0x%04x)", e.Resource, e.Op, e.Name, e.Code)
}

// FormatError reports local data the device cannot take as one upload.
type FormatError struct {
	Resource string
	Err      error
	Detail   string
}

func (e *FormatError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Resource, e.Err, e.Detail)
}

func (e *FormatError) Unwrap() error { return e.Err }
