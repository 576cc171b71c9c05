package model

import "errors"

var (
	ErrUnknownAnimation = errors.New("animation not added to model")
	ErrSlotRange        = errors.New("mesh slot out of range")
)
