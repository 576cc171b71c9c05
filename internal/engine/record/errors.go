package record

import "errors"

var (
	ErrUnknownBone      = errors.New("unknown bone")
	ErrDuplicateChannel = errors.New("bone has more than one channel")
	ErrDuplicateName    = errors.New("name used twice in rig")
	ErrSkinIndex        = errors.New("vertex weight refers to a missing skin slot")
)
