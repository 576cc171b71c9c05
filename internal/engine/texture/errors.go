package texture

import "errors"

var (
	// ErrNoLocalData is returned when uploading an array whose layers were freed.
	ErrNoLocalData = errors.New("local texture data was freed")
	// ErrShortLayer is returned for a layer with fewer bytes than its size needs.
	ErrShortLayer = errors.New("layer data shorter than its dimensions")
)
