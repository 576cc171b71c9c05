package mesh

import "errors"

// ErrNoLocalData is returned when uploading a mesh whose local data was freed.
var ErrNoLocalData = errors.New("local vertex data was freed")
