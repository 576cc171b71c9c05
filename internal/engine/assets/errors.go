package assets

import "errors"

// ErrStaleHandle is returned for a handle whose asset was removed.
var ErrStaleHandle = errors.New("stale or unknown asset handle")
