package pascope

import "errors"

// ErrNotSupported is returned for mutations the index cannot perform, such
// as renaming a definition.
var ErrNotSupported = errors.New("pascope: operation not supported")

// formatVersionKey is the metadata key holding the stub format the stored
// blobs were written with.
const formatVersionKey = "stub_format_version"
