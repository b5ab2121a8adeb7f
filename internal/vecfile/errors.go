package vecfile

import "errors"

// ErrCorrupt is returned by Validate (and surfaced by scans) when a vector
// file's header disagrees with what is actually on disk.
var ErrCorrupt = errors.New("vecfile: corrupted vector file")
