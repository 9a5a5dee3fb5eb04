package history

import "errors"

// ErrPersistence is returned when history records cannot be written.
var ErrPersistence = errors.New("failed to persist download history")
