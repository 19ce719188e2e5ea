package task

import "errors"

// ErrManagerStopped is returned by Submit after Stop.
var ErrManagerStopped = errors.New("task manager stopped")
