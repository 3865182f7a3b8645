package inventory

import "errors"

// ErrDeviceNotFound is returned when a device ID does not exist.
var ErrDeviceNotFound = errors.New("device not found")
