// Package forwarding toggles the OS IP-forwarding knob the spoofer relies
// on to actually redirect traffic (spec §6 "OS IP forwarding"). Enabling
// it is a process-startup concern, disabling it a clean-shutdown one;
// neither is part of the spoofer's own logic.
package forwarding

import "errors"

// ErrUnsupportedOS is returned by Toggle on platforms this inspector
// doesn't ship support for (spec §9: "tested on Linux, matching the
// teacher and the rest of the pack").
var ErrUnsupportedOS = errors.New("forwarding: unsupported OS")

// Toggler enables or disables IP forwarding on exactly one interface
// bundle, i.e. process-wide.
type Toggler interface {
	Enable() error
	Disable() error
}
