//go:build windows

package main

// runningAsRoot has no equivalent privilege check on windows; the engine's
// own forwarding adapter already rejects the platform with ErrUnsupportedOS.
func runningAsRoot() bool {
	return true
}
