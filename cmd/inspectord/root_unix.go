//go:build !windows

package main

import "os"

// runningAsRoot mirrors the original's geteuid() == 0 check in
// networking.py: IP forwarding and raw capture both require root.
func runningAsRoot() bool {
	return os.Geteuid() == 0
}
