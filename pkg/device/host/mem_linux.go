//go:build linux

package host

import "golang.org/x/sys/unix"

// Detect estimates the host memory available for workspaces, in bytes.
func Detect() uint64 {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return fallbackMemory
	}
	free := uint64(si.Freeram) * uint64(si.Unit)
	if free == 0 {
		return fallbackMemory
	}
	return free
}
