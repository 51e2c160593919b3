//go:build !linux

package host

// Detect returns a conservative default on platforms without a cheap
// free-memory probe.
func Detect() uint64 {
	return fallbackMemory
}
