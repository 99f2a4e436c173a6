//go:build darwin

package helpers

import "syscall"

// GetTotalSystemMemoryMB returns the total physical memory in MB.
// Returns 0 when the hw.memsize sysctl cannot be read.
func GetTotalSystemMemoryMB() int {
	totalBytes, err := syscall.SysctlUint64("hw.memsize")
	if err != nil {
		return 0
	}
	return int(totalBytes / 1024 / 1024)
}
