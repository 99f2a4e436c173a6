//go:build windows

package helpers

import (
	"syscall"
	"unsafe"
)

type memoryStatusEx struct {
	length               uint32
	memoryLoad           uint32
	totalPhys            uint64
	availPhys            uint64
	totalPageFile        uint64
	availPageFile        uint64
	totalVirtual         uint64
	availVirtual         uint64
	availExtendedVirtual uint64
}

var (
	kernel32               = syscall.NewLazyDLL("kernel32.dll")
	procGlobalMemoryStatus = kernel32.NewProc("GlobalMemoryStatusEx")
)

// GetTotalSystemMemoryMB returns the total physical memory in MB.
// Returns 0 when GlobalMemoryStatusEx is unavailable or fails.
func GetTotalSystemMemoryMB() int {
	var status memoryStatusEx
	status.length = uint32(unsafe.Sizeof(status))

	ret, _, _ := procGlobalMemoryStatus.Call(uintptr(unsafe.Pointer(&status)))
	if ret == 0 {
		return 0
	}

	return int(status.totalPhys / 1024 / 1024)
}
