//go:build windows

package transfer

import (
	"os"

	"golang.org/x/sys/windows"
)

// freeDiskSpace reports the bytes available to the caller under dir.
func freeDiskSpace(dir string) (int64, bool) {
	stat, err := os.Stat(dir)
	if err != nil || !stat.IsDir() {
		return 0, false
	}

	ptr, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, false
	}

	var freeBytes, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(ptr, &freeBytes, &totalBytes, &totalFreeBytes); err != nil {
		return 0, false
	}

	return int64(freeBytes), true
}
