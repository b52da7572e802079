//go:build !windows

package transfer

import (
	"os"
	"syscall"
)

// freeDiskSpace reports the bytes available to the caller under dir.
func freeDiskSpace(dir string) (int64, bool) {
	stat, err := os.Stat(dir)
	if err != nil || !stat.IsDir() {
		return 0, false
	}

	var fs syscall.Statfs_t
	if err := syscall.Statfs(dir, &fs); err != nil {
		return 0, false
	}

	return int64(fs.Bavail) * int64(fs.Bsize), true
}
