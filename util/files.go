package util

import (
	"golang.org/x/sys/unix"
)

// DiskFree returns the free bytes of the filesystem holding the given path
func DiskFree(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
