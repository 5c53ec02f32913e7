//go:build linux

package bbolt

import "syscall"

func mmapFlags(writeMap bool) int {
	if writeMap {
		return syscall.MAP_POPULATE
	}
	return 0
}
