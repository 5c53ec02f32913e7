//go:build !linux

package bbolt

// MAP_POPULATE only exists on Linux.
func mmapFlags(bool) int {
	return 0
}
