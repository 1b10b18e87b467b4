//go:build linux || darwin || freebsd

package checks

import "golang.org/x/sys/unix"

func freeKB(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return int64(st.Bavail) * int64(st.Bsize) / 1024, nil //nolint:unconvert // field widths differ per OS
}
