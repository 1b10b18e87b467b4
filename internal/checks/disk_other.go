//go:build !(linux || darwin || freebsd)

package checks

import "errors"

func freeKB(string) (int64, error) {
	return 0, errors.New("disk space check is not supported on this platform")
}
