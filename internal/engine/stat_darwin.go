//go:build darwin

package engine

import (
	"fmt"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// atimeFromStat returns the access time from a syscall.Stat_t.
func atimeFromStat(stat *syscall.Stat_t) time.Time {
	return time.Unix(stat.Atimespec.Sec, stat.Atimespec.Nsec)
}

// setFileTimes sets atime and mtime on a file by path.
// Darwin lacks AT_EMPTY_PATH, so we always use path-based utimensat.
func setFileTimes(_ int, fdPath string, accTime, modTime time.Time) error {
	times := []unix.Timespec{
		unix.NsecToTimespec(accTime.UnixNano()),
		unix.NsecToTimespec(modTime.UnixNano()),
	}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, fdPath, times, 0); err != nil {
		return fmt.Errorf("utimensat: %w", err)
	}
	return nil
}
