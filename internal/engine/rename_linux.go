//go:build linux

package engine

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// renameNoReplace renames src to dst, failing with EEXIST if dst appears
// in the meantime. Kernels or filesystems without RENAME_NOREPLACE fall
// back to a check-then-rename.
func renameNoReplace(src, dst string) error {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.ENOSYS) && !errors.Is(err, unix.EINVAL) {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: err}
	}
	if exists(dst) {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: unix.EEXIST}
	}
	return os.Rename(src, dst)
}
