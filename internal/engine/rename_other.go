//go:build !linux

package engine

import (
	"os"

	"golang.org/x/sys/unix"
)

// renameNoReplace renames src to dst unless dst already exists.
func renameNoReplace(src, dst string) error {
	if exists(dst) {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: unix.EEXIST}
	}
	return os.Rename(src, dst)
}
