package engine

import (
	"os"

	"github.com/bamsammich/shuttle/internal/pathutil"
)

// NodeKind identifies the kind of filesystem entry, as seen without
// following symlinks.
type NodeKind int

const (
	RegularFile NodeKind = iota
	Directory
	Symlink
	Other // sockets, FIFOs, devices
)

func (k NodeKind) String() string {
	switch k {
	case RegularFile:
		return "file"
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	default:
		return "other"
	}
}

// kindOf derives a NodeKind from a non-following stat result.
func kindOf(info os.FileInfo) NodeKind {
	mode := info.Mode()
	switch {
	case mode.IsRegular():
		return RegularFile
	case mode.IsDir():
		return Directory
	case mode&os.ModeSymlink != 0:
		return Symlink
	default:
		return Other
	}
}

// Classify lstats path and reports its kind. A failed stat is always an
// error (NotFound, AccessDenied, ...), never an assumed kind. Trailing
// separators are ignored: "link/" is the symlink, not its target.
func Classify(path string) (NodeKind, os.FileInfo, error) {
	info, err := os.Lstat(pathutil.TrimTrailing(path))
	if err != nil {
		return Other, nil, wrapErr("stat", path, err)
	}
	return kindOf(info), info, nil
}

// exists reports whether anything, including a dangling symlink, is at path.
func exists(path string) bool {
	_, err := os.Lstat(pathutil.TrimTrailing(path))
	return err == nil
}
