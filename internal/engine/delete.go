package engine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bamsammich/shuttle/internal/pathutil"
)

// Delete removes path and, for a directory, everything below it. A path
// that does not exist is already deleted and is not an error.
func (e *Engine) Delete(path string) error {
	_, err := e.DeleteTree(path)
	return err
}

// DeleteTree is Delete that also reports how many entries it removed,
// including on failure. It refuses the filesystem root.
func (e *Engine) DeleteTree(path string) (int64, error) {
	if err := pathutil.Validate(path); err != nil {
		return 0, newError(InvalidPath, "delete", path, err)
	}
	// A trailing separator would make lstat follow a final symlink.
	path = pathutil.TrimTrailing(path)
	if isRoot(path) {
		return 0, errorf(InvalidPath, "delete", path, "refusing to delete the filesystem root")
	}
	d := &deleteRun{e: e}
	err := d.remove(path)
	if err != nil {
		e.log.Debug("delete failed", "path", path, "removed", d.removed, "error", err)
	}
	return d.removed, err
}

type deleteRun struct {
	e       *Engine
	removed int64
}

// remove deletes path post-order. Symlinks are removed, never followed.
func (d *deleteRun) remove(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return wrapErr("stat", path, err)
	}

	kind := kindOf(info)
	if kind == Directory {
		if err := d.removeChildren(path); err != nil {
			return err
		}
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return wrapErr("remove", path, err)
	}
	d.removed++
	if d.e.opts.OnDelete != nil {
		d.e.opts.OnDelete(path, kind)
	}
	return nil
}

// removeChildren lists dir in full before removing anything, so removals
// cannot disturb the directory stream. The first failing child stops it.
func (d *deleteRun) removeChildren(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return wrapErr("open", dir, err)
	}
	names, err := f.Readdirnames(-1)
	f.Close()
	if err != nil {
		return wrapErr("readdir", dir, err)
	}

	for _, name := range names {
		child, err := pathutil.Join(dir, name)
		if err != nil {
			return newError(PartialFailure, "delete", dir, newError(InvalidPath, "delete", dir, err))
		}
		if err := d.remove(child); err != nil {
			return newError(PartialFailure, "delete", dir, err)
		}
	}
	return nil
}

// isRoot reports whether path resolves lexically to "/".
func isRoot(path string) bool {
	abs, err := filepath.Abs(path)
	return err == nil && abs == "/"
}
