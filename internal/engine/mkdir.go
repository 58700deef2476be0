package engine

import (
	"errors"
	"io/fs"
	"os"

	"github.com/bamsammich/shuttle/internal/pathutil"
)

// dirMode is the mode new directories are created with, before umask.
const dirMode = 0o775

// EnsureDir creates path and every missing ancestor (mkdir -p). Existing
// components are fine; any other mkdir failure fails the whole call.
func EnsureDir(path string) error {
	_, err := ensureDir(path)
	return err
}

// ensureDir is EnsureDir that also returns the directories it created,
// shallowest first, so a failed move can remove exactly what it wrote.
func ensureDir(path string) ([]string, error) {
	if err := pathutil.Validate(path); err != nil {
		return nil, wrapErr("mkdir", path, err)
	}
	p := pathutil.TrimTrailing(path)
	if p == "/" {
		return nil, nil
	}

	var created []string
	mk := func(dir string) error {
		err := os.Mkdir(dir, dirMode)
		switch {
		case err == nil:
			created = append(created, dir)
			return nil
		case errors.Is(err, fs.ErrExist):
			return nil
		default:
			return newError(IOFailure, "mkdir", dir, err)
		}
	}

	for i := 1; i < len(p); i++ {
		if p[i] != '/' || p[i-1] == '/' {
			continue
		}
		if err := mk(p[:i]); err != nil {
			return created, err
		}
	}
	if err := mk(p); err != nil {
		return created, err
	}
	return created, nil
}
