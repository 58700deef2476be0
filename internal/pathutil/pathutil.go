// Package pathutil builds and checks the paths handed to the transfer engine.
//
// Paths are plain byte strings with '/' separators. Every composed path is
// bounded by MaxPath; a path that would exceed it is rejected, never
// truncated, so an operation can never be redirected onto a shorter prefix.
package pathutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// MaxPath is the longest path, in bytes, the engine will operate on.
const MaxPath = 4095

// maxUnique bounds the candidates UniqueName will try.
const maxUnique = 999

var (
	// ErrTooLong is returned when a path exceeds MaxPath.
	ErrTooLong = errors.New("path exceeds maximum length")
	// ErrEmpty is returned for an empty path.
	ErrEmpty = errors.New("empty path")
	// ErrBadName is returned for child names that are not a single path element.
	ErrBadName = errors.New("invalid path element")
	// ErrNoUniqueName is returned when UniqueName runs out of candidates.
	ErrNoUniqueName = errors.New("no free name available")
)

// Validate checks a caller-supplied path: non-empty, no NUL bytes, and no
// longer than MaxPath.
func Validate(p string) error {
	if p == "" {
		return ErrEmpty
	}
	if strings.IndexByte(p, 0) >= 0 {
		return fmt.Errorf("%q: %w", p, ErrBadName)
	}
	if len(p) > MaxPath {
		return fmt.Errorf("%.64s...: %w", p, ErrTooLong)
	}
	return nil
}

// Join appends a single child name to base. Unlike filepath.Join it does not
// clean the result and it fails instead of producing a path over MaxPath.
func Join(base, name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.IndexByte(name, '/') >= 0 || strings.IndexByte(name, 0) >= 0 {
		return "", fmt.Errorf("%q: %w", name, ErrBadName)
	}
	var p string
	if strings.HasSuffix(base, "/") {
		p = base + name
	} else {
		p = base + "/" + name
	}
	if len(p) > MaxPath {
		return "", fmt.Errorf("%s/%s: %w", truncForMsg(base), name, ErrTooLong)
	}
	return p, nil
}

// Parent returns the directory containing p, ignoring trailing separators.
// It returns "" when p has no parent component (a bare name).
func Parent(p string) string {
	p = TrimTrailing(p)
	i := strings.LastIndexByte(p, '/')
	switch {
	case i < 0:
		return ""
	case i == 0:
		return "/"
	default:
		return p[:i]
	}
}

// TrimTrailing strips trailing separators, keeping a lone "/".
func TrimTrailing(p string) string {
	for len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

// Within reports whether child is root itself or lies inside root. Both are
// made absolute and cleaned first; symlinks are not resolved.
func Within(root, child string) (bool, error) {
	r, err := filepath.Abs(root)
	if err != nil {
		return false, err
	}
	c, err := filepath.Abs(child)
	if err != nil {
		return false, err
	}
	if r == c {
		return true, nil
	}
	if r != "/" {
		r += "/"
	}
	return strings.HasPrefix(c, r), nil
}

// UniqueName returns the first candidate of the form "name (N).ext" that
// exists() reports as free. Dotfiles keep their leading dot in the stem.
func UniqueName(p string, exists func(string) bool) (string, error) {
	dir := Parent(p)
	base := TrimTrailing(p)
	if dir != "" {
		base = base[len(dir):]
		base = strings.TrimPrefix(base, "/")
	}

	stem, ext := base, ""
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		stem, ext = base[:i], base[i:]
	}

	for n := 1; n <= maxUnique; n++ {
		name := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		candidate := name
		if dir != "" {
			var err error
			candidate, err = Join(dir, name)
			if err != nil {
				return "", err
			}
		}
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: %w", p, ErrNoUniqueName)
}

func truncForMsg(p string) string {
	if len(p) <= 64 {
		return p
	}
	return p[:64] + "..."
}
