package engine

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"

	"github.com/bamsammich/shuttle/internal/pathutil"
)

// Move relocates src to dst. It tries a single rename first and, when that
// fails (typically across filesystems), copies then deletes. An existing
// dst is never replaced.
func (e *Engine) Move(src, dst string) error {
	if err := pathutil.Validate(src); err != nil {
		return newError(InvalidPath, "move", src, err)
	}
	if err := pathutil.Validate(dst); err != nil {
		return newError(InvalidPath, "move", dst, err)
	}
	src, dst = pathutil.TrimTrailing(src), pathutil.TrimTrailing(dst)
	kind, _, err := Classify(src)
	if err != nil {
		return err
	}
	if exists(dst) {
		return errorf(Conflict, "move", dst, "destination exists")
	}
	if kind == Directory {
		inside, err := pathutil.Within(src, dst)
		if err != nil {
			return newError(InvalidPath, "move", dst, err)
		}
		if inside {
			return errorf(InvalidPath, "move", dst, "destination is inside source %s", src)
		}
	}

	var made []string
	if parent := pathutil.Parent(dst); parent != "" {
		made, err = ensureDir(parent)
		if err != nil {
			if rerr := removeAll(made); rerr != nil {
				e.log.Error("remove created parents", "dst", dst, "error", rerr)
			}
			return err
		}
	}

	e.phase(PhaseRename)
	err = e.rename(src, dst)
	if err == nil {
		e.log.Debug("moved by rename", "src", src, "dst", dst)
		e.phase(PhaseDone)
		return nil
	}
	if refusedRename(err) {
		if rerr := removeAll(made); rerr != nil {
			e.log.Error("remove created parents", "dst", dst, "error", rerr)
		}
		return wrapErr("rename", src, err)
	}

	e.log.Debug("rename failed, copying", "src", src, "dst", dst, "error", err)
	return e.moveAcross(src, dst, made)
}

func (e *Engine) moveAcross(src, dst string, made []string) error {
	e.phase(PhaseCopy)
	r := &copyRun{e: e, created: made}
	res := r.run(src, dst)

	var cause error
	switch {
	case res.Err != nil:
		cause = res.Err
	case res.Outcome == OutcomeConflict:
		cause = errorf(Conflict, "move", dst, "%d destination entries already exist", len(res.Conflicts))
	case res.Stats.Unread > 0:
		cause = errorf(AccessDenied, "move", src, "%d source entries could not be read", res.Stats.Unread)
	case res.Stats.Skipped > 0:
		cause = errorf(Conflict, "move", dst, "%d entries skipped", res.Stats.Skipped)
	}
	if cause != nil {
		return e.rollback(r, dst, cause)
	}

	e.phase(PhaseRemoveSource)
	n, err := e.deleteTree(src)
	if err != nil {
		if n == 0 {
			return e.rollback(r, dst, err)
		}
		// Part of src is gone; dst holds the only full copy now.
		return newError(Inconsistent, "move", src,
			fmt.Errorf("removed %d source entries before failing, complete copy kept at %s: %w", n, dst, err))
	}
	e.phase(PhaseDone)
	return nil
}

func (e *Engine) rollback(r *copyRun, dst string, cause error) error {
	e.phase(PhaseRollback)
	if err := r.rollback(); err != nil {
		e.log.Error("rollback incomplete", "dst", dst, "error", err)
		return newError(Inconsistent, "move", dst, errors.Join(cause, err))
	}
	return cause
}

// removeAll removes paths deepest first, ignoring ones already gone.
func removeAll(paths []string) error {
	var errs []error
	for i := len(paths) - 1; i >= 0; i-- {
		if err := removeIfExists(paths[i]); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", paths[i], err))
		}
	}
	return errors.Join(errs...)
}

// refusedRename reports rename failures that copying cannot get around:
// something appeared at dst after the existence check.
func refusedRename(err error) bool {
	return errors.Is(err, fs.ErrExist) || errors.Is(err, unix.ENOTEMPTY)
}
