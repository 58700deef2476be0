package engine

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/bamsammich/shuttle/internal/pathutil"
	"github.com/bamsammich/shuttle/internal/platform"
)

// readDirBatch is how many entries are read per ReadDir call.
const readDirBatch = 256

// copyRun is the state of one Copy call.
type copyRun struct {
	e   *Engine
	res Result

	// created lists every path this run wrote, in creation order. A failed
	// move removes exactly these, in reverse, and nothing else.
	created []string
}

// Copy copies src to dst. A regular file is streamed in chunks with a
// progress event per chunk; a directory is merged into dst recursively; a
// symlink is recreated with the same target.
func (e *Engine) Copy(src, dst string) Result {
	r := &copyRun{e: e}
	return r.run(src, dst)
}

func (r *copyRun) run(src, dst string) Result {
	out, err := r.copyTop(src, dst)
	r.res.Outcome = out
	r.res.Err = err
	if err != nil {
		r.e.log.Debug("copy failed", "src", src, "dst", dst, "kind", KindOf(err).String(), "error", err)
	}
	return r.res
}

func (r *copyRun) copyTop(src, dst string) (Outcome, error) {
	if err := pathutil.Validate(src); err != nil {
		return OutcomeError, newError(InvalidPath, "copy", src, err)
	}
	if err := pathutil.Validate(dst); err != nil {
		return OutcomeError, newError(InvalidPath, "copy", dst, err)
	}
	src, dst = pathutil.TrimTrailing(src), pathutil.TrimTrailing(dst)

	kind, _, err := Classify(src)
	if err != nil {
		return OutcomeError, err
	}
	if kind == Directory {
		inside, err := pathutil.Within(src, dst)
		if err != nil {
			return OutcomeError, newError(InvalidPath, "copy", dst, err)
		}
		if inside {
			return OutcomeError, errorf(InvalidPath, "copy", dst, "destination is inside source %s", src)
		}
	}
	return r.copyNode(src, dst, 0)
}

// copyNode copies one node at the given depth below the root.
func (r *copyRun) copyNode(src, dst string, depth int) (Outcome, error) {
	if depth > r.e.opts.MaxDepth {
		return OutcomeError, errorf(TooDeep, "copy", src, "depth %d exceeds limit %d", depth, r.e.opts.MaxDepth)
	}

	kind, info, err := Classify(src)
	if err != nil {
		return OutcomeError, err
	}

	switch kind {
	case Directory:
		return r.copyDir(src, dst, info, depth)
	case Other:
		return OutcomeError, errorf(UnsupportedType, "copy", src, "cannot copy %s", info.Mode().Type())
	}

	if exists(dst) {
		target, out, err := r.resolve(dst, info, kind)
		if target == "" {
			return out, err
		}
		dst = target
	}

	if kind == Symlink {
		return r.copySymlink(src, dst, info)
	}
	return r.copyFile(src, dst)
}

// resolve applies the conflict policy to a leaf whose destination exists.
// It returns the path to write to, or "" with the outcome to report.
func (r *copyRun) resolve(dst string, info os.FileInfo, kind NodeKind) (string, Outcome, error) {
	// Never replace a directory with a leaf, whatever the policy.
	policy := r.e.opts.Policy
	if dstKind, _, err := Classify(dst); err == nil && dstKind == Directory {
		policy = PolicyAbort
	}

	switch policy {
	case PolicySkip:
		r.res.Stats.Skipped++
		size := leafSize(info, kind)
		if err := r.emit(event(dst, kind, size, size, StatusSkipped)); err != nil {
			return "", OutcomeError, err
		}
		return "", OutcomeSkipped, nil
	case PolicyOverwrite:
		if err := removeIfExists(dst); err != nil {
			return "", OutcomeError, wrapErr("remove", dst, err)
		}
		return dst, OutcomeSuccess, nil
	case PolicyKeepBoth:
		alt, err := pathutil.UniqueName(dst, exists)
		if err != nil {
			return "", OutcomeError, wrapErr("rename", dst, err)
		}
		r.e.log.Debug("keeping both", "dst", dst, "as", alt)
		return alt, OutcomeSuccess, nil
	default:
		out, err := r.conflict(dst, info, kind)
		return "", out, err
	}
}

// conflict records dst as left untouched.
func (r *copyRun) conflict(dst string, info os.FileInfo, kind NodeKind) (Outcome, error) {
	r.res.Stats.Conflicts++
	r.res.Conflicts = append(r.res.Conflicts, dst)
	size := leafSize(info, kind)
	if err := r.emit(event(dst, kind, size, size, StatusConflict)); err != nil {
		return OutcomeError, err
	}
	return OutcomeConflict, nil
}

//nolint:revive // cognitive-complexity: sequential copy steps
func (r *copyRun) copyFile(src, dst string) (Outcome, error) {
	if err := r.ensureParent(dst); err != nil {
		return OutcomeError, err
	}

	in, err := os.OpenFile(src, os.O_RDONLY|unix.O_NOFOLLOW, 0)
	if err != nil {
		return OutcomeError, wrapErr("open", src, err)
	}
	defer in.Close()

	// Size and metadata come from the open descriptor, not the earlier lstat.
	info, err := in.Stat()
	if err != nil {
		return OutcomeError, wrapErr("stat", src, err)
	}
	if !info.Mode().IsRegular() {
		return OutcomeError, errorf(UnsupportedType, "copy", src, "changed to %s during copy", info.Mode().Type())
	}
	size := info.Size()
	meta := metaOf(info)

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fs.FileMode(meta.Mode&0o777))
	if errors.Is(err, fs.ErrExist) {
		// Lost a race with another writer; treat it like any other conflict.
		return r.conflict(dst, info, RegularFile)
	}
	if err != nil {
		return OutcomeError, wrapErr("create", dst, err)
	}
	r.track(dst)

	var sinkErr error
	res, err := platform.CopyFile(platform.CopyFileParams{
		SrcFd:     in,
		DstFd:     out,
		Size:      size,
		ChunkSize: r.e.opts.ChunkSize,
		Progress: func(done int64) error {
			sinkErr = r.emit(event(dst, RegularFile, done, size, StatusInProgress))
			return sinkErr
		},
	})
	if err != nil {
		out.Close()
		if sinkErr != nil {
			return OutcomeError, r.discard(dst, sinkErr)
		}
		return OutcomeError, r.discard(dst, newError(IOFailure, "copy", src, err))
	}
	if res.BytesWritten != size {
		out.Close()
		return OutcomeError, r.discard(dst, errorf(IOFailure, "copy", src, "wrote %d of %d bytes", res.BytesWritten, size))
	}

	r.applyFileMeta(out, dst, meta)
	if err := out.Close(); err != nil {
		return OutcomeError, r.discard(dst, newError(IOFailure, "close", dst, err))
	}

	r.res.Stats.Files++
	r.res.Stats.Bytes += size
	r.e.log.Debug("copied file", "src", src, "dst", dst, "size", size, "method", res.Method.String())

	if err := r.emit(event(dst, RegularFile, size, size, StatusSuccess)); err != nil {
		return OutcomeError, err
	}
	return OutcomeSuccess, nil
}

func (r *copyRun) copySymlink(src, dst string, info os.FileInfo) (Outcome, error) {
	if err := r.ensureParent(dst); err != nil {
		return OutcomeError, err
	}
	target, err := os.Readlink(src)
	if err != nil {
		return OutcomeError, wrapErr("readlink", src, err)
	}
	if err := os.Symlink(target, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return r.conflict(dst, info, Symlink)
		}
		return OutcomeError, wrapErr("symlink", dst, err)
	}
	r.track(dst)
	r.applyLinkMeta(dst, metaOf(info))
	r.res.Stats.Symlinks++

	if err := r.emit(event(dst, Symlink, 0, 0, StatusSuccess)); err != nil {
		return OutcomeError, err
	}
	return OutcomeSuccess, nil
}

//nolint:revive // cognitive-complexity: directory walk with per-child handling
func (r *copyRun) copyDir(src, dst string, info os.FileInfo, depth int) (Outcome, error) {
	made, err := ensureDir(dst)
	r.track(made...)
	if err != nil {
		return OutcomeError, err
	}

	fresh := len(made) > 0 && made[len(made)-1] == pathutil.TrimTrailing(dst)
	if fresh {
		r.res.Stats.Dirs++
	} else if dstKind, _, err := Classify(dst); err != nil {
		return OutcomeError, err
	} else if dstKind != Directory {
		return r.conflict(dst, info, Directory)
	}

	d, err := os.Open(src)
	if err != nil {
		return OutcomeError, wrapErr("open", src, err)
	}
	defer d.Close()

	outcome := OutcomeSuccess
	for {
		entries, readErr := d.ReadDir(readDirBatch)
		for _, ent := range entries {
			out, err := r.copyChild(src, dst, ent, depth)
			if err != nil {
				if aborts(err) {
					return OutcomeError, err
				}
				return OutcomePartialFailure, newError(PartialFailure, "copy", src, err)
			}
			if out == OutcomeConflict {
				outcome = OutcomeConflict
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return OutcomePartialFailure, newError(PartialFailure, "copy", src, wrapErr("readdir", src, readErr))
		}
	}

	if fresh {
		r.applyDirMeta(dst, metaOf(info))
	}
	ev := event(dst, Directory, 0, 0, StatusSuccess)
	ev.Merged = !fresh
	if err := r.emit(ev); err != nil {
		return OutcomeError, err
	}
	return outcome, nil
}

func (r *copyRun) copyChild(src, dst string, ent fs.DirEntry, depth int) (Outcome, error) {
	childSrc, err := pathutil.Join(src, ent.Name())
	if err != nil {
		return OutcomeError, newError(InvalidPath, "copy", src, err)
	}
	childDst, err := pathutil.Join(dst, ent.Name())
	if err != nil {
		return OutcomeError, newError(InvalidPath, "copy", dst, err)
	}
	if err := accessible(childSrc, ent.Type()); err != nil {
		r.res.Stats.Unread++
		r.warn("access", childSrc, err)
		return OutcomeSkipped, nil
	}
	return r.copyNode(childSrc, childDst, depth+1)
}

// accessible checks that a child can be read before descending into it.
func accessible(path string, typ fs.FileMode) error {
	switch {
	case typ.IsDir():
		return unix.Access(path, unix.R_OK|unix.X_OK)
	case typ.IsRegular():
		return unix.Access(path, unix.R_OK)
	default:
		_, err := os.Lstat(path)
		return err
	}
}

func (r *copyRun) ensureParent(dst string) error {
	parent := pathutil.Parent(dst)
	if parent == "" {
		return nil
	}
	made, err := ensureDir(parent)
	r.track(made...)
	return err
}

func (r *copyRun) emit(ev ProgressEvent) error {
	sink := r.e.opts.Sink
	if sink == nil {
		return nil
	}
	if err := sink.Progress(ev); err != nil {
		return newError(Cancelled, "copy", ev.Path, err)
	}
	return nil
}

func (r *copyRun) warn(op, path string, err error) {
	w := Warning{Op: op, Path: path, Err: err}
	r.res.Warnings = append(r.res.Warnings, w)
	r.e.warn(w)
}

func (r *copyRun) track(paths ...string) {
	r.created = append(r.created, paths...)
}

// discard removes a partially written file and reports cause, joined with
// the removal error if the partial file could not be removed.
func (r *copyRun) discard(path string, cause error) error {
	if n := len(r.created); n > 0 && r.created[n-1] == path {
		r.created = r.created[:n-1]
	}
	if err := removeIfExists(path); err != nil {
		r.e.log.Error("partial file left behind", "path", path, "error", err)
		return errors.Join(cause, fmt.Errorf("remove partial %s: %w", path, err))
	}
	return cause
}

// rollback removes everything this run created, deepest first. Paths that
// are already gone are not an error. Created directories get their owner
// write bit back first, since a copied read-only directory would otherwise
// keep its children.
func (r *copyRun) rollback() error {
	for _, p := range r.created {
		info, err := os.Lstat(p)
		if err != nil || !info.IsDir() || info.Mode().Perm()&0o700 == 0o700 {
			continue
		}
		if err := os.Chmod(p, info.Mode().Perm()|0o700); err != nil {
			r.e.log.Warn("restore write permission", "path", p, "error", err)
		}
	}
	err := removeAll(r.created)
	r.created = nil
	return err
}

func event(path string, kind NodeKind, done, total int64, status Status) ProgressEvent {
	return ProgressEvent{
		Item:   filepath.Base(path),
		Path:   path,
		Done:   done,
		Total:  total,
		Kind:   kind,
		Status: status,
	}
}

func leafSize(info os.FileInfo, kind NodeKind) int64 {
	if kind == RegularFile {
		return info.Size()
	}
	return 0
}
