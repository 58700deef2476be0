package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// crossDevice makes every rename look like it crosses filesystems.
func crossDevice(src, dst string) error {
	return &os.LinkError{Op: "rename", Old: src, New: dst, Err: unix.EXDEV}
}

func newPhaseEngine(opts Options) (*Engine, *[]MovePhase) {
	var phases []MovePhase
	opts.OnMovePhase = func(p MovePhase) { phases = append(phases, p) }
	return New(opts), &phases
}

func TestMove_SameVolumeIsSingleRename(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	createTestTree(t, src)
	want := filepath.Join(dir, "want")
	require.NoError(t, New(Options{}).Copy(src, want).Err)

	e, phases := newPhaseEngine(Options{})
	calls := 0
	e.rename = func(from, to string) error {
		calls++
		return renameNoReplace(from, to)
	}

	require.NoError(t, e.Move(src, dst))

	assert.Equal(t, 1, calls)
	assert.Equal(t, []MovePhase{PhaseRename, PhaseDone}, *phases)
	assertAbsent(t, src)
	verifyTreeCopy(t, want, dst)
}

func TestMove_CreatesDestinationParent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "x", "y", "a.txt")
	writeFile(t, src, "a")

	require.NoError(t, Move(src, dst))

	assert.Equal(t, "a", readFile(t, dst))
	assertAbsent(t, src)
}

func TestMove_CrossDeviceCopiesThenDeletes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	createTestTree(t, src)
	want := filepath.Join(dir, "want")
	require.NoError(t, New(Options{}).Copy(src, want).Err)

	e, phases := newPhaseEngine(Options{})
	e.rename = crossDevice

	require.NoError(t, e.Move(src, dst))

	assert.Equal(t, []MovePhase{PhaseRename, PhaseCopy, PhaseRemoveSource, PhaseDone}, *phases)
	assertAbsent(t, src)
	verifyTreeCopy(t, want, dst)
}

func TestMove_FailedCopyRollsBack(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "out", "dst")
	createTestTree(t, src)
	mkfifo(t, filepath.Join(src, "sub", "pipe"))

	e, phases := newPhaseEngine(Options{})
	e.rename = crossDevice

	err := e.Move(src, dst)

	require.Error(t, err)
	assert.True(t, errors.Is(err, UnsupportedType))
	assert.Contains(t, *phases, PhaseRollback)
	assert.NotContains(t, *phases, PhaseRemoveSource)
	assertAbsent(t, dst)
	assertAbsent(t, filepath.Join(dir, "out"))
	assert.Equal(t, "root file content", readFile(t, filepath.Join(src, "root.txt")))
	assert.Equal(t, "leaf file content", readFile(t, filepath.Join(src, "sub", "deep", "leaf.txt")))
}

func TestMove_CancelRollsBack(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	createTestTree(t, src)

	var seen int
	sink := SinkFunc(func(ProgressEvent) error {
		seen++
		if seen == 3 {
			return ErrCancelled
		}
		return nil
	})
	e := New(Options{Sink: sink})
	e.rename = crossDevice

	err := e.Move(src, dst)

	require.Error(t, err)
	assert.Equal(t, Cancelled, KindOf(err))
	assertAbsent(t, dst)
	assert.FileExists(t, filepath.Join(src, "big.bin"))
}

func TestMove_DestinationExists(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	writeFile(t, src, "a")
	writeFile(t, dst, "b")

	err := Move(src, dst)

	require.Error(t, err)
	assert.Equal(t, Conflict, KindOf(err))
	assert.Equal(t, "a", readFile(t, src))
	assert.Equal(t, "b", readFile(t, dst))
}

func TestMove_RenameRefusesToClobber(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	writeFile(t, src, "a")
	writeFile(t, dst, "b")

	err := renameNoReplace(src, dst)

	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrExist))
	assert.Equal(t, "b", readFile(t, dst))
}

func TestMove_IntoOwnSubtree(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "a.txt"), "a")

	err := Move(src, filepath.Join(src, "sub"))

	require.Error(t, err)
	assert.Equal(t, InvalidPath, KindOf(err))
	assert.Equal(t, "a", readFile(t, filepath.Join(src, "a.txt")))
}

func TestMove_SourceNotExist(t *testing.T) {
	dir := t.TempDir()

	err := Move(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"))

	require.Error(t, err)
	assert.Equal(t, NotFound, KindOf(err))
}

func TestMove_RenameFailureFallsBackToCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "new", "dst")
	createTestTree(t, src)
	want := filepath.Join(dir, "want")
	require.NoError(t, New(Options{}).Copy(src, want).Err)

	e, phases := newPhaseEngine(Options{})
	e.rename = func(from, to string) error {
		return &os.LinkError{Op: "rename", Old: from, New: to, Err: unix.EPERM}
	}

	require.NoError(t, e.Move(src, dst))

	assert.Equal(t, []MovePhase{PhaseRename, PhaseCopy, PhaseRemoveSource, PhaseDone}, *phases)
	assertAbsent(t, src)
	verifyTreeCopy(t, want, dst)
}

func TestMove_RenameFailureThenFailedCopyRollsBack(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "new", "dst")
	createTestTree(t, src)
	mkfifo(t, filepath.Join(src, "pipe"))

	e, phases := newPhaseEngine(Options{})
	e.rename = func(from, to string) error {
		return &os.LinkError{Op: "rename", Old: from, New: to, Err: unix.EBUSY}
	}

	err := e.Move(src, dst)

	require.Error(t, err)
	assert.True(t, errors.Is(err, UnsupportedType))
	assert.Equal(t, []MovePhase{PhaseRename, PhaseCopy, PhaseRollback}, *phases)
	assertAbsent(t, filepath.Join(dir, "new"))
	assert.Equal(t, "root file content", readFile(t, filepath.Join(src, "root.txt")))
}

func TestMove_RenameRaceWithNewDestinationIsNotRetried(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "new", "b.txt")
	writeFile(t, src, "a")

	e, phases := newPhaseEngine(Options{})
	e.rename = func(from, to string) error {
		return &os.LinkError{Op: "rename", Old: from, New: to, Err: unix.EEXIST}
	}

	err := e.Move(src, dst)

	require.Error(t, err)
	assert.Equal(t, Conflict, KindOf(err))
	assert.Equal(t, []MovePhase{PhaseRename}, *phases)
	assertAbsent(t, filepath.Join(dir, "new"))
	assert.Equal(t, "a", readFile(t, src))
}

func TestMove_TrailingSlashSymlinkMovesLink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	writeFile(t, filepath.Join(target, "keep.txt"), "keep")
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))
	dst := filepath.Join(dir, "moved")

	e := New(Options{})
	e.rename = crossDevice

	require.NoError(t, e.Move(link+"/", dst))

	got, err := os.Readlink(dst)
	require.NoError(t, err)
	assert.Equal(t, target, got)
	assertAbsent(t, link)
	assert.Equal(t, "keep", readFile(t, filepath.Join(target, "keep.txt")))
}

func TestMove_SourceRemovalFailsRollsBack(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "out", "dst")
	createTestTree(t, src)

	e, phases := newPhaseEngine(Options{})
	e.rename = crossDevice
	e.deleteTree = func(path string) (int64, error) {
		return 0, errorf(AccessDenied, "remove", path, "read-only filesystem")
	}

	err := e.Move(src, dst)

	require.Error(t, err)
	assert.Equal(t, AccessDenied, KindOf(err))
	assert.Equal(t, []MovePhase{PhaseRename, PhaseCopy, PhaseRemoveSource, PhaseRollback}, *phases)
	assertAbsent(t, filepath.Join(dir, "out"))
	assert.Equal(t, "leaf file content", readFile(t, filepath.Join(src, "sub", "deep", "leaf.txt")))
}

func TestMove_PartialSourceRemovalIsInconsistent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	createTestTree(t, src)
	want := filepath.Join(dir, "want")
	require.NoError(t, New(Options{}).Copy(src, want).Err)

	e, phases := newPhaseEngine(Options{})
	e.rename = crossDevice
	e.deleteTree = func(path string) (int64, error) {
		if err := os.Remove(filepath.Join(path, "root.txt")); err != nil {
			return 0, err
		}
		return 1, errorf(AccessDenied, "remove", filepath.Join(path, "sub"), "permission denied")
	}

	err := e.Move(src, dst)

	require.Error(t, err)
	assert.Equal(t, Inconsistent, KindOf(err))
	assert.True(t, errors.Is(err, AccessDenied))
	assert.Equal(t, []MovePhase{PhaseRename, PhaseCopy, PhaseRemoveSource}, *phases)
	verifyTreeCopy(t, want, dst)
	assertAbsent(t, filepath.Join(src, "root.txt"))
	assert.FileExists(t, filepath.Join(src, "big.bin"))
}

func TestMove_FailedRollbackIsInconsistent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	createTestTree(t, src)

	// Another writer drops a file into dst mid-copy, so rollback cannot
	// remove the directory it created.
	intruder := filepath.Join(dst, "intruder.txt")
	var seen int
	sink := SinkFunc(func(ProgressEvent) error {
		seen++
		if seen == 3 {
			require.NoError(t, os.WriteFile(intruder, []byte("x"), 0o644))
			return ErrCancelled
		}
		return nil
	})
	e, phases := newPhaseEngine(Options{Sink: sink})
	e.rename = crossDevice

	err := e.Move(src, dst)

	require.Error(t, err)
	assert.Equal(t, Inconsistent, KindOf(err))
	assert.True(t, errors.Is(err, Cancelled), "original cause is kept")
	assert.Equal(t, []MovePhase{PhaseRename, PhaseCopy, PhaseRollback}, *phases)
	assert.Equal(t, "x", readFile(t, intruder))
	assert.Equal(t, "root file content", readFile(t, filepath.Join(src, "root.txt")))
}

func TestMove_RollbackRemovesReadOnlyCopies(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	ro := filepath.Join(src, "ro")
	writeFile(t, filepath.Join(ro, "inner.txt"), "inner")
	writeFile(t, filepath.Join(src, "other.txt"), "other")
	require.NoError(t, os.Chmod(ro, 0o555))
	t.Cleanup(func() { _ = os.Chmod(ro, 0o755) })

	// Cancel on the first event after the read-only copy is finished.
	var roDone bool
	sink := SinkFunc(func(ev ProgressEvent) error {
		if roDone {
			return ErrCancelled
		}
		roDone = ev.Kind == Directory && ev.Item == "ro" && ev.Status == StatusSuccess
		return nil
	})
	e := New(Options{Sink: sink})
	e.rename = crossDevice

	err := e.Move(src, dst)

	require.Error(t, err)
	assert.Equal(t, Cancelled, KindOf(err))
	assertAbsent(t, dst)
	assert.Equal(t, "inner", readFile(t, filepath.Join(ro, "inner.txt")))
}
