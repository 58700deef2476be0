package journal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/shuttle/internal/engine"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "state", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_OpenClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	assert.FileExists(t, j.Path())
	require.NoError(t, j.Close())

	// Reopen keeps the schema.
	j, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/state")
	assert.Equal(t, "/state/shuttle/journal.db", DefaultPath())

	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/u")
	assert.Equal(t, "/home/u/.local/state/shuttle/journal.db", DefaultPath())
}

func TestJournal_Lifecycle(t *testing.T) {
	j := openTest(t)

	id, err := j.Begin(OpMove, "/src", "/dst")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	e, err := j.Get(id)
	require.NoError(t, err)
	assert.Equal(t, OpMove, e.Op)
	assert.Equal(t, "/src", e.Src)
	assert.Equal(t, "/dst", e.Dst)
	assert.Equal(t, PhaseStarted, e.Phase)
	assert.True(t, e.Pending())
	assert.False(t, e.Started.IsZero())

	require.NoError(t, j.SetPhase(id, engine.PhaseCopy.String()))
	require.NoError(t, j.Finish(id, OutcomeFailed, errors.New("disk full")))

	e, err = j.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "copy", e.Phase)
	assert.Equal(t, OutcomeFailed, e.Outcome)
	assert.Equal(t, "disk full", e.Error)
	assert.False(t, e.Pending())
}

func TestJournal_BeginRefusesDuplicatePending(t *testing.T) {
	j := openTest(t)

	id, err := j.Begin(OpMove, "/a", "/b")
	require.NoError(t, err)

	_, err = j.Begin(OpMove, "/a", "/b")
	require.ErrorIs(t, err, ErrPending)

	// A different op on the same paths is a different operation.
	_, err = j.Begin(OpCopy, "/a", "/b")
	require.NoError(t, err)

	require.NoError(t, j.Finish(id, OutcomeSuccess, nil))
	_, err = j.Begin(OpMove, "/a", "/b")
	require.NoError(t, err)
}

func TestJournal_UnknownID(t *testing.T) {
	j := openTest(t)

	_, err := j.Get(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, j.SetPhase(uuid.New(), "copy"), ErrNotFound)
}

func TestJournal_List(t *testing.T) {
	j := openTest(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	j.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first, err := j.Begin(OpCopy, "/1", "/x")
	require.NoError(t, err)
	second, err := j.Begin(OpDelete, "/2", "")
	require.NoError(t, err)
	third, err := j.Begin(OpMove, "/3", "/y")
	require.NoError(t, err)
	require.NoError(t, j.Finish(second, OutcomeSuccess, nil))

	all, err := j.List(0, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{third, second, first}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	pending, err := j.List(0, true)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	limited, err := j.List(1, false)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, third, limited[0].ID)
}

func TestJournal_Prune(t *testing.T) {
	j := openTest(t)
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return old }

	done, err := j.Begin(OpCopy, "/a", "/b")
	require.NoError(t, err)
	require.NoError(t, j.Finish(done, OutcomeSuccess, nil))
	_, err = j.Begin(OpCopy, "/c", "/d")
	require.NoError(t, err)

	n, err := j.Prune(old.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := j.List(0, false)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.True(t, left[0].Pending(), "unfinished entries are never pruned")
}

func writeTree(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "f.txt"), []byte("data"), 0o644))
}

func TestRecover_MoveInterruptedDuringCopy(t *testing.T) {
	j := openTest(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src)
	writeTree(t, dst) // the partial copy

	id, err := j.Begin(OpMove, src, dst)
	require.NoError(t, err)
	require.NoError(t, j.SetPhase(id, engine.PhaseCopy.String()))
	e, err := j.Get(id)
	require.NoError(t, err)

	action, err := j.Recover(e, engine.New(engine.Options{}))

	require.NoError(t, err)
	assert.Equal(t, ActionRemovedDestination, action)
	assert.NoDirExists(t, dst)
	assert.FileExists(t, filepath.Join(src, "sub", "f.txt"))

	e, err = j.Get(id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecovered, e.Outcome)
}

func TestRecover_MoveInterruptedRemovingSource(t *testing.T) {
	j := openTest(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src)
	writeTree(t, dst)

	id, err := j.Begin(OpMove, src, dst)
	require.NoError(t, err)
	require.NoError(t, j.SetPhase(id, engine.PhaseRemoveSource.String()))
	e, err := j.Get(id)
	require.NoError(t, err)

	action, err := j.Recover(e, engine.New(engine.Options{}))

	require.NoError(t, err)
	assert.Equal(t, ActionFinishedSource, action)
	assert.NoDirExists(t, src)
	assert.FileExists(t, filepath.Join(dst, "sub", "f.txt"))
}

func TestRecover_MoveKeepsDestinationWhenSourceGone(t *testing.T) {
	j := openTest(t)
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst")
	writeTree(t, dst)

	id, err := j.Begin(OpMove, filepath.Join(dir, "gone"), dst)
	require.NoError(t, err)
	require.NoError(t, j.SetPhase(id, engine.PhaseCopy.String()))
	e, err := j.Get(id)
	require.NoError(t, err)

	_, err = j.Recover(e, engine.New(engine.Options{}))

	require.Error(t, err)
	assert.FileExists(t, filepath.Join(dst, "sub", "f.txt"))
	e, err = j.Get(id)
	require.NoError(t, err)
	assert.True(t, e.Pending())
}

func TestRecover_DeleteIsRerun(t *testing.T) {
	j := openTest(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "victim")
	writeTree(t, target)

	id, err := j.Begin(OpDelete, target, "")
	require.NoError(t, err)
	e, err := j.Get(id)
	require.NoError(t, err)

	action, err := j.Recover(e, engine.New(engine.Options{}))

	require.NoError(t, err)
	assert.Equal(t, ActionRedoneDelete, action)
	assert.NoDirExists(t, target)
}

func TestRecover_CopyIsReportedOnly(t *testing.T) {
	j := openTest(t)
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst")
	writeTree(t, dst)

	id, err := j.Begin(OpCopy, filepath.Join(dir, "src"), dst)
	require.NoError(t, err)
	e, err := j.Get(id)
	require.NoError(t, err)

	action, err := j.Recover(e, engine.New(engine.Options{}))

	require.NoError(t, err)
	assert.Equal(t, ActionReported, action)
	assert.DirExists(t, dst)
	e, err = j.Get(id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAbandoned, e.Outcome)
}

func TestRecover_FinishedEntryIsNoop(t *testing.T) {
	j := openTest(t)
	id, err := j.Begin(OpDelete, "/nope", "")
	require.NoError(t, err)
	require.NoError(t, j.Finish(id, OutcomeSuccess, nil))
	e, err := j.Get(id)
	require.NoError(t, err)

	action, err := j.Recover(e, engine.New(engine.Options{}))

	require.NoError(t, err)
	assert.Equal(t, ActionNone, action)
}
