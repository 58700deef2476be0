package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/shuttle/internal/engine"
	"github.com/bamsammich/shuttle/internal/journal"
)

type cli struct {
	t       *testing.T
	dir     string
	journal string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	return &cli{t: t, dir: dir, journal: filepath.Join(dir, "state", "journal.db")}
}

// run executes shuttle with args and returns the exit code and outputs.
func (c *cli) run(args ...string) (int, string, string) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	a := &app{stdout: &out, stderr: &errOut}
	code := a.execute(append([]string{"--journal", c.journal}, args...))
	return code, out.String(), errOut.String()
}

func (c *cli) path(rel string) string {
	return filepath.Join(c.dir, rel)
}

func (c *cli) write(rel, content string) {
	c.t.Helper()
	p := c.path(rel)
	require.NoError(c.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(c.t, os.WriteFile(p, []byte(content), 0o644))
}

func (c *cli) read(rel string) string {
	c.t.Helper()
	data, err := os.ReadFile(c.path(rel))
	require.NoError(c.t, err)
	return string(data)
}

func (c *cli) writeConfig(content string) {
	c.t.Helper()
	c.write("config/shuttle/config.toml", content)
}

func (c *cli) entries() []journal.Entry {
	c.t.Helper()
	j, err := journal.Open(c.journal)
	require.NoError(c.t, err)
	defer j.Close()
	list, err := j.List(0, false)
	require.NoError(c.t, err)
	return list
}

func TestCopyTree(t *testing.T) {
	c := newCLI(t)
	c.write("src/a.txt", "alpha")
	c.write("src/sub/b.txt", "beta")

	code, out, errOut := c.run("cp", c.path("src"), c.path("dst"))
	require.Equal(t, 0, code, errOut)

	assert.Equal(t, "alpha", c.read("dst/a.txt"))
	assert.Equal(t, "beta", c.read("dst/sub/b.txt"))
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, filepath.Join("sub", "b.txt"))
	assert.Contains(t, errOut, "done ✓")

	entries := c.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OpCopy, entries[0].Op)
	assert.Equal(t, journal.OutcomeSuccess, entries[0].Outcome)
}

func TestCopyConflictExitsOne(t *testing.T) {
	c := newCLI(t)
	c.write("src.txt", "new")
	c.write("dst.txt", "old")

	code, out, _ := c.run("cp", c.path("src.txt"), c.path("dst.txt"))
	assert.Equal(t, 1, code)
	assert.Equal(t, "old", c.read("dst.txt"))
	assert.Contains(t, out, "conflict")

	entries := c.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OutcomeFailed, entries[0].Outcome)
}

func TestCopyConflictPolicies(t *testing.T) {
	c := newCLI(t)
	c.write("src.txt", "new")
	c.write("dst.txt", "old")

	code, _, _ := c.run("cp", "--conflict", "skip", c.path("src.txt"), c.path("dst.txt"))
	assert.Equal(t, 0, code)
	assert.Equal(t, "old", c.read("dst.txt"))

	code, _, _ = c.run("cp", "--conflict=keep-both", c.path("src.txt"), c.path("dst.txt"))
	assert.Equal(t, 0, code)
	assert.Equal(t, "new", c.read("dst (1).txt"))

	code, _, _ = c.run("cp", "--conflict=overwrite", c.path("src.txt"), c.path("dst.txt"))
	assert.Equal(t, 0, code)
	assert.Equal(t, "new", c.read("dst.txt"))
}

func TestCopyBadPolicyFlag(t *testing.T) {
	c := newCLI(t)
	c.write("src.txt", "x")

	code, _, errOut := c.run("cp", "--conflict", "clobber", c.path("src.txt"), c.path("dst.txt"))
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown conflict policy")
	assert.NoFileExists(t, c.path("dst.txt"))
}

func TestCopyConfigDefaults(t *testing.T) {
	c := newCLI(t)
	c.writeConfig("[defaults]\nconflict = \"overwrite\"\njournal = false\n")
	c.write("src.txt", "new")
	c.write("dst.txt", "old")

	code, _, errOut := c.run("cp", c.path("src.txt"), c.path("dst.txt"))
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "new", c.read("dst.txt"))
	assert.NoFileExists(t, c.journal, "journal = false disables the journal")

	// An explicit flag wins over the config file.
	c.write("src.txt", "newer")
	code, _, _ = c.run("cp", "--conflict=abort", c.path("src.txt"), c.path("dst.txt"))
	assert.Equal(t, 1, code)
	assert.Equal(t, "new", c.read("dst.txt"))
}

func TestCopyInvalidConfig(t *testing.T) {
	c := newCLI(t)
	c.writeConfig("[defaults]\nworkers = 8\n")
	c.write("src.txt", "x")

	code, _, errOut := c.run("cp", c.path("src.txt"), c.path("dst.txt"))
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown key")
}

func TestCopyVerify(t *testing.T) {
	c := newCLI(t)
	c.write("src/a.txt", "alpha")
	c.write("src/sub/b.txt", "beta")

	code, out, errOut := c.run("cp", "--verify", "--bwlimit", "64M", "--chunk-size", "4K", c.path("src"), c.path("dst"))
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "verifying...")
	assert.NotContains(t, out, "MISMATCH")
	assert.Contains(t, errOut, "verified")
}

func TestCopyBadSize(t *testing.T) {
	c := newCLI(t)
	c.write("src.txt", "x")

	code, _, errOut := c.run("cp", "--bwlimit", "fast", c.path("src.txt"), c.path("dst.txt"))
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "invalid --bwlimit")
}

func TestCopyMissingSourceExitsTwo(t *testing.T) {
	c := newCLI(t)

	code, _, _ := c.run("cp", "--no-journal", c.path("nope"), c.path("dst"))
	assert.Equal(t, 2, code)
	assert.NoFileExists(t, c.journal)
}

func TestMove(t *testing.T) {
	c := newCLI(t)
	c.write("src/a.txt", "alpha")

	code, _, errOut := c.run("mv", c.path("src"), c.path("out/moved"))
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "alpha", c.read("out/moved/a.txt"))
	assert.NoDirExists(t, c.path("src"))

	entries := c.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OpMove, entries[0].Op)
	assert.Equal(t, engine.PhaseDone.String(), entries[0].Phase)
	assert.Equal(t, journal.OutcomeSuccess, entries[0].Outcome)
}

func TestMoveOntoExistingExitsOne(t *testing.T) {
	c := newCLI(t)
	c.write("a.txt", "a")
	c.write("b.txt", "b")

	code, _, _ := c.run("mv", c.path("a.txt"), c.path("b.txt"))
	assert.Equal(t, 1, code)
	assert.Equal(t, "a", c.read("a.txt"))
	assert.Equal(t, "b", c.read("b.txt"))
}

func TestMoveRename(t *testing.T) {
	c := newCLI(t)
	c.write("dir/old.txt", "x")

	code, _, errOut := c.run("mv", "--rename", c.path("dir/old.txt"), "new.txt")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "x", c.read("dir/new.txt"))
	assert.NoFileExists(t, c.path("dir/old.txt"))

	code, _, _ = c.run("mv", "--rename", c.path("dir/new.txt"), "sub/new.txt")
	assert.Equal(t, 2, code, "a new name cannot contain a separator")
}

func TestRemove(t *testing.T) {
	c := newCLI(t)
	c.write("a/deep/file.txt", "x")
	c.write("b.txt", "y")

	code, _, errOut := c.run("rm", c.path("a"), c.path("b.txt"), c.path("missing"))
	require.Equal(t, 0, code, errOut)
	assert.NoDirExists(t, c.path("a"))
	assert.NoFileExists(t, c.path("b.txt"))
	assert.Contains(t, errOut, "removed 4")

	for _, e := range c.entries() {
		assert.Equal(t, journal.OpDelete, e.Op)
		assert.Equal(t, journal.OutcomeSuccess, e.Outcome)
	}
}

func TestJournalListAndRecover(t *testing.T) {
	c := newCLI(t)
	c.write("src/a.txt", "alpha")
	c.write("dst/a.txt", "partial")

	// A move that died while copying across filesystems.
	j, err := journal.Open(c.journal)
	require.NoError(t, err)
	id, err := j.Begin(journal.OpMove, c.path("src"), c.path("dst"))
	require.NoError(t, err)
	require.NoError(t, j.SetPhase(id, engine.PhaseCopy.String()))
	require.NoError(t, j.Close())

	code, out, _ := c.run("journal", "--pending")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "PENDING")
	assert.Contains(t, out, id.String()[:8])

	// The same move is refused until recovered.
	code, _, errOut := c.run("mv", c.path("src"), c.path("dst"))
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "shuttle recover")

	code, out, errOut = c.run("recover")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, string(journal.ActionRemovedDestination))
	assert.NoDirExists(t, c.path("dst"))
	assert.Equal(t, "alpha", c.read("src/a.txt"))

	code, out, _ = c.run("recover")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "nothing to recover")
}

func TestRecoverUnknownID(t *testing.T) {
	c := newCLI(t)

	code, _, errOut := c.run("recover", "not-a-uuid")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "invalid id")
}

func TestJournalRequiresJournal(t *testing.T) {
	c := newCLI(t)

	code, _, errOut := c.run("--no-journal", "journal")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "--no-journal")
}

func TestVersion(t *testing.T) {
	c := newCLI(t)

	code, out, _ := c.run("--version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "shuttle dev\n", out)
}

func TestLogFile(t *testing.T) {
	c := newCLI(t)
	c.write("src.txt", "x")
	logPath := c.path("shuttle.log")

	code, _, errOut := c.run("--log", logPath, "cp", c.path("src.txt"), c.path("dst.txt"))
	require.Equal(t, 0, code, errOut)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"shuttle.event"`)
	assert.Contains(t, string(data), `"type":"ItemCompleted"`)
}

func TestCopyExitCode(t *testing.T) {
	tests := []struct {
		name string
		res  engine.Result
		want int
	}{
		{"success", engine.Result{Outcome: engine.OutcomeSuccess}, 0},
		{"skipped", engine.Result{Outcome: engine.OutcomeSkipped}, 0},
		{"conflict", engine.Result{Outcome: engine.OutcomeConflict}, 1},
		{"partial", engine.Result{Outcome: engine.OutcomePartialFailure}, 1},
		{"error after progress", engine.Result{Outcome: engine.OutcomeError, Stats: engine.Stats{Files: 3}}, 1},
		{"error", engine.Result{Outcome: engine.OutcomeError}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, copyExitCode(tt.res))
		})
	}
}

func TestErrExitCode(t *testing.T) {
	assert.Equal(t, 0, errExitCode(nil))
	assert.Equal(t, 1, errExitCode(engine.Conflict))
	assert.Equal(t, 1, errExitCode(engine.Inconsistent))
	assert.Equal(t, 1, errExitCode(engine.PartialFailure))
	assert.Equal(t, 2, errExitCode(engine.NotFound))
	assert.Equal(t, 2, errExitCode(errors.New("boom")))
}

func TestRenameTarget(t *testing.T) {
	got, err := renameTarget("/a/b/old.txt", "new.txt")
	require.NoError(t, err)
	assert.Equal(t, "/a/b/new.txt", got)

	got, err = renameTarget("old.txt", "new.txt")
	require.NoError(t, err)
	assert.Equal(t, "./new.txt", got)

	_, err = renameTarget("/a/old.txt", "..")
	assert.Error(t, err)
}
