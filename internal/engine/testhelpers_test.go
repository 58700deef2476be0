package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// createTestTree populates root with a standard test tree:
//
//	root.txt          (17 bytes)
//	big.bin           (640KB, several chunks)
//	sub/mid.txt       (19 bytes)
//	sub/deep/leaf.txt (17 bytes)
//	link.txt          → root.txt (symlink)
//	dangling          → nowhere (dangling symlink)
func createTestTree(t *testing.T, root string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "root.txt"), []byte("root file content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), bytes.Repeat([]byte("ABCDEFGHIJKLMNOP"), 40000), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "mid.txt"), []byte("middle file content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "deep", "leaf.txt"), []byte("leaf file content"), 0o644))
	require.NoError(t, os.Symlink("root.txt", filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink("nowhere", filepath.Join(root, "dangling")))
}

// verifyTreeCopy checks that dstRoot is an exact copy of the tree
// createTestTree built under srcRoot.
func verifyTreeCopy(t *testing.T, srcRoot, dstRoot string) {
	t.Helper()

	for _, rel := range []string{
		"root.txt",
		"big.bin",
		filepath.Join("sub", "mid.txt"),
		filepath.Join("sub", "deep", "leaf.txt"),
	} {
		want, err := os.ReadFile(filepath.Join(srcRoot, rel))
		require.NoError(t, err, "read src %s", rel)
		got, err := os.ReadFile(filepath.Join(dstRoot, rel))
		require.NoError(t, err, "read dst %s", rel)
		assert.True(t, bytes.Equal(want, got), "content mismatch: %s", rel)
	}

	for link, target := range map[string]string{"link.txt": "root.txt", "dangling": "nowhere"} {
		got, err := os.Readlink(filepath.Join(dstRoot, link))
		require.NoError(t, err, "readlink %s", link)
		assert.Equal(t, target, got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func mkfifo(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, unix.Mkfifo(path, 0o644))
}

func assertAbsent(t *testing.T, path string) {
	t.Helper()
	_, err := os.Lstat(path)
	assert.True(t, os.IsNotExist(err), "%s should not exist", path)
}

// nestedDirs creates n directories nested below root and returns the deepest.
func nestedDirs(t *testing.T, root string, n int) string {
	t.Helper()
	p := root
	for range n {
		p = filepath.Join(p, "d")
	}
	require.NoError(t, os.MkdirAll(p, 0o755))
	return p
}

// recordSink collects every event it receives.
type recordSink struct {
	events []ProgressEvent
}

func (s *recordSink) Progress(ev ProgressEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *recordSink) forPath(path string) []ProgressEvent {
	var out []ProgressEvent
	for _, ev := range s.events {
		if ev.Path == path {
			out = append(out, ev)
		}
	}
	return out
}
