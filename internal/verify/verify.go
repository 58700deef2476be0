// Package verify checks a finished copy against its source: regular files
// by BLAKE3 digest, symlinks by target, directories by presence.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bamsammich/shuttle/internal/event"
	"github.com/bamsammich/shuttle/internal/stats"
)

// Config controls a verification pass.
type Config struct {
	Src     string
	Dst     string
	Workers int
	Events  chan<- event.Event
	Stats   stats.Writer

	// Include, when set, limits checking to destination paths it accepts,
	// typically the ones the copy actually wrote.
	Include func(dstPath string) bool
}

// Result holds the outcome of a verification pass.
type Result struct {
	Verified   int64
	Failed     int64
	Mismatches []Mismatch
}

// OK reports whether nothing failed.
func (r Result) OK() bool { return r.Failed == 0 }

// Mismatch records one destination entry that does not match its source.
type Mismatch struct {
	Path    string
	Reason  string
	SrcHash string
	DstHash string
}

type task struct {
	src, dst string
}

// Tree walks Src and compares every entry with its counterpart under Dst.
// Directory and symlink checks happen inline; file hashes fan out to
// cfg.Workers goroutines.
//
//nolint:revive // cognitive-complexity: walk, dispatch, and collect
func Tree(ctx context.Context, cfg Config) (Result, error) {
	emit(cfg.Events, event.Event{Type: event.VerifyStarted, Path: cfg.Dst})

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	sw := cfg.Stats
	if sw == nil {
		sw = discard{}
	}

	var (
		mu  sync.Mutex
		res Result
		wg  sync.WaitGroup
	)
	record := func(dst string, m *Mismatch) {
		mu.Lock()
		defer mu.Unlock()
		if m == nil {
			res.Verified++
			sw.AddFilesVerified(1)
			emit(cfg.Events, event.Event{Type: event.VerifyOK, Path: dst})
			return
		}
		res.Failed++
		res.Mismatches = append(res.Mismatches, *m)
		sw.AddFilesVerifyFailed(1)
		emit(cfg.Events, event.Event{Type: event.VerifyFailed, Path: dst, Detail: m.Reason})
	}

	tasks := make(chan task, workers*2)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tk := range tasks {
				if ctx.Err() != nil {
					continue
				}
				record(tk.dst, compareFiles(tk.src, tk.dst))
			}
		}()
	}

	walkErr := filepath.WalkDir(cfg.Src, func(src string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		dst, err := counterpart(cfg.Src, cfg.Dst, src)
		if err != nil {
			return err
		}
		if cfg.Include != nil && !cfg.Include(dst) {
			return nil
		}

		switch {
		case d.IsDir():
			record(dst, compareDir(dst))
		case d.Type()&fs.ModeSymlink != 0:
			record(dst, compareLinks(src, dst))
		case d.Type().IsRegular():
			select {
			case tasks <- task{src: src, dst: dst}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	close(tasks)
	wg.Wait()

	if walkErr != nil {
		return res, fmt.Errorf("verify %s: %w", cfg.Src, walkErr)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func counterpart(srcRoot, dstRoot, src string) (string, error) {
	rel, err := filepath.Rel(srcRoot, src)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return dstRoot, nil
	}
	return filepath.Join(dstRoot, rel), nil
}

func compareFiles(src, dst string) *Mismatch {
	info, err := os.Lstat(dst)
	if err != nil {
		return missing(dst, err)
	}
	if !info.Mode().IsRegular() {
		return &Mismatch{Path: dst, Reason: "not a regular file"}
	}
	srcHash, err := HashFile(src)
	if err != nil {
		return &Mismatch{Path: dst, Reason: err.Error(), SrcHash: "error"}
	}
	dstHash, err := HashFile(dst)
	if err != nil {
		return &Mismatch{Path: dst, Reason: err.Error(), SrcHash: srcHash, DstHash: "error"}
	}
	if srcHash != dstHash {
		return &Mismatch{Path: dst, Reason: "content differs", SrcHash: srcHash, DstHash: dstHash}
	}
	return nil
}

func compareLinks(src, dst string) *Mismatch {
	want, err := os.Readlink(src)
	if err != nil {
		return &Mismatch{Path: dst, Reason: err.Error()}
	}
	got, err := os.Readlink(dst)
	if err != nil {
		return missing(dst, err)
	}
	if got != want {
		return &Mismatch{Path: dst, Reason: fmt.Sprintf("link target %q, want %q", got, want)}
	}
	return nil
}

func compareDir(dst string) *Mismatch {
	info, err := os.Lstat(dst)
	if err != nil {
		return missing(dst, err)
	}
	if !info.IsDir() {
		return &Mismatch{Path: dst, Reason: "not a directory"}
	}
	return nil
}

func missing(dst string, err error) *Mismatch {
	if errors.Is(err, fs.ErrNotExist) {
		return &Mismatch{Path: dst, Reason: "missing"}
	}
	return &Mismatch{Path: dst, Reason: err.Error()}
}

func emit(ch chan<- event.Event, e event.Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}

type discard struct{}

func (discard) AddFilesCopied(int64)       {}
func (discard) AddDirsCreated(int64)       {}
func (discard) AddSymlinksCreated(int64)   {}
func (discard) AddBytesCopied(int64)       {}
func (discard) AddConflicts(int64)         {}
func (discard) AddSkipped(int64)           {}
func (discard) AddFailed(int64)            {}
func (discard) AddDeleted(int64)           {}
func (discard) AddWarnings(int64)          {}
func (discard) AddFilesVerified(int64)     {}
func (discard) AddFilesVerifyFailed(int64) {}
