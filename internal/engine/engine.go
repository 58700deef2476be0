package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bamsammich/shuttle/internal/platform"
)

// DefaultMaxDepth is the recursion ceiling for directory copies.
const DefaultMaxDepth = 50

// ConflictPolicy decides what happens when a leaf destination already exists.
type ConflictPolicy int

const (
	PolicyAbort     ConflictPolicy = iota // report Conflict, leave dst untouched
	PolicySkip                            // leave dst untouched, report Skipped
	PolicyOverwrite                       // remove dst, then copy
	PolicyKeepBoth                        // copy to "name (N).ext" beside dst
)

func (p ConflictPolicy) String() string {
	switch p {
	case PolicyAbort:
		return "abort"
	case PolicySkip:
		return "skip"
	case PolicyOverwrite:
		return "overwrite"
	case PolicyKeepBoth:
		return "keep-both"
	default:
		return "unknown"
	}
}

// ParsePolicy parses the names String returns.
func ParsePolicy(s string) (ConflictPolicy, error) {
	switch s {
	case "abort", "":
		return PolicyAbort, nil
	case "skip":
		return PolicySkip, nil
	case "overwrite":
		return PolicyOverwrite, nil
	case "keep-both":
		return PolicyKeepBoth, nil
	default:
		return PolicyAbort, fmt.Errorf("unknown conflict policy %q (use abort, skip, overwrite or keep-both)", s)
	}
}

// MovePhase marks the steps of a move, reported through Options.OnMovePhase.
type MovePhase int

const (
	PhaseRename MovePhase = iota
	PhaseCopy
	PhaseRemoveSource
	PhaseRollback
	PhaseDone
)

func (p MovePhase) String() string {
	switch p {
	case PhaseRename:
		return "rename"
	case PhaseCopy:
		return "copy"
	case PhaseRemoveSource:
		return "remove_source"
	case PhaseRollback:
		return "rollback"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Options configures an Engine. The zero value is usable.
type Options struct {
	Sink        ProgressSink
	Logger      *slog.Logger
	OnWarning   func(Warning)
	OnMovePhase func(MovePhase)
	OnDelete    func(path string, kind NodeKind)
	MaxDepth    int
	ChunkSize   int64
	Policy      ConflictPolicy
	IgnoreOwner bool // do not chown copies to the source owner
}

// Engine copies, moves, and deletes filesystem trees. It holds no state
// between calls; one Engine may serve concurrent calls on disjoint trees.
type Engine struct {
	opts       Options
	log        *slog.Logger
	rename     func(src, dst string) error
	deleteTree func(path string) (int64, error)
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = platform.DefaultChunkSize
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &Engine{opts: opts, log: log, rename: renameNoReplace}
	e.deleteTree = e.DeleteTree
	return e
}

// Outcome is the top-level result of a copy.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeConflict
	OutcomeSkipped
	OutcomePartialFailure
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeConflict:
		return "conflict"
	case OutcomeSkipped:
		return "skipped"
	case OutcomePartialFailure:
		return "partial_failure"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Stats counts what one call did.
type Stats struct {
	Files     int64
	Dirs      int64
	Symlinks  int64
	Bytes     int64
	Conflicts int64
	Skipped   int64 // leaves left alone by PolicySkip
	Unread    int64 // source children skipped because they were not accessible
	Deleted   int64
}

// Result is the outcome of a Copy.
type Result struct {
	Err       error
	Conflicts []string // destination paths left untouched because they existed
	Warnings  []Warning
	Stats     Stats
	Outcome   Outcome
}

// OK reports whether the copy fully succeeded (skips included).
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeSkipped
}

// Copy copies src to dst with default options.
func Copy(src, dst string, sink ProgressSink) Result {
	return New(Options{Sink: sink}).Copy(src, dst)
}

// Move moves src to dst with default options.
func Move(src, dst string) error {
	return New(Options{}).Move(src, dst)
}

// Delete removes path and everything below it with default options.
func Delete(path string) error {
	return New(Options{}).Delete(path)
}

func (e *Engine) warn(w Warning) {
	e.log.Warn("transfer warning", "op", w.Op, "path", w.Path, "error", w.Err)
	if e.opts.OnWarning != nil {
		e.opts.OnWarning(w)
	}
}

func (e *Engine) phase(p MovePhase) {
	e.log.Debug("move phase", "phase", p.String())
	if e.opts.OnMovePhase != nil {
		e.opts.OnMovePhase(p)
	}
}

// removeIfExists is used on a leaf we are about to replace. It does not
// follow symlinks and treats a missing path as success.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return err
}
