package main

import (
	"context"
	"log/slog"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/shuttle/internal/engine"
	"github.com/bamsammich/shuttle/internal/journal"
	"github.com/bamsammich/shuttle/internal/verify"
)

func newCopyCmd(a *app) *cobra.Command {
	var (
		tf          transferFlags
		verifyAfter bool
	)
	cmd := &cobra.Command{
		Use:     "cp [flags] <source> <destination>",
		Aliases: []string{"copy"},
		Short:   "Copy a file, symlink or directory tree",
		Long: `Copy source to destination. Destination is the path the copy will have,
not a directory to copy into. Directories are copied recursively and merged
into an existing destination directory; an existing destination file is a
conflict handled by --conflict.

Permission bits, timestamps and (when permitted) ownership are preserved.
Symlinks are copied as links, never followed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("verify") && a.cfg.Defaults.Verify != nil {
				verifyAfter = *a.cfg.Defaults.Verify
			}
			set, err := tf.resolve(cmd, a.cfg.Defaults)
			if err != nil {
				return err
			}
			return a.runCopy(cmd, args[0], args[1], set, verifyAfter)
		},
	}
	tf.register(cmd.Flags(), true)
	cmd.Flags().BoolVar(&verifyAfter, "verify", false, "verify checksums after copy (BLAKE3)")
	return cmd
}

func (a *app) runCopy(cmd *cobra.Command, src, dst string, set settings, verifyAfter bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	op, err := a.beginOp(cmd, journal.OpCopy, src, dst)
	if err != nil {
		return err
	}

	slog.Debug("starting copy", "src", src, "dst", dst, "policy", set.policy, "max_depth", set.maxDepth)

	s := a.startSession(dst)
	written := writtenSet{}
	opts := s.options(ctx, append(set.sinks(ctx), written)...)
	set.configure(&opts)

	res := engine.New(opts).Copy(src, dst)
	// Conflicts were already reported item by item.
	if res.Err != nil && res.Outcome != engine.OutcomeConflict {
		s.fail(src, res.Err)
	}

	cause := res.Err
	verified := true
	if verifyAfter && res.OK() {
		vr, verr := verify.Tree(ctx, verify.Config{
			Src:     src,
			Dst:     dst,
			Workers: min(runtime.NumCPU(), 8),
			Events:  s.events,
			Stats:   s.collector,
			Include: written.has,
		})
		if verr != nil {
			s.fail(dst, verr)
			cause = verr
		}
		verified = verr == nil && vr.OK()
	}
	s.finish()

	op.finish(res.OK() && verified, cause)

	if cause != nil {
		slog.Error("copy failed", "error", cause)
	}
	code := copyExitCode(res)
	if code == 0 && !verified {
		code = 1
	}
	return exitWith(code)
}

// copyExitCode maps a copy result to 0 success, 1 partial failure or
// conflict, 2 total failure.
func copyExitCode(res engine.Result) int {
	switch res.Outcome {
	case engine.OutcomeSuccess, engine.OutcomeSkipped:
		return 0
	case engine.OutcomeConflict, engine.OutcomePartialFailure:
		return 1
	default:
		if res.Stats.Files+res.Stats.Dirs+res.Stats.Symlinks > 0 {
			return 1 // partial failure
		}
		return 2 // total failure
	}
}

// writtenSet records every destination path the copy completed, so
// verification skips what a policy left alone.
type writtenSet map[string]struct{}

func (w writtenSet) Progress(ev engine.ProgressEvent) error {
	if ev.Status == engine.StatusSuccess {
		w[filepath.Clean(ev.Path)] = struct{}{}
	}
	return nil
}

func (w writtenSet) has(path string) bool {
	_, ok := w[filepath.Clean(path)]
	return ok
}
