package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/shuttle/internal/engine"
	"github.com/bamsammich/shuttle/internal/journal"
	"github.com/bamsammich/shuttle/internal/pathutil"
)

func newMoveCmd(a *app) *cobra.Command {
	var (
		tf     transferFlags
		rename bool
	)
	cmd := &cobra.Command{
		Use:     "mv [flags] <source> <destination>",
		Aliases: []string{"move"},
		Short:   "Move a file, symlink or directory tree",
		Long: `Move source to destination. Destination must not exist.

Within one filesystem this is a rename that cannot overwrite anything.
Across filesystems the tree is copied, then the source is removed; if the
copy fails the partial destination is removed and the source is untouched.

With --rename, destination is a bare name and the entry is renamed in place.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := tf.resolve(cmd, a.cfg.Defaults)
			if err != nil {
				return err
			}
			src, dst := args[0], args[1]
			if rename {
				if dst, err = renameTarget(src, dst); err != nil {
					return err
				}
			}
			return a.runMove(cmd, src, dst, set)
		},
	}
	tf.register(cmd.Flags(), false)
	cmd.Flags().BoolVar(&rename, "rename", false, "treat destination as a new name in the source's directory")
	return cmd
}

// renameTarget is the path src gets when renamed to name.
func renameTarget(src, name string) (string, error) {
	parent := pathutil.Parent(src)
	if parent == "" {
		parent = "."
	}
	dst, err := pathutil.Join(parent, name)
	if err != nil {
		return "", fmt.Errorf("invalid new name %q: %w", name, err)
	}
	return dst, nil
}

func (a *app) runMove(cmd *cobra.Command, src, dst string, set settings) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	op, err := a.beginOp(cmd, journal.OpMove, src, dst)
	if err != nil {
		return err
	}

	slog.Debug("starting move", "src", src, "dst", dst)

	s := a.startSession(dst)
	opts := s.options(ctx, set.sinks(ctx)...)
	set.configure(&opts)
	opts.OnMovePhase = func(p engine.MovePhase) {
		op.phase(p.String())
		s.progress.Phase(p)
	}

	err = engine.New(opts).Move(src, dst)
	if err != nil {
		s.fail(src, err)
	}
	s.finish()
	op.finish(err == nil, err)

	if err != nil {
		slog.Error("move failed", "error", err)
		if engine.KindOf(err) == engine.Inconsistent {
			slog.Error("source and destination may both be incomplete, run shuttle recover",
				"src", src, "dst", dst)
		}
	}
	return exitWith(errExitCode(err))
}

// errExitCode maps a Move or Delete error to 0 success, 1 partial failure
// or conflict, 2 total failure.
func errExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch engine.KindOf(err) {
	case engine.Conflict, engine.PartialFailure, engine.Inconsistent:
		return 1
	default:
		return 2
	}
}
