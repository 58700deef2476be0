package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bamsammich/shuttle/internal/engine"
	"github.com/bamsammich/shuttle/internal/journal"
)

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm [flags] <path>...",
		Aliases: []string{"delete"},
		Short:   "Delete files, symlinks or directory trees",
		Long: `Delete each path and everything below it. Symlinks are removed, never
followed. A path that does not exist is not an error. Deletion stops at the
first entry that cannot be removed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRemove(cmd, args)
		},
	}
}

func (a *app) runRemove(cmd *cobra.Command, paths []string) error {
	root := ""
	if len(paths) == 1 {
		root = paths[0]
	}
	s := a.startSession(root)
	eng := engine.New(s.options(cmd.Context()))

	code := 0
	for _, path := range paths {
		op, err := a.beginOp(cmd, journal.OpDelete, path, "")
		if err != nil {
			s.fail(path, err)
			code = max(code, 2)
			continue
		}
		err = eng.Delete(path)
		op.finish(err == nil, err)
		if err != nil {
			s.fail(path, err)
			slog.Error("delete failed", "path", path, "error", err)
			code = max(code, errExitCode(err))
		}
	}
	s.finish()
	return exitWith(code)
}
