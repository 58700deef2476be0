package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bamsammich/shuttle/internal/journal"
)

// openJournal opens the operation journal, or returns nil when journaling
// is switched off by flag or config.
func (a *app) openJournal(cmd *cobra.Command) (*journal.Journal, error) {
	if a.noJournal {
		return nil, nil
	}
	if !cmd.Flags().Changed("no-journal") && a.cfg.Defaults.Journal != nil && !*a.cfg.Defaults.Journal {
		return nil, nil
	}
	path := a.journalPath
	if path == "" {
		path = journal.DefaultPath()
	}
	return journal.Open(path)
}

// opLog journals one operation. The zero value records nothing.
type opLog struct {
	j  *journal.Journal
	id uuid.UUID
}

// beginOp records the start of an operation. An unusable journal only costs
// crash recovery, so it is a warning; an unfinished entry for the same paths
// is an error because running again could destroy what recovery needs.
func (a *app) beginOp(cmd *cobra.Command, op journal.Op, src, dst string) (*opLog, error) {
	j, err := a.openJournal(cmd)
	if err != nil {
		slog.Warn("journal unavailable, continuing without it", "error", err)
		return &opLog{}, nil
	}
	if j == nil {
		return &opLog{}, nil
	}
	id, err := j.Begin(op, src, dst)
	if err != nil {
		j.Close()
		if errors.Is(err, journal.ErrPending) {
			return nil, fmt.Errorf("%s %s: %w", op, src, err)
		}
		slog.Warn("journal unavailable, continuing without it", "error", err)
		return &opLog{}, nil
	}
	slog.Debug("journaled operation", "id", id, "op", op)
	return &opLog{j: j, id: id}, nil
}

func (l *opLog) phase(phase string) {
	if l.j == nil {
		return
	}
	if err := l.j.SetPhase(l.id, phase); err != nil {
		slog.Warn("journal phase", "id", l.id, "phase", phase, "error", err)
	}
}

// finish records the outcome and closes the journal.
func (l *opLog) finish(ok bool, cause error) {
	if l.j == nil {
		return
	}
	outcome := journal.OutcomeSuccess
	if !ok {
		outcome = journal.OutcomeFailed
	}
	if err := l.j.Finish(l.id, outcome, cause); err != nil {
		slog.Warn("journal finish", "id", l.id, "error", err)
	}
	if err := l.j.Close(); err != nil {
		slog.Warn("close journal", "error", err)
	}
	l.j = nil
}
