package journal

import (
	"fmt"
	"os"

	"github.com/bamsammich/shuttle/internal/engine"
)

// Remover deletes a tree. *engine.Engine satisfies it.
type Remover interface {
	Delete(path string) error
}

// Action describes what Recover did.
type Action string

const (
	ActionNone               Action = "nothing to undo"
	ActionRemovedDestination Action = "removed partial destination"
	ActionFinishedSource     Action = "finished removing source"
	ActionRedoneDelete       Action = "re-ran delete"
	ActionReported           Action = "reported only"
)

// Recover brings an unfinished entry to a consistent end state and marks
// it recovered:
//
//   - a move stopped while copying or rolling back removes dst, since a
//     move never starts with dst present;
//   - a move stopped while removing the source finishes the removal, since
//     dst already holds the full copy;
//   - a delete is simply run again;
//   - a copy is only reported, there is nothing safe to undo.
func (j *Journal) Recover(e Entry, rm Remover) (Action, error) {
	if !e.Pending() {
		return ActionNone, nil
	}

	var (
		action Action
		err    error
	)
	switch e.Op {
	case OpMove:
		action, err = recoverMove(e, rm)
	case OpDelete:
		action, err = ActionRedoneDelete, rm.Delete(e.Src)
	default:
		if ferr := j.Finish(e.ID, OutcomeAbandoned, nil); ferr != nil {
			return ActionReported, ferr
		}
		return ActionReported, nil
	}
	if err != nil {
		return action, fmt.Errorf("recover %s %s: %w", e.Op, e.ID, err)
	}
	if err := j.Finish(e.ID, OutcomeRecovered, nil); err != nil {
		return action, err
	}
	return action, nil
}

func recoverMove(e Entry, rm Remover) (Action, error) {
	switch e.Phase {
	case engine.PhaseCopy.String(), engine.PhaseRollback.String():
		if !exists(e.Src) {
			return ActionNone, fmt.Errorf("source %s is gone, keeping destination %s", e.Src, e.Dst)
		}
		return ActionRemovedDestination, rm.Delete(e.Dst)
	case engine.PhaseRemoveSource.String():
		return ActionFinishedSource, rm.Delete(e.Src)
	default:
		// Started, rename, done: a rename either happened or it did not.
		return ActionNone, nil
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
