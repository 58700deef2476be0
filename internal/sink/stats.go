package sink

import (
	"github.com/bamsammich/shuttle/internal/engine"
	"github.com/bamsammich/shuttle/internal/stats"
)

// Stats feeds a stats.Writer from engine progress.
type Stats struct {
	w     stats.Writer
	bytes delta
}

// NewStats creates a Stats sink writing to w.
func NewStats(w stats.Writer) *Stats {
	return &Stats{w: w}
}

func (s *Stats) Progress(ev engine.ProgressEvent) error {
	switch ev.Status {
	case engine.StatusInProgress:
		s.w.AddBytesCopied(s.bytes.next(ev))
	case engine.StatusSuccess:
		s.w.AddBytesCopied(s.bytes.next(ev))
		switch ev.Kind {
		case engine.Directory:
			if !ev.Merged {
				s.w.AddDirsCreated(1)
			}
		case engine.Symlink:
			s.w.AddSymlinksCreated(1)
		default:
			s.w.AddFilesCopied(1)
		}
	case engine.StatusConflict:
		s.w.AddConflicts(1)
	case engine.StatusSkipped:
		s.w.AddSkipped(1)
	}
	return nil
}

// Warning counts a non-fatal problem.
func (s *Stats) Warning(engine.Warning) { s.w.AddWarnings(1) }

// Deleted counts one removed entry.
func (s *Stats) Deleted(string, engine.NodeKind) { s.w.AddDeleted(1) }
