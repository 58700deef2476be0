package sink

import (
	"time"

	"github.com/bamsammich/shuttle/internal/engine"
	"github.com/bamsammich/shuttle/internal/event"
)

// Events forwards engine progress to an event channel for a presenter.
// Byte progress is dropped when the channel is full; every other event is
// delivered.
type Events struct {
	ch chan<- event.Event
}

// NewEvents creates an Events sink writing to ch. A nil ch discards.
func NewEvents(ch chan<- event.Event) *Events {
	return &Events{ch: ch}
}

func (s *Events) Progress(ev engine.ProgressEvent) error {
	out := event.Event{
		Path:  ev.Path,
		Item:  ev.Item,
		Node:  ev.Kind.String(),
		Done:  ev.Done,
		Total: ev.Total,
	}
	switch ev.Status {
	case engine.StatusInProgress:
		out.Type = event.ItemProgress
		s.tryEmit(out)
		return nil
	case engine.StatusConflict:
		out.Type = event.ItemConflict
	case engine.StatusSkipped:
		out.Type = event.ItemSkipped
	default:
		out.Type = event.ItemCompleted
	}
	s.emit(out)
	return nil
}

// Warning reports a non-fatal problem.
func (s *Events) Warning(w engine.Warning) {
	s.emit(event.Event{Type: event.Warning, Path: w.Path, Detail: w.Op, Error: w.Err})
}

// Deleted reports one removed entry.
func (s *Events) Deleted(path string, kind engine.NodeKind) {
	s.emit(event.Event{Type: event.ItemDeleted, Path: path, Node: kind.String()})
}

// Phase reports a move phase change.
func (s *Events) Phase(p engine.MovePhase) {
	s.emit(event.Event{Type: event.MovePhase, Detail: p.String()})
}

// Failed reports the error that ended an operation.
func (s *Events) Failed(path string, err error) {
	s.emit(event.Event{Type: event.ItemFailed, Path: path, Error: err})
}

func (s *Events) emit(e event.Event) {
	if s.ch == nil {
		return
	}
	e.Timestamp = time.Now()
	s.ch <- e
}

func (s *Events) tryEmit(e event.Event) {
	if s.ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case s.ch <- e:
	default:
	}
}
