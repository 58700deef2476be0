package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bamsammich/shuttle/internal/engine"
	"github.com/bamsammich/shuttle/internal/event"
	"github.com/bamsammich/shuttle/internal/sink"
	"github.com/bamsammich/shuttle/internal/stats"
	"github.com/bamsammich/shuttle/internal/ui"
)

// session is the progress plumbing of one command: a stats collector, the
// event channel, and the presenter draining it on its own goroutine.
type session struct {
	a         *app
	collector *stats.Collector
	events    chan event.Event
	progress  *sink.Events
	counts    *sink.Stats
	presenter ui.Presenter

	wg           sync.WaitGroup
	presenterErr error
}

func (a *app) startSession(root string) *session {
	s := &session{
		a:         a,
		collector: stats.NewCollector(),
		events:    make(chan event.Event, 256),
	}
	s.progress = sink.NewEvents(s.events)
	s.counts = sink.NewStats(s.collector)

	// With a log file, events pass through a logging goroutine that writes
	// structured records before forwarding to the presenter.
	presenterEvents := (<-chan event.Event)(s.events)
	if a.logSink != nil {
		presenterEvents = teeToLog(s.events)
	}

	isTTY, width := ui.Terminal(a.stderr)
	s.presenter = ui.NewPresenter(ui.Config{
		Writer:     a.stdout,
		ErrWriter:  a.stderr,
		Stats:      s.collector,
		Root:       root,
		Width:      width,
		IsTTY:      isTTY,
		Quiet:      a.quiet,
		Verbose:    a.verbose,
		ForceFeed:  a.forceFeed,
		ForceRate:  a.forceRate,
		NoProgress: a.noProgress,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.presenterErr = s.presenter.Run(presenterEvents)
	}()
	return s
}

func teeToLog(in <-chan event.Event) <-chan event.Event {
	out := make(chan event.Event, cap(in))
	go func() {
		defer close(out)
		for ev := range in {
			if ev.Type != event.ItemProgress {
				attrs := []slog.Attr{
					slog.String("type", ev.Type.String()),
					slog.String("path", ev.Path),
				}
				if ev.Node != "" {
					attrs = append(attrs, slog.String("node", ev.Node))
				}
				if ev.Total > 0 {
					attrs = append(attrs, slog.Int64("size", ev.Total))
				}
				if ev.Detail != "" {
					attrs = append(attrs, slog.String("detail", ev.Detail))
				}
				if ev.Error != nil {
					attrs = append(attrs, slog.String("error", ev.Error.Error()))
				}
				slog.LogAttrs(context.Background(), slog.LevelDebug, "shuttle.event", attrs...)
			}
			out <- ev
		}
	}()
	return out
}

// options returns engine options that report into the session. extra sinks
// run after cancellation and before the counters.
func (s *session) options(ctx context.Context, extra ...engine.ProgressSink) engine.Options {
	sinks := sink.Multi{sink.NewCancel(ctx)}
	sinks = append(sinks, extra...)
	sinks = append(sinks, s.counts, s.progress)

	return engine.Options{
		Sink:   sinks,
		Logger: s.a.engineLogger(),
		OnWarning: func(w engine.Warning) {
			s.counts.Warning(w)
			s.progress.Warning(w)
		},
		OnDelete: func(path string, kind engine.NodeKind) {
			s.counts.Deleted(path, kind)
			s.progress.Deleted(path, kind)
		},
	}
}

// fail reports the error that ended an operation.
func (s *session) fail(path string, err error) {
	s.collector.AddFailed(1)
	s.progress.Failed(path, err)
}

// finish closes the event stream, waits for the presenter, and prints the
// summary line.
func (s *session) finish() {
	close(s.events)
	s.wg.Wait()
	if s.presenterErr != nil {
		fmt.Fprintf(s.a.stderr, "presenter: %v\n", s.presenterErr)
	}
	if !s.a.quiet {
		if summary := s.presenter.Summary(); summary != "" {
			fmt.Fprintln(s.a.stderr, summary)
		}
	}
	slog.Debug("session finished", "stats", s.collector.Snapshot().String())
}
