package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/shuttle/internal/event"
	"github.com/bamsammich/shuttle/internal/stats"
)

const plainProgressInterval = 5 * time.Second

// plainPresenter outputs one line per finished item to stdout,
// and periodic progress to stderr when not a TTY.
type plainPresenter struct {
	w       io.Writer
	errW    io.Writer
	stats   *stats.Collector
	root    string
	verbose bool
}

func (p *plainPresenter) Run(events <-chan Event) error {
	ticker := time.NewTicker(plainProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			p.printProgress()
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	path := StripRoot(p.root, ev.Path)
	switch ev.Type {
	case event.ItemProgress:
		// byte-level progress is only summarized by printProgress
	case event.ItemCompleted:
		if ev.Node == "file" {
			fmt.Fprintf(p.w, "%s  %s\n", path, FormatBytes(ev.Total))
		} else if p.verbose {
			fmt.Fprintf(p.w, "%s  %s\n", path, ev.Node)
		}
	case event.ItemConflict:
		fmt.Fprintf(p.w, "%s  conflict: destination exists\n", path)
	case event.ItemSkipped:
		fmt.Fprintf(p.w, "%s  skipped\n", path)
	case event.ItemFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s  %s\n", path, errMsg)
	case event.ItemDeleted:
		if p.verbose {
			fmt.Fprintf(p.w, "delete: %s\n", path)
		}
	case event.Warning:
		fmt.Fprintf(p.errW, "warning: %s %s: %v\n", ev.Detail, path, ev.Error)
	case event.MovePhase:
		if p.verbose {
			fmt.Fprintf(p.w, "move: %s\n", ev.Detail)
		}
	case event.VerifyStarted:
		fmt.Fprintln(p.w, "verifying...")
	case event.VerifyFailed:
		fmt.Fprintf(p.w, "MISMATCH: %s  %s\n", path, ev.Detail)
	case event.VerifyOK:
		// silent in plain mode
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	fmt.Fprintf(p.errW, "progress: %s copied  %s files  %s\n",
		FormatBytes(snap.BytesCopied),
		FormatCount(snap.FilesCopied),
		FormatRate(p.stats.RollingSpeed(10)),
	)
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
