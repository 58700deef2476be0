package ui

import (
	"io"

	"github.com/bamsammich/shuttle/internal/event"
	"github.com/bamsammich/shuttle/internal/stats"
)

// Event is the unit a Presenter consumes.
type Event = event.Event

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer
	ErrWriter  io.Writer
	Stats      *stats.Collector
	Root       string // destination root (or the deleted path), stripped from displayed paths
	Width      int    // terminal columns; 0 means 80
	IsTTY      bool
	Quiet      bool
	Verbose    bool
	ForceFeed  bool
	ForceRate  bool
	NoProgress bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{}
	}
	if !cfg.IsTTY || cfg.NoProgress {
		return &plainPresenter{
			w:       cfg.Writer,
			errW:    cfg.ErrWriter,
			stats:   cfg.Stats,
			root:    cfg.Root,
			verbose: cfg.Verbose,
		}
	}
	width := cfg.Width
	if width <= 0 {
		width = 80
	}
	return &hudPresenter{
		w:         cfg.ErrWriter, // HUD renders to stderr (the TTY)
		stats:     cfg.Stats,
		root:      cfg.Root,
		width:     width,
		verbose:   cfg.Verbose,
		forceFeed: cfg.ForceFeed,
		forceRate: cfg.ForceRate,
	}
}
