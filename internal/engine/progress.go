package engine

// Status is the state reported with a ProgressEvent.
type Status int

const (
	StatusInProgress Status = iota // a chunk of the current file was written
	StatusSuccess                  // the item is complete
	StatusConflict                 // the destination exists and policy forbids overwrite
	StatusSkipped                  // the destination exists and policy said skip
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusSuccess:
		return "success"
	case StatusConflict:
		return "conflict"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// ProgressEvent reports the state of one item. For a given item Done never
// decreases and equals Total on the final event.
type ProgressEvent struct {
	Item   string // base name of the item
	Path   string // destination path
	Done   int64
	Total  int64
	Kind   NodeKind
	Status Status
	Merged bool // a directory that already existed and was merged into
}

// ProgressSink receives progress from the Copy Engine. It is called on the
// engine's goroutine after every chunk and every completed item, so it must
// return promptly. A non-nil return cancels the transfer at that point.
type ProgressSink interface {
	Progress(ev ProgressEvent) error
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(ProgressEvent) error

func (f SinkFunc) Progress(ev ProgressEvent) error { return f(ev) }

// Warning is a non-fatal problem, typically metadata that could not be
// preserved or a child skipped because it was not accessible.
type Warning struct {
	Err  error
	Op   string
	Path string
}

func (w Warning) String() string {
	return w.Op + " " + w.Path + ": " + w.Err.Error()
}
