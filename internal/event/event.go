package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	ItemProgress Type = iota + 1
	ItemCompleted
	ItemConflict
	ItemSkipped
	ItemFailed
	ItemDeleted
	Warning
	MovePhase
	VerifyStarted
	VerifyOK
	VerifyFailed
)

var typeNames = [...]string{
	ItemProgress:  "ItemProgress",
	ItemCompleted: "ItemCompleted",
	ItemConflict:  "ItemConflict",
	ItemSkipped:   "ItemSkipped",
	ItemFailed:    "ItemFailed",
	ItemDeleted:   "ItemDeleted",
	Warning:       "Warning",
	MovePhase:     "MovePhase",
	VerifyStarted: "VerifyStarted",
	VerifyOK:      "VerifyOK",
	VerifyFailed:  "VerifyFailed",
}

func (t Type) String() string {
	if int(t) > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from a transfer.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // destination path (source path for deletes)
	Item      string // base name shown to the user
	Node      string // "file", "directory", "symlink"
	Done      int64  // bytes so far
	Total     int64  // item size
	Error     error
	Detail    string // move phase, warning op, ...
}
