package engine

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"

	"github.com/bamsammich/shuttle/internal/pathutil"
)

// Kind classifies an engine failure. A Kind is itself an error so callers can
// match it anywhere in a wrapped chain: errors.Is(err, engine.TooDeep).
type Kind int

const (
	Unknown Kind = iota
	AccessDenied
	NotFound
	TooDeep
	Conflict
	UnsupportedType
	IOFailure
	PartialFailure
	Cancelled
	InvalidPath
	Inconsistent
)

var kindNames = [...]string{
	Unknown:         "unknown",
	AccessDenied:    "access denied",
	NotFound:        "not found",
	TooDeep:         "too deep",
	Conflict:        "conflict",
	UnsupportedType: "unsupported type",
	IOFailure:       "i/o failure",
	PartialFailure:  "partial failure",
	Cancelled:       "cancelled",
	InvalidPath:     "invalid path",
	Inconsistent:    "inconsistent state",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

func (k Kind) Error() string { return k.String() }

// Error is the failure type returned across the engine boundary.
type Error struct {
	Err  error
	Op   string
	Path string
	Kind Kind
}

func (e *Error) Error() string {
	msg := e.Op + " " + e.Path + ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare Kind against this error's kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the outermost engine Kind in err's chain, or Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return Unknown
}

// ErrCancelled is the conventional error a ProgressSink returns to stop a
// transfer. Any non-nil sink error cancels; this one just reads well.
var ErrCancelled = errors.New("cancelled by caller")

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// classifyErr maps a syscall-level error onto a Kind.
func classifyErr(err error) Kind {
	switch {
	case err == nil:
		return Unknown
	case errors.Is(err, fs.ErrNotExist):
		return NotFound
	case errors.Is(err, fs.ErrPermission):
		return AccessDenied
	case errors.Is(err, fs.ErrExist):
		return Conflict
	case errors.Is(err, unix.ENAMETOOLONG),
		errors.Is(err, pathutil.ErrTooLong),
		errors.Is(err, pathutil.ErrBadName),
		errors.Is(err, pathutil.ErrEmpty):
		return InvalidPath
	default:
		return IOFailure
	}
}

// wrapErr builds an *Error from a raw error, keeping an existing *Error as is.
func wrapErr(op, path string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(classifyErr(err), op, path, err)
}

// aborts reports whether a kind ends the whole call instead of just the
// enclosing directory.
func aborts(err error) bool {
	return errors.Is(err, TooDeep) || errors.Is(err, Cancelled)
}

func errorf(kind Kind, op, path, format string, args ...any) *Error {
	return newError(kind, op, path, fmt.Errorf(format, args...))
}
