package platform

import (
	"errors"
	"os"
)

// DefaultChunkSize is the per-call transfer size between progress callbacks.
const DefaultChunkSize = 256 * 1024

// CopyMethod identifies which syscall/strategy was used for a copy.
type CopyMethod int

const (
	ReadWrite     CopyMethod = iota
	CopyFileRange            // Linux copy_file_range(2)
	Sendfile                 // Linux sendfile(2)
)

func (m CopyMethod) String() string {
	switch m {
	case ReadWrite:
		return "read_write"
	case CopyFileRange:
		return "copy_file_range"
	case Sendfile:
		return "sendfile"
	default:
		return "unknown"
	}
}

// CopyResult reports the outcome of a copy operation.
type CopyResult struct {
	BytesWritten int64
	Method       CopyMethod
}

// CopyFileParams describes what to copy. Both descriptors must be positioned
// at offset 0; Size bytes are streamed from SrcFd into DstFd.
type CopyFileParams struct {
	SrcFd     *os.File
	DstFd     *os.File
	Size      int64
	ChunkSize int64

	// Progress is called after every chunk with the running byte count. A
	// non-nil return stops the copy and is returned unchanged.
	Progress func(done int64) error
}

// ErrShortCopy is returned when the source hit EOF before Size bytes.
var ErrShortCopy = errors.New("source ended before expected size")

func (p CopyFileParams) chunk() int64 {
	if p.ChunkSize > 0 {
		return p.ChunkSize
	}
	return DefaultChunkSize
}

func (p CopyFileParams) report(done int64) error {
	if p.Progress == nil {
		return nil
	}
	return p.Progress(done)
}
