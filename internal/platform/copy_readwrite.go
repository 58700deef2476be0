package platform

import (
	"errors"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

const bufferSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// copyReadWrite copies data using pread/pwrite with a pooled buffer.
//
//nolint:gosec // G115: fd values are small non-negative integers
func copyReadWrite(params CopyFileParams) (CopyResult, error) {
	bufp := bufPool.Get().(*[]byte) //nolint:forcetypeassert // pool only holds *[]byte
	defer bufPool.Put(bufp)
	buf := (*bufp)[:min(params.chunk(), bufferSize)]

	srcRaw := int(params.SrcFd.Fd())
	dstRaw := int(params.DstFd.Fd())

	var offset int64
	for offset < params.Size {
		toRead := min(int64(len(buf)), params.Size-offset)

		n, err := unix.Pread(srcRaw, buf[:toRead], offset)
		if err != nil {
			if isTransient(err) {
				continue
			}
			return CopyResult{BytesWritten: offset, Method: ReadWrite}, err
		}
		if n == 0 {
			return CopyResult{BytesWritten: offset, Method: ReadWrite}, ErrShortCopy
		}

		written := 0
		for written < n {
			w, err := unix.Pwrite(dstRaw, buf[written:n], offset+int64(written))
			if err != nil {
				if isTransient(err) {
					continue
				}
				return CopyResult{BytesWritten: offset + int64(written), Method: ReadWrite}, err
			}
			written += w
		}

		offset += int64(n)
		if err := params.report(offset); err != nil {
			return CopyResult{BytesWritten: offset, Method: ReadWrite}, err
		}
	}

	return CopyResult{BytesWritten: offset, Method: ReadWrite}, nil
}

// CopyReadWrite is the exported version for use by other packages during testing.
func CopyReadWrite(params CopyFileParams) (CopyResult, error) {
	return copyReadWrite(params)
}

// isTransient reports whether a syscall error should simply be retried.
func isTransient(err error) bool {
	return errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN)
}

// isFallbackErr returns true if err should trigger a fallback to the next copy strategy.
func isFallbackErr(err error) bool {
	switch {
	case errors.Is(err, unix.ENOSYS),
		errors.Is(err, unix.EXDEV),
		errors.Is(err, unix.EINVAL),
		errors.Is(err, unix.ENOTSUP),
		errors.Is(err, unix.EOPNOTSUPP),
		errors.Is(err, unix.EPERM):
		return true
	}
	var pe *os.PathError
	if errors.As(err, &pe) {
		return isFallbackErr(pe.Err)
	}
	return false
}
