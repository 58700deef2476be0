//go:build linux

package platform

import (
	"golang.org/x/sys/unix"
)

// preallocMin is the smallest file worth reserving extents for up front.
const preallocMin = 1 << 20

// CopyFile tries the most efficient copy method available on Linux,
// falling through on unsupported/cross-device errors. A method only falls
// through if it has not written anything yet.
func CopyFile(params CopyFileParams) (CopyResult, error) {
	reserve(params)

	result, err := copyFileRange(params)
	if err == nil || result.BytesWritten > 0 || !isFallbackErr(err) {
		return result, err
	}

	result, err = copySendfile(params)
	if err == nil || result.BytesWritten > 0 || !isFallbackErr(err) {
		return result, err
	}

	return copyReadWrite(params)
}

//nolint:gosec // G115: fd values are small non-negative integers
func copyFileRange(params CopyFileParams) (CopyResult, error) {
	srcRaw := int(params.SrcFd.Fd())
	dstRaw := int(params.DstFd.Fd())
	chunk := params.chunk()

	var roff, woff int64
	var total int64
	for total < params.Size {
		want := min(chunk, params.Size-total)
		n, err := unix.CopyFileRange(srcRaw, &roff, dstRaw, &woff, int(want), 0)
		if err != nil {
			if isTransient(err) {
				continue
			}
			return CopyResult{BytesWritten: total, Method: CopyFileRange}, err
		}
		if n == 0 {
			return CopyResult{BytesWritten: total, Method: CopyFileRange}, ErrShortCopy
		}
		total += int64(n)
		if err := params.report(total); err != nil {
			return CopyResult{BytesWritten: total, Method: CopyFileRange}, err
		}
	}
	return CopyResult{BytesWritten: total, Method: CopyFileRange}, nil
}

//nolint:gosec // G115: fd values are small non-negative integers
func copySendfile(params CopyFileParams) (CopyResult, error) {
	srcRaw := int(params.SrcFd.Fd())
	dstRaw := int(params.DstFd.Fd())
	chunk := params.chunk()

	var offset int64
	var total int64
	for total < params.Size {
		want := min(chunk, params.Size-total)
		n, err := unix.Sendfile(dstRaw, srcRaw, &offset, int(want))
		if err != nil {
			if isTransient(err) {
				continue
			}
			return CopyResult{BytesWritten: total, Method: Sendfile}, err
		}
		if n == 0 {
			return CopyResult{BytesWritten: total, Method: Sendfile}, ErrShortCopy
		}
		total += int64(n)
		if err := params.report(total); err != nil {
			return CopyResult{BytesWritten: total, Method: Sendfile}, err
		}
	}
	return CopyResult{BytesWritten: total, Method: Sendfile}, nil
}

// reserve asks the filesystem for the destination's extents before the
// first chunk. FALLOC_FL_KEEP_SIZE leaves the visible size alone so a copy
// that stops early never looks complete. Failure is ignored: not every
// filesystem implements fallocate.
//
//nolint:gosec // G115: fd values are small non-negative integers
func reserve(params CopyFileParams) {
	if params.Size < preallocMin {
		return
	}
	//nolint:errcheck // advisory
	unix.Fallocate(int(params.DstFd.Fd()), unix.FALLOC_FL_KEEP_SIZE, 0, params.Size)
}
