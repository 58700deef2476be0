//go:build !linux

package platform

// CopyFile falls back to read/write on platforms without a zero-copy path
// that can report progress per chunk.
func CopyFile(params CopyFileParams) (CopyResult, error) {
	return copyReadWrite(params)
}
