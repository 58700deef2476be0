package ui

import (
	"io"
	"os"

	"golang.org/x/term"
)

// Terminal reports whether w is a terminal and, if so, its width in
// columns. Width is 0 when it cannot be determined.
func Terminal(w io.Writer) (isTTY bool, width int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115: fd values are small
		return false, 0
	}
	cols, _, err := term.GetSize(int(f.Fd())) //nolint:gosec // G115: fd values are small
	if err != nil || cols <= 0 {
		return true, 0
	}
	return true, cols
}
