package ui

import (
	"fmt"

	"github.com/bamsammich/shuttle/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  files 48,917  size 2.1 GiB  avg 641 MB/s  time 3m 17s  errors 0
// Counters that stayed at zero, other than files and errors, are left out.
func CompletionSummary(snap stats.Snapshot) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesCopied) / snap.Elapsed.Seconds()
	}

	icon := "✓"
	if snap.Problems() > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  files %s", icon, FormatCount(snap.FilesCopied))
	if snap.DirsCreated > 0 {
		base += "  dirs " + FormatCount(snap.DirsCreated)
	}
	if snap.SymlinksCreated > 0 {
		base += "  links " + FormatCount(snap.SymlinksCreated)
	}
	if snap.BytesCopied > 0 {
		base += fmt.Sprintf("  size %s  avg %s", FormatBytes(snap.BytesCopied), FormatRate(avgSpeed))
	}
	if snap.Deleted > 0 {
		base += "  removed " + FormatCount(snap.Deleted)
	}
	base += "  time " + FormatDuration(snap.Elapsed)

	if snap.FilesVerified > 0 || snap.FilesVerifyFailed > 0 {
		base += "  verified " + FormatCount(snap.FilesVerified)
	}
	if snap.Conflicts > 0 {
		base += "  conflicts " + FormatCount(snap.Conflicts)
	}
	if snap.Skipped > 0 {
		base += "  skipped " + FormatCount(snap.Skipped)
	}
	if snap.Warnings > 0 {
		base += "  warnings " + FormatCount(snap.Warnings)
	}

	base += fmt.Sprintf("  errors %d", snap.Failed+snap.FilesVerifyFailed)

	return base
}
