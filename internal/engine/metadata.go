package engine

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// nodeMeta is the metadata carried from a source node to its copy.
type nodeMeta struct {
	ModTime  time.Time
	AccTime  time.Time
	Mode     uint32 // permission bits incl. setuid/setgid/sticky
	UID      int
	GID      int
	HasOwner bool
}

func metaOf(info os.FileInfo) nodeMeta {
	m := nodeMeta{
		ModTime: info.ModTime(),
		AccTime: info.ModTime(),
		Mode:    uint32(info.Mode().Perm()),
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		m.Mode = uint32(stat.Mode) & 0o7777
		m.UID = int(stat.Uid)
		m.GID = int(stat.Gid)
		m.HasOwner = true
		m.AccTime = atimeFromStat(stat)
	}
	return m
}

// applyFileMeta copies owner, mode, and times onto an open destination
// file. Every failure is a warning; the data is already safely written.
//
//nolint:gosec // G115: fd values are small non-negative integers
func (r *copyRun) applyFileMeta(fd *os.File, path string, m nodeMeta) {
	rawFd := int(fd.Fd())

	// Ownership first: chown clears setuid/setgid, so mode comes after.
	if m.HasOwner && !r.e.opts.IgnoreOwner {
		if err := unix.Fchown(rawFd, m.UID, m.GID); err != nil && !ownerUnchanged(m) {
			r.warn("chown", path, err)
		}
	}
	if err := unix.Fchmod(rawFd, m.Mode); err != nil {
		r.warn("chmod", path, err)
	}
	if err := setFileTimes(rawFd, path, m.AccTime, m.ModTime); err != nil {
		r.warn("utimes", path, err)
	}
}

// applyDirMeta is applyFileMeta for a directory this run created. It runs
// after the children are in place so a read-only source directory can
// still be populated.
func (r *copyRun) applyDirMeta(path string, m nodeMeta) {
	if m.HasOwner && !r.e.opts.IgnoreOwner {
		if err := os.Lchown(path, m.UID, m.GID); err != nil && !ownerUnchanged(m) {
			r.warn("chown", path, err)
		}
	}
	if err := unix.Chmod(path, m.Mode); err != nil {
		r.warn("chmod", path, err)
	}
	if err := setPathTimes(path, m, 0); err != nil {
		r.warn("utimes", path, err)
	}
}

// applyLinkMeta sets owner and times on the link itself, never its target.
func (r *copyRun) applyLinkMeta(path string, m nodeMeta) {
	if m.HasOwner && !r.e.opts.IgnoreOwner {
		if err := os.Lchown(path, m.UID, m.GID); err != nil && !ownerUnchanged(m) {
			r.warn("chown", path, err)
		}
	}
	if err := setPathTimes(path, m, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		r.warn("utimes", path, err)
	}
}

func setPathTimes(path string, m nodeMeta, flags int) error {
	times := []unix.Timespec{
		unix.NsecToTimespec(m.AccTime.UnixNano()),
		unix.NsecToTimespec(m.ModTime.UnixNano()),
	}
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, times, flags)
}

// ownerUnchanged is true when the source is already owned by us, in which
// case a failed chown changes nothing and is not worth a warning.
func ownerUnchanged(m nodeMeta) bool {
	return m.UID == os.Geteuid() && m.GID == os.Getegid()
}
