package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Writer is the write side of a Collector, used by sinks.
type Writer interface {
	AddFilesCopied(n int64)
	AddDirsCreated(n int64)
	AddSymlinksCreated(n int64)
	AddBytesCopied(n int64)
	AddConflicts(n int64)
	AddSkipped(n int64)
	AddFailed(n int64)
	AddDeleted(n int64)
	AddWarnings(n int64)
	AddFilesVerified(n int64)
	AddFilesVerifyFailed(n int64)
}

// Reader is the read side of a Collector, used by presenters.
type Reader interface {
	Snapshot() Snapshot
}

// ReadTicker is a Reader whose throughput ring the presenter advances.
type ReadTicker interface {
	Reader
	Tick()
	RollingSpeed(seconds int) float64
	SparklineData(n int) []float64
}

// Collector tracks transfer statistics using lock-free atomic counters.
type Collector struct {
	filesCopied       atomic.Int64
	dirsCreated       atomic.Int64
	symlinksCreated   atomic.Int64
	bytesCopied       atomic.Int64
	conflicts         atomic.Int64
	skipped           atomic.Int64
	failed            atomic.Int64
	deleted           atomic.Int64
	warnings          atomic.Int64
	filesVerified     atomic.Int64
	filesVerifyFailed atomic.Int64
	startTime         time.Time

	// Ring buffer, written only by the presenter's Tick().
	mu          sync.Mutex
	throughput  [ringSize]int64 // bytes delta per second
	filesPerSec [ringSize]int64 // files delta per second
	ringIdx     int
	ringCount   int // samples written, capped at ringSize
	lastBytes   int64
	lastFiles   int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesCopied       int64
	DirsCreated       int64
	SymlinksCreated   int64
	BytesCopied       int64
	Conflicts         int64
	Skipped           int64
	Failed            int64
	Deleted           int64
	Warnings          int64
	FilesVerified     int64
	FilesVerifyFailed int64
	Elapsed           time.Duration
}

func (c *Collector) AddFilesCopied(n int64)       { c.filesCopied.Add(n) }
func (c *Collector) AddDirsCreated(n int64)       { c.dirsCreated.Add(n) }
func (c *Collector) AddSymlinksCreated(n int64)   { c.symlinksCreated.Add(n) }
func (c *Collector) AddBytesCopied(n int64)       { c.bytesCopied.Add(n) }
func (c *Collector) AddConflicts(n int64)         { c.conflicts.Add(n) }
func (c *Collector) AddSkipped(n int64)           { c.skipped.Add(n) }
func (c *Collector) AddFailed(n int64)            { c.failed.Add(n) }
func (c *Collector) AddDeleted(n int64)           { c.deleted.Add(n) }
func (c *Collector) AddWarnings(n int64)          { c.warnings.Add(n) }
func (c *Collector) AddFilesVerified(n int64)     { c.filesVerified.Add(n) }
func (c *Collector) AddFilesVerifyFailed(n int64) { c.filesVerifyFailed.Add(n) }

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesCopied:       c.filesCopied.Load(),
		DirsCreated:       c.dirsCreated.Load(),
		SymlinksCreated:   c.symlinksCreated.Load(),
		BytesCopied:       c.bytesCopied.Load(),
		Conflicts:         c.conflicts.Load(),
		Skipped:           c.skipped.Load(),
		Failed:            c.failed.Load(),
		Deleted:           c.deleted.Load(),
		Warnings:          c.warnings.Load(),
		FilesVerified:     c.filesVerified.Load(),
		FilesVerifyFailed: c.filesVerifyFailed.Load(),
		Elapsed:           c.Elapsed(),
	}
}

// Tick snapshots byte/file deltas into the ring buffer. Called 1/sec by the presenter.
func (c *Collector) Tick() {
	currentBytes := c.bytesCopied.Load()
	currentFiles := c.filesCopied.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = currentBytes - c.lastBytes
	c.filesPerSec[c.ringIdx] = currentFiles - c.lastFiles
	c.lastBytes = currentBytes
	c.lastFiles = currentFiles

	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollingAvg(c.throughput[:], seconds)
}

// RollingFilesPerSec returns average files/sec over the last n seconds.
func (c *Collector) RollingFilesPerSec(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollingAvg(c.filesPerSec[:], seconds)
}

func (c *Collector) rollingAvg(buf []int64, n int) float64 {
	count := min(n, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += buf[idx]
	}
	return float64(sum) / float64(count)
}

// SparklineData returns the last n bytes/sec samples, oldest first.
func (c *Collector) SparklineData(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSamples(c.throughput[:], n)
}

// FilesSparklineData returns the last n files/sec samples, oldest first.
func (c *Collector) FilesSparklineData(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSamples(c.filesPerSec[:], n)
}

func (c *Collector) lastSamples(buf []int64, n int) []float64 {
	count := min(n, c.ringCount)
	if count <= 0 {
		return nil
	}

	data := make([]float64, count)
	for i := range count {
		idx := (c.ringIdx - count + i + ringSize) % ringSize
		data[i] = float64(buf[idx])
	}
	return data
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

// Problems is the number of items that did not end up copied as asked.
func (s Snapshot) Problems() int64 {
	return s.Conflicts + s.Failed + s.FilesVerifyFailed
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"files=%d dirs=%d symlinks=%d bytes=%d conflicts=%d skipped=%d failed=%d deleted=%d",
		s.FilesCopied, s.DirsCreated, s.SymlinksCreated, s.BytesCopied,
		s.Conflicts, s.Skipped, s.Failed, s.Deleted,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
