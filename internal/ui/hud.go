package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bamsammich/shuttle/internal/event"
	"github.com/bamsammich/shuttle/internal/stats"
)

// hudPresenter provides a rich TTY display with a scrolling feed of finished
// items and a 2-line HUD that redraws in place.
type hudPresenter struct {
	w         io.Writer
	stats     *stats.Collector
	root      string // stripped from displayed paths
	width     int
	verbose   bool
	forceFeed bool
	forceRate bool

	// Internal state.
	hudDrawn     bool
	hudLineCount int // actual number of lines in the last HUD draw
	rateMode     bool
	rateSwitched bool // whether we've printed the switch notice
	current      Event
	lastHUDDraw  time.Time
}

const (
	rateThreshHigh   = 200.0
	rateThreshLow    = 100.0
	sparklineWidth   = 20
	progressBarWidth = 20
	hudMinInterval   = 50 * time.Millisecond // don't redraw faster than this
)

func (p *hudPresenter) Run(events <-chan Event) error {
	if p.forceRate {
		p.rateMode = true
	}

	// Fire first tick quickly to seed the ring buffer, then every second.
	secTicker := time.NewTicker(250 * time.Millisecond)
	defer secTicker.Stop()
	firstTickDone := false

	// Redraw ticker for when no events are flowing (e.g., large file copy).
	redrawTicker := time.NewTicker(100 * time.Millisecond)
	defer redrawTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearHUD()
				return nil
			}
			p.handleEvent(ev)
			p.maybeDrawHUD()

		case <-redrawTicker.C:
			p.maybeSwitch()
			p.drawHUD()

		case <-secTicker.C:
			p.stats.Tick()
			if !firstTickDone {
				firstTickDone = true
				secTicker.Reset(time.Second)
			}
		}
	}
}

func (p *hudPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case event.ItemProgress:
		p.current = ev

	case event.ItemCompleted:
		if ev.Node == "file" {
			p.current = ev
		}
		if !p.rateMode && (ev.Node == "file" || p.verbose) {
			p.feed(styleOK.Render("✓"), ev.Path, p.itemDetail(ev))
		}

	case event.ItemConflict:
		p.feed(styleWarn.Render("!"), ev.Path, styleWarn.Render("conflict: destination exists"))

	case event.ItemSkipped:
		if !p.rateMode {
			p.feed(styleMuted.Render("–"), ev.Path, styleMuted.Render("skipped"))
		}

	case event.ItemFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		p.feed(styleErr.Render("✗"), ev.Path, styleErr.Render(errMsg))

	case event.ItemDeleted:
		if !p.rateMode && p.verbose {
			p.feed(styleMuted.Render("×"), ev.Path, styleMuted.Render(ev.Node))
		}

	case event.Warning:
		p.feed(styleWarn.Render("⚠"), ev.Path, styleWarn.Render(fmt.Sprintf("%s: %v", ev.Detail, ev.Error)))

	case event.MovePhase:
		if p.verbose {
			p.clearHUD()
			fmt.Fprintln(p.w, styleMuted.Render("move: "+ev.Detail))
			p.drawHUD()
		}

	case event.VerifyStarted:
		p.clearHUD()
		fmt.Fprintln(p.w, styleMuted.Render("verifying checksums..."))

	case event.VerifyOK:
		// Counted by the collector; no feed line.

	case event.VerifyFailed:
		p.feed(styleErr.Render("✗"), ev.Path, styleErr.Render("CHECKSUM MISMATCH "+ev.Detail))
	}
}

// feed prints one scrolling line above the HUD and redraws it.
func (p *hudPresenter) feed(icon, path, detail string) {
	p.clearHUD()
	fmt.Fprintf(p.w, "%s  %s  %s\n", icon, p.styledPath(path), detail)
	p.drawHUD()
}

func (p *hudPresenter) itemDetail(ev Event) string {
	if ev.Node != "file" {
		return styleMuted.Render(ev.Node)
	}
	size := fmt.Sprintf("%10s", FormatBytes(ev.Total))
	if speed := p.stats.RollingSpeed(5); speed > 0 {
		return size + "  " + FormatRate(speed)
	}
	return size
}

func (p *hudPresenter) maybeSwitch() {
	if p.forceFeed || p.forceRate {
		return
	}

	fps := p.stats.RollingFilesPerSec(2)

	if !p.rateMode && fps > rateThreshHigh {
		p.rateMode = true
		if !p.rateSwitched {
			p.rateSwitched = true
			p.clearHUD()
			fmt.Fprintf(p.w, "↯ rate view (%s files/s · use --feed to see individual files)\n",
				FormatCount(int64(fps)))
		}
	} else if p.rateMode && fps < rateThreshLow {
		p.rateMode = false
	}
}

// maybeDrawHUD redraws the HUD if enough time has passed since the last draw.
func (p *hudPresenter) maybeDrawHUD() {
	if time.Since(p.lastHUDDraw) < hudMinInterval {
		return
	}
	p.drawHUD()
}

func (p *hudPresenter) drawHUD() {
	snap := p.stats.Snapshot()

	p.clearHUD()

	lines := 0

	// Rate mode: extra files/s line above the main HUD.
	if p.rateMode {
		fps := p.stats.RollingFilesPerSec(5)
		fmt.Fprintf(p.w, "files/s  %s  %s/s   %s done\n",
			Sparkline(p.stats.FilesSparklineData(sparklineWidth), sparklineWidth), FormatCount(int64(fps)),
			FormatCount(snap.FilesCopied))
		lines++
	}

	// Line 1: throughput sparkline + speed + totals so far.
	speed := p.stats.RollingSpeed(10)
	spark := Sparkline(p.stats.SparklineData(sparklineWidth), sparklineWidth)
	fmt.Fprintf(p.w, "       %s   %s   %s   %s files   %s\n",
		spark, FormatRate(speed), FormatBytes(snap.BytesCopied),
		FormatCount(snap.FilesCopied), FormatDuration(snap.Elapsed))
	lines++

	// Line 2: progress of the item being copied.
	fmt.Fprintln(p.w, p.currentLine(speed))
	lines++

	p.hudDrawn = true
	p.hudLineCount = lines
	p.lastHUDDraw = time.Now()
}

func (p *hudPresenter) currentLine(speed float64) string {
	cur := p.current
	if cur.Total <= 0 {
		return styleMuted.Render(" idle")
	}
	pct := float64(cur.Done) / float64(cur.Total)
	var eta time.Duration
	if speed > 0 {
		eta = time.Duration(float64(cur.Total-cur.Done) / speed * float64(time.Second))
	}
	prefix := fmt.Sprintf(" %3.0f%%  %s  ", pct*100, styleFilled.Render(ProgressBar(pct, progressBarWidth)))
	suffix := "  eta " + FormatETA(eta)
	room := p.width - progressBarWidth - 8 - len(suffix)
	return prefix + truncPath(StripRoot(p.root, cur.Path), max(room, 10)) + suffix
}

func (p *hudPresenter) clearHUD() {
	if !p.hudDrawn {
		return
	}
	lines := p.hudLineCount
	if lines == 0 {
		lines = 2 // fallback
	}
	// Move cursor up N lines and clear to end of screen.
	fmt.Fprintf(p.w, "\033[%dA\033[J", lines)
	p.hudDrawn = false
}

func (p *hudPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}

// styledPath returns the path relative to the root with the directory
// portion muted, making the actual filename stand out.
func (p *hudPresenter) styledPath(path string) string {
	path = StripRoot(p.root, path)
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "." || dir == "" {
		return styleBold.Render(base)
	}
	return styleMuted.Render(dir+"/") + styleBold.Render(base)
}

// truncPath shortens a path to fit within maxLen characters.
func truncPath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return path[:maxLen]
	}
	return "..." + path[len(path)-maxLen+3:]
}

// StripRoot removes a root prefix from a path, returning a clean relative
// path. The root itself is shown by its base name.
func StripRoot(root, path string) string {
	if root == "" {
		return path
	}
	root = strings.TrimSuffix(root, string(filepath.Separator))
	if path == root {
		return filepath.Base(path)
	}
	if strings.HasPrefix(path, root+string(filepath.Separator)) {
		return path[len(root)+1:]
	}
	return path
}
