package ui

import "strings"

const sparkBlocks = "▁▂▃▄▅▆▇█"

// Sparkline renders the last width samples as block characters, scaled to
// the largest of them and left-padded with empty samples. Any sample above
// zero renders at least one step above the baseline, so a trickle of
// progress is distinguishable from a stall.
func Sparkline(data []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	peak := 0.0
	for _, v := range data {
		peak = max(peak, v)
	}

	blocks := []rune(sparkBlocks)
	top := len(blocks) - 1

	var b strings.Builder
	b.WriteString(strings.Repeat(string(blocks[0]), width-len(data)))
	for _, v := range data {
		level := 0
		if v > 0 && peak > 0 {
			level = min(max(int(v/peak*float64(top)), 1), top)
		}
		b.WriteRune(blocks[level])
	}
	return b.String()
}
