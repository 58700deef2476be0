package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/shuttle/internal/config"
)

// Palette for status words; config may override any entry.
var (
	ColorGreen  = lipgloss.Color("#a6e3a1")
	ColorYellow = lipgloss.Color("#f9e2af")
	ColorRed    = lipgloss.Color("#f38ba8")
	ColorMuted  = lipgloss.Color("#5a6278")
)

var (
	styleOK     lipgloss.Style
	styleWarn   lipgloss.Style
	styleErr    lipgloss.Style
	styleMuted  lipgloss.Style
	styleBold   lipgloss.Style
	styleFilled lipgloss.Style
)

func init() {
	rebuildStyles()
}

func rebuildStyles() {
	styleOK = lipgloss.NewStyle().Foreground(ColorGreen)
	styleWarn = lipgloss.NewStyle().Foreground(ColorYellow)
	styleErr = lipgloss.NewStyle().Foreground(ColorRed)
	styleMuted = lipgloss.NewStyle().Foreground(ColorMuted)
	styleBold = lipgloss.NewStyle().Bold(true)
	styleFilled = lipgloss.NewStyle().Foreground(ColorGreen)
}

// ApplyTheme overrides colors from the config file and rebuilds all styles.
func ApplyTheme(tc config.ThemeConfig) {
	if tc.Green != nil {
		ColorGreen = lipgloss.Color(*tc.Green)
	}
	if tc.Yellow != nil {
		ColorYellow = lipgloss.Color(*tc.Yellow)
	}
	if tc.Red != nil {
		ColorRed = lipgloss.Color(*tc.Red)
	}
	if tc.Muted != nil {
		ColorMuted = lipgloss.Color(*tc.Muted)
	}
	rebuildStyles()
}
