package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"signal-hud.klederson.com/internal/signal"
)

// LoopSummary is the part of a scan loop's status shown in the status bar.
type LoopSummary struct {
	Source  signal.SourceType
	State   string
	Failing bool
}

// RenderStatusBar renders the bottom status bar: one tag per scan loop,
// colored by health, followed by per-source counts.
func RenderStatusBar(width int, loops []LoopSummary, counts map[signal.SourceType]int, extra string) string {
	var tags []string
	for _, l := range loops {
		tag := fmt.Sprintf("[%s:%s]", l.Source.Tag(), l.State)
		switch {
		case l.Failing:
			tags = append(tags, StyleStatusError.Render(tag))
		case l.State == "scanning":
			tags = append(tags, StyleStatusOK.Render(tag))
		default:
			tags = append(tags, StyleMenuLabel.Render(tag))
		}
	}
	if len(tags) == 0 {
		tags = append(tags, StyleStatusWarn.Render("[NO SCANNERS]"))
	}

	total := 0
	var parts []string
	for _, src := range signal.Sources {
		n, ok := counts[src]
		if !ok {
			continue
		}
		total += n
		parts = append(parts, fmt.Sprintf("%s: %d", src.Tag(), n))
	}
	info := fmt.Sprintf(" Signals: %d", total)
	if len(parts) > 0 {
		info += "  " + strings.Join(parts, "  ")
	}
	if extra != "" {
		info += "  " + extra
	}

	content := strings.Join(tags, " ") + StyleStatusBar.Foreground(ColorGreen).Render(info)
	gap := width - lipgloss.Width(content) - StyleStatusBar.GetHorizontalPadding()
	return StyleStatusBar.Width(width).Render(content + pad(gap))
}
