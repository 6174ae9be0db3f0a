package ui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// ComposeLayout joins the main panel and the signal list horizontally,
// with menu bar on top and status bar on bottom.
func ComposeLayout(menuBar, mainPanel, signalList, statusBar string) string {
	middle := lipgloss.JoinHorizontal(lipgloss.Top, mainPanel, signalList)
	return lipgloss.JoinVertical(lipgloss.Left, menuBar, middle, statusBar)
}

func pad(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

// clampLines cuts or pads rendered output to exactly height lines.
// lipgloss Height() only sets a minimum; it won't truncate overflow.
func clampLines(rendered string, height int) string {
	lines := strings.Split(rendered, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// truncRaw pads or truncates a raw string to exactly w runes.
func truncRaw(s string, w int) string {
	s = truncRunes(s, w)
	return s + pad(w-utf8.RuneCountInString(s))
}

// truncRunes cuts s to at most n runes.
func truncRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
