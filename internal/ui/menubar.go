package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"signal-hud.klederson.com/internal/config"
)

// RenderMenuBar renders the top menu bar.
func RenderMenuBar(width int, node string, demo bool) string {
	title := fmt.Sprintf(" %s v%s ", config.AppName, config.AppVersion)

	keys := []struct{ key, label string }{
		{"Enter", "Track"},
		{"C", "lear"},
		{"Tab", "View"},
		{"Q", "uit"},
	}

	menu := ""
	for _, k := range keys {
		menu += "  " + StyleMenuKey.Render("["+k.key+"]") + StyleMenuLabel.Render(k.label)
	}

	mode := StyleStatusOK.Render("LIVE")
	if demo {
		mode = StyleStatusWarn.Render("DEMO")
	}
	nodeInfo := StyleMenuLabel.Render(fmt.Sprintf("Node: %s", node))

	left := StyleMenuKey.Render(title) + menu
	right := mode + "  " + nodeInfo + " "

	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - StyleMenuBar.GetHorizontalPadding()
	return StyleMenuBar.Width(width).Render(left + pad(gap) + right)
}
