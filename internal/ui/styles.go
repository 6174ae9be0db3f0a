package ui

import "github.com/charmbracelet/lipgloss"

// Matrix color palette
var (
	ColorMatrixGreen  = lipgloss.Color("#00FF41")
	ColorGreen        = lipgloss.Color("#00CC33")
	ColorMidGreen     = lipgloss.Color("#008F11")
	ColorDimGreen     = lipgloss.Color("#004A0A")
	ColorSourceWiFi   = lipgloss.Color("#FFCC00")
	ColorSourceBLE    = lipgloss.Color("#00FFAA")
	ColorSourceFZ     = lipgloss.Color("#FF8800")
	ColorSourceOther  = lipgloss.Color("#33FF66")
	ColorBorderBright = lipgloss.Color("#00FF41")
	ColorBorderNorm   = lipgloss.Color("#00AA22")
	ColorError        = lipgloss.Color("#FF3300")
	ColorWarning      = lipgloss.Color("#FFAA00")
)

// Pre-built styles
var (
	StyleMenuBar = lipgloss.NewStyle().
			Background(lipgloss.Color("#002200")).
			Foreground(ColorMatrixGreen).
			Bold(true).
			Padding(0, 1)

	StyleMenuKey = lipgloss.NewStyle().
			Foreground(ColorMatrixGreen).
			Bold(true)

	StyleMenuLabel = lipgloss.NewStyle().
			Foreground(ColorGreen)

	StyleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("#002200")).
			Foreground(ColorGreen).
			Padding(0, 1)

	StyleStatusOK = lipgloss.NewStyle().
			Foreground(ColorMatrixGreen).
			Bold(true)

	StyleStatusWarn = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)

	StyleStatusError = lipgloss.NewStyle().
				Foreground(ColorError).
				Bold(true)

	StylePanelBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorderNorm)

	StylePanelActive = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorderBright)

	StylePanelTitle = lipgloss.NewStyle().
			Foreground(ColorMatrixGreen).
			Bold(true).
			Padding(0, 1)

	StyleSignalName = lipgloss.NewStyle().
			Foreground(ColorMatrixGreen).
			Bold(true)

	StyleSignalID = lipgloss.NewStyle().
			Foreground(ColorMidGreen)

	StyleSignalRSSI = lipgloss.NewStyle().
			Foreground(ColorGreen)

	StyleSignalDist = lipgloss.NewStyle().
			Foreground(ColorGreen)

	StyleRule = lipgloss.NewStyle().
			Foreground(ColorMidGreen)

	StyleHelp = lipgloss.NewStyle().
			Foreground(ColorDimGreen)

	StyleTrackedMarker = lipgloss.NewStyle().
				Foreground(ColorError).
				Bold(true)

	// black text on bright green
	StyleCursorRow = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(ColorMatrixGreen).
			Bold(true)
)

// SourceStyle returns the color style for a source type tag.
func SourceStyle(source string) lipgloss.Style {
	switch source {
	case "wifi":
		return lipgloss.NewStyle().Foreground(ColorSourceWiFi)
	case "bluetooth":
		return lipgloss.NewStyle().Foreground(ColorSourceBLE)
	case "flipper":
		return lipgloss.NewStyle().Foreground(ColorSourceFZ)
	default:
		return lipgloss.NewStyle().Foreground(ColorSourceOther)
	}
}
