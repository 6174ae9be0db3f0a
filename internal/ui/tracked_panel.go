package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"signal-hud.klederson.com/internal/radar"
	"signal-hud.klederson.com/internal/signal"
)

// NotLocated is shown when the tracked signal has no position this cycle.
const NotLocated = "not currently located"

// RenderTrackedPanel renders the tracked signal view that replaces the
// plane. local is this node's anchor position, nil when it has none; the
// compass needs it.
func RenderTrackedPanel(t signal.Tracked, local *signal.Position, width, height int, rssiHistory []float64) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}

	title := StylePanelTitle.Render("TRACKED SIGNAL")
	hint := StyleHelp.Render("[C]lear [Tab]")
	titleLine := title + pad(innerW-lipgloss.Width(title)-lipgloss.Width(hint)) + hint
	lines := []string{titleLine, StyleRule.Render(strings.Repeat("-", innerW)), ""}

	labelSty := lipgloss.NewStyle().Foreground(ColorMidGreen)
	valSty := lipgloss.NewStyle().Foreground(ColorMatrixGreen).Bold(true)
	field := func(label, value string, sty lipgloss.Style) {
		lines = append(lines, labelSty.Render(fmt.Sprintf("  %-10s", label))+sty.Render(value))
	}

	if !t.Active {
		lines = append(lines, StyleHelp.Render("  Nothing tracked."),
			StyleHelp.Render("  Select a signal in the list and press Enter."))
		return finishPanel(lines, width, height)
	}

	field("Source", string(t.Source), SourceStyle(string(t.Source)).Bold(true))
	field("ID", t.Identifier, valSty)

	r := t.Reading
	if r == nil {
		field("Signal", "not heard this cycle", StyleStatusWarn)
	} else {
		if r.Name != "" {
			field("Name", r.Name, valSty)
		}
		field("RSSI", fmt.Sprintf("%d dBm", r.RSSI), valSty)
		if r.Distance != nil {
			field("Distance", fmt.Sprintf("~%.1fm", *r.Distance), valSty)
		} else {
			field("Distance", "unknown", StyleStatusWarn)
		}
		if r.Observer != "" {
			field("Heard by", r.Observer, valSty)
		}
	}
	if t.Located() {
		field("Position", t.Position.String(), StyleTrackedMarker)
	} else {
		field("Position", NotLocated, StyleStatusWarn)
	}
	lines = append(lines, "")

	if r != nil {
		barWidth := innerW - 22
		if barWidth < 10 {
			barWidth = 10
		}
		rssi := float64(r.RSSI)
		lines = append(lines, labelSty.Render("  Signal    ")+renderSignalBar(rssi, barWidth)+
			valSty.Render(fmt.Sprintf(" %ddBm", r.RSSI)))
	}

	if len(rssiHistory) > 0 {
		sparkW := innerW - 4
		if sparkW < 10 {
			sparkW = 10
		}
		lines = append(lines, "", labelSty.Render("  RSSI History:"),
			"  "+lipgloss.NewStyle().Foreground(ColorGreen).Render(renderSparkline(rssiHistory, sparkW)))
	}
	lines = append(lines, "")

	if t.Located() && local != nil {
		bearing := radar.Bearing(*local, *t.Position)
		dist := radar.Distance(*local, *t.Position)
		rssi := -100.0
		if r != nil {
			rssi = float64(r.RSSI)
		}

		compassH := height - len(lines) - 4
		if compassH < 5 {
			compassH = 5
		}
		compassW := innerW
		if compassW > compassH*3 {
			compassW = compassH * 3
		}
		if compass := RenderCompass(compassW, compassH, bearing, dist, rssi); compass != "" {
			prefix := pad((innerW - compassW) / 2)
			for _, cl := range strings.Split(compass, "\n") {
				lines = append(lines, prefix+cl)
			}
		}
		label := fmt.Sprintf("%.1fm %s of this node", dist, radar.Direction(bearing))
		lines = append(lines, pad((innerW-len(label))/2)+valSty.Render(label))
	}

	return finishPanel(lines, width, height)
}

func finishPanel(lines []string, width, height int) string {
	for len(lines) < height-2 {
		lines = append(lines, "")
	}
	if len(lines) > height-2 {
		lines = lines[:height-2]
	}
	rendered := StylePanelActive.Width(width - 2).Height(height - 2).Render(strings.Join(lines, "\n"))
	return clampLines(rendered, height)
}

func renderSignalBar(rssi float64, width int) string {
	// -100..-30 dBm fills 0..width
	ratio := math.Min(math.Max((rssi+100)/70, 0), 1)
	filled := int(math.Round(ratio * float64(width)))

	filledPart := lipgloss.NewStyle().Foreground(lipgloss.Color(proximityColor(rssi))).
		Render(strings.Repeat("|", filled))
	emptyPart := lipgloss.NewStyle().Foreground(ColorDimGreen).Render(strings.Repeat("-", width-filled))
	return StyleHelp.Render("[") + filledPart + emptyPart + StyleHelp.Render("]")
}

func renderSparkline(values []float64, width int) string {
	if len(values) == 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []byte{'_', '.', '-', '~', '^'}
	minV, maxV := values[0], values[0]
	for _, v := range values {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	rng := math.Max(maxV-minV, 1)

	var sb strings.Builder
	for _, v := range values {
		idx := int((v - minV) / rng * float64(len(chars)-1))
		idx = min(max(idx, 0), len(chars)-1)
		sb.WriteByte(chars[idx])
	}
	return sb.String()
}
