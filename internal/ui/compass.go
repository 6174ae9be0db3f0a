package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"signal-hud.klederson.com/internal/radar"
)

// RenderCompass draws a compass with an arrow from this node toward the
// tracked emitter. bearing is in radians (0 = +Y, clockwise); the arrow is
// longer the closer the emitter is.
func RenderCompass(width, height int, bearing, distance, rssi float64) string {
	if width < 9 || height < 5 {
		return ""
	}

	grid := make([][]byte, height)
	isArrow := make([][]bool, height)
	for i := range grid {
		grid[i] = []byte(strings.Repeat(" ", width))
		isArrow[i] = make([]bool, width)
	}
	set := func(col, row int, ch byte, arrow bool) {
		if col >= 0 && col < width && row >= 0 && row < height {
			grid[row][col] = ch
			isArrow[row][col] = isArrow[row][col] || arrow
		}
	}

	fcx := float64(width) / 2
	fcy := float64(height) / 2
	rx := math.Max(fcx-2, 3)
	ry := math.Max(fcy-2, 2)
	cx, cy := int(math.Round(fcx)), int(math.Round(fcy))

	const steps = 80
	for i := 0; i < steps; i++ {
		a := float64(i) * 2 * math.Pi / steps
		col := int(math.Round(fcx + rx*math.Sin(a)))
		row := int(math.Round(fcy - ry*math.Cos(a)))
		set(col, row, tangentChar(a), false)
	}

	set(cx, cy-int(math.Round(ry))-1, 'N', false)
	set(cx, cy+int(math.Round(ry))+1, 'S', false)
	set(cx+int(math.Round(rx))+1, cy, 'E', false)
	set(cx-int(math.Round(rx))-1, cy, 'W', false)
	set(cx, cy, '+', false)

	frac := 0.85 - 0.55*math.Min(distance/20, 1)
	shaft := int(math.Max(rx, ry) * frac)
	if shaft < 2 {
		shaft = 2
	}
	sinA, cosA := math.Sin(bearing), math.Cos(bearing)
	tipCol, tipRow := cx, cy
	for s := 1; s <= shaft; s++ {
		t := float64(s) / float64(shaft) * frac
		tipCol = int(math.Round(fcx + t*rx*sinA))
		tipRow = int(math.Round(fcy - t*ry*cosA))
		set(tipCol, tipRow, shaftChar(bearing), true)
	}
	set(tipCol, tipRow, arrowTip(bearing), true)

	arrowSty := lipgloss.NewStyle().Foreground(lipgloss.Color(proximityColor(rssi))).Bold(true)
	ringSty := lipgloss.NewStyle().Foreground(ColorDimGreen)
	markSty := lipgloss.NewStyle().Foreground(ColorMatrixGreen).Bold(true)

	var sb strings.Builder
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			ch := grid[row][col]
			switch {
			case isArrow[row][col]:
				sb.WriteString(arrowSty.Render(string(ch)))
			case strings.IndexByte("NSEW+", ch) >= 0:
				sb.WriteString(markSty.Render(string(ch)))
			case ch != ' ':
				sb.WriteString(ringSty.Render(string(ch)))
			default:
				sb.WriteByte(' ')
			}
		}
		if row < height-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func sector(a float64) int {
	return int(math.Round(radar.NormalizeAngle(a)/(math.Pi/4))) % 8
}

// tangentChar is the ring character at angle a on screen.
func tangentChar(a float64) byte {
	return "-\\|/-\\|/"[sector(a)]
}

// shaftChar is the line character pointing along a.
func shaftChar(a float64) byte {
	return "|/-\\|/-\\"[sector(a)]
}

func arrowTip(a float64) byte {
	return "^/>\\v/<\\"[sector(a)]
}

// proximityColor maps RSSI to a green shade (brighter = closer).
func proximityColor(rssi float64) string {
	switch {
	case rssi > -50:
		return "#00FF41"
	case rssi > -60:
		return "#00CC33"
	case rssi > -70:
		return "#00AA22"
	case rssi > -80:
		return "#008F11"
	}
	return "#005511"
}
