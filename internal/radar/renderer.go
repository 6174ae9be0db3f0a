package radar

import (
	"crypto/sha256"
	"fmt"
	"math"
	"net"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"signal-hud.klederson.com/internal/config"
	"signal-hud.klederson.com/internal/signal"
)

var (
	colorBright  = lipgloss.Color("#00FF41")
	colorMid     = lipgloss.Color("#008F11")
	colorDim     = lipgloss.Color("#004A0A")
	colorWiFi    = lipgloss.Color("#FFCC00")
	colorBLE     = lipgloss.Color("#00FFAA")
	colorFlipper = lipgloss.Color("#FF8800")
	colorOther   = lipgloss.Color("#33FF66")
	colorTracked = lipgloss.Color("#FF3300")

	styleAnchor  = lipgloss.NewStyle().Foreground(colorBright).Bold(true)
	styleRing    = lipgloss.NewStyle().Foreground(colorMid)
	styleDot     = lipgloss.NewStyle().Foreground(colorDim)
	styleTracked = lipgloss.NewStyle().Foreground(colorTracked).Bold(true)
)

// Scene is everything drawn on the plane for one frame.
type Scene struct {
	Anchors  map[string]signal.Position
	Local    string // anchor id of this node, empty if it has none
	Readings []signal.SignalReading
	Tracked  signal.Tracked
}

type marker struct {
	col, row int
	symbol   string
	style    lipgloss.Style
	label    string
	labelCol int
	labelRow int
}

// Render draws the anchors and every located emitter on a top-down view of
// the plane. Emitters without an estimated position are not drawn.
func Render(width, height int, sc Scene, sweep *Sweep) string {
	if width < 10 || height < 5 {
		return ""
	}

	emitters := locatedEmitters(sc.Readings)

	points := make([]signal.Position, 0, len(sc.Anchors)+len(emitters))
	for _, p := range sc.Anchors {
		points = append(points, p)
	}
	for _, e := range emitters {
		points = append(points, *e.Estimated)
	}
	bounds := Fit(points, config.PlaneMargin)
	grid := NewGrid(bounds, width, height)

	local, hasLocal := sc.Anchors[sc.Local]
	step := RingStep(bounds.Span())

	cells := make([][]string, height)
	for row := range cells {
		cells[row] = make([]string, width)
		for col := range cells[row] {
			cells[row][col] = background(grid, col, row, local, hasLocal, step, sweep)
		}
	}

	markers := placeMarkers(grid, sc, emitters)
	for _, m := range markers {
		if m.label == "" {
			continue
		}
		for i, r := range []rune(m.label) {
			c := m.labelCol + i
			if c >= 0 && c < width && m.labelRow >= 0 && m.labelRow < height {
				cells[m.labelRow][c] = m.style.UnsetBold().Render(string(r))
			}
		}
	}
	// symbols last so labels never hide them
	for _, m := range markers {
		cells[m.row][m.col] = m.style.Render(m.symbol)
	}

	lines := make([]string, height)
	for row := range cells {
		lines[row] = strings.Join(cells[row], "")
	}
	return strings.Join(lines, "\n")
}

func background(g Grid, col, row int, local signal.Position, hasLocal bool, step float64, sweep *Sweep) string {
	if !hasLocal {
		if col%4 == 0 && row%2 == 0 {
			return styleDot.Render(".")
		}
		return " "
	}

	p := g.Point(col, row)
	angle := Bearing(local, p)
	dist := Distance(local, p)

	// rings are half a cell thick measured along the row
	tol := g.MetersPerCell() * 0.6
	if dist > tol && math.Abs(dist-step*math.Round(dist/step)) < tol {
		return sweepStyle(styleRing, sweep.Intensity(angle)).Render(string(RingChar(angle)))
	}
	if i := sweep.Intensity(angle); i > 0 {
		return sweepStyle(styleDot, i).Render(".")
	}
	if col%4 == 0 && row%2 == 0 {
		return styleDot.Render(".")
	}
	return " "
}

func sweepStyle(base lipgloss.Style, intensity float64) lipgloss.Style {
	switch {
	case intensity > 0.8:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF41"))
	case intensity > 0.5:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#00CC33"))
	case intensity > 0.3:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA22"))
	case intensity > 0:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#005511"))
	}
	return base
}

// locatedEmitters returns one reading per located emitter in stable order.
func locatedEmitters(readings []signal.SignalReading) []signal.SignalReading {
	seen := make(map[string]bool)
	var out []signal.SignalReading
	for _, r := range readings {
		if r.Estimated == nil {
			continue
		}
		key := string(r.Source) + "/" + r.Identifier
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// placeMarkers positions anchor and emitter symbols and resolves label
// collisions by trying the right, the row below, then the row above.
func placeMarkers(g Grid, sc Scene, emitters []signal.SignalReading) []marker {
	type segment struct{ start, end int }
	occupied := make(map[int][]segment)
	free := func(row, start, end int) bool {
		for _, s := range occupied[row] {
			if start < s.end && end > s.start {
				return false
			}
		}
		return true
	}

	var out []marker
	add := func(p signal.Position, symbol string, style lipgloss.Style, label string) {
		col, row, ok := g.Cell(p)
		if !ok {
			return
		}
		m := marker{col: col, row: row, symbol: symbol, style: style}
		occupied[row] = append(occupied[row], segment{col, col + 1})

		n := utf8.RuneCountInString(label)
		lc := col + 2
		if lc+n >= g.Width {
			lc = col - n - 1
		}
		if lc < 0 {
			lc = 0
		}
		for _, lr := range []int{row, row + 1, row - 1} {
			if lr >= 0 && lr < g.Height && free(lr, lc, lc+n) {
				m.label, m.labelCol, m.labelRow = label, lc, lr
				occupied[lr] = append(occupied[lr], segment{lc, lc + n})
				break
			}
		}
		out = append(out, m)
	}

	ids := make([]string, 0, len(sc.Anchors))
	for id := range sc.Anchors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		symbol := "A"
		if id == sc.Local {
			symbol = "@"
		}
		add(sc.Anchors[id], symbol, styleAnchor, Callsign(id, ""))
	}

	for _, e := range emitters {
		if sc.Tracked.Active && e.Source == sc.Tracked.Source && e.Identifier == sc.Tracked.Identifier {
			continue
		}
		symbol, style := SourceSymbol(e.Source)
		add(*e.Estimated, symbol, style, Callsign(e.Name, e.Identifier))
	}

	// tracked target is placed last so it wins its cell
	if t := sc.Tracked; t.Located() {
		name := t.Identifier
		if t.Reading != nil {
			name = t.Reading.Name
		}
		add(*t.Position, "X", styleTracked, Callsign(name, t.Identifier))
	}
	return out
}

// SourceSymbol returns the plane symbol and style for a source type.
func SourceSymbol(src signal.SourceType) (string, lipgloss.Style) {
	switch src {
	case signal.SourceWiFi:
		return "W", lipgloss.NewStyle().Foreground(colorWiFi).Bold(true)
	case signal.SourceBluetooth:
		return "*", lipgloss.NewStyle().Foreground(colorBLE).Bold(true)
	case signal.SourceFlipper:
		return "F", lipgloss.NewStyle().Foreground(colorFlipper).Bold(true)
	default:
		return "o", lipgloss.NewStyle().Foreground(colorOther).Bold(true)
	}
}

// Callsign shortens a label for the plane. Unnamed emitters fall back to
// their identifier; MAC addresses get a stable short hash instead.
func Callsign(name, identifier string) string {
	label := name
	if label == "" {
		if _, err := net.ParseMAC(identifier); err == nil || identifier == "" {
			h := sha256.Sum256([]byte(identifier))
			return fmt.Sprintf("#%02X%X", h[0], h[1]&0x0F)
		}
		label = identifier
	}
	if runes := []rune(label); len(runes) > config.MaxLabelLength {
		label = string(runes[:config.MaxLabelLength])
	}
	return label
}

// RenderLegend produces the legend line under the plane.
func RenderLegend(width int) string {
	w, ws := SourceSymbol(signal.SourceWiFi)
	b, bs := SourceSymbol(signal.SourceBluetooth)
	f, fs := SourceSymbol(signal.SourceFlipper)
	legend := styleAnchor.Render("@ this node") + "  " +
		styleAnchor.Render("A anchor") + "  " +
		ws.Render(w+" WiFi") + "  " +
		bs.Render(b+" BLE") + "  " +
		fs.Render(f+" Flipper") + "  " +
		styleTracked.Render("X tracked")

	pad := (width - lipgloss.Width(legend)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + legend
}

// ScaleLabel describes the ring spacing for the status line.
func ScaleLabel(sc Scene) string {
	points := make([]signal.Position, 0, len(sc.Anchors))
	for _, p := range sc.Anchors {
		points = append(points, p)
	}
	for _, e := range locatedEmitters(sc.Readings) {
		points = append(points, *e.Estimated)
	}
	return fmt.Sprintf("rings %gm", RingStep(Fit(points, config.PlaneMargin).Span()))
}
