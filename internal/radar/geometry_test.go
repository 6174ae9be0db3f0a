package radar

import (
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-hud.klederson.com/internal/config"
	"signal-hud.klederson.com/internal/signal"
)

func TestGridRoundTrip(t *testing.T) {
	b := Fit([]signal.Position{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}}, 2)
	assert.Equal(t, Bounds{MinX: -2, MinY: -2, MaxX: 12, MaxY: 12}, b)

	g := NewGrid(b, 80, 30)
	for _, p := range []signal.Position{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 3, Y: 4}} {
		col, row, ok := g.Cell(p)
		require.True(t, ok, "%v off screen", p)
		back := g.Point(col, row)
		assert.InDelta(t, p.X, back.X, g.MetersPerCell())
		assert.InDelta(t, p.Y, back.Y, g.MetersPerCell()*2/0.5)
	}

	// +Y is up the screen
	_, top, _ := g.Cell(signal.Position{X: 0, Y: 10})
	_, bottom, _ := g.Cell(signal.Position{X: 0, Y: 0})
	assert.Less(t, top, bottom)

	_, _, ok := g.Cell(signal.Position{X: 100, Y: 0})
	assert.False(t, ok)
}

func TestBearing(t *testing.T) {
	o := signal.Position{}
	assert.InDelta(t, 0, Bearing(o, signal.Position{X: 0, Y: 5}), 1e-9)
	assert.InDelta(t, math.Pi/2, Bearing(o, signal.Position{X: 5, Y: 0}), 1e-9)
	assert.InDelta(t, math.Pi, Bearing(o, signal.Position{X: 0, Y: -5}), 1e-9)
	assert.InDelta(t, 3*math.Pi/2, Bearing(o, signal.Position{X: -5, Y: 0}), 1e-9)

	assert.Equal(t, "N", Direction(0))
	assert.Equal(t, "E", Direction(math.Pi/2))
	assert.Equal(t, "SW", Direction(5*math.Pi/4))
	assert.Equal(t, "N", Direction(-0.1))
}

func TestRingStep(t *testing.T) {
	assert.Equal(t, 2.0, RingStep(14))
	assert.Equal(t, 5.0, RingStep(40))
	assert.Equal(t, 10.0, RingStep(80))
	assert.Equal(t, 1.0, RingStep(0))
}

func TestSweep(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewSweep(start)
	s.Update(start.Add(time.Second))
	assert.InDelta(t, 72, s.Degrees(), 1e-9) // 12 rpm

	assert.Equal(t, 1.0, s.Intensity(s.Angle))
	assert.Zero(t, s.Intensity(s.Angle+0.1))
	assert.InDelta(t, 0.5, s.Intensity(s.Angle-s.trail/2), 1e-9)

	var none *Sweep
	assert.Zero(t, none.Intensity(0))
}

func TestRenderDrawsOnlyLocated(t *testing.T) {
	scene := Scene{
		Anchors: map[string]signal.Position{"node-a": {X: 0, Y: 0}, "node-b": {X: 10, Y: 0}, "node-c": {X: 0, Y: 10}},
		Local:   "node-a",
		Readings: []signal.SignalReading{
			{Source: signal.SourceWiFi, Identifier: "Router-X", Estimated: &signal.Position{X: 3, Y: 4}},
			{Source: signal.SourceBluetooth, Identifier: "AA:BB", Name: "Watch"},
		},
	}
	out := Render(60, 20, scene, nil)
	plain := stripANSI(out)

	assert.Len(t, strings.Split(plain, "\n"), 20)
	assert.Contains(t, plain, "@")
	assert.Contains(t, plain, "W")
	assert.Contains(t, plain, "Router-X")
	assert.NotContains(t, plain, "Watch")
	assert.Equal(t, 1, strings.Count(plain, "X"))

	scene.Tracked = signal.Tracked{Active: true, Source: signal.SourceWiFi, Identifier: "Router-X",
		Position: &signal.Position{X: 3, Y: 4}}
	plain = stripANSI(Render(60, 20, scene, nil))
	assert.Equal(t, 2, strings.Count(plain, "X"))
	assert.NotContains(t, plain, "W")

	assert.Empty(t, Render(5, 3, scene, nil))
}

func TestCallsign(t *testing.T) {
	assert.Equal(t, "Galaxy S24", Callsign("Galaxy S24 Ultra", "x"))
	hashed := Callsign("", "AA:BB:CC:DD:EE:FF")
	assert.Len(t, hashed, 4)
	assert.Equal(t, hashed, Callsign("", "AA:BB:CC:DD:EE:FF"))

	assert.Equal(t, "Router-X", Callsign("", "Router-X"))
	assert.Equal(t, "CoffeeShop", Callsign("", "CoffeeShop_Guest_5G"))

	cut := Callsign("aÄÄÄÄÄÄÄÄÄÄÄ", "x")
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, config.MaxLabelLength, utf8.RuneCountInString(cut))
	assert.Equal(t, "aÄÄÄÄÄÄÄÄÄ", cut)
}

func stripANSI(s string) string {
	var sb strings.Builder
	skip := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			skip = true
		case skip && ((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')):
			skip = false
		case !skip:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
