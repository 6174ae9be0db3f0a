package signal

import (
	"errors"
	"fmt"
	"io"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// rssiFor inverts the path-loss model so tests can place emitters exactly.
func rssiFor(pl PathLoss, d float64) float64 {
	return pl.A - 10*pl.N*math.Log10(d)
}

func TestNormalizeWithoutAnchors(t *testing.T) {
	n := NewNormalizer(Calibration{SourceWiFi: {A: -50, N: 2}}, nil, quietLogger())

	b := n.Normalize(SourceWiFi, []RawReport{Report("AP1", -50)})

	require.Len(t, b.Readings, 1)
	r := b.Readings[0]
	assert.Equal(t, SourceWiFi, r.Source)
	assert.Equal(t, "AP1", r.Identifier)
	assert.Equal(t, -50, r.RSSI)
	require.NotNil(t, r.Distance)
	assert.InDelta(t, 1.0, *r.Distance, 1e-12)
	assert.Nil(t, r.Anchor)
	assert.Nil(t, r.Estimated)
	assert.Equal(t, b.Cycle, r.Cycle)
	assert.NotEqual(t, uuid.Nil, b.Cycle)
}

func TestNormalizeInvalidRSSI(t *testing.T) {
	anchors := map[string]Position{"a": {0, 0}, "b": {10, 0}, "c": {0, 10}}
	n := NewNormalizer(nil, anchors, quietLogger())

	reports := []RawReport{
		{Identifier: "X", RSSI: "-60", Observer: "a"},
		{Identifier: "X", RSSI: "not-a-number", Observer: "b"},
		{Identifier: "X", RSSI: "-65", Observer: "c"},
	}
	b := n.Normalize(SourceWiFi, reports)

	require.Len(t, b.Readings, 3)
	bad := b.Readings[1]
	assert.Nil(t, bad.Distance)
	assert.Equal(t, 0, bad.RSSI)
	require.NotNil(t, bad.Anchor, "bad reading is still reported with its anchor")

	// Only two usable anchors remain, so nothing is located.
	for _, r := range b.Readings {
		assert.Nil(t, r.Estimated)
	}
}

func TestNormalizeTriangulatesEmitter(t *testing.T) {
	pl := PathLoss{A: -50, N: 2}
	anchors := map[string]Position{"node-a": {0, 0}, "node-b": {10, 0}, "node-c": {0, 10}}
	n := NewNormalizer(Calibration{SourceBluetooth: pl}, anchors, quietLogger())

	target := Position{X: 3, Y: 4}
	var reports []RawReport
	var wantAnchors []Position
	var wantDistances []float64
	for _, obs := range []string{"node-a", "node-b", "node-c"} {
		rssi := int(math.Round(rssiFor(pl, dist(anchors[obs], target))))
		reports = append(reports, RawReport{Identifier: "AA:BB:CC:DD:EE:FF", RSSI: fmt.Sprintf("%d dBm", rssi), Observer: obs})
		d, _ := pl.Distance(float64(rssi))
		wantAnchors = append(wantAnchors, anchors[obs])
		wantDistances = append(wantDistances, d)
	}
	// An unrelated emitter heard by a single node stays unlocated.
	reports = append(reports, RawReport{Identifier: "11:22:33:44:55:66", RSSI: "-70", Observer: "node-a"})

	b := n.Normalize(SourceBluetooth, reports)

	want, err := Trilaterate(wantAnchors, wantDistances)
	require.NoError(t, err)
	assert.Less(t, dist(want, target), 1.0, "integer RSSI keeps the estimate near the target")

	for _, r := range b.Readings[:3] {
		require.NotNil(t, r.Estimated)
		assert.InDelta(t, want.X, r.Estimated.X, 1e-9)
		assert.InDelta(t, want.Y, r.Estimated.Y, 1e-9)
	}
	assert.Nil(t, b.Readings[3].Estimated)
}

func TestNormalizeDuplicateObserverCountsOnce(t *testing.T) {
	anchors := map[string]Position{"a": {0, 0}, "b": {10, 0}}
	n := NewNormalizer(nil, anchors, quietLogger())

	b := n.Normalize(SourceWiFi, []RawReport{
		{Identifier: "X", RSSI: "-60", Observer: "a"},
		{Identifier: "X", RSSI: "-61", Observer: "a"},
		{Identifier: "X", RSSI: "-62", Observer: "b"},
	})
	for _, r := range b.Readings {
		assert.Nil(t, r.Estimated)
	}
}

func TestNormalizeDegenerateAnchors(t *testing.T) {
	anchors := map[string]Position{"a": {0, 0}, "b": {5, 0}, "c": {10, 0}}
	n := NewNormalizer(nil, anchors, quietLogger())

	b := n.Normalize(SourceWiFi, []RawReport{
		{Identifier: "X", RSSI: "-60", Observer: "a"},
		{Identifier: "X", RSSI: "-61", Observer: "b"},
		{Identifier: "X", RSSI: "-62", Observer: "c"},
	})
	for _, r := range b.Readings {
		assert.NotNil(t, r.Distance)
		assert.Nil(t, r.Estimated)
	}
}

func TestNormalizeIdentifierAnchor(t *testing.T) {
	n := NewNormalizer(nil, map[string]Position{"Router-X": {2, 3}}, quietLogger())

	b := n.Normalize(SourceWiFi, []RawReport{Report("Router-X", -55)})
	require.NotNil(t, b.Readings[0].Anchor)
	assert.Equal(t, Position{2, 3}, *b.Readings[0].Anchor)
}

func TestParseRSSI(t *testing.T) {
	good := map[string]int{
		"-50":      -50,
		" -61 dBm": -61,
		"-61dBm":   -61,
		"-72.6":    -73,
		"0":        0,
	}
	for in, want := range good {
		got, err := ParseRSSI(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "not-a-number", "NaN", "-Inf", "-500", "90"} {
		_, err := ParseRSSI(in)
		assert.True(t, errors.Is(err, ErrInvalidRSSI), "%q: %v", in, err)
	}
}
