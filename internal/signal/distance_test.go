package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceAtReferencePower(t *testing.T) {
	d, ok := Distance(-50, -50, 2)
	require.True(t, ok)
	assert.InDelta(t, 1.0, d, 1e-12)

	d, ok = Distance(-70, -50, 2)
	require.True(t, ok)
	assert.InDelta(t, 10.0, d, 1e-9)
}

func TestDistanceMonotonic(t *testing.T) {
	for _, pl := range []PathLoss{{A: -50, N: 2}, {A: -59, N: 2.5}, {A: -40, N: 3.3}} {
		prev := math.Inf(1)
		for rssi := -120; rssi <= 0; rssi++ {
			d, ok := pl.Distance(float64(rssi))
			require.True(t, ok)
			assert.Less(t, d, prev, "rssi %d with %+v", rssi, pl)
			prev = d
		}
	}
}

func TestDistanceUndefined(t *testing.T) {
	for _, tc := range []struct {
		name    string
		rssi, n float64
	}{
		{"nan rssi", math.NaN(), 2},
		{"inf rssi", math.Inf(-1), 2},
		{"zero exponent", -60, 0},
		{"negative exponent", -60, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := Distance(tc.rssi, -50, tc.n)
			assert.False(t, ok)
		})
	}
}

func TestCalibrationFallback(t *testing.T) {
	cal := DefaultCalibration()
	assert.Equal(t, -50.0, cal.For(SourceWiFi).A)
	assert.Equal(t, -59.0, cal.For(SourceBluetooth).A)
	assert.Equal(t, DefaultPathLoss, cal.For(SourceNFC))
}
